package aiinterface

import (
	"context"
	"errors"
	"fmt"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 消息结构
type Message struct {
	Role    string `json:"role"`    // system, user, assistant
	Content string `json:"content"` // 消息内容
}

// ValidRole 判断角色是否受支持
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// ChatCompletionRequest 对话补全请求
// Instruction 为固定前导指令，各客户端按自身协议放置（前缀文本或 system 消息）
type ChatCompletionRequest struct {
	Instruction string    `json:"instruction,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse 对话补全响应
type ChatCompletionResponse struct {
	Model   string `json:"model"`
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage Token 使用情况
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Embedder 文本向量化客户端
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
	GetProviderName() string
}

// ChatClient 对话补全客户端（非流式）
type ChatClient interface {
	ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
	GetModel() string
	GetProviderName() string
}

// ClientConfig 客户端配置
type ClientConfig struct {
	Provider string // ollama, openai
	Endpoint string // 完整接口地址或基础 URL
	APIKey   string
	Model    string
	Timeout  int // 秒
}

// ErrorType 错误类型
type ErrorType string

const (
	ErrorTypeUnavailable     ErrorType = "provider_unavailable"      // 网络、超时或非 2xx 响应
	ErrorTypeInvalidResponse ErrorType = "provider_response_invalid" // 响应结构不符合约定
	ErrorTypeInvalidParams   ErrorType = "invalid_params"            // 请求参数错误
)

// 提供者错误哨兵，配合 errors.Is 使用
var (
	ErrProviderUnavailable     = errors.New("provider unavailable")
	ErrProviderResponseInvalid = errors.New("provider response invalid")
	ErrInvalidParams           = errors.New("invalid provider request")
)

// ClientError 客户端错误
type ClientError struct {
	Type       ErrorType
	Provider   string
	StatusCode int // 上游 HTTP 状态码，未收到响应时为 0
	Message    string
	Err        error
}

// Error 实现 error 接口
func (e *ClientError) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 返回原始错误
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is 将错误类型映射到哨兵错误
func (e *ClientError) Is(target error) bool {
	switch target {
	case ErrProviderUnavailable:
		return e.Type == ErrorTypeUnavailable
	case ErrProviderResponseInvalid:
		return e.Type == ErrorTypeInvalidResponse
	case ErrInvalidParams:
		return e.Type == ErrorTypeInvalidParams
	}
	return false
}

// IsRetryable 是否可由调用方重试
func (e *ClientError) IsRetryable() bool {
	return e.Type == ErrorTypeUnavailable
}

// NewUnavailableError 创建不可用错误
func NewUnavailableError(provider string, status int, message string, err error) *ClientError {
	return &ClientError{Type: ErrorTypeUnavailable, Provider: provider, StatusCode: status, Message: message, Err: err}
}

// NewInvalidResponseError 创建响应无效错误
func NewInvalidResponseError(provider string, status int, message string, err error) *ClientError {
	return &ClientError{Type: ErrorTypeInvalidResponse, Provider: provider, StatusCode: status, Message: message, Err: err}
}

// NewInvalidParamsError 创建参数错误
func NewInvalidParamsError(provider string, message string) *ClientError {
	return &ClientError{Type: ErrorTypeInvalidParams, Provider: provider, Message: message}
}
