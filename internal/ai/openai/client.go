package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"ragservice/pkg/aiinterface"

	openai "github.com/sashabaranov/go-openai"
)

const (
	providerName   = "openai"
	defaultTimeout = 120 * time.Second
)

// Client OpenAI 兼容接口适配器，同时提供向量化与对话补全
type Client struct {
	client     *openai.Client
	modelID    string
	maxRetries int
	backoff    time.Duration
}

// Option 客户端选项
type Option func(*Client)

// WithMaxRetries 设置可重试错误的重试次数，默认不重试，失败直接交给调用方
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff 设置首次重试等待时间，之后指数增长
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// NewClient 创建 OpenAI 客户端
// Endpoint 为 API 基础地址（如 https://api.openai.com/v1），可指向任意兼容服务
func NewClient(config *aiinterface.ClientConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(config.Model) == "" {
		return nil, fmt.Errorf("openai 模型不能为空")
	}
	baseURL := strings.TrimSpace(config.Endpoint)
	if config.APIKey == "" && (baseURL == "" || strings.Contains(baseURL, "api.openai.com")) {
		return nil, fmt.Errorf("OpenAI API Key 不能为空")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	c := &Client{
		client:     openai.NewClientWithConfig(clientConfig),
		modelID:    config.Model,
		maxRetries: 0,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Embed 单条文本向量化
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.modelID),
	}

	var resp openai.EmbeddingResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateEmbeddings(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, wrapError(ctx, err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, aiinterface.NewInvalidResponseError(providerName, http.StatusOK, "响应缺少 embedding 数据", nil)
	}
	return resp.Data[0].Embedding, nil
}

// ChatCompletion 对话补全（非流式）
// Instruction 作为首条 system 消息发送
func (c *Client) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, aiinterface.NewInvalidParamsError(providerName, "消息不能为空")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.Instruction) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.Instruction})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}

	temperature := float32(req.Temperature)
	if temperature == 0 {
		// go-openai 对 0 使用 omitempty，会被服务端当作默认温度
		temperature = math.SmallestNonzeroFloat32
	}
	openaiReq := openai.ChatCompletionRequest{
		Model:       c.modelID,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	}

	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, openaiReq)
		return callErr
	})
	if err != nil {
		return nil, wrapError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, aiinterface.NewInvalidResponseError(providerName, http.StatusOK, "API 返回空响应", nil)
	}

	return &aiinterface.ChatCompletionResponse{
		Model:   resp.Model,
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: aiinterface.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// GetModel 获取模型名称
func (c *Client) GetModel() string { return c.modelID }

// GetProviderName 获取提供者名称
func (c *Client) GetProviderName() string { return providerName }

// withRetry 对暂时性错误做指数退避重试，等待期间响应上下文取消
func (c *Client) withRetry(ctx context.Context, call func() error) error {
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		if err = call(); err == nil {
			return nil
		}
		if !isRetryableError(err) || i == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff << uint(i)):
		}
	}
	return err
}

// statusCode 提取上游 HTTP 状态码，未收到响应时为 0
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// isRetryableError 网络错误、限流和 5xx 可重试
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if isDecodeError(err) {
		return false
	}
	code := statusCode(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// wrapError 包装为统一的提供者错误
func wrapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	if isDecodeError(err) {
		return aiinterface.NewInvalidResponseError(providerName, http.StatusOK, "解析响应失败", err)
	}
	return aiinterface.NewUnavailableError(providerName, statusCode(err), "OpenAI API 错误", err)
}
