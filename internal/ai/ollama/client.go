package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"ragservice/pkg/aiinterface"
	"ragservice/pkg/httputil"
)

const (
	providerName = "ollama"

	defaultBaseURL       = "http://localhost:11434"
	defaultEmbeddingPath = "/api/embeddings"
	defaultGeneratePath  = "/api/generate"
)

// EmbeddingClient Ollama 向量化客户端
type EmbeddingClient struct {
	endpoint string
	model    string
	http     *httputil.Client
}

// ChatClient Ollama 生成客户端，使用 /api/generate 的单段 prompt 协议
type ChatClient struct {
	endpoint string
	model    string
	http     *httputil.Client
}

// NewEmbeddingClient 创建向量化客户端
// Endpoint 可以是完整接口地址，也可以只给基础 URL
func NewEmbeddingClient(config *aiinterface.ClientConfig, opts ...httputil.ClientOption) (*EmbeddingClient, error) {
	endpoint, err := resolveEndpoint(config.Endpoint, defaultEmbeddingPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(config.Model) == "" {
		return nil, fmt.Errorf("ollama 向量模型不能为空")
	}
	return &EmbeddingClient{
		endpoint: endpoint,
		model:    config.Model,
		http:     newHTTPClient(config, opts),
	}, nil
}

// NewChatClient 创建生成客户端
func NewChatClient(config *aiinterface.ClientConfig, opts ...httputil.ClientOption) (*ChatClient, error) {
	endpoint, err := resolveEndpoint(config.Endpoint, defaultGeneratePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(config.Model) == "" {
		return nil, fmt.Errorf("ollama 对话模型不能为空")
	}
	return &ChatClient{
		endpoint: endpoint,
		model:    config.Model,
		http:     newHTTPClient(config, opts),
	}, nil
}

func newHTTPClient(config *aiinterface.ClientConfig, opts []httputil.ClientOption) *httputil.Client {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second // 本地推理可能较慢
	}
	base := []httputil.ClientOption{httputil.WithTimeout(timeout)}
	if config.APIKey != "" {
		base = append(base, httputil.WithHeaders(map[string]string{"Authorization": "Bearer " + config.APIKey}))
	}
	return httputil.NewClient(append(base, opts...)...)
}

// Embed 文本向量化
// 接受 {"embedding": [...]} 与新版 /api/embed 的 {"embeddings": [[...]]}；缺失、为空或含非数值元素都视为响应无效
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := c.http.PostJSON(ctx, c.endpoint, map[string]any{
		"model":  c.model,
		"prompt": text,
		"input":  text,
	})
	if err != nil {
		return nil, classify(ctx, "向量化请求失败", err)
	}

	var resp struct {
		Embedding  json.RawMessage   `json:"embedding"`
		Embeddings []json.RawMessage `json:"embeddings"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, aiinterface.NewInvalidResponseError(providerName, 200, "响应不是合法 JSON", err)
	}

	raw := resp.Embedding
	if len(raw) == 0 && len(resp.Embeddings) > 0 {
		raw = resp.Embeddings[0]
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, aiinterface.NewInvalidResponseError(providerName, 200, "响应缺少 embedding 字段", nil)
	}

	vector, err := parseVector(raw)
	if err != nil {
		return nil, aiinterface.NewInvalidResponseError(providerName, 200, "embedding 格式无效", err)
	}
	return vector, nil
}

// GetModel 获取模型名称
func (c *EmbeddingClient) GetModel() string { return c.model }

// GetProviderName 获取提供者名称
func (c *EmbeddingClient) GetProviderName() string { return providerName }

// ChatCompletion 生成回答
// 指令在前，空一行后逐条拼接 "role: content"
func (c *ChatClient) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, aiinterface.NewInvalidParamsError(providerName, "消息不能为空")
	}

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	body, err := c.http.PostJSON(ctx, c.endpoint, map[string]any{
		"model":   c.model,
		"prompt":  BuildPrompt(req.Instruction, req.Messages),
		"stream":  false,
		"options": options,
	})
	if err != nil {
		return nil, classify(ctx, "生成请求失败", err)
	}

	var resp struct {
		Model           string  `json:"model"`
		Response        *string `json:"response"`
		PromptEvalCount int     `json:"prompt_eval_count"`
		EvalCount       int     `json:"eval_count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, aiinterface.NewInvalidResponseError(providerName, 200, "响应不是合法 JSON", err)
	}
	if resp.Response == nil {
		return nil, aiinterface.NewInvalidResponseError(providerName, 200, "响应缺少 response 字段", nil)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &aiinterface.ChatCompletionResponse{
		Model:   model,
		Content: strings.TrimSpace(*resp.Response),
		Usage: aiinterface.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

// GetModel 获取模型名称
func (c *ChatClient) GetModel() string { return c.model }

// GetProviderName 获取提供者名称
func (c *ChatClient) GetProviderName() string { return providerName }

// BuildPrompt 把消息序列压平为单段 prompt
func BuildPrompt(instruction string, messages []aiinterface.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	prompt := strings.Join(lines, "\n")
	if strings.TrimSpace(instruction) == "" {
		return prompt
	}
	return instruction + "\n\n" + prompt
}

func parseVector(raw json.RawMessage) ([]float32, error) {
	var items []any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("embedding 不是数组: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("embedding 为空")
	}

	vector := make([]float32, len(items))
	for i, item := range items {
		n, ok := item.(json.Number)
		if !ok {
			return nil, fmt.Errorf("第 %d 个元素不是数值: %v", i, item)
		}
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("第 %d 个元素无法解析: %s", i, n)
		}
		if math.Abs(f) > math.MaxFloat32 {
			return nil, fmt.Errorf("第 %d 个元素超出 float32 范围: %s", i, n)
		}
		vector[i] = float32(f)
	}
	return vector, nil
}

// classify 把传输层错误归类为提供者错误；调用方取消时保留取消错误
func classify(ctx context.Context, message string, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return aiinterface.NewUnavailableError(providerName, se.StatusCode, message, err)
	}
	return aiinterface.NewUnavailableError(providerName, 0, message, err)
}

func resolveEndpoint(endpoint, defaultPath string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultBaseURL
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("无效的 ollama 地址: %q", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultPath
	}
	return u.String(), nil
}
