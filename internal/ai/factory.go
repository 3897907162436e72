package ai

import (
	"fmt"
	"os"
	"strings"

	"ragservice/internal/ai/ollama"
	"ragservice/internal/ai/openai"
	"ragservice/pkg/aiinterface"
)

// 兼容 OpenAI 协议的提供者默认地址
var openAICompatibleBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com",
	"qwen":     "https://dashscope.aliyuncs.com/compatible-mode/v1",
}

// 未显式配置 API Key 时读取的环境变量
var apiKeyEnv = map[string]string{
	"openai":   "OPENAI_API_KEY",
	"deepseek": "DEEPSEEK_API_KEY",
	"qwen":     "QWEN_API_KEY",
}

// NewEmbedder 按提供者创建向量化客户端
func NewEmbedder(config aiinterface.ClientConfig) (aiinterface.Embedder, error) {
	provider := normalizeProvider(config.Provider)
	switch provider {
	case "ollama":
		client, err := ollama.NewEmbeddingClient(&config)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		if _, ok := openAICompatibleBaseURLs[provider]; !ok {
			return nil, fmt.Errorf("不支持的向量化提供者: %s", config.Provider)
		}
		client, err := openai.NewClient(resolveOpenAIConfig(provider, config))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// NewChatClient 按提供者创建对话补全客户端
func NewChatClient(config aiinterface.ClientConfig) (aiinterface.ChatClient, error) {
	provider := normalizeProvider(config.Provider)
	switch provider {
	case "ollama":
		client, err := ollama.NewChatClient(&config)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		if _, ok := openAICompatibleBaseURLs[provider]; !ok {
			return nil, fmt.Errorf("不支持的对话提供者: %s", config.Provider)
		}
		client, err := openai.NewClient(resolveOpenAIConfig(provider, config))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// SupportedProviders 支持的提供者名称
func SupportedProviders() []string {
	return []string{"ollama", "openai", "deepseek", "qwen"}
}

func normalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "ollama"
	}
	return p
}

func resolveOpenAIConfig(provider string, config aiinterface.ClientConfig) *aiinterface.ClientConfig {
	if config.Endpoint == "" {
		config.Endpoint = openAICompatibleBaseURLs[provider]
	}
	if config.APIKey == "" {
		config.APIKey = strings.TrimSpace(os.Getenv(apiKeyEnv[provider]))
	}
	return &config
}
