package rag

import (
	"context"
	"fmt"

	"ragservice/pkg/aiinterface"

	"golang.org/x/time/rate"
)

// EmbeddingProvider 抽象不同向量模型/服务的统一接口。
type EmbeddingProvider = aiinterface.Embedder

// Generator 对话补全客户端
type Generator = aiinterface.ChatClient

// RateLimitedEmbeddingProvider 对上游向量服务限速，避免并发分块压垮提供者
type RateLimitedEmbeddingProvider struct {
	provider EmbeddingProvider
	limiter  *rate.Limiter
}

// NewRateLimitedEmbeddingProvider 创建限速包装器；rps <= 0 时不限速，直接返回原提供者
func NewRateLimitedEmbeddingProvider(provider EmbeddingProvider, rps float64, burst int) EmbeddingProvider {
	if rps <= 0 {
		return provider
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbeddingProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed 等待令牌后调用上游；等待期间上下文取消则直接返回
func (p *RateLimitedEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// 剩余时间不足以等到令牌，按超时处理
		return nil, aiinterface.NewUnavailableError(p.provider.GetProviderName(), 0, "向量化限流等待超时", err)
	}
	return p.provider.Embed(ctx, text)
}

// GetModel 获取模型名称
func (p *RateLimitedEmbeddingProvider) GetModel() string {
	return p.provider.GetModel()
}

// GetProviderName 获取提供者名称
func (p *RateLimitedEmbeddingProvider) GetProviderName() string {
	return p.provider.GetProviderName()
}

// checkDimensions 向量维度必须与索引一致，不做截断或补齐
func checkDimensions(index string, want int, vector []float32) error {
	if want > 0 && len(vector) != want {
		return fmt.Errorf("%w: index %s expects %d dimensions, got %d", ErrDimensionMismatch, index, want, len(vector))
	}
	return nil
}
