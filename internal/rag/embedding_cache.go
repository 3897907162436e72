package rag

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ragservice/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EmbeddingCache 向量缓存服务（本地 L1 + Redis L2）
// 键为 模型名 + 文本指纹，与存储主键使用同一指纹算法。
type EmbeddingCache struct {
	redis        redis.UniversalClient
	prefix       string
	ttl          time.Duration
	maxLocalSize int
	logger       *zap.Logger

	mu    sync.Mutex
	local map[string][]float32
	order []string // 写入顺序，满时按先进先出淘汰
}

// cachedEmbedding Redis 中的缓存结构
type cachedEmbedding struct {
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEmbeddingCache 创建向量缓存；redisClient 为空时只使用本地缓存
func NewEmbeddingCache(redisClient redis.UniversalClient, prefix string, ttl time.Duration, maxLocal int, logger *zap.Logger) *EmbeddingCache {
	if prefix == "" {
		prefix = "rag:emb:"
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if maxLocal <= 0 {
		maxLocal = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingCache{
		redis:        redisClient,
		prefix:       prefix,
		ttl:          ttl,
		maxLocalSize: maxLocal,
		logger:       logger,
		local:        make(map[string][]float32),
	}
}

// Get 获取缓存的向量
func (c *EmbeddingCache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	key := c.makeKey(text, model)

	c.mu.Lock()
	vec, ok := c.local[key]
	c.mu.Unlock()
	if ok {
		return vec, true
	}

	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("读取向量缓存失败", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var cached cachedEmbedding
	if err := json.Unmarshal(data, &cached); err != nil || len(cached.Vector) == 0 {
		return nil, false
	}
	c.setLocal(key, cached.Vector)
	return cached.Vector, true
}

// Set 设置缓存，Redis 写入失败只记录日志
func (c *EmbeddingCache) Set(ctx context.Context, text, model string, vector []float32) {
	key := c.makeKey(text, model)
	c.setLocal(key, vector)

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(cachedEmbedding{Vector: vector, Model: model, CreatedAt: time.Now()})
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("写入向量缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// Len 本地缓存条数
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.local)
}

func (c *EmbeddingCache) makeKey(text, model string) string {
	return c.prefix + model + ":" + Fingerprint(text)
}

func (c *EmbeddingCache) setLocal(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.local[key]; exists {
		c.local[key] = vector
		return
	}
	for len(c.order) >= c.maxLocalSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.local, oldest)
	}
	c.local[key] = vector
	c.order = append(c.order, key)
}

// CachedEmbeddingProvider 带缓存的 Embedding 提供者包装器
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	cache    *EmbeddingCache
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding 提供者
func NewCachedEmbeddingProvider(provider EmbeddingProvider, cache *EmbeddingCache) *CachedEmbeddingProvider {
	return &CachedEmbeddingProvider{
		provider: provider,
		cache:    cache,
	}
}

// Embed 单条向量化 (带缓存)，失败结果不缓存
func (p *CachedEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	model := p.provider.GetModel()

	if vec, ok := p.cache.Get(ctx, text, model); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := p.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	p.cache.Set(ctx, text, model, vec)
	return vec, nil
}

// GetModel 获取模型名称
func (p *CachedEmbeddingProvider) GetModel() string {
	return p.provider.GetModel()
}

// GetProviderName 获取提供者名称
func (p *CachedEmbeddingProvider) GetProviderName() string {
	return p.provider.GetProviderName()
}
