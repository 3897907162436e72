package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ragservice/internal/ai"
	"ragservice/internal/config"
	"ragservice/internal/infra"
	"ragservice/internal/infra/queue"
	"ragservice/internal/rag"
	"ragservice/internal/rag/parsers"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App RAG 服务依赖容器，HTTP 服务、Worker 与命令行共用
type App struct {
	Config    *config.Config
	Gateway   *rag.Gateway
	Indexer   *rag.Indexer
	Retriever *rag.Retriever
	Embedder  rag.EmbeddingProvider
	Generator rag.Generator
	Parsers   *parsers.ParserRegistry

	// Queue 仅在启用异步索引时非空
	Queue queue.Client

	DB    *gorm.DB
	Redis redis.UniversalClient

	logger *zap.Logger
}

// Option 容器选项
type Option func(*options)

type options struct {
	backend rag.VectorBackend
	db      *gorm.DB
	noQueue bool
}

// WithBackend 使用已构造好的向量存储后端（测试使用）
func WithBackend(b rag.VectorBackend) Option {
	return func(o *options) { o.backend = b }
}

// WithDB 复用已有的数据库连接
func WithDB(db *gorm.DB) Option {
	return func(o *options) { o.db = db }
}

// WithoutQueue 不连接任务队列（命令行同步执行时使用）
func WithoutQueue() Option {
	return func(o *options) { o.noQueue = true }
}

// New 按配置组装存储、模型客户端与两条流水线
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg, DB: o.db, logger: logger}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = a.newVectorBackend()
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	a.Gateway = rag.NewGateway(backend,
		rag.WithGatewayLogger(logger.Named("gateway")),
		rag.WithOperationTimeout(time.Duration(cfg.RAG.VectorStore.TimeoutSeconds)*time.Second),
	)

	if err := a.initProviders(); err != nil {
		_ = a.Close()
		return nil, err
	}

	tokenizer, err := rag.NewTokenizer(cfg.RAG.Chunking.Tokenizer)
	if err != nil {
		logger.Warn("tokenizer 加载失败，使用估算计数", zap.String("encoding", cfg.RAG.Chunking.Tokenizer), zap.Error(err))
	}
	chunker := rag.NewChunker(cfg.RAG.Chunking.MaxTokens, cfg.RAG.Chunking.Strategy, tokenizer)

	a.Parsers = parsers.NewParserRegistry()
	a.Indexer, err = rag.NewIndexer(a.Gateway, a.Embedder, chunker,
		rag.WithWorkers(cfg.RAG.Indexing.Workers),
		rag.WithParsers(a.Parsers),
		rag.WithIndexerLogger(logger.Named("indexer")),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Retriever = rag.NewRetriever(a.Gateway, a.Embedder, a.Generator, rag.RetrieverConfig{
		NumResults:  cfg.RAG.Retrieval.NumResults,
		Instruction: cfg.RAG.Retrieval.InstructionPrompt,
		Temperature: cfg.RAG.Retrieval.Temperature,
		MaxTokens:   cfg.RAG.Retrieval.MaxTokens,
	}, logger.Named("retriever"))

	if cfg.RAG.Indexing.Async && !o.noQueue {
		redisOpt, err := infra.AsynqRedisOpt(&cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Queue = queue.NewClient(redisOpt, queue.Options{MaxRetry: cfg.RAG.Indexing.MaxRetry})
	}

	logger.Info("RAG 服务组装完成",
		zap.String("vector_store", a.Gateway.Backend()),
		zap.String("embedding_provider", a.Embedder.GetProviderName()),
		zap.String("embedding_model", a.Embedder.GetModel()),
		zap.String("chat_provider", a.Generator.GetProviderName()),
		zap.String("chat_model", a.Generator.GetModel()),
		zap.Bool("async_indexing", a.Queue != nil),
	)
	return a, nil
}

// newVectorBackend 按配置创建向量存储后端
func (a *App) newVectorBackend() (rag.VectorBackend, error) {
	vs := a.Config.RAG.VectorStore
	switch strings.ToLower(strings.TrimSpace(vs.Type)) {
	case config.VectorStoreElasticsearch:
		return rag.NewElasticsearchBackend(rag.ElasticsearchOptions{
			Addresses:  vs.Elasticsearch.Addresses,
			Username:   vs.Elasticsearch.Username,
			Password:   vs.Elasticsearch.Password,
			APIKey:     vs.Elasticsearch.APIKey,
			Refresh:    vs.Elasticsearch.Refresh,
			MaxRetries: vs.Elasticsearch.MaxRetries,
			Timeout:    time.Duration(vs.Elasticsearch.TimeoutSeconds) * time.Second,
		})
	case config.VectorStoreQdrant:
		return rag.NewQdrantBackend(rag.QdrantOptions{
			Endpoint:       vs.Qdrant.Endpoint,
			APIKey:         vs.Qdrant.APIKey,
			TimeoutSeconds: vs.Qdrant.TimeoutSeconds,
		})
	case config.VectorStorePGVector:
		if a.DB == nil {
			db, err := infra.OpenDatabase(&a.Config.Database, a.Config.Server.Mode == "debug")
			if err != nil {
				return nil, err
			}
			a.DB = db
		}
		return rag.NewPGVectorBackend(a.DB)
	case config.VectorStoreMemory:
		a.logger.Warn("使用内存向量存储，进程退出后数据丢失")
		return rag.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", vs.Type)
	}
}

// initProviders 创建模型客户端，按配置叠加向量缓存与限流
func (a *App) initProviders() error {
	cfg := a.Config

	embedder, err := ai.NewEmbedder(cfg.AI.Embedding.ToClientConfig())
	if err != nil {
		return fmt.Errorf("创建向量化客户端失败: %w", err)
	}
	generator, err := ai.NewChatClient(cfg.AI.Chat.ToClientConfig())
	if err != nil {
		return fmt.Errorf("创建对话客户端失败: %w", err)
	}

	var provider rag.EmbeddingProvider = embedder
	if cc := cfg.RAG.EmbeddingCache; cc.Enabled {
		ttl, err := time.ParseDuration(cc.TTL)
		if err != nil && cc.TTL != "" {
			return fmt.Errorf("rag.embedding_cache.ttl 格式错误: %w", err)
		}
		rdb, err := infra.OpenRedis(&cfg.Redis)
		if err != nil {
			// Redis 只是二级缓存，不可用时退回本地缓存
			a.logger.Warn("Redis 不可用，向量缓存只使用本地内存", zap.Error(err))
		} else {
			a.Redis = rdb
		}

		var l2 redis.UniversalClient
		if a.Redis != nil {
			l2 = a.Redis
		}
		cache := rag.NewEmbeddingCache(l2, cc.Prefix, ttl, cc.MaxLocal, a.logger.Named("embedding_cache"))
		provider = rag.NewCachedEmbeddingProvider(provider, cache)
	}
	if rps := cfg.RAG.Indexing.EmbedRateLimit; rps > 0 {
		provider = rag.NewRateLimitedEmbeddingProvider(provider, rps, cfg.RAG.Indexing.EmbedBurst)
	}

	a.Embedder = provider
	a.Generator = generator
	return nil
}

// Ping 检查向量存储连通性
func (a *App) Ping(ctx context.Context) error {
	return a.Gateway.Ping(ctx)
}

// Close 释放全部资源
func (a *App) Close() error {
	var errs []error
	if a.Indexer != nil {
		a.Indexer.Close()
	}
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Gateway != nil {
		errs = append(errs, a.Gateway.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, infra.CloseDatabase(a.DB))
	}
	return errors.Join(errs...)
}
