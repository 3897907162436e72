package config

import (
	"errors"
	"fmt"
	"strings"

	"ragservice/pkg/aiinterface"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	AI       AIConfig       `mapstructure:"ai"`
	RAG      RagConfig      `mapstructure:"rag"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	Mode         string     `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int        `mapstructure:"read_timeout"`
	WriteTimeout int        `mapstructure:"write_timeout"`
	RateLimit    float64    `mapstructure:"rate_limit"` // 每客户端每秒请求数，0 表示不限流
	RateBurst    int        `mapstructure:"rate_burst"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置，AllowOrigins 为空时允许任意来源（不携带凭证）
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
	AllowHeaders []string `mapstructure:"allow_headers"`
	AllowMethods []string `mapstructure:"allow_methods"`
}

// DatabaseConfig 数据库配置（pgvector 后端使用）
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Addr 单节点地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AIConfig 模型提供者配置，向量化与生成可以使用不同提供者
type AIConfig struct {
	Embedding ProviderConfig `mapstructure:"embedding"`
	Chat      ProviderConfig `mapstructure:"chat"`
}

// ProviderConfig 单个模型提供者
type ProviderConfig struct {
	Provider string `mapstructure:"provider"` // ollama, openai, deepseek, qwen
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	Timeout  int    `mapstructure:"timeout"` // 秒
}

// RagConfig RAG 相关配置
type RagConfig struct {
	VectorStore    VectorStoreConfig    `mapstructure:"vector_store"`
	Chunking       ChunkingConfig       `mapstructure:"chunking"`
	Retrieval      RetrievalConfig      `mapstructure:"retrieval"`
	Indexing       IndexingConfig       `mapstructure:"indexing"`
	EmbeddingCache EmbeddingCacheConfig `mapstructure:"embedding_cache"`
	Upload         UploadConfig         `mapstructure:"upload"`
}

// 向量存储类型
const (
	VectorStoreElasticsearch = "elasticsearch"
	VectorStoreQdrant        = "qdrant"
	VectorStorePGVector      = "pgvector"
	VectorStoreMemory        = "memory"
)

// VectorStoreConfig 向量存储配置
type VectorStoreConfig struct {
	Type           string              `mapstructure:"type"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"` // 单次存储操作超时
	Elasticsearch  ElasticsearchConfig `mapstructure:"elasticsearch"`
	Qdrant         QdrantConfig        `mapstructure:"qdrant"`
}

// ElasticsearchConfig Elasticsearch 连接配置
type ElasticsearchConfig struct {
	Addresses      []string `mapstructure:"addresses"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	APIKey         string   `mapstructure:"api_key"`
	Refresh        string   `mapstructure:"refresh"` // wait_for, true, false
	MaxRetries     int      `mapstructure:"max_retries"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// QdrantConfig Qdrant 外部向量数据库配置
type QdrantConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ChunkingConfig 分块配置
type ChunkingConfig struct {
	MaxTokens int    `mapstructure:"max_tokens"`
	Strategy  string `mapstructure:"strategy"`  // tokens, sentence
	Tokenizer string `mapstructure:"tokenizer"` // tiktoken 编码名或 estimate
}

// RetrievalConfig 检索与生成配置
type RetrievalConfig struct {
	NumResults        int     `mapstructure:"num_results"`
	InstructionPrompt string  `mapstructure:"instruction_prompt"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"` // 生成长度上限，0 表示由模型决定
}

// IndexingConfig 索引流水线配置
type IndexingConfig struct {
	Workers           int     `mapstructure:"workers"`
	Async             bool    `mapstructure:"async"` // 启用 asynq 异步索引
	EmbedRateLimit    float64 `mapstructure:"embed_rate_limit"`
	EmbedBurst        int     `mapstructure:"embed_burst"`
	WorkerConcurrency int     `mapstructure:"worker_concurrency"`
	MaxRetry          int     `mapstructure:"max_retry"`
}

// EmbeddingCacheConfig 向量缓存配置
type EmbeddingCacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Prefix   string `mapstructure:"prefix"`
	TTL      string `mapstructure:"ttl"` // 如 "168h"
	MaxLocal int    `mapstructure:"max_local"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"` // 字节
}

// 原部署使用的环境变量名，作为别名绑定
var legacyEnv = map[string]string{
	"rag.vector_store.elasticsearch.addresses": "ES_HOST_URL",
	"rag.vector_store.elasticsearch.username":  "ES_USERNAME",
	"rag.vector_store.elasticsearch.password":  "ES_PASSWORD",
	"ai.embedding.endpoint":                    "OLLAMA_EMBEDDING_ENDPOINT",
	"ai.embedding.model":                       "OLLAMA_EMBED_MODEL",
	"ai.chat.endpoint":                         "OLLAMA_CHAT_ENDPOINT",
	"ai.chat.model":                            "OLLAMA_CHAT_MODEL",
	"rag.chunking.max_tokens":                  "MAX_TOKENS",
	"rag.retrieval.num_results":                "NUM_RESULTS",
	"rag.retrieval.instruction_prompt":         "INSTRUCTION_PROMPT",
	"server.cors.allow_origins":                "CORS_ALLOW_ORIGINS",
	"server.cors.allow_headers":                "CORS_ALLOW_HEADERS",
	"server.cors.allow_methods":                "CORS_ALLOW_METHODS",
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
// 按名称查找时找不到配置文件不算错误，使用默认值和环境变量
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_RAG_RETRIEVAL_NUM_RESULTS

	for key, alias := range legacyEnv {
		envKey := "APP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", alias, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors.allow_headers", []string{"Content-Type", "Content-Length", "Accept", "Origin", "Cache-Control", "X-Requested-With", "X-Request-ID"})
	v.SetDefault("server.cors.allow_methods", []string{"POST", "OPTIONS", "GET", "DELETE"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ragservice")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.master_name", "")
	v.SetDefault("redis.sentinel_addrs", []string{})
	v.SetDefault("redis.sentinel_password", "")
	v.SetDefault("redis.cluster_addrs", []string{})
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("ai.embedding.provider", "ollama")
	v.SetDefault("ai.embedding.endpoint", "http://localhost:11434/api/embeddings")
	v.SetDefault("ai.embedding.model", "nomic-embed-text")
	v.SetDefault("ai.embedding.api_key", "")
	v.SetDefault("ai.embedding.timeout", 60)
	v.SetDefault("ai.chat.provider", "ollama")
	v.SetDefault("ai.chat.endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("ai.chat.model", "llama3")
	v.SetDefault("ai.chat.api_key", "")
	v.SetDefault("ai.chat.timeout", 120)

	v.SetDefault("rag.vector_store.type", VectorStoreElasticsearch)
	v.SetDefault("rag.vector_store.elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("rag.vector_store.elasticsearch.username", "")
	v.SetDefault("rag.vector_store.elasticsearch.password", "")
	v.SetDefault("rag.vector_store.elasticsearch.api_key", "")
	v.SetDefault("rag.vector_store.elasticsearch.refresh", "wait_for")
	v.SetDefault("rag.vector_store.elasticsearch.max_retries", 3)
	v.SetDefault("rag.vector_store.elasticsearch.timeout_seconds", 30)
	v.SetDefault("rag.vector_store.timeout_seconds", 30)
	v.SetDefault("rag.vector_store.qdrant.endpoint", "http://localhost:6333")
	v.SetDefault("rag.vector_store.qdrant.api_key", "")
	v.SetDefault("rag.vector_store.qdrant.timeout_seconds", 10)

	v.SetDefault("rag.chunking.max_tokens", 256)
	v.SetDefault("rag.chunking.strategy", "tokens")
	v.SetDefault("rag.chunking.tokenizer", "cl100k_base")

	v.SetDefault("rag.retrieval.num_results", 10)
	v.SetDefault("rag.retrieval.instruction_prompt", "")
	v.SetDefault("rag.retrieval.temperature", 0.1)
	v.SetDefault("rag.retrieval.max_tokens", 0)

	v.SetDefault("rag.indexing.workers", 4)
	v.SetDefault("rag.indexing.async", false)
	v.SetDefault("rag.indexing.embed_rate_limit", 0)
	v.SetDefault("rag.indexing.embed_burst", 1)
	v.SetDefault("rag.indexing.worker_concurrency", 4)
	v.SetDefault("rag.indexing.max_retry", 3)

	v.SetDefault("rag.embedding_cache.enabled", false)
	v.SetDefault("rag.embedding_cache.prefix", "rag:emb:")
	v.SetDefault("rag.embedding_cache.ttl", "168h")
	v.SetDefault("rag.embedding_cache.max_local", 1024)

	v.SetDefault("rag.upload.max_file_size", 20<<20)
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.RAG.VectorStore.Type {
	case VectorStoreElasticsearch:
		if len(c.RAG.VectorStore.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("elasticsearch 地址不能为空")
		}
	case VectorStoreQdrant:
		if strings.TrimSpace(c.RAG.VectorStore.Qdrant.Endpoint) == "" {
			return fmt.Errorf("qdrant endpoint 不能为空")
		}
	case VectorStorePGVector, VectorStoreMemory:
	default:
		return fmt.Errorf("不支持的向量存储类型: %s", c.RAG.VectorStore.Type)
	}

	for name, p := range map[string]ProviderConfig{"embedding": c.AI.Embedding, "chat": c.AI.Chat} {
		switch strings.ToLower(p.Provider) {
		case "", "ollama", "openai", "deepseek", "qwen":
		default:
			return fmt.Errorf("不支持的 %s 提供者: %s", name, p.Provider)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("%s 模型不能为空", name)
		}
	}

	if c.RAG.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("rag.chunking.max_tokens 必须为正数: %d", c.RAG.Chunking.MaxTokens)
	}
	switch c.RAG.Chunking.Strategy {
	case "tokens", "sentence":
	default:
		return fmt.Errorf("不支持的分块策略: %s", c.RAG.Chunking.Strategy)
	}
	if c.RAG.Retrieval.NumResults <= 0 {
		return fmt.Errorf("rag.retrieval.num_results 必须为正数: %d", c.RAG.Retrieval.NumResults)
	}
	if c.RAG.Retrieval.Temperature < 0 {
		return fmt.Errorf("rag.retrieval.temperature 不能为负数")
	}
	if c.RAG.Indexing.Workers <= 0 {
		return fmt.Errorf("rag.indexing.workers 必须为正数: %d", c.RAG.Indexing.Workers)
	}
	if c.RAG.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("rag.upload.max_file_size 必须为正数")
	}
	return nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// ToClientConfig 转换为提供者客户端配置
func (p ProviderConfig) ToClientConfig() aiinterface.ClientConfig {
	return aiinterface.ClientConfig{
		Provider: p.Provider,
		Endpoint: p.Endpoint,
		APIKey:   p.APIKey,
		Model:    p.Model,
		Timeout:  p.Timeout,
	}
}
