package rag

import (
	"context"
	"fmt"
	"strings"
)

// 相似度度量
const MetricCosine = "cosine"

// EmbeddingField 存储文档中向量字段名
const EmbeddingField = "embedding"

// IndexDescriptor 索引描述，维度与度量在创建后不可变
type IndexDescriptor struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dims"`
	Metric     string `json:"metric"`
}

// StoredDocument 向量存储中的持久化单元，ID 即文本指纹
type StoredDocument struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// SearchHit 一次相似度检索命中
// Score 为平移到非负区间的余弦相似度（cosine + 1.0），取值 [0, 2]
type SearchHit struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// UpsertOutcome 写入结果
type UpsertOutcome string

const (
	UpsertWritten UpsertOutcome = "written" // 已写入（新文档或强制覆盖）
	UpsertSkipped UpsertOutcome = "skipped" // 已存在同指纹文档，未写入
)

// VectorBackend 向量存储引擎的最小操作集合，由 Elasticsearch、Qdrant、pgvector、内存实现
// 幂等策略、维度校验、保留名过滤等规则统一由 Gateway 负责。
type VectorBackend interface {
	// Name 后端名称，用于日志与指标
	Name() string
	// ReservedPrefix 引擎内部索引名前缀，列表时过滤；无则返回空串
	ReservedPrefix() string

	IndexExists(ctx context.Context, name string) (bool, error)
	// DescribeIndex 索引不存在时返回 ErrIndexNotFound
	DescribeIndex(ctx context.Context, name string) (*IndexDescriptor, error)
	// CreateIndex 名称已被占用时返回 ErrIndexAlreadyExists
	CreateIndex(ctx context.Context, desc IndexDescriptor) error
	// DeleteIndex 索引不存在时返回 ErrIndexNotFound
	DeleteIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)

	DocumentExists(ctx context.Context, index, id string) (bool, error)
	// PutDocument 无条件写入（覆盖同 ID 文档）
	PutDocument(ctx context.Context, index string, doc StoredDocument) error
	// Search 按 cosine + 1.0 降序返回前 topK 条
	Search(ctx context.Context, index string, query []float32, topK int) ([]SearchHit, error)

	Ping(ctx context.Context) error
	Close() error
}

// ValidateIndexName 校验索引名
func ValidateIndexName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: index_name is required", ErrInvalidRequest)
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("%w: index_name must not have surrounding whitespace", ErrInvalidRequest)
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: index_name %q uses a reserved prefix", ErrInvalidRequest, name)
	}
	if strings.ContainsAny(name, `/\*?"<>| ,#`) {
		return fmt.Errorf("%w: index_name %q contains illegal characters", ErrInvalidRequest, name)
	}
	return nil
}
