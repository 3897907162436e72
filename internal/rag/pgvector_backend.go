package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pgIndexRecord 索引登记表
type pgIndexRecord struct {
	Name       string            `gorm:"primaryKey;size:255"`
	Dimensions int               `gorm:"not null"`
	Metric     string            `gorm:"size:32;not null"`
	Mapping    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time
}

func (pgIndexRecord) TableName() string { return "rag_indexes" }

// pgDocumentRecord 文档表，(index_name, id) 为主键
type pgDocumentRecord struct {
	IndexName string          `gorm:"primaryKey;size:255"`
	ID        string          `gorm:"primaryKey;size:64"`
	Text      string          `gorm:"type:text;not null"`
	Embedding pgvector.Vector `gorm:"type:vector"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (pgDocumentRecord) TableName() string { return "rag_documents" }

// PGVectorBackend 基于 PostgreSQL pgvector 扩展的向量存储
// 所有索引共用一张文档表，按 index_name 隔离；维度登记在 rag_indexes 中。
type PGVectorBackend struct {
	db *gorm.DB
}

// NewPGVectorBackend 创建 pgvector 后端并迁移表结构
func NewPGVectorBackend(db *gorm.DB) (*PGVectorBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("pgvector 后端需要数据库连接")
	}
	b := &PGVectorBackend{db: db}
	if err := b.migrate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *PGVectorBackend) migrate() error {
	if b.db.Dialector.Name() == "postgres" {
		if err := b.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("确保pgvector扩展失败: %w", err)
		}
	}
	if err := b.db.AutoMigrate(&pgIndexRecord{}, &pgDocumentRecord{}); err != nil {
		return fmt.Errorf("迁移向量表失败: %w", err)
	}
	return nil
}

func (b *PGVectorBackend) Name() string           { return "pgvector" }
func (b *PGVectorBackend) ReservedPrefix() string { return "" }

func (b *PGVectorBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := b.db.WithContext(ctx).Model(&pgIndexRecord{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, storeError("查询索引", err)
	}
	return count > 0, nil
}

func (b *PGVectorBackend) DescribeIndex(ctx context.Context, name string) (*IndexDescriptor, error) {
	var rec pgIndexRecord
	err := b.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err != nil {
		return nil, storeError("查询索引", err)
	}
	return &IndexDescriptor{Name: rec.Name, Dimensions: rec.Dimensions, Metric: rec.Metric}, nil
}

func (b *PGVectorBackend) CreateIndex(ctx context.Context, desc IndexDescriptor) error {
	rec := pgIndexRecord{
		Name:       desc.Name,
		Dimensions: desc.Dimensions,
		Metric:     desc.Metric,
		Mapping:    indexMapping(desc),
	}
	err := b.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrIndexAlreadyExists, desc.Name)
	}
	if err != nil {
		return storeError("创建索引", err)
	}
	return nil
}

func (b *PGVectorBackend) DeleteIndex(ctx context.Context, name string) error {
	var affected int64
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("index_name = ?", name).Delete(&pgDocumentRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("name = ?", name).Delete(&pgIndexRecord{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return storeError("删除索引", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return nil
}

func (b *PGVectorBackend) ListIndexes(ctx context.Context) ([]string, error) {
	var names []string
	if err := b.db.WithContext(ctx).Model(&pgIndexRecord{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, storeError("列出索引", err)
	}
	return names, nil
}

func (b *PGVectorBackend) DocumentExists(ctx context.Context, index, id string) (bool, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(&pgDocumentRecord{}).
		Where("index_name = ? AND id = ?", index, id).
		Count(&count).Error
	if err != nil {
		return false, storeError("查询文档", err)
	}
	return count > 0, nil
}

func (b *PGVectorBackend) PutDocument(ctx context.Context, index string, doc StoredDocument) error {
	rec := pgDocumentRecord{
		IndexName: index,
		ID:        doc.ID,
		Text:      doc.Text,
		Embedding: pgvector.NewVector(doc.Embedding),
	}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "index_name"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "embedding", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return storeError("写入文档", err)
	}
	return nil
}

// Search 余弦距离 <=> 取值 [0, 2]，2 - distance 即 cosine + 1.0
func (b *PGVectorBackend) Search(ctx context.Context, index string, query []float32, topK int) ([]SearchHit, error) {
	vec := pgvector.NewVector(query)
	sql := `
		SELECT id, text, 2 - (embedding <=> ?::vector) AS score
		FROM rag_documents
		WHERE index_name = ?
		ORDER BY embedding <=> ?::vector
		LIMIT ?
	`

	var rows []struct {
		ID    string  `gorm:"column:id"`
		Text  string  `gorm:"column:text"`
		Score float64 `gorm:"column:score"`
	}
	if err := b.db.WithContext(ctx).Raw(sql, vec, index, vec, topK).Scan(&rows).Error; err != nil {
		return nil, storeError("向量搜索", err)
	}

	hits := make([]SearchHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, SearchHit{ID: r.ID, Text: r.Text, Score: r.Score})
	}
	return hits, nil
}

func (b *PGVectorBackend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return storeError("获取连接池", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// Close 连接由 infra 层统一关闭
func (b *PGVectorBackend) Close() error { return nil }

// indexMapping 与 Elasticsearch 映射同构的字段描述
func indexMapping(desc IndexDescriptor) map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"text": map[string]any{"type": "text"},
			EmbeddingField: map[string]any{
				"type":       "dense_vector",
				"dims":       desc.Dimensions,
				"index":      true,
				"similarity": desc.Metric,
			},
		},
	}
}

// storeError 存储层故障统一归类为 ErrStoreUnavailable，保留原始错误链
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s失败: %w", ErrStoreUnavailable, op, err)
}
