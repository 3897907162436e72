package rag

import (
	"context"

	"ragservice/internal/infra/queue"
	ragpkg "ragservice/internal/rag"
	"ragservice/internal/worker/tasks"
)

// DocumentIndexer 文档索引
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, req ragpkg.IndexRequest) (*ragpkg.IndexReport, error)
	IndexFile(ctx context.Context, req ragpkg.FileRequest) (*ragpkg.IndexReport, error)
}

// QueryService 检索与问答
type QueryService interface {
	Answer(ctx context.Context, req ragpkg.AnswerRequest) (*ragpkg.Answer, error)
	Search(ctx context.Context, index, question string, topK int) ([]ragpkg.SearchHit, error)
}

// IndexManager 索引管理
type IndexManager interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, desc ragpkg.IndexDescriptor) error
	DeleteIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)
}

// TaskQueue 异步索引任务队列
type TaskQueue interface {
	EnqueueIndexDocument(ctx context.Context, payload tasks.IndexDocumentPayload) (string, error)
	TaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error)
}

// DefaultMaxFileSize 上传文件默认大小上限
const DefaultMaxFileSize int64 = 20 << 20

// Handler RAG 接口处理器
type Handler struct {
	indexer     DocumentIndexer
	query       QueryService
	indexes     IndexManager
	tasks       TaskQueue // 为空时不支持异步索引
	maxFileSize int64
}

// NewHandler 创建 RAG 接口处理器
func NewHandler(indexer DocumentIndexer, query QueryService, indexes IndexManager, taskQueue TaskQueue, maxFileSize int64) *Handler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Handler{
		indexer:     indexer,
		query:       query,
		indexes:     indexes,
		tasks:       taskQueue,
		maxFileSize: maxFileSize,
	}
}
