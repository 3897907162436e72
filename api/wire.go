package api

import (
	ragHandlers "ragservice/api/handlers/rag"
	"ragservice/internal/app"
)

// Handlers 所有 HTTP 处理器
type Handlers struct {
	RAG *ragHandlers.Handler
}

// InitHandlers 从依赖容器组装处理器
func InitHandlers(container *app.App) *Handlers {
	// 未启用异步索引时保持接口为 nil
	var taskQueue ragHandlers.TaskQueue
	if container.Queue != nil {
		taskQueue = container.Queue
	}

	return &Handlers{
		RAG: ragHandlers.NewHandler(
			container.Indexer,
			container.Retriever,
			container.Gateway,
			taskQueue,
			container.Config.RAG.Upload.MaxFileSize,
		),
	}
}
