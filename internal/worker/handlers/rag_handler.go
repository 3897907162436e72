package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"ragservice/internal/logger"
	"ragservice/internal/metrics"
	"ragservice/internal/rag"
	"ragservice/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// DocumentIndexer 文档索引能力
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, req rag.IndexRequest) (*rag.IndexReport, error)
}

// RAGHandler 异步索引任务处理器
type RAGHandler struct {
	indexer DocumentIndexer
	logger  *zap.Logger
}

func NewRAGHandler(indexer DocumentIndexer, logger *zap.Logger) *RAGHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGHandler{
		indexer: indexer,
		logger:  logger,
	}
}

// HandleIndexDocument 执行索引任务，报告写入任务结果
// 只有暂时性故障（模型服务或向量存储不可用）才交给 asynq 重试；重跑时已写入的分块按指纹跳过。
func (h *RAGHandler) HandleIndexDocument(ctx context.Context, t *asynq.Task) error {
	var p tasks.IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		metrics.TasksProcessedTotal.WithLabelValues(t.Type(), "invalid").Inc()
		return fmt.Errorf("解析任务载荷失败: %v: %w", err, asynq.SkipRetry)
	}
	if p.RequestID != "" {
		ctx = logger.WithRequestID(ctx, p.RequestID)
	}
	log := h.logger.With(zap.String("index", p.IndexName), zap.String("request_id", p.RequestID))

	log.Info("开始处理索引任务")

	report, err := h.indexer.IndexDocument(ctx, rag.IndexRequest{IndexName: p.IndexName, Text: p.Text, Force: p.Force})
	if report != nil && t.ResultWriter() != nil {
		if data, mErr := json.Marshal(report); mErr == nil {
			if _, wErr := t.ResultWriter().Write(data); wErr != nil {
				log.Warn("写入任务结果失败", zap.Error(wErr))
			}
		}
	}

	if err != nil {
		if rag.IsRetryable(err) {
			metrics.TasksProcessedTotal.WithLabelValues(t.Type(), "retry").Inc()
			log.Warn("索引任务暂时失败，等待重试", zap.String("code", rag.ErrorKind(err)), zap.Error(err))
			return err
		}
		metrics.TasksProcessedTotal.WithLabelValues(t.Type(), "failed").Inc()
		log.Error("索引任务失败", zap.String("code", rag.ErrorKind(err)), zap.Error(err))
		return fmt.Errorf("%s: %v: %w", rag.ErrorKind(err), err, asynq.SkipRetry)
	}

	if report.Retryable() {
		metrics.TasksProcessedTotal.WithLabelValues(t.Type(), "retry").Inc()
		log.Warn("部分分块暂时失败，等待重试",
			zap.Int("failed", report.Failed),
			zap.Int("total", report.Total))
		return fmt.Errorf("%d/%d 个分块失败: %s", report.Failed, report.Total, report.Failures[0].Code)
	}

	status := "success"
	if report.Failed > 0 {
		status = "partial"
	}
	metrics.TasksProcessedTotal.WithLabelValues(t.Type(), status).Inc()
	log.Info("索引任务完成",
		zap.Int("total", report.Total),
		zap.Int("written", report.Written),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return nil
}
