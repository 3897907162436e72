package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ragservice/internal/worker/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ErrTaskNotFound 任务不存在或已过保留期
var ErrTaskNotFound = errors.New("task not found")

// Client 任务队列客户端接口
type Client interface {
	EnqueueIndexDocument(ctx context.Context, payload tasks.IndexDocumentPayload) (string, error)
	TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	Close() error
}

// Options 入队选项
type Options struct {
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration // 完成后保留时间，便于查询结果
}

// TaskStatus 任务状态
type TaskStatus struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	State         string          `json:"state"`
	Retried       int             `json:"retried"`
	MaxRetry      int             `json:"max_retry"`
	LastError     string          `json:"last_error,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	NextProcessAt *time.Time      `json:"next_process_at,omitempty"`
}

type asynqClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	opts      Options
}

// NewClient 创建任务队列客户端
func NewClient(redisOpt asynq.RedisConnOpt, opts Options) Client {
	if opts.MaxRetry < 0 {
		opts.MaxRetry = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &asynqClient{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		opts:      opts,
	}
}

// EnqueueIndexDocument 入队文档索引任务，返回任务 ID
func (c *asynqClient) EnqueueIndexDocument(ctx context.Context, payload tasks.IndexDocumentPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("序列化任务载荷失败: %w", err)
	}

	task := asynq.NewTask(tasks.TypeIndexDocument, data)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.TaskID(uuid.NewString()),
		asynq.MaxRetry(c.opts.MaxRetry),
		asynq.Timeout(c.opts.Timeout),
		asynq.Retention(c.opts.Retention),
		asynq.Queue(tasks.QueueRAG),
	)
	if err != nil {
		return "", fmt.Errorf("任务入队失败: %w", err)
	}
	return info.ID, nil
}

// TaskStatus 查询 RAG 队列中的任务状态
func (c *asynqClient) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	info, err := c.inspector.GetTaskInfo(tasks.QueueRAG, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	return toTaskStatus(info), nil
}

func toTaskStatus(info *asynq.TaskInfo) *TaskStatus {
	st := &TaskStatus{
		ID:        info.ID,
		Type:      info.Type,
		State:     info.State.String(),
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
		LastError: info.LastErr,
	}
	if len(info.Result) > 0 && json.Valid(info.Result) {
		st.Result = json.RawMessage(info.Result)
	}
	if !info.CompletedAt.IsZero() {
		t := info.CompletedAt
		st.CompletedAt = &t
	}
	if !info.NextProcessAt.IsZero() {
		t := info.NextProcessAt
		st.NextProcessAt = &t
	}
	return st
}

func (c *asynqClient) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
