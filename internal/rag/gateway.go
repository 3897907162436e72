package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ragservice/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTopK 默认检索条数
const DefaultTopK = 10

// Gateway 向量存储网关
// 在具体后端之上统一实现索引名校验、维度校验、幂等写入与保留名过滤。
type Gateway struct {
	backend VectorBackend
	logger  *zap.Logger
	tracer  trace.Tracer
	timeout time.Duration
}

// DefaultStoreTimeout 单次存储操作的默认超时
const DefaultStoreTimeout = 30 * time.Second

// GatewayOption 网关选项
type GatewayOption func(*Gateway)

// WithGatewayLogger 设置日志
func WithGatewayLogger(logger *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithOperationTimeout 设置单次存储操作超时，<= 0 时使用默认值
func WithOperationTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGateway 创建向量存储网关
func NewGateway(backend VectorBackend, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backend: backend,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("ragservice/internal/rag/gateway"),
		timeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backend 返回底层后端名称
func (g *Gateway) Backend() string {
	return g.backend.Name()
}

// IndexExists 索引是否存在；非法索引名视为不存在
func (g *Gateway) IndexExists(ctx context.Context, name string) (exists bool, err error) {
	if ValidateIndexName(name) != nil {
		return false, nil
	}
	ctx, done := g.observe(ctx, "index_exists", name)
	defer func() { err = done(err) }()

	return g.backend.IndexExists(ctx, name)
}

// CreateIndex 创建索引，名称已被占用时返回 ErrIndexAlreadyExists
func (g *Gateway) CreateIndex(ctx context.Context, desc IndexDescriptor) (err error) {
	if err := ValidateIndexName(desc.Name); err != nil {
		return err
	}
	if desc.Dimensions <= 0 {
		return fmt.Errorf("%w: dims must be a positive integer, got %d", ErrInvalidRequest, desc.Dimensions)
	}
	if desc.Metric == "" {
		desc.Metric = MetricCosine
	}
	if desc.Metric != MetricCosine {
		return fmt.Errorf("%w: unsupported similarity metric %q", ErrInvalidRequest, desc.Metric)
	}

	ctx, done := g.observe(ctx, "create_index", desc.Name)
	defer func() { err = done(err) }()

	exists, err := g.backend.IndexExists(ctx, desc.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrIndexAlreadyExists, desc.Name)
	}
	if err := g.backend.CreateIndex(ctx, desc); err != nil {
		return err
	}

	g.logger.Info("索引已创建",
		zap.String("index", desc.Name),
		zap.Int("dims", desc.Dimensions),
		zap.String("metric", desc.Metric),
		zap.String("backend", g.backend.Name()))
	return nil
}

// DeleteIndex 删除索引及其全部文档，不存在时返回 ErrIndexNotFound
func (g *Gateway) DeleteIndex(ctx context.Context, name string) (err error) {
	if err := ValidateIndexName(name); err != nil {
		return err
	}
	ctx, done := g.observe(ctx, "delete_index", name)
	defer func() { err = done(err) }()

	exists, err := g.backend.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err := g.backend.DeleteIndex(ctx, name); err != nil {
		return err
	}

	g.logger.Info("索引已删除", zap.String("index", name), zap.String("backend", g.backend.Name()))
	return nil
}

// ListIndexes 列出用户索引，按名称排序，过滤存储内部的保留索引
func (g *Gateway) ListIndexes(ctx context.Context) (names []string, err error) {
	ctx, done := g.observe(ctx, "list_indexes", "")
	defer func() { err = done(err) }()

	all, err := g.backend.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}

	reserved := g.backend.ReservedPrefix()
	names = make([]string, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, name := range all {
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		if reserved != "" && strings.HasPrefix(name, reserved) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DescribeIndex 查询索引描述
func (g *Gateway) DescribeIndex(ctx context.Context, name string) (desc *IndexDescriptor, err error) {
	if err := ValidateIndexName(name); err != nil {
		return nil, err
	}
	ctx, done := g.observe(ctx, "describe_index", name)
	defer func() { err = done(err) }()

	return g.backend.DescribeIndex(ctx, name)
}

// Upsert 幂等写入单个文档
// force 为 false 时先探测同指纹文档是否存在，存在则跳过；为 true 时无条件覆盖。
// 探测与写入之间不加锁，并发写入同一指纹最多产生一次内容相同的重复写。
func (g *Gateway) Upsert(ctx context.Context, index string, doc StoredDocument, force bool) (outcome UpsertOutcome, err error) {
	if err := ValidateIndexName(index); err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = Fingerprint(doc.Text)
	}
	if len(doc.Embedding) == 0 {
		return "", fmt.Errorf("%w: embedding is empty", ErrInvalidRequest)
	}

	ctx, done := g.observe(ctx, "upsert", index)
	defer func() { err = done(err) }()

	desc, err := g.backend.DescribeIndex(ctx, index)
	if err != nil {
		return "", err
	}
	if err := checkDimensions(index, desc.Dimensions, doc.Embedding); err != nil {
		return "", err
	}

	if !force {
		exists, err := g.backend.DocumentExists(ctx, index, doc.ID)
		if err != nil {
			return "", err
		}
		if exists {
			g.logger.Debug("文档已存在，跳过写入", zap.String("index", index), zap.String("fingerprint", doc.ID))
			return UpsertSkipped, nil
		}
	}

	if err := g.backend.PutDocument(ctx, index, doc); err != nil {
		return "", err
	}
	return UpsertWritten, nil
}

// SimilaritySearch 相似度检索，按分数非递增返回前 topK 条
// 同分文档的先后顺序由后端决定，不保证稳定。
func (g *Gateway) SimilaritySearch(ctx context.Context, index string, query []float32, topK int) (hits []SearchHit, err error) {
	if err := ValidateIndexName(index); err != nil {
		return nil, err
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query embedding is empty", ErrInvalidRequest)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, done := g.observe(ctx, "search", index)
	defer func() { err = done(err) }()

	desc, err := g.backend.DescribeIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(index, desc.Dimensions, query); err != nil {
		return nil, err
	}

	hits, err = g.backend.Search(ctx, index, query, topK)
	if err != nil {
		return nil, err
	}
	// 后端已排序；稳定排序只纠正个别引擎返回的乱序，不改变同分顺序
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Ping 检查后端连通性
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return deadlineAsUnavailable(ctx, g.backend.Ping(ctx))
}

// Close 释放后端资源
func (g *Gateway) Close() error {
	return g.backend.Close()
}

// observe 为一次后端操作创建 span 并施加超时，结束时记录指标与错误
// 返回的函数必须调用，其结果替换原错误：超时统一映射为 ErrStoreUnavailable
func (g *Gateway) observe(ctx context.Context, op, index string) (context.Context, func(error) error) {
	backend := g.backend.Name()
	ctx, span := g.tracer.Start(ctx, "VectorStore."+op)
	span.SetAttributes(
		attribute.String("rag.backend", backend),
		attribute.String("rag.index", index),
	)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	start := time.Now()

	return ctx, func(err error) error {
		err = deadlineAsUnavailable(ctx, err)
		cancel()
		metrics.VectorStoreOperationsTotal.WithLabelValues(backend, op, metrics.StatusLabel(err)).Inc()
		metrics.VectorStoreOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, ErrorKind(err))
		}
		span.End()
		return err
	}
}

// deadlineAsUnavailable 操作超时且后端未归类时，按存储不可用处理
func deadlineAsUnavailable(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
