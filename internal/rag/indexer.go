package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ragservice/internal/metrics"
	"ragservice/internal/rag/parsers"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultIndexWorkers 默认分块并发数
const DefaultIndexWorkers = 4

// IndexRequest 一次文档索引请求
type IndexRequest struct {
	IndexName string `json:"index_name"`
	Text      string `json:"text"`
	Force     bool   `json:"force"`
}

// FileRequest 上传文件索引请求
type FileRequest struct {
	IndexName   string
	FileName    string
	ContentType string
	Data        []byte
	Force       bool
}

// ChunkFailure 单个分块的失败原因
type ChunkFailure struct {
	Position    int    `json:"position"`
	Fingerprint string `json:"fingerprint"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// IndexReport 文档索引结果
// Succeeded = Written + Skipped；重复分块计入 Skipped。
type IndexReport struct {
	Index     string         `json:"index"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Written   int            `json:"written"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Oversized int            `json:"oversized"`
	Failures  []ChunkFailure `json:"failures"`
}

// AllFailed 所有分块均失败
func (r *IndexReport) AllFailed() bool {
	return r.Total > 0 && r.Failed == r.Total
}

// Retryable 失败分块是否全部为暂时性故障，可整体重跑
func (r *IndexReport) Retryable() bool {
	if r.Failed == 0 {
		return false
	}
	for _, f := range r.Failures {
		if f.Code != CodeProviderUnavailable && f.Code != CodeStoreUnavailable {
			return false
		}
	}
	return true
}

// Indexer 索引流水线：规范化 → 分块 → 指纹 → 向量化 → 写入
// 分块之间互相独立，单个分块失败不影响其余分块。
type Indexer struct {
	gateway  *Gateway
	embedder EmbeddingProvider
	chunker  *Chunker
	parsers  *parsers.ParserRegistry
	pool     *ants.Pool
	logger   *zap.Logger
	tracer   trace.Tracer
}

// IndexerOption 索引器选项
type IndexerOption func(*indexerOptions)

type indexerOptions struct {
	workers int
	logger  *zap.Logger
	parsers *parsers.ParserRegistry
}

// WithWorkers 设置分块并发数
func WithWorkers(n int) IndexerOption {
	return func(o *indexerOptions) { o.workers = n }
}

// WithParsers 设置文档解析器注册表
func WithParsers(registry *parsers.ParserRegistry) IndexerOption {
	return func(o *indexerOptions) { o.parsers = registry }
}

// WithIndexerLogger 设置日志
func WithIndexerLogger(logger *zap.Logger) IndexerOption {
	return func(o *indexerOptions) { o.logger = logger }
}

// NewIndexer 创建索引器，协程池在所有请求间共享，用于限制对向量服务的总并发
func NewIndexer(gateway *Gateway, embedder EmbeddingProvider, chunker *Chunker, opts ...IndexerOption) (*Indexer, error) {
	o := indexerOptions{workers: DefaultIndexWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = DefaultIndexWorkers
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if chunker == nil {
		chunker = NewChunker(DefaultMaxTokens, StrategyTokens, nil)
	}
	if o.parsers == nil {
		o.parsers = parsers.NewParserRegistry()
	}

	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return nil, fmt.Errorf("创建分块协程池失败: %w", err)
	}

	return &Indexer{
		gateway:  gateway,
		embedder: embedder,
		chunker:  chunker,
		parsers:  o.parsers,
		pool:     pool,
		logger:   o.logger,
		tracer:   otel.Tracer("ragservice/internal/rag/indexer"),
	}, nil
}

// Close 释放协程池
func (ix *Indexer) Close() {
	ix.pool.Release()
}

// IndexFile 提取上传文件的文本后索引
// 类型不受支持时在读取索引之前就拒绝。
func (ix *Indexer) IndexFile(ctx context.Context, req FileRequest) (*IndexReport, error) {
	if err := ValidateIndexName(req.IndexName); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidRequest)
	}
	if _, err := ix.parsers.Resolve(req.ContentType, req.FileName, req.Data); err != nil {
		return nil, err
	}

	exists, err := ix.gateway.IndexExists(ctx, req.IndexName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, req.IndexName)
	}

	text, err := ix.parsers.Parse(req.ContentType, req.FileName, req.Data)
	if err != nil {
		ix.logger.Warn("文件解析失败",
			zap.String("index", req.IndexName),
			zap.String("file", req.FileName),
			zap.String("content_type", req.ContentType),
			zap.Error(err))
		return nil, err
	}

	return ix.IndexDocument(ctx, IndexRequest{IndexName: req.IndexName, Text: flattenLayout(text), Force: req.Force})
}

// layoutBreaks 解析结果中的换行、分页与单元格分隔
var layoutBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ", "\f", " ", "\v", " ")

// flattenLayout 把版面分隔替换为空格，NormalizeText 删除控制字符时不会把相邻两行的词拼在一起
func flattenLayout(text string) string {
	return layoutBreaks.Replace(text)
}

// chunkOutcome 单个分块的处理结果
type chunkOutcome struct {
	outcome UpsertOutcome
	err     error
}

// IndexDocument 索引一个文档
// 索引不存在时直接返回 ErrIndexNotFound；分块级失败记录在报告中，不作为返回错误。
// 上下文取消时返回已完成部分的报告和取消错误，已写入的分块保持有效。
func (ix *Indexer) IndexDocument(ctx context.Context, req IndexRequest) (report *IndexReport, err error) {
	if err := ValidateIndexName(req.IndexName); err != nil {
		return nil, err
	}

	ctx, span := ix.tracer.Start(ctx, "Indexer.IndexDocument")
	defer span.End()
	span.SetAttributes(
		attribute.String("rag.index", req.IndexName),
		attribute.Bool("rag.force", req.Force),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, ErrorKind(err))
		}
	}()

	start := time.Now()

	exists, err := ix.gateway.IndexExists(ctx, req.IndexName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, req.IndexName)
	}

	normalized := NormalizeText(req.Text)
	if normalized == "" {
		return nil, fmt.Errorf("%w: text is empty after normalization", ErrInvalidRequest)
	}

	chunks := make([]Chunk, 0)
	for _, c := range ix.chunker.Split(normalized) {
		if strings.TrimSpace(c.Text) != "" {
			chunks = append(chunks, c)
		}
	}

	report = &IndexReport{
		Index:    req.IndexName,
		Total:    len(chunks),
		Failures: make([]ChunkFailure, 0),
	}
	span.SetAttributes(attribute.Int("rag.chunks", len(chunks)))

	// 同一文档内重复的分块只处理一次
	fingerprints := make([]string, len(chunks))
	firstSeen := make(map[string]int, len(chunks))
	unique := make([]int, 0, len(chunks))
	for i, c := range chunks {
		fp := Fingerprint(c.Text)
		fingerprints[i] = fp
		if c.Oversized {
			report.Oversized++
		}
		if _, dup := firstSeen[fp]; dup {
			continue
		}
		firstSeen[fp] = i
		unique = append(unique, i)
	}

	outcomes := make([]chunkOutcome, len(chunks))
	var wg sync.WaitGroup
	for _, i := range unique {
		wg.Add(1)
		submitErr := ix.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					ix.logger.Error("分块处理 panic",
						zap.String("index", req.IndexName),
						zap.Int("position", chunks[i].Position),
						zap.Any("panic", r))
					outcomes[i] = chunkOutcome{err: fmt.Errorf("分块处理异常: %v", r)}
				}
			}()
			outcomes[i] = ix.indexChunk(ctx, req, chunks[i], fingerprints[i])
		})
		if submitErr != nil {
			wg.Done()
			outcomes[i] = chunkOutcome{err: fmt.Errorf("提交分块任务失败: %w", submitErr)}
		}
	}
	wg.Wait()

	for i := range chunks {
		if first := firstSeen[fingerprints[i]]; first != i {
			// 重复分块跟随首次出现的结果
			if outcomes[first].err == nil {
				report.Skipped++
				report.Succeeded++
				continue
			}
			outcomes[i] = outcomes[first]
		}

		o := outcomes[i]
		if o.err != nil {
			report.Failed++
			report.Failures = append(report.Failures, ChunkFailure{
				Position:    chunks[i].Position,
				Fingerprint: fingerprints[i],
				Code:        ErrorKind(o.err),
				Message:     o.err.Error(),
			})
			continue
		}
		report.Succeeded++
		if o.outcome == UpsertWritten {
			report.Written++
		} else {
			report.Skipped++
		}
	}
	sort.Slice(report.Failures, func(a, b int) bool { return report.Failures[a].Position < report.Failures[b].Position })

	ix.record(report, time.Since(start))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, ctxErr
	}
	return report, nil
}

// indexChunk 单个分块：向量化后幂等写入
func (ix *Indexer) indexChunk(ctx context.Context, req IndexRequest, chunk Chunk, fp string) chunkOutcome {
	ctx, span := ix.tracer.Start(ctx, "Indexer.indexChunk")
	defer span.End()
	span.SetAttributes(
		attribute.Int("rag.position", chunk.Position),
		attribute.String("rag.fingerprint", fp),
	)

	fail := func(err error) chunkOutcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
		ix.logger.Warn("分块索引失败",
			zap.String("index", req.IndexName),
			zap.String("fingerprint", fp),
			zap.Int("position", chunk.Position),
			zap.String("code", ErrorKind(err)),
			zap.Error(err))
		return chunkOutcome{err: err}
	}

	if err := ctx.Err(); err != nil {
		return chunkOutcome{err: err}
	}

	vector, err := ix.embed(ctx, chunk.Text)
	if err != nil {
		return fail(err)
	}

	outcome, err := ix.gateway.Upsert(ctx, req.IndexName, StoredDocument{
		ID:        fp,
		Text:      chunk.Text,
		Embedding: vector,
	}, req.Force)
	if err != nil {
		return fail(err)
	}
	return chunkOutcome{outcome: outcome}
}

func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := ix.embedder.Embed(ctx, text)
	provider := ix.embedder.GetProviderName()
	metrics.ProviderCallsTotal.WithLabelValues(provider, "embed", metrics.StatusLabel(err)).Inc()
	metrics.ProviderCallDuration.WithLabelValues(provider, "embed").Observe(time.Since(start).Seconds())
	return vector, err
}

func (ix *Indexer) record(report *IndexReport, elapsed time.Duration) {
	index := report.Index
	if report.Written > 0 {
		metrics.ChunksIndexedTotal.WithLabelValues(index, "written", "").Add(float64(report.Written))
	}
	if report.Skipped > 0 {
		metrics.ChunksIndexedTotal.WithLabelValues(index, "skipped", "").Add(float64(report.Skipped))
	}
	for _, f := range report.Failures {
		metrics.ChunksIndexedTotal.WithLabelValues(index, "failed", f.Code).Inc()
	}
	if report.Oversized > 0 {
		metrics.OversizedChunksTotal.WithLabelValues(index).Add(float64(report.Oversized))
	}
	metrics.IndexDocumentDuration.WithLabelValues(index).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("index", index),
		zap.Int("total", report.Total),
		zap.Int("written", report.Written),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("oversized", report.Oversized),
		zap.Duration("elapsed", elapsed),
	}
	if report.Failed > 0 {
		ix.logger.Warn("文档索引部分失败", fields...)
		return
	}
	ix.logger.Info("文档索引完成", fields...)
}
