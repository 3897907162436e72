package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragservice/internal/metrics"
	"ragservice/pkg/aiinterface"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTemperature 生成温度，偏向确定性
const DefaultTemperature = 0.1

// RetrieverConfig 检索配置
type RetrieverConfig struct {
	NumResults  int
	Instruction string
	Temperature float64
	MaxTokens   int
}

// AnswerRequest 问答请求
type AnswerRequest struct {
	IndexName     string
	Question      string
	PriorMessages []aiinterface.Message
}

// Answer 问答结果
type Answer struct {
	Text    string      `json:"response"`
	Model   string      `json:"model,omitempty"`
	Sources []SearchHit `json:"sources,omitempty"`
}

// Retriever 检索流水线：问题向量化 → 相似度检索 → 组装上下文 → 生成
type Retriever struct {
	gateway   *Gateway
	embedder  EmbeddingProvider
	generator Generator
	cfg       RetrieverConfig
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewRetriever 创建检索器
func NewRetriever(gateway *Gateway, embedder EmbeddingProvider, generator Generator, cfg RetrieverConfig, logger *zap.Logger) *Retriever {
	if cfg.NumResults <= 0 {
		cfg.NumResults = DefaultTopK
	}
	// 0 表示完全确定性，是合法配置
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		gateway:   gateway,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("ragservice/internal/rag/retriever"),
	}
}

// Answer 基于检索结果生成回答
// 索引不存在时在调用任何模型服务之前返回 ErrIndexNotFound。
// 向量化、检索或生成任一步失败都会中止请求，不返回缺少上下文的回答。
func (r *Retriever) Answer(ctx context.Context, req AnswerRequest) (answer *Answer, err error) {
	if err := validateAnswerRequest(req); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "Retriever.Answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("rag.index", req.IndexName),
		attribute.Int("rag.prior_messages", len(req.PriorMessages)),
	)

	start := time.Now()
	defer func() {
		r.observe(span, req.IndexName, "answer", start, err)
	}()

	hits, err := r.retrieve(ctx, req.IndexName, req.Question, r.cfg.NumResults)
	if err != nil {
		return nil, err
	}

	messages := BuildMessages(req.PriorMessages, hits, req.Question)

	genStart := time.Now()
	resp, err := r.generator.ChatCompletion(ctx, &aiinterface.ChatCompletionRequest{
		Instruction: r.cfg.Instruction,
		Messages:    messages,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
	provider := r.generator.GetProviderName()
	metrics.ProviderCallsTotal.WithLabelValues(provider, "chat", metrics.StatusLabel(err)).Inc()
	metrics.ProviderCallDuration.WithLabelValues(provider, "chat").Observe(time.Since(genStart).Seconds())
	if err != nil {
		r.logger.Error("生成回答失败",
			zap.String("index", req.IndexName),
			zap.String("provider", provider),
			zap.String("code", ErrorKind(err)),
			zap.Error(err))
		return nil, err
	}

	return &Answer{Text: resp.Content, Model: resp.Model, Sources: hits}, nil
}

// Search 只执行检索，不调用生成模型
func (r *Retriever) Search(ctx context.Context, index, question string, topK int) (hits []SearchHit, err error) {
	if err := ValidateIndexName(index); err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	if topK <= 0 {
		topK = r.cfg.NumResults
	}

	ctx, span := r.tracer.Start(ctx, "Retriever.Search")
	defer span.End()
	span.SetAttributes(attribute.String("rag.index", index), attribute.Int("rag.top_k", topK))

	start := time.Now()
	defer func() {
		r.observe(span, index, "search", start, err)
	}()

	return r.retrieve(ctx, index, question, topK)
}

// retrieve 先确认索引存在，再向量化问题并检索
func (r *Retriever) retrieve(ctx context.Context, index, question string, topK int) ([]SearchHit, error) {
	exists, err := r.gateway.IndexExists(ctx, index)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}

	embedStart := time.Now()
	vector, err := r.embedder.Embed(ctx, question)
	provider := r.embedder.GetProviderName()
	metrics.ProviderCallsTotal.WithLabelValues(provider, "embed", metrics.StatusLabel(err)).Inc()
	metrics.ProviderCallDuration.WithLabelValues(provider, "embed").Observe(time.Since(embedStart).Seconds())
	if err != nil {
		r.logger.Error("问题向量化失败",
			zap.String("index", index),
			zap.String("provider", provider),
			zap.String("code", ErrorKind(err)),
			zap.Error(err))
		return nil, err
	}

	hits, err := r.gateway.SimilaritySearch(ctx, index, vector, topK)
	if err != nil {
		return nil, err
	}
	metrics.RetrievedResults.WithLabelValues(index).Observe(float64(len(hits)))
	return hits, nil
}

func (r *Retriever) observe(span trace.Span, index, kind string, start time.Time, err error) {
	metrics.QueriesTotal.WithLabelValues(index, kind, metrics.StatusLabel(err)).Inc()
	metrics.QueryDuration.WithLabelValues(index, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
}

// BuildMessages 组装生成模型的消息序列：历史消息 + 检索上下文（按相关度降序，system 角色）+ 用户问题
func BuildMessages(prior []aiinterface.Message, hits []SearchHit, question string) []aiinterface.Message {
	messages := make([]aiinterface.Message, 0, len(prior)+len(hits)+1)
	messages = append(messages, prior...)
	for _, h := range hits {
		messages = append(messages, aiinterface.Message{Role: aiinterface.RoleSystem, Content: h.Text})
	}
	messages = append(messages, aiinterface.Message{Role: aiinterface.RoleUser, Content: question})
	return messages
}

func validateAnswerRequest(req AnswerRequest) error {
	if err := ValidateIndexName(req.IndexName); err != nil {
		return err
	}
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	for i, m := range req.PriorMessages {
		if !aiinterface.ValidRole(m.Role) {
			return fmt.Errorf("%w: pre_msgs[%d] has unsupported role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}
