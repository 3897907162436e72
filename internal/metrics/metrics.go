package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragservice_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragservice_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// APIRequestSize API 请求体大小（字节）
	APIRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragservice_api_request_size_bytes",
			Help:    "API 请求体大小分布",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)

	// APIResponseSize API 响应体大小（字节）
	APIResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragservice_api_response_size_bytes",
			Help:    "API 响应体大小分布",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)

	// APIRequestsInFlight 正在处理的请求数
	APIRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragservice_api_requests_in_flight",
			Help: "正在处理的 API 请求数",
		},
	)
)

// 索引写入指标
var (
	// ChunksIndexedTotal 分块处理结果（written / skipped / failed）
	ChunksIndexedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragservice_chunks_indexed_total",
			Help: "分块处理结果总数",
		},
		[]string{"index", "outcome", "code"},
	)

	// OversizedChunksTotal 超出 Token 预算的分块数
	OversizedChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragservice_oversized_chunks_total",
			Help: "超出预算整体保留的分块总数",
		},
		[]string{"index"},
	)

	// IndexDocumentDuration 单个文档索引耗时（秒）
	IndexDocumentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragservice_index_document_duration_seconds",
			Help:    "文档索引耗时分布",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"index"},
	)
)

// 检索指标
var (
	// QueriesTotal 问答/检索请求总数
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragservice_queries_total",
			Help: "检索请求总数",
		},
		[]string{"index", "kind", "status"},
	)

	// QueryDuration 检索耗时（秒）
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragservice_query_duration_seconds",
			Help:    "检索耗时分布",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"index", "kind"},
	)

	// RetrievedResults 每次检索命中数量
	RetrievedResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragservice_retrieved_results",
			Help:    "单次检索返回的文档数量",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
		},
		[]string{"index"},
	)
)

// 外部依赖指标
var (
	// ProviderCallsTotal 模型提供者调用次数
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragservice_provider_calls_total",
			Help: "模型提供者调用总数",
		},
		[]string{"provider", "operation", "status"},
	)

	// ProviderCallDuration 模型提供者调用耗时（秒）
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragservice_provider_call_duration_seconds",
			Help:    "模型提供者调用耗时分布",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	// VectorStoreOperationsTotal 向量存储操作次数
	VectorStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragservice_vector_store_operations_total",
			Help: "向量存储操作总数",
		},
		[]string{"backend", "operation", "status"},
	)

	// VectorStoreOperationDuration 向量存储操作耗时（秒）
	VectorStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragservice_vector_store_operation_duration_seconds",
			Help:    "向量存储操作耗时分布",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"backend", "operation"},
	)

	// EmbeddingCacheTotal 向量缓存命中情况
	EmbeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragservice_embedding_cache_total",
			Help: "向量缓存查询总数",
		},
		[]string{"result"},
	)
)

// 异步任务指标
var (
	// TasksProcessedTotal 异步任务处理结果
	TasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragservice_tasks_processed_total",
			Help: "异步任务处理总数",
		},
		[]string{"type", "status"},
	)
)

// StatusLabel 将错误转为指标状态标签
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
