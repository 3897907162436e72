package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchOptions Elasticsearch 后端配置
type ElasticsearchOptions struct {
	Addresses  []string
	Username   string
	Password   string
	APIKey     string
	Refresh    string // 写入刷新策略：wait_for / true / false，空表示不传
	MaxRetries int
	Timeout    time.Duration // 等待响应头的上限，<= 0 时使用 DefaultStoreTimeout
	Transport  http.RoundTripper
}

// ElasticsearchBackend 基于 Elasticsearch dense_vector 的向量存储
type ElasticsearchBackend struct {
	es      *elasticsearch.Client
	refresh string
}

// NewElasticsearchBackend 创建 Elasticsearch 后端
func NewElasticsearchBackend(opts ElasticsearchOptions) (*ElasticsearchBackend, error) {
	addrs := make([]string, 0, len(opts.Addresses))
	for _, a := range opts.Addresses {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, strings.TrimSuffix(a, "/"))
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("elasticsearch 地址不能为空")
	}

	transport := opts.Transport
	if transport == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultStoreTimeout
		}
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = timeout
		transport = t
	}

	cfg := elasticsearch.Config{
		Addresses: addrs,
		Username:  opts.Username,
		Password:  opts.Password,
		APIKey:    opts.APIKey,
		Transport: transport,
	}
	if opts.MaxRetries > 0 {
		cfg.MaxRetries = opts.MaxRetries
	} else if opts.MaxRetries < 0 {
		cfg.DisableRetry = true
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 elasticsearch 客户端失败: %w", err)
	}

	refresh := opts.Refresh
	if refresh == "false" {
		refresh = ""
	}
	return &ElasticsearchBackend{es: client, refresh: refresh}, nil
}

func (b *ElasticsearchBackend) Name() string { return "elasticsearch" }

// ReservedPrefix 系统索引以 "." 开头
func (b *ElasticsearchBackend) ReservedPrefix() string { return "." }

func (b *ElasticsearchBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := b.es.Indices.Exists([]string{name}, b.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, storeError("查询索引", err)
	}
	defer drain(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, esError("查询索引", res, name)
	}
}

func (b *ElasticsearchBackend) DescribeIndex(ctx context.Context, name string) (*IndexDescriptor, error) {
	res, err := b.es.Indices.GetMapping(
		b.es.Indices.GetMapping.WithIndex(name),
		b.es.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return nil, storeError("读取映射", err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, esError("读取映射", res, name)
	}

	var body map[string]esIndexMapping
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: 解析映射失败: %w", ErrStoreUnavailable, err)
	}

	// 以别名访问时键为真实索引名，取唯一一项
	for _, m := range body {
		field, ok := m.Mappings.Properties[EmbeddingField]
		if !ok || field.Dims <= 0 {
			return nil, fmt.Errorf("%w: index %s has no %s dense_vector field", ErrInvalidRequest, name, EmbeddingField)
		}
		metric := field.Similarity
		if metric == "" {
			metric = MetricCosine
		}
		return &IndexDescriptor{Name: name, Dimensions: field.Dims, Metric: metric}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
}

func (b *ElasticsearchBackend) CreateIndex(ctx context.Context, desc IndexDescriptor) error {
	if desc.Name != strings.ToLower(desc.Name) {
		return fmt.Errorf("%w: elasticsearch index names must be lowercase: %s", ErrInvalidRequest, desc.Name)
	}

	body, err := json.Marshal(map[string]any{"mappings": indexMapping(desc)})
	if err != nil {
		return fmt.Errorf("序列化映射失败: %w", err)
	}

	res, err := b.es.Indices.Create(desc.Name,
		b.es.Indices.Create.WithBody(bytes.NewReader(body)),
		b.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return storeError("创建索引", err)
	}
	defer drain(res)
	if res.IsError() {
		return esError("创建索引", res, desc.Name)
	}
	return nil
}

func (b *ElasticsearchBackend) DeleteIndex(ctx context.Context, name string) error {
	res, err := b.es.Indices.Delete([]string{name}, b.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return storeError("删除索引", err)
	}
	defer drain(res)
	if res.IsError() {
		return esError("删除索引", res, name)
	}
	return nil
}

func (b *ElasticsearchBackend) ListIndexes(ctx context.Context) ([]string, error) {
	res, err := b.es.Indices.GetAlias(b.es.Indices.GetAlias.WithContext(ctx))
	if err != nil {
		return nil, storeError("列出索引", err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, esError("列出索引", res, "")
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: 解析索引列表失败: %w", ErrStoreUnavailable, err)
	}
	names := make([]string, 0, len(body))
	for name := range body {
		names = append(names, name)
	}
	return names, nil
}

func (b *ElasticsearchBackend) DocumentExists(ctx context.Context, index, id string) (bool, error) {
	res, err := b.es.Exists(index, id, b.es.Exists.WithContext(ctx))
	if err != nil {
		return false, storeError("查询文档", err)
	}
	defer drain(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, esError("查询文档", res, index)
	}
}

func (b *ElasticsearchBackend) PutDocument(ctx context.Context, index string, doc StoredDocument) error {
	body, err := json.Marshal(esDocument{Text: doc.Text, Embedding: doc.Embedding})
	if err != nil {
		return fmt.Errorf("序列化文档失败: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		b.es.Index.WithDocumentID(doc.ID),
		b.es.Index.WithContext(ctx),
	}
	if b.refresh != "" {
		opts = append(opts, b.es.Index.WithRefresh(b.refresh))
	}

	res, err := b.es.Index(index, bytes.NewReader(body), opts...)
	if err != nil {
		return storeError("写入文档", err)
	}
	defer drain(res)
	if res.IsError() {
		return esError("写入文档", res, index)
	}
	return nil
}

// Search script_score 计算 cosineSimilarity + 1.0，分数非负
func (b *ElasticsearchBackend) Search(ctx context.Context, index string, query []float32, topK int) ([]SearchHit, error) {
	req := map[string]any{
		"size":    topK,
		"_source": []string{"text"},
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{"match_all": map[string]any{}},
				"script": map[string]any{
					"source": "cosineSimilarity(params.query_vector, '" + EmbeddingField + "') + 1.0",
					"params": map[string]any{"query_vector": query},
				},
			},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化查询失败: %w", err)
	}

	res, err := b.es.Search(
		b.es.Search.WithContext(ctx),
		b.es.Search.WithIndex(index),
		b.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, storeError("向量搜索", err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, esError("向量搜索", res, index)
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: 解析搜索结果失败: %w", ErrStoreUnavailable, err)
	}

	hits := make([]SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, SearchHit{ID: h.ID, Text: h.Source.Text, Score: h.Score})
	}
	return hits, nil
}

func (b *ElasticsearchBackend) Ping(ctx context.Context) error {
	res, err := b.es.Ping(b.es.Ping.WithContext(ctx))
	if err != nil {
		return storeError("ping", err)
	}
	defer drain(res)
	if res.IsError() {
		return esError("ping", res, "")
	}
	return nil
}

func (b *ElasticsearchBackend) Close() error { return nil }

// --- 内部辅助 ---

type esDocument struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

type esIndexMapping struct {
	Mappings struct {
		Properties map[string]struct {
			Type       string `json:"type"`
			Dims       int    `json:"dims"`
			Similarity string `json:"similarity"`
		} `json:"properties"`
	} `json:"mappings"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Text string `json:"text"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esErrorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// esError 按错误类型映射为领域错误
func esError(op string, res *esapi.Response, index string) error {
	var body esErrorBody
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	reason := body.Error.Reason
	if reason == "" {
		reason = strings.TrimSpace(string(raw))
	}

	switch {
	case body.Error.Type == "index_not_found_exception" ||
		(res.StatusCode == http.StatusNotFound && body.Error.Type == ""):
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	case body.Error.Type == "resource_already_exists_exception":
		return fmt.Errorf("%w: %s", ErrIndexAlreadyExists, index)
	case body.Error.Type == "invalid_index_name_exception":
		return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s失败 (%d): %s", ErrStoreUnavailable, op, res.StatusCode, reason)
	default:
		return fmt.Errorf("elasticsearch %s失败 (%d %s): %s", op, res.StatusCode, body.Error.Type, reason)
	}
}

func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
