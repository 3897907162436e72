package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// qdrantNamespace 指纹到点 ID 的 UUIDv5 命名空间
var qdrantNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8a-9a61-5f2d0c9e7b44")

// QdrantOptions 初始化 Qdrant 向量存储的配置
type QdrantOptions struct {
	Endpoint       string
	APIKey         string
	TimeoutSeconds int
	HTTPClient     *http.Client
}

// QdrantBackend 基于 Qdrant HTTP API 的向量存储，每个索引对应一个集合
type QdrantBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewQdrantBackend 创建 Qdrant 后端
func NewQdrantBackend(opts QdrantOptions) (*QdrantBackend, error) {
	baseURL := strings.TrimSpace(opts.Endpoint)
	if baseURL == "" {
		return nil, fmt.Errorf("qdrant endpoint 不能为空")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := opts.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	}

	return &QdrantBackend{
		client:  client,
		baseURL: baseURL,
		apiKey:  opts.APIKey,
	}, nil
}

func (s *QdrantBackend) Name() string           { return "qdrant" }
func (s *QdrantBackend) ReservedPrefix() string { return "" }

func (s *QdrantBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := s.DescribeIndex(ctx, name)
	if errors.Is(err, ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *QdrantBackend) DescribeIndex(ctx context.Context, name string) (*IndexDescriptor, error) {
	var resp collectionInfoResponse
	if err := s.doRequest(ctx, http.MethodGet, collectionPath(name, ""), nil, &resp); err != nil {
		return nil, s.mapError("查询集合", name, err)
	}

	params := resp.Result.Config.Params.Vectors
	return &IndexDescriptor{
		Name:       name,
		Dimensions: params.Size,
		Metric:     strings.ToLower(params.Distance),
	}, nil
}

func (s *QdrantBackend) CreateIndex(ctx context.Context, desc IndexDescriptor) error {
	req := createCollectionRequest{
		Vectors: qdrantVectorParams{
			Size:     desc.Dimensions,
			Distance: "Cosine",
		},
	}
	var resp qdrantOperationResponse
	if err := s.doRequest(ctx, http.MethodPut, collectionPath(desc.Name, ""), req, &resp); err != nil {
		return s.mapError("创建集合", desc.Name, err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("创建 Qdrant 集合失败: %s", resp.Error)
	}
	return nil
}

func (s *QdrantBackend) DeleteIndex(ctx context.Context, name string) error {
	var resp qdrantBoolResponse
	if err := s.doRequest(ctx, http.MethodDelete, collectionPath(name, ""), nil, &resp); err != nil {
		return s.mapError("删除集合", name, err)
	}
	if !resp.Result {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return nil
}

func (s *QdrantBackend) ListIndexes(ctx context.Context) ([]string, error) {
	var resp listCollectionsResponse
	if err := s.doRequest(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, s.mapError("列出集合", "", err)
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *QdrantBackend) DocumentExists(ctx context.Context, index, id string) (bool, error) {
	var resp qdrantOperationResponse
	err := s.doRequest(ctx, http.MethodGet, collectionPath(index, "/points/"+pointID(id)), nil, &resp)
	if err == nil {
		return true, nil
	}
	var se *qdrantStatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, s.mapError("查询点", index, err)
}

func (s *QdrantBackend) PutDocument(ctx context.Context, index string, doc StoredDocument) error {
	req := upsertPointsRequest{Points: []qdrantPoint{{
		ID:     pointID(doc.ID),
		Vector: doc.Embedding,
		Payload: map[string]any{
			"fingerprint": doc.ID,
			"text":        doc.Text,
		},
	}}}

	var resp qdrantOperationResponse
	if err := s.doRequest(ctx, http.MethodPut, collectionPath(index, "/points?wait=true"), req, &resp); err != nil {
		return s.mapError("写入点", index, err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("qdrant upsert 失败: %s", resp.Error)
	}
	return nil
}

// Search Qdrant 余弦得分为 [-1, 1]，统一平移 +1.0
func (s *QdrantBackend) Search(ctx context.Context, index string, query []float32, topK int) ([]SearchHit, error) {
	req := searchRequest{
		Vector:      query,
		Limit:       topK,
		WithPayload: true,
	}

	var resp searchResponse
	if err := s.doRequest(ctx, http.MethodPost, collectionPath(index, "/points/search"), req, &resp); err != nil {
		return nil, s.mapError("向量搜索", index, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("qdrant search 失败: %s", resp.Error)
	}

	hits := make([]SearchHit, 0, len(resp.Result))
	for _, item := range resp.Result {
		id := stringFromPayload(item.Payload, "fingerprint")
		if id == "" {
			id = fmt.Sprint(item.ID)
		}
		hits = append(hits, SearchHit{
			ID:    id,
			Text:  stringFromPayload(item.Payload, "text"),
			Score: item.Score + 1.0,
		})
	}
	return hits, nil
}

func (s *QdrantBackend) Ping(ctx context.Context) error {
	if err := s.doRequest(ctx, http.MethodGet, "/readyz", nil, nil); err != nil {
		return s.mapError("ping", "", err)
	}
	return nil
}

func (s *QdrantBackend) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// --- 内部辅助 ---

// pointID Qdrant 点 ID 只接受 UUID 或无符号整数
func pointID(fingerprint string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(fingerprint)).String()
}

func collectionPath(collection, path string) string {
	return fmt.Sprintf("/collections/%s%s", url.PathEscape(collection), path)
}

type qdrantStatusError struct {
	StatusCode int
	Message    string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant API 错误: %s (%d)", e.Message, e.StatusCode)
}

func (s *QdrantBackend) mapError(op, index string, err error) error {
	var se *qdrantStatusError
	if !errors.As(err, &se) {
		return storeError(op, err)
	}
	switch {
	case se.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	case se.StatusCode == http.StatusConflict ||
		(se.StatusCode == http.StatusBadRequest && strings.Contains(se.Message, "already exists")):
		return fmt.Errorf("%w: %s", ErrIndexAlreadyExists, index)
	case se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s失败: %w", ErrStoreUnavailable, op, err)
	default:
		return fmt.Errorf("%s失败: %w", op, err)
	}
}

func (s *QdrantBackend) doRequest(ctx context.Context, method, path string, payload any, dest any) error {
	var bodyReader io.Reader = http.NoBody
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		bodyReader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Status any `json:"status"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &errBody)
		msg := fmt.Sprint(errBody.Status)
		if errBody.Status == nil {
			msg = strings.TrimSpace(string(raw))
		}
		return &qdrantStatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("解析 qdrant 响应失败: %w", err)
	}
	return nil
}

func stringFromPayload(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// --- Qdrant API payloads ---

type qdrantVectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors qdrantVectorParams `json:"vectors"`
}

type collectionInfoResponse struct {
	Status string `json:"status"`
	Result struct {
		Config struct {
			Params struct {
				Vectors qdrantVectorParams `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type listCollectionsResponse struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertPointsRequest struct {
	Points []qdrantPoint `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Status string              `json:"status"`
	Result []searchResultEntry `json:"result"`
	Error  string              `json:"error"`
}

type searchResultEntry struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type qdrantOperationResponse struct {
	Status any    `json:"status"`
	Error  string `json:"error"`
}

type qdrantBoolResponse struct {
	Result bool `json:"result"`
}
