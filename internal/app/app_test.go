package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragservice/internal/config"
	"ragservice/internal/rag"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newFakeOllama 向量为 [含 "paris" 次数+1, 文本长度, 1]，生成接口固定回答
func newFakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/embeddings":
			text := strings.ToLower(body["prompt"].(string))
			vec := []float64{float64(strings.Count(text, "paris") + 1), float64(len(text)) / 100, 1}
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{"model": "llama3", "response": "Paris.", "done": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, ollamaURL string) *config.Config {
	t.Helper()
	cfg, err := config.Load("no-such-env", "")
	require.NoError(t, err)
	cfg.RAG.VectorStore.Type = config.VectorStoreMemory
	cfg.RAG.Chunking.Tokenizer = "estimate"
	cfg.AI.Embedding.Endpoint = ollamaURL + "/api/embeddings"
	cfg.AI.Chat.Endpoint = ollamaURL + "/api/generate"
	return cfg
}

func TestNewMemoryRoundTrip(t *testing.T) {
	srv := newFakeOllama(t)
	a, err := New(testConfig(t, srv.URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, "memory", a.Gateway.Backend())
	assert.Nil(t, a.Queue)

	ctx := context.Background()
	require.NoError(t, a.Gateway.CreateIndex(ctx, rag.IndexDescriptor{Name: "geo", Dimensions: 3}))

	report, err := a.Indexer.IndexDocument(ctx, rag.IndexRequest{IndexName: "geo", Text: "Paris is the capital of France. Berlin is in Germany."})
	require.NoError(t, err)
	assert.Zero(t, report.Failed)
	assert.Positive(t, report.Written)

	answer, err := a.Retriever.Answer(ctx, rag.AnswerRequest{IndexName: "geo", Question: "What is the capital of France?"})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer.Text)
	require.NotEmpty(t, answer.Sources)
	assert.NoError(t, a.Ping(ctx))
}

func TestNewWithEmbeddingCacheFallsBackToLocal(t *testing.T) {
	srv := newFakeOllama(t)
	cfg := testConfig(t, srv.URL)
	cfg.RAG.EmbeddingCache.Enabled = true
	cfg.RAG.Indexing.EmbedRateLimit = 100
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = 1

	a, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Redis)
	assert.IsType(t, &rag.RateLimitedEmbeddingProvider{}, a.Embedder)
	assert.Equal(t, "ollama", a.Embedder.GetProviderName())
}

func TestNewPGVectorWithDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:app_pgvector?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	srv := newFakeOllama(t)
	cfg := testConfig(t, srv.URL)
	cfg.RAG.VectorStore.Type = config.VectorStorePGVector

	a, err := New(cfg, nil, WithDB(db))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Equal(t, "pgvector", a.Gateway.Backend())
}

func TestNewErrors(t *testing.T) {
	srv := newFakeOllama(t)

	t.Run("未知存储类型", func(t *testing.T) {
		cfg := testConfig(t, srv.URL)
		cfg.RAG.VectorStore.Type = "faiss"
		_, err := New(cfg, nil)
		require.Error(t, err)
	})

	t.Run("未知提供者", func(t *testing.T) {
		cfg := testConfig(t, srv.URL)
		cfg.AI.Chat.Provider = "gemini"
		_, err := New(cfg, nil)
		require.Error(t, err)
	})

	t.Run("缓存 TTL 格式错误", func(t *testing.T) {
		cfg := testConfig(t, srv.URL)
		cfg.RAG.EmbeddingCache.Enabled = true
		cfg.RAG.EmbeddingCache.TTL = "a week"
		_, err := New(cfg, nil)
		require.Error(t, err)
	})

	t.Run("注入后端", func(t *testing.T) {
		cfg := testConfig(t, srv.URL)
		cfg.RAG.VectorStore.Type = "faiss"
		a, err := New(cfg, nil, WithBackend(rag.NewMemoryBackend()), WithoutQueue())
		require.NoError(t, err)
		assert.NoError(t, a.Close())
	})
}
