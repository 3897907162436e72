package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragservice/pkg/aiinterface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			payload["_path"] = r.URL.Path
			*captured = payload
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed(t *testing.T) {
	t.Run("标准响应", func(t *testing.T) {
		var captured map[string]any
		srv := newServer(t, http.StatusOK, `{"embedding":[0.5,-1,2e-1]}`, &captured)
		client, err := NewEmbeddingClient(&aiinterface.ClientConfig{Endpoint: srv.URL + "/api/embeddings", Model: "nomic-embed-text"})
		require.NoError(t, err)

		vec, err := client.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, -1, 0.2}, vec)
		assert.Equal(t, "nomic-embed-text", captured["model"])
		assert.Equal(t, "hello", captured["prompt"])
		assert.Equal(t, "/api/embeddings", captured["_path"])
	})

	t.Run("embeddings 数组格式", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, `{"embeddings":[[1,2,3]]}`, nil)
		client, err := NewEmbeddingClient(&aiinterface.ClientConfig{Endpoint: srv.URL + "/api/embed", Model: "m"})
		require.NoError(t, err)

		vec, err := client.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, vec)
	})

	t.Run("只给基础地址时补全默认路径", func(t *testing.T) {
		var captured map[string]any
		srv := newServer(t, http.StatusOK, `{"embedding":[1]}`, &captured)
		client, err := NewEmbeddingClient(&aiinterface.ClientConfig{Endpoint: srv.URL, Model: "m"})
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, "/api/embeddings", captured["_path"])
	})
}

func TestEmbedInvalidResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"缺少字段", `{"model":"m"}`},
		{"空数组", `{"embedding":[]}`},
		{"null", `{"embedding":null}`},
		{"字符串元素", `{"embedding":[0.1,"0.2"]}`},
		{"null 元素", `{"embedding":[0.1,null]}`},
		{"超出 float32 范围", `{"embedding":[0.1,1e39]}`},
		{"超出 float64 范围", `{"embedding":[0.1,-1e400]}`},
		{"不是数组", `{"embedding":"abc"}`},
		{"不是 JSON", `<html>oops</html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, http.StatusOK, tc.body, nil)
			client, err := NewEmbeddingClient(&aiinterface.ClientConfig{Endpoint: srv.URL, Model: "m"})
			require.NoError(t, err)

			_, err = client.Embed(context.Background(), "x")
			require.ErrorIs(t, err, aiinterface.ErrProviderResponseInvalid)
		})
	}
}

func TestEmbedUnavailable(t *testing.T) {
	t.Run("非 2xx", func(t *testing.T) {
		srv := newServer(t, http.StatusInternalServerError, `{"error":"model not loaded"}`, nil)
		client, err := NewEmbeddingClient(&aiinterface.ClientConfig{Endpoint: srv.URL, Model: "m"})
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "x")
		require.ErrorIs(t, err, aiinterface.ErrProviderUnavailable)

		var ce *aiinterface.ClientError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, http.StatusInternalServerError, ce.StatusCode)
		assert.True(t, ce.IsRetryable())
	})

	t.Run("连接失败", func(t *testing.T) {
		client, err := NewEmbeddingClient(&aiinterface.ClientConfig{Endpoint: "http://127.0.0.1:1", Model: "m", Timeout: 1})
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "x")
		require.ErrorIs(t, err, aiinterface.ErrProviderUnavailable)
	})

	t.Run("调用方取消", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, `{"embedding":[1]}`, nil)
		client, err := NewEmbeddingClient(&aiinterface.ClientConfig{Endpoint: srv.URL, Model: "m"})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = client.Embed(ctx, "x")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestChatCompletion(t *testing.T) {
	var captured map[string]any
	srv := newServer(t, http.StatusOK, `{"model":"llama3","response":"  Paris.\n","done":true,"prompt_eval_count":12,"eval_count":3}`, &captured)
	client, err := NewChatClient(&aiinterface.ClientConfig{Endpoint: srv.URL + "/api/generate", Model: "llama3"})
	require.NoError(t, err)

	resp, err := client.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{
		Instruction: "Use the context.",
		Messages: []aiinterface.Message{
			{Role: "system", Content: "Paris is the capital of France."},
			{Role: "user", Content: "Capital of France?"},
		},
		Temperature: 0.1,
		MaxTokens:   64,
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Content)
	assert.Equal(t, "llama3", resp.Model)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "Use the context.\n\nsystem: Paris is the capital of France.\nuser: Capital of France?", captured["prompt"])
	assert.Equal(t, false, captured["stream"])
	assert.Equal(t, "llama3", captured["model"])
	options := captured["options"].(map[string]any)
	assert.InDelta(t, 0.1, options["temperature"], 1e-9)
	assert.EqualValues(t, 64, options["num_predict"])
}

func TestChatCompletionErrors(t *testing.T) {
	msgs := []aiinterface.Message{{Role: "user", Content: "hi"}}

	t.Run("缺少 response 字段", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, `{"done":true}`, nil)
		client, err := NewChatClient(&aiinterface.ClientConfig{Endpoint: srv.URL, Model: "m"})
		require.NoError(t, err)

		_, err = client.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{Messages: msgs})
		require.ErrorIs(t, err, aiinterface.ErrProviderResponseInvalid)
	})

	t.Run("上游 503", func(t *testing.T) {
		srv := newServer(t, http.StatusServiceUnavailable, `busy`, nil)
		client, err := NewChatClient(&aiinterface.ClientConfig{Endpoint: srv.URL, Model: "m"})
		require.NoError(t, err)

		_, err = client.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{Messages: msgs})
		require.ErrorIs(t, err, aiinterface.ErrProviderUnavailable)
	})

	t.Run("空消息", func(t *testing.T) {
		client, err := NewChatClient(&aiinterface.ClientConfig{Model: "m"})
		require.NoError(t, err)

		_, err = client.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{})
		require.ErrorIs(t, err, aiinterface.ErrInvalidParams)
	})
}

func TestBuildPrompt(t *testing.T) {
	msgs := []aiinterface.Message{{Role: "user", Content: "q"}}
	assert.Equal(t, "user: q", BuildPrompt("", msgs))
	assert.Equal(t, "inst\n\nuser: q", BuildPrompt("inst", msgs))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewEmbeddingClient(&aiinterface.ClientConfig{Endpoint: "localhost:11434", Model: "m"})
	require.Error(t, err)

	_, err = NewChatClient(&aiinterface.ClientConfig{Endpoint: "http://localhost:11434"})
	require.Error(t, err)
}
