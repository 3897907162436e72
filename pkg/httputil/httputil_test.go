package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		client := NewClient()
		assert.Equal(t, 30*time.Second, client.Timeout())
		assert.Equal(t, "ragservice/1.0", client.headers["User-Agent"])
		assert.Equal(t, 0, client.retries)
	})

	t.Run("自定义配置", func(t *testing.T) {
		client := NewClient(
			WithTimeout(10*time.Second),
			WithHeaders(map[string]string{"X-Custom": "value"}),
			WithRetries(3),
		)
		assert.Equal(t, 10*time.Second, client.Timeout())
		assert.Equal(t, "value", client.headers["X-Custom"])
		assert.Equal(t, 3, client.retries)
	})
}

func TestClientPostJSON(t *testing.T) {
	t.Run("成功返回原始响应体", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hello", body["prompt"])

			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		client := NewClient(WithHTTPClient(server.Client()))
		body, err := client.PostJSON(context.Background(), server.URL, map[string]string{"prompt": "hello"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	})

	t.Run("非2xx返回StatusError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`model not found`))
		}))
		defer server.Close()

		client := NewClient(WithHTTPClient(server.Client()))
		_, err := client.PostJSON(context.Background(), server.URL, map[string]string{})

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Contains(t, statusErr.Body, "model not found")
	})

	t.Run("5xx按配置重试", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := NewClient(WithHTTPClient(server.Client()), WithRetries(1))
		_, err := client.PostJSON(context.Background(), server.URL, map[string]string{"a": "b"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestClientGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	var result map[string]string
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &result))
	assert.Equal(t, "ok", result["status"])
}
