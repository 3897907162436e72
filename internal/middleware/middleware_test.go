package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ragservice/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seenCtxID, seenGinID, seenTrace string
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		seenCtxID = GetRequestID(c.Request.Context())
		seenGinID = GetRequestIDFromGin(c)
		seenTrace = logger.GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("生成新的请求 ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := w.Header().Get(HeaderRequestID)
		require.NotEmpty(t, id)
		assert.Equal(t, id, seenCtxID)
		assert.Equal(t, id, seenGinID)
		assert.Equal(t, id, seenTrace, "trace id falls back to request id")
	})

	t.Run("沿用上游请求 ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderRequestID, "upstream-1")
		req.Header.Set(HeaderTraceID, "trace-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "upstream-1", w.Header().Get(HeaderRequestID))
		assert.Equal(t, "trace-1", w.Header().Get(HeaderTraceID))
		assert.Equal(t, "trace-1", seenTrace)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2})
	t.Cleanup(rl.Stop)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are limited independently")
	assert.Equal(t, 2, rl.ActiveClients())

	rl.evictIdle(time.Now().Add(time.Hour))
	assert.Equal(t, 0, rl.ActiveClients())
	rl.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(&RateLimiterConfig{RequestsPerSecond: 0.5, BurstSize: 1})
	t.Cleanup(rl.Stop)

	router := gin.New()
	router.Use(RateLimitMiddleware(rl))
	router.GET("/api/list_indexes/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/list_indexes/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/list_indexes/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limited")
}
