package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "success", StatusLabel(nil))
	assert.Equal(t, "error", StatusLabel(errors.New("boom")))
}

func TestPrometheusMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/api/tasks/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ready", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/tasks/:id", "200"))
	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/"+id, nil))
	}
	// 标签使用路由模板而非实际路径
	assert.Equal(t, before+2, testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/tasks/:id", "200")))

	t.Run("探针与指标端点不计数", func(t *testing.T) {
		for _, path := range []string{"/metrics", "/health", "/ready"} {
			before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, path, "200"))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, before, testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, path, "200")), path)
		}
	})

	t.Run("未匹配路由归为同一标签", func(t *testing.T) {
		before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, UnmatchedRoute, "404"))
		for _, path := range []string{"/wp-admin", "/.env", "/api/nope/1"} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusNotFound, w.Code)
		}
		assert.Equal(t, before+3, testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, UnmatchedRoute, "404")))
	})

	assert.Zero(t, testutil.ToFloat64(APIRequestsInFlight))
}
