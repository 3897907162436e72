package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragservice/internal/rag"
	"ragservice/pkg/aiinterface"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"参数错误", fmt.Errorf("%w: index_name is required", rag.ErrInvalidRequest), http.StatusBadRequest},
		{"不支持的类型", rag.ErrUnsupportedContentType, http.StatusBadRequest},
		{"无法读取文件", rag.ErrUnreadableDocument, http.StatusBadRequest},
		{"索引已存在", rag.ErrIndexAlreadyExists, http.StatusBadRequest},
		{"索引不存在", fmt.Errorf("%w: docs", rag.ErrIndexNotFound), http.StatusNotFound},
		{"维度不一致", rag.ErrDimensionMismatch, http.StatusUnprocessableEntity},
		{"提供者不可用", aiinterface.NewUnavailableError("ollama", 503, "busy", nil), http.StatusServiceUnavailable},
		{"提供者响应无效", aiinterface.NewInvalidResponseError("ollama", 200, "bad", nil), http.StatusBadGateway},
		{"存储不可用", rag.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"提供者参数错误", aiinterface.NewInvalidParamsError("ollama", "empty"), http.StatusBadRequest},
		{"未知错误", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(err error) *httptest.ResponseRecorder {
		router := gin.New()
		router.GET("/x", func(c *gin.Context) { Error(c, err) })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w
	}

	t.Run("领域错误保留信息", func(t *testing.T) {
		w := serve(fmt.Errorf("%w: docs", rag.ErrIndexNotFound))
		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, rag.CodeIndexNotFound, resp.Code)
		assert.Contains(t, resp.Message, "docs")
	})

	t.Run("内部错误隐藏细节", func(t *testing.T) {
		w := serve(errors.New("pq: password authentication failed"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("取消", func(t *testing.T) {
		w := serve(context.Canceled)
		assert.Equal(t, 499, w.Code)
	})
}
