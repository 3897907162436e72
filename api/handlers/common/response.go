package common

import (
	"context"
	"errors"
	"net/http"

	"ragservice/internal/logger"
	"ragservice/internal/rag"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPStatus 将领域错误映射为 HTTP 状态码
func HTTPStatus(err error) int {
	return StatusForCode(rag.ErrorKind(err))
}

// StatusForCode 错误码对应的 HTTP 状态码
func StatusForCode(code string) int {
	switch code {
	case rag.CodeInvalidRequest, rag.CodeUnsupportedContentType, rag.CodeUnreadableDocument, rag.CodeIndexAlreadyExists:
		return http.StatusBadRequest
	case rag.CodeIndexNotFound:
		return http.StatusNotFound
	case rag.CodeDimensionMismatch:
		return http.StatusUnprocessableEntity
	case rag.CodeProviderResponseInvalid:
		return http.StatusBadGateway
	case rag.CodeProviderUnavailable, rag.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case rag.CodeCanceled:
		// 客户端已断开，状态码只用于日志
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// Error 按错误类型写入统一错误响应
// 5xx 记录为错误日志，内部错误不向客户端暴露细节。
func Error(c *gin.Context, err error) {
	status := HTTPStatus(err)
	code := rag.ErrorKind(err)
	message := err.Error()

	log := logger.WithContext(c.Request.Context()).With(
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.String("code", code),
	)
	switch {
	case status == http.StatusInternalServerError:
		log.Error("请求处理失败", zap.Error(err))
		message = "internal server error"
	case status >= 500:
		log.Warn("依赖服务失败", zap.Error(err))
	case errors.Is(err, context.Canceled):
		log.Info("请求已取消")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Code: code, Message: message})
}

// BadRequest 参数错误
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Success: false, Code: rag.CodeInvalidRequest, Message: message})
}
