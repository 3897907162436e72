package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ragservice/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "ragservice"

// HelloResponse 欢迎信息
type HelloResponse struct {
	Message string `json:"message"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadinessResponse 就绪检查响应
type ReadinessResponse struct {
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	VectorStore string `json:"vector_store,omitempty"`
}

// Pinger 依赖连通性检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// Hello 欢迎接口
// @Summary 欢迎信息
// @Tags System
// @Produce json
// @Success 200 {object} HelloResponse
// @Router /hello [get]
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, HelloResponse{Message: "Hello from RAG Application"})
}

// HealthCheck 健康检查
// @Summary 服务健康检查
// @Description 返回基础健康状态，可供监控探针使用
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: serviceName})
	}
}

// ReadinessCheck 就绪检查
// @Summary 服务就绪检查
// @Description 包含向量存储连通性结果，用于判断可接收请求
// @Tags System
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /ready [get]
func ReadinessCheck(store Pinger, backend string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logger.WithContext(ctx).Warn("就绪检查失败", zap.String("vector_store", backend), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, ReadinessResponse{
				Status:      "not_ready",
				Reason:      "vector store ping failed",
				VectorStore: backend,
			})
			return
		}

		c.JSON(http.StatusOK, ReadinessResponse{Status: "ready", VectorStore: backend})
	}
}

// cleanList 去除空白项；环境变量中逗号分隔的列表可能带空格
func cleanList(list []string) []string {
	var res []string
	for _, p := range list {
		if v := strings.TrimSpace(p); v != "" {
			res = append(res, v)
		}
	}
	return res
}

// stringInSlice 判断字符串是否存在于切片中
func stringInSlice(target string, list []string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// defaultIfEmpty 返回非空列表或默认值
func defaultIfEmpty(list []string, def []string) []string {
	if len(list) == 0 {
		return def
	}
	return list
}
