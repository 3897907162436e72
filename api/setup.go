package api

import (
	_ "ragservice/api/docs"
	"ragservice/internal/app"
	"ragservice/internal/infra"
	"ragservice/internal/logger"
	"ragservice/internal/metrics"
	middlewarepkg "ragservice/internal/middleware"
	"ragservice/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// SetupRouter 设置并返回 Gin 路由；启用异步索引时同时返回 Worker 服务器
func SetupRouter(container *app.App) (*gin.Engine, *worker.Server, error) {
	cfg := container.Config
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS(cfg.Server.CORS))
	router.Use(metrics.PrometheusMiddleware())

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(container, container.Gateway.Backend()))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	var guards []gin.HandlerFunc
	if cfg.Server.RateLimit > 0 {
		limiter := middlewarepkg.NewRateLimiter(&middlewarepkg.RateLimiterConfig{
			RequestsPerSecond: cfg.Server.RateLimit,
			BurstSize:         cfg.Server.RateBurst,
		})
		guards = append(guards, middlewarepkg.RateLimitMiddleware(limiter))
		logger.Info("已启用接口限流",
			zap.Float64("rps", cfg.Server.RateLimit),
			zap.Int("burst", cfg.Server.RateBurst))
	}

	RegisterRoutes(router, InitHandlers(container), guards...)

	if container.Queue == nil {
		return router, nil, nil
	}

	redisOpt, err := infra.AsynqRedisOpt(&cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	workerServer := worker.NewServer(redisOpt, cfg.RAG.Indexing.WorkerConcurrency, container.Indexer, logger.Get().Named("worker"))
	return router, workerServer, nil
}
