package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有 API 路由
// 路径保留末尾斜杠，与既有客户端保持一致。
func RegisterRoutes(router *gin.Engine, handlers *Handlers, guards ...gin.HandlerFunc) {
	router.GET("/", Hello)
	router.GET("/hello", Hello)

	api := router.Group("/api")
	api.Use(guards...)

	h := handlers.RAG
	{
		api.POST("/index/", h.IndexText)
		api.POST("/upload/", h.UploadFile)
		api.POST("/query/", h.Query)
		api.POST("/search/", h.Search)
		api.GET("/tasks/:id", h.GetTask)
	}
	{
		api.POST("/create_index/", h.CreateIndex)
		api.DELETE("/delete_index/", h.DeleteIndex)
		api.GET("/list_indexes/", h.ListIndexes)
	}
}
