package rag

import (
	"fmt"
	"net/http"

	response "ragservice/api/handlers/common"
	ragpkg "ragservice/internal/rag"

	"github.com/gin-gonic/gin"
)

// CreateIndex 创建索引
// @Summary 创建索引
// @Tags Index
// @Accept json
// @Produce json
// @Param request body CreateIndexRequest true "索引名称与向量维度"
// @Success 200 {object} response.MessageResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/create_index/ [post]
func (h *Handler) CreateIndex(c *gin.Context) {
	var req CreateIndexRequest
	if err := decodeBody(c.Request.Body, "request", &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.indexes.CreateIndex(c.Request.Context(), ragpkg.IndexDescriptor{
		Name:       req.IndexName,
		Dimensions: req.Dims,
		Metric:     ragpkg.MetricCosine,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, response.MessageResponse{
		Message: fmt.Sprintf("Index '%s' with %d dimensions created successfully", req.IndexName, req.Dims),
	})
}

// DeleteIndex 删除索引
// @Summary 删除索引
// @Tags Index
// @Accept json
// @Produce json
// @Param request body DeleteIndexRequest true "索引名称"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/delete_index/ [delete]
func (h *Handler) DeleteIndex(c *gin.Context) {
	var req DeleteIndexRequest
	if err := decodeBody(c.Request.Body, "request", &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.indexes.DeleteIndex(c.Request.Context(), req.IndexName); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, response.MessageResponse{
		Message: fmt.Sprintf("Index '%s' deleted successfully", req.IndexName),
	})
}

// ListIndexes 列出索引
// @Summary 列出索引
// @Tags Index
// @Produce json
// @Success 200 {object} ListIndexesResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /api/list_indexes/ [get]
func (h *Handler) ListIndexes(c *gin.Context) {
	names, err := h.indexes.ListIndexes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, ListIndexesResponse{Indexes: names})
}
