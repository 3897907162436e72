package rag

import (
	"net/http"

	response "ragservice/api/handlers/common"
	ragpkg "ragservice/internal/rag"

	"github.com/gin-gonic/gin"
)

// Query 检索增强问答
// @Summary 问答
// @Description 检索与问题最相关的分块作为上下文，交给生成模型回答
// @Tags RAG
// @Accept json
// @Produce json
// @Param request body QueryRequest true "问答请求"
// @Success 200 {object} QueryResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /api/query/ [post]
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := decodeBody(c.Request.Body, "query_request", &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	answer, err := h.query.Answer(c.Request.Context(), ragpkg.AnswerRequest{
		IndexName:     req.IndexName,
		Question:      req.Question,
		PriorMessages: req.PreMsgs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, QueryResponse{Response: answer.Text})
}

// Search 只检索不生成
// @Summary 相似度检索
// @Tags RAG
// @Accept json
// @Produce json
// @Param request body SearchRequest true "检索请求"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/search/ [post]
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := decodeBody(c.Request.Body, "search_request", &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.TopK < 0 {
		response.BadRequest(c, "top_k must not be negative")
		return
	}

	hits, err := h.query.Search(c.Request.Context(), req.IndexName, req.Question, req.TopK)
	if err != nil {
		response.Error(c, err)
		return
	}
	if hits == nil {
		hits = []ragpkg.SearchHit{}
	}
	c.JSON(http.StatusOK, SearchResponse{Results: hits})
}
