package rag

import (
	"errors"
	"net/http"

	response "ragservice/api/handlers/common"
	"ragservice/internal/infra/queue"
	ragpkg "ragservice/internal/rag"

	"github.com/gin-gonic/gin"
)

// GetTask 查询异步索引任务
// @Summary 查询索引任务状态
// @Tags RAG
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} queue.TaskStatus
// @Failure 404 {object} response.ErrorResponse
// @Router /api/tasks/{id} [get]
func (h *Handler) GetTask(c *gin.Context) {
	if h.tasks == nil {
		response.BadRequest(c, "async indexing is not enabled")
		return
	}

	status, err := h.tasks.TaskStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, response.ErrorResponse{
				Success: false,
				Code:    "task_not_found",
				Message: "task not found",
			})
			return
		}
		response.Error(c, errors.Join(ragpkg.ErrStoreUnavailable, err))
		return
	}
	c.JSON(http.StatusOK, status)
}
