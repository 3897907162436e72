package rag

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	response "ragservice/api/handlers/common"
	"ragservice/internal/logger"
	ragpkg "ragservice/internal/rag"
	"ragservice/internal/worker/tasks"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IndexText 索引一段文本
// @Summary 索引文本
// @Description 规范化并切分文本，逐块向量化后写入索引。async=true 时入队异步执行。
// @Tags RAG
// @Accept json
// @Produce json
// @Param request body IndexTextRequest true "索引请求"
// @Param async query bool false "是否异步执行"
// @Success 200 {object} IndexResponse
// @Success 202 {object} EnqueueResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /api/index/ [post]
func (h *Handler) IndexText(c *gin.Context) {
	var req IndexTextRequest
	if err := decodeBody(c.Request.Body, "index_request", &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	async, err := parseBoolQuery(c, "async")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if async {
		h.enqueueIndex(c, req)
		return
	}

	report, err := h.indexer.IndexDocument(c.Request.Context(), ragpkg.IndexRequest{
		IndexName: req.IndexName,
		Text:      req.Text,
		Force:     req.Force,
	})
	h.writeReport(c, report, err, "Text indexed successfully")
}

// enqueueIndex 校验后入队，由 worker 执行
func (h *Handler) enqueueIndex(c *gin.Context, req IndexTextRequest) {
	if h.tasks == nil {
		response.BadRequest(c, "async indexing is not enabled")
		return
	}
	if err := ragpkg.ValidateIndexName(req.IndexName); err != nil {
		response.Error(c, err)
		return
	}
	if ragpkg.NormalizeText(req.Text) == "" {
		response.BadRequest(c, "text is empty after normalization")
		return
	}

	ctx := c.Request.Context()
	exists, err := h.indexes.IndexExists(ctx, req.IndexName)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !exists {
		response.Error(c, fmt.Errorf("%w: %s", ragpkg.ErrIndexNotFound, req.IndexName))
		return
	}

	taskID, err := h.tasks.EnqueueIndexDocument(ctx, tasks.IndexDocumentPayload{
		IndexName: req.IndexName,
		Text:      req.Text,
		Force:     req.Force,
		RequestID: logger.GetRequestID(ctx),
	})
	if err != nil {
		logger.WithContext(ctx).Error("索引任务入队失败", zap.String("index", req.IndexName), zap.Error(err))
		response.Error(c, fmt.Errorf("%w: %v", ragpkg.ErrStoreUnavailable, err))
		return
	}

	c.JSON(http.StatusAccepted, EnqueueResponse{Message: "Indexing task accepted", TaskID: taskID})
}

// UploadFile 上传文件并索引
// @Summary 上传文件索引
// @Description 支持 PDF、DOCX、DOC 与纯文本，提取文本后按文本索引流程处理
// @Tags RAG
// @Accept multipart/form-data
// @Produce json
// @Param index_name query string true "索引名称"
// @Param force query bool false "忽略已存在的分块强制重写"
// @Param file formData file true "文档文件"
// @Success 200 {object} IndexResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 413 {object} response.ErrorResponse
// @Router /api/upload/ [post]
func (h *Handler) UploadFile(c *gin.Context) {
	indexName := c.Query("index_name")
	force, err := parseBoolQuery(c, "force")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// 额外预留 multipart 边界与表单头的开销
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		response.BadRequest(c, "file is required: "+err.Error())
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		h.tooLarge(c)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		response.BadRequest(c, "读取上传文件失败: "+err.Error())
		return
	}
	if int64(len(data)) > h.maxFileSize {
		h.tooLarge(c)
		return
	}

	report, err := h.indexer.IndexFile(c.Request.Context(), ragpkg.FileRequest{
		IndexName:   indexName,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Force:       force,
	})
	h.writeReport(c, report, err, "File processed and indexed successfully")
}

func (h *Handler) tooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, response.ErrorResponse{
		Success: false,
		Code:    ragpkg.CodeInvalidRequest,
		Message: fmt.Sprintf("file exceeds the %d byte limit", h.maxFileSize),
	})
}

// writeReport 输出索引结果
// 部分分块失败仍返回 200 并附带报告；全部失败时按首个失败原因给出状态码。
func (h *Handler) writeReport(c *gin.Context, report *ragpkg.IndexReport, err error, okMessage string) {
	if err != nil {
		response.Error(c, err)
		return
	}

	switch {
	case report.AllFailed():
		code := report.Failures[0].Code
		c.AbortWithStatusJSON(response.StatusForCode(code), IndexFailedResponse{
			Success: false,
			Code:    code,
			Message: fmt.Sprintf("all %d chunks failed to index", report.Total),
			Report:  report,
		})
	case report.Failed > 0:
		c.JSON(http.StatusOK, IndexResponse{
			Message: fmt.Sprintf("Indexed with %d of %d chunks failed", report.Failed, report.Total),
			Report:  report,
		})
	default:
		c.JSON(http.StatusOK, IndexResponse{Message: okMessage, Report: report})
	}
}

func parseBoolQuery(c *gin.Context, key string) (bool, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("query parameter %s must be a boolean", key)
	}
	return b, nil
}
