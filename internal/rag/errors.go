package rag

import (
	"context"
	"errors"

	"ragservice/internal/rag/parsers"
	"ragservice/pkg/aiinterface"
)

// 错误分类，配合 errors.Is 使用
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrIndexNotFound      = errors.New("index not found")
	ErrIndexAlreadyExists = errors.New("index already exists")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrStoreUnavailable   = errors.New("vector store unavailable")

	ErrProviderUnavailable     = aiinterface.ErrProviderUnavailable
	ErrProviderResponseInvalid = aiinterface.ErrProviderResponseInvalid
	ErrUnsupportedContentType  = parsers.ErrUnsupportedContentType
	ErrUnreadableDocument      = parsers.ErrUnreadableDocument
)

// 错误码，用于 HTTP 响应、分块失败报告和指标标签
const (
	CodeInvalidRequest          = "invalid_request"
	CodeIndexNotFound           = "index_not_found"
	CodeIndexAlreadyExists      = "index_already_exists"
	CodeDimensionMismatch       = "dimension_mismatch"
	CodeStoreUnavailable        = "store_unavailable"
	CodeProviderUnavailable     = "provider_unavailable"
	CodeProviderResponseInvalid = "provider_response_invalid"
	CodeUnsupportedContentType  = "unsupported_content_type"
	CodeUnreadableDocument      = "unreadable_document"
	CodeCanceled                = "canceled"
	CodeInternal                = "internal"
)

// ErrorKind 将错误归类为稳定的错误码
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, aiinterface.ErrInvalidParams):
		return CodeInvalidRequest
	case errors.Is(err, ErrIndexNotFound):
		return CodeIndexNotFound
	case errors.Is(err, ErrIndexAlreadyExists):
		return CodeIndexAlreadyExists
	case errors.Is(err, ErrDimensionMismatch):
		return CodeDimensionMismatch
	case errors.Is(err, ErrUnsupportedContentType):
		return CodeUnsupportedContentType
	case errors.Is(err, ErrUnreadableDocument):
		return CodeUnreadableDocument
	case errors.Is(err, ErrProviderUnavailable):
		return CodeProviderUnavailable
	case errors.Is(err, ErrProviderResponseInvalid):
		return CodeProviderResponseInvalid
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeProviderUnavailable
	default:
		return CodeInternal
	}
}

// IsRetryable 失败是否值得调用方重试（暂时性故障）
func IsRetryable(err error) bool {
	switch ErrorKind(err) {
	case CodeProviderUnavailable, CodeStoreUnavailable:
		return true
	default:
		return false
	}
}
