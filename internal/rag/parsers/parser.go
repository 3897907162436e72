package parsers

import (
	"errors"
	"io"
)

// MIME 类型
const (
	ContentTypePDF      = "application/pdf"
	ContentTypeMSWord   = "application/msword"
	ContentTypeDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeText     = "text/plain"
	ContentTypeMarkdown = "text/markdown"
	ContentTypeHTML     = "text/html"
)

var (
	// ErrUnsupportedContentType 没有解析器支持该类型
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrUnreadableDocument 文件损坏、编码非法或没有可提取的文本
	ErrUnreadableDocument = errors.New("unreadable document")
)

// Parser 文档解析器，把二进制文档转换为纯文本
type Parser interface {
	// Parse 读取文档并提取文本
	Parse(reader io.Reader) (string, error)

	// ContentTypes 支持的 MIME 类型（不含参数）
	ContentTypes() []string

	// Extensions 支持的扩展名（如 ".txt"），用于客户端未声明类型时的兜底
	Extensions() []string
}
