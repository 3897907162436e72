package parsers

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextParser 纯文本解析器
// 支持: text/plain, text/markdown
type TextParser struct{}

// NewTextParser 创建文本解析器
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse 按 UTF-8 解码，非法编码直接拒绝而不是静默替换
func (p *TextParser) Parse(reader io.Reader) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	content = bytes.TrimPrefix(content, utf8BOM)

	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnreadableDocument)
	}
	return string(content), nil
}

// ContentTypes 支持的 MIME 类型
func (p *TextParser) ContentTypes() []string {
	return []string{ContentTypeText, ContentTypeMarkdown}
}

// Extensions 支持的文件扩展名
func (p *TextParser) Extensions() []string {
	return []string{".txt", ".md", ".markdown"}
}
