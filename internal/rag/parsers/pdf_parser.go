package parsers

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dslipak/pdf"
)

// PDFParser PDF 文件解析器
type PDFParser struct{}

// NewPDFParser 创建 PDF 解析器
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse 逐页提取文本，页与页之间以换行分隔
func (p *PDFParser) Parse(reader io.Reader) (text string, err error) {
	// pdf.NewReader 需要 ReaderAt
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取 PDF 内容失败: %w", err)
	}

	// 损坏的文件可能让底层库 panic
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("%w: 解析 PDF 失败: %v", ErrUnreadableDocument, rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: 打开 PDF 失败: %v", ErrUnreadableDocument, err)
	}

	var buf strings.Builder
	numPages := r.NumPage()
	failed := 0

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			failed++
			continue
		}

		buf.WriteString(pageText)
		buf.WriteString("\n")
	}

	content := strings.TrimSpace(buf.String())
	if content == "" {
		return "", fmt.Errorf("%w: PDF 内容为空或无法解析文本（%d/%d 页失败）", ErrUnreadableDocument, failed, numPages)
	}
	return content, nil
}

// ContentTypes 支持的 MIME 类型
func (p *PDFParser) ContentTypes() []string {
	return []string{ContentTypePDF}
}

// Extensions 支持的文件扩展名
func (p *PDFParser) Extensions() []string {
	return []string{".pdf"}
}
