package parsers

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ParserRegistry 按 MIME 类型管理文档解析器
type ParserRegistry struct {
	byType map[string]Parser
	byExt  map[string]Parser
}

// NewParserRegistry 创建注册表并注册默认解析器
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{
		byType: make(map[string]Parser),
		byExt:  make(map[string]Parser),
	}

	r.Register(NewTextParser())
	r.Register(NewPDFParser())
	r.Register(NewDocxParser())
	r.Register(NewMSWordParser())
	r.Register(NewHTMLParser())

	return r
}

// Register 注册解析器，后注册的覆盖先注册的
func (r *ParserRegistry) Register(p Parser) {
	for _, ct := range p.ContentTypes() {
		r.byType[strings.ToLower(ct)] = p
	}
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// SupportedContentTypes 已注册的 MIME 类型
func (r *ParserRegistry) SupportedContentTypes() []string {
	types := make([]string, 0, len(r.byType))
	for ct := range r.byType {
		types = append(types, ct)
	}
	sort.Strings(types)
	return types
}

// Parse 按声明的 Content-Type 选择解析器并提取文本
// 声明了具体类型但不受支持时直接拒绝；未声明或为 application/octet-stream 时按内容嗅探，再按扩展名兜底。
func (r *ParserRegistry) Parse(contentType, fileName string, data []byte) (string, error) {
	p, err := r.Resolve(contentType, fileName, data)
	if err != nil {
		return "", err
	}
	text, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no extractable text", ErrUnreadableDocument)
	}
	return text, nil
}

// Resolve 选择解析器
func (r *ParserRegistry) Resolve(contentType, fileName string, data []byte) (Parser, error) {
	declared := mediaType(contentType)
	if declared != "" && declared != "application/octet-stream" {
		if p, ok := r.byType[declared]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, declared)
	}

	if len(data) > 0 {
		for m := mimetype.Detect(data); m != nil; m = m.Parent() {
			if p, ok := r.byType[mediaType(m.String())]; ok {
				return p, nil
			}
		}
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if p, ok := r.byExt[ext]; ok {
		return p, nil
	}

	if declared == "" {
		declared = "unknown"
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedContentType, declared, fileName)
}

// mediaType 去掉参数并转小写，如 "text/plain; charset=utf-8" -> "text/plain"
func mediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mt)
}
