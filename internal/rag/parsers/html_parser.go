package parsers

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLParser HTML 文档解析器
type HTMLParser struct{}

// NewHTMLParser 创建 HTML 解析器
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Parse 提取正文文本
// 优先 <main>，其次 <article>，再次 <body>；脚本、样式与导航类元素整体跳过。
func (p *HTMLParser) Parse(reader io.Reader) (string, error) {
	doc, err := html.Parse(reader)
	if err != nil {
		return "", fmt.Errorf("%w: 解析 HTML 失败: %v", ErrUnreadableDocument, err)
	}

	root := doc
	for _, a := range []atom.Atom{atom.Main, atom.Article, atom.Body} {
		if n := findElement(doc, a); n != nil {
			root = n
			break
		}
	}

	var b strings.Builder
	collectText(root, &b)
	return strings.TrimSpace(b.String()), nil
}

// ContentTypes 支持的 MIME 类型
func (p *HTMLParser) ContentTypes() []string {
	return []string{ContentTypeHTML}
}

// Extensions 支持的扩展名
func (p *HTMLParser) Extensions() []string {
	return []string{".html", ".htm"}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if skippedElement(n.DataAtom) {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}

	if n.Type == html.ElementNode && blockElement(n.DataAtom) {
		b.WriteByte('\n')
	}
}

func skippedElement(a atom.Atom) bool {
	switch a {
	case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Header, atom.Footer, atom.Aside, atom.Template:
		return true
	}
	return false
}

func blockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Tr, atom.Br, atom.Hr, atom.Pre, atom.Blockquote, atom.Table:
		return true
	}
	return false
}
