package parsers

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// zipMagic .docx 文件本质上是 ZIP 压缩包
var zipMagic = []byte("PK\x03\x04")

// DocxParser Word 文档解析器（.docx）
type DocxParser struct{}

// NewDocxParser 创建 DOCX 解析器
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

// Parse 读取 word/document.xml，每个段落一行
func (p *DocxParser) Parse(reader io.Reader) (string, error) {
	// zip 需要 ReaderAt
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文档失败: %w", err)
	}
	return parseDocx(data)
}

// ContentTypes 支持的 MIME 类型
func (p *DocxParser) ContentTypes() []string {
	return []string{ContentTypeDocx}
}

// Extensions 支持的扩展名
func (p *DocxParser) Extensions() []string {
	return []string{".docx"}
}

func parseDocx(data []byte) (string, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: 打开 DOCX 失败: %v", ErrUnreadableDocument, err)
	}

	for _, file := range zipReader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: 打开 document.xml 失败: %v", ErrUnreadableDocument, err)
		}
		defer rc.Close()

		text, err := extractDocumentText(rc)
		if err != nil {
			return "", fmt.Errorf("%w: 解析文档内容失败: %v", ErrUnreadableDocument, err)
		}
		return text, nil
	}

	return "", fmt.Errorf("%w: 无效的 DOCX 文件：找不到 document.xml", ErrUnreadableDocument)
}

// extractDocumentText 流式遍历 WordprocessingML，按段落输出文本
// <w:t> 为文本，<w:tab> 为制表符，<w:br> 与 </w:p> 为换行。
func extractDocumentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
	)

	flush := func() {
		line := strings.TrimSpace(para.String())
		para.Reset()
		if line == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(line)
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()

	return out.String(), nil
}

// MSWordParser application/msword 解析器
// 很多客户端把 .docx 也标为 msword，先按 ZIP 判断；真正的 .doc（OLE 复合文档）只做可打印文本提取。
type MSWordParser struct{}

// NewMSWordParser 创建 msword 解析器
func NewMSWordParser() *MSWordParser {
	return &MSWordParser{}
}

// Parse 解析 Word 文档
func (p *MSWordParser) Parse(reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文档失败: %w", err)
	}

	if bytes.HasPrefix(data, zipMagic) {
		return parseDocx(data)
	}

	text := extractPrintableText(data)
	if text == "" {
		return "", fmt.Errorf("%w: 无法从 .doc 文件提取文本，建议转换为 .docx 格式", ErrUnreadableDocument)
	}
	return text, nil
}

// ContentTypes 支持的 MIME 类型
func (p *MSWordParser) ContentTypes() []string {
	return []string{ContentTypeMSWord}
}

// Extensions 支持的扩展名
func (p *MSWordParser) Extensions() []string {
	return []string{".doc"}
}

// extractPrintableText 提取连续的可打印 ASCII 片段，过滤过短的噪声
func extractPrintableText(data []byte) string {
	var (
		result strings.Builder
		word   strings.Builder
	)

	emit := func() {
		if word.Len() >= 4 {
			if result.Len() > 0 {
				result.WriteByte(' ')
			}
			result.WriteString(strings.TrimSpace(word.String()))
		}
		word.Reset()
	}

	for _, b := range data {
		if (b >= 32 && b <= 126) || b == '\n' || b == '\r' || b == '\t' {
			word.WriteByte(b)
			continue
		}
		emit()
	}
	emit()

	return strings.TrimSpace(result.String())
}
