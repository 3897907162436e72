package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeText 清洗原始文本
// 删除全部控制类字符（Unicode C 类，含换行与制表符）和非法 UTF-8 字节；
// 连续两个及以上的空白折叠为单个空格，单个空白原样保留；最后去掉首尾空白。
func NormalizeText(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))

	var run []rune // 当前空白串
	flush := func() {
		switch len(run) {
		case 0:
		case 1:
			b.WriteRune(run[0])
		default:
			b.WriteByte(' ')
		}
		run = run[:0]
	}

	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		i += size

		switch {
		case r == utf8.RuneError && size == 1:
			continue
		case unicode.Is(unicode.C, r):
			// 删除后两侧空白相邻，按同一空白串计
			continue
		case unicode.IsSpace(r):
			run = append(run, r)
		default:
			flush()
			b.WriteRune(r)
		}
	}
	flush()

	return strings.TrimSpace(b.String())
}
