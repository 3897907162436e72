package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"空输入", "", ""},
		{"只有空白", " \t\n  ", ""},
		{"首尾不换行空格", "\u00a0text\u00a0", "text"},
		{"折叠空白", "hello    world", "hello world"},
		{"制表符属于控制字符", "a\tb", "ab"},
		{"换行属于控制字符", "line\nnext", "linenext"},
		{"控制字符删除后空白相邻", "one \r\n two", "one two"},
		{"单个不换行空格保留", "a\u00a0b", "a\u00a0b"},
		{"空白串折叠", "a\u00a0 b", "a b"},
		{"去除控制字符", "ab\x00c\x07d", "abcd"},
		{"去除零宽字符", "zero\u200bwidth", "zerowidth"},
		{"首尾空白", "   padded text   ", "padded text"},
		{"非法 UTF-8", "ok\xffok", "okok"},
		{"保留中文", "你好，  世界。", "你好， 世界。"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeText(tc.in))
		})
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	raw := "  A\x01 messy\r\n\r\ndocument\t\twith   noise.  "
	once := NormalizeText(raw)
	assert.Equal(t, once, NormalizeText(once))
}
