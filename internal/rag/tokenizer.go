package rag

import (
	"fmt"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer 统计文本 Token 数，决定分块预算
type Tokenizer interface {
	CountTokens(text string) int
	Name() string
}

// TiktokenTokenizer 基于 tiktoken BPE 的精确计数
type TiktokenTokenizer struct {
	name string
	tkm  *tiktoken.Tiktoken
}

// NewTiktokenTokenizer 按编码名或模型名加载 tiktoken 编码
// 先按编码名（如 cl100k_base）查找，再按模型名查找
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}

	tkm, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		tkm, err = tiktoken.EncodingForModel(encoding)
		if err != nil {
			return nil, fmt.Errorf("加载 tiktoken 编码 %s 失败: %w", encoding, err)
		}
	}

	return &TiktokenTokenizer{name: encoding, tkm: tkm}, nil
}

// CountTokens 统计 Token 数
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.tkm.Encode(text, nil, nil))
}

// Name 编码名称
func (t *TiktokenTokenizer) Name() string {
	return "tiktoken:" + t.name
}

// EstimateTokenizer 离线估算：英文按词，中日韩按字
type EstimateTokenizer struct{}

// CountTokens 估算 Token 数
func (EstimateTokenizer) CountTokens(text string) int {
	return estimateTokenCount(text)
}

// Name 估算器名称
func (EstimateTokenizer) Name() string {
	return "estimate"
}

// NewTokenizer 优先使用 tiktoken，加载失败（如离线环境取不到 BPE 文件）时退回估算
func NewTokenizer(encoding string) (Tokenizer, error) {
	if encoding == "estimate" {
		return EstimateTokenizer{}, nil
	}
	tk, err := NewTiktokenTokenizer(encoding)
	if err != nil {
		return EstimateTokenizer{}, err
	}
	return tk, nil
}

// estimateTokenCount 估算Token数量
// 每个非 CJK 词计 1，每个 CJK 字符计 1
func estimateTokenCount(text string) int {
	tokens := 0
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			tokens++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				tokens++
				inWord = true
			}
		}
	}
	return tokens
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
