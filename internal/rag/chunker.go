package rag

import (
	"unicode"
	"unicode/utf8"
)

// 分块策略
const (
	StrategyTokens   = "tokens"   // 按 Token 预算合并句子
	StrategySentence = "sentence" // 每句一个分块
)

// DefaultMaxTokens 默认分块 Token 预算
const DefaultMaxTokens = 256

// Chunk 一段连续的规范化文本
type Chunk struct {
	Text      string `json:"text"`
	Position  int    `json:"position"` // 在文档中的顺序（从 0 开始）
	Start     int    `json:"start"`    // 规范化文本中的字节偏移
	End       int    `json:"end"`
	Tokens    int    `json:"tokens"`
	Oversized bool   `json:"oversized"` // 单个语义单元超出预算，整体保留未截断
}

// Chunker 文档分块器
// 分块边界只落在句子或分句边界上；相邻分块之间只隔空白。
type Chunker struct {
	MaxTokens int
	Strategy  string
	tokenizer Tokenizer
}

// NewChunker 创建新的分块器
func NewChunker(maxTokens int, strategy string, tokenizer Tokenizer) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if strategy != StrategySentence {
		strategy = StrategyTokens
	}
	if tokenizer == nil {
		tokenizer = EstimateTokenizer{}
	}
	return &Chunker{
		MaxTokens: maxTokens,
		Strategy:  strategy,
		tokenizer: tokenizer,
	}
}

// span 文本中的半开区间 [start, end)
type span struct {
	start, end int
}

// unit 参与合并的最小语义单元
type unit struct {
	span
	tokens    int
	oversized bool
}

// Split 将规范化文本切分为有序分块
func (c *Chunker) Split(text string) []Chunk {
	sentences := sentenceSpans(text)
	if len(sentences) == 0 {
		return nil
	}

	if c.Strategy == StrategySentence {
		chunks := make([]Chunk, 0, len(sentences))
		for _, s := range sentences {
			n := c.tokenizer.CountTokens(text[s.start:s.end])
			chunks = append(chunks, c.newChunk(text, s, len(chunks), n, n > c.MaxTokens))
		}
		return chunks
	}

	return c.pack(text, c.units(text, sentences))
}

// units 句子超预算时退化为分句，分句仍超预算则标记为 oversized
func (c *Chunker) units(text string, sentences []span) []unit {
	units := make([]unit, 0, len(sentences))
	for _, s := range sentences {
		n := c.tokenizer.CountTokens(text[s.start:s.end])
		if n <= c.MaxTokens {
			units = append(units, unit{span: s, tokens: n})
			continue
		}

		for _, cl := range clauseSpans(text, s) {
			cn := c.tokenizer.CountTokens(text[cl.start:cl.end])
			units = append(units, unit{span: cl, tokens: cn, oversized: cn > c.MaxTokens})
		}
	}
	return units
}

// pack 贪心合并相邻单元，合并后的整体 Token 数不超过预算
func (c *Chunker) pack(text string, units []unit) []Chunk {
	chunks := make([]Chunk, 0)

	var cur span
	curTokens := 0
	open := false

	flush := func() {
		if open {
			chunks = append(chunks, c.newChunk(text, cur, len(chunks), curTokens, false))
			open = false
		}
	}

	for _, u := range units {
		if u.oversized {
			flush()
			chunks = append(chunks, c.newChunk(text, u.span, len(chunks), u.tokens, true))
			continue
		}
		if !open {
			cur, curTokens, open = u.span, u.tokens, true
			continue
		}

		merged := c.tokenizer.CountTokens(text[cur.start:u.end])
		if merged <= c.MaxTokens {
			cur.end = u.end
			curTokens = merged
			continue
		}

		flush()
		cur, curTokens, open = u.span, u.tokens, true
	}
	flush()

	return chunks
}

func (c *Chunker) newChunk(text string, s span, position, tokens int, oversized bool) Chunk {
	return Chunk{
		Text:      text[s.start:s.end],
		Position:  position,
		Start:     s.start,
		End:       s.end,
		Tokens:    tokens,
		Oversized: oversized,
	}
}

// sentenceSpans 按句末标点切分句子
// 西文句号需后接空白或文本结尾，且不切分小数点；中日文句号直接切分。
func sentenceSpans(text string) []span {
	return splitSpans(text, 0, len(text), isSentenceTerminator)
}

// clauseSpans 在一个句子内部按逗号、分号、冒号切分
func clauseSpans(text string, s span) []span {
	parts := splitSpans(text, s.start, s.end, isClauseTerminator)
	if len(parts) == 0 {
		return []span{s}
	}
	return parts
}

func splitSpans(text string, from, to int, isTerminator func(rune) bool) []span {
	spans := make([]span, 0)
	start := -1

	i := from
	for i < to {
		r, size := utf8.DecodeRuneInString(text[i:to])
		if start < 0 {
			if unicode.IsSpace(r) {
				i += size
				continue
			}
			start = i
		}

		if !isTerminator(r) || isDecimalPoint(text, i, r) {
			i += size
			continue
		}

		// 吞掉连续的标点和收尾引号/括号
		end := i + size
		for end < to {
			nr, ns := utf8.DecodeRuneInString(text[end:to])
			if isTerminator(nr) || isClosingMark(nr) {
				end += ns
				continue
			}
			break
		}

		if end < to && !isWideTerminator(r) {
			nr, _ := utf8.DecodeRuneInString(text[end:to])
			if !unicode.IsSpace(nr) {
				i = end
				continue
			}
		}

		spans = append(spans, trimSpan(text, span{start, end}))
		start = -1
		i = end
	}

	if start >= 0 {
		if s := trimSpan(text, span{start, to}); s.end > s.start {
			spans = append(spans, s)
		}
	}

	return spans
}

func trimSpan(text string, s span) span {
	for s.end > s.start {
		r, size := utf8.DecodeLastRuneInString(text[s.start:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.end -= size
	}
	return s
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isClauseTerminator(r rune) bool {
	switch r {
	case ',', ';', ':', '，', '；', '：', '、':
		return true
	}
	return false
}

func isWideTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '…', '，', '；', '：', '、':
		return true
	}
	return false
}

func isClosingMark(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '」', '』', '）', '》':
		return true
	}
	return false
}

// isDecimalPoint 数字之间的小数点或千分位不作为边界
func isDecimalPoint(text string, i int, r rune) bool {
	if r != '.' && r != ',' {
		return false
	}
	if i == 0 || i+1 >= len(text) {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:i])
	next, _ := utf8.DecodeRuneInString(text[i+1:])
	return unicode.IsDigit(prev) && unicode.IsDigit(next)
}
