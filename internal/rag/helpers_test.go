package rag

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"ragservice/pkg/aiinterface"
)

// keywordEmbedder 按关键词出现次数生成三维向量：[地理, 文化, 偏置]
type keywordEmbedder struct {
	mu    sync.Mutex
	fail  map[string]error // 文本包含键时返回对应错误
	calls atomic.Int32
	dims  int
	seen  []string
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{fail: make(map[string]error), dims: 3}
}

func (e *keywordEmbedder) failOn(substr string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[substr] = err
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.seen = append(e.seen, text)
	for substr, err := range e.fail {
		if strings.Contains(text, substr) {
			e.mu.Unlock()
			return nil, err
		}
	}
	e.mu.Unlock()

	lower := strings.ToLower(text)
	vec := make([]float32, e.dims)
	for _, w := range []string{"paris", "capital", "france"} {
		vec[0] += float32(strings.Count(lower, w))
	}
	for _, w := range []string{"city", "art"} {
		vec[1] += float32(strings.Count(lower, w))
	}
	vec[2] = 0.1
	return vec, nil
}

func (e *keywordEmbedder) GetModel() string        { return "keyword-test" }
func (e *keywordEmbedder) GetProviderName() string { return "fake" }

// fakeGenerator 记录最近一次请求并返回固定回答
type fakeGenerator struct {
	mu    sync.Mutex
	last  *aiinterface.ChatCompletionRequest
	reply string
	err   error
	calls int
}

func (g *fakeGenerator) ChatCompletion(_ context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &aiinterface.ChatCompletionResponse{Model: "fake-chat", Content: g.reply}, nil
}

func (g *fakeGenerator) GetModel() string        { return "fake-chat" }
func (g *fakeGenerator) GetProviderName() string { return "fake" }

// wordTokenizer 每个空白分隔的词计 1，测试中预算可精确预期
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int { return len(strings.Fields(text)) }
func (wordTokenizer) Name() string                { return "words" }
