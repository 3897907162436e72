package rag

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryGateway(t *testing.T) (*Gateway, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	return NewGateway(backend), backend
}

func TestGatewayIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	gw, backend := newMemoryGateway(t)

	t.Run("创建索引", func(t *testing.T) {
		require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 3}))
		exists, err := gw.IndexExists(ctx, "docs")
		require.NoError(t, err)
		assert.True(t, exists)

		desc, err := gw.DescribeIndex(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 3, desc.Dimensions)
		assert.Equal(t, MetricCosine, desc.Metric)
	})

	t.Run("重复创建返回已存在", func(t *testing.T) {
		err := gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 3})
		require.ErrorIs(t, err, ErrIndexAlreadyExists)
	})

	t.Run("非法参数", func(t *testing.T) {
		require.ErrorIs(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "", Dimensions: 3}), ErrInvalidRequest)
		require.ErrorIs(t, gw.CreateIndex(ctx, IndexDescriptor{Name: ".hidden", Dimensions: 3}), ErrInvalidRequest)
		require.ErrorIs(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "zero", Dimensions: 0}), ErrInvalidRequest)
		require.ErrorIs(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "l2", Dimensions: 3, Metric: "l2"}), ErrInvalidRequest)
	})

	t.Run("列表过滤保留索引", func(t *testing.T) {
		require.NoError(t, backend.CreateIndex(ctx, IndexDescriptor{Name: ".internal", Dimensions: 3, Metric: MetricCosine}))
		require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "archive", Dimensions: 8}))

		names, err := gw.ListIndexes(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"archive", "docs"}, names)
	})

	t.Run("删除索引", func(t *testing.T) {
		require.NoError(t, gw.DeleteIndex(ctx, "archive"))
		require.ErrorIs(t, gw.DeleteIndex(ctx, "archive"), ErrIndexNotFound)

		exists, err := gw.IndexExists(ctx, "archive")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestGatewayUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	gw, backend := newMemoryGateway(t)
	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 3}))

	doc := StoredDocument{Text: "hello world", Embedding: []float32{1, 0, 0}}

	outcome, err := gw.Upsert(ctx, "docs", doc, false)
	require.NoError(t, err)
	assert.Equal(t, UpsertWritten, outcome)

	outcome, err = gw.Upsert(ctx, "docs", doc, false)
	require.NoError(t, err)
	assert.Equal(t, UpsertSkipped, outcome)

	outcome, err = gw.Upsert(ctx, "docs", doc, true)
	require.NoError(t, err)
	assert.Equal(t, UpsertWritten, outcome)

	exists, err := backend.DocumentExists(ctx, "docs", Fingerprint("hello world"))
	require.NoError(t, err)
	assert.True(t, exists)

	hits, err := gw.SimilaritySearch(ctx, "docs", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestGatewayDimensionGuard(t *testing.T) {
	ctx := context.Background()
	gw, backend := newMemoryGateway(t)
	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "small", Dimensions: 384}))

	doc := StoredDocument{ID: "fp", Text: "too wide", Embedding: make([]float32, 768)}
	doc.Embedding[0] = 1

	_, err := gw.Upsert(ctx, "small", doc, false)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = gw.Upsert(ctx, "small", doc, true)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	exists, err := backend.DocumentExists(ctx, "small", "fp")
	require.NoError(t, err)
	assert.False(t, exists, "mismatched vector must not be stored")

	_, err = gw.SimilaritySearch(ctx, "small", make([]float32, 768), 5)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGatewaySimilaritySearchOrdering(t *testing.T) {
	ctx := context.Background()
	gw, _ := newMemoryGateway(t)
	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 2}))

	vectors := map[string][]float32{
		"east":      {1, 0},
		"northeast": {1, 1},
		"north":     {0, 1},
		"west":      {-1, 0},
		"southwest": {-1, -1},
	}
	for text, vec := range vectors {
		_, err := gw.Upsert(ctx, "docs", StoredDocument{Text: text, Embedding: vec}, false)
		require.NoError(t, err)
	}

	hits, err := gw.SimilaritySearch(ctx, "docs", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, len(vectors))

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score, "scores must be non-increasing")
	}
	assert.Equal(t, "east", hits[0].Text)
	assert.InDelta(t, 2.0, hits[0].Score, 1e-6)
	assert.Equal(t, "west", hits[len(hits)-1].Text)
	assert.InDelta(t, 0.0, hits[len(hits)-1].Score, 1e-6)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.Equal(t, Fingerprint(h.Text), h.ID)
	}

	top, err := gw.SimilaritySearch(ctx, "docs", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, []string{"east", "northeast"}, []string{top[0].Text, top[1].Text})
}

func TestGatewayMissingIndex(t *testing.T) {
	ctx := context.Background()
	gw, _ := newMemoryGateway(t)

	_, err := gw.SimilaritySearch(ctx, "ghost", []float32{1}, 3)
	require.ErrorIs(t, err, ErrIndexNotFound)

	_, err = gw.Upsert(ctx, "ghost", StoredDocument{Text: "x", Embedding: []float32{1}}, false)
	require.ErrorIs(t, err, ErrIndexNotFound)

	exists, err := gw.IndexExists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

// stalledBackend 所有操作阻塞到上下文结束
type stalledBackend struct {
	*MemoryBackend
}

func (b stalledBackend) IndexExists(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (b stalledBackend) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestGatewayOperationTimeout(t *testing.T) {
	gw := NewGateway(stalledBackend{NewMemoryBackend()}, WithOperationTimeout(30*time.Millisecond))

	start := time.Now()
	_, err := gw.IndexExists(context.Background(), "docs")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, CodeStoreUnavailable, ErrorKind(err))
	assert.Less(t, time.Since(start), time.Second)

	require.ErrorIs(t, gw.Ping(context.Background()), ErrStoreUnavailable)

	t.Run("调用方取消不视为存储故障", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := gw.IndexExists(ctx, "docs")
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestMemoryBackendConcurrentOverwrite(t *testing.T) {
	ctx := context.Background()
	gw, backend := newMemoryGateway(t)
	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 2}))
	require.NoError(t, backend.PutDocument(ctx, "docs", StoredDocument{ID: "a", Text: "first", Embedding: []float32{1, 0}}))
	require.NoError(t, backend.PutDocument(ctx, "docs", StoredDocument{ID: "b", Text: "second", Embedding: []float32{0, 1}}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = backend.PutDocument(ctx, "docs", StoredDocument{ID: "a", Text: fmt.Sprintf("v%d", i), Embedding: []float32{1, float32(i)}})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = backend.Search(ctx, "docs", []float32{1, 0}, 2)
		}()
	}
	wg.Wait()

	// 覆盖写入不改变首次写入序号，同分时仍按写入顺序
	require.NoError(t, backend.PutDocument(ctx, "docs", StoredDocument{ID: "a", Text: "same", Embedding: []float32{1, 1}}))
	require.NoError(t, backend.PutDocument(ctx, "docs", StoredDocument{ID: "b", Text: "same", Embedding: []float32{1, 1}}))
	hits, err := backend.Search(ctx, "docs", []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
}
