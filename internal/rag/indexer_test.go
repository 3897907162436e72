package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ragservice/pkg/aiinterface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexerFixture struct {
	gateway  *Gateway
	backend  *MemoryBackend
	embedder *keywordEmbedder
	indexer  *Indexer
}

func newIndexerFixture(t *testing.T, maxTokens int) *indexerFixture {
	t.Helper()
	backend := NewMemoryBackend()
	gw := NewGateway(backend)
	embedder := newKeywordEmbedder()

	ix, err := NewIndexer(gw, embedder, NewChunker(maxTokens, StrategyTokens, wordTokenizer{}), WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(ix.Close)

	require.NoError(t, gw.CreateIndex(context.Background(), IndexDescriptor{Name: "docs", Dimensions: 3}))
	return &indexerFixture{gateway: gw, backend: backend, embedder: embedder, indexer: ix}
}

func (f *indexerFixture) count(t *testing.T) int {
	t.Helper()
	hits, err := f.gateway.SimilaritySearch(context.Background(), "docs", []float32{1, 1, 1}, 1000)
	require.NoError(t, err)
	return len(hits)
}

func TestIndexDocumentIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t, 8)
	text := "Paris is the capital of France. It is a city of art."

	first, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: text})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 2, first.Written)
	assert.Equal(t, 2, first.Succeeded)
	assert.Equal(t, 0, first.Failed)
	countAfterFirst := f.count(t)

	second, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: text})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Written)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 2, second.Succeeded)
	assert.Equal(t, countAfterFirst, f.count(t))

	forced, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: text, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Written)
	assert.Equal(t, countAfterFirst, f.count(t))
}

func TestIndexDocumentPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t, 2)
	f.embedder.failOn("Beta", aiinterface.NewUnavailableError("fake", 503, "embedding service down", nil))

	report, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: "Alpha one. Beta two. Gamma three."})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Position)
	assert.Equal(t, CodeProviderUnavailable, report.Failures[0].Code)
	assert.Equal(t, Fingerprint("Beta two."), report.Failures[0].Fingerprint)
	assert.True(t, report.Retryable())
	assert.False(t, report.AllFailed())

	for _, text := range []string{"Alpha one.", "Gamma three."} {
		exists, err := f.backend.DocumentExists(ctx, "docs", Fingerprint(text))
		require.NoError(t, err)
		assert.True(t, exists, "%q should be retrievable", text)
	}
	exists, err := f.backend.DocumentExists(ctx, "docs", Fingerprint("Beta two."))
	require.NoError(t, err)
	assert.False(t, exists)

	hits, err := f.gateway.SimilaritySearch(ctx, "docs", []float32{0, 0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestIndexDocumentInvalidProviderResponse(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t, 256)
	f.embedder.failOn("", aiinterface.NewInvalidResponseError("fake", 200, "missing embedding", nil))

	report, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: "Only one chunk here."})
	require.NoError(t, err)
	assert.True(t, report.AllFailed())
	assert.False(t, report.Retryable())
	assert.Equal(t, CodeProviderResponseInvalid, report.Failures[0].Code)
}

func TestIndexDocumentDuplicateChunks(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t, 3)

	report, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: "Same sentence here. Same sentence here. Different one."})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 3, report.Succeeded)
	assert.EqualValues(t, 2, f.embedder.calls.Load(), "duplicate chunk must be embedded once")
}

func TestIndexDocumentDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t, 256)
	require.NoError(t, f.gateway.CreateIndex(ctx, IndexDescriptor{Name: "wide", Dimensions: 768}))

	report, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "wide", Text: "Three dimensional vectors only."})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, CodeDimensionMismatch, report.Failures[0].Code)
}

func TestIndexDocumentRequestErrors(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t, 256)

	_, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "missing", Text: "text"})
	require.ErrorIs(t, err, ErrIndexNotFound)

	_, err = f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: " \x00\t "})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "", Text: "text"})
	require.ErrorIs(t, err, ErrInvalidRequest)

	assert.EqualValues(t, 0, f.embedder.calls.Load())
}

func TestIndexDocumentCanceled(t *testing.T) {
	f := newIndexerFixture(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.indexer.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: "Alpha one. Beta two."})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestIndexFile(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t, 8)

	t.Run("纯文本", func(t *testing.T) {
		report, err := f.indexer.IndexFile(ctx, FileRequest{
			IndexName:   "docs",
			FileName:    "notes.txt",
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte("Paris is the capital\nof France.\r\n\r\nIt is a city\tof art.\n"),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded)

		// 换行与制表符作为词间分隔保留下来
		for _, text := range []string{"Paris is the capital of France.", "It is a city of art."} {
			ok, err := f.backend.DocumentExists(ctx, "docs", Fingerprint(text))
			require.NoError(t, err)
			assert.True(t, ok, text)
		}
	})

	t.Run("不支持的类型", func(t *testing.T) {
		_, err := f.indexer.IndexFile(ctx, FileRequest{
			IndexName:   "docs",
			FileName:    "image.png",
			ContentType: "image/png",
			Data:        []byte{0x89, 'P', 'N', 'G'},
		})
		require.ErrorIs(t, err, ErrUnsupportedContentType)
		assert.Equal(t, CodeUnsupportedContentType, ErrorKind(err))
	})

	t.Run("索引不存在", func(t *testing.T) {
		_, err := f.indexer.IndexFile(ctx, FileRequest{
			IndexName:   "ghost",
			FileName:    "notes.txt",
			ContentType: "text/plain",
			Data:        []byte("text"),
		})
		require.ErrorIs(t, err, ErrIndexNotFound)
	})
}

// panickyEmbedder 文本含 trigger 时 panic
type panickyEmbedder struct {
	*keywordEmbedder
	trigger string
}

func (e panickyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, e.trigger) {
		panic("embedder exploded")
	}
	return e.keywordEmbedder.Embed(ctx, text)
}

func TestIndexDocumentChunkPanic(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(NewMemoryBackend())
	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 3}))

	ix, err := NewIndexer(gw, panickyEmbedder{newKeywordEmbedder(), "Beta"},
		NewChunker(3, StrategySentence, wordTokenizer{}), WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(ix.Close)

	report, err := ix.IndexDocument(ctx, IndexRequest{IndexName: "docs", Text: "Alpha one. Beta two. Gamma three."})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Position)
	assert.Equal(t, CodeInternal, report.Failures[0].Code)
}
