package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQdrantCollection struct {
	size   int
	points map[string]qdrantPoint
	order  []string
}

// fakeQdrant 模拟 Qdrant 集合与点的 REST 接口，搜索返回原始余弦值 [-1, 1]
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]*fakeQdrantCollection
	apiKeys     []string
	unavailable bool
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{collections: make(map[string]*fakeQdrantCollection)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeQdrant) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	if f.unavailable {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": map[string]any{"error": "service unavailable"}})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case parts[0] == "readyz":
		w.WriteHeader(http.StatusOK)
	case len(parts) == 1 && parts[0] == "collections":
		list := make([]map[string]any, 0, len(f.collections))
		for name := range f.collections {
			list = append(list, map[string]any{"name": name})
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"collections": list}, "status": "ok"})
	case len(parts) == 2:
		f.serveCollection(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "points":
		f.servePoints(w, r, parts[1])
	case len(parts) == 4 && parts[3] == "search":
		f.serveSearch(w, r, parts[1])
	case len(parts) == 4:
		f.servePoint(w, parts[1], parts[3])
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"status": map[string]any{"error": "unknown route"}})
	}
}

func notFoundCollection(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusNotFound, map[string]any{"status": map[string]any{"error": "Not found: Collection `" + name + "` doesn't exist!"}})
}

func (f *fakeQdrant) serveCollection(w http.ResponseWriter, r *http.Request, name string) {
	c, exists := f.collections[name]
	switch r.Method {
	case http.MethodGet:
		if !exists {
			notFoundCollection(w, name)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"result": map[string]any{"config": map[string]any{"params": map[string]any{
				"vectors": map[string]any{"size": c.size, "distance": "Cosine"},
			}}},
		})
	case http.MethodPut:
		if exists {
			writeJSON(w, http.StatusConflict, map[string]any{"status": map[string]any{"error": "Wrong input: Collection `" + name + "` already exists!"}})
			return
		}
		var req createCollectionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.collections[name] = &fakeQdrantCollection{size: req.Vectors.Size, points: make(map[string]qdrantPoint)}
		writeJSON(w, http.StatusOK, map[string]any{"result": true, "status": "ok"})
	case http.MethodDelete:
		delete(f.collections, name)
		writeJSON(w, http.StatusOK, map[string]any{"result": exists, "status": "ok"})
	}
}

func (f *fakeQdrant) servePoints(w http.ResponseWriter, r *http.Request, name string) {
	c, ok := f.collections[name]
	if !ok {
		notFoundCollection(w, name)
		return
	}
	var req upsertPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": map[string]any{"error": err.Error()}})
		return
	}
	for _, p := range req.Points {
		if len(p.Vector) != c.size {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": map[string]any{"error": "Wrong input: Vector dimension error"}})
			return
		}
		if _, found := c.points[p.ID]; !found {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = p
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"status": "completed"}, "status": "ok"})
}

func (f *fakeQdrant) servePoint(w http.ResponseWriter, name, id string) {
	c, ok := f.collections[name]
	if !ok {
		notFoundCollection(w, name)
		return
	}
	p, found := c.points[id]
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"status": map[string]any{"error": "Not found: Point with id " + id + " does not exists!"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"id": p.ID, "payload": p.Payload}, "status": "ok"})
}

func (f *fakeQdrant) serveSearch(w http.ResponseWriter, r *http.Request, name string) {
	c, ok := f.collections[name]
	if !ok {
		notFoundCollection(w, name)
		return
	}
	var req searchRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	results := make([]map[string]any, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		results = append(results, map[string]any{"id": id, "score": cosineSimilarity(req.Vector, p.Vector), "payload": p.Payload})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i]["score"].(float64) > results[j]["score"].(float64) })
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": results, "status": "ok"})
}

func (f *fakeQdrant) setUnavailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = v
}

func (f *fakeQdrant) lastAPIKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.apiKeys) == 0 {
		return ""
	}
	return f.apiKeys[len(f.apiKeys)-1]
}

func newQdrantGateway(t *testing.T) (*Gateway, *QdrantBackend, *fakeQdrant) {
	t.Helper()
	fake, srv := newFakeQdrant(t)
	backend, err := NewQdrantBackend(QdrantOptions{Endpoint: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)
	return NewGateway(backend), backend, fake
}

func TestQdrantBackendLifecycle(t *testing.T) {
	ctx := context.Background()
	gw, backend, fake := newQdrantGateway(t)

	require.NoError(t, gw.Ping(ctx))
	assert.Equal(t, "secret", fake.lastAPIKey())

	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 3}))
	desc, err := gw.DescribeIndex(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, IndexDescriptor{Name: "docs", Dimensions: 3, Metric: MetricCosine}, *desc)

	require.ErrorIs(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 3}), ErrIndexAlreadyExists)
	require.ErrorIs(t, backend.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 3}), ErrIndexAlreadyExists)

	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "archive", Dimensions: 3}))
	names, err := gw.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "docs"}, names)

	require.NoError(t, gw.DeleteIndex(ctx, "archive"))
	require.ErrorIs(t, backend.DeleteIndex(ctx, "archive"), ErrIndexNotFound)

	_, err = backend.DescribeIndex(ctx, "archive")
	require.ErrorIs(t, err, ErrIndexNotFound)
}

func TestQdrantBackendUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	gw, backend, _ := newQdrantGateway(t)
	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 2}))

	for _, doc := range []StoredDocument{
		{Text: "east", Embedding: []float32{1, 0}},
		{Text: "north", Embedding: []float32{0, 1}},
		{Text: "west", Embedding: []float32{-1, 0}},
	} {
		outcome, err := gw.Upsert(ctx, "docs", doc, false)
		require.NoError(t, err)
		assert.Equal(t, UpsertWritten, outcome)
	}

	outcome, err := gw.Upsert(ctx, "docs", StoredDocument{Text: "east", Embedding: []float32{1, 0}}, false)
	require.NoError(t, err)
	assert.Equal(t, UpsertSkipped, outcome)

	exists, err := backend.DocumentExists(ctx, "docs", Fingerprint("north"))
	require.NoError(t, err)
	assert.True(t, exists)

	hits, err := gw.SimilaritySearch(ctx, "docs", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "east", hits[0].Text)
	assert.Equal(t, Fingerprint("east"), hits[0].ID, "fingerprint is restored from payload")
	assert.InDelta(t, 2.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 1.0, hits[1].Score, 1e-6)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
}

func TestQdrantBackendErrors(t *testing.T) {
	ctx := context.Background()
	gw, backend, fake := newQdrantGateway(t)
	require.NoError(t, gw.CreateIndex(ctx, IndexDescriptor{Name: "docs", Dimensions: 2}))

	_, err := backend.Search(ctx, "ghost", []float32{1, 0}, 3)
	require.ErrorIs(t, err, ErrIndexNotFound)

	fake.setUnavailable(true)
	_, err = gw.SimilaritySearch(ctx, "docs", []float32{1, 0}, 3)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = NewQdrantBackend(QdrantOptions{Endpoint: "  "})
	require.Error(t, err)
}

func TestPointIDDeterministic(t *testing.T) {
	fp := Fingerprint("hello")
	assert.Equal(t, pointID(fp), pointID(fp))
	assert.NotEqual(t, pointID(fp), pointID(Fingerprint("world")))
	assert.Len(t, pointID(fp), 36)
}
