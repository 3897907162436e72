package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryBackend 进程内向量存储，暴力计算余弦相似度
// 用于本地开发和测试；同分文档按写入顺序返回。
type MemoryBackend struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

type memoryIndex struct {
	desc  IndexDescriptor
	docs  map[string]*memoryDoc
	order int
}

type memoryDoc struct {
	StoredDocument
	seq int
}

// NewMemoryBackend 创建内存后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{indexes: make(map[string]*memoryIndex)}
}

func (m *MemoryBackend) Name() string           { return "memory" }
func (m *MemoryBackend) ReservedPrefix() string { return "" }

func (m *MemoryBackend) IndexExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[name]
	return ok, nil
}

func (m *MemoryBackend) DescribeIndex(_ context.Context, name string) (*IndexDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	desc := idx.desc
	return &desc, nil
}

func (m *MemoryBackend) CreateIndex(_ context.Context, desc IndexDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[desc.Name]; ok {
		return fmt.Errorf("%w: %s", ErrIndexAlreadyExists, desc.Name)
	}
	m.indexes[desc.Name] = &memoryIndex{desc: desc, docs: make(map[string]*memoryDoc)}
	return nil
}

func (m *MemoryBackend) DeleteIndex(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	delete(m.indexes, name)
	return nil
}

func (m *MemoryBackend) ListIndexes(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	return names, nil
}

func (m *MemoryBackend) DocumentExists(_ context.Context, index, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[index]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	_, exists := idx.docs[id]
	return exists, nil
}

func (m *MemoryBackend) PutDocument(_ context.Context, index string, doc StoredDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[index]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}

	vec := make([]float32, len(doc.Embedding))
	copy(vec, doc.Embedding)
	doc.Embedding = vec

	// 覆盖时替换为新节点，保留首次写入序号；已取出的旧节点不再被修改
	if existing, ok := idx.docs[doc.ID]; ok {
		idx.docs[doc.ID] = &memoryDoc{StoredDocument: doc, seq: existing.seq}
		return nil
	}
	idx.docs[doc.ID] = &memoryDoc{StoredDocument: doc, seq: idx.order}
	idx.order++
	return nil
}

func (m *MemoryBackend) Search(_ context.Context, index string, query []float32, topK int) ([]SearchHit, error) {
	type scored struct {
		hit SearchHit
		seq int
	}

	m.mu.RLock()
	idx, ok := m.indexes[index]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	all := make([]scored, 0, len(idx.docs))
	for _, d := range idx.docs {
		all = append(all, scored{
			hit: SearchHit{ID: d.ID, Text: d.Text, Score: cosineSimilarity(query, d.Embedding) + 1.0},
			seq: d.seq,
		})
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	sort.SliceStable(all, func(i, j int) bool { return all[i].hit.Score > all[j].hit.Score })

	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	hits := make([]SearchHit, len(all))
	for i, s := range all {
		hits[i] = s.hit
	}
	return hits, nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }
func (m *MemoryBackend) Close() error               { return nil }

// cosineSimilarity 余弦相似度；零向量返回 0
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
