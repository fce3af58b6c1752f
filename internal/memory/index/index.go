// Package index provides the optional vector index behind episodic
// retrieval. The memory bank works without one; when present, an index adds
// embedding-based similarity on top of keyword matching.
package index

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Hit is a single nearest-neighbor result.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]string
}

// Index stores embedding vectors keyed by record id.
type Index interface {
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]string) error
	Search(ctx context.Context, vector []float32, limit int) ([]Hit, error)
	Delete(ctx context.Context, id string) error
}

type entry struct {
	vector  []float32
	payload map[string]string
}

// MemoryIndex is the in-process implementation: exact cosine search over a
// mutex-guarded map. Fine for the sizes a single agent accumulates.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryIndex creates an empty in-process index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]entry)}
}

func (m *MemoryIndex) Upsert(_ context.Context, id string, vector []float32, payload map[string]string) error {
	v := make([]float32, len(vector))
	copy(v, vector)
	m.mu.Lock()
	m.entries[id] = entry{vector: v, payload: payload}
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float32, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.entries))
	for id, e := range m.entries {
		score := cosine(vector, e.vector)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Payload: e.payload})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
