package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"planrag/internal/domain"
	"planrag/internal/rerr"
)

// memoryStore is an in-process Store for tests and the diagnostic/offline
// tooling. Grounded on the teacher's memory_vector.go: a mutex-guarded map
// plus a linear cosine-similarity scan, generalized from the teacher's
// flat (id, vector, metadata) record to the full Chunk shape.
type memoryStore struct {
	mu        sync.RWMutex
	dim       int
	byDocument map[string]map[int]domain.Chunk // documentID -> chunkIndex -> chunk
}

// NewMemory builds an in-memory Store requiring every embedding to have
// dimension dim.
func NewMemory(dim int) Store {
	return &memoryStore{dim: dim, byDocument: make(map[string]map[int]domain.Chunk)}
}

func (m *memoryStore) Dimension() int { return m.dim }

func (m *memoryStore) UpsertChunks(_ context.Context, chunks []domain.Chunk) error {
	for _, c := range chunks {
		if c.Embedding != nil && len(c.Embedding) != m.dim {
			return rerr.New(rerr.KindInvalidInput, "chunk %s embedding dimension %d != store dimension %d", c.ID, len(c.Embedding), m.dim)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		doc, ok := m.byDocument[c.DocumentID]
		if !ok {
			doc = make(map[int]domain.Chunk)
			m.byDocument[c.DocumentID] = doc
		}
		doc[c.ChunkIndex] = c
	}
	return nil
}

func (m *memoryStore) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byDocument, documentID)
	return nil
}

func (m *memoryStore) SimilaritySearch(_ context.Context, vector []float32, k int, filters map[string]string, threshold float64) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		chunk    domain.Chunk
		sim      float64
		distance float64
	}
	var candidates []scored
	for _, byIndex := range m.byDocument {
		for _, c := range byIndex {
			if c.Embedding == nil {
				continue // pending chunk, invisible to retrieval
			}
			if !matchesFilter(c, filters) {
				continue
			}
			dist := cosineDistance(vector, c.Embedding)
			sim := 1 - dist
			if sim <= threshold {
				continue
			}
			candidates = append(candidates, scored{chunk: c, sim: sim, distance: dist})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].chunk.ChunkIndex < candidates[j].chunk.ChunkIndex
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = Result{Chunk: c.chunk, Similarity: c.sim}
	}
	return out, nil
}

func (m *memoryStore) CountChunks(_ context.Context, filter map[string]string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, byIndex := range m.byDocument {
		for _, c := range byIndex {
			if matchesFilter(c, filter) {
				n++
			}
		}
	}
	return n, nil
}

func matchesFilter(c domain.Chunk, filter map[string]string) bool {
	for k, v := range filter {
		if k == "document_id" {
			if c.DocumentID != v {
				return false
			}
			continue
		}
		mv, ok := c.Metadata[k]
		if !ok || fmt.Sprintf("%v", mv) != v {
			return false
		}
	}
	return true
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return 1 - cos
}
