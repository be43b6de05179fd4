package main

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"sync"
)

// EmbeddingStore holds one fixed-dimensionality vector per item, cached in
// memory and persisted through the embeddings table. All methods are safe
// for concurrent use.
type EmbeddingStore struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float64
	db        *sql.DB // nil in tests that only need the in-memory map
}

func NewEmbeddingStore(db *sql.DB, dimension int) (*EmbeddingStore, error) {
	store := &EmbeddingStore{
		dimension: dimension,
		vectors:   make(map[string][]float64),
		db:        db,
	}
	if db != nil {
		loaded, err := LoadAllEmbeddings(db)
		if err != nil {
			return nil, fmt.Errorf("load embeddings: %w", err)
		}
		store.vectors = loaded
	}
	return store, nil
}

func (s *EmbeddingStore) Put(itemID string, vector []float64) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("embedding for %s has dimension %d, want %d", itemID, len(vector), s.dimension)
	}
	if s.db != nil {
		if err := PutEmbeddingRow(s.db, itemID, vector); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.vectors[itemID] = vector
	s.mu.Unlock()
	return nil
}

func (s *EmbeddingStore) Get(itemID string) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.vectors[itemID]
	return vec, ok
}

func (s *EmbeddingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Similarity returns the cosine similarity between the stored vectors of
// two items, or 0 when either vector is missing.
func (s *EmbeddingStore) Similarity(itemA, itemB string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, okA := s.vectors[itemA]
	b, okB := s.vectors[itemB]
	if !okA || !okB {
		return 0
	}
	return CosineSimilarity(a, b)
}

type ScoredNeighbor struct {
	ItemID     string
	Similarity float64
}

// Nearest returns up to k stored items most similar to the query vector,
// descending, keeping only those at or above the floor.
func (s *EmbeddingStore) Nearest(query []float64, k int, floor float64) []ScoredNeighbor {
	if k <= 0 || len(query) == 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ScoredNeighbor
	for itemID, vec := range s.vectors {
		sim := CosineSimilarity(query, vec)
		if sim >= floor {
			out = append(out, ScoredNeighbor{ItemID: itemID, Similarity: sim})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Similarity != out[b].Similarity {
			return out[a].Similarity > out[b].Similarity
		}
		return out[a].ItemID < out[b].ItemID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between two dense
// vectors. Mismatched lengths score 0 rather than failing, so one malformed
// embedding cannot abort a batch comparison.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
