// Package memory implements cache.Store as an exact brute-force scan over
// in-process entries. Per-tenant cache sizes in this domain stay small, so
// an O(n) scan beats the upkeep of an index.
package memory

import (
	"context"
	"sync"

	"llm_proxy/cache"
	"llm_proxy/embedding"
)

// Store implements cache.Store in memory.
type Store struct {
	mu             sync.RWMutex
	entries        map[string][]*cache.Entry // projectID -> insertion-ordered entries
	dimensions     int
	embeddingModel string
}

// New creates an in-memory store for vectors of the given dimension
// produced by embeddingModel.
func New(dimensions int, embeddingModel string) *Store {
	return &Store{
		entries:        make(map[string][]*cache.Entry),
		dimensions:     dimensions,
		embeddingModel: embeddingModel,
	}
}

// Lookup implements cache.Store
func (s *Store) Lookup(ctx context.Context, projectID string, query []float32, threshold float32) (*cache.Entry, error) {
	if len(query) != s.dimensions {
		return nil, cache.ErrDimensionMismatch
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *cache.Entry
	var bestScore float32
	for _, entry := range s.entries[projectID] {
		if entry.EmbeddingModel != s.embeddingModel {
			continue
		}
		score := embedding.Dot(query, entry.Embedding)
		if score < threshold {
			continue
		}
		// strict > keeps the earliest-inserted entry on ties
		if best == nil || score > bestScore {
			best = entry
			bestScore = score
		}
	}
	return best, nil
}

// Insert implements cache.Store
func (s *Store) Insert(ctx context.Context, entry *cache.Entry) error {
	if len(entry.Embedding) != s.dimensions {
		return cache.ErrDimensionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ProjectID] = append(s.entries[entry.ProjectID], entry)
	return nil
}

// Purge implements cache.Store
func (s *Store) Purge(ctx context.Context, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.entries[projectID]))
	delete(s.entries, projectID)
	return removed, nil
}
