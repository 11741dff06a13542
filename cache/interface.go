package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrDimensionMismatch means a query vector's length differs from the
// dimension the store was configured with. Vectors from different embedding
// model versions are not comparable, so this is an error rather than a
// low similarity score.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Entry is one cached prompt/response pair. Entries are immutable once
// inserted; the only bulk mutation is a per-tenant Purge.
type Entry struct {
	ID             string
	ProjectID      string
	Prompt         string
	Embedding      []float32
	Response       json.RawMessage
	Model          string
	EmbeddingModel string
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
	CostUSD        float64
	DurationMs     int64
	CreatedAt      time.Time
}

// Store defines the interface for the per-tenant semantic cache.
//
// Lookup returns the highest-scoring entry for projectID whose cosine
// similarity to query is >= threshold, or nil when no entry qualifies.
// Entries belonging to other tenants or recorded under a different
// embedding model version are never returned. When several entries share
// the maximum score the earliest-inserted one wins, so repeated identical
// queries against an unchanged store are stable.
type Store interface {
	Lookup(ctx context.Context, projectID string, query []float32, threshold float32) (*Entry, error)
	Insert(ctx context.Context, entry *Entry) error
	Purge(ctx context.Context, projectID string) (int64, error)
}
