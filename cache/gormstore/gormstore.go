// Package gormstore implements cache.Store on a relational database via
// gorm. The similarity scan runs in Go over the tenant's rows, so any gorm
// dialect works; sqlite is the usual choice for single-node deployments.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"llm_proxy/cache"
	"llm_proxy/embedding"
)

type cacheRow struct {
	Seq            uint64 `gorm:"primaryKey;autoIncrement"`
	ID             string `gorm:"uniqueIndex"`
	ProjectID      string `gorm:"index"`
	Prompt         string
	Embedding      []byte
	Response       []byte
	Model          string
	EmbeddingModel string `gorm:"index"`
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
	CostUSD        float64
	DurationMs     int64
	CreatedAt      time.Time
}

func (cacheRow) TableName() string { return "cache_entries" }

// Store implements cache.Store on gorm.
type Store struct {
	db             *gorm.DB
	dimensions     int
	embeddingModel string
}

// New migrates the cache table and returns a store for vectors of the
// given dimension produced by embeddingModel.
func New(db *gorm.DB, dimensions int, embeddingModel string) (*Store, error) {
	if err := db.AutoMigrate(&cacheRow{}); err != nil {
		return nil, fmt.Errorf("fail to migrate cache table: %w", err)
	}
	return &Store{
		db:             db,
		dimensions:     dimensions,
		embeddingModel: embeddingModel,
	}, nil
}

// Lookup implements cache.Store
func (s *Store) Lookup(ctx context.Context, projectID string, query []float32, threshold float32) (*cache.Entry, error) {
	if len(query) != s.dimensions {
		return nil, cache.ErrDimensionMismatch
	}

	var rows []cacheRow
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND embedding_model = ?", projectID, s.embeddingModel).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fail to scan cache rows: %w", err)
	}

	var best *cacheRow
	var bestScore float32
	for i := range rows {
		vec, err := embedding.Unmarshal(rows[i].Embedding)
		if err != nil {
			continue
		}
		score := embedding.Dot(query, vec)
		if score < threshold {
			continue
		}
		if best == nil || score > bestScore {
			best = &rows[i]
			bestScore = score
		}
	}
	if best == nil {
		return nil, nil
	}
	return toEntry(best)
}

// Insert implements cache.Store
func (s *Store) Insert(ctx context.Context, entry *cache.Entry) error {
	if len(entry.Embedding) != s.dimensions {
		return cache.ErrDimensionMismatch
	}

	row := cacheRow{
		ID:             entry.ID,
		ProjectID:      entry.ProjectID,
		Prompt:         entry.Prompt,
		Embedding:      embedding.Marshal(entry.Embedding),
		Response:       entry.Response,
		Model:          entry.Model,
		EmbeddingModel: entry.EmbeddingModel,
		PromptTokens:   entry.PromptTokens,
		ResponseTokens: entry.ResponseTokens,
		TotalTokens:    entry.TotalTokens,
		CostUSD:        entry.CostUSD,
		DurationMs:     entry.DurationMs,
		CreatedAt:      entry.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("fail to insert cache row: %w", err)
	}
	return nil
}

// Purge implements cache.Store
func (s *Store) Purge(ctx context.Context, projectID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&cacheRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("fail to purge cache rows: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func toEntry(row *cacheRow) (*cache.Entry, error) {
	vec, err := embedding.Unmarshal(row.Embedding)
	if err != nil {
		return nil, fmt.Errorf("fail to decode stored embedding: %w", err)
	}
	return &cache.Entry{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		Prompt:         row.Prompt,
		Embedding:      vec,
		Response:       row.Response,
		Model:          row.Model,
		EmbeddingModel: row.EmbeddingModel,
		PromptTokens:   row.PromptTokens,
		ResponseTokens: row.ResponseTokens,
		TotalTokens:    row.TotalTokens,
		CostUSD:        row.CostUSD,
		DurationMs:     row.DurationMs,
		CreatedAt:      row.CreatedAt,
	}, nil
}
