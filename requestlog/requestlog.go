// Package requestlog records every proxied call. The log is append-only;
// nothing in the proxy ever mutates or deletes an entry.
package requestlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Entry is one proxied call, cache hit or not. CacheHit entries carry zero
// cost because no upstream spend happened.
type Entry struct {
	ID               string
	ProjectID        string
	CustomerEndpoint string
	UpstreamEndpoint string
	Model            string
	Prompt           string
	Response         json.RawMessage
	PromptTokens     int
	ResponseTokens   int
	TotalTokens      int
	CostUSD          float64
	DurationMs       int64
	Status           int
	CacheHit         bool
	CreatedAt        time.Time
}

// Log defines the append-only request log interface.
type Log interface {
	Append(ctx context.Context, entry *Entry) error
}

type logRow struct {
	ID               string `gorm:"primaryKey"`
	ProjectID        string `gorm:"index"`
	CustomerEndpoint string
	UpstreamEndpoint string
	Model            string
	Prompt           string
	Response         []byte
	PromptTokens     int
	ResponseTokens   int
	TotalTokens      int
	CostUSD          float64
	DurationMs       int64
	Status           int
	CacheHit         bool
	CreatedAt        time.Time `gorm:"index"`
}

func (logRow) TableName() string { return "request_log" }

// GormLog implements Log on a relational database.
type GormLog struct {
	db *gorm.DB
}

// NewGormLog migrates the request_log table and returns the log.
func NewGormLog(db *gorm.DB) (*GormLog, error) {
	if err := db.AutoMigrate(&logRow{}); err != nil {
		return nil, fmt.Errorf("fail to migrate request log table: %w", err)
	}
	return &GormLog{db: db}, nil
}

// Append implements Log
func (l *GormLog) Append(ctx context.Context, entry *Entry) error {
	row := logRow{
		ID:               entry.ID,
		ProjectID:        entry.ProjectID,
		CustomerEndpoint: entry.CustomerEndpoint,
		UpstreamEndpoint: entry.UpstreamEndpoint,
		Model:            entry.Model,
		Prompt:           entry.Prompt,
		Response:         entry.Response,
		PromptTokens:     entry.PromptTokens,
		ResponseTokens:   entry.ResponseTokens,
		TotalTokens:      entry.TotalTokens,
		CostUSD:          entry.CostUSD,
		DurationMs:       entry.DurationMs,
		Status:           entry.Status,
		CacheHit:         entry.CacheHit,
		CreatedAt:        entry.CreatedAt,
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("fail to append request log entry: %w", err)
	}
	return nil
}

// Totals is the per-tenant aggregate the analytics consumer reads.
type Totals struct {
	Requests    int64   `json:"requests"`
	CacheHits   int64   `json:"cacheHits"`
	TotalTokens int64   `json:"totalTokens"`
	CostUSD     float64 `json:"costUSD"`
}

// ProjectTotals sums requests, cache hits, tokens, and spend for a tenant.
func (l *GormLog) ProjectTotals(ctx context.Context, projectID string) (Totals, error) {
	var totals Totals
	err := l.db.WithContext(ctx).
		Model(&logRow{}).
		Select("COUNT(*) AS requests, " +
			"COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0) AS cache_hits, " +
			"COALESCE(SUM(total_tokens), 0) AS total_tokens, " +
			"COALESCE(SUM(cost_usd), 0) AS cost_usd").
		Where("project_id = ?", projectID).
		Scan(&totals).Error
	if err != nil {
		return Totals{}, fmt.Errorf("fail to aggregate request log: %w", err)
	}
	return totals, nil
}
