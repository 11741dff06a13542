package requestlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestLog(t *testing.T) *GormLog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	log, err := NewGormLog(db)
	require.NoError(t, err)
	return log
}

func testEntry(projectID string, tokens int, cost float64, hit bool) *Entry {
	return &Entry{
		ID:               uuid.New().String(),
		ProjectID:        projectID,
		CustomerEndpoint: "/chat",
		UpstreamEndpoint: "https://api.openai.com/v1/chat/completions",
		Model:            "gpt-3.5-turbo",
		Prompt:           "Summarize X",
		Response:         json.RawMessage(`{"choices":[]}`),
		TotalTokens:      tokens,
		CostUSD:          cost,
		DurationMs:       42,
		Status:           200,
		CacheHit:         hit,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestAppendAndTotals(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, testEntry("proj-1", 15, 0.00003, false)))
	require.NoError(t, log.Append(ctx, testEntry("proj-1", 0, 0, true)))
	require.NoError(t, log.Append(ctx, testEntry("proj-2", 100, 0.0002, false)))

	totals, err := log.ProjectTotals(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Requests)
	assert.Equal(t, int64(1), totals.CacheHits)
	assert.Equal(t, int64(15), totals.TotalTokens)
	assert.InDelta(t, 0.00003, totals.CostUSD, 1e-12)
}

func TestTotalsEmptyProject(t *testing.T) {
	log := newTestLog(t)

	totals, err := log.ProjectTotals(context.Background(), "proj-ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.Requests)
	assert.Equal(t, int64(0), totals.TotalTokens)
	assert.Equal(t, 0.0, totals.CostUSD)
}
