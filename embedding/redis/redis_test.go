package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingService struct {
	calls int32
	vec   []float32
}

func (s *countingService) Get(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.vec, nil
}

func newTestService(t *testing.T, inner *countingService) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return New(inner, client, "text-embedding-3-small", time.Hour)
}

func TestGetCachesVector(t *testing.T) {
	inner := &countingService{vec: []float32{0.6, 0.8}}
	svc := newTestService(t, inner)

	first, err := svc.Get(context.Background(), "summarize x")
	require.NoError(t, err)

	second, err := svc.Get(context.Background(), "summarize x")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestGetDistinctPromptsDistinctKeys(t *testing.T) {
	inner := &countingService{vec: []float32{1, 0}}
	svc := newTestService(t, inner)

	_, err := svc.Get(context.Background(), "prompt a")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "prompt b")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestGetSurvivesDeadRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	inner := &countingService{vec: []float32{1, 0}}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	svc := New(inner, client, "text-embedding-3-small", time.Hour)

	mr.Close()

	vec, err := svc.Get(context.Background(), "summarize x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}
