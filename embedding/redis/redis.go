// Package redis caches embedding vectors in Redis so repeated prompts
// produce byte-identical fingerprints without hitting the model again.
package redis

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"llm_proxy/embedding"
)

// Service decorates an embedding.Service with a Redis-backed result cache.
type Service struct {
	inner  embedding.Service
	client *redis.Client
	model  string
	ttl    time.Duration
}

// New creates a caching embedding service. model is the embedding model
// version and becomes part of every key, so vectors from different model
// versions never collide.
func New(inner embedding.Service, client *redis.Client, model string, ttl time.Duration) *Service {
	return &Service{
		inner:  inner,
		client: client,
		model:  model,
		ttl:    ttl,
	}
}

// Get implements embedding.Service
func (s *Service) Get(ctx context.Context, text string) ([]float32, error) {
	key := s.key(text)

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		if vec, derr := embedding.Unmarshal(raw); derr == nil {
			return vec, nil
		}
		// corrupt value, fall through and overwrite
	}

	vec, err := s.inner.Get(ctx, text)
	if err != nil {
		return nil, err
	}

	// best effort: a failed cache write must not fail the embedding
	s.client.Set(ctx, key, embedding.Marshal(vec), s.ttl)

	return vec, nil
}

func (s *Service) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%x", s.model, sum)
}
