// Package qdrant implements cache.Store on a Qdrant collection. The tenant
// and embedding-model filters are pushed down as payload conditions and the
// similarity threshold as a score threshold, so the top hit Qdrant returns
// is the same entry an exact scan would pick.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"llm_proxy/cache"
)

// Store implements cache.Store using Qdrant as the backend
type Store struct {
	client         *qdrant.Client
	collectionName string
	dimensions     int
	embeddingModel string
	logger         *zap.Logger
}

// New creates a Qdrant-backed cache store, creating the collection when it
// does not exist yet.
func New(host string, port int, collectionName string, dimensions int, embeddingModel string, logger *zap.Logger) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("fail to create qdrant client: %w", err)
	}

	s := &Store{
		client:         client,
		collectionName: collectionName,
		dimensions:     dimensions,
		embeddingModel: embeddingModel,
		logger:         logger,
	}
	if err := s.createCollection(); err != nil {
		return nil, fmt.Errorf("fail to create qdrant collection: %w", err)
	}
	return s, nil
}

// Lookup implements cache.Store
func (s *Store) Lookup(ctx context.Context, projectID string, query []float32, threshold float32) (*cache.Entry, error) {
	if len(query) != s.dimensions {
		return nil, cache.ErrDimensionMismatch
	}

	limit := uint64(1)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQueryDense(query),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("project_id", projectID),
				qdrant.NewMatch("embedding_model", s.embeddingModel),
			},
		},
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
		ScoreThreshold: qdrant.PtrOf(threshold),
	})
	if err != nil {
		return nil, fmt.Errorf("fail to search qdrant: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	entry, err := s.toEntry(results[0])
	if err != nil {
		return nil, err
	}
	s.logger.Debug("qdrant cache hit",
		zap.String("project_id", projectID),
		zap.String("entry_id", entry.ID),
		zap.Float32("score", results[0].Score))
	return entry, nil
}

// Insert implements cache.Store
func (s *Store) Insert(ctx context.Context, entry *cache.Entry) error {
	if len(entry.Embedding) != s.dimensions {
		return cache.ErrDimensionMismatch
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(entry.ID),
				Vectors: qdrant.NewVectorsDense(entry.Embedding),
				Payload: qdrant.NewValueMap(map[string]any{
					"project_id":      entry.ProjectID,
					"prompt":          entry.Prompt,
					"response":        string(entry.Response),
					"model":           entry.Model,
					"embedding_model": entry.EmbeddingModel,
					"prompt_tokens":   entry.PromptTokens,
					"response_tokens": entry.ResponseTokens,
					"total_tokens":    entry.TotalTokens,
					"cost_usd":        entry.CostUSD,
					"duration_ms":     entry.DurationMs,
					"created_at":      entry.CreatedAt.Unix(),
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("fail to store qdrant point: %w", err)
	}
	return nil
}

// Purge implements cache.Store. Count-then-delete is not atomic; entries
// inserted between the two calls survive the purge and are counted next
// time.
func (s *Store) Purge(ctx context.Context, projectID string) (int64, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("project_id", projectID),
		},
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collectionName,
		Filter:         filter,
	})
	if err != nil {
		return 0, fmt.Errorf("fail to count qdrant points: %w", err)
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collectionName,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, fmt.Errorf("fail to delete qdrant points: %w", err)
	}
	return int64(count), nil
}

func (s *Store) createCollection() error {
	isExist, err := s.client.CollectionExists(context.Background(), s.collectionName)
	if err != nil {
		return fmt.Errorf("fail to check if collection %s exists: %w", s.collectionName, err)
	}
	if !isExist {
		err = s.client.CreateCollection(context.Background(), &qdrant.CreateCollection{
			CollectionName: s.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("fail to create collection: %w", err)
		}
		s.logger.Info("created qdrant collection", zap.String("collection", s.collectionName))
	}
	return nil
}

func (s *Store) toEntry(point *qdrant.ScoredPoint) (*cache.Entry, error) {
	payload := point.Payload
	response, ok := payload["response"]
	if !ok {
		return nil, fmt.Errorf("qdrant point %s has no response payload", point.Id.GetUuid())
	}

	entry := &cache.Entry{
		ID:             point.Id.GetUuid(),
		ProjectID:      payload["project_id"].GetStringValue(),
		Prompt:         payload["prompt"].GetStringValue(),
		Response:       json.RawMessage(response.GetStringValue()),
		Model:          payload["model"].GetStringValue(),
		EmbeddingModel: payload["embedding_model"].GetStringValue(),
		PromptTokens:   int(payload["prompt_tokens"].GetIntegerValue()),
		ResponseTokens: int(payload["response_tokens"].GetIntegerValue()),
		TotalTokens:    int(payload["total_tokens"].GetIntegerValue()),
		CostUSD:        payload["cost_usd"].GetDoubleValue(),
		DurationMs:     payload["duration_ms"].GetIntegerValue(),
		CreatedAt:      time.Unix(payload["created_at"].GetIntegerValue(), 0),
	}
	if vec := point.Vectors.GetVector(); vec != nil {
		entry.Embedding = vec.Data
	}
	return entry, nil
}
