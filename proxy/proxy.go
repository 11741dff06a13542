// Package proxy coordinates the semantic-cache proxy flow: fingerprint the
// prompt, probe the tenant's cache, and on a miss forward upstream, price
// the usage, and persist the log entry and cache entry.
package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"llm_proxy/cache"
	"llm_proxy/cost"
	"llm_proxy/embedding"
	"llm_proxy/project"
	"llm_proxy/requestlog"
	"llm_proxy/upstream"
)

// Options tune the orchestrator.
type Options struct {
	// Threshold is the minimum cosine similarity for a cache hit.
	Threshold float32
	// EmbeddingModel names the embedding model version; cache entries are
	// tagged with it so vectors from different versions never mix.
	EmbeddingModel string
	// Coalesce shares one upstream call between concurrent identical
	// prompts of the same tenant.
	Coalesce bool
}

// Orchestrator drives one request through validate, embed, cache check,
// forward, score, persist.
type Orchestrator struct {
	embedder embedding.Service
	store    cache.Store
	costs    atomic.Pointer[cost.Table]
	log      requestlog.Log
	client   upstream.Client
	registry project.Registry
	opts     Options
	logger   *zap.Logger
	metrics  *Metrics
	inflight singleflight.Group
}

// New creates an orchestrator.
func New(
	embedder embedding.Service,
	store cache.Store,
	costs *cost.Table,
	log requestlog.Log,
	client upstream.Client,
	registry project.Registry,
	opts Options,
	logger *zap.Logger,
	metrics *Metrics,
) *Orchestrator {
	o := &Orchestrator{
		embedder: embedder,
		store:    store,
		log:      log,
		client:   client,
		registry: registry,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
	o.costs.Store(costs)
	return o
}

// SetCostTable swaps the rate table without interrupting in-flight
// requests.
func (o *Orchestrator) SetCostTable(t *cost.Table) {
	o.costs.Store(t)
}

// Handle proxies one completion request. The returned Response carries the
// upstream's status and body verbatim; on a cache hit the stored response
// is replayed with a success status.
func (o *Orchestrator) Handle(ctx context.Context, req *Request) (*Response, error) {
	view, err := o.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	prompt := promptText(view.Messages)
	vector, err := o.embedder.Get(ctx, prompt)
	if err != nil {
		if errors.Is(err, embedding.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingFailed, err)
	}

	if !o.opts.Coalesce {
		return o.resolve(ctx, req, view, prompt, vector)
	}

	key := coalesceKey(req.ProjectID, prompt)
	v, err, _ := o.inflight.Do(key, func() (interface{}, error) {
		return o.resolve(ctx, req, view, prompt, vector)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}

// Purge drops every cache entry of a tenant and reports how many were
// removed.
func (o *Orchestrator) Purge(ctx context.Context, projectID string) (int64, error) {
	if err := o.registry.Resolve(ctx, projectID); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return 0, fmt.Errorf("%w: unknown project %s", ErrInvalidRequest, projectID)
		}
		return 0, err
	}
	return o.store.Purge(ctx, projectID)
}

func (o *Orchestrator) validate(ctx context.Context, req *Request) (*payloadView, error) {
	if req.UpstreamEndpoint == "" {
		return nil, fmt.Errorf("%w: missing upstream endpoint", ErrInvalidRequest)
	}
	if req.ProjectID == "" {
		return nil, fmt.Errorf("%w: missing project id", ErrInvalidRequest)
	}

	var view payloadView
	if err := json.Unmarshal(req.Payload, &view); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %s", ErrInvalidRequest, err)
	}
	if len(view.Messages) == 0 {
		return nil, fmt.Errorf("%w: payload has no messages", ErrInvalidRequest)
	}

	if err := o.registry.Resolve(ctx, req.ProjectID); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown project %s", ErrInvalidRequest, req.ProjectID)
		}
		return nil, err
	}
	return &view, nil
}

// resolve runs the cache check and, on a miss, the upstream and
// persistence legs.
func (o *Orchestrator) resolve(ctx context.Context, req *Request, view *payloadView, prompt string, vector []float32) (*Response, error) {
	start := time.Now()

	entry, err := o.store.Lookup(ctx, req.ProjectID, vector, o.opts.Threshold)
	if err != nil {
		// a broken read path degrades to a miss, it never fails the request
		o.logger.Error("cache lookup failed", zap.String("project_id", req.ProjectID), zap.Error(err))
		o.metrics.StorageErrors.WithLabelValues("cache_read").Inc()
		entry = nil
	}

	if entry != nil {
		o.metrics.CacheHits.Inc()
		o.metrics.RequestsTotal.WithLabelValues("cache_hit").Inc()
		o.logger.Debug("cache hit",
			zap.String("project_id", req.ProjectID),
			zap.String("entry_id", entry.ID))

		o.appendLog(ctx, req, view, prompt, &requestlog.Entry{
			Response:   entry.Response,
			Status:     200,
			DurationMs: time.Since(start).Milliseconds(),
			CacheHit:   true,
		})
		return &Response{Status: 200, Body: entry.Response, CacheHit: true}, nil
	}

	o.metrics.CacheMisses.Inc()

	result, err := o.client.Do(ctx, req.UpstreamEndpoint, req.Payload, req.Headers)
	if err != nil {
		o.metrics.RequestsTotal.WithLabelValues("upstream_error").Inc()
		return nil, err
	}
	o.metrics.UpstreamTime.Observe(result.Duration.Seconds())

	usage := parseUsage(result.Body)
	costUSD := o.costs.Load().Cost(view.Model, usage.TotalTokens)
	durationMs := result.Duration.Milliseconds()

	// upstream is done; everything below is persistence and must not
	// change what the caller receives
	o.appendLog(ctx, req, view, prompt, &requestlog.Entry{
		Response:       result.Body,
		PromptTokens:   usage.PromptTokens,
		ResponseTokens: usage.CompletionTokens,
		TotalTokens:    usage.TotalTokens,
		CostUSD:        costUSD,
		Status:         result.Status,
		DurationMs:     durationMs,
	})

	if result.Status >= 200 && result.Status < 300 && json.Valid(result.Body) {
		err := o.store.Insert(ctx, &cache.Entry{
			ID:             uuid.New().String(),
			ProjectID:      req.ProjectID,
			Prompt:         prompt,
			Embedding:      vector,
			Response:       result.Body,
			Model:          view.Model,
			EmbeddingModel: o.opts.EmbeddingModel,
			PromptTokens:   usage.PromptTokens,
			ResponseTokens: usage.CompletionTokens,
			TotalTokens:    usage.TotalTokens,
			CostUSD:        costUSD,
			DurationMs:     durationMs,
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			o.logger.Error("cache insert failed", zap.String("project_id", req.ProjectID), zap.Error(err))
			o.metrics.StorageErrors.WithLabelValues("cache_write").Inc()
		}
	}

	o.metrics.RequestsTotal.WithLabelValues("forwarded").Inc()
	return &Response{Status: result.Status, Body: result.Body}, nil
}

func (o *Orchestrator) appendLog(ctx context.Context, req *Request, view *payloadView, prompt string, entry *requestlog.Entry) {
	entry.ID = uuid.New().String()
	entry.ProjectID = req.ProjectID
	entry.CustomerEndpoint = req.CustomerEndpoint
	entry.UpstreamEndpoint = req.UpstreamEndpoint
	entry.Model = view.Model
	entry.Prompt = prompt
	entry.CreatedAt = time.Now().UTC()

	if err := o.log.Append(ctx, entry); err != nil {
		o.logger.Error("request log append failed", zap.String("project_id", req.ProjectID), zap.Error(err))
		o.metrics.StorageErrors.WithLabelValues("request_log").Inc()
	}
}

func coalesceKey(projectID, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s:%x", projectID, sum)
}
