// Package upstream forwards completion payloads to the external LLM API.
// Non-2xx upstream statuses are normal results to relay, not local errors;
// only transport failures and timeouts surface as errors.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUnreachable means the upstream could not be reached at the
	// transport level.
	ErrUnreachable = errors.New("upstream unreachable")
	// ErrTimeout means the upstream call exceeded its deadline.
	ErrTimeout = errors.New("upstream timeout")
)

// forwardedHeaders are the only caller headers passed through to the
// upstream call.
var forwardedHeaders = []string{"Authorization", "OpenAI-Organization"}

// Result is a relayed upstream response.
type Result struct {
	Status   int
	Body     json.RawMessage
	Duration time.Duration
}

// Client forwards a completion payload to an upstream endpoint.
type Client interface {
	Do(ctx context.Context, endpoint string, payload json.RawMessage, headers http.Header) (*Result, error)
}

// HTTPClient implements Client over plain HTTP.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// New creates an upstream client whose calls are bounded by timeout.
func New(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Do implements Client
func (c *HTTPClient) Do(ctx context.Context, endpoint string, payload json.RawMessage, headers http.Header) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fail to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, name := range forwardedHeaders {
		if v := headers.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: fail to read upstream body: %s", ErrUnreachable, err)
	}

	return &Result{
		Status:   resp.StatusCode,
		Body:     body,
		Duration: time.Since(start),
	}, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
