package embedding

import (
	"context"
	"errors"
)

// ErrModelUnavailable means the underlying embedding model could not be
// loaded or reached. Callers must treat it as a hard failure.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Service defines the interface for embedding operations
type Service interface {
	Get(ctx context.Context, text string) ([]float32, error)
}
