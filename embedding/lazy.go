package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Lazy defers construction of a Service until its first use. Concurrent
// first calls share a single initialization; a failed initialization is
// reported as ErrModelUnavailable on every subsequent call.
type Lazy struct {
	factory func() (Service, error)
	once    sync.Once
	svc     Service
	err     error
}

// NewLazy creates a Lazy service around factory.
func NewLazy(factory func() (Service, error)) *Lazy {
	return &Lazy{factory: factory}
}

// Get implements Service.
func (l *Lazy) Get(ctx context.Context, text string) ([]float32, error) {
	l.once.Do(func() {
		l.svc, l.err = l.factory()
	})
	if l.err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, l.err)
	}
	return l.svc.Get(ctx, text)
}
