package proxy

import "errors"

var (
	// ErrInvalidRequest means the client input is malformed or names an
	// unknown project. Nothing is embedded, forwarded, or persisted.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingFailed means the prompt could not be fingerprinted. The
	// request aborts with no side effects.
	ErrEmbeddingFailed = errors.New("embedding failed")
)
