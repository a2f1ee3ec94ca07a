// Package llm is the failover abstraction over interchangeable
// text-generation backends. Each adapter normalizes its vendor's native
// reply into the same Response shape, so callers never branch on provider
// identity.
package llm

import (
	"context"
	"errors"
)

// ErrAllProvidersExhausted is returned when every configured provider
// failed. The wrapped error is the last provider's failure.
var ErrAllProvidersExhausted = errors.New("all llm providers exhausted")

// Request is one generation call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the normalized reply every adapter produces.
type Response struct {
	Text     string
	Provider string
	Model    string
}

// Provider is one configured text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}
