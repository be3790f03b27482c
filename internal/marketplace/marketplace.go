package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealscout/dealscout/internal/models"
)

// ErrorKind classifies a failed search so callers can decide whether to
// retry. Rate limits and transient failures are retryable; a bad credential
// is not going to fix itself mid-execution.
type ErrorKind string

const (
	KindRateLimited     ErrorKind = "rate_limited"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindTransient       ErrorKind = "transient"
)

// Error is a classified marketplace search failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("marketplace %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a marketplace error worth another
// attempt. Unknown errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var merr *Error
	if !errors.As(err, &merr) {
		return false
	}
	return merr.Kind == KindTransient || merr.Kind == KindRateLimited
}

func classifyStatus(status int, err error) *Error {
	switch {
	case status == 429:
		return &Error{Kind: KindRateLimited, Err: err}
	case status == 401 || status == 403:
		return &Error{Kind: KindUnauthenticated, Err: err}
	default:
		return &Error{Kind: KindTransient, Err: err}
	}
}

// Query carries the per-keyword search parameters derived from a rule.
type Query struct {
	Keyword     string
	MinPrice    float64
	MaxPrice    float64
	MinDiscount float64
	CategoryID  string
	Limit       int
}

// Searcher is the narrow contract the aggregation layer depends on: given a
// keyword and filter bounds, return a finite set of normalized listings from
// one marketplace. Implementations own all protocol and auth details.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]models.Listing, error)
}
