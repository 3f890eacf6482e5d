package types

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by services and handlers. Retrieval-strategy errors
// (empty query, no embeddings, below threshold) are recovered internally via
// the fallback chain; upstream errors surface with an HTTP-equivalent status.
var (
	ErrValidation         = errors.New("invalid or missing input")
	ErrNotFound           = errors.New("not found")
	ErrNoTextExtracted    = errors.New("document contains no extractable text")
	ErrEmptyQuery         = errors.New("query contains no searchable terms")
	ErrNoEmbeddings       = errors.New("no chunk has a usable embedding")
	ErrBelowThreshold     = errors.New("no chunk similarity reaches the threshold")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrRetrievalExhausted = errors.New("no retrieval strategy produced context")
	ErrAlreadyProcessing  = errors.New("an embedding pass is already in progress")

	ErrRateLimited       = errors.New("upstream service rate limited the request")
	ErrUnavailable       = errors.New("upstream service unavailable")
	ErrPayloadTooLarge   = errors.New("payload too large for upstream model")
	ErrSafetyBlocked     = errors.New("response blocked by upstream safety filter")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// RetryAfterError wraps a retryable upstream error with a retry hint.
type RetryAfterError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", e.Err, e.RetryAfter)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// RetryAfter extracts the retry hint from an error chain, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) {
		return ra.RetryAfter, true
	}
	return 0, false
}
