package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davitran/docchat-be/types"
)

// MaxEmbedInputChars caps text sent to the embedding API. Oversized chunks
// are truncated before the call, never sent whole.
const MaxEmbedInputChars = 2048

// Answerer generates an answer from an assembled prompt.
type Answerer interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string, handler types.StreamHandler) error
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

func truncateForEmbedding(text string) string {
	if len(text) > MaxEmbedInputChars {
		return text[:MaxEmbedInputChars]
	}
	return text
}

// withUpstreamRetry retries fn on rate-limit and availability errors with a
// doubling backoff. Everything else fails immediately.
func withUpstreamRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 500 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errors.Is(err, types.ErrRateLimited) && !errors.Is(err, types.ErrUnavailable) {
			return err
		}
		if i == attempts-1 {
			break
		}
		wait := backoff
		if hint, ok := types.RetryAfter(err); ok && hint > wait {
			wait = hint
		}
		log.Debug().Err(err).Dur("wait", wait).Int("attempt", i+1).Msg("retrying upstream call")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return err
}
