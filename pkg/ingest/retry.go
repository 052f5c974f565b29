package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Retry parameters for transient external-call failures. The final attempt's
// error propagates unchanged, so callers still abort the current document on
// persistent failure.
const (
	retryAttempts  = 3
	retryBaseDelay = 500 * time.Millisecond
)

// retry runs fn up to retryAttempts times with exponential backoff, stopping
// early when ctx is cancelled.
func retry[T any](ctx context.Context, log zerolog.Logger, op string, fn func() (T, error)) (T, error) {
	var zero T
	var err error

	delay := retryBaseDelay
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		var result T
		if result, err = fn(); err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		if attempt == retryAttempts {
			break
		}

		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", delay).Msg("transient failure, retrying")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		delay *= 2
	}
	return zero, err
}
