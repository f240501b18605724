package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"balance-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// isRetryable classifies store errors worth another attempt: serialization
// failure, deadlock, lock not available, and transient connection errors.
// Everything else propagates immediately.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		// Class 08: connection exceptions
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}

// withRetry runs fn up to maxAttempts times with a fixed backoff, retrying
// only retryable store errors. Exhaustion wraps the last error so the caller
// can still reach the original through Unwrap.
func withRetry(ctx context.Context, log zerolog.Logger, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		log.Warn().
			Err(lastErr).
			Str("op", op).
			Int("attempt", attempt).
			Msg("retryable store error")

		if attempt < maxAttempts {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return apperror.ErrRetryExhausted(maxAttempts, lastErr)
}
