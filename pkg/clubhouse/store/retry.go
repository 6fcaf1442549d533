package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
)

// withRetry runs fn, retrying transient storage failures with exponential
// backoff up to the configured attempt cap. Any other error stops immediately.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitial
	b.MaxElapsedTime = 0

	attempts := 0
	var lastErr error
	err := backoff.Retry(func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		lastErr = err
		s.metrics.Retry(op)
		s.logger.DebugContext(ctx, "retrying transient storage failure",
			slog.String("operation", op),
			slog.Int("attempt", attempts),
			slog.Any("error", err),
		)
		return err
	}, backoff.WithMaxRetries(b, s.opts.MaxRetries))

	if err != nil && lastErr != nil && isTransient(err) {
		return fmt.Errorf("%s failed after %d attempts: %w: %v", op, attempts, ErrUnavailable, err)
	}
	return err
}
