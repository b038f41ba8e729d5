// Package reconnect retries a connect function with exponential backoff,
// replacing the teacher's manual time.Sleep retry loop with
// cenkalti/backoff/v5, capped at a 30s ceiling per SPEC_FULL.md.
package reconnect

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// MaxElapsed bounds the retry loop's backoff interval, not its total
// duration: Dial keeps retrying until ctx is cancelled.
const MaxElapsed = 30 * time.Second

// Dial retries connect until it succeeds or ctx is cancelled, backing
// off exponentially up to MaxElapsed between attempts. It logs each
// failed attempt so an operator watching the service's logs can see a
// broker or database outage unfold.
func Dial[T any](ctx context.Context, logger *slog.Logger, what string, connect func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = MaxElapsed

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		conn, err := connect()
		if err != nil {
			logger.Warn("reconnect attempt failed",
				slog.String("target", what),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return conn, err
		}
		if attempt > 1 {
			logger.Info("reconnected", slog.String("target", what), slog.Int("attempts", attempt))
		}
		return conn, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(0))
}
