package exchange

import (
	"context"
	"time"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

// Retry runs fn up to attempts times, sleeping backoff*n after the n-th failure.
// It returns the last error, or ctx.Err() if the context ends while waiting.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(backoff * time.Duration(i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
