// Package retry absorbs transient API throttling with exponential backoff
// and gives up loudly once a bounded retry budget is spent.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultInitialBackoff is the wait before the first retry. GitHub's
	// search quota refills per minute, so one minute plus a second clears it.
	DefaultInitialBackoff = 61 * time.Second
	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 10
	// MaxBackoff caps a single wait so large retry budgets cannot overflow.
	MaxBackoff = 24 * time.Hour
)

// ErrExhausted is wrapped by the error Do returns once every retry failed.
var ErrExhausted = errors.New("retry budget exhausted")

// Policy configures Do.
type Policy struct {
	// Initial is the delay before the first retry; it doubles every retry.
	Initial time.Duration
	// MaxRetries is how many retries follow the first failed attempt.
	MaxRetries int
	// Retryable selects the errors that are retried. Others return at once.
	Retryable func(error) bool
	// OnExhausted runs once, before Do gives up on a retryable error.
	OnExhausted func(context.Context) error
	// Sleep waits for d or until ctx is done. Defaults to Sleep.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *zap.Logger
}

// DefaultPolicy returns the 61s-doubling, 10-retry policy.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		Initial:    DefaultInitialBackoff,
		MaxRetries: DefaultMaxRetries,
		Retryable:  retryable,
	}
}

// Backoff returns the delay before retry n (1-based).
func (p Policy) Backoff(n int) time.Duration {
	d := min(p.Initial, MaxBackoff)
	for i := 1; i < n; i++ {
		if d >= MaxBackoff/2 {
			return MaxBackoff
		}
		d *= 2
	}
	return d
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// retry budget is spent, or ctx is cancelled during a backoff wait.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return v, err
		}
		if attempt >= p.MaxRetries {
			logger.Error("giving up after repeated throttling, token may be blocked or invalid",
				zap.Int("attempts", attempt+1), zap.Error(err))
			if p.OnExhausted != nil {
				if ferr := p.OnExhausted(ctx); ferr != nil {
					logger.Error("flush before giving up failed", zap.Error(ferr))
				}
			}
			var zero T
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt+1, err)
		}

		wait := p.Backoff(attempt + 1)
		logger.Warn("throttled, backing off",
			zap.Int("retry", attempt+1), zap.Duration("wait", wait), zap.Error(err))
		if serr := sleep(ctx, wait); serr != nil {
			var zero T
			return zero, serr
		}
	}
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
