package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultMaxAttempts is the default number of attempts before giving up.
	DefaultMaxAttempts = 3

	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 10 * time.Second

	// jitterFraction is the maximum fraction of the delay added as jitter.
	jitterFraction = 0.25
)

// Policy controls how an operation is retried. Zero fields take defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool

	// OnRetry, if set, is called before each backoff sleep with the
	// 1-based number of the failed attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Do retries fn up to maxAttempts times with exponential backoff and jitter,
// retrying every error.
func Do(ctx context.Context, maxAttempts int, fn func() error) error {
	return Policy{MaxAttempts: maxAttempts}.Do(ctx, fn)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. It respects context cancellation and returns the last
// error if all attempts fail. The backoff progression with default delays is
// 1s, 2s, 4s (with up to 25% jitter).
func (p Policy) Do(ctx context.Context, fn func() error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt.
		if attempt < p.MaxAttempts-1 {
			delay := p.backoff(attempt)
			if p.OnRetry != nil {
				p.OnRetry(attempt+1, lastErr, delay)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// backoff calculates the delay for the given attempt (0-indexed) with jitter,
// capped at MaxDelay before jitter is added.
func (p Policy) backoff(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * p.BaseDelay
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}

	jitter := time.Duration(float64(delay) * jitterFraction * rand.Float64())
	return delay + jitter
}
