package retry

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff implements exponential backoff with jitter.
type ExponentialBackoff struct {
	// initialDelay is the wait before the second attempt. Zero disables waiting.
	initialDelay time.Duration

	// maxDelay caps every wait.
	maxDelay time.Duration

	// multiplier is the growth factor between consecutive waits.
	multiplier float64

	// maxAttempts is the total number of attempts (-1 = unlimited).
	maxAttempts int

	// jitter is the +/- fraction of randomness applied to each wait (0.0-1.0).
	jitter float64

	// jitterFunc returns values in [0, 1); nil means math/rand.
	jitterFunc func() float64
}

// BackoffOption is a functional option for configuring ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

// WithInitialDelay sets the wait before the second attempt.
func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.initialDelay = d
	}
}

// WithMaxDelay sets the maximum wait between attempts.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.maxDelay = d
	}
}

// WithMultiplier sets the factor by which the wait grows.
func WithMultiplier(m float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.multiplier = m
	}
}

// WithJitter sets the jitter factor (0.0-1.0).
func WithJitter(j float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitter = j
	}
}

// WithJitterFunc sets a custom source of random values for jitter.
func WithJitterFunc(f func() float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitterFunc = f
	}
}

// NewExponentialBackoff creates a backoff strategy allowing maxAttempts
// attempts in total. Zero is treated as a single attempt.
//
// Example:
//
//	backoff := retry.NewExponentialBackoff(bendsink.MaxRetry,
//	    retry.WithInitialDelay(200*time.Millisecond),
//	    retry.WithMaxDelay(5*time.Second),
//	)
func NewExponentialBackoff(maxAttempts int, opts ...BackoffOption) *ExponentialBackoff {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	b := &ExponentialBackoff{
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		maxAttempts:  maxAttempts,
		jitter:       0.1,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NextDelay returns initialDelay * multiplier^retry, capped at maxDelay, with jitter.
func (b *ExponentialBackoff) NextDelay(retry int) time.Duration {
	if b.initialDelay <= 0 {
		return 0
	}

	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(retry))
	if limit := float64(b.maxDelay); b.maxDelay > 0 && delay > limit {
		delay = limit
	}

	if b.jitter > 0 {
		jitterFunc := b.jitterFunc
		if jitterFunc == nil {
			jitterFunc = rand.Float64
		}
		// Map [0,1) to [-1,1): jitter=0.1, random=0.75 gives delay * 1.05.
		offset := (jitterFunc() - 0.5) * 2.0
		delay *= 1.0 + b.jitter*offset
	}

	return time.Duration(delay)
}

// MaxAttempts returns the total number of attempts.
func (b *ExponentialBackoff) MaxAttempts() int {
	return b.maxAttempts
}

// InitialDelay returns the initial delay for tests and debugging.
func (b *ExponentialBackoff) InitialDelay() time.Duration {
	return b.initialDelay
}

// MaxDelay returns the maximum delay for tests and debugging.
func (b *ExponentialBackoff) MaxDelay() time.Duration {
	return b.maxDelay
}

// Multiplier returns the backoff multiplier for tests and debugging.
func (b *ExponentialBackoff) Multiplier() float64 {
	return b.multiplier
}

// Jitter returns the jitter factor for tests and debugging.
func (b *ExponentialBackoff) Jitter() float64 {
	return b.jitter
}
