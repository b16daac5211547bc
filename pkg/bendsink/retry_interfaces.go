package bendsink

import "time"

// ErrorClassifier determines whether a failed attempt may be retried.
type ErrorClassifier interface {
	// IsTransient returns true if the operation should be attempted again.
	IsTransient(err error) bool
}

// BackoffStrategy calculates the delay before the next attempt.
type BackoffStrategy interface {
	// NextDelay returns the duration to wait before the next attempt.
	// retry is zero-indexed (0 = wait before the second attempt).
	NextDelay(retry int) time.Duration

	// MaxAttempts returns the total number of attempts, the first one included
	// (1 = no retries, -1 = unlimited).
	MaxAttempts() int
}
