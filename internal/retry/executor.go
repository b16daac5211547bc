package retry

import (
	"context"
	"time"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// Result reports the outcome of Executor.Run.
type Result struct {
	// Attempts holds the error of every failed attempt, in order.
	Attempts []error

	// Err is nil on success, otherwise the last attempt error or the context error.
	Err error

	// Fatal is true when the classifier stopped retrying before the ceiling.
	Fatal bool
}

// Executor orchestrates retry attempts with backoff and error classification.
//
// Thread Safety:
// The Executor itself is safe for concurrent use when calling Run or Execute.
// WithOnRetry returns a NEW instance with the callback configured; the
// original Executor remains unchanged.
type Executor struct {
	classifier bendsink.ErrorClassifier
	strategy   bendsink.BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor creates a new retry executor with the given configuration.
// Panics if classifier or strategy is nil.
func NewExecutor(
	classifier bendsink.ErrorClassifier,
	strategy bendsink.BackoffStrategy,
) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
	}
}

// WithOnRetry returns a new Executor with the specified retry callback.
// attempt is the 1-based number of the attempt that just failed.
//
// Example:
//
//	executor := retry.NewExecutor(classifier, strategy)
//	logged := executor.WithOnRetry(func(attempt int, err error, delay time.Duration) {
//	    logger.Verbose("attempt %d failed: %v (retrying in %s)", attempt, err, delay)
//	})
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// Execute runs the operation with retry logic and returns the last error.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	return e.Run(ctx, operation).Err
}

// Run runs the operation until it succeeds, the classifier reports a fatal
// error, the attempt ceiling is reached, or ctx is done. Every failed attempt
// is recorded in the result.
func (e *Executor) Run(ctx context.Context, operation func(ctx context.Context) error) Result {
	var res Result
	maxAttempts := e.strategy.MaxAttempts()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		err := operation(ctx)
		if err == nil {
			res.Err = nil
			return res
		}
		res.Attempts = append(res.Attempts, err)
		res.Err = err

		if !e.classifier.IsTransient(err) {
			res.Fatal = true
			return res
		}
		if maxAttempts >= 0 && attempt >= maxAttempts {
			return res
		}

		delay := e.strategy.NextDelay(attempt - 1)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			return res
		case <-timer.C:
		}
	}
}
