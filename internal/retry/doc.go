// Package retry runs an operation repeatedly under a fixed attempt ceiling,
// waiting an exponential backoff between attempts.
//
// Two callers share it: the staging coordinator, which retries presign+upload
// of one file up to bendsink.MaxRetry times, and the control connection
// connectors, which retry opening the pool.
//
// # Example Usage
//
//	strategy := retry.NewExponentialBackoff(bendsink.MaxRetry,
//	    retry.WithInitialDelay(200*time.Millisecond),
//	)
//	executor := retry.NewExecutor(retry.AlwaysRetry{}, strategy)
//
//	result := executor.Run(ctx, func(ctx context.Context) error {
//	    return stageOnce(ctx)
//	})
//	if result.Err != nil {
//	    // result.Attempts holds every failure, in order
//	}
//
// # Error Classification
//
// The ErrorClassifier decides whether another attempt is made. AlwaysRetry
// retries every failure identically; StagingErrorClassifier stops on failures
// that a retry cannot fix (rejected credentials, missing batch file);
// ConnectionErrorClassifier recognizes transient PostgreSQL and MySQL protocol
// errors.
//
// # Thread Safety
//
// Executor instances are safe for concurrent use. WithOnRetry returns an
// independent copy.
package retry
