package bendsink

import "time"

// Exit codes for semantic error classification.
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Load completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Failed to connect to the warehouse
	ExitStagingFailed   = 12 // Stage creation or file upload failed
	ExitLoadFailed      = 13 // COPY INTO or table statement failed
	ExitNamingError     = 14 // Invalid namespace, stream or connection identity
)

const (
	// MaxRetry is the total number of attempts made to stage one file.
	MaxRetry = 5

	// LoadFileListLimit is the ceiling on explicit filenames in one COPY INTO.
	// At or above it the statement loads everything under the staging path.
	LoadFileListLimit = 1000

	// DefaultRetryInitialDelay is the wait before the second staging attempt.
	DefaultRetryInitialDelay = 200 * time.Millisecond

	// DefaultRetryMaxDelay caps the wait between staging attempts.
	DefaultRetryMaxDelay = 5 * time.Second

	// DefaultRetryJitter is the +/- fraction applied to each backoff delay.
	DefaultRetryJitter = 0.1

	// DefaultConnectMaxAttempts is the number of attempts to open the control connection.
	DefaultConnectMaxAttempts = 3

	// DefaultConnectInitialDelay is the wait before the second connection attempt.
	DefaultConnectInitialDelay = 100 * time.Millisecond

	// DefaultConnectMaxDelay caps the wait between connection attempts.
	DefaultConnectMaxDelay = 30 * time.Second

	// DefaultParallelism is the default number of concurrent uploads per flow.
	DefaultParallelism = 4

	// DefaultUploadTimeout bounds a single HTTP upload.
	DefaultUploadTimeout = 10 * time.Minute

	// DefaultSchema is the warehouse database used when none is configured.
	DefaultSchema = "default"

	// DefaultNamespace replaces an empty stream namespace.
	DefaultNamespace = "default"

	// WorkerNamePrefix prefixes upload worker names in logs.
	WorkerNamePrefix = "bendsink-upload-"
)

// Raw table column names.
const (
	ColumnID        = "_airbyte_ab_id"
	ColumnData      = "_airbyte_data"
	ColumnEmittedAt = "_airbyte_emitted_at"
)
