package bendsink

// Logger is the logging surface used by every staging component.
// Implementations must be safe for concurrent use: uploads for several batches
// log through the same Logger from different goroutines.
type Logger interface {
	// Verbose logs per-attempt and per-statement diagnostics.
	// Only emitted when verbose mode is enabled.
	Verbose(format string, args ...interface{})

	// Info logs flow milestones (stage created, files loaded, stage removed).
	Info(format string, args ...interface{})

	// Error logs failures, including swallowed best-effort cleanup failures.
	Error(format string, args ...interface{})

	// With returns a child Logger that tags every message with key=value.
	With(key string, value interface{}) Logger
}
