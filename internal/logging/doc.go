// Package logging provides concrete implementations of the bendsink.Logger interface.
//
// Available implementations:
//   - ZerologLogger: structured output through zerolog, JSON or console format
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
