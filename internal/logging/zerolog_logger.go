package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// Format selects the output encoding.
type Format string

const (
	// FormatAuto picks console for a terminal and JSON otherwise.
	FormatAuto Format = "auto"

	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"

	// FormatConsole writes human-readable lines.
	FormatConsole Format = "console"
)

// ParseFormat parses a --log-format value. Empty means FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatJSON, FormatConsole:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want auto, json or console): %w", s, bendsink.ErrInvalidConfig)
	}
}

// ZerologLogger implements bendsink.Logger over zerolog.
// Verbose maps to debug level and is dropped unless verbose is enabled.
// Safe for concurrent use by multiple goroutines.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger writes to stderr in the given format.
func NewZerologLogger(verbose bool, format Format) *ZerologLogger {
	if format == FormatAuto || format == "" {
		format = FormatJSON
		if IsTerminal(os.Stderr) {
			format = FormatConsole
		}
	}

	var out io.Writer = os.Stderr
	if format == FormatConsole {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    NoColor(),
		}
	}
	return NewZerologLoggerTo(out, verbose)
}

// NewZerologLoggerTo writes JSON lines (or whatever w encodes) to w.
func NewZerologLoggerTo(w io.Writer, verbose bool) *ZerologLogger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return &ZerologLogger{
		log: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// Verbose logs at debug level.
func (l *ZerologLogger) Verbose(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

// Info logs at info level.
func (l *ZerologLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

// Error logs at error level.
func (l *ZerologLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

// With returns a child logger carrying key=value on every message.
func (l *ZerologLogger) With(key string, value interface{}) bendsink.Logger {
	return &ZerologLogger{log: l.log.With().Interface(key, value).Logger()}
}

// Zerolog exposes the underlying logger.
func (l *ZerologLogger) Zerolog() zerolog.Logger {
	return l.log
}
