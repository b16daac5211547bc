package bendsink

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per failure kind. Every *Error matches the sentinel of
// its kind with errors.Is, so callers can branch either way:
//
//	if errors.Is(err, bendsink.ErrLoad) { ... }
//	switch bendsink.KindOf(err) { case bendsink.KindStagingExhausted: ... }
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the control connection could not be established.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNaming indicates invalid identity inputs (empty namespace, stream or connection ID).
	ErrNaming = errors.New("invalid stage identity input")

	// ErrBatchAccess indicates the buffered batch file is unavailable.
	ErrBatchAccess = errors.New("buffered batch unavailable")

	// ErrPresign indicates the control plane returned no usable presigned target.
	ErrPresign = errors.New("presign failed")

	// ErrUpload indicates the object store rejected the upload or the transfer failed.
	ErrUpload = errors.New("upload failed")

	// ErrStagingExhausted indicates a file could not be staged within the retry ceiling.
	ErrStagingExhausted = errors.New("staging retries exhausted")

	// ErrStage indicates CREATE STAGE or DROP STAGE failed.
	ErrStage = errors.New("stage statement failed")

	// ErrLoad indicates the COPY INTO (or a follow-up table statement) failed.
	ErrLoad = errors.New("load failed")

	// ErrCleanup indicates removing staged objects failed.
	ErrCleanup = errors.New("stage cleanup failed")

	// ErrNoRows is returned by Row.Scan when a statement produced no row.
	ErrNoRows = errors.New("no rows in result set")
)

// ErrorKind tags an *Error with the failure category it belongs to.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNaming
	KindBatchAccess
	KindPresign
	KindUpload
	KindStagingExhausted
	KindStage
	KindLoad
	KindCleanup
	KindConfig
	KindConnection
)

var kindNames = map[ErrorKind]string{
	KindUnknown:          "unknown",
	KindNaming:           "naming",
	KindBatchAccess:      "batch_access",
	KindPresign:          "presign",
	KindUpload:           "upload",
	KindStagingExhausted: "staging_exhausted",
	KindStage:            "stage",
	KindLoad:             "load",
	KindCleanup:          "cleanup",
	KindConfig:           "config",
	KindConnection:       "connection",
}

// String returns the snake_case name of the kind, used as a log field.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNaming:
		return ErrNaming
	case KindBatchAccess:
		return ErrBatchAccess
	case KindPresign:
		return ErrPresign
	case KindUpload:
		return ErrUpload
	case KindStagingExhausted:
		return ErrStagingExhausted
	case KindStage:
		return ErrStage
	case KindLoad:
		return ErrLoad
	case KindCleanup:
		return ErrCleanup
	case KindConfig:
		return ErrInvalidConfig
	case KindConnection:
		return ErrConnectionFailed
	}
	return nil
}

// Error is the typed failure returned by staging components.
type Error struct {
	// Kind is the failure category callers branch on.
	Kind ErrorKind

	// Op names the operation that failed, e.g. "presign upload @users/2024/...".
	Op string

	// Err is the underlying cause. Nil for KindStagingExhausted, which carries Attempts.
	Err error

	// StatusCode is the HTTP status of a rejected upload, 0 otherwise.
	StatusCode int

	// Attempts holds every failed attempt, in order, for KindStagingExhausted.
	Attempts []error
}

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Error renders the failure. Exhausted staging lists every attempt message on
// its own line so transient network errors can be told apart from rejections.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	if len(e.Attempts) > 0 {
		msgs := make([]string, len(e.Attempts))
		for i, a := range e.Attempts {
			msgs[i] = a.Error()
		}
		fmt.Fprintf(&b, "exceptions thrown while uploading records into stage (%d attempts):\n", len(e.Attempts))
		b.WriteString(strings.Join(msgs, "\n"))
		return b.String()
	}

	switch {
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	case e.Kind.sentinel() != nil:
		b.WriteString(e.Kind.sentinel().Error())
	default:
		b.WriteString("unknown error")
	}
	return b.String()
}

// Unwrap exposes the cause and, for exhausted staging, every attempt.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return append(errs, e.Attempts...)
}

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// AttemptMessages returns the message of every recorded attempt.
func (e *Error) AttemptMessages() []string {
	msgs := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		msgs[i] = a.Error()
	}
	return msgs
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return KindConfig
	case errors.Is(err, ErrConnectionFailed):
		return KindConnection
	}
	return KindUnknown
}

// cobra reports argument and flag misuse with these prefixes.
var usageErrorPrefixes = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"requires at least",
	"required flag",
	"invalid argument",
}

// ExitCodeForError returns the process exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known kinds,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch KindOf(err) {
	case KindConfig:
		return ExitConfigError
	case KindConnection:
		return ExitConnectionError
	case KindStagingExhausted, KindPresign, KindUpload, KindBatchAccess, KindStage:
		return ExitStagingFailed
	case KindLoad:
		return ExitLoadFailed
	case KindNaming:
		return ExitNamingError
	}

	errStr := err.Error()
	for _, prefix := range usageErrorPrefixes {
		if strings.HasPrefix(errStr, prefix) {
			return ExitUsageError
		}
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
