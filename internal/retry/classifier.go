package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// PostgreSQL error codes for transient conditions
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 40 - Transaction Rollback
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"

	// Class 55 - Object Not In Prerequisite State
	pgCodeLockNotAvailable = "55P03"
)

// MySQL server error numbers for transient conditions. Databend's MySQL
// handler reports connection-level failures with the same numbers.
const (
	myErrTooManyConnections = 1040
	myErrLockWaitTimeout    = 1205
	myErrLockDeadlock       = 1213
	myErrServerGone         = 2006
	myErrServerLost         = 2013
)

// AlwaysRetry treats every error as transient. The staging coordinator uses it
// by default: each failed presign or upload counts as one attempt regardless
// of cause.
type AlwaysRetry struct{}

// IsTransient reports true for any non-nil error.
func (AlwaysRetry) IsTransient(err error) bool {
	return err != nil
}

// StagingErrorClassifier stops retrying failures that another attempt cannot
// fix: uploads rejected with 401, 403 or 404, a missing batch file, and invalid
// identity inputs. Everything else is transient.
type StagingErrorClassifier struct{}

// NewStagingErrorClassifier creates a new staging error classifier.
func NewStagingErrorClassifier() *StagingErrorClassifier {
	return &StagingErrorClassifier{}
}

// IsTransient determines if a staging attempt failure is worth another attempt.
func (c *StagingErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var e *bendsink.Error
	if !errors.As(err, &e) {
		return true
	}

	switch e.Kind {
	case bendsink.KindBatchAccess, bendsink.KindNaming:
		return false
	case bendsink.KindUpload:
		switch e.StatusCode {
		case 401, 403, 404:
			return false
		}
	}
	return true
}

// ConnectionErrorClassifier recognizes transient control connection errors
// from both the PostgreSQL (pgx) and MySQL protocol drivers.
type ConnectionErrorClassifier struct{}

// NewConnectionErrorClassifier creates a new connection error classifier.
func NewConnectionErrorClassifier() *ConnectionErrorClassifier {
	return &ConnectionErrorClassifier{}
}

// IsTransient determines if an error is temporary and retryable.
func (c *ConnectionErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientPgError(pgErr)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return isTransientMySQLError(myErr)
	}

	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	if isNetworkError(err) {
		return true
	}

	return isConnectionMessage(err)
}

func isTransientPgError(pgErr *pgconn.PgError) bool {
	code := pgErr.Code

	// Class 08 - Connection Exception
	// Class 53 - Insufficient Resources
	// Class 57 - Operator Intervention
	for _, class := range []string{"08", "53", "57"} {
		if strings.HasPrefix(code, class) {
			return true
		}
	}

	switch code {
	case pgCodeSerializationFailure,
		pgCodeDeadlockDetected,
		pgCodeLockNotAvailable:
		return true
	}

	return false
}

func isTransientMySQLError(myErr *mysql.MySQLError) bool {
	switch myErr.Number {
	case myErrTooManyConnections,
		myErrLockWaitTimeout,
		myErrLockDeadlock,
		myErrServerGone,
		myErrServerLost:
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED),
			errors.Is(opErr.Err, syscall.ECONNRESET),
			errors.Is(opErr.Err, syscall.ENETUNREACH),
			errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return true
		}
	}

	return false
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"connection failure",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"too many connections",
	"server closed the connection",
	"unexpected eof",
	"connection pool exhausted",
	"context deadline exceeded",
}

func isConnectionMessage(err error) bool {
	errMsg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
