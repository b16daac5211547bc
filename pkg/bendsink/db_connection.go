package bendsink

import (
	"context"
)

// DBConnection is the warehouse control connection. Every control-plane
// statement (stage DDL, PRESIGN, COPY INTO, REMOVE) goes through it.
//
// The interface is protocol neutral so the same staging code runs over the
// PostgreSQL wire protocol (pgx) or the MySQL protocol (database/sql).
//
// Thread-Safety: a single flow owns its connection; implementations backed by a
// pool are additionally safe for concurrent use, which parallel uploads rely on
// for their PRESIGN round trips.
type DBConnection interface {
	// Exec runs one or more statements without returning rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// QueryRow runs a statement expected to return at most one row.
	// Always returns a non-nil Row; errors are deferred to Scan.
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Row is a single result row.
type Row interface {
	// Scan copies the columns into dest. It returns ErrNoRows (wrapped) when the
	// statement produced no row.
	Scan(dest ...any) error
}

// Conn is a DBConnection that owns network resources.
type Conn interface {
	DBConnection

	// Close releases the underlying pool or connection.
	Close() error
}
