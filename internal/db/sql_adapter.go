package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// SQLAdapter adapts *sql.DB (MySQL protocol) to implement bendsink.Conn.
//
// Thread-Safety: Safe for concurrent use (*sql.DB is a pool).
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter creates a new SQLAdapter wrapping db.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// Exec executes one or more statements without returning any rows.
// The DSN must enable multiStatements for batched statements.
func (s *SQLAdapter) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// QueryRow executes a query that is expected to return at most one row.
func (s *SQLAdapter) QueryRow(ctx context.Context, query string, args ...any) bendsink.Row {
	return &sqlRowAdapter{row: s.db.QueryRowContext(ctx, query, args...)}
}

// Close closes the underlying pool.
func (s *SQLAdapter) Close() error {
	return s.db.Close()
}

type sqlRowAdapter struct {
	row *sql.Row
}

func (r *sqlRowAdapter) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w", bendsink.ErrNoRows)
	}
	return err
}

var _ bendsink.Conn = (*SQLAdapter)(nil)
