package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// PoolAdapter adapts *pgxpool.Pool to implement the bendsink.Conn interface.
// This decouples the staging code from pgx-specific types.
//
// Thread-Safety: Safe for concurrent use (pgxpool.Pool is thread-safe).
type PoolAdapter struct {
	pool *pgxpool.Pool
}

// NewPoolAdapter creates a new PoolAdapter wrapping the given pool.
func NewPoolAdapter(pool *pgxpool.Pool) *PoolAdapter {
	return &PoolAdapter{pool: pool}
}

// Exec executes one or more statements without returning any rows.
func (p *PoolAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

// QueryRow executes a query that is expected to return at most one row.
func (p *PoolAdapter) QueryRow(ctx context.Context, sql string, args ...any) bendsink.Row {
	return &rowAdapter{row: p.pool.QueryRow(ctx, sql, args...)}
}

// Close closes every connection in the pool.
func (p *PoolAdapter) Close() error {
	p.pool.Close()
	return nil
}

// rowAdapter adapts pgx.Row to implement bendsink.Row.
type rowAdapter struct {
	row pgx.Row
}

// Scan reads the values from the row into dest values.
func (r *rowAdapter) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w", bendsink.ErrNoRows)
	}
	return err
}

var _ bendsink.Conn = (*PoolAdapter)(nil)
