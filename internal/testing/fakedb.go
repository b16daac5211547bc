package testing

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// FakeDB is an in-memory bendsink.Conn that records every statement it sees.
// ExecFunc and QueryRowFunc, when set, decide the outcome of each call.
// Thread-safe for concurrent use.
type FakeDB struct {
	ExecFunc     func(ctx context.Context, sql string) error
	QueryRowFunc func(ctx context.Context, sql string) ([]any, error)

	mu         sync.Mutex
	statements []string
	closed     bool
}

// Exec records sql and returns the ExecFunc result (nil by default).
func (f *FakeDB) Exec(ctx context.Context, sql string, _ ...any) error {
	f.record(sql)
	if f.ExecFunc == nil {
		return nil
	}
	return f.ExecFunc(ctx, sql)
}

// QueryRow records sql and returns a row built from QueryRowFunc. Without a
// QueryRowFunc the row is empty.
func (f *FakeDB) QueryRow(ctx context.Context, sql string, _ ...any) bendsink.Row {
	f.record(sql)
	if f.QueryRowFunc == nil {
		return &FakeRow{}
	}
	values, err := f.QueryRowFunc(ctx, sql)
	return &FakeRow{Values: values, Err: err}
}

// Close marks the fake closed.
func (f *FakeDB) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeDB) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Statements returns a copy of every statement in call order.
func (f *FakeDB) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.statements))
	copy(out, f.statements)
	return out
}

// StatementsWithPrefix returns the recorded statements starting with prefix.
func (f *FakeDB) StatementsWithPrefix(prefix string) []string {
	var out []string
	for _, s := range f.Statements() {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

func (f *FakeDB) record(sql string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, sql)
}

// FakeRow is a bendsink.Row over fixed values.
type FakeRow struct {
	Values []any
	Err    error
}

// Scan assigns Values to dest positionally. An empty row reports
// bendsink.ErrNoRows.
func (r *FakeRow) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Values == nil {
		return fmt.Errorf("fake row: %w", bendsink.ErrNoRows)
	}
	if len(dest) != len(r.Values) {
		return fmt.Errorf("fake row: %d columns, %d destinations", len(r.Values), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("fake row: destination %d is not a pointer", i)
		}
		value := reflect.ValueOf(r.Values[i])
		if !value.IsValid() {
			target.Elem().Set(reflect.Zero(target.Elem().Type()))
			continue
		}
		if !value.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("fake row: cannot scan %T into %s", r.Values[i], target.Elem().Type())
		}
		target.Elem().Set(value)
	}
	return nil
}

// PresignRow returns the (method, headers, url) row PRESIGN statements produce.
func PresignRow(method, headers, url string) []any {
	return []any{method, headers, url}
}
