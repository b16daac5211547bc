// Package loader runs the control-plane statements that move staged files
// into tables: COPY INTO, schema and table DDL, and table promotion.
//
// Nothing here is retried. A failed COPY INTO surfaces to the caller, which
// decides whether the whole flush is replayed.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// insertChunkRows bounds the rows carried by one INSERT statement.
const insertChunkRows = 500

// BatchLoader issues load statements over the control connection.
type BatchLoader struct {
	conn   bendsink.DBConnection
	logger bendsink.Logger
}

// NewBatchLoader creates a loader. Panics if conn or logger is nil.
func NewBatchLoader(conn bendsink.DBConnection, logger bendsink.Logger) *BatchLoader {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &BatchLoader{conn: conn, logger: logger}
}

// Load copies the staged files at stagingPath into schemaName.tableName.
func (l *BatchLoader) Load(ctx context.Context, stageName, stagingPath string, stagedFiles []string, schemaName, tableName string) error {
	query := CopyQuery(stageName, stagingPath, stagedFiles, schemaName, tableName)
	l.logger.Verbose("Loading %d staged file(s) from @%s/%s into %s.%s", len(stagedFiles), stageName, stagingPath, schemaName, tableName)
	if len(stagedFiles) >= bendsink.LoadFileListLimit {
		l.logger.Verbose("File list omitted (%d >= %d); loading the whole staging path", len(stagedFiles), bendsink.LoadFileListLimit)
	}
	return l.exec(ctx, "copy into "+schemaName+"."+tableName, query)
}

// ExecuteTransaction runs queries as one concatenated script in a single
// round trip. No transaction boundary is added.
func (l *BatchLoader) ExecuteTransaction(ctx context.Context, queries []string) error {
	if len(queries) == 0 {
		return nil
	}
	return l.exec(ctx, "execute script", strings.Join(queries, "\n"))
}

// CreateSchemaIfNotExists creates the destination database.
func (l *BatchLoader) CreateSchemaIfNotExists(ctx context.Context, schemaName string) error {
	return l.exec(ctx, "create database "+schemaName, CreateSchemaQuery(schemaName))
}

// CreateTableIfNotExists creates a raw table.
func (l *BatchLoader) CreateTableIfNotExists(ctx context.Context, schemaName, tableName string) error {
	return l.exec(ctx, "create table "+schemaName+"."+tableName, CreateTableQuery(schemaName, tableName))
}

// TruncateTable empties a table.
func (l *BatchLoader) TruncateTable(ctx context.Context, schemaName, tableName string) error {
	return l.exec(ctx, "truncate table "+schemaName+"."+tableName, TruncateTableQuery(schemaName, tableName))
}

// DropTableIfExists drops a table.
func (l *BatchLoader) DropTableIfExists(ctx context.Context, schemaName, tableName string) error {
	return l.exec(ctx, "drop table "+schemaName+"."+tableName, DropTableQuery(schemaName, tableName))
}

// InsertRows reads a CSV batch of (id, data, emitted_at) rows and inserts it
// with multi-row INSERT statements.
func (l *BatchLoader) InsertRows(ctx context.Context, schemaName, tableName string, batch bendsink.BufferedBatch) error {
	path, err := batch.LocalFilePath()
	if err != nil {
		return err
	}

	rows, err := readRows(path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		l.logger.Verbose("Batch %s is empty; nothing to insert", path)
		return nil
	}

	for start := 0; start < len(rows); start += insertChunkRows {
		end := min(start+insertChunkRows, len(rows))
		query := InsertRowsQuery(schemaName, tableName, rows[start:end])
		if err := l.exec(ctx, "insert into "+schemaName+"."+tableName, query); err != nil {
			return err
		}
	}
	l.logger.Verbose("Inserted %d row(s) into %s.%s", len(rows), schemaName, tableName)
	return nil
}

func (l *BatchLoader) exec(ctx context.Context, op, query string) error {
	l.logger.Verbose("Executing query: %s", query)
	if err := l.conn.Exec(ctx, query); err != nil {
		return bendsink.NewError(bendsink.KindLoad, op, err)
	}
	return nil
}

func readRows(path string) ([][3]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, bendsink.NewError(bendsink.KindBatchAccess, "open batch "+path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, bendsink.NewError(bendsink.KindBatchAccess, "open batch "+path, err)
		}
		defer zr.Close()
		r = zr
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	var rows [][3]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, bendsink.NewError(bendsink.KindBatchAccess, "read batch "+path, fmt.Errorf("parse csv: %w", err))
		}
		rows = append(rows, [3]string{rec[0], rec[1], rec[2]})
	}
	return rows, nil
}
