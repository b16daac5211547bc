package buffer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/vvka-141/bendsink/internal/naming"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// TimestampLayout is how emitted_at values are written.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Record is one row of the raw table.
type Record struct {
	ID        uuid.UUID
	Data      json.RawMessage
	EmittedAt time.Time
}

// NewRecord builds a record with a fresh ID.
func NewRecord(data json.RawMessage, emittedAt time.Time) Record {
	return Record{ID: uuid.New(), Data: data, EmittedAt: emittedAt}
}

// WriterOption configures a CSVWriter.
type WriterOption func(*CSVWriter)

// WithGzip compresses batch files; they are named *.csv.gz.
func WithGzip() WriterOption {
	return func(w *CSVWriter) {
		w.gzip = true
	}
}

// CSVWriter serializes records into consecutive batch files under one
// directory. Not safe for concurrent use.
type CSVWriter struct {
	dir    string
	prefix string
	gzip   bool

	seq  int
	rows int
	path string
	file *os.File
	gz   *gzip.Writer
	buf  *bufio.Writer
}

// NewCSVWriter creates a writer for stream. Files are named
// <stream>_<namespace>_<seq>.csv.
func NewCSVWriter(dir string, stream bendsink.StreamConfig, opts ...WriterOption) *CSVWriter {
	tr := naming.Transformer{}
	w := &CSVWriter{
		dir:    dir,
		prefix: tr.Identifier(stream.Name) + "_" + tr.Identifier(namespaceOrDefault(stream.Namespace)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write appends one record to the current batch file, opening it if needed.
func (w *CSVWriter) Write(r Record) error {
	if w.buf == nil {
		if err := w.open(); err != nil {
			return err
		}
	}

	data := string(r.Data)
	if data == "" {
		data = "{}"
	}
	line := quote(r.ID.String()) + "," + quote(data) + "," + quote(r.EmittedAt.UTC().Format(TimestampLayout)) + "\n"
	if _, err := w.buf.WriteString(line); err != nil {
		return fmt.Errorf("write record to %s: %w", w.path, err)
	}
	w.rows++
	return nil
}

// Rows returns the number of records in the current batch.
func (w *CSVWriter) Rows() int {
	return w.rows
}

// Flush closes the current batch file and returns it. It returns nil when no
// record was written since the last flush. The next Write starts a new file.
func (w *CSVWriter) Flush() (*FileBatch, error) {
	if w.buf == nil {
		return nil, nil
	}
	path := w.path
	if err := w.close(); err != nil {
		return nil, err
	}
	return NewFileBatch(path), nil
}

// Close flushes and discards the current batch, if any.
func (w *CSVWriter) Close() error {
	if w.buf == nil {
		return nil
	}
	return w.close()
}

func (w *CSVWriter) open() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create batch directory %s: %w", w.dir, err)
	}

	w.seq++
	ext := ".csv"
	if w.gzip {
		ext = ".csv.gz"
	}
	w.path = filepath.Join(w.dir, fmt.Sprintf("%s_%d%s", w.prefix, w.seq, ext))

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create batch file %s: %w", w.path, err)
	}
	w.file = f

	var out io.Writer = f
	if w.gzip {
		w.gz = gzip.NewWriter(f)
		out = w.gz
	}
	w.buf = bufio.NewWriter(out)
	w.rows = 0
	return nil
}

func (w *CSVWriter) close() error {
	defer func() {
		w.buf, w.gz, w.file = nil, nil, nil
		w.rows = 0
	}()

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush batch %s: %w", w.path, err)
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.file.Close()
			return fmt.Errorf("finish gzip batch %s: %w", w.path, err)
		}
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close batch %s: %w", w.path, err)
	}
	return nil
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

func namespaceOrDefault(ns string) string {
	if ns == "" {
		return bendsink.DefaultNamespace
	}
	return ns
}
