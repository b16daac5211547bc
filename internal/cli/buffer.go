package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/bendsink/internal/buffer"
	"github.com/vvka-141/bendsink/internal/config"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// maxRecordBytes bounds one JSON line.
const maxRecordBytes = 16 << 20

var bufferCmd = &cobra.Command{
	Use:   "buffer <records_file>",
	Short: "Write JSON-lines records into batch files",
	Long: `Buffer reads one JSON document per line and writes the records into CSV
batch files ready for 'bendsink load'. Each row carries a fresh record ID,
the document and the time it was buffered.

Use - as records_file to read standard input.

Examples:
  bendsink buffer users.jsonl --stream public.users --out ./batches
  cat users.jsonl | bendsink buffer - --stream public.users --out ./batches --gzip`,
	Args: RequireRecordsFile,
	RunE: runBuffer,
}

type bufferFlagValues struct {
	stream    string
	out       string
	gzip      bool
	batchRows int
}

var bufferFlags bufferFlagValues

func init() {
	rootCmd.AddCommand(bufferCmd)

	bufferCmd.Flags().StringVar(&bufferFlags.stream, "stream", "", "Stream the records belong to, as namespace.name")
	bufferCmd.Flags().StringVar(&bufferFlags.out, "out", ".", "Directory batch files are written to")
	bufferCmd.Flags().BoolVar(&bufferFlags.gzip, "gzip", false, "Write gzip-compressed batches (*.csv.gz)")
	bufferCmd.Flags().IntVar(&bufferFlags.batchRows, "batch-rows", 10000, "Records per batch file")
	_ = bufferCmd.MarkFlagRequired("stream")
	_ = bufferCmd.RegisterFlagCompletionFunc("stream", completeStreams)
}

// writeRecords splits JSON lines from r into batches of batchRows records.
// Blank lines are skipped; a line that is not valid JSON is an error.
func writeRecords(r io.Reader, w *buffer.CSVWriter, batchRows int, now func() time.Time) ([]*buffer.FileBatch, error) {
	if batchRows < 1 {
		return nil, fmt.Errorf("--batch-rows must be at least 1: %w", bendsink.ErrInvalidConfig)
	}

	var batches []*buffer.FileBatch
	flush := func() error {
		b, err := w.Flush()
		if err != nil {
			return err
		}
		if b != nil {
			batches = append(batches, b)
		}
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxRecordBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			w.Close()
			return nil, fmt.Errorf("line %d is not valid JSON", line)
		}
		data := make(json.RawMessage, len(raw))
		copy(data, raw)
		if err := w.Write(buffer.NewRecord(data, now())); err != nil {
			w.Close()
			return nil, err
		}
		if w.Rows() >= batchRows {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		w.Close()
		return nil, fmt.Errorf("read records: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return batches, nil
}

func runBuffer(cmd *cobra.Command, args []string) error {
	stream, err := config.ParseStreamRef(bufferFlags.stream)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open records file: %w", err)
		}
		defer f.Close()
		in = f
	}

	var opts []buffer.WriterOption
	if bufferFlags.gzip {
		opts = append(opts, buffer.WithGzip())
	}
	w := buffer.NewCSVWriter(bufferFlags.out, stream, opts...)

	batches, err := writeRecords(in, w, bufferFlags.batchRows, time.Now)
	if err != nil {
		return err
	}
	for _, b := range batches {
		path, err := b.LocalFilePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
