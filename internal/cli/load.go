package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/bendsink/internal/buffer"
	"github.com/vvka-141/bendsink/internal/config"
	"github.com/vvka-141/bendsink/internal/naming"
	"github.com/vvka-141/bendsink/internal/services"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

var loadCmd = &cobra.Command{
	Use:   "load <batch_dir>",
	Short: "Stage and load buffered batches",
	Long: `Load stages every *.csv and *.csv.gz batch in batch_dir and loads it into
the raw table of its stream.

For each stream:
1. Creates the database and the stream's stage if missing
2. Uploads every batch through a presigned URL (retried up to 5 attempts)
3. Runs COPY INTO a temporary table, then clears the stage
4. Appends the temporary table into _airbyte_raw_<stream>
   (with --overwrite the final table is truncated first)

With a single stream every batch in batch_dir belongs to it. With several,
a batch belongs to the stream whose "<stream>_<namespace>_" prefix it
carries, the naming used by 'bendsink buffer'.

Arguments:
  batch_dir    Directory holding the batch files

Examples:
  # Load batches for one stream
  bendsink load ./batches --stream public.users

  # Load several streams, two at a time, replacing existing rows
  bendsink load ./batches --stream public.users --stream public.orders \
    --stream-parallelism 2 --overwrite

  # Verify every upload by reading it back before COPY INTO
  bendsink load ./batches --stream public.users --verify`,
	Args: RequireBatchDir,
	RunE: runLoad,
}

type loadFlagValues struct {
	streams           []string
	schema            string
	mode              string
	parallelism       int
	streamParallelism int
	overwrite         bool
	verify            bool
	keepStage         bool
	deleteBatches     bool
	connectionID      string
	timeout           time.Duration
}

var loadFlags loadFlagValues

func init() {
	rootCmd.AddCommand(loadCmd)

	f := loadCmd.Flags()
	f.StringSliceVar(&loadFlags.streams, "stream", nil,
		"Stream to load as namespace.name (can be specified multiple times)\n"+
			"Default: every stream listed in the configuration file")
	f.StringVar(&loadFlags.schema, "schema", "", "Destination database (overrides schema in config)")
	f.StringVar(&loadFlags.mode, "mode", "", "Load mode: staging|insert (overrides load.mode)")
	f.IntVar(&loadFlags.parallelism, "parallelism", 0, "Concurrent uploads per stream (overrides load.parallelism)")
	f.IntVar(&loadFlags.streamParallelism, "stream-parallelism", 1, "Streams loaded at once")
	f.BoolVar(&loadFlags.overwrite, "overwrite", false, "Truncate each final table before promoting the new rows")
	f.BoolVar(&loadFlags.verify, "verify", false, "Read every staged batch back and compare SHA-256 before loading")
	f.BoolVar(&loadFlags.keepStage, "keep-stage", false, "Leave staged files in place after the load")
	f.BoolVar(&loadFlags.deleteBatches, "delete-batches", false, "Delete local batch files after a successful load")
	f.StringVar(&loadFlags.connectionID, "connection-id", "",
		"UUID used in staging paths (default: derived from the connection string)")
	f.DurationVar(&loadFlags.timeout, "timeout", time.Hour,
		"Catastrophic failure protection timeout\n"+
			"Examples: 30m, 2h. Zero disables it")

	_ = loadCmd.RegisterFlagCompletionFunc("stream", completeStreams)
	_ = loadCmd.RegisterFlagCompletionFunc("mode", completeLoadModes)
}

// applyLoadOverrides layers load flags over the config file.
func applyLoadOverrides(cfg *config.Config, flags loadFlagValues) error {
	if flags.mode != "" {
		cfg.Load.Mode = bendsink.LoadMode(flags.mode)
	}
	if flags.parallelism != 0 {
		cfg.Load.Parallelism = flags.parallelism
	}
	return cfg.Validate()
}

// selectStreams resolves --stream refs against the config, or returns every
// configured stream when none is given.
func selectStreams(cfg *config.Config, refs []string, overwrite bool) ([]bendsink.StreamConfig, error) {
	var streams []bendsink.StreamConfig
	if len(refs) == 0 {
		streams = append(streams, cfg.Streams...)
	}
	for _, ref := range refs {
		s, err := cfg.Stream(ref)
		if err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	if len(streams) == 0 {
		return nil, fmt.Errorf("no stream to load: pass --stream or list streams in %s: %w", config.ConfigFileName, bendsink.ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(streams))
	for i := range streams {
		if seen[streams[i].String()] {
			return nil, fmt.Errorf("stream %s given twice: %w", streams[i], bendsink.ErrInvalidConfig)
		}
		seen[streams[i].String()] = true
		if overwrite {
			streams[i].SyncMode = bendsink.SyncModeOverwrite
		}
	}
	if err := naming.CheckDistinct(streams); err != nil {
		return nil, err
	}
	if err := checkBatchPrefixes(streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// checkBatchPrefixes rejects stream sets whose batch files could not be told
// apart by assignBatches.
func checkBatchPrefixes(streams []bendsink.StreamConfig) error {
	if len(streams) < 2 {
		return nil
	}
	for i := range streams {
		for j := range streams {
			if i != j && strings.HasPrefix(batchPrefix(streams[j]), batchPrefix(streams[i])) {
				return fmt.Errorf("batch files of streams %s and %s share prefix %q: %w",
					streams[i], streams[j], batchPrefix(streams[i]), bendsink.ErrInvalidConfig)
			}
		}
	}
	return nil
}

// batchPrefix is the filename prefix CSVWriter gives a stream's batches.
func batchPrefix(s bendsink.StreamConfig) string {
	tr := naming.Transformer{}
	ns := s.Namespace
	if ns == "" {
		ns = bendsink.DefaultNamespace
	}
	return tr.Identifier(s.Name) + "_" + tr.Identifier(ns) + "_"
}

// assignBatches groups batch files by stream. Files matching no stream are
// returned separately.
func assignBatches(streams []bendsink.StreamConfig, files []*buffer.FileBatch) ([]services.StreamBatches, []string) {
	work := make([]services.StreamBatches, len(streams))
	for i, s := range streams {
		work[i].Stream = s
	}

	var unmatched []string
	for _, f := range files {
		if len(streams) == 1 {
			work[0].Batches = append(work[0].Batches, f)
			continue
		}
		base, err := f.LogicalFilename()
		if err != nil {
			continue
		}
		matched := false
		for i, s := range streams {
			if strings.HasPrefix(base, batchPrefix(s)) {
				work[i].Batches = append(work[i].Batches, f)
				matched = true
				break
			}
		}
		if !matched {
			unmatched = append(unmatched, base)
		}
	}
	return work, unmatched
}

func runLoad(cmd *cobra.Command, args []string) error {
	batchDir := args[0]
	verbose := getVerboseFlag(cmd)

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	if err := applyLoadOverrides(cfg, loadFlags); err != nil {
		return err
	}
	streams, err := selectStreams(cfg, loadFlags.streams, loadFlags.overwrite)
	if err != nil {
		return err
	}

	files, err := buffer.ScanDir(batchDir)
	if err != nil {
		return err
	}
	work, unmatched := assignBatches(streams, files)

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	for _, name := range unmatched {
		logger.Info("Skipping %s: it matches none of the selected streams", name)
	}

	ctx, cancel := commandContext(loadFlags.timeout)
	defer cancel()

	stack, err := openSink(ctx, cfg, logger, sinkOptions{
		schema:       loadFlags.schema,
		connectionID: loadFlags.connectionID,
		verify:       loadFlags.verify,
		keepStage:    loadFlags.keepStage,
	}, loadFlags.streamParallelism)
	if err != nil {
		return err
	}
	defer stack.Close()

	results, err := stack.sink.FlushAll(ctx, work)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	for _, res := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d file(s)\t%s\n", res.Stream, len(res.Files), res.FinalTable)
		if res.CleanupFailed {
			fmt.Fprintf(os.Stderr, "Warning: stage %s was not cleared; run 'bendsink cleanup --stream %s'\n", res.Identity.StageName, res.Stream)
		}
	}

	if loadFlags.deleteBatches {
		deleteLoaded(files, unmatched, logger)
	}
	return nil
}

// deleteLoaded removes every scanned batch except the unmatched ones.
func deleteLoaded(files []*buffer.FileBatch, unmatched []string, logger bendsink.Logger) {
	skip := make(map[string]bool, len(unmatched))
	for _, name := range unmatched {
		skip[name] = true
	}
	for _, f := range files {
		if name, err := f.LogicalFilename(); err == nil && skip[name] {
			continue
		}
		if err := f.Remove(); err != nil {
			logger.Error("Failed to delete batch: %v", err)
		}
	}
}
