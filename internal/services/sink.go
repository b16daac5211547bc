package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/bendsink/internal/loader"
	"github.com/vvka-141/bendsink/internal/naming"
	"github.com/vvka-141/bendsink/internal/staging"
	"github.com/vvka-141/bendsink/internal/workerpool"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// CheckProbeName is the table and stage created and dropped by Check.
const CheckProbeName = "__bendsink_check_probe"

// FlushResult describes one completed flush.
type FlushResult struct {
	Stream   bendsink.StreamConfig
	Identity bendsink.StageIdentity
	// Files holds the logical filename of every batch loaded, in input order.
	Files      []string
	TmpTable   string
	FinalTable string
	// CleanupFailed is set when the stage could not be cleared. The load itself succeeded.
	CleanupFailed bool
}

// StreamBatches pairs a stream with the batches to flush into it.
type StreamBatches struct {
	Stream  bendsink.StreamConfig
	Batches []bendsink.BufferedBatch
}

// SinkService runs the end-to-end flush of buffered batches into final tables.
//
// Thread-Safety: Flush may run concurrently for different streams; each call
// owns its own StagedFileSet.
type SinkService struct {
	ops          *staging.Operations
	namer        *naming.PathNamer
	logger       bendsink.Logger
	schema       string
	connectionID uuid.UUID
	parallelism  int
	verify       bool
	keepStage    bool
	now          func() time.Time
}

// Option configures a SinkService.
type Option func(*SinkService)

// WithVerify reads every staged batch back and compares checksums before loading.
func WithVerify(v bool) Option {
	return func(s *SinkService) { s.verify = v }
}

// WithKeepStage skips stage cleanup after the load, leaving files for inspection.
func WithKeepStage(v bool) Option {
	return func(s *SinkService) { s.keepStage = v }
}

// WithStreamParallelism sets how many streams FlushAll runs at once.
func WithStreamParallelism(n int) Option {
	return func(s *SinkService) { s.parallelism = n }
}

// WithClock overrides the write timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *SinkService) { s.now = now }
}

// NewSinkService creates a SinkService.
// Panics if ops, namer or logger is nil; these are wiring errors.
func NewSinkService(ops *staging.Operations, namer *naming.PathNamer, logger bendsink.Logger, schema string, connectionID uuid.UUID, opts ...Option) *SinkService {
	if ops == nil {
		panic("ops cannot be nil")
	}
	if namer == nil {
		panic("namer cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if schema == "" {
		schema = bendsink.DefaultSchema
	}
	s := &SinkService{
		ops:          ops,
		namer:        namer,
		logger:       logger,
		schema:       schema,
		connectionID: connectionID,
		parallelism:  1,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StageName returns the stage used for stream.
func (s *SinkService) StageName(stream bendsink.StreamConfig) (string, error) {
	return s.namer.StageName(namespaceOrDefault(stream.Namespace), stream.Name)
}

// Flush loads batches into stream's final table.
//
// Staging mode: create schema and stage, upload every batch, create the tmp
// and final tables, COPY INTO tmp, clear the stage, then promote tmp into
// final (truncating final first in overwrite mode). Insert mode replaces the
// stage steps with INSERT statements into tmp.
func (s *SinkService) Flush(ctx context.Context, stream bendsink.StreamConfig, batches []bendsink.BufferedBatch) (*FlushResult, error) {
	if err := stream.Validate(); err != nil {
		return nil, err
	}
	ns := namespaceOrDefault(stream.Namespace)

	identity, err := s.namer.Identity(s.connectionID, ns, stream.Name, s.now())
	if err != nil {
		return nil, err
	}

	tr := s.namer.Transformer()
	res := &FlushResult{
		Stream:     stream,
		Identity:   identity,
		TmpTable:   tr.TmpTableName(stream.Name),
		FinalTable: tr.RawTableName(stream.Name),
	}
	logger := s.logger.With("stream", stream.String()).With("stage", identity.StageName)
	bl := s.ops.Loader

	if err := bl.CreateSchemaIfNotExists(ctx, s.schema); err != nil {
		return nil, err
	}

	if s.ops.Staging() {
		if err := s.stageAndCopy(ctx, logger, identity, batches, res); err != nil {
			return nil, err
		}
	} else {
		if err := s.insert(ctx, logger, batches, res); err != nil {
			return nil, err
		}
	}

	if stream.SyncMode == bendsink.SyncModeOverwrite {
		logger.Info("Overwrite mode: truncating %s.%s", s.schema, res.FinalTable)
		if err := bl.TruncateTable(ctx, s.schema, res.FinalTable); err != nil {
			return nil, err
		}
	}

	promote := []string{
		loader.CopyTableQuery(s.schema, res.TmpTable, res.FinalTable),
		loader.DropTableQuery(s.schema, res.TmpTable),
	}
	if err := bl.ExecuteTransaction(ctx, promote); err != nil {
		return nil, err
	}

	logger.Info("Flushed %d batch(es) into %s.%s", len(res.Files), s.schema, res.FinalTable)
	return res, nil
}

func (s *SinkService) stageAndCopy(ctx context.Context, logger bendsink.Logger, identity bendsink.StageIdentity, batches []bendsink.BufferedBatch, res *FlushResult) error {
	stager, janitor := s.ops.Stager, s.ops.Janitor

	if err := stager.CreateStageIfNotExists(ctx, identity.StageName); err != nil {
		return err
	}

	set := bendsink.NewStagedFileSet()
	if err := stager.UploadBatches(ctx, batches, s.schema, identity.StageName, identity.StagingPath, set); err != nil {
		s.discardStaged(logger, identity, set)
		return err
	}

	if s.verify {
		for _, b := range batches {
			if empty, _ := isEmpty(b); empty {
				continue
			}
			if err := stager.Verify(ctx, identity.StageName, identity.StagingPath, b); err != nil {
				s.discardStaged(logger, identity, set)
				return err
			}
		}
	}

	if err := s.createTables(ctx, res); err != nil {
		return err
	}

	files := set.Files()
	res.Files = files
	if len(files) == 0 {
		logger.Info("Nothing staged, skipping COPY INTO")
	} else if err := s.ops.Loader.Load(ctx, identity.StageName, identity.StagingPath, files, s.schema, res.TmpTable); err != nil {
		return err
	}

	if s.keepStage {
		logger.Info("Keeping %d staged file(s) in @%s/%s", len(files), identity.StageName, identity.StagingPath)
	} else {
		res.CleanupFailed = !janitor.BestEffort(ctx, identity.StageName, files)
	}
	set.Reset()
	return nil
}

// discardStaged clears the staging path of a flush that will not load it. The
// whole path goes, not just the files in set: an upload cut short by a failing
// sibling may have stored its object without being recorded.
func (s *SinkService) discardStaged(logger bendsink.Logger, identity bendsink.StageIdentity, set *bendsink.StagedFileSet) {
	if s.keepStage {
		return
	}
	// The flush context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.ops.Janitor.RemovePath(ctx, identity.StageName, identity.StagingPath); err != nil {
		logger.Error("Failed to clear @%s/%s (ignored): %v", identity.StageName, identity.StagingPath, err)
	}
	set.Reset()
}

func (s *SinkService) insert(ctx context.Context, logger bendsink.Logger, batches []bendsink.BufferedBatch, res *FlushResult) error {
	if err := s.createTables(ctx, res); err != nil {
		return err
	}
	for _, b := range batches {
		if empty, path := isEmpty(b); empty {
			logger.Info("Skipping empty batch %s", path)
			continue
		}
		if err := s.ops.Loader.InsertRows(ctx, s.schema, res.TmpTable, b); err != nil {
			return err
		}
		if name, err := b.LogicalFilename(); err == nil {
			res.Files = append(res.Files, name)
		}
	}
	return nil
}

func (s *SinkService) createTables(ctx context.Context, res *FlushResult) error {
	if err := s.ops.Loader.CreateTableIfNotExists(ctx, s.schema, res.TmpTable); err != nil {
		return err
	}
	return s.ops.Loader.CreateTableIfNotExists(ctx, s.schema, res.FinalTable)
}

// FlushAll flushes several streams, at most WithStreamParallelism at a time.
// The first failing stream cancels the rest.
func (s *SinkService) FlushAll(ctx context.Context, work []StreamBatches) ([]*FlushResult, error) {
	results := make([]*FlushResult, len(work))
	tasks := make([]workerpool.Task, len(work))
	for i, w := range work {
		tasks[i] = func(ctx context.Context, _ string) error {
			res, err := s.Flush(ctx, w.Stream, w.Batches)
			if err != nil {
				return fmt.Errorf("stream %s: %w", w.Stream, err)
			}
			results[i] = res
			return nil
		}
	}
	err := workerpool.New("bendsink-stream-", s.parallelism).Run(ctx, tasks)
	return results, err
}

// DropStage drops stream's stage and everything in it.
func (s *SinkService) DropStage(ctx context.Context, stream bendsink.StreamConfig) (string, error) {
	if s.ops.Stager == nil {
		return "", fmt.Errorf("cleanup requires load.mode %q: %w", bendsink.LoadModeStaging, bendsink.ErrInvalidConfig)
	}
	stage, err := s.StageName(stream)
	if err != nil {
		return "", err
	}
	if err := s.ops.Stager.DropStageIfExists(ctx, stage); err != nil {
		return "", err
	}
	s.logger.Info("Dropped stage %s", stage)
	return stage, nil
}

// RemoveStaged removes objects from stream's stage without dropping it: the
// named files under stagingPath, or everything under stagingPath when files
// is empty. stagingPath must end with '/'.
func (s *SinkService) RemoveStaged(ctx context.Context, stream bendsink.StreamConfig, stagingPath string, files []string) (string, error) {
	if s.ops.Stager == nil {
		return "", fmt.Errorf("cleanup requires load.mode %q: %w", bendsink.LoadModeStaging, bendsink.ErrInvalidConfig)
	}
	if stagingPath == "" || !strings.HasSuffix(stagingPath, "/") {
		return "", fmt.Errorf("staging path %q must end with '/': %w", stagingPath, bendsink.ErrInvalidConfig)
	}
	stage, err := s.StageName(stream)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		if err := s.ops.Janitor.RemovePath(ctx, stage, stagingPath); err != nil {
			return "", err
		}
		s.logger.Info("Removed @%s/%s", stage, stagingPath)
		return stage, nil
	}
	for _, f := range files {
		if err := s.ops.Janitor.RemoveFile(ctx, stage, stagingPath, filepath.Base(f)); err != nil {
			return "", err
		}
	}
	s.logger.Info("Removed %d file(s) from @%s/%s", len(files), stage, stagingPath)
	return stage, nil
}

// Check verifies the connection can create databases, tables and stages by
// creating and dropping a probe of each.
func (s *SinkService) Check(ctx context.Context) error {
	bl := s.ops.Loader

	s.logger.Verbose("Checking database %s", s.schema)
	if err := bl.CreateSchemaIfNotExists(ctx, s.schema); err != nil {
		return err
	}
	if err := bl.CreateTableIfNotExists(ctx, s.schema, CheckProbeName); err != nil {
		return err
	}
	if err := bl.DropTableIfExists(ctx, s.schema, CheckProbeName); err != nil {
		return err
	}

	if s.ops.Staging() {
		if err := s.ops.Stager.CreateStageIfNotExists(ctx, CheckProbeName); err != nil {
			return err
		}
		if err := s.ops.Stager.DropStageIfExists(ctx, CheckProbeName); err != nil {
			return err
		}
	}

	s.logger.Info("Check succeeded for database %s", s.schema)
	return nil
}

func namespaceOrDefault(ns string) string {
	if ns == "" {
		return bendsink.DefaultNamespace
	}
	return ns
}

// isEmpty reports whether the batch file exists and has no content.
func isEmpty(b bendsink.BufferedBatch) (bool, string) {
	path, err := b.LocalFilePath()
	if err != nil || path == "" {
		return false, path
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, path
	}
	return info.Size() == 0, path
}
