// Package staging moves buffered batches into a warehouse stage.
//
// Every file goes through the same attempt loop: read the batch's path and
// name, presign an upload, PUT the bytes. A failed attempt of any kind is
// retried with a fresh presigned URL until bendsink.MaxRetry attempts have
// been made, after which the file fails with a StagingExhausted error that
// lists each attempt.
package staging

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vvka-141/bendsink/internal/checksum"
	"github.com/vvka-141/bendsink/internal/retry"
	"github.com/vvka-141/bendsink/internal/workerpool"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

const (
	createStageQuery = "CREATE STAGE IF NOT EXISTS %s;"
	dropStageQuery   = "DROP STAGE IF EXISTS %s;"
)

// Presigner returns short-lived object store targets.
type Presigner interface {
	PresignUpload(ctx context.Context, stageName, stagingPath, fileName string) (bendsink.PresignedTarget, error)
	PresignDownload(ctx context.Context, stageName, stagingPath, fileName string) (bendsink.PresignedTarget, error)
}

// ObjectUploader transfers bytes to and from presigned targets.
type ObjectUploader interface {
	UploadFile(ctx context.Context, target bendsink.PresignedTarget, path string) (int, error)
	Download(ctx context.Context, target bendsink.PresignedTarget, w io.Writer) error
}

// Coordinator stages batches with retry.
type Coordinator struct {
	conn      bendsink.DBConnection
	presigner Presigner
	uploader  ObjectUploader
	logger    bendsink.Logger

	classifier bendsink.ErrorClassifier
	strategy   bendsink.BackoffStrategy
	pool       *workerpool.Pool
	checksum   checksum.Calculator
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClassifier decides which failed attempts are retried.
// The default retries every failure.
func WithClassifier(c bendsink.ErrorClassifier) Option {
	return func(co *Coordinator) {
		co.classifier = c
	}
}

// WithBackoff sets the wait between attempts. A zero initial delay retries
// immediately. The attempt ceiling stays bendsink.MaxRetry.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(co *Coordinator) {
		co.strategy = newStagingBackoff(initial, maxDelay)
	}
}

// WithParallelism sets how many batches UploadBatches stages at once.
func WithParallelism(n int) Option {
	return func(co *Coordinator) {
		co.pool = workerpool.New(bendsink.WorkerNamePrefix, n)
	}
}

// NewCoordinator creates a coordinator. Panics if a dependency is nil.
func NewCoordinator(conn bendsink.DBConnection, presigner Presigner, uploader ObjectUploader, logger bendsink.Logger, opts ...Option) *Coordinator {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if presigner == nil {
		panic("presigner cannot be nil")
	}
	if uploader == nil {
		panic("uploader cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	c := &Coordinator{
		conn:       conn,
		presigner:  presigner,
		uploader:   uploader,
		logger:     logger,
		classifier: retry.AlwaysRetry{},
		strategy:   newStagingBackoff(bendsink.DefaultRetryInitialDelay, bendsink.DefaultRetryMaxDelay),
		pool:       workerpool.New(bendsink.WorkerNamePrefix, bendsink.DefaultParallelism),
		checksum:   checksum.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newStagingBackoff(initial, maxDelay time.Duration) *retry.ExponentialBackoff {
	return retry.NewExponentialBackoff(bendsink.MaxRetry,
		retry.WithInitialDelay(initial),
		retry.WithMaxDelay(maxDelay),
		retry.WithJitter(bendsink.DefaultRetryJitter),
	)
}

// CreateStageIfNotExists creates stageName. Not retried.
func (c *Coordinator) CreateStageIfNotExists(ctx context.Context, stageName string) error {
	query := fmt.Sprintf(createStageQuery, stageName)
	c.logger.Verbose("Executing query: %s", query)
	if err := c.conn.Exec(ctx, query); err != nil {
		return bendsink.NewError(bendsink.KindStage, "create stage "+stageName, err)
	}
	return nil
}

// DropStageIfExists drops stageName. Not retried.
func (c *Coordinator) DropStageIfExists(ctx context.Context, stageName string) error {
	query := fmt.Sprintf(dropStageQuery, stageName)
	c.logger.Verbose("Executing query: %s", query)
	if err := c.conn.Exec(ctx, query); err != nil {
		return bendsink.NewError(bendsink.KindStage, "drop stage "+stageName, err)
	}
	return nil
}

// UploadRecordsToStage stages one batch under stagingPath and returns its
// logical filename. schemaName is accepted for symmetry with the load step;
// the stage is not schema-scoped.
func (c *Coordinator) UploadRecordsToStage(ctx context.Context, batch bendsink.BufferedBatch, schemaName, stageName, stagingPath string) (string, error) {
	op := fmt.Sprintf("stage batch into @%s/%s", stageName, stagingPath)
	logger := c.logger.With("stage", stageName)

	executor := retry.NewExecutor(c.classifier, c.strategy).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Verbose("Staging attempt %d/%d failed: %v (retrying in %s)", attempt, bendsink.MaxRetry, err, delay)
	})

	var fileName string
	res := executor.Run(ctx, func(ctx context.Context) error {
		name, err := c.stageOnce(ctx, batch, stageName, stagingPath)
		if err != nil {
			return err
		}
		fileName = name
		return nil
	})
	if res.Err == nil {
		logger.Verbose("Staged %s into @%s/%s", fileName, stageName, stagingPath)
		return fileName, nil
	}

	return "", &bendsink.Error{
		Kind:     bendsink.KindStagingExhausted,
		Op:       op,
		Err:      contextErr(ctx, res.Err),
		Attempts: res.Attempts,
	}
}

// stageOnce is a single attempt: it always presigns a new target.
func (c *Coordinator) stageOnce(ctx context.Context, batch bendsink.BufferedBatch, stageName, stagingPath string) (string, error) {
	path, err := batch.LocalFilePath()
	if err != nil {
		return "", asBatchAccess(err)
	}
	name, err := batch.LogicalFilename()
	if err != nil {
		return "", asBatchAccess(err)
	}
	if path == "" || name == "" {
		return "", bendsink.NewError(bendsink.KindBatchAccess, "stage batch", fmt.Errorf("record file path is empty"))
	}

	target, err := c.presigner.PresignUpload(ctx, stageName, stagingPath, name)
	if err != nil {
		return "", err
	}
	if _, err := c.uploader.UploadFile(ctx, target, path); err != nil {
		return "", err
	}
	return name, nil
}

func asBatchAccess(err error) error {
	if bendsink.KindOf(err) != bendsink.KindUnknown {
		return err
	}
	return bendsink.NewError(bendsink.KindBatchAccess, "read batch", err)
}

// contextErr keeps the cancellation cause reachable with errors.Is when the
// loop stopped because ctx ended.
func contextErr(ctx context.Context, last error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return last
}
