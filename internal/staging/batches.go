package staging

import (
	"context"
	"os"

	"github.com/vvka-141/bendsink/internal/workerpool"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// UploadBatches stages batches concurrently and appends every staged filename
// to set in input order. Empty files are skipped without a network call.
// The first batch that fails cancels the others and its error is returned;
// batches staged before that are still added to set so they can be cleaned up.
func (c *Coordinator) UploadBatches(ctx context.Context, batches []bendsink.BufferedBatch, schemaName, stageName, stagingPath string, set *bendsink.StagedFileSet) error {
	names := make([]string, len(batches))

	tasks := make([]workerpool.Task, len(batches))
	for i, batch := range batches {
		tasks[i] = func(ctx context.Context, worker string) error {
			logger := c.logger.With("worker", worker)

			if empty, path := isEmptyBatch(batch); empty {
				logger.Info("Skipping empty batch %s", path)
				return nil
			}

			name, err := c.UploadRecordsToStage(ctx, batch, schemaName, stageName, stagingPath)
			if err != nil {
				logger.Error("Staging failed: %v", err)
				return err
			}
			names[i] = name
			return nil
		}
	}

	err := c.pool.Run(ctx, tasks)

	staged := 0
	for _, name := range names {
		if name != "" {
			set.Add(name)
			staged++
		}
	}
	c.logger.Verbose("Staged %d of %d batch(es) into @%s/%s", staged, len(batches), stageName, stagingPath)
	return err
}

// isEmptyBatch reports whether the batch file exists and has no content.
// Unreadable batches are not empty; the attempt loop reports them.
func isEmptyBatch(batch bendsink.BufferedBatch) (bool, string) {
	path, err := batch.LocalFilePath()
	if err != nil || path == "" {
		return false, path
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, path
	}
	return info.Size() == 0, path
}
