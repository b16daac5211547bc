// Package janitor removes staged objects once they have been loaded.
package janitor

import (
	"context"
	"fmt"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

const (
	removeStageQuery = "REMOVE @%s;"
	removeFileQuery  = "REMOVE @%s/%s%s;"
	removePathQuery  = "REMOVE @%s/%s;"
)

// RemoveStageQuery returns the statement removing every object in a stage.
func RemoveStageQuery(stageName string) string {
	return fmt.Sprintf(removeStageQuery, stageName)
}

// RemoveFileQuery returns the statement removing one staged object.
func RemoveFileQuery(stageName, stagingPath, fileName string) string {
	return fmt.Sprintf(removeFileQuery, stageName, stagingPath, fileName)
}

// RemovePathQuery returns the statement removing every object under a staging path.
func RemovePathQuery(stageName, stagingPath string) string {
	return fmt.Sprintf(removePathQuery, stageName, stagingPath)
}

// StageJanitor cleans up stages over the control connection.
type StageJanitor struct {
	conn   bendsink.DBConnection
	logger bendsink.Logger
}

// New creates a janitor. Panics if conn or logger is nil.
func New(conn bendsink.DBConnection, logger bendsink.Logger) *StageJanitor {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &StageJanitor{conn: conn, logger: logger}
}

// Cleanup removes everything in stageName. stagedFiles is only reported; the
// whole stage is cleared. Removing an empty stage succeeds.
func (j *StageJanitor) Cleanup(ctx context.Context, stageName string, stagedFiles []string) error {
	query := RemoveStageQuery(stageName)
	j.logger.Verbose("Executing query: %s", query)
	if err := j.conn.Exec(ctx, query); err != nil {
		return bendsink.NewError(bendsink.KindCleanup, "remove @"+stageName, err)
	}
	j.logger.Verbose("Removed stage objects from @%s (%d staged file(s))", stageName, len(stagedFiles))
	return nil
}

// RemoveFile removes one staged object.
func (j *StageJanitor) RemoveFile(ctx context.Context, stageName, stagingPath, fileName string) error {
	query := RemoveFileQuery(stageName, stagingPath, fileName)
	j.logger.Verbose("Executing query: %s", query)
	if err := j.conn.Exec(ctx, query); err != nil {
		return bendsink.NewError(bendsink.KindCleanup, "remove @"+stageName+"/"+stagingPath+fileName, err)
	}
	return nil
}

// RemovePath removes every object under stagingPath, including objects whose
// upload was reported as failed but reached the store anyway.
func (j *StageJanitor) RemovePath(ctx context.Context, stageName, stagingPath string) error {
	query := RemovePathQuery(stageName, stagingPath)
	j.logger.Verbose("Executing query: %s", query)
	if err := j.conn.Exec(ctx, query); err != nil {
		return bendsink.NewError(bendsink.KindCleanup, "remove @"+stageName+"/"+stagingPath, err)
	}
	return nil
}

// BestEffort runs Cleanup and logs a failure instead of returning it.
// It reports whether cleanup succeeded.
func (j *StageJanitor) BestEffort(ctx context.Context, stageName string, stagedFiles []string) bool {
	if err := j.Cleanup(ctx, stageName, stagedFiles); err != nil {
		j.logger.Error("Stage cleanup failed (ignored): %v", err)
		return false
	}
	return true
}
