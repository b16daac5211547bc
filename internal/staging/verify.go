package staging

import (
	"context"
	"fmt"
	"io"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// Verify downloads a staged batch and compares its SHA-256 with the local file.
func (c *Coordinator) Verify(ctx context.Context, stageName, stagingPath string, batch bendsink.BufferedBatch) error {
	path, err := batch.LocalFilePath()
	if err != nil {
		return asBatchAccess(err)
	}
	name, err := batch.LogicalFilename()
	if err != nil {
		return asBatchAccess(err)
	}
	op := fmt.Sprintf("verify @%s/%s%s", stageName, stagingPath, name)

	local, err := c.checksum.CalculateFile(path)
	if err != nil {
		return bendsink.NewError(bendsink.KindBatchAccess, op, err)
	}

	target, err := c.presigner.PresignDownload(ctx, stageName, stagingPath, name)
	if err != nil {
		return err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(c.uploader.Download(ctx, target, pw))
	}()
	remote, err := c.checksum.CalculateReader(pr)
	pr.Close()
	if err != nil {
		if bendsink.KindOf(err) != bendsink.KindUnknown {
			return err
		}
		return bendsink.NewError(bendsink.KindUpload, op, err)
	}

	if remote != local {
		return bendsink.NewError(bendsink.KindUpload, op, fmt.Errorf("checksum mismatch: local %s, staged %s", local, remote))
	}
	c.logger.Verbose("Verified %s (sha256 %s)", name, local)
	return nil
}
