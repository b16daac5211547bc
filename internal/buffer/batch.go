// Package buffer provides the default local batch files the sink stages.
package buffer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// FileBatch is a bendsink.BufferedBatch over an existing local file.
type FileBatch struct {
	path string
	name string
}

// NewFileBatch wraps path. The logical filename is its base name.
func NewFileBatch(path string) *FileBatch {
	return &FileBatch{path: path, name: filepath.Base(path)}
}

// LocalFilePath returns the absolute path of the file.
func (b *FileBatch) LocalFilePath() (string, error) {
	if _, err := b.stat(); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(b.path)
	if err != nil {
		return "", bendsink.NewError(bendsink.KindBatchAccess, "batch path", err)
	}
	return abs, nil
}

// LogicalFilename returns the name the file is staged under.
func (b *FileBatch) LogicalFilename() (string, error) {
	if _, err := b.stat(); err != nil {
		return "", err
	}
	return b.name, nil
}

// Size returns the file size in bytes.
func (b *FileBatch) Size() (int64, error) {
	info, err := b.stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes the local file. A missing file is not an error.
func (b *FileBatch) Remove() error {
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove batch %s: %w", b.path, err)
	}
	return nil
}

func (b *FileBatch) stat() (os.FileInfo, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		return nil, bendsink.NewError(bendsink.KindBatchAccess, "batch "+b.path, err)
	}
	if info.IsDir() {
		return nil, bendsink.NewError(bendsink.KindBatchAccess, "batch "+b.path, fmt.Errorf("is a directory"))
	}
	return info, nil
}

// ScanDir returns every *.csv and *.csv.gz file directly under dir, sorted by name.
func ScanDir(dir string) ([]*FileBatch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan batch directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".csv.gz") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	batches := make([]*FileBatch, len(names))
	for i, name := range names {
		batches[i] = NewFileBatch(filepath.Join(dir, name))
	}
	return batches, nil
}
