package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

type mockUploader struct {
	mu       sync.Mutex
	uploads  []string
	upload   func(target bendsink.PresignedTarget, path string) (int, error)
	download func(target bendsink.PresignedTarget, w io.Writer) error
}

func (m *mockUploader) UploadFile(_ context.Context, target bendsink.PresignedTarget, path string) (int, error) {
	m.mu.Lock()
	m.uploads = append(m.uploads, filepath.Base(path))
	m.mu.Unlock()
	if m.upload == nil {
		return 200, nil
	}
	return m.upload(target, path)
}

func (m *mockUploader) Download(_ context.Context, target bendsink.PresignedTarget, w io.Writer) error {
	if m.download == nil {
		return nil
	}
	return m.download(target, w)
}

func (m *mockUploader) Uploads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.uploads))
	copy(out, m.uploads)
	return out
}

type fileBatch struct {
	path string
	name string
}

func (b *fileBatch) LocalFilePath() (string, error)   { return b.path, nil }
func (b *fileBatch) LogicalFilename() (string, error) { return b.name, nil }

func newBatch(t *testing.T, name, content string) *fileBatch {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return &fileBatch{path: path, name: name}
}
