package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

type mockPresigner struct {
	mu       sync.Mutex
	calls    int
	upload   func(call int, stage, path, file string) (bendsink.PresignedTarget, error)
	download func(stage, path, file string) (bendsink.PresignedTarget, error)
}

func (m *mockPresigner) PresignUpload(_ context.Context, stage, path, file string) (bendsink.PresignedTarget, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	if m.upload == nil {
		return bendsink.PresignedTarget{Method: "PUT", URL: fmt.Sprintf("https://store/%s/%s%s?sig=%d", stage, path, file, call)}, nil
	}
	return m.upload(call, stage, path, file)
}

func (m *mockPresigner) PresignDownload(_ context.Context, stage, path, file string) (bendsink.PresignedTarget, error) {
	if m.download == nil {
		return bendsink.PresignedTarget{Method: "GET", URL: "https://store/" + stage + "/" + path + file}, nil
	}
	return m.download(stage, path, file)
}

func (m *mockPresigner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockUploader struct {
	mu      sync.Mutex
	calls   int
	targets []bendsink.PresignedTarget
	upload  func(call int, target bendsink.PresignedTarget, path string) (int, error)
	content []byte
	dlErr   error
}

func (m *mockUploader) UploadFile(_ context.Context, target bendsink.PresignedTarget, path string) (int, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.targets = append(m.targets, target)
	m.mu.Unlock()
	if m.upload == nil {
		return 200, nil
	}
	return m.upload(call, target, path)
}

func (m *mockUploader) Download(_ context.Context, _ bendsink.PresignedTarget, w io.Writer) error {
	if m.dlErr != nil {
		return m.dlErr
	}
	_, err := w.Write(m.content)
	return err
}

func (m *mockUploader) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fileBatch is a BufferedBatch over a temp file.
type fileBatch struct {
	path string
	name string
	err  error
}

func (b *fileBatch) LocalFilePath() (string, error)   { return b.path, b.err }
func (b *fileBatch) LogicalFilename() (string, error) { return b.name, b.err }

func newBatch(t *testing.T, name, content string) *fileBatch {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return &fileBatch{path: path, name: name}
}
