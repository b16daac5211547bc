package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vvka-141/bendsink/internal/buffer"
	"github.com/vvka-141/bendsink/internal/config"
	"github.com/vvka-141/bendsink/internal/logging"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Streams = []bendsink.StreamConfig{
		{Namespace: "public", Name: "users", SyncMode: bendsink.SyncModeOverwrite},
		{Namespace: "public", Name: "orders", SyncMode: bendsink.SyncModeAppend},
	}
	return cfg
}

func TestSelectStreams(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name      string
		refs      []string
		overwrite bool
		want      []bendsink.StreamConfig
		wantErr   bool
	}{
		{
			name: "all configured streams",
			want: cfg.Streams,
		},
		{
			name: "configured sync mode kept",
			refs: []string{"public.users"},
			want: []bendsink.StreamConfig{{Namespace: "public", Name: "users", SyncMode: bendsink.SyncModeOverwrite}},
		},
		{
			name: "unlisted stream appends",
			refs: []string{"events"},
			want: []bendsink.StreamConfig{{Namespace: "default", Name: "events", SyncMode: bendsink.SyncModeAppend}},
		},
		{
			name:      "overwrite flag",
			refs:      []string{"public.orders"},
			overwrite: true,
			want:      []bendsink.StreamConfig{{Namespace: "public", Name: "orders", SyncMode: bendsink.SyncModeOverwrite}},
		},
		{
			name:    "duplicate",
			refs:    []string{"public.users", "public.users"},
			wantErr: true,
		},
		{
			name:    "empty ref",
			refs:    []string{""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectStreams(testConfig(), tt.refs, tt.overwrite)
			if tt.wantErr {
				if !errors.Is(err, bendsink.ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("stream %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSelectStreams_NoneAvailable(t *testing.T) {
	_, err := selectStreams(config.Default(), nil, false)
	if !errors.Is(err, bendsink.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSelectStreams_RejectsConvertedNameCollisions(t *testing.T) {
	tests := []struct {
		name string
		refs []string
		want string
	}{
		{"dash and underscore", []string{"public.a-b", "public.a_b"}, "stage public_a_b"},
		{"case", []string{"public.Users", "public.users"}, "stage public_users"},
		{"same table in two namespaces", []string{"eu.users", "us.users"}, "table _airbyte_raw_users"},
		{"batch prefix overlap", []string{"public.users", "x.users_public"}, `prefix "users_public_"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectStreams(config.Default(), tt.refs, false)
			if !errors.Is(err, bendsink.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got streams %v, err %v", got, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestBatchPrefix(t *testing.T) {
	tests := []struct {
		stream bendsink.StreamConfig
		want   string
	}{
		{bendsink.StreamConfig{Namespace: "public", Name: "users"}, "users_public_"},
		{bendsink.StreamConfig{Name: "Users"}, "users_default_"},
		{bendsink.StreamConfig{Namespace: "my-ns", Name: "1st"}, "_1st_my_ns_"},
	}
	for _, tt := range tests {
		if got := batchPrefix(tt.stream); got != tt.want {
			t.Errorf("batchPrefix(%+v) = %q, want %q", tt.stream, got, tt.want)
		}
	}
}

func writeBatchFiles(t *testing.T, names ...string) []*buffer.FileBatch {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := buffer.ScanDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return files
}

func TestAssignBatches_SingleStreamTakesAll(t *testing.T) {
	files := writeBatchFiles(t, "a.csv", "b.csv.gz")
	streams := []bendsink.StreamConfig{{Namespace: "public", Name: "users"}}

	work, unmatched := assignBatches(streams, files)
	if len(work) != 1 || len(work[0].Batches) != 2 {
		t.Fatalf("expected both batches for the only stream, got %+v", work)
	}
	if len(unmatched) != 0 {
		t.Errorf("unexpected unmatched files: %v", unmatched)
	}
}

func TestAssignBatches_ByPrefix(t *testing.T) {
	files := writeBatchFiles(t, "users_public_1.csv", "orders_public_1.csv", "users_public_2.csv", "stray.csv")
	streams := []bendsink.StreamConfig{
		{Namespace: "public", Name: "users"},
		{Namespace: "public", Name: "orders"},
	}

	work, unmatched := assignBatches(streams, files)

	count := func(i int) int { return len(work[i].Batches) }
	if count(0) != 2 || count(1) != 1 {
		t.Errorf("expected 2 users and 1 orders batch, got %d and %d", count(0), count(1))
	}
	if len(unmatched) != 1 || unmatched[0] != "stray.csv" {
		t.Errorf("unmatched = %v, want [stray.csv]", unmatched)
	}
}

func TestApplyLoadOverrides(t *testing.T) {
	cfg := config.Default()
	err := applyLoadOverrides(cfg, loadFlagValues{mode: "insert", parallelism: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Load.Mode != bendsink.LoadModeInsert || cfg.Load.Parallelism != 9 {
		t.Errorf("overrides not applied: %+v", cfg.Load)
	}

	if err := applyLoadOverrides(config.Default(), loadFlagValues{parallelism: -1}); err == nil {
		t.Error("expected error for negative parallelism")
	}
}

func TestDeleteLoaded_KeepsUnmatched(t *testing.T) {
	files := writeBatchFiles(t, "stray.csv", "users_public_1.csv")

	deleteLoaded(files, []string{"stray.csv"}, logging.NewNullLogger())

	if _, err := files[0].LogicalFilename(); err != nil {
		t.Errorf("expected unmatched batch to be kept: %v", err)
	}
	if _, err := files[1].LogicalFilename(); err == nil {
		t.Error("expected loaded batch to be deleted")
	}
}
