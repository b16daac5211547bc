package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/bendsink/internal/janitor"
	"github.com/vvka-141/bendsink/internal/loader"
	"github.com/vvka-141/bendsink/internal/logging"
	"github.com/vvka-141/bendsink/internal/naming"
	"github.com/vvka-141/bendsink/internal/presign"
	"github.com/vvka-141/bendsink/internal/staging"
	testhelpers "github.com/vvka-141/bendsink/internal/testing"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

var (
	testConnID   = uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-901234567890")
	testClock    = func() time.Time { return time.Date(2024, 1, 2, 3, 45, 0, 0, time.UTC) }
	testPath     = "2024/01/02/03/" + testConnID.String() + "/"
	usersStream  = bendsink.StreamConfig{Namespace: "public", Name: "users", SyncMode: bendsink.SyncModeAppend}
	row          = "\"id\",\"{}\",\"2024-01-02 03:00:00.000000\"\n"
	presignOKRow = func(ctx context.Context, sql string) ([]any, error) {
		return testhelpers.PresignRow("PUT", `{"Content-Type":"text/csv"}`, "https://store/upload?X-Amz-Signature=s"), nil
	}
)

type fixture struct {
	db       *testhelpers.FakeDB
	uploader *mockUploader
	svc      *SinkService
}

func newFixture(t *testing.T, mode bendsink.LoadMode, opts ...Option) *fixture {
	t.Helper()
	fdb := &testhelpers.FakeDB{QueryRowFunc: presignOKRow}
	up := &mockUploader{}
	logger := logging.NewNullLogger()

	coord := staging.NewCoordinator(fdb, presign.NewClient(fdb), up, logger, staging.WithBackoff(0, 0))
	ops, err := staging.NewOperations(mode, loader.NewBatchLoader(fdb, logger), coord, janitor.New(fdb, logger))
	require.NoError(t, err)

	opts = append([]Option{WithClock(testClock)}, opts...)
	return &fixture{
		db:       fdb,
		uploader: up,
		svc:      NewSinkService(ops, naming.NewPathNamer(), logger, "default", testConnID, opts...),
	}
}

// nonPresign drops PRESIGN round trips, whose order depends on upload scheduling.
func nonPresign(stmts []string) []string {
	var out []string
	for _, s := range stmts {
		if !strings.HasPrefix(s, "PRESIGN") {
			out = append(out, s)
		}
	}
	return out
}

func TestNewSinkService_PanicsOnNilDependencies(t *testing.T) {
	ops := &staging.Operations{}
	namer := naming.NewPathNamer()
	logger := logging.NewNullLogger()

	assert.Panics(t, func() { NewSinkService(nil, namer, logger, "", testConnID) })
	assert.Panics(t, func() { NewSinkService(ops, nil, logger, "", testConnID) })
	assert.Panics(t, func() { NewSinkService(ops, namer, nil, "", testConnID) })
}

func TestFlush_StagingAppend(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)
	batches := []bendsink.BufferedBatch{
		newBatch(t, "users_public_1.csv", row),
		newBatch(t, "users_public_2.csv", row),
	}

	res, err := f.svc.Flush(context.Background(), usersStream, batches)
	require.NoError(t, err)

	assert.Equal(t, "public_users", res.Identity.StageName)
	assert.Equal(t, testPath, res.Identity.StagingPath)
	assert.Equal(t, []string{"users_public_1.csv", "users_public_2.csv"}, res.Files)
	assert.Equal(t, "_airbyte_raw_users", res.FinalTable)
	assert.True(t, strings.HasPrefix(res.TmpTable, "_airbyte_tmp_"))
	assert.False(t, res.CleanupFailed)
	assert.ElementsMatch(t, []string{"users_public_1.csv", "users_public_2.csv"}, f.uploader.Uploads())

	assert.Len(t, f.db.StatementsWithPrefix("PRESIGN UPLOAD @public_users/"+testPath), 2)
	assert.Equal(t, []string{
		"CREATE DATABASE IF NOT EXISTS default;",
		"CREATE STAGE IF NOT EXISTS public_users;",
		loader.CreateTableQuery("default", res.TmpTable),
		loader.CreateTableQuery("default", res.FinalTable),
		"COPY INTO default." + res.TmpTable + " FROM @public_users/" + testPath +
			" files = ('users_public_1.csv','users_public_2.csv') file_format = (type = 'csv' compression = auto);",
		"REMOVE @public_users;",
		"INSERT INTO default._airbyte_raw_users SELECT * FROM default." + res.TmpTable + ";\n" +
			"DROP TABLE IF EXISTS default." + res.TmpTable + ";",
	}, nonPresign(f.db.Statements()))
}

func TestFlush_OverwriteTruncatesBeforePromotion(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)
	stream := usersStream
	stream.SyncMode = bendsink.SyncModeOverwrite

	res, err := f.svc.Flush(context.Background(), stream, []bendsink.BufferedBatch{newBatch(t, "a.csv", row)})
	require.NoError(t, err)

	stmts := nonPresign(f.db.Statements())
	require.GreaterOrEqual(t, len(stmts), 2)
	assert.Equal(t, "TRUNCATE TABLE default."+res.FinalTable+";", stmts[len(stmts)-2])
	assert.True(t, strings.HasPrefix(stmts[len(stmts)-1], "INSERT INTO default."+res.FinalTable))
}

func TestFlush_EmptyBatchesSkipCopy(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)

	res, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{newBatch(t, "empty.csv", "")})
	require.NoError(t, err)

	assert.Empty(t, res.Files)
	assert.Empty(t, f.uploader.Uploads())
	assert.Empty(t, f.db.StatementsWithPrefix("PRESIGN"))
	assert.Empty(t, f.db.StatementsWithPrefix("COPY INTO"))
	assert.Len(t, f.db.StatementsWithPrefix("INSERT INTO default._airbyte_raw_users"), 1)
}

func TestFlush_UploadExhaustedStopsBeforeLoad(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging, WithVerify(false))
	f.uploader.upload = func(_ bendsink.PresignedTarget, path string) (int, error) {
		if strings.HasSuffix(path, "bad.csv") {
			return 503, bendsink.NewError(bendsink.KindUpload, "upload", errors.New("unexpected status 503"))
		}
		return 200, nil
	}

	_, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{
		newBatch(t, "bad.csv", row),
	})
	require.Error(t, err)
	assert.Equal(t, bendsink.KindStagingExhausted, bendsink.KindOf(err))
	assert.Equal(t, bendsink.ExitStagingFailed, bendsink.ExitCodeForError(err))

	var be *bendsink.Error
	require.True(t, errors.As(err, &be))
	assert.Len(t, be.Attempts, bendsink.MaxRetry)

	assert.Empty(t, f.db.StatementsWithPrefix("CREATE TABLE"))
	assert.Empty(t, f.db.StatementsWithPrefix("COPY INTO"))
	assert.Empty(t, f.db.StatementsWithPrefix("INSERT INTO"))
	// Nothing was recorded as staged, yet a failed PUT may still have landed.
	assert.Equal(t, []string{"REMOVE @public_users/" + testPath + ";"}, f.db.StatementsWithPrefix("REMOVE"))
}

func TestFlush_PartialUploadClearsStagingPath(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)
	f.uploader.upload = func(_ bendsink.PresignedTarget, path string) (int, error) {
		switch {
		case strings.HasSuffix(path, "bad.csv"):
			// Let the good batch finish first.
			time.Sleep(20 * time.Millisecond)
			return 500, bendsink.NewError(bendsink.KindUpload, "upload", errors.New("unexpected status 500"))
		case strings.HasSuffix(path, "landed.csv"):
			// Stored, but the response was lost.
			return 0, bendsink.NewError(bendsink.KindUpload, "upload", errors.New("connection reset by peer"))
		}
		return 200, nil
	}

	_, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{
		newBatch(t, "good.csv", row),
		newBatch(t, "landed.csv", row),
		newBatch(t, "bad.csv", row),
	})
	require.Error(t, err)

	assert.Equal(t, []string{"REMOVE @public_users/" + testPath + ";"}, f.db.StatementsWithPrefix("REMOVE"))
}

func TestFlush_CleanupFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)
	f.db.ExecFunc = func(_ context.Context, sql string) error {
		if strings.HasPrefix(sql, "REMOVE") {
			return errors.New("stage busy")
		}
		return nil
	}

	res, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{newBatch(t, "a.csv", row)})
	require.NoError(t, err)
	assert.True(t, res.CleanupFailed)
	assert.Len(t, f.db.StatementsWithPrefix("INSERT INTO default._airbyte_raw_users"), 1)
}

func TestFlush_KeepStage(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging, WithKeepStage(true))

	_, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{newBatch(t, "a.csv", row)})
	require.NoError(t, err)
	assert.Empty(t, f.db.StatementsWithPrefix("REMOVE"))
}

func TestFlush_LoadFailureSkipsCleanupAndPromotion(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)
	f.db.ExecFunc = func(_ context.Context, sql string) error {
		if strings.HasPrefix(sql, "COPY INTO") {
			return errors.New("syntax error")
		}
		return nil
	}

	_, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{newBatch(t, "a.csv", row)})
	require.Error(t, err)
	assert.ErrorIs(t, err, bendsink.ErrLoad)
	assert.Equal(t, bendsink.ExitLoadFailed, bendsink.ExitCodeForError(err))
	assert.Empty(t, f.db.StatementsWithPrefix("REMOVE"))
	assert.Empty(t, f.db.StatementsWithPrefix("INSERT INTO"))
}

func TestFlush_VerifyMismatchFails(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging, WithVerify(true))
	f.uploader.download = func(_ bendsink.PresignedTarget, w io.Writer) error {
		_, err := io.WriteString(w, "corrupted")
		return err
	}

	_, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{newBatch(t, "a.csv", row)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.Empty(t, f.db.StatementsWithPrefix("COPY INTO"))
	assert.Equal(t, []string{"REMOVE @public_users/" + testPath + ";"}, f.db.StatementsWithPrefix("REMOVE"))
}

func TestFlush_VerifyMatchLoads(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging, WithVerify(true))
	b := newBatch(t, "a.csv", row)
	f.uploader.download = func(_ bendsink.PresignedTarget, w io.Writer) error {
		data, err := os.ReadFile(b.path)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	_, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{b})
	require.NoError(t, err)
	assert.Len(t, f.db.StatementsWithPrefix("PRESIGN @public_users/"), 1)
	assert.Len(t, f.db.StatementsWithPrefix("COPY INTO"), 1)
}

func TestFlush_InsertMode(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeInsert)

	res, err := f.svc.Flush(context.Background(), usersStream, []bendsink.BufferedBatch{
		newBatch(t, "a.csv", "\"id-1\",\"{\"\"k\"\":1}\",\"2024-01-02 03:00:00.000000\"\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv"}, res.Files)

	assert.Empty(t, f.db.StatementsWithPrefix("CREATE STAGE"))
	assert.Empty(t, f.db.StatementsWithPrefix("PRESIGN"))
	assert.Empty(t, f.db.StatementsWithPrefix("REMOVE"))
	assert.Empty(t, f.uploader.Uploads())

	inserts := f.db.StatementsWithPrefix("INSERT INTO default." + res.TmpTable)
	require.Len(t, inserts, 1)
	assert.Contains(t, inserts[0], `('id-1', '{"k":1}', '2024-01-02 03:00:00.000000')`)
}

func TestFlush_InvalidStream(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)

	_, err := f.svc.Flush(context.Background(), bendsink.StreamConfig{Namespace: "public"}, nil)
	assert.ErrorIs(t, err, bendsink.ErrInvalidConfig)
	assert.Empty(t, f.db.Statements())
}

func TestFlushAll_RunsEveryStream(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging, WithStreamParallelism(2))
	orders := bendsink.StreamConfig{Namespace: "public", Name: "orders"}

	results, err := f.svc.FlushAll(context.Background(), []StreamBatches{
		{Stream: usersStream, Batches: []bendsink.BufferedBatch{newBatch(t, "u.csv", row)}},
		{Stream: orders, Batches: []bendsink.BufferedBatch{newBatch(t, "o.csv", row)}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "public_users", results[0].Identity.StageName)
	assert.Equal(t, "public_orders", results[1].Identity.StageName)
	assert.ElementsMatch(t, []string{"CREATE STAGE IF NOT EXISTS public_users;", "CREATE STAGE IF NOT EXISTS public_orders;"},
		f.db.StatementsWithPrefix("CREATE STAGE"))
}

func TestFlushAll_NamesFailingStream(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)
	f.db.ExecFunc = func(_ context.Context, sql string) error {
		if sql == "CREATE STAGE IF NOT EXISTS public_users;" {
			return fmt.Errorf("permission denied")
		}
		return nil
	}

	_, err := f.svc.FlushAll(context.Background(), []StreamBatches{{Stream: usersStream}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream public.users")
	assert.ErrorIs(t, err, bendsink.ErrStage)
}

func TestCheck(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)

	require.NoError(t, f.svc.Check(context.Background()))
	assert.Equal(t, []string{
		"CREATE DATABASE IF NOT EXISTS default;",
		loader.CreateTableQuery("default", CheckProbeName),
		"DROP TABLE IF EXISTS default." + CheckProbeName + ";",
		"CREATE STAGE IF NOT EXISTS " + CheckProbeName + ";",
		"DROP STAGE IF EXISTS " + CheckProbeName + ";",
	}, f.db.Statements())
}

func TestCheck_InsertModeSkipsStage(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeInsert)

	require.NoError(t, f.svc.Check(context.Background()))
	assert.Empty(t, f.db.StatementsWithPrefix("CREATE STAGE"))
}

func TestDropStage(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)

	stage, err := f.svc.DropStage(context.Background(), bendsink.StreamConfig{Name: "users"})
	require.NoError(t, err)
	assert.Equal(t, "default_users", stage)
	assert.Equal(t, []string{"DROP STAGE IF EXISTS default_users;"}, f.db.Statements())
}

func TestRemoveStaged(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeStaging)
	ctx := context.Background()

	stage, err := f.svc.RemoveStaged(ctx, usersStream, testPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "public_users", stage)

	_, err = f.svc.RemoveStaged(ctx, usersStream, testPath, []string{"a.csv", "/tmp/buffer/b.csv.gz"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"REMOVE @public_users/" + testPath + ";",
		"REMOVE @public_users/" + testPath + "a.csv;",
		"REMOVE @public_users/" + testPath + "b.csv.gz;",
	}, f.db.StatementsWithPrefix("REMOVE"))

	_, err = f.svc.RemoveStaged(ctx, usersStream, "2024/01/02/03", nil)
	assert.ErrorIs(t, err, bendsink.ErrInvalidConfig)
}

func TestRemoveStaged_InsertModeRejected(t *testing.T) {
	f := newFixture(t, bendsink.LoadModeInsert)

	_, err := f.svc.RemoveStaged(context.Background(), usersStream, testPath, nil)
	assert.ErrorIs(t, err, bendsink.ErrInvalidConfig)
	assert.Empty(t, f.db.Statements())
}
