package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/bendsink/internal/config"
	"github.com/vvka-141/bendsink/internal/db"
	"github.com/vvka-141/bendsink/internal/janitor"
	"github.com/vvka-141/bendsink/internal/loader"
	"github.com/vvka-141/bendsink/internal/logging"
	"github.com/vvka-141/bendsink/internal/naming"
	"github.com/vvka-141/bendsink/internal/presign"
	"github.com/vvka-141/bendsink/internal/retry"
	"github.com/vvka-141/bendsink/internal/services"
	"github.com/vvka-141/bendsink/internal/staging"
	"github.com/vvka-141/bendsink/internal/upload"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// loadSettings loads env files and the configuration file, then validates it.
// A missing default config file is not an error; a missing --config file is.
func loadSettings() (*config.Config, error) {
	if err := config.LoadEnvFiles(globalFlags.envFiles...); err != nil {
		return nil, err
	}

	path := globalFlags.configPath
	explicit := path != ""
	if !explicit {
		path = config.ConfigFileName
	}

	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && !explicit:
		cfg = config.Default()
	case errors.Is(err, config.ErrConfigNotFound):
		return nil, fmt.Errorf("config file %s not found: %w", path, bendsink.ErrInvalidConfig)
	case err != nil:
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from --log-format and --verbose.
func newLogger(verbose bool) (bendsink.Logger, error) {
	format, err := logging.ParseFormat(globalFlags.logFormat)
	if err != nil {
		return nil, err
	}
	return logging.NewZerologLogger(verbose, format), nil
}

// sinkOptions are the per-command overrides layered over the config file.
type sinkOptions struct {
	schema       string
	connectionID string
	verify       bool
	keepStage    bool
}

// sinkStack is a connected SinkService and the connection it owns.
type sinkStack struct {
	conn   bendsink.Conn
	sink   *services.SinkService
	logger bendsink.Logger
}

func (s *sinkStack) Close() {
	if err := s.conn.Close(); err != nil {
		s.logger.Error("Failed to close connection: %v", err)
	}
}

// resolveSchema picks --schema over the configured schema.
func resolveSchema(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Schema
}

// resolveConnectionID parses --connection-id. Without it the ID is derived
// from the redacted connection string, so reruns against the same warehouse
// write under the same staging path.
func resolveConnectionID(flag string, connConfig *bendsink.ConnectionConfig) (uuid.UUID, error) {
	if flag != "" {
		id, err := uuid.Parse(flag)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --connection-id %q: %v: %w", flag, err, bendsink.ErrInvalidConfig)
		}
		if id == uuid.Nil {
			return uuid.Nil, fmt.Errorf("--connection-id must not be the nil UUID: %w", bendsink.ErrInvalidConfig)
		}
		return id, nil
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(db.Redacted(connConfig))), nil
}

// newOperations wires the staging, load and cleanup components over conn.
func newOperations(conn bendsink.DBConnection, cfg *config.Config, logger bendsink.Logger) (*staging.Operations, error) {
	uploader := upload.NewUploader(
		upload.WithTimeout(cfg.Upload.Timeout),
		upload.WithRateLimit(cfg.Load.RateLimit, cfg.Load.Parallelism),
	)

	coordOpts := []staging.Option{
		staging.WithBackoff(cfg.Retry.InitialDelay, cfg.Retry.MaxDelay),
		staging.WithParallelism(cfg.Load.Parallelism),
	}
	if cfg.Retry.Classify {
		coordOpts = append(coordOpts, staging.WithClassifier(retry.NewStagingErrorClassifier()))
	}
	coord := staging.NewCoordinator(conn, presign.NewClient(conn), uploader, logger, coordOpts...)

	return staging.NewOperations(cfg.Load.Mode, loader.NewBatchLoader(conn, logger), coord, janitor.New(conn, logger))
}

// openSink resolves the connection, connects and builds a SinkService.
func openSink(ctx context.Context, cfg *config.Config, logger bendsink.Logger, opts sinkOptions, streamParallelism int) (*sinkStack, error) {
	connConfig, err := db.ResolveConnectionParams(globalFlags.dsn, cfg.Connection.DSN, "", db.LoadFromEnvironment())
	if err != nil {
		return nil, err
	}
	connectionID, err := resolveConnectionID(opts.connectionID, connConfig)
	if err != nil {
		return nil, err
	}

	logger.Verbose("Connecting to %s", db.Redacted(connConfig))
	connector, err := db.NewConnector(connConfig, logger)
	if err != nil {
		return nil, err
	}
	conn, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	ops, err := newOperations(conn, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	schema := resolveSchema(opts.schema, cfg)
	logger.Verbose("Schema %s, load mode %s, connection id %s", schema, ops.Mode, connectionID)

	sink := services.NewSinkService(ops, naming.NewPathNamer(), logger, schema, connectionID,
		services.WithVerify(opts.verify || cfg.Load.Verify),
		services.WithKeepStage(opts.keepStage || cfg.Load.KeepStage),
		services.WithStreamParallelism(streamParallelism),
	)
	return &sinkStack{conn: conn, sink: sink, logger: logger}, nil
}

// commandContext returns a context cancelled on SIGINT/SIGTERM and, when
// timeout is positive, after timeout.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
