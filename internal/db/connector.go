package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/bendsink/internal/logging"
	"github.com/vvka-141/bendsink/internal/retry"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// Connection pool configuration constants
const (
	// DefaultMaxConns bounds concurrent control statements, which is at least
	// the upload parallelism since every upload presigns on its own.
	DefaultMaxConns = 8

	// DefaultMinConns maintains at least one connection in the pool.
	DefaultMinConns = 1

	// DefaultMaxConnIdleTime keeps connections alive across long flushes.
	DefaultMaxConnIdleTime = 30 * time.Minute
)

func newConnectExecutor(logger bendsink.Logger) *retry.Executor {
	strategy := retry.NewExponentialBackoff(bendsink.DefaultConnectMaxAttempts,
		retry.WithInitialDelay(bendsink.DefaultConnectInitialDelay),
		retry.WithMaxDelay(bendsink.DefaultConnectMaxDelay),
	)
	return retry.NewExecutor(retry.NewConnectionErrorClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Verbose("connection attempt %d failed, retrying in %s: %v", attempt, delay, err)
		})
}

// PgxConnector opens the control connection over the PostgreSQL wire protocol
// with automatic retry on transient failures.
type PgxConnector struct {
	config        *bendsink.ConnectionConfig
	logger        bendsink.Logger
	retryExecutor *retry.Executor
}

// NewPgxConnector creates a PgxConnector. A nil logger discards output.
func NewPgxConnector(config *bendsink.ConnectionConfig, logger bendsink.Logger) *PgxConnector {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &PgxConnector{
		config:        config,
		logger:        logger,
		retryExecutor: newConnectExecutor(logger),
	}
}

func (c *PgxConnector) configurePool(poolConfig *pgxpool.Config) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	// The warehouse's PostgreSQL handler does not support extended-protocol
	// prepared statements.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		c.logger.Verbose("notice: %s", notice.Message)
	}
}

// Connect establishes a connection pool with automatic retry.
func (c *PgxConnector) Connect(ctx context.Context) (bendsink.Conn, error) {
	var pool *pgxpool.Pool
	connStr := BuildConnectionString(c.config)

	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		poolConfig, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			return fmt.Errorf("failed to parse connection config: %w", err)
		}

		c.configurePool(poolConfig)

		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return err
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, wrapConnectionError(err, c.config)
	}

	c.logger.Verbose("connected to %s", Redacted(c.config))
	return NewPoolAdapter(pool), nil
}

// MySQLConnector opens the control connection over the MySQL protocol
// with automatic retry on transient failures.
type MySQLConnector struct {
	config        *bendsink.ConnectionConfig
	logger        bendsink.Logger
	retryExecutor *retry.Executor
}

// NewMySQLConnector creates a MySQLConnector. A nil logger discards output.
func NewMySQLConnector(config *bendsink.ConnectionConfig, logger bendsink.Logger) *MySQLConnector {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &MySQLConnector{
		config:        config,
		logger:        logger,
		retryExecutor: newConnectExecutor(logger),
	}
}

// Connect opens a database/sql pool and pings it with automatic retry.
func (c *MySQLConnector) Connect(ctx context.Context) (bendsink.Conn, error) {
	mc, err := mysql.ParseDSN(BuildMySQLDSN(c.config))
	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection parameters: %v: %w", err, bendsink.ErrInvalidConfig)
	}
	driverConn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql connection parameters: %v: %w", err, bendsink.ErrInvalidConfig)
	}

	var db *sql.DB
	err = c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		db = sql.OpenDB(driverConn)
		db.SetMaxOpenConns(DefaultMaxConns)
		db.SetMaxIdleConns(DefaultMinConns)
		db.SetConnMaxIdleTime(DefaultMaxConnIdleTime)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, wrapConnectionError(err, c.config)
	}

	c.logger.Verbose("connected to %s", Redacted(c.config))
	return NewSQLAdapter(db), nil
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's Protocol.
func NewConnector(config *bendsink.ConnectionConfig, logger bendsink.Logger) (bendsink.Connector, error) {
	switch config.Protocol {
	case bendsink.ProtocolPostgres, "":
		return NewPgxConnector(config, logger), nil
	case bendsink.ProtocolMySQL:
		return NewMySQLConnector(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported protocol %q: %w", config.Protocol, bendsink.ErrInvalidConfig)
	}
}

// wrapConnectionError wraps raw driver errors with actionable guidance.
// The result always matches bendsink.ErrConnectionFailed.
func wrapConnectionError(err error, config *bendsink.ConnectionConfig) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - The warehouse query service is not running
  - Wrong host or port (PostgreSQL handler defaults to %d, MySQL handler to %d)
  - Firewall blocking the connection

Original error: %w`, addr, DefaultPostgresPort, DefaultMySQLPort, joinConnErr(err))

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable

Original error: %w`, config.Host, joinConnErr(err))

	case strings.Contains(errStr, "password authentication failed") || strings.Contains(errStr, "access denied"):
		return fmt.Errorf(`authentication failed for user "%s"

Possible causes:
  - Wrong password (check $BENDSINK_PASSWORD)
  - Wrong username

Original error: %w`, config.Username, joinConnErr(err))

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets

Original error: %w`, addr, joinConnErr(err))

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return fmt.Errorf(`SSL/TLS connection error

Possible causes:
  - Server does not accept the configured sslmode

Original error: %w`, joinConnErr(err))

	default:
		return fmt.Errorf("failed to connect to %s: %w", addr, joinConnErr(err))
	}
}

type connErr struct{ err error }

func (e connErr) Error() string   { return e.err.Error() }
func (e connErr) Unwrap() []error { return []error{e.err, bendsink.ErrConnectionFailed} }

// joinConnErr keeps err's message while making it match ErrConnectionFailed.
func joinConnErr(err error) error {
	return connErr{err: err}
}
