package db

import (
	"fmt"
	"os"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// EnvVars holds the environment variables that affect the control connection.
type EnvVars struct {
	BENDSINK_DSN      string // Full connection string
	BENDSINK_PASSWORD string // Password applied when the DSN carries none
	DATABASE_URL      string // Full connection string (Heroku/Rails convention)
}

// LoadFromEnvironment reads the connection environment variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		BENDSINK_DSN:      os.Getenv("BENDSINK_DSN"),
		BENDSINK_PASSWORD: os.Getenv("BENDSINK_PASSWORD"),
		DATABASE_URL:      os.Getenv("DATABASE_URL"),
	}
}

// ResolveConnectionParams resolves the control connection using this precedence:
//
// 1. --dsn flag
// 2. $BENDSINK_DSN
// 3. connection.dsn from the configuration file
// 4. $DATABASE_URL
//
// $BENDSINK_PASSWORD fills in the password when the chosen DSN has none, so the
// secret can stay out of configuration files. schemaOverride, when set, replaces
// the database component.
func ResolveConnectionParams(dsnFlag, configDSN, schemaOverride string, env *EnvVars) (*bendsink.ConnectionConfig, error) {
	if env == nil {
		env = &EnvVars{}
	}

	var dsn, source string
	switch {
	case dsnFlag != "":
		dsn, source = dsnFlag, "--dsn"
	case env.BENDSINK_DSN != "":
		dsn, source = env.BENDSINK_DSN, "$BENDSINK_DSN"
	case configDSN != "":
		dsn, source = configDSN, "connection.dsn"
	case env.DATABASE_URL != "":
		dsn, source = env.DATABASE_URL, "$DATABASE_URL"
	default:
		return nil, fmt.Errorf(
			"no connection configured\n"+
				"Provide one of:\n"+
				"  1. --dsn \"postgres://user@localhost:%d/default\"\n"+
				"  2. export BENDSINK_DSN=\"mysql://user@localhost:%d/default\"\n"+
				"  3. connection.dsn in bendsink.yaml: %w",
			DefaultPostgresPort, DefaultMySQLPort, bendsink.ErrInvalidConfig)
	}

	config, err := ParseConnectionString(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string from %s: %w", source, err)
	}

	if config.Password == "" && env.BENDSINK_PASSWORD != "" {
		config.Password = env.BENDSINK_PASSWORD
	}
	if schemaOverride != "" {
		config.Database = schemaOverride
	}
	if config.AppName == "" {
		config.AppName = "bendsink"
	}

	return config, nil
}
