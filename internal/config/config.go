package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vvka-141/bendsink/internal/naming"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ConfigFileName is the file looked up when --config is not given.
const ConfigFileName = "bendsink.yaml"

type ConnectionConfig struct {
	// DSN is overridden by --dsn and $BENDSINK_DSN.
	DSN string `yaml:"dsn"`
}

type LoadConfig struct {
	Mode        bendsink.LoadMode `yaml:"mode"`
	Parallelism int               `yaml:"parallelism"`
	// RateLimit caps uploads per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`
	Verify    bool    `yaml:"verify"`
	KeepStage bool    `yaml:"keep_stage"`
}

type RetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	// Classify stops retrying on permanent upload rejections.
	Classify bool `yaml:"classify"`
}

type UploadConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the contents of bendsink.yaml.
type Config struct {
	Connection ConnectionConfig        `yaml:"connection"`
	Schema     string                  `yaml:"schema"`
	Load       LoadConfig              `yaml:"load"`
	Retry      RetryConfig             `yaml:"retry"`
	Upload     UploadConfig            `yaml:"upload"`
	Streams    []bendsink.StreamConfig `yaml:"streams"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and parses the YAML file at path, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", path, err, bendsink.ErrInvalidConfig)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Schema == "" {
		c.Schema = bendsink.DefaultSchema
	}
	if c.Load.Mode == "" {
		c.Load.Mode = bendsink.LoadModeStaging
	}
	if c.Load.Parallelism == 0 {
		c.Load.Parallelism = bendsink.DefaultParallelism
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = bendsink.DefaultRetryInitialDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = bendsink.DefaultRetryMaxDelay
	}
	if c.Upload.Timeout == 0 {
		c.Upload.Timeout = bendsink.DefaultUploadTimeout
	}
	for i := range c.Streams {
		if c.Streams[i].Namespace == "" {
			c.Streams[i].Namespace = bendsink.DefaultNamespace
		}
		if c.Streams[i].SyncMode == "" {
			c.Streams[i].SyncMode = bendsink.SyncModeAppend
		}
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if !c.Load.Mode.Valid() {
		errs = append(errs, fmt.Errorf("load.mode must be %q or %q, got %q: %w",
			bendsink.LoadModeStaging, bendsink.LoadModeInsert, c.Load.Mode, bendsink.ErrInvalidConfig))
	}
	if c.Load.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("load.parallelism must be at least 1, got %d: %w", c.Load.Parallelism, bendsink.ErrInvalidConfig))
	}
	if c.Load.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("load.rate_limit must not be negative: %w", bendsink.ErrInvalidConfig))
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("retry delays must not be negative: %w", bendsink.ErrInvalidConfig))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.InitialDelay > c.Retry.MaxDelay {
		errs = append(errs, fmt.Errorf("retry.initial_delay (%s) exceeds retry.max_delay (%s): %w",
			c.Retry.InitialDelay, c.Retry.MaxDelay, bendsink.ErrInvalidConfig))
	}
	if c.Upload.Timeout < 0 {
		errs = append(errs, fmt.Errorf("upload.timeout must not be negative: %w", bendsink.ErrInvalidConfig))
	}

	seen := make(map[string]bool, len(c.Streams))
	for _, s := range c.Streams {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[s.String()] {
			errs = append(errs, fmt.Errorf("stream %s listed twice: %w", s, bendsink.ErrInvalidConfig))
		}
		seen[s.String()] = true
	}
	if err := naming.CheckDistinct(c.Streams); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Stream returns the configured stream matching ref ("namespace.name" or
// "name"). A stream missing from the file is returned with append sync mode.
func (c *Config) Stream(ref string) (bendsink.StreamConfig, error) {
	want, err := ParseStreamRef(ref)
	if err != nil {
		return bendsink.StreamConfig{}, err
	}
	for _, s := range c.Streams {
		if s.Namespace == want.Namespace && s.Name == want.Name {
			return s, nil
		}
	}
	return want, nil
}

// ParseStreamRef parses "namespace.name". A bare name uses the default namespace.
func ParseStreamRef(ref string) (bendsink.StreamConfig, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return bendsink.StreamConfig{}, fmt.Errorf("stream is required: %w", bendsink.ErrInvalidConfig)
	}
	ns, name := bendsink.DefaultNamespace, ref
	if i := strings.LastIndex(ref, "."); i >= 0 {
		ns, name = ref[:i], ref[i+1:]
	}
	if ns == "" || name == "" {
		return bendsink.StreamConfig{}, fmt.Errorf("invalid stream %q, want namespace.name: %w", ref, bendsink.ErrInvalidConfig)
	}
	return bendsink.StreamConfig{Namespace: ns, Name: name, SyncMode: bendsink.SyncModeAppend}, nil
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables that are already set. With no files it loads ./.env
// if present.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		return godotenv.Load()
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %v: %w", err, bendsink.ErrInvalidConfig)
	}
	return nil
}
