package bendsink

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// StageIdentity names where one stream's batches land before loading.
// It is derived deterministically, so a re-run of the same flow targets the
// same stage and path.
type StageIdentity struct {
	// StageName is the warehouse stage, safe as an unquoted identifier.
	StageName string

	// StagingPath is the hierarchical prefix inside the stage:
	// "yyyy/mm/dd/hh/<connection id>/".
	StagingPath string
}

// PresignedTarget is a short-lived upload or download location returned by the
// control plane. It is passed by value into exactly one transfer attempt and is
// never cached; a retry presigns again.
type PresignedTarget struct {
	Method  string
	URL     string
	Headers map[string]string
}

// RedactedURL returns the URL without its query string. Presigned query strings
// embed credentials and must not reach logs.
func (t PresignedTarget) RedactedURL() string {
	u, err := url.Parse(t.URL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// BufferedBatch is a local, already-serialized record file owned by the caller.
// Staging components only read it.
type BufferedBatch interface {
	// LocalFilePath returns the absolute path of the file.
	LocalFilePath() (string, error)

	// LogicalFilename returns the name the file is staged under.
	LogicalFilename() (string, error)
}

// StagedFileSet is the ordered list of filenames confirmed uploaded for one
// staging path. It only grows on success and only shrinks through Reset.
// Safe for concurrent use.
type StagedFileSet struct {
	mu    sync.Mutex
	files []string
}

// NewStagedFileSet returns a set seeded with files.
func NewStagedFileSet(files ...string) *StagedFileSet {
	s := &StagedFileSet{}
	s.files = append(s.files, files...)
	return s
}

// Add appends a confirmed upload.
func (s *StagedFileSet) Add(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, name)
}

// Files returns a copy of the filenames in insertion order.
func (s *StagedFileSet) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

// Len returns the number of staged files.
func (s *StagedFileSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Reset forgets every staged file. Called once the stage has been cleaned up.
func (s *StagedFileSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
}

// Protocol is the wire protocol of the control connection.
type Protocol string

const (
	ProtocolPostgres Protocol = "postgres"
	ProtocolMySQL    Protocol = "mysql"
)

// ConnectionConfig represents parsed control connection parameters.
type ConnectionConfig struct {
	Protocol Protocol
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string
}

// SyncMode selects how loaded rows reach the final table.
type SyncMode string

const (
	// SyncModeAppend keeps existing rows in the final table.
	SyncModeAppend SyncMode = "append"

	// SyncModeOverwrite truncates the final table before promoting new rows.
	SyncModeOverwrite SyncMode = "overwrite"
)

// StreamConfig identifies one destination stream.
type StreamConfig struct {
	Namespace string   `yaml:"namespace"`
	Name      string   `yaml:"name"`
	SyncMode  SyncMode `yaml:"sync_mode"`
}

// String returns "namespace.name".
func (s StreamConfig) String() string {
	return s.Namespace + "." + s.Name
}

// Validate checks the stream has a name and a known sync mode.
func (s StreamConfig) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, fmt.Errorf("stream name is required: %w", ErrInvalidConfig))
	}
	switch s.SyncMode {
	case "", SyncModeAppend, SyncModeOverwrite:
	default:
		errs = append(errs, fmt.Errorf("stream %s: unknown sync mode %q: %w", s, s.SyncMode, ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// LoadMode selects how batches reach the warehouse.
type LoadMode string

const (
	// LoadModeStaging uploads batches to a stage and runs COPY INTO.
	LoadModeStaging LoadMode = "staging"

	// LoadModeInsert sends batches as INSERT statements over the control connection.
	LoadModeInsert LoadMode = "insert"
)

// Valid reports whether m is a known mode.
func (m LoadMode) Valid() bool {
	return m == LoadModeStaging || m == LoadModeInsert
}
