package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Calculator computes content checksums.
type Calculator interface {
	// CalculateRaw computes a checksum of in-memory content.
	CalculateRaw(content []byte) string

	// CalculateReader computes a checksum of everything r yields.
	CalculateReader(r io.Reader) (string, error)

	// CalculateFile computes a checksum of the file at path.
	CalculateFile(path string) (string, error)
}

// SHA256 implements Calculator with hex-encoded SHA-256.
//
// SHA256 is a zero-size type and is safe for concurrent use by multiple goroutines.
type SHA256 struct{}

// New creates a new SHA-256 based calculator.
func New() SHA256 {
	return SHA256{}
}

// CalculateRaw computes SHA-256 of content.
func (c SHA256) CalculateRaw(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// CalculateReader streams r through SHA-256.
func (c SHA256) CalculateReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CalculateFile streams the file at path through SHA-256.
func (c SHA256) CalculateFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return c.CalculateReader(f)
}
