// Package checksum hashes staged file content.
//
// Read-back verification downloads a staged object and compares its SHA-256
// with the local batch file:
//
//	calculator := checksum.New()
//	local, err := calculator.CalculateFile(batchPath)
//	remote, err := calculator.CalculateReader(resp.Body)
//	if local != remote { ... }
//
// # Thread Safety
//
// SHA256 is safe for concurrent use by multiple goroutines.
package checksum
