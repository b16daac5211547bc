package checksum

import (
	"bytes"
	"strings"
	"testing"
)

// BenchmarkCalculateRaw benchmarks in-memory hashing of a small batch
func BenchmarkCalculateRaw(b *testing.B) {
	calculator := New()
	content := []byte(strings.Repeat("\"id\",\"{\\\"a\\\":1}\",\"2024-01-01 00:00:00\"\n", 100))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		calculator.CalculateRaw(content)
	}
}

// BenchmarkCalculateReader benchmarks streaming a 4 MiB batch
func BenchmarkCalculateReader(b *testing.B) {
	calculator := New()
	content := bytes.Repeat([]byte("x"), 4<<20)

	b.SetBytes(int64(len(content)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = calculator.CalculateReader(bytes.NewReader(content))
	}
}
