package naming

import (
	"crypto/rand"
	"strings"
)

// Transformer converts stream names into identifiers the warehouse accepts
// unquoted.
type Transformer struct{}

// ConvertStreamName replaces every character outside [A-Za-z0-9_] with '_' and
// prefixes '_' when the result does not start with a letter or underscore.
func (Transformer) ConvertStreamName(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			b.WriteByte('_')
		}
		if isIdentPart(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ApplyDefaultCase lowercases an identifier.
func (Transformer) ApplyDefaultCase(s string) string {
	return strings.ToLower(s)
}

// Identifier converts and lowercases s.
func (t Transformer) Identifier(s string) string {
	return t.ApplyDefaultCase(t.ConvertStreamName(s))
}

// RawTableName returns the destination table for a stream.
func (t Transformer) RawTableName(streamName string) string {
	return "_airbyte_raw_" + t.Identifier(streamName)
}

// TmpTableName returns a fresh temporary table name for a stream. Each call
// draws a new random suffix.
func (t Transformer) TmpTableName(streamName string) string {
	return "_airbyte_tmp_" + randomSuffix(4) + "_" + t.Identifier(streamName)
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// suffixByteLimit is the largest multiple of len(suffixAlphabet) that fits in a
// byte. Bytes at or above it are redrawn so every character is equally likely.
const suffixByteLimit = 256 - 256%len(suffixAlphabet)

func randomSuffix(n int) string {
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2+1)
	for len(out) < n {
		_, _ = rand.Read(buf)
		for _, c := range buf {
			if int(c) >= suffixByteLimit {
				continue
			}
			out = append(out, suffixAlphabet[int(c)%len(suffixAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
