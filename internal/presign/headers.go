package presign

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseHeaders decodes the headers column of a PRESIGN row into a flat map.
// String values are kept verbatim; other JSON values keep their JSON text.
// Single-quoted objects ({'k': 'v'}) are accepted as a fallback.
func ParseHeaders(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}, nil
	}

	fields, err := decodeObject(raw)
	if err != nil {
		alt, altErr := decodeObject(singleToDoubleQuotes(raw))
		if altErr != nil {
			return nil, fmt.Errorf("parse presign headers: %w", err)
		}
		fields = alt
	}

	headers := make(map[string]string, len(fields))
	for k, v := range fields {
		var s string
		if json.Unmarshal(v, &s) == nil {
			headers[k] = s
			continue
		}
		headers[k] = string(v)
	}
	return headers, nil
}

func decodeObject(raw string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return map[string]json.RawMessage{}, nil
	}
	return fields, nil
}

// singleToDoubleQuotes rewrites a single-quoted pseudo-JSON object into JSON.
// Double quotes inside single-quoted strings are escaped.
func singleToDoubleQuotes(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inSingle := false
	inDouble := false
	escaped := false
	for _, r := range raw {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte('"')
		case r == '"' && inSingle:
			b.WriteString(`\"`)
		case r == '"':
			inDouble = !inDouble
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
