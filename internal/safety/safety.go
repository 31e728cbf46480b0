// Package safety derives deterministic request fingerprints.
//
// A safety identifier correlates a request across logs and downstream
// consumers. It is not an access-control token.
package safety

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// IDLength is the number of hex characters in an identifier.
const IDLength = 32

const separator = "::"

// Generate returns the identifier for payload under namespace.
// Key order in payload (and in nested maps) never changes the result.
func Generate(namespace string, payload map[string]any) string {
	var buf bytes.Buffer
	buf.WriteString(namespace)
	buf.WriteString(separator)
	writeCanonical(&buf, payload)

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])[:IDLength]
}

// Canonical returns the canonical JSON form of payload used by Generate.
func Canonical(payload map[string]any) string {
	var buf bytes.Buffer
	writeCanonical(&buf, payload)
	return buf.String()
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSON(buf, k)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	default:
		writeJSON(buf, val)
	}
}

// writeJSON encodes a scalar; unencodable values fall back to their fmt form.
func writeJSON(buf *bytes.Buffer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprint(v))
	}
	buf.Write(b)
}
