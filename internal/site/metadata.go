package site

import (
	"fmt"
	"strings"
)

// Metadata holds structured values attached to an item, typically parsed
// front matter. Values are whatever the decoding step produced (strings,
// numbers, bools, slices, nested maps).
type Metadata map[string]any

// String returns the value at key formatted as a string.
// Returns false if the key is absent or nil.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Bool reports whether key holds a true value. Strings "true", "yes" and
// "1" count as true so that front matter written either way behaves alike.
func (m Metadata) Bool(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true
		}
	case int:
		return v != 0
	case int64:
		return v != 0
	}
	return false
}

// Clone returns a shallow copy. Nested maps and slices are shared.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
