package metacache

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

// Key identifies a metadata file: its cleaned absolute path, case-folded.
type Key string

// KeyFor derives the cache key for a model file path.
func KeyFor(path string) Key {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Key(strings.ToLower(filepath.Clean(path)))
}

// Record maps requested field names to their values. A Record is immutable;
// every accessor hands out copies.
type Record struct {
	values map[string]string
}

// NewRecord copies values into a new Record.
func NewRecord(values map[string]string) Record {
	return Record{values: maps.Clone(values)}
}

// Get returns the value stored for field.
func (r Record) Get(field string) (string, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Value returns the value for field or an empty string.
func (r Record) Value(field string) string {
	return r.values[field]
}

// Len returns the number of fields present.
func (r Record) Len() int { return len(r.values) }

// Fields returns the sorted field names.
func (r Record) Fields() []string {
	return slices.Sorted(maps.Keys(r.values))
}

// Map returns a copy of the underlying values.
func (r Record) Map() map[string]string {
	return maps.Clone(r.values)
}
