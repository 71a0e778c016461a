package asset

import (
	"fmt"
	"slices"
	"strings"
)

// Key identifies an asset. Multi-segment keys are joined with "/".
type Key string

// KeyFromPath joins path segments into a Key.
func KeyFromPath(parts ...string) Key {
	return Key(strings.Join(parts, "/"))
}

// Path returns the key's segments.
func (k Key) Path() []string {
	return strings.Split(string(k), "/")
}

func (k Key) String() string { return string(k) }

// Validate rejects empty keys and empty path segments.
func (k Key) Validate() error {
	if k == "" {
		return fmt.Errorf("asset key is empty")
	}
	for i, part := range k.Path() {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("asset key %q: segment %d is empty", k, i)
		}
	}
	return nil
}

// Compare orders keys segment by segment.
func (k Key) Compare(other Key) int {
	return slices.Compare(k.Path(), other.Path())
}

// SortKeys returns a sorted copy of keys with duplicates removed.
func SortKeys(keys []Key) []Key {
	out := slices.Clone(keys)
	slices.SortFunc(out, Key.Compare)
	return slices.Compact(out)
}

// Strings converts keys to their string form, preserving order.
func Strings(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

// Keys converts strings to keys, preserving order.
func Keys(names ...string) []Key {
	out := make([]Key, len(names))
	for i, n := range names {
		out[i] = Key(n)
	}
	return out
}
