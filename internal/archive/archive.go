// Package archive provides read-only access to the named entries of an EPUB
// container: a zip file, an unpacked directory, or an in-memory map.
package archive

import (
	"errors"
	"path"
	"sort"
	"strings"
)

var (
	ErrNotExist      = errors.New("archive entry not found")
	ErrEntryTooLarge = errors.New("archive entry exceeds decompression limit")
)

// DefaultMaxEntrySize bounds the decompressed size of a single entry.
const DefaultMaxEntrySize int64 = 256 * 1024 * 1024

// Source is a random-access store of named entries.
// Implementations must be safe for concurrent Open calls.
type Source interface {
	// Open returns the full content of the named entry.
	// Absent entries yield an error wrapping ErrNotExist.
	Open(name string) ([]byte, error)

	// Entries lists every entry name, sorted. Diagnostic use only.
	Entries() []string
}

// EntryInfo describes how an entry is stored in the container.
type EntryInfo struct {
	Name   string
	Index  int // position in the container, 0 for the first entry
	Size   int64
	Stored bool // true when the entry is not compressed
}

// Inspector is implemented by sources that know the physical layout of
// their entries.
type Inspector interface {
	Stat(name string) (EntryInfo, bool)
}

// Clean normalizes an archive-internal name: forward slashes, no leading
// "./" or "/", no redundant separators. Case is preserved.
func Clean(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return ""
	}
	return path.Clean(name)
}

// IsSafe reports whether a cleaned name stays inside the archive root.
func IsSafe(name string) bool {
	if name == "" || name == "." {
		return false
	}
	if strings.HasPrefix(name, "/") {
		return false
	}
	return name != ".." && !strings.HasPrefix(name, "../")
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
