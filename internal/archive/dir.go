package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Dir exposes an unpacked EPUB directory tree.
type Dir struct {
	fsys fs.FS
}

// NewDir wraps fsys. The root of fsys is the root of the container.
func NewDir(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys}
}

// OpenDir wraps the directory at path.
func OpenDir(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	return NewDir(os.DirFS(path)), nil
}

func (d *Dir) Open(name string) ([]byte, error) {
	name = Clean(name)
	if !IsSafe(name) || !fs.ValidPath(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	data, err := fs.ReadFile(d.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (d *Dir) Entries() []string {
	var names []string
	_ = fs.WalkDir(d.fsys, ".", func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !e.IsDir() {
			names = append(names, p)
		}
		return nil
	})
	return names
}

// Map is an in-memory source. It must not be modified once shared.
type Map map[string][]byte

func (m Map) Open(name string) ([]byte, error) {
	data, ok := m[Clean(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", Clean(name), ErrNotExist)
	}
	return data, nil
}

func (m Map) Entries() []string {
	return sortedKeys(m)
}
