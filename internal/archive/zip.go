package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

// Zip exposes the entries of a zip container.
type Zip struct {
	files   map[string]*zip.File
	index   map[string]int
	maxSize int64
}

// NewZip indexes the entries of zr. Entries whose names escape the archive
// root are left out of the index.
func NewZip(zr *zip.Reader) *Zip {
	z := &Zip{
		files:   make(map[string]*zip.File, len(zr.File)),
		index:   make(map[string]int, len(zr.File)),
		maxSize: DefaultMaxEntrySize,
	}
	for i, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		name := Clean(f.Name)
		if !IsSafe(name) {
			continue
		}
		if _, dup := z.files[name]; dup {
			continue
		}
		z.files[name] = f
		z.index[name] = i
	}
	return z
}

// NewZipReader reads a zip container from r.
func NewZipReader(r io.ReaderAt, size int64) (*Zip, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	return NewZip(zr), nil
}

// SetMaxEntrySize changes the decompression limit. Call before sharing z.
func (z *Zip) SetMaxEntrySize(n int64) {
	z.maxSize = n
}

// Open reads the named entry.
func (z *Zip) Open(name string) ([]byte, error) {
	name = Clean(name)
	f, ok := z.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	if f.UncompressedSize64 > uint64(z.maxSize) {
		return nil, fmt.Errorf("%s (%d bytes): %w", name, f.UncompressedSize64, ErrEntryTooLarge)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	// The declared size may be forged; read one byte past the limit to notice.
	data, err := io.ReadAll(io.LimitReader(rc, z.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) > z.maxSize {
		return nil, fmt.Errorf("%s: %w", name, ErrEntryTooLarge)
	}
	return data, nil
}

// Entries lists the indexed entry names.
func (z *Zip) Entries() []string {
	return sortedKeys(z.files)
}

// Stat reports the physical layout of the named entry.
func (z *Zip) Stat(name string) (EntryInfo, bool) {
	name = Clean(name)
	f, ok := z.files[name]
	if !ok {
		return EntryInfo{}, false
	}
	return EntryInfo{
		Name:   name,
		Index:  z.index[name],
		Size:   int64(f.UncompressedSize64),
		Stored: f.Method == zip.Store,
	}, true
}

// OpenFile opens an EPUB file on disk. Files ending in ".xz" are
// decompressed into memory before the zip directory is read.
// The returned closer must be closed once the source is no longer used.
func OpenFile(path string) (*Zip, io.Closer, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		return openXZ(path)
	}

	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	return NewZip(&zrc.Reader), zrc, nil
}

func openXZ(path string) (*Zip, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read xz stream: %w", err)
	}
	data, err := io.ReadAll(xr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}

	z, err := NewZipReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	return z, io.NopCloser(nil), nil
}
