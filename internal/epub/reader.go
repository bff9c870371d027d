package epub

import (
	"fmt"
	"io"

	"github.com/yuanying/epubkit/internal/archive"
)

// Reader is a parsed EPUB file together with the archive it was read from.
type Reader struct {
	*Book
	src    archive.Source
	closer io.Closer
}

// Open opens the EPUB at path and parses it. path may be a zip file, an
// xz-compressed zip file or an unpacked directory.
func Open(path string, opts ...Option) (*Reader, error) {
	src, closer, err := openSource(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	book, err := ParseBook(src, opts...)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &Reader{Book: book, src: src, closer: closer}, nil
}

func openSource(path string) (archive.Source, io.Closer, error) {
	if dir, err := archive.OpenDir(path); err == nil {
		return dir, io.NopCloser(nil), nil
	}
	z, closer, err := archive.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	return z, closer, nil
}

// Close releases the underlying archive.
func (r *Reader) Close() error {
	return r.closer.Close()
}

// Source returns the archive the book was parsed from.
func (r *Reader) Source() archive.Source {
	return r.src
}

// ReadFile reads the manifest item id.
func (r *Reader) ReadFile(id string) ([]byte, error) {
	return r.Book.ReadItem(r.src, id)
}

// ContentRefs collects the references of the content document id.
func (r *Reader) ContentRefs(id string) (*ContentRefs, error) {
	return r.Book.LoadContentRefs(r.src, id)
}
