package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/yuanying/epubkit/internal/archive"
	"github.com/yuanying/epubkit/internal/epub"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	want := Record{
		Hash:       "abc",
		Path:       "/books/a.epub",
		Title:      "A Book",
		Identifier: "urn:isbn:9780306406157",
		Version:    "3.0",
		Languages:  []string{"en", "ja"},
		Authors:    []string{"Jane Doe"},
		SpineLen:   3,
		TOCEntries: 5,
		Warnings:   1,
	}
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want.IndexedAt = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	// Put with the same hash replaces the record.
	want.Path = "/books/renamed.epub"
	want.Authors = nil
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err = s.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Path != "/books/renamed.epub" || len(got.Authors) != 0 {
		t.Errorf("Get() after update = %+v", got)
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, Record{Title: "no hash"}); err == nil {
		t.Error("Put() without hash succeeded")
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, r := range []Record{
		{Hash: "3", Path: "c.epub", Title: "Zebra"},
		{Hash: "1", Path: "b.epub", Title: "Alpha"},
		{Hash: "2", Path: "a.epub", Title: "Alpha"},
	} {
		if err := s.Put(ctx, r); err != nil {
			t.Fatalf("Put(%s) error = %v", r.Hash, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var hashes []string
	for _, r := range list {
		hashes = append(hashes, r.Hash)
	}
	if want := []string{"2", "1", "3"}; !reflect.DeepEqual(hashes, want) {
		t.Errorf("List() order = %v, want %v", hashes, want)
	}

	if err := s.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List() after Delete = %d records, want 2", len(list))
	}
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Put(ctx, Record{Hash: "h", Path: "p", Title: "T"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("Open() again error = %v", err)
	}
	defer s.Close()
	if _, err := s.Get(ctx, "h"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}

func TestRecordFromBook(t *testing.T) {
	src := archive.Map{
		"mimetype": []byte(epub.MediaTypeEPUB),
		"META-INF/container.xml": []byte(`<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`),
		"OEBPS/content.opf": []byte(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">urn:uuid:123e4567-e89b-12d3-a456-426614174000</dc:identifier>
    <dc:title>Catalogued</dc:title>
    <dc:language>en</dc:language>
    <dc:creator>Jane Doe</dc:creator>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="ch1"/><itemref idref="ch2"/></spine>
</package>`),
		"OEBPS/nav.xhtml": []byte(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops"><body>
<nav epub:type="toc"><ol><li><a href="ch1.xhtml">One</a><ol><li><a href="ch1.xhtml#a">One A</a></li></ol></li><li><a href="ch2.xhtml">Two</a></li></ol></nav>
</body></html>`),
	}
	book, err := epub.ParseBook(src)
	if err != nil {
		t.Fatalf("ParseBook() error = %v", err)
	}

	got := RecordFromBook(book, "a.epub", "hash")
	want := Record{
		Hash:       "hash",
		Path:       "a.epub",
		Title:      "Catalogued",
		Identifier: "urn:uuid:123e4567-e89b-12d3-a456-426614174000",
		Version:    "3.0",
		Languages:  []string{"en"},
		Authors:    []string{"Jane Doe"},
		SpineLen:   2,
		TOCEntries: 3,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RecordFromBook() = %+v, want %+v", got, want)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(empty)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if want := "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"; got != want {
		t.Errorf("HashFile(empty) = %s, want %s", got, want)
	}

	a, _ := HashReader(strings.NewReader("book one"))
	b, _ := HashReader(strings.NewReader("book two"))
	if a == b || len(a) != 64 {
		t.Errorf("HashReader() = %s, %s; want distinct 64-char digests", a, b)
	}

	if _, err := HashFile(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("HashFile(missing) error = %v, want os.ErrNotExist", err)
	}
}
