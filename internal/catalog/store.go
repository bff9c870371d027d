// Package catalog keeps an index of parsed publications in SQLite. Books
// are keyed by the BLAKE3 digest of their archive, so renamed or copied
// files map to the same record.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yuanying/epubkit/internal/epub"
)

// ErrNotFound is returned by Get when no record has the requested hash.
var ErrNotFound = errors.New("book not found")

const driverName = "sqlite"

var schema = []string{`
CREATE TABLE IF NOT EXISTS books (
	hash        TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	title       TEXT NOT NULL,
	identifier  TEXT NOT NULL,
	version     TEXT NOT NULL,
	languages   TEXT NOT NULL,
	authors     TEXT NOT NULL,
	spine_len   INTEGER NOT NULL,
	toc_entries INTEGER NOT NULL,
	warnings    INTEGER NOT NULL,
	indexed_at  TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS books_title ON books (title)`,
}

// Record is the indexed summary of one publication.
type Record struct {
	Hash       string    `json:"hash"`
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Identifier string    `json:"identifier"`
	Version    string    `json:"version"`
	Languages  []string  `json:"languages"`
	Authors    []string  `json:"authors"`
	SpineLen   int       `json:"spine_len"`
	TOCEntries int       `json:"toc_entries"`
	Warnings   int       `json:"warnings"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// RecordFromBook projects book onto a Record stored under hash.
func RecordFromBook(book *epub.Book, path, hash string) Record {
	md := book.Metadata()
	return Record{
		Hash:       hash,
		Path:       path,
		Title:      md.Title(),
		Identifier: book.PrimaryIdentifier(),
		Version:    book.Version(),
		Languages:  md.Languages,
		Authors:    md.Authors(),
		SpineLen:   len(book.Spine()),
		TOCEntries: book.TOC().Count(),
		Warnings:   len(book.Warnings()),
	}
}

// Store is a SQLite-backed catalog.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the catalog database at dsn and creates the schema if needed.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", dsn, err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply catalog schema: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts r or replaces the record with the same hash. IndexedAt is
// set to the current time.
func (s *Store) Put(ctx context.Context, r Record) error {
	if r.Hash == "" {
		return errors.New("record has no hash")
	}
	langs, err := json.Marshal(nonNil(r.Languages))
	if err != nil {
		return fmt.Errorf("failed to encode languages: %w", err)
	}
	authors, err := json.Marshal(nonNil(r.Authors))
	if err != nil {
		return fmt.Errorf("failed to encode authors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO books (hash, path, title, identifier, version, languages, authors, spine_len, toc_entries, warnings, indexed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
	path = excluded.path,
	title = excluded.title,
	identifier = excluded.identifier,
	version = excluded.version,
	languages = excluded.languages,
	authors = excluded.authors,
	spine_len = excluded.spine_len,
	toc_entries = excluded.toc_entries,
	warnings = excluded.warnings,
	indexed_at = excluded.indexed_at`,
		r.Hash, r.Path, r.Title, r.Identifier, r.Version, string(langs), string(authors),
		r.SpineLen, r.TOCEntries, r.Warnings, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", r.Hash, err)
	}
	return nil
}

const selectColumns = `SELECT hash, path, title, identifier, version, languages, authors, spine_len, toc_entries, warnings, indexed_at FROM books`

// Get returns the record stored under hash.
func (s *Store) Get(ctx context.Context, hash string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE hash = ?`, hash)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", hash, ErrNotFound)
	}
	return r, err
}

// List returns every record ordered by title, then path.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY title, path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return records, nil
}

// Delete removes the record stored under hash.
func (s *Store) Delete(ctx context.Context, hash string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", hash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", hash, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r              Record
		langs, authors string
		indexedAt      string
	)
	err := sc.Scan(&r.Hash, &r.Path, &r.Title, &r.Identifier, &r.Version, &langs, &authors,
		&r.SpineLen, &r.TOCEntries, &r.Warnings, &indexedAt)
	if err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(langs), &r.Languages); err != nil {
		return Record{}, fmt.Errorf("failed to decode languages of %s: %w", r.Hash, err)
	}
	if err := json.Unmarshal([]byte(authors), &r.Authors); err != nil {
		return Record{}, fmt.Errorf("failed to decode authors of %s: %w", r.Hash, err)
	}
	if r.IndexedAt, err = time.Parse(time.RFC3339Nano, indexedAt); err != nil {
		return Record{}, fmt.Errorf("failed to decode indexed_at of %s: %w", r.Hash, err)
	}
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
