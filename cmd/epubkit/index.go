package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yuanying/epubkit/internal/catalog"
	"github.com/yuanying/epubkit/internal/epub"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <db> <file>...",
		Short: "Parse publications and record them in a SQLite catalog",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, nil)
			if err != nil {
				return err
			}
			store, err := catalog.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			files := args[1:]
			failed := 0
			for _, path := range files {
				rec, err := indexFile(opts, path)
				if err == nil {
					err = store.Put(cmd.Context(), rec)
				}
				if err != nil {
					opts.Logger.Error("failed to index", "path", path, "error", err)
					failed++
					continue
				}
				opts.Logger.Info("indexed", "path", path, "title", rec.Title, "hash", rec.Hash)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(files))
			}
			return nil
		},
	}
}

func indexFile(opts cliOptions, path string) (catalog.Record, error) {
	hash, err := catalog.HashFile(path)
	if err != nil {
		return catalog.Record{}, err
	}
	r, err := epub.Open(path, opts.epubOptions()...)
	if err != nil {
		return catalog.Record{}, err
	}
	defer r.Close()
	return catalog.RecordFromBook(r.Book, path, hash), nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <db>",
		Short: "List the publications recorded in a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := catalog.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range records {
				fmt.Fprintf(w, "%s  %s  %s  (%s)\n", shortHash(r.Hash), r.Title, r.Path, humanize.Time(r.IndexedAt))
			}
			return nil
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
