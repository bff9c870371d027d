package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubkit/internal/epub"
)

func newTOCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toc <file>",
		Short: "Print the table of contents as an indented tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			landmarks, _ := cmd.Flags().GetBool("landmarks")
			pages, _ := cmd.Flags().GetBool("page-list")

			r, err := opts.open()
			if err != nil {
				return err
			}
			defer r.Close()

			w := cmd.OutOrStdout()
			if title := r.NavTitle(); title != "" {
				fmt.Fprintln(w, title)
			}
			writeTOC(w, r.TOC())
			if landmarks {
				fmt.Fprintln(w, "Landmarks:")
				writeEntries(w, r.Landmarks())
			}
			if pages {
				fmt.Fprintln(w, "Page list:")
				writeEntries(w, r.PageList())
			}
			return nil
		},
	}
	cmd.Flags().Bool("landmarks", false, "Also print the landmarks")
	cmd.Flags().Bool("page-list", false, "Also print the page list")
	return cmd
}

func writeTOC(w io.Writer, root epub.TocEntry) {
	root.Walk(func(e epub.TocEntry, depth int) {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), entryLine(e))
	})
}

func writeEntries(w io.Writer, entries []epub.TocEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\n", entryLine(e))
	}
}

func entryLine(e epub.TocEntry) string {
	line := e.Label
	if e.Type != "" {
		line = "[" + e.Type + "] " + line
	}
	if target := e.Target(); target != "" {
		line += " -> " + target
	}
	return line
}
