package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubkit/internal/epub"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Verify that manifest items exist and content documents reference declared resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			r, err := opts.open()
			if err != nil {
				return err
			}
			defer r.Close()

			w := cmd.OutOrStdout()
			problems := 0
			for _, item := range r.Manifest() {
				if item.Remote {
					continue
				}
				if _, err := r.ReadFile(item.ID); err != nil {
					fmt.Fprintf(w, "missing: %s (%s)\n", item.Href, item.ID)
					problems++
				}
			}
			for _, e := range r.Spine() {
				if !isXHTML(e.Item.MediaType) || e.Item.Remote {
					continue
				}
				refs, err := r.ContentRefs(e.IDRef)
				if err != nil {
					// Reported above as a missing manifest item.
					opts.Logger.Debug("skipping content document", "id", e.IDRef, "error", err)
					continue
				}
				for _, m := range refs.Missing {
					fmt.Fprintf(w, "undeclared: %s referenced by %s\n", m, refs.Path)
					problems++
				}
			}
			for _, warning := range r.Warnings() {
				if warning.Kind == epub.WarnDanglingTocTarget {
					fmt.Fprintf(w, "toc: %s\n", warning.Subject)
					problems++
				}
			}

			if problems > 0 {
				return fmt.Errorf("%s: %d problems found", opts.Path, problems)
			}
			fmt.Fprintf(w, "%s: ok\n", opts.Path)
			return nil
		},
	}
}

func isXHTML(mediaType string) bool {
	mediaType = strings.ToLower(mediaType)
	return mediaType == "application/xhtml+xml" || mediaType == "text/html"
}
