package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubkit/internal/epub"
)

type spineSummary struct {
	ID        string `json:"id"`
	Href      string `json:"href"`
	MediaType string `json:"media_type"`
	Linear    bool   `json:"linear"`
}

type bookSummary struct {
	Path                     string         `json:"path"`
	Version                  string         `json:"version"`
	PackagePath              string         `json:"package_path"`
	Title                    string         `json:"title"`
	Identifier               string         `json:"identifier,omitempty"`
	Authors                  []string       `json:"authors,omitempty"`
	Languages                []string       `json:"languages,omitempty"`
	Publisher                string         `json:"publisher,omitempty"`
	Modified                 string         `json:"modified,omitempty"`
	PageProgressionDirection string         `json:"page_progression_direction,omitempty"`
	Navigation               string         `json:"navigation"`
	NavigationPath           string         `json:"navigation_path,omitempty"`
	Cover                    string         `json:"cover,omitempty"`
	CoverMethod              string         `json:"cover_method,omitempty"`
	ManifestItems            int            `json:"manifest_items"`
	Spine                    []spineSummary `json:"spine"`
	TOCEntries               int            `json:"toc_entries"`
	Warnings                 []string       `json:"warnings,omitempty"`
}

func summarize(path string, book *epub.Book) bookSummary {
	md := book.Metadata()
	s := bookSummary{
		Path:                     path,
		Version:                  book.Version(),
		PackagePath:              book.PackagePath(),
		Title:                    md.Title(),
		Identifier:               book.PrimaryIdentifier(),
		Authors:                  md.Authors(),
		Languages:                md.Languages,
		PageProgressionDirection: book.PageProgressionDirection(),
		Navigation:               book.NavDocument().Format.String(),
		NavigationPath:           book.NavDocument().Path,
		ManifestItems:            len(book.Manifest()),
		TOCEntries:               book.TOC().Count(),
	}
	if len(md.Publishers) > 0 {
		s.Publisher = md.Publishers[0]
	}
	if t, ok := md.Modified(); ok {
		s.Modified = t.UTC().Format(time.RFC3339)
	}
	if item, method, ok := book.Cover(); ok {
		s.Cover = item.Href
		s.CoverMethod = string(method)
	}
	for _, e := range book.Spine() {
		s.Spine = append(s.Spine, spineSummary{
			ID:        e.IDRef,
			Href:      e.Item.Href,
			MediaType: e.Item.MediaType,
			Linear:    e.Linear,
		})
	}
	for _, w := range book.Warnings() {
		s.Warnings = append(s.Warnings, w.String())
	}
	return s
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the metadata, reading order and warnings of a publication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			r, err := opts.open()
			if err != nil {
				return err
			}
			defer r.Close()

			s := summarize(opts.Path, r.Book)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			writeSummary(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the summary as JSON")
	return cmd
}

func writeSummary(w io.Writer, s bookSummary) {
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-12s %s\n", name+":", value)
		}
	}
	field("Title", s.Title)
	field("Authors", strings.Join(s.Authors, ", "))
	field("Identifier", s.Identifier)
	field("Languages", strings.Join(s.Languages, ", "))
	field("Publisher", s.Publisher)
	field("Modified", s.Modified)
	field("Version", s.Version)
	field("Package", s.PackagePath)
	field("Navigation", strings.TrimSpace(s.Navigation+" "+s.NavigationPath))
	if s.Cover != "" {
		field("Cover", fmt.Sprintf("%s (%s)", s.Cover, s.CoverMethod))
	}
	field("Direction", s.PageProgressionDirection)
	field("Manifest", fmt.Sprintf("%d items", s.ManifestItems))

	fmt.Fprintf(w, "Spine (%d):\n", len(s.Spine))
	for i, e := range s.Spine {
		suffix := ""
		if !e.Linear {
			suffix = " (non-linear)"
		}
		fmt.Fprintf(w, "  %3d. %s %s%s\n", i+1, e.ID, e.Href, suffix)
	}
	fmt.Fprintf(w, "TOC entries: %d\n", s.TOCEntries)
	if len(s.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings (%d):\n", len(s.Warnings))
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}
}
