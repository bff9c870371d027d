package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yuanying/epubkit/internal/archive"
)

func newEntriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entries <file>",
		Short: "List the archive entries with their sizes",
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
			src := r.Source()
			insp, _ := src.(archive.Inspector)
			var total uint64
			names := src.Entries()
			for _, name := range names {
				var size int64
				method := ""
				if info, ok := statEntry(insp, name); ok {
					size = info.Size
					method = "deflated"
					if info.Stored {
						method = "stored"
					}
				} else {
					data, err := src.Open(name)
					if err != nil {
						opts.Logger.Warn("failed to read entry", "name", name, "error", err)
						continue
					}
					size = int64(len(data))
				}
				total += uint64(size)
				fmt.Fprintf(w, "%10s  %-8s  %s\n", humanize.IBytes(uint64(size)), method, name)
			}
			fmt.Fprintf(w, "%10s  %d entries\n", humanize.IBytes(total), len(names))
			return nil
		},
	}
}

func statEntry(insp archive.Inspector, name string) (archive.EntryInfo, bool) {
	if insp == nil {
		return archive.EntryInfo{}, false
	}
	return insp.Stat(name)
}
