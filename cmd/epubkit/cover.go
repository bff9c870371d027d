package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubkit/internal/thumbnail"
)

func newCoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover <file>",
		Short: "Extract the cover image, optionally scaled down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			width, _ := cmd.Flags().GetInt("width")
			quality, _ := cmd.Flags().GetInt("quality")
			if width < 0 {
				return fmt.Errorf("invalid --width %d: must be 0 or positive", width)
			}
			if quality < 1 || quality > 100 {
				return fmt.Errorf("invalid --quality %d: must be between 1 and 100", quality)
			}

			r, err := opts.open()
			if err != nil {
				return err
			}
			defer r.Close()

			item, method, ok := r.Cover()
			if !ok {
				return errors.New("no cover image found")
			}
			data, err := r.ReadFile(item.ID)
			if err != nil {
				return err
			}
			img, err := thumbnail.Render(data, item.MediaType, thumbnail.Options{MaxWidth: width, JPEGQuality: quality})
			if err != nil {
				return fmt.Errorf("failed to render cover %s: %w", item.Href, err)
			}

			if output == "" {
				output = defaultCoverPath(opts.Path, img.Ext())
			}
			if err := os.WriteFile(output, img.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write cover: %w", err)
			}
			opts.Logger.Debug("cover detected", "href", item.Href, "method", string(method))
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx%d %s)\n", item.Href, output, img.Width, img.Height, img.Format)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: input name with -cover suffix)")
	cmd.Flags().Int("width", 0, "Maximum width in pixels (0 keeps the original size)")
	cmd.Flags().Int("quality", thumbnail.DefaultJPEGQuality, "JPEG quality (1-100)")
	return cmd
}

// defaultCoverPath derives the cover file name from the publication path.
func defaultCoverPath(input, ext string) string {
	base := strings.TrimSuffix(filepath.Clean(input), string(filepath.Separator))
	base = strings.TrimSuffix(base, ".xz")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "-cover" + ext
}
