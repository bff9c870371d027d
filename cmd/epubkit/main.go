package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubkit/internal/epub"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// cliOptions are the settings shared by every subcommand.
type cliOptions struct {
	Path     string
	Rootfile int // index into the container rootfiles, -1 for the default policy
	Strict   bool
	Logger   *slog.Logger
}

// epubOptions converts the CLI settings into parser options.
func (o cliOptions) epubOptions() []epub.Option {
	opts := []epub.Option{epub.WithLogger(o.Logger)}
	if o.Rootfile >= 0 {
		opts = append(opts, epub.WithRootfilePolicy(epub.RootfileAt(o.Rootfile)))
	}
	if o.Strict {
		opts = append(opts, epub.WithStrictNavigation())
	}
	return opts
}

// open parses the publication named by o.Path.
func (o cliOptions) open() (*epub.Reader, error) {
	return epub.Open(o.Path, o.epubOptions()...)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epubkit",
		Short: "Inspect and index EPUB publications",
		Long: `epubkit reads EPUB 2 and EPUB 3 publications (zip files, .epub.xz files or
unpacked directories) and reports their metadata, reading order and
table of contents.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.String("log-level", defaultLogLevel, "Log level: debug, info, warn, error")
	pf.String("log-format", defaultLogFormat, "Log format: text, json")
	pf.BoolP("verbose", "v", false, "Verbose output (same as --log-level debug)")
	pf.Int("rootfile", -1, "Index of the container rootfile to parse (default: first OEBPS package)")
	pf.Bool("strict", false, "Fail when a table of contents entry targets a resource outside the manifest")

	cmd.AddCommand(
		newInspectCmd(),
		newTOCCmd(),
		newEntriesCmd(),
		newCoverCmd(),
		newCheckCmd(),
		newIndexCmd(),
		newListCmd(),
	)
	return cmd
}

// readCLIOptions validates the global flags. The first argument, if any,
// is the publication path.
func readCLIOptions(cmd *cobra.Command, args []string) (cliOptions, error) {
	pf := cmd.Root().PersistentFlags()
	logLevel, _ := pf.GetString("log-level")
	logFormat, _ := pf.GetString("log-format")
	verbose, _ := pf.GetBool("verbose")
	rootfile, _ := pf.GetInt("rootfile")
	strict, _ := pf.GetBool("strict")

	logLevel = strings.ToLower(strings.TrimSpace(logLevel))
	if _, ok := parseLogLevel(logLevel); !ok {
		return cliOptions{}, fmt.Errorf("invalid --log-level %q: must be one of debug, info, warn, error", logLevel)
	}
	logFormat = strings.ToLower(strings.TrimSpace(logFormat))
	if logFormat != "text" && logFormat != "json" {
		return cliOptions{}, fmt.Errorf("invalid --log-format %q: must be text or json", logFormat)
	}
	if rootfile < -1 {
		return cliOptions{}, fmt.Errorf("invalid --rootfile %d: must be -1 or a rootfile index", rootfile)
	}
	// --verbose overrides log-level to debug
	if verbose {
		logLevel = "debug"
	}

	opts := cliOptions{
		Rootfile: rootfile,
		Strict:   strict,
		Logger:   buildLogger(cmd.ErrOrStderr(), logLevel, logFormat),
	}
	if len(args) > 0 {
		opts.Path = args[0]
	}
	return opts, nil
}

func parseLogLevel(level string) (slog.Level, bool) {
	switch level {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, ok := parseLogLevel(strings.ToLower(strings.TrimSpace(level)))
	if !ok {
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
