// Package main provides the feedex CLI entry point.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gauthierbraillon/feedex/internal/bridge"
	"github.com/gauthierbraillon/feedex/internal/config"
	"github.com/gauthierbraillon/feedex/internal/display"
	"github.com/gauthierbraillon/feedex/internal/feed"
	"github.com/gauthierbraillon/feedex/internal/logger"
	"github.com/gauthierbraillon/feedex/internal/sink/jsonsink"
	"github.com/gauthierbraillon/feedex/internal/sink/yamlsink"
)

// version is injected at build time:
//
//	go build -ldflags="-X main.version=$(git describe --tags --always --dirty)" ./cmd/feedex
var version = "dev"

func main() {
	err := newRootCmd().Execute()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(ldflagsVersion string, bi *debug.BuildInfo) string {
	if ldflagsVersion != "dev" && ldflagsVersion != "" {
		return ldflagsVersion
	}
	if bi != nil && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "dev"
}

// app carries state shared by subcommands once the config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
}

// newRootCmd creates the root command for feedex CLI.
func newRootCmd() *cobra.Command {
	a := &app{}
	bi, _ := debug.ReadBuildInfo()

	rootCmd := &cobra.Command{
		Use:     "feedex",
		Short:   "Parse RSS and Atom feeds into structured data",
		Long:    "Feedex parses RSS and Atom documents and writes them as JSON, YAML, Go values or a terminal outline.",
		Version: resolveVersion(version, bi),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.SetVersionTemplate("feedex version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default $FEEDEX_CONFIG or <config dir>/config.yaml)")

	rootCmd.AddCommand(newParseCmd(a))
	rootCmd.AddCommand(newDetectCmd())
	rootCmd.AddCommand(newConfigCmd(a))

	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.L().Debug("config loaded", zap.String("dir", config.Dir()), zap.String("format", cfg.Output.Format))
	return nil
}

// parseOptions holds the flags of the parse subcommand.
type parseOptions struct {
	format   string
	indent   int
	maxDepth int
	color    string
	width    int
}

// newParseCmd creates the parse subcommand.
func newParseCmd(a *app) *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse <rss|atom|auto> [file]",
		Short: "Parse a feed and print it",
		Long:  "Parse an RSS or Atom feed read from a file (or stdin when omitted or '-') and print the result.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := feed.ParseKind(args[0])
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args[1:])
			if err != nil {
				return err
			}
			if err := a.applyFlags(cmd, &opts); err != nil {
				return err
			}

			adapter := bridge.NewAdapter(
				bridge.WithLogger(logger.L()),
				bridge.WithMaxDepth(opts.maxDepth),
			)
			if fail := write(cmd.OutOrStdout(), adapter, kind, text, opts); fail != nil {
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
				fmt.Fprintf(cmd.ErrOrStderr(), "error [%s]: %s\n", fail.Tag, fail.Message)
				return fail
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Output format (json, yaml, native, outline)")
	cmd.Flags().IntVar(&opts.indent, "indent", 0, "Indent width for json and yaml (0 writes compact json)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "Maximum collection nesting")
	cmd.Flags().StringVar(&opts.color, "color", "", "Outline colors (auto, always, never)")
	cmd.Flags().IntVar(&opts.width, "width", 0, "Truncate outline text longer than this many characters")

	return cmd
}

// applyFlags fills unset flags from the loaded config and validates the
// combined settings with the same rules as the config file.
func (a *app) applyFlags(cmd *cobra.Command, opts *parseOptions) error {
	cfg := *a.cfg
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if flags.Changed("indent") {
		cfg.Output.Indent = opts.indent
	}
	if flags.Changed("max-depth") {
		cfg.Transcode.MaxDepth = opts.maxDepth
	}
	if flags.Changed("color") {
		cfg.Output.Color = opts.color
	}
	if flags.Changed("width") {
		cfg.Output.MaxWidth = opts.width
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts.format = cfg.Output.Format
	opts.indent = cfg.Output.Indent
	opts.maxDepth = cfg.Transcode.MaxDepth
	opts.color = cfg.Output.Color
	opts.width = cfg.Output.MaxWidth
	return nil
}

// write converts text into the requested format on out.
func write(out io.Writer, adapter *bridge.Adapter, kind feed.Kind, text string, opts parseOptions) *bridge.Failure {
	switch opts.format {
	case config.FormatYAML:
		node, fail := bridge.Convert[*yaml.Node](adapter, kind, text, yamlsink.New())
		if fail != nil {
			return fail
		}
		if err := yamlsink.Encode(out, node, opts.indent); err != nil {
			return &bridge.Failure{Tag: bridge.TagTranscode, Message: err.Error()}
		}
	case config.FormatNative:
		outcome := adapter.Parse(kind, text)
		if !outcome.OK() {
			return outcome.Err
		}
		fmt.Fprintf(out, "%#v\n", outcome.Value)
	case config.FormatOutline:
		outline := display.NewOutline(
			display.WithColor(colorEnabled(opts.color, out)),
			display.WithMaxWidth(opts.width),
		)
		rendered, fail := bridge.Convert[string](adapter, kind, text, outline)
		if fail != nil {
			return fail
		}
		fmt.Fprint(out, rendered)
	default:
		sink := jsonsink.New(out, jsonsink.WithIndent(opts.indent))
		if _, fail := bridge.Convert[int](adapter, kind, text, sink); fail != nil {
			return fail
		}
		if opts.indent == 0 {
			fmt.Fprintln(out)
		}
	}
	return nil
}

func colorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	f, ok := out.(*os.File)
	return ok && display.IsTerminal(f)
}

// readInput reads the named file, or stdin when no file or "-" is given.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read feed: %w", err)
	}
	return string(data), nil
}

// newDetectCmd creates the detect subcommand.
func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [file]",
		Short: "Print the feed kind of a document",
		Long:  "Detect whether a document is an RSS or Atom feed. Prints rss, atom or unknown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			kind := feed.Detect(text)
			logger.L().Debug("feed detected", zap.String("kind", string(kind)))
			fmt.Fprintln(cmd.OutOrStdout(), kind)
			return nil
		},
	}
}

// newConfigCmd creates the config subcommand.
func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long:  "Print the effective feedex configuration as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# config directory: %s\n", config.Dir())
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
