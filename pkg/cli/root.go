// Package cli implements the dbschema command line: building a schema state
// from DDL and grant scripts, evaluating queries against it and serving it
// over HTTP.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lorentz83/dbSchema/internal/config"
	"github.com/Lorentz83/dbSchema/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// app carries the resolved configuration and I/O of one invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	output string
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]string{
				"error": err.Error(),
				"kind":  domain.KindOf(err).String(),
			})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}
	var (
		state     string
		principal string
		logLevel  string
		maxDepth  int
	)

	rootCmd := &cobra.Command{
		Use:           "dbschema",
		Short:         "Column-level SQL authorization analyzer",
		Long:          "dbschema loads a schema and its grants, then checks which columns each query reads, writes and filters on, and which roles allow it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}

			// flag > env > default
			flags := cmd.Flags()
			if flags.Changed("state") {
				cfg.StatePath = state
			}
			if flags.Changed("principal") {
				cfg.Principal = principal
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("max-depth") {
				if maxDepth <= 0 {
					return fmt.Errorf("--max-depth must be positive, got %d", maxDepth)
				}
				cfg.MaxDepth = maxDepth
			}
			if err := validateOutputFormat(a.output); err != nil {
				return err
			}

			a.cfg = cfg
			a.logger = newLogger(errOut, cfg)
			for _, w := range cfg.Warnings {
				a.logger.Warn(w)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&state, "state", "s", config.DefaultStatePath, "Schema state file (.db/.sqlite for SQLite, otherwise YAML)")
	pf.StringVar(&principal, "principal", config.DefaultPrincipal, "Principal queries are evaluated as")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.IntVar(&maxDepth, "max-depth", 64, "Maximum statement nesting depth")
	pf.StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newCreateCmd(a))
	rootCmd.AddCommand(newParseCmd(a))
	rootCmd.AddCommand(newFeatureCmd(a))
	rootCmd.AddCommand(newInfoCmd(a))
	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	return rootCmd
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func validateOutputFormat(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
