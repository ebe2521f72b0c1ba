package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lorentz83/dbSchema/internal/analyzer"
	"github.com/Lorentz83/dbSchema/internal/engine"
	"github.com/Lorentz83/dbSchema/internal/report"
)

const maxLineBytes = 1 << 20

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Print the feature matrix of one query batch per line",
		Long: `Evaluates every input line as a batch of DML statements run by the
default principal and prints one CSV row per statement. Lines that fail are
reported on stderr and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLines(cmd, args, func(line string) (string, string, error) {
				return "", line, nil
			})
		},
	}
}

func newFeatureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "feature [file]",
		Short: "Print the feature matrix of labelled queries",
		Long: `Reads lines of the form "label: sql". Each "?" placeholder is replaced
by 1, the query is evaluated as the default principal and the label is
written in the role column of its rows.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLines(cmd, args, func(line string) (string, string, error) {
				label, sql, ok := strings.Cut(line, ":")
				if !ok {
					return "", "", fmt.Errorf("expected \"label: sql\"")
				}
				return strings.TrimSpace(label), strings.ReplaceAll(strings.TrimSpace(sql), "?", "1"), nil
			})
		},
	}
}

// runLines evaluates input line by line. split extracts the row label and
// the SQL text of a line.
func (a *app) runLines(cmd *cobra.Command, args []string, split func(string) (string, string, error)) error {
	ctx := cmd.Context()
	e, store, err := a.loadEngine(ctx)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	r, done, err := a.input(args)
	if err != nil {
		return err
	}
	defer done()

	fw := report.NewFeatureWriter(a.out, e.Columns())
	if err := fw.Header(); err != nil {
		return err
	}
	failed, err := a.evaluateLines(e, r, fw, split)
	if err != nil {
		return err
	}
	if err := fw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		a.logger.Warn("some lines were skipped", "failed", failed)
	}
	return nil
}

func (a *app) evaluateLines(e *engine.Engine, r io.Reader, fw *report.FeatureWriter, split func(string) (string, string, error)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	failed, n := 0, 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		features, label, err := a.evaluateLine(e, line, split)
		if err != nil {
			failed++
			a.logger.Error("cannot evaluate line", "line", n, "sql", line, "error", err)
			continue
		}
		if err := fw.WriteAll(features, label); err != nil {
			return failed, err
		}
	}
	if err := scanner.Err(); err != nil {
		return failed, fmt.Errorf("read input: %w", err)
	}
	return failed, nil
}

func (a *app) evaluateLine(e *engine.Engine, line string, split func(string) (string, string, error)) ([]*analyzer.QueryFeature, string, error) {
	label, sql, err := split(line)
	if err != nil {
		return nil, "", err
	}
	features, err := e.Check(a.cfg.Principal, sql)
	return features, label, err
}
