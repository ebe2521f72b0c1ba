package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Lorentz83/dbSchema/internal/analyzer"
)

type featureOutput struct {
	Type     string   `json:"type"`
	Used     []string `json:"used"`
	Filtered []string `json:"filtered"`
	Roles    []string `json:"roles"`
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [sql]",
		Short: "Evaluate a query batch as the principal",
		Long: `Evaluates the DML batch given as argument (or read from stdin) as
--principal and prints one feature per statement. Fails when the principal
lacks a privilege on any column the batch touches.`,
		Example: `  dbschema check --principal alice "select id from orders where total > 10"`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, store, err := a.loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			sql := strings.Join(args, " ")
			if sql == "" {
				b, err := io.ReadAll(a.in)
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				sql = string(b)
			}

			features, err := e.Check(a.cfg.Principal, sql)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return printJSON(a.out, lo.Map(features, func(f *analyzer.QueryFeature, _ int) featureOutput {
					return featureOutput{Type: f.Type().String(), Used: f.UsedNames(), Filtered: f.FilteredNames(), Roles: f.RoleNames()}
				}))
			}
			return printFeatures(a.out, features)
		},
	}
}

func printFeatures(w io.Writer, features []*analyzer.QueryFeature) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tUSED\tFILTERED\tROLES")
	for _, f := range features {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			f.Type(),
			orDash(f.UsedNames()),
			orDash(f.FilteredNames()),
			orDash(f.RoleNames()),
		)
	}
	return tw.Flush()
}

func orDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
