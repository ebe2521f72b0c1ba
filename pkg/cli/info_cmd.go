package cli

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Lorentz83/dbSchema/internal/catalog"
)

type tableInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

func newInfoCmd(a *app) *cobra.Command {
	var ddl bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "List the tables and columns of the saved state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, store, err := a.loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			tables := e.Tables()
			if a.output == "json" {
				return printJSON(a.out, lo.Map(tables, func(t *catalog.Table, _ int) tableInfo {
					return tableInfo{Name: t.Name().String(), Columns: t.ColumnNames()}
				}))
			}
			for _, t := range tables {
				if ddl {
					if _, err := fmt.Fprintln(a.out, t.String()); err != nil {
						return err
					}
					continue
				}
				if _, err := fmt.Fprintf(a.out, "%s:%s\n", t.Name(), strings.Join(t.ColumnNames(), ",")); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ddl, "ddl", false, "Print CREATE TABLE statements instead of column lists")
	return cmd
}
