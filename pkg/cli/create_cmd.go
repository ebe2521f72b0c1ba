package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCreateCmd(a *app) *cobra.Command {
	var noDefaultGrants bool

	cmd := &cobra.Command{
		Use:   "create [file]",
		Short: "Build the schema state from a DDL and GRANT script",
		Long: `Reads CREATE TABLE, GRANT and role statements (stdin when no file is
given), applies them in order and replaces the saved state. Unless
--no-default-grants is set, the default principal then receives READ and
WRITE on every column.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, done, err := a.input(args)
			if err != nil {
				return err
			}
			defer done()
			script, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			e := a.newEngine()
			if err := e.Exec(string(script)); err != nil {
				return err
			}
			if !noDefaultGrants {
				if err := e.GrantDefaults(a.cfg.Principal); err != nil {
					return err
				}
			}

			store, err := openStore(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			if err := store.Persist(ctx, e); err != nil {
				return err
			}
			a.logger.Debug("state saved", "path", a.cfg.StatePath)

			n := len(e.Tables())
			if a.output == "json" {
				return printJSON(a.out, map[string]any{"tables": n, "state": a.cfg.StatePath})
			}
			_, err = fmt.Fprintf(a.out, "Tables loaded: %d\n", n)
			return err
		},
	}
	cmd.Flags().BoolVar(&noDefaultGrants, "no-default-grants", false, "Do not grant every column to the default principal")
	return cmd
}
