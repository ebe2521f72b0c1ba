package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if a.output == "json" {
				return printJSON(a.out, map[string]string{"version": version, "commit": commit})
			}
			_, err := fmt.Fprintf(a.out, "dbschema version %s (commit: %s)\n", version, commit)
			return err
		},
	}
}
