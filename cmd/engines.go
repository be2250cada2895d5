// -- cmd/engines.go --
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ui5sel/internal/host"
	"github.com/xkilldash9x/ui5sel/internal/observability"
	"github.com/xkilldash9x/ui5sel/internal/registry"
)

func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "Lists the selector engines usable in chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			s, err := host.NewDefault(registry.Absent, logger, engineOptions(cfg.Engine(), logger)...)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDEFAULT\tDESCRIPTION")
			for _, r := range s.Registrations() {
				def := ""
				if r.Default {
					def = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, def, r.Description)
			}
			return w.Flush()
		},
	}
}
