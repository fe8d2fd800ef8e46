package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xab-mack/contractscope/internal/plugins"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rules", Short: "List available checks"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List built-in checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := plugins.NewRegistry()
			reg.RegisterBuiltin()
			for _, c := range reg.Checks() {
				m := c.Meta()
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", m.ID, m.Severity, m.Title)
			}
			return nil
		},
	})
	return cmd
}
