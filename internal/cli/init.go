package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xab-mack/contractscope/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		dir    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.TOMLFile + " in the target directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = "."
			}
			path, err := config.Write(dir, config.Default(), asJSON)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write config file to")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write "+config.JSONFile+" instead")
	return cmd
}
