package app

import (
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/xab-mack/contractscope/internal/cli"
)

func BuildRoot() *cobra.Command {
	var verbosity int
	root := &cobra.Command{
		Use:           "contractscope",
		Short:         "Storage layout and call graph analysis for compiled Solidity contracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbosity, nil)
		},
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	cli.AddCommands(root)
	return root
}
