package cmd

import (
	"github.com/labops/runcontrol/cmd/console"
	"github.com/spf13/cobra"
)

var cmds = []*cobra.Command{
	console.Cmd,
}

// Execute builds the command tree and executes commands.
func Execute() error {
	command := &cobra.Command{
		Use: "runcontrol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	for _, c := range cmds {
		command.AddCommand(c)
	}

	return command.Execute()
}
