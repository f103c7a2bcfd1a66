package configcmd

import (
	"github.com/spf13/cobra"
	initcmd "warden/client/pkg/cmd/config/init"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config <command>",
		Aliases: []string{"c"},
		Short:   "Manage warden client configuration",
	}

	cmd.AddCommand(initcmd.NewConfigInitCmd())
	return cmd
}
