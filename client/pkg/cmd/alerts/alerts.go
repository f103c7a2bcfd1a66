package alerts

import (
	"github.com/spf13/cobra"
	"warden/client/internal/api"
	"warden/client/pkg/cmd/alerts/list"
	"warden/client/pkg/cmd/alerts/resolve"
)

func NewAlertsCmd(svc api.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alerts <command>",
		Aliases: []string{"a"},
		Short:   "Inspect and resolve backup alerts",
	}

	cmd.AddCommand(list.NewListAlertsCmd(svc))
	cmd.AddCommand(resolve.NewResolveAlertCmd(svc))
	return cmd
}
