package schedules

import (
	"github.com/spf13/cobra"
	"warden/client/internal/api"
	"warden/client/pkg/cmd/schedules/create"
	"warden/client/pkg/cmd/schedules/remove"
	"warden/client/pkg/cmd/schedules/list"
	"warden/client/pkg/cmd/schedules/toggle"
)

func NewSchedulesCmd(svc api.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedules <command>",
		Aliases: []string{"s"},
		Short:   "Manage backup schedules",
		Long:    "Create, list, pause, resume and delete cron driven backup schedules",
	}

	cmd.AddCommand(list.NewListSchedulesCmd(svc))
	cmd.AddCommand(create.NewCreateScheduleCmd(svc))
	cmd.AddCommand(toggle.NewToggleScheduleCmd(svc))
	cmd.AddCommand(remove.NewRemoveScheduleCmd(svc))
	return cmd
}
