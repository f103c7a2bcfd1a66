package remove

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"strconv"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

func NewRemoveScheduleCmd(svc api.Service) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a schedule",
		Long:    "Delete a schedule. Jobs it already produced and their artifacts are kept.",
		Args:    cobra.ExactArgs(1),
		Example: "warden schedules delete 3",
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				cmdutil.PrintE(fmt.Sprintf("invalid schedule id: %s", args[0]))
				return
			}
			if !yes && !cmdutil.Confirm(fmt.Sprintf("Delete schedule %d", id)) {
				return
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := svc.DeleteSchedule(ctx, uint(id)); err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.PrintS("schedule deleted!")
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
