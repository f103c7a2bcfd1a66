package toggle

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"strconv"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

func NewToggleScheduleCmd(svc api.Service) *cobra.Command {
	var on, off bool
	cmd := &cobra.Command{
		Use:     "toggle <id>",
		Short:   "Pause or resume a schedule",
		Long:    "Flip a schedule between active and paused. --on and --off set the state explicitly.",
		Args:    cobra.ExactArgs(1),
		Example: "warden schedules toggle 3 --off",
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				cmdutil.PrintE(fmt.Sprintf("invalid schedule id: %s", args[0]))
				return
			}
			if on && off {
				cmdutil.PrintE("--on and --off are mutually exclusive")
				return
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			active := on
			if !on && !off {
				current, err := find(ctx, svc, uint(id))
				if err != nil {
					cmdutil.PrintE(err.Error())
					return
				}
				active = !current.IsActive
			}

			schedule, err := svc.PatchSchedule(ctx, uint(id), api.PatchScheduleParams{IsActive: &active})
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			if schedule.IsActive {
				cmdutil.PrintS(fmt.Sprintf("schedule %s resumed, next run %s", schedule.ScheduleName, cmdutil.Time(schedule.NextRun)))
			} else {
				cmdutil.PrintS(fmt.Sprintf("schedule %s paused", schedule.ScheduleName))
			}
		},
	}
	cmd.Flags().BoolVar(&on, "on", false, "activate the schedule")
	cmd.Flags().BoolVar(&off, "off", false, "pause the schedule")
	return cmd
}

func find(ctx context.Context, svc api.Service, id uint) (api.Schedule, error) {
	schedules, err := svc.ListSchedules(ctx, false)
	if err != nil {
		return api.Schedule{}, err
	}
	for _, s := range schedules {
		if s.ID == id {
			return s, nil
		}
	}
	return api.Schedule{}, fmt.Errorf("schedule %d not found", id)
}
