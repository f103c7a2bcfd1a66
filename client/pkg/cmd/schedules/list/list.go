package list

import (
	"context"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"strconv"
	"strings"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

func NewListSchedulesCmd(svc api.Service) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backup schedules",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			schedules, err := svc.ListSchedules(ctx, activeOnly)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			header := table.Row{"ID", "Name", "Type", "Cron", "Databases", "Active", "Retention", "Next Run", "Last Run"}
			tw := table.NewWriter()
			tw.AppendHeader(header)
			for _, next := range schedules {
				active := color.YellowString("paused")
				if next.IsActive {
					active = color.GreenString("active")
				}
				retention := "forever"
				if next.RetentionDays > 0 {
					retention = strconv.Itoa(next.RetentionDays) + "d"
				}
				tw.AppendRow(table.Row{
					next.ID,
					next.ScheduleName,
					next.BackupType,
					next.CronExpression,
					strings.Join(next.Databases, ", "),
					active,
					retention,
					cmdutil.Time(next.NextRun),
					cmdutil.Time(next.LastRun),
				})
				tw.AppendSeparator()
			}
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
	cmd.Flags().BoolVarP(&activeOnly, "active", "a", false, "only show active schedules")
	return cmd
}
