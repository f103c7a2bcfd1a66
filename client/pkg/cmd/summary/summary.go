package summary

import (
	"context"
	"fmt"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

func NewSummaryCmd(svc api.Service) *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:     "summary",
		Short:   "Show the backup dashboard summary",
		Example: "warden summary --window 24",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			s, err := svc.Summary(ctx, window)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			used, total := s.StorageUsedBytes, s.StorageTotalBytes
			tw := table.NewWriter()
			tw.SetTitle("warden summary")
			tw.AppendRows([]table.Row{
				{"Health", health(s.HealthScore) + " " + s.HealthStatus},
				{"Jobs", fmt.Sprintf("%d total, %d completed, %d failed, %d running, %d pending, %d cancelled",
					s.TotalJobs, s.SuccessfulJobs, s.FailedJobs, s.RunningJobs, s.PendingJobs, s.CancelledJobs)},
				{"Average duration", (time.Duration(s.AverageDurationSeconds * float64(time.Second))).Round(time.Second).String()},
				{"Storage", fmt.Sprintf("%s of %s (%.1f%%)", cmdutil.Bytes(&used), cmdutil.Bytes(&total), s.StorageUsagePercent)},
				{"Last completed", cmdutil.Time(s.LastCompletedAt)},
				{"Next scheduled", cmdutil.Time(s.NextScheduledAt)},
				{"Active schedules", s.ActiveSchedules},
				{"Unresolved alerts", s.UnresolvedAlerts},
			})
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
	cmd.Flags().IntVarP(&window, "window", "w", 0, "only count jobs created in the last N hours, 0 counts all")
	return cmd
}

func health(score float64) string {
	v := fmt.Sprintf("%.1f", score)
	switch {
	case score >= 80:
		return color.GreenString(v)
	case score >= 50:
		return color.YellowString(v)
	}
	return color.RedString(v)
}
