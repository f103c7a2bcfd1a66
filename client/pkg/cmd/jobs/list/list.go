package list

import (
	"context"
	"fmt"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"strings"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

func NewListJobsCmd(svc api.Service) *cobra.Command {
	var limit, offset int
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent backup jobs",
		Long:  "List backup jobs, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			jobs, err := svc.ListJobs(ctx, limit, offset, status)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			header := table.Row{"ID", "UUID", "Type", "Status", "Databases", "Trigger", "Started", "Duration", "Size"}
			tw := table.NewWriter()
			tw.AppendHeader(header)
			for _, next := range jobs {
				duration := "-"
				if next.DurationSeconds != nil {
					duration = (time.Duration(*next.DurationSeconds * float64(time.Second))).Round(time.Second).String()
				}
				tw.AppendRow(table.Row{
					next.ID,
					next.JobUUID.String(),
					next.BackupType,
					cmdutil.Status(next.Status),
					strings.Join(next.Databases, ", "),
					next.TriggeredBy,
					cmdutil.Time(next.StartTime),
					duration,
					cmdutil.Bytes(next.CompressedSizeBytes),
				})
			}
			tw.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", fmt.Sprintf("%d", len(jobs))})
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of jobs to show")
	cmd.Flags().IntVarP(&offset, "offset", "o", 0, "number of jobs to skip")
	cmd.Flags().StringVarP(&status, "status", "s", "", "only show jobs in this status")
	return cmd
}
