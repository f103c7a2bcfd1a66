package get

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

func NewGetJobCmd(svc api.Service) *cobra.Command {
	return &cobra.Command{
		Use:     "get <id|uuid>",
		Short:   "Show a backup job",
		Args:    cobra.ExactArgs(1),
		Example: "warden jobs get 42",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			job, err := svc.GetJob(ctx, args[0])
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.Print("")
			cmdutil.Print(Render(job))
		},
	}
}

// Render prints a job as a two column table.
func Render(job api.Job) string {
	tw := table.NewWriter()
	rows := []table.Row{
		{"ID", job.ID},
		{"UUID", job.JobUUID.String()},
		{"Type", job.BackupType},
		{"Status", cmdutil.Status(job.Status)},
		{"Databases", strings.Join(job.Databases, ", ")},
		{"Triggered by", fmt.Sprintf("%s (%s)", job.TriggeredBy, job.TriggeredByUser)},
		{"Started", cmdutil.Time(job.StartTime)},
		{"Finished", cmdutil.Time(job.EndTime)},
		{"Size", cmdutil.Bytes(job.TotalSizeBytes)},
		{"Compressed", cmdutil.Bytes(job.CompressedSizeBytes)},
		{"Path", job.BackupPath},
	}
	if job.ErrorMessage != "" {
		rows = append(rows, table.Row{"Error", job.ErrorMessage})
	}
	if job.Notes != "" {
		rows = append(rows, table.Row{"Notes", job.Notes})
	}
	tw.AppendRows(rows)
	return tw.Render()
}
