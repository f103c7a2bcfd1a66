package list

import (
	"context"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

func NewListAlertsCmd(svc api.Service) *cobra.Command {
	var all bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Long:  "List alerts, newest first. Only unresolved alerts are shown unless --all is set.",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			alerts, err := svc.ListAlerts(ctx, !all, limit)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			header := table.Row{"ID", "Severity", "Type", "Title", "Message", "Source", "Resolved", "Raised"}
			tw := table.NewWriter()
			tw.AppendHeader(header)
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Number: 5, WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
			})
			for _, next := range alerts {
				resolved := "no"
				if next.IsResolved {
					resolved = "yes"
				}
				raised := next.CreatedAt
				tw.AppendRow(table.Row{
					next.ID,
					cmdutil.Severity(next.Severity),
					next.AlertType,
					next.Title,
					next.Message,
					next.Source,
					resolved,
					cmdutil.Time(&raised),
				})
				tw.AppendSeparator()
			}
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include resolved alerts")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "number of alerts to show")
	return cmd
}
