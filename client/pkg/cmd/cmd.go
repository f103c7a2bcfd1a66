package cmd

import (
	"github.com/spf13/cobra"
	"os"
	"warden/client/internal/api"
	"warden/client/internal/auth"
	"warden/client/internal/config"
	"warden/client/pkg/cmd/alerts"
	configcmd "warden/client/pkg/cmd/config"
	"warden/client/pkg/cmd/jobs"
	"warden/client/pkg/cmd/schedules"
	"warden/client/pkg/cmd/summary"
)

func New() (*cobra.Command, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}

	accessKey := os.Getenv("WARDEN_ACCESS_KEY")
	if accessKey == "" {
		if accessKey, err = auth.Get(); err != nil {
			accessKey = cfg.AccessKey
		}
	}
	if v := os.Getenv("WARDEN_HOST"); v != "" {
		cfg.Host = v
	}

	svc := api.NewService(api.NewClient(api.Config{Host: cfg.Host, AccessKey: accessKey}))

	cmd := &cobra.Command{
		Use:   "warden",
		Short: "warden - scheduled database backups",
	}

	cmd.AddCommand(configcmd.NewConfigCmd())
	cmd.AddCommand(jobs.NewJobsCmd(svc))
	cmd.AddCommand(schedules.NewSchedulesCmd(svc))
	cmd.AddCommand(alerts.NewAlertsCmd(svc))
	cmd.AddCommand(summary.NewSummaryCmd(svc))
	return cmd, nil
}
