package run

import (
	"context"
	"fmt"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"os/user"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
	"warden/client/pkg/cmd/jobs/get"
)

var backupTypes = []string{"full", "incremental", "differential", "manual"}

func NewRunJobCmd(svc api.Service) *cobra.Command {
	var backupType, notes string
	var databases []string
	var wait bool
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a backup now",
		Long:    "Submit a backup job right away. With --wait the command follows the job until it finishes.",
		Example: "warden jobs run --database orders --database users --type full --wait",
		Run: func(cmd *cobra.Command, args []string) {
			if len(databases) == 0 {
				cmdutil.PrintE("Please specify at least one --database")
				return
			}
			if backupType == "" {
				p := promptui.Select{Label: "Backup type", Items: backupTypes}
				_, result, err := p.Run()
				if err != nil {
					cmdutil.PrintE(err.Error())
					return
				}
				backupType = result
			}

			params := api.RunJobParams{
				BackupType:      backupType,
				Databases:       databases,
				Notes:           notes,
				TriggeredBy:     "manual",
				TriggeredByUser: currentUser(),
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			job, err := svc.RunJob(ctx, params)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.PrintS(fmt.Sprintf("job %d submitted (%s)", job.ID, job.JobUUID))
			if !wait {
				return
			}

			if err := follow(cmd.Context(), svc, job); err != nil {
				cmdutil.PrintE(err.Error())
			}
		},
	}
	cmd.Flags().StringArrayVarP(&databases, "database", "d", []string{}, "database to back up, repeatable")
	cmd.Flags().StringVarP(&backupType, "type", "t", "", "backup type: full, incremental, differential or manual")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "free text stored with the job")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until the job finishes")
	return cmd
}

func follow(ctx context.Context, svc api.Service, job api.Job) error {
	events, err := svc.WatchJob(ctx, job)
	if err != nil {
		return err
	}

	cmdutil.StartLoading(fmt.Sprintf("job %s...", job.Status))
	for ev := range events {
		cmdutil.StopLoading()
		if ev.Data != nil {
			job = *ev.Data
		}
		cmdutil.StartLoading(fmt.Sprintf("%s...", ev.Message))
	}
	cmdutil.StopLoading()

	if !job.IsTerminal() {
		if job, err = svc.GetJob(ctx, job.JobUUID.String()); err != nil {
			return err
		}
	}
	cmdutil.Print("")
	cmdutil.Print(get.Render(job))
	return nil
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "warden-cli"
	}
	return u.Username
}
