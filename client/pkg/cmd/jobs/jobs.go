package jobs

import (
	"github.com/spf13/cobra"
	"warden/client/internal/api"
	"warden/client/pkg/cmd/jobs/cancel"
	"warden/client/pkg/cmd/jobs/get"
	"warden/client/pkg/cmd/jobs/list"
	"warden/client/pkg/cmd/jobs/run"
)

func NewJobsCmd(svc api.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs <command>",
		Aliases: []string{"j"},
		Short:   "Run and inspect backup jobs",
	}

	cmd.AddCommand(list.NewListJobsCmd(svc))
	cmd.AddCommand(get.NewGetJobCmd(svc))
	cmd.AddCommand(run.NewRunJobCmd(svc))
	cmd.AddCommand(cancel.NewCancelJobCmd(svc))
	return cmd
}
