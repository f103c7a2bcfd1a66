package cancel

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

func NewCancelJobCmd(svc api.Service) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "cancel <id|uuid>",
		Short:   "Cancel a pending or running job",
		Args:    cobra.ExactArgs(1),
		Example: "warden jobs cancel 42",
		Run: func(cmd *cobra.Command, args []string) {
			if !yes && !cmdutil.Confirm(fmt.Sprintf("Cancel job %s", args[0])) {
				return
			}

			cmdutil.StartLoading("cancelling...")
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			job, err := svc.CancelJob(ctx, args[0])
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.PrintS(fmt.Sprintf("job %d is %s", job.ID, job.Status))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
