package resolve

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"strconv"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

func NewResolveAlertCmd(svc api.Service) *cobra.Command {
	return &cobra.Command{
		Use:     "resolve <id>...",
		Short:   "Mark alerts as resolved",
		Args:    cobra.MinimumNArgs(1),
		Example: "warden alerts resolve 12 13",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			for _, arg := range args {
				id, err := strconv.ParseUint(arg, 10, 64)
				if err != nil {
					cmdutil.PrintE(fmt.Sprintf("invalid alert id: %s", arg))
					continue
				}
				alert, err := svc.ResolveAlert(ctx, uint(id))
				if err != nil {
					cmdutil.PrintE(err.Error())
					continue
				}
				cmdutil.PrintS(fmt.Sprintf("alert %d resolved: %s", alert.ID, alert.Title))
			}
		},
	}
}
