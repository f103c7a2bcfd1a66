package initcmd

import (
	"fmt"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"net/url"
	"os"
	"strings"
	"warden/client/internal/api"
	"warden/client/internal/auth"
	"warden/client/internal/cmdutil"
	"warden/client/internal/config"
)

func NewConfigInitCmd() *cobra.Command {
	var host, accessKey string
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Set warden configuration",
		Long:    "Point the client at a warden server. The access key goes to the system keyring when one is available.",
		Example: "warden config init --host <https://backups.internal:3646> --access-key <key>",
		Run: func(cmd *cobra.Command, args []string) {
			uri, err := url.Parse(host)
			if err != nil || uri.Host == "" {
				cmdutil.PrintE(fmt.Sprintf("Invalid host: %q", host))
				return
			}

			cmdutil.StartLoading("Running test...")
			serverUrl := toURL(uri)
			svc := api.NewService(api.NewClient(api.Config{Host: serverUrl, AccessKey: accessKey}))
			err = svc.Ping(cmd.Context())
			cmdutil.StopLoading()
			if err != nil {
				color.Cyan(err.Error())
				return
			}

			cfg := config.Config{Host: serverUrl}
			if err := auth.Save(accessKey); err != nil {
				cmdutil.Print(fmt.Sprintf("Keyring unavailable (%s), storing the access key in the config file", color.YellowString(err.Error())))
				cfg.AccessKey = accessKey
			}

			if err := config.SaveConfig(cfg); err != nil {
				cmdutil.Print(fmt.Sprintf("Failed to save config: %s", color.RedString(err.Error())))
				return
			}

			_, _ = fmt.Fprintln(os.Stdout, fmt.Sprintf("\n%s: Configuration set successfully", color.GreenString("Test passed")))
		},
	}
	cmd.Flags().StringVarP(&host, "host", "i", "", "warden server host url")
	cmd.Flags().StringVarP(&accessKey, "access-key", "a", "", "warden server access key")
	return cmd
}

func toURL(u *url.URL) string {
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}
