package create

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"time"
	"warden/client/internal/api"
	"warden/client/internal/cmdutil"
)

var backupTypes = []string{"full", "incremental", "differential", "manual"}

func NewCreateScheduleCmd(svc api.Service) *cobra.Command {
	params := api.CreateScheduleParams{}
	var paused bool
	mValidator := validator.New()
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a backup schedule",
		Long:    "Create a cron driven backup schedule. Missing values are asked for interactively.",
		Example: `warden schedules create --name nightly --cron "0 2 * * *" --type full --database orders --retention 7`,
		Run: func(cmd *cobra.Command, args []string) {
			var err error
			if params.Name == "" {
				p := promptui.Prompt{Label: "Schedule name", Validate: required("please enter a valid name")}
				if params.Name, err = p.Run(); err != nil {
					cmdutil.PrintE(err.Error())
					return
				}
			}
			if params.CronExpression == "" {
				p := promptui.Prompt{Label: "Cron expression (minute hour day month weekday)", Validate: required("please enter a cron expression")}
				if params.CronExpression, err = p.Run(); err != nil {
					cmdutil.PrintE(err.Error())
					return
				}
			}
			if params.BackupType == "" {
				p := promptui.Select{Label: "Backup type", Items: backupTypes}
				if _, params.BackupType, err = p.Run(); err != nil {
					cmdutil.PrintE(err.Error())
					return
				}
			}
			if paused {
				active := false
				params.IsActive = &active
			}

			if err := runValidator(mValidator, params); err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading(fmt.Sprintf("creating schedule: %s...", params.Name))
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			schedule, err := svc.CreateSchedule(ctx, params)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.PrintS(fmt.Sprintf("schedule %d created, next run %s", schedule.ID, cmdutil.Time(schedule.NextRun)))
		},
	}
	cmd.Flags().StringVarP(&params.Name, "name", "n", "", "schedule name")
	cmd.Flags().StringVarP(&params.CronExpression, "cron", "c", "", "five field cron expression")
	cmd.Flags().StringVarP(&params.BackupType, "type", "t", "", "backup type: full, incremental, differential or manual")
	cmd.Flags().StringArrayVarP(&params.Databases, "database", "d", []string{}, "database to back up, repeatable")
	cmd.Flags().IntVarP(&params.RetentionDays, "retention", "r", 0, "days to keep artifacts, 0 keeps them forever")
	cmd.Flags().BoolVar(&paused, "paused", false, "create the schedule inactive")
	return cmd
}

func runValidator(v *validator.Validate, param api.CreateScheduleParams) error {
	err := v.Struct(param)
	if err != nil {
		var validationError validator.ValidationErrors
		if errors.As(err, &validationError) {
			for _, nextErr := range validationError {
				return fmt.Errorf("invalid value provided for: %s", nextErr.Field())
			}
		}
		return err
	}
	return nil
}

func required(message string) promptui.ValidateFunc {
	return func(s string) error {
		if len(s) <= 0 {
			return errors.New(message)
		}
		return nil
	}
}
