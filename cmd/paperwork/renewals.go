package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-paperwork-must-flow/internal/cli"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

func renewalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "renewals",
		Aliases: []string{"renewal"},
		Short:   "Track record renewals and reminders",
	}
	cmd.AddCommand(renewalsUpcomingCmd())
	cmd.AddCommand(renewalsOverdueCmd())
	cmd.AddCommand(renewalsTimelineCmd())
	cmd.AddCommand(renewalsSnoozeCmd())
	cmd.AddCommand(renewalsRescheduleCmd())
	cmd.AddCommand(renewalsSweepCmd())
	return cmd
}

func renewalsUpcomingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List renewals ending soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			days, _ := cmd.Flags().GetInt("days")
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			reminders, err := a.renewals.Upcoming(cmd.Context(), principalFlag(cmd), days)
			if err != nil {
				return err
			}
			return cli.RenderReminders(cmd.OutOrStdout(), reminders)
		},
	}
	addOwnerFlags(cmd)
	cmd.Flags().Int("days", 30, "days ahead to look")
	return cmd
}

func renewalsOverdueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List renewals past their end date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			reminders, err := a.renewals.Overdue(cmd.Context(), principalFlag(cmd))
			if err != nil {
				return err
			}
			return cli.RenderReminders(cmd.OutOrStdout(), reminders)
		},
	}
	addOwnerFlags(cmd)
	return cmd
}

func renewalsTimelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show renewals grouped by month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			months, _ := cmd.Flags().GetInt("months")
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			buckets, err := a.renewals.Timeline(cmd.Context(), principalFlag(cmd), months)
			if err != nil {
				return err
			}
			return cli.RenderTimeline(cmd.OutOrStdout(), buckets)
		},
	}
	addOwnerFlags(cmd)
	cmd.Flags().Int("months", 12, "months to show")
	return cmd
}

func renewalsSnoozeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snooze <record-id>",
		Short: "Postpone the next reminder for a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.renewals.Snooze(cmd.Context(), principalFlag(cmd), args[0], days)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Snoozed %q until %s",
				rec.Title, rec.RenewalInfo.NextReminderDue.Format("02 Jan 2006"))))
			return nil
		},
	}
	addOwnerFlags(cmd)
	cmd.Flags().Int("days", 7, "days to snooze")
	return cmd
}

func renewalsRescheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reschedule <record-id>",
		Short: "Replace the reminder offsets of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetIntSlice("days")
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.renewals.Reschedule(cmd.Context(), principalFlag(cmd), args[0], days)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Reminders for %q: %v days before %s",
				rec.Title, rec.RenewalInfo.ReminderDays, rec.RenewalInfo.EndDate.Format("02 Jan 2006"))))
			return nil
		},
	}
	addOwnerFlags(cmd)
	cmd.Flags().IntSlice("days", model.DefaultReminderDays(), "days before the end date to remind on")
	return cmd
}

func renewalsSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Send every reminder that is due today",
		Long: `Scan all active renewals and send the reminders that are due. Running
the sweep again on the same day does not repeat reminders already sent by
this process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.renewals.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if err := cli.RenderSweep(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			return cli.RenderReminders(cmd.OutOrStdout(), result.Reminders)
		},
	}
}
