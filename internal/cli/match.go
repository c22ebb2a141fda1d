package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deweiiss/sportMe-sub000/internal/service"
)

func (a *app) matchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run a matching pass against the active plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts service.MatchOptions
			if raw, _ := cmd.Flags().GetString("since"); raw != "" {
				since, err := time.Parse(time.DateOnly, raw)
				if err != nil {
					return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
				}
				opts.Since = &since
			}

			return a.withService(cmd, func(ctx context.Context, athlete string, svc *service.Service) error {
				result, err := svc.RunMatchPass(ctx, athlete, opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !result.Success {
					return fmt.Errorf("%s: %s", result.Message, result.Error)
				}
				fmt.Fprintln(out, result.Message)
				for _, m := range result.AutoMatches {
					fmt.Fprintf(out, "  matched  W%d D%d  %s  %-9s %.3f  %s\n",
						m.WeekIndex, m.DayIndex, m.SlotDate.Format(time.DateOnly), m.WorkoutType, m.Score, m.SessionID)
				}
				for _, s := range result.Suggestions {
					fmt.Fprintf(out, "  suggest  W%d D%d  %s  %-9s %.3f  %s\n",
						s.WeekIndex, s.DayIndex, s.SlotDate.Format(time.DateOnly), s.WorkoutType, s.Score, s.SessionID)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("since", "", "Only consider sessions on or after this date (YYYY-MM-DD)")
	return cmd
}

func (a *app) missedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missed",
		Short: "List overdue slots of the active plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grace, _ := cmd.Flags().GetInt("grace")
			mark, _ := cmd.Flags().GetBool("mark")
			reason, _ := cmd.Flags().GetString("reason")

			return a.withService(cmd, func(ctx context.Context, athlete string, svc *service.Service) error {
				var (
					result service.MissedResult
					err    error
				)
				if mark {
					result, err = svc.MarkOverdueMissed(ctx, athlete, grace, reason)
				} else {
					result, err = svc.MissedWorkouts(ctx, athlete, grace)
				}
				if err != nil {
					return err
				}
				if !result.Success {
					return fmt.Errorf("%s: %s", result.Message, result.Error)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, result.Message)
				for _, m := range result.Missed {
					flag := ""
					if m.Marked {
						flag = "  [marked]"
					}
					fmt.Fprintf(out, "  W%d D%d  %s  %2d days overdue  %s%s\n",
						m.WeekIndex, m.DayIndex, m.Date.Format(time.DateOnly), m.DaysPastDue, m.Title, flag)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("grace", -1, "Grace period in days (default 3)")
	cmd.Flags().Bool("mark", false, "Mark every listed slot as missed")
	cmd.Flags().String("reason", "", "Missed reason stored with --mark")
	return cmd
}
