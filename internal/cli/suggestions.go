package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/service"
)

func (a *app) suggestionsCommand() *cobra.Command {
	suggestionsCmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Review medium-confidence matches",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List queued suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, athlete string, svc *service.Service) error {
				items, err := svc.Suggestions(ctx, athlete)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No suggestions queued.")
					return nil
				}
				fmt.Fprintf(out, "%-36s  %-4s %-4s %-10s  %-9s %-6s  %s\n", "Plan", "Week", "Day", "Date", "Type", "Score", "Session")
				for _, s := range items {
					fmt.Fprintf(out, "%-36s  %-4d %-4d %-10s  %-9s %.3f  %s\n",
						s.PlanID, s.WeekIndex, s.DayIndex, s.SlotDate.Format(time.DateOnly), s.WorkoutType, s.Score, s.SessionID)
				}
				return nil
			})
		},
	}

	acceptCmd := &cobra.Command{
		Use:   "accept <plan> <week> <day> <session>",
		Short: "Confirm a suggested match",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			week, day, err := slotArgs(args[1], args[2])
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, athlete string, svc *service.Service) error {
				result, err := svc.AcceptSuggestion(ctx, athlete, args[0], week, day, args[3])
				return reportSlot(cmd, result, err)
			})
		},
	}

	rejectCmd := &cobra.Command{
		Use:   "reject <plan> <week> <day>",
		Short: "Discard a suggested match",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			week, day, err := slotArgs(args[1], args[2])
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, athlete string, svc *service.Service) error {
				result, err := svc.RejectSuggestion(ctx, athlete, args[0], week, day)
				return reportSlot(cmd, result, err)
			})
		},
	}

	suggestionsCmd.AddCommand(listCmd, acceptCmd, rejectCmd)
	return suggestionsCmd
}

func slotArgs(week, day string) (int, int, error) {
	w, err := strconv.Atoi(week)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: week %q", domain.ErrInvalidInput, week)
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: day %q", domain.ErrInvalidInput, day)
	}
	return w, d, nil
}

func reportSlot(cmd *cobra.Command, result service.SlotResult, err error) error {
	if err != nil {
		return err
	}
	switch result.Outcome {
	case service.OutcomeApplied, service.OutcomeNoop:
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		return nil
	case service.OutcomeNotFound:
		return fmt.Errorf("not found: %s", result.Message)
	case service.OutcomeConflict:
		return fmt.Errorf("%w: %s", domain.ErrSlotConflict, result.Message)
	}
	return fmt.Errorf("%s: %s", result.Message, result.Error)
}
