package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/persistence"
	"github.com/deweiiss/sportMe-sub000/internal/planning"
)

func (a *app) planCommand() *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage training plans",
	}

	loadCmd := &cobra.Command{
		Use:   "load <file.json>",
		Short: "Load a training plan document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			athlete, err := resolveAthlete(cmd)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read plan: %w", err)
			}
			plan, err := persistence.ParsePlan(raw)
			if err != nil {
				return fmt.Errorf("parse plan: %w", err)
			}
			switch plan.AthleteID {
			case "":
				plan.AthleteID = athlete
			case athlete:
			default:
				return fmt.Errorf("%w: plan belongs to athlete %s", domain.ErrInvalidInput, plan.AthleteID)
			}
			if len(plan.Weeks) == 0 {
				return fmt.Errorf("plan: %w", domain.ErrMalformedPlan)
			}

			s, err := a.openStore(cmd)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer s.Close()

			saved, err := s.SavePlan(cmd.Context(), plan)
			if err != nil {
				return fmt.Errorf("save plan: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded plan %s (%q, %d weeks, starts %s)\n",
				saved.ID, saved.Title, len(saved.Weeks), saved.StartDate.Format(time.DateOnly))
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the active plan with slot dates and states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			athlete, err := resolveAthlete(cmd)
			if err != nil {
				return err
			}
			s, err := a.openStore(cmd)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer s.Close()

			plan, err := s.ActivePlan(cmd.Context(), athlete, a.now())
			if err != nil {
				return fmt.Errorf("load plan: %w", err)
			}
			if plan == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No active training plan.")
				return nil
			}
			printPlan(cmd, *plan)
			return nil
		},
	}

	planCmd.AddCommand(loadCmd, showCmd)
	return planCmd
}

func printPlan(cmd *cobra.Command, plan domain.TrainingPlan) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s  (v%d)\n", plan.ID, plan.Title, plan.Version)
	for _, ref := range planning.Slots(plan) {
		title := ref.Slot.Title
		if ref.Slot.IsRestDay {
			title = "rest"
		}
		fmt.Fprintf(out, "  W%d D%d  %s  %-10s  %s\n",
			ref.WeekIndex, ref.DayIndex, ref.Date.Format(time.DateOnly), ref.Slot.State(), title)
	}
}
