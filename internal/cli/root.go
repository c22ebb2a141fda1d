// Package cli implements matchctl, the operator CLI over a local bbolt file.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deweiiss/sportMe-sub000/internal/logging"
	"github.com/deweiiss/sportMe-sub000/internal/persistence/bolt"
	"github.com/deweiiss/sportMe-sub000/internal/service"
)

const defaultDBPath = "./matchctl.db"

// Option customises the command tree.
type Option func(*app)

// WithClock fixes "today" for the stores and the service.
func WithClock(now func() time.Time) Option {
	return func(a *app) {
		if now != nil {
			a.now = now
		}
	}
}

type app struct {
	now func() time.Time
}

// NewRootCommand builds the matchctl command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Match recorded sessions against training plans",
		Long:          "matchctl loads plans and FIT activities into a local database and runs matching passes against them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("db", "", "Path to the database file (overrides MATCHCTL_DB env var)")
	root.PersistentFlags().String("athlete", "", "Athlete id (overrides MATCHCTL_ATHLETE env var)")

	root.AddCommand(
		a.planCommand(),
		a.importCommand(),
		a.matchCommand(),
		a.missedCommand(),
		a.suggestionsCommand(),
	)
	return root
}

// Execute runs matchctl with the process arguments.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then MATCHCTL_DB env var, then ./matchctl.db.
func resolveDBPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p
	}
	if p := os.Getenv("MATCHCTL_DB"); p != "" {
		return p
	}
	return defaultDBPath
}

func resolveAthlete(cmd *cobra.Command) (string, error) {
	athlete, _ := cmd.Flags().GetString("athlete")
	if athlete == "" {
		athlete = os.Getenv("MATCHCTL_ATHLETE")
	}
	athlete = strings.TrimSpace(athlete)
	if athlete == "" {
		return "", errors.New("--athlete is required")
	}
	return athlete, nil
}

func (a *app) openStore(cmd *cobra.Command) (*bolt.Store, error) {
	s, err := bolt.Open(resolveDBPath(cmd))
	if err != nil {
		return nil, err
	}
	s.SetClock(a.now)
	return s, nil
}

func (a *app) newService(cmd *cobra.Command, s *bolt.Store) *service.Service {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), "matchctl", level)
	return service.New(s, s, s, s, service.WithClock(a.now), service.WithLogger(logger))
}

// withService opens the store and builds a service for one command run.
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, athlete string, svc *service.Service) error) error {
	athlete, err := resolveAthlete(cmd)
	if err != nil {
		return err
	}
	s, err := a.openStore(cmd)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()
	return fn(cmd.Context(), athlete, a.newService(cmd, s))
}
