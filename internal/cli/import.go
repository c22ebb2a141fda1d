package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
	"github.com/deweiiss/sportMe-sub000/internal/fitimport"
)

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.fit>...",
		Short: "Import FIT activity files as recorded sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			athlete, err := resolveAthlete(cmd)
			if err != nil {
				return err
			}

			sessions := make([]domain.RecordedSession, 0, len(args))
			for _, path := range args {
				session, err := readFIT(path)
				if err != nil {
					return err
				}
				session.AthleteID = athlete
				sessions = append(sessions, session)
			}

			s, err := a.openStore(cmd)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer s.Close()

			if err := s.AddSessions(cmd.Context(), sessions...); err != nil {
				return fmt.Errorf("store sessions: %w", err)
			}
			for _, session := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s  %-8s %s  %.2f km  %d min\n",
					session.ID, session.Kind, session.Date().Format(time.DateOnly),
					session.DistanceMeters/1000, session.MovingTimeSec/60)
			}
			return nil
		},
	}
}

// readFIT decodes one file. The session id derives from the start time so
// re-importing a file replaces the stored copy.
func readFIT(path string) (domain.RecordedSession, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RecordedSession{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	session, err := fitimport.Decode(f)
	if err != nil {
		return domain.RecordedSession{}, fmt.Errorf("%s: %w", path, err)
	}
	session.ID = fmt.Sprintf("fit-%d", session.Start.Unix())
	session.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return session, nil
}
