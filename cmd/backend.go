package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ashfaaq98/insights-console/internal/api"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print the highlights timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(false)
		if err != nil {
			return err
		}
		defer s.Close()
		s.printNotifications(os.Stderr)

		items, err := s.app.LoadTimeline(cmd.Context())
		if err != nil {
			return err
		}
		printTimeline(os.Stdout, items)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show backend health and database statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(false)
		if err != nil {
			return err
		}
		defer s.Close()
		s.printNotifications(os.Stderr)

		var (
			stats  *api.Stats
			health *api.Health
		)
		g, gctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			st, err := s.app.Stats(gctx)
			stats = st
			return err
		})
		g.Go(func() error {
			h, err := s.client.Health(gctx)
			if err != nil {
				s.logger.WithError(err).Warn("Health check failed")
				return nil
			}
			health = h
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}
		printStats(os.Stdout, stats, health)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Ask the backend to back up its database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(false)
		if err != nil {
			return err
		}
		defer s.Close()

		msg, err := s.app.Backup(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd, statsCmd, backupCmd)
}

func printTimeline(w io.Writer, items []api.TimelineItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No highlights yet.")
		return
	}
	for i, it := range items {
		fmt.Fprintf(w, "%d. %s\n", i+1, it.Title)
		if it.Summary != "" {
			fmt.Fprintf(w, "   %s\n", it.Summary)
		}
	}
}

func printStats(w io.Writer, st *api.Stats, h *api.Health) {
	if h != nil {
		fmt.Fprintf(w, "Backend: %s", h.Status)
		if h.AIService != "" {
			fmt.Fprintf(w, " (AI service: %s)", h.AIService)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Backend: unreachable")
	}
	fmt.Fprintf(w, "Total reports: %d\n", st.TotalReports)
	fmt.Fprintf(w, "Database size: %.2f MB\n", st.DatabaseSizeMB)
	fmt.Fprintf(w, "Database path: %s\n", st.DatabasePath)
}
