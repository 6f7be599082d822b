package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/store"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [reports|actors|activity]",
	Short: "List reports, key actors or local activity",
	Long: `List reports, key actors and the local activity log in a simple text format.
This command works in any terminal environment and provides an alternative
to the TUI when terminal capabilities are limited.

Examples:
  # List all reports on the backend
  insights-console list reports

  # Show the key actors and which cache tier answered
  insights-console list actors

  # Show the last 10 local actions
  insights-console list activity --limit 10`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var (
	listType string
	limit    int
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listType, "type", "reports", "What to list: reports, actors, activity")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of activity entries to show")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	targetType := strings.ToLower(listType)
	if len(args) > 0 {
		targetType = strings.ToLower(args[0])
	}

	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()
	s.printNotifications(os.Stderr)

	switch targetType {
	case "reports":
		printReports(os.Stdout, s.app.Reports().LoadAll(ctx))
		return nil
	case "actors":
		s.app.Reports().LoadAll(ctx)
		actors, src := s.app.KeyActors(ctx)
		printActors(os.Stdout, actors, string(src))
		return nil
	case "activity":
		return listActivity(ctx, os.Stdout, s.state, limit)
	default:
		return fmt.Errorf("unknown list type: %s (use 'reports', 'actors' or 'activity')", targetType)
	}
}

func printReports(w io.Writer, reports []api.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No reports found.")
		return
	}
	fmt.Fprintf(w, "Found %d reports:\n\n", len(reports))
	for i, r := range reports {
		fmt.Fprintf(w, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(w, "   ID: %s\n", r.ID)
		if r.CreatedAt != "" {
			fmt.Fprintf(w, "   Created: %s\n", r.CreatedAt)
		}
		fmt.Fprintf(w, "   Findings: %d  Charts: %d\n", len(r.KeyFindings), len(r.Charts))
		if r.Summary != "" {
			fmt.Fprintf(w, "   Summary: %s\n", r.Summary)
		}
		fmt.Fprintln(w)
	}
}

func printActors(w io.Writer, actors []api.Actor, source string) {
	fmt.Fprintf(w, "Key actors (%s):\n\n", source)
	for i, a := range actors {
		icon := a.Icon
		if icon == "" {
			icon = "-"
		}
		fmt.Fprintf(w, "%d. %s %s\n", i+1, icon, a.Name)
		if a.Description != "" {
			fmt.Fprintf(w, "   %s\n", a.Description)
		}
		if len(a.Reports) > 0 {
			fmt.Fprintf(w, "   Reports: %s\n", strings.Join(a.Reports, ", "))
		}
	}
}

func listActivity(ctx context.Context, w io.Writer, st *store.Store, limit int) error {
	entries, err := st.ListActivity(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list activity: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No activity recorded.")
		return nil
	}
	for _, a := range entries {
		line := fmt.Sprintf("%s  %-18s", a.CreatedAt.Format(time.DateTime), a.Action)
		if a.ReportID != "" {
			line += " report=" + a.ReportID
		}
		keys := make([]string, 0, len(a.Details))
		for k := range a.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, a.Details[k])
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
