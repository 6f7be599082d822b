package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/markdown"
)

var storyboardCmd = &cobra.Command{
	Use:   "storyboard",
	Short: "Generate a storyboard across all reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(true)
		if err != nil {
			return err
		}
		defer s.Close()
		s.printNotifications(os.Stderr)

		if n := len(s.app.Reports().LoadAll(ctx)); n > 0 {
			fmt.Fprintf(os.Stderr, "Generating storyboard from %d report(s)...\n", n)
		}
		sb, err := s.app.GenerateStoryboard(ctx)
		if err != nil {
			return err
		}
		printStoryboard(os.Stdout, sb, s.app.StoryboardActors())
		return nil
	},
}

var narrativeCmd = &cobra.Command{
	Use:   "narrative <report-id>",
	Short: "Generate the narrative of one report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(false)
		if err != nil {
			return err
		}
		defer s.Close()
		s.printNotifications(os.Stderr)

		text, err := s.app.GenerateNarrative(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(markdown.PlainText(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storyboardCmd, narrativeCmd)
}

func printStoryboard(w io.Writer, sb *api.Storyboard, actors []api.Actor) {
	if sb.Title != "" {
		fmt.Fprintf(w, "%s\n\n", sb.Title)
	}
	for _, sec := range []struct{ name, body string }{
		{"Narrative", sb.Narrative},
		{"Introspection", sb.Introspection},
		{"Retrospection", sb.Retrospection},
	} {
		if sec.body == "" {
			continue
		}
		fmt.Fprintf(w, "## %s\n\n%s\n\n", sec.name, markdown.PlainText(sec.body))
	}
	for _, c := range sb.Charts {
		fmt.Fprintf(w, "Chart: %s (%s, %d points)\n", c.Title, c.Type, len(c.Data))
	}
	if len(actors) > 0 {
		fmt.Fprintln(w, "\n## Key Actors")
		for _, a := range actors {
			fmt.Fprintf(w, "  - %s: %s\n", a.Name, a.Description)
		}
	}
}
