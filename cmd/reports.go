package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/reports"
	"github.com/Ashfaaq98/insights-console/internal/upload"
)

var assumeYes bool

var showCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Print one report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(false)
		if err != nil {
			return err
		}
		defer s.Close()
		s.printNotifications(os.Stderr)

		s.app.Reports().LoadAll(cmd.Context())
		r, err := s.app.Reports().Lookup(args[0])
		if err != nil {
			return err
		}
		printReport(os.Stdout, r)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>...",
	Short: "Upload PDF reports",
	Long: `Upload one or more PDF files. Files that are not PDFs are skipped with a
notice; per-file server errors are printed next to the reports that were
created.

Examples:
  insights-console upload q1.pdf q2.pdf
  insights-console upload ./inbox/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <report-id>",
	Short: "Delete a report after confirmation",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(showCmd, uploadCmd, deleteCmd)

	deleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Automatically confirm the deletion")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()
	s.printNotifications(os.Stderr)

	files := upload.InspectAll(args)
	for _, f := range files {
		if f.Accepted() {
			fmt.Printf("+ %s (%s)\n", f.Name, upload.FormatFileSize(f.Size))
		}
	}
	if s.app.Uploads().Pick(files) == 0 {
		return upload.ErrNothingToSubmit
	}

	res, err := s.app.SubmitUpload(ctx)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	for _, r := range res.Created {
		fmt.Printf("Created %s  %s\n", r.ID, r.Title)
	}
	for _, e := range s.app.UploadErrors() {
		fmt.Printf("Error   %s\n", e.Raw)
	}
	if len(res.Created) == 0 {
		return errors.New("no reports were created")
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.Close()
	s.printNotifications(os.Stderr)

	s.app.Reports().LoadAll(ctx)
	var confirmer reports.Confirmer = promptConfirmer(os.Stdin, os.Stdout)
	if assumeYes {
		confirmer = reports.ConfirmFunc(func(context.Context, string) bool { return true })
	}

	outcome, err := s.app.DeleteReport(ctx, args[0], confirmer)
	switch {
	case err != nil:
		return err
	case outcome == reports.DeleteDeclined:
		fmt.Println("Delete cancelled.")
	}
	return nil
}

// promptConfirmer asks a y/N question on out and reads the answer from in.
func promptConfirmer(in io.Reader, out io.Writer) reports.Confirmer {
	reader := bufio.NewReader(in)
	return reports.ConfirmFunc(func(ctx context.Context, message string) bool {
		fmt.Fprintf(out, "%s (y/N): ", message)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
}

func printReport(w io.Writer, r api.Report) {
	fmt.Fprintf(w, "%s\n%s\n\n", r.Title, strings.Repeat("=", len([]rune(r.Title))))
	if r.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", r.Summary)
	}
	if len(r.KeyFindings) > 0 {
		fmt.Fprintln(w, "Key findings:")
		for _, f := range r.KeyFindings {
			fmt.Fprintf(w, "  - %s\n", f)
		}
		fmt.Fprintln(w)
	}
	for _, c := range r.Charts {
		fmt.Fprintf(w, "Chart: %s (%s, %d points)\n", c.Title, c.Type, len(c.Data))
	}
	if len(r.Actors) > 0 {
		fmt.Fprintln(w, "\nActors:")
		for _, a := range r.Actors {
			fmt.Fprintf(w, "  - %s: %s\n", a.Name, a.Description)
		}
	}
}
