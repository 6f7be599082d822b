package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ashfaaq98/insights-console/internal/ui"
	"github.com/Ashfaaq98/insights-console/internal/upload"
)

var (
	noTUI    bool
	forceTUI bool
	noDrop   bool
	dropDir  string
)

// dashboardCmd represents the dashboard command
var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Start the dashboard TUI",
	Long: `Start the insights dashboard which includes:

1. Terminal User Interface with storyboard, key actors, timeline and report views
2. Per-report chat with quick prompts and read-aloud
3. A drop folder: PDFs copied into it join the upload selection
4. Redis Streams invalidation listener when --redis is set

In headless mode (--no-tui) files landing in the drop folder are uploaded
immediately and notifications are printed to stderr.

Examples:
  # Start with TUI (default)
  insights-console dashboard

  # Start headless as a drop-folder uploader
  insights-console dashboard --no-tui --drop-dir ./inbox

  # Keep several consoles in sync
  insights-console dashboard --redis redis://localhost:6379`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Run in headless mode without TUI")
	dashboardCmd.Flags().BoolVar(&forceTUI, "force-tui", false, "Force TUI mode even in unsupported terminals")
	dashboardCmd.Flags().BoolVar(&noDrop, "no-drop", false, "Disable the drop folder")
	dashboardCmd.Flags().StringVar(&dropDir, "drop-dir", "", "Drop folder (default from upload.drop_dir)")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	if dropDir != "" {
		cfg.Upload.DropDir = dropDir
	}

	useTUI := !noTUI
	if useTUI && !forceTUI && !canInitializeTUI() {
		if needsPseudoTTY() {
			fmt.Fprintln(os.Stderr, "No TTY available, using script command for pseudo-TTY...")
			return runWithPseudoTTY(args)
		}
		fmt.Fprintln(os.Stderr, "TUI cannot be initialized in this terminal environment; switching to headless mode.")
		fmt.Fprintln(os.Stderr, "CLI alternatives: insights-console list reports, insights-console chat <id>")
		useTUI = false
	}

	// TUI mode logs to a file so the screen stays clean; errors still reach stderr.
	var logger *logrus.Logger
	if useTUI {
		if logFile := setupFileLogger("insights-console-ui.log"); logFile != nil {
			defer logFile.Close()
			logger = newLogger(cfg.Log.Level, io.MultiWriter(logFile, &errorFilterWriter{os.Stderr}))
		} else {
			logger = newLogger(cfg.Log.Level, io.Discard)
		}
	} else {
		logger = newLogger(cfg.Log.Level, os.Stderr)
	}
	logger.WithField("terminal", getTerminalInfo()).Info("Starting insights console")

	s, err := buildSession(cfg, logger, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if useTUI {
		return runTUI(ctx, s)
	}
	return runHeadless(ctx, s)
}

func newDropFolder(s *session, sink func([]upload.File)) (*upload.DropFolder, error) {
	if noDrop || s.cfg.Upload.DropDir == "" {
		return nil, nil
	}
	dir := resolvePathRelativeToBase(getWorkingDir(), s.cfg.Upload.DropDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create drop folder: %w", err)
	}
	s.logger.WithField("dir", dir).Info("Watching drop folder")
	return upload.NewDropFolder(upload.DropFolderOptions{Dir: dir, Logger: s.logger}, sink), nil
}

func runTUI(ctx context.Context, s *session) error {
	console := ui.NewUI(ctx, s.app, s.emitter, s.logger)

	drop, err := newDropFolder(s, func(files []upload.File) {
		if n := s.app.Uploads().Drop(files); n > 0 {
			s.emitter.Infof("%d file(s) added from the drop folder", n)
		}
	})
	if err != nil {
		return err
	}

	svcCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(svcCtx)
	g.Go(func() error {
		return s.app.Run(gctx, drop)
	})

	uiErr := console.Start(ctx)
	cancel()
	if err := g.Wait(); err != nil {
		s.logger.WithError(err).Warn("Background services stopped with error")
	}
	return uiErr
}

func runHeadless(ctx context.Context, s *session) error {
	s.printNotifications(os.Stderr)
	if err := s.app.Init(ctx); err != nil {
		return err
	}
	if h := s.app.Health(); h != nil {
		s.logger.WithField("status", h.Status).Info("Backend reachable")
	} else {
		s.logger.Warn("Backend health check failed")
	}

	drop, err := newDropFolder(s, func(files []upload.File) {
		if s.app.Uploads().Drop(files) == 0 {
			return
		}
		res, err := s.app.SubmitUpload(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Drop folder upload failed")
			return
		}
		for _, r := range res.Created {
			s.logger.WithField("report_id", r.ID).WithField("title", r.Title).Info("Report created")
		}
	})
	if err != nil {
		return err
	}
	s.logger.WithField("reports", len(s.app.Reports().All())).Info("Headless mode running; press Ctrl+C to stop")
	return s.app.Run(ctx, drop)
}
