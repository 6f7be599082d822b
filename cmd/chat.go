package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/insights-console/internal/chat"
	"github.com/Ashfaaq98/insights-console/internal/dashboard"
	"github.com/Ashfaaq98/insights-console/internal/markdown"
)

var (
	quickPrompt int
	speakReply  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <report-id> [message...]",
	Short: "Ask questions about a report",
	Long: `Chat with a single report. With a message the answer is printed and the
command exits; without one an interactive prompt is started (type /quit to
leave, /1 /2 /3 for the quick prompts).

Examples:
  insights-console chat r-42 "Which sectors are most exposed?"
  insights-console chat r-42 --quick 3
  insights-console chat r-42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().IntVar(&quickPrompt, "quick", 0, "Send quick prompt 1-3 instead of a message")
	chatCmd.Flags().BoolVar(&speakReply, "speak", false, "Read the answer aloud")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()
	s.printNotifications(os.Stderr)

	s.app.Reports().LoadAll(ctx)
	if err := s.app.ShowReport(args[0]); err != nil {
		return err
	}

	message := strings.Join(args[1:], " ")
	if quickPrompt != 0 {
		preset, err := quickPromptText(quickPrompt)
		if err != nil {
			return err
		}
		return askOnce(ctx, s.app, os.Stdout, args[0], preset, true)
	}
	if message != "" {
		return askOnce(ctx, s.app, os.Stdout, args[0], message, false)
	}
	if !isInteractive() {
		return errors.New("no message given and stdin is not a terminal")
	}
	return chatLoop(ctx, s.app, args[0], os.Stdin, os.Stdout)
}

func quickPromptText(n int) (string, error) {
	if n < 1 || n > len(chat.QuickPrompts) {
		return "", fmt.Errorf("quick prompt must be between 1 and %d", len(chat.QuickPrompts))
	}
	return chat.QuickPrompts[n-1].Text, nil
}

func askOnce(ctx context.Context, app *dashboard.App, w io.Writer, reportID, text string, quick bool) error {
	var (
		reply chat.Message
		err   error
	)
	if quick {
		fmt.Fprintf(w, "> %s\n", text)
		reply, err = app.QuickSend(ctx, reportID, text)
	} else {
		reply, err = app.SendChat(ctx, reportID, text)
	}
	if err != nil {
		return err
	}
	printReply(w, reply)
	if speakReply {
		speakAndWait(ctx, app, reply)
	}
	if reply.Failed {
		return errors.New("chat request failed")
	}
	return nil
}

func chatLoop(ctx context.Context, app *dashboard.App, reportID string, in io.Reader, w io.Writer) error {
	fmt.Fprintln(w, chat.Greeting)
	for i, q := range chat.QuickPrompts {
		fmt.Fprintf(w, "  /%d %s\n", i+1, q.Label)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case len(line) == 2 && line[0] == '/' && line[1] >= '1' && line[1] <= '9':
			preset, err := quickPromptText(int(line[1] - '0'))
			if err != nil {
				fmt.Fprintln(w, err)
				continue
			}
			fmt.Fprintf(w, "> %s\n", preset)
			reply, err := app.QuickSend(ctx, reportID, preset)
			if err != nil {
				return err
			}
			printReply(w, reply)
		default:
			reply, err := app.SendChat(ctx, reportID, line)
			if err != nil {
				return err
			}
			printReply(w, reply)
			if speakReply {
				if err := app.ReadAloud(reply); err != nil {
					fmt.Fprintln(w, err)
				}
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printReply(w io.Writer, m chat.Message) {
	if m.Verbatim {
		fmt.Fprintln(w, m.Content)
		return
	}
	fmt.Fprintln(w, markdown.PlainText(m.Content))
}

// speakAndWait keeps the process alive until the utterance finishes.
func speakAndWait(ctx context.Context, app *dashboard.App, m chat.Message) {
	if err := app.ReadAloud(m); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for app.Speaker().Speaking() {
		select {
		case <-ctx.Done():
			app.StopReading()
			return
		case <-ticker.C:
		}
	}
}
