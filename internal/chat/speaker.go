package chat

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/insights-console/internal/markdown"
	"github.com/Ashfaaq98/insights-console/internal/notify"
)

// UnsupportedMessage is shown when no speech command is available.
const UnsupportedMessage = "Read-aloud is not supported on this system"

// candidates are tried in order when no command is configured.
var candidates = [][]string{
	{"espeak"},
	{"say"},
	{"spd-say", "--wait"},
}

// Speaker reads model replies aloud through an external TTS command. At most
// one utterance is active; starting another cancels it and waits for it to
// exit.
type Speaker struct {
	argv     []string
	notifier notify.Notifier
	logger   logrus.FieldLogger

	// speakMu serializes Speak from stop through start and guards last, the
	// most recently started utterance.
	speakMu sync.Mutex
	last    *utterance
	mu      sync.Mutex
	current *utterance

	// test hooks
	onStart func()
	onExit  func()
}

type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSpeaker resolves command ("" means auto-detect). A command that cannot
// be found leaves the speaker unavailable.
func NewSpeaker(command string, notifier notify.Notifier, logger logrus.FieldLogger) *Speaker {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	s := &Speaker{notifier: notifier, logger: logger.WithField("component", "speaker")}

	try := candidates
	if fields := strings.Fields(command); len(fields) > 0 {
		try = [][]string{fields}
	}
	for _, argv := range try {
		if path, err := exec.LookPath(argv[0]); err == nil {
			s.argv = append([]string{path}, argv[1:]...)
			break
		}
	}
	return s
}

// Available reports whether a TTS command was found.
func (s *Speaker) Available() bool { return len(s.argv) > 0 }

// Speak starts reading text, stopping any active utterance first. Markdown
// is stripped. Without a TTS command an info notification is emitted.
func (s *Speaker) Speak(text string) error {
	text = strings.TrimSpace(markdown.PlainText(text))
	if text == "" {
		return nil
	}
	if !s.Available() {
		if s.notifier != nil {
			s.notifier.Notify(notify.SeverityInfo, UnsupportedMessage)
		}
		return nil
	}

	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	s.Stop()
	if s.last != nil {
		<-s.last.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	args := append(append([]string{}, s.argv[1:]...), text)
	cmd := exec.CommandContext(ctx, s.argv[0], args...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start speech: %w", err)
	}
	if s.onStart != nil {
		s.onStart()
	}

	u := &utterance{cancel: cancel, done: make(chan struct{})}
	s.last = u
	s.mu.Lock()
	s.current = u
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		if s.onExit != nil {
			s.onExit()
		}
		s.mu.Lock()
		if s.current == u {
			s.current = nil
		}
		s.mu.Unlock()
		cancel()
		close(u.done)
		if err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Debug("Speech command exited with error")
		}
	}()
	return nil
}

// Stop cancels the active utterance, if any. It does not wait for the
// command to exit.
func (s *Speaker) Stop() {
	if u := s.detach(); u != nil {
		u.cancel()
	}
}

func (s *Speaker) detach() *utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.current
	s.current = nil
	return u
}

// Speaking reports whether an utterance is active.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}
