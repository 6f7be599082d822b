// Package upload accumulates a pending file selection from several input
// sources (picker, drop folder, removal) and submits it as one batch.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/notify"
)

// IgnoredMessage is shown when part of a selection is filtered out.
const IgnoredMessage = "Some files were ignored (only PDFs are supported)"

// TransportFailureMessage replaces the error list when the batch could not
// be sent at all.
const TransportFailureMessage = "An error occurred during upload. Please try again."

var (
	// ErrNothingToSubmit is returned by Submit when no file is pending.
	ErrNothingToSubmit = errors.New("no files selected")
	// ErrSubmitInProgress is returned by Submit while a batch is in flight.
	ErrSubmitInProgress = errors.New("upload already in progress")
	// ErrIndexOutOfRange is returned by Remove for an invalid index.
	ErrIndexOutOfRange = errors.New("file index out of range")
)

// State of the upload session.
//
// Empty means nothing has been selected since the session was created, reset
// or cleanly submitted. Any Pick, Drop or Remove moves the session to
// Selecting, which holds while the pending list is empty and submit is not
// armed. Ready means at least one file is pending and CanSubmit is true.
// ReadyWithErrors keeps the errors of the last batch until the next submit
// or a new file makes the session Ready again.
type State string

const (
	StateEmpty           State = "empty"
	StateSelecting       State = "selecting"
	StateReady           State = "ready"
	StateSubmitting      State = "submitting"
	StateReadyWithErrors State = "ready_with_errors"
)

// SubmitFunc sends one batch. It returns the per-file errors reported by the
// server; a non-nil error means the batch failed as a whole.
type SubmitFunc func(ctx context.Context, files []api.UploadFile) (failed []string, err error)

// Session is the canonical pending-file list.
type Session struct {
	mu         sync.Mutex
	files      []File
	state      State
	errors     []string
	submitting bool
	selecting  bool
	notifier   notify.Notifier
	logger     logrus.FieldLogger
	onChange   func()
}

// NewSession creates an empty session. notifier may be nil.
func NewSession(notifier notify.Notifier, logger logrus.FieldLogger) *Session {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Session{
		state:    StateEmpty,
		notifier: notifier,
		logger:   logger.WithField("component", "upload"),
	}
}

// OnChange registers fn to run after every state change. fn runs without the
// session lock held.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Pick replaces the selection with the accepted subset of files, as a file
// picker does. It returns the number of accepted files.
func (s *Session) Pick(files []File) int {
	accepted := s.filter(files)
	s.mutate(func() {
		s.selecting = true
		s.files = accepted
	})
	return len(accepted)
}

// Drop appends the accepted subset of files to the selection.
func (s *Session) Drop(files []File) int {
	accepted := s.filter(files)
	s.mutate(func() {
		s.selecting = true
		s.files = append(s.files, accepted...)
	})
	return len(accepted)
}

// Remove drops the pending file at index.
func (s *Session) Remove(index int) error {
	var err error
	s.mutate(func() {
		s.selecting = true
		if index < 0 || index >= len(s.files) {
			err = fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
			return
		}
		s.files = append(s.files[:index:index], s.files[index+1:]...)
	})
	return err
}

// Files returns a copy of the pending list.
func (s *Session) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Errors returns the errors of the last submitted batch.
func (s *Session) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}

// CanSubmit reports whether Submit has something to send.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.submitting && len(s.files) > 0
}

// Submit sends the pending files through fn. The pending list is cleared
// whatever the outcome; files selected while the batch is in flight form the
// next selection.
func (s *Session) Submit(ctx context.Context, fn SubmitFunc) error {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	if len(s.files) == 0 {
		s.mu.Unlock()
		return ErrNothingToSubmit
	}
	batch := s.files
	s.files = nil
	s.errors = nil
	s.selecting = false
	s.submitting = true
	s.state = StateSubmitting
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb()
	}

	req := make([]api.UploadFile, len(batch))
	for i, f := range batch {
		req[i] = f.UploadFile()
	}
	s.logger.WithField("files", len(req)).Info("Submitting upload batch")
	failed, err := fn(ctx, req)
	if err != nil {
		s.logger.WithError(err).Warn("Upload batch failed")
		failed = []string{TransportFailureMessage}
	}

	s.mutate(func() {
		s.submitting = false
		s.errors = append([]string(nil), failed...)
	})
	return err
}

// ClearErrors dismisses the errors of the last batch and keeps the pending
// files.
func (s *Session) ClearErrors() {
	s.mutate(func() {
		s.errors = nil
	})
}

// Reset clears files and errors.
func (s *Session) Reset() {
	s.mutate(func() {
		s.files = nil
		s.errors = nil
		s.selecting = false
	})
}

func (s *Session) filter(files []File) []File {
	accepted := make([]File, 0, len(files))
	for _, f := range files {
		if f.Accepted() {
			accepted = append(accepted, f)
		} else {
			s.logger.WithField("file", f.Name).WithField("mime", f.MIME).Debug("Rejected file")
		}
	}
	if len(accepted) != len(files) && s.notifier != nil {
		s.notifier.Notify(notify.SeverityInfo, IgnoredMessage)
	}
	return accepted
}

// mutate applies fn under the lock and recomputes the state.
func (s *Session) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.state = s.computeState()
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (s *Session) computeState() State {
	switch {
	case s.submitting:
		return StateSubmitting
	case len(s.files) > 0:
		return StateReady
	case len(s.errors) > 0:
		return StateReadyWithErrors
	case s.selecting:
		return StateSelecting
	default:
		return StateEmpty
	}
}
