// Package chat keeps one ordered message log per report and coordinates the
// optimistic user/placeholder messages with in-flight chat requests.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Greeting opens every session. It is never sent to the server.
const Greeting = "Hello! I'm ready to answer your questions about this report."

// PendingText is shown in the placeholder while a request is in flight.
const PendingText = "Thinking..."

var (
	// ErrUnknownSession is returned for a report without an open session.
	ErrUnknownSession = errors.New("no chat session for report")
	// ErrEmptyMessage is returned when Send is given blank text; nothing is
	// appended and nothing is sent.
	ErrEmptyMessage = errors.New("empty message")
)

// Role of a message author.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of a session log. Verbatim content (placeholders and
// local error text) is displayed as-is instead of being parsed as markdown.
type Message struct {
	ID       string
	Role     Role
	Content  string
	Verbatim bool
	Pending  bool
	Failed   bool
	Greeting bool
}

// QuickPrompt is a preset question offered next to the input.
type QuickPrompt struct {
	Label string
	Text  string
}

// QuickPrompts are the presets offered for every report.
var QuickPrompts = []QuickPrompt{
	{Label: "Summarize Findings", Text: "Summarize the key findings."},
	{Label: "Explain Connections", Text: "What are the interconnections with other sectors?"},
	{Label: "Policy Impact", Text: "What are the policy implications?"},
}

// Sender delivers one message about a report. *api.Client implements it.
type Sender interface {
	Chat(ctx context.Context, reportID, message string) (string, error)
}

type session struct {
	gen      uint64
	messages []Message
	draft    string
}

// Controller owns all chat sessions.
type Controller struct {
	sender Sender
	logger logrus.FieldLogger
	newID  func() string

	mu       sync.Mutex
	sessions map[string]*session
	nextGen  uint64
	onChange func(reportID string)
}

// NewController creates a controller sending through sender.
func NewController(sender Sender, logger logrus.FieldLogger) *Controller {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Controller{
		sender:   sender,
		logger:   logger.WithField("component", "chat"),
		newID:    uuid.NewString,
		sessions: make(map[string]*session),
	}
}

// OnChange registers fn to run after any session of reportID changes. fn runs
// without the controller lock held, possibly on a request goroutine.
func (c *Controller) OnChange(fn func(reportID string)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Open returns the session log for reportID, creating it with the greeting
// if needed.
func (c *Controller) Open(reportID string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[reportID]
	if !ok {
		c.nextGen++
		s = &session{
			gen: c.nextGen,
			messages: []Message{{
				ID:       c.newID(),
				Role:     RoleModel,
				Content:  Greeting,
				Greeting: true,
			}},
		}
		c.sessions[reportID] = s
	}
	return cloneMessages(s.messages)
}

// Discard drops the session. Responses still in flight for it are dropped
// when they arrive.
func (c *Controller) Discard(reportID string) {
	c.mu.Lock()
	delete(c.sessions, reportID)
	c.mu.Unlock()
}

// Messages returns the session log.
func (c *Controller) Messages(reportID string) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[reportID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, reportID)
	}
	return cloneMessages(s.messages), nil
}

// SetDraft stores unsent input for the session.
func (c *Controller) SetDraft(reportID, text string) {
	c.mu.Lock()
	if s, ok := c.sessions[reportID]; ok {
		s.draft = text
	}
	c.mu.Unlock()
}

// Draft returns the unsent input of the session.
func (c *Controller) Draft(reportID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[reportID]; ok {
		return s.draft
	}
	return ""
}

// ClearDrafts discards unsent input of every session.
func (c *Controller) ClearDrafts() {
	c.mu.Lock()
	for _, s := range c.sessions {
		s.draft = ""
	}
	c.mu.Unlock()
}

// Send appends the user message and a pending placeholder, then blocks on
// the request. The placeholder is always replaced in place, by the reply or
// by an error message, unless the session was discarded meanwhile. Concurrent
// sends are not serialized.
func (c *Controller) Send(ctx context.Context, reportID, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	s, ok := c.sessions[reportID]
	if !ok {
		c.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownSession, reportID)
	}
	gen := s.gen
	placeholder := Message{ID: c.newID(), Role: RoleModel, Content: PendingText, Verbatim: true, Pending: true}
	s.messages = append(s.messages,
		Message{ID: c.newID(), Role: RoleUser, Content: text},
		placeholder,
	)
	s.draft = ""
	cb := c.onChange
	c.mu.Unlock()
	if cb != nil {
		cb(reportID)
	}

	reply := Message{ID: placeholder.ID, Role: RoleModel}
	resp, err := c.sender.Chat(ctx, reportID, text)
	if err != nil {
		c.logger.WithError(err).WithField("report_id", reportID).Warn("Chat error")
		reply.Content = "Sorry, I encountered an error: " + err.Error()
		reply.Verbatim = true
		reply.Failed = true
	} else {
		reply.Content = resp
	}

	c.mu.Lock()
	s, ok = c.sessions[reportID]
	applied := false
	if ok && s.gen == gen {
		for i := range s.messages {
			if s.messages[i].ID == placeholder.ID {
				s.messages[i] = reply
				applied = true
				break
			}
		}
	}
	cb = c.onChange
	c.mu.Unlock()

	if !applied {
		c.logger.WithField("report_id", reportID).Debug("Dropping chat response for a discarded session")
		return reply, nil
	}
	if cb != nil {
		cb(reportID)
	}
	return reply, nil
}

// QuickSend sends a preset as if it had been typed into the input.
func (c *Controller) QuickSend(ctx context.Context, reportID, preset string) (Message, error) {
	c.SetDraft(reportID, preset)
	return c.Send(ctx, reportID, c.Draft(reportID))
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
