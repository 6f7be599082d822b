package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 5 * time.Second

// Severity tags every user-visible message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a transient message shown to the user.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether n is no longer visible at t.
func (n Notification) Expired(t time.Time) bool {
	return !t.Before(n.ExpiresAt)
}

// Notifier is the single sink for user-visible failures and confirmations.
type Notifier interface {
	Notify(sev Severity, message string)
}

// Emitter keeps the currently visible notifications and fans new ones out to
// subscribers (the renderer).
type Emitter struct {
	mu          sync.Mutex
	active      []Notification
	ttl         time.Duration
	now         func() time.Time
	subscribers []func(Notification)
	logger      logrus.FieldLogger
}

// NewEmitter creates an emitter. A zero ttl uses DefaultTTL.
func NewEmitter(ttl time.Duration, logger logrus.FieldLogger) *Emitter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Emitter{
		ttl:    ttl,
		now:    time.Now,
		logger: logger.WithField("component", "notify"),
	}
}

// SetClock overrides the time source (tests).
func (e *Emitter) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Subscribe registers fn to be called for every new notification. fn runs on
// the emitting goroutine and must not call back into the emitter.
func (e *Emitter) Subscribe(fn func(Notification)) {
	e.mu.Lock()
	e.subscribers = append(e.subscribers, fn)
	e.mu.Unlock()
}

// Notify implements Notifier.
func (e *Emitter) Notify(sev Severity, message string) {
	e.emit(sev, message)
}

// Infof emits an info notification.
func (e *Emitter) Infof(format string, args ...interface{}) Notification {
	return e.emit(SeverityInfo, fmt.Sprintf(format, args...))
}

// Successf emits a success notification.
func (e *Emitter) Successf(format string, args ...interface{}) Notification {
	return e.emit(SeveritySuccess, fmt.Sprintf(format, args...))
}

// Errorf emits an error notification.
func (e *Emitter) Errorf(format string, args ...interface{}) Notification {
	return e.emit(SeverityError, fmt.Sprintf(format, args...))
}

func (e *Emitter) emit(sev Severity, message string) Notification {
	e.mu.Lock()
	now := e.now()
	n := Notification{
		ID:        uuid.NewString(),
		Severity:  sev,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	}
	e.active = append(pruneExpired(e.active, now), n)
	subs := make([]func(Notification), len(e.subscribers))
	copy(subs, e.subscribers)
	e.mu.Unlock()

	entry := e.logger.WithField("severity", string(sev))
	if sev == SeverityError {
		entry.Warn(message)
	} else {
		entry.Debug(message)
	}

	for _, fn := range subs {
		fn(n)
	}
	return n
}

// Active returns the notifications still visible now, oldest first.
func (e *Emitter) Active() []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = pruneExpired(e.active, e.now())
	out := make([]Notification, len(e.active))
	copy(out, e.active)
	return out
}

// Dismiss removes a notification before it expires.
func (e *Emitter) Dismiss(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, n := range e.active {
		if n.ID == id {
			e.active = append(e.active[:i], e.active[i+1:]...)
			return
		}
	}
}

func pruneExpired(in []Notification, now time.Time) []Notification {
	out := in[:0]
	for _, n := range in {
		if !n.Expired(now) {
			out = append(out, n)
		}
	}
	return out
}

// Recorder is a Notifier that only remembers what it was told. Useful as a
// sink in CLI commands and tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(sev Severity, message string) {
	r.mu.Lock()
	r.items = append(r.items, Notification{Severity: sev, Message: message, CreatedAt: time.Now()})
	r.mu.Unlock()
}

// All returns every recorded notification in order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}
