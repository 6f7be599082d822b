// Package view tracks which logical section of the dashboard is active.
package view

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownView is returned for identifiers that name no view.
var ErrUnknownView = errors.New("unknown view")

// Kind is the section type of a view.
type Kind string

const (
	KindStoryboard Kind = "storyboard"
	KindAddReport  Kind = "add_report"
	KindKeyActors  Kind = "key_actors"
	KindTimeline   Kind = "highlights_timeline"
	KindReport     Kind = "report"
)

// ID identifies exactly one view. ReportID is only set for KindReport.
type ID struct {
	Kind     Kind
	ReportID string
}

var (
	Storyboard = ID{Kind: KindStoryboard}
	AddReport  = ID{Kind: KindAddReport}
	KeyActors  = ID{Kind: KindKeyActors}
	Timeline   = ID{Kind: KindTimeline}
)

// Report returns the view of one report.
func Report(id string) ID { return ID{Kind: KindReport, ReportID: id} }

// String renders the identifier, e.g. "storyboard" or "report:rep-1".
func (v ID) String() string {
	if v.Kind == KindReport {
		return string(KindReport) + ":" + v.ReportID
	}
	return string(v.Kind)
}

// Parse is the inverse of String.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, string(KindReport)+":"); ok {
		if rest == "" {
			return ID{}, fmt.Errorf("%w: %q", ErrUnknownView, s)
		}
		return Report(rest), nil
	}
	switch Kind(s) {
	case KindStoryboard, KindAddReport, KindKeyActors, KindTimeline:
		return ID{Kind: Kind(s)}, nil
	}
	return ID{}, fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Valid reports whether v names a view.
func (v ID) Valid() bool {
	_, err := Parse(v.String())
	return err == nil
}

// RenderFunc draws a view into the content region.
type RenderFunc func(v ID)

// Router holds the single active view. There is no history.
type Router struct {
	mu        sync.Mutex
	active    ID
	renderers map[Kind]RenderFunc
	highlight func(v ID)
	onLeave   []func(from, to ID)
}

// NewRouter starts on the storyboard.
func NewRouter() *Router {
	return &Router{
		active:    Storyboard,
		renderers: make(map[Kind]RenderFunc),
	}
}

// Handle registers the render function for a view kind.
func (r *Router) Handle(kind Kind, fn RenderFunc) {
	r.mu.Lock()
	r.renderers[kind] = fn
	r.mu.Unlock()
}

// OnHighlight registers the sidebar highlight update.
func (r *Router) OnHighlight(fn func(v ID)) {
	r.mu.Lock()
	r.highlight = fn
	r.mu.Unlock()
}

// OnLeave registers fn to run when the active view changes, before the new
// view renders. View-local state such as chat drafts is discarded here.
func (r *Router) OnLeave(fn func(from, to ID)) {
	r.mu.Lock()
	r.onLeave = append(r.onLeave, fn)
	r.mu.Unlock()
}

// Active returns the current view.
func (r *Router) Active() ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// IsActive reports whether v is the current view.
func (r *Router) IsActive(v ID) bool { return r.Active() == v }

// SwitchTo makes v active, then re-renders the content region and updates
// the sidebar highlight. Switching to the active view re-renders it.
func (r *Router) SwitchTo(v ID) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownView, v.String())
	}
	r.mu.Lock()
	from := r.active
	r.active = v
	render := r.renderers[v.Kind]
	highlight := r.highlight
	leave := append([]func(from, to ID){}, r.onLeave...)
	r.mu.Unlock()

	if from != v {
		for _, fn := range leave {
			fn(from, v)
		}
	}
	if render != nil {
		render(v)
	}
	if highlight != nil {
		highlight(v)
	}
	return nil
}

// Refresh re-renders the active view.
func (r *Router) Refresh() {
	_ = r.SwitchTo(r.Active())
}
