// Package dashboard is the explicit application state: it owns every
// client-side component and implements the user-level operations the
// renderer and the CLI invoke.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Ashfaaq98/insights-console/internal/actors"
	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/bus"
	"github.com/Ashfaaq98/insights-console/internal/chat"
	"github.com/Ashfaaq98/insights-console/internal/notify"
	"github.com/Ashfaaq98/insights-console/internal/reports"
	"github.com/Ashfaaq98/insights-console/internal/store"
	"github.com/Ashfaaq98/insights-console/internal/upload"
	"github.com/Ashfaaq98/insights-console/internal/view"
)

// Notification texts.
const (
	MsgInitFailed        = "Failed to initialize application"
	MsgNarrativeDone     = "Narrative generated successfully!"
	MsgNarrativeFailed   = "Failed to generate narrative"
	MsgStoryboardFailed  = "Failed to generate storyboard"
	MsgTimelineFailed    = "Failed to load highlights timeline"
	MsgStatsFailed       = "Failed to fetch database statistics"
	MsgBackupFailed      = "Failed to create database backup"
	backupSucceededFmt   = "Database backup created: %s"
	storyboardErrorFmt   = "An error occurred while generating the storyboard: %s"
	narrativeErrorFormat = "Error generating narrative: %s"
)

// Backend is everything the dashboard asks of the server. *api.Client
// implements it.
type Backend interface {
	reports.Backend
	chat.Sender
	GenerateStoryboard(ctx context.Context) (*api.Storyboard, error)
	GenerateNarrative(ctx context.Context, reportID string) (string, error)
	Timeline(ctx context.Context) ([]api.TimelineItem, error)
	Stats(ctx context.Context) (*api.Stats, error)
	Backup(ctx context.Context) (string, error)
	Health(ctx context.Context) (*api.Health, error)
}

// ActivityLog records user actions. *store.Store implements it.
type ActivityLog interface {
	RecordActivity(ctx context.Context, a store.Activity) error
}

// Options wires an App.
type Options struct {
	Backend  Backend
	Durable  actors.Durable
	Activity ActivityLog
	Bus      bus.Bus
	Notifier notify.Notifier
	Speaker  *chat.Speaker
	Logger   logrus.FieldLogger
}

// StoryboardState is what the storyboard view shows.
type StoryboardState struct {
	Loading bool
	Data    *api.Storyboard
	Err     string
}

// NarrativeState is the narrative section of one report view.
type NarrativeState struct {
	Loading bool
	Text    string
	Err     string
}

// TimelineState is what the highlights timeline shows.
type TimelineState struct {
	Loading bool
	Items   []api.TimelineItem
	Err     string
}

// UploadError is one server-reported upload failure split for display.
type UploadError struct {
	File    string
	Message string
	Raw     string
}

// App owns the state of one console.
type App struct {
	backend  Backend
	activity ActivityLog
	bus      bus.Bus
	notifier notify.Notifier
	speaker  *chat.Speaker
	logger   logrus.FieldLogger

	reports *reports.Store
	actors  *actors.Cache
	uploads *upload.Session
	chat    *chat.Controller
	router  *view.Router

	mu         sync.Mutex
	storyboard StoryboardState
	narratives map[string]NarrativeState
	timeline   TimelineState
	health     *api.Health
	onUpdate   func()
}

// New builds the application state. Backend is required.
func New(opts Options) (*App, error) {
	if opts.Backend == nil {
		return nil, errors.New("dashboard: backend required")
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = &notify.Recorder{}
	}
	b := opts.Bus
	if b == nil {
		b = bus.NewNullBus(logger)
	}
	speaker := opts.Speaker
	if speaker == nil {
		speaker = chat.NewSpeaker("", notifier, logger)
	}

	a := &App{
		backend:    opts.Backend,
		activity:   opts.Activity,
		bus:        b,
		notifier:   notifier,
		speaker:    speaker,
		logger:     logger.WithField("component", "dashboard"),
		router:     view.NewRouter(),
		narratives: make(map[string]NarrativeState),
	}
	a.reports = reports.NewStore(opts.Backend, notifier, b, logger)
	a.actors = actors.NewCache(opts.Durable, a.reports, logger)
	a.uploads = upload.NewSession(notifier, logger)
	a.chat = chat.NewController(opts.Backend, logger)

	// Leaving a report discards its unsent draft. The upload selection is
	// deliberately left alone when leaving add_report.
	a.router.OnLeave(func(from, to view.ID) {
		if from.Kind == view.KindReport {
			a.chat.SetDraft(from.ReportID, "")
		}
	})
	return a, nil
}

// Reports returns the report cache.
func (a *App) Reports() *reports.Store { return a.reports }

// Actors returns the key actor cache.
func (a *App) Actors() *actors.Cache { return a.actors }

// Uploads returns the upload session.
func (a *App) Uploads() *upload.Session { return a.uploads }

// Chat returns the chat controller.
func (a *App) Chat() *chat.Controller { return a.chat }

// Router returns the view router.
func (a *App) Router() *view.Router { return a.router }

// Speaker returns the read-aloud speaker.
func (a *App) Speaker() *chat.Speaker { return a.speaker }

// OnUpdate registers fn to run whenever view state changes outside the
// router (loading flags, results). fn may be called from any goroutine.
func (a *App) OnUpdate(fn func()) {
	a.mu.Lock()
	a.onUpdate = fn
	a.mu.Unlock()
}

func (a *App) changed() {
	a.mu.Lock()
	fn := a.onUpdate
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Init loads the collection and probes backend health concurrently, then
// shows the storyboard.
func (a *App) Init(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.reports.LoadAll(gctx)
		return nil
	})
	g.Go(func() error {
		h, err := a.backend.Health(gctx)
		if err != nil {
			a.logger.WithError(err).Warn("Health check failed")
			return nil
		}
		a.mu.Lock()
		a.health = h
		a.mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if err := a.router.SwitchTo(view.Storyboard); err != nil {
		a.notifier.Notify(notify.SeverityError, MsgInitFailed)
		return fmt.Errorf("failed to initialize: %w", err)
	}
	return nil
}

// Health returns the last health probe, nil when the backend was unreachable.
func (a *App) Health() *api.Health {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.health
}

// Run processes background work until ctx is done: invalidations from other
// consoles and, when given, the drop folder.
func (a *App) Run(ctx context.Context, drop *upload.DropFolder) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.bus.Subscribe(gctx, a.handleInvalidation)
	})
	if drop != nil {
		g.Go(func() error {
			return drop.Run(gctx)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) handleInvalidation(ctx context.Context, inv bus.Invalidation) error {
	if inv.Kind == bus.KindActorsUpdated {
		a.adoptActors(ctx, inv.Actors)
		if a.router.IsActive(view.KeyActors) {
			a.router.Refresh()
		}
		return nil
	}
	if err := a.reports.HandleInvalidation(ctx, inv); err != nil {
		return err
	}
	active := a.router.Active()
	if active.Kind == view.KindReport {
		if _, ok := a.reports.GetByID(active.ReportID); !ok {
			a.chat.Discard(active.ReportID)
			return a.router.SwitchTo(view.Storyboard)
		}
	}
	a.router.Refresh()
	return nil
}

// adoptActors takes over a key actor set generated by another console. Without
// a payload the memory tier is dropped so the durable tier is read again.
func (a *App) adoptActors(ctx context.Context, list []api.Actor) {
	if len(list) == 0 {
		a.actors.Invalidate()
		return
	}
	if err := a.actors.Set(ctx, list); err != nil {
		a.logger.WithError(err).Warn("Failed to cache remote key actors")
	}
}

// ShowStoryboard switches to the storyboard view.
func (a *App) ShowStoryboard() error { return a.router.SwitchTo(view.Storyboard) }

// ShowAddReport switches to the upload view.
func (a *App) ShowAddReport() error { return a.router.SwitchTo(view.AddReport) }

// ShowKeyActors switches to the key actor view.
func (a *App) ShowKeyActors() error { return a.router.SwitchTo(view.KeyActors) }

// ShowReport opens the chat session of a cached report and switches to it.
func (a *App) ShowReport(id string) error {
	if _, err := a.reports.Lookup(id); err != nil {
		return err
	}
	a.chat.Open(id)
	return a.router.SwitchTo(view.Report(id))
}

// Show switches to any view by identifier. The timeline is fetched
// synchronously under ctx.
func (a *App) Show(ctx context.Context, v view.ID) error {
	switch v.Kind {
	case view.KindReport:
		return a.ShowReport(v.ReportID)
	case view.KindTimeline:
		return a.ShowTimeline(ctx)
	}
	return a.router.SwitchTo(v)
}

// KeyActors resolves the key actors through the cache chain.
func (a *App) KeyActors(ctx context.Context) ([]api.Actor, actors.Source) {
	return a.actors.Get(ctx)
}

// DeleteReport deletes after confirmation and shows the storyboard on
// success.
func (a *App) DeleteReport(ctx context.Context, id string, confirmer reports.Confirmer) (reports.DeleteOutcome, error) {
	outcome, err := a.reports.Delete(ctx, id, confirmer)
	if outcome != reports.DeleteSucceeded {
		return outcome, err
	}
	a.chat.Discard(id)
	a.mu.Lock()
	delete(a.narratives, id)
	a.mu.Unlock()
	a.record(ctx, store.Activity{Action: store.ActionReportDeleted, ReportID: id})
	return outcome, a.router.SwitchTo(view.Storyboard)
}

// SubmitUpload sends the pending selection. When reports were created the
// first one is shown; server errors stay available through UploadErrors at
// the same time.
func (a *App) SubmitUpload(ctx context.Context) (reports.UploadResult, error) {
	var result reports.UploadResult
	err := a.uploads.Submit(ctx, func(ctx context.Context, files []api.UploadFile) ([]string, error) {
		res, err := a.reports.Upload(ctx, files)
		result = res
		return res.Errors, err
	})
	if errors.Is(err, upload.ErrNothingToSubmit) || errors.Is(err, upload.ErrSubmitInProgress) {
		return result, err
	}
	if err != nil {
		a.router.Refresh()
		return result, err
	}

	a.record(ctx, store.Activity{
		Action: store.ActionReportsUploaded,
		Details: map[string]interface{}{
			"created": len(result.Created),
			"errors":  len(result.Errors),
		},
	})
	if len(result.Created) > 0 {
		return result, a.ShowReport(result.Created[0].ID)
	}
	a.router.Refresh()
	return result, nil
}

// UploadErrors returns the errors of the last upload split into file and
// message.
func (a *App) UploadErrors() []UploadError {
	raw := a.uploads.Errors()
	out := make([]UploadError, len(raw))
	for i, e := range raw {
		file, msg := upload.SplitError(e)
		out[i] = UploadError{File: file, Message: msg, Raw: e}
	}
	return out
}

// DismissUploadErrors hides the errors of the last upload before the next
// submit would.
func (a *App) DismissUploadErrors() {
	a.uploads.ClearErrors()
}

// Storyboard returns the storyboard view state.
func (a *App) Storyboard() StoryboardState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.storyboard
}

// StoryboardActors are the actors shown in the storyboard: the generated set,
// or the defaults when the backend returned none.
func (a *App) StoryboardActors() []api.Actor {
	a.mu.Lock()
	sb := a.storyboard.Data
	a.mu.Unlock()
	if sb != nil && len(sb.KeyActors) > 0 {
		return sb.KeyActors
	}
	return actors.Defaults()
}

// GenerateStoryboard asks the backend for a storyboard and caches non-empty
// key actors.
func (a *App) GenerateStoryboard(ctx context.Context) (*api.Storyboard, error) {
	a.mu.Lock()
	a.storyboard = StoryboardState{Loading: true}
	a.mu.Unlock()
	a.changed()

	sb, err := a.backend.GenerateStoryboard(ctx)
	if err != nil {
		a.mu.Lock()
		a.storyboard = StoryboardState{Err: fmt.Sprintf(storyboardErrorFmt, err.Error())}
		a.mu.Unlock()
		a.logger.WithError(err).Error("Storyboard generation failed")
		a.notifier.Notify(notify.SeverityError, MsgStoryboardFailed)
		a.changed()
		return nil, err
	}

	if len(sb.KeyActors) > 0 {
		if err := a.actors.Set(ctx, sb.KeyActors); err != nil {
			a.logger.WithError(err).Warn("Failed to cache key actors")
		}
		if err := a.bus.PublishInvalidation(ctx, bus.Invalidation{Kind: bus.KindActorsUpdated, Actors: sb.KeyActors}); err != nil {
			a.logger.WithError(err).Warn("Failed to publish actor update")
		}
		if a.router.IsActive(view.KeyActors) {
			a.router.Refresh()
		}
	}

	a.mu.Lock()
	a.storyboard = StoryboardState{Data: sb}
	a.mu.Unlock()
	a.record(ctx, store.Activity{Action: store.ActionStoryboard, Details: map[string]interface{}{"title": sb.Title}})
	a.changed()
	return sb, nil
}

// Narrative returns the narrative state of a report.
func (a *App) Narrative(reportID string) NarrativeState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.narratives[reportID]
}

// GenerateNarrative asks the backend for a report narrative.
func (a *App) GenerateNarrative(ctx context.Context, reportID string) (string, error) {
	a.setNarrative(reportID, NarrativeState{Loading: true})

	text, err := a.backend.GenerateNarrative(ctx, reportID)
	if err != nil {
		a.setNarrative(reportID, NarrativeState{Err: fmt.Sprintf(narrativeErrorFormat, err.Error())})
		a.notifier.Notify(notify.SeverityError, MsgNarrativeFailed)
		return "", err
	}
	a.setNarrative(reportID, NarrativeState{Text: text})
	a.notifier.Notify(notify.SeveritySuccess, MsgNarrativeDone)
	return text, nil
}

func (a *App) setNarrative(id string, st NarrativeState) {
	a.mu.Lock()
	a.narratives[id] = st
	a.mu.Unlock()
	a.changed()
}

// Timeline returns the timeline view state.
func (a *App) Timeline() TimelineState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timeline
}

// ShowTimeline switches to the timeline and loads it.
func (a *App) ShowTimeline(ctx context.Context) error {
	a.mu.Lock()
	a.timeline = TimelineState{Loading: true}
	a.mu.Unlock()
	if err := a.router.SwitchTo(view.Timeline); err != nil {
		return err
	}
	_, err := a.LoadTimeline(ctx)
	return err
}

// LoadTimeline fetches the highlights timeline.
func (a *App) LoadTimeline(ctx context.Context) ([]api.TimelineItem, error) {
	items, err := a.backend.Timeline(ctx)
	a.mu.Lock()
	if err != nil {
		a.timeline = TimelineState{Err: MsgTimelineFailed + "."}
	} else {
		a.timeline = TimelineState{Items: items}
	}
	a.mu.Unlock()
	if err != nil {
		a.notifier.Notify(notify.SeverityError, MsgTimelineFailed)
	}
	a.changed()
	return items, err
}

// Stats fetches backend database statistics.
func (a *App) Stats(ctx context.Context) (*api.Stats, error) {
	st, err := a.backend.Stats(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Error fetching stats")
		a.notifier.Notify(notify.SeverityError, MsgStatsFailed)
		return nil, err
	}
	return st, nil
}

// Backup asks the backend to back up its database.
func (a *App) Backup(ctx context.Context) (string, error) {
	msg, err := a.backend.Backup(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Error creating backup")
		a.notifier.Notify(notify.SeverityError, MsgBackupFailed)
		return "", err
	}
	a.notifier.Notify(notify.SeveritySuccess, fmt.Sprintf(backupSucceededFmt, msg))
	a.record(ctx, store.Activity{Action: store.ActionBackup, Details: map[string]interface{}{"message": msg}})
	return msg, nil
}

// SendChat sends text in the chat of reportID. Callers resolve the report
// when the user submits, so navigating away meanwhile does not redirect the
// message.
func (a *App) SendChat(ctx context.Context, reportID, text string) (chat.Message, error) {
	if reportID == "" {
		return chat.Message{}, fmt.Errorf("%w: no report is open", chat.ErrUnknownSession)
	}
	msg, err := a.chat.Send(ctx, reportID, text)
	if err == nil {
		a.record(ctx, store.Activity{Action: store.ActionChatSent, ReportID: reportID})
	}
	return msg, err
}

// QuickSend sends a preset question in the chat of reportID.
func (a *App) QuickSend(ctx context.Context, reportID, preset string) (chat.Message, error) {
	if reportID != "" {
		a.chat.SetDraft(reportID, preset)
	}
	return a.SendChat(ctx, reportID, preset)
}

// ReadAloud speaks a model message; any active utterance is cancelled.
func (a *App) ReadAloud(msg chat.Message) error {
	if msg.Role != chat.RoleModel || msg.Pending {
		return nil
	}
	return a.speaker.Speak(msg.Content)
}

// StopReading cancels the active utterance.
func (a *App) StopReading() { a.speaker.Stop() }

func (a *App) record(ctx context.Context, act store.Activity) {
	if a.activity == nil {
		return
	}
	if err := a.activity.RecordActivity(ctx, act); err != nil {
		a.logger.WithError(err).Warn("Failed to record activity")
	}
}
