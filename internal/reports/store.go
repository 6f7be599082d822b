// Package reports holds the local read-through cache of the server's report
// collection. The cache is only ever replaced wholesale by a reload; no
// mutation is applied locally.
package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/bus"
	"github.com/Ashfaaq98/insights-console/internal/notify"
)

// ErrNotFound is returned when a report id is not in the cache.
var ErrNotFound = errors.New("report not found")

// Notification texts.
const (
	MsgLoadFailed    = "Failed to load reports"
	MsgDeleted       = "Report deleted successfully"
	MsgDeleteFailed  = "Failed to delete report"
	MsgUploadFailed  = "Upload failed"
	deleteConfirmFmt = "Are you sure you want to delete %q? This action cannot be undone."
)

// Backend is the subset of the API client the cache needs.
type Backend interface {
	ListReports(ctx context.Context) ([]api.Report, error)
	DeleteReport(ctx context.Context, id string) error
	UploadReports(ctx context.Context, files []api.UploadFile) (*api.UploadResponse, error)
}

// Confirmer gates destructive actions behind an explicit yes/no.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

// DeleteOutcome describes what Delete did.
type DeleteOutcome int

const (
	DeleteDeclined DeleteOutcome = iota
	DeleteSucceeded
	DeleteFailed
)

// UploadResult always carries both the created reports and the per-file
// errors; either or both may be empty.
type UploadResult struct {
	Created      []api.Report
	Errors       []string
	SuccessCount int
}

// Store is the report cache.
type Store struct {
	backend  Backend
	notifier notify.Notifier
	bus      bus.Bus
	logger   logrus.FieldLogger

	mu          sync.RWMutex
	reports     []api.Report
	loadSeq     uint64
	appliedSeq  uint64
	subscribers []func([]api.Report)
}

// NewStore creates an empty cache. notifier and b may be nil.
func NewStore(backend Backend, notifier notify.Notifier, b bus.Bus, logger logrus.FieldLogger) *Store {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if b == nil {
		b = bus.NewNullBus(logger)
	}
	return &Store{
		backend:  backend,
		notifier: notifier,
		bus:      b,
		logger:   logger.WithField("component", "reports"),
		reports:  []api.Report{},
	}
}

// Subscribe registers fn to receive the collection after every reload.
func (s *Store) Subscribe(fn func([]api.Report)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// LoadAll replaces the cache with the server's collection. Any failure
// resets the cache to empty and emits an error notification; it never
// returns an error.
func (s *Store) LoadAll(ctx context.Context) []api.Report {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()

	fetched, err := s.backend.ListReports(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load reports")
		s.notify(notify.SeverityError, MsgLoadFailed)
		fetched = []api.Report{}
	}

	s.mu.Lock()
	if seq < s.appliedSeq {
		// A newer load already landed.
		current := cloneReports(s.reports)
		s.mu.Unlock()
		return current
	}
	s.appliedSeq = seq
	s.reports = cloneReports(fetched)
	subs := append([]func([]api.Report){}, s.subscribers...)
	s.mu.Unlock()

	s.logger.WithField("count", len(fetched)).Debug("Reports loaded")
	for _, fn := range subs {
		fn(cloneReports(fetched))
	}
	return cloneReports(fetched)
}

// All returns the cached collection.
func (s *Store) All() []api.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneReports(s.reports)
}

// GetByID looks a report up in the cache.
func (s *Store) GetByID(id string) (api.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.ID == id {
			return cloneReport(r), true
		}
	}
	return api.Report{}, false
}

// Lookup is GetByID returning ErrNotFound.
func (s *Store) Lookup(id string) (api.Report, error) {
	r, ok := s.GetByID(id)
	if !ok {
		return api.Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// Delete asks confirmer first; a declined confirmation is a silent no-op.
// On success the whole collection is reloaded.
func (s *Store) Delete(ctx context.Context, id string, confirmer Confirmer) (DeleteOutcome, error) {
	title := id
	if r, ok := s.GetByID(id); ok && r.Title != "" {
		title = r.Title
	}
	if confirmer == nil || !confirmer.Confirm(ctx, fmt.Sprintf(deleteConfirmFmt, title)) {
		s.logger.WithField("report_id", id).Debug("Delete declined")
		return DeleteDeclined, nil
	}

	if err := s.backend.DeleteReport(ctx, id); err != nil {
		s.logger.WithError(err).WithField("report_id", id).Error("Failed to delete report")
		s.notify(notify.SeverityError, MsgDeleteFailed)
		return DeleteFailed, fmt.Errorf("failed to delete report %s: %w", id, err)
	}

	s.LoadAll(ctx)
	s.publish(ctx, bus.Invalidation{Kind: bus.KindReportDeleted, ReportIDs: []string{id}})
	s.notify(notify.SeveritySuccess, MsgDeleted)
	return DeleteSucceeded, nil
}

// Upload sends files and reloads the collection when anything was created.
// Partial failures are reported in the result, not as an error; the error is
// only non-nil when the batch failed as a whole.
func (s *Store) Upload(ctx context.Context, files []api.UploadFile) (UploadResult, error) {
	resp, err := s.backend.UploadReports(ctx, files)
	if err != nil {
		s.logger.WithError(err).Error("Upload error")
		s.notify(notify.SeverityError, MsgUploadFailed)
		return UploadResult{Created: []api.Report{}, Errors: []string{}}, fmt.Errorf("failed to upload reports: %w", err)
	}

	res := UploadResult{
		Created:      cloneReports(resp.Reports),
		Errors:       append([]string{}, resp.Errors...),
		SuccessCount: resp.SuccessCount,
	}
	if res.SuccessCount == 0 {
		res.SuccessCount = len(res.Created)
	}

	if len(res.Created) > 0 {
		s.LoadAll(ctx)
		ids := make([]string, len(res.Created))
		for i, r := range res.Created {
			ids[i] = r.ID
		}
		s.publish(ctx, bus.Invalidation{Kind: bus.KindReportsUploaded, ReportIDs: ids})
		s.notify(notify.SeveritySuccess, fmt.Sprintf("Successfully processed %d file(s)!", res.SuccessCount))
	}
	if len(res.Errors) > 0 {
		s.notify(notify.SeverityError, fmt.Sprintf("%d file(s) failed to process", len(res.Errors)))
	}
	s.logger.WithFields(logrus.Fields{"created": len(res.Created), "errors": len(res.Errors)}).Info("Upload finished")
	return res, nil
}

// HandleInvalidation reloads the cache when another console changed the
// collection.
func (s *Store) HandleInvalidation(ctx context.Context, inv bus.Invalidation) error {
	switch inv.Kind {
	case bus.KindReportsUploaded, bus.KindReportDeleted:
		s.logger.WithField("kind", inv.Kind).WithField("origin", inv.Origin).Info("Remote invalidation, reloading")
		s.LoadAll(ctx)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, inv bus.Invalidation) {
	if err := s.bus.PublishInvalidation(ctx, inv); err != nil {
		s.logger.WithError(err).Warn("Failed to publish invalidation")
	}
}

func (s *Store) notify(sev notify.Severity, msg string) {
	if s.notifier != nil {
		s.notifier.Notify(sev, msg)
	}
}

func cloneReports(in []api.Report) []api.Report {
	out := make([]api.Report, len(in))
	for i, r := range in {
		out[i] = cloneReport(r)
	}
	return out
}

// cloneReport copies the slices a caller could mutate. Chart rows are
// shared; they are treated as read-only everywhere.
func cloneReport(r api.Report) api.Report {
	r.KeyFindings = append([]string(nil), r.KeyFindings...)
	r.Charts = append([]api.Chart(nil), r.Charts...)
	r.Actors = append([]api.Actor(nil), r.Actors...)
	return r
}
