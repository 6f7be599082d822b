package reports_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/api/apitest"
	"github.com/Ashfaaq98/insights-console/internal/bus"
	"github.com/Ashfaaq98/insights-console/internal/notify"
	"github.com/Ashfaaq98/insights-console/internal/reports"
)

type recordingBus struct {
	*bus.NullBus
	mu        sync.Mutex
	published []bus.Invalidation
}

func (r *recordingBus) PublishInvalidation(ctx context.Context, inv bus.Invalidation) error {
	r.mu.Lock()
	r.published = append(r.published, inv)
	r.mu.Unlock()
	return nil
}

func newFixture(t *testing.T, seed ...api.Report) (*apitest.Backend, *reports.Store, *notify.Recorder, *recordingBus) {
	t.Helper()
	backend := apitest.NewBackend(seed...)
	t.Cleanup(backend.Close)
	client, err := api.New(backend.URL(), api.WithRetry(0, time.Millisecond))
	require.NoError(t, err)
	rec := &notify.Recorder{}
	rb := &recordingBus{NullBus: bus.NewNullBus(nil)}
	return backend, reports.NewStore(client, rec, rb, nil), rec, rb
}

func yes() reports.Confirmer {
	return reports.ConfirmFunc(func(context.Context, string) bool { return true })
}

func ids(in []api.Report) []string {
	out := make([]string, len(in))
	for i, r := range in {
		out[i] = r.ID
	}
	return out
}

func TestLoadAllFailsOpen(t *testing.T) {
	backend, store, rec, _ := newFixture(t, api.Report{ID: "a"}, api.Report{ID: "b"})
	ctx := context.Background()

	assert.Equal(t, []string{"a", "b"}, ids(store.LoadAll(ctx)))

	backend.Configure(func(b *apitest.Backend) { b.ListStatus = 500 })
	got := store.LoadAll(ctx)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, store.All(), "cache reset to empty")

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.SeverityError, last.Severity)
	assert.Equal(t, reports.MsgLoadFailed, last.Message)
}

func TestGetByIDAndLookup(t *testing.T) {
	_, store, _, _ := newFixture(t, api.Report{ID: "a", Title: "Alpha", KeyFindings: []string{"x"}})
	store.LoadAll(context.Background())

	r, ok := store.GetByID("a")
	require.True(t, ok)
	assert.Equal(t, "Alpha", r.Title)
	r.KeyFindings[0] = "mutated"
	again, _ := store.GetByID("a")
	assert.Equal(t, "x", again.KeyFindings[0])

	_, ok = store.GetByID("zzz")
	assert.False(t, ok)
	_, err := store.Lookup("zzz")
	assert.ErrorIs(t, err, reports.ErrNotFound)
}

func TestDeleteReloadsAndDropsID(t *testing.T) {
	backend, store, rec, rb := newFixture(t, api.Report{ID: "a", Title: "Alpha"}, api.Report{ID: "b"})
	ctx := context.Background()
	store.LoadAll(ctx)

	var prompt string
	outcome, err := store.Delete(ctx, "a", reports.ConfirmFunc(func(_ context.Context, msg string) bool {
		prompt = msg
		return true
	}))
	require.NoError(t, err)
	assert.Equal(t, reports.DeleteSucceeded, outcome)
	assert.Contains(t, prompt, `"Alpha"`)

	assert.Equal(t, 2, backend.Calls("GET /api/reports"), "delete triggers a full reload")
	assert.Equal(t, []string{"b"}, ids(store.All()))
	assert.NotContains(t, ids(store.LoadAll(ctx)), "a")

	last, _ := rec.Last()
	assert.Equal(t, reports.MsgDeleted, last.Message)
	require.Len(t, rb.published, 1)
	assert.Equal(t, bus.KindReportDeleted, rb.published[0].Kind)
	assert.Equal(t, []string{"a"}, rb.published[0].ReportIDs)
}

func TestDeleteDeclinedIsSilent(t *testing.T) {
	backend, store, rec, _ := newFixture(t, api.Report{ID: "a"})
	ctx := context.Background()
	store.LoadAll(ctx)

	outcome, err := store.Delete(ctx, "a", reports.ConfirmFunc(func(context.Context, string) bool { return false }))
	require.NoError(t, err)
	assert.Equal(t, reports.DeleteDeclined, outcome)
	assert.Equal(t, 0, backend.Calls("DELETE /api/reports/"))
	assert.Empty(t, rec.All())
	assert.Equal(t, []string{"a"}, ids(store.All()))

	outcome, err = store.Delete(ctx, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, reports.DeleteDeclined, outcome)
}

func TestDeleteFailure(t *testing.T) {
	backend, store, rec, _ := newFixture(t, api.Report{ID: "a"})
	ctx := context.Background()
	store.LoadAll(ctx)
	backend.Configure(func(b *apitest.Backend) { b.DeleteStatus = 500 })

	outcome, err := store.Delete(ctx, "a", yes())
	require.Error(t, err)
	assert.True(t, api.IsStatus(err, 500))
	assert.Equal(t, reports.DeleteFailed, outcome)
	last, _ := rec.Last()
	assert.Equal(t, reports.MsgDeleteFailed, last.Message)
	assert.Equal(t, 1, backend.Calls("GET /api/reports"), "no reload on failure")
}

func writePDF(t *testing.T, dir, name string) api.UploadFile {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\n"), 0o644))
	return api.UploadFile{Name: name, Path: p, MIME: "application/pdf"}
}

func TestUploadPartialSuccess(t *testing.T) {
	backend, store, rec, rb := newFixture(t)
	backend.Configure(func(b *apitest.Backend) {
		b.RejectUploads = map[string]string{"x.pdf": "bad format"}
	})
	dir := t.TempDir()
	ctx := context.Background()

	res, err := store.Upload(ctx, []api.UploadFile{
		writePDF(t, dir, "a.pdf"),
		writePDF(t, dir, "b.pdf"),
		writePDF(t, dir, "x.pdf"),
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	assert.Equal(t, []string{"x.pdf: bad format"}, res.Errors)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, ids(res.Created), ids(store.All()), "collection reloaded")

	all := rec.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Successfully processed 2 file(s)!", all[0].Message)
	assert.Equal(t, notify.SeveritySuccess, all[0].Severity)
	assert.Equal(t, "1 file(s) failed to process", all[1].Message)
	assert.Equal(t, notify.SeverityError, all[1].Severity)

	require.Len(t, rb.published, 1)
	assert.Equal(t, bus.KindReportsUploaded, rb.published[0].Kind)
}

func TestUploadAllRejectedSkipsReload(t *testing.T) {
	backend, store, _, _ := newFixture(t)
	backend.Configure(func(b *apitest.Backend) {
		b.RejectUploads = map[string]string{"x.pdf": "no text"}
	})
	res, err := store.Upload(context.Background(), []api.UploadFile{writePDF(t, t.TempDir(), "x.pdf")})
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, 0, backend.Calls("GET /api/reports"))
}

func TestUploadTransportFailure(t *testing.T) {
	_, store, rec, _ := newFixture(t)
	res, err := store.Upload(context.Background(), []api.UploadFile{{Name: "gone.pdf", Path: "/does/not/exist.pdf"}})
	require.Error(t, err)
	assert.NotNil(t, res.Created)
	assert.NotNil(t, res.Errors)
	last, _ := rec.Last()
	assert.Equal(t, reports.MsgUploadFailed, last.Message)
}

func TestSubscribersAndInvalidation(t *testing.T) {
	backend, store, _, _ := newFixture(t, api.Report{ID: "a"})
	ctx := context.Background()

	var seen [][]string
	store.Subscribe(func(rs []api.Report) { seen = append(seen, ids(rs)) })
	store.LoadAll(ctx)

	require.NoError(t, store.HandleInvalidation(ctx, bus.Invalidation{Kind: "unrelated"}))
	assert.Len(t, seen, 1)

	backend.Configure(func(b *apitest.Backend) { b.ListStatus = 0 })
	require.NoError(t, store.HandleInvalidation(ctx, bus.Invalidation{Kind: bus.KindReportDeleted, Origin: "other"}))
	assert.Len(t, seen, 2)
	assert.Equal(t, 2, backend.Calls("GET /api/reports"))
}
