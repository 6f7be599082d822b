// Package apitest provides an in-memory fake of the insights backend for
// tests and local demos.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"

	"github.com/Ashfaaq98/insights-console/internal/api"
)

// Backend is a fake insights API served by httptest.
type Backend struct {
	mu      sync.Mutex
	reports []api.Report
	nextID  int
	calls   map[string]int

	// ListStatus, when non-zero, makes GET /api/reports fail with that status.
	ListStatus int
	// DeleteStatus, when non-zero, makes DELETE fail with that status.
	DeleteStatus int
	// RejectUploads maps a filename to the error message the server reports
	// for it ("<name>: <message>").
	RejectUploads map[string]string
	// ChatFunc computes chat responses. A non-nil error yields HTTP 500.
	ChatFunc func(reportID, message string) (string, error)
	// Storyboard is returned by POST /api/generate-storyboard.
	Storyboard api.Storyboard
	// Timeline is returned by GET /api/timeline.
	Timeline []api.TimelineItem
	// BackupDetail, when non-empty, makes POST /api/backup fail with it.
	BackupDetail string

	srv *httptest.Server
}

// NewBackend starts a fake backend seeded with reports.
func NewBackend(seed ...api.Report) *Backend {
	b := &Backend{
		reports: append([]api.Report(nil), seed...),
		nextID:  len(seed) + 1,
		calls:   make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reports", b.handleReports)
	mux.HandleFunc("/api/reports/upload", b.handleUpload)
	mux.HandleFunc("/api/reports/", b.handleReport)
	mux.HandleFunc("/api/chat/", b.handleChat)
	mux.HandleFunc("/api/generate-storyboard", b.handleStoryboard)
	mux.HandleFunc("/api/generate-narrative/", b.handleNarrative)
	mux.HandleFunc("/api/timeline", b.handleTimeline)
	mux.HandleFunc("/api/stats", b.handleStats)
	mux.HandleFunc("/api/backup", b.handleBackup)
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.Health{Status: "healthy", AIService: "disabled"})
	})
	b.srv = httptest.NewServer(mux)
	return b
}

// URL is the base URL of the fake.
func (b *Backend) URL() string { return b.srv.URL }

// Close stops the server.
func (b *Backend) Close() { b.srv.Close() }

// Calls returns how often "METHOD /path-prefix" was hit.
func (b *Backend) Calls(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

// Reports returns the server-side collection.
func (b *Backend) Reports() []api.Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.Report(nil), b.reports...)
}

// Configure runs fn with the backend locked, for changing knobs while
// requests may be in flight.
func (b *Backend) Configure(fn func(b *Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *Backend) count(r *http.Request, key string) {
	b.mu.Lock()
	b.calls[r.Method+" "+key]++
	b.mu.Unlock()
}

func (b *Backend) handleReports(w http.ResponseWriter, r *http.Request) {
	b.count(r, "/api/reports")
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	b.mu.Lock()
	status := b.ListStatus
	reports := append([]api.Report(nil), b.reports...)
	b.mu.Unlock()
	if status != 0 {
		writeDetail(w, status, "Failed to load reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

func (b *Backend) handleReport(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	b.count(r, "/api/reports/")
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i, rep := range b.reports {
		if rep.ID == id {
			idx = i
			break
		}
	}
	switch r.Method {
	case http.MethodGet:
		if idx < 0 {
			writeDetail(w, http.StatusNotFound, "Report not found")
			return
		}
		writeJSON(w, http.StatusOK, b.reports[idx])
	case http.MethodDelete:
		if b.DeleteStatus != 0 {
			writeDetail(w, b.DeleteStatus, "Failed to delete report")
			return
		}
		if idx < 0 {
			writeDetail(w, http.StatusNotFound, "Report not found")
			return
		}
		b.reports = append(b.reports[:idx], b.reports[idx+1:]...)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Report deleted successfully"})
	default:
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	b.count(r, "/api/reports/upload")
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	files := r.MultipartForm.File["files"]
	b.mu.Lock()
	defer b.mu.Unlock()
	created := []api.Report{}
	errs := []string{}
	for _, fh := range files {
		if msg, bad := b.RejectUploads[fh.Filename]; bad {
			errs = append(errs, fmt.Sprintf("%s: %s", fh.Filename, msg))
			continue
		}
		rep := api.Report{
			ID:          fmt.Sprintf("rep-%d", b.nextID),
			Title:       strings.TrimSuffix(fh.Filename, path.Ext(fh.Filename)),
			Summary:     "Uploaded from " + fh.Filename,
			KeyFindings: []string{},
			Charts:      []api.Chart{},
		}
		b.nextID++
		b.reports = append(b.reports, rep)
		created = append(created, rep)
	}
	writeJSON(w, http.StatusOK, api.UploadResponse{Reports: created, Errors: errs, SuccessCount: len(created)})
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	b.count(r, "/api/chat/")
	id := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	msg := r.FormValue("message")
	b.mu.Lock()
	fn := b.ChatFunc
	b.mu.Unlock()
	if fn == nil {
		writeJSON(w, http.StatusOK, map[string]string{"response": "Echo: " + msg})
		return
	}
	resp, err := fn(id, msg)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": resp})
}

func (b *Backend) handleStoryboard(w http.ResponseWriter, r *http.Request) {
	b.count(r, "/api/generate-storyboard")
	b.mu.Lock()
	sb := b.Storyboard
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, sb)
}

func (b *Backend) handleNarrative(w http.ResponseWriter, r *http.Request) {
	b.count(r, "/api/generate-narrative/")
	id := strings.TrimPrefix(r.URL.Path, "/api/generate-narrative/")
	writeJSON(w, http.StatusOK, map[string]string{"narrative": "# Narrative\n\nStory of **" + id + "**."})
}

func (b *Backend) handleTimeline(w http.ResponseWriter, r *http.Request) {
	b.count(r, "/api/timeline")
	b.mu.Lock()
	tl := b.Timeline
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"timeline": tl})
}

func (b *Backend) handleStats(w http.ResponseWriter, r *http.Request) {
	b.count(r, "/api/stats")
	b.mu.Lock()
	n := len(b.reports)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, api.Stats{TotalReports: n, DatabaseSizeMB: 1.25, DatabasePath: "dashboard.db"})
}

func (b *Backend) handleBackup(w http.ResponseWriter, r *http.Request) {
	b.count(r, "/api/backup")
	b.mu.Lock()
	detail := b.BackupDetail
	b.mu.Unlock()
	if detail != "" {
		writeDetail(w, http.StatusInternalServerError, detail)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Database backed up to backup_dashboard.db"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
