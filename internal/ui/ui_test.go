package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/api/apitest"
	"github.com/Ashfaaq98/insights-console/internal/chat"
	"github.com/Ashfaaq98/insights-console/internal/dashboard"
	"github.com/Ashfaaq98/insights-console/internal/notify"
	"github.com/Ashfaaq98/insights-console/internal/store"
	"github.com/Ashfaaq98/insights-console/internal/upload"
	"github.com/Ashfaaq98/insights-console/internal/view"
)

func newTestUI(t *testing.T, seed ...api.Report) *UI {
	t.Helper()
	ui, _ := newTestUIWithBackend(t, seed...)
	return ui
}

func newTestUIWithBackend(t *testing.T, seed ...api.Report) (*UI, *apitest.Backend) {
	t.Helper()
	backend := apitest.NewBackend(seed...)
	t.Cleanup(backend.Close)
	client, err := api.New(backend.URL(), api.WithRetry(0, time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	st, err := store.NewStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	emitter := notify.NewEmitter(time.Minute, nil)
	dash, err := dashboard.New(dashboard.Options{
		Backend:  client,
		Durable:  st,
		Activity: st,
		Notifier: emitter,
		Speaker:  chat.NewSpeaker("no-such-tts-binary", emitter, nil),
	})
	if err != nil {
		t.Fatalf("Failed to create dashboard: %v", err)
	}
	ui := NewUI(context.Background(), dash, emitter, nil)
	t.Cleanup(ui.Stop)
	if err := dash.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return ui, backend
}

func sampleReports() []api.Report {
	return []api.Report{
		{ID: "r1", Title: "Energy Outlook", Summary: "Prices rose", KeyFindings: []string{"Demand is up"}},
		{ID: "r2", Title: "Labour Market", Summary: "Unemployment fell"},
	}
}

func frontPage(ui *UI) string {
	name, _ := ui.pages.GetFrontPage()
	return name
}

func TestNewUIRendersStoryboard(t *testing.T) {
	ui := newTestUI(t, sampleReports()...)

	if got := frontPage(ui); got != pageText {
		t.Fatalf("front page = %q, want %q", got, pageText)
	}
	if !strings.Contains(ui.content.GetText(true), "Press g to generate a storyboard from 2 report(s)") {
		t.Errorf("storyboard prompt missing: %q", ui.content.GetText(true))
	}
	if n := ui.sidebar.GetItemCount(); n != 6 {
		t.Errorf("sidebar items = %d, want 6", n)
	}
	if ui.sidebar.GetCurrentItem() != 0 {
		t.Errorf("storyboard should be highlighted, got item %d", ui.sidebar.GetCurrentItem())
	}
}

func TestShowReportRendersReportAndChat(t *testing.T) {
	ui := newTestUI(t, sampleReports()...)

	ui.navigate(view.Report("r1"))

	if got := frontPage(ui); got != pageReport {
		t.Fatalf("front page = %q, want %q", got, pageReport)
	}
	body := ui.reportView.GetText(true)
	if !strings.Contains(body, "Energy Outlook") || !strings.Contains(body, "Demand is up") {
		t.Errorf("report body incomplete: %q", body)
	}
	if !strings.Contains(ui.chatView.GetText(true), chat.Greeting) {
		t.Errorf("chat should start with the greeting, got %q", ui.chatView.GetText(true))
	}
	if ui.sidebar.GetCurrentItem() != 4 {
		t.Errorf("sidebar highlight = %d, want 4", ui.sidebar.GetCurrentItem())
	}

	if _, err := ui.dash.SendChat(context.Background(), "r1", "hello"); err != nil {
		t.Fatalf("SendChat failed: %v", err)
	}
	if !strings.Contains(ui.chatView.GetText(true), "Echo: hello") {
		t.Errorf("reply not rendered: %q", ui.chatView.GetText(true))
	}
}

func TestChatDraftDiscardedOnLeave(t *testing.T) {
	ui := newTestUI(t, sampleReports()...)
	ui.navigate(view.Report("r1"))

	ui.chatInput.SetText("half a question")
	if got := ui.dash.Chat().Draft("r1"); got != "half a question" {
		t.Fatalf("draft = %q", got)
	}

	ui.navigate(view.Storyboard)
	if got := ui.dash.Chat().Draft("r1"); got != "" {
		t.Errorf("draft should be discarded on leave, got %q", got)
	}
}

func TestAddPathsKeepsOnlyPDFs(t *testing.T) {
	ui := newTestUI(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	ui.navigate(view.AddReport)
	ui.addPaths(dir)

	files := ui.dash.Uploads().Files()
	if len(files) != 1 || files[0].Name != "a.pdf" {
		t.Fatalf("pending files = %+v", files)
	}
	if ui.uploadList.GetItemCount() != 1 {
		t.Errorf("upload list items = %d, want 1", ui.uploadList.GetItemCount())
	}
	if active := ui.notifier.Active(); len(active) == 0 || active[len(active)-1].Message != upload.IgnoredMessage {
		t.Errorf("expected ignored-files notification, got %+v", active)
	}

	ui.removeSelectedFile()
	if n := len(ui.dash.Uploads().Files()); n != 0 {
		t.Errorf("files after remove = %d", n)
	}
}

func TestPartialUploadKeepsErrorsOnReportPage(t *testing.T) {
	ui, backend := newTestUIWithBackend(t)
	backend.Configure(func(b *apitest.Backend) {
		b.RejectUploads = map[string]string{"x.pdf": "bad format"}
	})
	dir := t.TempDir()
	for _, name := range []string{"A.pdf", "B.pdf", "x.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ui.navigate(view.AddReport)
	ui.addPaths(dir)
	if n := len(ui.dash.Uploads().Files()); n != 3 {
		t.Fatalf("pending files = %d, want 3", n)
	}
	res, err := ui.dash.SubmitUpload(context.Background())
	if err != nil {
		t.Fatalf("SubmitUpload failed: %v", err)
	}
	if len(res.Created) != 2 {
		t.Fatalf("created = %d, want 2", len(res.Created))
	}

	if got := frontPage(ui); got != pageReport {
		t.Fatalf("front page = %q, want %q", got, pageReport)
	}
	if got := ui.dash.Router().Active(); got != view.Report(res.Created[0].ID) {
		t.Fatalf("active = %v, want first created report", got)
	}
	banner := ui.uploadErrs.GetText(true)
	if !strings.Contains(banner, "x.pdf") || !strings.Contains(banner, "bad format") {
		t.Fatalf("upload errors not shown on report page: %q", banner)
	}

	// Errors survive moving between reports.
	ui.navigate(view.Report(res.Created[1].ID))
	if !strings.Contains(ui.uploadErrs.GetText(true), "x.pdf") {
		t.Errorf("upload errors lost after switching report")
	}

	if !ui.handleRune('e') {
		t.Fatal("e should be consumed on a report page")
	}
	if got := ui.uploadErrs.GetText(true); got != "" {
		t.Errorf("banner after dismiss = %q", got)
	}
	if errs := ui.dash.UploadErrors(); len(errs) != 0 {
		t.Errorf("errors after dismiss = %+v", errs)
	}
}

func TestNextSubmitClearsUploadErrors(t *testing.T) {
	ui, backend := newTestUIWithBackend(t)
	backend.Configure(func(b *apitest.Backend) {
		b.RejectUploads = map[string]string{"x.pdf": "bad format"}
	})
	dir := t.TempDir()
	for _, name := range []string{"A.pdf", "x.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ui.navigate(view.AddReport)
	ui.addPaths(dir)
	if _, err := ui.dash.SubmitUpload(context.Background()); err != nil {
		t.Fatalf("SubmitUpload failed: %v", err)
	}
	if ui.uploadErrs.GetText(true) == "" {
		t.Fatal("banner should show the rejected file")
	}

	ui.navigate(view.AddReport)
	ui.addPaths(filepath.Join(dir, "A.pdf"))
	if _, err := ui.dash.SubmitUpload(context.Background()); err != nil {
		t.Fatalf("second SubmitUpload failed: %v", err)
	}
	if frontPage(ui) != pageReport {
		t.Fatalf("front page = %q, want %q", frontPage(ui), pageReport)
	}
	if got := ui.uploadErrs.GetText(true); got != "" {
		t.Errorf("banner after clean submit = %q", got)
	}
}

func TestSendChatTargetsReportShownAtEnter(t *testing.T) {
	ui, backend := newTestUIWithBackend(t, sampleReports()...)
	started := make(chan string, 1)
	release := make(chan struct{})
	backend.Configure(func(b *apitest.Backend) {
		b.ChatFunc = func(id, msg string) (string, error) {
			started <- id
			<-release
			return "Echo: " + msg, nil
		}
	})

	ui.navigate(view.Report("r1"))
	ui.sendChat("hello")

	select {
	case id := <-started:
		if id != "r1" {
			t.Fatalf("chat sent to %q, want r1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chat request never reached the backend")
	}
	ui.navigate(view.Report("r2"))
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs, err := ui.dash.Chat().Messages("r1")
		if err != nil {
			t.Fatalf("Messages(r1): %v", err)
		}
		last := msgs[len(msgs)-1]
		if !last.Pending && last.Content == "Echo: hello" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("r1 never got the reply: %+v", msgs)
		}
		time.Sleep(10 * time.Millisecond)
	}

	msgs, err := ui.dash.Chat().Messages("r2")
	if err != nil {
		t.Fatalf("Messages(r2): %v", err)
	}
	for _, m := range msgs {
		if strings.Contains(m.Content, "hello") {
			t.Errorf("r2 received a message meant for r1: %+v", m)
		}
	}
}

func TestHandleRune(t *testing.T) {
	ui := newTestUI(t, sampleReports()...)

	if !ui.handleRune('a') {
		t.Fatal("a should be consumed")
	}
	if ui.dash.Router().Active() != view.AddReport {
		t.Errorf("active = %v, want add_report", ui.dash.Router().Active())
	}
	if ui.handleRune('n') {
		t.Error("n outside a report should pass through")
	}
	if ui.handleRune('x') {
		t.Error("x outside a report should reach the upload list")
	}
	if !ui.handleRune('s') || ui.dash.Router().Active() != view.Storyboard {
		t.Error("s should show the storyboard")
	}
}

func TestIsDialogActive(t *testing.T) {
	ui := newTestUI(t)

	ui.focus(ui.sidebar)
	if ui.isDialogActive() {
		t.Error("sidebar focus is not a dialog")
	}
	ui.focus(ui.chatInput)
	if !ui.isDialogActive() {
		t.Error("input focus should bypass global keys")
	}
}

func TestConfirmCancelledContext(t *testing.T) {
	ui := newTestUI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if ui.Confirm(ctx, "Delete?") {
		t.Error("cancelled confirm must decline")
	}
}

func TestConfirmEscDeclines(t *testing.T) {
	ui := newTestUI(t)
	answer := make(chan bool, 1)
	ui.showConfirm("Delete?", answer)

	modal, ok := ui.app.GetFocus().(*tview.Modal)
	if !ok {
		t.Fatalf("focus = %T, want modal", ui.app.GetFocus())
	}
	modal.InputHandler()(tcell.NewEventKey(tcell.KeyEsc, 0, tcell.ModNone), func(tview.Primitive) {})

	select {
	case got := <-answer:
		if got {
			t.Error("Esc must decline")
		}
	default:
		t.Fatal("no answer after Esc")
	}
	if ui.app.GetFocus() != ui.sidebar {
		t.Errorf("focus not restored: %T", ui.app.GetFocus())
	}
}

func TestSetTheme(t *testing.T) {
	ui := newTestUI(t)

	ui.setTheme("light")
	if ui.themeName != "light" || ui.theme.TagAccent != themeLight().TagAccent {
		t.Errorf("theme not applied: %s", ui.themeName)
	}
	ui.setTheme("sepia")
	if ui.themeName != "light" {
		t.Errorf("unknown theme changed state to %s", ui.themeName)
	}
	if got := nextThemeName(themeOrder[len(themeOrder)-1]); got != themeOrder[0] {
		t.Errorf("theme cycle does not wrap: %s", got)
	}
}

func TestRenderChart(t *testing.T) {
	th := themeDark()

	bar := renderChart(api.Chart{
		Type:     "bar",
		Title:    "GDP",
		XAxisKey: "year",
		DataKeys: []api.DataKey{{Key: "gdp"}},
		Data: []map[string]interface{}{
			{"year": "2020", "gdp": 2.0},
			{"year": "2021", "gdp": 4.0},
		},
	}, th)
	if !strings.Contains(bar, "2020") || !strings.Contains(bar, "2021") {
		t.Errorf("labels missing: %q", bar)
	}
	if n := strings.Count(bar, "█"); n != barWidth/2+barWidth {
		t.Errorf("bar cells = %d, want %d", n, barWidth/2+barWidth)
	}

	pie := renderChart(api.Chart{
		Type:     "pie",
		XAxisKey: "sector",
		DataKeys: []api.DataKey{{Key: "share"}},
		Data: []map[string]interface{}{
			{"sector": "industry", "share": 1.0},
			{"sector": "services", "share": "3"},
		},
	}, th)
	if !strings.Contains(pie, "25.0%") || !strings.Contains(pie, "75.0%") {
		t.Errorf("pie shares wrong: %q", pie)
	}

	if empty := renderChart(api.Chart{Title: "Empty"}, th); !strings.Contains(empty, "No data") {
		t.Errorf("empty chart: %q", empty)
	}
}

func TestRenderMessages(t *testing.T) {
	th := themeDark()
	out := renderMessages([]chat.Message{
		{Role: chat.RoleUser, Content: "what about [red]?"},
		{Role: chat.RoleModel, Content: chat.PendingText, Pending: true},
		{Role: chat.RoleModel, Content: "Sorry, I encountered an error: boom", Verbatim: true, Failed: true},
	}, th)

	if !strings.Contains(out, tview.Escape("what about [red]?")) {
		t.Errorf("user text not escaped: %q", out)
	}
	if !strings.Contains(out, chat.PendingText) {
		t.Errorf("pending placeholder missing: %q", out)
	}
	if !strings.Contains(out, "Sorry, I encountered an error: boom") {
		t.Errorf("failure text missing: %q", out)
	}
}

func TestRenderUploadShowsErrors(t *testing.T) {
	out := renderUpload(nil, upload.StateEmpty, []dashboard.UploadError{
		{File: "x.pdf", Message: "bad format", Raw: "x.pdf: bad format"},
		{Message: upload.TransportFailureMessage, Raw: upload.TransportFailureMessage},
	}, themeDark())

	if !strings.Contains(out, "x.pdf[-]: bad format") {
		t.Errorf("file error not rendered: %q", out)
	}
	if !strings.Contains(out, upload.TransportFailureMessage) {
		t.Errorf("transport error not rendered: %q", out)
	}
}

func TestRenderNotifications(t *testing.T) {
	th := themeDark()
	if got := renderNotifications(nil, th); got != "" {
		t.Errorf("empty = %q", got)
	}
	got := renderNotifications([]notify.Notification{
		{Severity: notify.SeverityInfo, Message: "first"},
		{Severity: notify.SeverityError, Message: "second"},
	}, th)
	if !strings.Contains(got, "second") || strings.Contains(got, "first") || !strings.Contains(got, "(+1)") {
		t.Errorf("notifications = %q", got)
	}
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	if got := expandPaths([]string{dir}); len(got) != 2 {
		t.Errorf("directory expansion = %v", got)
	}
	if got := expandPaths([]string{filepath.Join(dir, "a*")}); len(got) != 1 {
		t.Errorf("glob expansion = %v", got)
	}
	missing := filepath.Join(dir, "missing.pdf")
	if got := expandPaths([]string{missing}); len(got) != 1 || got[0] != missing {
		t.Errorf("missing paths are passed through for inspection: %v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("got %q", got)
	}
}
