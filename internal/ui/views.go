package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/chat"
	"github.com/Ashfaaq98/insights-console/internal/notify"
	"github.com/Ashfaaq98/insights-console/internal/reports"
	"github.com/Ashfaaq98/insights-console/internal/upload"
	"github.com/Ashfaaq98/insights-console/internal/view"
)

var _ reports.Confirmer = (*UI)(nil)

// wireState registers the view renderers and the change hooks of every
// component. Hooks may fire on any goroutine, so each one queues its work.
func (ui *UI) wireState() {
	router := ui.dash.Router()
	router.Handle(view.KindStoryboard, func(view.ID) { ui.queue(ui.renderStoryboardPage) })
	router.Handle(view.KindAddReport, func(view.ID) { ui.queue(ui.renderUploadPage) })
	router.Handle(view.KindTimeline, func(view.ID) { ui.queue(ui.renderTimelinePage) })
	router.Handle(view.KindKeyActors, func(view.ID) { go ui.loadKeyActors() })
	router.Handle(view.KindReport, func(v view.ID) {
		ui.queue(func() { ui.renderReportPage(v.ReportID) })
	})
	router.OnHighlight(func(v view.ID) {
		ui.queue(func() { ui.highlightSidebar(v) })
	})

	ui.dash.Reports().Subscribe(func(list []api.Report) {
		ui.queue(func() { ui.rebuildSidebar(list) })
	})
	ui.dash.Uploads().OnChange(func() {
		switch router.Active().Kind {
		case view.KindAddReport:
			ui.queue(ui.renderUploadPage)
		case view.KindReport:
			ui.queue(ui.renderUploadErrors)
		}
	})
	ui.dash.Chat().OnChange(func(reportID string) {
		if router.IsActive(view.Report(reportID)) {
			ui.queue(func() { ui.renderChat(reportID) })
		}
	})
	ui.dash.OnUpdate(router.Refresh)
	ui.notifier.Subscribe(func(notify.Notification) {
		ui.queue(ui.refreshNotifications)
	})
}

// rebuildSidebar lists the fixed views followed by one entry per report.
func (ui *UI) rebuildSidebar(list []api.Report) {
	ui.sidebar.Clear()
	ui.sidebarIDs = ui.sidebarIDs[:0]

	fixed := []struct {
		id    view.ID
		label string
		help  string
	}{
		{view.Storyboard, "Storyboard", "Cross-report narrative"},
		{view.AddReport, "Add Report", "Upload PDF reports"},
		{view.KeyActors, "Key Actors", "Stakeholders across reports"},
		{view.Timeline, "Highlights Timeline", "Report highlights"},
	}
	for _, f := range fixed {
		ui.sidebar.AddItem(f.label, f.help, 0, nil)
		ui.sidebarIDs = append(ui.sidebarIDs, f.id)
	}
	for _, r := range list {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		ui.sidebar.AddItem("  "+tview.Escape(title), "  "+tview.Escape(truncate(r.Summary, 40)), 0, nil)
		ui.sidebarIDs = append(ui.sidebarIDs, view.Report(r.ID))
	}
	ui.sidebar.SetTitle(fmt.Sprintf(" Navigation (%d reports) ", len(list)))
	ui.highlightSidebar(ui.dash.Router().Active())
}

func (ui *UI) highlightSidebar(v view.ID) {
	for i, id := range ui.sidebarIDs {
		if id == v {
			ui.sidebar.SetCurrentItem(i)
			return
		}
	}
}

func (ui *UI) onSidebarSelect(index int) {
	if index < 0 || index >= len(ui.sidebarIDs) {
		return
	}
	ui.navigate(ui.sidebarIDs[index])
}

// navigate switches views. The timeline is fetched off the UI goroutine.
func (ui *UI) navigate(v view.ID) {
	ui.logger.WithField("view", v.String()).Debug("Navigate")
	if v.Kind == view.KindTimeline {
		go func() {
			if err := ui.dash.ShowTimeline(ui.ctx); err != nil {
				ui.logger.WithError(err).Warn("Timeline load failed")
			}
		}()
		return
	}
	if err := ui.dash.Show(ui.ctx, v); err != nil {
		ui.setStatusDirect("[%s]%v[-:-:-]", ui.theme.TagError, err)
		return
	}
	ui.setStatusDirect("[%s]%s[-:-:-]", ui.theme.TagAccent, v.String())
}

func (ui *UI) activeReportID() string {
	if v := ui.dash.Router().Active(); v.Kind == view.KindReport {
		return v.ReportID
	}
	return ""
}

func (ui *UI) showText(title, text string) {
	ui.content.SetTitle(fmt.Sprintf(" %s ", title))
	ui.content.SetText(text)
	ui.content.ScrollToBeginning()
	ui.pages.SwitchToPage(pageText)
}

func (ui *UI) renderStoryboardPage() {
	ui.showText("Storyboard", renderStoryboard(ui.dash.Storyboard(), ui.dash.StoryboardActors(), len(ui.dash.Reports().All()), ui.theme))
}

func (ui *UI) renderTimelinePage() {
	ui.showText("Highlights Timeline", renderTimeline(ui.dash.Timeline(), ui.theme))
}

func (ui *UI) loadKeyActors() {
	list, src := ui.dash.KeyActors(ui.ctx)
	ui.queue(func() {
		if !ui.dash.Router().IsActive(view.KeyActors) {
			return
		}
		ui.showText("Key Actors", renderKeyActors(list, src, ui.theme))
	})
}

func (ui *UI) renderReportPage(id string) {
	r, ok := ui.dash.Reports().GetByID(id)
	if !ok {
		return
	}
	ui.reportView.SetTitle(fmt.Sprintf(" %s ", tview.Escape(truncate(r.Title, 60))))
	ui.reportView.SetText(renderReport(r, ui.dash.Narrative(id), ui.theme))
	ui.renderUploadErrors()
	ui.renderChat(id)
	if draft := ui.dash.Chat().Draft(id); draft != ui.chatInput.GetText() {
		ui.chatInput.SetText(draft)
	}
	ui.pages.SwitchToPage(pageReport)
}

// renderUploadErrors shows the errors of the last upload above the report
// and collapses the banner when there are none.
func (ui *UI) renderUploadErrors() {
	errs := ui.dash.UploadErrors()
	text := renderUploadErrors(errs, ui.theme)
	if text != "" {
		text += fmt.Sprintf("[%s]Press e to dismiss.[-]", ui.theme.TagMuted)
	}
	ui.uploadErrs.SetText(text)
	height := 0
	if len(errs) > 0 {
		height = len(errs) + 2
	}
	ui.reportCol.ResizeItem(ui.uploadErrs, height, 0)
}

func (ui *UI) renderChat(id string) {
	msgs, err := ui.dash.Chat().Messages(id)
	if err != nil {
		return
	}
	ui.chatView.SetText(renderMessages(msgs, ui.theme))
	ui.chatView.ScrollToEnd()
}

func (ui *UI) renderChatHints() {
	parts := make([]string, 0, len(chat.QuickPrompts)+1)
	for i, p := range chat.QuickPrompts {
		parts = append(parts, fmt.Sprintf("[%s]%d[-] %s", ui.theme.TagAccent, i+1, p.Label))
	}
	parts = append(parts, fmt.Sprintf("[%s]p[-] read", ui.theme.TagAccent))
	ui.chatHints.SetText(" " + strings.Join(parts, "  "))
}

func (ui *UI) renderUploadPage() {
	s := ui.dash.Uploads()
	files := s.Files()
	ui.uploadInfo.SetText(renderUpload(files, s.State(), ui.dash.UploadErrors(), ui.theme))

	current := ui.uploadList.GetCurrentItem()
	ui.uploadList.Clear()
	for _, f := range files {
		main, secondary := fileItem(f)
		ui.uploadList.AddItem(tview.Escape(main), tview.Escape(secondary), 0, nil)
	}
	if current < len(files) {
		ui.uploadList.SetCurrentItem(current)
	}
	ui.pages.SwitchToPage(pageUpload)
}

// addPaths adds files typed into the path field. Entries are separated by
// whitespace; directories contribute their direct children and glob
// patterns are expanded.
func (ui *UI) addPaths(input string) {
	paths := expandPaths(strings.Fields(input))
	if len(paths) == 0 {
		ui.setStatusDirect("[%s]No files found[-:-:-]", ui.theme.TagWarning)
		return
	}
	added := ui.dash.Uploads().Drop(upload.InspectAll(paths))
	ui.setStatusDirect("[%s]%d file(s) added[-:-:-]", ui.theme.TagAccent, added)
}

func expandPaths(fields []string) []string {
	var out []string
	for _, f := range fields {
		matches := []string{f}
		if strings.ContainsAny(f, "*?[") {
			m, err := filepath.Glob(f)
			if err != nil {
				continue
			}
			matches = m
		}
		for _, p := range matches {
			st, err := os.Stat(p)
			if err != nil {
				out = append(out, p)
				continue
			}
			if !st.IsDir() {
				out = append(out, p)
				continue
			}
			entries, err := os.ReadDir(p)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if !e.IsDir() {
					out = append(out, filepath.Join(p, e.Name()))
				}
			}
		}
	}
	return out
}

func (ui *UI) removeSelectedFile() {
	idx := ui.uploadList.GetCurrentItem()
	if err := ui.dash.Uploads().Remove(idx); err != nil {
		ui.setStatusDirect("[%s]%v[-:-:-]", ui.theme.TagWarning, err)
	}
}

func (ui *UI) submitUpload() {
	ui.setStatusDirect("[%s]Uploading...[-:-:-]", ui.theme.TagWarning)
	go func() {
		res, err := ui.dash.SubmitUpload(ui.ctx)
		switch {
		case errors.Is(err, upload.ErrNothingToSubmit):
			ui.setStatus("[%s]No files selected[-:-:-]", ui.theme.TagWarning)
		case errors.Is(err, upload.ErrSubmitInProgress):
			ui.setStatus("[%s]Upload already in progress[-:-:-]", ui.theme.TagWarning)
		case err != nil:
			ui.logger.WithError(err).Warn("Upload failed")
			ui.setStatus("[%s]Upload failed[-:-:-]", ui.theme.TagError)
		default:
			ui.setStatus("[%s]%d report(s) created, %d error(s)[-:-:-]", ui.theme.TagAccent, len(res.Created), len(res.Errors))
		}
	}()
}

// sendChat posts text to the report shown when the user pressed Enter.
func (ui *UI) sendChat(text string) {
	id := ui.activeReportID()
	if id == "" || strings.TrimSpace(text) == "" {
		return
	}
	ui.chatInput.SetText("")
	go func() {
		if _, err := ui.dash.SendChat(ui.ctx, id, text); err != nil {
			ui.logger.WithError(err).Debug("Chat send rejected")
		}
	}()
}

func (ui *UI) quickSend(i int) {
	if i < 0 || i >= len(chat.QuickPrompts) {
		return
	}
	id := ui.activeReportID()
	if id == "" {
		return
	}
	p := chat.QuickPrompts[i]
	ui.chatInput.SetText("")
	go func() {
		if _, err := ui.dash.QuickSend(ui.ctx, id, p.Text); err != nil {
			ui.logger.WithError(err).Debug("Quick prompt rejected")
		}
	}()
}

// readLastReply speaks the newest completed model message of a report.
func (ui *UI) readLastReply(reportID string) {
	msgs, err := ui.dash.Chat().Messages(reportID)
	if err != nil {
		return
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != chat.RoleModel || m.Pending {
			continue
		}
		if err := ui.dash.ReadAloud(m); err != nil {
			ui.setStatusDirect("[%s]Read-aloud failed: %v[-:-:-]", ui.theme.TagError, err)
			return
		}
		if ui.dash.Speaker().Available() {
			ui.setStatusDirect("[%s]Reading...[-:-:-] x to stop", ui.theme.TagAccent)
		}
		return
	}
}

func (ui *UI) generateStoryboard() {
	if err := ui.dash.ShowStoryboard(); err != nil {
		return
	}
	go func() {
		if _, err := ui.dash.GenerateStoryboard(ui.ctx); err != nil {
			ui.logger.WithError(err).Warn("Storyboard generation failed")
		}
	}()
}

func (ui *UI) generateNarrative(reportID string) {
	go func() {
		if _, err := ui.dash.GenerateNarrative(ui.ctx, reportID); err != nil {
			ui.logger.WithError(err).Warn("Narrative generation failed")
		}
	}()
}

func (ui *UI) reloadReports() {
	ui.setStatusDirect("[%s]Refreshing...[-:-:-]", ui.theme.TagAccent)
	go func() {
		list := ui.dash.Reports().LoadAll(ui.ctx)
		ui.setStatus("[%s]%d report(s) loaded[-:-:-]", ui.theme.TagAccent, len(list))
		ui.dash.Router().Refresh()
	}()
}

func (ui *UI) deleteReport(reportID string) {
	go func() {
		outcome, err := ui.dash.DeleteReport(ui.ctx, reportID, ui)
		if err != nil {
			ui.logger.WithError(err).WithField("report_id", reportID).Warn("Delete failed")
			return
		}
		if outcome == reports.DeleteDeclined {
			ui.setStatus("[%s]Delete cancelled[-:-:-]", ui.theme.TagMuted)
		}
	}()
}

func (ui *UI) showStats() {
	go func() {
		st, err := ui.dash.Stats(ui.ctx)
		if err != nil {
			return
		}
		ui.queue(func() { ui.showModal("Database Statistics", renderStats(st)) })
	}()
}

func (ui *UI) createBackup() {
	ui.setStatusDirect("[%s]Creating backup...[-:-:-]", ui.theme.TagWarning)
	go func() {
		if _, err := ui.dash.Backup(ui.ctx); err != nil {
			ui.logger.WithError(err).Warn("Backup failed")
		}
	}()
}

// Confirm implements reports.Confirmer with a modal dialog. It blocks until
// the user answers or ctx is done and must not run on the UI goroutine.
func (ui *UI) Confirm(ctx context.Context, message string) bool {
	answer := make(chan bool, 1)
	ui.queue(func() { ui.showConfirm(message, answer) })
	select {
	case ok := <-answer:
		return ok
	case <-ctx.Done():
		ui.queue(ui.restoreMainLayout)
		return false
	}
}

func (ui *UI) showConfirm(message string, answer chan<- bool) {
	reply := func(ok bool) {
		select {
		case answer <- ok:
		default:
		}
		ui.restoreMainLayout()
	}

	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			reply(buttonLabel == "Delete")
		})
	modal.SetTitle(" Confirm ")
	modal.SetBackgroundColor(ui.theme.Surface)
	modal.SetTextColor(ui.theme.TextPrimary)
	modal.SetBorderColor(ui.theme.Error)
	modal.SetButtonBackgroundColor(ui.theme.SelectionBg)
	modal.SetButtonTextColor(ui.theme.SelectionFg)
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc {
			reply(false)
			return nil
		}
		return event
	})

	ui.lastFocus = ui.app.GetFocus()
	ui.app.SetRoot(modal, true)
	ui.app.SetFocus(modal)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
