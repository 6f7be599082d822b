package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/insights-console/internal/dashboard"
	"github.com/Ashfaaq98/insights-console/internal/notify"
	"github.com/Ashfaaq98/insights-console/internal/view"
)

// Content pages
const (
	pageText   = "text"
	pageReport = "report"
	pageUpload = "upload"
)

// UI represents the terminal user interface
type UI struct {
	app      *tview.Application
	dash     *dashboard.App
	notifier *notify.Emitter
	logger   logrus.FieldLogger

	// Layout components
	layout     *tview.Flex
	appTitle   *tview.TextView
	healthBar  *tview.TextView
	sidebar    *tview.List
	pages      *tview.Pages
	content    *tview.TextView
	reportView *tview.TextView
	reportCol  *tview.Flex
	uploadErrs *tview.TextView
	chatView   *tview.TextView
	chatHints  *tview.TextView
	chatInput  *tview.InputField
	uploadInfo *tview.TextView
	uploadPath *tview.InputField
	uploadList *tview.List
	notifyBar  *tview.TextView
	statusBar  *tview.TextView

	// Sidebar entries in display order; index matches the list item.
	sidebarIDs []view.ID

	// Theme state
	theme        Theme
	themeName    string
	hasTrueColor bool

	// Runtime
	running    atomic.Bool
	helpActive bool
	lastFocus  tview.Primitive
	lastStatus string

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// NewUI creates the terminal UI on top of the application state. The emitter
// is the notifier the application was built with.
func NewUI(ctx context.Context, dash *dashboard.App, emitter *notify.Emitter, logger logrus.FieldLogger) *UI {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if emitter == nil {
		emitter = notify.NewEmitter(0, logger)
	}

	uiCtx, cancel := context.WithCancel(ctx)
	ui := &UI{
		app:          tview.NewApplication(),
		dash:         dash,
		notifier:     emitter,
		logger:       logger.WithField("component", "ui"),
		ctx:          uiCtx,
		cancel:       cancel,
		hasTrueColor: detectTrueColor(),
	}

	// Default theme
	ui.themeName = "neon"
	if !ui.hasTrueColor {
		ui.themeName = "high-contrast"
	}
	ui.theme, _ = themeByName(ui.themeName)

	ui.setupLayout()
	ui.setupKeybindings()
	ui.wireState()
	ui.applyTheme()
	return ui
}

// Start runs the TUI until the context is cancelled or the user quits.
func (ui *UI) Start(ctx context.Context) error {
	ui.logger.Info("Starting TUI application")

	// Show UI immediately, then load data asynchronously
	go func() {
		if err := ui.dash.Init(ui.ctx); err != nil {
			ui.logger.WithError(err).Error("Failed to initialize")
		}
		ui.queue(func() {
			ui.healthBar.SetText(renderHealth(ui.dash.Health(), ui.theme))
			ui.setStatusDirect("[%s]Ready[-:-:-]", ui.theme.TagAccent)
		})
	}()

	go func() {
		select {
		case <-ctx.Done():
			ui.logger.Debug("External context cancelled, stopping TUI")
		case <-ui.ctx.Done():
			ui.logger.Debug("UI context cancelled, stopping TUI")
		}
		ui.cancel()
		ui.app.Stop()
	}()

	ui.startRedrawHeartbeat()

	ui.running.Store(true)
	err := ui.app.Run()
	ui.running.Store(false)
	ui.dash.StopReading()
	if err != nil {
		ui.logger.WithError(err).Error("TUI exited with error")
	}
	return err
}

// Stop stops the TUI application
func (ui *UI) Stop() {
	ui.logger.Info("Stopping TUI application")
	ui.running.Store(false)
	ui.cancel()
	ui.app.Stop()
}

// queue runs fn on the UI goroutine and redraws. When the application is
// not running (unit tests) fn runs immediately.
func (ui *UI) queue(fn func()) {
	if ui.running.Load() {
		ui.app.QueueUpdateDraw(fn)
		return
	}
	fn()
}

// setupLayout creates the main layout
func (ui *UI) setupLayout() {
	ui.appTitle = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	ui.healthBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.healthBar.SetText("Connecting...")

	ui.sidebar = tview.NewList()
	ui.sidebar.SetTitle(" Navigation ")
	ui.sidebar.SetBorder(true)
	ui.sidebar.SetTitleAlign(tview.AlignLeft)
	ui.sidebar.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		ui.onSidebarSelect(index)
	})
	ui.rebuildSidebar(nil)

	ui.content = tview.NewTextView()
	ui.content.SetBorder(true)
	ui.content.SetTitleAlign(tview.AlignLeft)
	ui.content.SetDynamicColors(true)
	ui.content.SetWordWrap(true)
	ui.content.SetScrollable(true)

	// Report page: report body on the left, chat on the right
	ui.reportView = tview.NewTextView()
	ui.reportView.SetTitle(" Report ")
	ui.reportView.SetBorder(true)
	ui.reportView.SetTitleAlign(tview.AlignLeft)
	ui.reportView.SetDynamicColors(true)
	ui.reportView.SetWordWrap(true)
	ui.reportView.SetScrollable(true)

	// Errors of the last upload stay above the report a partial upload opens.
	ui.uploadErrs = tview.NewTextView()
	ui.uploadErrs.SetDynamicColors(true)
	ui.uploadErrs.SetWordWrap(true)

	ui.reportCol = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.uploadErrs, 0, 0, false).
		AddItem(ui.reportView, 0, 1, true)

	ui.chatView = tview.NewTextView()
	ui.chatView.SetTitle(" Chat ")
	ui.chatView.SetBorder(true)
	ui.chatView.SetTitleAlign(tview.AlignLeft)
	ui.chatView.SetDynamicColors(true)
	ui.chatView.SetWordWrap(true)
	ui.chatView.SetScrollable(true)

	ui.chatHints = tview.NewTextView().SetDynamicColors(true)

	ui.chatInput = tview.NewInputField().SetLabel(" Ask: ")
	ui.chatInput.SetChangedFunc(func(text string) {
		if id := ui.activeReportID(); id != "" {
			ui.dash.Chat().SetDraft(id, text)
		}
	})
	ui.chatInput.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			ui.sendChat(ui.chatInput.GetText())
		case tcell.KeyEsc, tcell.KeyTab:
			ui.focus(ui.sidebar)
		}
	})

	chatCol := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.chatView, 0, 1, false).
		AddItem(ui.chatHints, 1, 0, false).
		AddItem(ui.chatInput, 1, 0, false)
	reportPage := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.reportCol, 0, 3, true).
		AddItem(chatCol, 0, 2, false)

	// Upload page
	ui.uploadInfo = tview.NewTextView()
	ui.uploadInfo.SetDynamicColors(true)
	ui.uploadInfo.SetWordWrap(true)

	ui.uploadPath = tview.NewInputField().SetLabel(" Path: ")
	ui.uploadPath.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			ui.addPaths(ui.uploadPath.GetText())
			ui.uploadPath.SetText("")
		case tcell.KeyEsc, tcell.KeyTab:
			ui.focus(ui.uploadList)
		}
	})

	ui.uploadList = tview.NewList()
	ui.uploadList.SetTitle(" Selected files ")
	ui.uploadList.SetBorder(true)
	ui.uploadList.SetTitleAlign(tview.AlignLeft)
	ui.uploadList.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyDelete || ev.Key() == tcell.KeyBackspace2 || (ev.Key() == tcell.KeyRune && ev.Rune() == 'x') {
			ui.removeSelectedFile()
			return nil
		}
		return ev
	})

	uploadPage := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.uploadInfo, 0, 1, false).
		AddItem(ui.uploadPath, 1, 0, false).
		AddItem(ui.uploadList, 0, 2, true)
	uploadPage.SetBorder(true)
	uploadPage.SetTitle(" Add Report ")
	uploadPage.SetTitleAlign(tview.AlignLeft)

	ui.pages = tview.NewPages().
		AddPage(pageText, ui.content, true, true).
		AddPage(pageReport, reportPage, true, false).
		AddPage(pageUpload, uploadPage, true, false)

	ui.notifyBar = tview.NewTextView().SetDynamicColors(true)
	ui.statusBar = tview.NewTextView().SetDynamicColors(true)

	leftCol := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.appTitle, 1, 0, false).
		AddItem(ui.healthBar, 1, 0, false).
		AddItem(ui.sidebar, 0, 1, true)

	ui.layout = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(leftCol, 36, 0, true).
		AddItem(ui.pages, 0, 1, false)

	ui.restoreMainLayout()
	ui.setStatusDirect("[%s]Loading reports...[-:-:-]", ui.theme.TagWarning)
}

func (ui *UI) mainRoot() *tview.Flex {
	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.layout, 0, 1, true).
		AddItem(ui.notifyBar, 1, 0, false).
		AddItem(ui.statusBar, 1, 0, false)
}

func (ui *UI) setupKeybindings() {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// While a modal or input is active, allow it to handle all keys.
		if ui.isDialogActive() {
			if event.Key() == tcell.KeyCtrlC {
				ui.app.Stop()
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC:
			ui.app.Stop()
			return nil
		case tcell.KeyEsc:
			ui.setStatusDirect("[%s]Ready[-:-:-]", ui.theme.TagAccent)
			return nil
		case tcell.KeyTab:
			ui.cycleFocus()
			return nil
		case tcell.KeyRune:
			if ui.handleRune(event.Rune()) {
				return nil
			}
		}
		return event
	})
}

// handleRune runs the global single-key shortcuts and reports whether the
// key was consumed.
func (ui *UI) handleRune(r rune) bool {
	active := ui.dash.Router().Active()
	inReport := active.Kind == view.KindReport

	switch r {
	case 'q', 'Q':
		ui.app.Stop()
	case '?', 'h':
		ui.showHelp()
	case 's':
		ui.navigate(view.Storyboard)
	case 'a':
		ui.navigate(view.AddReport)
	case 'k':
		ui.navigate(view.KeyActors)
	case 't':
		ui.navigate(view.Timeline)
	case 'T':
		ui.cycleTheme()
	case 'r':
		ui.reloadReports()
	case 'g':
		ui.generateStoryboard()
	case 'S':
		ui.showStats()
	case 'B':
		ui.createBackup()
	case 'i':
		switch active.Kind {
		case view.KindReport:
			ui.focus(ui.chatInput)
		case view.KindAddReport:
			ui.focus(ui.uploadPath)
		default:
			return false
		}
	case 'u':
		if active.Kind != view.KindAddReport {
			return false
		}
		ui.submitUpload()
	case 'n':
		if !inReport {
			return false
		}
		ui.generateNarrative(active.ReportID)
	case 'd':
		if !inReport {
			return false
		}
		ui.deleteReport(active.ReportID)
	case 'p':
		if !inReport {
			return false
		}
		ui.readLastReply(active.ReportID)
	case 'e':
		if !inReport && active.Kind != view.KindAddReport {
			return false
		}
		ui.dash.DismissUploadErrors()
	case 'x':
		if !inReport {
			return false
		}
		ui.dash.StopReading()
		ui.setStatusDirect("[%s]Stopped reading[-:-:-]", ui.theme.TagMuted)
	case '1', '2', '3':
		if !inReport {
			return false
		}
		ui.quickSend(int(r - '1'))
	default:
		return false
	}
	return true
}

// showHelp lists the key bindings.
func (ui *UI) showHelp() {
	type kv struct{ key, label string }
	sections := []struct {
		title string
		keys  []kv
	}{
		{"Navigation", []kv{
			{"s", "storyboard"},
			{"a", "add report"},
			{"k", "key actors"},
			{"t", "highlights timeline"},
			{"Enter", "open sidebar item"},
			{"Tab", "cycle focus"},
		}},
		{"Reports", []kv{
			{"i", "focus chat or path input"},
			{"1 2 3", "quick prompts"},
			{"n", "generate narrative"},
			{"p / x", "read reply aloud / stop"},
			{"d", "delete report"},
			{"u", "upload selected files"},
			{"e", "dismiss upload errors"},
		}},
		{"Backend", []kv{
			{"g", "generate storyboard"},
			{"r", "reload reports"},
			{"S", "database statistics"},
			{"B", "create database backup"},
		}},
		{"General", []kv{
			{"T", "cycle theme"},
			{"Esc", "clear status / leave input"},
			{"q", "quit"},
		}},
	}

	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", s.title)
		for _, k := range s.keys {
			fmt.Fprintf(&b, "%-8s %s\n", k.key, k.label)
		}
	}
	ui.helpActive = true
	ui.showModal("Help", b.String())
}

// showModal displays a modal dialog
func (ui *UI) showModal(title, text string) {
	modal := tview.NewModal()
	modal.SetText(text)
	modal.SetTitle(fmt.Sprintf(" %s ", title))
	modal.AddButtons([]string{"Close"})

	modal.SetBackgroundColor(ui.theme.Surface)
	modal.SetTextColor(ui.theme.TextPrimary)
	modal.SetBorderColor(ui.theme.FocusBorder)
	modal.SetButtonBackgroundColor(ui.theme.SelectionBg)
	modal.SetButtonTextColor(ui.theme.SelectionFg)

	modal.SetDoneFunc(func(buttonIndex int, buttonLabel string) {
		ui.restoreMainLayout()
	})
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyEnter, tcell.KeyRune:
			ui.restoreMainLayout()
			return nil
		}
		return event
	})

	ui.lastFocus = ui.app.GetFocus()
	ui.app.SetRoot(modal, true)
	ui.app.SetFocus(modal)
}

// restoreMainLayout restores the main TUI layout after closing a modal/help view
func (ui *UI) restoreMainLayout() {
	ui.helpActive = false
	ui.app.SetRoot(ui.mainRoot(), true)

	target := ui.lastFocus
	ui.lastFocus = nil
	if target == nil {
		target = ui.sidebar
	}
	ui.focus(target)
}

func (ui *UI) focus(p tview.Primitive) {
	ui.app.SetFocus(p)
	ui.highlightFocus(p)
}

// cycleFocus cycles focus between the sidebar, the content and the active input.
func (ui *UI) cycleFocus() {
	var main, input tview.Primitive = ui.content, nil
	switch ui.dash.Router().Active().Kind {
	case view.KindReport:
		main, input = ui.reportView, ui.chatInput
	case view.KindAddReport:
		main, input = ui.uploadList, ui.uploadPath
	}

	switch ui.app.GetFocus() {
	case ui.sidebar:
		ui.focus(main)
		ui.setStatusDirect("[%s]Focus: Content[-:-:-] - Use arrows to scroll", ui.theme.TagAccent)
	case main:
		if input != nil {
			ui.focus(input)
			ui.setStatusDirect("[%s]Focus: Input[-:-:-] - Enter to submit, Esc to leave", ui.theme.TagAccent)
			return
		}
		fallthrough
	default:
		ui.focus(ui.sidebar)
		ui.setStatusDirect("[%s]Focus: Navigation[-:-:-] - Use arrows to navigate, Enter to select", ui.theme.TagAccent)
	}
}

func (ui *UI) highlightFocus(focused tview.Primitive) {
	for _, b := range []*tview.Box{ui.sidebar.Box, ui.content.Box, ui.reportView.Box, ui.chatView.Box, ui.uploadList.Box} {
		b.SetBorderColor(ui.theme.Border)
	}
	switch focused {
	case ui.sidebar:
		ui.sidebar.SetBorderColor(ui.theme.FocusBorder)
	case ui.content:
		ui.content.SetBorderColor(ui.theme.FocusBorder)
	case ui.reportView:
		ui.reportView.SetBorderColor(ui.theme.FocusBorder)
	case ui.chatInput:
		ui.chatView.SetBorderColor(ui.theme.FocusBorder)
	case ui.uploadList:
		ui.uploadList.SetBorderColor(ui.theme.FocusBorder)
	}
}

// isDialogActive returns true when a dialog, input or the help view is
// focused to bypass global shortcuts.
func (ui *UI) isDialogActive() bool {
	if ui.helpActive {
		return true
	}
	switch ui.app.GetFocus().(type) {
	case *tview.Form,
		*tview.Modal,
		*tview.InputField,
		*tview.TextArea,
		*tview.DropDown,
		*tview.Button:
		return true
	}
	return false
}

// setStatus updates the status bar from any goroutine.
func (ui *UI) setStatus(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	ui.queue(func() { ui.setStatusDirect("%s", message) })
}

// setStatusDirect updates the status bar immediately. Use this only from the
// UI goroutine (input handlers, selection callbacks, queued closures).
func (ui *UI) setStatusDirect(format string, args ...interface{}) {
	ui.statusBar.SetText(ui.statusText(fmt.Sprintf(format, args...)))
}

func (ui *UI) statusText(message string) string {
	ui.lastStatus = message
	return fmt.Sprintf("[%s]%s[-] [%s]|[-] %s [%s]|[-] %s",
		ui.theme.TagMuted, time.Now().Format("15:04:05"),
		ui.theme.TagTextPrimary,
		message,
		ui.theme.TagMuted,
		ui.buildShortcutHints())
}

func (ui *UI) buildShortcutHints() string {
	accent := ui.theme.TagAccent
	type kv struct{ key, label string }
	hints := []kv{{"?", "help"}}
	switch ui.dash.Router().Active().Kind {
	case view.KindReport:
		hints = append(hints, kv{"i", "chat"}, kv{"n", "narrative"}, kv{"d", "delete"})
	case view.KindAddReport:
		hints = append(hints, kv{"i", "path"}, kv{"u", "upload"}, kv{"x", "remove"})
	case view.KindStoryboard:
		hints = append(hints, kv{"g", "generate"})
	}
	hints = append(hints, kv{"q", "quit"})

	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = fmt.Sprintf("[%s]%s[-]:%s", accent, h.key, h.label)
	}
	return strings.Join(parts, " ")
}

// applyTheme pushes theme colors to widgets
func (ui *UI) applyTheme() {
	ui.logger.WithField("theme", ui.themeName).Debug("Applying theme")

	tview.Styles.PrimitiveBackgroundColor = ui.theme.Surface
	tview.Styles.PrimaryTextColor = ui.theme.TextPrimary
	tview.Styles.BorderColor = ui.theme.Border

	ui.appTitle.SetBackgroundColor(ui.theme.Surface)
	ui.appTitle.SetText(fmt.Sprintf(" [%s::b]Insights Console[-::-]", ui.theme.TagAccent))
	ui.healthBar.SetBackgroundColor(ui.theme.Surface)

	ui.sidebar.SetMainTextColor(ui.theme.TextPrimary)
	ui.sidebar.SetSecondaryTextColor(ui.theme.TextMuted)
	ui.sidebar.SetSelectedTextColor(ui.theme.SelectionFg)
	ui.sidebar.SetSelectedBackgroundColor(ui.theme.SelectionBg)
	ui.sidebar.SetBackgroundColor(ui.theme.Surface)

	ui.uploadList.SetMainTextColor(ui.theme.TextPrimary)
	ui.uploadList.SetSecondaryTextColor(ui.theme.TextMuted)
	ui.uploadList.SetSelectedTextColor(ui.theme.SelectionFg)
	ui.uploadList.SetSelectedBackgroundColor(ui.theme.SelectionBg)
	ui.uploadList.SetBackgroundColor(ui.theme.Surface)

	for _, tv := range []*tview.TextView{ui.content, ui.reportView, ui.uploadErrs, ui.chatView, ui.chatHints, ui.uploadInfo, ui.notifyBar, ui.statusBar} {
		tv.SetBackgroundColor(ui.theme.Surface)
		tv.SetTextColor(ui.theme.TextPrimary)
	}
	for _, in := range []*tview.InputField{ui.chatInput, ui.uploadPath} {
		in.SetBackgroundColor(ui.theme.Surface)
		in.SetLabelColor(ui.theme.Accent)
		in.SetFieldBackgroundColor(ui.theme.SelectionBg)
		in.SetFieldTextColor(ui.theme.SelectionFg)
	}

	ui.highlightFocus(ui.app.GetFocus())
	ui.renderChatHints()
	ui.refreshNotifications()
	if ui.lastStatus != "" {
		ui.setStatusDirect("%s", ui.lastStatus)
	}
}

func (ui *UI) cycleTheme() {
	ui.setTheme(nextThemeName(ui.themeName))
}

// setTheme applies a named theme and re-renders the active view.
func (ui *UI) setTheme(name string) {
	th, ok := themeByName(name)
	if !ok {
		ui.setStatusDirect("[%s]Unknown theme %q[-:-:-]", ui.theme.TagError, name)
		return
	}
	ui.theme = th
	ui.themeName = name
	ui.applyTheme()
	ui.dash.Router().Refresh()
	ui.setStatusDirect("[%s]Theme: %s[-:-:-]", ui.theme.TagAccent, name)
}

// startRedrawHeartbeat periodically prunes expired notifications and
// requests a redraw for terminals that miss repaints.
func (ui *UI) startRedrawHeartbeat() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ui.ctx.Done():
				return
			case <-ticker.C:
				if ui.running.Load() {
					ui.app.QueueUpdateDraw(ui.refreshNotifications)
				}
			}
		}
	}()
}

func (ui *UI) refreshNotifications() {
	ui.notifyBar.SetText(renderNotifications(ui.notifier.Active(), ui.theme))
}
