package ui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rivo/tview"

	"github.com/Ashfaaq98/insights-console/internal/actors"
	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/chat"
	"github.com/Ashfaaq98/insights-console/internal/dashboard"
	"github.com/Ashfaaq98/insights-console/internal/markdown"
	"github.com/Ashfaaq98/insights-console/internal/notify"
	"github.com/Ashfaaq98/insights-console/internal/upload"
)

// Width of the longest bar in a chart, in cells.
const barWidth = 40

// Everything in this file is a pure function of state returning tview markup.

func renderStoryboard(st dashboard.StoryboardState, shown []api.Actor, reportCount int, th Theme) string {
	var b strings.Builder
	switch {
	case st.Loading:
		fmt.Fprintf(&b, "[%s]Generating storyboard from %d report(s)...[-]\n", th.TagWarning, reportCount)
		return b.String()
	case st.Err != "":
		fmt.Fprintf(&b, "[%s]%s[-]\n", th.TagError, tview.Escape(st.Err))
		fmt.Fprintf(&b, "\n[%s]Press g to try again.[-]\n", th.TagMuted)
		return b.String()
	case st.Data == nil:
		fmt.Fprintf(&b, "[%s::b]Storyboard[-::-]\n\n", th.TagHeader)
		if reportCount == 0 {
			fmt.Fprintf(&b, "[%s]No reports yet. Press a to add one.[-]\n", th.TagMuted)
			return b.String()
		}
		fmt.Fprintf(&b, "[%s]Press g to generate a storyboard from %d report(s).[-]\n", th.TagMuted, reportCount)
		return b.String()
	}

	sb := st.Data
	fmt.Fprintf(&b, "[%s::b]%s[-::-]\n\n", th.TagHeader, tview.Escape(sb.Title))
	b.WriteString(markdown.ToTerminal(sb.Narrative))
	b.WriteString("\n")
	if strings.TrimSpace(sb.Introspection) != "" {
		fmt.Fprintf(&b, "\n[%s::b]Introspection[-::-]\n", th.TagAccent)
		b.WriteString(markdown.ToTerminal(sb.Introspection))
		b.WriteString("\n")
	}
	if strings.TrimSpace(sb.Retrospection) != "" {
		fmt.Fprintf(&b, "\n[%s::b]Retrospection[-::-]\n", th.TagAccent)
		b.WriteString(markdown.ToTerminal(sb.Retrospection))
		b.WriteString("\n")
	}
	for _, c := range sb.Charts {
		b.WriteString("\n")
		b.WriteString(renderChart(c, th))
	}
	fmt.Fprintf(&b, "\n[%s::b]Key Actors[-::-]\n", th.TagAccent)
	b.WriteString(renderActorList(shown, th))
	return b.String()
}

func renderKeyActors(list []api.Actor, src actors.Source, th Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]Key Actors[-::-] [%s](%s)[-]\n\n", th.TagHeader, th.TagMuted, src)
	if len(list) == 0 {
		fmt.Fprintf(&b, "[%s]No key actors identified yet.[-]\n", th.TagMuted)
		return b.String()
	}
	b.WriteString(renderActorList(list, th))
	return b.String()
}

func renderActorList(list []api.Actor, th Theme) string {
	var b strings.Builder
	for _, a := range list {
		icon := a.Icon
		if icon == "" {
			icon = "•"
		}
		fmt.Fprintf(&b, "%s [%s::b]%s[-::-]\n", tview.Escape(icon), th.TagTextPrimary, tview.Escape(a.Name))
		if a.Description != "" {
			fmt.Fprintf(&b, "    [%s]%s[-]\n", th.TagMuted, tview.Escape(a.Description))
		}
		if n := len(a.Reports); n > 0 {
			fmt.Fprintf(&b, "    [%s]mentioned in %d report(s)[-]\n", th.TagMuted, n)
		}
	}
	return b.String()
}

func renderTimeline(st dashboard.TimelineState, th Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]Highlights Timeline[-::-]\n\n", th.TagHeader)
	switch {
	case st.Loading:
		fmt.Fprintf(&b, "[%s]Loading...[-]\n", th.TagWarning)
	case st.Err != "":
		fmt.Fprintf(&b, "[%s]%s[-]\n", th.TagError, tview.Escape(st.Err))
	case len(st.Items) == 0:
		fmt.Fprintf(&b, "[%s]No highlights yet.[-]\n", th.TagMuted)
	}
	for i, it := range st.Items {
		connector := "├─"
		if i == len(st.Items)-1 {
			connector = "└─"
		}
		fmt.Fprintf(&b, "[%s]%s[-] [%s::b]%s[-::-]\n", th.TagAccent, connector, th.TagTextPrimary, tview.Escape(it.Title))
		if it.Summary != "" {
			rail := "│ "
			if i == len(st.Items)-1 {
				rail = "  "
			}
			fmt.Fprintf(&b, "[%s]%s[-]  [%s]%s[-]\n", th.TagAccent, rail, th.TagMuted, tview.Escape(it.Summary))
		}
	}
	return b.String()
}

func renderReport(r api.Report, nar dashboard.NarrativeState, th Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-::-]\n\n", th.TagHeader, tview.Escape(r.Title))
	if r.Summary != "" {
		b.WriteString(tview.Escape(r.Summary))
		b.WriteString("\n")
	}
	if len(r.KeyFindings) > 0 {
		fmt.Fprintf(&b, "\n[%s::b]Key Findings[-::-]\n", th.TagAccent)
		for _, f := range r.KeyFindings {
			fmt.Fprintf(&b, "• %s\n", tview.Escape(f))
		}
	}
	for _, c := range r.Charts {
		b.WriteString("\n")
		b.WriteString(renderChart(c, th))
	}
	if len(r.Actors) > 0 {
		fmt.Fprintf(&b, "\n[%s::b]Actors[-::-]\n", th.TagAccent)
		b.WriteString(renderActorList(r.Actors, th))
	}

	fmt.Fprintf(&b, "\n[%s::b]Narrative[-::-]\n", th.TagAccent)
	switch {
	case nar.Loading:
		fmt.Fprintf(&b, "[%s]Generating narrative...[-]\n", th.TagWarning)
	case nar.Err != "":
		fmt.Fprintf(&b, "[%s]%s[-]\n", th.TagError, tview.Escape(nar.Err))
	case nar.Text != "":
		b.WriteString(markdown.ToTerminal(nar.Text))
		b.WriteString("\n")
	default:
		fmt.Fprintf(&b, "[%s]Press n to generate a narrative.[-]\n", th.TagMuted)
	}
	return b.String()
}

// renderChart draws bar and line charts as horizontal bars per series and
// pie charts as percentage shares.
func renderChart(c api.Chart, th Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-::-]", th.TagTextPrimary, tview.Escape(c.Title))
	if c.Type != "" {
		fmt.Fprintf(&b, " [%s](%s)[-]", th.TagMuted, tview.Escape(c.Type))
	}
	b.WriteString("\n")
	if c.Description != "" {
		fmt.Fprintf(&b, "[%s]%s[-]\n", th.TagMuted, tview.Escape(c.Description))
	}
	if len(c.Data) == 0 || len(c.DataKeys) == 0 {
		fmt.Fprintf(&b, "[%s]No data[-]\n", th.TagMuted)
		return b.String()
	}

	labels := make([]string, len(c.Data))
	width := 0
	for i, row := range c.Data {
		labels[i] = cellString(row[c.XAxisKey])
		if n := len([]rune(labels[i])); n > width {
			width = n
		}
	}

	if c.Type == "pie" {
		key := c.DataKeys[0].Key
		total := 0.0
		for _, row := range c.Data {
			if v, ok := number(row[key]); ok && v > 0 {
				total += v
			}
		}
		for i, row := range c.Data {
			v, _ := number(row[key])
			share := 0.0
			if total > 0 && v > 0 {
				share = v / total
			}
			color := th.Series[i%len(th.Series)]
			fmt.Fprintf(&b, "  %s [%s]%s[-] %5.1f%%\n", tview.Escape(pad(labels[i], width)), color,
				strings.Repeat("█", int(math.Round(share*barWidth))), share*100)
		}
		return b.String()
	}

	max := 0.0
	for _, row := range c.Data {
		for _, k := range c.DataKeys {
			if v, ok := number(row[k.Key]); ok && math.Abs(v) > max {
				max = math.Abs(v)
			}
		}
	}
	for i, row := range c.Data {
		for j, k := range c.DataKeys {
			label := ""
			if j == 0 {
				label = labels[i]
			}
			v, ok := number(row[k.Key])
			if !ok {
				continue
			}
			n := 0
			if max > 0 {
				n = int(math.Round(math.Abs(v) / max * barWidth))
			}
			color := k.Color
			if color == "" {
				color = th.Series[j%len(th.Series)]
			}
			fmt.Fprintf(&b, "  %s [%s]%s[-] %s", tview.Escape(pad(label, width)), color,
				strings.Repeat("█", n), strconv.FormatFloat(v, 'f', -1, 64))
			if len(c.DataKeys) > 1 {
				fmt.Fprintf(&b, " [%s]%s[-]", th.TagMuted, tview.Escape(k.Label()))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderMessages(msgs []chat.Message, th Theme) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		switch {
		case m.Role == chat.RoleUser:
			fmt.Fprintf(&b, "[%s::b]You[-::-]\n%s\n", th.TagAccent, tview.Escape(m.Content))
		case m.Pending:
			fmt.Fprintf(&b, "[%s::b]Assistant[-::-]\n[%s]%s[-]\n", th.TagHeader, th.TagMuted, tview.Escape(m.Content))
		case m.Failed:
			fmt.Fprintf(&b, "[%s::b]Assistant[-::-]\n[%s]%s[-]\n", th.TagHeader, th.TagError, tview.Escape(m.Content))
		case m.Verbatim:
			fmt.Fprintf(&b, "[%s::b]Assistant[-::-]\n%s\n", th.TagHeader, tview.Escape(m.Content))
		default:
			fmt.Fprintf(&b, "[%s::b]Assistant[-::-]\n%s\n", th.TagHeader, markdown.ToTerminal(m.Content))
		}
	}
	return b.String()
}

func renderUpload(files []upload.File, state upload.State, errs []dashboard.UploadError, th Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]Add Report[-::-]\n", th.TagHeader)
	fmt.Fprintf(&b, "[%s]Enter PDF paths or a folder, then choose Upload. Only PDF files are accepted.[-]\n\n", th.TagMuted)
	switch state {
	case upload.StateEmpty, upload.StateSelecting:
		fmt.Fprintf(&b, "[%s]No files selected.[-]\n", th.TagMuted)
	case upload.StateSubmitting:
		fmt.Fprintf(&b, "[%s]Uploading %d file(s)...[-]\n", th.TagWarning, len(files))
	default:
		var total int64
		for _, f := range files {
			total += f.Size
		}
		if len(files) > 0 {
			fmt.Fprintf(&b, "[%s]%d file(s) selected, %s[-]\n", th.TagTextPrimary, len(files), upload.FormatFileSize(total))
		}
	}
	if len(errs) > 0 {
		b.WriteString("\n")
		b.WriteString(renderUploadErrors(errs, th))
	}
	return b.String()
}

// renderUploadErrors lists the failures of the last submit. It is shown on
// the upload page and as a banner on the report page a partial upload
// switches to.
func renderUploadErrors(errs []dashboard.UploadError, th Theme) string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]Upload errors[-::-]\n", th.TagError)
	for _, e := range errs {
		if e.File != "" {
			fmt.Fprintf(&b, "[%s]%s[-]: %s\n", th.TagError, tview.Escape(e.File), tview.Escape(e.Message))
		} else {
			fmt.Fprintf(&b, "[%s]%s[-]\n", th.TagError, tview.Escape(e.Message))
		}
	}
	return b.String()
}

// fileItem is the list entry of one pending file.
func fileItem(f upload.File) (string, string) {
	return f.Name, fmt.Sprintf("%s  %s", upload.FormatFileSize(f.Size), f.Path)
}

func renderNotifications(active []notify.Notification, th Theme) string {
	if len(active) == 0 {
		return ""
	}
	n := active[len(active)-1]
	color := th.TagAccent
	switch n.Severity {
	case notify.SeveritySuccess:
		color = th.TagSuccess
	case notify.SeverityWarning:
		color = th.TagWarning
	case notify.SeverityError:
		color = th.TagError
	}
	text := fmt.Sprintf("[%s]%s[-]", color, tview.Escape(n.Message))
	if more := len(active) - 1; more > 0 {
		text += fmt.Sprintf(" [%s](+%d)[-]", th.TagMuted, more)
	}
	return text
}

func renderHealth(h *api.Health, th Theme) string {
	if h == nil {
		return fmt.Sprintf("[%s]● backend unreachable[-]", th.TagError)
	}
	color := th.TagSuccess
	if h.Status != "healthy" {
		color = th.TagWarning
	}
	text := fmt.Sprintf("[%s]● backend %s[-]", color, tview.Escape(h.Status))
	if h.AIService != "" {
		text += fmt.Sprintf(" [%s]ai: %s[-]", th.TagMuted, tview.Escape(h.AIService))
	}
	return text
}

func renderStats(st *api.Stats) string {
	return fmt.Sprintf("Total reports: %d\nDatabase size: %s MB\nDatabase path: %s",
		st.TotalReports, strconv.FormatFloat(st.DatabaseSizeMB, 'f', 2, 64), st.DatabasePath)
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
