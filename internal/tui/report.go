// Package tui provides the report view that follows generation in real time.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/reportdash/reportctl/internal/report"
	"github.com/reportdash/reportctl/internal/status"
	"github.com/reportdash/reportctl/internal/ui"
)

const (
	maxColumnWidth = 32
	retryTimeout   = 30 * time.Second
)

// Tracker is the part of *report.Tracker the view drives.
type Tracker interface {
	Snapshot() report.Snapshot
	Retry(ctx context.Context) error
}

// reportModel renders one report while it is generated and loaded.
type reportModel struct {
	// tracker owns the report state; the view only reads snapshots.
	tracker Tracker

	// feed delivers snapshots published by the tracker.
	feed *Feed

	// reportURL links to the report in the dashboard, may be empty.
	reportURL string

	// snap is the latest snapshot rendered.
	snap report.Snapshot

	// shown is the result table currently loaded into results.
	shown   *report.ResultTable
	results table.Model

	spinner   spinner.Model
	startTime time.Time

	// notice is a transient line under the status, such as "Copied 3 rows".
	notice string

	retrying bool

	// width and height track terminal dimensions.
	width  int
	height int
}

// newReportModel creates the report view.
//
// Parameters:
//   - tracker: the attached tracker
//   - feed: the feed registered as the tracker's change listener
//   - reportURL: dashboard link of the report, may be empty
//
// Returns:
//   - reportModel: the initialized model
func newReportModel(tracker Tracker, feed *Feed, reportURL string) reportModel {
	return reportModel{
		tracker:   tracker,
		feed:      feed,
		reportURL: reportURL,
		snap:      tracker.Snapshot(),
		results:   table.New(table.WithFocused(true)),
		spinner:   newSpinner(),
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

// RunReport runs the report view until the user quits. The caller detaches
// the tracker afterwards.
//
// Parameters:
//   - tracker: the attached tracker
//   - feed: the feed registered with report.WithOnChange
//   - reportURL: dashboard link shown in the footer, may be empty
//
// Returns:
//   - report.Snapshot: the last snapshot the view rendered
//   - error: any error from the Bubble Tea runtime
func RunReport(tracker Tracker, feed *Feed, reportURL string) (report.Snapshot, error) {
	p := tea.NewProgram(newReportModel(tracker, feed, reportURL), tea.WithAltScreen())
	final, err := p.Run()
	if m, ok := final.(reportModel); ok {
		return m.snap, err
	}
	return tracker.Snapshot(), err
}

// --- Tea commands ---

// tickCmd sends a tick every second for the elapsed time display.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

// tickMsg is sent every second to update the elapsed timer.
type tickMsg struct{}

func retryCmd(tracker Tracker) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), retryTimeout)
		defer cancel()
		return RetryStartedMsg{Err: tracker.Retry(ctx)}
	}
}

func copyCmd(t *report.ResultTable) tea.Cmd {
	return func() tea.Msg {
		var b strings.Builder
		if err := t.WriteCSV(&b); err != nil {
			return CopiedMsg{Err: err}
		}
		return CopiedMsg{Rows: t.Len(), Err: clipboard.WriteAll(b.String())}
	}
}

// --- Bubble Tea interface ---

// Init starts the spinner, the timer and the snapshot stream.
func (m reportModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(),
		waitForSnapshotCmd(m.feed.ch),
	)
}

// Update handles messages for the report view.
func (m reportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeTable()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.snap.Busy {
			return m, tickCmd()
		}
		return m, nil

	case SnapshotMsg:
		restart := !m.snap.Busy && msg.Snapshot.Busy
		m.apply(msg.Snapshot)
		if restart {
			m.startTime = time.Now()
			return m, tea.Batch(msg.NextCmd, tickCmd())
		}
		return m, msg.NextCmd

	case RetryStartedMsg:
		m.retrying = false
		if msg.Err != nil {
			m.notice = "Retry failed: " + msg.Err.Error()
		} else {
			m.notice = ""
		}
		return m, nil

	case CopiedMsg:
		if msg.Err != nil {
			m.notice = "Copy failed: " + msg.Err.Error()
		} else {
			m.notice = fmt.Sprintf("Copied %d rows to the clipboard", msg.Rows)
		}
		return m, nil
	}

	return m, nil
}

// apply renders a newer snapshot. Older snapshots are ignored.
func (m *reportModel) apply(s report.Snapshot) {
	if s.Version < m.snap.Version {
		return
	}
	m.snap = s
	if s.Table != m.shown {
		m.shown = s.Table
		m.loadTable()
	}
}

// loadTable fills the bubbles table from the shown result.
func (m *reportModel) loadTable() {
	if m.shown == nil {
		m.results.SetRows(nil)
		m.results.SetColumns(nil)
		return
	}

	cols := make([]table.Column, len(m.shown.Header))
	for i, name := range m.shown.Header {
		cols[i] = table.Column{Title: name, Width: len(name)}
	}
	rows := make([]table.Row, 0, m.shown.Len())
	for _, rec := range m.shown.Records() {
		for i, v := range rec {
			cols[i].Width = max(cols[i].Width, len(v))
		}
		rows = append(rows, table.Row(rec))
	}
	for i := range cols {
		cols[i].Width = min(cols[i].Width, maxColumnWidth)
	}

	// Columns first: rows are rendered against the current columns.
	m.results.SetRows(nil)
	m.results.SetColumns(cols)
	m.results.SetRows(rows)
	m.resizeTable()
}

func (m *reportModel) resizeTable() {
	m.results.SetWidth(max(m.width-4, 20))
	// Header, status block and footer take roughly ten lines.
	m.results.SetHeight(max(m.height-10, 3))
}

// canRetry reports whether a retry is offered: only once generation has
// finished one way or the other.
func (m reportModel) canRetry() bool {
	if m.retrying || m.snap.Busy {
		return false
	}
	return m.snap.Status == status.StatusError || m.snap.Status == status.StatusComplete
}

// handleKey processes key events in the report view.
func (m reportModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit

	case "r":
		if m.canRetry() {
			m.retrying = true
			m.notice = "Re-running generation..."
			return m, retryCmd(m.tracker)
		}
		return m, nil

	case "c":
		if m.snap.Table != nil {
			return m, copyCmd(m.snap.Table)
		}
		return m, nil

	case "o":
		if m.reportURL != "" {
			_ = ui.OpenBrowser(m.reportURL)
		}
		return m, nil
	}

	if m.shown != nil {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

// --- View rendering ---

// View renders the report screen.
func (m reportModel) View() string {
	var b strings.Builder
	w := m.width
	if w == 0 {
		w = 80
	}

	name := m.snap.Name
	if name == "" {
		name = m.snap.ID
	}
	header := titleStyle.Render(" REPORTCTL") + "  " + normalStyle.Render(name) + "  " + m.statusIcon()
	if m.snap.Busy {
		header += "  " + dimStyle.Render(time.Since(m.startTime).Truncate(time.Second).String())
	}
	b.WriteString(header + "\n")
	b.WriteString(separator(min(w, 80)) + "\n")

	b.WriteString(sectionStyle.Render("  Status") + "\n")
	b.WriteString("  " + ui.StatusStyle(string(m.snap.Status)).Render(string(m.snap.Status)))
	if m.snap.Detail != "" {
		b.WriteString("  " + dimStyle.Render(m.snap.Detail))
	}
	b.WriteString("\n")
	if m.snap.LastError != nil {
		b.WriteString("  " + errorStyle.Render(m.snap.LastError.Error()) + "\n")
	}
	if m.notice != "" {
		b.WriteString("  " + warningStyle.Render(m.notice) + "\n")
	}

	if m.snap.Query != "" {
		b.WriteString(sectionStyle.Render("  Query") + "\n")
		b.WriteString("  " + runningStyle.Render(truncate(m.snap.Query, w-4)) + "\n")
	}

	if m.shown != nil {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("  Results (%d rows)", m.shown.Len())) + "\n")
		if len(m.shown.Header) == 0 {
			b.WriteString("  " + dimStyle.Render("The report returned no data.") + "\n")
		} else {
			b.WriteString(m.results.View() + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString("  " + separator(min(w-4, 76)) + "\n")
	b.WriteString("  " + m.renderHelp() + "\n")
	return b.String()
}

// statusIcon returns the header icon for the current status.
func (m reportModel) statusIcon() string {
	if m.snap.Busy {
		return m.spinner.View()
	}
	switch m.snap.Status {
	case status.StatusComplete:
		return successStyle.Render("✓")
	case status.StatusError:
		return errorStyle.Render("✗")
	}
	return dimStyle.Render("⏳")
}

// renderHelp renders the bottom key hint bar.
func (m reportModel) renderHelp() string {
	var keys []string
	if m.shown != nil {
		keys = append(keys, helpKeyRender("↑/↓", "scroll"))
	}
	if m.snap.Table != nil {
		keys = append(keys, helpKeyRender("c", "copy CSV"))
	}
	if m.canRetry() {
		keys = append(keys, helpKeyRender("r", "retry"))
	}
	if m.reportURL != "" {
		keys = append(keys, helpKeyRender("o", "open"))
	}
	keys = append(keys, helpKeyRender("q", "quit"))
	return strings.Join(keys, "  ")
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
