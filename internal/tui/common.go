// Package tui provides the Bubble Tea report view for reportctl.
//
// The view launches when a human runs `reportctl watch` in an interactive
// terminal. --json, --quiet and a non-TTY stdout each keep it off.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/reportdash/reportctl/internal/report"
	"github.com/reportdash/reportctl/internal/ui"
)

// --- TTY gate ---

// ShouldRunTUI returns true if the TUI should be launched.
// Returns false when stdout is not a terminal, or --json/--quiet flags are set.
//
// Parameters:
//   - jsonOutput: whether --json was passed
//   - quiet: whether --quiet was passed
//
// Returns:
//   - bool: true if the TUI should run
func ShouldRunTUI(jsonOutput, quiet bool) bool {
	if jsonOutput || quiet {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// --- Shared TUI styles (built on internal/ui's palette) ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ui.Indigo)

	sectionStyle = lipgloss.NewStyle().
			Foreground(ui.DimGray).
			Bold(true).
			MarginTop(1)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	dimStyle = lipgloss.NewStyle().
			Foreground(ui.DimGray)

	successStyle = lipgloss.NewStyle().
			Foreground(ui.Green)

	errorStyle = lipgloss.NewStyle().
			Foreground(ui.Red).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(ui.Amber)

	runningStyle = lipgloss.NewStyle().
			Foreground(ui.Teal)

	helpStyle = lipgloss.NewStyle().
			Foreground(ui.Gray)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#374151"))
)

// separator returns a horizontal line of the given width.
func separator(width int) string {
	return separatorStyle.Render(strings.Repeat("─", max(width, 0)))
}

// helpKeyRender renders one key hint of the footer.
func helpKeyRender(key, desc string) string {
	return lipgloss.NewStyle().Foreground(ui.Indigo).Bold(true).Render(key) +
		" " + helpStyle.Render(desc)
}

// newSpinner creates a consistently styled braille spinner.
func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.Teal)
	return s
}

// --- Shared message types ---

// SnapshotMsg carries a tracker state change.
// NextCmd must be issued by the Update handler to continue the streaming chain.
type SnapshotMsg struct {
	Snapshot report.Snapshot
	NextCmd  tea.Cmd
}

// RetryStartedMsg reports the outcome of a retry request.
type RetryStartedMsg struct {
	Err error
}

// CopiedMsg reports the outcome of copying results to the clipboard.
type CopiedMsg struct {
	Rows int
	Err  error
}

// --- Snapshot feed ---

// Feed forwards tracker snapshots to a Bubble Tea program.
type Feed struct {
	ch chan report.Snapshot
}

// NewFeed creates a feed. Register Publish with report.WithOnChange.
func NewFeed() *Feed {
	return &Feed{ch: make(chan report.Snapshot, 16)}
}

// Publish queues a snapshot without blocking. When the view falls behind,
// the oldest queued snapshot is dropped; later snapshots supersede it.
func (f *Feed) Publish(s report.Snapshot) {
	select {
	case f.ch <- s:
		return
	default:
	}
	// Full: drop the stale snapshot.
	select {
	case <-f.ch:
	default:
	}
	select {
	case f.ch <- s:
	default:
	}
}

// waitForSnapshotCmd reads the next snapshot; SnapshotMsg.NextCmd re-issues it.
func waitForSnapshotCmd(ch <-chan report.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap, NextCmd: waitForSnapshotCmd(ch)}
	}
}
