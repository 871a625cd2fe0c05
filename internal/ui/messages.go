// Package ui provides message printing utilities.
package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/reportdash/reportctl/internal/status"
)

var (
	outputMu  sync.Mutex
	output    io.Writer = os.Stdout
	quietMode bool
)

// SetOutput redirects all printing helpers to w. A nil w restores stdout.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	output = w
}

// SetQuietMode suppresses informational output. Errors and data are
// still printed.
func SetQuietMode(quiet bool) {
	outputMu.Lock()
	defer outputMu.Unlock()
	quietMode = quiet
}

// IsQuiet reports whether quiet mode is on.
func IsQuiet() bool {
	outputMu.Lock()
	defer outputMu.Unlock()
	return quietMode
}

func writer() io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()
	return output
}

func emit(s string) {
	fmt.Fprintln(writer(), s)
}

// Println prints an empty line.
func Println() {
	if IsQuiet() {
		return
	}
	emit("")
}

// PrintSuccess prints a success message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintSuccess(format string, args ...interface{}) {
	if IsQuiet() {
		return
	}
	emit(SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

// PrintError prints an error message. Errors are printed in quiet mode.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintError(format string, args ...interface{}) {
	emit(ErrorStyle.Render("✗ " + fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...interface{}) {
	if IsQuiet() {
		return
	}
	emit(WarningStyle.Render("⚠ " + fmt.Sprintf(format, args...)))
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...interface{}) {
	if IsQuiet() {
		return
	}
	emit(InfoStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintDim prints a dimmed message.
func PrintDim(format string, args ...interface{}) {
	if IsQuiet() {
		return
	}
	emit(DimStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintLink prints a labelled URL.
//
// Parameters:
//   - label: The link label
//   - url: The URL
func PrintLink(label, url string) {
	if IsQuiet() {
		return
	}
	emit(fmt.Sprintf("%s %s", DimStyle.Render(label+":"), LinkStyle.Render(url)))
}

// PrintBox prints content in a styled box.
//
// Parameters:
//   - title: Box title
//   - content: Box content
func PrintBox(title, content string) {
	if IsQuiet() {
		return
	}
	emit(BoxStyle.Render(BoxTitleStyle.Render(title) + "\n" + content))
}

// PrintKeyValue prints an aligned "key: value" line.
func PrintKeyValue(key, value string) {
	if IsQuiet() {
		return
	}
	emit(fmt.Sprintf("  %s %s", DimStyle.Render(fmt.Sprintf("%-10s", key+":")), value))
}

// NextStep is a suggested follow-up command.
type NextStep struct {
	Label   string
	Command string
}

// PrintNextSteps prints suggested follow-up commands.
//
// Parameters:
//   - steps: The suggestions, printed in order
func PrintNextSteps(steps []NextStep) {
	if IsQuiet() || len(steps) == 0 {
		return
	}
	emit(TitleStyle.Render("Next steps:"))
	for _, s := range steps {
		emit(fmt.Sprintf("  %s %s", DimStyle.Render(s.Label), CodeStyle.Render(s.Command)))
	}
}

// PrintReportStatus prints a one-line report status with its detail.
//
// Parameters:
//   - statusStr: The report status (pending, in_progress, complete, error)
//   - detail: Description of the current step, may be empty
func PrintReportStatus(statusStr, detail string) {
	if IsQuiet() {
		return
	}
	line := fmt.Sprintf("%s %s", StyledStatusIcon(statusStr), StatusStyle(statusStr).Render(statusStr))
	if detail != "" {
		line += "  " + DimStyle.Render(detail)
	}
	emit(line)
}

// StyledStatusIcon returns the status icon rendered in its category style.
//
// Parameters:
//   - statusStr: The status string
//
// Returns:
//   - string: The styled icon string
func StyledStatusIcon(statusStr string) string {
	icon := status.StatusIcon(statusStr)

	switch status.StatusCategory(statusStr) {
	case "info":
		return InfoStyle.Render(icon)
	case "success":
		return SuccessStyle.Render(icon)
	case "error":
		return ErrorStyle.Render(icon)
	default:
		return DimStyle.Render(icon)
	}
}

// StatusStyle returns the text style of a report status.
func StatusStyle(statusStr string) lipgloss.Style {
	s, _ := status.Parse(statusStr)
	switch s {
	case status.StatusInProgress:
		return StatusInProgressStyle
	case status.StatusComplete:
		return StatusCompleteStyle
	case status.StatusError:
		return StatusErrorStyle
	}
	return StatusPendingStyle
}

// OpenBrowser opens a URL in the default browser.
//
// Parameters:
//   - url: The URL to open
//
// Returns:
//   - error: Any error that occurred
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
