// Package status provides shared status constants and helpers for report generation.
//
// This package centralizes all status-related logic to ensure consistency across the CLI.
// It mirrors the Status column of the backend's dynamic_queries table and provides helper
// functions for determining terminal states and status display.
package status

import "strings"

// ReportStatus represents the lifecycle state of a generated report.
type ReportStatus string

const (
	// StatusPending is the state before any metadata has been loaded.
	StatusPending ReportStatus = "pending"

	// StatusInProgress indicates the backend is generating the report.
	StatusInProgress ReportStatus = "in_progress"

	// StatusComplete indicates the report finished and its results can be fetched.
	StatusComplete ReportStatus = "complete"

	// StatusError indicates generation or materialization failed.
	StatusError ReportStatus = "error"
)

// terminalStatuses contains all statuses that indicate generation has ended.
var terminalStatuses = map[string]bool{
	string(StatusComplete): true,
	string(StatusError):    true,
	"completed":            true, // Legacy status value
	"failed":               true, // Legacy status value
}

// activeStatuses contains all statuses that require a generation stream.
var activeStatuses = map[string]bool{
	string(StatusInProgress): true,
	"running":                true, // Legacy status value
}

// Parse normalizes a backend status string.
//
// Parameters:
//   - raw: The status string as returned by the backend (case-insensitive)
//
// Returns:
//   - ReportStatus: The canonical status
//   - bool: False when the value is not part of the report vocabulary
func Parse(raw string) (ReportStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(StatusPending):
		return StatusPending, true
	case string(StatusInProgress), "running":
		return StatusInProgress, true
	case string(StatusComplete), "completed":
		return StatusComplete, true
	case string(StatusError), "failed":
		return StatusError, true
	default:
		return ReportStatus(raw), false
	}
}

// IsTerminal checks if a status string indicates generation has ended.
//
// Parameters:
//   - status: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True if the status is terminal (complete, error)
func IsTerminal(status string) bool {
	return terminalStatuses[strings.ToLower(status)]
}

// IsActive checks if a status string indicates generation is running.
//
// Parameters:
//   - status: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True if the status is active (in_progress)
func IsActive(status string) bool {
	return activeStatuses[strings.ToLower(status)]
}

// StatusIcon returns the appropriate icon for a status.
//
// Icons:
//   - pending: ⏳ (hourglass)
//   - in_progress: ▶ (play)
//   - complete: ✓ (checkmark)
//   - error: ✗ (x mark)
//   - unknown: ● (bullet)
func StatusIcon(status string) string {
	s, ok := Parse(status)
	if !ok {
		return "●"
	}
	switch s {
	case StatusPending:
		return "⏳"
	case StatusInProgress:
		return "▶"
	case StatusComplete:
		return "✓"
	case StatusError:
		return "✗"
	}
	return "●"
}

// StatusCategory returns the category of a status for styling purposes.
//
// Categories:
//   - "dim": pending, unknown
//   - "info": in_progress
//   - "success": complete
//   - "error": error
func StatusCategory(status string) string {
	s, ok := Parse(status)
	if !ok {
		return "dim"
	}
	switch s {
	case StatusInProgress:
		return "info"
	case StatusComplete:
		return "success"
	case StatusError:
		return "error"
	}
	return "dim"
}
