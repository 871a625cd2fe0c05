// Package util provides shared utility functions for the CLI.
package util

import (
	"regexp"
	"strings"
)

var (
	// disallowedChars matches anything not in [a-z0-9-_].
	disallowedChars = regexp.MustCompile(`[^a-z0-9\-_]`)
	// multiHyphen collapses consecutive hyphens.
	multiHyphen = regexp.MustCompile(`-{2,}`)
)

// maxNameLen bounds the stem of a generated file name.
const maxNameLen = 64

// SanitizeForFilename converts a report name to a filesystem-safe stem:
// lowercase, spaces become hyphens, anything outside [a-z0-9-_] is dropped
// and runs of hyphens collapse.
//
// Example: "Signups (by Country)" → "signups-by-country"
func SanitizeForFilename(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = disallowedChars.ReplaceAllString(s, "")
	s = multiHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxNameLen {
		s = strings.TrimRight(s[:maxNameLen], "-")
	}
	return s
}

// ResultsFilename returns the CSV file name for a report's results. Names
// that sanitize to nothing fall back to the report ID.
//
// Parameters:
//   - name: The report name
//   - reportID: The report ID
//
// Returns:
//   - string: A name like "signups-by-country.csv"
func ResultsFilename(name, reportID string) string {
	stem := SanitizeForFilename(name)
	if stem == "" {
		stem = "report-" + SanitizeForFilename(reportID)
	}
	return stem + ".csv"
}
