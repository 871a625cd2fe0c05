package report

import (
	"errors"
	"fmt"
)

var (
	// ErrDetached is returned by tracker operations after Detach.
	ErrDetached = errors.New("report tracker detached")

	// ErrNotAttached is returned by Retry and Refresh before Attach.
	ErrNotAttached = errors.New("report tracker not attached")

	// ErrGenerationFailed means the backend reports the report in its error state.
	ErrGenerationFailed = errors.New("backend reported report generation failed")
)

// UnknownStatusError is a backend status outside the report vocabulary.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown report status %q", e.Status)
}

// MaterializationError reports a result fetch or parse failure after completion.
type MaterializationError struct {
	ReportID string
	Err      error
}

// Error implements the error interface.
func (e *MaterializationError) Error() string {
	return fmt.Sprintf("failed to materialize results of report %s: %v", e.ReportID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MaterializationError) Unwrap() error {
	return e.Err
}
