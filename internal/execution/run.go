package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reportdash/reportctl/internal/report"
	"github.com/reportdash/reportctl/internal/status"
)

// DefaultRunTimeout bounds Run when no timeout is given.
const DefaultRunTimeout = 10 * time.Minute

// RunParams contains parameters for following a report to completion.
//
// Fields:
//   - ReportID: The report UUID
//   - Retry: If true, re-run generation before waiting
//   - Timeout: Upper bound for the whole run (default DefaultRunTimeout)
//   - RowLimit: Maximum rows copied into the result, zero means all
//   - OnChange: Optional callback for every tracker snapshot
type RunParams struct {
	ReportID string
	Retry    bool
	Timeout  time.Duration
	RowLimit int
	OnChange func(report.Snapshot)
}

// RunResult contains the outcome of a run.
//
// Fields:
//   - Success: Whether results were loaded
//   - ReportID: The report UUID
//   - Name: The report name
//   - Status: Final status string
//   - Detail: Final status detail
//   - Query: Generated SQL, if any
//   - Header: Result column names
//   - Rows: Result rows in header order
//   - RowCount: Total number of rows before RowLimit
//   - Duration: Time spent following the report
//   - ErrorMessage: Error message if failed
type RunResult struct {
	Success      bool       `json:"success"`
	ReportID     string     `json:"report_id"`
	Name         string     `json:"name,omitempty"`
	Status       string     `json:"status"`
	Detail       string     `json:"detail,omitempty"`
	Query        string     `json:"query,omitempty"`
	Header       []string   `json:"header,omitempty"`
	Rows         [][]string `json:"rows,omitempty"`
	RowCount     int        `json:"row_count"`
	Duration     string     `json:"duration"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Run attaches a tracker, optionally retries, and waits for the report's
// results. The tracker is always detached before Run returns.
//
// This is the shared implementation used by both CLI and MCP.
//
// Parameters:
//   - ctx: Context for cancellation
//   - stack: The wired components
//   - params: Run parameters
//
// Returns:
//   - *RunResult: The final state, also populated on failure
//   - error: Any error that prevented results from loading
func Run(ctx context.Context, stack *Stack, params RunParams) (*RunResult, error) {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var opts []report.Option
	if params.OnChange != nil {
		opts = append(opts, report.WithOnChange(params.OnChange))
	}
	tracker := stack.Track(params.ReportID, opts...)
	defer tracker.Detach()

	start := time.Now()
	finish := func(err error) (*RunResult, error) {
		result := NewResult(tracker.Snapshot(), params.RowLimit)
		result.Duration = time.Since(start).Round(time.Millisecond).String()
		if err != nil {
			result.Success = false
			result.ErrorMessage = err.Error()
		}
		return result, err
	}

	// A failed report can still be re-run.
	if err := tracker.Attach(ctx); err != nil && !(params.Retry && errors.Is(err, report.ErrGenerationFailed)) {
		return finish(fmt.Errorf("failed to load report: %w", err))
	}
	if params.Retry {
		if err := tracker.Retry(ctx); err != nil {
			return finish(fmt.Errorf("failed to re-run report: %w", err))
		}
	}

	_, err := tracker.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("report did not finish within %s", timeout)
	}
	return finish(err)
}

// NewResult converts a snapshot into a RunResult.
//
// Parameters:
//   - snap: Tracker snapshot
//   - rowLimit: Maximum rows copied, zero means all
//
// Returns:
//   - *RunResult: The converted result
func NewResult(snap report.Snapshot, rowLimit int) *RunResult {
	result := &RunResult{
		Success:  snap.Ready(),
		ReportID: snap.ID,
		Name:     snap.Name,
		Status:   string(snap.Status),
		Detail:   snap.Detail,
		Query:    snap.Query,
	}
	if snap.LastError != nil {
		result.ErrorMessage = snap.LastError.Error()
	}
	if snap.Table != nil {
		result.RowCount = snap.Table.Len()
		table := snap.Table
		if rowLimit > 0 {
			table = table.Limit(rowLimit)
		}
		result.Header = table.Header
		result.Rows = table.Records()
	}
	return result
}

// StatusResult is the metadata view of a report.
type StatusResult struct {
	ReportID  string `json:"report_id"`
	Name      string `json:"name"`
	Prompt    string `json:"prompt,omitempty"`
	Query     string `json:"query,omitempty"`
	Status    string `json:"status"`
	RawStatus string `json:"raw_status,omitempty"`
	Terminal  bool   `json:"terminal"`
	UpdatedAt string `json:"updated_at,omitempty"`
	ReportURL string `json:"report_url"`
}

// Status fetches report metadata without following generation.
//
// Parameters:
//   - ctx: Context for cancellation
//   - stack: The wired components
//   - reportID: The report UUID
//
// Returns:
//   - *StatusResult: The report metadata
//   - error: Any fetch error
func Status(ctx context.Context, stack *Stack, reportID string) (*StatusResult, error) {
	r, err := stack.Client.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	result := &StatusResult{
		ReportID:  reportID,
		Name:      r.Name,
		Prompt:    r.Prompt,
		Query:     r.Query,
		Status:    r.Status,
		UpdatedAt: r.UpdatedAt,
		ReportURL: ReportURL(stack.Client.BaseURL(), reportID),
	}
	if s, ok := status.Parse(r.Status); ok {
		result.Status = string(s)
		result.Terminal = status.IsTerminal(string(s))
		if s != status.ReportStatus(r.Status) {
			result.RawStatus = r.Status
		}
	}
	return result, nil
}

// Results loads the result table of a completed report without opening a
// generation stream.
func Results(ctx context.Context, stack *Stack, reportID string) (*report.ResultTable, error) {
	return stack.Results.Load(ctx, reportID)
}

// Create creates a report and returns its ID. Generation starts when the
// report is followed.
func Create(ctx context.Context, stack *Stack, name, prompt string) (string, error) {
	if prompt == "" {
		return "", errors.New("prompt is required")
	}
	if name == "" {
		name = prompt
		if r := []rune(name); len(r) > 60 {
			name = string(r[:60])
		}
	}
	return stack.Client.CreateReport(ctx, name, prompt)
}
