package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Report is the metadata of a generated report.
type Report struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`

	// Query is the SQL produced by generation; empty until it completes.
	Query string `json:"query,omitempty"`

	// Status is the raw backend status string.
	Status string `json:"status"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// UpdateReportRequest is the body of a report update.
type UpdateReportRequest struct {
	Name   string
	Prompt string
	Status string
}

// GetReport fetches report metadata.
//
// Parameters:
//   - ctx: Context for cancellation
//   - reportID: The report ID
//
// Returns:
//   - *Report: The report metadata
//   - error: *APIError on an error response, or a transport error
func (c *Client) GetReport(ctx context.Context, reportID string) (*Report, error) {
	body, err := c.doRequest(ctx, http.MethodGet, reportPath(reportID), nil)
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsObject() {
		return nil, fmt.Errorf("failed to parse response: missing report data")
	}
	report := &Report{
		ID:        firstString(data, "ID", "id"),
		Name:      firstString(data, "Name", "name"),
		Prompt:    firstString(data, "Prompt", "prompt"),
		Query:     firstString(data, "Query", "query"),
		Status:    firstString(data, "Status", "status"),
		CreatedAt: firstString(data, "CreatedAt", "created_at"),
		UpdatedAt: firstString(data, "UpdatedAt", "updated_at"),
	}
	if report.ID == "" {
		report.ID = reportID
	}
	return report, nil
}

// GetResults fetches the delimited-text result payload of a completed report.
//
// Parameters:
//   - ctx: Context for cancellation
//   - reportID: The report ID
//
// Returns:
//   - string: The CSV payload; empty when the report produced no rows
//   - error: *APIError on an error response, or a transport error
func (c *Client) GetResults(ctx context.Context, reportID string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, reportPath(reportID)+"/results", nil)
	if err != nil {
		return "", err
	}

	data := gjson.GetBytes(body, "data")
	switch data.Type {
	case gjson.String:
		return data.Str, nil
	case gjson.Null:
		return "", nil
	default:
		return "", fmt.Errorf("failed to parse response: results data is %s, want string", data.Type)
	}
}

// UpdateReport updates a report. Empty fields are not sent.
func (c *Client) UpdateReport(ctx context.Context, reportID string, req UpdateReportRequest) error {
	body := []byte(`{}`)
	var err error
	for _, f := range []struct{ key, value string }{
		{"name", req.Name},
		{"Prompt", req.Prompt},
		{"Status", req.Status},
	} {
		if f.value == "" {
			continue
		}
		if body, err = sjson.SetBytes(body, f.key, f.value); err != nil {
			return fmt.Errorf("failed to build request body: %w", err)
		}
	}

	_, err = c.doRequest(ctx, http.MethodPut, reportPath(reportID), body)
	return err
}

// RerunReport asks the backend to generate the report again.
func (c *Client) RerunReport(ctx context.Context, reportID, prompt string) error {
	return c.UpdateReport(ctx, reportID, UpdateReportRequest{Prompt: prompt, Status: "in_progress"})
}

// CreateReport creates a report from a natural-language prompt and returns its ID.
func (c *Client) CreateReport(ctx context.Context, name, prompt string) (string, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "name", name)
	if err != nil {
		return "", fmt.Errorf("failed to build request body: %w", err)
	}
	if body, err = sjson.SetBytes(body, "prompt", prompt); err != nil {
		return "", fmt.Errorf("failed to build request body: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/dynamic-queries", body)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(resp, "data").String()
	if id == "" {
		return "", fmt.Errorf("failed to parse response: missing report id")
	}
	return id, nil
}

// firstString returns the first non-empty string among keys of r. Nullable
// text columns serialized as {"String": ..., "Valid": ...} are unwrapped.
func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		v := r.Get(k)
		if !v.Exists() {
			continue
		}
		if v.IsObject() {
			if !v.Get("Valid").Bool() {
				continue
			}
			v = v.Get("String")
		}
		if s := v.String(); s != "" {
			return s
		}
	}
	return ""
}
