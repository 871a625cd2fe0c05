// Package mcp provides the MCP (Model Context Protocol) server implementation.
//
// This package exposes report generation as tools that AI agents can call
// over stdio: checking a report, following its generation to completion,
// and reading its results.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reportdash/reportctl/internal/execution"
)

const (
	// defaultRowLimit caps the rows returned to an agent unless it asks otherwise.
	defaultRowLimit = 100

	// maxRowLimit is the largest limit an agent may request.
	maxRowLimit = 1000

	// generateTimeout bounds one generate_report call.
	generateTimeout = 10 * time.Minute
)

// Server wraps the MCP server with report tools.
type Server struct {
	mcpServer *mcp.Server
	stack     *execution.Stack
	version   string
}

// NewServer creates a new reportctl MCP server.
//
// Parameters:
//   - version: The CLI version string
//   - stack: The wired client, session and materializer
//
// Returns:
//   - *Server: A new server instance
func NewServer(version string, stack *execution.Stack) *Server {
	s := &Server{
		stack:   stack,
		version: version,
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    "reportctl",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server over stdio.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Any error that occurred during execution
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers all report tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_report_status",
		Description: "Get the name, prompt, generated SQL and status of a report without waiting for generation.",
	}, s.handleGetReportStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "generate_report",
		Description: "Follow a report's generation until its results are ready, optionally re-running it first. Returns the result table.",
	}, s.handleGenerateReport)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_report_results",
		Description: "Get the result table of a completed report.",
	}, s.handleGetReportResults)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_report",
		Description: "Create a report from a natural-language prompt. Call generate_report with the returned ID to produce it.",
	}, s.handleCreateReport)
}

// validateReportID returns an error message for an invalid report ID, or "".
func validateReportID(id string) string {
	if id == "" {
		return "report_id is required"
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Sprintf("report_id %q is not a valid UUID", id)
	}
	return ""
}

// rowLimit clamps a requested limit to (0, maxRowLimit].
func rowLimit(requested int) int {
	switch {
	case requested <= 0:
		return defaultRowLimit
	case requested > maxRowLimit:
		return maxRowLimit
	default:
		return requested
	}
}

// ReportIDInput is the input of tools that take only a report ID.
type ReportIDInput struct {
	ReportID string `json:"report_id" jsonschema:"Report UUID"`
}

// GetReportStatusOutput defines the output for the get_report_status tool.
type GetReportStatusOutput struct {
	Success      bool   `json:"success"`
	ReportID     string `json:"report_id"`
	Name         string `json:"name,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	Query        string `json:"query,omitempty"`
	Status       string `json:"status,omitempty"`
	Terminal     bool   `json:"terminal"`
	ReportURL    string `json:"report_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// handleGetReportStatus handles the get_report_status tool call.
func (s *Server) handleGetReportStatus(ctx context.Context, req *mcp.CallToolRequest, input ReportIDInput) (*mcp.CallToolResult, GetReportStatusOutput, error) {
	if msg := validateReportID(input.ReportID); msg != "" {
		return nil, GetReportStatusOutput{ReportID: input.ReportID, ErrorMessage: msg}, nil
	}

	st, err := execution.Status(ctx, s.stack, input.ReportID)
	if err != nil {
		return nil, GetReportStatusOutput{ReportID: input.ReportID, ErrorMessage: err.Error()}, nil
	}
	return nil, GetReportStatusOutput{
		Success:   true,
		ReportID:  st.ReportID,
		Name:      st.Name,
		Prompt:    st.Prompt,
		Query:     st.Query,
		Status:    st.Status,
		Terminal:  st.Terminal,
		ReportURL: st.ReportURL,
	}, nil
}

// GenerateReportInput defines the input parameters for the generate_report tool.
type GenerateReportInput struct {
	ReportID string `json:"report_id" jsonschema:"Report UUID"`
	Retry    bool   `json:"retry,omitempty" jsonschema:"Re-run generation even if the report already completed or failed"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum rows to return (default 100, max 1000)"`
}

// handleGenerateReport handles the generate_report tool call.
func (s *Server) handleGenerateReport(ctx context.Context, req *mcp.CallToolRequest, input GenerateReportInput) (*mcp.CallToolResult, execution.RunResult, error) {
	if msg := validateReportID(input.ReportID); msg != "" {
		return nil, execution.RunResult{ReportID: input.ReportID, ErrorMessage: msg}, nil
	}

	// Use shared execution logic
	result, _ := execution.Run(ctx, s.stack, execution.RunParams{
		ReportID: input.ReportID,
		Retry:    input.Retry,
		Timeout:  generateTimeout,
		RowLimit: rowLimit(input.Limit),
	})
	return nil, *result, nil
}

// GetReportResultsInput defines the input parameters for the get_report_results tool.
type GetReportResultsInput struct {
	ReportID string `json:"report_id" jsonschema:"Report UUID"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum rows to return (default 100, max 1000)"`
}

// GetReportResultsOutput defines the output for the get_report_results tool.
type GetReportResultsOutput struct {
	Success      bool       `json:"success"`
	ReportID     string     `json:"report_id"`
	Header       []string   `json:"header,omitempty"`
	Rows         [][]string `json:"rows,omitempty"`
	RowCount     int        `json:"row_count"`
	Truncated    bool       `json:"truncated,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// handleGetReportResults handles the get_report_results tool call.
func (s *Server) handleGetReportResults(ctx context.Context, req *mcp.CallToolRequest, input GetReportResultsInput) (*mcp.CallToolResult, GetReportResultsOutput, error) {
	if msg := validateReportID(input.ReportID); msg != "" {
		return nil, GetReportResultsOutput{ReportID: input.ReportID, ErrorMessage: msg}, nil
	}

	table, err := execution.Results(ctx, s.stack, input.ReportID)
	if err != nil {
		return nil, GetReportResultsOutput{ReportID: input.ReportID, ErrorMessage: err.Error()}, nil
	}

	limit := rowLimit(input.Limit)
	shown := table.Limit(limit)
	return nil, GetReportResultsOutput{
		Success:   true,
		ReportID:  input.ReportID,
		Header:    shown.Header,
		Rows:      shown.Records(),
		RowCount:  table.Len(),
		Truncated: table.Len() > limit,
	}, nil
}

// CreateReportInput defines the input parameters for the create_report tool.
type CreateReportInput struct {
	Prompt string `json:"prompt" jsonschema:"Natural-language description of the report"`
	Name   string `json:"name,omitempty" jsonschema:"Report name (defaults to the prompt)"`
}

// CreateReportOutput defines the output for the create_report tool.
type CreateReportOutput struct {
	Success      bool   `json:"success"`
	ReportID     string `json:"report_id,omitempty"`
	ReportURL    string `json:"report_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// handleCreateReport handles the create_report tool call.
func (s *Server) handleCreateReport(ctx context.Context, req *mcp.CallToolRequest, input CreateReportInput) (*mcp.CallToolResult, CreateReportOutput, error) {
	id, err := execution.Create(ctx, s.stack, input.Name, input.Prompt)
	if err != nil {
		return nil, CreateReportOutput{ErrorMessage: err.Error()}, nil
	}
	return nil, CreateReportOutput{
		Success:   true,
		ReportID:  id,
		ReportURL: execution.ReportURL(s.stack.Client.BaseURL(), id),
	}, nil
}
