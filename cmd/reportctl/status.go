// Package main provides the status command.
package main

import (
	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/execution"
	"github.com/reportdash/reportctl/internal/ui"
)

// statusCmd shows report metadata and status.
var statusCmd = &cobra.Command{
	Use:   "status <report-id>",
	Short: "Show report metadata and status",
	Long: `Show the name, prompt, generated SQL and status of a report.

This never starts generation; use 'reportctl watch' for that.

Examples:
  reportctl status 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69
  reportctl status 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69 --json`,
	Args: reportIDArg,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOut := jsonOutput(cmd)
	if jsonOut {
		ui.SetQuietMode(true)
		defer ui.SetQuietMode(false)
	}

	stack, _, err := newStack(cmd)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}
	defer stack.Close()

	ui.StartSpinner("Fetching report...")
	st, err := execution.Status(cmd.Context(), stack, args[0])
	ui.StopSpinner()
	if err != nil {
		ui.PrintError("Failed to fetch report: %v", err)
		return err
	}

	if jsonOut {
		return printJSON(st)
	}

	ui.PrintReportStatus(st.Status, "")
	ui.Println()
	ui.PrintKeyValue("Name:", st.Name)
	ui.PrintKeyValue("ID:", st.ReportID)
	if st.RawStatus != "" {
		ui.PrintKeyValue("Backend status:", st.RawStatus)
	}
	if st.UpdatedAt != "" {
		ui.PrintKeyValue("Updated:", st.UpdatedAt)
	}
	if st.Prompt != "" {
		ui.Println()
		ui.PrintBox("Prompt", st.Prompt)
	}
	if st.Query != "" {
		ui.Println()
		ui.PrintBox("Query", st.Query)
	}
	ui.Println()
	ui.PrintLink("Report", st.ReportURL)

	var steps []ui.NextStep
	switch st.Status {
	case "complete":
		steps = append(steps, ui.NextStep{Label: "Show results:", Command: "reportctl results " + st.ReportID})
	case "error":
		steps = append(steps, ui.NextStep{Label: "Re-run generation:", Command: "reportctl retry " + st.ReportID})
	default:
		steps = append(steps, ui.NextStep{Label: "Follow generation:", Command: "reportctl watch " + st.ReportID})
	}
	ui.Println()
	ui.PrintNextSteps(steps)
	return nil
}
