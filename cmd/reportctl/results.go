// Package main provides the results command.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/execution"
	"github.com/reportdash/reportctl/internal/report"
	"github.com/reportdash/reportctl/internal/ui"
	"github.com/reportdash/reportctl/internal/util"
)

var (
	resultsFormat string
	resultsLimit  int
	resultsCopy   bool
	resultsSave   bool
	resultsOutput string
)

func init() {
	resultsCmd.Flags().StringVarP(&resultsFormat, "format", "f", "table", "Output format: table, csv or json")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 0, "Maximum rows to print (0 for all)")
	resultsCmd.Flags().BoolVar(&resultsCopy, "copy", false, "Copy the results to the clipboard as CSV")
	resultsCmd.Flags().BoolVar(&resultsSave, "save", false, "Save the results as CSV, named after the report")
	resultsCmd.Flags().StringVarP(&resultsOutput, "output", "o", "", "Save the results as CSV to this path")
}

// resultsCmd prints the results of a completed report.
var resultsCmd = &cobra.Command{
	Use:   "results <report-id>",
	Short: "Print the results of a completed report",
	Long: `Print the results of a completed report without re-running it.

Examples:
  reportctl results 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69
  reportctl results 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69 --format csv > out.csv
  reportctl results 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69 --copy
  reportctl results 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69 --save`,
	Args: reportIDArg,
	RunE: runResults,
}

// resultsJSON is the JSON form of a result table.
type resultsJSON struct {
	ReportID string     `json:"report_id"`
	Header   []string   `json:"header"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"row_count"`
}

func runResults(cmd *cobra.Command, args []string) error {
	reportID := args[0]
	format := strings.ToLower(resultsFormat)
	if jsonOutput(cmd) {
		format = "json"
	}
	switch format {
	case "table", "csv", "json":
	default:
		return fmt.Errorf("invalid format %q (expected table, csv or json)", resultsFormat)
	}
	if format != "table" {
		// Machine-readable output must not be interleaved with status lines.
		ui.SetQuietMode(true)
		defer ui.SetQuietMode(false)
	}

	stack, _, err := newStack(cmd)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}
	defer stack.Close()

	ui.StartSpinner("Loading results...")
	table, err := execution.Results(cmd.Context(), stack, reportID)
	ui.StopSpinner()
	if err != nil {
		ui.PrintError("Failed to load results: %v", err)
		ui.PrintNextSteps([]ui.NextStep{
			{Label: "Check the report:", Command: "reportctl status " + reportID},
		})
		return err
	}

	if resultsCopy {
		var b strings.Builder
		if err := table.WriteCSV(&b); err != nil {
			return err
		}
		if err := clipboard.WriteAll(b.String()); err != nil {
			ui.PrintWarning("Failed to copy to clipboard: %v", err)
		} else {
			ui.PrintSuccess("Copied %d rows to the clipboard", table.Len())
		}
	}

	if resultsSave || resultsOutput != "" {
		if err := saveResults(cmd, stack, reportID, table); err != nil {
			ui.PrintError("Failed to save results: %v", err)
			return err
		}
	}

	shown := table
	if resultsLimit > 0 {
		shown = table.Limit(resultsLimit)
	}

	switch format {
	case "csv":
		return shown.WriteCSV(os.Stdout)
	case "json":
		return printJSON(resultsJSON{
			ReportID: reportID,
			Header:   shown.Header,
			Rows:     shown.Records(),
			RowCount: table.Len(),
		})
	}
	renderRows(table.Header, table.Records(), resultsLimit)
	return nil
}

// saveResults writes the full table to --output, or to a file named after
// the report in the working directory.
func saveResults(cmd *cobra.Command, stack *execution.Stack, reportID string, table *report.ResultTable) error {
	path := resultsOutput
	if path == "" {
		st, err := execution.Status(cmd.Context(), stack, reportID)
		if err != nil {
			return err
		}
		path = util.ResultsFilename(st.Name, reportID)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := table.WriteCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	ui.PrintSuccess("Saved %d rows to %s", table.Len(), path)
	return nil
}
