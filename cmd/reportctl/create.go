// Package main provides the create command.
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/execution"
	"github.com/reportdash/reportctl/internal/ui"
)

var (
	createName  string
	createWatch bool
)

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Report name (defaults to the prompt)")
	createCmd.Flags().BoolVarP(&createWatch, "watch", "w", false, "Follow generation after creating the report")
}

// createCmd creates a report from a prompt.
var createCmd = &cobra.Command{
	Use:   "create <prompt>",
	Short: "Create a report from a prompt",
	Long: `Create a report from a natural-language prompt.

Generation starts when the report is followed with 'reportctl watch'
(or immediately with --watch).

Examples:
  reportctl create "weekly signups by country"
  reportctl create "top customers by revenue" --name "Top customers" --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	jsonOut := jsonOutput(cmd)

	stack, cfg, err := newStack(cmd)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	id, err := execution.Create(cmd.Context(), stack, createName, prompt)
	stack.Close()
	if err != nil {
		ui.PrintError("Failed to create report: %v", err)
		return err
	}

	if createWatch {
		ui.PrintSuccess("Created report %s", id)
		return runWatch(cmd, id, false, watchOptions{timeout: execution.DefaultRunTimeout, limit: 50})
	}

	if jsonOut {
		return printJSON(map[string]string{
			"report_id":  id,
			"report_url": execution.ReportURL(cfg.BaseURL, id),
		})
	}
	ui.PrintSuccess("Created report %s", id)
	ui.Println()
	ui.PrintNextSteps([]ui.NextStep{
		{Label: "Generate it:", Command: "reportctl watch " + id},
	})
	return nil
}
