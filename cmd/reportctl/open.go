// Package main provides the open command.
package main

import (
	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/config"
	"github.com/reportdash/reportctl/internal/execution"
	"github.com/reportdash/reportctl/internal/ui"
)

// openCmd opens a report in the dashboard.
var openCmd = &cobra.Command{
	Use:   "open <report-id>",
	Short: "Open a report in the browser",
	Args:  reportIDArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return openReport(cfg, args[0])
	},
}

func openReport(cfg *config.Config, reportID string) error {
	url := execution.ReportURL(cfg.BaseURL, reportID)
	ui.PrintInfo("Opening report: %s", url)
	if err := ui.OpenBrowser(url); err != nil {
		ui.PrintError("Failed to open browser: %v", err)
		ui.PrintLink("Report", url)
		return err
	}
	return nil
}
