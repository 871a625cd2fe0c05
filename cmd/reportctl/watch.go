// Package main provides the watch and retry commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/execution"
	"github.com/reportdash/reportctl/internal/report"
	"github.com/reportdash/reportctl/internal/tui"
	"github.com/reportdash/reportctl/internal/ui"
)

// watchOptions holds the flags shared by watch and retry.
type watchOptions struct {
	timeout time.Duration
	limit   int
	open    bool
	noTUI   bool
}

var (
	watchOpts watchOptions
	retryOpts watchOptions
)

func init() {
	for _, c := range []struct {
		cmd  *cobra.Command
		opts *watchOptions
	}{{watchCmd, &watchOpts}, {retryCmd, &retryOpts}} {
		c.cmd.Flags().DurationVar(&c.opts.timeout, "timeout", execution.DefaultRunTimeout, "Give up if results are not ready within this duration")
		c.cmd.Flags().IntVar(&c.opts.limit, "limit", 50, "Maximum rows to print (0 for all)")
		c.cmd.Flags().BoolVar(&c.opts.open, "open", false, "Open the report in the browser")
		c.cmd.Flags().BoolVar(&c.opts.noTUI, "no-tui", false, "Print progress lines instead of the interactive view")
	}
}

// watchCmd follows a report until its results are ready.
var watchCmd = &cobra.Command{
	Use:   "watch <report-id>",
	Short: "Follow a report until its results are ready",
	Long: `Follow a report while it is generated and show its results.

A pending or running report is generated over an event stream; a completed
report has its results loaded directly. In an interactive terminal the report
is shown in a live view; otherwise progress is printed line by line.

Examples:
  reportctl watch 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69
  reportctl watch 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69 --json
  reportctl watch 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69 --timeout 2m`,
	Args: reportIDArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args[0], false, watchOpts)
	},
}

// retryCmd re-runs generation of a report and follows it.
var retryCmd = &cobra.Command{
	Use:   "retry <report-id>",
	Short: "Re-run generation of a report",
	Long: `Re-run generation of a report with its current prompt, then follow it
like 'reportctl watch'. Any previous results are discarded.

Examples:
  reportctl retry 3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69`,
	Args: reportIDArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args[0], true, retryOpts)
	},
}

// signalContext returns the command context, cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// runWatch follows one report with the live view or line output.
func runWatch(cmd *cobra.Command, reportID string, retry bool, opts watchOptions) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	stack, cfg, err := newStack(cmd)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}
	defer stack.Close()

	reportURL := execution.ReportURL(cfg.BaseURL, reportID)
	if opts.open {
		if err := ui.OpenBrowser(reportURL); err != nil {
			ui.PrintWarning("Failed to open browser: %v", err)
		}
	}

	jsonOut := jsonOutput(cmd)
	if !opts.noTUI && tui.ShouldRunTUI(jsonOut, ui.IsQuiet()) {
		return runWatchTUI(ctx, stack, reportID, retry, reportURL)
	}
	return runWatchLines(ctx, stack, reportID, retry, reportURL, jsonOut, opts)
}

// runWatchTUI drives the live view. The tracker attaches in the background
// so the view is up while metadata loads.
func runWatchTUI(ctx context.Context, stack *execution.Stack, reportID string, retry bool, reportURL string) error {
	feed := tui.NewFeed()
	tracker := stack.Track(reportID, report.WithOnChange(feed.Publish))
	defer tracker.Detach()

	go func() {
		err := tracker.Attach(ctx)
		if err != nil && !(retry && errors.Is(err, report.ErrGenerationFailed)) {
			log.Debug("Attach failed", "report_id", reportID, "error", err)
			return
		}
		if retry {
			if err := tracker.Retry(ctx); err != nil {
				log.Debug("Retry failed", "report_id", reportID, "error", err)
			}
		}
	}()

	final, err := tui.RunReport(tracker, feed, reportURL)
	if err != nil {
		return fmt.Errorf("failed to run report view: %w", err)
	}
	if final.LastError != nil {
		return final.LastError
	}
	return nil
}

// runWatchLines prints one line per status change, then the results.
func runWatchLines(ctx context.Context, stack *execution.Stack, reportID string, retry bool, reportURL string, jsonOut bool, opts watchOptions) error {
	params := execution.RunParams{
		ReportID: reportID,
		Retry:    retry,
		Timeout:  opts.timeout,
	}
	if jsonOut {
		params.RowLimit = opts.limit
	} else {
		params.OnChange = statusPrinter()
	}

	result, err := execution.Run(ctx, stack, params)
	if jsonOut {
		if printErr := printJSON(result); printErr != nil {
			return printErr
		}
		return err
	}

	if err != nil {
		ui.Println()
		ui.PrintError("Report failed: %v", err)
		ui.Println()
		ui.PrintNextSteps([]ui.NextStep{
			{Label: "Re-run generation:", Command: "reportctl retry " + reportID},
			{Label: "Open in the dashboard:", Command: "reportctl open " + reportID},
		})
		return err
	}

	ui.Println()
	name := result.Name
	if name == "" {
		name = reportID
	}
	ui.PrintSuccess("%s: %d rows in %s", name, result.RowCount, result.Duration)
	ui.Println()
	renderRows(result.Header, result.Rows, opts.limit)
	ui.Println()
	ui.PrintLink("Report", reportURL)
	return nil
}

// statusPrinter returns an OnChange callback that prints a line whenever
// the status or its detail changes. Snapshots arrive from several
// goroutines, so printing is serialized.
func statusPrinter() func(report.Snapshot) {
	var (
		mu   sync.Mutex
		last string
	)
	return func(s report.Snapshot) {
		key := string(s.Status) + "\x00" + s.Detail
		mu.Lock()
		defer mu.Unlock()
		if key == last {
			return
		}
		last = key
		ui.PrintReportStatus(string(s.Status), s.Detail)
	}
}

// renderRows prints a result table, capped at limit rows when limit > 0.
func renderRows(header []string, rows [][]string, limit int) {
	if len(header) == 0 {
		ui.PrintInfo("The report returned no data.")
		return
	}
	shown := rows
	if limit > 0 && len(rows) > limit {
		shown = rows[:limit]
	}

	table := ui.NewTable(header...)
	for _, row := range shown {
		table.AddRow(row...)
	}
	table.Render()

	if hidden := len(rows) - len(shown); hidden > 0 {
		ui.PrintDim("... %d more rows (use --limit 0 to show all)", hidden)
	}
}
