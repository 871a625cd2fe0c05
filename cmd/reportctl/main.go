// Package main provides the entry point for the reportctl CLI.
//
// reportctl follows dashboard reports while they are generated, prints their
// results, and exposes the same operations to AI agents over MCP.
package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/logger"
	"github.com/reportdash/reportctl/internal/ui"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "reportctl",
	Short:        "Generate, follow and export dashboard reports",
	Long:         ui.GetHelpText(),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := logger.DefaultConfig()
		debug, _ := cmd.Flags().GetBool("debug")
		if debug {
			cfg.Level = "debug"
		}
		logger.Init(cfg)
		log.Debug("Debug logging enabled")

		// Set quiet mode from global flag
		quiet, _ := cmd.Flags().GetBool("quiet")
		ui.SetQuietMode(quiet)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
//
// This function also handles "did you mean" suggestions when users type
// commands in the wrong order (e.g., "reportctl show config" instead of
// "reportctl config show").
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	errStr := err.Error()
	// Error format: unknown command "show" for "reportctl"
	if start := strings.Index(errStr, `unknown command "`); start != -1 {
		start += len(`unknown command "`)
		if end := strings.Index(errStr[start:], `"`); end != -1 {
			unknownCmd := errStr[start : start+end]
			if suggestion, found := suggestCorrectCommand(unknownCmd, os.Args[1:], rootCmd); found {
				printCommandSuggestion(suggestion)
			}
		}
	}
	os.Exit(1)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("dev", false, "Use a local development backend (reads PORT from .env files)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON (where supported)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.reportctl/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(devServerCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(skillCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput(cmd) {
			_ = printJSON(map[string]string{"version": version, "commit": commit, "date": date})
			return
		}
		ui.PrintBanner(version)
		ui.PrintInfo("Version: %s", version)
		ui.PrintInfo("Commit: %s", commit)
		ui.PrintInfo("Built: %s", date)
	},
}

func main() {
	Execute()
}
