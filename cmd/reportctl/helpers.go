// Package main provides shared helper functions for CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/config"
	"github.com/reportdash/reportctl/internal/execution"
	"github.com/reportdash/reportctl/internal/logger"
)

// jsonOutput reports whether --json was passed, globally or on the command.
func jsonOutput(cmd *cobra.Command) bool {
	if globalJSON, _ := cmd.Root().PersistentFlags().GetBool("json"); globalJSON {
		return true
	}
	local, _ := cmd.Flags().GetBool("json")
	return local
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// configPath returns the --config value or the default config location.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// loadConfig resolves the configuration for a command, honoring --config
// and --dev.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	devMode, _ := cmd.Root().PersistentFlags().GetBool("dev")
	cfg, err := config.Resolve(path, devMode)
	if err != nil {
		return nil, err
	}
	log.Debug("Resolved configuration", "path", path, "base_url", cfg.BaseURL, "dev", devMode)
	return cfg, nil
}

// newStack resolves the configuration, applies its logging settings and
// wires the report components.
//
// Parameters:
//   - cmd: The running command
//
// Returns:
//   - *execution.Stack: The wired components
//   - *config.Config: The resolved configuration
//   - error: Any configuration error
func newStack(cmd *cobra.Command) (*execution.Stack, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	// --debug wins over the configured level.
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logCfg.Level = "debug"
	}
	l := logger.Init(logCfg)

	stack, err := execution.NewStack(cfg, execution.WithLogger(l))
	if err != nil {
		return nil, nil, err
	}
	stack.ServeMetrics(cmd.Context())
	return stack, cfg, nil
}

// validateReportID checks that id is a UUID, the form report IDs take.
//
// Parameters:
//   - id: The report ID argument
//
// Returns:
//   - error: A descriptive error if id is not a UUID
func validateReportID(id string) error {
	if id == "" {
		return fmt.Errorf("report ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid report ID %q: expected a UUID", id)
	}
	return nil
}

// reportIDArg is a cobra.PositionalArgs that accepts exactly one report ID.
func reportIDArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	return validateReportID(args[0])
}
