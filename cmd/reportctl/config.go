// Package main provides settings commands for ~/.reportctl/config.yaml.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reportdash/reportctl/internal/config"
	"github.com/reportdash/reportctl/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit configuration",
	Long: `Show or edit settings in ~/.reportctl/config.yaml.

Environment variables (REPORTCTL_BASE_URL, REPORTCTL_TOKEN, ...) and a .env
file in the working directory override the file.

EXAMPLES:
  reportctl config path
  reportctl config show
  reportctl config set start_delay 500ms
  reportctl config set stall_timeout 2m`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	RunE:  runConfigPath,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting",
	Long: fmt.Sprintf(`Set a setting in the config file.

Supported keys:
  %s`, strings.Join(config.Keys(), "\n  ")),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	shown := cfg.Redacted()

	if jsonOutput(cmd) {
		return printJSON(map[string]any{
			"path":                  path,
			"base_url":              shown.BaseURL,
			"token":                 shown.Token,
			"session_cookie":        shown.SessionCookie,
			"start_delay":           config.EffectiveStartDelay(cfg).String(),
			"stall_timeout":         cfg.StallTimeout.Std().String(),
			"request_timeout":       cfg.RequestTimeout.Std().String(),
			"cache_size":            cfg.CacheSize,
			"log_level":             cfg.Log.Level,
			"log_format":            cfg.Log.Format,
			"metrics_addr":          cfg.MetricsAddr,
			"config_file_exists":    fileExists(path),
			"stall_timeout_enabled": cfg.StallTimeout > 0,
		})
	}

	data, err := yaml.Marshal(shown)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	ui.PrintInfo("Config: %s", path)
	if !fileExists(path) {
		ui.PrintDim("(file does not exist; showing defaults and environment)")
	}
	ui.Println()
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(strings.ToLower(args[0]))
	value := strings.TrimSpace(args[1])

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	// Edit the file itself, not the environment overlay.
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Set(cfg, key, value); err != nil {
		return err
	}
	if err := config.Write(path, cfg); err != nil {
		return err
	}

	ui.PrintSuccess("Updated %s", key)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
