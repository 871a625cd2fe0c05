// Package main provides sanity tests for the reportctl command initialization.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reportdash/reportctl/internal/config"
)

// TestRootCommandInitialization verifies that the root command exists and has all expected subcommands.
func TestRootCommandInitialization(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	expectedCommands := []string{
		"version", "watch", "retry", "status", "results", "create",
		"open", "mcp", "dev-server", "config", "schema", "skill",
	}

	for _, name := range expectedCommands {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %q not found", name)
		}
	}
}

// TestGlobalFlagsExist verifies that all expected global flags are registered on the root command.
func TestGlobalFlagsExist(t *testing.T) {
	for _, name := range []string{"debug", "dev", "json", "quiet", "config"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected global flag %q not found", name)
		}
	}
}

// TestSubcommandsHaveShortDescription verifies all subcommands have a Short description.
func TestSubcommandsHaveShortDescription(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Short == "" {
			t.Errorf("command %q is missing Short description", cmd.Name())
		}
	}
}

func TestValidateReportID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69", false},
		{"", true},
		{"42", true},
		{"not-a-uuid", true},
	}
	for _, tt := range tests {
		if err := validateReportID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("validateReportID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestReportCommandsRejectBadIDs(t *testing.T) {
	for _, name := range []string{"watch", "retry", "status", "results", "open"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Fatalf("Find(%s): %v", name, err)
		}
		if err := cmd.Args(cmd, []string{"nope"}); err == nil {
			t.Errorf("%s accepted an invalid report ID", name)
		}
		if err := cmd.Args(cmd, nil); err == nil {
			t.Errorf("%s accepted a missing report ID", name)
		}
	}
}

func TestConfigSetAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "config", "set", "start_delay", "250ms"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		_ = rootCmd.PersistentFlags().Set("config", "")
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config set: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := config.EffectiveStartDelay(cfg).String(); got != "250ms" {
		t.Errorf("start_delay = %s, want 250ms", got)
	}

	rootCmd.SetArgs([]string{"--config", path, "config", "path"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Errorf("config path printed %q, want %q", out.String(), path)
	}

	rootCmd.SetArgs([]string{"--config", path, "config", "set", "no_such_key", "1"})
	if err := rootCmd.Execute(); err == nil {
		t.Errorf("expected an error for an unknown key")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file missing: %v", err)
	}
}

func TestResultsRejectsUnknownFormat(t *testing.T) {
	rootCmd.SetArgs([]string{"results", "3f0c9a1e-4b2d-4c8e-9f7a-1d2e3c4b5a69", "--format", "xml"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resultsFormat = "table"
	})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), `invalid format "xml"`) {
		t.Errorf("results --format xml error = %v, want invalid format", err)
	}
}
