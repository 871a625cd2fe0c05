// Package main provides command suggestion functionality for the CLI.
//
// This file implements "did you mean" suggestions when users type commands
// in the wrong order (e.g., "reportctl serve mcp" instead of "reportctl mcp serve").
package main

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/ui"
)

// subcommandMap maps subcommand names to their parent commands.
//
// Example: "show" -> ["config"] means "show" is a subcommand of "config".
var subcommandMap = map[string][]string{
	"show":    {"config", "skill"},
	"set":     {"config"},
	"path":    {"config"},
	"serve":   {"mcp"},
	"install": {"skill"},
	"list":    {"skill"},
}

// suggestCorrectCommand checks if the user typed a subcommand before its
// parent and returns the command in the right order.
//
// Parameters:
//   - unknownCmd: The command that was not recognized by Cobra
//   - allArgs: All command line arguments (excluding program name)
//   - rootCmd: The root command to search for valid parent commands
//
// Returns:
//   - string: A suggested command string with correct order, or empty if no suggestion found
//   - bool: True if a valid suggestion was found
//
// Example:
//
//	unknownCmd: "set"
//	allArgs: ["--dev", "set", "config", "cache_size", "64"]
//	Returns: "reportctl --dev config set cache_size 64", true
func suggestCorrectCommand(unknownCmd string, allArgs []string, rootCmd *cobra.Command) (string, bool) {
	parents, ok := subcommandMap[unknownCmd]
	if !ok {
		return "", false
	}
	subIdx := slices.Index(allArgs, unknownCmd)
	if subIdx == -1 {
		return "", false
	}

	for i := subIdx + 1; i < len(allArgs); i++ {
		arg := allArgs[i]
		if strings.HasPrefix(arg, "-") || !slices.Contains(parents, arg) || !hasCommand(rootCmd, arg) {
			continue
		}

		// Flags before the subcommand stay first, then parent and subcommand,
		// then everything else in its original order.
		parts := []string{rootCmd.Name()}
		parts = append(parts, allArgs[:subIdx]...)
		parts = append(parts, arg, unknownCmd)
		parts = append(parts, allArgs[subIdx+1:i]...)
		parts = append(parts, allArgs[i+1:]...)
		return strings.Join(parts, " "), true
	}
	return "", false
}

// hasCommand reports whether root has a direct subcommand called name.
func hasCommand(root *cobra.Command, name string) bool {
	for _, cmd := range root.Commands() {
		if cmd.Name() == name {
			return true
		}
	}
	return false
}

// printCommandSuggestion prints a "did you mean" suggestion to the user.
//
// Parameters:
//   - suggestion: The suggested command string to display
func printCommandSuggestion(suggestion string) {
	ui.Println()
	ui.PrintInfo("Did you mean:")
	ui.PrintDim("  %s", suggestion)
	ui.Println()
}
