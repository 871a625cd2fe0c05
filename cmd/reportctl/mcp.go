// Package main provides the MCP command for the reportctl CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/logger"
	"github.com/reportdash/reportctl/internal/mcp"
	"github.com/reportdash/reportctl/internal/ui"
)

// mcpCmd is the parent command for MCP operations.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long: `MCP (Model Context Protocol) server commands.

The MCP server lets AI agents generate reports and read their results
through the Model Context Protocol.

Commands:
  serve  - Start the MCP server over stdio`,
}

// mcpServeCmd starts the MCP server.
var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server over stdio",
	Long: `Start the reportctl MCP server over stdio.

This command starts an MCP server that communicates via JSON-RPC
over stdin/stdout. It's designed to be launched by AI hosts.

The server exposes the following tools:
  - get_report_status: Report metadata and status
  - generate_report: Follow generation to completion and return the table
  - get_report_results: Result table of a completed report
  - create_report: Create a report from a prompt

Authentication:
  Set REPORTCTL_TOKEN (or token in the config file).

Example configuration:
  {
    "mcpServers": {
      "reportctl": {
        "command": "reportctl",
        "args": ["mcp", "serve"],
        "env": {
          "REPORTCTL_TOKEN": "your-token"
        }
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
}

// runMCPServe starts the MCP server.
func runMCPServe(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol; keep everything else off it.
	ui.SetQuietMode(true)
	ui.SetOutput(cmd.ErrOrStderr())

	stack, _, err := newStack(cmd)
	if err != nil {
		ui.PrintError("Failed to create MCP server: %v", err)
		return err
	}
	defer stack.Close()

	logger.FromContext(cmd.Context()).Debug("Starting MCP server", "version", version)
	server := mcp.NewServer(version, stack)

	// Run the server (blocks until client disconnects)
	return server.Run(cmd.Context())
}
