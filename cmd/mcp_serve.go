package cmd

import (
	"context"
	"fmt"

	"razer-doctor/internal/config"
	"razer-doctor/internal/mcp"
	"razer-doctor/internal/report"

	"github.com/spf13/cobra"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Start an MCP server exposing the troubleshooter",
	Long: `Start a Model Context Protocol (MCP) server on stdio so AI agents can
run the OpenRazer troubleshooter and read archived diagnoses.

Tools:
  - run_troubleshooter: run the checks and return the diagnosis as JSON
  - list_diagnoses: list archived runs

To register it with an MCP client:
  {
    "mcp": {
      "razer-doctor": {
        "type": "local",
        "command": ["razer-doctor", "mcp-serve"],
        "enabled": true
      }
    }
  }`,
	Example: `  # Start the server
  razer-doctor mcp-serve

  # List tools by hand (JSON-RPC on stdin)
  echo '{"jsonrpc":"2.0","method":"tools/list","id":1}' | razer-doctor mcp-serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		run := func(ctx context.Context, cfg config.Config) report.Diagnosis {
			return diagnose(ctx, cfg, appLogger)
		}
		if err := mcp.Serve(appConfig, run); err != nil {
			return fmt.Errorf("MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}
