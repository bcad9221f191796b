// Package mcp groups MCP server utilities.
package mcp

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent for MCP subcommands.
var Cmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server utilities",
	Long:  `Diagnostics for the MCP servers the samples attach as tools.`,
}

func init() {
	Cmd.AddCommand(checkCmd)
}
