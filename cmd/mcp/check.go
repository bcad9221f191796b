package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/logger"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/mcptools"
)

var checkCmd = &cobra.Command{
	Use:   "check <server-name>",
	Short: "Connect to a configured MCP server and list its tools",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("mcp-config", "configs/mcp_servers.json", "MCP servers file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	name := args[0]

	path, _ := cmd.Flags().GetString("mcp-config")
	file, err := mcptools.LoadServersFile(path)
	if err != nil {
		return err
	}
	server, err := file.Get(name)
	if err != nil {
		return err
	}

	log, err := logger.CreateLogger(viper.GetString("log-file"), viper.GetString("log-level"), viper.GetString("log-format"), true)
	if err != nil {
		return err
	}
	defer log.Close()

	fmt.Printf("Connecting to %s (%s)...\n", name, server.ResolveProtocol())

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client := mcptools.NewClient(name, server, log)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", name, err)
	}

	if info := client.ServerInfo(); info != nil {
		fmt.Printf("Connected: %s v%s\n", info.Name, info.Version)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	fmt.Printf("%d tools available:\n", len(tools))
	for _, tool := range tools {
		desc := tool.Description
		if i := strings.IndexByte(desc, '\n'); i >= 0 {
			desc = desc[:i]
		}
		if len(desc) > 100 {
			desc = desc[:97] + "..."
		}
		fmt.Printf("  - %s: %s\n", tool.Name, desc)
	}
	return nil
}
