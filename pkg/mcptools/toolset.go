package mcptools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
)

// ErrUnknownTool marks a call to a tool no connected server advertises.
var ErrUnknownTool = errors.New("unknown tool")

// ToolSet aggregates the tools of one or more connected MCP servers and
// routes each call to the server that owns the tool. It satisfies the
// runtime's tool executor contract.
type ToolSet struct {
	clients      map[string]*Client
	toolToServer map[string]string
	tools        []mcp.Tool
	log          utils.ExtendedLogger
}

// ConnectAll connects every server in the file, collects their tools, and
// returns the set. Any connection failure closes the servers connected so
// far. When two servers advertise the same tool name, the first connected
// server keeps it.
func ConnectAll(ctx context.Context, file *ServersFile, log utils.ExtendedLogger) (*ToolSet, error) {
	ts := &ToolSet{
		clients:      make(map[string]*Client),
		toolToServer: make(map[string]string),
		log:          log,
	}

	for _, name := range file.Names() {
		cfg, err := file.Get(name)
		if err != nil {
			ts.Close()
			return nil, err
		}

		client := NewClient(name, cfg, log)
		if err := client.Connect(ctx); err != nil {
			ts.Close()
			return nil, fmt.Errorf("connect server %s: %w", name, err)
		}
		ts.clients[name] = client

		tools, err := client.ListTools(ctx)
		if err != nil {
			ts.Close()
			return nil, fmt.Errorf("list tools on %s: %w", name, err)
		}
		for _, tool := range tools {
			if owner, taken := ts.toolToServer[tool.Name]; taken {
				log.Warnf("tool %s from server %s shadowed by server %s", tool.Name, name, owner)
				continue
			}
			ts.toolToServer[tool.Name] = name
			ts.tools = append(ts.tools, tool)
		}
		log.WithField("server", name).Infof("connected MCP server with %d tools", len(tools))
	}

	return ts, nil
}

// Tools returns the aggregated MCP tool definitions.
func (ts *ToolSet) Tools() []mcp.Tool {
	out := make([]mcp.Tool, len(ts.tools))
	copy(out, ts.tools)
	return out
}

// LLMTools returns the aggregated tools in the langchaingo shape.
func (ts *ToolSet) LLMTools() ([]llms.Tool, error) {
	return LLMTools(ts.tools)
}

// Servers lists the connected server names in sorted order.
func (ts *ToolSet) Servers() []string {
	names := make([]string, 0, len(ts.clients))
	for name := range ts.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTool routes a call to the server owning the tool and flattens the
// result to the text fed back to the model.
func (ts *ToolSet) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	server, ok := ts.toolToServer[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	result, err := ts.clients[server].CallTool(ctx, name, arguments)
	if err != nil {
		return "", fmt.Errorf("call %s on %s: %w", name, server, err)
	}
	return ResultText(result), nil
}

// Close disconnects every server, keeping the first error.
func (ts *ToolSet) Close() error {
	var firstErr error
	for name, client := range ts.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close server %s: %w", name, err)
		}
	}
	return firstErr
}
