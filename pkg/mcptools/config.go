// Package mcptools attaches MCP servers to agent runs: loading server
// configuration, connecting over stdio/SSE/streamable HTTP, and converting
// MCP tool definitions into the langchaingo shape the model providers expect.
package mcptools

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Supported transport protocols. When Protocol is empty the protocol is
// inferred: a URL means streamable HTTP, a command means stdio.
const (
	ProtocolHTTP  = "http"
	ProtocolSSE   = "sse"
	ProtocolStdio = "stdio"
)

// ServerConfig describes one MCP server entry in configs/mcp_servers.json.
type ServerConfig struct {
	Description string            `json:"description,omitempty"`
	Protocol    string            `json:"protocol,omitempty"`
	URL         string            `json:"url,omitempty"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// ResolveProtocol returns the transport to use for this server.
func (c ServerConfig) ResolveProtocol() string {
	if p := strings.ToLower(strings.TrimSpace(c.Protocol)); p != "" {
		return p
	}
	if c.URL != "" {
		return ProtocolHTTP
	}
	return ProtocolStdio
}

// Validate checks the entry names enough to connect with.
func (c ServerConfig) Validate() error {
	switch c.ResolveProtocol() {
	case ProtocolHTTP, ProtocolSSE:
		if strings.TrimSpace(c.URL) == "" {
			return fmt.Errorf("mcp server uses %s but has no url", c.ResolveProtocol())
		}
	case ProtocolStdio:
		if strings.TrimSpace(c.Command) == "" {
			return fmt.Errorf("mcp server uses stdio but has no command")
		}
	default:
		return fmt.Errorf("unknown mcp protocol %q", c.Protocol)
	}
	return nil
}

// ServersFile is the on-disk MCP server catalog. The "mcpServers" key
// matches the layout most MCP hosts share.
type ServersFile struct {
	Servers map[string]ServerConfig `json:"mcpServers"`
}

// LoadServersFile reads and validates the server catalog at path.
func LoadServersFile(path string) (*ServersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mcp config %s: %w", path, err)
	}

	var file ServersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mcp config %s: %w", path, err)
	}
	if len(file.Servers) == 0 {
		return nil, fmt.Errorf("mcp config %s defines no servers", path)
	}

	for name, server := range file.Servers {
		if err := server.Validate(); err != nil {
			return nil, fmt.Errorf("mcp config %s: server %q: %w", path, name, err)
		}
	}
	return &file, nil
}

// Get returns the named server entry.
func (f *ServersFile) Get(name string) (ServerConfig, error) {
	server, ok := f.Servers[name]
	if !ok {
		return ServerConfig{}, fmt.Errorf("mcp server %q not configured (have: %s)",
			name, strings.Join(f.Names(), ", "))
	}
	return server, nil
}

// Names lists the configured server names, sorted for stable output.
func (f *ServersFile) Names() []string {
	names := make([]string, 0, len(f.Servers))
	for name := range f.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
