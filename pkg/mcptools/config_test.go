package mcptools

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServersFile(t *testing.T) {
	path := writeConfig(t, `{
		"mcpServers": {
			"microsoft-learn": {
				"url": "https://learn.microsoft.com/api/mcp",
				"description": "Microsoft Learn documentation search"
			},
			"local-docs": {
				"protocol": "stdio",
				"command": "npx",
				"args": ["-y", "@local/docs-server"]
			}
		}
	}`)

	file, err := LoadServersFile(path)
	if err != nil {
		t.Fatalf("LoadServersFile() error = %v", err)
	}

	names := file.Names()
	if len(names) != 2 || names[0] != "local-docs" || names[1] != "microsoft-learn" {
		t.Errorf("Names() = %v, want sorted [local-docs microsoft-learn]", names)
	}

	learn, err := file.Get("microsoft-learn")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if learn.URL != "https://learn.microsoft.com/api/mcp" {
		t.Errorf("URL = %q", learn.URL)
	}
	if got := learn.ResolveProtocol(); got != ProtocolHTTP {
		t.Errorf("ResolveProtocol() = %q, want %q (inferred from url)", got, ProtocolHTTP)
	}

	local, err := file.Get("local-docs")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := local.ResolveProtocol(); got != ProtocolStdio {
		t.Errorf("ResolveProtocol() = %q, want %q", got, ProtocolStdio)
	}

	if _, err := file.Get("nope"); err == nil {
		t.Error("Get(nope) = nil error")
	}
}

func TestLoadServersFileRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "no servers", content: `{"mcpServers": {}}`},
		{name: "sse without url", content: `{"mcpServers": {"x": {"protocol": "sse"}}}`},
		{name: "stdio without command", content: `{"mcpServers": {"x": {"protocol": "stdio"}}}`},
		{name: "unknown protocol", content: `{"mcpServers": {"x": {"protocol": "grpc", "url": "http://x"}}}`},
		{name: "invalid json", content: `{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := LoadServersFile(path); err == nil {
				t.Error("LoadServersFile() = nil error")
			}
		})
	}
}

func TestLoadServersFileMissing(t *testing.T) {
	if _, err := LoadServersFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("LoadServersFile() = nil error for missing file")
	}
}
