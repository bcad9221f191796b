package agents

import (
	"strings"
	"testing"
)

func TestAzureArchitectName(t *testing.T) {
	def := AzureArchitect()

	if def.Name != "AzureArchitect" {
		t.Errorf("name = %q, want %q", def.Name, "AzureArchitect")
	}
	if err := def.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestAzureArchitectInstructions(t *testing.T) {
	def := AzureArchitect()

	if !strings.Contains(def.Instructions, "Azure Well Architected Framework") {
		t.Errorf("instructions do not reference the Azure Well Architected Framework:\n%s", def.Instructions)
	}

	// The advisor organizes findings by pillar; make sure the prompt names them.
	for _, pillar := range []string{
		"Reliability",
		"Security",
		"Cost",
		"Operational Excellence",
		"Performance Efficiency",
	} {
		if !strings.Contains(def.Instructions, pillar) {
			t.Errorf("instructions missing pillar %q", pillar)
		}
	}
}

func TestAzureArchitectLearnAttachment(t *testing.T) {
	def := AzureArchitect()

	if len(def.Tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(def.Tools))
	}
	tool := def.Tools[0]
	if tool.Type != ToolTypeMCP {
		t.Errorf("tool type = %q, want %q", tool.Type, ToolTypeMCP)
	}
	if tool.ServerURL != MicrosoftLearnMCPURL {
		t.Errorf("server URL = %q, want %q", tool.ServerURL, MicrosoftLearnMCPURL)
	}
	if err := tool.Validate(); err != nil {
		t.Errorf("tool Validate() = %v, want nil", err)
	}
}
