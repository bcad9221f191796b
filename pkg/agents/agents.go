// Package agents defines the sample agent catalog: declarative agent
// definitions (name, instructions, model, tool attachments) that the
// commands under cmd/ run against a model provider. Definitions are plain
// values so they can be published, stored, and compared without touching
// any remote service.
package agents

import (
	"errors"
	"fmt"
	"strings"
)

// Variant distinguishes the served copy of an agent from its local draft.
type Variant string

const (
	// VariantPublished marks the definition a deployment serves.
	VariantPublished Variant = "published"
	// VariantUnpublished marks a local draft that has not been published.
	VariantUnpublished Variant = "unpublished"
)

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	return v == VariantPublished || v == VariantUnpublished
}

func (v Variant) String() string { return string(v) }

// Tool attachment types understood by the runtime.
const (
	// ToolTypeMCP attaches a remote MCP server whose tools are offered to
	// the model during a run.
	ToolTypeMCP = "mcp"
)

// Validation and lookup errors.
var (
	ErrMissingName         = errors.New("agent definition has no name")
	ErrMissingInstructions = errors.New("agent definition has no instructions")
	ErrInvalidVariant      = errors.New("agent definition has an unknown variant")
	ErrInvalidTemperature  = errors.New("agent temperature must be between 0 and 2")
	ErrInvalidTool         = errors.New("agent tool attachment is invalid")
	ErrAgentNotFound       = errors.New("agent not found")
)

// ToolAttachment declares an external tool source an agent may call.
// Only MCP servers are supported today.
type ToolAttachment struct {
	Type         string   `json:"type"`
	ServerLabel  string   `json:"server_label,omitempty"`
	ServerURL    string   `json:"server_url,omitempty"`
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

// Validate checks a single tool attachment.
func (t ToolAttachment) Validate() error {
	switch t.Type {
	case ToolTypeMCP:
		if strings.TrimSpace(t.ServerURL) == "" {
			return fmt.Errorf("%w: mcp attachment %q has no server_url", ErrInvalidTool, t.ServerLabel)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown tool type %q", ErrInvalidTool, t.Type)
	}
}

// AgentDefinition is a complete, self-contained description of an agent.
// Name identifies the agent across variants; Variant tells published and
// draft copies of the same agent apart.
type AgentDefinition struct {
	Name         string            `json:"name"`
	DisplayName  string            `json:"display_name,omitempty"`
	Description  string            `json:"description,omitempty"`
	Model        string            `json:"model,omitempty"`
	Instructions string            `json:"instructions"`
	Temperature  float64           `json:"temperature,omitempty"`
	Tools        []ToolAttachment  `json:"tools,omitempty"`
	Variant      Variant           `json:"variant"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Validate checks the definition for the problems the runtime cannot work
// around. It reports the first problem found.
func (d AgentDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(d.Instructions) == "" {
		return fmt.Errorf("%w: %s", ErrMissingInstructions, d.Name)
	}
	if !d.Variant.Valid() {
		return fmt.Errorf("%w: %s has variant %q", ErrInvalidVariant, d.Name, d.Variant)
	}
	if d.Temperature < 0 || d.Temperature > 2 {
		return fmt.Errorf("%w: %s has temperature %v", ErrInvalidTemperature, d.Name, d.Temperature)
	}
	for _, tool := range d.Tools {
		if err := tool.Validate(); err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
	}
	return nil
}

// Clone returns a deep copy, so callers can adjust instructions or tools
// without mutating the catalog entries.
func (d AgentDefinition) Clone() AgentDefinition {
	out := d
	if d.Tools != nil {
		out.Tools = make([]ToolAttachment, len(d.Tools))
		copy(out.Tools, d.Tools)
		for i, tool := range d.Tools {
			if tool.AllowedTools != nil {
				out.Tools[i].AllowedTools = append([]string(nil), tool.AllowedTools...)
			}
		}
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// EffectiveModel resolves the model to run with: the definition's own model
// when set, otherwise the supplied deployment default.
func (d AgentDefinition) EffectiveModel(fallback string) string {
	if strings.TrimSpace(d.Model) != "" {
		return d.Model
	}
	return fallback
}

// Published reports whether this is the served copy of the agent.
func (d AgentDefinition) Published() bool { return d.Variant == VariantPublished }
