package mcptools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"
)

// LLMTools converts MCP tool definitions into the langchaingo tool shape.
// Schemas go through a JSON round trip so the providers see plain maps, and
// array properties missing an "items" field get a string default: several
// providers reject such schemas outright.
func LLMTools(tools []mcp.Tool) ([]llms.Tool, error) {
	out := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		schemaBytes, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for tool %s: %w", tool.Name, err)
		}
		var schema map[string]any
		if err := json.Unmarshal(schemaBytes, &schema); err != nil {
			return nil, fmt.Errorf("decode schema for tool %s: %w", tool.Name, err)
		}
		normalizeArrayProperties(schema)

		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		})
	}
	return out, nil
}

// normalizeArrayProperties walks a JSON schema and gives every array
// property without an "items" field a default of string items, recursing
// through nested objects and array item schemas.
func normalizeArrayProperties(schema map[string]any) {
	if schema == nil {
		return
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}

	for _, value := range properties {
		prop, ok := value.(map[string]any)
		if !ok {
			continue
		}
		switch propType, _ := prop["type"].(string); propType {
		case "array":
			if items, ok := prop["items"]; ok {
				if itemsMap, ok := items.(map[string]any); ok {
					normalizeArrayProperties(itemsMap)
				}
			} else {
				prop["items"] = map[string]any{"type": "string"}
			}
		case "object":
			normalizeArrayProperties(prop)
		}
	}
}

// ParseToolArguments decodes the JSON argument string a model produced for
// a tool call. An empty string means no arguments.
func ParseToolArguments(argsJSON string) (map[string]any, error) {
	if strings.TrimSpace(argsJSON) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("parse tool arguments: %w", err)
	}
	return args, nil
}

// ResultText flattens a tool result into the string fed back to the model.
// Text parts are joined; anything else is serialized as JSON so no content
// silently disappears.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		switch c := content.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.TextContent:
			parts = append(parts, c.Text)
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			} else {
				parts = append(parts, fmt.Sprintf("[unrenderable content %T]", content))
			}
		}
	}
	joined := strings.Join(parts, "\n")

	if result.IsError {
		return fmt.Sprintf("tool call failed: %s", joined)
	}
	return joined
}
