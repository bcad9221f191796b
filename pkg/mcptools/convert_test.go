package mcptools

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestLLMTools(t *testing.T) {
	tools := []mcp.Tool{
		{
			Name:        "microsoft_docs_search",
			Description: "Search Microsoft Learn documentation",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{"type": "string"},
					"tags":  map[string]any{"type": "array"},
					"filter": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"ids": map[string]any{"type": "array"},
						},
					},
				},
				Required: []string{"query"},
			},
		},
	}

	converted, err := LLMTools(tools)
	if err != nil {
		t.Fatalf("LLMTools() error = %v", err)
	}
	if len(converted) != 1 {
		t.Fatalf("len(converted) = %d, want 1", len(converted))
	}

	fn := converted[0].Function
	if converted[0].Type != "function" || fn == nil {
		t.Fatalf("converted[0] = %+v, want function tool", converted[0])
	}
	if fn.Name != "microsoft_docs_search" {
		t.Errorf("Name = %q", fn.Name)
	}
	if fn.Description != "Search Microsoft Learn documentation" {
		t.Errorf("Description = %q", fn.Description)
	}

	params, ok := fn.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("Parameters has type %T, want map[string]any", fn.Parameters)
	}
	props := params["properties"].(map[string]any)

	tags := props["tags"].(map[string]any)
	items, ok := tags["items"].(map[string]any)
	if !ok || items["type"] != "string" {
		t.Errorf("tags.items = %v, want default string items", tags["items"])
	}

	filter := props["filter"].(map[string]any)
	ids := filter["properties"].(map[string]any)["ids"].(map[string]any)
	nested, ok := ids["items"].(map[string]any)
	if !ok || nested["type"] != "string" {
		t.Errorf("filter.ids.items = %v, want default string items", ids["items"])
	}

	query := props["query"].(map[string]any)
	if _, hasItems := query["items"]; hasItems {
		t.Error("query gained an items field, non-array properties must stay untouched")
	}
}

func TestNormalizeArrayPropertiesKeepsExistingItems(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"codes": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
		},
	}

	normalizeArrayProperties(schema)

	items := schema["properties"].(map[string]any)["codes"].(map[string]any)["items"].(map[string]any)
	if items["type"] != "integer" {
		t.Errorf("items.type = %v, want integer preserved", items["type"])
	}
}

func TestParseToolArguments(t *testing.T) {
	args, err := ParseToolArguments(`{"query": "cosmos db", "limit": 3}`)
	if err != nil {
		t.Fatalf("ParseToolArguments() error = %v", err)
	}
	if args["query"] != "cosmos db" {
		t.Errorf("query = %v", args["query"])
	}

	empty, err := ParseToolArguments("  ")
	if err != nil {
		t.Fatalf("ParseToolArguments(blank) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("blank arguments produced %v, want empty map", empty)
	}

	if _, err := ParseToolArguments(`{"broken"`); err == nil {
		t.Error("ParseToolArguments(bad json) = nil error")
	}
}

func TestResultText(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "first"},
			&mcp.TextContent{Text: "second"},
		},
	}
	if got := ResultText(result); got != "first\nsecond" {
		t.Errorf("ResultText() = %q, want joined text parts", got)
	}

	failed := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "boom"}},
		IsError: true,
	}
	if got := ResultText(failed); got != "tool call failed: boom" {
		t.Errorf("ResultText(error) = %q", got)
	}

	if got := ResultText(nil); got != "" {
		t.Errorf("ResultText(nil) = %q, want empty", got)
	}
}
