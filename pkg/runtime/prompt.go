package runtime

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/agents"
)

// toolGuidance is appended to the system prompt whenever tools are attached.
const toolGuidance = `When a question needs information you do not have, call one of the available
tools instead of guessing. Call tools one at a time and wait for each result
before deciding the next step. If a call fails, adjust the arguments and try
again or pick another tool. Ground your final answer in the tool results and
name the sources you used.`

// BuildSystemPrompt assembles an agent's system prompt: its instructions,
// then an inventory of the attached tools, then usage guidance. Agents
// without tools get the instructions alone.
func BuildSystemPrompt(def agents.AgentDefinition, tools []llms.Tool) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(def.Instructions))

	named := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		if tool.Function != nil && tool.Function.Name != "" {
			named = append(named, tool)
		}
	}
	if len(named) == 0 {
		return b.String()
	}

	b.WriteString("\n\n## Available tools\n\n")
	for _, tool := range named {
		if tool.Function.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", tool.Function.Name, strings.TrimSpace(tool.Function.Description))
		} else {
			fmt.Fprintf(&b, "- %s\n", tool.Function.Name)
		}
	}
	b.WriteString("\n")
	b.WriteString(toolGuidance)
	return b.String()
}
