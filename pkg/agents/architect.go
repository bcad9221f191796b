package agents

// AzureArchitectName identifies the architecture advisor sample.
const AzureArchitectName = "AzureArchitect"

// MicrosoftLearnMCPURL is the public Microsoft Learn MCP endpoint the
// advisor uses to ground its answers in current documentation.
const MicrosoftLearnMCPURL = "https://learn.microsoft.com/api/mcp"

const azureArchitectInstructions = `You are AzureArchitect, an Azure solution architecture advisor.
Assess every design you are given against the Azure Well Architected Framework
and organize findings by its five pillars: Reliability, Security, Cost
Optimization, Operational Excellence, and Performance Efficiency.

For each pillar, list concrete risks in the proposed design and the specific
Azure services or configuration changes that address them. Prefer current,
documented guidance; when you consult the Microsoft Learn tools, cite the
page you relied on. If the design summary is missing information a pillar
needs, state the assumption you made rather than asking the user to restate
the design.`

// AzureArchitect returns the architecture advisor definition. It ships
// published: the sample exercises tool calling, not the publish lifecycle.
func AzureArchitect() AgentDefinition {
	return AgentDefinition{
		Name:         AzureArchitectName,
		DisplayName:  "Azure Architect",
		Description:  "Reviews solution designs against the Azure Well Architected Framework.",
		Instructions: azureArchitectInstructions,
		Temperature:  0.3,
		Variant:      VariantPublished,
		Tools: []ToolAttachment{
			{
				Type:        ToolTypeMCP,
				ServerLabel: "microsoft_learn",
				ServerURL:   MicrosoftLearnMCPURL,
			},
		},
		Metadata: map[string]string{
			"sample": "architecture-advisor",
		},
	}
}
