package agents

// PersistentAgentName is shared by both variants of the persistent agent
// sample: the name is the identity a published agent keeps across sessions.
const PersistentAgentName = "PersistentAgent"

// persistentPublishedInstructions is the system prompt served once the
// agent has been published. It is deliberately small: the sample is about
// the agent lifecycle, not prompt engineering.
const persistentPublishedInstructions = `You are a helpful assistant. Answer questions accurately and concisely.
When you do not know something, say so instead of guessing.`

// persistentDraftInstructions is the local draft. It explains its own
// purpose so that anyone chatting with the unpublished copy can tell the
// two apart: the draft talks about persistence, the published copy does not.
const persistentDraftInstructions = `You are a helpful assistant demonstrating agent persistence.
Your definition is created once, stored, and reused across sessions instead of
being rebuilt on every run. When asked about yourself, explain how persistence
lets the same agent identity serve many conversations. Otherwise answer
questions accurately and concisely.`

// PersistentAgentPublished returns the served variant of the persistent
// agent sample.
func PersistentAgentPublished() AgentDefinition {
	return AgentDefinition{
		Name:         PersistentAgentName,
		DisplayName:  "Persistent Agent",
		Description:  "Minimal agent kept across sessions under a stable name.",
		Instructions: persistentPublishedInstructions,
		Temperature:  0.2,
		Variant:      VariantPublished,
		Metadata: map[string]string{
			"sample": "persistent-agent",
		},
	}
}

// PersistentAgentUnpublished returns the local draft variant. It shares the
// published agent's name; only the variant and instructions differ.
func PersistentAgentUnpublished() AgentDefinition {
	return AgentDefinition{
		Name:         PersistentAgentName,
		DisplayName:  "Persistent Agent (draft)",
		Description:  "Draft copy of the persistent agent, not yet published.",
		Instructions: persistentDraftInstructions,
		Temperature:  0.2,
		Variant:      VariantUnpublished,
		Metadata: map[string]string{
			"sample": "persistent-agent",
		},
	}
}
