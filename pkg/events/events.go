// Package events defines the run event stream emitted while an agent
// executes: lifecycle, model calls, tool calls, and publish operations.
// Events feed the observability tracers, the run history store, and the
// polling endpoint served by cmd/server.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names one step in an agent run.
type EventType string

const (
	// Run lifecycle.
	RunStart EventType = "run_start"
	RunEnd   EventType = "run_end"
	RunError EventType = "run_error"
	RunTurn  EventType = "run_turn"

	// Messages exchanged with the model.
	SystemPrompt     EventType = "system_prompt"
	UserMessage      EventType = "user_message"
	AssistantMessage EventType = "assistant_message"

	// Model calls.
	LLMGenerationStart EventType = "llm_generation_start"
	LLMGenerationEnd   EventType = "llm_generation_end"
	LLMGenerationError EventType = "llm_generation_error"
	FallbackModelUsed  EventType = "fallback_model_used"
	TokenUsage         EventType = "token_usage"
	TokenLimitExceeded EventType = "token_limit_exceeded"
	MaxTurnsReached    EventType = "max_turns_reached"

	// Tool calls.
	ToolCallStart EventType = "tool_call_start"
	ToolCallEnd   EventType = "tool_call_end"
	ToolCallError EventType = "tool_call_error"

	// MCP server connections.
	MCPConnectStart EventType = "mcp_connect_start"
	MCPConnectEnd   EventType = "mcp_connect_end"
	MCPConnectError EventType = "mcp_connect_error"

	// Registry operations.
	AgentPublished   EventType = "agent_published"
	AgentUnpublished EventType = "agent_unpublished"
)

// Event is one entry in a run's event stream. SessionID groups the events
// of a single run; ThreadID links them to stored conversation history.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	AgentName string         `json:"agent_name,omitempty"`
	Variant   string         `json:"variant,omitempty"`
	Error     string         `json:"error,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New builds an event with a fresh ID and the current time.
func New(eventType EventType) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{},
	}
}

// With adds a payload field and returns the event for chaining.
func (e *Event) With(key string, value any) *Event {
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	e.Payload[key] = value
	return e
}

// Listener receives events as a run progresses. Implementations must be
// safe for concurrent use; HandleEvent errors are logged, never fatal.
type Listener interface {
	HandleEvent(ctx context.Context, event *Event) error
	Name() string
}

// IsError reports whether the event type marks a failure.
func IsError(t EventType) bool {
	switch t {
	case RunError, LLMGenerationError, ToolCallError, MCPConnectError:
		return true
	}
	return false
}

// IsTerminal reports whether the event ends a run.
func IsTerminal(t EventType) bool {
	return t == RunEnd || t == RunError
}
