package history

import (
	"time"
)

// Message roles stored in history. They mirror the chat roles the model
// providers understand.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Thread is one stored conversation with an agent.
type Thread struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	AgentName    string    `json:"agent_name"`
	Variant      string    `json:"variant"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count,omitempty"`
}

// Message is one chat message inside a thread. Seq orders messages within
// their thread; it is assigned by the store.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RunEvent is a persisted entry from a run's event stream, kept alongside
// the thread so past runs can be inspected after the process exits.
type RunEvent struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	SessionID string    `json:"session_id,omitempty"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateThreadRequest carries the fields callers choose when opening a
// thread. ID is optional; stores assign one when it is empty.
type CreateThreadRequest struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	AgentName string `json:"agent_name"`
	Variant   string `json:"variant"`
}

// AppendMessageRequest adds one message to an existing thread.
type AppendMessageRequest struct {
	ThreadID string `json:"thread_id"`
	Role     string `json:"role"`
	Content  string `json:"content"`
}
