package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies who produced a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	// RoleTool marks a tool execution result; ToolCallID ties it back to
	// the assistant tool call that requested it.
	RoleTool MessageRole = "tool"
)

// MaxMessageLength is the maximum accepted length of a chat message
const MaxMessageLength = 10000

// ToolCall records one model-declared function invocation on an assistant
// message. Arguments is the raw JSON the model produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single persisted entry in a conversation
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	UserID         uuid.UUID   `json:"user_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	ToolCalls      []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID     string      `json:"tool_call_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
