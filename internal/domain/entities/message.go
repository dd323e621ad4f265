package entities

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

type Message struct {
	ID         string        `json:"id" bson:"id"`
	ChatID     string        `json:"chat_id,omitempty" bson:"chat_id,omitempty"`
	Role       string        `json:"role" bson:"role"`
	Content    string        `json:"content" bson:"content"`
	Parts      []MessagePart `json:"parts,omitempty" bson:"parts,omitempty"`
	ModelID    string        `json:"model_id,omitempty" bson:"model_id,omitempty"`
	GroupID    string        `json:"group_id,omitempty" bson:"group_id,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty" bson:"tool_call_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at,omitempty" bson:"created_at,omitempty"`
}

// NewMessage creates an optimistic message. The id is client-generated and
// CreatedAt stays zero until the store confirms the write; reconciliation
// replaces both with the persisted values.
func NewMessage(role, content string) *Message {
	return &Message{
		ID:      uuid.New().String(),
		Role:    role,
		Content: content,
	}
}

// Persisted reports whether the store has confirmed this message.
func (m *Message) Persisted() bool {
	return !m.CreatedAt.IsZero()
}

// ToolResult reports whether this is a tool-role record carrying a completed
// result for a tool call observed on the assistant stream.
func (m *Message) ToolResult() bool {
	return m.Role == RoleTool && m.ToolCallID != ""
}
