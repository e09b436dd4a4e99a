package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/iudanet/passprotect/internal/server/gateway"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the conversation sent to the planner.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a planner's request to run a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Reply is the planner's answer: final text, tool calls, or both.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Planner chooses tool calls and writes answers. Its output is untrusted:
// every tool call it asks for goes through the gateway.
type Planner interface {
	// Plan returns the next assistant reply. tools may be empty, in which
	// case the planner must answer in text.
	Plan(ctx context.Context, messages []Message, tools []gateway.Tool) (*Reply, error)
}
