package api

import "encoding/json"

// Tool describes one invocable operation.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolsResponse lists the tools the caller may invoke.
type ToolsResponse struct {
	Tools []Tool `json:"tools"`
}

// ToolResult is the outcome of a direct tool invocation.
type ToolResult struct {
	Payload any    `json:"payload,omitempty"`
	Text    string `json:"text"`
}

// ChatMessage is one prior message of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks for one conversational turn.
type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
}

// ToolCallInfo reports a tool call made during a turn.
type ToolCallInfo struct {
	Arguments json.RawMessage `json:"arguments"`
	Name      string          `json:"name"`
	Error     string          `json:"error,omitempty"`
}

// ChatResponse is the answer to a ChatRequest.
type ChatResponse struct {
	Response  string         `json:"response"`
	ToolCalls []ToolCallInfo `json:"tool_calls"`
}
