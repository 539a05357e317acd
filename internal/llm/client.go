// Package llm abstracts the chat completion backend used by the research agent.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a chat completion request. Tool-role messages carry
// the ToolCallID they answer; assistant-role messages may carry the tool calls
// they requested.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolCall is one tool invocation requested by the model. Args is the raw JSON
// argument object as produced by the model.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// ToolDef declares one callable tool with a JSON Schema parameter object.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Response is the model's reply: free text, tool calls, or both.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Client produces chat completions with optional tool calling.
type Client interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error)
}
