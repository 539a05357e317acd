package models

import "time"

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Citation source types.
const (
	CitationInternal = "internal"
	CitationExternal = "external"
)

// Conversation is one chat session. UpdatedAt is bumped whenever a turn is
// persisted.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is one persisted conversation turn. Assistant messages may carry
// the citation list derived from that turn's tool results.
type ChatMessage struct {
	ID             string     `json:"id,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	Sources        []Citation `json:"sources,omitempty"`
	CreatedAt      time.Time  `json:"createdAt,omitempty"`
}

// Citation points at one piece of evidence surfaced by a tool result.
type Citation struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

// ToolInvocation records one tool call made during an agent turn. It is
// ephemeral: only the derived citation list is persisted.
type ToolInvocation struct {
	ToolCallID string                 `json:"toolCallId"`
	ToolName   string                 `json:"toolName"`
	Args       map[string]interface{} `json:"args"`
	Result     interface{}            `json:"result"`
}
