package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shibuya/kanshi/internal/embedding"
	"github.com/shibuya/kanshi/internal/knowledge"
	"github.com/shibuya/kanshi/internal/llm"
	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/store"
)

// scriptedClient replies with tool calls until its script runs out, then with
// plain text.
type scriptedClient struct {
	calls     int
	script    [][]llm.ToolCall
	finalText string
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (*llm.Response, error) {
	defer func() { c.calls++ }()
	if c.calls < len(c.script) {
		return &llm.Response{ToolCalls: c.script[c.calls]}, nil
	}
	return &llm.Response{Text: c.finalText}, nil
}

func newTestAgent(t *testing.T, client llm.Client) (*Agent, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	kn := knowledge.NewService(st, embedding.NewMockEmbedder(32), nil, 0, 0)
	dispatcher := NewDispatcher(st, kn, nil, nil)
	return New(client, dispatcher, st, nil), st
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Args: args}
}

func TestRun_NoTools(t *testing.T) {
	client := &scriptedClient{finalText: "direct answer"}
	a, _ := newTestAgent(t, client)

	res, err := a.Run(context.Background(), RunInput{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Message.Content != "direct answer" {
		t.Errorf("got %q", res.Message.Content)
	}
	if len(res.ToolInvocations) != 0 {
		t.Errorf("expected no invocations, got %d", len(res.ToolInvocations))
	}
}

func TestRun_ToolLoopBounded(t *testing.T) {
	// The model asks for tools on every round; the loop must stop after the
	// limit and take the next response as final.
	endless := make([][]llm.ToolCall, 10)
	for i := range endless {
		endless[i] = []llm.ToolCall{toolCall("c", ToolRecentSignals, `{}`)}
	}
	client := &scriptedClient{script: endless, finalText: ""}
	a, _ := newTestAgent(t, client)

	res, err := a.Run(context.Background(), RunInput{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "keep digging"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ToolInvocations) != DefaultMaxToolLoops {
		t.Errorf("expected %d invocations, got %d", DefaultMaxToolLoops, len(res.ToolInvocations))
	}
	// 1 initial call + maxToolLoops continuation calls.
	if client.calls != DefaultMaxToolLoops+1 {
		t.Errorf("expected %d model calls, got %d", DefaultMaxToolLoops+1, client.calls)
	}
}

func TestRun_ToolResultsAndCitations(t *testing.T) {
	client := &scriptedClient{
		script: [][]llm.ToolCall{
			{toolCall("c1", ToolSearchSignals, `{"query":"pricing"}`)},
		},
		finalText: "pricing chatter is up",
	}
	a, st := newTestAgent(t, client)
	ctx := context.Background()

	sig := models.Signal{
		Source:    "reddit",
		Type:      "post",
		Text:      "pricing went up again " + strings.Repeat("x", 300),
		URL:       "https://example.com/post",
		Timestamp: time.Now(),
	}
	if err := st.InsertSignal(ctx, &sig); err != nil {
		t.Fatal(err)
	}

	res, err := a.Run(ctx, RunInput{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "what about pricing?"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.ToolInvocations) != 1 || res.ToolInvocations[0].ToolName != ToolSearchSignals {
		t.Fatalf("unexpected invocations: %+v", res.ToolInvocations)
	}
	if len(res.Message.Sources) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(res.Message.Sources))
	}
	cite := res.Message.Sources[0]
	if cite.Type != models.CitationExternal || cite.Title != "reddit" || cite.URL != "https://example.com/post" {
		t.Errorf("unexpected citation: %+v", cite)
	}
	if len(cite.Snippet) > DefaultSnippetLen+3 {
		t.Errorf("snippet too long: %d", len(cite.Snippet))
	}
}

func TestRun_PersistsConversation(t *testing.T) {
	client := &scriptedClient{finalText: "saved answer"}
	a, st := newTestAgent(t, client)
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "Research")
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Run(ctx, RunInput{
		ConversationID: conv.ID,
		Messages:       []models.ChatMessage{{Role: models.RoleUser, Content: "question"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	history, err := st.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[1].Content != "saved answer" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestRun_EmptyMessages(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedClient{})
	if _, err := a.Run(context.Background(), RunInput{}); err != ErrEmptyConversation {
		t.Errorf("expected ErrEmptyConversation, got %v", err)
	}
}

func TestBuildMessages_StripsLeadingAssistant(t *testing.T) {
	a, _ := newTestAgent(t, &scriptedClient{})
	msgs := a.buildMessages([]models.ChatMessage{
		{Role: models.RoleAssistant, Content: "welcome"},
		{Role: models.RoleUser, Content: "hi"},
	})
	if msgs[0].Role != llm.RoleSystem {
		t.Fatal("expected system prompt first")
	}
	if len(msgs) != 2 || msgs[1].Role != llm.RoleUser {
		t.Errorf("leading assistant message should be dropped: %+v", msgs)
	}
}
