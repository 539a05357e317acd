package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/llm"
	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/store"
	"github.com/shibuya/kanshi/pkg/utils"
)

// Loop and citation bounds.
const (
	DefaultMaxToolLoops = 3
	DefaultMaxCitations = 12
	DefaultSnippetLen   = 240
)

// ErrEmptyConversation is returned when a turn carries no messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

const systemInstruction = `You are a research analyst for consumer and market signals.
You have tools that can search internal knowledge, query external signals, and compute trend volumes.

Rules:
- Always use tools when a question needs evidence from signals or internal docs.
- Prefer internal knowledge first if the question references company strategy or docs.
- Use signals tools for market trends, recent chatter, and competitive moves.
- Cite evidence clearly by source and date when you reference data.
- Be concise but thorough: state findings, evidence, and your judgment.
- If evidence is thin, say so and propose the next best query to run.

When using tools, you can call multiple tools in sequence to triangulate:
- search_internal_knowledge for org context
- search_signals or search_cached_signals for external signals
- get_signal_volume for trend movement over time
- sync_signals if ingestion is required
`

// Agent runs the bounded tool loop for one chat turn.
type Agent struct {
	client       llm.Client
	dispatcher   *Dispatcher
	store        store.Store
	logger       *zap.Logger
	maxToolLoops int
	maxCitations int
	snippetLen   int
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxToolLoops overrides the tool round limit.
func WithMaxToolLoops(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxToolLoops = n
		}
	}
}

// WithCitationLimits overrides the citation count and snippet length caps.
func WithCitationLimits(maxCitations, snippetLen int) Option {
	return func(a *Agent) {
		if maxCitations > 0 {
			a.maxCitations = maxCitations
		}
		if snippetLen > 0 {
			a.snippetLen = snippetLen
		}
	}
}

// New creates an agent. st may be nil to disable history persistence.
func New(client llm.Client, dispatcher *Dispatcher, st store.Store, logger *zap.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		client:       client,
		dispatcher:   dispatcher,
		store:        st,
		logger:       logger,
		maxToolLoops: DefaultMaxToolLoops,
		maxCitations: DefaultMaxCitations,
		snippetLen:   DefaultSnippetLen,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunInput is one chat turn request. Messages is the full conversation with
// the new user message last. Snapshot is the client-held signal cache for
// search_cached_signals.
type RunInput struct {
	ConversationID string
	Messages       []models.ChatMessage
	Snapshot       []models.Signal
}

// RunResult is the assistant's reply with the tool trace that produced it.
type RunResult struct {
	Message         models.ChatMessage      `json:"message"`
	ToolInvocations []models.ToolInvocation `json:"toolInvocations"`
}

// Run executes one agent turn: persist the user message, loop the model with
// tools for at most maxToolLoops rounds, then persist and return the reply.
// Persistence failures are logged, never surfaced; the turn still succeeds.
func (a *Agent) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	if len(input.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	last := input.Messages[len(input.Messages)-1]

	if input.ConversationID != "" && last.Role == models.RoleUser && a.store != nil {
		if err := a.store.AppendMessage(ctx, &models.ChatMessage{
			ConversationID: input.ConversationID,
			Role:           models.RoleUser,
			Content:        last.Content,
		}); err != nil {
			a.logger.Error("failed to save user message", zap.Error(err))
		}
		if err := a.store.TouchConversation(ctx, input.ConversationID); err != nil {
			a.logger.Error("failed to touch conversation", zap.Error(err))
		}
	}

	messages := a.buildMessages(input.Messages)
	tools := ToolDefs()

	var invocations []models.ToolInvocation
	resp, err := a.client.Chat(ctx, messages, tools)
	if err != nil {
		return nil, err
	}

	for loops := 0; len(resp.ToolCalls) > 0 && loops < a.maxToolLoops; loops++ {
		assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistant)

		results := a.runToolCalls(ctx, resp.ToolCalls, input.Snapshot)
		for i, call := range resp.ToolCalls {
			invocations = append(invocations, models.ToolInvocation{
				ToolCallID: callID(call),
				ToolName:   call.Name,
				Args:       parseArgs(call.Args),
				Result:     results[i],
			})
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    marshalResult(results[i]),
			})
		}

		resp, err = a.client.Chat(ctx, messages, tools)
		if err != nil {
			return nil, err
		}
	}

	sources := a.buildCitations(invocations)
	reply := models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: resp.Text,
		Sources: sources,
	}

	if input.ConversationID != "" && resp.Text != "" && a.store != nil {
		persisted := reply
		persisted.ConversationID = input.ConversationID
		if err := a.store.AppendMessage(ctx, &persisted); err != nil {
			a.logger.Error("failed to save assistant message", zap.Error(err))
		}
	}

	return &RunResult{Message: reply, ToolInvocations: invocations}, nil
}

// runToolCalls executes one round of tool calls concurrently, preserving the
// call order in the result slice.
func (a *Agent) runToolCalls(ctx context.Context, calls []llm.ToolCall, snapshot []models.Signal) []interface{} {
	results := make([]interface{}, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = a.dispatcher.Dispatch(ctx, call.Name, call.Args, snapshot)
		}(i, call)
	}
	wg.Wait()
	return results
}

// buildMessages converts chat history to model messages: system prompt first,
// then history with any leading assistant messages dropped.
func (a *Agent) buildMessages(history []models.ChatMessage) []llm.Message {
	out := []llm.Message{{Role: llm.RoleSystem, Content: systemInstruction}}

	start := 0
	for start < len(history) && history[start].Role == models.RoleAssistant {
		start++
	}
	for _, m := range history[start:] {
		role := llm.RoleUser
		if m.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// buildCitations derives the citation list from tool results: internal for
// knowledge hits, external for signal hits, capped at maxCitations with
// snippets truncated to snippetLen.
func (a *Agent) buildCitations(invocations []models.ToolInvocation) []models.Citation {
	var sources []models.Citation

	for _, inv := range invocations {
		switch inv.ToolName {
		case ToolSearchKnowledge:
			hits, ok := inv.Result.([]models.KnowledgeSearchResult)
			if !ok {
				continue
			}
			for _, hit := range hits {
				if hit.Text == "" {
					continue
				}
				title := hit.DocTitle
				if title == "" {
					title = "Internal doc"
				}
				sources = append(sources, models.Citation{
					Type:    models.CitationInternal,
					Title:   title,
					Snippet: utils.Truncate(hit.Text, a.snippetLen),
				})
			}
		case ToolSearchSignals, ToolRecentSignals, ToolSearchCachedSignals:
			hits, ok := inv.Result.([]models.Signal)
			if !ok {
				continue
			}
			for _, hit := range hits {
				if hit.Text == "" {
					continue
				}
				title := hit.Source
				if title == "" {
					title = "Signal"
				}
				sources = append(sources, models.Citation{
					Type:    models.CitationExternal,
					Title:   title,
					URL:     hit.URL,
					Snippet: utils.Truncate(hit.Text, a.snippetLen),
				})
			}
		}
	}

	if len(sources) > a.maxCitations {
		sources = sources[:a.maxCitations]
	}
	return sources
}

func callID(call llm.ToolCall) string {
	if call.ID != "" {
		return call.ID
	}
	return uuid.New().String()
}

func parseArgs(raw string) map[string]interface{} {
	args := map[string]interface{}{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &args)
	}
	return args
}

func marshalResult(result interface{}) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"error":"unserializable tool result"}`
	}
	return string(data)
}
