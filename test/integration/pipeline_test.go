// Package integration exercises the full ingest, query, knowledge, and agent
// stack against real SQLite storage.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shibuya/kanshi/internal/agent"
	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/embedding"
	"github.com/shibuya/kanshi/internal/ingest"
	"github.com/shibuya/kanshi/internal/knowledge"
	"github.com/shibuya/kanshi/internal/llm"
	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/query"
	"github.com/shibuya/kanshi/internal/server"
	"github.com/shibuya/kanshi/internal/sources"
	"github.com/shibuya/kanshi/internal/store"
)

type fakeSource struct {
	name    string
	signals []models.Signal
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, cfg config.SourceConfig) ([]models.Signal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.signals, nil
}

// scriptedClient replays canned model responses in order.
type scriptedClient struct {
	responses []*llm.Response
	calls     int
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (*llm.Response, error) {
	if c.calls >= len(c.responses) {
		return nil, errors.New("script exhausted")
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

type stack struct {
	store        *store.SQLiteStore
	knowledge    *knowledge.Service
	orchestrator *ingest.Orchestrator
}

func newStack(t *testing.T, adapters []sources.DataSource) *stack {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "kanshi.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	kn := knowledge.NewService(st, embedding.NewMockEmbedder(8), nil, 1000, 200)
	orch := ingest.NewOrchestrator(config.IngestConfig{DedupWindowHours: 20}, st, adapters, nil)
	return &stack{store: st, knowledge: kn, orchestrator: orch}
}

func signalsFixture(now time.Time) []sources.DataSource {
	return []sources.DataSource{
		&fakeSource{name: "reddit", signals: []models.Signal{
			{Source: "reddit", Type: "post", Text: "Pricing complaints keep piling up", URL: "https://reddit.example/p1", Timestamp: now.Add(-1 * time.Hour)},
			{Source: "reddit", Type: "comment", Text: "Cancel flow is hidden behind support chat", URL: "https://reddit.example/c1", Timestamp: now.Add(-2 * time.Hour)},
		}},
		&fakeSource{name: "hackernews", signals: []models.Signal{
			{Source: "hackernews", Type: "story", Text: "Show HN: subscription pricing analytics", URL: "https://news.ycombinator.com/item?id=1", Timestamp: now.Add(-30 * time.Minute)},
		}},
		&fakeSource{name: "gdelt", err: errors.New("upstream timeout")},
	}
}

func TestPipeline_IngestQueryAndDedup(t *testing.T) {
	now := time.Now().UTC()
	s := newStack(t, signalsFixture(now))
	ctx := context.Background()

	res, err := s.orchestrator.Run(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Inserted) != 3 {
		t.Fatalf("expected 3 inserted, got %d", len(res.Inserted))
	}
	if res.Errors["gdelt"] != "upstream timeout" {
		t.Errorf("expected gdelt failure recorded, got %v", res.Errors)
	}

	// A second run inside the dedup window must skip every URL-bearing signal.
	res2, err := s.orchestrator.Run(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res2.Inserted) != 0 || res2.Skipped != 3 {
		t.Fatalf("expected full dedup on rerun, got inserted=%d skipped=%d", len(res2.Inserted), res2.Skipped)
	}

	count, err := s.store.CountSignals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 stored signals, got %d", count)
	}
}

func TestPipeline_HTTPSurface(t *testing.T) {
	now := time.Now().UTC()
	s := newStack(t, signalsFixture(now))
	ctx := context.Background()
	if _, err := s.orchestrator.Run(ctx, ""); err != nil {
		t.Fatal(err)
	}

	srv := server.NewServer(s.store, s.knowledge, nil, s.orchestrator, &config.ServerConfig{Host: "localhost", Port: 0}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Text search over stored signals.
	body, _ := json.Marshal(models.SignalQueryArgs{Query: "pricing"})
	resp, err := http.Post(ts.URL+"/api/signals/search", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var searchOut struct {
		Signals []models.Signal `json:"signals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchOut); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(searchOut.Signals) != 2 {
		t.Fatalf("expected 2 pricing matches, got %d", len(searchOut.Signals))
	}

	// Knowledge round trip over HTTP.
	ingestBody := map[string]interface{}{
		"title": "Churn Memo",
		"text":  "Hidden cancel flows correlate with refund requests and chargebacks.",
	}
	body, _ = json.Marshal(ingestBody)
	resp, err = http.Post(ts.URL+"/api/knowledge/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var ingestOut knowledge.IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&ingestOut); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/knowledge/" + ingestOut.DocID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for stored doc, got %d", resp.StatusCode)
	}
}

func TestPipeline_AgentToolLoopOverRealStorage(t *testing.T) {
	now := time.Now().UTC()
	s := newStack(t, signalsFixture(now))
	ctx := context.Background()
	if _, err := s.orchestrator.Run(ctx, ""); err != nil {
		t.Fatal(err)
	}

	client := &scriptedClient{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:   "call-1",
			Name: agent.ToolSearchSignals,
			Args: `{"query": "pricing"}`,
		}}},
		{Text: "Pricing pushback is concentrated on hidden cancel flows."},
	}}
	dispatcher := agent.NewDispatcher(s.store, s.knowledge, s.orchestrator, nil)
	ag := agent.New(client, dispatcher, s.store, nil)

	conv, err := s.store.CreateConversation(ctx, "pricing research")
	if err != nil {
		t.Fatal(err)
	}

	result, err := ag.Run(ctx, agent.RunInput{
		ConversationID: conv.ID,
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: "What are people saying about pricing?"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Message.Content != "Pricing pushback is concentrated on hidden cancel flows." {
		t.Errorf("unexpected reply: %q", result.Message.Content)
	}
	if len(result.ToolInvocations) != 1 || result.ToolInvocations[0].ToolName != agent.ToolSearchSignals {
		t.Fatalf("expected one search_signals invocation, got %+v", result.ToolInvocations)
	}
	if len(result.Message.Sources) == 0 {
		t.Error("expected citations from the signal search")
	}

	// Both turn messages must be persisted on the conversation.
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestPipeline_ToolsSeeIngestedSignals(t *testing.T) {
	now := time.Now().UTC()
	s := newStack(t, []sources.DataSource{
		&fakeSource{name: "reddit", signals: []models.Signal{
			{Source: "reddit", Type: "post", Text: "thread about onboarding", URL: "https://reddit.example/a", Timestamp: now},
		}},
		&fakeSource{name: "hackernews", signals: []models.Signal{
			{Source: "hackernews", Type: "story", Text: "story about onboarding", URL: "https://hn.example/b", Timestamp: now},
		}},
	})
	ctx := context.Background()
	if _, err := s.orchestrator.Run(ctx, ""); err != nil {
		t.Fatal(err)
	}

	d := agent.NewDispatcher(s.store, s.knowledge, s.orchestrator, nil)

	out := d.Dispatch(ctx, agent.ToolSearchSignals, `{"sources": ["reddit"]}`, nil)
	signals, ok := out.([]models.Signal)
	if !ok {
		t.Fatalf("unexpected tool result type %T: %v", out, out)
	}
	if len(signals) != 1 || signals[0].Source != "reddit" {
		t.Fatalf("expected exactly the reddit signal, got %+v", signals)
	}

	out = d.Dispatch(ctx, agent.ToolSignalVolume, `{"granularity": "day"}`, nil)
	buckets, ok := out.([]models.VolumeBucket)
	if !ok {
		t.Fatalf("unexpected tool result type %T: %v", out, out)
	}
	if len(buckets) != 1 || buckets[0].Count != 2 {
		t.Fatalf("expected one bucket with count 2, got %+v", buckets)
	}
}

func TestPipeline_VolumeEndToEnd(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var sigs []models.Signal
	for i := 0; i < 4; i++ {
		sigs = append(sigs, models.Signal{
			Source:    "rss",
			Type:      "news",
			Text:      fmt.Sprintf("news item %d", i),
			URL:       fmt.Sprintf("https://news.example/%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}
	s := newStack(t, []sources.DataSource{&fakeSource{name: "rss", signals: sigs}})
	ctx := context.Background()
	if _, err := s.orchestrator.Run(ctx, ""); err != nil {
		t.Fatal(err)
	}

	va := models.VolumeArgs{Granularity: "day"}
	va.Normalize()
	buckets, err := s.store.SignalVolume(ctx, query.BuildVolume(va), va.Granularity, va.GroupBy)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 1 || buckets[0].Bucket != "2026-03-02" || buckets[0].Count != 4 {
		t.Fatalf("unexpected buckets: %+v", buckets)
	}
}
