// Package agent implements the tool-calling research loop over signals and
// internal knowledge.
package agent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/knowledge"
	"github.com/shibuya/kanshi/internal/llm"
	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/query"
	"github.com/shibuya/kanshi/internal/store"
)

// Tool names.
const (
	ToolSearchKnowledge     = "search_internal_knowledge"
	ToolSearchSignals       = "search_signals"
	ToolSearchCachedSignals = "search_cached_signals"
	ToolRecentSignals       = "get_recent_signals"
	ToolSignalVolume        = "get_signal_volume"
	ToolSyncSignals         = "sync_signals"
)

// Syncer triggers signal ingestion. An empty source means all enabled sources.
type Syncer interface {
	Sync(ctx context.Context, source string) ([]models.Signal, error)
}

// SyncResult is the sync_signals tool payload: the total ingested count plus a
// sample of the first signals.
type SyncResult struct {
	Count   int             `json:"count"`
	Signals []models.Signal `json:"signals"`
}

const syncSampleSize = 25

// Dispatcher routes tool calls to their implementations. Tool failures are
// returned as structured results, never as errors, so the model can react.
type Dispatcher struct {
	store     store.Store
	knowledge *knowledge.Service
	syncer    Syncer
	logger    *zap.Logger
}

// NewDispatcher creates a tool dispatcher. syncer may be nil, in which case
// sync_signals reports an error result.
func NewDispatcher(st store.Store, kn *knowledge.Service, syncer Syncer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: st, knowledge: kn, syncer: syncer, logger: logger}
}

// Dispatch executes one tool call against the given client snapshot and
// returns its result. Unknown tools and tool failures produce an error map.
func (d *Dispatcher) Dispatch(ctx context.Context, name, argsJSON string, snapshot []models.Signal) interface{} {
	args := map[string]interface{}{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return errResult("invalid tool arguments: " + err.Error())
		}
	}

	switch name {
	case ToolSearchKnowledge:
		q, _ := args["query"].(string)
		if strings.TrimSpace(q) == "" {
			return errResult("Missing query")
		}
		topK := intArg(args, "topK", knowledge.SearchDefaultTopK)
		results, err := d.knowledge.Search(ctx, q, topK)
		if err != nil {
			return errResult(err.Error())
		}
		return results

	case ToolSearchSignals:
		return d.searchSignals(ctx, queryArgsFrom(args))

	case ToolSearchCachedSignals:
		if len(snapshot) == 0 {
			return map[string]string{"warning": "No cached signals provided"}
		}
		return query.SearchSnapshot(queryArgsFrom(args), snapshot)

	case ToolRecentSignals:
		qa := models.SignalQueryArgs{
			Sources: stringListArg(args, "sources"),
			Limit:   intArg(args, "limit", query.RecentDefaultLimit),
			Sort:    models.SortNewest,
		}
		qa.Normalize(query.RecentDefaultLimit, query.RecentMaxLimit)
		return d.searchSignals(ctx, qa)

	case ToolSignalVolume:
		va := models.VolumeArgs{
			Granularity: stringArg(args, "granularity"),
			StartDate:   stringArg(args, "startDate"),
			EndDate:     stringArg(args, "endDate"),
			SinceDays:   intArg(args, "sinceDays", 0),
			Sources:     stringListArg(args, "sources"),
			Types:       stringListArg(args, "types"),
			GroupBy:     stringArg(args, "groupBy"),
		}
		va.Normalize()
		buckets, err := d.store.SignalVolume(ctx, query.BuildVolume(va), va.Granularity, va.GroupBy)
		if err != nil {
			return errResult(err.Error())
		}
		if buckets == nil {
			buckets = []models.VolumeBucket{}
		}
		return buckets

	case ToolSyncSignals:
		if d.syncer == nil {
			return errResult("ingestion is not available")
		}
		source := stringArg(args, "source")
		ingested, err := d.syncer.Sync(ctx, source)
		if err != nil {
			return errResult(err.Error())
		}
		sample := ingested
		if len(sample) > syncSampleSize {
			sample = sample[:syncSampleSize]
		}
		if sample == nil {
			sample = []models.Signal{}
		}
		return SyncResult{Count: len(ingested), Signals: sample}

	default:
		return errResult("Unknown tool: " + name)
	}
}

func (d *Dispatcher) searchSignals(ctx context.Context, qa models.SignalQueryArgs) interface{} {
	qa.Normalize(query.StoreDefaultLimit, query.StoreMaxLimit)
	signals, err := d.store.QuerySignals(ctx, query.Build(qa), qa.Sort, qa.Limit)
	if err != nil {
		return errResult(err.Error())
	}
	if signals == nil {
		signals = []models.Signal{}
	}
	return signals
}

func errResult(message string) map[string]string {
	return map[string]string{"error": message}
}

func queryArgsFrom(args map[string]interface{}) models.SignalQueryArgs {
	qa := models.SignalQueryArgs{
		Query:     stringArg(args, "query"),
		Sources:   stringListArg(args, "sources"),
		Types:     stringListArg(args, "types"),
		StartDate: stringArg(args, "startDate"),
		EndDate:   stringArg(args, "endDate"),
		SinceDays: intArg(args, "sinceDays", 0),
		Limit:     intArg(args, "limit", 0),
		Sort:      stringArg(args, "sort"),
	}
	if v, ok := args["minEngagement"].(float64); ok {
		qa.MinEngagement = &v
	}
	return qa
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func stringListArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToolDefs returns the tool declarations advertised to the model.
func ToolDefs() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        ToolSearchKnowledge,
			Description: "Semantic search across internal docs and knowledge chunks. Returns relevant snippets with document metadata.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "What to search for in internal docs."},
					"topK": {"type": "integer", "description": "Number of results to return (1-20)."}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        ToolSearchSignals,
			Description: "Search stored external signals with metadata filters. Use this for external trends, chatter, and competitive info.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Text query to match against signal text."},
					"sources": {"type": "array", "items": {"type": "string"}, "description": "Filter by signal sources (e.g., reddit, producthunt, appstore)."},
					"types": {"type": "array", "items": {"type": "string"}, "description": "Filter by signal types (post, comment, review, launch)."},
					"startDate": {"type": "string", "description": "Start of date range (ISO)."},
					"endDate": {"type": "string", "description": "End of date range (ISO)."},
					"sinceDays": {"type": "integer", "description": "Look back N days from now."},
					"minEngagement": {"type": "integer", "description": "Minimum engagement score across likes/upvotes/replies."},
					"limit": {"type": "integer", "description": "Max results to return (1-100)."},
					"sort": {"type": "string", "description": "Sort order: newest, oldest, or engagement."}
				}
			}`),
		},
		{
			Name:        ToolSearchCachedSignals,
			Description: "Search the client-side cached signal snapshot when data was just synced and may not be stored yet.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Text query to match against signal text."},
					"sources": {"type": "array", "items": {"type": "string"}, "description": "Filter by signal sources."},
					"types": {"type": "array", "items": {"type": "string"}, "description": "Filter by signal types."},
					"sinceDays": {"type": "integer", "description": "Look back N days from now."},
					"minEngagement": {"type": "integer", "description": "Minimum engagement score across likes/upvotes/replies."},
					"limit": {"type": "integer", "description": "Max results to return (1-200)."},
					"sort": {"type": "string", "description": "Sort order: newest, oldest, or engagement."}
				}
			}`),
		},
		{
			Name:        ToolRecentSignals,
			Description: "Fetch the most recent signals, optionally filtered by source.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sources": {"type": "array", "items": {"type": "string"}, "description": "Filter by signal sources."},
					"limit": {"type": "integer", "description": "Max results to return (1-50)."}
				}
			}`),
		},
		{
			Name:        ToolSignalVolume,
			Description: "Return counts of signals over time for trend analysis. Use this to detect momentum changes.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"granularity": {"type": "string", "description": "Bucket size: day or week."},
					"startDate": {"type": "string", "description": "Start of date range (ISO)."},
					"endDate": {"type": "string", "description": "End of date range (ISO)."},
					"sinceDays": {"type": "integer", "description": "Look back N days from now."},
					"sources": {"type": "array", "items": {"type": "string"}, "description": "Filter by signal sources."},
					"types": {"type": "array", "items": {"type": "string"}, "description": "Filter by signal types."},
					"groupBy": {"type": "string", "description": "Optional grouping: source, type, or none."}
				}
			}`),
		},
		{
			Name:        ToolSyncSignals,
			Description: "Trigger signal ingestion for all sources or a single source. Use sparingly.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"source": {"type": "string", "description": "Optional source to sync (reddit, producthunt, appstore, playstore, hackernews, rss, yc, gdelt)."}
				}
			}`),
		},
	}
}
