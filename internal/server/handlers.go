package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/agent"
	"github.com/shibuya/kanshi/internal/ingest"
	"github.com/shibuya/kanshi/internal/knowledge"
	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/query"
	"github.com/shibuya/kanshi/internal/store"
)

// maxUploadBytes caps multipart document uploads.
const maxUploadBytes = 32 << 20

type chatRequest struct {
	ConversationID string               `json:"conversationId,omitempty"`
	Messages       []models.ChatMessage `json:"messages"`
	SignalSnapshot []models.Signal      `json:"signalSnapshot,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		s.respondError(w, http.StatusServiceUnavailable, "chat is not available")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.agent.Run(r.Context(), agent.RunInput{
		ConversationID: req.ConversationID,
		Messages:       req.Messages,
		Snapshot:       req.SignalSnapshot,
	})
	if err != nil {
		if errors.Is(err, agent.ErrEmptyConversation) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("chat turn failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		s.respondError(w, http.StatusBadRequest, "conversationId is required")
		return
	}
	messages, err := s.store.ListMessages(r.Context(), conversationID)
	if err != nil {
		s.logger.Error("list messages failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.store.ListConversations(r.Context())
	if err != nil {
		s.logger.Error("list conversations failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	conversation, err := s.store.CreateConversation(r.Context(), req.Title)
	if err != nil {
		s.logger.Error("create conversation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, conversation)
}

type syncResponse struct {
	Count   int             `json:"count"`
	Signals []models.Signal `json:"signals"`
	Message string          `json:"message"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		s.respondError(w, http.StatusServiceUnavailable, "ingestion is not available")
		return
	}
	source := r.URL.Query().Get("source")
	s.logger.Debug("sync request", zap.String("source", source))

	result, err := s.orchestrator.Run(r.Context(), source)
	if err != nil {
		if strings.HasPrefix(err.Error(), "unknown source") {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("sync failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	signals := result.Inserted
	if signals == nil {
		signals = []models.Signal{}
	}
	s.respondJSON(w, http.StatusOK, syncResponse{
		Count:   len(signals),
		Signals: signals,
		Message: syncMessage(result),
	})
}

func syncMessage(result *ingest.Result) string {
	msg := fmt.Sprintf("Ingested %d new signal(s), %d duplicate(s) skipped", len(result.Inserted), result.Skipped)
	if len(result.Errors) > 0 {
		failed := make([]string, 0, len(result.Errors))
		for name := range result.Errors {
			failed = append(failed, name)
		}
		sort.Strings(failed)
		msg += "; failed sources: " + strings.Join(failed, ", ")
	}
	return msg
}

func (s *Server) handleRecentSignals(w http.ResponseWriter, r *http.Request) {
	qa := models.SignalQueryArgs{Sort: models.SortNewest}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			qa.Limit = n
		}
	}
	if raw := r.URL.Query().Get("sources"); raw != "" {
		qa.Sources = strings.Split(raw, ",")
	}
	qa.Normalize(query.RecentDefaultLimit, query.RecentMaxLimit)

	signals, err := s.store.QuerySignals(r.Context(), query.Build(qa), qa.Sort, qa.Limit)
	if err != nil {
		s.logger.Error("recent signals failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if signals == nil {
		signals = []models.Signal{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"signals": signals})
}

// appsFetchLimit covers the top charts from both stores plus history rows
// that the URL dedup below collapses.
const appsFetchLimit = 1000

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	filters := query.Build(models.SignalQueryArgs{
		Sources: []string{"appstore", "playstore"},
	})
	signals, err := s.store.QuerySignals(r.Context(), filters, models.SortNewest, appsFetchLimit)
	if err != nil {
		s.logger.Error("apps query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Rows arrive newest first, so the first entry per app wins. URL is the
	// stable identity for store listings; fall back to the title line for
	// rows without one.
	seen := make(map[string]bool, len(signals))
	apps := []models.Signal{}
	for _, sig := range signals {
		key := sig.URL
		if key == "" {
			key, _, _ = strings.Cut(sig.Text, "\n")
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		apps = append(apps, sig)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"apps": apps})
}

func (s *Server) handleSearchSignals(w http.ResponseWriter, r *http.Request) {
	var qa models.SignalQueryArgs
	if err := json.NewDecoder(r.Body).Decode(&qa); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	qa.Normalize(query.StoreDefaultLimit, query.StoreMaxLimit)

	signals, err := s.store.QuerySignals(r.Context(), query.Build(qa), qa.Sort, qa.Limit)
	if err != nil {
		s.logger.Error("signal search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if signals == nil {
		signals = []models.Signal{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"signals": signals})
}

func (s *Server) handleSignalVolume(w http.ResponseWriter, r *http.Request) {
	var va models.VolumeArgs
	if err := json.NewDecoder(r.Body).Decode(&va); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	va.Normalize()

	buckets, err := s.store.SignalVolume(r.Context(), query.BuildVolume(va), va.Granularity, va.GroupBy)
	if err != nil {
		s.logger.Error("signal volume failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if buckets == nil {
		buckets = []models.VolumeBucket{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"buckets": buckets})
}

type knowledgeIngestRequest struct {
	Title    string                 `json:"title"`
	Text     string                 `json:"text"`
	Source   string                 `json:"source,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (s *Server) handleKnowledgeIngest(w http.ResponseWriter, r *http.Request) {
	var req knowledgeIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.knowledge.Ingest(r.Context(), knowledge.IngestInput{
		Title:    req.Title,
		Text:     req.Text,
		Source:   req.Source,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Cached {
		status = http.StatusOK
	}
	s.respondJSON(w, status, result)
}

func (s *Server) handleKnowledgeIngestFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text, err := s.extractor.ExtractBytes(content, filepath.Ext(header.Filename))
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "text extraction failed: "+err.Error())
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	result, err := s.knowledge.Ingest(r.Context(), knowledge.IngestInput{
		Title:  title,
		Text:   text,
		Source: "file",
		Metadata: map[string]interface{}{
			"filename": header.Filename,
		},
	})
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Cached {
		status = http.StatusOK
	}
	s.respondJSON(w, status, result)
}

func (s *Server) handleKnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"topK,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	results, err := s.knowledge.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.logger.Error("knowledge search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []models.KnowledgeSearchResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleKnowledgeGet(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docId")
	doc, err := s.knowledge.Get(r.Context(), docID)
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleKnowledgeDelete(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docId")
	s.logger.Debug("delete document request", zap.String("docId", docID))

	deleted, err := s.knowledge.Delete(r.Context(), docID)
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "deleted",
		"deletedChunks": deleted,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	signalCount, err := s.store.CountSignals(ctx)
	if err != nil {
		s.logger.Error("status: count signals failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docCount, err := s.store.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.store.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"signals":   signalCount,
		"documents": docCount,
		"chunks":    chunkCount,
	}
	if st, ok := s.store.(*store.SQLiteStore); ok {
		resp["disk_usage_bytes"] = st.DiskUsageBytes()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondIngestError maps knowledge errors to their HTTP status; anything
// else is a 500.
func (s *Server) respondIngestError(w http.ResponseWriter, err error) {
	var ie *knowledge.IngestError
	if errors.As(err, &ie) {
		s.respondError(w, ie.Status, ie.Message)
		return
	}
	s.logger.Error("knowledge operation failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
