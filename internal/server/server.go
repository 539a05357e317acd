// Package server provides the HTTP API for Kanshi.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/agent"
	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/extract"
	"github.com/shibuya/kanshi/internal/ingest"
	"github.com/shibuya/kanshi/internal/knowledge"
	"github.com/shibuya/kanshi/internal/store"
)

// Server is the HTTP server for the Kanshi API.
type Server struct {
	store        store.Store
	knowledge    *knowledge.Service
	agent        *agent.Agent
	orchestrator *ingest.Orchestrator
	extractor    *extract.Extractor
	config       *config.ServerConfig
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. agent and
// orchestrator may be nil; their endpoints then report unavailability.
func NewServer(
	st store.Store,
	kn *knowledge.Service,
	ag *agent.Agent,
	orch *ingest.Orchestrator,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:        st,
		knowledge:    kn,
		agent:        ag,
		orchestrator: orch,
		extractor:    extract.NewExtractor(),
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/chat/history", s.handleChatHistory)
	r.Get("/api/conversations", s.handleListConversations)
	r.Post("/api/conversations", s.handleCreateConversation)

	r.Post("/api/sync", s.handleSync)
	r.Get("/api/signals/recent", s.handleRecentSignals)
	r.Post("/api/signals/search", s.handleSearchSignals)
	r.Post("/api/signals/volume", s.handleSignalVolume)
	r.Get("/api/apps", s.handleApps)

	r.Post("/api/knowledge/ingest", s.handleKnowledgeIngest)
	r.Post("/api/knowledge/ingest-file", s.handleKnowledgeIngestFile)
	r.Post("/api/knowledge/search", s.handleKnowledgeSearch)
	r.Get("/api/knowledge/{docId}", s.handleKnowledgeGet)
	r.Delete("/api/knowledge/{docId}", s.handleKnowledgeDelete)

	r.Get("/api/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
