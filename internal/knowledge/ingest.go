package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/embedding"
	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/store"
)

// IngestError carries an HTTP-mappable status alongside the ingestion failure.
type IngestError struct {
	Message string
	Status  int
}

func (e *IngestError) Error() string {
	return e.Message
}

func newIngestError(status int, format string, args ...interface{}) *IngestError {
	return &IngestError{Message: fmt.Sprintf(format, args...), Status: status}
}

// IngestInput describes one document to ingest.
type IngestInput struct {
	Title    string
	Text     string
	Source   string
	Metadata map[string]interface{}
}

// IngestResult reports the outcome of an ingestion.
type IngestResult struct {
	DocID  string `json:"docId"`
	Chunks int    `json:"chunks,omitempty"`
	Cached bool   `json:"cached,omitempty"`
}

// Service owns the knowledge base lifecycle.
type Service struct {
	store        store.Store
	embedder     embedding.Embedder
	logger       *zap.Logger
	chunkSize    int
	chunkOverlap int
}

// NewService creates a knowledge service. Zero chunk parameters fall back to
// the defaults.
func NewService(st store.Store, embedder embedding.Embedder, logger *zap.Logger, chunkSize, chunkOverlap int) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        st,
		embedder:     embedder,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest chunks, embeds, and stores a document. Identical text short-circuits
// against an existing ready document; a processing duplicate conflicts; a
// failed duplicate is retried in place under its original ID. Any chunk
// failure fails the whole document.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, newIngestError(http.StatusBadRequest, "title is required")
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, newIngestError(http.StatusBadRequest, "text is required")
	}
	if input.Source == "" {
		input.Source = "manual"
	}

	sum := sha256.Sum256([]byte(input.Text))
	contentHash := hex.EncodeToString(sum[:])

	existing, err := s.store.GetDocumentByHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case models.DocStatusReady:
			return &IngestResult{DocID: existing.ID, Cached: true}, nil
		case models.DocStatusProcessing:
			return nil, newIngestError(http.StatusConflict, "document is currently processing")
		}
	}

	doc := &models.KnowledgeDocument{
		Title:          input.Title,
		Source:         input.Source,
		Metadata:       input.Metadata,
		ContentSHA256:  contentHash,
		Status:         models.DocStatusProcessing,
		EmbeddingModel: s.embedder.Model(),
		EmbeddingDim:   s.embedder.Dimensions(),
	}

	if existing != nil {
		// Failed document: retry under the same ID.
		doc.ID = existing.ID
		if err := s.store.ResetDocumentForRetry(ctx, doc); err != nil {
			return nil, err
		}
	} else {
		if err := s.store.InsertDocument(ctx, doc); err != nil {
			return nil, err
		}
	}

	chunks, err := s.process(ctx, doc.ID, input.Text)
	if err != nil {
		if setErr := s.store.SetDocumentStatus(ctx, doc.ID, models.DocStatusFailed, err.Error()); setErr != nil {
			s.logger.Error("failed to mark document failed", zap.String("doc_id", doc.ID), zap.Error(setErr))
		}
		if ierr, ok := err.(*IngestError); ok {
			return nil, ierr
		}
		return nil, newIngestError(http.StatusInternalServerError, "%s", err.Error())
	}

	if err := s.store.SetDocumentStatus(ctx, doc.ID, models.DocStatusReady, ""); err != nil {
		return nil, err
	}

	s.logger.Info("document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("title", input.Title),
		zap.Int("chunks", chunks))
	return &IngestResult{DocID: doc.ID, Chunks: chunks}, nil
}

func (s *Service) process(ctx context.Context, docID, text string) (int, error) {
	chunks := ChunkText(text, s.chunkSize, s.chunkOverlap)
	if len(chunks) == 0 {
		return 0, newIngestError(http.StatusBadRequest, "no chunks generated from text")
	}

	s.logger.Debug("processing chunks", zap.String("doc_id", docID), zap.Int("count", len(chunks)))

	for _, chunk := range chunks {
		emb, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", chunk.Index, err)
		}
		sum := sha256.Sum256([]byte(chunk.Text))
		if err := s.store.InsertChunk(ctx, &models.KnowledgeChunk{
			DocID:       docID,
			Text:        chunk.Text,
			ChunkIndex:  chunk.Index,
			ChunkSHA256: hex.EncodeToString(sum[:]),
			TokenCount:  EstimateTokens(chunk.Text),
			Embedding:   emb,
			IndexedAt:   time.Now().UTC(),
		}); err != nil {
			return 0, fmt.Errorf("failed to store chunk %d: %w", chunk.Index, err)
		}
	}
	return len(chunks), nil
}

// Delete removes a document and its chunks, returning the deleted chunk count.
// Unknown documents return a not-found IngestError.
func (s *Service) Delete(ctx context.Context, docID string) (int64, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, newIngestError(http.StatusNotFound, "document not found")
	}
	return s.store.DeleteDocument(ctx, docID)
}

// Get returns a document by ID, or a not-found IngestError.
func (s *Service) Get(ctx context.Context, docID string) (*models.KnowledgeDocument, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, newIngestError(http.StatusNotFound, "document not found")
	}
	return doc, nil
}
