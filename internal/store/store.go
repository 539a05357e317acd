// Package store defines the persistence interface for signals, knowledge, and chat.
package store

import (
	"context"
	"time"

	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/query"
)

// ReadyChunk is a knowledge chunk joined with its parent document, as returned
// for the semantic search scan. Only chunks of ready documents are eligible.
type ReadyChunk struct {
	Chunk      models.KnowledgeChunk
	DocTitle   string
	DocSource  string
	IngestedAt time.Time
}

// Store defines signal, knowledge, and chat persistence operations.
type Store interface {
	// Signal operations. Signal rows are append-only: rankings and news are
	// re-captured as new rows, never updated.
	InsertSignal(ctx context.Context, sig *models.Signal) error
	HasRecentURL(ctx context.Context, url string, since time.Time) (bool, error)
	QuerySignals(ctx context.Context, filters *query.Filters, sortMode string, limit int) ([]models.Signal, error)
	SignalVolume(ctx context.Context, filters *query.Filters, granularity, groupBy string) ([]models.VolumeBucket, error)
	CountSignals(ctx context.Context) (int64, error)

	// Knowledge document lifecycle.
	InsertDocument(ctx context.Context, doc *models.KnowledgeDocument) error
	GetDocument(ctx context.Context, id string) (*models.KnowledgeDocument, error)
	GetDocumentByHash(ctx context.Context, contentSHA256 string) (*models.KnowledgeDocument, error)
	ResetDocumentForRetry(ctx context.Context, doc *models.KnowledgeDocument) error
	SetDocumentStatus(ctx context.Context, id, status, errMessage string) error
	DeleteDocument(ctx context.Context, id string) (deletedChunks int64, err error)

	// Knowledge chunks.
	InsertChunk(ctx context.Context, chunk *models.KnowledgeChunk) error
	DeleteChunksByDoc(ctx context.Context, docID string) error
	CountChunksByDoc(ctx context.Context, docID string) (int64, error)
	ReadyChunks(ctx context.Context) ([]ReadyChunk, error)

	// Conversations and chat history.
	CreateConversation(ctx context.Context, title string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error)

	// Stats.
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
