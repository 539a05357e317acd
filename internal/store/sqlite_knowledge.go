package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/vector"
)

// InsertDocument inserts a knowledge document in its current lifecycle state.
func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *models.KnowledgeDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_docs (id, title, source, metadata, content_sha256, status, embedding_model, embedding_dim, error, ingested_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, nullable(doc.Source), string(metadataJSON), nullable(doc.ContentSHA256),
		doc.Status, nullable(doc.EmbeddingModel), nullableInt(doc.EmbeddingDim), nullable(doc.Error),
		nullableTime(doc.IngestedAt), doc.CreatedAt,
	)
	return err
}

const docColumns = `id, title, source, metadata, content_sha256, status, embedding_model, embedding_dim, error, ingested_at, created_at`

// GetDocument returns the document by ID, or nil if not found.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*models.KnowledgeDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+docColumns+` FROM knowledge_docs WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// GetDocumentByHash returns the document with the given content hash, or nil.
// The content hash is the idempotency key for text ingestion.
func (s *SQLiteStore) GetDocumentByHash(ctx context.Context, contentSHA256 string) (*models.KnowledgeDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+docColumns+` FROM knowledge_docs WHERE content_sha256 = ?`, contentSHA256)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// ResetDocumentForRetry moves a failed document back to processing under its
// existing ID, clearing the failure record and replacing its descriptive
// fields. Any stale chunks are removed.
func (s *SQLiteStore) ResetDocumentForRetry(ctx context.Context, doc *models.KnowledgeDocument) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE doc_id = ?`, doc.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE knowledge_docs
		 SET title = ?, source = ?, metadata = ?, status = ?, embedding_model = ?, embedding_dim = ?, error = NULL, ingested_at = NULL
		 WHERE id = ?`,
		doc.Title, nullable(doc.Source), string(metadataJSON), models.DocStatusProcessing,
		nullable(doc.EmbeddingModel), nullableInt(doc.EmbeddingDim), doc.ID,
	); err != nil {
		return err
	}
	doc.Status = models.DocStatusProcessing
	doc.Error = ""
	return tx.Commit()
}

// SetDocumentStatus finalizes a document's lifecycle state. Moving to ready
// stamps ingested_at; moving to failed records the error message.
func (s *SQLiteStore) SetDocumentStatus(ctx context.Context, id, status, errMessage string) error {
	switch status {
	case models.DocStatusReady:
		_, err := s.db.ExecContext(ctx,
			`UPDATE knowledge_docs SET status = ?, error = NULL, ingested_at = ? WHERE id = ?`,
			status, time.Now().UTC(), id,
		)
		return err
	case models.DocStatusFailed:
		_, err := s.db.ExecContext(ctx,
			`UPDATE knowledge_docs SET status = ?, error = ? WHERE id = ?`,
			status, nullable(errMessage), id,
		)
		return err
	default:
		_, err := s.db.ExecContext(ctx,
			`UPDATE knowledge_docs SET status = ? WHERE id = ?`,
			status, id,
		)
		return err
	}
}

// DeleteDocument removes a document and its chunks, returning the chunk count.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE doc_id = ?`, id)
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_docs WHERE id = ?`, id); err != nil {
		return 0, err
	}
	return deleted, tx.Commit()
}

// InsertChunk inserts one embedded chunk of a document.
func (s *SQLiteStore) InsertChunk(ctx context.Context, chunk *models.KnowledgeChunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	chunk.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_chunks (id, doc_id, text, chunk_index, chunk_sha256, token_count, embedding, indexed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.DocID, chunk.Text, chunk.ChunkIndex, nullable(chunk.ChunkSHA256),
		nullableInt(chunk.TokenCount), embeddingToBytes(chunk.Embedding), nullableTime(chunk.IndexedAt), chunk.CreatedAt,
	)
	return err
}

// DeleteChunksByDoc removes all chunks belonging to a document.
func (s *SQLiteStore) DeleteChunksByDoc(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE doc_id = ?`, docID)
	return err
}

// CountChunksByDoc returns the number of chunks stored for a document.
func (s *SQLiteStore) CountChunksByDoc(ctx context.Context, docID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_chunks WHERE doc_id = ?`, docID).Scan(&count)
	return count, err
}

// ReadyChunks returns every chunk belonging to a ready document, joined with
// its parent's title, source, and ingestion time. Chunks of processing or
// failed documents are never returned.
func (s *SQLiteStore) ReadyChunks(ctx context.Context) ([]ReadyChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.doc_id, c.text, c.chunk_index, c.embedding, d.title, d.source, d.ingested_at
		 FROM knowledge_chunks c
		 JOIN knowledge_docs d ON d.id = c.doc_id
		 WHERE d.status = ?
		 ORDER BY c.doc_id, c.chunk_index`,
		models.DocStatusReady,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReadyChunk
	for rows.Next() {
		var rc ReadyChunk
		var source sql.NullString
		var ingestedAt sql.NullTime
		var embedding []byte
		if err := rows.Scan(
			&rc.Chunk.ID, &rc.Chunk.DocID, &rc.Chunk.Text, &rc.Chunk.ChunkIndex,
			&embedding, &rc.DocTitle, &source, &ingestedAt,
		); err != nil {
			return nil, err
		}
		rc.Chunk.Embedding = embeddingFromBytes(embedding)
		rc.DocSource = source.String
		if ingestedAt.Valid {
			rc.IngestedAt = ingestedAt.Time
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// CountDocuments returns the total number of knowledge documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_docs`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of knowledge chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&count)
	return count, err
}

func scanDocument(row rowScanner) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	var source, contentHash, embeddingModel, errMessage sql.NullString
	var embeddingDim sql.NullInt64
	var ingestedAt sql.NullTime
	var metadataJSON string
	err := row.Scan(
		&doc.ID, &doc.Title, &source, &metadataJSON, &contentHash, &doc.Status,
		&embeddingModel, &embeddingDim, &errMessage, &ingestedAt, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Source = source.String
	doc.ContentSHA256 = contentHash.String
	doc.EmbeddingModel = embeddingModel.String
	doc.EmbeddingDim = int(embeddingDim.Int64)
	doc.Error = errMessage.String
	if ingestedAt.Valid {
		doc.IngestedAt = ingestedAt.Time
	}
	_ = json.Unmarshal([]byte(metadataJSON), &doc.Metadata)
	return &doc, nil
}

func embeddingToBytes(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	return vector.ToBytes(v)
}

func embeddingFromBytes(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return vector.FromBytes(b)
}

func nullableInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
