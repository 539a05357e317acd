// Package store provides the SQLite implementation of the Store interface.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/query"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		type TEXT NOT NULL,
		author_handle TEXT,
		timestamp TIMESTAMP NOT NULL,
		url TEXT,
		text TEXT NOT NULL,
		engagement TEXT NOT NULL DEFAULT '{}',
		language TEXT DEFAULT 'en',
		tags TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		raw_payload TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_signals_source_timestamp ON signals(source, timestamp);
	CREATE INDEX IF NOT EXISTS idx_signals_url_created ON signals(url, created_at);

	CREATE TABLE IF NOT EXISTS knowledge_docs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		content_sha256 TEXT,
		status TEXT NOT NULL DEFAULT 'processing',
		embedding_model TEXT,
		embedding_dim INTEGER,
		error TEXT,
		ingested_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_docs_content_sha256 ON knowledge_docs(content_sha256);

	CREATE TABLE IF NOT EXISTS knowledge_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		text TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		chunk_sha256 TEXT,
		token_count INTEGER,
		embedding BLOB,
		indexed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES knowledge_docs(id) ON DELETE CASCADE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_chunks_doc_chunk ON knowledge_chunks(doc_id, chunk_index);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT 'New Chat',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		sources TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages(conversation_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// InsertSignal inserts a signal, assigning its identity and insertion time.
func (s *SQLiteStore) InsertSignal(ctx context.Context, sig *models.Signal) error {
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	sig.CreatedAt = time.Now().UTC()

	engagementJSON, err := json.Marshal(sig.Engagement)
	if err != nil {
		return fmt.Errorf("failed to marshal engagement: %w", err)
	}
	tagsJSON, err := json.Marshal(sig.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadataJSON, err := json.Marshal(sig.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	rawJSON, err := json.Marshal(sig.RawPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal raw payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO signals (id, source, type, author_handle, timestamp, url, text, engagement, language, tags, metadata, raw_payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Source, sig.Type, nullable(sig.AuthorHandle), sig.Timestamp.UTC(), nullable(sig.URL),
		sig.Text, string(engagementJSON), sig.Language, string(tagsJSON), string(metadataJSON), string(rawJSON), sig.CreatedAt,
	)
	return err
}

// HasRecentURL reports whether a signal with the given URL was inserted after
// the since cutoff. This is the durable dedup authority for re-captured URLs.
func (s *SQLiteStore) HasRecentURL(ctx context.Context, url string, since time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM signals WHERE url = ? AND created_at > ? LIMIT 1`,
		url, since.UTC(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const signalColumns = `id, source, type, author_handle, timestamp, url, text, engagement, language, tags, metadata, raw_payload, created_at`

// QuerySignals executes a filter set with sort and limit against stored rows.
func (s *SQLiteStore) QuerySignals(ctx context.Context, filters *query.Filters, sortMode string, limit int) ([]models.Signal, error) {
	where, args := filters.SQL()
	q := `SELECT ` + signalColumns + ` FROM signals`
	if where != "" {
		q += ` WHERE ` + where
	}
	switch sortMode {
	case models.SortOldest:
		q += ` ORDER BY timestamp ASC`
	case models.SortEngagement:
		q += ` ORDER BY ` + query.EngagementScoreSQL + ` DESC`
	default:
		q += ` ORDER BY timestamp DESC`
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sig)
	}
	return out, rows.Err()
}

// SignalVolume buckets matching rows by day or week and counts them, optionally
// grouped by source or type. Weeks start on Monday. Rows are ordered by bucket
// ascending.
func (s *SQLiteStore) SignalVolume(ctx context.Context, filters *query.Filters, granularity, groupBy string) ([]models.VolumeBucket, error) {
	bucket := `strftime('%Y-%m-%d', timestamp)`
	if granularity == models.GranularityWeek {
		bucket = `date(timestamp, 'weekday 0', '-6 days')`
	}

	sel := `SELECT ` + bucket + ` AS bucket, COUNT(*) AS count`
	group := bucket
	switch groupBy {
	case models.GroupBySource:
		sel += `, source`
		group += `, source`
	case models.GroupByType:
		sel += `, type`
		group += `, type`
	}

	where, args := filters.SQL()
	q := sel + ` FROM signals`
	if where != "" {
		q += ` WHERE ` + where
	}
	q += ` GROUP BY ` + group + ` ORDER BY bucket ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.VolumeBucket
	for rows.Next() {
		var b models.VolumeBucket
		switch groupBy {
		case models.GroupBySource:
			err = rows.Scan(&b.Bucket, &b.Count, &b.Source)
		case models.GroupByType:
			err = rows.Scan(&b.Bucket, &b.Count, &b.Type)
		default:
			err = rows.Scan(&b.Bucket, &b.Count)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountSignals returns the total number of stored signals.
func (s *SQLiteStore) CountSignals(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	var sig models.Signal
	var authorHandle, url sql.NullString
	var engagementJSON, tagsJSON, metadataJSON, rawJSON string
	err := row.Scan(
		&sig.ID, &sig.Source, &sig.Type, &authorHandle, &sig.Timestamp, &url, &sig.Text,
		&engagementJSON, &sig.Language, &tagsJSON, &metadataJSON, &rawJSON, &sig.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sig.AuthorHandle = authorHandle.String
	sig.URL = url.String
	if err := json.Unmarshal([]byte(engagementJSON), &sig.Engagement); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engagement: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &sig.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	_ = json.Unmarshal([]byte(metadataJSON), &sig.Metadata)
	_ = json.Unmarshal([]byte(rawJSON), &sig.RawPayload)
	return &sig, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
