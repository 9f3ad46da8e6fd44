// Package store provides the SQLite-backed record store for chat sessions,
// uploaded documents, and conversation messages. Vector data lives in the
// vector store; this package only holds the relational records that own it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the human user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
)

// Document ingestion statuses.
const (
	// StatusPending marks a document whose ingestion has not finished.
	StatusPending = "pending"
	// StatusReady marks a fully ingested document.
	StatusReady = "ready"
	// StatusPartial marks a document with some failed chunks.
	StatusPartial = "partial"
	// StatusFailed marks a document whose ingestion was aborted.
	StatusFailed = "failed"
)

// Session is one conversation thread. Documents and messages belong to
// exactly one session.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Document is the record of one uploaded file.
type Document struct {
	ID            string
	SessionID     string
	Name          string
	Status        string
	ChunksWritten int
	ChunksFailed  int
	CreatedAt     time.Time
}

// Message is a single turn in a conversation.
type Message struct {
	ID        int64
	SessionID string
	Role      Role
	Content   string
	// ModelUsed is the model that produced an assistant message; empty for
	// user messages.
	ModelUsed string
	CreatedAt time.Time
}

// Store is a record store backed by a local SQLite database.
type Store struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the record database.
// It resolves to ~/.nexus/nexus.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".nexus")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "nexus.db"), nil
}

// Open opens (or creates) a Store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT    PRIMARY KEY,
    title       TEXT    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS documents (
    id              TEXT    PRIMARY KEY,
    session_id      TEXT    NOT NULL,
    name            TEXT    NOT NULL,
    status          TEXT    NOT NULL CHECK(status IN ('pending','ready','partial','failed')),
    chunks_written  INTEGER NOT NULL DEFAULT 0,
    chunks_failed   INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_session
    ON documents (session_id);
CREATE TABLE IF NOT EXISTS messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL,
    role        TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content     TEXT    NOT NULL,
    model_used  TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created
    ON messages (session_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateSession creates a new session with the given title.
func (s *Store) CreateSession(ctx context.Context, title string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}
	const q = `INSERT INTO sessions (id, title, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.Title, sess.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return sess, nil
}

// GetSession returns the session with the given id, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	const q = `SELECT id, title, created_at FROM sessions WHERE id = ?`
	var sess Session
	var ts int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&sess.ID, &sess.Title, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	sess.CreatedAt = time.Unix(ts, 0)
	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	const q = `SELECT id, title, created_at FROM sessions ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var ts int64
		if err := rows.Scan(&sess.ID, &sess.Title, &ts); err != nil {
			return nil, fmt.Errorf("store: list sessions scan: %w", err)
		}
		sess.CreatedAt = time.Unix(ts, 0)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list sessions rows: %w", err)
	}
	return out, nil
}

// DeleteSession removes a session together with its documents and messages.
// Returns ErrNotFound when the session does not exist. Vector cleanup is the
// caller's responsibility and runs independently of this delete.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete session documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete session messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: delete session commit: %w", err)
	}
	return nil
}

// CreateDocument records a newly uploaded document in pending state.
func (s *Store) CreateDocument(ctx context.Context, sessionID, name string) (*Document, error) {
	doc := &Document{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	const q = `INSERT INTO documents (id, session_id, name, status, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.SessionID, doc.Name, doc.Status, doc.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("store: create document: %w", err)
	}
	return doc, nil
}

// SetDocumentIngestion records the ingestion outcome for a document.
func (s *Store) SetDocumentIngestion(ctx context.Context, id, status string, chunksWritten, chunksFailed int) error {
	const q = `UPDATE documents SET status = ?, chunks_written = ?, chunks_failed = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, status, chunksWritten, chunksFailed, id)
	if err != nil {
		return fmt.Errorf("store: set document ingestion: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDocument returns the document with the given id, or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	const q = `SELECT id, session_id, name, status, chunks_written, chunks_failed, created_at
               FROM documents WHERE id = ?`
	var doc Document
	var ts int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&doc.ID, &doc.SessionID, &doc.Name, &doc.Status, &doc.ChunksWritten, &doc.ChunksFailed, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	doc.CreatedAt = time.Unix(ts, 0)
	return &doc, nil
}

// ListDocuments returns the session's documents, oldest first.
func (s *Store) ListDocuments(ctx context.Context, sessionID string) ([]Document, error) {
	const q = `SELECT id, session_id, name, status, chunks_written, chunks_failed, created_at
               FROM documents WHERE session_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		var ts int64
		if err := rows.Scan(&doc.ID, &doc.SessionID, &doc.Name, &doc.Status,
			&doc.ChunksWritten, &doc.ChunksFailed, &ts); err != nil {
			return nil, fmt.Errorf("store: list documents scan: %w", err)
		}
		doc.CreatedAt = time.Unix(ts, 0)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list documents rows: %w", err)
	}
	return out, nil
}

// SessionHasDocuments reports whether the session has at least one document
// with ingested content. Used to decide between grounded and pure generative
// answers.
func (s *Store) SessionHasDocuments(ctx context.Context, sessionID string) (bool, error) {
	const q = `SELECT COUNT(1) FROM documents WHERE session_id = ? AND chunks_written > 0`
	var n int
	if err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&n); err != nil {
		return false, fmt.Errorf("store: session has documents: %w", err)
	}
	return n > 0, nil
}

// DeleteDocument removes a document record. Returns ErrNotFound when the
// document does not exist. Vector cleanup is the caller's responsibility.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage persists a single message for the given session.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role Role, content, modelUsed string) error {
	const q = `INSERT INTO messages (session_id, role, content, model_used, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, string(role), content, modelUsed, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// RecentMessages returns the most recent n messages for the session, ordered
// oldest-first. Uses a subquery to select the tail then re-order for prompt
// injection.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, n int) ([]Message, error) {
	const q = `
SELECT id, session_id, role, content, model_used, created_at FROM (
    SELECT id, session_id, role, content, model_used, created_at
    FROM   messages
    WHERE  session_id = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.ModelUsed, &ts); err != nil {
			return nil, fmt.Errorf("store: recent messages scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent messages rows: %w", err)
	}
	return msgs, nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
