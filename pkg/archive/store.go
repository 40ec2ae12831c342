package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lunarc/sash/pkg/conversation"
)

// Store persists transcripts of evicted sessions in SQLite. The engine is
// in-memory; this archive is the only durable surface and exists for
// post-hoc inspection, not for resuming sessions.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transcripts (
	session_id  TEXT    NOT NULL,
	position    INTEGER NOT NULL,
	role        TEXT    NOT NULL,
	content     TEXT    NOT NULL,
	created_at  TEXT    NOT NULL,
	archived_at TEXT    NOT NULL,
	PRIMARY KEY (session_id, position)
);
CREATE INDEX IF NOT EXISTS idx_transcripts_archived_at ON transcripts (archived_at);
`

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveTranscript stores a session's conversation items. Saving the same
// session again replaces the previous transcript.
func (s *Store) SaveTranscript(ctx context.Context, sessionID string, items []conversation.Item) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear prior transcript: %w", err)
	}

	archivedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for i, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transcripts (session_id, position, role, content, created_at, archived_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sessionID, i, string(item.Role), item.Content, item.CreatedAt.UTC().Format(time.RFC3339Nano), archivedAt)
		if err != nil {
			return fmt.Errorf("failed to insert transcript item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcript: %w", err)
	}
	return nil
}

// LoadTranscript returns a session's archived items in original order.
func (s *Store) LoadTranscript(ctx context.Context, sessionID string) ([]conversation.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM transcripts
		WHERE session_id = ? ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	defer rows.Close()

	var items []conversation.Item
	for rows.Next() {
		var role, content, createdAt string
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript item: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, createdAt)
		items = append(items, conversation.Item{
			Role:      conversation.Role(role),
			Content:   content,
			CreatedAt: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcript: %w", err)
	}
	return items, nil
}

// Sessions lists archived session ids, most recently archived first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id FROM transcripts
		GROUP BY session_id ORDER BY MAX(archived_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return ids, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
