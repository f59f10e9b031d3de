// Package sqlitestore provides SQLite-backed store implementations.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"groupguard/internal/moderation"
)

// DocumentStore implements moderation.DocumentStore using SQLite.
// Each document is a single row; Save is one upsert, so replacement is atomic.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore creates a DocumentStore backed by the given database.
// The database must already have the schema applied (see Open).
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Ensure DocumentStore implements the interface at compile time.
var _ moderation.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) Load(ctx context.Context, name string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM moderation_documents WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return []byte(data), nil
}

func (s *DocumentStore) Save(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_documents (name, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data       = excluded.data,
			updated_at = excluded.updated_at
	`, name, string(data), time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// UpdatedAt returns when the document was last saved, or zero time if never.
func (s *DocumentStore) UpdatedAt(ctx context.Context, name string) (time.Time, error) {
	var updatedAtStr string
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM moderation_documents WHERE name = ?`, name).Scan(&updatedAtStr)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, updatedAtStr)
	return updatedAt, nil
}
