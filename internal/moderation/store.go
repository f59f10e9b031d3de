package moderation

import (
	"context"
	"encoding/json"
	"fmt"
)

// Document names used by the moderation stores
const (
	DocumentBlacklist = "blacklist"
	DocumentAdmins    = "admins"
	DocumentWarnings  = "warnings"
	DocumentReports   = "reports"
)

// Documents lists every document name, in a stable order
var Documents = []string{DocumentBlacklist, DocumentAdmins, DocumentWarnings, DocumentReports}

// DocumentStore defines the persistence interface for moderation data.
// Each store owns exactly one JSON document and rewrites it whole on every mutation.
// Implementations must be safe for concurrent use and must replace a document atomically:
// a reader never observes a partially written document.
type DocumentStore interface {
	// Load returns the raw document, or (nil, nil) if it has never been saved.
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// loadDocument decodes the named document into v. A missing document leaves v untouched.
func loadDocument(ctx context.Context, docs DocumentStore, name string, v any) error {
	data, err := docs.Load(ctx, name)
	if err != nil {
		return &PersistenceError{Op: "load", Key: name, Err: err}
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &PersistenceError{Op: "load", Key: name, Err: fmt.Errorf("failed to parse document: %w", err)}
	}
	return nil
}

func saveDocument(ctx context.Context, docs DocumentStore, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Key: name, Err: fmt.Errorf("failed to marshal document: %w", err)}
	}
	if err := docs.Save(ctx, name, data); err != nil {
		return &PersistenceError{Op: "save", Key: name, Err: err}
	}
	return nil
}
