// Package jsonstore persists moderation documents as plain JSON files, one file per document.
// Writes go through renameio, so a crash mid-write never leaves a truncated document behind.
package jsonstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"groupguard/internal/moderation"

	"github.com/google/renameio/v2"
)

var validName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Store keeps documents under a single directory as <name>.json.
type Store struct {
	dir      string
	fileMode os.FileMode
}

// Ensure Store implements the interface at compile time.
var _ moderation.DocumentStore = (*Store)(nil)

// Open creates the directory if needed and returns a store rooted at it.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{dir: dir, fileMode: 0600}, nil
}

// Path returns the file path of the named document.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads the named document. A missing file yields (nil, nil).
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid document name %q", name)
	}

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Save atomically replaces the named document.
func (s *Store) Save(ctx context.Context, name string, data []byte) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid document name %q", name)
	}

	if err := renameio.WriteFile(s.Path(name), data, s.fileMode, renameio.WithTempDir(s.dir)); err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}

// UpdatedAt returns the document file's modification time, or zero time if it was never saved.
func (s *Store) UpdatedAt(ctx context.Context, name string) (time.Time, error) {
	if !validName.MatchString(name) {
		return time.Time{}, fmt.Errorf("invalid document name %q", name)
	}

	info, err := os.Stat(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat document: %w", err)
	}
	return info.ModTime(), nil
}

// Close is a no-op; it exists so every backend can be closed the same way.
func (s *Store) Close() error {
	return nil
}
