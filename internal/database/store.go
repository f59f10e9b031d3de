package database

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"groupguard/internal/database/boltstore"
	"groupguard/internal/database/jsonstore"
	"groupguard/internal/database/sqlitestore"
	"groupguard/internal/moderation"
)

// Backend names accepted by Open
const (
	BackendJSON   = "json"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Store is a moderation document store that owns an underlying resource.
// This abstraction allows swapping JSON files for BoltDB or SQLite.
type Store interface {
	moderation.DocumentStore

	// UpdatedAt returns when the named document was last saved, or zero time if never
	UpdatedAt(ctx context.Context, name string) (time.Time, error)

	// Close releases the underlying database or file handles
	Close() error
}

type documents interface {
	moderation.DocumentStore
	UpdatedAt(ctx context.Context, name string) (time.Time, error)
}

type closingDocuments struct {
	documents
	close func() error
}

func (c closingDocuments) Close() error {
	return c.close()
}

// Open opens the named backend rooted at dataDir.
func Open(ctx context.Context, backend, dataDir string) (Store, error) {
	switch backend {
	case BackendJSON, "":
		store, err := jsonstore.Open(dataDir)
		if err != nil {
			return nil, err
		}
		return store, nil

	case BackendBolt:
		store, err := boltstore.Open(boltstore.Options{
			Path: filepath.Join(dataDir, "groupguard.db"),
		})
		if err != nil {
			return nil, err
		}
		return closingDocuments{documents: store.DocumentStore(), close: store.Close}, nil

	case BackendSQLite:
		db, err := sqlitestore.Open(ctx, filepath.Join(dataDir, "groupguard.sqlite"))
		if err != nil {
			return nil, err
		}
		return closingDocuments{documents: sqlitestore.NewDocumentStore(db), close: db.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
