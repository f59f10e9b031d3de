package boltstore

import (
	"context"
	"fmt"
	"time"

	"groupguard/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

// DocumentStore provides persistent storage for moderation documents.
type DocumentStore struct {
	db *bolt.DB
}

// Ensure DocumentStore implements the interface at compile time.
var _ moderation.DocumentStore = (*DocumentStore)(nil)

// Load retrieves a document by name. A missing document yields (nil, nil).
func (s *DocumentStore) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketDocuments)
		if bucket == nil {
			return nil
		}

		v := bucket.Get([]byte(name))
		if v == nil {
			return nil
		}

		// Values are only valid for the life of the transaction
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})

	return data, err
}

// Save stores a document, replacing any previous version.
func (s *DocumentStore) Save(ctx context.Context, name string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketDocuments)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketDocuments)
		}
		if err := bucket.Put([]byte(name), data); err != nil {
			return err
		}

		meta := tx.Bucket(BucketMeta)
		if meta == nil {
			return nil
		}
		updatedAt, err := time.Now().MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal update time: %w", err)
		}
		return meta.Put([]byte("updated_at:"+name), updatedAt)
	})
}

// UpdatedAt returns when the document was last saved, or zero time if never.
func (s *DocumentStore) UpdatedAt(ctx context.Context, name string) (time.Time, error) {
	var updatedAt time.Time

	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(BucketMeta)
		if meta == nil {
			return nil
		}

		data := meta.Get([]byte("updated_at:" + name))
		if data == nil {
			return nil
		}

		return updatedAt.UnmarshalBinary(data)
	})

	return updatedAt, err
}
