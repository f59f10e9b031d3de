package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BlacklistStore tracks globally banned users and the audit history of every add/remove.
// All methods are safe for concurrent use.
type BlacklistStore struct {
	mu      sync.RWMutex
	docs    DocumentStore
	users   map[string]*BlacklistEntry
	history []HistoryRecord
	now     func() time.Time
}

// NewBlacklistStore creates a blacklist backed by the given document store.
// A document that cannot be read is logged and treated as empty so the bot stays responsive.
func NewBlacklistStore(ctx context.Context, docs DocumentStore) *BlacklistStore {
	s := &BlacklistStore{
		docs:  docs,
		users: make(map[string]*BlacklistEntry),
		now:   time.Now,
	}

	var doc blacklistDocument
	if err := loadDocument(ctx, docs, DocumentBlacklist, &doc); err != nil {
		log.Error().Err(err).Msg("moderation: failed to load blacklist, starting empty")
		return s
	}

	for id, entry := range doc.Users {
		if entry == nil {
			continue
		}
		entry.UserID = id
		s.users[id] = entry
	}
	s.history = doc.History

	log.Info().
		Int("users", len(s.users)).
		Int("history", len(s.history)).
		Msg("moderation: blacklist loaded")

	return s
}

// Add blacklists userID. It returns ErrAlreadyExists, without side effects, if the user is
// already present. actorID may be empty for automatic additions.
func (s *BlacklistStore) Add(ctx context.Context, userID, reason, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; ok {
		return ErrAlreadyExists
	}

	now := s.now()
	entry := &BlacklistEntry{
		UserID:     userID,
		Reason:     reason,
		AddedAt:    now,
		ReporterID: actorID,
	}

	s.users[userID] = entry
	s.history = append(s.history, HistoryRecord{
		Action:    HistoryActionAdd,
		UserID:    userID,
		Reason:    reason,
		ActorID:   actorID,
		Timestamp: now,
	})

	if err := s.persist(ctx); err != nil {
		delete(s.users, userID)
		s.history = s.history[:len(s.history)-1]
		log.Error().Err(err).Str("op", "add").Str("user", userID).Msg("moderation: failed to persist blacklist")
		return err
	}

	log.Info().
		Str("user", userID).
		Str("actor", actorID).
		Str("reason", reason).
		Msg("moderation: user blacklisted")

	return nil
}

// Remove lifts the blacklist for userID. It returns ErrNotFound if the user is not blacklisted.
func (s *BlacklistStore) Remove(ctx context.Context, userID, reason, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}

	delete(s.users, userID)
	s.history = append(s.history, HistoryRecord{
		Action:    HistoryActionRemove,
		UserID:    userID,
		Reason:    reason,
		ActorID:   actorID,
		Timestamp: s.now(),
	})

	if err := s.persist(ctx); err != nil {
		s.users[userID] = entry
		s.history = s.history[:len(s.history)-1]
		log.Error().Err(err).Str("op", "remove").Str("user", userID).Msg("moderation: failed to persist blacklist")
		return err
	}

	log.Info().
		Str("user", userID).
		Str("actor", actorID).
		Str("reason", reason).
		Msg("moderation: user removed from blacklist")

	return nil
}

// IsBlacklisted checks if a user is blacklisted.
func (s *BlacklistStore) IsBlacklisted(ctx context.Context, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// Get returns a copy of the entry for userID, if any
func (s *BlacklistStore) Get(ctx context.Context, userID string) (BlacklistEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.users[userID]
	if !ok {
		return BlacklistEntry{}, false
	}
	return *entry, true
}

// List returns a snapshot of all blacklisted users keyed by user ID
func (s *BlacklistStore) List(ctx context.Context) map[string]BlacklistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]BlacklistEntry, len(s.users))
	for id, entry := range s.users {
		result[id] = *entry
	}
	return result
}

// Count returns the number of blacklisted users
func (s *BlacklistStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// History returns the audit trail, oldest first. When limit > 0 only the last limit
// records are returned.
func (s *BlacklistStore) History(ctx context.Context, limit int) []HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.history
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	result := make([]HistoryRecord, len(records))
	copy(result, records)
	return result
}

// persist writes the whole document. Caller must hold the write lock.
func (s *BlacklistStore) persist(ctx context.Context) error {
	doc := blacklistDocument{
		Users:   s.users,
		History: s.history,
	}
	if doc.History == nil {
		doc.History = []HistoryRecord{}
	}
	return saveDocument(ctx, s.docs, DocumentBlacklist, doc)
}
