package moderation

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

// AdminRegistry tracks, per group, the users with administrative privilege.
type AdminRegistry struct {
	mu     sync.RWMutex
	docs   DocumentStore
	groups map[string]map[string]struct{} // group -> set of user IDs
}

// NewAdminRegistry creates a registry backed by the given document store.
func NewAdminRegistry(ctx context.Context, docs DocumentStore) *AdminRegistry {
	r := &AdminRegistry{
		docs:   docs,
		groups: make(map[string]map[string]struct{}),
	}

	var doc adminsDocument
	if err := loadDocument(ctx, docs, DocumentAdmins, &doc); err != nil {
		log.Error().Err(err).Msg("moderation: failed to load admins, starting empty")
		return r
	}
	for group, users := range doc {
		if len(users) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(users))
		for _, u := range users {
			set[u] = struct{}{}
		}
		r.groups[group] = set
	}

	log.Info().Int("groups", len(r.groups)).Msg("moderation: admins loaded")
	return r
}

// InitializeGroup seeds the admin set of a group with its creator. It is a no-op returning
// false when the group already has any admin, so concurrent join events seed at most once.
func (r *AdminRegistry) InitializeGroup(ctx context.Context, groupID, creatorID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.groups[groupID]) > 0 {
		return false, nil
	}

	r.groups[groupID] = map[string]struct{}{creatorID: {}}
	if err := r.persist(ctx); err != nil {
		delete(r.groups, groupID)
		log.Error().Err(err).Str("op", "initialize_group").Str("group", groupID).Msg("moderation: failed to persist admins")
		return false, err
	}

	log.Info().Str("group", groupID).Str("user", creatorID).Msg("moderation: group initialized with creator as admin")
	return true, nil
}

// AddAdmin grants admin to user in group. Returns ErrAlreadyExists if already an admin.
func (r *AdminRegistry) AddAdmin(ctx context.Context, groupID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.groups[groupID]
	if _, ok := set[userID]; ok {
		return ErrAlreadyExists
	}
	created := set == nil
	if created {
		set = make(map[string]struct{})
		r.groups[groupID] = set
	}
	set[userID] = struct{}{}

	if err := r.persist(ctx); err != nil {
		delete(set, userID)
		if created {
			delete(r.groups, groupID)
		}
		log.Error().Err(err).Str("op", "add_admin").Str("group", groupID).Str("user", userID).Msg("moderation: failed to persist admins")
		return err
	}

	log.Info().Str("group", groupID).Str("user", userID).Msg("moderation: admin added")
	return nil
}

// RemoveAdmin revokes admin from user in group. Returns ErrNotFound if not an admin.
func (r *AdminRegistry) RemoveAdmin(ctx context.Context, groupID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.groups[groupID]
	if _, ok := set[userID]; !ok {
		return ErrNotFound
	}
	delete(set, userID)

	if err := r.persist(ctx); err != nil {
		set[userID] = struct{}{}
		log.Error().Err(err).Str("op", "remove_admin").Str("group", groupID).Str("user", userID).Msg("moderation: failed to persist admins")
		return err
	}

	log.Info().Str("group", groupID).Str("user", userID).Msg("moderation: admin removed")
	return nil
}

// IsAdmin returns true if user is an admin of group
func (r *AdminRegistry) IsAdmin(ctx context.Context, groupID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[groupID][userID]
	return ok
}

// ListAdmins returns the admins of group, sorted
func (r *AdminRegistry) ListAdmins(ctx context.Context, groupID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.groups[groupID]
	result := make([]string, 0, len(set))
	for u := range set {
		result = append(result, u)
	}
	slices.Sort(result)
	return result
}

// GroupCount returns the number of groups with at least one admin
func (r *AdminRegistry) GroupCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.groups {
		if len(set) > 0 {
			n++
		}
	}
	return n
}

// persist writes the whole document. Caller must hold the write lock.
func (r *AdminRegistry) persist(ctx context.Context) error {
	doc := make(adminsDocument, len(r.groups))
	for group, set := range r.groups {
		users := make([]string, 0, len(set))
		for u := range set {
			users = append(users, u)
		}
		slices.Sort(users)
		doc[group] = users
	}
	return saveDocument(ctx, r.docs, DocumentAdmins, doc)
}
