package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Blacklister is the part of the blacklist the ledger escalates into
type Blacklister interface {
	Add(ctx context.Context, userID, reason, actorID string) error
}

// WarningLedger records per-group, per-user warnings and promotes users to the blacklist
// once they reach the threshold.
type WarningLedger struct {
	mu        sync.RWMutex
	docs      DocumentStore
	warnings  warningsDocument
	blacklist Blacklister
	threshold int
	now       func() time.Time
}

// NewWarningLedger creates a ledger escalating into blacklist. A threshold below 1 falls back
// to DefaultWarningThreshold.
func NewWarningLedger(ctx context.Context, docs DocumentStore, blacklist Blacklister, threshold int) *WarningLedger {
	if threshold < 1 {
		threshold = DefaultWarningThreshold
	}

	l := &WarningLedger{
		docs:      docs,
		warnings:  make(warningsDocument),
		blacklist: blacklist,
		threshold: threshold,
		now:       time.Now,
	}

	var doc warningsDocument
	if err := loadDocument(ctx, docs, DocumentWarnings, &doc); err != nil {
		log.Error().Err(err).Msg("moderation: failed to load warnings, starting empty")
		return l
	}
	for group, users := range doc {
		for user, list := range users {
			if len(list) == 0 {
				continue
			}
			if l.warnings[group] == nil {
				l.warnings[group] = make(map[string][]Warning)
			}
			l.warnings[group][user] = list
		}
	}

	log.Info().Int("groups", len(l.warnings)).Msg("moderation: warnings loaded")
	return l
}

// Threshold returns the warning count that triggers blacklisting
func (l *WarningLedger) Threshold() int {
	return l.threshold
}

// EscalationReason is the blacklist reason recorded when a user reaches the threshold
func (l *WarningLedger) EscalationReason() string {
	return fmt.Sprintf("reached max warnings (%d)", l.threshold)
}

// AddWarning appends a warning for user in group. When the resulting count reaches the
// threshold the user is blacklisted with no actor and the status is WarnStatusBlacklisted.
// The ledger does not consult the blacklist before recording.
//
// If the warning is recorded but escalation fails to persist, the result carries
// WarnStatusWarned together with the escalation error.
func (l *WarningLedger) AddWarning(ctx context.Context, groupID, userID, reason, warnedBy string) (WarnResult, error) {
	count, err := l.appendWarning(ctx, groupID, userID, Warning{
		Reason:    reason,
		WarnedBy:  warnedBy,
		Timestamp: l.now(),
	})
	if err != nil {
		return WarnResult{}, err
	}

	log.Info().
		Str("group", groupID).
		Str("user", userID).
		Str("actor", warnedBy).
		Int("count", count).
		Msg("moderation: warning recorded")

	result := WarnResult{Status: WarnStatusWarned, WarningCount: count}
	if count < l.threshold {
		return result, nil
	}

	// Escalation runs after the ledger lock is released; the two steps are not atomic.
	err = l.blacklist.Add(ctx, userID, l.EscalationReason(), "")
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		log.Error().Err(err).Str("group", groupID).Str("user", userID).Msg("moderation: warning escalation failed")
		return result, err
	}

	log.Warn().
		Str("group", groupID).
		Str("user", userID).
		Int("count", count).
		Msg("moderation: warning threshold reached - user blacklisted")

	result.Status = WarnStatusBlacklisted
	return result, nil
}

func (l *WarningLedger) appendWarning(ctx context.Context, groupID, userID string, w Warning) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	users := l.warnings[groupID]
	createdGroup := users == nil
	if createdGroup {
		users = make(map[string][]Warning)
		l.warnings[groupID] = users
	}
	previous := users[userID]
	users[userID] = append(previous[:len(previous):len(previous)], w)

	if err := l.persist(ctx); err != nil {
		if len(previous) == 0 {
			delete(users, userID)
		} else {
			users[userID] = previous
		}
		if createdGroup {
			delete(l.warnings, groupID)
		}
		log.Error().Err(err).Str("op", "add_warning").Str("group", groupID).Str("user", userID).Msg("moderation: failed to persist warnings")
		return 0, err
	}

	return len(users[userID]), nil
}

// RemoveWarning pops the most recent warning for user in group and returns how many remain.
// It returns ErrNotFound when the user has no warnings. An emptied list drops the user key.
func (l *WarningLedger) RemoveWarning(ctx context.Context, groupID, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	users := l.warnings[groupID]
	previous := users[userID]
	if len(previous) == 0 {
		return 0, ErrNotFound
	}

	remaining := previous[:len(previous)-1]
	if len(remaining) == 0 {
		delete(users, userID)
		if len(users) == 0 {
			delete(l.warnings, groupID)
		}
	} else {
		users[userID] = remaining
	}

	if err := l.persist(ctx); err != nil {
		if l.warnings[groupID] == nil {
			l.warnings[groupID] = users
		}
		users[userID] = previous
		log.Error().Err(err).Str("op", "remove_warning").Str("group", groupID).Str("user", userID).Msg("moderation: failed to persist warnings")
		return 0, err
	}

	log.Info().
		Str("group", groupID).
		Str("user", userID).
		Int("remaining", len(remaining)).
		Msg("moderation: warning removed")

	return len(remaining), nil
}

// GetWarnings returns the warnings for user in group, oldest first
func (l *WarningLedger) GetWarnings(ctx context.Context, groupID, userID string) []Warning {
	l.mu.RLock()
	defer l.mu.RUnlock()

	list := l.warnings[groupID][userID]
	result := make([]Warning, len(list))
	copy(result, list)
	return result
}

// WarnedUsers returns how many (group, user) pairs currently hold warnings
func (l *WarningLedger) WarnedUsers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, users := range l.warnings {
		n += len(users)
	}
	return n
}

// persist writes the whole document. Caller must hold the write lock.
func (l *WarningLedger) persist(ctx context.Context) error {
	return saveDocument(ctx, l.docs, DocumentWarnings, l.warnings)
}
