package moderation

import "time"

// DefaultWarningThreshold is the number of warnings that promotes a user to the blacklist
const DefaultWarningThreshold = 3

// BlacklistEntry represents a user who has been globally blacklisted
type BlacklistEntry struct {
	UserID     string    `json:"-"` // Set from map key during loading
	Reason     string    `json:"reason"`
	AddedAt    time.Time `json:"timestamp"`
	ReporterID string    `json:"reporter_id,omitempty"` // empty when added automatically
}

// HistoryAction represents a type of blacklist mutation
type HistoryAction string

const (
	HistoryActionAdd    HistoryAction = "add"
	HistoryActionRemove HistoryAction = "remove"
)

// HistoryRecord is one entry of the append-only blacklist audit trail
type HistoryRecord struct {
	Action    HistoryAction `json:"action"`
	UserID    string        `json:"user_id"`
	Reason    string        `json:"reason"`
	ActorID   string        `json:"actor_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Warning represents a single formal warning issued in a group
type Warning struct {
	Reason    string    `json:"reason"`
	WarnedBy  string    `json:"warned_by"`
	Timestamp time.Time `json:"timestamp"`
}

// WarnStatus is the outcome of recording a warning
type WarnStatus string

const (
	WarnStatusWarned      WarnStatus = "warned"
	WarnStatusBlacklisted WarnStatus = "blacklisted"
)

// WarnResult describes the ledger state after a warning was recorded
type WarnResult struct {
	Status       WarnStatus
	WarningCount int
}

// Report is an informational complaint about a user. Reports never change moderation state.
type Report struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	ReporterID string    `json:"reporter_id"`
	TargetID   string    `json:"target_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Persisted document layouts. These are the durable schemas shared by every backend.

type blacklistDocument struct {
	Users   map[string]*BlacklistEntry `json:"users"`
	History []HistoryRecord            `json:"history"`
}

// admins: group -> users
type adminsDocument map[string][]string

// warnings: group -> user -> warnings
type warningsDocument map[string]map[string][]Warning

type reportsDocument struct {
	Reports []Report `json:"reports"`
}
