package domain

import (
	"time"

	"github.com/google/uuid"
)

// JournalState is the lifecycle marker of a write-ahead journal record.
type JournalState string

const (
	JournalStatePending    JournalState = "pending"
	JournalStateApplied    JournalState = "applied"
	JournalStateCommitted  JournalState = "committed"
	JournalStateRolledBack JournalState = "rolled_back"
)

var journalTransitions = map[JournalState][]JournalState{
	JournalStatePending: {JournalStateApplied, JournalStateRolledBack},
	JournalStateApplied: {JournalStateCommitted, JournalStateRolledBack},
}

// CanTransitionTo reports whether next is a forward edge from s.
func (s JournalState) CanTransitionTo(next JournalState) bool {
	for _, allowed := range journalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for committed and rolled back records.
func (s JournalState) IsTerminal() bool {
	return s == JournalStateCommitted || s == JournalStateRolledBack
}

// JournalIntent is everything needed to apply or re-drive a transaction.
type JournalIntent struct {
	Entry                    LedgerEntry     `json:"entry"`
	Mutation                 BalanceMutation `json:"mutation"`
	ConsumesOfflineAllowance bool            `json:"consumes_offline_allowance"`
	Proof                    []byte          `json:"proof,omitempty"`
}

// JournalEntry is written before any balance changes.
type JournalEntry struct {
	JournalID  uuid.UUID     `json:"journal_id"`
	IdentityID string        `json:"identity_id"`
	Intent     JournalIntent `json:"intent"`
	State      JournalState  `json:"state"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
