package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the money flow of a ledger entry from the local identity's view.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// LedgerStatus is the settlement state of a ledger entry.
type LedgerStatus string

const (
	LedgerStatusQueued  LedgerStatus = "queued"
	LedgerStatusSettled LedgerStatus = "settled"
	LedgerStatusFailed  LedgerStatus = "failed"
)

// LedgerMode records whether the entry was created with upstream connectivity.
type LedgerMode string

const (
	LedgerModeOnline  LedgerMode = "online"
	LedgerModeOffline LedgerMode = "offline"
)

// LedgerEntry is an append-only record of a settled or queued transaction.
// Only Status and SettledAt change after creation.
type LedgerEntry struct {
	ID                  uuid.UUID    `json:"id"`
	IdentityID          string       `json:"identity_id"`
	JournalID           uuid.UUID    `json:"journal_id"`
	CounterpartyAddress string       `json:"counterparty_address"`
	Amount              int64        `json:"amount"` // minor units
	Direction           Direction    `json:"direction"`
	Status              LedgerStatus `json:"status"`
	Mode                LedgerMode   `json:"mode"`
	Nonce               string       `json:"nonce"`
	IntentLabel         string       `json:"intent_label,omitempty"`
	Timestamp           time.Time    `json:"timestamp"`
	SettledAt           *time.Time   `json:"settled_at,omitempty"`
}

// IsTerminal returns true if the entry no longer awaits upstream sync.
func (e *LedgerEntry) IsTerminal() bool {
	return e.Status == LedgerStatusSettled || e.Status == LedgerStatusFailed
}

// CanTransitionTo reports whether a status change is allowed.
func (e *LedgerEntry) CanTransitionTo(next LedgerStatus) bool {
	return e.Status == LedgerStatusQueued &&
		(next == LedgerStatusSettled || next == LedgerStatusFailed)
}

// SignedAmount is the effect of the entry on the main balance.
func (e *LedgerEntry) SignedAmount() int64 {
	if e.Direction == DirectionDebit {
		return -e.Amount
	}
	return e.Amount
}
