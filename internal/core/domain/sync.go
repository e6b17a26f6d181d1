package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncQueueItem is an outbox record awaiting upstream confirmation. It is
// removed only when the upstream ledger acknowledges it.
type SyncQueueItem struct {
	JournalID     uuid.UUID  `json:"journal_id"`
	IdentityID    string     `json:"identity_id"`
	Payload       []byte     `json:"payload"`
	Signature     string     `json:"signature"`  // hex
	PublicKey     string     `json:"public_key"` // hex
	Nonce         string     `json:"nonce"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	ParkedAt      *time.Time `json:"parked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsParked is true once upstream rejected the item or its transaction is gone.
func (i *SyncQueueItem) IsParked() bool {
	return i.ParkedAt != nil
}

// SyncPayload is the serialized intent submitted upstream.
type SyncPayload struct {
	Entry LedgerEntry `json:"entry"`
	Proof string      `json:"proof,omitempty"` // encoded receipt
}
