package dto

import (
	"time"

	"offline-payment-engine/internal/core/domain"
	"offline-payment-engine/internal/core/ports"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// FromIdentity maps a domain identity.
func FromIdentity(id *domain.Identity) IdentityResponse {
	return IdentityResponse{
		IdentityID: id.IdentityID,
		Address:    id.Address,
		PublicKey:  id.PublicKeyHex(),
		CreatedAt:  formatTime(id.CreatedAt),
	}
}

// FromAccount maps balances, exposing the amount spendable online.
func FromAccount(a *domain.Account) WalletResponse {
	return WalletResponse{
		MainBalance:      a.MainBalance,
		AvailableBalance: a.Available(),
		Offline: OfflineWalletResponse{
			Loaded:            a.Offline.Loaded,
			Balance:           a.Offline.Balance,
			InitialLoadAmount: a.Offline.InitialLoadAmount,
			LoadedAt:          formatTimePtr(a.Offline.LoadedAt),
			LastReset:         formatTimePtr(a.Offline.LastReset),
		},
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

// FromLedgerEntry maps a ledger entry.
func FromLedgerEntry(e *domain.LedgerEntry) TransactionResponse {
	return TransactionResponse{
		ID:                  e.ID.String(),
		JournalID:           e.JournalID.String(),
		CounterpartyAddress: e.CounterpartyAddress,
		Amount:              e.Amount,
		Direction:           string(e.Direction),
		Status:              string(e.Status),
		Mode:                string(e.Mode),
		Nonce:               e.Nonce,
		IntentLabel:         e.IntentLabel,
		Timestamp:           formatTime(e.Timestamp),
		SettledAt:           formatTimePtr(e.SettledAt),
	}
}

// FromLedgerPage maps one page of ledger entries.
func FromLedgerPage(entries []domain.LedgerEntry, total int64, page, pageSize int) TransactionListResponse {
	items := make([]TransactionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, FromLedgerEntry(&entries[i]))
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// FromStats maps aggregated ledger figures.
func FromStats(period string, s *ports.LedgerStats) SummaryResponse {
	return SummaryResponse{
		Period:   period,
		Total:    s.Total,
		Queued:   s.Queued,
		Settled:  s.Settled,
		Failed:   s.Failed,
		Debited:  s.Debited,
		Credited: s.Credited,
	}
}

// FromJournalEntry maps a journal record.
func FromJournalEntry(e *domain.JournalEntry) JournalEntryResponse {
	return JournalEntryResponse{
		ID:        e.JournalID.String(),
		State:     string(e.State),
		Direction: string(e.Intent.Entry.Direction),
		Amount:    e.Intent.Entry.Amount,
		Nonce:     e.Intent.Entry.Nonce,
		CreatedAt: formatTime(e.CreatedAt),
		UpdatedAt: formatTime(e.UpdatedAt),
	}
}
