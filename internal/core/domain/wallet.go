package domain

import (
	"errors"
	"time"
)

var (
	// ErrInsufficientMainBalance is returned when a mutation would spend more
	// than the funds available outside the offline pool.
	ErrInsufficientMainBalance = errors.New("insufficient main balance")
	// ErrOfflineAllowanceExceeded is returned when a mutation would break
	// 0 <= offline balance <= initial load amount.
	ErrOfflineAllowanceExceeded = errors.New("offline allowance exceeded")
)

// OfflineWalletState is the bounded, pre-funded pool usable without
// connectivity. Invariant: 0 <= Balance <= InitialLoadAmount.
type OfflineWalletState struct {
	Loaded            bool       `json:"loaded"`
	Balance           int64      `json:"balance"`
	InitialLoadAmount int64      `json:"initial_load_amount"`
	LoadedAt          *time.Time `json:"loaded_at,omitempty"`
	LastReset         *time.Time `json:"last_reset,omitempty"`
}

// Valid reports whether the state satisfies the pool invariant.
func (s OfflineWalletState) Valid() bool {
	return s.Balance >= 0 && s.Balance <= s.InitialLoadAmount
}

// CanSpend is true iff the pool is loaded and covers amount.
func (s OfflineWalletState) CanSpend(amount int64) bool {
	return s.Loaded && amount > 0 && amount <= s.Balance
}

// Debit removes amount from the pool. It returns false and leaves the state
// untouched if the invariant would break.
func (s *OfflineWalletState) Debit(amount int64) bool {
	if amount <= 0 || !s.Loaded || s.Balance-amount < 0 {
		return false
	}
	s.Balance -= amount
	return true
}

// Credit returns amount to the pool, never above InitialLoadAmount.
func (s *OfflineWalletState) Credit(amount int64) bool {
	if amount <= 0 || !s.Loaded || s.Balance+amount > s.InitialLoadAmount {
		return false
	}
	s.Balance += amount
	return true
}

// Load grows the pool by amount.
func (s *OfflineWalletState) Load(amount int64, at time.Time) bool {
	if amount <= 0 {
		return false
	}
	s.Loaded = true
	s.InitialLoadAmount += amount
	s.Balance += amount
	s.LoadedAt = &at
	return true
}

// Reset empties the pool and returns what was left in it.
func (s *OfflineWalletState) Reset(at time.Time) int64 {
	remaining := s.Balance
	s.Loaded = false
	s.Balance = 0
	s.InitialLoadAmount = 0
	s.LoadedAt = nil
	s.LastReset = &at
	return remaining
}

// Account holds the balances of one local identity. The offline pool is
// earmarked out of MainBalance: spending offline reduces both, and funds in
// the pool are not available for online spending.
type Account struct {
	IdentityID  string             `json:"identity_id"`
	MainBalance int64              `json:"main_balance"` // minor units
	Offline     OfflineWalletState `json:"offline"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Available is the part of the main balance not earmarked for offline use.
func (a Account) Available() int64 {
	return a.MainBalance - a.Offline.Balance
}

// LoadOffline earmarks amount of the available balance into the offline pool.
func (a *Account) LoadOffline(amount int64, at time.Time) error {
	if amount <= 0 {
		return ErrOfflineAllowanceExceeded
	}
	if a.Available() < amount {
		return ErrInsufficientMainBalance
	}
	a.Offline.Load(amount, at)
	return nil
}

// UnloadOffline releases the whole remaining pool back to the available
// balance and returns the released amount.
func (a *Account) UnloadOffline(at time.Time) int64 {
	return a.Offline.Reset(at)
}

// BalanceMutation is the change a single transaction makes to an account.
type BalanceMutation struct {
	MainDelta    int64 `json:"main_delta"`
	OfflineDelta int64 `json:"offline_delta"`
}

// Inverse returns the mutation that undoes m.
func (m BalanceMutation) Inverse() BalanceMutation {
	return BalanceMutation{MainDelta: -m.MainDelta, OfflineDelta: -m.OfflineDelta}
}

// IsZero reports whether the mutation changes nothing.
func (m BalanceMutation) IsZero() bool {
	return m.MainDelta == 0 && m.OfflineDelta == 0
}

// ApplyTo returns the account after applying m, or an error naming the
// invariant the result would violate. The input is not modified.
func (m BalanceMutation) ApplyTo(a Account) (Account, error) {
	next := a
	switch {
	case m.OfflineDelta < 0:
		if !next.Offline.Debit(-m.OfflineDelta) {
			return a, ErrOfflineAllowanceExceeded
		}
	case m.OfflineDelta > 0:
		if !next.Offline.Credit(m.OfflineDelta) {
			return a, ErrOfflineAllowanceExceeded
		}
	}
	next.MainBalance += m.MainDelta
	if next.MainBalance < 0 || next.Available() < 0 {
		return a, ErrInsufficientMainBalance
	}
	return next, nil
}
