/*
wallet.go - Wallet entity and balance invariants

PURPOSE:
  A Wallet holds the balance state for exactly one party. The balance is
  split three ways:
    Available: spendable now
    Pending:   inbound value not yet settled
    Reserved:  earmarked by a hold (Reserve/Release)

CRITICAL INVARIANTS:
  1. Available, Pending and Reserved are each non-negative at all times
  2. Debits draw only from Available unless the amount was reserved first
  3. Wallets are never deleted; Status transitions to closed instead
  4. Every successful mutation bumps the statistics counters

CONCURRENCY:
  Wallet carries a Version for optimistic concurrency. Store.UpdateWallet
  compares the version and fails with ErrConcurrencyConflict when a
  concurrent writer got there first. All read-check-write sequences run
  inside Store.WithTx so two concurrent debits serialize.

SEE ALSO:
  - manager.go: The only component allowed to mutate balances
  - store.go: Persistence contract including the CAS update
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// WALLET
// =============================================================================

type WalletKind string

const (
	WalletPersonal  WalletKind = "personal"
	WalletSponsored WalletKind = "sponsored"
	WalletPlatform  WalletKind = "platform"
	WalletProvider  WalletKind = "provider"
	WalletVendor    WalletKind = "vendor"
)

type WalletStatus string

const (
	WalletActive WalletStatus = "active"
	WalletFrozen WalletStatus = "frozen"
	WalletClosed WalletStatus = "closed"
)

// WalletStats are running totals maintained on every successful mutation.
// They are informational: balance correctness never depends on them.
type WalletStats struct {
	TotalReceived    decimal.Decimal
	TotalSpent       decimal.Decimal
	TotalWithdrawn   decimal.Decimal
	TransactionCount int64
}

type Wallet struct {
	ID       WalletID
	OwnerID  string
	Kind     WalletKind
	Currency Currency

	Available decimal.Decimal
	Pending   decimal.Decimal
	Reserved  decimal.Decimal

	Status WalletStatus
	Stats  WalletStats

	// Optimistic concurrency token, managed by the store.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWallet creates an active wallet with zero balances.
func NewWallet(ownerID string, kind WalletKind, currency Currency) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        WalletID(uuid.NewString()),
		OwnerID:   ownerID,
		Kind:      kind,
		Currency:  currency,
		Available: decimal.Zero,
		Pending:   decimal.Zero,
		Reserved:  decimal.Zero,
		Status:    WalletActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AvailableMoney returns the spendable balance as Money.
func (w *Wallet) AvailableMoney() Money { return Money{Amount: w.Available, Currency: w.Currency} }

// Total returns available + pending + reserved.
func (w *Wallet) Total() Money {
	return Money{Amount: w.Available.Add(w.Pending).Add(w.Reserved), Currency: w.Currency}
}

// CanTransact reports whether the wallet accepts balance mutations.
// Frozen wallets may still receive credits; closed wallets accept nothing.
func (w *Wallet) CanTransact() bool { return w.Status == WalletActive }

func (w *Wallet) CanReceive() bool {
	return w.Status == WalletActive || w.Status == WalletFrozen
}

// Balance is the read model returned by WalletManager.GetBalance.
type Balance struct {
	WalletID  WalletID
	Currency  Currency
	Available decimal.Decimal
	Pending   decimal.Decimal
	Reserved  decimal.Decimal
	Status    WalletStatus
	Stats     WalletStats
	AsOf      time.Time
}

func (w *Wallet) Snapshot() Balance {
	return Balance{
		WalletID:  w.ID,
		Currency:  w.Currency,
		Available: w.Available,
		Pending:   w.Pending,
		Reserved:  w.Reserved,
		Status:    w.Status,
		Stats:     w.Stats,
		AsOf:      time.Now().UTC(),
	}
}
