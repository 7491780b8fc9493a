/*
store.go - Persistence contract for wallets and ledger entries

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Wallet and transaction persistence
  TxStore: The atomic unit - WithTx runs a read-check-write sequence as
           a single store-level transaction

LEDGER CONTRACT:
  Transactions are append-then-advance:
  - AppendTransaction(): insert a pending entry (unique on Reference)
  - UpdateTransaction(): advance status / attach settlement and reversal
    linkage - never rewrites parties, amount, or kind
  - No Delete exists. Corrections are reversal entries.

OPTIMISTIC CONCURRENCY:
  UpdateWallet (and the domain CAS updates implemented alongside this
  interface) compare the record's Version and fail with
  ErrConcurrencyConflict when a concurrent writer committed first. Inside
  WithTx the store serializes writers, so a conflict means the caller
  read stale state before entering the unit.

DOMAIN EXTENSIONS:
  Domain packages declare their own store interfaces (sponsorship.Store,
  hmo.Store) and type-assert the Store handed to the WithTx callback.
  Both bundled implementations satisfy every interface.

IMPLEMENTATIONS:
  - store/sqlite:     Production SQLite (same patterns apply to PostgreSQL)
  - ledger/store:     In-memory for testing and dev mode

SEE ALSO:
  - manager.go, processor.go: The only writers of financial state
  - sponsorship/store.go, hmo/store.go: Domain store extensions
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Wallet and transaction persistence
// =============================================================================

type Store interface {
	// CreateWallet persists a new wallet.
	CreateWallet(ctx context.Context, w *Wallet) error

	// GetWallet loads a wallet by ID. Returns ErrNotFound if missing.
	GetWallet(ctx context.Context, id WalletID) (*Wallet, error)

	// UpdateWallet persists wallet changes if w.Version still matches the
	// stored version, then increments it. Returns ErrConcurrencyConflict
	// on a lost race.
	UpdateWallet(ctx context.Context, w *Wallet) error

	// AppendTransaction inserts a new ledger entry. Returns
	// ErrDuplicateReference if the dedup reference already exists.
	AppendTransaction(ctx context.Context, t *Transaction) error

	// GetTransaction loads an entry by ID. Returns ErrNotFound if missing.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// GetTransactionByReference resolves a dedup reference.
	// Returns ErrNotFound if no entry carries it.
	GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error)

	// UpdateTransaction advances an entry's mutable fields (status,
	// settlement time, failure reason, reversal linkage).
	UpdateTransaction(ctx context.Context, t *Transaction) error

	// ListTransactionsByWallet returns entries touching the wallet in
	// [from, to], ordered by creation time. Read-only; used by statements
	// and reporting.
	ListTransactionsByWallet(ctx context.Context, id WalletID, from, to time.Time) ([]*Transaction, error)
}

// =============================================================================
// TRANSACTIONAL STORE - The atomic unit
// =============================================================================

// TxStore wraps Store with transaction support. Every compute-then-mutate
// sequence in the engine runs inside WithTx: either all writes commit or
// none do.
type TxStore interface {
	Store

	// WithTx executes fn within a store-level transaction.
	// If fn returns an error, all writes are rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
