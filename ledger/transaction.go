/*
transaction.go - Immutable-once-finalized ledger entry

PURPOSE:
  A Transaction records one movement of value between two parties (or
  between a wallet and an external rail). It is the audit trail of the
  engine: once completed it is never edited, only reversed.

LIFECYCLE:
  pending ──▶ completed ──▶ reversed
     │
     ├─────▶ failed
     └─────▶ cancelled

  A reversal is a NEW transaction in the opposite direction, linked to the
  original via ReversalOf/ReversedBy. Both remain in the ledger.

CONSERVATION:
  For a completed transaction the debit on one side equals the credit on
  the other, net of fees attributed to the fee holder wallet.

IDEMPOTENCY:
  Reference is a caller-supplied dedup key. Appending a second transaction
  with the same reference fails with ErrDuplicateReference, and Complete
  on an already-completed transaction is a no-op returning the existing
  record.

SEE ALSO:
  - processor.go: State transitions and wallet effects
  - store.go: Append-then-advance persistence contract
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TRANSACTION
// =============================================================================

type TransactionKind string

const (
	KindPayment     TransactionKind = "payment"
	KindRefund      TransactionKind = "refund"
	KindDeposit     TransactionKind = "deposit"
	KindWithdrawal  TransactionKind = "withdrawal"
	KindTransfer    TransactionKind = "transfer"
	KindSponsorship TransactionKind = "sponsorship"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
	StatusReversed  TransactionStatus = "reversed"
)

type Transaction struct {
	ID        TransactionID
	Reference string // caller-supplied dedup key, unique when present
	Kind      TransactionKind
	Status    TransactionStatus

	From *Party
	To   *Party

	Amount Money
	Fee    Fee

	Description   string
	FailureReason string
	Metadata      map[string]string

	// Reversal linkage. ReversalOf is set on the compensating entry,
	// ReversedBy on the original once reversed.
	ReversalOf *TransactionID
	ReversedBy *TransactionID

	CreatedAt time.Time
	SettledAt *time.Time
}

func NewTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// CanTransitionTo reports whether the status advance is legal.
func (t *Transaction) CanTransitionTo(next TransactionStatus) bool {
	switch t.Status {
	case StatusPending:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	case StatusCompleted:
		return next == StatusReversed
	default:
		// failed, cancelled and reversed are terminal
		return false
	}
}

// IsTerminal reports whether no further status advance is possible.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusFailed || t.Status == StatusCancelled || t.Status == StatusReversed
}

// DebitsWallet returns the wallet debited by this transaction, if any.
func (t *Transaction) DebitsWallet() *WalletID {
	if t.From == nil {
		return nil
	}
	return t.From.WalletID
}

// CreditsWallet returns the wallet credited by this transaction, if any.
func (t *Transaction) CreditsWallet() *WalletID {
	if t.To == nil {
		return nil
	}
	return t.To.WalletID
}
