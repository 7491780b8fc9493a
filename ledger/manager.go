/*
manager.go - WalletManager: the only writer of balance state

PURPOSE:
  Owns every mutation of wallet balances. Other components never touch
  Available/Pending/Reserved directly; they go through these operations.

OPERATIONS:
  Credit / Debit:     Move value in or out of Available
  Reserve / Release:  Earmark Available funds into Reserved and back
  GetBalance:         Read-only snapshot

INVARIANTS ENFORCED HERE:
  1. A debit never partially applies: it fails InsufficientFunds when
     Available < amount and leaves the wallet untouched
  2. All three balance buckets stay non-negative
  3. Amount currency must match the wallet currency (no conversion)
  4. Frozen wallets may receive credits but not debit or reserve;
     closed wallets accept nothing

ATOMICITY:
  The exported operations each run in their own WithTx unit. The *In
  variants operate on the Store handed into an enclosing WithTx callback,
  so the TransactionProcessor can pair a debit and a credit with the
  ledger entry that caused them - either all persist or none do.

SEE ALSO:
  - processor.go: Pairs these mutations with ledger entries
  - wallet.go: Entity and invariant documentation
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// WALLET MANAGER
// =============================================================================

type WalletManager struct {
	Store TxStore
}

func NewWalletManager(store TxStore) *WalletManager {
	return &WalletManager{Store: store}
}

// CreateWallet registers a new active wallet for a party.
func (m *WalletManager) CreateWallet(ctx context.Context, ownerID string, kind WalletKind, currency Currency) (*Wallet, error) {
	w := NewWallet(ownerID, kind, currency)
	if err := m.Store.CreateWallet(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetBalance returns a read-only snapshot of the wallet's balances.
func (m *WalletManager) GetBalance(ctx context.Context, id WalletID) (Balance, error) {
	w, err := m.Store.GetWallet(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return w.Snapshot(), nil
}

// Credit adds to Available in its own atomic unit. The movement lands in
// the ledger as a completed deposit from the external rail, so the
// statement stays a full record.
func (m *WalletManager) Credit(ctx context.Context, id WalletID, amount Money) (Balance, error) {
	return m.mutate(ctx, id, func(s Store, w *Wallet) error {
		if err := m.creditWallet(w, amount, KindDeposit); err != nil {
			return err
		}
		return s.AppendTransaction(ctx, m.movementEntry(w.ID, amount, KindDeposit))
	})
}

// Debit removes from Available in its own atomic unit, recorded as a
// completed withdrawal to the external rail.
// Fails with InsufficientFunds when Available < amount; never partial.
func (m *WalletManager) Debit(ctx context.Context, id WalletID, amount Money) (Balance, error) {
	return m.mutate(ctx, id, func(s Store, w *Wallet) error {
		if err := m.debitWallet(w, amount, KindWithdrawal); err != nil {
			return err
		}
		return s.AppendTransaction(ctx, m.movementEntry(w.ID, amount, KindWithdrawal))
	})
}

// movementEntry builds the settled ledger entry for a direct credit or
// debit against the external rail.
func (m *WalletManager) movementEntry(id WalletID, amount Money, kind TransactionKind) *Transaction {
	now := time.Now().UTC()
	t := &Transaction{
		ID:        NewTransactionID(),
		Kind:      kind,
		Status:    StatusCompleted,
		Amount:    amount,
		CreatedAt: now,
		SettledAt: &now,
	}
	if kind == KindDeposit {
		t.To = WalletParty(id)
	} else {
		t.From = WalletParty(id)
	}
	return t
}

// Reserve moves funds from Available to Reserved as a hold.
func (m *WalletManager) Reserve(ctx context.Context, id WalletID, amount Money) (Balance, error) {
	return m.mutate(ctx, id, func(s Store, w *Wallet) error {
		if err := m.checkMutable(w, amount); err != nil {
			return err
		}
		if w.Available.LessThan(amount.Amount) {
			return &InsufficientFundsError{WalletID: w.ID, Available: w.AvailableMoney(), Requested: amount}
		}
		w.Available = w.Available.Sub(amount.Amount)
		w.Reserved = w.Reserved.Add(amount.Amount)
		return nil
	})
}

// Release returns held funds from Reserved to Available.
func (m *WalletManager) Release(ctx context.Context, id WalletID, amount Money) (Balance, error) {
	return m.mutate(ctx, id, func(s Store, w *Wallet) error {
		if amount.Currency != w.Currency {
			return &CurrencyMismatchError{WalletCurrency: w.Currency, AmountCurrency: amount.Currency}
		}
		if w.Reserved.LessThan(amount.Amount) {
			return &InvalidStateError{Entity: "wallet", ID: string(w.ID), Status: string(w.Status),
				Operation: "release more than reserved"}
		}
		w.Reserved = w.Reserved.Sub(amount.Amount)
		w.Available = w.Available.Add(amount.Amount)
		return nil
	})
}

// Close marks the wallet closed. Wallets are never deleted.
func (m *WalletManager) Close(ctx context.Context, id WalletID) error {
	_, err := m.mutate(ctx, id, func(s Store, w *Wallet) error {
		if w.Status == WalletClosed {
			return nil
		}
		w.Status = WalletClosed
		return nil
	})
	return err
}

// Freeze suspends debits while still allowing inbound credits.
func (m *WalletManager) Freeze(ctx context.Context, id WalletID) error {
	_, err := m.mutate(ctx, id, func(s Store, w *Wallet) error {
		if w.Status == WalletClosed {
			return &InvalidStateError{Entity: "wallet", ID: string(w.ID), Status: string(w.Status), Operation: "freeze"}
		}
		w.Status = WalletFrozen
		return nil
	})
	return err
}

func (m *WalletManager) mutate(ctx context.Context, id WalletID, fn func(Store, *Wallet) error) (Balance, error) {
	var out Balance
	err := m.Store.WithTx(ctx, func(s Store) error {
		w, err := s.GetWallet(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(s, w); err != nil {
			return err
		}
		w.UpdatedAt = time.Now().UTC()
		if err := s.UpdateWallet(ctx, w); err != nil {
			return err
		}
		out = w.Snapshot()
		return nil
	})
	return out, err
}

// =============================================================================
// IN-UNIT MUTATIONS - Used inside an enclosing WithTx
// =============================================================================

// CreditIn applies a credit against the store view of an enclosing atomic
// unit. The kind attributes the movement in the wallet statistics.
func (m *WalletManager) CreditIn(ctx context.Context, s Store, id WalletID, amount Money, kind TransactionKind) error {
	w, err := s.GetWallet(ctx, id)
	if err != nil {
		return err
	}
	if err := m.creditWallet(w, amount, kind); err != nil {
		return err
	}
	w.UpdatedAt = time.Now().UTC()
	return s.UpdateWallet(ctx, w)
}

// DebitIn applies a debit against the store view of an enclosing atomic unit.
func (m *WalletManager) DebitIn(ctx context.Context, s Store, id WalletID, amount Money, kind TransactionKind) error {
	w, err := s.GetWallet(ctx, id)
	if err != nil {
		return err
	}
	if err := m.debitWallet(w, amount, kind); err != nil {
		return err
	}
	w.UpdatedAt = time.Now().UTC()
	return s.UpdateWallet(ctx, w)
}

func (m *WalletManager) creditWallet(w *Wallet, amount Money, kind TransactionKind) error {
	if amount.IsNegative() {
		return &InvalidStateError{Entity: "wallet", ID: string(w.ID), Status: string(w.Status), Operation: "credit negative amount"}
	}
	if amount.Currency != w.Currency {
		return &CurrencyMismatchError{WalletCurrency: w.Currency, AmountCurrency: amount.Currency}
	}
	if !w.CanReceive() {
		return ErrWalletInactive
	}
	w.Available = w.Available.Add(amount.Amount)
	w.Stats.TotalReceived = w.Stats.TotalReceived.Add(amount.Amount)
	w.Stats.TransactionCount++
	return nil
}

func (m *WalletManager) debitWallet(w *Wallet, amount Money, kind TransactionKind) error {
	if err := m.checkMutable(w, amount); err != nil {
		return err
	}
	if w.Available.LessThan(amount.Amount) {
		return &InsufficientFundsError{WalletID: w.ID, Available: w.AvailableMoney(), Requested: amount}
	}
	w.Available = w.Available.Sub(amount.Amount)
	if kind == KindWithdrawal {
		w.Stats.TotalWithdrawn = w.Stats.TotalWithdrawn.Add(amount.Amount)
	} else {
		w.Stats.TotalSpent = w.Stats.TotalSpent.Add(amount.Amount)
	}
	w.Stats.TransactionCount++
	return nil
}

func (m *WalletManager) checkMutable(w *Wallet, amount Money) error {
	if amount.IsNegative() {
		return &InvalidStateError{Entity: "wallet", ID: string(w.ID), Status: string(w.Status), Operation: "apply negative amount"}
	}
	if amount.Currency != w.Currency {
		return &CurrencyMismatchError{WalletCurrency: w.Currency, AmountCurrency: amount.Currency}
	}
	if !w.CanTransact() {
		return ErrWalletInactive
	}
	return nil
}
