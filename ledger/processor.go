/*
processor.go - TransactionProcessor: ledger entry lifecycle

PURPOSE:
  Creates, finalizes, and reverses the ledger entries that move value
  between wallets or external rails (deposits, withdrawals, payments,
  refunds, transfers, sponsorship disbursement).

FLOW:
  Initiate ──▶ pending entry (no wallet effect yet)
  Complete ──▶ debit + credit + fee credit + status advance, one unit
  Fail     ──▶ pending entry marked failed, no wallet effect
  Reverse  ──▶ NEW opposite-direction entry, original marked reversed

IDEMPOTENCY:
  - Initiate with a reference already in the ledger returns the existing
    entry instead of creating a second one
  - Complete on an already-completed entry is a no-op returning the
    existing result

REVERSAL:
  Only a completed entry can be reversed; anything else is rejected with
  InvalidState, never queued. The reversal moves the NET amount (what the
  payee actually received) back to the payer; fees stay with the fee
  holder unless explicitly refunded by a separate entry. Registered
  Compensators run inside the same atomic unit so downstream utilization
  counters (sponsorship, enrollment) roll back together with the money.

SEE ALSO:
  - manager.go: The balance mutations applied on Complete/Reverse
  - sponsorship/fund.go: Compensator implementation for utilizations
*/
package ledger

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// COMPENSATOR - Cross-component rollback on reversal
// =============================================================================

// Compensator rolls back downstream effects of a reversed transaction.
// Implementations decide applicability from the original entry's kind and
// metadata and must be no-ops otherwise. Compensate runs inside the
// reversal's atomic unit: returning an error aborts the whole reversal.
type Compensator interface {
	Compensate(ctx context.Context, s Store, original, reversal *Transaction) error
}

// =============================================================================
// TRANSACTION PROCESSOR
// =============================================================================

type TransactionProcessor struct {
	Store   TxStore
	Wallets *WalletManager

	compensators []Compensator
}

func NewTransactionProcessor(store TxStore, wallets *WalletManager) *TransactionProcessor {
	return &TransactionProcessor{Store: store, Wallets: wallets}
}

// RegisterCompensator adds a rollback hook invoked on every reversal.
func (p *TransactionProcessor) RegisterCompensator(c Compensator) {
	p.compensators = append(p.compensators, c)
}

// InitiateInput describes a value movement to record.
type InitiateInput struct {
	Kind        TransactionKind
	From        *Party // nil for deposits from an external rail
	To          *Party // nil for withdrawals to an external rail
	Amount      Money
	Fee         Fee
	Reference   string // caller-supplied dedup key, optional
	Description string
	Metadata    map[string]string
}

func (in InitiateInput) validate() error {
	if !in.Amount.IsPositive() {
		return &InvalidStateError{Entity: "transaction", ID: in.Reference, Status: "draft", Operation: "initiate with non-positive amount"}
	}
	if in.From == nil && in.To == nil {
		return &InvalidStateError{Entity: "transaction", ID: in.Reference, Status: "draft", Operation: "initiate without any party"}
	}
	if in.Fee.Amount.IsNegative() {
		return &InvalidStateError{Entity: "transaction", ID: in.Reference, Status: "draft", Operation: "initiate with negative fee"}
	}
	if !in.Fee.IsZero() {
		if in.Fee.HolderWalletID == nil {
			return &InvalidStateError{Entity: "transaction", ID: in.Reference, Status: "draft", Operation: "initiate with fee but no fee holder"}
		}
		if !in.Fee.Amount.LessThan(in.Amount.Amount) {
			return &InvalidStateError{Entity: "transaction", ID: in.Reference, Status: "draft", Operation: "initiate with fee >= amount"}
		}
	}
	return nil
}

// Initiate records a pending ledger entry. No wallet is touched yet.
// If the dedup reference is already in the ledger the existing entry is
// returned, so network retries cannot create a second movement.
func (p *TransactionProcessor) Initiate(ctx context.Context, in InitiateInput) (*Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var out *Transaction
	err := p.Store.WithTx(ctx, func(s Store) error {
		if in.Reference != "" {
			existing, err := s.GetTransactionByReference(ctx, in.Reference)
			if err == nil {
				out = existing
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		t := &Transaction{
			ID:          NewTransactionID(),
			Reference:   in.Reference,
			Kind:        in.Kind,
			Status:      StatusPending,
			From:        in.From,
			To:          in.To,
			Amount:      in.Amount,
			Fee:         in.Fee,
			Description: in.Description,
			Metadata:    in.Metadata,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.AppendTransaction(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// Complete applies the debit/credit pair and marks the entry completed.
// Calling Complete on an already-completed entry is a no-op returning the
// existing result.
func (p *TransactionProcessor) Complete(ctx context.Context, id TransactionID) (*Transaction, error) {
	var out *Transaction
	err := p.Store.WithTx(ctx, func(s Store) error {
		t, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		out, err = p.completeIn(ctx, s, t)
		return err
	})
	return out, err
}

func (p *TransactionProcessor) completeIn(ctx context.Context, s Store, t *Transaction) (*Transaction, error) {
	if t.Status == StatusCompleted {
		return t, nil
	}
	if !t.CanTransitionTo(StatusCompleted) {
		return nil, &InvalidStateError{Entity: "transaction", ID: string(t.ID), Status: string(t.Status), Operation: "complete"}
	}

	if err := p.applyEffects(ctx, s, t); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.SettledAt = &now
	if err := s.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// applyEffects performs the balance mutations for a completing entry.
// Debit full amount from the payer; credit amount−fee to the payee;
// credit the fee to the fee holder. Value is conserved.
func (p *TransactionProcessor) applyEffects(ctx context.Context, s Store, t *Transaction) error {
	if w := t.DebitsWallet(); w != nil {
		if err := p.Wallets.DebitIn(ctx, s, *w, t.Amount, t.Kind); err != nil {
			return err
		}
	}
	if w := t.CreditsWallet(); w != nil {
		net := Money{Amount: t.Amount.Amount.Sub(t.Fee.Amount), Currency: t.Amount.Currency}
		if err := p.Wallets.CreditIn(ctx, s, *w, net, t.Kind); err != nil {
			return err
		}
	}
	if !t.Fee.IsZero() {
		fee := Money{Amount: t.Fee.Amount, Currency: t.Amount.Currency}
		if err := p.Wallets.CreditIn(ctx, s, *t.Fee.HolderWalletID, fee, t.Kind); err != nil {
			return err
		}
	}
	return nil
}

// Fail marks a pending entry failed. No wallet effect.
func (p *TransactionProcessor) Fail(ctx context.Context, id TransactionID, reason string) (*Transaction, error) {
	return p.advance(ctx, id, StatusFailed, reason)
}

// Cancel marks a pending entry cancelled. No wallet effect.
func (p *TransactionProcessor) Cancel(ctx context.Context, id TransactionID, reason string) (*Transaction, error) {
	return p.advance(ctx, id, StatusCancelled, reason)
}

func (p *TransactionProcessor) advance(ctx context.Context, id TransactionID, next TransactionStatus, reason string) (*Transaction, error) {
	var out *Transaction
	err := p.Store.WithTx(ctx, func(s Store) error {
		t, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if t.Status == next {
			out = t
			return nil
		}
		if !t.CanTransitionTo(next) {
			return &InvalidStateError{Entity: "transaction", ID: string(t.ID), Status: string(t.Status), Operation: string(next)}
		}
		t.Status = next
		t.FailureReason = reason
		if err := s.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// Reverse creates an opposite-direction entry for the net amount, links it
// to the original, marks the original reversed, and runs every registered
// Compensator in the same atomic unit. Only legal on a completed entry;
// anything else is rejected, not queued.
func (p *TransactionProcessor) Reverse(ctx context.Context, id TransactionID, reason string) (*Transaction, error) {
	var out *Transaction
	err := p.Store.WithTx(ctx, func(s Store) error {
		original, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if !original.CanTransitionTo(StatusReversed) {
			return &InvalidStateError{Entity: "transaction", ID: string(original.ID), Status: string(original.Status), Operation: "reverse"}
		}

		net := Money{Amount: original.Amount.Amount.Sub(original.Fee.Amount), Currency: original.Amount.Currency}
		now := time.Now().UTC()
		reversal := &Transaction{
			ID:          NewTransactionID(),
			Kind:        KindRefund,
			Status:      StatusPending,
			From:        original.To,
			To:          original.From,
			Amount:      net,
			Fee:         NoFee(),
			Description: reason,
			Metadata:    original.Metadata,
			ReversalOf:  &original.ID,
			CreatedAt:   now,
		}
		if err := s.AppendTransaction(ctx, reversal); err != nil {
			return err
		}
		if err := p.applyEffects(ctx, s, reversal); err != nil {
			return err
		}
		reversal.Status = StatusCompleted
		reversal.SettledAt = &now
		if err := s.UpdateTransaction(ctx, reversal); err != nil {
			return err
		}

		original.Status = StatusReversed
		original.ReversedBy = &reversal.ID
		if err := s.UpdateTransaction(ctx, original); err != nil {
			return err
		}

		for _, c := range p.compensators {
			if err := c.Compensate(ctx, s, original, reversal); err != nil {
				return err
			}
		}

		out = reversal
		return nil
	})
	return out, err
}

// TransferWithin records and completes a movement inside an enclosing
// atomic unit. Domain controllers use this so a fund utilization and its
// transfer commit together.
func (p *TransactionProcessor) TransferWithin(ctx context.Context, s Store, in InitiateInput) (*Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Reference != "" {
		existing, err := s.GetTransactionByReference(ctx, in.Reference)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	t := &Transaction{
		ID:          NewTransactionID(),
		Reference:   in.Reference,
		Kind:        in.Kind,
		Status:      StatusPending,
		From:        in.From,
		To:          in.To,
		Amount:      in.Amount,
		Fee:         in.Fee,
		Description: in.Description,
		Metadata:    in.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.AppendTransaction(ctx, t); err != nil {
		return nil, err
	}
	return p.completeIn(ctx, s, t)
}

// Statement returns the entries touching a wallet in [from, to].
// Read-only; used by reporting and dashboards.
func (p *TransactionProcessor) Statement(ctx context.Context, id WalletID, from, to time.Time) ([]*Transaction, error) {
	return p.Store.ListTransactionsByWallet(ctx, id, from, to)
}

// Get resolves a single entry; callers that timed out waiting for a
// response re-query by identifier instead of assuming failure.
func (p *TransactionProcessor) Get(ctx context.Context, id TransactionID) (*Transaction, error) {
	return p.Store.GetTransaction(ctx, id)
}

// GetByReference resolves an entry by its dedup key.
func (p *TransactionProcessor) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	return p.Store.GetTransactionByReference(ctx, reference)
}
