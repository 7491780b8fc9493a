/*
claims.go - ClaimService: the claim pipeline

PURPOSE:
  Drives a claim from submission through review, approval or rejection,
  appeal, and settlement. Adjudication (the split computation) happens at
  submission; approval is a separate reviewer-driven transition that
  records the enrollment utilization; payment settles through the
  TransactionProcessor.

PIPELINE:
  submitted ──▶ under_review ──▶ {approved | partially_approved | rejected}
                     ▲                      │            │
                     └────── appealed ◀─────┴────────────┘  (one appeal)
  approved/partially_approved ──▶ paid
  cancelled is reachable from any pre-paid state

AUDIT:
  Every transition appends {from, to, actor, reason, at} to the claim's
  history log. The appeal workflow shows prior decisions from this log.

SETTLEMENT REVERSAL:
  The service implements ledger.Compensator: reversing a claim settlement
  rolls the enrollment's utilization counters back inside the reversal's
  atomic unit and notes the reversal on the claim.

SEE ALSO:
  - adjudicator.go: The computation run at submission
  - enrollment.go: Utilization recording used on approval
*/
package hmo

import (
	"context"
	"fmt"

	"github.com/caremesh/benefits-engine/ledger"
	"github.com/google/uuid"
)

// =============================================================================
// CLAIM SERVICE
// =============================================================================

type ClaimService struct {
	Store     ledger.TxStore
	Processor *ledger.TransactionProcessor
	Tracker   *Tracker

	adjudicator Adjudicator
}

func NewClaimService(store ledger.TxStore, processor *ledger.TransactionProcessor, tracker *Tracker) *ClaimService {
	return &ClaimService{Store: store, Processor: processor, Tracker: tracker}
}

// SubmitInput is a populated claim draft from a claimant flow.
type SubmitInput struct {
	EnrollmentID EnrollmentID
	PatientID    string
	Claimant     Claimant
	Service      ServiceInfo
	TotalBilled  ledger.Money
	Items        []LineItem

	// Reference is the caller's dedup key; resubmitting with the same
	// reference returns the existing claim instead of creating another.
	Reference string
}

// Submit creates the claim, runs adjudication against the enrollment's
// current limits, and records the submission counters - one atomic unit.
// The claim comes back with the computed billing block and submitted
// status, awaiting review.
func (cs *ClaimService) Submit(ctx context.Context, in SubmitInput) (*Claim, error) {
	if !in.TotalBilled.IsPositive() {
		return nil, &ledger.InvalidStateError{Entity: "claim", ID: "", Status: "draft",
			Operation: "submit with non-positive billed amount"}
	}
	var out *Claim
	err := cs.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}

		if in.Reference != "" {
			existing, err := hs.GetClaimByNumber(ctx, in.Reference)
			if err == nil {
				out = existing
				return nil
			}
			if !ledger.IsNotFound(err) {
				return err
			}
		}

		enrollment, err := cs.Tracker.loadExpiring(ctx, hs, in.EnrollmentID)
		if err != nil {
			return err
		}
		if enrollment.Status != EnrollmentActive {
			return &ledger.InvalidStateError{Entity: "enrollment", ID: string(enrollment.ID),
				Status: string(enrollment.Status), Operation: "submit claim"}
		}
		plan, err := hs.GetPlan(ctx, enrollment.PlanID)
		if err != nil {
			return err
		}

		now := cs.Tracker.now()
		number := in.Reference
		if number == "" {
			number = NewClaimNumber()
		}
		claim := &Claim{
			ID:           ClaimID(uuid.NewString()),
			Number:       number,
			EnrollmentID: enrollment.ID,
			PlanID:       plan.ID,
			PatientID:    in.PatientID,
			Claimant:     in.Claimant,
			Service:      in.Service,
			Billing: Billing{
				TotalBilled:    in.TotalBilled,
				Items:          in.Items,
				ApprovedAmount: ledger.Zero(in.TotalBilled.Currency),
				RejectedAmount: ledger.Zero(in.TotalBilled.Currency),
			},
			Status:    ClaimSubmitted,
			CreatedAt: now,
			UpdatedAt: now,
		}
		claim.History = append(claim.History, StatusChange{
			From: ClaimSubmitted, To: ClaimSubmitted,
			Actor: in.Claimant.ID, Reason: "claim submitted", At: now,
		})

		if err := cs.adjudicator.Adjudicate(claim, plan, enrollment); err != nil {
			return err
		}
		if err := cs.Tracker.recordSubmissionIn(ctx, hs, enrollment, in.TotalBilled); err != nil {
			return err
		}
		if err := hs.CreateClaim(ctx, claim); err != nil {
			return err
		}
		out = claim
		return nil
	})
	return out, err
}

// Review moves a submitted or appealed claim into review.
func (cs *ClaimService) Review(ctx context.Context, id ClaimID, actor, reason string) (*Claim, error) {
	return cs.mutate(ctx, id, func(s ledger.Store, hs Store, c *Claim) error {
		return cs.advance(c, ClaimUnderReview, actor, reason)
	})
}

// Approve finalizes coverage for a claim under review. A nil amount
// approves the full covered amount; a smaller amount yields
// partially_approved with the difference recorded as rejected. The
// enrollment draw-down happens in the same atomic unit, so a cap breached
// since adjudication fails the approval with LimitExceeded.
func (cs *ClaimService) Approve(ctx context.Context, id ClaimID, actor, reason string, amount *ledger.Money) (*Claim, error) {
	return cs.mutate(ctx, id, func(s ledger.Store, hs Store, c *Claim) error {
		covered := c.Billing.CoveredAmount
		approved := covered
		if amount != nil {
			if amount.IsNegative() || amount.GreaterThan(covered) {
				return &ledger.InvalidStateError{Entity: "claim", ID: string(c.ID),
					Status: string(c.Status), Operation: "approve more than covered amount"}
			}
			if !amount.SameCurrency(covered) {
				return &ledger.CurrencyMismatchError{WalletCurrency: covered.Currency, AmountCurrency: amount.Currency}
			}
			approved = *amount
		}

		next := ClaimApproved
		if approved.LessThan(covered) {
			next = ClaimPartiallyApproved
		}
		if err := cs.advance(c, next, actor, reason); err != nil {
			return err
		}

		c.Billing.ApprovedAmount = approved
		c.Billing.RejectedAmount = covered.Sub(approved)

		_, err := cs.Tracker.RecordUtilizationIn(ctx, s, c.EnrollmentID, UtilizationClaim, approved)
		return err
	})
}

// Reject denies a claim under review.
func (cs *ClaimService) Reject(ctx context.Context, id ClaimID, actor, reason string) (*Claim, error) {
	return cs.mutate(ctx, id, func(s ledger.Store, hs Store, c *Claim) error {
		if err := cs.advance(c, ClaimRejected, actor, reason); err != nil {
			return err
		}
		c.Billing.ApprovedAmount = ledger.Zero(c.Billing.TotalBilled.Currency)
		c.Billing.RejectedAmount = c.Billing.CoveredAmount
		return cs.Tracker.recordDenialIn(ctx, hs, c.EnrollmentID)
	})
}

// FileAppeal files the single allowed appeal against a rejection or
// partial approval and puts the claim back under review.
func (cs *ClaimService) FileAppeal(ctx context.Context, id ClaimID, filedBy, reason string) (*Claim, error) {
	return cs.mutate(ctx, id, func(s ledger.Store, hs Store, c *Claim) error {
		if c.Appeal != nil {
			return &ledger.InvalidStateError{Entity: "claim", ID: string(c.ID),
				Status: string(c.Status), Operation: "file a second appeal"}
		}
		if err := cs.advance(c, ClaimAppealed, filedBy, reason); err != nil {
			return err
		}
		c.Appeal = &Appeal{Reason: reason, FiledBy: filedBy, FiledAt: cs.Tracker.now()}
		// An appeal immediately re-enters review.
		return cs.advance(c, ClaimUnderReview, filedBy, "appeal filed")
	})
}

// CancelClaim withdraws a claim from any pre-paid state.
func (cs *ClaimService) CancelClaim(ctx context.Context, id ClaimID, actor, reason string) (*Claim, error) {
	return cs.mutate(ctx, id, func(s ledger.Store, hs Store, c *Claim) error {
		return cs.advance(c, ClaimCancelled, actor, reason)
	})
}

// Pay settles an approved claim: insurer wallet to claimant billing wallet
// for the approved amount, then marks the claim paid. Settlement and
// status advance commit together.
func (cs *ClaimService) Pay(ctx context.Context, id ClaimID, actor string) (*Claim, error) {
	return cs.mutate(ctx, id, func(s ledger.Store, hs Store, c *Claim) error {
		plan, err := hs.GetPlan(ctx, c.PlanID)
		if err != nil {
			return err
		}
		if !c.Billing.ApprovedAmount.IsPositive() {
			return &ledger.InvalidStateError{Entity: "claim", ID: string(c.ID),
				Status: string(c.Status), Operation: "pay zero approved amount"}
		}
		if err := cs.advance(c, ClaimPaid, actor, "claim settled"); err != nil {
			return err
		}

		tx, err := cs.Processor.TransferWithin(ctx, s, ledger.InitiateInput{
			Kind:        ledger.KindPayment,
			From:        ledger.WalletParty(plan.InsurerWalletID),
			To:          ledger.WalletParty(c.Claimant.BillingWalletID),
			Amount:      c.Billing.ApprovedAmount,
			Reference:   fmt.Sprintf("claim-settlement-%s", c.Number),
			Description: fmt.Sprintf("settlement of claim %s", c.Number),
			Metadata: map[string]string{
				"claim_id":      string(c.ID),
				"enrollment_id": string(c.EnrollmentID),
			},
		})
		if err != nil {
			return err
		}
		c.Billing.Payment = &PaymentRecord{
			TransactionID: tx.ID,
			Amount:        c.Billing.ApprovedAmount,
			PaidAt:        cs.Tracker.now(),
		}
		return nil
	})
}

// Get resolves a claim by ID.
func (cs *ClaimService) Get(ctx context.Context, id ClaimID) (*Claim, error) {
	var out *Claim
	err := cs.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		c, err := hs.GetClaim(ctx, id)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// GetByNumber resolves a claim by its quotable number; callers that timed
// out polling re-query here instead of assuming failure.
func (cs *ClaimService) GetByNumber(ctx context.Context, number string) (*Claim, error) {
	var out *Claim
	err := cs.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		c, err := hs.GetClaimByNumber(ctx, number)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// ListByEnrollment returns an enrollment's claims for display/reporting.
func (cs *ClaimService) ListByEnrollment(ctx context.Context, id EnrollmentID) ([]*Claim, error) {
	var out []*Claim
	err := cs.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		claims, err := hs.ListClaimsByEnrollment(ctx, id)
		if err != nil {
			return err
		}
		out = claims
		return nil
	})
	return out, err
}

func (cs *ClaimService) mutate(ctx context.Context, id ClaimID, fn func(ledger.Store, Store, *Claim) error) (*Claim, error) {
	var out *Claim
	err := cs.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		c, err := hs.GetClaim(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(s, hs, c); err != nil {
			return err
		}
		if err := hs.UpdateClaim(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

func (cs *ClaimService) advance(c *Claim, next ClaimStatus, actor, reason string) error {
	if !c.Status.CanTransitionTo(next) {
		return &ledger.InvalidStateError{Entity: "claim", ID: string(c.ID),
			Status: string(c.Status), Operation: fmt.Sprintf("transition to %s", next)}
	}
	c.recordTransition(next, actor, reason, cs.Tracker.now())
	return nil
}

// =============================================================================
// SETTLEMENT REVERSAL COMPENSATION
// =============================================================================

// Compensate implements ledger.Compensator. Reversing a claim settlement
// restores the enrollment's annual/lifetime headroom and notes the
// reversal on the claim. No-op for transactions this service did not
// produce.
func (cs *ClaimService) Compensate(ctx context.Context, s ledger.Store, original, reversal *ledger.Transaction) error {
	if original.Kind != ledger.KindPayment {
		return nil
	}
	claimID, ok := original.Metadata["claim_id"]
	if !ok {
		return nil
	}
	hs, sok := s.(Store)
	if !sok {
		return ledger.ErrStoreRequired
	}
	c, err := hs.GetClaim(ctx, ClaimID(claimID))
	if err != nil {
		return err
	}
	if err := cs.Tracker.rollbackUtilizationIn(ctx, hs, c.EnrollmentID, original.Amount); err != nil {
		return err
	}
	c.Billing.Notes = append(c.Billing.Notes,
		fmt.Sprintf("settlement %s reversed by %s", original.ID, reversal.ID))
	c.UpdatedAt = cs.Tracker.now()
	return hs.UpdateClaim(ctx, c)
}

var _ ledger.Compensator = (*ClaimService)(nil)
