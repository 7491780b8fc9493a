/*
fund.go - FundController: sponsorship allocation and draw-down

PURPOSE:
  Authorizes utilization against a sponsor's allocation and drives the
  sponsorship state machine. The remaining-funds check, the utilization
  record, and the ledger transfer all commit in one atomic unit: two
  concurrent utilizations against the same sponsorship serialize, so both
  can never pass the remaining check against a stale value.

UTILIZE ALGORITHM:
  1. Load sponsorship (NotFound if missing), lazily expire if the window
     has passed, fail InvalidState if not active
  2. amount > remaining            -> InsufficientSponsorshipFunds
  3. pre-approval gate             -> PreApprovalRequired
  4. coverage rules                -> ServiceNotEligible / ProviderNotEligible
  5. Append utilization, bump Used and the per-service impact counter,
     move funds sponsor wallet -> beneficiary wallet via the processor

REVERSAL COMPENSATION:
  The controller implements ledger.Compensator. When a sponsorship
  transfer is reversed, the matching utilization is flagged reversed and
  Used rolls back - inside the reversal's own atomic unit.

LAZY EXPIRY:
  There is no background sweep. Any read or utilization attempt that
  observes the window end in the past transitions the sponsorship to
  expired first.

SEE ALSO:
  - types.go: Entity, coverage rules, state machine
  - ledger/processor.go: TransferWithin and Compensator contract
*/
package sponsorship

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caremesh/benefits-engine/ledger"
	"github.com/google/uuid"
)

// =============================================================================
// DOMAIN ERRORS
// =============================================================================

var (
	// ErrServiceNotEligible is returned when the coverage rules exclude the
	// requested service category.
	ErrServiceNotEligible = errors.New("service not eligible under sponsorship coverage")

	// ErrProviderNotEligible is returned when the rendering provider is not
	// in the sponsorship's eligible provider list.
	ErrProviderNotEligible = errors.New("provider not eligible under sponsorship coverage")
)

// InsufficientFundsError reports a draw-down that exceeds the remaining
// allocation.
type InsufficientFundsError struct {
	SponsorshipID SponsorshipID
	Remaining     ledger.Money
	Requested     ledger.Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("sponsorship %s: remaining %s, requested %s",
		e.SponsorshipID, e.Remaining, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ledger.ErrInsufficientSponsorshipFunds }

// PreApprovalRequiredError reports a utilization above the approval
// threshold that arrived without pre-approval.
type PreApprovalRequiredError struct {
	SponsorshipID SponsorshipID
	Threshold     ledger.Money
	Requested     ledger.Money
}

func (e *PreApprovalRequiredError) Error() string {
	return fmt.Sprintf("sponsorship %s: %s exceeds approval threshold %s, pre-approval required",
		e.SponsorshipID, e.Requested, e.Threshold)
}

func (e *PreApprovalRequiredError) Unwrap() error { return ledger.ErrPreApprovalRequired }

// =============================================================================
// FUND CONTROLLER
// =============================================================================

type FundController struct {
	Store     ledger.TxStore
	Processor *ledger.TransactionProcessor

	// Now is injectable for deterministic expiry tests. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

func NewFundController(store ledger.TxStore, processor *ledger.TransactionProcessor) *FundController {
	return &FundController{Store: store, Processor: processor}
}

func (fc *FundController) now() time.Time {
	if fc.Now != nil {
		return fc.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateInput describes a new sponsorship approved by a sponsor.
type CreateInput struct {
	SponsorID           string
	BeneficiaryID       string
	SponsorWalletID     ledger.WalletID
	BeneficiaryWalletID ledger.WalletID
	Type                Type
	Allocated           ledger.Money
	Window              Window
	Coverage            CoverageRules
}

// Create registers a pending sponsorship.
func (fc *FundController) Create(ctx context.Context, in CreateInput) (*Sponsorship, error) {
	if !in.Allocated.IsPositive() {
		return nil, &ledger.InvalidStateError{Entity: "sponsorship", ID: "", Status: "draft",
			Operation: "create with non-positive allocation"}
	}
	if in.Window.End.Before(in.Window.Start) {
		return nil, &ledger.InvalidStateError{Entity: "sponsorship", ID: "", Status: "draft",
			Operation: "create with window end before start"}
	}
	now := fc.now()
	sp := &Sponsorship{
		ID:                  SponsorshipID(uuid.NewString()),
		SponsorID:           in.SponsorID,
		BeneficiaryID:       in.BeneficiaryID,
		SponsorWalletID:     in.SponsorWalletID,
		BeneficiaryWalletID: in.BeneficiaryWalletID,
		Type:                in.Type,
		Allocated:           in.Allocated,
		Used:                ledger.Zero(in.Allocated.Currency),
		Window:              in.Window,
		Coverage:            in.Coverage,
		ImpactByService:     make(map[ServiceType]int64),
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	err := fc.Store.WithTx(ctx, func(s ledger.Store) error {
		ss, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		return ss.CreateSponsorship(ctx, sp)
	})
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// Get loads a sponsorship, applying lazy expiry first.
func (fc *FundController) Get(ctx context.Context, id SponsorshipID) (*Sponsorship, error) {
	var out *Sponsorship
	err := fc.Store.WithTx(ctx, func(s ledger.Store) error {
		ss, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		sp, err := fc.loadExpiring(ctx, ss, id)
		if err != nil {
			return err
		}
		out = sp
		return nil
	})
	return out, err
}

// UtilizeInput describes one draw-down request.
type UtilizeInput struct {
	Amount     ledger.Money
	Service    ServiceType
	ProviderID string

	// PreApproved marks a utilization that went through the sponsor's
	// pre-approval decision flow.
	PreApproved bool

	// Reference is the caller's dedup key for the resulting transfer.
	Reference string
	Note      string
}

// Utilize draws the amount down from the sponsorship and moves the funds
// from the sponsor's wallet to the beneficiary's. All checks and writes
// happen against a single consistent snapshot.
func (fc *FundController) Utilize(ctx context.Context, id SponsorshipID, in UtilizeInput) (*Sponsorship, *ledger.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, nil, &ledger.InvalidStateError{Entity: "sponsorship", ID: string(id), Status: "",
			Operation: "utilize non-positive amount"}
	}

	var (
		outSp *Sponsorship
		outTx *ledger.Transaction
	)
	err := fc.Store.WithTx(ctx, func(s ledger.Store) error {
		ss, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}

		sp, err := fc.loadExpiring(ctx, ss, id)
		if err != nil {
			return err
		}
		if sp.Status != StatusActive {
			return &ledger.InvalidStateError{Entity: "sponsorship", ID: string(sp.ID),
				Status: string(sp.Status), Operation: "utilize"}
		}
		if !in.Amount.SameCurrency(sp.Allocated) {
			return &ledger.CurrencyMismatchError{WalletCurrency: sp.Allocated.Currency, AmountCurrency: in.Amount.Currency}
		}

		// Remaining is recomputed here, inside the unit. Never trusted
		// from an earlier read.
		remaining := sp.Remaining()
		if in.Amount.GreaterThan(remaining) {
			return &InsufficientFundsError{SponsorshipID: sp.ID, Remaining: remaining, Requested: in.Amount}
		}
		if !in.PreApproved && sp.Coverage.NeedsPreApproval(in.Amount) {
			return &PreApprovalRequiredError{SponsorshipID: sp.ID, Threshold: sp.Coverage.ApprovalThreshold, Requested: in.Amount}
		}
		if !sp.Coverage.CoversService(in.Service) {
			return fmt.Errorf("sponsorship %s, service %s: %w", sp.ID, in.Service, ErrServiceNotEligible)
		}
		if in.ProviderID != "" && !sp.Coverage.CoversProvider(in.ProviderID) {
			return fmt.Errorf("sponsorship %s, provider %s: %w", sp.ID, in.ProviderID, ErrProviderNotEligible)
		}

		util := Utilization{
			ID:          NewUtilizationID(),
			Service:     in.Service,
			ProviderID:  in.ProviderID,
			Amount:      in.Amount,
			PreApproved: in.PreApproved,
			Note:        in.Note,
			At:          fc.now(),
		}

		tx, err := fc.Processor.TransferWithin(ctx, s, ledger.InitiateInput{
			Kind:        ledger.KindSponsorship,
			From:        ledger.WalletParty(sp.SponsorWalletID),
			To:          ledger.WalletParty(sp.BeneficiaryWalletID),
			Amount:      in.Amount,
			Reference:   in.Reference,
			Description: fmt.Sprintf("sponsorship utilization: %s", in.Service),
			Metadata: map[string]string{
				"sponsorship_id": string(sp.ID),
				"utilization_id": util.ID,
				"service":        string(in.Service),
			},
		})
		if err != nil {
			return err
		}

		// A retried reference comes back as the earlier transaction from
		// the idempotency check. Its draw-down is already on the books,
		// so the retry returns the prior result without a second one.
		for i := range sp.Utilizations {
			if sp.Utilizations[i].TransactionID == tx.ID {
				outSp, outTx = sp, tx
				return nil
			}
		}
		util.TransactionID = tx.ID

		sp.Utilizations = append(sp.Utilizations, util)
		sp.Used = sp.Used.Add(in.Amount)
		if sp.ImpactByService == nil {
			sp.ImpactByService = make(map[ServiceType]int64)
		}
		sp.ImpactByService[in.Service]++
		sp.UpdatedAt = fc.now()

		if err := ss.UpdateSponsorship(ctx, sp); err != nil {
			return err
		}
		outSp, outTx = sp, tx
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return outSp, outTx, nil
}

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// Activate moves a pending sponsorship into force.
func (fc *FundController) Activate(ctx context.Context, id SponsorshipID) (*Sponsorship, error) {
	return fc.transition(ctx, id, StatusActive, "activate")
}

func (fc *FundController) Pause(ctx context.Context, id SponsorshipID) (*Sponsorship, error) {
	return fc.transition(ctx, id, StatusPaused, "pause")
}

func (fc *FundController) Resume(ctx context.Context, id SponsorshipID) (*Sponsorship, error) {
	return fc.transition(ctx, id, StatusActive, "resume")
}

func (fc *FundController) Terminate(ctx context.Context, id SponsorshipID) (*Sponsorship, error) {
	return fc.transition(ctx, id, StatusTerminated, "terminate")
}

// MarkCompleted closes out a sponsorship whose purpose has been fulfilled.
func (fc *FundController) MarkCompleted(ctx context.Context, id SponsorshipID) (*Sponsorship, error) {
	return fc.transition(ctx, id, StatusCompleted, "complete")
}

func (fc *FundController) transition(ctx context.Context, id SponsorshipID, next Status, op string) (*Sponsorship, error) {
	var out *Sponsorship
	err := fc.Store.WithTx(ctx, func(s ledger.Store) error {
		ss, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		sp, err := fc.loadExpiring(ctx, ss, id)
		if err != nil {
			return err
		}
		if !sp.Status.CanTransitionTo(next) {
			return &ledger.InvalidStateError{Entity: "sponsorship", ID: string(sp.ID),
				Status: string(sp.Status), Operation: op}
		}
		sp.Status = next
		sp.UpdatedAt = fc.now()
		if err := ss.UpdateSponsorship(ctx, sp); err != nil {
			return err
		}
		out = sp
		return nil
	})
	return out, err
}

// Renew extends the validity window and optionally tops up the allocation.
// An expired sponsorship is reopened; an active or paused one keeps its
// status.
func (fc *FundController) Renew(ctx context.Context, id SponsorshipID, newEnd time.Time, topUp ledger.Money) (*Sponsorship, error) {
	var out *Sponsorship
	err := fc.Store.WithTx(ctx, func(s ledger.Store) error {
		ss, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		sp, err := fc.loadExpiring(ctx, ss, id)
		if err != nil {
			return err
		}
		switch sp.Status {
		case StatusActive, StatusPaused, StatusExpired:
		default:
			return &ledger.InvalidStateError{Entity: "sponsorship", ID: string(sp.ID),
				Status: string(sp.Status), Operation: "renew"}
		}
		if !newEnd.After(fc.now()) {
			return &ledger.InvalidStateError{Entity: "sponsorship", ID: string(sp.ID),
				Status: string(sp.Status), Operation: "renew into the past"}
		}
		if topUp.IsNegative() {
			return &ledger.InvalidStateError{Entity: "sponsorship", ID: string(sp.ID),
				Status: string(sp.Status), Operation: "renew with negative top-up"}
		}
		if !topUp.IsZero() {
			if !topUp.SameCurrency(sp.Allocated) {
				return &ledger.CurrencyMismatchError{WalletCurrency: sp.Allocated.Currency, AmountCurrency: topUp.Currency}
			}
			sp.Allocated = sp.Allocated.Add(topUp)
		}
		sp.Window.End = newEnd
		if sp.Status == StatusExpired {
			sp.Status = StatusActive
		}
		sp.UpdatedAt = fc.now()
		if err := ss.UpdateSponsorship(ctx, sp); err != nil {
			return err
		}
		out = sp
		return nil
	})
	return out, err
}

// loadExpiring loads and, when the validity window has passed, transitions
// an active or paused sponsorship to expired before returning it.
func (fc *FundController) loadExpiring(ctx context.Context, ss Store, id SponsorshipID) (*Sponsorship, error) {
	sp, err := ss.GetSponsorship(ctx, id)
	if err != nil {
		return nil, err
	}
	if (sp.Status == StatusActive || sp.Status == StatusPaused) && sp.Window.ExpiredAt(fc.now()) {
		sp.Status = StatusExpired
		sp.UpdatedAt = fc.now()
		if err := ss.UpdateSponsorship(ctx, sp); err != nil {
			return nil, err
		}
	}
	return sp, nil
}

// ListByBeneficiary returns all sponsorships funding a beneficiary.
func (fc *FundController) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*Sponsorship, error) {
	var out []*Sponsorship
	err := fc.Store.WithTx(ctx, func(s ledger.Store) error {
		ss, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		sps, err := ss.ListSponsorshipsByBeneficiary(ctx, beneficiaryID)
		if err != nil {
			return err
		}
		out = sps
		return nil
	})
	return out, err
}

// =============================================================================
// REVERSAL COMPENSATION
// =============================================================================

// Compensate implements ledger.Compensator. When a sponsorship transfer is
// reversed, the matching utilization is flagged and Used rolls back so the
// allocation becomes available again. Runs inside the reversal's atomic
// unit; no-op for transactions this controller did not produce.
func (fc *FundController) Compensate(ctx context.Context, s ledger.Store, original, reversal *ledger.Transaction) error {
	if original.Kind != ledger.KindSponsorship {
		return nil
	}
	spID, ok := original.Metadata["sponsorship_id"]
	if !ok {
		return nil
	}
	ss, sok := s.(Store)
	if !sok {
		return ledger.ErrStoreRequired
	}

	sp, err := ss.GetSponsorship(ctx, SponsorshipID(spID))
	if err != nil {
		return err
	}
	for i := range sp.Utilizations {
		u := &sp.Utilizations[i]
		if u.TransactionID != original.ID || u.Reversed {
			continue
		}
		u.Reversed = true
		sp.Used = sp.Used.Sub(u.Amount)
		if sp.ImpactByService[u.Service] > 0 {
			sp.ImpactByService[u.Service]--
		}
		sp.UpdatedAt = fc.now()
		return ss.UpdateSponsorship(ctx, sp)
	}
	return nil
}

var _ ledger.Compensator = (*FundController)(nil)
