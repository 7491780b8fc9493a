/*
enrollment.go - Tracker: coverage limits and running utilization

PURPOSE:
  Owns enrollment lifecycle and the limits arithmetic. Limits are
  snapshotted from the plan when the enrollment is created; every approved
  claim draws the approved (not billed) amount down from RemainingAnnual
  and RemainingLifetime.

GRACE PERIOD:
  grace_period is a derived, read-time state: an active enrollment whose
  coverage end date is within the configured window reports grace_period.
  Nothing is stored and no background job fires the transition.

LAZY EXPIRY:
  Like sponsorships, an enrollment whose coverage window has passed is
  transitioned to expired during any read or utilization attempt.

SEE ALSO:
  - types.go: LimitsSnapshot and UsageCounters
  - adjudicator.go: Consumes CheckRemaining's headroom during computation
  - claims.go: Calls the *In variants inside the approval atomic unit
*/
package hmo

import (
	"context"
	"time"

	"github.com/caremesh/benefits-engine/ledger"
	"github.com/google/uuid"
)

// DefaultGraceWindow is applied when a Tracker is built without one.
const DefaultGraceWindow = 30 * 24 * time.Hour

// UtilizationKind selects which usage counter a recorded event bumps.
type UtilizationKind string

const (
	UtilizationAppointment  UtilizationKind = "appointment"
	UtilizationPrescription UtilizationKind = "prescription"
	UtilizationClaim        UtilizationKind = "claim"
)

// =============================================================================
// TRACKER
// =============================================================================

type Tracker struct {
	Store       ledger.TxStore
	GraceWindow time.Duration

	// Now is injectable for deterministic expiry tests.
	Now func() time.Time
}

func NewTracker(store ledger.TxStore) *Tracker {
	return &Tracker{Store: store, GraceWindow: DefaultGraceWindow}
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now().UTC()
	}
	return time.Now().UTC()
}

// InitializeLimits snapshots the plan's limits onto a fresh enrollment.
// The snapshot is point-in-time: later plan edits never touch it.
func InitializeLimits(e *Enrollment, p *Plan) {
	zero := ledger.Zero(p.Currency)
	e.Limits = LimitsSnapshot{
		AnnualMaximum:     p.AnnualMaximum,
		RemainingAnnual:   p.AnnualMaximum,
		LifetimeMaximum:   p.LifetimeMaximum,
		RemainingLifetime: p.LifetimeMaximum,
		Deductible:        p.Deductible,
		DeductibleMet:     zero,
		MaxOutOfPocket:    p.MaxOutOfPocket,
		OutOfPocketMet:    zero,
	}
	e.Usage = UsageCounters{TotalClaimed: zero, TotalPaid: zero}
}

// EnrollInput describes a new subscription to a plan.
type EnrollInput struct {
	SubscriberID string
	PlanID       PlanID
	Kind         EnrollmentKind
	Window       Window
	Cadence      PaymentCadence
}

// Enroll creates a pending enrollment with limits snapshotted from the plan.
func (t *Tracker) Enroll(ctx context.Context, in EnrollInput) (*Enrollment, error) {
	if in.Window.End.Before(in.Window.Start) {
		return nil, &ledger.InvalidStateError{Entity: "enrollment", ID: "", Status: "draft",
			Operation: "enroll with window end before start"}
	}
	var out *Enrollment
	err := t.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		plan, err := hs.GetPlan(ctx, in.PlanID)
		if err != nil {
			return err
		}
		now := t.now()
		e := &Enrollment{
			ID:           EnrollmentID(uuid.NewString()),
			SubscriberID: in.SubscriberID,
			PlanID:       in.PlanID,
			Kind:         in.Kind,
			Window:       in.Window,
			Cadence:      in.Cadence,
			Status:       EnrollmentPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		InitializeLimits(e, plan)
		if err := hs.CreateEnrollment(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// Get loads an enrollment, applying lazy expiry first.
func (t *Tracker) Get(ctx context.Context, id EnrollmentID) (*Enrollment, error) {
	var out *Enrollment
	err := t.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		e, err := t.loadExpiring(ctx, hs, id)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

func (t *Tracker) Activate(ctx context.Context, id EnrollmentID) (*Enrollment, error) {
	return t.transition(ctx, id, EnrollmentActive, "activate")
}

func (t *Tracker) Suspend(ctx context.Context, id EnrollmentID) (*Enrollment, error) {
	return t.transition(ctx, id, EnrollmentSuspended, "suspend")
}

func (t *Tracker) Resume(ctx context.Context, id EnrollmentID) (*Enrollment, error) {
	return t.transition(ctx, id, EnrollmentActive, "resume")
}

func (t *Tracker) Cancel(ctx context.Context, id EnrollmentID) (*Enrollment, error) {
	return t.transition(ctx, id, EnrollmentCancelled, "cancel")
}

func (t *Tracker) transition(ctx context.Context, id EnrollmentID, next EnrollmentStatus, op string) (*Enrollment, error) {
	var out *Enrollment
	err := t.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		e, err := t.loadExpiring(ctx, hs, id)
		if err != nil {
			return err
		}
		if !e.Status.CanTransitionTo(next) {
			return &ledger.InvalidStateError{Entity: "enrollment", ID: string(e.ID),
				Status: string(e.Status), Operation: op}
		}
		e.Status = next
		e.UpdatedAt = t.now()
		if err := hs.UpdateEnrollment(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// Renew opens a new coverage period: the annual limit, deductible and
// out-of-pocket accumulators reset from the plan; the lifetime remainder
// carries over. An expired enrollment is reactivated.
func (t *Tracker) Renew(ctx context.Context, id EnrollmentID, window Window) (*Enrollment, error) {
	if window.End.Before(window.Start) {
		return nil, &ledger.InvalidStateError{Entity: "enrollment", ID: string(id), Status: "",
			Operation: "renew with window end before start"}
	}
	var out *Enrollment
	err := t.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		e, err := t.loadExpiring(ctx, hs, id)
		if err != nil {
			return err
		}
		switch e.Status {
		case EnrollmentActive, EnrollmentExpired:
		default:
			return &ledger.InvalidStateError{Entity: "enrollment", ID: string(e.ID),
				Status: string(e.Status), Operation: "renew"}
		}
		plan, err := hs.GetPlan(ctx, e.PlanID)
		if err != nil {
			return err
		}
		remainingLifetime := e.Limits.RemainingLifetime
		InitializeLimits(e, plan)
		e.Limits.RemainingLifetime = remainingLifetime
		e.Window = window
		e.Status = EnrollmentActive
		e.UpdatedAt = t.now()
		if err := hs.UpdateEnrollment(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// =============================================================================
// UTILIZATION
// =============================================================================

// Headroom is the advisory answer to "does this amount still fit".
type Headroom struct {
	RemainingAnnual   ledger.Money
	RemainingLifetime ledger.Money
	Fits              bool
}

// CheckRemaining is advisory: the adjudicator consults it before
// finalizing coverage so the cap lands during computation, not after.
func (t *Tracker) CheckRemaining(ctx context.Context, id EnrollmentID, amount ledger.Money) (Headroom, error) {
	var out Headroom
	err := t.Store.WithTx(ctx, func(s ledger.Store) error {
		hs, ok := s.(Store)
		if !ok {
			return ledger.ErrStoreRequired
		}
		e, err := t.loadExpiring(ctx, hs, id)
		if err != nil {
			return err
		}
		out = Headroom{
			RemainingAnnual:   e.Limits.RemainingAnnual,
			RemainingLifetime: e.Limits.RemainingLifetime,
			Fits: !amount.GreaterThan(e.Limits.RemainingAnnual) &&
				!amount.GreaterThan(e.Limits.RemainingLifetime),
		}
		return nil
	})
	return out, err
}

// RecordUtilization records a consumption event in its own atomic unit.
func (t *Tracker) RecordUtilization(ctx context.Context, id EnrollmentID, kind UtilizationKind, amount ledger.Money) (*Enrollment, error) {
	var out *Enrollment
	err := t.Store.WithTx(ctx, func(s ledger.Store) error {
		e, err := t.RecordUtilizationIn(ctx, s, id, kind, amount)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// RecordUtilizationIn records a consumption event against the store view
// of an enclosing atomic unit. For an approved claim the approved amount
// draws down RemainingAnnual and RemainingLifetime; the remainders never
// go negative - a breach fails LimitExceeded before any write.
func (t *Tracker) RecordUtilizationIn(ctx context.Context, s ledger.Store, id EnrollmentID, kind UtilizationKind, amount ledger.Money) (*Enrollment, error) {
	hs, ok := s.(Store)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}
	e, err := t.loadExpiring(ctx, hs, id)
	if err != nil {
		return nil, err
	}

	switch kind {
	case UtilizationAppointment:
		e.Usage.AppointmentsUsed++
	case UtilizationPrescription:
		e.Usage.PrescriptionsUsed++
	case UtilizationClaim:
		if amount.GreaterThan(e.Limits.RemainingAnnual) || amount.GreaterThan(e.Limits.RemainingLifetime) {
			return nil, ledger.ErrLimitExceeded
		}
		e.Limits.RemainingAnnual = e.Limits.RemainingAnnual.Sub(amount)
		e.Limits.RemainingLifetime = e.Limits.RemainingLifetime.Sub(amount)
		e.Usage.ClaimsApproved++
		e.Usage.TotalPaid = e.Usage.TotalPaid.Add(amount)
	default:
		return nil, &ledger.InvalidStateError{Entity: "enrollment", ID: string(id),
			Status: string(e.Status), Operation: "record unknown utilization kind"}
	}

	e.UpdatedAt = t.now()
	if err := hs.UpdateEnrollment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// recordSubmissionIn bumps the submission counters when a claim enters the
// pipeline.
func (t *Tracker) recordSubmissionIn(ctx context.Context, hs Store, e *Enrollment, billed ledger.Money) error {
	e.Usage.ClaimsSubmitted++
	e.Usage.TotalClaimed = e.Usage.TotalClaimed.Add(billed)
	e.UpdatedAt = t.now()
	return hs.UpdateEnrollment(ctx, e)
}

// recordDenialIn bumps the denial counter when a claim is rejected.
func (t *Tracker) recordDenialIn(ctx context.Context, hs Store, id EnrollmentID) error {
	e, err := hs.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	e.Usage.ClaimsDenied++
	e.UpdatedAt = t.now()
	return hs.UpdateEnrollment(ctx, e)
}

// rollbackUtilizationIn undoes an approved claim's draw-down when its
// settlement is reversed.
func (t *Tracker) rollbackUtilizationIn(ctx context.Context, hs Store, id EnrollmentID, amount ledger.Money) error {
	e, err := hs.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	e.Limits.RemainingAnnual = e.Limits.RemainingAnnual.Add(amount)
	e.Limits.RemainingLifetime = e.Limits.RemainingLifetime.Add(amount)
	if e.Usage.ClaimsApproved > 0 {
		e.Usage.ClaimsApproved--
	}
	e.Usage.TotalPaid = e.Usage.TotalPaid.Sub(amount)
	e.UpdatedAt = t.now()
	return hs.UpdateEnrollment(ctx, e)
}

func (t *Tracker) loadExpiring(ctx context.Context, hs Store, id EnrollmentID) (*Enrollment, error) {
	e, err := hs.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if (e.Status == EnrollmentActive || e.Status == EnrollmentSuspended) && e.Window.ExpiredAt(t.now()) {
		e.Status = EnrollmentExpired
		e.UpdatedAt = t.now()
		if err := hs.UpdateEnrollment(ctx, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}
