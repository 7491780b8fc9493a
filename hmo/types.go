/*
Package hmo implements the health-plan insurance subsystem: benefit plans,
enrollments, and claim adjudication.

PURPOSE:
  An Enrollment is a subscriber's active relationship to a Plan, carrying a
  point-in-time snapshot of the plan's coverage limits. A Claim is a request
  to pay for a rendered service against that enrollment. This package owns
  the limit arithmetic, the adjudication split, and both state machines;
  settlement goes through the ledger engine.

KEY INVARIANTS:
  1. Enrollment limits are a snapshot taken at enrollment time - plan
     changes never retroactively alter an enrollment in force
  2. RemainingAnnual = AnnualMaximum − cumulative approved, never negative
  3. coveredAmount + patientResponsibility.Total == totalBilled before any
     cap; after a cap, the excess lands in patient responsibility
  4. Claims are never deleted; every transition lands in the history log

SEE ALSO:
  - adjudicator.go: The deterministic coverage computation
  - enrollment.go: Tracker (limits snapshot, utilization, grace period)
  - claims.go: ClaimService orchestration (review/approve/pay)
*/
package hmo

import (
	"fmt"
	"strings"
	"time"

	"github.com/caremesh/benefits-engine/ledger"
	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS AND CLOSED ENUMS
// =============================================================================

type PlanID string
type EnrollmentID string
type ClaimID string

func NewPlanID() PlanID { return PlanID(uuid.NewString()) }

// ServiceType is the closed set of claimable service categories. A plan
// rule that matches the claim's category drives the split; with no exact
// match the generic outpatient rule applies.
type ServiceType string

const (
	ServiceOutpatient   ServiceType = "outpatient"
	ServiceInpatient    ServiceType = "inpatient"
	ServiceEmergency    ServiceType = "emergency"
	ServiceSurgery      ServiceType = "surgery"
	ServiceMaternity    ServiceType = "maternity"
	ServiceDental       ServiceType = "dental"
	ServiceOptical      ServiceType = "optical"
	ServicePrescription ServiceType = "prescription"
)

// =============================================================================
// PLAN - Benefit definitions
// =============================================================================

// CoverageRule controls how a billed amount for one service category is
// split between the insurer and the patient.
type CoverageRule struct {
	Service            ServiceType
	Covered            bool
	CoveragePercentage int64 // 0-100
	Copayment          ledger.Money
	RequiresPreAuth    bool
}

type Plan struct {
	ID       PlanID
	Name     string
	Tier     string
	Currency ledger.Currency

	Premium         ledger.Money
	AnnualMaximum   ledger.Money
	LifetimeMaximum ledger.Money
	Deductible      ledger.Money
	MaxOutOfPocket  ledger.Money

	Rules []CoverageRule

	// InsurerWalletID is the wallet claims are settled from.
	InsurerWalletID ledger.WalletID

	CreatedAt time.Time
}

// RuleFor resolves the coverage rule for a service category, falling back
// to the generic outpatient rule when there is no exact match. The second
// return is false only when the plan carries no outpatient rule either.
func (p *Plan) RuleFor(service ServiceType) (CoverageRule, bool) {
	var outpatient *CoverageRule
	for i := range p.Rules {
		r := &p.Rules[i]
		if r.Service == service {
			return *r, true
		}
		if r.Service == ServiceOutpatient {
			outpatient = r
		}
	}
	if outpatient != nil {
		return *outpatient, true
	}
	return CoverageRule{}, false
}

// Validate checks the rule table before a plan enters the catalog. The
// adjudication split assumes percentages inside 0-100.
func (p *Plan) Validate() error {
	for _, r := range p.Rules {
		if r.CoveragePercentage < 0 || r.CoveragePercentage > 100 {
			return fmt.Errorf("plan %q, rule %s: coverage percentage %d outside 0-100: %w",
				p.Name, r.Service, r.CoveragePercentage, ledger.ErrInvalidState)
		}
	}
	return nil
}

// =============================================================================
// ENROLLMENT
// =============================================================================

type EnrollmentKind string

const (
	EnrollIndividual EnrollmentKind = "individual"
	EnrollFamily     EnrollmentKind = "family"
	EnrollCorporate  EnrollmentKind = "corporate"
	EnrollGroup      EnrollmentKind = "group"
)

type PaymentCadence string

const (
	CadenceMonthly   PaymentCadence = "monthly"
	CadenceQuarterly PaymentCadence = "quarterly"
	CadenceAnnually  PaymentCadence = "annually"
)

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentSuspended EnrollmentStatus = "suspended"
	// EnrollmentGracePeriod is a derived, read-time status: active and
	// within the grace window of the coverage end date. Never stored.
	EnrollmentGracePeriod EnrollmentStatus = "grace_period"
	EnrollmentCancelled   EnrollmentStatus = "cancelled"
	EnrollmentExpired     EnrollmentStatus = "expired"
)

func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	switch s {
	case EnrollmentPending:
		return next == EnrollmentActive || next == EnrollmentCancelled
	case EnrollmentActive:
		return next == EnrollmentSuspended || next == EnrollmentCancelled || next == EnrollmentExpired
	case EnrollmentSuspended:
		return next == EnrollmentActive || next == EnrollmentCancelled || next == EnrollmentExpired
	default:
		return false
	}
}

// LimitsSnapshot is copied from the plan at enrollment time. It is a
// snapshot, not a live reference: later plan changes do not alter it.
type LimitsSnapshot struct {
	AnnualMaximum     ledger.Money
	RemainingAnnual   ledger.Money
	LifetimeMaximum   ledger.Money
	RemainingLifetime ledger.Money
	Deductible        ledger.Money
	DeductibleMet     ledger.Money
	MaxOutOfPocket    ledger.Money
	OutOfPocketMet    ledger.Money
}

// UsageCounters track running utilization for the current period.
type UsageCounters struct {
	AppointmentsUsed  int64
	PrescriptionsUsed int64
	ClaimsSubmitted   int64
	ClaimsApproved    int64
	ClaimsDenied      int64
	TotalClaimed      ledger.Money
	TotalPaid         ledger.Money
}

type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) ExpiredAt(at time.Time) bool { return at.After(w.End) }

type Enrollment struct {
	ID           EnrollmentID
	SubscriberID string
	PlanID       PlanID

	Kind    EnrollmentKind
	Window  Window
	Cadence PaymentCadence

	Limits LimitsSnapshot
	Usage  UsageCounters

	Status EnrollmentStatus

	// Optimistic concurrency token, managed by the store.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveStatus derives grace_period at read time: an active enrollment
// whose coverage end is within the grace window reports grace_period
// without a stored transition.
func (e *Enrollment) EffectiveStatus(at time.Time, graceWindow time.Duration) EnrollmentStatus {
	if e.Status == EnrollmentActive && !e.Window.ExpiredAt(at) && at.After(e.Window.End.Add(-graceWindow)) {
		return EnrollmentGracePeriod
	}
	return e.Status
}

// =============================================================================
// CLAIMANT - Variant over who submits and gets paid
// =============================================================================

// ClaimantKind is resolved once at claim creation; no runtime type-name
// branching afterwards.
type ClaimantKind string

const (
	ClaimantProvider ClaimantKind = "provider"
	ClaimantVendor   ClaimantKind = "vendor"
	ClaimantPatient  ClaimantKind = "patient"
)

// Claimant is the party that submitted the claim and receives payment.
type Claimant struct {
	Kind            ClaimantKind
	ID              string
	BillingWalletID ledger.WalletID
}

// =============================================================================
// CLAIM
// =============================================================================

type ClaimStatus string

const (
	ClaimSubmitted         ClaimStatus = "submitted"
	ClaimUnderReview       ClaimStatus = "under_review"
	ClaimApproved          ClaimStatus = "approved"
	ClaimPartiallyApproved ClaimStatus = "partially_approved"
	ClaimRejected          ClaimStatus = "rejected"
	ClaimAppealed          ClaimStatus = "appealed"
	ClaimPaid              ClaimStatus = "paid"
	ClaimCancelled         ClaimStatus = "cancelled"
)

func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	// cancelled is reachable from any pre-paid state
	if next == ClaimCancelled {
		return s != ClaimPaid && s != ClaimCancelled
	}
	switch s {
	case ClaimSubmitted:
		return next == ClaimUnderReview
	case ClaimUnderReview:
		return next == ClaimApproved || next == ClaimPartiallyApproved || next == ClaimRejected
	case ClaimApproved:
		return next == ClaimPaid
	case ClaimPartiallyApproved:
		return next == ClaimPaid || next == ClaimAppealed
	case ClaimRejected:
		return next == ClaimAppealed
	case ClaimAppealed:
		return next == ClaimUnderReview
	default:
		return false
	}
}

// ServiceInfo describes the rendered service being claimed.
type ServiceInfo struct {
	Type           ServiceType
	Date           time.Time
	DiagnosisCodes []string
	ProcedureCodes []string
}

type LineItem struct {
	Description string
	Amount      ledger.Money
}

// PatientResponsibility is the patient's share of the billed amount.
type PatientResponsibility struct {
	Copayment   ledger.Money
	Coinsurance ledger.Money
	Deductible  ledger.Money
	Total       ledger.Money
}

// PaymentRecord links the claim to its settlement entry.
type PaymentRecord struct {
	TransactionID ledger.TransactionID
	Amount        ledger.Money
	PaidAt        time.Time
}

// Billing is the computed financial block of a claim.
type Billing struct {
	TotalBilled ledger.Money
	Items       []LineItem

	CoveragePercentage int64
	CoveredAmount      ledger.Money
	Patient            PatientResponsibility

	ApprovedAmount ledger.Money
	RejectedAmount ledger.Money

	Notes   []string
	Payment *PaymentRecord
}

// StatusChange is one entry in a claim's append-only history log.
type StatusChange struct {
	From   ClaimStatus
	To     ClaimStatus
	Actor  string
	Reason string
	At     time.Time
}

// Appeal is the single allowed appeal of a rejection or partial approval.
type Appeal struct {
	Reason  string
	FiledBy string
	FiledAt time.Time
}

type Claim struct {
	ID     ClaimID
	Number string

	EnrollmentID EnrollmentID
	PlanID       PlanID
	PatientID    string
	Claimant     Claimant

	Service ServiceInfo
	Billing Billing

	Status  ClaimStatus
	History []StatusChange
	Appeal  *Appeal

	FraudFlags []string

	// Optimistic concurrency token, managed by the store.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// recordTransition appends to the history log and advances the status.
// Callers must have checked CanTransitionTo first.
func (c *Claim) recordTransition(next ClaimStatus, actor, reason string, at time.Time) {
	c.History = append(c.History, StatusChange{
		From: c.Status, To: next, Actor: actor, Reason: reason, At: at,
	})
	c.Status = next
	c.UpdatedAt = at
}

// NewClaimNumber generates a human-quotable claim reference.
func NewClaimNumber() string {
	return "CLM-" + strings.ToUpper(uuid.NewString()[:8])
}
