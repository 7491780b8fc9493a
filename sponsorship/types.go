/*
Package sponsorship implements sponsor-funded care allocations.

PURPOSE:
  A Sponsorship is a capped fund a sponsor allocates to a beneficiary,
  drawn down by utilization events. This package owns the allocation
  arithmetic, the coverage rules, and the sponsorship state machine; the
  actual money movement goes through the ledger engine.

KEY INVARIANTS:
  1. Used never exceeds Allocated
  2. Remaining is always derived (Allocated − Used), never stored
  3. Every utilization references the ledger entry it produced
  4. Sponsorships are archived on termination/expiry, never deleted

STATE MACHINE:
  pending ──▶ active ⇄ paused ──▶ {expired | terminated}
                 │
                 └──▶ {expired | terminated | completed}

  Expiry is lazy: the window end is checked during any read or
  utilization attempt, not by a background sweep.

SEE ALSO:
  - fund.go: FundController (utilize, pause/resume/terminate/renew)
  - store.go: Persistence extension interface
*/
package sponsorship

import (
	"time"

	"github.com/caremesh/benefits-engine/ledger"
	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS AND CLOSED ENUMS
// =============================================================================

type SponsorshipID string

// ServiceType is the closed set of service categories a sponsorship can
// cover. Coverage rules and impact counters are keyed by it.
type ServiceType string

const (
	ServiceConsultation ServiceType = "consultation"
	ServiceMedication   ServiceType = "medication"
	ServiceLaboratory   ServiceType = "laboratory"
	ServiceSurgery      ServiceType = "surgery"
	ServiceEmergency    ServiceType = "emergency"
	ServicePreventive   ServiceType = "preventive"
	ServiceDental       ServiceType = "dental"
	ServiceOptical      ServiceType = "optical"
)

type Type string

const (
	TypeFull        Type = "full"
	TypePartial     Type = "partial"
	TypeEmergency   Type = "emergency"
	TypeChronicCare Type = "chronic_care"
	TypePreventive  Type = "preventive"
	TypeMedication  Type = "medication"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusPaused     Status = "paused"
	StatusExpired    Status = "expired"
	StatusTerminated Status = "terminated"
	StatusCompleted  Status = "completed"
)

// CanTransitionTo reports whether the status advance is legal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusActive || next == StatusTerminated
	case StatusActive:
		return next == StatusPaused || next == StatusExpired ||
			next == StatusTerminated || next == StatusCompleted
	case StatusPaused:
		return next == StatusActive || next == StatusExpired || next == StatusTerminated
	default:
		// expired, terminated and completed are terminal (except renewal,
		// which reopens an expired sponsorship through the controller)
		return false
	}
}

// =============================================================================
// WINDOW - Validity period
// =============================================================================

type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(at time.Time) bool {
	return !at.Before(w.Start) && !at.After(w.End)
}

func (w Window) ExpiredAt(at time.Time) bool { return at.After(w.End) }

// =============================================================================
// COVERAGE RULES
// =============================================================================

// CoverageRules restrict what a sponsorship pays for. Empty eligibility
// lists mean "everything"; exclusions always win.
type CoverageRules struct {
	EligibleServices  []ServiceType
	EligibleProviders []string
	ExcludedServices  []ServiceType

	RequiresPreApproval bool
	ApprovalThreshold   ledger.Money
}

// CoversService reports whether the service category is payable.
func (c CoverageRules) CoversService(service ServiceType) bool {
	for _, ex := range c.ExcludedServices {
		if ex == service {
			return false
		}
	}
	if len(c.EligibleServices) == 0 {
		return true
	}
	for _, el := range c.EligibleServices {
		if el == service {
			return true
		}
	}
	return false
}

// CoversProvider reports whether the rendering provider is eligible.
func (c CoverageRules) CoversProvider(providerID string) bool {
	if len(c.EligibleProviders) == 0 {
		return true
	}
	for _, el := range c.EligibleProviders {
		if el == providerID {
			return true
		}
	}
	return false
}

// NeedsPreApproval reports whether the amount requires prior approval.
func (c CoverageRules) NeedsPreApproval(amount ledger.Money) bool {
	return c.RequiresPreApproval && amount.GreaterThan(c.ApprovalThreshold)
}

// =============================================================================
// UTILIZATION - One draw-down event
// =============================================================================

type Utilization struct {
	ID            string
	Service       ServiceType
	ProviderID    string
	Amount        ledger.Money
	TransactionID ledger.TransactionID
	PreApproved   bool
	Note          string
	At            time.Time
	Reversed      bool
}

// =============================================================================
// SPONSORSHIP
// =============================================================================

type Sponsorship struct {
	ID            SponsorshipID
	SponsorID     string
	BeneficiaryID string

	// Wallets the controller moves funds between.
	SponsorWalletID     ledger.WalletID
	BeneficiaryWalletID ledger.WalletID

	Type      Type
	Allocated ledger.Money
	Used      ledger.Money

	Window   Window
	Coverage CoverageRules

	Utilizations    []Utilization
	ImpactByService map[ServiceType]int64

	Status Status

	// Optimistic concurrency token, managed by the store.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining is always recomputed from Allocated − Used, never stored.
func (s *Sponsorship) Remaining() ledger.Money {
	return s.Allocated.Sub(s.Used)
}

func (s *Sponsorship) IsActive() bool { return s.Status == StatusActive }

func NewUtilizationID() string { return uuid.NewString() }
