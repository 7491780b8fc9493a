package hmo

import (
	"context"
)

// Store is the persistence extension for plans, enrollments and claims.
// Both bundled ledger store implementations satisfy it; the Tracker and
// ClaimService type-assert it from the Store handed into WithTx.
type Store interface {
	CreatePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, id PlanID) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)

	CreateEnrollment(ctx context.Context, e *Enrollment) error
	GetEnrollment(ctx context.Context, id EnrollmentID) (*Enrollment, error)
	// UpdateEnrollment is a CAS on Version; lost races return
	// ledger.ErrConcurrencyConflict.
	UpdateEnrollment(ctx context.Context, e *Enrollment) error

	CreateClaim(ctx context.Context, c *Claim) error
	GetClaim(ctx context.Context, id ClaimID) (*Claim, error)
	GetClaimByNumber(ctx context.Context, number string) (*Claim, error)
	// UpdateClaim is a CAS on Version.
	UpdateClaim(ctx context.Context, c *Claim) error
	// ListClaimsByEnrollment returns an enrollment's claims, newest first.
	ListClaimsByEnrollment(ctx context.Context, id EnrollmentID) ([]*Claim, error)
}
