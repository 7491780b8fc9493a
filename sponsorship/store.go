package sponsorship

import (
	"context"
)

// Store is the persistence extension for sponsorships. Both bundled
// ledger store implementations (memory and sqlite) satisfy it; the
// FundController type-asserts it from the Store handed into WithTx.
type Store interface {
	// CreateSponsorship persists a new sponsorship.
	CreateSponsorship(ctx context.Context, sp *Sponsorship) error

	// GetSponsorship loads by ID. Returns ledger.ErrNotFound if missing.
	GetSponsorship(ctx context.Context, id SponsorshipID) (*Sponsorship, error)

	// UpdateSponsorship persists changes if sp.Version still matches the
	// stored version, then increments it. Returns
	// ledger.ErrConcurrencyConflict on a lost race.
	UpdateSponsorship(ctx context.Context, sp *Sponsorship) error

	// ListSponsorshipsByBeneficiary returns all sponsorships funding a
	// beneficiary, newest first. Read-only; used by dashboards.
	ListSponsorshipsByBeneficiary(ctx context.Context, beneficiaryID string) ([]*Sponsorship, error)
}
