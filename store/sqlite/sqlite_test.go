package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremesh/benefits-engine/hmo"
	"github.com/caremesh/benefits-engine/ledger"
	"github.com/caremesh/benefits-engine/sponsorship"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ngn(amount int64) ledger.Money {
	return ledger.NewMoneyFromInt(amount, ledger.NGN)
}

func storedWallet(t *testing.T, s *Store) *ledger.Wallet {
	t.Helper()
	w := ledger.NewWallet("owner-1", ledger.WalletPersonal, ledger.NGN)
	require.NoError(t, s.CreateWallet(context.Background(), w))
	return w
}

// =============================================================================
// WALLET TESTS
// =============================================================================

func TestSQLite_Wallet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := storedWallet(t, s)
	w.Available = decimal.NewFromInt(250)
	w.Stats.TotalReceived = decimal.NewFromInt(250)
	require.NoError(t, s.UpdateWallet(ctx, w))

	got, err := s.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, ledger.WalletPersonal, got.Kind)
	assert.Equal(t, ledger.NGN, got.Currency)
	assert.True(t, got.Available.Equal(decimal.NewFromInt(250)))
	assert.True(t, got.Stats.TotalReceived.Equal(decimal.NewFromInt(250)))
}

func TestSQLite_Wallet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetWallet(context.Background(), ledger.WalletID("nope"))
	assert.True(t, ledger.IsNotFound(err))
}

func TestSQLite_Wallet_CASConflict(t *testing.T) {
	// GIVEN: Two readers holding the same wallet version
	// WHEN: Both write
	// THEN: The second write loses with a concurrency conflict

	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)

	stale, err := s.GetWallet(ctx, w.ID)
	require.NoError(t, err)

	w.Available = decimal.NewFromInt(10)
	require.NoError(t, s.UpdateWallet(ctx, w))

	stale.Available = decimal.NewFromInt(99)
	err = s.UpdateWallet(ctx, stale)
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)

	got, err := s.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Available.Equal(decimal.NewFromInt(10)))
}

func TestSQLite_Wallet_SequentialUpdatesSameStruct(t *testing.T) {
	// The CAS bumps the caller's version in place, so updating the same
	// struct twice in a row must succeed.
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)

	w.Available = decimal.NewFromInt(1)
	require.NoError(t, s.UpdateWallet(ctx, w))
	w.Available = decimal.NewFromInt(2)
	require.NoError(t, s.UpdateWallet(ctx, w))
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func seedTransaction(w *ledger.Wallet, reference string) *ledger.Transaction {
	return &ledger.Transaction{
		ID:          ledger.NewTransactionID(),
		Reference:   reference,
		Kind:        ledger.KindDeposit,
		Status:      ledger.StatusPending,
		To:          ledger.WalletParty(w.ID),
		Amount:      ngn(300),
		Fee:         ledger.NoFee(),
		Description: "card deposit",
		Metadata:    map[string]string{"channel": "card"},
		CreatedAt:   time.Now().UTC(),
	}
}

func TestSQLite_Transaction_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)

	tx := seedTransaction(w, "dep-1")
	require.NoError(t, s.AppendTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, ledger.KindDeposit, got.Kind)
	assert.Nil(t, got.From)
	require.NotNil(t, got.To)
	assert.Equal(t, w.ID, *got.To.WalletID)
	assert.True(t, got.Amount.Equal(ngn(300)))
	assert.Equal(t, "card", got.Metadata["channel"])

	byRef, err := s.GetTransactionByReference(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, byRef.ID)
}

func TestSQLite_Transaction_DuplicateReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)

	require.NoError(t, s.AppendTransaction(ctx, seedTransaction(w, "dup-1")))
	err := s.AppendTransaction(ctx, seedTransaction(w, "dup-1"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateReference)
}

func TestSQLite_Transaction_EmptyReferencesDoNotCollide(t *testing.T) {
	// The unique index is partial: only non-empty references dedup.
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)

	require.NoError(t, s.AppendTransaction(ctx, seedTransaction(w, "")))
	assert.NoError(t, s.AppendTransaction(ctx, seedTransaction(w, "")))
}

func TestSQLite_Transaction_UpdateTouchesOnlyStatusBlock(t *testing.T) {
	// Amounts and parties are append-only; an update persists only the
	// status, failure reason, metadata, reversal links and settlement time.
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)

	tx := seedTransaction(w, "dep-2")
	require.NoError(t, s.AppendTransaction(ctx, tx))

	now := time.Now().UTC()
	tx.Status = ledger.StatusCompleted
	tx.SettledAt = &now
	tx.Amount = ngn(999_999) // must not stick
	require.NoError(t, s.UpdateTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)
	require.NotNil(t, got.SettledAt)
	assert.True(t, got.Amount.Equal(ngn(300)), "amount is immutable after insert")
}

func TestSQLite_Transaction_ListByWallet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)
	other := ledger.NewWallet("owner-2", ledger.WalletPersonal, ledger.NGN)
	require.NoError(t, s.CreateWallet(ctx, other))

	base := time.Now().UTC()
	for i, ref := range []string{"a", "b", "c"} {
		tx := seedTransaction(w, ref)
		tx.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.AppendTransaction(ctx, tx))
	}
	foreign := seedTransaction(other, "d")
	require.NoError(t, s.AppendTransaction(ctx, foreign))

	list, err := s.ListTransactionsByWallet(ctx, w.ID, base.Add(-time.Minute), base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Reference, "oldest first")
	assert.Equal(t, "c", list[2].Reference)

	// Window excludes the first entry
	list, err = s.ListTransactionsByWallet(ctx, w.ID, base.Add(500*time.Millisecond), base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// =============================================================================
// SPONSORSHIP TESTS
// =============================================================================

func TestSQLite_Sponsorship_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sponsorWallet := storedWallet(t, s)
	beneficiaryWallet := ledger.NewWallet("patient-1", ledger.WalletPersonal, ledger.NGN)
	require.NoError(t, s.CreateWallet(ctx, beneficiaryWallet))

	now := time.Now().UTC()
	sp := &sponsorship.Sponsorship{
		ID:                  sponsorship.SponsorshipID("sp-1"),
		SponsorID:           "ngo-1",
		BeneficiaryID:       "patient-1",
		SponsorWalletID:     sponsorWallet.ID,
		BeneficiaryWalletID: beneficiaryWallet.ID,
		Type:                sponsorship.TypeChronicCare,
		Allocated:           ngn(1_000),
		Used:                ngn(150),
		Window:              sponsorship.Window{Start: now, End: now.Add(30 * 24 * time.Hour)},
		Coverage: sponsorship.CoverageRules{
			EligibleServices:    []sponsorship.ServiceType{sponsorship.ServiceMedication},
			RequiresPreApproval: true,
			ApprovalThreshold:   ngn(200),
		},
		Utilizations: []sponsorship.Utilization{{
			ID:            sponsorship.NewUtilizationID(),
			Service:       sponsorship.ServiceMedication,
			Amount:        ngn(150),
			TransactionID: ledger.NewTransactionID(),
			At:            now,
		}},
		ImpactByService: map[sponsorship.ServiceType]int64{sponsorship.ServiceMedication: 1},
		Status:          sponsorship.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, s.CreateSponsorship(ctx, sp))

	got, err := s.GetSponsorship(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, sp.ID, got.ID)
	assert.True(t, got.Allocated.Equal(ngn(1_000)))
	assert.True(t, got.Used.Equal(ngn(150)))
	assert.True(t, got.Coverage.RequiresPreApproval)
	require.Len(t, got.Utilizations, 1)
	assert.Equal(t, sp.Utilizations[0].ID, got.Utilizations[0].ID)
	assert.Equal(t, int64(1), got.ImpactByService[sponsorship.ServiceMedication])

	list, err := s.ListSponsorshipsByBeneficiary(ctx, "patient-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLite_Sponsorship_CASConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)

	now := time.Now().UTC()
	sp := &sponsorship.Sponsorship{
		ID:                  sponsorship.SponsorshipID("sp-2"),
		SponsorID:           "ngo-1",
		BeneficiaryID:       "patient-1",
		SponsorWalletID:     w.ID,
		BeneficiaryWalletID: w.ID,
		Type:                sponsorship.TypeFull,
		Allocated:           ngn(500),
		Used:                ledger.Zero(ledger.NGN),
		Window:              sponsorship.Window{Start: now, End: now.Add(time.Hour)},
		Status:              sponsorship.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, s.CreateSponsorship(ctx, sp))

	stale, err := s.GetSponsorship(ctx, sp.ID)
	require.NoError(t, err)

	sp.Status = sponsorship.StatusActive
	require.NoError(t, s.UpdateSponsorship(ctx, sp))

	stale.Status = sponsorship.StatusTerminated
	assert.ErrorIs(t, s.UpdateSponsorship(ctx, stale), ledger.ErrConcurrencyConflict)
}

// =============================================================================
// PLAN, ENROLLMENT AND CLAIM TESTS
// =============================================================================

func seedPlan(t *testing.T, s *Store, insurer ledger.WalletID) *hmo.Plan {
	t.Helper()
	p := &hmo.Plan{
		ID:              hmo.NewPlanID(),
		Name:            "Gold",
		Tier:            "gold",
		Currency:        ledger.NGN,
		Premium:         ngn(100),
		AnnualMaximum:   ngn(2_000),
		LifetimeMaximum: ngn(10_000),
		Deductible:      ledger.Zero(ledger.NGN),
		MaxOutOfPocket:  ngn(3_000),
		Rules: []hmo.CoverageRule{{
			Service:            hmo.ServiceOutpatient,
			Covered:            true,
			CoveragePercentage: 90,
			Copayment:          ngn(10),
		}},
		InsurerWalletID: insurer,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.CreatePlan(context.Background(), p))
	return p
}

func TestSQLite_Plan_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)
	p := seedPlan(t, s, w.ID)

	got, err := s.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gold", got.Name)
	assert.True(t, got.AnnualMaximum.Equal(ngn(2_000)))
	require.Len(t, got.Rules, 1)
	assert.Equal(t, int64(90), got.Rules[0].CoveragePercentage)
	assert.Equal(t, w.ID, got.InsurerWalletID)

	plans, err := s.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func seedEnrollment(t *testing.T, s *Store, p *hmo.Plan) *hmo.Enrollment {
	t.Helper()
	now := time.Now().UTC()
	e := &hmo.Enrollment{
		ID:           hmo.EnrollmentID("enr-1"),
		SubscriberID: "subscriber-1",
		PlanID:       p.ID,
		Kind:         hmo.EnrollIndividual,
		Window:       hmo.Window{Start: now, End: now.Add(365 * 24 * time.Hour)},
		Cadence:      hmo.CadenceMonthly,
		Status:       hmo.EnrollmentActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	hmo.InitializeLimits(e, p)
	require.NoError(t, s.CreateEnrollment(context.Background(), e))
	return e
}

func TestSQLite_Enrollment_RoundTripAndCAS(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)
	p := seedPlan(t, s, w.ID)
	e := seedEnrollment(t, s, p)

	got, err := s.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Limits.RemainingAnnual.Equal(ngn(2_000)))
	assert.Equal(t, hmo.CadenceMonthly, got.Cadence)

	stale, err := s.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)

	e.Usage.ClaimsSubmitted = 1
	require.NoError(t, s.UpdateEnrollment(ctx, e))

	stale.Usage.ClaimsSubmitted = 7
	assert.ErrorIs(t, s.UpdateEnrollment(ctx, stale), ledger.ErrConcurrencyConflict)
}

func TestSQLite_Claim_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := storedWallet(t, s)
	p := seedPlan(t, s, w.ID)
	e := seedEnrollment(t, s, p)

	now := time.Now().UTC()
	c := &hmo.Claim{
		ID:           hmo.ClaimID("clm-1"),
		Number:       "CLM-TEST0001",
		EnrollmentID: e.ID,
		PlanID:       p.ID,
		PatientID:    "patient-1",
		Claimant: hmo.Claimant{
			Kind: hmo.ClaimantProvider, ID: "clinic-1", BillingWalletID: w.ID,
		},
		Service: hmo.ServiceInfo{
			Type:           hmo.ServiceOutpatient,
			Date:           now.Add(-24 * time.Hour),
			DiagnosisCodes: []string{"J06.9"},
		},
		Billing: hmo.Billing{
			TotalBilled:        ngn(200),
			Items:              []hmo.LineItem{{Description: "consultation", Amount: ngn(200)}},
			CoveragePercentage: 90,
			CoveredAmount:      ngn(171),
			Patient: hmo.PatientResponsibility{
				Copayment: ngn(10), Coinsurance: ngn(19),
				Deductible: ledger.Zero(ledger.NGN), Total: ngn(29),
			},
			ApprovedAmount: ledger.Zero(ledger.NGN),
			RejectedAmount: ledger.Zero(ledger.NGN),
		},
		Status: hmo.ClaimSubmitted,
		History: []hmo.StatusChange{{
			From: hmo.ClaimSubmitted, To: hmo.ClaimSubmitted,
			Actor: "clinic-1", Reason: "claim submitted", At: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateClaim(ctx, c))

	got, err := s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "CLM-TEST0001", got.Number)
	assert.True(t, got.Billing.CoveredAmount.Equal(ngn(171)))
	assert.Equal(t, []string{"J06.9"}, got.Service.DiagnosisCodes)
	require.Len(t, got.History, 1)
	assert.Nil(t, got.Appeal)

	byNumber, err := s.GetClaimByNumber(ctx, "CLM-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byNumber.ID)

	// Duplicate claim number is refused
	dup := *c
	dup.ID = hmo.ClaimID("clm-2")
	assert.ErrorIs(t, s.CreateClaim(ctx, &dup), ledger.ErrDuplicateReference)

	// Appeal pointer survives a round trip
	got.Appeal = &hmo.Appeal{Reason: "see documents", FiledBy: "clinic-1", FiledAt: now}
	require.NoError(t, s.UpdateClaim(ctx, got))
	got, err = s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Appeal)
	assert.Equal(t, "clinic-1", got.Appeal.FiledBy)

	list, err := s.ListClaimsByEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// ATOMIC UNIT TESTS
// =============================================================================

func TestSQLite_WithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A unit that writes a wallet and then fails
	// WHEN: WithTx returns the error
	// THEN: Nothing from the unit is visible

	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	w := ledger.NewWallet("owner-1", ledger.WalletPersonal, ledger.NGN)
	err := s.WithTx(ctx, func(st ledger.Store) error {
		if err := st.CreateWallet(ctx, w); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetWallet(ctx, w.ID)
	assert.True(t, ledger.IsNotFound(err))
}

func TestSQLite_WithTx_CommitVisible(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := ledger.NewWallet("owner-1", ledger.WalletPersonal, ledger.NGN)
	err := s.WithTx(ctx, func(st ledger.Store) error {
		return st.CreateWallet(ctx, w)
	})
	require.NoError(t, err)

	got, err := s.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
}

func TestSQLite_WithTx_StoreViewSatisfiesExtensions(t *testing.T) {
	// Domain controllers type-assert the extension interfaces from the
	// store view handed into WithTx. Both must hold for the tx view.
	s := newTestStore(t)
	err := s.WithTx(context.Background(), func(st ledger.Store) error {
		if _, ok := st.(sponsorship.Store); !ok {
			return errors.New("tx view does not satisfy sponsorship.Store")
		}
		if _, ok := st.(hmo.Store); !ok {
			return errors.New("tx view does not satisfy hmo.Store")
		}
		return nil
	})
	assert.NoError(t, err)
}
