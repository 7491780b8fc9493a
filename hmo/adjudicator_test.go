package hmo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremesh/benefits-engine/hmo"
	"github.com/caremesh/benefits-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func ngn(amount int64) ledger.Money {
	return ledger.NewMoneyFromInt(amount, ledger.NGN)
}

func standardPlan() *hmo.Plan {
	return &hmo.Plan{
		ID:              hmo.NewPlanID(),
		Name:            "Standard Care",
		Tier:            "standard",
		Currency:        ledger.NGN,
		Premium:         ngn(50),
		AnnualMaximum:   ngn(1_000),
		LifetimeMaximum: ngn(5_000),
		Deductible:      ledger.Zero(ledger.NGN),
		MaxOutOfPocket:  ngn(2_000),
		Rules: []hmo.CoverageRule{
			{
				Service:            hmo.ServiceOutpatient,
				Covered:            true,
				CoveragePercentage: 80,
				Copayment:          ngn(20),
			},
			{
				Service: hmo.ServiceDental,
				Covered: false,
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func enrollmentWithAnnualHeadroom(p *hmo.Plan, remaining int64) *hmo.Enrollment {
	e := &hmo.Enrollment{
		ID:     hmo.EnrollmentID("enr-1"),
		PlanID: p.ID,
		Status: hmo.EnrollmentActive,
	}
	hmo.InitializeLimits(e, p)
	e.Limits.RemainingAnnual = ngn(remaining)
	return e
}

func claimFor(service hmo.ServiceType, billed int64) *hmo.Claim {
	now := time.Now().UTC()
	return &hmo.Claim{
		ID:        hmo.ClaimID("clm-1"),
		Status:    hmo.ClaimSubmitted,
		Service:   hmo.ServiceInfo{Type: service, Date: now.Add(-24 * time.Hour)},
		Billing:   hmo.Billing{TotalBilled: ngn(billed)},
		CreatedAt: now,
	}
}

// =============================================================================
// COVERAGE SPLIT TESTS
// =============================================================================

func TestAdjudicate_StandardSplit(t *testing.T) {
	// GIVEN: 200 billed under an 80% rule with a 20 copayment
	// WHEN: The claim is adjudicated
	// THEN: covered 144, coinsurance 36, patient owes 56

	var a hmo.Adjudicator
	plan := standardPlan()
	e := enrollmentWithAnnualHeadroom(plan, 1_000)
	c := claimFor(hmo.ServiceOutpatient, 200)

	require.NoError(t, a.Adjudicate(c, plan, e))

	assert.Equal(t, int64(80), c.Billing.CoveragePercentage)
	assert.True(t, c.Billing.CoveredAmount.Amount.Equal(ngn(144).Amount))
	assert.True(t, c.Billing.Patient.Copayment.Amount.Equal(ngn(20).Amount))
	assert.True(t, c.Billing.Patient.Coinsurance.Amount.Equal(ngn(36).Amount))
	assert.True(t, c.Billing.Patient.Total.Amount.Equal(ngn(56).Amount))

	// covered + patient == billed
	total := c.Billing.CoveredAmount.Add(c.Billing.Patient.Total)
	assert.True(t, total.Amount.Equal(ngn(200).Amount))
	assert.Empty(t, c.Billing.Notes)
}

func TestAdjudicate_NotCovered_PatientPaysAll(t *testing.T) {
	var a hmo.Adjudicator
	plan := standardPlan()
	e := enrollmentWithAnnualHeadroom(plan, 1_000)
	c := claimFor(hmo.ServiceDental, 300)

	require.NoError(t, a.Adjudicate(c, plan, e))

	assert.Equal(t, int64(0), c.Billing.CoveragePercentage)
	assert.True(t, c.Billing.CoveredAmount.IsZero())
	assert.True(t, c.Billing.Patient.Total.Amount.Equal(ngn(300).Amount))
	assert.Contains(t, c.Billing.Notes, "service not covered by plan")
}

func TestAdjudicate_FallsBackToOutpatientRule(t *testing.T) {
	// Surgery has no rule of its own; the generic outpatient rule applies.
	var a hmo.Adjudicator
	plan := standardPlan()
	e := enrollmentWithAnnualHeadroom(plan, 1_000)
	c := claimFor(hmo.ServiceSurgery, 200)

	require.NoError(t, a.Adjudicate(c, plan, e))
	assert.Equal(t, int64(80), c.Billing.CoveragePercentage)
	assert.True(t, c.Billing.CoveredAmount.Amount.Equal(ngn(144).Amount))
}

func TestAdjudicate_AnnualCapClampsToHeadroom(t *testing.T) {
	// GIVEN: Only 100 of annual headroom left but 144 would be covered
	// WHEN: The claim is adjudicated
	// THEN: Covered clamps to 100, the 44 excess lands on the patient

	var a hmo.Adjudicator
	plan := standardPlan()
	e := enrollmentWithAnnualHeadroom(plan, 100)
	c := claimFor(hmo.ServiceOutpatient, 200)

	require.NoError(t, a.Adjudicate(c, plan, e))

	assert.True(t, c.Billing.CoveredAmount.Amount.Equal(ngn(100).Amount))
	assert.True(t, c.Billing.Patient.Total.Amount.Equal(ngn(100).Amount))
	assert.Contains(t, c.Billing.Notes, "limited by annual maximum")

	total := c.Billing.CoveredAmount.Add(c.Billing.Patient.Total)
	assert.True(t, total.Amount.Equal(ngn(200).Amount))
}

func TestAdjudicate_CopaymentCappedAtBilled(t *testing.T) {
	// A 15 visit with a 20 copayment rule charges the patient 15, not 20.
	var a hmo.Adjudicator
	plan := standardPlan()
	e := enrollmentWithAnnualHeadroom(plan, 1_000)
	c := claimFor(hmo.ServiceOutpatient, 15)

	require.NoError(t, a.Adjudicate(c, plan, e))

	assert.True(t, c.Billing.Patient.Copayment.Amount.Equal(ngn(15).Amount))
	assert.True(t, c.Billing.CoveredAmount.IsZero())
	assert.True(t, c.Billing.Patient.Total.Amount.Equal(ngn(15).Amount))
}

func TestAdjudicate_CurrencyMismatch(t *testing.T) {
	var a hmo.Adjudicator
	plan := standardPlan()
	e := enrollmentWithAnnualHeadroom(plan, 1_000)
	c := claimFor(hmo.ServiceOutpatient, 200)
	c.Billing.TotalBilled = ledger.NewMoneyFromInt(200, ledger.USD)

	err := a.Adjudicate(c, plan, e)
	assert.ErrorIs(t, err, ledger.ErrCurrencyMismatch)
}

// =============================================================================
// ANOMALY FLAGGING TESTS
// =============================================================================

func TestAdjudicate_FlagsItemizedMismatch(t *testing.T) {
	var a hmo.Adjudicator
	plan := standardPlan()
	e := enrollmentWithAnnualHeadroom(plan, 1_000)
	c := claimFor(hmo.ServiceOutpatient, 200)
	c.Billing.Items = []hmo.LineItem{
		{Description: "consultation", Amount: ngn(120)},
		{Description: "bloodwork", Amount: ngn(50)},
	}

	require.NoError(t, a.Adjudicate(c, plan, e))
	require.Len(t, c.FraudFlags, 1)
	assert.Contains(t, c.FraudFlags[0], "does not match billed")
}

func TestAdjudicate_FlagsFutureServiceDate(t *testing.T) {
	// Flags inform the reviewer; the split is still computed.
	var a hmo.Adjudicator
	plan := standardPlan()
	e := enrollmentWithAnnualHeadroom(plan, 1_000)
	c := claimFor(hmo.ServiceOutpatient, 200)
	c.Service.Date = c.CreatedAt.Add(48 * time.Hour)

	require.NoError(t, a.Adjudicate(c, plan, e))
	require.Len(t, c.FraudFlags, 1)
	assert.Contains(t, c.FraudFlags[0], "service date")
	assert.True(t, c.Billing.CoveredAmount.Amount.Equal(ngn(144).Amount))
}

func TestPlan_Validate_RejectsOutOfRangePercentage(t *testing.T) {
	// A rule paying out more than 100% would break the billed-amount
	// split, so such plans never enter the catalog.
	for _, pct := range []int64{-1, 101, 150} {
		plan := standardPlan()
		plan.Rules[0].CoveragePercentage = pct
		err := plan.Validate()
		require.Error(t, err, "percentage %d", pct)
		assert.ErrorIs(t, err, ledger.ErrInvalidState)
	}

	for _, pct := range []int64{0, 80, 100} {
		plan := standardPlan()
		plan.Rules[0].CoveragePercentage = pct
		assert.NoError(t, plan.Validate(), "percentage %d", pct)
	}
}
