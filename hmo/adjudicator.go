/*
adjudicator.go - Deterministic claim coverage computation

PURPOSE:
  Splits a claim's billed amount into the insurer-covered portion and the
  patient's responsibility, against the plan's coverage rule and the
  enrollment's remaining limits. Pure computation: no randomness, no
  store access, no status change. Approval and rejection are separate
  reviewer-driven transitions (see claims.go).

ALGORITHM:
  1. Resolve the rule for the claim's service category; no exact match
     falls back to the generic outpatient rule
  2. Not covered -> coveredAmount 0, patient owes the full bill
  3. covered    = max(0, (billed − copayment) × percentage / 100)
     coinsurance = billed − copayment − covered
     patient     = {copayment, coinsurance, total: copayment + coinsurance}
  4. Cap against RemainingAnnual: clamp covered to the headroom, move the
     shortfall into patient responsibility, and note the cap on the claim

  The pre-cap identity always holds:
     covered + patient.Total == totalBilled

SEE ALSO:
  - enrollment.go: CheckRemaining (the advisory headroom read)
  - claims.go: Submission pipeline that persists the computed block
*/
package hmo

import (
	"fmt"

	"github.com/caremesh/benefits-engine/ledger"
	"github.com/shopspring/decimal"
)

const (
	noteNotCovered    = "service not covered by plan"
	noteAnnualMaximum = "limited by annual maximum"
)

var hundred = decimal.NewFromInt(100)

// Adjudicator computes claim coverage splits.
type Adjudicator struct{}

// Adjudicate fills in the claim's billing block. The claim keeps its
// submitted status: adjudication computes the split, it does not approve.
func (a Adjudicator) Adjudicate(claim *Claim, plan *Plan, enrollment *Enrollment) error {
	billed := claim.Billing.TotalBilled
	if billed.IsNegative() {
		return &ledger.InvalidStateError{Entity: "claim", ID: string(claim.ID),
			Status: string(claim.Status), Operation: "adjudicate negative billed amount"}
	}
	if billed.Currency != plan.Currency {
		return &ledger.CurrencyMismatchError{WalletCurrency: plan.Currency, AmountCurrency: billed.Currency}
	}

	a.flagAnomalies(claim)

	rule, ok := plan.RuleFor(claim.Service.Type)
	if !ok || !rule.Covered {
		claim.Billing.CoveragePercentage = 0
		claim.Billing.CoveredAmount = ledger.Zero(billed.Currency)
		claim.Billing.Patient = PatientResponsibility{
			Copayment:   ledger.Zero(billed.Currency),
			Coinsurance: ledger.Zero(billed.Currency),
			Deductible:  ledger.Zero(billed.Currency),
			Total:       billed,
		}
		claim.Billing.Notes = append(claim.Billing.Notes, noteNotCovered)
		return nil
	}

	// Copayment is charged at most the billed amount.
	copay := rule.Copayment.Min(billed)
	pct := decimal.NewFromInt(rule.CoveragePercentage)

	covered := billed.Sub(copay).Mul(pct).Div(hundred)
	covered = covered.Max(ledger.Zero(billed.Currency))

	coinsurance := billed.Sub(copay).Sub(covered)
	coinsurance = coinsurance.Max(ledger.Zero(billed.Currency))

	patient := PatientResponsibility{
		Copayment:   copay,
		Coinsurance: coinsurance,
		Deductible:  ledger.Zero(billed.Currency),
		Total:       copay.Add(coinsurance),
	}

	// Annual cap: clamp covered to the enrollment's remaining headroom and
	// shift the excess onto the patient.
	headroom := enrollment.Limits.RemainingAnnual
	if covered.GreaterThan(headroom) {
		excess := covered.Sub(headroom)
		covered = headroom
		patient.Total = patient.Total.Add(excess)
		claim.Billing.Notes = append(claim.Billing.Notes, noteAnnualMaximum)
	}

	claim.Billing.CoveragePercentage = rule.CoveragePercentage
	claim.Billing.CoveredAmount = covered
	claim.Billing.Patient = patient
	return nil
}

// flagAnomalies appends fraud flags for inconsistencies a reviewer should
// see. Flags never block adjudication.
func (a Adjudicator) flagAnomalies(claim *Claim) {
	if len(claim.Billing.Items) > 0 {
		sum := ledger.Zero(claim.Billing.TotalBilled.Currency)
		for _, item := range claim.Billing.Items {
			sum = sum.Add(item.Amount)
		}
		if !sum.Equal(claim.Billing.TotalBilled) {
			claim.FraudFlags = append(claim.FraudFlags,
				fmt.Sprintf("itemized total %s does not match billed %s", sum, claim.Billing.TotalBilled))
		}
	}
	if claim.Service.Date.After(claim.CreatedAt) {
		claim.FraudFlags = append(claim.FraudFlags, "service date is after claim submission")
	}
}
