/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ENCODING:
  Monetary amounts cross the wire as decimal strings plus a currency code
  ({"amount": "150.00", "currency": "NGN"}). Floats never touch money.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Route definitions
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/caremesh/benefits-engine/hmo"
	"github.com/caremesh/benefits-engine/ledger"
	"github.com/caremesh/benefits-engine/sponsorship"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyDTO is the wire form of a monetary amount.
type MoneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyDTO(m ledger.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount.String(), Currency: string(m.Currency)}
}

func parseMoney(d MoneyDTO) (ledger.Money, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return ledger.Money{}, fmt.Errorf("invalid amount %q: %w", d.Amount, err)
	}
	if d.Currency == "" {
		return ledger.Money{}, fmt.Errorf("currency is required")
	}
	return ledger.NewMoney(amount, ledger.Currency(d.Currency)), nil
}

// =============================================================================
// WALLETS
// =============================================================================

type CreateWalletRequest struct {
	OwnerID  string `json:"owner_id"`
	Kind     string `json:"kind"`
	Currency string `json:"currency"`
}

type WalletDTO struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`
	Kind      string   `json:"kind"`
	Currency  string   `json:"currency"`
	Status    string   `json:"status"`
	Available string   `json:"available"`
	Pending   string   `json:"pending"`
	Reserved  string   `json:"reserved"`
	CreatedAt string   `json:"created_at"`
}

type BalanceDTO struct {
	WalletID  string `json:"wallet_id"`
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Pending   string `json:"pending"`
	Reserved  string `json:"reserved"`
	Status    string `json:"status"`
	AsOf      string `json:"as_of"`

	TotalReceived    string `json:"total_received"`
	TotalSpent       string `json:"total_spent"`
	TotalWithdrawn   string `json:"total_withdrawn"`
	TransactionCount int64  `json:"transaction_count"`
}

func toWalletDTO(w *ledger.Wallet) WalletDTO {
	return WalletDTO{
		ID:        string(w.ID),
		OwnerID:   w.OwnerID,
		Kind:      string(w.Kind),
		Currency:  string(w.Currency),
		Status:    string(w.Status),
		Available: w.Available.String(),
		Pending:   w.Pending.String(),
		Reserved:  w.Reserved.String(),
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
	}
}

func toBalanceDTO(b ledger.Balance) BalanceDTO {
	return BalanceDTO{
		WalletID:         string(b.WalletID),
		Currency:         string(b.Currency),
		Available:        b.Available.String(),
		Pending:          b.Pending.String(),
		Reserved:         b.Reserved.String(),
		Status:           string(b.Status),
		AsOf:             b.AsOf.Format(time.RFC3339),
		TotalReceived:    b.Stats.TotalReceived.String(),
		TotalSpent:       b.Stats.TotalSpent.String(),
		TotalWithdrawn:   b.Stats.TotalWithdrawn.String(),
		TransactionCount: b.Stats.TransactionCount,
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// InitiateTransactionRequest creates a pending ledger entry. FromWalletID
// or ToWalletID may be empty for movements against an external rail.
type InitiateTransactionRequest struct {
	Kind         string            `json:"kind"`
	FromWalletID string            `json:"from_wallet_id,omitempty"`
	FromUserID   string            `json:"from_user_id,omitempty"`
	ToWalletID   string            `json:"to_wallet_id,omitempty"`
	ToUserID     string            `json:"to_user_id,omitempty"`
	Amount       MoneyDTO          `json:"amount"`
	FeeAmount    string            `json:"fee_amount,omitempty"`
	FeeWalletID  string            `json:"fee_wallet_id,omitempty"`
	Reference    string            `json:"reference,omitempty"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ReasonRequest carries the free-text reason for fail/cancel/reverse.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

type TransactionDTO struct {
	ID            string            `json:"id"`
	Reference     string            `json:"reference,omitempty"`
	Kind          string            `json:"kind"`
	Status        string            `json:"status"`
	FromWalletID  string            `json:"from_wallet_id,omitempty"`
	ToWalletID    string            `json:"to_wallet_id,omitempty"`
	Amount        MoneyDTO          `json:"amount"`
	FeeAmount     string            `json:"fee_amount,omitempty"`
	Description   string            `json:"description,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ReversalOf    string            `json:"reversal_of,omitempty"`
	ReversedBy    string            `json:"reversed_by,omitempty"`
	CreatedAt     string            `json:"created_at"`
	SettledAt     string            `json:"settled_at,omitempty"`
}

func toTransactionDTO(t *ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:            string(t.ID),
		Reference:     t.Reference,
		Kind:          string(t.Kind),
		Status:        string(t.Status),
		Amount:        toMoneyDTO(t.Amount),
		Description:   t.Description,
		FailureReason: t.FailureReason,
		Metadata:      t.Metadata,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
	if !t.Fee.IsZero() {
		dto.FeeAmount = t.Fee.Amount.String()
	}
	if id := t.DebitsWallet(); id != nil {
		dto.FromWalletID = string(*id)
	}
	if id := t.CreditsWallet(); id != nil {
		dto.ToWalletID = string(*id)
	}
	if t.ReversalOf != nil {
		dto.ReversalOf = string(*t.ReversalOf)
	}
	if t.ReversedBy != nil {
		dto.ReversedBy = string(*t.ReversedBy)
	}
	if t.SettledAt != nil {
		dto.SettledAt = t.SettledAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTOs(txs []*ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	return dtos
}

// =============================================================================
// SPONSORSHIPS
// =============================================================================

type CoverageRulesDTO struct {
	EligibleServices    []string `json:"eligible_services,omitempty"`
	EligibleProviders   []string `json:"eligible_providers,omitempty"`
	ExcludedServices    []string `json:"excluded_services,omitempty"`
	RequiresPreApproval bool     `json:"requires_pre_approval,omitempty"`
	ApprovalThreshold   MoneyDTO `json:"approval_threshold,omitempty"`
}

type CreateSponsorshipRequest struct {
	SponsorID           string           `json:"sponsor_id"`
	BeneficiaryID       string           `json:"beneficiary_id"`
	SponsorWalletID     string           `json:"sponsor_wallet_id"`
	BeneficiaryWalletID string           `json:"beneficiary_wallet_id"`
	Type                string           `json:"type"`
	Allocated           MoneyDTO         `json:"allocated"`
	StartDate           string           `json:"start_date"`
	EndDate             string           `json:"end_date"`
	Coverage            CoverageRulesDTO `json:"coverage"`
}

type UtilizeRequest struct {
	Amount      MoneyDTO `json:"amount"`
	Service     string   `json:"service"`
	ProviderID  string   `json:"provider_id"`
	PreApproved bool     `json:"pre_approved,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	Note        string   `json:"note,omitempty"`
}

type RenewSponsorshipRequest struct {
	EndDate string   `json:"end_date"`
	TopUp   MoneyDTO `json:"top_up"`
}

type UtilizationDTO struct {
	ID            string `json:"id"`
	Service       string `json:"service"`
	ProviderID    string `json:"provider_id"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transaction_id"`
	PreApproved   bool   `json:"pre_approved,omitempty"`
	Note          string `json:"note,omitempty"`
	At            string `json:"at"`
	Reversed      bool   `json:"reversed,omitempty"`
}

type SponsorshipDTO struct {
	ID                  string           `json:"id"`
	SponsorID           string           `json:"sponsor_id"`
	BeneficiaryID       string           `json:"beneficiary_id"`
	Type                string           `json:"type"`
	Status              string           `json:"status"`
	Allocated           MoneyDTO         `json:"allocated"`
	Used                MoneyDTO         `json:"used"`
	Remaining           MoneyDTO         `json:"remaining"`
	StartDate           string           `json:"start_date"`
	EndDate             string           `json:"end_date"`
	Utilizations        []UtilizationDTO `json:"utilizations,omitempty"`
	ImpactByService     map[string]int64 `json:"impact_by_service,omitempty"`
	CreatedAt           string           `json:"created_at"`
}

func toSponsorshipDTO(sp *sponsorship.Sponsorship) SponsorshipDTO {
	dto := SponsorshipDTO{
		ID:            string(sp.ID),
		SponsorID:     sp.SponsorID,
		BeneficiaryID: sp.BeneficiaryID,
		Type:          string(sp.Type),
		Status:        string(sp.Status),
		Allocated:     toMoneyDTO(sp.Allocated),
		Used:          toMoneyDTO(sp.Used),
		Remaining:     toMoneyDTO(sp.Remaining()),
		StartDate:     sp.Window.Start.Format(time.RFC3339),
		EndDate:       sp.Window.End.Format(time.RFC3339),
		CreatedAt:     sp.CreatedAt.Format(time.RFC3339),
	}
	for _, u := range sp.Utilizations {
		dto.Utilizations = append(dto.Utilizations, UtilizationDTO{
			ID:            u.ID,
			Service:       string(u.Service),
			ProviderID:    u.ProviderID,
			Amount:        u.Amount.Amount.String(),
			TransactionID: string(u.TransactionID),
			PreApproved:   u.PreApproved,
			Note:          u.Note,
			At:            u.At.Format(time.RFC3339),
			Reversed:      u.Reversed,
		})
	}
	if len(sp.ImpactByService) > 0 {
		dto.ImpactByService = make(map[string]int64, len(sp.ImpactByService))
		for svc, n := range sp.ImpactByService {
			dto.ImpactByService[string(svc)] = n
		}
	}
	return dto
}

func toSponsorshipDTOs(sps []*sponsorship.Sponsorship) []SponsorshipDTO {
	dtos := make([]SponsorshipDTO, len(sps))
	for i, sp := range sps {
		dtos[i] = toSponsorshipDTO(sp)
	}
	return dtos
}

func parseCoverageRules(d CoverageRulesDTO) (sponsorship.CoverageRules, error) {
	rules := sponsorship.CoverageRules{
		RequiresPreApproval: d.RequiresPreApproval,
	}
	for _, s := range d.EligibleServices {
		rules.EligibleServices = append(rules.EligibleServices, sponsorship.ServiceType(s))
	}
	rules.EligibleProviders = append(rules.EligibleProviders, d.EligibleProviders...)
	for _, s := range d.ExcludedServices {
		rules.ExcludedServices = append(rules.ExcludedServices, sponsorship.ServiceType(s))
	}
	if d.RequiresPreApproval {
		threshold, err := parseMoney(d.ApprovalThreshold)
		if err != nil {
			return rules, fmt.Errorf("approval_threshold: %w", err)
		}
		rules.ApprovalThreshold = threshold
	}
	return rules, nil
}

// =============================================================================
// PLANS
// =============================================================================

type CoverageRuleDTO struct {
	Service            string   `json:"service"`
	Covered            bool     `json:"covered"`
	CoveragePercentage int64    `json:"coverage_percentage"`
	Copayment          MoneyDTO `json:"copayment"`
	RequiresPreAuth    bool     `json:"requires_pre_auth,omitempty"`
}

type CreatePlanRequest struct {
	Name            string            `json:"name"`
	Tier            string            `json:"tier"`
	Currency        string            `json:"currency"`
	Premium         MoneyDTO          `json:"premium"`
	AnnualMaximum   MoneyDTO          `json:"annual_maximum"`
	LifetimeMaximum MoneyDTO          `json:"lifetime_maximum"`
	Deductible      MoneyDTO          `json:"deductible"`
	MaxOutOfPocket  MoneyDTO          `json:"max_out_of_pocket"`
	Rules           []CoverageRuleDTO `json:"rules"`
	InsurerWalletID string            `json:"insurer_wallet_id"`
}

type PlanDTO struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Tier            string            `json:"tier"`
	Currency        string            `json:"currency"`
	Premium         MoneyDTO          `json:"premium"`
	AnnualMaximum   MoneyDTO          `json:"annual_maximum"`
	LifetimeMaximum MoneyDTO          `json:"lifetime_maximum"`
	Deductible      MoneyDTO          `json:"deductible"`
	MaxOutOfPocket  MoneyDTO          `json:"max_out_of_pocket"`
	Rules           []CoverageRuleDTO `json:"rules"`
	CreatedAt       string            `json:"created_at"`
}

func toPlanDTO(p *hmo.Plan) PlanDTO {
	dto := PlanDTO{
		ID:              string(p.ID),
		Name:            p.Name,
		Tier:            p.Tier,
		Currency:        string(p.Currency),
		Premium:         toMoneyDTO(p.Premium),
		AnnualMaximum:   toMoneyDTO(p.AnnualMaximum),
		LifetimeMaximum: toMoneyDTO(p.LifetimeMaximum),
		Deductible:      toMoneyDTO(p.Deductible),
		MaxOutOfPocket:  toMoneyDTO(p.MaxOutOfPocket),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
	for _, r := range p.Rules {
		dto.Rules = append(dto.Rules, CoverageRuleDTO{
			Service:            string(r.Service),
			Covered:            r.Covered,
			CoveragePercentage: r.CoveragePercentage,
			Copayment:          toMoneyDTO(r.Copayment),
			RequiresPreAuth:    r.RequiresPreAuth,
		})
	}
	return dto
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

type EnrollRequest struct {
	SubscriberID string `json:"subscriber_id"`
	PlanID       string `json:"plan_id"`
	Kind         string `json:"kind"`
	Cadence      string `json:"cadence"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

type RenewEnrollmentRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type EnrollmentDTO struct {
	ID           string `json:"id"`
	SubscriberID string `json:"subscriber_id"`
	PlanID       string `json:"plan_id"`
	Kind         string `json:"kind"`
	Cadence      string `json:"cadence"`
	Status       string `json:"status"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`

	RemainingAnnual   MoneyDTO `json:"remaining_annual"`
	RemainingLifetime MoneyDTO `json:"remaining_lifetime"`

	AppointmentsUsed  int64    `json:"appointments_used"`
	PrescriptionsUsed int64    `json:"prescriptions_used"`
	ClaimsSubmitted   int64    `json:"claims_submitted"`
	ClaimsApproved    int64    `json:"claims_approved"`
	ClaimsDenied      int64    `json:"claims_denied"`
	TotalPaid         MoneyDTO `json:"total_paid"`

	CreatedAt string `json:"created_at"`
}

// toEnrollmentDTO renders the enrollment with its derived status as of now.
func toEnrollmentDTO(e *hmo.Enrollment, graceWindow time.Duration) EnrollmentDTO {
	return EnrollmentDTO{
		ID:                string(e.ID),
		SubscriberID:      e.SubscriberID,
		PlanID:            string(e.PlanID),
		Kind:              string(e.Kind),
		Cadence:           string(e.Cadence),
		Status:            string(e.EffectiveStatus(time.Now().UTC(), graceWindow)),
		StartDate:         e.Window.Start.Format(time.RFC3339),
		EndDate:           e.Window.End.Format(time.RFC3339),
		RemainingAnnual:   toMoneyDTO(e.Limits.RemainingAnnual),
		RemainingLifetime: toMoneyDTO(e.Limits.RemainingLifetime),
		AppointmentsUsed:  e.Usage.AppointmentsUsed,
		PrescriptionsUsed: e.Usage.PrescriptionsUsed,
		ClaimsSubmitted:   e.Usage.ClaimsSubmitted,
		ClaimsApproved:    e.Usage.ClaimsApproved,
		ClaimsDenied:      e.Usage.ClaimsDenied,
		TotalPaid:         toMoneyDTO(e.Usage.TotalPaid),
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// CLAIMS
// =============================================================================

type LineItemDTO struct {
	Description string   `json:"description"`
	Amount      MoneyDTO `json:"amount"`
}

type SubmitClaimRequest struct {
	EnrollmentID    string        `json:"enrollment_id"`
	PatientID       string        `json:"patient_id"`
	ClaimantKind    string        `json:"claimant_kind"`
	ClaimantID      string        `json:"claimant_id"`
	BillingWalletID string        `json:"billing_wallet_id"`
	ServiceType     string        `json:"service_type"`
	ServiceDate     string        `json:"service_date"`
	DiagnosisCodes  []string      `json:"diagnosis_codes,omitempty"`
	ProcedureCodes  []string      `json:"procedure_codes,omitempty"`
	TotalBilled     MoneyDTO      `json:"total_billed"`
	Items           []LineItemDTO `json:"items,omitempty"`
	Reference       string        `json:"reference,omitempty"`
}

type ReviewRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// ApproveRequest optionally overrides the approved amount; omitted means
// the full covered amount.
type ApproveRequest struct {
	Actor  string    `json:"actor"`
	Reason string    `json:"reason,omitempty"`
	Amount *MoneyDTO `json:"amount,omitempty"`
}

type AppealRequest struct {
	FiledBy string `json:"filed_by"`
	Reason  string `json:"reason"`
}

type StatusChangeDTO struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Actor  string `json:"actor,omitempty"`
	Reason string `json:"reason,omitempty"`
	At     string `json:"at"`
}

type PatientResponsibilityDTO struct {
	Copayment   MoneyDTO `json:"copayment"`
	Coinsurance MoneyDTO `json:"coinsurance"`
	Deductible  MoneyDTO `json:"deductible"`
	Total       MoneyDTO `json:"total"`
}

type ClaimDTO struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	EnrollmentID string `json:"enrollment_id"`
	PlanID       string `json:"plan_id"`
	PatientID    string `json:"patient_id"`
	ClaimantKind string `json:"claimant_kind"`
	ClaimantID   string `json:"claimant_id"`
	Status       string `json:"status"`

	ServiceType string `json:"service_type"`
	ServiceDate string `json:"service_date"`

	TotalBilled        MoneyDTO                 `json:"total_billed"`
	CoveragePercentage int64                    `json:"coverage_percentage"`
	CoveredAmount      MoneyDTO                 `json:"covered_amount"`
	Patient            PatientResponsibilityDTO `json:"patient_responsibility"`
	ApprovedAmount     MoneyDTO                 `json:"approved_amount"`
	RejectedAmount     MoneyDTO                 `json:"rejected_amount"`
	Notes              []string                 `json:"notes,omitempty"`

	PaymentTransactionID string `json:"payment_transaction_id,omitempty"`
	PaidAt               string `json:"paid_at,omitempty"`

	History    []StatusChangeDTO `json:"history"`
	FraudFlags []string          `json:"fraud_flags,omitempty"`

	CreatedAt string `json:"created_at"`
}

func toClaimDTO(c *hmo.Claim) ClaimDTO {
	dto := ClaimDTO{
		ID:                 string(c.ID),
		Number:             c.Number,
		EnrollmentID:       string(c.EnrollmentID),
		PlanID:             string(c.PlanID),
		PatientID:          c.PatientID,
		ClaimantKind:       string(c.Claimant.Kind),
		ClaimantID:         c.Claimant.ID,
		Status:             string(c.Status),
		ServiceType:        string(c.Service.Type),
		ServiceDate:        c.Service.Date.Format(time.RFC3339),
		TotalBilled:        toMoneyDTO(c.Billing.TotalBilled),
		CoveragePercentage: c.Billing.CoveragePercentage,
		CoveredAmount:      toMoneyDTO(c.Billing.CoveredAmount),
		Patient: PatientResponsibilityDTO{
			Copayment:   toMoneyDTO(c.Billing.Patient.Copayment),
			Coinsurance: toMoneyDTO(c.Billing.Patient.Coinsurance),
			Deductible:  toMoneyDTO(c.Billing.Patient.Deductible),
			Total:       toMoneyDTO(c.Billing.Patient.Total),
		},
		ApprovedAmount: toMoneyDTO(c.Billing.ApprovedAmount),
		RejectedAmount: toMoneyDTO(c.Billing.RejectedAmount),
		Notes:          c.Billing.Notes,
		FraudFlags:     c.FraudFlags,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
	if c.Billing.Payment != nil {
		dto.PaymentTransactionID = string(c.Billing.Payment.TransactionID)
		dto.PaidAt = c.Billing.Payment.PaidAt.Format(time.RFC3339)
	}
	for _, h := range c.History {
		dto.History = append(dto.History, StatusChangeDTO{
			From:   string(h.From),
			To:     string(h.To),
			Actor:  h.Actor,
			Reason: h.Reason,
			At:     h.At.Format(time.RFC3339),
		})
	}
	return dto
}

func toClaimDTOs(claims []*hmo.Claim) []ClaimDTO {
	dtos := make([]ClaimDTO, len(claims))
	for i, c := range claims {
		dtos[i] = toClaimDTO(c)
	}
	return dtos
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
