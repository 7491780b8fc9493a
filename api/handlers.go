/*
handlers.go - HTTP API handlers for the benefits & ledger engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Wallets:
    POST   /api/wallets                    Create wallet
    GET    /api/wallets/{id}               Balance snapshot
    GET    /api/wallets/{id}/transactions  Statement (range query)
    POST   /api/wallets/{id}/deposit       Move value in from an external rail
    POST   /api/wallets/{id}/withdraw      Move value out to an external rail
    POST   /api/wallets/{id}/freeze        Freeze (credits only)
    POST   /api/wallets/{id}/close         Close permanently

  Transactions:
    POST   /api/transactions               Initiate (pending)
    GET    /api/transactions/{id}          Lookup
    POST   /api/transactions/{id}/complete Settle and apply wallet effects
    POST   /api/transactions/{id}/fail     Mark failed, no effects
    POST   /api/transactions/{id}/cancel   Cancel before settlement
    POST   /api/transactions/{id}/reverse  Compensating entry

  Sponsorships:
    POST   /api/sponsorships               Create (pending)
    GET    /api/sponsorships               List by beneficiary
    GET    /api/sponsorships/{id}          Lookup
    POST   /api/sponsorships/{id}/activate Pending -> active
    POST   /api/sponsorships/{id}/utilize  Draw down + fund transfer
    POST   /api/sponsorships/{id}/pause    Active -> paused
    POST   /api/sponsorships/{id}/resume   Paused -> active
    POST   /api/sponsorships/{id}/terminate
    POST   /api/sponsorships/{id}/renew    Extend window, top up allocation

  Plans & Enrollments:
    POST   /api/plans                      Create benefit plan
    GET    /api/plans                      List plans
    GET    /api/plans/{id}                 Lookup
    POST   /api/enrollments                Enroll (limits snapshotted)
    GET    /api/enrollments/{id}           Lookup (derived status)
    POST   /api/enrollments/{id}/activate, /suspend, /resume, /cancel
    POST   /api/enrollments/{id}/renew     Fresh period, annual limits reset

  Claims:
    POST   /api/claims                     Submit + adjudicate
    GET    /api/claims                     List by enrollment or lookup by number
    GET    /api/claims/{id}                Lookup
    POST   /api/claims/{id}/review, /approve, /reject, /appeal, /cancel, /pay

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, currency mismatch
  - 404: Record not found
  - 409: Conflict (duplicate reference, lost race, illegal state transition)
  - 422: Business rejection (insufficient funds, limits, pre-approval)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caremesh/benefits-engine/hmo"
	"github.com/caremesh/benefits-engine/ledger"
	"github.com/caremesh/benefits-engine/sponsorship"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Wallets     *ledger.WalletManager
	Processor   *ledger.TransactionProcessor
	Funds       *sponsorship.FundController
	Enrollments *hmo.Tracker
	Claims      *hmo.ClaimService

	// Plans is the plan persistence view of the configured store.
	Plans hmo.Store
}

// NewHandler wires the full engine on top of the given store. The store
// must implement the sponsorship and hmo extensions in addition to
// ledger.TxStore (both shipped stores do).
func NewHandler(store ledger.TxStore) *Handler {
	wallets := ledger.NewWalletManager(store)
	processor := ledger.NewTransactionProcessor(store, wallets)
	funds := sponsorship.NewFundController(store, processor)
	tracker := hmo.NewTracker(store)
	claims := hmo.NewClaimService(store, processor, tracker)

	// Reversals of sponsorship transfers and claim settlements roll back
	// the owning record inside the same atomic unit.
	processor.RegisterCompensator(funds)
	processor.RegisterCompensator(claims)

	plans, _ := store.(hmo.Store)

	return &Handler{
		Wallets:     wallets,
		Processor:   processor,
		Funds:       funds,
		Enrollments: tracker,
		Claims:      claims,
		Plans:       plans,
	}
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// CreateWallet creates a new wallet.
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OwnerID == "" || req.Kind == "" || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "owner_id, kind and currency are required", nil)
		return
	}

	wallet, err := h.Wallets.CreateWallet(r.Context(), req.OwnerID,
		ledger.WalletKind(req.Kind), ledger.Currency(req.Currency))
	if err != nil {
		writeDomainError(w, "Failed to create wallet", err)
		return
	}

	writeJSON(w, http.StatusCreated, toWalletDTO(wallet))
}

// GetWallet returns the balance snapshot for a wallet.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id := ledger.WalletID(chi.URLParam(r, "id"))

	balance, err := h.Wallets.GetBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get wallet", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// GetWalletTransactions returns the wallet statement for a time range.
// Defaults to the last 30 days when no range is given.
func (h *Handler) GetWalletTransactions(w http.ResponseWriter, r *http.Request) {
	id := ledger.WalletID(chi.URLParam(r, "id"))

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from (use RFC3339)", err)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to (use RFC3339)", err)
			return
		}
		to = t
	}

	txs, err := h.Processor.Statement(r.Context(), id, from, to)
	if err != nil {
		writeDomainError(w, "Failed to load statement", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

type walletMovementRequest struct {
	Amount    MoneyDTO `json:"amount"`
	Reference string   `json:"reference,omitempty"`
}

// Deposit moves value into the wallet from an external rail via a
// deposit transaction that is settled immediately.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.externalMovement(w, r, ledger.KindDeposit)
}

// Withdraw moves value out of the wallet to an external rail.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.externalMovement(w, r, ledger.KindWithdrawal)
}

func (h *Handler) externalMovement(w http.ResponseWriter, r *http.Request, kind ledger.TransactionKind) {
	id := ledger.WalletID(chi.URLParam(r, "id"))

	var req walletMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	in := ledger.InitiateInput{
		Kind:      kind,
		Amount:    amount,
		Reference: req.Reference,
	}
	if kind == ledger.KindDeposit {
		in.From = ledger.External()
		in.To = ledger.WalletParty(id)
	} else {
		in.From = ledger.WalletParty(id)
		in.To = ledger.External()
	}

	tx, err := h.Processor.Initiate(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to initiate movement", err)
		return
	}
	tx, err = h.Processor.Complete(r.Context(), tx.ID)
	if err != nil {
		writeDomainError(w, "Failed to settle movement", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// FreezeWallet freezes the wallet: credits still land, debits are refused.
func (h *Handler) FreezeWallet(w http.ResponseWriter, r *http.Request) {
	id := ledger.WalletID(chi.URLParam(r, "id"))
	if err := h.Wallets.Freeze(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to freeze wallet", err)
		return
	}
	balance, err := h.Wallets.GetBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// CloseWallet closes the wallet permanently.
func (h *Handler) CloseWallet(w http.ResponseWriter, r *http.Request) {
	id := ledger.WalletID(chi.URLParam(r, "id"))
	if err := h.Wallets.Close(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to close wallet", err)
		return
	}
	balance, err := h.Wallets.GetBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// InitiateTransaction creates a pending ledger entry.
func (h *Handler) InitiateTransaction(w http.ResponseWriter, r *http.Request) {
	var req InitiateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	in := ledger.InitiateInput{
		Kind:        ledger.TransactionKind(req.Kind),
		Amount:      amount,
		Reference:   req.Reference,
		Description: req.Description,
		Metadata:    req.Metadata,
	}
	in.From = partyFrom(req.FromWalletID, req.FromUserID)
	in.To = partyFrom(req.ToWalletID, req.ToUserID)
	if req.FeeAmount != "" {
		fee, err := parseMoney(MoneyDTO{Amount: req.FeeAmount, Currency: string(amount.Currency)})
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid fee_amount", err)
			return
		}
		in.Fee = ledger.Fee{Amount: fee.Amount}
		if req.FeeWalletID != "" {
			holder := ledger.WalletID(req.FeeWalletID)
			in.Fee.HolderWalletID = &holder
		}
	}

	tx, err := h.Processor.Initiate(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to initiate transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func partyFrom(walletID, userID string) *ledger.Party {
	if walletID == "" && userID == "" {
		return ledger.External()
	}
	if walletID == "" {
		return &ledger.Party{UserID: userID}
	}
	return ledger.UserWalletParty(userID, ledger.WalletID(walletID))
}

// GetTransaction returns a single ledger entry.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	tx, err := h.Processor.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// CompleteTransaction settles a pending transaction and applies wallet
// effects. Completing an already-completed transaction is a no-op.
func (h *Handler) CompleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	tx, err := h.Processor.Complete(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to complete transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// FailTransaction marks a pending transaction failed. No wallet effects.
func (h *Handler) FailTransaction(w http.ResponseWriter, r *http.Request) {
	h.terminate(w, r, h.Processor.Fail)
}

// CancelTransaction cancels a pending transaction. No wallet effects.
func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	h.terminate(w, r, h.Processor.Cancel)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id ledger.TransactionID, reason string) (*ledger.Transaction, error)) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	var req ReasonRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	tx, err := op(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to update transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// ReverseTransaction creates the compensating entry for a completed
// transaction and returns it.
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	var req ReasonRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	reversal, err := h.Processor.Reverse(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reverse transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(reversal))
}

// =============================================================================
// SPONSORSHIP HANDLERS
// =============================================================================

// CreateSponsorship registers a pending sponsorship.
func (h *Handler) CreateSponsorship(w http.ResponseWriter, r *http.Request) {
	var req CreateSponsorshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	allocated, err := parseMoney(req.Allocated)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid allocated amount", err)
		return
	}
	window, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}
	coverage, err := parseCoverageRules(req.Coverage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid coverage rules", err)
		return
	}

	sp, err := h.Funds.Create(r.Context(), sponsorship.CreateInput{
		SponsorID:           req.SponsorID,
		BeneficiaryID:       req.BeneficiaryID,
		SponsorWalletID:     ledger.WalletID(req.SponsorWalletID),
		BeneficiaryWalletID: ledger.WalletID(req.BeneficiaryWalletID),
		Type:                sponsorship.Type(req.Type),
		Allocated:           allocated,
		Window:              sponsorship.Window{Start: window.Start, End: window.End},
		Coverage:            coverage,
	})
	if err != nil {
		writeDomainError(w, "Failed to create sponsorship", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSponsorshipDTO(sp))
}

// GetSponsorship returns a sponsorship with derived remaining funds.
func (h *Handler) GetSponsorship(w http.ResponseWriter, r *http.Request) {
	id := sponsorship.SponsorshipID(chi.URLParam(r, "id"))

	sp, err := h.Funds.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get sponsorship", err)
		return
	}

	writeJSON(w, http.StatusOK, toSponsorshipDTO(sp))
}

// ListSponsorships lists sponsorships for a beneficiary.
func (h *Handler) ListSponsorships(w http.ResponseWriter, r *http.Request) {
	beneficiaryID := r.URL.Query().Get("beneficiary_id")
	if beneficiaryID == "" {
		writeError(w, http.StatusBadRequest, "beneficiary_id is required", nil)
		return
	}

	sps, err := h.Funds.ListByBeneficiary(r.Context(), beneficiaryID)
	if err != nil {
		writeDomainError(w, "Failed to list sponsorships", err)
		return
	}

	writeJSON(w, http.StatusOK, toSponsorshipDTOs(sps))
}

// Utilize draws funds down from the sponsorship.
func (h *Handler) Utilize(w http.ResponseWriter, r *http.Request) {
	id := sponsorship.SponsorshipID(chi.URLParam(r, "id"))

	var req UtilizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	sp, tx, err := h.Funds.Utilize(r.Context(), id, sponsorship.UtilizeInput{
		Amount:      amount,
		Service:     sponsorship.ServiceType(req.Service),
		ProviderID:  req.ProviderID,
		PreApproved: req.PreApproved,
		Reference:   req.Reference,
		Note:        req.Note,
	})
	if err != nil {
		writeDomainError(w, "Failed to utilize sponsorship", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sponsorship": toSponsorshipDTO(sp),
		"transaction": toTransactionDTO(tx),
	})
}

// Sponsorship lifecycle transitions.
func (h *Handler) ActivateSponsorship(w http.ResponseWriter, r *http.Request) {
	h.sponsorshipTransition(w, r, h.Funds.Activate)
}
func (h *Handler) PauseSponsorship(w http.ResponseWriter, r *http.Request) {
	h.sponsorshipTransition(w, r, h.Funds.Pause)
}
func (h *Handler) ResumeSponsorship(w http.ResponseWriter, r *http.Request) {
	h.sponsorshipTransition(w, r, h.Funds.Resume)
}
func (h *Handler) TerminateSponsorship(w http.ResponseWriter, r *http.Request) {
	h.sponsorshipTransition(w, r, h.Funds.Terminate)
}

func (h *Handler) sponsorshipTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id sponsorship.SponsorshipID) (*sponsorship.Sponsorship, error)) {
	id := sponsorship.SponsorshipID(chi.URLParam(r, "id"))

	sp, err := op(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to update sponsorship", err)
		return
	}

	writeJSON(w, http.StatusOK, toSponsorshipDTO(sp))
}

// RenewSponsorship extends the validity window and tops up the allocation.
func (h *Handler) RenewSponsorship(w http.ResponseWriter, r *http.Request) {
	id := sponsorship.SponsorshipID(chi.URLParam(r, "id"))

	var req RenewSponsorshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	newEnd, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use RFC3339)", err)
		return
	}
	topUp, err := parseMoney(req.TopUp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid top_up amount", err)
		return
	}

	sp, err := h.Funds.Renew(r.Context(), id, newEnd, topUp)
	if err != nil {
		writeDomainError(w, "Failed to renew sponsorship", err)
		return
	}

	writeJSON(w, http.StatusOK, toSponsorshipDTO(sp))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// CreatePlan registers a benefit plan.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "name and currency are required", nil)
		return
	}

	plan, err := buildPlan(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan", err)
		return
	}

	if err := h.Plans.CreatePlan(r.Context(), plan); err != nil {
		writeDomainError(w, "Failed to create plan", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlanDTO(plan))
}

func buildPlan(req CreatePlanRequest) (*hmo.Plan, error) {
	plan := &hmo.Plan{
		ID:              hmo.NewPlanID(),
		Name:            req.Name,
		Tier:            req.Tier,
		Currency:        ledger.Currency(req.Currency),
		InsurerWalletID: ledger.WalletID(req.InsurerWalletID),
		CreatedAt:       time.Now().UTC(),
	}

	var err error
	if plan.Premium, err = parseMoney(req.Premium); err != nil {
		return nil, err
	}
	if plan.AnnualMaximum, err = parseMoney(req.AnnualMaximum); err != nil {
		return nil, err
	}
	if plan.LifetimeMaximum, err = parseMoney(req.LifetimeMaximum); err != nil {
		return nil, err
	}
	if plan.Deductible, err = parseMoney(req.Deductible); err != nil {
		return nil, err
	}
	if plan.MaxOutOfPocket, err = parseMoney(req.MaxOutOfPocket); err != nil {
		return nil, err
	}

	for _, r := range req.Rules {
		copay, err := parseMoney(r.Copayment)
		if err != nil {
			return nil, err
		}
		plan.Rules = append(plan.Rules, hmo.CoverageRule{
			Service:            hmo.ServiceType(r.Service),
			Covered:            r.Covered,
			CoveragePercentage: r.CoveragePercentage,
			Copayment:          copay,
			RequiresPreAuth:    r.RequiresPreAuth,
		})
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetPlan returns a single plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := hmo.PlanID(chi.URLParam(r, "id"))

	plan, err := h.Plans.GetPlan(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get plan", err)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// ListPlans returns all plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Plans.ListPlans(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// Enroll creates a pending enrollment with limits snapshotted from the plan.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	window, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	e, err := h.Enrollments.Enroll(r.Context(), hmo.EnrollInput{
		SubscriberID: req.SubscriberID,
		PlanID:       hmo.PlanID(req.PlanID),
		Kind:         hmo.EnrollmentKind(req.Kind),
		Window:       window,
		Cadence:      hmo.PaymentCadence(req.Cadence),
	})
	if err != nil {
		writeDomainError(w, "Failed to enroll", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEnrollmentDTO(e, h.Enrollments.GraceWindow))
}

// GetEnrollment returns an enrollment with its derived status.
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id := hmo.EnrollmentID(chi.URLParam(r, "id"))

	e, err := h.Enrollments.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get enrollment", err)
		return
	}

	writeJSON(w, http.StatusOK, toEnrollmentDTO(e, h.Enrollments.GraceWindow))
}

// Enrollment lifecycle transitions.
func (h *Handler) ActivateEnrollment(w http.ResponseWriter, r *http.Request) {
	h.enrollmentTransition(w, r, h.Enrollments.Activate)
}
func (h *Handler) SuspendEnrollment(w http.ResponseWriter, r *http.Request) {
	h.enrollmentTransition(w, r, h.Enrollments.Suspend)
}
func (h *Handler) ResumeEnrollment(w http.ResponseWriter, r *http.Request) {
	h.enrollmentTransition(w, r, h.Enrollments.Resume)
}
func (h *Handler) CancelEnrollment(w http.ResponseWriter, r *http.Request) {
	h.enrollmentTransition(w, r, h.Enrollments.Cancel)
}

func (h *Handler) enrollmentTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id hmo.EnrollmentID) (*hmo.Enrollment, error)) {
	id := hmo.EnrollmentID(chi.URLParam(r, "id"))

	e, err := op(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to update enrollment", err)
		return
	}

	writeJSON(w, http.StatusOK, toEnrollmentDTO(e, h.Enrollments.GraceWindow))
}

// RenewEnrollment starts a fresh coverage period: annual limits reset,
// lifetime remainder carries over.
func (h *Handler) RenewEnrollment(w http.ResponseWriter, r *http.Request) {
	id := hmo.EnrollmentID(chi.URLParam(r, "id"))

	var req RenewEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	window, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	e, err := h.Enrollments.Renew(r.Context(), id, window)
	if err != nil {
		writeDomainError(w, "Failed to renew enrollment", err)
		return
	}

	writeJSON(w, http.StatusOK, toEnrollmentDTO(e, h.Enrollments.GraceWindow))
}

// =============================================================================
// CLAIM HANDLERS
// =============================================================================

// SubmitClaim creates and adjudicates a claim.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req SubmitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	billed, err := parseMoney(req.TotalBilled)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_billed", err)
		return
	}
	serviceDate, err := time.Parse(time.RFC3339, req.ServiceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service_date (use RFC3339)", err)
		return
	}

	in := hmo.SubmitInput{
		EnrollmentID: hmo.EnrollmentID(req.EnrollmentID),
		PatientID:    req.PatientID,
		Claimant: hmo.Claimant{
			Kind:            hmo.ClaimantKind(req.ClaimantKind),
			ID:              req.ClaimantID,
			BillingWalletID: ledger.WalletID(req.BillingWalletID),
		},
		Service: hmo.ServiceInfo{
			Type:           hmo.ServiceType(req.ServiceType),
			Date:           serviceDate,
			DiagnosisCodes: req.DiagnosisCodes,
			ProcedureCodes: req.ProcedureCodes,
		},
		TotalBilled: billed,
		Reference:   req.Reference,
	}
	for _, item := range req.Items {
		amount, err := parseMoney(item.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid line item amount", err)
			return
		}
		in.Items = append(in.Items, hmo.LineItem{Description: item.Description, Amount: amount})
	}

	c, err := h.Claims.Submit(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to submit claim", err)
		return
	}

	writeJSON(w, http.StatusCreated, toClaimDTO(c))
}

// GetClaim returns a single claim.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	id := hmo.ClaimID(chi.URLParam(r, "id"))

	c, err := h.Claims.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get claim", err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// ListClaims lists claims by enrollment, or looks one up by number.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	if number := r.URL.Query().Get("number"); number != "" {
		c, err := h.Claims.GetByNumber(r.Context(), number)
		if err != nil {
			writeDomainError(w, "Failed to get claim", err)
			return
		}
		writeJSON(w, http.StatusOK, []ClaimDTO{toClaimDTO(c)})
		return
	}

	enrollmentID := r.URL.Query().Get("enrollment_id")
	if enrollmentID == "" {
		writeError(w, http.StatusBadRequest, "enrollment_id or number is required", nil)
		return
	}

	claims, err := h.Claims.ListByEnrollment(r.Context(), hmo.EnrollmentID(enrollmentID))
	if err != nil {
		writeDomainError(w, "Failed to list claims", err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimDTOs(claims))
}

// ReviewClaim moves a submitted claim into review.
func (h *Handler) ReviewClaim(w http.ResponseWriter, r *http.Request) {
	id := hmo.ClaimID(chi.URLParam(r, "id"))

	var req ReviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	c, err := h.Claims.Review(r.Context(), id, req.Actor, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to review claim", err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// ApproveClaim approves a claim under review, in full or partially.
func (h *Handler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	id := hmo.ClaimID(chi.URLParam(r, "id"))

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var amount *ledger.Money
	if req.Amount != nil {
		m, err := parseMoney(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		amount = &m
	}

	c, err := h.Claims.Approve(r.Context(), id, req.Actor, req.Reason, amount)
	if err != nil {
		writeDomainError(w, "Failed to approve claim", err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// RejectClaim rejects a claim under review.
func (h *Handler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	id := hmo.ClaimID(chi.URLParam(r, "id"))

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Claims.Reject(r.Context(), id, req.Actor, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reject claim", err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// AppealClaim files the single allowed appeal and re-opens review.
func (h *Handler) AppealClaim(w http.ResponseWriter, r *http.Request) {
	id := hmo.ClaimID(chi.URLParam(r, "id"))

	var req AppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Claims.FileAppeal(r.Context(), id, req.FiledBy, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to appeal claim", err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// CancelClaim cancels a claim before payment.
func (h *Handler) CancelClaim(w http.ResponseWriter, r *http.Request) {
	id := hmo.ClaimID(chi.URLParam(r, "id"))

	var req ReviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	c, err := h.Claims.CancelClaim(r.Context(), id, req.Actor, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to cancel claim", err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// PayClaim settles an approved claim from the insurer's wallet to the
// claimant's billing wallet.
func (h *Handler) PayClaim(w http.ResponseWriter, r *http.Request) {
	id := hmo.ClaimID(chi.URLParam(r, "id"))

	var req ReviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	c, err := h.Claims.Pay(r.Context(), id, req.Actor)
	if err != nil {
		writeDomainError(w, "Failed to pay claim", err)
		return
	}

	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the engine's error taxonomy to HTTP statuses.
// Conflict-style outcomes are checked before the broader client-error
// bucket because the sentinels overlap.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrDuplicateReference),
		errors.Is(err, ledger.ErrInvalidState),
		ledger.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrCurrencyMismatch):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsClientError(err),
		errors.Is(err, sponsorship.ErrServiceNotEligible),
		errors.Is(err, sponsorship.ErrProviderNotEligible):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func parseWindow(start, end string) (hmo.Window, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return hmo.Window{}, err
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return hmo.Window{}, err
	}
	return hmo.Window{Start: s, End: e}, nil
}
