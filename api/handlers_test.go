package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caremesh/benefits-engine/api"
	"github.com/caremesh/benefits-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := api.NewHandler(store.NewMemory())
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

// call sends a JSON request and decodes the JSON response into out.
func call(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func money(amount string) api.MoneyDTO {
	return api.MoneyDTO{Amount: amount, Currency: "NGN"}
}

func createWallet(t *testing.T, srv *httptest.Server, owner, kind string) api.WalletDTO {
	t.Helper()
	var w api.WalletDTO
	status := call(t, srv, http.MethodPost, "/api/wallets", api.CreateWalletRequest{
		OwnerID: owner, Kind: kind, Currency: "NGN",
	}, &w)
	require.Equal(t, http.StatusCreated, status)
	return w
}

func deposit(t *testing.T, srv *httptest.Server, walletID, amount string) {
	t.Helper()
	status := call(t, srv, http.MethodPost, "/api/wallets/"+walletID+"/deposit",
		map[string]any{"amount": money(amount)}, nil)
	require.Equal(t, http.StatusCreated, status)
}

// =============================================================================
// WALLET ENDPOINT TESTS
// =============================================================================

func TestAPI_WalletLifecycle(t *testing.T) {
	// GIVEN: A fresh wallet
	// WHEN: 500 is deposited and 150 withdrawn
	// THEN: The balance snapshot and statement reflect both movements

	srv := newTestServer(t)
	w := createWallet(t, srv, "user-1", "personal")

	deposit(t, srv, w.ID, "500")

	var tx api.TransactionDTO
	status := call(t, srv, http.MethodPost, "/api/wallets/"+w.ID+"/withdraw",
		map[string]any{"amount": money("150")}, &tx)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "completed", tx.Status)
	assert.Equal(t, "withdrawal", tx.Kind)

	var b api.BalanceDTO
	status = call(t, srv, http.MethodGet, "/api/wallets/"+w.ID, nil, &b)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "350", b.Available)
	assert.Equal(t, "150", b.TotalWithdrawn)

	var statement []api.TransactionDTO
	status = call(t, srv, http.MethodGet, "/api/wallets/"+w.ID+"/transactions", nil, &statement)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, statement, 2)
}

func TestAPI_Wallet_NotFound(t *testing.T) {
	srv := newTestServer(t)
	var e api.ErrorResponse
	status := call(t, srv, http.MethodGet, "/api/wallets/missing", nil, &e)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, e.Error)
}

func TestAPI_Wallet_InvalidDeposit(t *testing.T) {
	srv := newTestServer(t)
	w := createWallet(t, srv, "user-1", "personal")

	status := call(t, srv, http.MethodPost, "/api/wallets/"+w.ID+"/deposit",
		map[string]any{"amount": api.MoneyDTO{Amount: "abc", Currency: "NGN"}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_Wallet_OverdraftRejected(t *testing.T) {
	srv := newTestServer(t)
	w := createWallet(t, srv, "user-1", "personal")
	deposit(t, srv, w.ID, "100")

	status := call(t, srv, http.MethodPost, "/api/wallets/"+w.ID+"/withdraw",
		map[string]any{"amount": money("500")}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestAPI_Wallet_FrozenRefusesWithdrawal(t *testing.T) {
	srv := newTestServer(t)
	w := createWallet(t, srv, "user-1", "personal")
	deposit(t, srv, w.ID, "100")

	status := call(t, srv, http.MethodPost, "/api/wallets/"+w.ID+"/freeze", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status = call(t, srv, http.MethodPost, "/api/wallets/"+w.ID+"/withdraw",
		map[string]any{"amount": money("50")}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

// =============================================================================
// TRANSACTION ENDPOINT TESTS
// =============================================================================

func TestAPI_TransferInitiateComplete(t *testing.T) {
	// GIVEN: A funded payer and an empty payee
	// WHEN: A payment is initiated and then completed
	// THEN: The entry settles and the payee's balance grows

	srv := newTestServer(t)
	payer := createWallet(t, srv, "payer", "personal")
	payee := createWallet(t, srv, "clinic", "provider")
	deposit(t, srv, payer.ID, "500")

	var tx api.TransactionDTO
	status := call(t, srv, http.MethodPost, "/api/transactions", api.InitiateTransactionRequest{
		Kind:         "payment",
		FromWalletID: payer.ID,
		ToWalletID:   payee.ID,
		Amount:       money("200"),
		Reference:    "inv-1001",
	}, &tx)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "pending", tx.Status)

	status = call(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/complete", nil, &tx)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", tx.Status)
	assert.NotEmpty(t, tx.SettledAt)

	var b api.BalanceDTO
	call(t, srv, http.MethodGet, "/api/wallets/"+payee.ID, nil, &b)
	assert.Equal(t, "200", b.Available)
}

func TestAPI_Transaction_DuplicateReferenceReturnsExisting(t *testing.T) {
	srv := newTestServer(t)
	payer := createWallet(t, srv, "payer", "personal")
	deposit(t, srv, payer.ID, "500")

	req := api.InitiateTransactionRequest{
		Kind:         "withdrawal",
		FromWalletID: payer.ID,
		Amount:       money("100"),
		Reference:    "wd-1",
	}
	var first, retry api.TransactionDTO
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/api/transactions", req, &first))
	require.Equal(t, http.StatusCreated, call(t, srv, http.MethodPost, "/api/transactions", req, &retry))
	assert.Equal(t, first.ID, retry.ID)
}

func TestAPI_Transaction_CompleteFailed_Conflict(t *testing.T) {
	srv := newTestServer(t)
	payer := createWallet(t, srv, "payer", "personal")
	deposit(t, srv, payer.ID, "500")

	var tx api.TransactionDTO
	call(t, srv, http.MethodPost, "/api/transactions", api.InitiateTransactionRequest{
		Kind: "withdrawal", FromWalletID: payer.ID, Amount: money("100"),
	}, &tx)

	status := call(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/fail",
		api.ReasonRequest{Reason: "rail timeout"}, nil)
	require.Equal(t, http.StatusOK, status)

	status = call(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/complete", nil, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_Transaction_Reverse(t *testing.T) {
	srv := newTestServer(t)
	payer := createWallet(t, srv, "payer", "personal")
	payee := createWallet(t, srv, "clinic", "provider")
	deposit(t, srv, payer.ID, "500")

	var tx api.TransactionDTO
	call(t, srv, http.MethodPost, "/api/transactions", api.InitiateTransactionRequest{
		Kind: "payment", FromWalletID: payer.ID, ToWalletID: payee.ID, Amount: money("200"),
	}, &tx)
	call(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/complete", nil, nil)

	var reversal api.TransactionDTO
	status := call(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/reverse",
		api.ReasonRequest{Reason: "service not rendered"}, &reversal)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "refund", reversal.Kind)
	assert.Equal(t, tx.ID, reversal.ReversalOf)

	var b api.BalanceDTO
	call(t, srv, http.MethodGet, "/api/wallets/"+payer.ID, nil, &b)
	assert.Equal(t, "500", b.Available)
}

// =============================================================================
// SPONSORSHIP ENDPOINT TESTS
// =============================================================================

func TestAPI_SponsorshipFlow(t *testing.T) {
	// GIVEN: A funded sponsor wallet and a beneficiary wallet
	// WHEN: A sponsorship is created, activated and utilized
	// THEN: The draw-down and the fund transfer both show in the response

	srv := newTestServer(t)
	sponsor := createWallet(t, srv, "ngo-1", "vendor")
	beneficiary := createWallet(t, srv, "patient-1", "personal")
	deposit(t, srv, sponsor.ID, "10000")

	start := time.Now().UTC().Format(time.RFC3339)
	end := time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339)

	var sp api.SponsorshipDTO
	status := call(t, srv, http.MethodPost, "/api/sponsorships", api.CreateSponsorshipRequest{
		SponsorID:           "ngo-1",
		BeneficiaryID:       "patient-1",
		SponsorWalletID:     sponsor.ID,
		BeneficiaryWalletID: beneficiary.ID,
		Type:                "partial",
		Allocated:           money("1000"),
		StartDate:           start,
		EndDate:             end,
	}, &sp)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "pending", sp.Status)

	status = call(t, srv, http.MethodPost, "/api/sponsorships/"+sp.ID+"/activate", nil, &sp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", sp.Status)

	var result struct {
		Sponsorship api.SponsorshipDTO `json:"sponsorship"`
		Transaction api.TransactionDTO `json:"transaction"`
	}
	status = call(t, srv, http.MethodPost, "/api/sponsorships/"+sp.ID+"/utilize", api.UtilizeRequest{
		Amount:  money("250"),
		Service: "medication",
	}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "250", result.Sponsorship.Used.Amount)
	assert.Equal(t, "750", result.Sponsorship.Remaining.Amount)
	assert.Equal(t, "completed", result.Transaction.Status)
	assert.Equal(t, "sponsorship", result.Transaction.Kind)

	var b api.BalanceDTO
	call(t, srv, http.MethodGet, "/api/wallets/"+beneficiary.ID, nil, &b)
	assert.Equal(t, "250", b.Available)

	var list []api.SponsorshipDTO
	status = call(t, srv, http.MethodGet, "/api/sponsorships?beneficiary_id=patient-1", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)
}

func TestAPI_Sponsorship_ExhaustionIs422(t *testing.T) {
	srv := newTestServer(t)
	sponsor := createWallet(t, srv, "ngo-1", "vendor")
	beneficiary := createWallet(t, srv, "patient-1", "personal")
	deposit(t, srv, sponsor.ID, "10000")

	var sp api.SponsorshipDTO
	call(t, srv, http.MethodPost, "/api/sponsorships", api.CreateSponsorshipRequest{
		SponsorID: "ngo-1", BeneficiaryID: "patient-1",
		SponsorWalletID: sponsor.ID, BeneficiaryWalletID: beneficiary.ID,
		Type: "full", Allocated: money("100"),
		StartDate: time.Now().UTC().Format(time.RFC3339),
		EndDate:   time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339),
	}, &sp)
	call(t, srv, http.MethodPost, "/api/sponsorships/"+sp.ID+"/activate", nil, nil)

	status := call(t, srv, http.MethodPost, "/api/sponsorships/"+sp.ID+"/utilize", api.UtilizeRequest{
		Amount: money("150"), Service: "medication",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestAPI_Sponsorship_UtilizeBeforeActivationIs409(t *testing.T) {
	srv := newTestServer(t)
	sponsor := createWallet(t, srv, "ngo-1", "vendor")
	beneficiary := createWallet(t, srv, "patient-1", "personal")

	var sp api.SponsorshipDTO
	call(t, srv, http.MethodPost, "/api/sponsorships", api.CreateSponsorshipRequest{
		SponsorID: "ngo-1", BeneficiaryID: "patient-1",
		SponsorWalletID: sponsor.ID, BeneficiaryWalletID: beneficiary.ID,
		Type: "full", Allocated: money("100"),
		StartDate: time.Now().UTC().Format(time.RFC3339),
		EndDate:   time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339),
	}, &sp)

	status := call(t, srv, http.MethodPost, "/api/sponsorships/"+sp.ID+"/utilize", api.UtilizeRequest{
		Amount: money("10"), Service: "medication",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

// =============================================================================
// PLAN, ENROLLMENT AND CLAIM ENDPOINT TESTS
// =============================================================================

func setupPlanAndEnrollment(t *testing.T, srv *httptest.Server) (plan api.PlanDTO, enrollment api.EnrollmentDTO, insurer, clinic api.WalletDTO) {
	t.Helper()
	insurer = createWallet(t, srv, "insurer-1", "platform")
	clinic = createWallet(t, srv, "clinic-1", "provider")
	deposit(t, srv, insurer.ID, "100000")

	status := call(t, srv, http.MethodPost, "/api/plans", api.CreatePlanRequest{
		Name:            "Standard Care",
		Tier:            "standard",
		Currency:        "NGN",
		Premium:         money("50"),
		AnnualMaximum:   money("1000"),
		LifetimeMaximum: money("5000"),
		Deductible:      money("0"),
		MaxOutOfPocket:  money("2000"),
		Rules: []api.CoverageRuleDTO{{
			Service:            "outpatient",
			Covered:            true,
			CoveragePercentage: 80,
			Copayment:          money("20"),
		}},
		InsurerWalletID: insurer.ID,
	}, &plan)
	require.Equal(t, http.StatusCreated, status)

	status = call(t, srv, http.MethodPost, "/api/enrollments", api.EnrollRequest{
		SubscriberID: "subscriber-1",
		PlanID:       plan.ID,
		Kind:         "individual",
		Cadence:      "monthly",
		StartDate:    time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
		EndDate:      time.Now().UTC().Add(365 * 24 * time.Hour).Format(time.RFC3339),
	}, &enrollment)
	require.Equal(t, http.StatusCreated, status)

	status = call(t, srv, http.MethodPost, "/api/enrollments/"+enrollment.ID+"/activate", nil, &enrollment)
	require.Equal(t, http.StatusOK, status)
	return plan, enrollment, insurer, clinic
}

func TestAPI_PlanCatalog(t *testing.T) {
	srv := newTestServer(t)
	plan, _, _, _ := setupPlanAndEnrollment(t, srv)

	var got api.PlanDTO
	status := call(t, srv, http.MethodGet, "/api/plans/"+plan.ID, nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Standard Care", got.Name)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, int64(80), got.Rules[0].CoveragePercentage)

	var plans []api.PlanDTO
	status = call(t, srv, http.MethodGet, "/api/plans", nil, &plans)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, plans, 1)
}

func TestAPI_Plan_OutOfRangePercentageRejected(t *testing.T) {
	srv := newTestServer(t)
	insurer := createWallet(t, srv, "insurer-1", "platform")

	status := call(t, srv, http.MethodPost, "/api/plans", api.CreatePlanRequest{
		Name:            "Broken",
		Currency:        "NGN",
		Premium:         money("10"),
		AnnualMaximum:   money("500"),
		LifetimeMaximum: money("1000"),
		Deductible:      money("0"),
		MaxOutOfPocket:  money("500"),
		Rules: []api.CoverageRuleDTO{{
			Service:            "outpatient",
			Covered:            true,
			CoveragePercentage: 150,
			Copayment:          money("20"),
		}},
		InsurerWalletID: insurer.ID,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_ClaimFlow_SubmitToPaid(t *testing.T) {
	// GIVEN: An active enrollment and a funded insurer wallet
	// WHEN: A 200 claim runs submit -> review -> approve -> pay
	// THEN: The clinic's billing wallet receives the 144 covered amount

	srv := newTestServer(t)
	_, enrollment, _, clinic := setupPlanAndEnrollment(t, srv)

	var c api.ClaimDTO
	status := call(t, srv, http.MethodPost, "/api/claims", api.SubmitClaimRequest{
		EnrollmentID:    enrollment.ID,
		PatientID:       "subscriber-1",
		ClaimantKind:    "provider",
		ClaimantID:      "clinic-1",
		BillingWalletID: clinic.ID,
		ServiceType:     "outpatient",
		ServiceDate:     time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339),
		TotalBilled:     money("200"),
	}, &c)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "submitted", c.Status)
	assert.Equal(t, "144", c.CoveredAmount.Amount)
	assert.Equal(t, "56", c.Patient.Total.Amount)

	status = call(t, srv, http.MethodPost, "/api/claims/"+c.ID+"/review",
		api.ReviewRequest{Actor: "reviewer-1"}, &c)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "under_review", c.Status)

	status = call(t, srv, http.MethodPost, "/api/claims/"+c.ID+"/approve",
		api.ApproveRequest{Actor: "reviewer-1", Reason: "verified"}, &c)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "approved", c.Status)
	assert.Equal(t, "144", c.ApprovedAmount.Amount)

	status = call(t, srv, http.MethodPost, "/api/claims/"+c.ID+"/pay",
		api.ReviewRequest{Actor: "finance-1"}, &c)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paid", c.Status)
	assert.NotEmpty(t, c.PaymentTransactionID)

	var b api.BalanceDTO
	call(t, srv, http.MethodGet, "/api/wallets/"+clinic.ID, nil, &b)
	assert.Equal(t, "144", b.Available)

	var e api.EnrollmentDTO
	call(t, srv, http.MethodGet, "/api/enrollments/"+enrollment.ID, nil, &e)
	assert.Equal(t, "856", e.RemainingAnnual.Amount)
	assert.Equal(t, int64(1), e.ClaimsApproved)
}

func TestAPI_Claim_PartialApprovalAndAppeal(t *testing.T) {
	srv := newTestServer(t)
	_, enrollment, _, clinic := setupPlanAndEnrollment(t, srv)

	var c api.ClaimDTO
	call(t, srv, http.MethodPost, "/api/claims", api.SubmitClaimRequest{
		EnrollmentID:    enrollment.ID,
		PatientID:       "subscriber-1",
		ClaimantKind:    "provider",
		ClaimantID:      "clinic-1",
		BillingWalletID: clinic.ID,
		ServiceType:     "outpatient",
		ServiceDate:     time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339),
		TotalBilled:     money("200"),
	}, &c)
	call(t, srv, http.MethodPost, "/api/claims/"+c.ID+"/review",
		api.ReviewRequest{Actor: "reviewer-1"}, nil)

	partial := money("100")
	status := call(t, srv, http.MethodPost, "/api/claims/"+c.ID+"/approve",
		api.ApproveRequest{Actor: "reviewer-1", Amount: &partial}, &c)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "partially_approved", c.Status)
	assert.Equal(t, "100", c.ApprovedAmount.Amount)
	assert.Equal(t, "44", c.RejectedAmount.Amount)

	status = call(t, srv, http.MethodPost, "/api/claims/"+c.ID+"/appeal",
		api.AppealRequest{FiledBy: "clinic-1", Reason: "full documentation attached"}, &c)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "under_review", c.Status)

	// The single allowed appeal is spent
	status = call(t, srv, http.MethodPost, "/api/claims/"+c.ID+"/appeal",
		api.AppealRequest{FiledBy: "clinic-1", Reason: "again"}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_Claim_LookupByNumber(t *testing.T) {
	srv := newTestServer(t)
	_, enrollment, _, clinic := setupPlanAndEnrollment(t, srv)

	var c api.ClaimDTO
	call(t, srv, http.MethodPost, "/api/claims", api.SubmitClaimRequest{
		EnrollmentID:    enrollment.ID,
		PatientID:       "subscriber-1",
		ClaimantKind:    "provider",
		ClaimantID:      "clinic-1",
		BillingWalletID: clinic.ID,
		ServiceType:     "outpatient",
		ServiceDate:     time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339),
		TotalBilled:     money("200"),
	}, &c)
	require.NotEmpty(t, c.Number)

	var list []api.ClaimDTO
	status := call(t, srv, http.MethodGet, "/api/claims?number="+c.Number, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	status = call(t, srv, http.MethodGet,
		fmt.Sprintf("/api/claims?enrollment_id=%s", enrollment.ID), nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)
}

func TestAPI_Claim_SubmitOnPendingEnrollment_Conflict(t *testing.T) {
	srv := newTestServer(t)
	insurer := createWallet(t, srv, "insurer-1", "platform")
	clinic := createWallet(t, srv, "clinic-1", "provider")

	var plan api.PlanDTO
	call(t, srv, http.MethodPost, "/api/plans", api.CreatePlanRequest{
		Name: "Basic", Currency: "NGN",
		Premium: money("10"), AnnualMaximum: money("500"),
		LifetimeMaximum: money("1000"), Deductible: money("0"),
		MaxOutOfPocket:  money("500"),
		InsurerWalletID: insurer.ID,
	}, &plan)

	var enrollment api.EnrollmentDTO
	call(t, srv, http.MethodPost, "/api/enrollments", api.EnrollRequest{
		SubscriberID: "subscriber-1",
		PlanID:       plan.ID,
		Kind:         "individual",
		Cadence:      "monthly",
		StartDate:    time.Now().UTC().Format(time.RFC3339),
		EndDate:      time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339),
	}, &enrollment)

	// Still pending, never activated
	status := call(t, srv, http.MethodPost, "/api/claims", api.SubmitClaimRequest{
		EnrollmentID:    enrollment.ID,
		PatientID:       "subscriber-1",
		ClaimantKind:    "patient",
		ClaimantID:      "subscriber-1",
		BillingWalletID: clinic.ID,
		ServiceType:     "outpatient",
		ServiceDate:     time.Now().UTC().Format(time.RFC3339),
		TotalBilled:     money("50"),
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}
