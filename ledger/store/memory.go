// Package store provides the in-memory Store implementation used by tests
// and dev mode. It satisfies ledger.TxStore plus the sponsorship and hmo
// store extensions.
//
// WithTx is simulated with a full snapshot taken under the store mutex:
// the callback runs against the live maps and the snapshot is restored on
// error. The mutex also serializes units, which is exactly the
// "single consistent snapshot" contract concurrent utilizations rely on.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/caremesh/benefits-engine/hmo"
	"github.com/caremesh/benefits-engine/ledger"
	"github.com/caremesh/benefits-engine/sponsorship"
)

type Memory struct {
	mu sync.Mutex

	wallets       map[ledger.WalletID]*ledger.Wallet
	txs           map[ledger.TransactionID]*ledger.Transaction
	txByRef       map[string]ledger.TransactionID
	sponsorships  map[sponsorship.SponsorshipID]*sponsorship.Sponsorship
	plans         map[hmo.PlanID]*hmo.Plan
	enrollments   map[hmo.EnrollmentID]*hmo.Enrollment
	claims        map[hmo.ClaimID]*hmo.Claim
	claimByNumber map[string]hmo.ClaimID
}

func NewMemory() *Memory {
	return &Memory{
		wallets:       make(map[ledger.WalletID]*ledger.Wallet),
		txs:           make(map[ledger.TransactionID]*ledger.Transaction),
		txByRef:       make(map[string]ledger.TransactionID),
		sponsorships:  make(map[sponsorship.SponsorshipID]*sponsorship.Sponsorship),
		plans:         make(map[hmo.PlanID]*hmo.Plan),
		enrollments:   make(map[hmo.EnrollmentID]*hmo.Enrollment),
		claims:        make(map[hmo.ClaimID]*hmo.Claim),
		claimByNumber: make(map[string]hmo.ClaimID),
	}
}

// WithTx serializes units under the store mutex. A snapshot of every map
// is taken first and restored when fn fails, so partial writes never
// survive.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// =============================================================================
// LEDGER STORE (locked wrappers)
// =============================================================================

func (m *Memory) CreateWallet(ctx context.Context, w *ledger.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createWalletLocked(w)
}

func (m *Memory) GetWallet(ctx context.Context, id ledger.WalletID) (*ledger.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getWalletLocked(id)
}

func (m *Memory) UpdateWallet(ctx context.Context, w *ledger.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateWalletLocked(w)
}

func (m *Memory) AppendTransaction(ctx context.Context, t *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransactionLocked(t)
}

func (m *Memory) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTransactionLocked(id)
}

func (m *Memory) GetTransactionByReference(ctx context.Context, ref string) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTransactionByReferenceLocked(ref)
}

func (m *Memory) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTransactionLocked(t)
}

func (m *Memory) ListTransactionsByWallet(ctx context.Context, id ledger.WalletID, from, to time.Time) ([]*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listTransactionsByWalletLocked(id, from, to)
}

// =============================================================================
// SPONSORSHIP STORE (locked wrappers)
// =============================================================================

func (m *Memory) CreateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSponsorshipLocked(sp)
}

func (m *Memory) GetSponsorship(ctx context.Context, id sponsorship.SponsorshipID) (*sponsorship.Sponsorship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getSponsorshipLocked(id)
}

func (m *Memory) UpdateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSponsorshipLocked(sp)
}

func (m *Memory) ListSponsorshipsByBeneficiary(ctx context.Context, beneficiaryID string) ([]*sponsorship.Sponsorship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listSponsorshipsByBeneficiaryLocked(beneficiaryID)
}

// =============================================================================
// HMO STORE (locked wrappers)
// =============================================================================

func (m *Memory) CreatePlan(ctx context.Context, p *hmo.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPlanLocked(p)
}

func (m *Memory) GetPlan(ctx context.Context, id hmo.PlanID) (*hmo.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getPlanLocked(id)
}

func (m *Memory) ListPlans(ctx context.Context) ([]*hmo.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPlansLocked()
}

func (m *Memory) CreateEnrollment(ctx context.Context, e *hmo.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createEnrollmentLocked(e)
}

func (m *Memory) GetEnrollment(ctx context.Context, id hmo.EnrollmentID) (*hmo.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getEnrollmentLocked(id)
}

func (m *Memory) UpdateEnrollment(ctx context.Context, e *hmo.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateEnrollmentLocked(e)
}

func (m *Memory) CreateClaim(ctx context.Context, c *hmo.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createClaimLocked(c)
}

func (m *Memory) GetClaim(ctx context.Context, id hmo.ClaimID) (*hmo.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getClaimLocked(id)
}

func (m *Memory) GetClaimByNumber(ctx context.Context, number string) (*hmo.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getClaimByNumberLocked(number)
}

func (m *Memory) UpdateClaim(ctx context.Context, c *hmo.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateClaimLocked(c)
}

func (m *Memory) ListClaimsByEnrollment(ctx context.Context, id hmo.EnrollmentID) ([]*hmo.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listClaimsByEnrollmentLocked(id)
}

// =============================================================================
// LOCKED INTERNALS
// =============================================================================

func (m *Memory) createWalletLocked(w *ledger.Wallet) error {
	if _, ok := m.wallets[w.ID]; ok {
		return &ledger.InvalidStateError{Entity: "wallet", ID: string(w.ID), Status: "existing", Operation: "create"}
	}
	m.wallets[w.ID] = copyWallet(w)
	return nil
}

func (m *Memory) getWalletLocked(id ledger.WalletID) (*ledger.Wallet, error) {
	w, ok := m.wallets[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "wallet", ID: string(id)}
	}
	return copyWallet(w), nil
}

func (m *Memory) updateWalletLocked(w *ledger.Wallet) error {
	stored, ok := m.wallets[w.ID]
	if !ok {
		return &ledger.NotFoundError{Entity: "wallet", ID: string(w.ID)}
	}
	if stored.Version != w.Version {
		return ledger.ErrConcurrencyConflict
	}
	w.Version++
	m.wallets[w.ID] = copyWallet(w)
	return nil
}

func (m *Memory) appendTransactionLocked(t *ledger.Transaction) error {
	if _, ok := m.txs[t.ID]; ok {
		return &ledger.InvalidStateError{Entity: "transaction", ID: string(t.ID), Status: "existing", Operation: "append"}
	}
	if t.Reference != "" {
		if _, ok := m.txByRef[t.Reference]; ok {
			return ledger.ErrDuplicateReference
		}
		m.txByRef[t.Reference] = t.ID
	}
	m.txs[t.ID] = copyTransaction(t)
	return nil
}

func (m *Memory) getTransactionLocked(id ledger.TransactionID) (*ledger.Transaction, error) {
	t, ok := m.txs[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "transaction", ID: string(id)}
	}
	return copyTransaction(t), nil
}

func (m *Memory) getTransactionByReferenceLocked(ref string) (*ledger.Transaction, error) {
	id, ok := m.txByRef[ref]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "transaction", ID: ref}
	}
	return m.getTransactionLocked(id)
}

func (m *Memory) updateTransactionLocked(t *ledger.Transaction) error {
	if _, ok := m.txs[t.ID]; !ok {
		return &ledger.NotFoundError{Entity: "transaction", ID: string(t.ID)}
	}
	m.txs[t.ID] = copyTransaction(t)
	return nil
}

func (m *Memory) listTransactionsByWalletLocked(id ledger.WalletID, from, to time.Time) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	for _, t := range m.txs {
		if !touchesWallet(t, id) {
			continue
		}
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		out = append(out, copyTransaction(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func touchesWallet(t *ledger.Transaction, id ledger.WalletID) bool {
	if w := t.DebitsWallet(); w != nil && *w == id {
		return true
	}
	if w := t.CreditsWallet(); w != nil && *w == id {
		return true
	}
	if t.Fee.HolderWalletID != nil && *t.Fee.HolderWalletID == id {
		return true
	}
	return false
}

func (m *Memory) createSponsorshipLocked(sp *sponsorship.Sponsorship) error {
	if _, ok := m.sponsorships[sp.ID]; ok {
		return &ledger.InvalidStateError{Entity: "sponsorship", ID: string(sp.ID), Status: "existing", Operation: "create"}
	}
	m.sponsorships[sp.ID] = copySponsorship(sp)
	return nil
}

func (m *Memory) getSponsorshipLocked(id sponsorship.SponsorshipID) (*sponsorship.Sponsorship, error) {
	sp, ok := m.sponsorships[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "sponsorship", ID: string(id)}
	}
	return copySponsorship(sp), nil
}

func (m *Memory) updateSponsorshipLocked(sp *sponsorship.Sponsorship) error {
	stored, ok := m.sponsorships[sp.ID]
	if !ok {
		return &ledger.NotFoundError{Entity: "sponsorship", ID: string(sp.ID)}
	}
	if stored.Version != sp.Version {
		return ledger.ErrConcurrencyConflict
	}
	sp.Version++
	m.sponsorships[sp.ID] = copySponsorship(sp)
	return nil
}

func (m *Memory) listSponsorshipsByBeneficiaryLocked(beneficiaryID string) ([]*sponsorship.Sponsorship, error) {
	var out []*sponsorship.Sponsorship
	for _, sp := range m.sponsorships {
		if sp.BeneficiaryID == beneficiaryID {
			out = append(out, copySponsorship(sp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) createPlanLocked(p *hmo.Plan) error {
	if _, ok := m.plans[p.ID]; ok {
		return &ledger.InvalidStateError{Entity: "plan", ID: string(p.ID), Status: "existing", Operation: "create"}
	}
	m.plans[p.ID] = copyPlan(p)
	return nil
}

func (m *Memory) getPlanLocked(id hmo.PlanID) (*hmo.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "plan", ID: string(id)}
	}
	return copyPlan(p), nil
}

func (m *Memory) listPlansLocked() ([]*hmo.Plan, error) {
	var out []*hmo.Plan
	for _, p := range m.plans {
		out = append(out, copyPlan(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) createEnrollmentLocked(e *hmo.Enrollment) error {
	if _, ok := m.enrollments[e.ID]; ok {
		return &ledger.InvalidStateError{Entity: "enrollment", ID: string(e.ID), Status: "existing", Operation: "create"}
	}
	m.enrollments[e.ID] = copyEnrollment(e)
	return nil
}

func (m *Memory) getEnrollmentLocked(id hmo.EnrollmentID) (*hmo.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "enrollment", ID: string(id)}
	}
	return copyEnrollment(e), nil
}

func (m *Memory) updateEnrollmentLocked(e *hmo.Enrollment) error {
	stored, ok := m.enrollments[e.ID]
	if !ok {
		return &ledger.NotFoundError{Entity: "enrollment", ID: string(e.ID)}
	}
	if stored.Version != e.Version {
		return ledger.ErrConcurrencyConflict
	}
	e.Version++
	m.enrollments[e.ID] = copyEnrollment(e)
	return nil
}

func (m *Memory) createClaimLocked(c *hmo.Claim) error {
	if _, ok := m.claims[c.ID]; ok {
		return &ledger.InvalidStateError{Entity: "claim", ID: string(c.ID), Status: "existing", Operation: "create"}
	}
	if _, ok := m.claimByNumber[c.Number]; ok {
		return ledger.ErrDuplicateReference
	}
	m.claims[c.ID] = copyClaim(c)
	m.claimByNumber[c.Number] = c.ID
	return nil
}

func (m *Memory) getClaimLocked(id hmo.ClaimID) (*hmo.Claim, error) {
	c, ok := m.claims[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "claim", ID: string(id)}
	}
	return copyClaim(c), nil
}

func (m *Memory) getClaimByNumberLocked(number string) (*hmo.Claim, error) {
	id, ok := m.claimByNumber[number]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "claim", ID: number}
	}
	return m.getClaimLocked(id)
}

func (m *Memory) updateClaimLocked(c *hmo.Claim) error {
	stored, ok := m.claims[c.ID]
	if !ok {
		return &ledger.NotFoundError{Entity: "claim", ID: string(c.ID)}
	}
	if stored.Version != c.Version {
		return ledger.ErrConcurrencyConflict
	}
	c.Version++
	m.claims[c.ID] = copyClaim(c)
	return nil
}

func (m *Memory) listClaimsByEnrollmentLocked(id hmo.EnrollmentID) ([]*hmo.Claim, error) {
	var out []*hmo.Claim
	for _, c := range m.claims {
		if c.EnrollmentID == id {
			out = append(out, copyClaim(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// TX VIEW - Store handed to WithTx callbacks (mutex already held)
// =============================================================================

type txView struct {
	parent *Memory
}

func (v *txView) CreateWallet(ctx context.Context, w *ledger.Wallet) error {
	return v.parent.createWalletLocked(w)
}
func (v *txView) GetWallet(ctx context.Context, id ledger.WalletID) (*ledger.Wallet, error) {
	return v.parent.getWalletLocked(id)
}
func (v *txView) UpdateWallet(ctx context.Context, w *ledger.Wallet) error {
	return v.parent.updateWalletLocked(w)
}
func (v *txView) AppendTransaction(ctx context.Context, t *ledger.Transaction) error {
	return v.parent.appendTransactionLocked(t)
}
func (v *txView) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	return v.parent.getTransactionLocked(id)
}
func (v *txView) GetTransactionByReference(ctx context.Context, ref string) (*ledger.Transaction, error) {
	return v.parent.getTransactionByReferenceLocked(ref)
}
func (v *txView) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	return v.parent.updateTransactionLocked(t)
}
func (v *txView) ListTransactionsByWallet(ctx context.Context, id ledger.WalletID, from, to time.Time) ([]*ledger.Transaction, error) {
	return v.parent.listTransactionsByWalletLocked(id, from, to)
}
func (v *txView) CreateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	return v.parent.createSponsorshipLocked(sp)
}
func (v *txView) GetSponsorship(ctx context.Context, id sponsorship.SponsorshipID) (*sponsorship.Sponsorship, error) {
	return v.parent.getSponsorshipLocked(id)
}
func (v *txView) UpdateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	return v.parent.updateSponsorshipLocked(sp)
}
func (v *txView) ListSponsorshipsByBeneficiary(ctx context.Context, beneficiaryID string) ([]*sponsorship.Sponsorship, error) {
	return v.parent.listSponsorshipsByBeneficiaryLocked(beneficiaryID)
}
func (v *txView) CreatePlan(ctx context.Context, p *hmo.Plan) error {
	return v.parent.createPlanLocked(p)
}
func (v *txView) GetPlan(ctx context.Context, id hmo.PlanID) (*hmo.Plan, error) {
	return v.parent.getPlanLocked(id)
}
func (v *txView) ListPlans(ctx context.Context) ([]*hmo.Plan, error) {
	return v.parent.listPlansLocked()
}
func (v *txView) CreateEnrollment(ctx context.Context, e *hmo.Enrollment) error {
	return v.parent.createEnrollmentLocked(e)
}
func (v *txView) GetEnrollment(ctx context.Context, id hmo.EnrollmentID) (*hmo.Enrollment, error) {
	return v.parent.getEnrollmentLocked(id)
}
func (v *txView) UpdateEnrollment(ctx context.Context, e *hmo.Enrollment) error {
	return v.parent.updateEnrollmentLocked(e)
}
func (v *txView) CreateClaim(ctx context.Context, c *hmo.Claim) error {
	return v.parent.createClaimLocked(c)
}
func (v *txView) GetClaim(ctx context.Context, id hmo.ClaimID) (*hmo.Claim, error) {
	return v.parent.getClaimLocked(id)
}
func (v *txView) GetClaimByNumber(ctx context.Context, number string) (*hmo.Claim, error) {
	return v.parent.getClaimByNumberLocked(number)
}
func (v *txView) UpdateClaim(ctx context.Context, c *hmo.Claim) error {
	return v.parent.updateClaimLocked(c)
}
func (v *txView) ListClaimsByEnrollment(ctx context.Context, id hmo.EnrollmentID) ([]*hmo.Claim, error) {
	return v.parent.listClaimsByEnrollmentLocked(id)
}

// =============================================================================
// SNAPSHOT / RESTORE
// =============================================================================

type memorySnapshot struct {
	wallets       map[ledger.WalletID]*ledger.Wallet
	txs           map[ledger.TransactionID]*ledger.Transaction
	txByRef       map[string]ledger.TransactionID
	sponsorships  map[sponsorship.SponsorshipID]*sponsorship.Sponsorship
	plans         map[hmo.PlanID]*hmo.Plan
	enrollments   map[hmo.EnrollmentID]*hmo.Enrollment
	claims        map[hmo.ClaimID]*hmo.Claim
	claimByNumber map[string]hmo.ClaimID
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		wallets:       make(map[ledger.WalletID]*ledger.Wallet, len(m.wallets)),
		txs:           make(map[ledger.TransactionID]*ledger.Transaction, len(m.txs)),
		txByRef:       make(map[string]ledger.TransactionID, len(m.txByRef)),
		sponsorships:  make(map[sponsorship.SponsorshipID]*sponsorship.Sponsorship, len(m.sponsorships)),
		plans:         make(map[hmo.PlanID]*hmo.Plan, len(m.plans)),
		enrollments:   make(map[hmo.EnrollmentID]*hmo.Enrollment, len(m.enrollments)),
		claims:        make(map[hmo.ClaimID]*hmo.Claim, len(m.claims)),
		claimByNumber: make(map[string]hmo.ClaimID, len(m.claimByNumber)),
	}
	for k, v := range m.wallets {
		s.wallets[k] = copyWallet(v)
	}
	for k, v := range m.txs {
		s.txs[k] = copyTransaction(v)
	}
	for k, v := range m.txByRef {
		s.txByRef[k] = v
	}
	for k, v := range m.sponsorships {
		s.sponsorships[k] = copySponsorship(v)
	}
	for k, v := range m.plans {
		s.plans[k] = copyPlan(v)
	}
	for k, v := range m.enrollments {
		s.enrollments[k] = copyEnrollment(v)
	}
	for k, v := range m.claims {
		s.claims[k] = copyClaim(v)
	}
	for k, v := range m.claimByNumber {
		s.claimByNumber[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.wallets = s.wallets
	m.txs = s.txs
	m.txByRef = s.txByRef
	m.sponsorships = s.sponsorships
	m.plans = s.plans
	m.enrollments = s.enrollments
	m.claims = s.claims
	m.claimByNumber = s.claimByNumber
}

// =============================================================================
// DEEP COPIES
// =============================================================================

func copyWallet(w *ledger.Wallet) *ledger.Wallet {
	c := *w
	return &c
}

func copyParty(p *ledger.Party) *ledger.Party {
	if p == nil {
		return nil
	}
	c := *p
	if p.WalletID != nil {
		id := *p.WalletID
		c.WalletID = &id
	}
	return &c
}

func copyTransaction(t *ledger.Transaction) *ledger.Transaction {
	c := *t
	c.From = copyParty(t.From)
	c.To = copyParty(t.To)
	if t.Fee.HolderWalletID != nil {
		id := *t.Fee.HolderWalletID
		c.Fee.HolderWalletID = &id
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.ReversalOf != nil {
		id := *t.ReversalOf
		c.ReversalOf = &id
	}
	if t.ReversedBy != nil {
		id := *t.ReversedBy
		c.ReversedBy = &id
	}
	if t.SettledAt != nil {
		at := *t.SettledAt
		c.SettledAt = &at
	}
	return &c
}

func copySponsorship(sp *sponsorship.Sponsorship) *sponsorship.Sponsorship {
	c := *sp
	c.Utilizations = append([]sponsorship.Utilization(nil), sp.Utilizations...)
	c.Coverage.EligibleServices = append([]sponsorship.ServiceType(nil), sp.Coverage.EligibleServices...)
	c.Coverage.EligibleProviders = append([]string(nil), sp.Coverage.EligibleProviders...)
	c.Coverage.ExcludedServices = append([]sponsorship.ServiceType(nil), sp.Coverage.ExcludedServices...)
	if sp.ImpactByService != nil {
		c.ImpactByService = make(map[sponsorship.ServiceType]int64, len(sp.ImpactByService))
		for k, v := range sp.ImpactByService {
			c.ImpactByService[k] = v
		}
	}
	return &c
}

func copyPlan(p *hmo.Plan) *hmo.Plan {
	c := *p
	c.Rules = append([]hmo.CoverageRule(nil), p.Rules...)
	return &c
}

func copyEnrollment(e *hmo.Enrollment) *hmo.Enrollment {
	c := *e
	return &c
}

func copyClaim(cl *hmo.Claim) *hmo.Claim {
	c := *cl
	c.Service.DiagnosisCodes = append([]string(nil), cl.Service.DiagnosisCodes...)
	c.Service.ProcedureCodes = append([]string(nil), cl.Service.ProcedureCodes...)
	c.Billing.Items = append([]hmo.LineItem(nil), cl.Billing.Items...)
	c.Billing.Notes = append([]string(nil), cl.Billing.Notes...)
	c.History = append([]hmo.StatusChange(nil), cl.History...)
	c.FraudFlags = append([]string(nil), cl.FraudFlags...)
	if cl.Appeal != nil {
		a := *cl.Appeal
		c.Appeal = &a
	}
	if cl.Billing.Payment != nil {
		p := *cl.Billing.Payment
		c.Billing.Payment = &p
	}
	return &c
}
