/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements persistence for every engine entity (wallets, transactions,
  sponsorships, plans, enrollments, claims) using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  ledger.Store / ledger.TxStore
  sponsorship.Store
  hmo.Store

APPEND-ONLY ENFORCEMENT:
  The transactions table is the ledger. Rows are inserted once and only
  their status block (status, failure_reason, reversal links, settled_at)
  is ever updated; amounts and parties are immutable. Corrections happen
  via reversal transactions.

SCHEMA SHAPE:
  Queryable fields get flat columns (ids, statuses, amounts, windows).
  Nested blocks that are only ever read back whole are stored as JSON
  (wallet stats, coverage rules, utilization logs, plan rules, limit
  snapshots, claim billing and history).

CONCURRENCY:
  Mutating entities carry a version column checked with a compare-and-set
  UPDATE (WHERE id = ? AND version = ?). Zero rows affected with an
  existing row means a concurrent writer won and the caller gets
  ledger.ErrConcurrencyConflict. WithTx wraps a database transaction and
  a mutex so a unit of work commits or rolls back as one.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/benefits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/caremesh/benefits-engine/hmo"
	"github.com/caremesh/benefits-engine/ledger"
	"github.com/caremesh/benefits-engine/sponsorship"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query code
// serves direct calls and WithTx units.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single pooled connection keeps ":memory:" databases coherent and
	// sidesteps SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		available TEXT NOT NULL,
		pending TEXT NOT NULL,
		reserved TEXT NOT NULL,
		stats_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallets_owner ON wallets(owner_id);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		reference TEXT,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		from_wallet_id TEXT,
		from_user_id TEXT,
		to_wallet_id TEXT,
		to_user_id TEXT,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		fee_amount TEXT NOT NULL,
		fee_holder_wallet_id TEXT,
		description TEXT,
		failure_reason TEXT,
		metadata_json TEXT,
		reversal_of TEXT,
		reversed_by TEXT,
		created_at TEXT NOT NULL,
		settled_at TEXT
	);

	-- Reference is the caller-supplied dedup key; unique when present
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference) WHERE reference IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_from_wallet
		ON transactions(from_wallet_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_to_wallet
		ON transactions(to_wallet_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_fee_holder
		ON transactions(fee_holder_wallet_id) WHERE fee_holder_wallet_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS sponsorships (
		id TEXT PRIMARY KEY,
		sponsor_id TEXT NOT NULL,
		beneficiary_id TEXT NOT NULL,
		sponsor_wallet_id TEXT NOT NULL,
		beneficiary_wallet_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		currency TEXT NOT NULL,
		allocated TEXT NOT NULL,
		used TEXT NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		coverage_json TEXT NOT NULL,
		utilizations_json TEXT NOT NULL,
		impact_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sponsorships_beneficiary
		ON sponsorships(beneficiary_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sponsorships_sponsor
		ON sponsorships(sponsor_id);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tier TEXT NOT NULL,
		currency TEXT NOT NULL,
		premium TEXT NOT NULL,
		annual_maximum TEXT NOT NULL,
		lifetime_maximum TEXT NOT NULL,
		deductible TEXT NOT NULL,
		max_out_of_pocket TEXT NOT NULL,
		rules_json TEXT NOT NULL,
		insurer_wallet_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		subscriber_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		cadence TEXT NOT NULL,
		status TEXT NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		limits_json TEXT NOT NULL,
		usage_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_subscriber
		ON enrollments(subscriber_id);
	CREATE INDEX IF NOT EXISTS idx_enrollments_plan
		ON enrollments(plan_id);

	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		enrollment_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		claimant_kind TEXT NOT NULL,
		claimant_id TEXT NOT NULL,
		billing_wallet_id TEXT NOT NULL,
		status TEXT NOT NULL,
		service_json TEXT NOT NULL,
		billing_json TEXT NOT NULL,
		history_json TEXT NOT NULL,
		appeal_json TEXT,
		fraud_flags_json TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Claim numbers double as submission dedup keys
	CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_number ON claims(number);
	CREATE INDEX IF NOT EXISTS idx_claims_enrollment
		ON claims(enrollment_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The mutex
// serializes units: read-check-write sequences inside fn see a stable
// snapshot and commit atomically.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the Store view handed to WithTx callbacks. It routes every
// call through the open *sql.Tx.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) CreateWallet(ctx context.Context, w *ledger.Wallet) error {
	return ts.parent.createWallet(ctx, ts.tx, w)
}
func (ts *txStore) GetWallet(ctx context.Context, id ledger.WalletID) (*ledger.Wallet, error) {
	return ts.parent.getWallet(ctx, ts.tx, id)
}
func (ts *txStore) UpdateWallet(ctx context.Context, w *ledger.Wallet) error {
	return ts.parent.updateWallet(ctx, ts.tx, w)
}
func (ts *txStore) AppendTransaction(ctx context.Context, t *ledger.Transaction) error {
	return ts.parent.appendTransaction(ctx, ts.tx, t)
}
func (ts *txStore) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	return ts.parent.getTransaction(ctx, ts.tx, id)
}
func (ts *txStore) GetTransactionByReference(ctx context.Context, ref string) (*ledger.Transaction, error) {
	return ts.parent.getTransactionByReference(ctx, ts.tx, ref)
}
func (ts *txStore) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	return ts.parent.updateTransaction(ctx, ts.tx, t)
}
func (ts *txStore) ListTransactionsByWallet(ctx context.Context, id ledger.WalletID, from, to time.Time) ([]*ledger.Transaction, error) {
	return ts.parent.listTransactionsByWallet(ctx, ts.tx, id, from, to)
}
func (ts *txStore) CreateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	return ts.parent.createSponsorship(ctx, ts.tx, sp)
}
func (ts *txStore) GetSponsorship(ctx context.Context, id sponsorship.SponsorshipID) (*sponsorship.Sponsorship, error) {
	return ts.parent.getSponsorship(ctx, ts.tx, id)
}
func (ts *txStore) UpdateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	return ts.parent.updateSponsorship(ctx, ts.tx, sp)
}
func (ts *txStore) ListSponsorshipsByBeneficiary(ctx context.Context, beneficiaryID string) ([]*sponsorship.Sponsorship, error) {
	return ts.parent.listSponsorshipsByBeneficiary(ctx, ts.tx, beneficiaryID)
}
func (ts *txStore) CreatePlan(ctx context.Context, p *hmo.Plan) error {
	return ts.parent.createPlan(ctx, ts.tx, p)
}
func (ts *txStore) GetPlan(ctx context.Context, id hmo.PlanID) (*hmo.Plan, error) {
	return ts.parent.getPlan(ctx, ts.tx, id)
}
func (ts *txStore) ListPlans(ctx context.Context) ([]*hmo.Plan, error) {
	return ts.parent.listPlans(ctx, ts.tx)
}
func (ts *txStore) CreateEnrollment(ctx context.Context, e *hmo.Enrollment) error {
	return ts.parent.createEnrollment(ctx, ts.tx, e)
}
func (ts *txStore) GetEnrollment(ctx context.Context, id hmo.EnrollmentID) (*hmo.Enrollment, error) {
	return ts.parent.getEnrollment(ctx, ts.tx, id)
}
func (ts *txStore) UpdateEnrollment(ctx context.Context, e *hmo.Enrollment) error {
	return ts.parent.updateEnrollment(ctx, ts.tx, e)
}
func (ts *txStore) CreateClaim(ctx context.Context, c *hmo.Claim) error {
	return ts.parent.createClaim(ctx, ts.tx, c)
}
func (ts *txStore) GetClaim(ctx context.Context, id hmo.ClaimID) (*hmo.Claim, error) {
	return ts.parent.getClaim(ctx, ts.tx, id)
}
func (ts *txStore) GetClaimByNumber(ctx context.Context, number string) (*hmo.Claim, error) {
	return ts.parent.getClaimByNumber(ctx, ts.tx, number)
}
func (ts *txStore) UpdateClaim(ctx context.Context, c *hmo.Claim) error {
	return ts.parent.updateClaim(ctx, ts.tx, c)
}
func (ts *txStore) ListClaimsByEnrollment(ctx context.Context, id hmo.EnrollmentID) ([]*hmo.Claim, error) {
	return ts.parent.listClaimsByEnrollment(ctx, ts.tx, id)
}

// =============================================================================
// WALLET STORE (ledger.Store interface, direct calls)
// =============================================================================

func (s *Store) CreateWallet(ctx context.Context, w *ledger.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWallet(ctx, s.db, w)
}

func (s *Store) GetWallet(ctx context.Context, id ledger.WalletID) (*ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getWallet(ctx, s.db, id)
}

func (s *Store) UpdateWallet(ctx context.Context, w *ledger.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateWallet(ctx, s.db, w)
}

func (s *Store) AppendTransaction(ctx context.Context, t *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTransaction(ctx, s.db, t)
}

func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTransaction(ctx, s.db, id)
}

func (s *Store) GetTransactionByReference(ctx context.Context, ref string) (*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTransactionByReference(ctx, s.db, ref)
}

func (s *Store) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTransaction(ctx, s.db, t)
}

func (s *Store) ListTransactionsByWallet(ctx context.Context, id ledger.WalletID, from, to time.Time) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listTransactionsByWallet(ctx, s.db, id, from, to)
}

func (s *Store) createWallet(ctx context.Context, db dbtx, w *ledger.Wallet) error {
	statsJSON, _ := json.Marshal(w.Stats)

	query := `
		INSERT INTO wallets
		(id, owner_id, kind, currency, status, available, pending, reserved,
		 stats_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		w.ID, w.OwnerID, w.Kind, w.Currency, w.Status,
		w.Available.String(), w.Pending.String(), w.Reserved.String(),
		string(statsJSON), w.Version,
		formatTime(w.CreatedAt), formatTime(w.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (s *Store) getWallet(ctx context.Context, db dbtx, id ledger.WalletID) (*ledger.Wallet, error) {
	query := `
		SELECT id, owner_id, kind, currency, status, available, pending, reserved,
		       stats_json, version, created_at, updated_at
		FROM wallets WHERE id = ?
	`

	var (
		w                    ledger.Wallet
		available            string
		pending              string
		reserved             string
		statsJSON            string
		createdAt, updatedAt string
	)
	err := db.QueryRowContext(ctx, query, id).Scan(
		&w.ID, &w.OwnerID, &w.Kind, &w.Currency, &w.Status,
		&available, &pending, &reserved,
		&statsJSON, &w.Version, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Entity: "wallet", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	w.Available = ledger.MustParseDecimal(available)
	w.Pending = ledger.MustParseDecimal(pending)
	w.Reserved = ledger.MustParseDecimal(reserved)
	json.Unmarshal([]byte(statsJSON), &w.Stats)
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}

func (s *Store) updateWallet(ctx context.Context, db dbtx, w *ledger.Wallet) error {
	statsJSON, _ := json.Marshal(w.Stats)

	query := `
		UPDATE wallets SET
			status = ?, available = ?, pending = ?, reserved = ?,
			stats_json = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := db.ExecContext(ctx, query,
		w.Status, w.Available.String(), w.Pending.String(), w.Reserved.String(),
		string(statsJSON), formatTime(w.UpdatedAt),
		w.ID, w.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if err := casOutcome(ctx, db, res, "wallets", "wallet", string(w.ID)); err != nil {
		return err
	}
	w.Version++
	return nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (s *Store) appendTransaction(ctx context.Context, db dbtx, t *ledger.Transaction) error {
	metadataJSON, _ := json.Marshal(t.Metadata)

	query := `
		INSERT INTO transactions
		(id, reference, kind, status, from_wallet_id, from_user_id,
		 to_wallet_id, to_user_id, amount, currency, fee_amount,
		 fee_holder_wallet_id, description, failure_reason, metadata_json,
		 reversal_of, reversed_by, created_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	fromWallet, fromUser := partyColumns(t.From)
	toWallet, toUser := partyColumns(t.To)

	_, err := db.ExecContext(ctx, query,
		t.ID, nullString(t.Reference), t.Kind, t.Status,
		fromWallet, fromUser, toWallet, toUser,
		t.Amount.Amount.String(), t.Amount.Currency,
		t.Fee.Amount.String(), nullWalletID(t.Fee.HolderWalletID),
		t.Description, t.FailureReason, string(metadataJSON),
		nullTxID(t.ReversalOf), nullTxID(t.ReversedBy),
		formatTime(t.CreatedAt), nullTime(t.SettledAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

const transactionColumns = `
	id, reference, kind, status, from_wallet_id, from_user_id,
	to_wallet_id, to_user_id, amount, currency, fee_amount,
	fee_holder_wallet_id, description, failure_reason, metadata_json,
	reversal_of, reversed_by, created_at, settled_at
`

func (s *Store) getTransaction(ctx context.Context, db dbtx, id ledger.TransactionID) (*ledger.Transaction, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Entity: "transaction", ID: string(id)}
	}
	return t, err
}

func (s *Store) getTransactionByReference(ctx context.Context, db dbtx, ref string) (*ledger.Transaction, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE reference = ?", ref)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Entity: "transaction", ID: ref}
	}
	return t, err
}

// updateTransaction advances the status block only. Amounts and parties
// are append-only and never touched after insert.
func (s *Store) updateTransaction(ctx context.Context, db dbtx, t *ledger.Transaction) error {
	metadataJSON, _ := json.Marshal(t.Metadata)

	query := `
		UPDATE transactions SET
			status = ?, failure_reason = ?, metadata_json = ?,
			reversal_of = ?, reversed_by = ?, settled_at = ?
		WHERE id = ?
	`

	res, err := db.ExecContext(ctx, query,
		t.Status, t.FailureReason, string(metadataJSON),
		nullTxID(t.ReversalOf), nullTxID(t.ReversedBy), nullTime(t.SettledAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &ledger.NotFoundError{Entity: "transaction", ID: string(t.ID)}
	}
	return nil
}

func (s *Store) listTransactionsByWallet(ctx context.Context, db dbtx, id ledger.WalletID, from, to time.Time) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (from_wallet_id = ? OR to_wallet_id = ? OR fee_holder_wallet_id = ?)
		  AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC
	`

	rows, err := db.QueryContext(ctx, query, id, id, id,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scannable is satisfied by *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanTransaction(row scannable) (*ledger.Transaction, error) {
	var (
		t                  ledger.Transaction
		reference          sql.NullString
		fromWallet         sql.NullString
		fromUser           sql.NullString
		toWallet           sql.NullString
		toUser             sql.NullString
		amount             string
		feeAmount          string
		feeHolder          sql.NullString
		description        sql.NullString
		failureReason      sql.NullString
		metadataJSON       sql.NullString
		reversalOf         sql.NullString
		reversedBy         sql.NullString
		createdAt          string
		settledAt          sql.NullString
	)

	err := row.Scan(
		&t.ID, &reference, &t.Kind, &t.Status,
		&fromWallet, &fromUser, &toWallet, &toUser,
		&amount, &t.Amount.Currency, &feeAmount, &feeHolder,
		&description, &failureReason, &metadataJSON,
		&reversalOf, &reversedBy, &createdAt, &settledAt,
	)
	if err != nil {
		return nil, err
	}

	t.Reference = reference.String
	t.From = scanParty(fromWallet, fromUser)
	t.To = scanParty(toWallet, toUser)
	t.Amount.Amount = ledger.MustParseDecimal(amount)
	t.Fee.Amount = ledger.MustParseDecimal(feeAmount)
	if feeHolder.Valid {
		id := ledger.WalletID(feeHolder.String)
		t.Fee.HolderWalletID = &id
	}
	t.Description = description.String
	t.FailureReason = failureReason.String
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		json.Unmarshal([]byte(metadataJSON.String), &t.Metadata)
	}
	if reversalOf.Valid {
		id := ledger.TransactionID(reversalOf.String)
		t.ReversalOf = &id
	}
	if reversedBy.Valid {
		id := ledger.TransactionID(reversedBy.String)
		t.ReversedBy = &id
	}
	t.CreatedAt = parseTime(createdAt)
	if settledAt.Valid {
		at := parseTime(settledAt.String)
		t.SettledAt = &at
	}
	return &t, nil
}

func partyColumns(p *ledger.Party) (wallet, user sql.NullString) {
	if p == nil {
		return sql.NullString{}, sql.NullString{}
	}
	if p.WalletID != nil {
		wallet = sql.NullString{String: string(*p.WalletID), Valid: true}
	}
	user = nullString(p.UserID)
	return wallet, user
}

func scanParty(wallet, user sql.NullString) *ledger.Party {
	if !wallet.Valid && !user.Valid {
		return nil
	}
	p := &ledger.Party{UserID: user.String}
	if wallet.Valid {
		id := ledger.WalletID(wallet.String)
		p.WalletID = &id
	}
	return p
}

// =============================================================================
// SPONSORSHIP STORE
// =============================================================================

func (s *Store) CreateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSponsorship(ctx, s.db, sp)
}

func (s *Store) GetSponsorship(ctx context.Context, id sponsorship.SponsorshipID) (*sponsorship.Sponsorship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSponsorship(ctx, s.db, id)
}

func (s *Store) UpdateSponsorship(ctx context.Context, sp *sponsorship.Sponsorship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSponsorship(ctx, s.db, sp)
}

func (s *Store) ListSponsorshipsByBeneficiary(ctx context.Context, beneficiaryID string) ([]*sponsorship.Sponsorship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listSponsorshipsByBeneficiary(ctx, s.db, beneficiaryID)
}

func (s *Store) createSponsorship(ctx context.Context, db dbtx, sp *sponsorship.Sponsorship) error {
	coverageJSON, _ := json.Marshal(sp.Coverage)
	utilizationsJSON, _ := json.Marshal(sp.Utilizations)
	impactJSON, _ := json.Marshal(sp.ImpactByService)

	query := `
		INSERT INTO sponsorships
		(id, sponsor_id, beneficiary_id, sponsor_wallet_id, beneficiary_wallet_id,
		 type, status, currency, allocated, used, window_start, window_end,
		 coverage_json, utilizations_json, impact_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		sp.ID, sp.SponsorID, sp.BeneficiaryID,
		sp.SponsorWalletID, sp.BeneficiaryWalletID,
		sp.Type, sp.Status, sp.Allocated.Currency,
		sp.Allocated.Amount.String(), sp.Used.Amount.String(),
		formatTime(sp.Window.Start), formatTime(sp.Window.End),
		string(coverageJSON), string(utilizationsJSON), string(impactJSON),
		sp.Version, formatTime(sp.CreatedAt), formatTime(sp.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create sponsorship: %w", err)
	}
	return nil
}

const sponsorshipColumns = `
	id, sponsor_id, beneficiary_id, sponsor_wallet_id, beneficiary_wallet_id,
	type, status, currency, allocated, used, window_start, window_end,
	coverage_json, utilizations_json, impact_json, version, created_at, updated_at
`

func (s *Store) getSponsorship(ctx context.Context, db dbtx, id sponsorship.SponsorshipID) (*sponsorship.Sponsorship, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+sponsorshipColumns+" FROM sponsorships WHERE id = ?", id)
	sp, err := scanSponsorship(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Entity: "sponsorship", ID: string(id)}
	}
	return sp, err
}

func (s *Store) updateSponsorship(ctx context.Context, db dbtx, sp *sponsorship.Sponsorship) error {
	coverageJSON, _ := json.Marshal(sp.Coverage)
	utilizationsJSON, _ := json.Marshal(sp.Utilizations)
	impactJSON, _ := json.Marshal(sp.ImpactByService)

	query := `
		UPDATE sponsorships SET
			status = ?, allocated = ?, used = ?, window_start = ?, window_end = ?,
			coverage_json = ?, utilizations_json = ?, impact_json = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := db.ExecContext(ctx, query,
		sp.Status, sp.Allocated.Amount.String(), sp.Used.Amount.String(),
		formatTime(sp.Window.Start), formatTime(sp.Window.End),
		string(coverageJSON), string(utilizationsJSON), string(impactJSON),
		formatTime(sp.UpdatedAt),
		sp.ID, sp.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update sponsorship: %w", err)
	}
	if err := casOutcome(ctx, db, res, "sponsorships", "sponsorship", string(sp.ID)); err != nil {
		return err
	}
	sp.Version++
	return nil
}

func (s *Store) listSponsorshipsByBeneficiary(ctx context.Context, db dbtx, beneficiaryID string) ([]*sponsorship.Sponsorship, error) {
	query := "SELECT " + sponsorshipColumns + `
		FROM sponsorships WHERE beneficiary_id = ? ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, beneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sponsorships: %w", err)
	}
	defer rows.Close()

	var out []*sponsorship.Sponsorship
	for rows.Next() {
		sp, err := scanSponsorship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func scanSponsorship(row scannable) (*sponsorship.Sponsorship, error) {
	var (
		sp                        sponsorship.Sponsorship
		currency                  ledger.Currency
		allocated, used           string
		windowStart, windowEnd    string
		coverageJSON              string
		utilizationsJSON          string
		impactJSON                string
		createdAt, updatedAt      string
	)

	err := row.Scan(
		&sp.ID, &sp.SponsorID, &sp.BeneficiaryID,
		&sp.SponsorWalletID, &sp.BeneficiaryWalletID,
		&sp.Type, &sp.Status, &currency, &allocated, &used,
		&windowStart, &windowEnd,
		&coverageJSON, &utilizationsJSON, &impactJSON,
		&sp.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sp.Allocated = ledger.NewMoney(ledger.MustParseDecimal(allocated), currency)
	sp.Used = ledger.NewMoney(ledger.MustParseDecimal(used), currency)
	sp.Window.Start = parseTime(windowStart)
	sp.Window.End = parseTime(windowEnd)
	json.Unmarshal([]byte(coverageJSON), &sp.Coverage)
	json.Unmarshal([]byte(utilizationsJSON), &sp.Utilizations)
	json.Unmarshal([]byte(impactJSON), &sp.ImpactByService)
	sp.CreatedAt = parseTime(createdAt)
	sp.UpdatedAt = parseTime(updatedAt)
	return &sp, nil
}

// =============================================================================
// PLAN STORE
// =============================================================================

func (s *Store) CreatePlan(ctx context.Context, p *hmo.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPlan(ctx, s.db, p)
}

func (s *Store) GetPlan(ctx context.Context, id hmo.PlanID) (*hmo.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPlan(ctx, s.db, id)
}

func (s *Store) ListPlans(ctx context.Context) ([]*hmo.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listPlans(ctx, s.db)
}

func (s *Store) createPlan(ctx context.Context, db dbtx, p *hmo.Plan) error {
	rulesJSON, _ := json.Marshal(p.Rules)

	query := `
		INSERT INTO plans
		(id, name, tier, currency, premium, annual_maximum, lifetime_maximum,
		 deductible, max_out_of_pocket, rules_json, insurer_wallet_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		p.ID, p.Name, p.Tier, p.Currency,
		p.Premium.Amount.String(), p.AnnualMaximum.Amount.String(),
		p.LifetimeMaximum.Amount.String(), p.Deductible.Amount.String(),
		p.MaxOutOfPocket.Amount.String(),
		string(rulesJSON), p.InsurerWalletID, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

const planColumns = `
	id, name, tier, currency, premium, annual_maximum, lifetime_maximum,
	deductible, max_out_of_pocket, rules_json, insurer_wallet_id, created_at
`

func (s *Store) getPlan(ctx context.Context, db dbtx, id hmo.PlanID) (*hmo.Plan, error) {
	row := db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Entity: "plan", ID: string(id)}
	}
	return p, err
}

func (s *Store) listPlans(ctx context.Context, db dbtx) ([]*hmo.Plan, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+planColumns+" FROM plans ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var out []*hmo.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row scannable) (*hmo.Plan, error) {
	var (
		p                                       hmo.Plan
		premium, annualMax, lifetimeMax         string
		deductible, maxOOP                      string
		rulesJSON                               string
		createdAt                               string
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.Tier, &p.Currency,
		&premium, &annualMax, &lifetimeMax, &deductible, &maxOOP,
		&rulesJSON, &p.InsurerWalletID, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.Premium = ledger.NewMoney(ledger.MustParseDecimal(premium), p.Currency)
	p.AnnualMaximum = ledger.NewMoney(ledger.MustParseDecimal(annualMax), p.Currency)
	p.LifetimeMaximum = ledger.NewMoney(ledger.MustParseDecimal(lifetimeMax), p.Currency)
	p.Deductible = ledger.NewMoney(ledger.MustParseDecimal(deductible), p.Currency)
	p.MaxOutOfPocket = ledger.NewMoney(ledger.MustParseDecimal(maxOOP), p.Currency)
	json.Unmarshal([]byte(rulesJSON), &p.Rules)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// =============================================================================
// ENROLLMENT STORE
// =============================================================================

func (s *Store) CreateEnrollment(ctx context.Context, e *hmo.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createEnrollment(ctx, s.db, e)
}

func (s *Store) GetEnrollment(ctx context.Context, id hmo.EnrollmentID) (*hmo.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getEnrollment(ctx, s.db, id)
}

func (s *Store) UpdateEnrollment(ctx context.Context, e *hmo.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEnrollment(ctx, s.db, e)
}

func (s *Store) createEnrollment(ctx context.Context, db dbtx, e *hmo.Enrollment) error {
	limitsJSON, _ := json.Marshal(e.Limits)
	usageJSON, _ := json.Marshal(e.Usage)

	query := `
		INSERT INTO enrollments
		(id, subscriber_id, plan_id, kind, cadence, status,
		 window_start, window_end, limits_json, usage_json,
		 version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		e.ID, e.SubscriberID, e.PlanID, e.Kind, e.Cadence, e.Status,
		formatTime(e.Window.Start), formatTime(e.Window.End),
		string(limitsJSON), string(usageJSON),
		e.Version, formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

func (s *Store) getEnrollment(ctx context.Context, db dbtx, id hmo.EnrollmentID) (*hmo.Enrollment, error) {
	query := `
		SELECT id, subscriber_id, plan_id, kind, cadence, status,
		       window_start, window_end, limits_json, usage_json,
		       version, created_at, updated_at
		FROM enrollments WHERE id = ?
	`

	var (
		e                      hmo.Enrollment
		windowStart, windowEnd string
		limitsJSON, usageJSON  string
		createdAt, updatedAt   string
	)
	err := db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.SubscriberID, &e.PlanID, &e.Kind, &e.Cadence, &e.Status,
		&windowStart, &windowEnd, &limitsJSON, &usageJSON,
		&e.Version, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Entity: "enrollment", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	e.Window.Start = parseTime(windowStart)
	e.Window.End = parseTime(windowEnd)
	json.Unmarshal([]byte(limitsJSON), &e.Limits)
	json.Unmarshal([]byte(usageJSON), &e.Usage)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func (s *Store) updateEnrollment(ctx context.Context, db dbtx, e *hmo.Enrollment) error {
	limitsJSON, _ := json.Marshal(e.Limits)
	usageJSON, _ := json.Marshal(e.Usage)

	query := `
		UPDATE enrollments SET
			status = ?, window_start = ?, window_end = ?,
			limits_json = ?, usage_json = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := db.ExecContext(ctx, query,
		e.Status, formatTime(e.Window.Start), formatTime(e.Window.End),
		string(limitsJSON), string(usageJSON), formatTime(e.UpdatedAt),
		e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if err := casOutcome(ctx, db, res, "enrollments", "enrollment", string(e.ID)); err != nil {
		return err
	}
	e.Version++
	return nil
}

// =============================================================================
// CLAIM STORE
// =============================================================================

func (s *Store) CreateClaim(ctx context.Context, c *hmo.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createClaim(ctx, s.db, c)
}

func (s *Store) GetClaim(ctx context.Context, id hmo.ClaimID) (*hmo.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getClaim(ctx, s.db, id)
}

func (s *Store) GetClaimByNumber(ctx context.Context, number string) (*hmo.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getClaimByNumber(ctx, s.db, number)
}

func (s *Store) UpdateClaim(ctx context.Context, c *hmo.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateClaim(ctx, s.db, c)
}

func (s *Store) ListClaimsByEnrollment(ctx context.Context, id hmo.EnrollmentID) ([]*hmo.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listClaimsByEnrollment(ctx, s.db, id)
}

func (s *Store) createClaim(ctx context.Context, db dbtx, c *hmo.Claim) error {
	serviceJSON, _ := json.Marshal(c.Service)
	billingJSON, _ := json.Marshal(c.Billing)
	historyJSON, _ := json.Marshal(c.History)
	appealJSON := marshalNullable(c.Appeal)
	fraudJSON, _ := json.Marshal(c.FraudFlags)

	query := `
		INSERT INTO claims
		(id, number, enrollment_id, plan_id, patient_id,
		 claimant_kind, claimant_id, billing_wallet_id, status,
		 service_json, billing_json, history_json, appeal_json, fraud_flags_json,
		 version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		c.ID, c.Number, c.EnrollmentID, c.PlanID, c.PatientID,
		c.Claimant.Kind, c.Claimant.ID, c.Claimant.BillingWalletID, c.Status,
		string(serviceJSON), string(billingJSON), string(historyJSON),
		appealJSON, string(fraudJSON),
		c.Version, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

const claimColumns = `
	id, number, enrollment_id, plan_id, patient_id,
	claimant_kind, claimant_id, billing_wallet_id, status,
	service_json, billing_json, history_json, appeal_json, fraud_flags_json,
	version, created_at, updated_at
`

func (s *Store) getClaim(ctx context.Context, db dbtx, id hmo.ClaimID) (*hmo.Claim, error) {
	row := db.QueryRowContext(ctx, "SELECT "+claimColumns+" FROM claims WHERE id = ?", id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Entity: "claim", ID: string(id)}
	}
	return c, err
}

func (s *Store) getClaimByNumber(ctx context.Context, db dbtx, number string) (*hmo.Claim, error) {
	row := db.QueryRowContext(ctx, "SELECT "+claimColumns+" FROM claims WHERE number = ?", number)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Entity: "claim", ID: number}
	}
	return c, err
}

func (s *Store) updateClaim(ctx context.Context, db dbtx, c *hmo.Claim) error {
	billingJSON, _ := json.Marshal(c.Billing)
	historyJSON, _ := json.Marshal(c.History)
	appealJSON := marshalNullable(c.Appeal)
	fraudJSON, _ := json.Marshal(c.FraudFlags)

	query := `
		UPDATE claims SET
			status = ?, billing_json = ?, history_json = ?,
			appeal_json = ?, fraud_flags_json = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := db.ExecContext(ctx, query,
		c.Status, string(billingJSON), string(historyJSON),
		appealJSON, string(fraudJSON), formatTime(c.UpdatedAt),
		c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	if err := casOutcome(ctx, db, res, "claims", "claim", string(c.ID)); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (s *Store) listClaimsByEnrollment(ctx context.Context, db dbtx, id hmo.EnrollmentID) ([]*hmo.Claim, error) {
	query := "SELECT " + claimColumns + `
		FROM claims WHERE enrollment_id = ? ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var out []*hmo.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanClaim(row scannable) (*hmo.Claim, error) {
	var (
		c                    hmo.Claim
		serviceJSON          string
		billingJSON          string
		historyJSON          string
		appealJSON           sql.NullString
		fraudJSON            sql.NullString
		createdAt, updatedAt string
	)

	err := row.Scan(
		&c.ID, &c.Number, &c.EnrollmentID, &c.PlanID, &c.PatientID,
		&c.Claimant.Kind, &c.Claimant.ID, &c.Claimant.BillingWalletID, &c.Status,
		&serviceJSON, &billingJSON, &historyJSON, &appealJSON, &fraudJSON,
		&c.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(serviceJSON), &c.Service)
	json.Unmarshal([]byte(billingJSON), &c.Billing)
	json.Unmarshal([]byte(historyJSON), &c.History)
	if appealJSON.Valid && appealJSON.String != "" && appealJSON.String != "null" {
		var a hmo.Appeal
		json.Unmarshal([]byte(appealJSON.String), &a)
		c.Appeal = &a
	}
	if fraudJSON.Valid && fraudJSON.String != "" && fraudJSON.String != "null" {
		json.Unmarshal([]byte(fraudJSON.String), &c.FraudFlags)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// Helper functions

// casOutcome interprets a compare-and-set UPDATE that affected zero rows:
// a row that exists under another version means a concurrent writer won.
func casOutcome(ctx context.Context, db dbtx, res sql.Result, table, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+" WHERE id = ?", id,
	).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return &ledger.NotFoundError{Entity: entity, ID: id}
	}
	return ledger.ErrConcurrencyConflict
}

// timeLayout is RFC3339 with a fixed-width fraction. RFC3339Nano trims
// trailing zeros, which breaks the lexicographic ordering the created_at
// filters and ORDER BY clauses rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullWalletID(id *ledger.WalletID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullTxID(id *ledger.TransactionID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func marshalNullable(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
