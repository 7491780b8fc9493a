/*
Package ledger provides the core benefits & ledger engine.

PURPOSE:
  This package contains the money-correctness core shared by every benefits
  domain: wallets, ledger entries, and the processors that move value between
  them. Sponsorships and HMO claims are built on top of this package but the
  engine itself knows nothing about either domain.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount with a currency code
  - Party: One side of a value movement (wallet and/or user reference)
  - Fee: The portion of a movement attributed to a fee holder
  - Typed IDs: WalletID, TransactionID etc. prevent mixing identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Immutability: Ledger entries are never edited, only reversed
  3. Type Safety: Strong typing for IDs and closed enums for kinds/statuses
  4. Atomicity: Balance mutation and ledger entry commit together or not at all

USAGE:
  amount := ledger.NewMoney(decimal.NewFromInt(200), ledger.NGN)
  tx, err := processor.Initiate(ctx, ledger.InitiateInput{
      Kind:   ledger.KindPayment,
      From:   ledger.WalletParty(payerWallet),
      To:     ledger.WalletParty(clinicWallet),
      Amount: amount,
  })

SEE ALSO:
  - wallet.go: Wallet entity and balance invariants
  - transaction.go: Ledger entry entity and status transitions
  - manager.go: WalletManager (credit/debit/reserve/release)
  - processor.go: TransactionProcessor (initiate/complete/fail/reverse)
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount with currency
// =============================================================================

type Currency string

const (
	NGN Currency = "NGN"
	USD Currency = "USD"
)

type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func NewMoneyFromInt(amount int64, currency Currency) Money {
	return Money{Amount: decimal.NewFromInt(amount), Currency: currency}
}

func Zero(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Arithmetic assumes operands share a currency. Operations that accept
// caller-supplied amounts must check SameCurrency first and fail with
// ErrCurrencyMismatch; see WalletManager.
func (m Money) Add(b Money) Money          { return Money{Amount: m.Amount.Add(b.Amount), Currency: m.Currency} }
func (m Money) Sub(b Money) Money          { return Money{Amount: m.Amount.Sub(b.Amount), Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Amount: m.Amount.Mul(s), Currency: m.Currency} }
func (m Money) Div(s decimal.Decimal) Money { return Money{Amount: m.Amount.Div(s), Currency: m.Currency} }
func (m Money) Neg() Money                 { return Money{Amount: m.Amount.Neg(), Currency: m.Currency} }

func (m Money) IsZero() bool           { return m.Amount.IsZero() }
func (m Money) IsNegative() bool       { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool       { return m.Amount.IsPositive() }
func (m Money) LessThan(b Money) bool  { return m.Amount.LessThan(b.Amount) }
func (m Money) GreaterThan(b Money) bool { return m.Amount.GreaterThan(b.Amount) }
func (m Money) Equal(b Money) bool     { return m.Currency == b.Currency && m.Amount.Equal(b.Amount) }
func (m Money) SameCurrency(b Money) bool { return m.Currency == b.Currency }

func (m Money) Min(b Money) Money {
	if m.LessThan(b) {
		return m
	}
	return b
}

func (m Money) Max(b Money) Money {
	if m.GreaterThan(b) {
		return m
	}
	return b
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.String(), m.Currency)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WalletID string
type TransactionID string

// =============================================================================
// PARTY - One side of a value movement
// =============================================================================

// Party identifies one counterparty of a transaction. A party may be a
// wallet (internal), a user without a wallet reference, or absent entirely
// for movements against an external rail (deposits and withdrawals).
type Party struct {
	WalletID *WalletID
	UserID   string
}

func WalletParty(id WalletID) *Party {
	return &Party{WalletID: &id}
}

func UserWalletParty(userID string, id WalletID) *Party {
	return &Party{WalletID: &id, UserID: userID}
}

// External returns a nil party, representing a rail outside the ledger.
func External() *Party { return nil }

// =============================================================================
// FEE - Portion of a movement retained by a fee holder
// =============================================================================

// Fee describes the fee taken out of a transaction's amount. The payee is
// credited Amount−Fee and the fee holder wallet (usually the platform pool)
// is credited the fee. Value is conserved across all three parties.
type Fee struct {
	Amount         decimal.Decimal
	HolderWalletID *WalletID
}

func NoFee() Fee { return Fee{Amount: decimal.Zero} }

func (f Fee) IsZero() bool { return f.Amount.IsZero() }
