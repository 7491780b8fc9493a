/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All expected business outcomes in one place. Domain packages wrap these
  with additional context; the API layer maps them to HTTP statuses.

ERROR CATEGORIES:
  1. Lookup errors      - identifier does not resolve
  2. State errors       - operation illegal for current lifecycle status
  3. Balance errors     - funds/allocation/limit checks
  4. Concurrency errors - atomic unit lost a race, caller should retry

USAGE:
  Callers branch with errors.Is:

    if errors.Is(err, ledger.ErrInsufficientFunds) {
        // render "top up your wallet"
    }

SEE ALSO:
  - manager.go, processor.go: Producers of these errors
  - api/handlers.go: HTTP status mapping
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an identifier does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is illegal for the
	// record's current lifecycle status (e.g. reversing a pending transaction).
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrInsufficientFunds is returned when a debit exceeds available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientSponsorshipFunds is returned when a utilization exceeds
	// the sponsorship's remaining allocation.
	ErrInsufficientSponsorshipFunds = errors.New("insufficient sponsorship funds")

	// ErrLimitExceeded is returned when an enrollment cap leaves no headroom.
	ErrLimitExceeded = errors.New("coverage limit exceeded")

	// ErrPreApprovalRequired is returned when a utilization above the
	// sponsorship's approval threshold arrives without pre-approval.
	ErrPreApprovalRequired = errors.New("pre-approval required")

	// ErrCurrencyMismatch is returned when amounts of different currencies
	// meet. Cross-currency movement is not supported.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrConcurrencyConflict is returned when an optimistic update lost a
	// race. The caller should re-read and retry.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// ErrDuplicateReference is returned when a transaction with the same
	// dedup reference already exists. Expected behavior for retries.
	ErrDuplicateReference = errors.New("duplicate transaction reference")

	// ErrWalletInactive is returned when a frozen or closed wallet is asked
	// to transact.
	ErrWalletInactive = errors.New("wallet not active")

	// ErrStoreRequired is returned when an operation needs a store that
	// implements a domain extension interface and the configured one doesn't.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	WalletID  WalletID
	Available Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in wallet %s: available %s, requested %s",
		e.WalletID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// CurrencyMismatchError provides the two currencies that met.
type CurrencyMismatchError struct {
	WalletCurrency Currency
	AmountCurrency Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: wallet holds %s, amount is %s",
		e.WalletCurrency, e.AmountCurrency)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// InvalidStateError names the record, its status and the attempted operation.
type InvalidStateError struct {
	Entity    string
	ID        string
	Status    string
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s: cannot %s", e.Entity, e.ID, e.Status, e.Operation)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to the caller's request
// rather than an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientSponsorshipFunds) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrPreApprovalRequired) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrDuplicateReference) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrWalletInactive)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
