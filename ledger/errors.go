/*
errors.go - Centralized error taxonomy for the allocation core

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every error is local and recoverable from the caller's perspective;
  the core never retries automatically and never masks storage errors.

ERROR CATEGORIES:
  1. Input errors     - Bad shares or totals; caller must fix input
  2. State errors     - Mutation forbidden by the current status
  3. Not-found errors - Missing purchase/distribution/template
  4. Storage errors   - Persistence boundary failures, wrapped not hidden

USAGE:
  if errors.Is(err, ledger.ErrInvalidShares) { ... }

  var shareErr *ledger.InvalidSharesError
  if errors.As(err, &shareErr) {
      fmt.Println(shareErr.Participant, shareErr.Shares)
  }

SEE ALSO:
  - normalize.go: Returns input errors
  - status.go: Returns state errors
  - store/sqlite: Wraps failures as StorageError
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidShares is returned when total shares are <= 0 or any
	// member's shares are < 1. Never retried; the caller must fix input.
	ErrInvalidShares = errors.New("invalid shares")

	// ErrInvalidTotal is returned when a total amount <= 0 is passed to
	// the normalizer.
	ErrInvalidTotal = errors.New("invalid total amount")

	// ErrPurchaseLocked is returned on ledger mutation attempts while
	// the purchase is past draft (active or locked).
	ErrPurchaseLocked = errors.New("purchase ledger is locked for editing")

	// ErrAmountPending is returned while the purchase total has changed
	// and reconciliation has not resolved which total is authoritative.
	ErrAmountPending = errors.New("purchase has an unresolved amount change")

	// ErrDistributionLocked is returned on payment toggles while the
	// purchase is locked.
	ErrDistributionLocked = errors.New("distribution is locked")

	// ErrNotAuthorized is returned when a payment toggle is attempted by
	// a participant with no standing on that record.
	ErrNotAuthorized = errors.New("not authorized for this distribution")

	// ErrNoDistributions is returned when reconciliation is attempted on
	// a purchase with an empty ledger.
	ErrNoDistributions = errors.New("no distributions found")

	// ErrLedgerUnbalanced is returned when locking a ledger whose
	// amounts do not sum to the purchase total within tolerance.
	ErrLedgerUnbalanced = errors.New("distribution amounts do not sum to total")

	// ErrIllegalTransition is returned for status transitions outside
	// the transition table.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrPurchaseNotFound, ErrDistributionNotFound, ErrTemplateNotFound
	// and ErrParticipantNotFound indicate a missing record.
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrDistributionNotFound = errors.New("distribution not found")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrParticipantNotFound  = errors.New("participant not found")

	// ErrStorageFailure wraps any failure from the persistence boundary.
	// Propagated unchanged, never masked.
	ErrStorageFailure = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidSharesError reports which member's shares were rejected.
// Participant is empty when the aggregate (total shares) was invalid.
type InvalidSharesError struct {
	Participant ParticipantID
	Shares      int
}

func (e *InvalidSharesError) Error() string {
	if e.Participant == "" {
		return fmt.Sprintf("invalid shares: total shares %d must be positive", e.Shares)
	}
	return fmt.Sprintf("invalid shares: participant %s has %d, minimum is 1", e.Participant, e.Shares)
}

func (e *InvalidSharesError) Unwrap() error { return ErrInvalidShares }

// UnbalancedLedgerError reports the mismatch that blocked a lock.
type UnbalancedLedgerError struct {
	PurchaseID PurchaseID
	Total      decimal.Decimal
	Sum        decimal.Decimal
}

func (e *UnbalancedLedgerError) Error() string {
	return fmt.Sprintf("purchase %s: distribution sum %s does not match total %s",
		e.PurchaseID, e.Sum.StringFixed(MoneyPlaces), e.Total.StringFixed(MoneyPlaces))
}

func (e *UnbalancedLedgerError) Unwrap() error { return ErrLedgerUnbalanced }

// TransitionError reports a status transition outside the table.
type TransitionError struct {
	PurchaseID PurchaseID
	From       Status
	Event      Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("purchase %s: event %q not allowed from status %q", e.PurchaseID, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// StorageError wraps a persistence failure with enough context that a
// partially applied multi-row rewrite can be inspected and repaired.
type StorageError struct {
	Op         string
	PurchaseID PurchaseID
	Err        error
}

func (e *StorageError) Error() string {
	if e.PurchaseID != "" {
		return fmt.Sprintf("storage failure during %s for purchase %s: %v", e.Op, e.PurchaseID, e.Err)
	}
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorageFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidShares) ||
		errors.Is(err, ErrInvalidTotal) ||
		errors.Is(err, ErrLedgerUnbalanced)
}

// IsStateConflict returns true if the mutation was forbidden by the
// purchase's current status; the caller should re-fetch and re-route,
// not retry blindly.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrPurchaseLocked) ||
		errors.Is(err, ErrAmountPending) ||
		errors.Is(err, ErrDistributionLocked) ||
		errors.Is(err, ErrIllegalTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPurchaseNotFound) ||
		errors.Is(err, ErrDistributionNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrNoDistributions)
}
