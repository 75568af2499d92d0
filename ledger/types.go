/*
Package ledger provides the cost-allocation core for shared purchases.

PURPOSE:
  This package contains the types and algorithms that turn a purchase
  total plus a set of weighted participant shares into exact per-person
  monetary obligations, and keep those obligations consistent through
  the purchase lifecycle (draft, active, locked, amount_changed).

KEY CONCEPTS IN THIS FILE (types.go):
  - Participant: Opaque identity plus display name, owned externally
  - Purchase: The shared expense being split, with its status
  - Distribution: One participant's obligation for one purchase
  - Template: A reusable, dated set of participant shares

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so money never touches float64
  2. Snapshots: Ledger rows copy template shares; templates can change
     or disappear without rewriting history
  3. Paid immutability: A paid row is never silently recomputed;
     corrections are layered on as charge/refund rows
  4. Auditability: Every recompute bumps the row version

USAGE:
  allocs, err := ledger.Normalize(members, ledger.MustMoney("100.01"))
  // allocs[len-1] absorbs the rounding remainder

SEE ALSO:
  - normalize.go: Share-to-amount allocation algorithm
  - status.go: Purchase status state machine
  - reconcile.go: Resolution of after-the-fact total edits
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency helpers (single currency, two decimal places)
// =============================================================================

// MoneyPlaces is the currency minor-unit precision.
const MoneyPlaces = 2

// NowFunc supplies the current time to services; nil means time.Now.
// Injectable for tests.
type NowFunc func() time.Time

func (f NowFunc) now() time.Time {
	if f != nil {
		return f()
	}
	return time.Now()
}

// RoundingTolerance is the maximum acceptable drift between a purchase
// total and the sum of its distribution amounts.
var RoundingTolerance = decimal.New(1, -2) // 0.01

// MustMoney parses a decimal string, returning zero on failure.
// Intended for constants and tests, not user input.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RoundMoney rounds to the currency's minor unit.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// WithinTolerance reports whether a and b differ by at most the
// rounding tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(RoundingTolerance)
}

// =============================================================================
// PARTICIPANT - Owned by an external profile store, treated as a value
// =============================================================================

type ParticipantID string

type Participant struct {
	ID          ParticipantID
	DisplayName string
}

// =============================================================================
// DISTRIBUTION TEMPLATE - Reusable, dated participant share sets
// =============================================================================

type TemplateID string

// TemplateMember is one participant's weight within a template.
type TemplateMember struct {
	Participant ParticipantID
	Shares      int
}

// Template is a named, dated, reusable set of participant shares used
// to seed new purchases. Purchases snapshot the shares at build time;
// deleting or editing a template never alters existing ledgers.
type Template struct {
	ID            TemplateID
	Name          string
	EffectiveFrom time.Time
	IsActive      bool

	// TotalShares is recomputed from Members on every write and never
	// trusted from the caller.
	TotalShares int
	Members     []TemplateMember

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EligibleAt reports whether the template may seed a purchase dated at.
func (t Template) EligibleAt(at time.Time) bool {
	return t.IsActive && !t.EffectiveFrom.After(at)
}

// =============================================================================
// PURCHASE - The shared expense being split
// =============================================================================

type PurchaseID string

// Status governs which mutations are legal on a purchase's ledger.
// See status.go for the transition table.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusActive        Status = "active"
	StatusLocked        Status = "locked"
	StatusAmountChanged Status = "amount_changed"
)

type Purchase struct {
	ID    PurchaseID
	Date  time.Time
	Buyer ParticipantID

	// TotalAmount is the authoritative sum the ledger must reconcile to
	// whenever the status is draft, active, or locked.
	TotalAmount decimal.Decimal

	// OriginalTotalAmount holds the pre-edit total while status is
	// amount_changed, for display and audit. Cleared on resolution.
	OriginalTotalAmount *decimal.Decimal

	Status   Status
	LockedAt *time.Time
	LockedBy *ParticipantID

	// TemplateID records which template seeded the ledger, if any.
	TemplateID *TemplateID

	// ManuallyModified is set when the ledger was hand-edited after
	// seeding. Surfaced to the UI only; it is not a status value.
	ManuallyModified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// DISTRIBUTION - One participant's obligation for one purchase
// =============================================================================

type DistributionID string

// AdjustmentType classifies supplemental rows created by reconciliation.
type AdjustmentType string

const (
	AdjustmentCharge       AdjustmentType = "charge"
	AdjustmentRefund       AdjustmentType = "refund"
	AdjustmentReallocation AdjustmentType = "reallocation"
)

// Distribution is one participant's computed (or manually overridden)
// monetary obligation for one purchase. A row always carries shares
// and a derived percentage; the percentage is never independently
// authoritative.
type Distribution struct {
	ID          DistributionID
	PurchaseID  PurchaseID
	Participant ParticipantID

	Shares     int
	Percentage decimal.Decimal

	CalculatedAmount decimal.Decimal

	// AdjustedAmount is a manual override. It takes precedence over
	// CalculatedAmount and is cleared only when this row's own shares
	// are recomputed, never for rows the user did not touch.
	AdjustedAmount *decimal.Decimal

	IsPaid bool
	PaidAt *time.Time

	// Version increments every time CalculatedAmount is recomputed.
	// It is an audit counter, not a concurrency token.
	Version int

	// AdjustmentType is set on supplemental rows (charge/refund) and on
	// rows rewritten by the redistribute strategy (reallocation).
	AdjustmentType *AdjustmentType

	Notes string

	CreatedAt time.Time
}

// EffectiveAmount returns the amount this row actually owes: the
// manual override when present, otherwise the calculated amount.
func (d Distribution) EffectiveAmount() decimal.Decimal {
	if d.AdjustedAmount != nil {
		return *d.AdjustedAmount
	}
	return d.CalculatedAmount
}

// SumEffective totals the effective amounts of a set of rows.
func SumEffective(rows []Distribution) decimal.Decimal {
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.EffectiveAmount())
	}
	return sum
}
