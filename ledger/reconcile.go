/*
reconcile.go - Amount-change reconciliation

PURPOSE:
  Resolves a purchase whose total was edited after its ledger was
  finalized (status amount_changed). Three strategies:

  keep:         Accept the new total, leave every row untouched. The
                rows no longer sum to the total; that drift is the
                explicitly acknowledged outcome of this strategy.

  redistribute: Re-run the normalizer over the existing rows' shares
                against the new total. Every row's calculated amount is
                overwritten, every override cleared, every version
                bumped, every row tagged 'reallocation'. Paid rows are
                recomputed too; callers needing paid-immutability must
                use adjust instead.

  adjust:       Append one charge (or refund) row per existing member,
                sized by that member's percentage of the delta. The
                original rows, paid flags included, are byte-for-byte
                untouched.

  All three end with total_amount = newTotal, original_total_amount
  cleared, and status back to active.

SEE ALSO:
  - status.go: The resolve event in the transition table
  - distribution.go: The normalizer plumbing reused here
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STRATEGIES
// =============================================================================

type Strategy string

const (
	StrategyKeep         Strategy = "keep"
	StrategyRedistribute Strategy = "redistribute"
	StrategyAdjust       Strategy = "adjust"
)

// ErrUnknownStrategy is returned for strategies outside the three
// defined ones.
var ErrUnknownStrategy = fmt.Errorf("unknown reconciliation strategy")

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler resolves purchases in the amount_changed status.
type Reconciler struct {
	Purchases     PurchaseStore
	Distributions DistributionStore
	Observer      ChangeObserver

	Now NowFunc
}

// Resolve applies a strategy to an amount_changed purchase and returns
// it to active. The ledger is not trusted until this has run.
func (rc *Reconciler) Resolve(
	ctx context.Context,
	id PurchaseID,
	strategy Strategy,
	newTotal, oldTotal decimal.Decimal,
) (*Purchase, error) {
	p, err := rc.Purchases.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	to, ok := NextStatus(p.Status, EventResolve)
	if !ok {
		return nil, &TransitionError{PurchaseID: id, From: p.Status, Event: EventResolve}
	}

	rows, err := rc.Distributions.ListByPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoDistributions
	}

	switch strategy {
	case StrategyKeep:
		// Existing amounts stand as they are.

	case StrategyRedistribute:
		if err := rc.redistribute(ctx, id, rows, newTotal); err != nil {
			return nil, err
		}

	case StrategyAdjust:
		if err := rc.adjust(ctx, id, rows, newTotal, oldTotal); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	p.TotalAmount = newTotal
	p.OriginalTotalAmount = nil
	p.Status = to
	p.UpdatedAt = rc.Now.now()

	if err := rc.Purchases.Save(ctx, *p); err != nil {
		return nil, err
	}
	notify(rc.Observer, id)
	return p, nil
}

// redistribute reflows every row's shares against the new total.
func (rc *Reconciler) redistribute(ctx context.Context, id PurchaseID, rows []Distribution, newTotal decimal.Decimal) error {
	allocs, err := Normalize(membersOf(rows), newTotal)
	if err != nil {
		return err
	}

	realloc := AdjustmentReallocation
	for i := range rows {
		rows[i].Percentage = allocs[i].Percentage
		rows[i].CalculatedAmount = allocs[i].Amount
		rows[i].AdjustedAmount = nil
		rows[i].Version++
		rows[i].AdjustmentType = &realloc
	}

	return rc.Distributions.ReplaceAll(ctx, id, rows)
}

// adjust appends one supplemental row per existing member sized by
// that member's percentage of the delta. The last row absorbs the
// rounding remainder so the new rows sum exactly to |delta|.
func (rc *Reconciler) adjust(ctx context.Context, id PurchaseID, rows []Distribution, newTotal, oldTotal decimal.Decimal) error {
	delta := newTotal.Sub(oldTotal)
	if delta.IsZero() {
		return nil
	}

	kind := AdjustmentCharge
	if delta.IsNegative() {
		kind = AdjustmentRefund
	}
	magnitude := delta.Abs()

	// Members are the base rows. Charge/refund rows from earlier
	// reconciliations carry copied percentages and would double-count;
	// reallocation-tagged rows are still member rows.
	var members []Distribution
	for _, row := range rows {
		if row.AdjustmentType != nil && *row.AdjustmentType != AdjustmentReallocation {
			continue
		}
		members = append(members, row)
	}
	if len(members) == 0 {
		members = rows
	}
	rows = members

	now := rc.Now.now()
	note := fmt.Sprintf("total changed from %s to %s",
		oldTotal.StringFixed(MoneyPlaces), newTotal.StringFixed(MoneyPlaces))

	supplemental := make([]Distribution, len(rows))
	allocated := decimal.Zero
	for i, row := range rows {
		var amount decimal.Decimal
		if i == len(rows)-1 {
			amount = RoundMoney(magnitude.Sub(allocated))
		} else {
			amount = RoundMoney(magnitude.Mul(row.Percentage).Div(hundred))
			allocated = allocated.Add(amount)
		}

		k := kind
		supplemental[i] = Distribution{
			ID:               DistributionID(uuid.NewString()),
			PurchaseID:       id,
			Participant:      row.Participant,
			Shares:           row.Shares,
			Percentage:       row.Percentage,
			CalculatedAmount: amount,
			Version:          1,
			AdjustmentType:   &k,
			Notes:            note,
			CreatedAt:        now,
		}
	}

	return rc.Distributions.Insert(ctx, supplemental)
}
