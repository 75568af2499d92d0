/*
payment.go - Per-distribution payment tracking

PURPOSE:
  Toggles the paid flag on individual distribution rows, with a simple
  authorization rule: a participant may flip their own row, and the
  purchase's buyer may flip anyone's.

STATE RULES:
  Payment marking is forbidden while the purchase is locked (nothing
  left to pay) or amount_changed (ambiguous which total is
  authoritative).

BUYER AUTO-SETTLE:
  Buyers are assumed self-settled: when the buyer's own row exists and
  is unpaid, AutoSettleBuyer marks it paid. A convenience policy, not
  a correctness requirement, and idempotent - a no-op on rows already
  paid.

SEE ALSO:
  - status.go: LockWhenPaid consumes the AllPaid predicate
*/
package ledger

import (
	"context"
)

// PaymentTracker records who has settled their distribution.
type PaymentTracker struct {
	Purchases     PurchaseStore
	Distributions DistributionStore
	Observer      ChangeObserver

	Now NowFunc
}

// paymentAllowed rejects toggles in statuses where payment marking is
// forbidden.
func paymentAllowed(p *Purchase) error {
	switch p.Status {
	case StatusLocked:
		return ErrDistributionLocked
	case StatusAmountChanged:
		return ErrAmountPending
	default:
		return nil
	}
}

// SetPaid flips a distribution's paid flag.
//
// Authorization: the acting participant must be the row's participant
// or the purchase's buyer. paid_at is stamped on transition to paid
// and cleared on transition to unpaid.
func (pt *PaymentTracker) SetPaid(ctx context.Context, id DistributionID, actor ParticipantID, paid bool) (*Distribution, error) {
	row, err := pt.Distributions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := pt.Purchases.Get(ctx, row.PurchaseID)
	if err != nil {
		return nil, err
	}
	if err := paymentAllowed(p); err != nil {
		return nil, err
	}

	if actor != row.Participant && actor != p.Buyer {
		return nil, ErrNotAuthorized
	}

	if row.IsPaid == paid {
		return row, nil
	}

	row.IsPaid = paid
	if paid {
		now := pt.Now.now()
		row.PaidAt = &now
	} else {
		row.PaidAt = nil
	}

	if err := pt.Distributions.Update(ctx, *row); err != nil {
		return nil, err
	}
	notify(pt.Observer, p.ID)
	return row, nil
}

// AutoSettleBuyer marks the buyer's own unpaid rows paid. Idempotent;
// rows already paid are left alone, as are non-buyer rows.
func (pt *PaymentTracker) AutoSettleBuyer(ctx context.Context, id PurchaseID) error {
	p, err := pt.Purchases.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := paymentAllowed(p); err != nil {
		return err
	}

	rows, err := pt.Distributions.ListByPurchase(ctx, id)
	if err != nil {
		return err
	}

	settled := false
	for _, row := range rows {
		if row.Participant != p.Buyer || row.IsPaid {
			continue
		}
		now := pt.Now.now()
		row.IsPaid = true
		row.PaidAt = &now
		if err := pt.Distributions.Update(ctx, row); err != nil {
			return err
		}
		settled = true
	}

	if settled {
		notify(pt.Observer, id)
	}
	return nil
}

// AllPaid reports whether every distribution on the purchase is paid.
// An empty ledger is never "all paid".
func (pt *PaymentTracker) AllPaid(ctx context.Context, id PurchaseID) (bool, error) {
	rows, err := pt.Distributions.ListByPurchase(ctx, id)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	for _, row := range rows {
		if !row.IsPaid {
			return false, nil
		}
	}
	return true, nil
}
