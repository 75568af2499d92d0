/*
status.go - Purchase status state machine

PURPOSE:
  Governs which mutations are legal on a purchase's ledger given its
  current status.

TRANSITION TABLE:

  | From           | Event       | To             | Guard                       |
  |----------------|-------------|----------------|-----------------------------|
  | draft          | lock        | active         | rows exist, sum within 0.01 |
  | active         | unlock      | draft          | none                        |
  | active         | totalEdited | amount_changed | distributions exist         |
  | active         | allPaid     | locked         | external trigger            |
  | locked         | unlock      | draft          | none (caller warns)         |
  | locked         | totalEdited | amount_changed | distributions exist         |
  | amount_changed | resolve     | active         | see reconcile.go            |

UNLOCK SEMANTICS:
  Unlocking a locked (paid) purchase can desynchronize payment records.
  The core does not block it, surfaces no warning of its own, and never
  silently rewrites is_paid flags on unlock.

SEE ALSO:
  - reconcile.go: The resolve event
  - payment.go: AllPaid predicate feeding the allPaid event
*/
package ledger

import (
	"context"
)

// =============================================================================
// EVENTS AND TRANSITION TABLE
// =============================================================================

type Event string

const (
	EventLock        Event = "lock"
	EventUnlock      Event = "unlock"
	EventTotalEdited Event = "totalEdited"
	EventAllPaid     Event = "allPaid"
	EventResolve     Event = "resolve"
)

var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		EventLock: StatusActive,
	},
	StatusActive: {
		EventUnlock:      StatusDraft,
		EventTotalEdited: StatusAmountChanged,
		EventAllPaid:     StatusLocked,
	},
	StatusLocked: {
		EventUnlock:      StatusDraft,
		EventTotalEdited: StatusAmountChanged,
	},
	StatusAmountChanged: {
		EventResolve: StatusActive,
	},
}

// NextStatus returns the status an event leads to from the given
// status, and whether the transition is in the table at all. Guards
// are enforced by the services, not here.
func NextStatus(from Status, event Event) (Status, bool) {
	to, ok := transitions[from][event]
	return to, ok
}

// =============================================================================
// STATUS SERVICE
// =============================================================================

// StatusService performs the lock/unlock transitions.
type StatusService struct {
	Purchases     PurchaseStore
	Distributions DistributionStore
	Observer      ChangeObserver

	Now NowFunc
}

// Lock transitions draft -> active ("lock for payment").
//
// Guards: the ledger must be non-empty and its effective amounts must
// sum to the purchase total within the rounding tolerance. A failed
// guard leaves the status unchanged.
func (ss *StatusService) Lock(ctx context.Context, id PurchaseID, actor ParticipantID) (*Purchase, error) {
	p, err := ss.Purchases.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	to, ok := NextStatus(p.Status, EventLock)
	if !ok {
		return nil, &TransitionError{PurchaseID: id, From: p.Status, Event: EventLock}
	}

	rows, err := ss.Distributions.ListByPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoDistributions
	}

	sum := SumEffective(rows)
	if !WithinTolerance(sum, p.TotalAmount) {
		return nil, &UnbalancedLedgerError{PurchaseID: id, Total: p.TotalAmount, Sum: sum}
	}

	now := ss.Now.now()
	p.Status = to
	p.LockedAt = &now
	p.LockedBy = &actor
	p.UpdatedAt = now

	if err := ss.Purchases.Save(ctx, *p); err != nil {
		return nil, err
	}
	notify(ss.Observer, id)
	return p, nil
}

// Unlock transitions active or locked back to draft, clearing
// locked_at/locked_by. Paid flags are left exactly as they are.
func (ss *StatusService) Unlock(ctx context.Context, id PurchaseID) (*Purchase, error) {
	p, err := ss.Purchases.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	to, ok := NextStatus(p.Status, EventUnlock)
	if !ok {
		return nil, &TransitionError{PurchaseID: id, From: p.Status, Event: EventUnlock}
	}

	p.Status = to
	p.LockedAt = nil
	p.LockedBy = nil
	p.UpdatedAt = ss.Now.now()

	if err := ss.Purchases.Save(ctx, *p); err != nil {
		return nil, err
	}
	notify(ss.Observer, id)
	return p, nil
}

// LockWhenPaid transitions active -> locked once every distribution is
// paid. Whether this fires automatically or behind a user action is an
// external policy decision; the core only supplies the transition.
func (ss *StatusService) LockWhenPaid(ctx context.Context, id PurchaseID) (*Purchase, error) {
	p, err := ss.Purchases.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	to, ok := NextStatus(p.Status, EventAllPaid)
	if !ok {
		return nil, &TransitionError{PurchaseID: id, From: p.Status, Event: EventAllPaid}
	}

	rows, err := ss.Distributions.ListByPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoDistributions
	}
	for _, row := range rows {
		if !row.IsPaid {
			return nil, &TransitionError{PurchaseID: id, From: p.Status, Event: EventAllPaid}
		}
	}

	p.Status = to
	p.UpdatedAt = ss.Now.now()

	if err := ss.Purchases.Save(ctx, *p); err != nil {
		return nil, err
	}
	notify(ss.Observer, id)
	return p, nil
}
