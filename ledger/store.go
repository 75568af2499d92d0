/*
store.go - Persistence boundary for the allocation core

PURPOSE:
  Defines the interfaces the core needs from its storage collaborators.
  No wire format or schema is mandated here; schema ownership belongs
  to the implementations.

CONSISTENCY CONTRACT:
  - ReplaceAll is atomic: either the whole ledger is rewritten or none
    of it is. A partial rewrite must surface as an error, never as a
    silently inconsistent ledger.
  - Reads after a successful write reflect that write (read-your-own-
    writes). The core assumes no weaker consistency.
  - Version on distributions is an audit counter, not a CAS token;
    there is no optimistic locking between concurrent editors.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - ledger/store: In-memory store for tests and dev

SEE ALSO:
  - distribution.go: Multi-row rewrites through ReplaceAll
  - payment.go: Single-row updates through Update
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// PARTICIPANT DIRECTORY - Read-only identity lookup, owned externally
// =============================================================================

type ParticipantDirectory interface {
	// Get returns ErrParticipantNotFound for unknown ids.
	Get(ctx context.Context, id ParticipantID) (*Participant, error)
	List(ctx context.Context) ([]Participant, error)

	// Put registers or renames a participant. The core never calls
	// this; it exists for seeding and the API surface.
	Put(ctx context.Context, p Participant) error
}

// =============================================================================
// TEMPLATE STORE
// =============================================================================

type TemplateStore interface {
	Get(ctx context.Context, id TemplateID) (*Template, error)
	List(ctx context.Context) ([]Template, error)

	// ListActive returns templates with is_active and
	// effective_from <= asOf, ordered by effective_from descending
	// (most recent first = default candidate).
	ListActive(ctx context.Context, asOf time.Time) ([]Template, error)

	// Save inserts or fully replaces a template and its members.
	Save(ctx context.Context, t Template) error

	// Delete removes a template. Existing purchase ledgers are
	// snapshots and are never touched.
	Delete(ctx context.Context, id TemplateID) error
}

// =============================================================================
// PURCHASE STORE
// =============================================================================

type PurchaseStore interface {
	// Get returns ErrPurchaseNotFound for unknown ids.
	Get(ctx context.Context, id PurchaseID) (*Purchase, error)
	List(ctx context.Context) ([]Purchase, error)
	ListByStatus(ctx context.Context, status Status) ([]Purchase, error)

	// Save inserts or fully replaces a purchase record.
	Save(ctx context.Context, p Purchase) error
}

// =============================================================================
// DISTRIBUTION STORE
// =============================================================================

type DistributionStore interface {
	// Get returns ErrDistributionNotFound for unknown ids.
	Get(ctx context.Context, id DistributionID) (*Distribution, error)

	// ListByPurchase returns rows in creation order.
	ListByPurchase(ctx context.Context, id PurchaseID) ([]Distribution, error)

	// ReplaceAll atomically deletes the purchase's rows and inserts the
	// given set. Used by ledger rebuilds and the redistribute strategy.
	ReplaceAll(ctx context.Context, id PurchaseID, rows []Distribution) error

	// Insert appends rows without touching existing ones. Used by the
	// adjust strategy so paid history is preserved.
	Insert(ctx context.Context, rows []Distribution) error

	// Update replaces a single row. Used by the payment tracker and
	// manual amount overrides.
	Update(ctx context.Context, row Distribution) error
}

// =============================================================================
// CHANGE OBSERVER - "has this purchase's ledger changed" hook
// =============================================================================

// ChangeObserver is invoked after a purchase's ledger or status has
// changed. It replaces any embedded pub/sub mechanism: delivery (HTTP
// push, polling, nothing at all) is the caller's concern.
type ChangeObserver func(id PurchaseID)

func notify(obs ChangeObserver, id PurchaseID) {
	if obs != nil {
		obs(id)
	}
}
