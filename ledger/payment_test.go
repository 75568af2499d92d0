package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VSydorenko/office-brew-tracker-sub000/ledger"
)

// =============================================================================
// SET PAID
// =============================================================================

func TestSetPaid_ParticipantMarksOwnRow(t *testing.T) {
	// GIVEN: An active purchase
	// WHEN: Bob marks his own row paid
	// THEN: The flag flips and paid_at is stamped

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	bob := rowFor(t, f.rows(t, p.ID), "bob")
	row, err := f.payments.SetPaid(ctx, bob.ID, "bob", true)
	require.NoError(t, err)

	assert.True(t, row.IsPaid)
	require.NotNil(t, row.PaidAt)
	assert.Equal(t, fixedClock()(), *row.PaidAt)
}

func TestSetPaid_BuyerMarksAnyRow(t *testing.T) {
	// GIVEN: Alice bought the coffee
	// WHEN: Alice marks bob's row paid
	// THEN: Allowed

	f := newFixture(t)
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	bob := rowFor(t, f.rows(t, p.ID), "bob")
	row, err := f.payments.SetPaid(context.Background(), bob.ID, "alice", true)
	require.NoError(t, err)
	assert.True(t, row.IsPaid)
}

func TestSetPaid_StrangerRejected(t *testing.T) {
	// GIVEN: Carol is neither the row's participant nor the buyer
	// WHEN: Carol tries to mark bob's row
	// THEN: ErrNotAuthorized

	f := newFixture(t)
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	bob := rowFor(t, f.rows(t, p.ID), "bob")
	_, err := f.payments.SetPaid(context.Background(), bob.ID, "carol", true)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)
}

func TestSetPaid_UnmarkClearsPaidAt(t *testing.T) {
	// GIVEN: A paid row
	// WHEN: Unmarking it
	// THEN: is_paid false and paid_at cleared

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	bob := rowFor(t, f.rows(t, p.ID), "bob")
	_, err := f.payments.SetPaid(ctx, bob.ID, "bob", true)
	require.NoError(t, err)

	row, err := f.payments.SetPaid(ctx, bob.ID, "bob", false)
	require.NoError(t, err)
	assert.False(t, row.IsPaid)
	assert.Nil(t, row.PaidAt)
}

func TestSetPaid_NoOpWhenStateUnchanged(t *testing.T) {
	// GIVEN: A paid row with a stamped paid_at
	// WHEN: Marking it paid again
	// THEN: No error and the original timestamp survives

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	bob := rowFor(t, f.rows(t, p.ID), "bob")
	first, err := f.payments.SetPaid(ctx, bob.ID, "bob", true)
	require.NoError(t, err)

	second, err := f.payments.SetPaid(ctx, bob.ID, "bob", true)
	require.NoError(t, err)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)
}

func TestSetPaid_ForbiddenWhileLocked(t *testing.T) {
	// GIVEN: A fully paid, locked purchase
	// WHEN: Toggling a row
	// THEN: ErrDistributionLocked

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	for _, row := range f.rows(t, p.ID) {
		_, err := f.payments.SetPaid(ctx, row.ID, row.Participant, true)
		require.NoError(t, err)
	}
	_, err := f.statuses.LockWhenPaid(ctx, p.ID)
	require.NoError(t, err)

	bob := rowFor(t, f.rows(t, p.ID), "bob")
	_, err = f.payments.SetPaid(ctx, bob.ID, "bob", false)
	assert.ErrorIs(t, err, ledger.ErrDistributionLocked)
}

func TestSetPaid_ForbiddenWhileAmountChanged(t *testing.T) {
	// GIVEN: A purchase pending reconciliation
	// WHEN: Toggling a row
	// THEN: ErrAmountPending

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")
	_, err := f.ledgers.EditTotal(ctx, p.ID, money("40.00"))
	require.NoError(t, err)

	bob := rowFor(t, f.rows(t, p.ID), "bob")
	_, err = f.payments.SetPaid(ctx, bob.ID, "bob", true)
	assert.ErrorIs(t, err, ledger.ErrAmountPending)
}

func TestSetPaid_AllowedInDraft(t *testing.T) {
	// GIVEN: A draft purchase with a ledger
	// WHEN: A participant marks their row
	// THEN: Allowed; only locked and amount_changed forbid toggles

	f := newFixture(t)
	p := f.newDraftPurchase(t, "30.00", "alice", "alice", "bob")

	bob := rowFor(t, f.rows(t, p.ID), "bob")
	row, err := f.payments.SetPaid(context.Background(), bob.ID, "bob", true)
	require.NoError(t, err)
	assert.True(t, row.IsPaid)
}

// =============================================================================
// BUYER AUTO-SETTLE
// =============================================================================

func TestAutoSettleBuyer_MarksOnlyBuyerRow(t *testing.T) {
	// GIVEN: Alice bought and participates alongside bob
	// WHEN: Auto-settling
	// THEN: Alice's row is paid, bob's is not

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	require.NoError(t, f.payments.AutoSettleBuyer(ctx, p.ID))

	rows := f.rows(t, p.ID)
	assert.True(t, rowFor(t, rows, "alice").IsPaid)
	assert.False(t, rowFor(t, rows, "bob").IsPaid)
}

func TestAutoSettleBuyer_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	require.NoError(t, f.payments.AutoSettleBuyer(ctx, p.ID))
	first := rowFor(t, f.rows(t, p.ID), "alice")

	require.NoError(t, f.payments.AutoSettleBuyer(ctx, p.ID))
	second := rowFor(t, f.rows(t, p.ID), "alice")

	assert.Equal(t, *first.PaidAt, *second.PaidAt)
}

func TestAutoSettleBuyer_BuyerNotInLedger(t *testing.T) {
	// GIVEN: The buyer does not participate in the split
	// WHEN: Auto-settling
	// THEN: No row changes, no error

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "dave", "alice", "bob")

	require.NoError(t, f.payments.AutoSettleBuyer(ctx, p.ID))
	for _, row := range f.rows(t, p.ID) {
		assert.False(t, row.IsPaid)
	}
}

// =============================================================================
// ALL PAID
// =============================================================================

func TestAllPaid_TrueOnlyWhenEveryRowPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	allPaid, err := f.payments.AllPaid(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, allPaid)

	rows := f.rows(t, p.ID)
	_, err = f.payments.SetPaid(ctx, rows[0].ID, rows[0].Participant, true)
	require.NoError(t, err)

	allPaid, err = f.payments.AllPaid(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, allPaid)

	_, err = f.payments.SetPaid(ctx, rows[1].ID, rows[1].Participant, true)
	require.NoError(t, err)

	allPaid, err = f.payments.AllPaid(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, allPaid)
}

func TestAllPaid_EmptyLedgerIsFalse(t *testing.T) {
	// GIVEN: A purchase with no distributions
	// WHEN: Checking all-paid
	// THEN: False; vacuous truth would let an empty ledger lock

	f := newFixture(t)
	p := f.newDraftPurchase(t, "30.00", "alice")

	allPaid, err := f.payments.AllPaid(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, allPaid)
}
