package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VSydorenko/office-brew-tracker-sub000/ledger"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

func TestNextStatus_TableCoverage(t *testing.T) {
	// GIVEN: The full transition table
	// WHEN: Querying each (status, event) pair
	// THEN: Defined pairs resolve, everything else is rejected

	defined := []struct {
		from  ledger.Status
		event ledger.Event
		to    ledger.Status
	}{
		{ledger.StatusDraft, ledger.EventLock, ledger.StatusActive},
		{ledger.StatusActive, ledger.EventUnlock, ledger.StatusDraft},
		{ledger.StatusActive, ledger.EventTotalEdited, ledger.StatusAmountChanged},
		{ledger.StatusActive, ledger.EventAllPaid, ledger.StatusLocked},
		{ledger.StatusLocked, ledger.EventUnlock, ledger.StatusDraft},
		{ledger.StatusLocked, ledger.EventTotalEdited, ledger.StatusAmountChanged},
		{ledger.StatusAmountChanged, ledger.EventResolve, ledger.StatusActive},
	}

	for _, tc := range defined {
		to, ok := ledger.NextStatus(tc.from, tc.event)
		assert.True(t, ok, "%s + %s should be legal", tc.from, tc.event)
		assert.Equal(t, tc.to, to)
	}

	illegal := []struct {
		from  ledger.Status
		event ledger.Event
	}{
		{ledger.StatusDraft, ledger.EventUnlock},
		{ledger.StatusDraft, ledger.EventAllPaid},
		{ledger.StatusDraft, ledger.EventResolve},
		{ledger.StatusActive, ledger.EventLock},
		{ledger.StatusLocked, ledger.EventLock},
		{ledger.StatusLocked, ledger.EventAllPaid},
		{ledger.StatusAmountChanged, ledger.EventLock},
		{ledger.StatusAmountChanged, ledger.EventUnlock},
		{ledger.StatusAmountChanged, ledger.EventTotalEdited},
	}

	for _, tc := range illegal {
		_, ok := ledger.NextStatus(tc.from, tc.event)
		assert.False(t, ok, "%s + %s should be illegal", tc.from, tc.event)
	}
}

// =============================================================================
// LOCK
// =============================================================================

func TestLock_SetsActiveAndStampsActor(t *testing.T) {
	// GIVEN: A balanced draft ledger
	// WHEN: Locking as alice
	// THEN: Status active, locked_at and locked_by recorded

	f := newFixture(t)
	p := f.newDraftPurchase(t, "30.00", "alice", "alice", "bob", "carol")

	locked, err := f.statuses.Lock(context.Background(), p.ID, "alice")
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusActive, locked.Status)
	require.NotNil(t, locked.LockedAt)
	require.NotNil(t, locked.LockedBy)
	assert.Equal(t, ledger.ParticipantID("alice"), *locked.LockedBy)
	assert.Equal(t, fixedClock()(), *locked.LockedAt)
}

func TestLock_EmptyLedgerRejected(t *testing.T) {
	f := newFixture(t)
	p := f.newDraftPurchase(t, "30.00", "alice")

	_, err := f.statuses.Lock(context.Background(), p.ID, "alice")
	assert.ErrorIs(t, err, ledger.ErrNoDistributions)

	saved, getErr := f.mem.Purchases().Get(context.Background(), p.ID)
	require.NoError(t, getErr)
	assert.Equal(t, ledger.StatusDraft, saved.Status)
}

func TestLock_UnbalancedLedgerRejected(t *testing.T) {
	// GIVEN: A ledger whose effective sum drifted beyond the tolerance
	//        via a manual override
	// WHEN: Locking
	// THEN: ErrLedgerUnbalanced and the status stays draft

	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "30.00", "alice", "alice", "bob", "carol")

	rows := f.rows(t, p.ID)
	require.NoError(t, f.ledgers.ApplyManualAmountOverride(ctx, rows[0].ID, money("15.00")))

	_, err := f.statuses.Lock(ctx, p.ID, "alice")
	assert.ErrorIs(t, err, ledger.ErrLedgerUnbalanced)

	var unbalanced *ledger.UnbalancedLedgerError
	require.ErrorAs(t, err, &unbalanced)
	assert.True(t, unbalanced.Sum.Equal(money("35.00")))

	saved, getErr := f.mem.Purchases().Get(ctx, p.ID)
	require.NoError(t, getErr)
	assert.Equal(t, ledger.StatusDraft, saved.Status)
}

func TestLock_WithinToleranceAccepted(t *testing.T) {
	// GIVEN: A one-cent drift introduced by an override
	// WHEN: Locking
	// THEN: The 0.01 tolerance admits it

	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "30.00", "alice", "alice", "bob", "carol")

	rows := f.rows(t, p.ID)
	require.NoError(t, f.ledgers.ApplyManualAmountOverride(ctx, rows[0].ID, money("10.01")))

	locked, err := f.statuses.Lock(ctx, p.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, locked.Status)
}

func TestLock_AlreadyActiveRejected(t *testing.T) {
	f := newFixture(t)
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	_, err := f.statuses.Lock(context.Background(), p.ID, "alice")
	assert.ErrorIs(t, err, ledger.ErrIllegalTransition)

	var te *ledger.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ledger.StatusActive, te.From)
}

// =============================================================================
// UNLOCK
// =============================================================================

func TestUnlock_ReturnsToDraftAndClearsLockFields(t *testing.T) {
	// GIVEN: An active purchase
	// WHEN: Unlocking
	// THEN: Draft again, lock metadata cleared

	f := newFixture(t)
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	unlocked, err := f.statuses.Unlock(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusDraft, unlocked.Status)
	assert.Nil(t, unlocked.LockedAt)
	assert.Nil(t, unlocked.LockedBy)
}

func TestUnlock_LockedPurchase_PaidFlagsSurvive(t *testing.T) {
	// GIVEN: A fully paid, locked purchase
	// WHEN: Unlocking back to draft
	// THEN: The transition succeeds and no paid flag is rewritten

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	for _, row := range f.rows(t, p.ID) {
		_, err := f.payments.SetPaid(ctx, row.ID, row.Participant, true)
		require.NoError(t, err)
	}
	_, err := f.statuses.LockWhenPaid(ctx, p.ID)
	require.NoError(t, err)

	unlocked, err := f.statuses.Unlock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusDraft, unlocked.Status)

	for _, row := range f.rows(t, p.ID) {
		assert.True(t, row.IsPaid)
		assert.NotNil(t, row.PaidAt)
	}
}

func TestUnlock_DraftRejected(t *testing.T) {
	f := newFixture(t)
	p := f.newDraftPurchase(t, "30.00", "alice", "alice")

	_, err := f.statuses.Unlock(context.Background(), p.ID)
	assert.ErrorIs(t, err, ledger.ErrIllegalTransition)
}

// =============================================================================
// LOCK WHEN PAID
// =============================================================================

func TestLockWhenPaid_AllRowsPaid(t *testing.T) {
	// GIVEN: An active purchase with every row paid
	// WHEN: Firing the all-paid transition
	// THEN: Status becomes locked

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	for _, row := range f.rows(t, p.ID) {
		_, err := f.payments.SetPaid(ctx, row.ID, row.Participant, true)
		require.NoError(t, err)
	}

	locked, err := f.statuses.LockWhenPaid(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusLocked, locked.Status)
}

func TestLockWhenPaid_UnpaidRowBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")

	rows := f.rows(t, p.ID)
	_, err := f.payments.SetPaid(ctx, rows[0].ID, rows[0].Participant, true)
	require.NoError(t, err)

	_, err = f.statuses.LockWhenPaid(ctx, p.ID)
	assert.ErrorIs(t, err, ledger.ErrIllegalTransition)

	saved, getErr := f.mem.Purchases().Get(ctx, p.ID)
	require.NoError(t, getErr)
	assert.Equal(t, ledger.StatusActive, saved.Status)
}

func TestLockWhenPaid_DraftRejected(t *testing.T) {
	f := newFixture(t)
	p := f.newDraftPurchase(t, "30.00", "alice", "alice")

	_, err := f.statuses.LockWhenPaid(context.Background(), p.ID)
	assert.ErrorIs(t, err, ledger.ErrIllegalTransition)
}
