package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VSydorenko/office-brew-tracker-sub000/ledger"
	"github.com/VSydorenko/office-brew-tracker-sub000/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	mem       *store.Memory
	ledgers   *ledger.LedgerService
	templates *ledger.TemplateService
	statuses  *ledger.StatusService
	reconcile *ledger.Reconciler
	payments  *ledger.PaymentTracker
}

func fixedClock() ledger.NowFunc {
	return func() time.Time {
		return time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	now := fixedClock()
	return &fixture{
		mem: mem,
		ledgers: &ledger.LedgerService{
			Purchases:     mem.Purchases(),
			Distributions: mem.Distributions(),
			Templates:     mem.Templates(),
			Now:           now,
		},
		templates: &ledger.TemplateService{Templates: mem.Templates(), Now: now},
		statuses: &ledger.StatusService{
			Purchases:     mem.Purchases(),
			Distributions: mem.Distributions(),
			Now:           now,
		},
		reconcile: &ledger.Reconciler{
			Purchases:     mem.Purchases(),
			Distributions: mem.Distributions(),
			Now:           now,
		},
		payments: &ledger.PaymentTracker{
			Purchases:     mem.Purchases(),
			Distributions: mem.Distributions(),
			Now:           now,
		},
	}
}

func purchaseDate() time.Time {
	return time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
}

// newDraftPurchase creates a draft purchase with a manually built
// ledger of equal shares for the given participants.
func (f *fixture) newDraftPurchase(t *testing.T, total string, buyer ledger.ParticipantID, participants ...ledger.ParticipantID) *ledger.Purchase {
	t.Helper()
	ctx := context.Background()

	p, err := f.ledgers.CreatePurchase(ctx, purchaseDate(), money(total), buyer, nil)
	require.NoError(t, err)

	if len(participants) > 0 {
		err = f.ledgers.RebuildFromManualShares(ctx, p.ID, ledger.EqualMembers(participants))
		require.NoError(t, err)
	}
	return p
}

// activePurchase creates a draft purchase with a ledger and locks it.
func (f *fixture) activePurchase(t *testing.T, total string, buyer ledger.ParticipantID, participants ...ledger.ParticipantID) *ledger.Purchase {
	t.Helper()
	p := f.newDraftPurchase(t, total, buyer, participants...)
	locked, err := f.statuses.Lock(context.Background(), p.ID, buyer)
	require.NoError(t, err)
	return locked
}

func (f *fixture) rows(t *testing.T, id ledger.PurchaseID) []ledger.Distribution {
	t.Helper()
	rows, err := f.mem.Distributions().ListByPurchase(context.Background(), id)
	require.NoError(t, err)
	return rows
}

func rowFor(t *testing.T, rows []ledger.Distribution, p ledger.ParticipantID) ledger.Distribution {
	t.Helper()
	for _, row := range rows {
		if row.Participant == p {
			return row
		}
	}
	t.Fatalf("no row for participant %s", p)
	return ledger.Distribution{}
}

// =============================================================================
// PURCHASE CREATION
// =============================================================================

func TestCreatePurchase_StartsAsDraft(t *testing.T) {
	// GIVEN: A total and a buyer
	// WHEN: Creating a purchase without a template
	// THEN: Status is draft with an empty ledger

	f := newFixture(t)
	p, err := f.ledgers.CreatePurchase(context.Background(), purchaseDate(), money("42.00"), "alice", nil)
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusDraft, p.Status)
	assert.Equal(t, ledger.ParticipantID("alice"), p.Buyer)
	assert.Nil(t, p.OriginalTotalAmount)
	assert.Empty(t, f.rows(t, p.ID))
}

func TestCreatePurchase_RejectsNonPositiveTotal(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledgers.CreatePurchase(context.Background(), purchaseDate(), money("0.00"), "alice", nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidTotal)
}

func TestCreatePurchase_WithTemplate_SeedsLedger(t *testing.T) {
	// GIVEN: An active template with weighted members
	// WHEN: Creating a purchase referencing it
	// THEN: The ledger is snapshotted from the template's shares

	f := newFixture(t)
	ctx := context.Background()

	tpl, err := f.templates.Create(ctx, "regulars", purchaseDate().AddDate(0, -1, 0), []ledger.TemplateMember{
		{Participant: "alice", Shares: 1},
		{Participant: "bob", Shares: 1},
		{Participant: "carol", Shares: 2},
	})
	require.NoError(t, err)

	p, err := f.ledgers.CreatePurchase(ctx, purchaseDate(), money("100.00"), "alice", &tpl.ID)
	require.NoError(t, err)

	rows := f.rows(t, p.ID)
	require.Len(t, rows, 3)
	assert.True(t, rowFor(t, rows, "carol").CalculatedAmount.Equal(money("50.00")))
	assert.True(t, ledger.SumEffective(rows).Equal(money("100.00")))

	saved, err := f.mem.Purchases().Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.TemplateID)
	assert.Equal(t, tpl.ID, *saved.TemplateID)
	assert.False(t, saved.ManuallyModified)
}

// =============================================================================
// LEDGER BUILDS AND EDITS
// =============================================================================

func TestRebuildFromManualShares_FlagsManualModification(t *testing.T) {
	// GIVEN: A draft purchase
	// WHEN: Building the ledger from hand-entered shares
	// THEN: Rows match the shares and the purchase is flagged manual

	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "30.00", "alice")

	err := f.ledgers.RebuildFromManualShares(ctx, p.ID, []ledger.ShareMember{
		{Participant: "alice", Shares: 2},
		{Participant: "bob", Shares: 1},
	})
	require.NoError(t, err)

	rows := f.rows(t, p.ID)
	require.Len(t, rows, 2)
	assert.True(t, rowFor(t, rows, "alice").CalculatedAmount.Equal(money("20.00")))
	assert.True(t, rowFor(t, rows, "bob").CalculatedAmount.Equal(money("10.00")))
	assert.Equal(t, 1, rows[0].Version)

	saved, err := f.mem.Purchases().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, saved.ManuallyModified)
}

func TestEditTotal_Draft_RenormalizesPreservingOverrides(t *testing.T) {
	// GIVEN: A draft ledger where bob has a manual amount override
	// WHEN: Editing the total
	// THEN: Calculated amounts are re-derived but bob's override stays

	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "30.00", "alice", "alice", "bob", "carol")

	rows := f.rows(t, p.ID)
	bob := rowFor(t, rows, "bob")
	require.NoError(t, f.ledgers.ApplyManualAmountOverride(ctx, bob.ID, money("12.00")))

	_, err := f.ledgers.EditTotal(ctx, p.ID, money("60.00"))
	require.NoError(t, err)

	rows = f.rows(t, p.ID)
	assert.True(t, rowFor(t, rows, "alice").CalculatedAmount.Equal(money("20.00")))
	bobAfter := rowFor(t, rows, "bob")
	assert.True(t, bobAfter.CalculatedAmount.Equal(money("20.00")))
	require.NotNil(t, bobAfter.AdjustedAmount)
	assert.True(t, bobAfter.AdjustedAmount.Equal(money("12.00")))
	assert.Equal(t, 2, bobAfter.Version)

	saved, err := f.mem.Purchases().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, saved.TotalAmount.Equal(money("60.00")))
	assert.Equal(t, ledger.StatusDraft, saved.Status)
	assert.Nil(t, saved.OriginalTotalAmount)
}

func TestEditTotal_Active_FlipsToAmountChanged(t *testing.T) {
	// GIVEN: An active purchase with a finalized ledger
	// WHEN: Editing the total
	// THEN: Status becomes amount_changed, old total is preserved, and
	//       the rows are untouched

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "200.00", "alice", "alice", "bob", "carol", "dave")
	before := f.rows(t, p.ID)

	updated, err := f.ledgers.EditTotal(ctx, p.ID, money("250.00"))
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusAmountChanged, updated.Status)
	assert.True(t, updated.TotalAmount.Equal(money("250.00")))
	require.NotNil(t, updated.OriginalTotalAmount)
	assert.True(t, updated.OriginalTotalAmount.Equal(money("200.00")))

	after := f.rows(t, p.ID)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.True(t, before[i].CalculatedAmount.Equal(after[i].CalculatedAmount))
		assert.Equal(t, before[i].Version, after[i].Version)
	}
}

func TestEditTotal_AmountChanged_Rejected(t *testing.T) {
	// GIVEN: A purchase already pending reconciliation
	// WHEN: Editing the total again
	// THEN: ErrAmountPending until the pending change is resolved

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "200.00", "alice", "alice", "bob")

	_, err := f.ledgers.EditTotal(ctx, p.ID, money("250.00"))
	require.NoError(t, err)

	_, err = f.ledgers.EditTotal(ctx, p.ID, money("300.00"))
	assert.ErrorIs(t, err, ledger.ErrAmountPending)
}

func TestLedgerEdits_RejectedOutsideDraft(t *testing.T) {
	// GIVEN: An active purchase
	// WHEN: Attempting ledger mutations
	// THEN: ErrPurchaseLocked for every edit path

	f := newFixture(t)
	ctx := context.Background()
	p := f.activePurchase(t, "30.00", "alice", "alice", "bob")
	rows := f.rows(t, p.ID)

	err := f.ledgers.RebuildFromManualShares(ctx, p.ID, members(1, 1))
	assert.ErrorIs(t, err, ledger.ErrPurchaseLocked)

	err = f.ledgers.UpdateMemberShares(ctx, p.ID, "alice", 3)
	assert.ErrorIs(t, err, ledger.ErrPurchaseLocked)

	err = f.ledgers.RedistributeEqually(ctx, p.ID)
	assert.ErrorIs(t, err, ledger.ErrPurchaseLocked)

	err = f.ledgers.RemoveParticipant(ctx, p.ID, "bob")
	assert.ErrorIs(t, err, ledger.ErrPurchaseLocked)

	err = f.ledgers.ApplyManualAmountOverride(ctx, rows[0].ID, money("5.00"))
	assert.ErrorIs(t, err, ledger.ErrPurchaseLocked)
}

// =============================================================================
// SHARE EDITS AND THE OVERRIDE RULE
// =============================================================================

func TestUpdateMemberShares_ClearsOnlyEditedRowOverride(t *testing.T) {
	// GIVEN: Overrides on both alice's and bob's rows
	// WHEN: Changing only bob's shares
	// THEN: Bob's override is cleared, alice's survives, every version
	//       is bumped

	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "30.00", "alice", "alice", "bob", "carol")

	rows := f.rows(t, p.ID)
	require.NoError(t, f.ledgers.ApplyManualAmountOverride(ctx, rowFor(t, rows, "alice").ID, money("9.00")))
	require.NoError(t, f.ledgers.ApplyManualAmountOverride(ctx, rowFor(t, rows, "bob").ID, money("11.00")))

	require.NoError(t, f.ledgers.UpdateMemberShares(ctx, p.ID, "bob", 2))

	rows = f.rows(t, p.ID)
	alice := rowFor(t, rows, "alice")
	bob := rowFor(t, rows, "bob")

	require.NotNil(t, alice.AdjustedAmount)
	assert.True(t, alice.AdjustedAmount.Equal(money("9.00")))
	assert.Nil(t, bob.AdjustedAmount)

	assert.Equal(t, 2, bob.Shares)
	assert.True(t, bob.CalculatedAmount.Equal(money("15.00")))
	for _, row := range rows {
		assert.Equal(t, 2, row.Version)
	}
}

func TestUpdateMemberShares_UnknownParticipant(t *testing.T) {
	f := newFixture(t)
	p := f.newDraftPurchase(t, "30.00", "alice", "alice", "bob")
	err := f.ledgers.UpdateMemberShares(context.Background(), p.ID, "nobody", 2)
	assert.ErrorIs(t, err, ledger.ErrDistributionNotFound)
}

func TestRedistributeEqually_ResetsSharesAndOverrides(t *testing.T) {
	// GIVEN: A weighted ledger with an override
	// WHEN: Redistributing equally
	// THEN: Every share is 1, overrides are gone, sum is exact

	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "100.01", "alice")
	require.NoError(t, f.ledgers.RebuildFromManualShares(ctx, p.ID, []ledger.ShareMember{
		{Participant: "alice", Shares: 5},
		{Participant: "bob", Shares: 1},
		{Participant: "carol", Shares: 1},
	}))
	rows := f.rows(t, p.ID)
	require.NoError(t, f.ledgers.ApplyManualAmountOverride(ctx, rows[0].ID, money("50.00")))

	require.NoError(t, f.ledgers.RedistributeEqually(ctx, p.ID))

	rows = f.rows(t, p.ID)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, 1, row.Shares)
		assert.Nil(t, row.AdjustedAmount)
	}
	assert.True(t, rows[0].CalculatedAmount.Equal(money("33.34")))
	assert.True(t, rows[2].CalculatedAmount.Equal(money("33.33")))
	assert.True(t, ledger.SumEffective(rows).Equal(money("100.01")))
}

func TestRedistributeEqually_EmptyLedger(t *testing.T) {
	f := newFixture(t)
	p := f.newDraftPurchase(t, "30.00", "alice")
	err := f.ledgers.RedistributeEqually(context.Background(), p.ID)
	assert.ErrorIs(t, err, ledger.ErrNoDistributions)
}

func TestRemoveParticipant_PreservesRemainingRatios(t *testing.T) {
	// GIVEN: Shares alice=2, bob=1, carol=1 over 40.00
	// WHEN: Removing carol
	// THEN: Alice and bob keep their 2:1 ratio over the full total

	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "40.00", "alice")
	require.NoError(t, f.ledgers.RebuildFromManualShares(ctx, p.ID, []ledger.ShareMember{
		{Participant: "alice", Shares: 2},
		{Participant: "bob", Shares: 1},
		{Participant: "carol", Shares: 1},
	}))

	require.NoError(t, f.ledgers.RemoveParticipant(ctx, p.ID, "carol"))

	rows := f.rows(t, p.ID)
	require.Len(t, rows, 2)
	alice := rowFor(t, rows, "alice")
	bob := rowFor(t, rows, "bob")
	assert.Equal(t, 2, alice.Shares)
	assert.Equal(t, 1, bob.Shares)
	assert.True(t, alice.CalculatedAmount.Equal(money("26.67")))
	assert.True(t, bob.CalculatedAmount.Equal(money("13.33")))
	assert.True(t, ledger.SumEffective(rows).Equal(money("40.00")))
}

func TestRemoveParticipant_LastMemberEmptiesLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "10.00", "alice", "alice")

	require.NoError(t, f.ledgers.RemoveParticipant(ctx, p.ID, "alice"))
	assert.Empty(t, f.rows(t, p.ID))

	// An emptied ledger cannot lock.
	_, err := f.statuses.Lock(ctx, p.ID, "alice")
	assert.ErrorIs(t, err, ledger.ErrNoDistributions)
}

// =============================================================================
// MANUAL AMOUNT OVERRIDES
// =============================================================================

func TestManualOverride_EffectiveAmountAndClear(t *testing.T) {
	// GIVEN: A row with a manual override
	// WHEN: Reading its effective amount, then clearing the override
	// THEN: The override wins while present, the calculated amount after

	f := newFixture(t)
	ctx := context.Background()
	p := f.newDraftPurchase(t, "30.00", "alice", "alice", "bob", "carol")

	rows := f.rows(t, p.ID)
	target := rowFor(t, rows, "bob")
	require.NoError(t, f.ledgers.ApplyManualAmountOverride(ctx, target.ID, money("12.50")))

	row, err := f.mem.Distributions().Get(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, row.EffectiveAmount().Equal(money("12.50")))
	assert.True(t, row.CalculatedAmount.Equal(money("10.00")))

	require.NoError(t, f.ledgers.ClearManualAmountOverride(ctx, target.ID))
	row, err = f.mem.Distributions().Get(ctx, target.ID)
	require.NoError(t, err)
	assert.Nil(t, row.AdjustedAmount)
	assert.True(t, row.EffectiveAmount().Equal(money("10.00")))
}
