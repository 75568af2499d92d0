/*
distribution.go - Purchase distribution ledger

PURPOSE:
  Translates a purchase plus a template or manual share edits into a
  consistent set of Distribution rows, and keeps them consistent while
  the purchase is still editable (draft).

LEDGER LIFECYCLE:
  created (template or manual) -> hand edits in draft -> locked into
  active for payment tracking. Multi-row rewrites always go through
  DistributionStore.ReplaceAll so a half-written ledger cannot exist.

OVERRIDE RULE:
  A manual amount override on a row survives everything except a
  recompute of that same row's shares. Changing one member's shares
  re-derives every row's calculated amount but clears only the edited
  row's override.

SEE ALSO:
  - normalize.go: The allocation algorithm all builds go through
  - status.go: Which of these mutations is legal in which status
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER SERVICE
// =============================================================================

// LedgerService builds and edits purchase distribution ledgers.
type LedgerService struct {
	Purchases     PurchaseStore
	Distributions DistributionStore
	Templates     TemplateStore
	Observer      ChangeObserver

	Now NowFunc
}

// requireEditable rejects ledger mutations outside draft.
func requireEditable(p *Purchase) error {
	switch p.Status {
	case StatusDraft:
		return nil
	case StatusAmountChanged:
		return ErrAmountPending
	default:
		return ErrPurchaseLocked
	}
}

// =============================================================================
// PURCHASE CREATION AND TOTAL EDITS
// =============================================================================

// CreatePurchase creates a draft purchase and, when a template is
// given, seeds its ledger from the template's shares.
func (ls *LedgerService) CreatePurchase(
	ctx context.Context,
	date time.Time,
	total decimal.Decimal,
	buyer ParticipantID,
	templateID *TemplateID,
) (*Purchase, error) {
	if !total.IsPositive() {
		return nil, ErrInvalidTotal
	}

	now := ls.Now.now()
	p := Purchase{
		ID:          PurchaseID(uuid.NewString()),
		Date:        date,
		Buyer:       buyer,
		TotalAmount: total,
		Status:      StatusDraft,
		TemplateID:  templateID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := ls.Purchases.Save(ctx, p); err != nil {
		return nil, err
	}

	if templateID != nil {
		if err := ls.BuildFromTemplate(ctx, p.ID, *templateID); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

// EditTotal changes a purchase's total amount.
//
// In draft the ledger is simply re-derived from the existing shares.
// In active or locked, editing the total while distributions exist
// flips the purchase to amount_changed; the reconciler must resolve it
// before the ledger is trusted again.
func (ls *LedgerService) EditTotal(ctx context.Context, id PurchaseID, newTotal decimal.Decimal) (*Purchase, error) {
	if !newTotal.IsPositive() {
		return nil, ErrInvalidTotal
	}

	p, err := ls.Purchases.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case StatusDraft:
		return ls.editDraftTotal(ctx, p, newTotal)

	case StatusActive, StatusLocked:
		rows, err := ls.Distributions.ListByPurchase(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			// Nothing to reconcile against; a plain update suffices.
			p.TotalAmount = newTotal
			p.UpdatedAt = ls.Now.now()
			if err := ls.Purchases.Save(ctx, *p); err != nil {
				return nil, err
			}
			notify(ls.Observer, p.ID)
			return p, nil
		}

		oldTotal := p.TotalAmount
		p.OriginalTotalAmount = &oldTotal
		p.TotalAmount = newTotal
		p.Status = StatusAmountChanged
		p.UpdatedAt = ls.Now.now()
		if err := ls.Purchases.Save(ctx, *p); err != nil {
			return nil, err
		}
		notify(ls.Observer, p.ID)
		return p, nil

	default: // amount_changed
		return nil, ErrAmountPending
	}
}

func (ls *LedgerService) editDraftTotal(ctx context.Context, p *Purchase, newTotal decimal.Decimal) (*Purchase, error) {
	rows, err := ls.Distributions.ListByPurchase(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		// Re-derive amounts from the existing shares. Shares are not
		// recomputed here, so manual overrides stay untouched.
		allocs, err := Normalize(membersOf(rows), newTotal)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Percentage = allocs[i].Percentage
			rows[i].CalculatedAmount = allocs[i].Amount
			rows[i].Version++
		}
		if err := ls.Distributions.ReplaceAll(ctx, p.ID, rows); err != nil {
			return nil, err
		}
	}

	p.TotalAmount = newTotal
	p.UpdatedAt = ls.Now.now()
	if err := ls.Purchases.Save(ctx, *p); err != nil {
		return nil, err
	}
	notify(ls.Observer, p.ID)
	return p, nil
}

// =============================================================================
// LEDGER BUILDS
// =============================================================================

// BuildFromTemplate snapshots a template's shares into a fresh ledger
// for the purchase. Any existing draft rows are replaced wholesale.
func (ls *LedgerService) BuildFromTemplate(ctx context.Context, id PurchaseID, templateID TemplateID) error {
	p, err := ls.Purchases.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireEditable(p); err != nil {
		return err
	}

	t, err := ls.Templates.Get(ctx, templateID)
	if err != nil {
		return err
	}

	members := make([]ShareMember, len(t.Members))
	for i, m := range t.Members {
		members[i] = ShareMember{Participant: m.Participant, Shares: m.Shares}
	}

	if err := ls.rebuild(ctx, p, members); err != nil {
		return err
	}

	tid := templateID
	p.TemplateID = &tid
	p.ManuallyModified = false
	p.UpdatedAt = ls.Now.now()
	return ls.Purchases.Save(ctx, *p)
}

// RebuildFromManualShares replaces the ledger from hand-entered
// shares and flags the purchase as manually modified.
func (ls *LedgerService) RebuildFromManualShares(ctx context.Context, id PurchaseID, members []ShareMember) error {
	p, err := ls.Purchases.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireEditable(p); err != nil {
		return err
	}

	if err := ls.rebuild(ctx, p, members); err != nil {
		return err
	}

	p.ManuallyModified = true
	p.UpdatedAt = ls.Now.now()
	if err := ls.Purchases.Save(ctx, *p); err != nil {
		return err
	}
	return nil
}

// rebuild normalizes members against the purchase total and replaces
// the ledger atomically.
func (ls *LedgerService) rebuild(ctx context.Context, p *Purchase, members []ShareMember) error {
	allocs, err := Normalize(members, p.TotalAmount)
	if err != nil {
		return err
	}

	now := ls.Now.now()
	rows := make([]Distribution, len(allocs))
	for i, a := range allocs {
		rows[i] = Distribution{
			ID:               DistributionID(uuid.NewString()),
			PurchaseID:       p.ID,
			Participant:      a.Participant,
			Shares:           a.Shares,
			Percentage:       a.Percentage,
			CalculatedAmount: a.Amount,
			Version:          1,
			CreatedAt:        now,
		}
	}

	if err := ls.Distributions.ReplaceAll(ctx, p.ID, rows); err != nil {
		return err
	}
	notify(ls.Observer, p.ID)
	return nil
}

// =============================================================================
// IN-DRAFT EDITS
// =============================================================================

// ApplyManualAmountOverride sets a row's adjusted amount. The
// calculated amount is left untouched so the override can be audited
// against it.
func (ls *LedgerService) ApplyManualAmountOverride(ctx context.Context, id DistributionID, amount decimal.Decimal) error {
	row, err := ls.Distributions.Get(ctx, id)
	if err != nil {
		return err
	}

	p, err := ls.Purchases.Get(ctx, row.PurchaseID)
	if err != nil {
		return err
	}
	if err := requireEditable(p); err != nil {
		return err
	}

	adjusted := RoundMoney(amount)
	row.AdjustedAmount = &adjusted
	if err := ls.Distributions.Update(ctx, *row); err != nil {
		return err
	}
	notify(ls.Observer, p.ID)
	return nil
}

// ClearManualAmountOverride removes a row's adjusted amount so the
// calculated amount becomes effective again.
func (ls *LedgerService) ClearManualAmountOverride(ctx context.Context, id DistributionID) error {
	row, err := ls.Distributions.Get(ctx, id)
	if err != nil {
		return err
	}

	p, err := ls.Purchases.Get(ctx, row.PurchaseID)
	if err != nil {
		return err
	}
	if err := requireEditable(p); err != nil {
		return err
	}

	if row.AdjustedAmount == nil {
		return nil
	}
	row.AdjustedAmount = nil
	if err := ls.Distributions.Update(ctx, *row); err != nil {
		return err
	}
	notify(ls.Observer, p.ID)
	return nil
}

// UpdateMemberShares changes one member's shares and re-derives every
// row's calculated amount. Only the edited row's manual override is
// cleared; rows the user did not touch keep theirs.
func (ls *LedgerService) UpdateMemberShares(ctx context.Context, id PurchaseID, participant ParticipantID, shares int) error {
	p, err := ls.Purchases.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireEditable(p); err != nil {
		return err
	}

	rows, err := ls.Distributions.ListByPurchase(ctx, id)
	if err != nil {
		return err
	}

	found := false
	members := make([]ShareMember, len(rows))
	for i, row := range rows {
		s := row.Shares
		if row.Participant == participant {
			s = shares
			found = true
		}
		members[i] = ShareMember{Participant: row.Participant, Shares: s}
	}
	if !found {
		return ErrDistributionNotFound
	}

	allocs, err := Normalize(members, p.TotalAmount)
	if err != nil {
		return err
	}

	for i := range rows {
		rows[i].Shares = allocs[i].Shares
		rows[i].Percentage = allocs[i].Percentage
		rows[i].CalculatedAmount = allocs[i].Amount
		rows[i].Version++
		if rows[i].Participant == participant {
			rows[i].AdjustedAmount = nil
		}
	}

	if err := ls.Distributions.ReplaceAll(ctx, id, rows); err != nil {
		return err
	}
	notify(ls.Observer, id)
	return nil
}

// RedistributeEqually sets every member's shares to 1 and
// re-normalizes. Idempotent: applying it twice yields the same ledger
// as applying it once.
func (ls *LedgerService) RedistributeEqually(ctx context.Context, id PurchaseID) error {
	p, err := ls.Purchases.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireEditable(p); err != nil {
		return err
	}

	rows, err := ls.Distributions.ListByPurchase(ctx, id)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNoDistributions
	}

	participants := make([]ParticipantID, len(rows))
	for i, row := range rows {
		participants[i] = row.Participant
	}

	allocs, err := Normalize(EqualMembers(participants), p.TotalAmount)
	if err != nil {
		return err
	}

	for i := range rows {
		rows[i].Shares = allocs[i].Shares
		rows[i].Percentage = allocs[i].Percentage
		rows[i].CalculatedAmount = allocs[i].Amount
		rows[i].AdjustedAmount = nil
		rows[i].Version++
	}

	if err := ls.Distributions.ReplaceAll(ctx, id, rows); err != nil {
		return err
	}
	notify(ls.Observer, id)
	return nil
}

// RemoveParticipant drops one member from an unlocked ledger and
// re-normalizes the remaining members over their existing share
// ratios, preserving relative weights. Removing the last member
// clears the ledger to empty; new members must be supplied before it
// can lock.
func (ls *LedgerService) RemoveParticipant(ctx context.Context, id PurchaseID, participant ParticipantID) error {
	p, err := ls.Purchases.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireEditable(p); err != nil {
		return err
	}

	rows, err := ls.Distributions.ListByPurchase(ctx, id)
	if err != nil {
		return err
	}

	var remaining []Distribution
	found := false
	for _, row := range rows {
		if row.Participant == participant {
			found = true
			continue
		}
		remaining = append(remaining, row)
	}
	if !found {
		return ErrDistributionNotFound
	}

	if len(remaining) == 0 {
		if err := ls.Distributions.ReplaceAll(ctx, id, nil); err != nil {
			return err
		}
		notify(ls.Observer, id)
		return nil
	}

	allocs, err := Normalize(membersOf(remaining), p.TotalAmount)
	if err != nil {
		return err
	}
	for i := range remaining {
		remaining[i].Percentage = allocs[i].Percentage
		remaining[i].CalculatedAmount = allocs[i].Amount
		remaining[i].Version++
	}

	if err := ls.Distributions.ReplaceAll(ctx, id, remaining); err != nil {
		return err
	}
	notify(ls.Observer, id)
	return nil
}

// Ledger returns the purchase's current distribution rows.
func (ls *LedgerService) Ledger(ctx context.Context, id PurchaseID) ([]Distribution, error) {
	if _, err := ls.Purchases.Get(ctx, id); err != nil {
		return nil, err
	}
	return ls.Distributions.ListByPurchase(ctx, id)
}

// membersOf extracts the share members from existing rows, preserving
// row order.
func membersOf(rows []Distribution) []ShareMember {
	members := make([]ShareMember, len(rows))
	for i, row := range rows {
		members[i] = ShareMember{Participant: row.Participant, Shares: row.Shares}
	}
	return members
}
