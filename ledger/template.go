/*
template.go - Distribution template management

PURPOSE:
  Named, dated, reusable sets of (participant, shares) that supply the
  default participant set to new purchases. A purchase dated on or
  after a template's effective_from is eligible; the most recent
  eligible template is the default.

VALIDATION:
  Member shares must each be >= 1. TotalShares is recomputed from the
  members on every write and never trusted from the caller.

SEE ALSO:
  - distribution.go: BuildFromTemplate snapshots a template's shares
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TemplateService manages distribution templates.
type TemplateService struct {
	Templates TemplateStore

	Now NowFunc
}

// validateTemplateMembers checks every member carries at least one share.
func validateTemplateMembers(members []TemplateMember) (totalShares int, err error) {
	if len(members) == 0 {
		return 0, &InvalidSharesError{Shares: 0}
	}
	for _, m := range members {
		if m.Shares < 1 {
			return 0, &InvalidSharesError{Participant: m.Participant, Shares: m.Shares}
		}
		totalShares += m.Shares
	}
	return totalShares, nil
}

// Create stores a new template.
func (ts *TemplateService) Create(ctx context.Context, name string, effectiveFrom time.Time, members []TemplateMember) (*Template, error) {
	totalShares, err := validateTemplateMembers(members)
	if err != nil {
		return nil, err
	}

	now := ts.Now.now()
	t := Template{
		ID:            TemplateID(uuid.NewString()),
		Name:          name,
		EffectiveFrom: effectiveFrom,
		IsActive:      true,
		TotalShares:   totalShares,
		Members:       append([]TemplateMember(nil), members...),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := ts.Templates.Save(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update replaces a template's member set. TotalShares is recomputed.
func (ts *TemplateService) Update(ctx context.Context, id TemplateID, members []TemplateMember) (*Template, error) {
	totalShares, err := validateTemplateMembers(members)
	if err != nil {
		return nil, err
	}

	t, err := ts.Templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.Members = append([]TemplateMember(nil), members...)
	t.TotalShares = totalShares
	t.UpdatedAt = ts.Now.now()

	if err := ts.Templates.Save(ctx, *t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetActive toggles whether a template is offered to new purchases.
func (ts *TemplateService) SetActive(ctx context.Context, id TemplateID, active bool) (*Template, error) {
	t, err := ts.Templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.IsActive = active
	t.UpdatedAt = ts.Now.now()

	if err := ts.Templates.Save(ctx, *t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a template. Ledgers already built from it are
// snapshots and stay as they are.
func (ts *TemplateService) Delete(ctx context.Context, id TemplateID) error {
	return ts.Templates.Delete(ctx, id)
}

// ListActive returns eligible templates for a purchase dated asOf,
// most recent effective_from first.
func (ts *TemplateService) ListActive(ctx context.Context, asOf time.Time) ([]Template, error) {
	return ts.Templates.ListActive(ctx, asOf)
}

// DefaultFor returns the most recent eligible template for a purchase
// date, or nil when none qualifies.
func (ts *TemplateService) DefaultFor(ctx context.Context, purchaseDate time.Time) (*Template, error) {
	eligible, err := ts.Templates.ListActive(ctx, purchaseDate)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	return &eligible[0], nil
}
