// Package store provides in-memory implementations of the ledger
// storage interfaces, for tests and dev runs.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/VSydorenko/office-brew-tracker-sub000/ledger"
)

// =============================================================================
// MEMORY STORE - Implements every ledger storage interface
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	participants  map[ledger.ParticipantID]ledger.Participant
	templates     map[ledger.TemplateID]ledger.Template
	purchases     map[ledger.PurchaseID]ledger.Purchase
	distributions map[ledger.PurchaseID][]ledger.Distribution
	byRow         map[ledger.DistributionID]ledger.PurchaseID
}

func NewMemory() *Memory {
	return &Memory{
		participants:  make(map[ledger.ParticipantID]ledger.Participant),
		templates:     make(map[ledger.TemplateID]ledger.Template),
		purchases:     make(map[ledger.PurchaseID]ledger.Purchase),
		distributions: make(map[ledger.PurchaseID][]ledger.Distribution),
		byRow:         make(map[ledger.DistributionID]ledger.PurchaseID),
	}
}

// cloneRow copies a distribution including its pointer fields so
// callers never alias stored state.
func cloneRow(row ledger.Distribution) ledger.Distribution {
	out := row
	if row.AdjustedAmount != nil {
		v := *row.AdjustedAmount
		out.AdjustedAmount = &v
	}
	if row.PaidAt != nil {
		v := *row.PaidAt
		out.PaidAt = &v
	}
	if row.AdjustmentType != nil {
		v := *row.AdjustmentType
		out.AdjustmentType = &v
	}
	return out
}

func clonePurchase(p ledger.Purchase) ledger.Purchase {
	out := p
	if p.OriginalTotalAmount != nil {
		v := *p.OriginalTotalAmount
		out.OriginalTotalAmount = &v
	}
	if p.LockedAt != nil {
		v := *p.LockedAt
		out.LockedAt = &v
	}
	if p.LockedBy != nil {
		v := *p.LockedBy
		out.LockedBy = &v
	}
	if p.TemplateID != nil {
		v := *p.TemplateID
		out.TemplateID = &v
	}
	return out
}

func cloneTemplate(t ledger.Template) ledger.Template {
	out := t
	out.Members = append([]ledger.TemplateMember(nil), t.Members...)
	return out
}

// =============================================================================
// PARTICIPANT DIRECTORY
// =============================================================================

func (m *Memory) Get(ctx context.Context, id ledger.ParticipantID) (*ledger.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, ledger.ErrParticipantNotFound
	}
	return &p, nil
}

func (m *Memory) List(ctx context.Context) ([]ledger.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Put(ctx context.Context, p ledger.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.participants[p.ID] = p
	return nil
}

// =============================================================================
// TEMPLATE STORE
// =============================================================================

// Templates returns a TemplateStore view of the memory store. The
// method exists because Get collides across interfaces; the returned
// view shares the underlying data.
func (m *Memory) Templates() ledger.TemplateStore { return (*templateView)(m) }

type templateView Memory

func (v *templateView) Get(ctx context.Context, id ledger.TemplateID) (*ledger.Template, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	t, ok := v.templates[id]
	if !ok {
		return nil, ledger.ErrTemplateNotFound
	}
	out := cloneTemplate(t)
	return &out, nil
}

func (v *templateView) List(ctx context.Context) ([]ledger.Template, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]ledger.Template, 0, len(v.templates))
	for _, t := range v.templates {
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveFrom.After(out[j].EffectiveFrom) })
	return out, nil
}

func (v *templateView) ListActive(ctx context.Context, asOf time.Time) ([]ledger.Template, error) {
	all, err := v.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []ledger.Template
	for _, t := range all {
		if t.EligibleAt(asOf) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (v *templateView) Save(ctx context.Context, t ledger.Template) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.templates[t.ID] = cloneTemplate(t)
	return nil
}

func (v *templateView) Delete(ctx context.Context, id ledger.TemplateID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.templates[id]; !ok {
		return ledger.ErrTemplateNotFound
	}
	delete(v.templates, id)
	return nil
}

// =============================================================================
// PURCHASE STORE
// =============================================================================

func (m *Memory) Purchases() ledger.PurchaseStore { return (*purchaseView)(m) }

type purchaseView Memory

func (v *purchaseView) Get(ctx context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	p, ok := v.purchases[id]
	if !ok {
		return nil, ledger.ErrPurchaseNotFound
	}
	out := clonePurchase(p)
	return &out, nil
}

func (v *purchaseView) List(ctx context.Context) ([]ledger.Purchase, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]ledger.Purchase, 0, len(v.purchases))
	for _, p := range v.purchases {
		out = append(out, clonePurchase(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (v *purchaseView) ListByStatus(ctx context.Context, status ledger.Status) ([]ledger.Purchase, error) {
	all, err := v.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []ledger.Purchase
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (v *purchaseView) Save(ctx context.Context, p ledger.Purchase) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.purchases[p.ID] = clonePurchase(p)
	return nil
}

// =============================================================================
// DISTRIBUTION STORE
// =============================================================================

func (m *Memory) Distributions() ledger.DistributionStore { return (*distributionView)(m) }

type distributionView Memory

func (v *distributionView) Get(ctx context.Context, id ledger.DistributionID) (*ledger.Distribution, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	pid, ok := v.byRow[id]
	if !ok {
		return nil, ledger.ErrDistributionNotFound
	}
	for _, row := range v.distributions[pid] {
		if row.ID == id {
			out := cloneRow(row)
			return &out, nil
		}
	}
	return nil, ledger.ErrDistributionNotFound
}

func (v *distributionView) ListByPurchase(ctx context.Context, id ledger.PurchaseID) ([]ledger.Distribution, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	rows := v.distributions[id]
	out := make([]ledger.Distribution, len(rows))
	for i, row := range rows {
		out[i] = cloneRow(row)
	}
	return out, nil
}

func (v *distributionView) ReplaceAll(ctx context.Context, id ledger.PurchaseID, rows []ledger.Distribution) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, old := range v.distributions[id] {
		delete(v.byRow, old.ID)
	}

	stored := make([]ledger.Distribution, len(rows))
	for i, row := range rows {
		stored[i] = cloneRow(row)
		v.byRow[row.ID] = id
	}
	v.distributions[id] = stored
	return nil
}

func (v *distributionView) Insert(ctx context.Context, rows []ledger.Distribution) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, row := range rows {
		v.distributions[row.PurchaseID] = append(v.distributions[row.PurchaseID], cloneRow(row))
		v.byRow[row.ID] = row.PurchaseID
	}
	return nil
}

func (v *distributionView) Update(ctx context.Context, row ledger.Distribution) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	pid, ok := v.byRow[row.ID]
	if !ok {
		return ledger.ErrDistributionNotFound
	}
	rows := v.distributions[pid]
	for i := range rows {
		if rows[i].ID == row.ID {
			rows[i] = cloneRow(row)
			return nil
		}
	}
	return ledger.ErrDistributionNotFound
}
