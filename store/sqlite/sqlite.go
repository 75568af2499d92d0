/*
Package sqlite provides a SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ParticipantDirectory, TemplateStore, PurchaseStore and
  DistributionStore using SQLite. The same patterns apply to
  PostgreSQL; only minor SQL dialect differences.

ATOMICITY:
  ReplaceAll (delete + insert of a purchase's whole ledger) and
  template saves (template + members) run inside a single SQL
  transaction. A partial rewrite rolls back and surfaces as a
  StorageError carrying the purchase id, never as a half-written
  ledger.

KEY TABLES:
  participants:     Opaque id + display name
  templates:        Reusable share sets (header)
  template_members: Per-template participant shares
  purchases:        One row per shared expense, with status
  distributions:    One row per participant per purchase

MONEY:
  Amounts are stored as decimal strings (TEXT), never floats, and
  parsed back through shopspring/decimal.

WAL MODE:
  Opened with WAL for better read concurrency and crash recovery.
  Uses sync.RWMutex for in-process thread-safety.

USAGE:
  st, err := sqlite.New("./brew.db")   // ":memory:" for tests
  svc := &ledger.LedgerService{
      Purchases:     st.Purchases(),
      Distributions: st.Distributions(),
      Templates:     st.Templates(),
  }

SEE ALSO:
  - ledger/store.go: Interface contracts
  - ledger/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/VSydorenko/office-brew-tracker-sub000/ledger"
)

// Store implements all ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		total_shares INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS template_members (
		template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
		participant_id TEXT NOT NULL,
		shares INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (template_id, participant_id)
	);

	-- Default-template lookup: active templates by recency
	CREATE INDEX IF NOT EXISTS idx_templates_active_from
		ON templates(is_active, effective_from DESC);

	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		purchase_date TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		original_total_amount TEXT,
		status TEXT NOT NULL,
		locked_at TEXT,
		locked_by TEXT,
		template_id TEXT,
		manually_modified INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_status ON purchases(status);
	CREATE INDEX IF NOT EXISTS idx_purchases_date ON purchases(purchase_date DESC);

	CREATE TABLE IF NOT EXISTS distributions (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		shares INTEGER NOT NULL,
		percentage TEXT NOT NULL,
		calculated_amount TEXT NOT NULL,
		adjusted_amount TEXT,
		is_paid INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		adjustment_type TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	-- Ledger reads are always per purchase (hot path)
	CREATE INDEX IF NOT EXISTS idx_distributions_purchase
		ON distributions(purchase_id);
	CREATE INDEX IF NOT EXISTS idx_distributions_participant
		ON distributions(participant_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCAN / FORMAT HELPERS
// =============================================================================

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// PARTICIPANT DIRECTORY
// =============================================================================

func (s *Store) Get(ctx context.Context, id ledger.ParticipantID) (*ledger.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, display_name FROM participants WHERE id = ?`, string(id))

	var p ledger.Participant
	if err := row.Scan(&p.ID, &p.DisplayName); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrParticipantNotFound
		}
		return nil, &ledger.StorageError{Op: "get participant", Err: err}
	}
	return &p, nil
}

func (s *Store) List(ctx context.Context) ([]ledger.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name FROM participants ORDER BY id`)
	if err != nil {
		return nil, &ledger.StorageError{Op: "list participants", Err: err}
	}
	defer rows.Close()

	var out []ledger.Participant
	for rows.Next() {
		var p ledger.Participant
		if err := rows.Scan(&p.ID, &p.DisplayName); err != nil {
			return nil, &ledger.StorageError{Op: "scan participant", Err: err}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Put(ctx context.Context, p ledger.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (id, display_name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`,
		string(p.ID), p.DisplayName)
	if err != nil {
		return &ledger.StorageError{Op: "put participant", Err: err}
	}
	return nil
}

// =============================================================================
// TEMPLATE STORE
// =============================================================================

// Templates returns the TemplateStore view of this store.
func (s *Store) Templates() ledger.TemplateStore { return (*templateStore)(s) }

type templateStore Store

func (ts *templateStore) Get(ctx context.Context, id ledger.TemplateID) (*ledger.Template, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.getLocked(ctx, id)
}

func (ts *templateStore) getLocked(ctx context.Context, id ledger.TemplateID) (*ledger.Template, error) {
	row := ts.db.QueryRowContext(ctx,
		`SELECT id, name, effective_from, is_active, total_shares, created_at, updated_at
		 FROM templates WHERE id = ?`, string(id))

	var t ledger.Template
	var effectiveFrom, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Name, &effectiveFrom, &t.IsActive, &t.TotalShares, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrTemplateNotFound
		}
		return nil, &ledger.StorageError{Op: "get template", Err: err}
	}
	t.EffectiveFrom = parseTime(effectiveFrom)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	members, err := ts.members(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return &t, nil
}

func (ts *templateStore) members(ctx context.Context, id ledger.TemplateID) ([]ledger.TemplateMember, error) {
	rows, err := ts.db.QueryContext(ctx,
		`SELECT participant_id, shares FROM template_members
		 WHERE template_id = ? ORDER BY position`, string(id))
	if err != nil {
		return nil, &ledger.StorageError{Op: "list template members", Err: err}
	}
	defer rows.Close()

	var out []ledger.TemplateMember
	for rows.Next() {
		var m ledger.TemplateMember
		if err := rows.Scan(&m.Participant, &m.Shares); err != nil {
			return nil, &ledger.StorageError{Op: "scan template member", Err: err}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (ts *templateStore) List(ctx context.Context) ([]ledger.Template, error) {
	return ts.list(ctx, `SELECT id FROM templates ORDER BY effective_from DESC`)
}

func (ts *templateStore) ListActive(ctx context.Context, asOf time.Time) ([]ledger.Template, error) {
	return ts.list(ctx,
		`SELECT id FROM templates WHERE is_active = 1 AND effective_from <= ?
		 ORDER BY effective_from DESC`, formatTime(asOf))
}

func (ts *templateStore) list(ctx context.Context, query string, args ...any) ([]ledger.Template, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	rows, err := ts.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StorageError{Op: "list templates", Err: err}
	}
	defer rows.Close()

	var ids []ledger.TemplateID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &ledger.StorageError{Op: "scan template id", Err: err}
		}
		ids = append(ids, ledger.TemplateID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.StorageError{Op: "list templates", Err: err}
	}

	out := make([]ledger.Template, 0, len(ids))
	for _, id := range ids {
		t, err := ts.getLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (ts *templateStore) Save(ctx context.Context, t ledger.Template) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	tx, err := ts.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StorageError{Op: "save template", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO templates (id, name, effective_from, is_active, total_shares, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			effective_from = excluded.effective_from,
			is_active = excluded.is_active,
			total_shares = excluded.total_shares,
			updated_at = excluded.updated_at`,
		string(t.ID), t.Name, formatTime(t.EffectiveFrom), t.IsActive, t.TotalShares,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return &ledger.StorageError{Op: "save template", Err: err}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM template_members WHERE template_id = ?`, string(t.ID)); err != nil {
		return &ledger.StorageError{Op: "save template members", Err: err}
	}
	for i, m := range t.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO template_members (template_id, participant_id, shares, position)
			 VALUES (?, ?, ?, ?)`,
			string(t.ID), string(m.Participant), m.Shares, i); err != nil {
			return &ledger.StorageError{Op: "save template members", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &ledger.StorageError{Op: "save template", Err: err}
	}
	return nil
}

func (ts *templateStore) Delete(ctx context.Context, id ledger.TemplateID) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	res, err := ts.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, string(id))
	if err != nil {
		return &ledger.StorageError{Op: "delete template", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTemplateNotFound
	}
	return nil
}

// =============================================================================
// PURCHASE STORE
// =============================================================================

// Purchases returns the PurchaseStore view of this store.
func (s *Store) Purchases() ledger.PurchaseStore { return (*purchaseStore)(s) }

type purchaseStore Store

const purchaseColumns = `id, purchase_date, buyer_id, total_amount, original_total_amount,
	status, locked_at, locked_by, template_id, manually_modified, created_at, updated_at`

func scanPurchase(scan func(dest ...any) error) (*ledger.Purchase, error) {
	var p ledger.Purchase
	var date, total, createdAt, updatedAt string
	var originalTotal, lockedAt, lockedBy, templateID sql.NullString

	err := scan(&p.ID, &date, &p.Buyer, &total, &originalTotal,
		&p.Status, &lockedAt, &lockedBy, &templateID, &p.ManuallyModified, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.Date = parseTime(date)
	p.TotalAmount = parseDecimal(total)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	if originalTotal.Valid {
		d := parseDecimal(originalTotal.String)
		p.OriginalTotalAmount = &d
	}
	if lockedAt.Valid {
		t := parseTime(lockedAt.String)
		p.LockedAt = &t
	}
	if lockedBy.Valid {
		id := ledger.ParticipantID(lockedBy.String)
		p.LockedBy = &id
	}
	if templateID.Valid {
		id := ledger.TemplateID(templateID.String)
		p.TemplateID = &id
	}
	return &p, nil
}

func (ps *purchaseStore) Get(ctx context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	row := ps.db.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id = ?`, string(id))

	p, err := scanPurchase(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrPurchaseNotFound
		}
		return nil, &ledger.StorageError{Op: "get purchase", PurchaseID: id, Err: err}
	}
	return p, nil
}

func (ps *purchaseStore) List(ctx context.Context) ([]ledger.Purchase, error) {
	return ps.list(ctx, `SELECT `+purchaseColumns+` FROM purchases ORDER BY purchase_date DESC`)
}

func (ps *purchaseStore) ListByStatus(ctx context.Context, status ledger.Status) ([]ledger.Purchase, error) {
	return ps.list(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE status = ? ORDER BY purchase_date DESC`,
		string(status))
}

func (ps *purchaseStore) list(ctx context.Context, query string, args ...any) ([]ledger.Purchase, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StorageError{Op: "list purchases", Err: err}
	}
	defer rows.Close()

	var out []ledger.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows.Scan)
		if err != nil {
			return nil, &ledger.StorageError{Op: "scan purchase", Err: err}
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (ps *purchaseStore) Save(ctx context.Context, p ledger.Purchase) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var templateID sql.NullString
	if p.TemplateID != nil {
		templateID = sql.NullString{String: string(*p.TemplateID), Valid: true}
	}
	var lockedBy sql.NullString
	if p.LockedBy != nil {
		lockedBy = sql.NullString{String: string(*p.LockedBy), Valid: true}
	}

	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO purchases (`+purchaseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			purchase_date = excluded.purchase_date,
			buyer_id = excluded.buyer_id,
			total_amount = excluded.total_amount,
			original_total_amount = excluded.original_total_amount,
			status = excluded.status,
			locked_at = excluded.locked_at,
			locked_by = excluded.locked_by,
			template_id = excluded.template_id,
			manually_modified = excluded.manually_modified,
			updated_at = excluded.updated_at`,
		string(p.ID), formatTime(p.Date), string(p.Buyer), p.TotalAmount.String(),
		nullDecimal(p.OriginalTotalAmount), string(p.Status), nullTime(p.LockedAt),
		lockedBy, templateID, p.ManuallyModified,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return &ledger.StorageError{Op: "save purchase", PurchaseID: p.ID, Err: err}
	}
	return nil
}

// =============================================================================
// DISTRIBUTION STORE
// =============================================================================

// Distributions returns the DistributionStore view of this store.
func (s *Store) Distributions() ledger.DistributionStore { return (*distributionStore)(s) }

type distributionStore Store

const distributionColumns = `id, purchase_id, participant_id, shares, percentage,
	calculated_amount, adjusted_amount, is_paid, paid_at, version, adjustment_type, notes, created_at`

func scanDistribution(scan func(dest ...any) error) (*ledger.Distribution, error) {
	var d ledger.Distribution
	var percentage, calculated, createdAt string
	var adjusted, paidAt, adjustmentType, notes sql.NullString

	err := scan(&d.ID, &d.PurchaseID, &d.Participant, &d.Shares, &percentage,
		&calculated, &adjusted, &d.IsPaid, &paidAt, &d.Version, &adjustmentType, &notes, &createdAt)
	if err != nil {
		return nil, err
	}

	d.Percentage = parseDecimal(percentage)
	d.CalculatedAmount = parseDecimal(calculated)
	d.CreatedAt = parseTime(createdAt)

	if adjusted.Valid {
		v := parseDecimal(adjusted.String)
		d.AdjustedAmount = &v
	}
	if paidAt.Valid {
		t := parseTime(paidAt.String)
		d.PaidAt = &t
	}
	if adjustmentType.Valid {
		at := ledger.AdjustmentType(adjustmentType.String)
		d.AdjustmentType = &at
	}
	if notes.Valid {
		d.Notes = notes.String
	}
	return &d, nil
}

func (ds *distributionStore) Get(ctx context.Context, id ledger.DistributionID) (*ledger.Distribution, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	row := ds.db.QueryRowContext(ctx,
		`SELECT `+distributionColumns+` FROM distributions WHERE id = ?`, string(id))

	d, err := scanDistribution(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrDistributionNotFound
		}
		return nil, &ledger.StorageError{Op: "get distribution", Err: err}
	}
	return d, nil
}

func (ds *distributionStore) ListByPurchase(ctx context.Context, id ledger.PurchaseID) ([]ledger.Distribution, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	rows, err := ds.db.QueryContext(ctx,
		`SELECT `+distributionColumns+` FROM distributions
		 WHERE purchase_id = ? ORDER BY rowid`, string(id))
	if err != nil {
		return nil, &ledger.StorageError{Op: "list distributions", PurchaseID: id, Err: err}
	}
	defer rows.Close()

	var out []ledger.Distribution
	for rows.Next() {
		d, err := scanDistribution(rows.Scan)
		if err != nil {
			return nil, &ledger.StorageError{Op: "scan distribution", PurchaseID: id, Err: err}
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func insertDistribution(ctx context.Context, tx *sql.Tx, d ledger.Distribution) error {
	var adjustmentType sql.NullString
	if d.AdjustmentType != nil {
		adjustmentType = sql.NullString{String: string(*d.AdjustmentType), Valid: true}
	}
	var notes sql.NullString
	if d.Notes != "" {
		notes = sql.NullString{String: d.Notes, Valid: true}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO distributions (`+distributionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(d.ID), string(d.PurchaseID), string(d.Participant), d.Shares,
		d.Percentage.String(), d.CalculatedAmount.String(), nullDecimal(d.AdjustedAmount),
		d.IsPaid, nullTime(d.PaidAt), d.Version, adjustmentType, notes,
		formatTime(d.CreatedAt))
	return err
}

// ReplaceAll rewrites a purchase's ledger inside one SQL transaction
// so a partial rewrite can never be observed.
func (ds *distributionStore) ReplaceAll(ctx context.Context, id ledger.PurchaseID, rows []ledger.Distribution) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	tx, err := ds.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StorageError{Op: "replace distributions", PurchaseID: id, Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM distributions WHERE purchase_id = ?`, string(id)); err != nil {
		return &ledger.StorageError{Op: "replace distributions", PurchaseID: id, Err: err}
	}
	for _, d := range rows {
		if err := insertDistribution(ctx, tx, d); err != nil {
			return &ledger.StorageError{Op: "replace distributions", PurchaseID: id, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &ledger.StorageError{Op: "replace distributions", PurchaseID: id, Err: err}
	}
	return nil
}

func (ds *distributionStore) Insert(ctx context.Context, rows []ledger.Distribution) error {
	if len(rows) == 0 {
		return nil
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	pid := rows[0].PurchaseID
	tx, err := ds.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StorageError{Op: "insert distributions", PurchaseID: pid, Err: err}
	}
	defer tx.Rollback()

	for _, d := range rows {
		if err := insertDistribution(ctx, tx, d); err != nil {
			return &ledger.StorageError{Op: "insert distributions", PurchaseID: pid, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &ledger.StorageError{Op: "insert distributions", PurchaseID: pid, Err: err}
	}
	return nil
}

func (ds *distributionStore) Update(ctx context.Context, d ledger.Distribution) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	var adjustmentType sql.NullString
	if d.AdjustmentType != nil {
		adjustmentType = sql.NullString{String: string(*d.AdjustmentType), Valid: true}
	}
	var notes sql.NullString
	if d.Notes != "" {
		notes = sql.NullString{String: d.Notes, Valid: true}
	}

	res, err := ds.db.ExecContext(ctx,
		`UPDATE distributions SET
			shares = ?, percentage = ?, calculated_amount = ?, adjusted_amount = ?,
			is_paid = ?, paid_at = ?, version = ?, adjustment_type = ?, notes = ?
		 WHERE id = ?`,
		d.Shares, d.Percentage.String(), d.CalculatedAmount.String(),
		nullDecimal(d.AdjustedAmount), d.IsPaid, nullTime(d.PaidAt),
		d.Version, adjustmentType, notes, string(d.ID))
	if err != nil {
		return &ledger.StorageError{Op: "update distribution", PurchaseID: d.PurchaseID, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrDistributionNotFound
	}
	return nil
}
