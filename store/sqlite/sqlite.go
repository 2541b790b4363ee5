/*
Package sqlite provides the durable SQLite backing store.

PURPOSE:
  Persists the two append-only trails of the system so a restart can
  rebuild in-memory state:
    - stock movements (implements stock.MovementStore)
    - activity entries (implements audit.Sink)
  plus a record of every ledger reconciliation run.

  Registries (waybills, invoices, expenses) and the catalog are held in
  memory and are not stored here.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on movements or activity
  - No DELETE statements on movements
  - Corrections are new movements (adjustment / return)

KEY TABLES:
  movements:           Immutable stock ledger, ordered by seq
  activity:            Activity log entries, ordered by seq
  reconciliation_runs: Outcome of each Ledger.Reconcile

INDEXES:
  - idx_movements_key:       per warehouse+product replay (hot path)
  - idx_movements_reference: lookups by waybill/invoice/transfer id

CONCURRENCY:
  A sync.RWMutex serializes writers; the pool is capped at one connection,
  which also keeps ":memory:" databases shared across calls.

WAL MODE:
  File databases are opened with WAL so readers do not block the writer.

USAGE:
  db, err := sqlite.New("./data/warehouse.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

  ledger, err := stock.NewLedger(ctx, catalog, db, stock.Options{})
  activity := audit.NewLog(audit.Options{Sink: db})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - stock/store.go: MovementStore interface
  - stock/store/memory.go: In-memory implementation for testing
  - audit/activity.go: Sink interface
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/mellovesfromage/warehouse-system/audit"
	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/stock"
)

// timeLayout is fixed width so stored timestamps sort lexically. Reads use
// time.RFC3339Nano, which also accepts rows written with trimmed fractions.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements stock.MovementStore and audit.Sink using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	-- Movements (append-only stock ledger)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		delta INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		occurred_at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_name TEXT,
		reference_id TEXT,
		note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_movements_key
		ON movements(warehouse_id, product_id, seq);
	CREATE INDEX IF NOT EXISTS idx_movements_reference
		ON movements(reference_id) WHERE reference_id IS NOT NULL;

	-- Activity log
	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		actor_id TEXT NOT NULL,
		actor_name TEXT,
		action TEXT NOT NULL,
		detail TEXT,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_seq ON activity(seq);

	-- Reconciliation runs
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		movements INTEGER NOT NULL,
		key_count INTEGER NOT NULL,
		drifted INTEGER NOT NULL,
		error TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MOVEMENT STORE (stock.MovementStore interface)
// =============================================================================

const movementColumns = `id, seq, kind, warehouse_id, product_id, delta, balance_after,
	occurred_at, actor_id, actor_name, reference_id, note`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append adds one movement.
func (s *Store) Append(ctx context.Context, m stock.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendMovement(ctx, s.db, m)
}

func (s *Store) appendMovement(ctx context.Context, db execer, m stock.Movement) error {
	query := `INSERT INTO movements (` + movementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		m.ID,
		m.Seq,
		string(m.Kind),
		m.WarehouseID,
		m.ProductID,
		m.Delta,
		m.BalanceAfter,
		m.Timestamp.UTC().Format(timeLayout),
		m.Actor.ID,
		nullString(m.Actor.Name),
		nullString(m.ReferenceID),
		nullString(m.Note),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return stock.ErrDuplicateMovement
		}
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// AppendBatch adds movements in one SQL transaction.
func (s *Store) AppendBatch(ctx context.Context, ms []stock.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, m := range ms {
		if err := s.appendMovement(ctx, sqlTx, m); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// Load returns the movements for one key in seq order.
func (s *Store) Load(ctx context.Context, key stock.StockKey) ([]stock.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE warehouse_id = ? AND product_id = ?
		ORDER BY seq ASC`
	return s.queryMovements(ctx, query, key.WarehouseID, key.ProductID)
}

// LoadAll returns every movement in seq order.
func (s *Store) LoadAll(ctx context.Context) ([]stock.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMovements(ctx, `SELECT `+movementColumns+` FROM movements ORDER BY seq ASC`)
}

// Query returns matching movements newest first.
func (s *Store) Query(ctx context.Context, f stock.MovementFilter) ([]stock.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.WarehouseID != "" {
		where = append(where, "warehouse_id = ?")
		args = append(args, f.WarehouseID)
	}
	if f.ProductID != "" {
		where = append(where, "product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.ReferenceID != "" {
		where = append(where, "reference_id = ?")
		args = append(args, f.ReferenceID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}

	query := `SELECT ` + movementColumns + ` FROM movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return s.queryMovements(ctx, query, args...)
}

func (s *Store) queryMovements(ctx context.Context, query string, args ...any) ([]stock.Movement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []stock.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanMovement(rows *sql.Rows) (stock.Movement, error) {
	var (
		m          stock.Movement
		kind       string
		occurredAt string
		actorName  sql.NullString
		reference  sql.NullString
		note       sql.NullString
	)
	err := rows.Scan(
		&m.ID, &m.Seq, &kind, &m.WarehouseID, &m.ProductID, &m.Delta, &m.BalanceAfter,
		&occurredAt, &m.Actor.ID, &actorName, &reference, &note,
	)
	if err != nil {
		return m, fmt.Errorf("failed to scan movement: %w", err)
	}
	m.Kind = stock.MovementKind(kind)
	m.Timestamp, err = time.Parse(time.RFC3339Nano, occurredAt)
	if err != nil {
		return m, fmt.Errorf("movement %s: bad timestamp %q: %w", m.ID, occurredAt, err)
	}
	m.Actor.Name = actorName.String
	m.ReferenceID = reference.String
	m.Note = note.String
	return m, nil
}

// =============================================================================
// ACTIVITY (audit.Sink interface)
// =============================================================================

// RecordActivity persists one activity entry.
func (s *Store) RecordActivity(ctx context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, seq, actor_id, actor_name, action, detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Seq, e.Actor.ID, nullString(e.Actor.Name), e.Action, nullString(e.Detail),
		e.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit of the latest entries, oldest first,
// ready for audit.Log.Restore.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, actor_id, actor_name, action, detail, occurred_at
		FROM activity
		ORDER BY seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			actorName  sql.NullString
			detail     sql.NullString
			occurredAt string
		)
		if err := rows.Scan(&e.ID, &e.Seq, &e.Actor.ID, &actorName, &e.Action, &detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Actor.Name = actorName.String
		e.Detail = detail.String
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, occurredAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// ReconciliationRun records one pass of Ledger.Reconcile.
type ReconciliationRun struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Movements   int       `json:"movements"`
	Keys        int       `json:"keys"`
	Drifted     int       `json:"drifted"`
	Error       string    `json:"error,omitempty"`
}

// SaveReconciliationRun stores a run. An empty ID is generated.
func (s *Store) SaveReconciliationRun(ctx context.Context, r ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = core.NewID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, started_at, completed_at, movements, key_count, drifted, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(timeLayout), r.CompletedAt.UTC().Format(timeLayout),
		r.Movements, r.Keys, r.Drifted, nullString(r.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation run: %w", err)
	}
	return nil
}

// ReconciliationRuns returns the latest runs, newest first.
func (s *Store) ReconciliationRuns(ctx context.Context, limit int) ([]ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, movements, key_count, drifted, error
		FROM reconciliation_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReconciliationRun
	for rows.Next() {
		var (
			r                    ReconciliationRun
			startedAt, completed string
			errText              sql.NullString
		)
		if err := rows.Scan(&r.ID, &startedAt, &completed, &r.Movements, &r.Keys, &r.Drifted, &errText); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
