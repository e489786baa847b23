/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore (requests, leave balances, audit log) and
  generic.Directory (employees) on one SQLite database. In production the
  same patterns apply to PostgreSQL with minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.LedgerStore:  Per-employee leave balances
  generic.RequestStore: Leave applications and reimbursements
  generic.AuditLog:     Append-only transition history
  generic.TxStore:      All of the above plus WithTx
  generic.Directory:    Employee lookups

KEY TABLES:
  employees:      Directory records (department, approver)
  requests:       Both request kinds, discriminated by kind
  leave_balances: One row per employee, created lazily
  audit_log:      Append-only; seq is AUTOINCREMENT so it never repeats

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch audit_log outside Reset.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single open connection.
  WithTx holds the write lock for the whole database transaction, so
  writers are serialized and readers never see a half-applied change.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/requests.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := generic.NewEngine(store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
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

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/request-engine/generic"
)

const timeLayout = time.RFC3339Nano

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// Allocation decides lazily created balances.
	Allocation generic.AllocationPolicy
	Now        func() time.Time
	NewID      func() generic.RequestID
}

var (
	_ generic.TxStore   = (*Store)(nil)
	_ generic.Directory = (*Store)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" a single database and makes the
	// mutex the only scheduler.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:         db,
		Allocation: generic.FixedAllocation(generic.DefaultAllocation),
		Now:        time.Now,
		NewID:      newRequestID,
	}
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

func newRequestID() generic.RequestID {
	id, err := uuid.NewV7()
	if err != nil {
		return generic.RequestID(uuid.NewString())
	}
	return generic.RequestID(id.String())
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees (directory)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		department TEXT NOT NULL,
		approver_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department, id);

	-- Requests (leave applications and reimbursements)
	CREATE TABLE IF NOT EXISTS requests (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		status TEXT NOT NULL,
		submitted_at TEXT NOT NULL,
		approved_by TEXT,
		approved_at TEXT,
		rejected_reason TEXT,

		-- leave
		leave_type TEXT,
		start_date TEXT,
		end_date TEXT,
		days INTEGER,
		reason TEXT,
		handover_details TEXT,

		-- reimbursement
		expense_type TEXT,
		amount TEXT,
		currency TEXT,
		description TEXT,

		UNIQUE (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_kind_employee
		ON requests(kind, employee_id, seq);
	CREATE INDEX IF NOT EXISTS idx_requests_kind_status
		ON requests(kind, status, seq);

	-- Leave balances (one row per employee)
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT PRIMARY KEY,
		annual INTEGER NOT NULL,
		sick INTEGER NOT NULL,
		casual INTEGER NOT NULL,
		total_allocated INTEGER NOT NULL,
		total_used INTEGER NOT NULL,
		total_remaining INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (annual >= 0 AND sick >= 0 AND casual >= 0 AND total_remaining >= 0),
		CHECK (total_used + total_remaining = total_allocated)
	);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		department TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_log(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_actor
		ON audit_log(actor_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (generic.LedgerStore interface)
// =============================================================================

// GetBalance returns the stored balance, creating the default on first call.
func (s *Store) GetBalance(ctx context.Context, employeeID generic.EmployeeID) (generic.LeaveBalance, error) {
	s.mu.RLock()
	b, found, err := loadBalance(ctx, s.db, employeeID)
	s.mu.RUnlock()
	if err != nil || found {
		return b, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceTx(ctx, s.db, employeeID)
}

// balanceTx returns the stored balance or inserts the default allocation.
func (s *Store) balanceTx(ctx context.Context, q querier, employeeID generic.EmployeeID) (generic.LeaveBalance, error) {
	b, found, err := loadBalance(ctx, q, employeeID)
	if err != nil || found {
		return b, err
	}

	b = generic.NewLeaveBalance(employeeID, s.Allocation.AllocationFor(employeeID), s.Now())
	if err := saveBalance(ctx, q, b); err != nil {
		return generic.LeaveBalance{}, err
	}
	return b, nil
}

// Deduct applies the deduction in its own transaction.
func (s *Store) Deduct(ctx context.Context, employeeID generic.EmployeeID, leaveType generic.LeaveType, days int) (generic.LeaveBalance, error) {
	var result generic.LeaveBalance
	err := s.WithTx(ctx, func(tx generic.Store) error {
		var err error
		result, err = tx.Deduct(ctx, employeeID, leaveType, days)
		return err
	})
	return result, err
}

func (s *Store) deductTx(ctx context.Context, q querier, employeeID generic.EmployeeID, leaveType generic.LeaveType, days int) (generic.LeaveBalance, error) {
	current, err := s.balanceTx(ctx, q, employeeID)
	if err != nil {
		return generic.LeaveBalance{}, err
	}
	next, err := current.Deduct(leaveType, days, s.Now())
	if err != nil {
		return current, err
	}
	if err := saveBalance(ctx, q, next); err != nil {
		return current, err
	}
	return next, nil
}

func loadBalance(ctx context.Context, q querier, employeeID generic.EmployeeID) (generic.LeaveBalance, bool, error) {
	var (
		b         generic.LeaveBalance
		updatedAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT employee_id, annual, sick, casual, total_allocated, total_used, total_remaining, updated_at
		FROM leave_balances WHERE employee_id = ?`,
		employeeID,
	).Scan(&b.EmployeeID, &b.Annual, &b.Sick, &b.Casual,
		&b.TotalAllocated, &b.TotalUsed, &b.TotalRemaining, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.LeaveBalance{}, false, nil
	}
	if err != nil {
		return generic.LeaveBalance{}, false, fmt.Errorf("failed to load balance: %w", err)
	}
	b.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return b, true, nil
}

func saveBalance(ctx context.Context, q querier, b generic.LeaveBalance) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO leave_balances
		(employee_id, annual, sick, casual, total_allocated, total_used, total_remaining, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			annual = excluded.annual,
			sick = excluded.sick,
			casual = excluded.casual,
			total_allocated = excluded.total_allocated,
			total_used = excluded.total_used,
			total_remaining = excluded.total_remaining,
			updated_at = excluded.updated_at`,
		b.EmployeeID, b.Annual, b.Sick, b.Casual,
		b.TotalAllocated, b.TotalUsed, b.TotalRemaining,
		b.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// =============================================================================
// REQUEST STORE (generic.RequestStore interface)
// =============================================================================

const requestColumns = `kind, id, employee_id, status, submitted_at,
	approved_by, approved_at, rejected_reason,
	leave_type, start_date, end_date, days, reason, handover_details,
	expense_type, amount, currency, description`

// Create stores a new pending request with a fresh id.
func (s *Store) Create(ctx context.Context, req generic.Request) (generic.Request, error) {
	var created generic.Request
	err := s.WithTx(ctx, func(tx generic.Store) error {
		var err error
		created, err = tx.Create(ctx, req)
		return err
	})
	return created, err
}

func (s *Store) createTx(ctx context.Context, q querier, req generic.Request) (generic.Request, error) {
	state := req.State()
	state.ID = s.NewID()
	state.Status = generic.StatusPending
	state.SubmittedAt = s.Now()
	state.ApprovedBy, state.ApprovedAt, state.RejectedReason = nil, nil, nil
	created := req.WithState(state)

	row, err := toRow(created)
	if err != nil {
		return nil, err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, row.args()...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("duplicate %s id %s", created.Kind(), state.ID)
		}
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}
	return created, nil
}

// Get retrieves a request by kind and id.
func (s *Store) Get(ctx context.Context, kind generic.Kind, id generic.RequestID) (generic.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, kind, id)
}

func getRequest(ctx context.Context, q querier, kind generic.Kind, id generic.RequestID) (generic.Request, error) {
	reqs, err := queryRequests(ctx, q,
		`SELECT `+requestColumns+` FROM requests WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: %s %s", generic.ErrRequestNotFound, kind, id)
	}
	return reqs[0], nil
}

// ListByEmployee returns an employee's requests in insertion order.
func (s *Store) ListByEmployee(ctx context.Context, kind generic.Kind, employeeID generic.EmployeeID) ([]generic.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listByEmployee(ctx, s.db, kind, employeeID)
}

func listByEmployee(ctx context.Context, q querier, kind generic.Kind, employeeID generic.EmployeeID) ([]generic.Request, error) {
	return queryRequests(ctx, q,
		`SELECT `+requestColumns+` FROM requests WHERE kind = ? AND employee_id = ? ORDER BY seq`,
		kind, employeeID)
}

// ListByStatus returns requests in a status in insertion order.
func (s *Store) ListByStatus(ctx context.Context, kind generic.Kind, status generic.Status) ([]generic.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listByStatus(ctx, s.db, kind, status)
}

func listByStatus(ctx context.Context, q querier, kind generic.Kind, status generic.Status) ([]generic.Request, error) {
	return queryRequests(ctx, q,
		`SELECT `+requestColumns+` FROM requests WHERE kind = ? AND status = ? ORDER BY seq`,
		kind, status)
}

// Update replaces the stored record.
func (s *Store) Update(ctx context.Context, req generic.Request) (generic.Request, error) {
	var updated generic.Request
	err := s.WithTx(ctx, func(tx generic.Store) error {
		var err error
		updated, err = tx.Update(ctx, req)
		return err
	})
	return updated, err
}

func updateTx(ctx context.Context, q querier, req generic.Request) (generic.Request, error) {
	row, err := toRow(req)
	if err != nil {
		return nil, err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE requests SET
			employee_id = ?, status = ?, submitted_at = ?,
			approved_by = ?, approved_at = ?, rejected_reason = ?,
			leave_type = ?, start_date = ?, end_date = ?, days = ?, reason = ?, handover_details = ?,
			expense_type = ?, amount = ?, currency = ?, description = ?
		WHERE kind = ? AND id = ?`,
		append(row.args()[2:], row.Kind, row.ID)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s %s", generic.ErrRequestNotFound, req.Kind(), req.State().ID)
	}
	return req, nil
}

// requestRow is the flattened column set of the requests table.
type requestRow struct {
	Kind           string
	ID             string
	EmployeeID     string
	Status         string
	SubmittedAt    string
	ApprovedBy     sql.NullString
	ApprovedAt     sql.NullString
	RejectedReason sql.NullString

	LeaveType       sql.NullString
	StartDate       sql.NullString
	EndDate         sql.NullString
	Days            sql.NullInt64
	Reason          sql.NullString
	HandoverDetails sql.NullString

	ExpenseType sql.NullString
	Amount      sql.NullString
	Currency    sql.NullString
	Description sql.NullString
}

func (r *requestRow) args() []any {
	return []any{
		r.Kind, r.ID, r.EmployeeID, r.Status, r.SubmittedAt,
		r.ApprovedBy, r.ApprovedAt, r.RejectedReason,
		r.LeaveType, r.StartDate, r.EndDate, r.Days, r.Reason, r.HandoverDetails,
		r.ExpenseType, r.Amount, r.Currency, r.Description,
	}
}

func (r *requestRow) dest() []any {
	return []any{
		&r.Kind, &r.ID, &r.EmployeeID, &r.Status, &r.SubmittedAt,
		&r.ApprovedBy, &r.ApprovedAt, &r.RejectedReason,
		&r.LeaveType, &r.StartDate, &r.EndDate, &r.Days, &r.Reason, &r.HandoverDetails,
		&r.ExpenseType, &r.Amount, &r.Currency, &r.Description,
	}
}

func toRow(req generic.Request) (*requestRow, error) {
	state := req.State()
	row := &requestRow{
		Kind:        string(req.Kind()),
		ID:          string(state.ID),
		EmployeeID:  string(state.EmployeeID),
		Status:      string(state.Status),
		SubmittedAt: state.SubmittedAt.UTC().Format(timeLayout),
	}
	if state.ApprovedBy != nil {
		row.ApprovedBy = nullString(string(*state.ApprovedBy))
	}
	if state.ApprovedAt != nil {
		row.ApprovedAt = nullString(state.ApprovedAt.UTC().Format(timeLayout))
	}
	if state.RejectedReason != nil {
		row.RejectedReason = sql.NullString{String: *state.RejectedReason, Valid: true}
	}

	switch r := req.(type) {
	case generic.LeaveApplication:
		row.LeaveType = nullString(string(r.LeaveType))
		row.StartDate = nullString(r.StartDate.String())
		row.EndDate = nullString(r.EndDate.String())
		row.Days = sql.NullInt64{Int64: int64(r.Days), Valid: true}
		row.Reason = nullString(r.Reason)
		row.HandoverDetails = nullString(r.HandoverDetails)
	case generic.Reimbursement:
		row.ExpenseType = nullString(r.Type)
		row.Amount = nullString(r.Amount.Amount.String())
		row.Currency = nullString(string(r.Amount.Currency))
		row.Description = nullString(r.Description)
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
	return row, nil
}

func (r *requestRow) toRequest() (generic.Request, error) {
	state := generic.Lifecycle{
		ID:         generic.RequestID(r.ID),
		EmployeeID: generic.EmployeeID(r.EmployeeID),
		Status:     generic.Status(r.Status),
	}
	state.SubmittedAt, _ = time.Parse(timeLayout, r.SubmittedAt)
	if r.ApprovedBy.Valid {
		approver := generic.EmployeeID(r.ApprovedBy.String)
		state.ApprovedBy = &approver
	}
	if r.ApprovedAt.Valid {
		if at, err := time.Parse(timeLayout, r.ApprovedAt.String); err == nil {
			state.ApprovedAt = &at
		}
	}
	if r.RejectedReason.Valid {
		reason := r.RejectedReason.String
		state.RejectedReason = &reason
	}

	switch generic.Kind(r.Kind) {
	case generic.KindLeave:
		start, err := generic.ParseDate(r.StartDate.String)
		if err != nil {
			return nil, fmt.Errorf("request %s: bad start_date: %w", r.ID, err)
		}
		end, err := generic.ParseDate(r.EndDate.String)
		if err != nil {
			return nil, fmt.Errorf("request %s: bad end_date: %w", r.ID, err)
		}
		return generic.LeaveApplication{
			Lifecycle:       state,
			LeaveType:       generic.LeaveType(r.LeaveType.String),
			StartDate:       start,
			EndDate:         end,
			Days:            int(r.Days.Int64),
			Reason:          r.Reason.String,
			HandoverDetails: r.HandoverDetails.String,
		}, nil
	case generic.KindReimbursement:
		amount, err := decimal.NewFromString(r.Amount.String)
		if err != nil {
			return nil, fmt.Errorf("request %s: bad amount: %w", r.ID, err)
		}
		return generic.Reimbursement{
			Lifecycle:   state,
			Type:        r.ExpenseType.String,
			Amount:      generic.NewMoney(amount, generic.Currency(r.Currency.String)),
			Description: r.Description.String,
		}, nil
	}
	return nil, fmt.Errorf("request %s: unknown kind %q", r.ID, r.Kind)
}

func queryRequests(ctx context.Context, q querier, query string, args ...any) ([]generic.Request, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	result := []generic.Request{}
	for rows.Next() {
		var row requestRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, err
		}
		req, err := row.toRequest()
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

// Append stores an entry in its own transaction.
func (s *Store) Append(ctx context.Context, entry generic.AuditEntry) (generic.AuditEntry, error) {
	var stored generic.AuditEntry
	err := s.WithTx(ctx, func(tx generic.Store) error {
		var err error
		stored, err = tx.Append(ctx, entry)
		return err
	})
	return stored, err
}

func (s *Store) appendTx(ctx context.Context, q querier, entry generic.AuditEntry) (generic.AuditEntry, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.Now()
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO audit_log
		(timestamp, actor_id, department, entity_type, entity_id, action, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC().Format(timeLayout),
		entry.ActorID, entry.Department, entry.EntityType, entry.EntityID,
		entry.Action, entry.Outcome, nullString(entry.Detail),
	)
	if err != nil {
		return generic.AuditEntry{}, fmt.Errorf("failed to append audit entry: %w", err)
	}
	entry.Sequence, err = res.LastInsertId()
	if err != nil {
		return generic.AuditEntry{}, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return entry, nil
}

// Query returns matching audit entries in sequence order.
func (s *Store) Query(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAudit(ctx, s.db, filter)
}

func queryAudit(ctx context.Context, q querier, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.ActorID != nil {
		where = append(where, "actor_id = ?")
		args = append(args, *filter.ActorID)
	}
	if filter.Department != nil {
		where = append(where, "department = ?")
		args = append(args, *filter.Department)
	}
	if filter.EntityType != nil {
		where = append(where, "entity_type = ?")
		args = append(args, *filter.EntityType)
	}
	if filter.EntityID != nil {
		where = append(where, "entity_id = ?")
		args = append(args, *filter.EntityID)
	}
	if len(filter.Actions) > 0 {
		marks := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			marks[i] = "?"
			args = append(args, a)
		}
		where = append(where, "action IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT seq, timestamp, actor_id, department, entity_type, entity_id, action, outcome, detail
		FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	result := []generic.AuditEntry{}
	for rows.Next() {
		var (
			e         generic.AuditEntry
			timestamp string
			detail    sql.NullString
		)
		if err := rows.Scan(&e.Sequence, &timestamp, &e.ActorID, &e.Department,
			&e.EntityType, &e.EntityID, &e.Action, &e.Outcome, &detail); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(timeLayout, timestamp)
		e.Detail = detail.String
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore runs every statement on the open transaction. The parent's
// write lock is held for its whole lifetime.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) GetBalance(ctx context.Context, employeeID generic.EmployeeID) (generic.LeaveBalance, error) {
	return ts.parent.balanceTx(ctx, ts.tx, employeeID)
}

func (ts *txStore) Deduct(ctx context.Context, employeeID generic.EmployeeID, leaveType generic.LeaveType, days int) (generic.LeaveBalance, error) {
	return ts.parent.deductTx(ctx, ts.tx, employeeID, leaveType, days)
}

func (ts *txStore) Create(ctx context.Context, req generic.Request) (generic.Request, error) {
	return ts.parent.createTx(ctx, ts.tx, req)
}

func (ts *txStore) Get(ctx context.Context, kind generic.Kind, id generic.RequestID) (generic.Request, error) {
	return getRequest(ctx, ts.tx, kind, id)
}

func (ts *txStore) ListByEmployee(ctx context.Context, kind generic.Kind, employeeID generic.EmployeeID) ([]generic.Request, error) {
	return listByEmployee(ctx, ts.tx, kind, employeeID)
}

func (ts *txStore) ListByStatus(ctx context.Context, kind generic.Kind, status generic.Status) ([]generic.Request, error) {
	return listByStatus(ctx, ts.tx, kind, status)
}

func (ts *txStore) Update(ctx context.Context, req generic.Request) (generic.Request, error) {
	return updateTx(ctx, ts.tx, req)
}

func (ts *txStore) Append(ctx context.Context, entry generic.AuditEntry) (generic.AuditEntry, error) {
	return ts.parent.appendTx(ctx, ts.tx, entry)
}

func (ts *txStore) Query(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	return queryAudit(ctx, ts.tx, filter)
}

// =============================================================================
// DIRECTORY (generic.Directory interface)
// =============================================================================

// SaveEmployee inserts or replaces an employee record.
func (s *Store) SaveEmployee(ctx context.Context, emp generic.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, emp, s.Now())
}

// SeedEmployees replaces the whole directory in one transaction.
func (s *Store) SeedEmployees(ctx context.Context, employees []generic.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM employees"); err != nil {
		return err
	}
	now := s.Now()
	for _, emp := range employees {
		if err := saveEmployee(ctx, tx, emp, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func saveEmployee(ctx context.Context, q querier, emp generic.Employee, now time.Time) error {
	if emp.ID == "" {
		return fmt.Errorf("employee with empty id")
	}
	var approver sql.NullString
	if emp.ApproverID != nil {
		approver = nullString(string(*emp.ApproverID))
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, department, approver_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			approver_id = excluded.approver_id`,
		emp.ID, emp.Name, nullString(emp.Email), emp.Department, approver,
		now.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", emp.ID, err)
	}
	return nil
}

// Employee retrieves an employee by id.
func (s *Store) Employee(ctx context.Context, id generic.EmployeeID) (generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees, err := s.queryEmployees(ctx, "WHERE id = ?", id)
	if err != nil {
		return generic.Employee{}, err
	}
	if len(employees) == 0 {
		return generic.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return employees[0], nil
}

// EmployeesInDepartment returns a department's members ordered by id.
func (s *Store) EmployeesInDepartment(ctx context.Context, department string) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryEmployees(ctx, "WHERE department = ? ORDER BY id", department)
}

// Employees returns the whole directory ordered by id.
func (s *Store) Employees(ctx context.Context) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryEmployees(ctx, "ORDER BY id")
}

func (s *Store) queryEmployees(ctx context.Context, clause string, args ...any) ([]generic.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, department, approver_id FROM employees "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	employees := []generic.Employee{}
	for rows.Next() {
		var (
			emp      generic.Employee
			email    sql.NullString
			approver sql.NullString
		)
		if err := rows.Scan(&emp.ID, &emp.Name, &email, &emp.Department, &approver); err != nil {
			return nil, err
		}
		emp.Email = email.String
		if approver.Valid {
			id := generic.EmployeeID(approver.String)
			emp.ApproverID = &id
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"requests", "leave_balances", "audit_log", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// SetAllocation replaces the policy used for balances created from now on.
func (s *Store) SetAllocation(policy generic.AllocationPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Allocation = policy
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
