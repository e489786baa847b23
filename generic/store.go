/*
store.go - Persistence interfaces for requests, balances and audit entries

PURPOSE:
  Defines the interface between the lifecycle engine and storage. Different
  implementations can use SQLite or in-memory maps; the engine only sees
  these contracts.

KEY INTERFACES:
  LedgerStore:   Per-employee leave balances (lazy default, Deduct)
  RequestStore:  Leave applications and reimbursements keyed by id
  AuditLog:      Append-only transition history
  Store:         All three together
  TxStore:       Store plus WithTx for all-or-nothing composite writes
  Directory:     Read-only employee lookups (owned outside the engine)

SINGLE WRITER:
  Only the engine writes, and it writes only inside WithTx. Approving a
  leave request deducts the ledger, updates the request and appends an
  audit entry; WithTx guarantees either all three land or none do, and
  serializes writers so two approvals of one id cannot both pass the
  pending check.

READS:
  Read methods on a Store return copies taken under a read lock. They may
  run concurrently with each other and never observe a half-applied
  WithTx.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, snapshot + rollback
  - store/sqlite/sqlite.go:  SQLite, database transaction

SEE ALSO:
  - engine.go: The only writer
  - audit.go: AuditEntry and AuditFilter
*/
package generic

import "context"

// =============================================================================
// LEDGER STORE
// =============================================================================

type LedgerStore interface {
	// GetBalance returns the stored balance, materializing the allocation
	// policy's default on first call. Repeated calls before any deduction
	// return the same values.
	GetBalance(ctx context.Context, employeeID EmployeeID) (LeaveBalance, error)

	// Deduct applies LeaveBalance.Deduct and persists the result.
	// On error the stored balance is unchanged.
	Deduct(ctx context.Context, employeeID EmployeeID, leaveType LeaveType, days int) (LeaveBalance, error)
}

// =============================================================================
// REQUEST STORE
// =============================================================================

type RequestStore interface {
	// Create assigns a fresh id, status=pending and SubmittedAt=now.
	Create(ctx context.Context, req Request) (Request, error)

	// Get returns ErrRequestNotFound if no request of kind has id.
	Get(ctx context.Context, kind Kind, id RequestID) (Request, error)

	// ListByEmployee returns requests in insertion order.
	ListByEmployee(ctx context.Context, kind Kind, employeeID EmployeeID) ([]Request, error)

	// ListByStatus returns requests in insertion order.
	ListByStatus(ctx context.Context, kind Kind, status Status) ([]Request, error)

	// Update replaces the stored record. Transition legality is the
	// caller's responsibility.
	Update(ctx context.Context, req Request) (Request, error)
}

// =============================================================================
// AUDIT LOG - Append-only
// =============================================================================

type AuditLog interface {
	// Append assigns the next sequence number and stores the entry.
	Append(ctx context.Context, entry AuditEntry) (AuditEntry, error)

	// Query returns matching entries in sequence order.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// =============================================================================
// COMPOSITE STORES
// =============================================================================

type Store interface {
	LedgerStore
	RequestStore
	AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store passed to fn
	// is rolled back. Writers are serialized.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// DIRECTORY - Read-only employee lookups
// =============================================================================

type Directory interface {
	// Employee returns ErrEmployeeNotFound for unknown ids.
	Employee(ctx context.Context, id EmployeeID) (Employee, error)

	// EmployeesInDepartment returns members ordered by id.
	EmployeesInDepartment(ctx context.Context, department string) ([]Employee, error)

	// Employees returns the whole directory ordered by id.
	Employees(ctx context.Context) ([]Employee, error)
}
