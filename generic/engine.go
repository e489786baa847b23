/*
engine.go - Request lifecycle engine

PURPOSE:
  Orchestrates submit, list-pending and approve/reject. The engine is the
  only component that writes to the request store and the leave ledger,
  and it writes to both inside one store transaction per action.

PROCESS STEPS (one critical section):
  1. Fetch the request              -> ErrRequestNotFound
  2. Require status == pending      -> AlreadyProcessedError
  3. Require a known approver       -> ErrApproverNotFound
     in the requester's department  -> ErrOutOfScope
  4. Require a reason to reject     -> ValidationError
  5. Leave + approve: deduct ledger -> InsufficientBalanceError aborts all
  6. Update status/approvedBy/approvedDate/rejectedReason
  7. Append the audit entry
  8. Return the updated request

  Step 5 precedes step 6, so a ledger failure can never leave an approved
  request without its deduction. Because WithTx serializes writers, two
  concurrent Process calls on one id see the pending check one after the
  other and exactly one of them wins.

NO RETRIES:
  The engine never retries. The caller decides; a retried approval that
  already went through gets ErrAlreadyProcessed, not a second deduction.

SEE ALSO:
  - request.go: Request sum type, submissions, ApprovalAction
  - scope.go: Department scoping
  - store.go: TxStore contract
*/
package generic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store     TxStore
	Directory Directory
	Scope     *ScopeResolver

	// Sinks receive committed audit entries after the transaction.
	Sinks []AuditSink

	Logger *slog.Logger

	// Currency applies to reimbursements submitted without one.
	Currency Currency

	Now func() time.Time
}

func NewEngine(store TxStore, directory Directory) *Engine {
	return &Engine{
		Store:     store,
		Directory: directory,
		Scope:     NewScopeResolver(directory),
		Logger:    slog.Default(),
		Currency:  DefaultCurrency,
		Now:       time.Now,
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates sub, stores it as a pending request and audits it.
func (e *Engine) Submit(ctx context.Context, employeeID EmployeeID, sub Submission) (Request, error) {
	if sub == nil {
		return nil, invalid("kind", "submission is required")
	}

	req, err := sub.Build(employeeID, e.Currency)
	if err != nil {
		return nil, err
	}

	employee, err := e.employee(ctx, employeeID, ErrEmployeeNotFound)
	if err != nil {
		return nil, err
	}

	var (
		created Request
		entry   AuditEntry
	)
	err = e.Store.WithTx(ctx, func(s Store) error {
		var err error
		created, err = s.Create(ctx, req)
		if err != nil {
			return fmt.Errorf("create %s: %w", req.Kind(), err)
		}
		state := created.State()
		entry, err = s.Append(ctx, AuditEntry{
			Timestamp:  state.SubmittedAt,
			ActorID:    employee.ID,
			Department: employee.Department,
			EntityType: created.Kind(),
			EntityID:   state.ID,
			Action:     AuditSubmit,
			Outcome:    OutcomeSuccess,
		})
		if err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		return nil
	})
	if err != nil {
		err = fault("submit", err)
		e.logger().ErrorContext(ctx, "submit failed",
			"kind", req.Kind(), "employee", employeeID, "error", err)
		return nil, err
	}

	e.logger().InfoContext(ctx, "request submitted",
		"kind", created.Kind(), "id", created.State().ID, "employee", employeeID)
	e.publish(ctx, entry)
	return created, nil
}

// =============================================================================
// LIST PENDING
// =============================================================================

// ListPending returns pending requests of every kind from employees in the
// approver's scope: leave applications first, each kind in insertion order.
func (e *Engine) ListPending(ctx context.Context, approverID EmployeeID) ([]Request, error) {
	scope, err := e.Scope.ResolveScope(ctx, approverID)
	if err != nil {
		return nil, fault("resolve scope", err)
	}

	result := []Request{}
	for _, kind := range Kinds {
		pending, err := e.Store.ListByStatus(ctx, kind, StatusPending)
		if err != nil {
			return nil, fault("list pending", err)
		}
		for _, r := range pending {
			if scope.Contains(r.State().EmployeeID) {
				result = append(result, r)
			}
		}
	}
	return result, nil
}

// =============================================================================
// PROCESS - Approve or reject
// =============================================================================

// Process moves a pending request to approved or rejected.
func (e *Engine) Process(ctx context.Context, kind Kind, id RequestID, action ApprovalAction) (Request, error) {
	if !kind.Valid() {
		return nil, invalid("kind", fmt.Sprintf("unknown request kind %q", kind))
	}

	// The directory is immutable while the engine runs, so resolving the
	// approver before taking the write lock is equivalent to resolving it
	// at step 3. The error is held until then to keep step order.
	scope, scopeErr := e.Scope.ResolveScope(ctx, action.ApproverID)

	var (
		updated Request
		entry   AuditEntry
		found   bool
	)
	err := e.Store.WithTx(ctx, func(s Store) error {
		// Read under the write lock so timestamps follow audit sequence.
		now := e.now()

		req, err := s.Get(ctx, kind, id)
		if err != nil {
			return err
		}
		found = true
		state := req.State()

		if state.Status != StatusPending {
			return &AlreadyProcessedError{Kind: kind, ID: id, Status: state.Status}
		}
		if scopeErr != nil {
			return scopeErr
		}
		if !scope.Contains(state.EmployeeID) {
			return fmt.Errorf("%w: %s may not act on requests from %s",
				ErrOutOfScope, action.ApproverID, state.EmployeeID)
		}
		if err := action.Validate(); err != nil {
			return err
		}

		switch r := req.(type) {
		case LeaveApplication:
			if action.Action == ActionApprove {
				if _, err := s.Deduct(ctx, state.EmployeeID, r.LeaveType, r.Days); err != nil {
					return err
				}
			}
		case Reimbursement:
			// paid outside the engine; no ledger step
		default:
			return fmt.Errorf("unsupported request type %T", r)
		}

		updated, err = s.Update(ctx, req.WithState(action.transition(state, now)))
		if err != nil {
			return fmt.Errorf("update %s %s: %w", kind, id, err)
		}

		entry, err = s.Append(ctx, AuditEntry{
			Timestamp:  now,
			ActorID:    scope.Approver.ID,
			Department: scope.Approver.Department,
			EntityType: kind,
			EntityID:   id,
			Action:     auditActionFor(action.Action),
			Outcome:    OutcomeSuccess,
		})
		if err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		return nil
	})
	if err != nil {
		err = fault("process", err)
		e.logger().WarnContext(ctx, "process failed",
			"kind", kind, "id", id, "action", action.Action,
			"approver", action.ApproverID, "code", KindOf(err), "error", err)
		if found && scopeErr == nil && (IsConflict(err) || errors.Is(err, ErrOutOfScope)) {
			e.recordDenied(ctx, kind, id, scope.Approver, action, err)
		}
		return nil, err
	}

	e.logger().InfoContext(ctx, "request processed",
		"kind", kind, "id", id, "status", updated.State().Status, "approver", action.ApproverID)
	e.publish(ctx, entry)
	return updated, nil
}

// recordDenied appends a denied entry in its own transaction. The original
// failure has already rolled back; a failure here is logged only.
func (e *Engine) recordDenied(ctx context.Context, kind Kind, id RequestID, approver Employee, action ApprovalAction, cause error) {
	var entry AuditEntry
	err := e.Store.WithTx(ctx, func(s Store) error {
		var err error
		entry, err = s.Append(ctx, AuditEntry{
			Timestamp:  e.now(),
			ActorID:    approver.ID,
			Department: approver.Department,
			EntityType: kind,
			EntityID:   id,
			Action:     auditActionFor(action.Action),
			Outcome:    OutcomeDenied,
			Detail:     string(KindOf(cause)),
		})
		return err
	})
	if err != nil {
		e.logger().ErrorContext(ctx, "failed to audit denied action", "kind", kind, "id", id, "error", err)
		return
	}
	e.publish(ctx, entry)
}

// publish runs after commit. A panicking sink is logged and skipped so the
// caller still gets its committed result.
func (e *Engine) publish(ctx context.Context, entry AuditEntry) {
	for _, sink := range e.Sinks {
		e.publishTo(ctx, sink, entry)
	}
}

func (e *Engine) publishTo(ctx context.Context, sink AuditSink, entry AuditEntry) {
	defer func() {
		if r := recover(); r != nil {
			e.logger().ErrorContext(ctx, "audit sink failed",
				"sink", fmt.Sprintf("%T", sink), "seq", entry.Sequence,
				"action", entry.Action, "entity_id", entry.EntityID, "panic", r)
		}
	}()
	sink.Publish(ctx, entry)
}

// =============================================================================
// READS
// =============================================================================

// Get returns one request.
func (e *Engine) Get(ctx context.Context, kind Kind, id RequestID) (Request, error) {
	if !kind.Valid() {
		return nil, invalid("kind", fmt.Sprintf("unknown request kind %q", kind))
	}
	req, err := e.Store.Get(ctx, kind, id)
	if err != nil {
		return nil, fault("get request", err)
	}
	return req, nil
}

// ListForEmployee returns an employee's requests of one kind.
func (e *Engine) ListForEmployee(ctx context.Context, kind Kind, employeeID EmployeeID) ([]Request, error) {
	if !kind.Valid() {
		return nil, invalid("kind", fmt.Sprintf("unknown request kind %q", kind))
	}
	if _, err := e.employee(ctx, employeeID, ErrEmployeeNotFound); err != nil {
		return nil, err
	}
	reqs, err := e.Store.ListByEmployee(ctx, kind, employeeID)
	if err != nil {
		return nil, fault("list requests", err)
	}
	return reqs, nil
}

// Balance returns the employee's leave balance, creating the default
// allocation on first access.
func (e *Engine) Balance(ctx context.Context, employeeID EmployeeID) (LeaveBalance, error) {
	if _, err := e.employee(ctx, employeeID, ErrEmployeeNotFound); err != nil {
		return LeaveBalance{}, err
	}
	b, err := e.Store.GetBalance(ctx, employeeID)
	if err != nil {
		return LeaveBalance{}, fault("get balance", err)
	}
	return b, nil
}

// Audit returns matching audit entries in sequence order.
func (e *Engine) Audit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	entries, err := e.Store.Query(ctx, filter)
	if err != nil {
		return nil, fault("query audit", err)
	}
	return entries, nil
}

func (e *Engine) employee(ctx context.Context, id EmployeeID, notFound error) (Employee, error) {
	emp, err := e.Directory.Employee(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Employee{}, fmt.Errorf("%w: %s", notFound, id)
		}
		return Employee{}, fault("lookup employee", err)
	}
	return emp, nil
}
