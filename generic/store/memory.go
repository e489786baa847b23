// Package store provides in-memory Store and Directory implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/request-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	memoryState

	// Allocation decides lazily created balances.
	Allocation generic.AllocationPolicy
	Now        func() time.Time
	NewID      func() generic.RequestID
}

type memoryState struct {
	requests map[requestKey]generic.Request
	order    map[generic.Kind][]generic.RequestID
	balances map[generic.EmployeeID]generic.LeaveBalance
	audit    []generic.AuditEntry
	seq      int64
}

type requestKey struct {
	Kind generic.Kind
	ID   generic.RequestID
}

func NewMemory() *Memory {
	return &Memory{
		memoryState: memoryState{
			requests: make(map[requestKey]generic.Request),
			order:    make(map[generic.Kind][]generic.RequestID),
			balances: make(map[generic.EmployeeID]generic.LeaveBalance),
		},
		Allocation: generic.FixedAllocation(generic.DefaultAllocation),
		Now:        time.Now,
		NewID:      newRequestID,
	}
}

// newRequestID returns a time-ordered UUIDv7, falling back to v4.
func newRequestID() generic.RequestID {
	id, err := uuid.NewV7()
	if err != nil {
		return generic.RequestID(uuid.NewString())
	}
	return generic.RequestID(id.String())
}

var _ generic.TxStore = (*Memory)(nil)

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, employeeID generic.EmployeeID) (generic.LeaveBalance, error) {
	m.mu.RLock()
	b, ok := m.balances[employeeID]
	m.mu.RUnlock()
	if ok {
		return b, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(employeeID), nil
}

// balanceLocked returns the stored balance or materializes the default.
func (m *Memory) balanceLocked(employeeID generic.EmployeeID) generic.LeaveBalance {
	if b, ok := m.balances[employeeID]; ok {
		return b
	}
	b := generic.NewLeaveBalance(employeeID, m.Allocation.AllocationFor(employeeID), m.Now())
	m.balances[employeeID] = b
	return b
}

func (m *Memory) Deduct(_ context.Context, employeeID generic.EmployeeID, leaveType generic.LeaveType, days int) (generic.LeaveBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deductLocked(employeeID, leaveType, days)
}

func (m *Memory) deductLocked(employeeID generic.EmployeeID, leaveType generic.LeaveType, days int) (generic.LeaveBalance, error) {
	current := m.balanceLocked(employeeID)
	next, err := current.Deduct(leaveType, days, m.Now())
	if err != nil {
		return current, err
	}
	m.balances[employeeID] = next
	return next, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) Create(_ context.Context, req generic.Request) (generic.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(req)
}

func (m *Memory) createLocked(req generic.Request) (generic.Request, error) {
	state := req.State()
	state.ID = m.NewID()
	state.Status = generic.StatusPending
	state.SubmittedAt = m.Now()
	state.ApprovedBy, state.ApprovedAt, state.RejectedReason = nil, nil, nil

	k := requestKey{Kind: req.Kind(), ID: state.ID}
	if _, exists := m.requests[k]; exists {
		return nil, fmt.Errorf("duplicate %s id %s", k.Kind, k.ID)
	}
	created := req.WithState(state)
	m.requests[k] = created
	m.order[k.Kind] = append(m.order[k.Kind], k.ID)
	return created, nil
}

func (m *Memory) Get(_ context.Context, kind generic.Kind, id generic.RequestID) (generic.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(kind, id)
}

func (m *Memory) getLocked(kind generic.Kind, id generic.RequestID) (generic.Request, error) {
	req, ok := m.requests[requestKey{Kind: kind, ID: id}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", generic.ErrRequestNotFound, kind, id)
	}
	return req, nil
}

func (m *Memory) ListByEmployee(_ context.Context, kind generic.Kind, employeeID generic.EmployeeID) ([]generic.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(kind, func(s generic.Lifecycle) bool { return s.EmployeeID == employeeID }), nil
}

func (m *Memory) ListByStatus(_ context.Context, kind generic.Kind, status generic.Status) ([]generic.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(kind, func(s generic.Lifecycle) bool { return s.Status == status }), nil
}

func (m *Memory) filterLocked(kind generic.Kind, keep func(generic.Lifecycle) bool) []generic.Request {
	result := []generic.Request{}
	for _, id := range m.order[kind] {
		req := m.requests[requestKey{Kind: kind, ID: id}]
		if keep(req.State()) {
			result = append(result, req)
		}
	}
	return result
}

func (m *Memory) Update(_ context.Context, req generic.Request) (generic.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(req)
}

func (m *Memory) updateLocked(req generic.Request) (generic.Request, error) {
	k := requestKey{Kind: req.Kind(), ID: req.State().ID}
	if _, ok := m.requests[k]; !ok {
		return nil, fmt.Errorf("%w: %s %s", generic.ErrRequestNotFound, k.Kind, k.ID)
	}
	m.requests[k] = req
	return req, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) Append(_ context.Context, entry generic.AuditEntry) (generic.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(entry), nil
}

func (m *Memory) appendLocked(entry generic.AuditEntry) generic.AuditEntry {
	m.seq++
	entry.Sequence = m.seq
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.Now()
	}
	m.audit = append(m.audit, entry)
	return entry
}

func (m *Memory) Query(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(filter), nil
}

func (m *Memory) queryLocked(filter generic.AuditFilter) []generic.AuditEntry {
	result := []generic.AuditEntry{}
	for _, e := range m.audit {
		if !filter.Matches(e) {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.memoryState = snapshot
		return err
	}
	return nil
}

func (m *Memory) snapshot() memoryState {
	s := memoryState{
		requests: make(map[requestKey]generic.Request, len(m.requests)),
		order:    make(map[generic.Kind][]generic.RequestID, len(m.order)),
		balances: make(map[generic.EmployeeID]generic.LeaveBalance, len(m.balances)),
		audit:    append([]generic.AuditEntry(nil), m.audit...),
		seq:      m.seq,
	}
	for k, v := range m.requests {
		s.requests[k] = v
	}
	for k, v := range m.order {
		s.order[k] = append([]generic.RequestID(nil), v...)
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	return s
}

// txMemoryView runs with the parent's write lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetBalance(_ context.Context, employeeID generic.EmployeeID) (generic.LeaveBalance, error) {
	return tv.parent.balanceLocked(employeeID), nil
}

func (tv *txMemoryView) Deduct(_ context.Context, employeeID generic.EmployeeID, leaveType generic.LeaveType, days int) (generic.LeaveBalance, error) {
	return tv.parent.deductLocked(employeeID, leaveType, days)
}

func (tv *txMemoryView) Create(_ context.Context, req generic.Request) (generic.Request, error) {
	return tv.parent.createLocked(req)
}

func (tv *txMemoryView) Get(_ context.Context, kind generic.Kind, id generic.RequestID) (generic.Request, error) {
	return tv.parent.getLocked(kind, id)
}

func (tv *txMemoryView) ListByEmployee(_ context.Context, kind generic.Kind, employeeID generic.EmployeeID) ([]generic.Request, error) {
	return tv.parent.filterLocked(kind, func(s generic.Lifecycle) bool { return s.EmployeeID == employeeID }), nil
}

func (tv *txMemoryView) ListByStatus(_ context.Context, kind generic.Kind, status generic.Status) ([]generic.Request, error) {
	return tv.parent.filterLocked(kind, func(s generic.Lifecycle) bool { return s.Status == status }), nil
}

func (tv *txMemoryView) Update(_ context.Context, req generic.Request) (generic.Request, error) {
	return tv.parent.updateLocked(req)
}

func (tv *txMemoryView) Append(_ context.Context, entry generic.AuditEntry) (generic.AuditEntry, error) {
	return tv.parent.appendLocked(entry), nil
}

func (tv *txMemoryView) Query(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	return tv.parent.queryLocked(filter), nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory is an immutable in-memory employee directory.
type Directory struct {
	byID  map[generic.EmployeeID]generic.Employee
	order []generic.EmployeeID
}

// NewDirectory indexes employees. Duplicate ids are rejected.
func NewDirectory(employees ...generic.Employee) (*Directory, error) {
	d := &Directory{byID: make(map[generic.EmployeeID]generic.Employee, len(employees))}
	for _, e := range employees {
		if e.ID == "" {
			return nil, fmt.Errorf("employee with empty id")
		}
		if _, dup := d.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate employee id %s", e.ID)
		}
		d.byID[e.ID] = e
		d.order = append(d.order, e.ID)
	}
	sort.Slice(d.order, func(i, j int) bool { return d.order[i] < d.order[j] })
	return d, nil
}

var _ generic.Directory = (*Directory)(nil)

func (d *Directory) Employee(_ context.Context, id generic.EmployeeID) (generic.Employee, error) {
	e, ok := d.byID[id]
	if !ok {
		return generic.Employee{}, fmt.Errorf("%w: %s", generic.ErrEmployeeNotFound, id)
	}
	return e, nil
}

func (d *Directory) EmployeesInDepartment(_ context.Context, department string) ([]generic.Employee, error) {
	result := []generic.Employee{}
	for _, id := range d.order {
		if e := d.byID[id]; e.Department == department {
			result = append(result, e)
		}
	}
	return result, nil
}

func (d *Directory) Employees(_ context.Context) ([]generic.Employee, error) {
	result := make([]generic.Employee, 0, len(d.order))
	for _, id := range d.order {
		result = append(result, d.byID[id])
	}
	return result, nil
}
