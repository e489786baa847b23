package generic

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// =============================================================================
// SCOPE RESOLVER - Which employees an approver may act for
// =============================================================================

// Scope is the set of employees an approver may view and act on.
type Scope struct {
	Approver Employee
	members  map[EmployeeID]struct{}
}

func (s Scope) Contains(id EmployeeID) bool {
	_, ok := s.members[id]
	return ok
}

func (s Scope) Len() int { return len(s.members) }

// IDs returns the members in id order.
func (s Scope) IDs() []EmployeeID {
	ids := make([]EmployeeID, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ScopeResolver is a pure function of the directory.
type ScopeResolver struct {
	Directory Directory

	// IncludeSelf lets approvers see and act on their own requests.
	IncludeSelf bool
}

func NewScopeResolver(directory Directory) *ScopeResolver {
	return &ScopeResolver{Directory: directory}
}

// ResolveScope returns every employee in the approver's department.
func (r *ScopeResolver) ResolveScope(ctx context.Context, approverID EmployeeID) (Scope, error) {
	approver, err := r.Directory.Employee(ctx, approverID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Scope{}, fmt.Errorf("%w: %s", ErrApproverNotFound, approverID)
		}
		return Scope{}, err
	}

	colleagues, err := r.Directory.EmployeesInDepartment(ctx, approver.Department)
	if err != nil {
		return Scope{}, err
	}

	scope := Scope{Approver: approver, members: make(map[EmployeeID]struct{}, len(colleagues))}
	for _, e := range colleagues {
		if e.ID == approver.ID && !r.IncludeSelf {
			continue
		}
		scope.members[e.ID] = struct{}{}
	}
	return scope, nil
}

// InScope reports whether approverID may act on employeeID's requests.
func (r *ScopeResolver) InScope(ctx context.Context, approverID, employeeID EmployeeID) (bool, error) {
	scope, err := r.ResolveScope(ctx, approverID)
	if err != nil {
		return false, err
	}
	return scope.Contains(employeeID), nil
}
