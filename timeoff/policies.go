/*
policies.go - Leave allocation policies

PURPOSE:
  Decides the allocation a balance starts from the first time an
  employee's ledger is read. The ledger never accrues; a balance is
  materialized once and only approvals change it afterwards.

AVAILABLE POLICIES:
  StandardPolicy:  annual 21, sick 12, casual 7 (total 40) for everyone
  Policy:          a default plus per-employee overrides, loadable from JSON

EXAMPLE:
  policy := timeoff.StandardPolicy()
  policy.Overrides["emp-7"] = generic.Allocation{Annual: 25, Sick: 12, Casual: 7}

  mem := store.NewMemory()
  mem.Allocation = policy

SEE ALSO:
  - factory/allocation.go: JSON-based policy creation
  - generic/balance.go: Allocation and LeaveBalance
*/
package timeoff

import (
	"fmt"

	"github.com/warp/request-engine/generic"
)

// =============================================================================
// ALLOCATION POLICY
// =============================================================================

// Policy gives Default to everyone without an override.
type Policy struct {
	ID        string
	Name      string
	Default   generic.Allocation
	Overrides map[generic.EmployeeID]generic.Allocation
}

var _ generic.AllocationPolicy = (*Policy)(nil)

// StandardPolicy returns the default 21/12/7 allocation.
func StandardPolicy() *Policy {
	return &Policy{
		ID:        "standard",
		Name:      "Standard Allocation",
		Default:   generic.DefaultAllocation,
		Overrides: make(map[generic.EmployeeID]generic.Allocation),
	}
}

func (p *Policy) AllocationFor(employeeID generic.EmployeeID) generic.Allocation {
	if a, ok := p.Overrides[employeeID]; ok {
		return a
	}
	return p.Default
}

// Validate rejects negative buckets anywhere in the policy.
func (p *Policy) Validate() error {
	if err := p.Default.Validate(); err != nil {
		return fmt.Errorf("default allocation: %w", err)
	}
	for id, a := range p.Overrides {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("override for %s: %w", id, err)
		}
	}
	return nil
}

// StandardPolicyJSON returns a JSON policy with the given default
// allocation, in the format factory.ParseAllocation reads.
func StandardPolicyJSON(id, name string, annual, sick, casual int) string {
	return fmt.Sprintf(`{
  "id": %q,
  "name": %q,
  "default": {"annual": %d, "sick": %d, "casual": %d}
}`, id, name, annual, sick, casual)
}
