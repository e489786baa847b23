/*
balance.go - Leave balance ledger arithmetic

PURPOSE:
  Holds the per-employee leave balance and the only arithmetic allowed to
  change it. Store implementations persist LeaveBalance values but always
  call Deduct here, so every backend enforces the same invariants.

INVARIANTS:
  1. TotalAllocated == TotalUsed + TotalRemaining, always
  2. Annual, Sick, Casual >= 0
  3. TotalUsed never decreases (administrative reset is out of scope)

UNDERFLOW POLICY:
  Deduct REJECTS a deduction that would take the category bucket or
  TotalRemaining below zero. The balance is returned unchanged together
  with an InsufficientBalanceError. Nothing is clamped, so the sum
  invariant cannot drift under repeated over-approval.

EXAMPLE:
  Default allocation, 3-day annual leave approved:

    before: annual 21, sick 12, casual 7, allocated 40, used 0, remaining 40
    after:  annual 18, sick 12, casual 7, allocated 40, used 3, remaining 37

SEE ALSO:
  - leavetype.go: Leave type -> category mapping
  - store.go: LedgerStore contract
*/
package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// ALLOCATION - Initial entitlement per category
// =============================================================================

type Allocation struct {
	Annual int
	Sick   int
	Casual int
}

// DefaultAllocation is materialized for employees with no balance yet.
var DefaultAllocation = Allocation{Annual: 21, Sick: 12, Casual: 7}

func (a Allocation) Total() int { return a.Annual + a.Sick + a.Casual }

// Validate rejects negative buckets.
func (a Allocation) Validate() error {
	v := &ValidationError{}
	if a.Annual < 0 {
		v.Add("annual", "must not be negative")
	}
	if a.Sick < 0 {
		v.Add("sick", "must not be negative")
	}
	if a.Casual < 0 {
		v.Add("casual", "must not be negative")
	}
	return v.OrNil()
}

// AllocationPolicy decides the allocation a new balance starts from.
type AllocationPolicy interface {
	AllocationFor(employeeID EmployeeID) Allocation
}

// FixedAllocation gives every employee the same allocation.
type FixedAllocation Allocation

func (f FixedAllocation) AllocationFor(EmployeeID) Allocation { return Allocation(f) }

// =============================================================================
// LEAVE BALANCE
// =============================================================================

type LeaveBalance struct {
	EmployeeID     EmployeeID
	Annual         int
	Sick           int
	Casual         int
	TotalAllocated int
	TotalUsed      int
	TotalRemaining int
	UpdatedAt      time.Time
}

// NewLeaveBalance materializes a fresh balance from an allocation.
func NewLeaveBalance(employeeID EmployeeID, a Allocation, at time.Time) LeaveBalance {
	return LeaveBalance{
		EmployeeID:     employeeID,
		Annual:         a.Annual,
		Sick:           a.Sick,
		Casual:         a.Casual,
		TotalAllocated: a.Total(),
		TotalUsed:      0,
		TotalRemaining: a.Total(),
		UpdatedAt:      at,
	}
}

// Category returns the remaining days in one bucket.
func (b LeaveBalance) Category(c LeaveCategory) int {
	switch c {
	case CategoryAnnual:
		return b.Annual
	case CategorySick:
		return b.Sick
	case CategoryCasual:
		return b.Casual
	}
	return 0
}

func (b *LeaveBalance) addCategory(c LeaveCategory, delta int) {
	switch c {
	case CategoryAnnual:
		b.Annual += delta
	case CategorySick:
		b.Sick += delta
	case CategoryCasual:
		b.Casual += delta
	}
}

// Deduct returns the balance after approving days of leaveType.
// On any error the receiver's values are returned unchanged.
func (b LeaveBalance) Deduct(leaveType LeaveType, days int, at time.Time) (LeaveBalance, error) {
	if days <= 0 {
		return b, invalid("days", "must be positive")
	}
	info, ok := LookupLeaveType(leaveType)
	if !ok {
		return b, invalid("leaveType", fmt.Sprintf("unknown leave type %q", leaveType))
	}
	if !info.Deducts() {
		return b, nil
	}

	available := b.Category(info.Category)
	if available < days {
		return b, &InsufficientBalanceError{
			EmployeeID: b.EmployeeID,
			Category:   info.Category,
			Available:  available,
			Requested:  days,
		}
	}
	if b.TotalRemaining < days {
		return b, &InsufficientBalanceError{
			EmployeeID: b.EmployeeID,
			Category:   "total",
			Available:  b.TotalRemaining,
			Requested:  days,
		}
	}

	next := b
	next.addCategory(info.Category, -days)
	next.TotalUsed += days
	next.TotalRemaining -= days
	next.UpdatedAt = at
	return next, nil
}

// CheckInvariants reports the first violated ledger invariant.
func (b LeaveBalance) CheckInvariants() error {
	if b.TotalAllocated != b.TotalUsed+b.TotalRemaining {
		return fmt.Errorf("balance %s: allocated %d != used %d + remaining %d",
			b.EmployeeID, b.TotalAllocated, b.TotalUsed, b.TotalRemaining)
	}
	for _, c := range Categories {
		if b.Category(c) < 0 {
			return fmt.Errorf("balance %s: %s is negative (%d)", b.EmployeeID, c, b.Category(c))
		}
	}
	if b.TotalUsed < 0 || b.TotalRemaining < 0 {
		return fmt.Errorf("balance %s: negative totals (used %d, remaining %d)",
			b.EmployeeID, b.TotalUsed, b.TotalRemaining)
	}
	return nil
}
