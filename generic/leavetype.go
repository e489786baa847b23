/*
leavetype.go - Leave type registration and lookup

PURPOSE:
  Provides a registry for domain packages to register the leave types an
  employee may apply for, and which ledger category each one draws on.
  The engine validates submissions and deducts balances through this
  registry without hard-coding the catalogue.

HOW IT WORKS:
  1. The timeoff package defines the catalogue (annual, sick, casual, ...)
  2. It registers each type in init()
  3. Submissions and ledger deductions look types up here

USAGE:
  // In timeoff/types.go
  func init() {
      generic.RegisterLeaveType(generic.LeaveTypeInfo{
          Type: "annual", Name: "Annual Leave", Category: generic.CategoryAnnual,
      })
  }

  info, ok := generic.LookupLeaveType("annual")

SEE ALSO:
  - balance.go: Uses Category to choose the bucket to deduct
  - timeoff/types.go: The registered catalogue
*/
package generic

import (
	"sort"
	"sync"
)

// LeaveType is the free-form type an employee applies for.
type LeaveType string

// LeaveCategory is a ledger bucket. The empty category means the leave type
// is tracked outside the ledger and approval deducts nothing.
type LeaveCategory string

const (
	CategoryNone   LeaveCategory = ""
	CategoryAnnual LeaveCategory = "annual"
	CategorySick   LeaveCategory = "sick"
	CategoryCasual LeaveCategory = "casual"
)

// Categories lists the ledger buckets.
var Categories = []LeaveCategory{CategoryAnnual, CategorySick, CategoryCasual}

// LeaveTypeInfo describes a registered leave type.
type LeaveTypeInfo struct {
	Type     LeaveType
	Name     string
	Category LeaveCategory
}

// Deducts reports whether approving this type touches the ledger.
func (i LeaveTypeInfo) Deducts() bool { return i.Category != CategoryNone }

// =============================================================================
// LEAVE TYPE REGISTRY
// =============================================================================

var (
	leaveTypeRegistry = make(map[LeaveType]LeaveTypeInfo)
	registryMu        sync.RWMutex
)

// RegisterLeaveType adds a leave type to the global registry.
// Call this from domain package init() functions.
func RegisterLeaveType(info LeaveTypeInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	leaveTypeRegistry[info.Type] = info
}

// LookupLeaveType finds a registered leave type.
func LookupLeaveType(t LeaveType) (LeaveTypeInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := leaveTypeRegistry[t]
	return info, ok
}

// ListLeaveTypes returns all registered leave types ordered by type.
func ListLeaveTypes() []LeaveTypeInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]LeaveTypeInfo, 0, len(leaveTypeRegistry))
	for _, info := range leaveTypeRegistry {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}
