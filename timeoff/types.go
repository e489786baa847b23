// Package timeoff defines the leave catalogue and allocation policies.
// It registers its leave types with the generic engine on import.
package timeoff

import "github.com/warp/request-engine/generic"

// =============================================================================
// LEAVE TYPES
// =============================================================================

const (
	LeaveAnnual    generic.LeaveType = "annual"
	LeaveSick      generic.LeaveType = "sick"
	LeaveCasual    generic.LeaveType = "casual"
	LeaveMaternity generic.LeaveType = "maternity"
	LeaveEmergency generic.LeaveType = "emergency"
)

// Catalogue lists every leave type an employee may apply for.
//
// Emergency leave draws on the casual bucket. Maternity leave is a
// statutory entitlement tracked outside the ledger; approving it deducts
// nothing.
var Catalogue = []generic.LeaveTypeInfo{
	{Type: LeaveAnnual, Name: "Annual Leave", Category: generic.CategoryAnnual},
	{Type: LeaveSick, Name: "Sick Leave", Category: generic.CategorySick},
	{Type: LeaveCasual, Name: "Casual Leave", Category: generic.CategoryCasual},
	{Type: LeaveMaternity, Name: "Maternity Leave", Category: generic.CategoryNone},
	{Type: LeaveEmergency, Name: "Emergency Leave", Category: generic.CategoryCasual},
}

// Register all leave types with the generic registry
func init() {
	for _, info := range Catalogue {
		generic.RegisterLeaveType(info)
	}
}
