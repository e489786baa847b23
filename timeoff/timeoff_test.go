package timeoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/request-engine/generic"
)

func TestCatalogue_Registered(t *testing.T) {
	tests := []struct {
		leaveType generic.LeaveType
		category  generic.LeaveCategory
		deducts   bool
	}{
		{LeaveAnnual, generic.CategoryAnnual, true},
		{LeaveSick, generic.CategorySick, true},
		{LeaveCasual, generic.CategoryCasual, true},
		{LeaveEmergency, generic.CategoryCasual, true},
		{LeaveMaternity, generic.CategoryNone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.leaveType), func(t *testing.T) {
			info, ok := generic.LookupLeaveType(tt.leaveType)
			require.True(t, ok)
			assert.Equal(t, tt.category, info.Category)
			assert.Equal(t, tt.deducts, info.Deducts())
			assert.NotEmpty(t, info.Name)
		})
	}

	assert.Len(t, generic.ListLeaveTypes(), len(Catalogue))
}

func TestPolicy_AllocationFor(t *testing.T) {
	p := StandardPolicy()
	p.Overrides["emp-7"] = generic.Allocation{Annual: 25, Sick: 12, Casual: 7}

	assert.Equal(t, generic.DefaultAllocation, p.AllocationFor("emp-1"))
	assert.Equal(t, 25, p.AllocationFor("emp-7").Annual)
	assert.NoError(t, p.Validate())
}

func TestPolicy_ValidateRejectsNegative(t *testing.T) {
	p := StandardPolicy()
	p.Overrides["emp-7"] = generic.Allocation{Annual: -1}

	err := p.Validate()

	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Contains(t, err.Error(), "emp-7")
}
