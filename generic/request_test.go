package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/request-engine/generic"
	"github.com/warp/request-engine/timeoff"
)

// =============================================================================
// DATES
// =============================================================================

func TestInclusiveDays(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"2024-04-15", "2024-04-17", 3},
		{"2024-04-15", "2024-04-15", 1},
		{"2024-02-28", "2024-03-01", 3}, // leap year
		{"2024-12-30", "2025-01-02", 4},
		{"1700-01-01", "2100-12-31", 146462},
		{"0001-01-01", "9999-12-31", 3652059},
	}
	for _, tt := range tests {
		t.Run(tt.start+"_"+tt.end, func(t *testing.T) {
			start, err := generic.ParseDate(tt.start)
			require.NoError(t, err)
			end, err := generic.ParseDate(tt.end)
			require.NoError(t, err)

			assert.Equal(t, tt.want, generic.InclusiveDays(start, end))
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "15/04/2024", "2024-13-01", "2024-04-31"} {
		_, err := generic.ParseDate(s)
		assert.Error(t, err, s)
	}
}

func TestDate_JSON(t *testing.T) {
	d := generic.NewDate(2024, time.April, 15)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-04-15"`, string(b))

	var back generic.Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, d.Equal(back))

	b, err = json.Marshal(generic.Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

func TestLeaveSubmission_Build(t *testing.T) {
	req, err := generic.LeaveSubmission{
		LeaveType:       " Annual ",
		StartDate:       "2024-04-15",
		EndDate:         "2024-04-17",
		Reason:          "  holiday ",
		HandoverDetails: "notes in wiki",
	}.Build("emp-1", generic.DefaultCurrency)
	require.NoError(t, err)

	leave := req.(generic.LeaveApplication)
	assert.Equal(t, timeoff.LeaveAnnual, leave.LeaveType)
	assert.Equal(t, 3, leave.Days)
	assert.Equal(t, "holiday", leave.Reason)
	assert.Equal(t, generic.EmployeeID("emp-1"), leave.EmployeeID)
	assert.Equal(t, generic.KindLeave, req.Kind())
}

func TestLeaveSubmission_MultiCenturySpan(t *testing.T) {
	// GIVEN: A maternity leave spanning the whole calendar range
	req, err := generic.LeaveSubmission{
		LeaveType: timeoff.LeaveMaternity,
		StartDate: "0001-01-01",
		EndDate:   "9999-12-31",
		Reason:    "long one",
	}.Build("emp-1", generic.DefaultCurrency)
	require.NoError(t, err)

	// THEN: Days is the exact inclusive count
	assert.Equal(t, 3652059, req.(generic.LeaveApplication).Days)
}

func TestLeaveSubmission_MissingFields(t *testing.T) {
	_, err := generic.LeaveSubmission{}.Build("emp-1", generic.DefaultCurrency)

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := verr.ToMap()
	for _, f := range []string{"leaveType", "startDate", "endDate", "reason"} {
		assert.Contains(t, fields, f)
	}
}

func TestReimbursementSubmission_Build(t *testing.T) {
	tests := []struct {
		name    string
		sub     generic.ReimbursementSubmission
		wantErr string
		want    string
	}{
		{
			name: "two decimals",
			sub:  generic.ReimbursementSubmission{Type: "travel", Amount: decimal.RequireFromString("12.34"), Currency: "eur", Description: "bus"},
			want: "12.34 EUR",
		},
		{
			name: "whole yen",
			sub:  generic.ReimbursementSubmission{Type: "meal", Amount: decimal.NewFromInt(1500), Currency: "JPY", Description: "lunch"},
			want: "1500 JPY",
		},
		{
			name:    "three decimals in USD",
			sub:     generic.ReimbursementSubmission{Type: "meal", Amount: decimal.RequireFromString("1.005"), Description: "tea"},
			wantErr: "amount",
		},
		{
			name:    "bad currency",
			sub:     generic.ReimbursementSubmission{Type: "meal", Amount: decimal.NewFromInt(1), Currency: "dollars", Description: "tea"},
			wantErr: "currency",
		},
		{
			name:    "negative",
			sub:     generic.ReimbursementSubmission{Type: "meal", Amount: decimal.NewFromInt(-5), Description: "tea"},
			wantErr: "amount",
		},
		{
			name:    "missing description",
			sub:     generic.ReimbursementSubmission{Type: "meal", Amount: decimal.NewFromInt(5)},
			wantErr: "description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.sub.Build("emp-1", generic.DefaultCurrency)
			if tt.wantErr != "" {
				var verr *generic.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.ToMap(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.(generic.Reimbursement).Amount.String())
		})
	}
}

// =============================================================================
// REQUEST VALUES
// =============================================================================

func TestWithState_ReturnsCopy(t *testing.T) {
	original := generic.LeaveApplication{
		Lifecycle: generic.Lifecycle{ID: "req-1", Status: generic.StatusPending},
		Days:      2,
	}

	next := original.WithState(generic.Lifecycle{ID: "req-1", Status: generic.StatusApproved})

	assert.Equal(t, generic.StatusPending, original.Status)
	assert.Equal(t, generic.StatusApproved, next.State().Status)
	assert.Equal(t, 2, next.(generic.LeaveApplication).Days)
}

func TestApprovalAction_Validate(t *testing.T) {
	assert.NoError(t, generic.ApprovalAction{Action: generic.ActionApprove}.Validate())
	assert.NoError(t, generic.ApprovalAction{Action: generic.ActionReject, Reason: "overlap"}.Validate())
	assert.ErrorIs(t, generic.ApprovalAction{Action: generic.ActionReject}.Validate(), generic.ErrValidation)
	assert.ErrorIs(t, generic.ApprovalAction{Action: "maybe"}.Validate(), generic.ErrValidation)
}

func TestParseKind(t *testing.T) {
	k, err := generic.ParseKind("Leaves")
	require.NoError(t, err)
	assert.Equal(t, generic.KindLeave, k)

	k, err = generic.ParseKind("reimbursement")
	require.NoError(t, err)
	assert.Equal(t, generic.KindReimbursement, k)

	_, err = generic.ParseKind("overtime")
	assert.Error(t, err)
}
