/*
request.go - Request sum type and submissions

PURPOSE:
  Defines the two request families the engine processes and the shared
  lifecycle record both carry.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────┐
  │                                                              │
  │  Submission   ──▶  Validate  ──▶  Request Store  ──▶  pending │
  │                                                      │       │
  │                               ┌──────────┐           │       │
  │                               │ Approved │◀──────────┤       │
  │                               └──────────┘  (leave:  │       │
  │                                              deduct) │       │
  │                               ┌──────────┐           │       │
  │                               │ Rejected │◀──────────┘       │
  │                               └──────────┘  (reason)         │
  │                                                              │
  └──────────────────────────────────────────────────────────────┘

  Both terminal states are final. A second Process call on the same id
  fails with ErrAlreadyProcessed.

SUM TYPE:
  Request is a sealed interface. Only LeaveApplication and Reimbursement
  implement it, so a type switch over the two is exhaustive:

    switch r := req.(type) {
    case LeaveApplication: ...
    case Reimbursement:    ...
    }

  Values are stored and returned by value. Mutating a returned request
  never changes what a store holds.

SEE ALSO:
  - engine.go: Drives transitions
  - store.go: RequestStore contract
*/
package generic

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LIFECYCLE - Fields shared by every request family
// =============================================================================

type Lifecycle struct {
	ID             RequestID
	EmployeeID     EmployeeID
	Status         Status
	SubmittedAt    time.Time
	ApprovedBy     *EmployeeID
	ApprovedAt     *time.Time
	RejectedReason *string
}

// =============================================================================
// REQUEST - Sealed sum type
// =============================================================================

type Request interface {
	Kind() Kind
	State() Lifecycle
	// WithState returns a copy carrying s.
	WithState(s Lifecycle) Request

	sealed()
}

// LeaveApplication asks for Days of LeaveType between two dates inclusive.
type LeaveApplication struct {
	Lifecycle
	LeaveType       LeaveType
	StartDate       Date
	EndDate         Date
	Days            int
	Reason          string
	HandoverDetails string
}

func (l LeaveApplication) Kind() Kind       { return KindLeave }
func (l LeaveApplication) State() Lifecycle { return l.Lifecycle }
func (l LeaveApplication) sealed()          {}

func (l LeaveApplication) WithState(s Lifecycle) Request {
	l.Lifecycle = s
	return l
}

// Reimbursement asks for Amount to be paid back for an expense of Type.
type Reimbursement struct {
	Lifecycle
	Type        string
	Amount      Money
	Description string
}

func (r Reimbursement) Kind() Kind       { return KindReimbursement }
func (r Reimbursement) State() Lifecycle { return r.Lifecycle }
func (r Reimbursement) sealed()          {}

func (r Reimbursement) WithState(s Lifecycle) Request {
	r.Lifecycle = s
	return r
}

var (
	_ Request = LeaveApplication{}
	_ Request = Reimbursement{}
)

// =============================================================================
// SUBMISSIONS - Raw caller input, validated into a Request
// =============================================================================

// Submission is caller input for a new request.
type Submission interface {
	Kind() Kind
	// Build validates the input and returns an unsaved request.
	Build(employeeID EmployeeID, defaultCurrency Currency) (Request, error)
}

type LeaveSubmission struct {
	LeaveType       LeaveType
	StartDate       string
	EndDate         string
	Reason          string
	HandoverDetails string
}

func (s LeaveSubmission) Kind() Kind { return KindLeave }

// Build checks required fields and computes the inclusive day count.
func (s LeaveSubmission) Build(employeeID EmployeeID, _ Currency) (Request, error) {
	v := &ValidationError{}

	leaveType := LeaveType(strings.ToLower(strings.TrimSpace(string(s.LeaveType))))
	if leaveType == "" {
		v.Add("leaveType", "is required")
	} else if _, ok := LookupLeaveType(leaveType); !ok {
		v.Add("leaveType", fmt.Sprintf("unknown leave type %q", s.LeaveType))
	}

	start, startOK := parseRequiredDate(v, "startDate", s.StartDate)
	end, endOK := parseRequiredDate(v, "endDate", s.EndDate)
	if startOK && endOK && end.Before(start) {
		v.Add("endDate", "must not be before startDate")
	}

	reason := strings.TrimSpace(s.Reason)
	if reason == "" {
		v.Add("reason", "is required")
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	return LeaveApplication{
		Lifecycle:       Lifecycle{EmployeeID: employeeID},
		LeaveType:       leaveType,
		StartDate:       start,
		EndDate:         end,
		Days:            InclusiveDays(start, end),
		Reason:          reason,
		HandoverDetails: strings.TrimSpace(s.HandoverDetails),
	}, nil
}

func parseRequiredDate(v *ValidationError, field, raw string) (Date, bool) {
	if strings.TrimSpace(raw) == "" {
		v.Add(field, "is required")
		return Date{}, false
	}
	d, err := ParseDate(raw)
	if err != nil {
		v.Add(field, "must be a YYYY-MM-DD date")
		return Date{}, false
	}
	return d, true
}

type ReimbursementSubmission struct {
	Type        string
	Amount      decimal.Decimal
	Currency    string
	Description string
}

func (s ReimbursementSubmission) Kind() Kind { return KindReimbursement }

// Build checks required fields and the amount against its currency.
func (s ReimbursementSubmission) Build(employeeID EmployeeID, defaultCurrency Currency) (Request, error) {
	v := &ValidationError{}

	typ := strings.TrimSpace(s.Type)
	if typ == "" {
		v.Add("type", "is required")
	}

	currency := NormalizeCurrency(s.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	amount := NewMoney(s.Amount, currency)
	switch {
	case !currency.Valid():
		v.Add("currency", "must be a three-letter ISO-4217 code")
	case !amount.IsPositive():
		v.Add("amount", "must be positive")
	case !amount.FitsCurrency():
		v.Add("amount", fmt.Sprintf("%s allows at most %d decimal places", currency, currency.MinorUnits()))
	}

	description := strings.TrimSpace(s.Description)
	if description == "" {
		v.Add("description", "is required")
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	return Reimbursement{
		Lifecycle:   Lifecycle{EmployeeID: employeeID},
		Type:        typ,
		Amount:      amount,
		Description: description,
	}, nil
}

// =============================================================================
// APPROVAL ACTION - Transient Process input
// =============================================================================

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

type ApprovalAction struct {
	Action     Action
	ApproverID EmployeeID
	Reason     string
}

// Validate checks the action and reason. Approver existence is checked
// separately by the engine, before this runs.
func (a ApprovalAction) Validate() error {
	v := &ValidationError{}
	switch a.Action {
	case ActionApprove:
	case ActionReject:
		if strings.TrimSpace(a.Reason) == "" {
			v.Add("reason", "is required when rejecting")
		}
	default:
		v.Add("action", fmt.Sprintf("must be %q or %q", ActionApprove, ActionReject))
	}
	return v.OrNil()
}

// transition returns the lifecycle after a successful action.
func (a ApprovalAction) transition(s Lifecycle, at time.Time) Lifecycle {
	next := s
	approver := a.ApproverID
	next.ApprovedBy = &approver
	next.ApprovedAt = &at
	if a.Action == ActionApprove {
		next.Status = StatusApproved
		next.RejectedReason = nil
	} else {
		next.Status = StatusRejected
		reason := strings.TrimSpace(a.Reason)
		next.RejectedReason = &reason
	}
	return next
}
