/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - JSON fields are camelCase

TYPES:
  Employee:      EmployeeDTO
  Balance:       BalanceDTO
  Requests:      LeaveDTO, ReimbursementDTO, SubmitLeaveRequest,
                 SubmitReimbursementRequest, ProcessRequest
  Audit:         AuditEntryDTO
  Scenarios:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by the engine, not in DTOs. DTOs are pure data
  carriers; malformed JSON is the only error the handlers raise themselves.

SEE ALSO:
  - handlers.go: Uses these types
  - generic/request.go: Domain types behind LeaveDTO and ReimbursementDTO
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/request-engine/generic"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email,omitempty"`
	Department string  `json:"department"`
	ApproverID *string `json:"approverId"`
}

func toEmployeeDTO(e generic.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		Email:      e.Email,
		Department: e.Department,
	}
	if e.ApproverID != nil {
		id := string(*e.ApproverID)
		dto.ApproverID = &id
	}
	return dto
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO is the leave ledger for one employee.
type BalanceDTO struct {
	EmployeeID     string `json:"employeeId"`
	Annual         int    `json:"annual"`
	Sick           int    `json:"sick"`
	Casual         int    `json:"casual"`
	TotalAllocated int    `json:"totalAllocated"`
	TotalUsed      int    `json:"totalUsed"`
	TotalRemaining int    `json:"totalRemaining"`
	UpdatedAt      string `json:"updatedAt"`
}

func toBalanceDTO(b generic.LeaveBalance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:     string(b.EmployeeID),
		Annual:         b.Annual,
		Sick:           b.Sick,
		Casual:         b.Casual,
		TotalAllocated: b.TotalAllocated,
		TotalUsed:      b.TotalUsed,
		TotalRemaining: b.TotalRemaining,
		UpdatedAt:      formatTime(b.UpdatedAt),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitLeaveRequest is the body of POST /api/leaves.
type SubmitLeaveRequest struct {
	EmployeeID      string `json:"employeeId"`
	LeaveType       string `json:"leaveType"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	Reason          string `json:"reason"`
	HandoverDetails string `json:"handoverDetails,omitempty"`
}

func (r SubmitLeaveRequest) submission() generic.LeaveSubmission {
	return generic.LeaveSubmission{
		LeaveType:       generic.LeaveType(r.LeaveType),
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Reason:          r.Reason,
		HandoverDetails: r.HandoverDetails,
	}
}

// SubmitReimbursementRequest is the body of POST /api/reimbursements.
// Amount accepts a JSON number or a quoted decimal string.
type SubmitReimbursementRequest struct {
	EmployeeID  string          `json:"employeeId"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Description string          `json:"description"`
}

func (r SubmitReimbursementRequest) submission() generic.ReimbursementSubmission {
	return generic.ReimbursementSubmission{
		Type:        r.Type,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Description: r.Description,
	}
}

// ProcessRequest is the body of PATCH /api/{kind}/{id}.
type ProcessRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	UserID string `json:"userId"`
}

func (r ProcessRequest) action() generic.ApprovalAction {
	return generic.ApprovalAction{
		Action:     generic.Action(r.Action),
		ApproverID: generic.EmployeeID(r.UserID),
		Reason:     r.Reason,
	}
}

// lifecycleDTO holds the fields both request kinds share.
type lifecycleDTO struct {
	Kind           string  `json:"kind"`
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employeeId"`
	Status         string  `json:"status"`
	ApprovedBy     *string `json:"approvedBy"`
	ApprovedDate   *string `json:"approvedDate"`
	RejectedReason *string `json:"rejectedReason"`
}

// LeaveDTO represents a leave application in API responses.
type LeaveDTO struct {
	lifecycleDTO
	LeaveType       string `json:"leaveType"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	Days            int    `json:"days"`
	Reason          string `json:"reason"`
	HandoverDetails string `json:"handoverDetails,omitempty"`
	AppliedDate     string `json:"appliedDate"`
}

// ReimbursementDTO represents a reimbursement in API responses.
type ReimbursementDTO struct {
	lifecycleDTO
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	SubmittedDate string `json:"submittedDate"`
}

func toLifecycleDTO(kind generic.Kind, s generic.Lifecycle) lifecycleDTO {
	dto := lifecycleDTO{
		Kind:           string(kind),
		ID:             string(s.ID),
		EmployeeID:     string(s.EmployeeID),
		Status:         string(s.Status),
		RejectedReason: s.RejectedReason,
	}
	if s.ApprovedBy != nil {
		by := string(*s.ApprovedBy)
		dto.ApprovedBy = &by
	}
	if s.ApprovedAt != nil {
		at := formatTime(*s.ApprovedAt)
		dto.ApprovedDate = &at
	}
	return dto
}

// toRequestDTO renders either request kind.
func toRequestDTO(req generic.Request) any {
	switch r := req.(type) {
	case generic.LeaveApplication:
		return LeaveDTO{
			lifecycleDTO:    toLifecycleDTO(r.Kind(), r.Lifecycle),
			LeaveType:       string(r.LeaveType),
			StartDate:       r.StartDate.String(),
			EndDate:         r.EndDate.String(),
			Days:            r.Days,
			Reason:          r.Reason,
			HandoverDetails: r.HandoverDetails,
			AppliedDate:     formatTime(r.SubmittedAt),
		}
	case generic.Reimbursement:
		return ReimbursementDTO{
			lifecycleDTO:  toLifecycleDTO(r.Kind(), r.Lifecycle),
			Type:          r.Type,
			Amount:        r.Amount.Amount.StringFixed(r.Amount.Currency.MinorUnits()),
			Currency:      string(r.Amount.Currency),
			Description:   r.Description,
			SubmittedDate: formatTime(r.SubmittedAt),
		}
	}
	return nil
}

func toRequestDTOs(reqs []generic.Request) []any {
	dtos := make([]any, len(reqs))
	for i, r := range reqs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntryDTO represents one audit log entry.
type AuditEntryDTO struct {
	Sequence   int64  `json:"sequence"`
	Timestamp  string `json:"timestamp"`
	ActorID    string `json:"actorId"`
	Department string `json:"department"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
}

func toAuditEntryDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		Sequence:   e.Sequence,
		Timestamp:  formatTime(e.Timestamp),
		ActorID:    string(e.ActorID),
		Department: e.Department,
		EntityType: string(e.EntityType),
		EntityID:   string(e.EntityID),
		Action:     string(e.Action),
		Outcome:    string(e.Outcome),
		Detail:     e.Detail,
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
