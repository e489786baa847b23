/*
handlers.go - HTTP API handlers for the request lifecycle engine

PURPOSE:
  Exposes the lifecycle engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to generic.Engine.

ENDPOINTS:
  Leave applications:
    POST   /api/leaves                   Submit a leave application
    GET    /api/leaves?employeeId=       An employee's applications
    GET    /api/leaves/{id}              One application
    PATCH  /api/leaves/{id}              Approve or reject

  Reimbursements:
    POST   /api/reimbursements           Submit a reimbursement claim
    GET    /api/reimbursements?employeeId=
    GET    /api/reimbursements/{id}
    PATCH  /api/reimbursements/{id}      Approve or reject

  Approvals:
    GET    /api/approvals/pending?authorityId=  Pending requests in scope

  Employees:
    GET    /api/employees                Directory
    GET    /api/employees/{id}           One employee
    GET    /api/employees/{id}/balance   Leave balance (created lazily)

  Audit:
    GET    /api/audit?actorId=&entityType=&entityId=&department=&limit=

  Scenarios:
    GET    /api/scenarios                List demo scenarios
    GET    /api/scenarios/current        Currently loaded scenario
    POST   /api/scenarios/load           Load a demo scenario

ARCHITECTURE:
  Handler holds the running engine behind a lock. Loading a scenario
  builds a fresh engine through the EngineFactory and swaps it in; requests
  already in flight finish against the engine they started with.

ERROR HANDLING:
  Errors are rendered by writeError (response.go) from generic.KindOf:
  - 400: validation_error
  - 403: out_of_scope
  - 404: not_found
  - 409: already_processed, insufficient_balance
  - 500: internal

SECURITY NOTE:
  No authentication. The acting approver is taken from the request body
  (userId) and scoped by department only.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/request-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	mu              sync.RWMutex
	engine          *generic.Engine
	currentScenario string

	build  EngineFactory
	Logger *slog.Logger
}

// NewHandler creates a handler serving engine. build may be nil, in which
// case scenario loading is disabled.
func NewHandler(engine *generic.Engine, build EngineFactory, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, build: build, Logger: logger}
}

// Engine returns the engine currently serving requests.
func (h *Handler) Engine() *generic.Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "body", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitLeave creates a pending leave application.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.Engine().Submit(r.Context(), generic.EmployeeID(req.EmployeeID), req.submission())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, "leave application submitted", toRequestDTO(created))
}

// SubmitReimbursement creates a pending reimbursement claim.
func (h *Handler) SubmitReimbursement(w http.ResponseWriter, r *http.Request) {
	var req SubmitReimbursementRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.Engine().Submit(r.Context(), generic.EmployeeID(req.EmployeeID), req.submission())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, "reimbursement submitted", toRequestDTO(created))
}

// =============================================================================
// READ REQUESTS
// =============================================================================

// ListRequests returns one kind of request for ?employeeId=.
func (h *Handler) ListRequests(kind generic.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := r.URL.Query().Get("employeeId")
		if employeeID == "" {
			badRequest(w, "employeeId", "is required")
			return
		}

		reqs, err := h.Engine().ListForEmployee(r.Context(), kind, generic.EmployeeID(employeeID))
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, toRequestDTOs(reqs))
	}
}

// GetRequest returns one request of kind by {id}.
func (h *Handler) GetRequest(kind generic.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.RequestID(chi.URLParam(r, "id"))

		req, err := h.Engine().Get(r.Context(), kind, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, toRequestDTO(req))
	}
}

// =============================================================================
// APPROVALS
// =============================================================================

// ProcessRequest approves or rejects one request of kind by {id}.
func (h *Handler) ProcessRequest(kind generic.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ProcessRequest
		if !decodeBody(w, r, &body) {
			return
		}
		id := generic.RequestID(chi.URLParam(r, "id"))

		updated, err := h.Engine().Process(r.Context(), kind, id, body.action())
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, toRequestDTO(updated))
	}
}

// ListPending returns pending requests of both kinds in ?authorityId='s scope.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	approverID := r.URL.Query().Get("authorityId")
	if approverID == "" {
		badRequest(w, "authorityId", "is required")
		return
	}

	reqs, err := h.Engine().ListPending(r.Context(), generic.EmployeeID(approverID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, toRequestDTOs(reqs))
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// ListEmployees returns the whole directory.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Engine().Directory.Employees(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeSuccess(w, dtos)
}

// GetEmployee returns one employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := generic.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Engine().Directory.Employee(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, toEmployeeDTO(emp))
}

// GetBalance returns the employee's leave balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := generic.EmployeeID(chi.URLParam(r, "id"))

	balance, err := h.Engine().Balance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, toBalanceDTO(balance))
}

// =============================================================================
// AUDIT
// =============================================================================

// ListAudit returns audit entries matching the query filters.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter generic.AuditFilter

	if v := q.Get("actorId"); v != "" {
		id := generic.EmployeeID(v)
		filter.ActorID = &id
	}
	if v := q.Get("department"); v != "" {
		filter.Department = &v
	}
	if v := q.Get("entityType"); v != "" {
		kind, err := generic.ParseKind(v)
		if err != nil {
			badRequest(w, "entityType", err.Error())
			return
		}
		filter.EntityType = &kind
	}
	if v := q.Get("entityId"); v != "" {
		id := generic.RequestID(v)
		filter.EntityID = &id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit", "must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	entries, err := h.Engine().Audit(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeSuccess(w, dtos)
}

// ListLeaveTypes returns the leave catalogue.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	type leaveTypeDTO struct {
		Type     string `json:"type"`
		Name     string `json:"name"`
		Category string `json:"category,omitempty"`
	}
	types := generic.ListLeaveTypes()
	dtos := make([]leaveTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = leaveTypeDTO{Type: string(t.Type), Name: t.Name, Category: string(t.Category)}
	}
	writeSuccess(w, dtos)
}
