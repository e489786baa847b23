/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that replace the running engine with a
	realistic directory and, for some, a queue of pending requests. Each
	scenario demonstrates a specific part of the approval workflow.

AVAILABLE SCENARIOS:

	two-departments:   HR and Engineering with a lead each, no requests
	pending-approvals: Same directory with leave and reimbursement claims queued
	low-balance:       Reduced casual allocation so an approval hits the ledger limit

HOW SCENARIOS WORK:
 1. Parse the directory JSON via factory
 2. Parse the allocation JSON via factory (optional)
 3. Build a fresh engine through the EngineFactory
 4. Submit the scenario's requests through the engine
 5. Swap the new engine in

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "pending-approvals"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Give it a directory JSON and optionally an allocation JSON
 3. Add submissions in its seed function

NOTE:

	Scenarios discard all requests, balances and audit entries. Only use
	in development/demo environments.

SEE ALSO:
  - factory/directory.go: Directory JSON
  - factory/allocation.go: Allocation JSON
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/request-engine/factory"
	"github.com/warp/request-engine/generic"
	"github.com/warp/request-engine/timeoff"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	directory  string
	allocation string
	seed       func(ctx context.Context, e *generic.Engine) error
}

const twoDepartmentsJSON = `{
  "employees": [
    {"id": "hr-lead", "name": "Amara Osei", "email": "amara@example.com", "department": "HR"},
    {"id": "hr-1", "name": "Tomas Lind", "email": "tomas@example.com", "department": "HR", "approverId": "hr-lead"},
    {"id": "hr-2", "name": "Mei Tanaka", "email": "mei@example.com", "department": "HR", "approverId": "hr-lead"},
    {"id": "eng-lead", "name": "Ravi Kumar", "email": "ravi@example.com", "department": "Engineering"},
    {"id": "eng-1", "name": "Jo Becker", "email": "jo@example.com", "department": "Engineering", "approverId": "eng-lead"},
    {"id": "eng-2", "name": "Sam Ortiz", "email": "sam@example.com", "department": "Engineering", "approverId": "eng-lead"}
  ]
}`

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "two-departments",
			Name:        "Two Departments",
			Description: "HR and Engineering, each with a lead and two reports; no requests yet",
		},
		directory: twoDepartmentsJSON,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "pending-approvals",
			Name:        "Pending Approvals",
			Description: "Leave and reimbursement requests waiting in both departments",
		},
		directory: twoDepartmentsJSON,
		seed:      seedPendingApprovals,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "low-balance",
			Name:        "Low Balance",
			Description: "eng-1 has one casual day left and a pending three-day emergency leave",
		},
		directory: twoDepartmentsJSON,
		allocation: `{
		  "id": "low-casual",
		  "name": "Low Casual Allocation",
		  "default": {"annual": 21, "sick": 12, "casual": 7},
		  "overrides": {"eng-1": {"annual": 21, "sick": 12, "casual": 1}}
		}`,
		seed: seedLowBalance,
	},
}

// DefaultScenario is loaded at startup when no directory file is given.
const DefaultScenario = "two-departments"

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeSuccess(w, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if s, ok := findScenario(current); ok {
		writeSuccess(w, s.ScenarioDTO)
		return
	}
	writeSuccess(w, nil)
}

// LoadScenario replaces the running engine with a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := findScenario(req.ScenarioID); !ok {
		badRequest(w, "scenarioId", fmt.Sprintf("unknown scenario %q", req.ScenarioID))
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		h.Logger.ErrorContext(r.Context(), "scenario load failed", "scenario", req.ScenarioID, "error", err)
		writeError(w, err)
		return
	}

	s, _ := findScenario(req.ScenarioID)
	writeSuccess(w, s.ScenarioDTO)
}

// LoadScenarioByID builds and swaps in the engine for scenario id.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	if h.build == nil {
		return fmt.Errorf("scenario loading is disabled")
	}
	s, ok := findScenario(id)
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}

	employees, err := factory.ParseDirectory(s.directory)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	seed := Seed{Employees: employees, Fresh: true}
	if s.allocation != "" {
		policy, err := factory.ParseAllocation(s.allocation)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
		seed.Allocation = policy
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	engine, err := h.build(ctx, seed)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	if s.seed != nil {
		if err := s.seed(ctx, engine); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
	}

	h.engine = engine
	h.currentScenario = id
	h.Logger.InfoContext(ctx, "scenario loaded", "scenario", id, "employees", len(employees))
	return nil
}

// =============================================================================
// SCENARIO SEEDS
// =============================================================================

func seedPendingApprovals(ctx context.Context, e *generic.Engine) error {
	subs := []struct {
		employee generic.EmployeeID
		sub      generic.Submission
	}{
		{"hr-1", generic.LeaveSubmission{
			LeaveType: timeoff.LeaveAnnual, StartDate: "2025-04-15", EndDate: "2025-04-17",
			Reason: "Family visit", HandoverDetails: "Mei covers onboarding",
		}},
		{"hr-2", generic.LeaveSubmission{
			LeaveType: timeoff.LeaveSick, StartDate: "2025-04-22", EndDate: "2025-04-22",
			Reason: "Dentist",
		}},
		{"eng-1", generic.ReimbursementSubmission{
			Type: "travel", Amount: decimal.RequireFromString("184.20"), Currency: "EUR",
			Description: "Train to customer site",
		}},
		{"eng-2", generic.LeaveSubmission{
			LeaveType: timeoff.LeaveCasual, StartDate: "2025-05-02", EndDate: "2025-05-02",
			Reason: "Moving house",
		}},
		{"hr-2", generic.ReimbursementSubmission{
			Type: "training", Amount: decimal.RequireFromString("350"),
			Description: "Employment law workshop",
		}},
	}
	for _, s := range subs {
		if _, err := e.Submit(ctx, s.employee, s.sub); err != nil {
			return fmt.Errorf("submit for %s: %w", s.employee, err)
		}
	}
	return nil
}

func seedLowBalance(ctx context.Context, e *generic.Engine) error {
	_, err := e.Submit(ctx, "eng-1", generic.LeaveSubmission{
		LeaveType: timeoff.LeaveEmergency, StartDate: "2025-06-09", EndDate: "2025-06-11",
		Reason: "Family emergency",
	})
	return err
}
