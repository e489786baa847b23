package generic_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/request-engine/generic"
	"github.com/warp/request-engine/generic/store"
	"github.com/warp/request-engine/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func ptr[T any](v T) *T { return &v }

func testEmployees() []generic.Employee {
	return []generic.Employee{
		{ID: "hr-lead", Name: "Amara", Department: "HR"},
		{ID: "hr-1", Name: "Tomas", Department: "HR", ApproverID: ptr(generic.EmployeeID("hr-lead"))},
		{ID: "hr-2", Name: "Mei", Department: "HR", ApproverID: ptr(generic.EmployeeID("hr-lead"))},
		{ID: "eng-lead", Name: "Ravi", Department: "Engineering"},
		{ID: "eng-1", Name: "Jo", Department: "Engineering", ApproverID: ptr(generic.EmployeeID("eng-lead"))},
	}
}

func newTestEngine(t *testing.T) (*generic.Engine, *store.Memory) {
	t.Helper()
	dir, err := store.NewDirectory(testEmployees()...)
	require.NoError(t, err)
	mem := store.NewMemory()
	engine := generic.NewEngine(mem, dir)
	engine.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return engine, mem
}

func annualLeave(start, end string) generic.LeaveSubmission {
	return generic.LeaveSubmission{
		LeaveType: timeoff.LeaveAnnual,
		StartDate: start,
		EndDate:   end,
		Reason:    "family trip",
	}
}

func submit(t *testing.T, e *generic.Engine, employee generic.EmployeeID, sub generic.Submission) generic.Request {
	t.Helper()
	req, err := e.Submit(context.Background(), employee, sub)
	require.NoError(t, err)
	return req
}

func approve(approver generic.EmployeeID) generic.ApprovalAction {
	return generic.ApprovalAction{Action: generic.ActionApprove, ApproverID: approver}
}

func reject(approver generic.EmployeeID, reason string) generic.ApprovalAction {
	return generic.ApprovalAction{Action: generic.ActionReject, ApproverID: approver, Reason: reason}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_LeaveComputesInclusiveDays(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// WHEN: Submitting 2024-04-15 to 2024-04-17
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	// THEN: Three days, pending, audited
	leave, ok := req.(generic.LeaveApplication)
	require.True(t, ok)
	assert.Equal(t, 3, leave.Days)
	assert.Equal(t, generic.StatusPending, leave.Status)
	assert.NotEmpty(t, leave.ID)
	assert.False(t, leave.SubmittedAt.IsZero())
	assert.Nil(t, leave.ApprovedBy)

	entries, err := e.Audit(ctx, generic.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, generic.AuditSubmit, entries[0].Action)
	assert.Equal(t, generic.OutcomeSuccess, entries[0].Outcome)
	assert.Equal(t, generic.EmployeeID("hr-1"), entries[0].ActorID)
	assert.Equal(t, "HR", entries[0].Department)
	assert.Equal(t, leave.ID, entries[0].EntityID)
}

func TestSubmit_ValidationListsEveryField(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Submit(ctx, "hr-1", generic.LeaveSubmission{
		LeaveType: "sabbatical",
		StartDate: "2024-04-17",
		EndDate:   "2024-04-15",
	})

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, generic.ErrValidation)
	fields := verr.ToMap()
	assert.Contains(t, fields, "leaveType")
	assert.Contains(t, fields, "endDate")
	assert.Contains(t, fields, "reason")

	reqs, err := e.ListForEmployee(ctx, generic.KindLeave, "hr-1")
	require.NoError(t, err)
	assert.Empty(t, reqs, "invalid submissions are not stored")

	entries, err := e.Audit(ctx, generic.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmit_UnknownEmployee(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Submit(context.Background(), "ghost", annualLeave("2024-04-15", "2024-04-15"))

	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)
	assert.Equal(t, generic.KindNotFound, generic.KindOf(err))
}

func TestSubmit_ReimbursementCurrency(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	t.Run("default currency applied", func(t *testing.T) {
		req := submit(t, e, "eng-1", generic.ReimbursementSubmission{
			Type: "travel", Amount: decimal.RequireFromString("42.50"), Description: "taxi",
		})
		r := req.(generic.Reimbursement)
		assert.Equal(t, generic.DefaultCurrency, r.Amount.Currency)
		assert.Equal(t, "42.50 USD", r.Amount.String())
	})

	t.Run("scale beyond minor units", func(t *testing.T) {
		_, err := e.Submit(ctx, "eng-1", generic.ReimbursementSubmission{
			Type: "meal", Amount: decimal.RequireFromString("1200.5"), Currency: "jpy", Description: "dinner",
		})
		var verr *generic.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.ToMap(), "amount")
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := e.Submit(ctx, "eng-1", generic.ReimbursementSubmission{
			Type: "meal", Amount: decimal.Zero, Description: "dinner",
		})
		assert.ErrorIs(t, err, generic.ErrValidation)
	})
}

// =============================================================================
// LIST PENDING - Scoping
// =============================================================================

func TestListPending_ScopedToDepartment(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// GIVEN: Requests from both departments and one from the HR lead
	hrReimb := submit(t, e, "hr-2", generic.ReimbursementSubmission{
		Type: "training", Amount: decimal.NewFromInt(100), Description: "course",
	})
	hrLeave := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))
	submit(t, e, "eng-1", annualLeave("2024-05-01", "2024-05-02"))
	submit(t, e, "hr-lead", annualLeave("2024-06-01", "2024-06-01"))

	// WHEN: The HR lead lists pending
	pending, err := e.ListPending(ctx, "hr-lead")
	require.NoError(t, err)

	// THEN: Only HR reports, leave first
	require.Len(t, pending, 2)
	assert.Equal(t, hrLeave.State().ID, pending[0].State().ID)
	assert.Equal(t, hrReimb.State().ID, pending[1].State().ID)
	for _, r := range pending {
		assert.NotEqual(t, generic.EmployeeID("eng-1"), r.State().EmployeeID)
		assert.NotEqual(t, generic.EmployeeID("hr-lead"), r.State().EmployeeID)
	}

	engPending, err := e.ListPending(ctx, "eng-lead")
	require.NoError(t, err)
	require.Len(t, engPending, 1)
	assert.Equal(t, generic.EmployeeID("eng-1"), engPending[0].State().EmployeeID)
}

func TestListPending_ExcludesProcessed(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-15"))
	_, err := e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))
	require.NoError(t, err)

	pending, err := e.ListPending(ctx, "hr-lead")
	require.NoError(t, err)
	assert.NotNil(t, pending)
	assert.Empty(t, pending)
}

func TestListPending_UnknownApprover(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.ListPending(context.Background(), "ghost")

	assert.ErrorIs(t, err, generic.ErrApproverNotFound)
}

// =============================================================================
// PROCESS - Approve
// =============================================================================

func TestProcess_ApproveDeductsLedger(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// GIVEN: A 3-day annual leave and an untouched 21/12/7 balance
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	// WHEN: The HR lead approves it
	updated, err := e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))
	require.NoError(t, err)

	// THEN: Status and ledger move together
	state := updated.State()
	assert.Equal(t, generic.StatusApproved, state.Status)
	require.NotNil(t, state.ApprovedBy)
	assert.Equal(t, generic.EmployeeID("hr-lead"), *state.ApprovedBy)
	assert.NotNil(t, state.ApprovedAt)
	assert.Nil(t, state.RejectedReason)

	b, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 18, b.Annual)
	assert.Equal(t, 12, b.Sick)
	assert.Equal(t, 7, b.Casual)
	assert.Equal(t, 3, b.TotalUsed)
	assert.Equal(t, 37, b.TotalRemaining)
	assert.NoError(t, b.CheckInvariants())

	stored, err := e.Get(ctx, generic.KindLeave, req.State().ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, stored.State().Status)

	approvals, err := e.Audit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditApprove}})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, generic.EmployeeID("hr-lead"), approvals[0].ActorID)
}

func TestProcess_ReimbursementApprovalLeavesLedgerAlone(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	req := submit(t, e, "eng-1", generic.ReimbursementSubmission{
		Type: "travel", Amount: decimal.RequireFromString("99.99"), Currency: "EUR", Description: "hotel",
	})

	updated, err := e.Process(ctx, generic.KindReimbursement, req.State().ID, approve("eng-lead"))
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, updated.State().Status)

	b, err := e.Balance(ctx, "eng-1")
	require.NoError(t, err)
	assert.Equal(t, 40, b.TotalRemaining)
}

func TestProcess_LeaveTypeCategories(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	emergency := submit(t, e, "hr-1", generic.LeaveSubmission{
		LeaveType: timeoff.LeaveEmergency, StartDate: "2024-04-15", EndDate: "2024-04-16", Reason: "family",
	})
	maternity := submit(t, e, "hr-2", generic.LeaveSubmission{
		LeaveType: timeoff.LeaveMaternity, StartDate: "2024-04-01", EndDate: "2024-07-31", Reason: "birth",
	})

	_, err := e.Process(ctx, generic.KindLeave, emergency.State().ID, approve("hr-lead"))
	require.NoError(t, err)
	_, err = e.Process(ctx, generic.KindLeave, maternity.State().ID, approve("hr-lead"))
	require.NoError(t, err)

	b1, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 5, b1.Casual, "emergency leave draws on casual")
	assert.Equal(t, 2, b1.TotalUsed)

	b2, err := e.Balance(ctx, "hr-2")
	require.NoError(t, err)
	assert.Equal(t, 0, b2.TotalUsed, "maternity leave is outside the ledger")
}

// =============================================================================
// PROCESS - Reject
// =============================================================================

func TestProcess_RejectRequiresReason(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	// WHEN: Rejecting without a reason
	_, err := e.Process(ctx, generic.KindLeave, req.State().ID, reject("hr-lead", "  "))

	// THEN: Validation fails and nothing changes
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.ToMap(), "reason")

	stored, err := e.Get(ctx, generic.KindLeave, req.State().ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, stored.State().Status)

	// WHEN: Rejecting with a reason
	updated, err := e.Process(ctx, generic.KindLeave, req.State().ID, reject("hr-lead", "peak season"))
	require.NoError(t, err)

	// THEN: Rejected with reason, ledger untouched
	assert.Equal(t, generic.StatusRejected, updated.State().Status)
	require.NotNil(t, updated.State().RejectedReason)
	assert.Equal(t, "peak season", *updated.State().RejectedReason)

	b, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 40, b.TotalRemaining)
}

func TestProcess_UnknownAction(t *testing.T) {
	e, _ := newTestEngine(t)
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-15"))

	_, err := e.Process(context.Background(), generic.KindLeave, req.State().ID,
		generic.ApprovalAction{Action: "escalate", ApproverID: "hr-lead"})

	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// PROCESS - Failure ordering
// =============================================================================

func TestProcess_NotFound(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Process(context.Background(), generic.KindLeave, "missing", approve("hr-lead"))

	assert.ErrorIs(t, err, generic.ErrRequestNotFound)
}

func TestProcess_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	_, err := e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))
	require.NoError(t, err)

	// WHEN: Approving and rejecting again
	_, err = e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))
	var ape *generic.AlreadyProcessedError
	require.ErrorAs(t, err, &ape)
	assert.Equal(t, generic.StatusApproved, ape.Status)

	_, err = e.Process(ctx, generic.KindLeave, req.State().ID, reject("hr-lead", "changed my mind"))
	assert.ErrorIs(t, err, generic.ErrAlreadyProcessed)

	// THEN: One deduction, two denied audit entries
	b, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 3, b.TotalUsed)

	entityID := req.State().ID
	entries, err := e.Audit(ctx, generic.AuditFilter{EntityID: &entityID})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, generic.OutcomeSuccess, entries[1].Outcome)
	assert.Equal(t, generic.OutcomeDenied, entries[2].Outcome)
	assert.Equal(t, string(generic.KindAlreadyProcessed), entries[2].Detail)
	assert.Equal(t, generic.AuditReject, entries[3].Action)
}

func TestProcess_RejectedStaysRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	// GIVEN: A rejected request
	_, err := e.Process(ctx, generic.KindLeave, req.State().ID, reject("hr-lead", "peak season"))
	require.NoError(t, err)

	// WHEN: Approving it afterwards
	_, err = e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))

	// THEN: Already processed, nothing deducted
	var ape *generic.AlreadyProcessedError
	require.ErrorAs(t, err, &ape)
	assert.Equal(t, generic.StatusRejected, ape.Status)

	stored, err := e.Get(ctx, generic.KindLeave, req.State().ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusRejected, stored.State().Status)
	require.NotNil(t, stored.State().RejectedReason)
	assert.Equal(t, "peak season", *stored.State().RejectedReason)

	b, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 21, b.Annual)
	assert.Equal(t, 0, b.TotalUsed)
}

func TestProcess_AlreadyProcessedBeatsUnknownApprover(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-15"))
	_, err := e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))
	require.NoError(t, err)

	_, err = e.Process(ctx, generic.KindLeave, req.State().ID, approve("ghost"))

	assert.ErrorIs(t, err, generic.ErrAlreadyProcessed)
}

func TestProcess_UnknownApprover(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	_, err := e.Process(ctx, generic.KindLeave, req.State().ID, approve("ghost"))
	assert.ErrorIs(t, err, generic.ErrApproverNotFound)

	_, err = e.Process(ctx, generic.KindLeave, req.State().ID, approve(""))
	assert.ErrorIs(t, err, generic.ErrApproverNotFound)

	stored, err := e.Get(ctx, generic.KindLeave, req.State().ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, stored.State().Status)

	b, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 0, b.TotalUsed)
}

func TestProcess_OutOfScope(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	// WHEN: The Engineering lead tries to approve an HR request
	_, err := e.Process(ctx, generic.KindLeave, req.State().ID, approve("eng-lead"))

	// THEN: Forbidden, still pending, denied entry recorded
	assert.ErrorIs(t, err, generic.ErrOutOfScope)
	assert.Equal(t, generic.KindOutOfScope, generic.KindOf(err))

	stored, err := e.Get(ctx, generic.KindLeave, req.State().ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, stored.State().Status)

	actor := generic.EmployeeID("eng-lead")
	entries, err := e.Audit(ctx, generic.AuditFilter{ActorID: &actor})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, generic.OutcomeDenied, entries[0].Outcome)
	assert.Equal(t, "Engineering", entries[0].Department)
}

func TestProcess_SelfApprovalOutOfScope(t *testing.T) {
	e, _ := newTestEngine(t)
	req := submit(t, e, "hr-lead", annualLeave("2024-04-15", "2024-04-15"))

	_, err := e.Process(context.Background(), generic.KindLeave, req.State().ID, approve("hr-lead"))

	assert.ErrorIs(t, err, generic.ErrOutOfScope)
}

func TestProcess_InsufficientBalanceAbortsEverything(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// GIVEN: An 8-day casual leave against a 7-day casual bucket
	req := submit(t, e, "hr-1", generic.LeaveSubmission{
		LeaveType: timeoff.LeaveCasual, StartDate: "2024-04-01", EndDate: "2024-04-08", Reason: "move",
	})
	before, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)

	// WHEN: Approving
	_, err = e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))

	// THEN: Conflict; status, balance and success audit all unchanged
	var ibe *generic.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, generic.CategoryCasual, ibe.Category)
	assert.Equal(t, 7, ibe.Available)
	assert.Equal(t, 8, ibe.Requested)

	stored, err := e.Get(ctx, generic.KindLeave, req.State().ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, stored.State().Status)

	after, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	approvals, err := e.Audit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditApprove}})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, generic.OutcomeDenied, approvals[0].Outcome)
	assert.Equal(t, string(generic.KindInsufficientBalance), approvals[0].Detail)
}

// =============================================================================
// PROCESS - Atomicity and concurrency
// =============================================================================

// failingAuditStore fails every Append made inside a transaction.
type failingAuditStore struct {
	*store.Memory
}

type failingAuditTx struct {
	generic.Store
}

func (failingAuditTx) Append(context.Context, generic.AuditEntry) (generic.AuditEntry, error) {
	return generic.AuditEntry{}, errors.New("disk full")
}

func (s failingAuditStore) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	return s.Memory.WithTx(ctx, func(tx generic.Store) error {
		return fn(failingAuditTx{Store: tx})
	})
}

func TestProcess_AuditFailureRollsBack(t *testing.T) {
	dir, err := store.NewDirectory(testEmployees()...)
	require.NoError(t, err)
	mem := store.NewMemory()
	ctx := context.Background()

	healthy := generic.NewEngine(mem, dir)
	healthy.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	req := submit(t, healthy, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	broken := generic.NewEngine(failingAuditStore{Memory: mem}, dir)
	broken.Logger = healthy.Logger

	// WHEN: The audit append fails after the deduction and update
	_, err = broken.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))

	// THEN: Internal fault and every write rolled back
	assert.ErrorIs(t, err, generic.ErrInternal)
	assert.Equal(t, generic.KindInternal, generic.KindOf(err))

	stored, err := healthy.Get(ctx, generic.KindLeave, req.State().ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, stored.State().Status)

	b, err := healthy.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 21, b.Annual)
	assert.Equal(t, 0, b.TotalUsed)
}

func TestProcess_ConcurrentApprovalsExactlyOneWins(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-17"))

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, generic.ErrAlreadyProcessed):
				conflicts++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	b, err := e.Balance(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 3, b.TotalUsed, "deducted exactly once")
}

func TestLedger_Conservation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	subs := []generic.LeaveSubmission{
		annualLeave("2024-01-08", "2024-01-12"),
		{LeaveType: timeoff.LeaveSick, StartDate: "2024-02-01", EndDate: "2024-02-02", Reason: "flu"},
		{LeaveType: timeoff.LeaveCasual, StartDate: "2024-03-04", EndDate: "2024-03-04", Reason: "errand"},
		annualLeave("2024-08-05", "2024-08-16"),
	}
	approvedDays := 0
	for _, s := range subs {
		req := submit(t, e, "hr-2", s)
		_, err := e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))
		require.NoError(t, err)
		approvedDays += req.(generic.LeaveApplication).Days
	}

	b, err := e.Balance(ctx, "hr-2")
	require.NoError(t, err)
	assert.NoError(t, b.CheckInvariants())
	assert.Equal(t, approvedDays, b.TotalUsed)
	assert.Equal(t, b.TotalAllocated, b.TotalUsed+b.TotalRemaining)
	assert.Equal(t, 21-5-12, b.Annual)
}

// =============================================================================
// SINKS
// =============================================================================

func TestSinks_ReceiveCommittedEntries(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var got []generic.AuditEntry
	e.Sinks = append(e.Sinks, generic.AuditSinkFunc(func(_ context.Context, entry generic.AuditEntry) {
		got = append(got, entry)
	}))

	req := submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-15"))
	_, err := e.Process(ctx, generic.KindLeave, req.State().ID, reject("eng-lead", "no"))
	require.Error(t, err)
	_, err = e.Process(ctx, generic.KindLeave, req.State().ID, reject("hr-lead", "overlap"))
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, generic.AuditSubmit, got[0].Action)
	assert.Equal(t, generic.OutcomeDenied, got[1].Outcome)
	assert.Equal(t, generic.AuditReject, got[2].Action)
	assert.Equal(t, generic.OutcomeSuccess, got[2].Outcome)
	assert.Less(t, got[0].Sequence, got[2].Sequence)
}

func TestSinks_PanicIsLoggedAndSkipped(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var logs bytes.Buffer
	e.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	var got []generic.AuditEntry
	e.Sinks = []generic.AuditSink{
		generic.AuditSinkFunc(func(context.Context, generic.AuditEntry) { panic("webhook down") }),
		generic.AuditSinkFunc(func(_ context.Context, entry generic.AuditEntry) { got = append(got, entry) }),
	}

	// WHEN: Submitting and approving with a broken sink first in line
	var req generic.Request
	require.NotPanics(t, func() {
		req = submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-15"))
	})
	var processErr error
	require.NotPanics(t, func() {
		_, processErr = e.Process(ctx, generic.KindLeave, req.State().ID, approve("hr-lead"))
	})

	// THEN: Both calls commit, the next sink still runs, the failure is logged
	require.NoError(t, processErr)
	require.Len(t, got, 2)
	assert.Equal(t, generic.AuditApprove, got[1].Action)
	assert.Contains(t, logs.String(), "audit sink failed")
	assert.Contains(t, logs.String(), "webhook down")

	stored, err := e.Get(ctx, generic.KindLeave, req.State().ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, stored.State().Status)
}

func TestProcess_TimestampsFollowSequence(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	e.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }

	const n = 8
	ids := make([]generic.RequestID, n)
	for i := range ids {
		ids[i] = submit(t, e, "hr-1", generic.LeaveSubmission{
			LeaveType: timeoff.LeaveSick, StartDate: "2024-05-01", EndDate: "2024-05-01", Reason: "checkup",
		}).State().ID
	}

	// WHEN: Approving every request concurrently
	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id generic.RequestID) {
			defer wg.Done()
			<-start
			_, err := e.Process(ctx, generic.KindLeave, id, approve("hr-lead"))
			assert.NoError(t, err)
		}(id)
	}
	close(start)
	wg.Wait()

	// THEN: Timestamps increase with the audit sequence and match approvedDate
	entries, err := e.Audit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditApprove}})
	require.NoError(t, err)
	require.Len(t, entries, n)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].Timestamp.After(entries[i-1].Timestamp),
			"seq %d at %s not after seq %d at %s",
			entries[i].Sequence, entries[i].Timestamp, entries[i-1].Sequence, entries[i-1].Timestamp)
	}
	for _, entry := range entries {
		stored, err := e.Get(ctx, generic.KindLeave, entry.EntityID)
		require.NoError(t, err)
		require.NotNil(t, stored.State().ApprovedAt)
		assert.True(t, entry.Timestamp.Equal(*stored.State().ApprovedAt))
	}
}

// =============================================================================
// READS
// =============================================================================

func TestBalance_UnknownEmployee(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Balance(context.Background(), "ghost")

	assert.ErrorIs(t, err, generic.ErrEmployeeNotFound)
}

func TestBalance_LazyDefault(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Balance(ctx, "eng-1")
	require.NoError(t, err)
	second, err := e.Balance(ctx, "eng-1")
	require.NoError(t, err)

	assert.Equal(t, 40, first.TotalAllocated)
	assert.Equal(t, first, second)
}

func TestGet_InvalidKind(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Get(context.Background(), "overtime", "x")

	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestAudit_FilterByDepartment(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	submit(t, e, "hr-1", annualLeave("2024-04-15", "2024-04-15"))
	submit(t, e, "eng-1", annualLeave("2024-04-15", "2024-04-15"))

	entries, err := e.Audit(ctx, generic.AuditFilter{Department: ptr("Engineering")})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, generic.EmployeeID("eng-1"), entries[0].ActorID)
}
