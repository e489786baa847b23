package generic

import (
	"context"
	"log/slog"
	"time"
)

// =============================================================================
// AUDIT ENTRY - Who did what, when, with which outcome
// =============================================================================

type AuditAction string

const (
	AuditSubmit  AuditAction = "submit"
	AuditApprove AuditAction = "approve"
	AuditReject  AuditAction = "reject"
)

type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeDenied  AuditOutcome = "denied"
)

// AuditEntry is never mutated or deleted once appended.
type AuditEntry struct {
	Sequence   int64
	Timestamp  time.Time
	ActorID    EmployeeID
	Department string
	EntityType Kind
	EntityID   RequestID
	Action     AuditAction
	Outcome    AuditOutcome
	Detail     string
}

// AuditFilter selects entries. Nil fields match everything.
type AuditFilter struct {
	ActorID    *EmployeeID
	Department *string
	EntityType *Kind
	EntityID   *RequestID
	Actions    []AuditAction
	Limit      int
}

// Matches applies every non-nil field of the filter except Limit.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if f.Department != nil && e.Department != *f.Department {
		return false
	}
	if f.EntityType != nil && e.EntityType != *f.EntityType {
		return false
	}
	if f.EntityID != nil && e.EntityID != *f.EntityID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func auditActionFor(a Action) AuditAction {
	if a == ActionApprove {
		return AuditApprove
	}
	return AuditReject
}

// =============================================================================
// AUDIT SINKS - Fire-and-forget fan-out after commit
// =============================================================================

// AuditSink receives committed entries. Publish must not block for long;
// the engine does not wait on or retry sinks.
type AuditSink interface {
	Publish(ctx context.Context, entry AuditEntry)
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, entry AuditEntry)

func (f AuditSinkFunc) Publish(ctx context.Context, entry AuditEntry) { f(ctx, entry) }

// LogSink writes every committed entry to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, e AuditEntry) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if e.Outcome == OutcomeDenied {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "audit",
		slog.Int64("seq", e.Sequence),
		slog.String("actor", string(e.ActorID)),
		slog.String("department", e.Department),
		slog.String("entity_type", string(e.EntityType)),
		slog.String("entity_id", string(e.EntityID)),
		slog.String("action", string(e.Action)),
		slog.String("outcome", string(e.Outcome)),
		slog.String("detail", e.Detail),
	)
}
