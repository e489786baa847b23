package api

import (
	"context"
	"fmt"

	"github.com/warp/request-engine/generic"
	"github.com/warp/request-engine/generic/store"
	"github.com/warp/request-engine/store/sqlite"
)

// Seed is the data an engine starts from.
type Seed struct {
	// Employees replace the directory when non-nil. A nil slice keeps the
	// directory a persistent backend already holds.
	Employees []generic.Employee

	// Allocation overrides the backend default when non-nil.
	Allocation generic.AllocationPolicy

	// Fresh discards stored requests, balances and audit entries first.
	// Only scenario loads set it.
	Fresh bool
}

// EngineFactory builds an engine over seed. Scenario loads call it to
// replace the running engine.
type EngineFactory func(ctx context.Context, seed Seed) (*generic.Engine, error)

// MemoryBackend returns a factory producing an engine over a fresh
// in-memory store and directory on every call.
func MemoryBackend(allocation generic.AllocationPolicy, configure func(*generic.Engine)) EngineFactory {
	return func(_ context.Context, seed Seed) (*generic.Engine, error) {
		dir, err := store.NewDirectory(seed.Employees...)
		if err != nil {
			return nil, fmt.Errorf("build directory: %w", err)
		}
		mem := store.NewMemory()
		mem.Allocation = pickAllocation(seed.Allocation, allocation)

		engine := generic.NewEngine(mem, dir)
		if configure != nil {
			configure(engine)
		}
		return engine, nil
	}
}

// SQLiteBackend returns a factory over s. The store doubles as the
// directory. Stored data survives unless the seed is Fresh.
func SQLiteBackend(s *sqlite.Store, allocation generic.AllocationPolicy, configure func(*generic.Engine)) EngineFactory {
	return func(ctx context.Context, seed Seed) (*generic.Engine, error) {
		if seed.Fresh {
			if err := s.Reset(ctx); err != nil {
				return nil, fmt.Errorf("reset store: %w", err)
			}
		}
		if seed.Employees != nil {
			if err := s.SeedEmployees(ctx, seed.Employees); err != nil {
				return nil, fmt.Errorf("seed employees: %w", err)
			}
		}
		s.SetAllocation(pickAllocation(seed.Allocation, allocation))

		engine := generic.NewEngine(s, s)
		if configure != nil {
			configure(engine)
		}
		return engine, nil
	}
}

func pickAllocation(preferred, fallback generic.AllocationPolicy) generic.AllocationPolicy {
	if preferred != nil {
		return preferred
	}
	if fallback != nil {
		return fallback
	}
	return generic.FixedAllocation(generic.DefaultAllocation)
}

// Start installs the engine a server boots with. employees, when non-nil,
// replace the directory. Otherwise a directory already held by stored is
// reused as is, and only an empty one falls back to DefaultScenario.
// Stored requests, balances and audit entries are never discarded here.
func (h *Handler) Start(ctx context.Context, employees []generic.Employee, stored generic.Directory) error {
	if h.build == nil {
		return fmt.Errorf("no engine factory configured")
	}
	if employees == nil && stored != nil {
		existing, err := stored.Employees(ctx)
		if err != nil {
			return fmt.Errorf("read stored directory: %w", err)
		}
		if len(existing) == 0 {
			stored = nil
		}
	}
	if employees == nil && stored == nil {
		return h.LoadScenarioByID(ctx, DefaultScenario)
	}

	engine, err := h.build(ctx, Seed{Employees: employees})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.engine = engine
	h.currentScenario = ""
	h.Logger.InfoContext(ctx, "engine started", "directory_reseeded", employees != nil)
	return nil
}
