package anneal

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/anneal/pkg/adapters/memory"
	"github.com/aretw0/anneal/pkg/adapters/stats"
	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/executor"
	"github.com/aretw0/anneal/pkg/orchestrator"
	"github.com/aretw0/anneal/pkg/ports"
)

// Engine is the high-level entry point for the anneal library. It wraps
// the orchestrator and provides a simplified API for consumers that do
// not need to assemble the collaborators themselves.
type Engine struct {
	orch      *orchestrator.Orchestrator
	system    ports.System
	store     ports.TrajectoryStore
	estimator ports.Estimator
	exec      ports.Executor
	ownedExec bool
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	orchOpts  []orchestrator.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithExecutor injects a custom executor, bypassing the default worker
// pool. The caller keeps ownership and must close it.
func WithExecutor(exec ports.Executor) Option {
	return func(e *Engine) {
		e.exec = exec
	}
}

// WithTrajectoryStore injects a custom trajectory store (default:
// in-memory).
func WithTrajectoryStore(store ports.TrajectoryStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithEstimator injects a custom statistical estimator.
func WithEstimator(est ports.Estimator) Option {
	return func(e *Engine) {
		e.estimator = est
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithOrchestratorOptions forwards options to the underlying
// orchestrator (failure policy, trajectory prefix, seed, ...).
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(e *Engine) {
		e.orchOpts = append(e.orchOpts, opts...)
	}
}

// New initializes an Engine around a physics system and a lambda
// schedule. By default it runs on an in-process worker pool sized to 2,
// stores trajectories in memory and estimates with the bundled
// statistical routines.
func New(system ports.System, schedule *domain.Schedule, temperature float64, opts ...Option) (*Engine, error) {
	eng := &Engine{system: system}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.estimator == nil {
		eng.estimator = stats.New()
	}
	if eng.exec == nil {
		eng.exec = executor.NewPool(2, executor.WithLogger(eng.logger))
		eng.ownedExec = true
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(eng.logger),
		orchestrator.WithHooks(eng.hooks),
	}
	orchOpts = append(orchOpts, eng.orchOpts...)

	orch, err := orchestrator.New(eng.system, eng.store, eng.estimator, eng.exec, schedule, temperature, orchOpts...)
	if err != nil {
		return nil, err
	}
	eng.orch = orch
	return eng, nil
}

// SetEndstateSampler seeds the configuration for one end-state.
func (e *Engine) SetEndstateSampler(endstate domain.Endstate, state *domain.SamplerState) error {
	return e.orch.SetEndstateSampler(endstate, state)
}

// MinimizeEndstates locally minimizes the seeded end-state
// configurations in place.
func (e *Engine) MinimizeEndstates(ctx context.Context) error {
	return e.orch.MinimizeEndstates(ctx)
}

// Equilibrate runs one equilibrium sampling batch.
func (e *Engine) Equilibrate(ctx context.Context, req orchestrator.EquilibrateRequest) error {
	return e.orch.Equilibrate(ctx, req)
}

// RunAIS runs one annealed-importance-sampling batch.
func (e *Engine) RunAIS(ctx context.Context, req orchestrator.AISRequest) error {
	return e.orch.RunAIS(ctx, req)
}

// ComputeFreeEnergy derives the free-energy estimates from the work
// collected so far.
func (e *Engine) ComputeFreeEnergy() (orchestrator.FreeEnergySummary, error) {
	return e.orch.ComputeFreeEnergy()
}

// Status reports a snapshot of run progress.
func (e *Engine) Status() domain.RunStatus {
	return e.orch.Status()
}

// Checkpoint captures the work ledger for external persistence.
func (e *Engine) Checkpoint() domain.LedgerSnapshot {
	return e.orch.Checkpoint()
}

// RestoreCheckpoint resumes an interrupted run from a ledger snapshot.
func (e *Engine) RestoreCheckpoint(s domain.LedgerSnapshot) {
	e.orch.RestoreCheckpoint(s)
}

// Orchestrator exposes the underlying orchestrator for advanced use.
func (e *Engine) Orchestrator() *orchestrator.Orchestrator {
	return e.orch
}

// Close releases the executor if the engine owns it.
func (e *Engine) Close() error {
	if e.ownedExec {
		return e.exec.Close()
	}
	return nil
}
