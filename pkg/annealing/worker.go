// Package annealing implements the nonequilibrium switching worker: it
// drives one particle along an ordered lambda schedule, accumulating the
// dissipated work one parameter switch at a time.
package annealing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// workerState tracks the worker's lifecycle.
type workerState int

const (
	stateUninitialized workerState = iota
	stateReady
	stateAnnealing
)

// InitConfig binds a worker to its persistent resources. The execution
// context created here is exclusively owned by the worker for its whole
// life; repeated Anneal calls reuse it.
type InitConfig struct {
	// Template is the thermodynamic state the worker's context is built
	// from. Its parameter set is overwritten at the start of every anneal.
	Template domain.ThermodynamicState

	// Schedule maps progress values to alchemical parameters.
	Schedule *domain.Schedule

	// Integrator carries the nonequilibrium dynamics parameters.
	Integrator ports.IntegratorSpec

	// SaveInterval stores every Kth schedule step into the protocol
	// trajectory. Zero disables configuration saving; tasks that name a
	// trajectory then fail.
	SaveInterval int

	// AtomSubset restricts saved frames. Nil keeps all atoms.
	AtomSubset []int
}

// Worker runs nonequilibrium switching trajectories. It is a stateful
// actor: one execution context, created at Initialize and released at
// Close, mutated only through the worker's own methods.
//
// Lifecycle: Uninitialized -> Ready (Initialize) -> Annealing (inside one
// Anneal call) -> Ready.
type Worker struct {
	system ports.System
	store  ports.TrajectoryStore
	logger *slog.Logger

	state  workerState
	cfg    InitConfig
	exe    ports.Context
	beta   float64
	buffer []domain.Frame
}

// Option configures a worker.
type Option func(*Worker)

// WithLogger sets the worker logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// NewWorker creates an uninitialized worker bound to a physics engine and
// a trajectory store.
func NewWorker(system ports.System, store ports.TrajectoryStore, opts ...Option) *Worker {
	w := &Worker{
		system: system,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Initialize acquires the worker's execution context and moves it to
// Ready. Calling Initialize on a Ready worker is a ConsistencyError.
func (w *Worker) Initialize(cfg InitConfig) error {
	if w.state != stateUninitialized {
		return &domain.ConsistencyError{Op: "worker initialize", Detail: "worker already initialized"}
	}
	if cfg.Schedule == nil {
		return &domain.ConfigurationError{Field: "schedule", Reason: "a lambda schedule is required"}
	}
	if cfg.Integrator.MeasureShadowWork {
		return &domain.ConfigurationError{
			Field:  "measure_shadow_work",
			Reason: "per-step shadow-work measurement is not supported by the switching integrator",
		}
	}
	exe, err := w.system.NewContext(cfg.Template, cfg.Integrator)
	if err != nil {
		return fmt.Errorf("annealing: acquiring context: %w", err)
	}
	w.cfg = cfg
	w.exe = exe
	w.beta = cfg.Template.Beta()
	w.state = stateReady
	return nil
}

// Close releases the execution context and returns the worker to
// Uninitialized.
func (w *Worker) Close() {
	if w.exe != nil {
		w.exe.Release()
		w.exe = nil
	}
	w.state = stateUninitialized
}

// Anneal runs one switching trajectory across task.Lambdas, returning per
// schedule step the work incurred by the parameter switch. Failures inside
// the loop come back as failure outcomes, never as panics, so one bad
// particle cannot take down a batch.
func (w *Worker) Anneal(ctx context.Context, task domain.AnnealingTask) domain.TaskOutcome {
	fail := func(step int, err error) domain.TaskOutcome {
		w.buffer = w.buffer[:0]
		return domain.Fail(&domain.TaskFailure{
			Phase:     domain.PhaseAnnealing,
			Particle:  task.Particle,
			Direction: task.Direction,
			Step:      step,
			Err:       err,
		})
	}

	if w.state != stateReady {
		return fail(0, domain.ErrNotInitialized)
	}
	if len(task.Lambdas) < 2 {
		return fail(0, fmt.Errorf("schedule must have at least 2 values, got %d", len(task.Lambdas)))
	}
	if task.TrajectoryName != "" && w.cfg.SaveInterval <= 0 {
		return fail(0, &domain.ConfigurationError{
			Field:  "save_interval",
			Reason: "a protocol trajectory was requested but the save interval is unset",
		})
	}
	stepsPerMove := task.StepsPerMove
	if stepsPerMove <= 0 {
		stepsPerMove = 1
	}

	w.state = stateAnnealing
	defer func() { w.state = stateReady }()

	// Prime the trajectory at the first schedule value. No work is charged
	// for this step.
	if err := w.exe.ApplyParams(w.cfg.Schedule.Eval(task.Lambdas[0])); err != nil {
		return fail(0, err)
	}
	if err := w.exe.SetState(task.Start); err != nil {
		return fail(0, err)
	}
	if err := w.exe.ResampleVelocities(w.cfg.Template.Temperature); err != nil {
		return fail(0, err)
	}
	if err := w.exe.Step(stepsPerMove); err != nil {
		return fail(0, err)
	}

	result := domain.AnnealingResult{
		Particle:        task.Particle,
		Direction:       task.Direction,
		IncrementalWork: make([]float64, len(task.Lambdas)-1),
	}
	if task.ReturnTimings {
		result.Timings = make([]time.Duration, len(task.Lambdas)-1)
	}

	for k := 1; k < len(task.Lambdas); k++ {
		if err := ctx.Err(); err != nil {
			return fail(k, err)
		}
		start := time.Now()

		work, err := w.switchWork(task.Lambdas[k])
		if err != nil {
			return fail(k, err)
		}
		result.IncrementalWork[k-1] = work

		if err := w.exe.Step(stepsPerMove); err != nil {
			return fail(k, err)
		}
		if task.TrajectoryName != "" {
			if err := w.saveConfiguration(k); err != nil {
				return fail(k, err)
			}
		}
		if task.ReturnTimings {
			result.Timings[k-1] = time.Since(start)
		}
	}

	if err := w.terminate(ctx, task.TrajectoryName); err != nil {
		return fail(len(task.Lambdas), err)
	}

	if task.ReturnFinalState {
		final, err := w.exe.State()
		if err != nil {
			return fail(len(task.Lambdas), err)
		}
		result.Final = final
	}
	return domain.Succeed(result)
}

// switchWork measures the incremental work of switching the context to
// the parameters at the new progress value: the reduced-potential jump at
// fixed configuration, before any relaxation at the new parameters.
func (w *Worker) switchWork(progress float64) (float64, error) {
	oldEnergy, err := w.exe.PotentialEnergy()
	if err != nil {
		return 0, fmt.Errorf("reading pre-switch energy: %w", err)
	}
	if err := w.exe.ApplyParams(w.cfg.Schedule.Eval(progress)); err != nil {
		return 0, fmt.Errorf("applying parameters at progress %.4f: %w", progress, err)
	}
	newEnergy, err := w.exe.PotentialEnergy()
	if err != nil {
		return 0, fmt.Errorf("reading post-switch energy: %w", err)
	}
	return w.beta * (newEnergy - oldEnergy), nil
}

// saveConfiguration buffers the current configuration at every
// SaveInterval-th schedule step. Unlike the equilibrium pipeline there is
// no byte-triggered flush; the buffer drains once, at termination.
func (w *Worker) saveConfiguration(step int) error {
	if step%w.cfg.SaveInterval != 0 {
		return nil
	}
	state, err := w.exe.State()
	if err != nil {
		return fmt.Errorf("extracting configuration at step %d: %w", step, err)
	}
	w.buffer = append(w.buffer, domain.FrameOf(state, w.cfg.AtomSubset))
	return nil
}

// terminate flushes any buffered protocol trajectory and clears the
// buffer.
func (w *Worker) terminate(ctx context.Context, trajectoryName string) error {
	if trajectoryName == "" || len(w.buffer) == 0 {
		w.buffer = w.buffer[:0]
		return nil
	}
	if err := w.store.Append(ctx, trajectoryName, w.buffer); err != nil {
		return fmt.Errorf("flushing protocol trajectory %s: %w", trajectoryName, err)
	}
	w.logger.Debug("protocol trajectory flushed", "name", trajectoryName, "frames", len(w.buffer))
	w.buffer = w.buffer[:0]
	return nil
}
