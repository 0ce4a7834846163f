// Package orchestrator sequences the phases of a free-energy run: end-state
// equilibration, decorrelation, distributed annealing, and estimation. It
// owns the shared thermodynamic state and the work ledger; every task gets
// a private copy of what it needs, so in-flight batches never observe each
// other's mutations.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/equilibration"
	"github.com/aretw0/anneal/pkg/ports"
)

// FailurePolicy decides what happens to a batch when a gathered task
// outcome is a failure.
type FailurePolicy int

const (
	// DropFailures logs the failure with full context and continues with
	// the remaining particles. The estimate is tagged with the reduced
	// sample count.
	DropFailures FailurePolicy = iota

	// RetryOnce resubmits the failing task a single time, then drops it.
	RetryOnce

	// AbortOnFailure stops the whole batch on the first failure.
	AbortOnFailure
)

// DefaultMinimizeIterations bounds local energy minimization of the
// end-state configurations.
const DefaultMinimizeIterations = 100

// Orchestrator is the top-level engine. Construct with New, seed the
// end-state configurations, then call Equilibrate, RunAIS and
// ComputeFreeEnergy in order.
//
// Dispatch methods must not be called concurrently with each other; the
// internal lock only protects aggregate state so Status stays safe to
// call from a serving goroutine at any time.
type Orchestrator struct {
	system    ports.System
	store     ports.TrajectoryStore
	estimator ports.Estimator
	exec      ports.Executor

	schedule   *domain.Schedule
	thermo     domain.ThermodynamicState
	integrator ports.IntegratorSpec

	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	policy       FailurePolicy
	prefix       string
	atomSubset   []int
	maxChunk     int
	saveInterval int
	minimizeIter int
	rng          *rand.Rand

	mu            sync.Mutex
	phase         domain.RunPhase
	samplers      map[domain.Endstate]*domain.SamplerState
	potentials    map[domain.Endstate][]float64
	files         map[domain.Endstate][]domain.FileRecord
	nextFileIndex map[domain.Endstate]int
	decorrelated  map[domain.Endstate]*equilibration.Decorrelated
	ledger        *domain.WorkLedger
	failures      map[domain.Direction]int
	totalJobs     int
	estimates     map[domain.Direction]ports.Estimate
	bidirectional *ports.Estimate
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the run logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithHooks merges lifecycle hooks into the run.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(o *Orchestrator) { o.hooks = o.hooks.Merge(h) }
}

// WithFailurePolicy sets how gathered task failures are handled.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithTrajectoryPrefix sets the base name trajectory files derive from.
func WithTrajectoryPrefix(prefix string) Option {
	return func(o *Orchestrator) { o.prefix = prefix }
}

// WithIntegrator overrides the default integrator parameters.
func WithIntegrator(spec ports.IntegratorSpec) Option {
	return func(o *Orchestrator) { o.integrator = spec }
}

// WithAtomSubset restricts stored trajectory frames to these atom indices.
func WithAtomSubset(subset []int) Option {
	return func(o *Orchestrator) { o.atomSubset = subset }
}

// WithMaxChunkBytes sets the trajectory chunk flush threshold.
func WithMaxChunkBytes(n int) Option {
	return func(o *Orchestrator) { o.maxChunk = n }
}

// WithSaveInterval stores every Kth annealing schedule step into the
// protocol trajectory. Zero disables protocol trajectories.
func WithSaveInterval(k int) Option {
	return func(o *Orchestrator) { o.saveInterval = k }
}

// WithSeed fixes the snapshot-draw random source for reproducible runs.
func WithSeed(seed int64) Option {
	return func(o *Orchestrator) { o.rng = rand.New(rand.NewSource(seed)) }
}

// New builds an orchestrator around its four collaborators. The
// thermodynamic state starts at progress 0.
func New(
	system ports.System,
	store ports.TrajectoryStore,
	estimator ports.Estimator,
	exec ports.Executor,
	schedule *domain.Schedule,
	temperature float64,
	opts ...Option,
) (*Orchestrator, error) {
	if schedule == nil {
		return nil, &domain.ConfigurationError{Field: "schedule", Reason: "a lambda schedule is required"}
	}
	if temperature <= 0 {
		return nil, &domain.ConfigurationError{
			Field:  "temperature",
			Reason: fmt.Sprintf("%g K is not a positive temperature", temperature),
		}
	}
	o := &Orchestrator{
		system:    system,
		store:     store,
		estimator: estimator,
		exec:      exec,
		schedule:  schedule,
		thermo: domain.ThermodynamicState{
			Temperature: temperature,
			Params:      schedule.Eval(0),
		},
		integrator: ports.IntegratorSpec{
			TimestepFS:    2.0,
			CollisionRate: 1.0,
			Splitting:     "V R O R V",
		},
		logger:        slog.Default(),
		prefix:        "run",
		maxChunk:      equilibration.DefaultMaxChunkBytes,
		minimizeIter:  DefaultMinimizeIterations,
		rng:           rand.New(rand.NewSource(1)),
		phase:         domain.RunIdle,
		samplers:      make(map[domain.Endstate]*domain.SamplerState),
		potentials:    make(map[domain.Endstate][]float64),
		files:         make(map[domain.Endstate][]domain.FileRecord),
		nextFileIndex: make(map[domain.Endstate]int),
		decorrelated:  make(map[domain.Endstate]*equilibration.Decorrelated),
		ledger:        domain.NewWorkLedger(),
		failures:      make(map[domain.Direction]int),
		estimates:     make(map[domain.Direction]ports.Estimate),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.integrator.MeasureShadowWork {
		return nil, &domain.ConfigurationError{
			Field:  "measure_shadow_work",
			Reason: "shadow-work measurement is not supported by the switching integrator",
		}
	}
	return o, nil
}

// SetEndstateSampler seeds the configuration for one end-state. Both
// end-states must be seeded before equilibration.
func (o *Orchestrator) SetEndstateSampler(e domain.Endstate, s *domain.SamplerState) error {
	if err := e.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samplers[e] = s.Clone()
	return nil
}

// MinimizeEndstates applies local energy minimization to every seeded
// end-state configuration, in place. Called before any sampling begins.
func (o *Orchestrator) MinimizeEndstates(ctx context.Context) error {
	for _, e := range []domain.Endstate{0, 1} {
		o.mu.Lock()
		start := o.samplers[e].Clone()
		o.mu.Unlock()
		if start == nil {
			continue
		}

		state := o.thermo.Clone()
		state.ApplyProgress(o.schedule, e.Progress())
		cctx, err := o.system.NewContext(state, o.integrator)
		if err != nil {
			return fmt.Errorf("minimizing end-state %d: %w", e, err)
		}
		err = func() error {
			defer cctx.Release()
			if err := cctx.SetState(start); err != nil {
				return err
			}
			if err := cctx.Minimize(o.minimizeIter); err != nil {
				return err
			}
			minimized, err := cctx.State()
			if err != nil {
				return err
			}
			o.mu.Lock()
			o.samplers[e] = minimized
			o.mu.Unlock()
			return nil
		}()
		if err != nil {
			return fmt.Errorf("minimizing end-state %d: %w", e, err)
		}
		o.logger.Debug("end-state minimized", "endstate", int(e))
	}
	return nil
}

// Ledger exposes the collected work for estimation and reporting. The
// caller must not mutate the returned ledger during a dispatch phase.
func (o *Orchestrator) Ledger() *domain.WorkLedger { return o.ledger }

// Checkpoint captures the work ledger for external persistence.
func (o *Orchestrator) Checkpoint() domain.LedgerSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ledger.Snapshot()
}

// RestoreCheckpoint replaces the work ledger with a previously captured
// snapshot, resuming an interrupted run.
func (o *Orchestrator) RestoreCheckpoint(s domain.LedgerSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ledger.Restore(s)
}

// Status reports a snapshot of run progress. Safe to call concurrently
// with a dispatch phase.
func (o *Orchestrator) Status() domain.RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := domain.RunStatus{
		Phase:       o.phase,
		Schedule:    o.schedule.Kind(),
		Temperature: o.thermo.Temperature,
		Equilibrium: make(map[string]int),
		Directions:  make(map[domain.Direction]*domain.DirectionStatus),
	}
	for e, series := range o.potentials {
		status.Equilibrium[strconv.Itoa(int(e))] = len(series)
	}
	for _, d := range []domain.Direction{domain.DirectionForward, domain.DirectionReverse} {
		count := o.ledger.Count(d)
		if count == 0 && o.failures[d] == 0 {
			continue
		}
		ds := &domain.DirectionStatus{Particles: count, Failures: o.failures[d]}
		if est, ok := o.estimates[d]; ok {
			value, uncertainty := est.Value, est.Uncertainty
			ds.Estimate, ds.Uncertainty = &value, &uncertainty
		}
		status.Directions[d] = ds
	}
	if o.bidirectional != nil {
		value, uncertainty := o.bidirectional.Value, o.bidirectional.Uncertainty
		status.Bidirectional = &domain.DirectionStatus{
			Particles:   o.ledger.Count(domain.DirectionForward) + o.ledger.Count(domain.DirectionReverse),
			Estimate:    &value,
			Uncertainty: &uncertainty,
		}
	}
	return status
}

func (o *Orchestrator) setPhase(p domain.RunPhase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}
