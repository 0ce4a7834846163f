package orchestrator_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/anneal/pkg/adapters/harmonic"
	"github.com/aretw0/anneal/pkg/adapters/memory"
	"github.com/aretw0/anneal/pkg/adapters/stats"
	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/executor"
	"github.com/aretw0/anneal/pkg/orchestrator"
	"github.com/aretw0/anneal/pkg/ports"
)

func testSchedule(t *testing.T) *domain.Schedule {
	t.Helper()
	s, err := domain.NewSchedule(domain.ScheduleDefault)
	require.NoError(t, err)
	return s
}

func newOrchestrator(t *testing.T, system ports.System, exec ports.Executor, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	t.Helper()
	opts = append([]orchestrator.Option{
		orchestrator.WithSeed(7),
		orchestrator.WithTrajectoryPrefix("run"),
	}, opts...)
	o, err := orchestrator.New(system, memory.NewStore(), stats.New(), exec, testSchedule(t), 300.0, opts...)
	require.NoError(t, err)
	return o
}

func seedEndstates(t *testing.T, o *orchestrator.Orchestrator, system *harmonic.System) {
	t.Helper()
	require.NoError(t, o.SetEndstateSampler(0, system.InitialState()))
	require.NoError(t, o.SetEndstateSampler(1, system.InitialState()))
}

func equilibrateBoth(t *testing.T, o *orchestrator.Orchestrator) {
	t.Helper()
	err := o.Equilibrate(context.Background(), orchestrator.EquilibrateRequest{
		Endstates:         []domain.Endstate{0, 1},
		Iterations:        80,
		StepsPerIteration: 2,
		Decorrelate:       true,
	})
	require.NoError(t, err)
}

func TestOrchestrator_InvalidEndstateBeforeDispatch(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())
	o := newOrchestrator(t, system, executor.NewInline())
	seedEndstates(t, o, system)

	err := o.Equilibrate(context.Background(), orchestrator.EquilibrateRequest{
		Endstates:         []domain.Endstate{2},
		Iterations:        5,
		StepsPerIteration: 2,
	})
	var consistency *domain.ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestOrchestrator_EquilibrateAppendsHistory(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())
	o := newOrchestrator(t, system, executor.NewInline())
	seedEndstates(t, o, system)

	req := orchestrator.EquilibrateRequest{
		Endstates:         []domain.Endstate{0},
		Iterations:        10,
		StepsPerIteration: 2,
	}
	require.NoError(t, o.Equilibrate(context.Background(), req))
	require.NoError(t, o.Equilibrate(context.Background(), req))

	status := o.Status()
	assert.Equal(t, 20, status.Equilibrium["0"], "second call must append, not replace")
}

func TestOrchestrator_AnnealingRequiresDecorrelation(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())
	o := newOrchestrator(t, system, executor.NewInline())
	seedEndstates(t, o, system)

	err := o.RunAIS(context.Background(), orchestrator.AISRequest{
		Particles:      2,
		ScheduleLength: 4,
		Directions:     []domain.Direction{domain.DirectionForward},
	})
	require.ErrorIs(t, err, domain.ErrNoDecorrelatedSamples)
}

func TestOrchestrator_InvalidDirection(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())
	o := newOrchestrator(t, system, executor.NewInline())
	seedEndstates(t, o, system)

	err := o.RunAIS(context.Background(), orchestrator.AISRequest{
		Particles:      2,
		ScheduleLength: 4,
		Directions:     []domain.Direction{domain.Direction("sideways")},
	})
	var consistency *domain.ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestOrchestrator_FullRun(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())
	pool := executor.NewPool(2)
	defer pool.Close()

	o := newOrchestrator(t, system, pool)
	seedEndstates(t, o, system)
	require.NoError(t, o.MinimizeEndstates(context.Background()))
	equilibrateBoth(t, o)

	const particles, scheduleLength = 4, 6
	err := o.RunAIS(context.Background(), orchestrator.AISRequest{
		Particles:      particles,
		ScheduleLength: scheduleLength,
		Directions:     []domain.Direction{domain.DirectionForward, domain.DirectionReverse},
		StepsPerMove:   1,
	})
	require.NoError(t, err)

	ledger := o.Ledger()
	for _, d := range []domain.Direction{domain.DirectionForward, domain.DirectionReverse} {
		require.Equal(t, particles, ledger.Count(d))
		matrix := ledger.CumulativeMatrix(d)
		require.Len(t, matrix, particles)
		for _, row := range matrix {
			assert.Len(t, row, scheduleLength-1)
		}
	}

	summary, err := o.ComputeFreeEnergy()
	require.NoError(t, err)
	assert.Contains(t, summary.Directions, domain.DirectionForward)
	assert.Contains(t, summary.Directions, domain.DirectionReverse)
	require.NotNil(t, summary.Bidirectional)

	status := o.Status()
	assert.Equal(t, domain.RunDone, status.Phase)
	require.Contains(t, status.Directions, domain.DirectionForward)
	assert.Equal(t, particles, status.Directions[domain.DirectionForward].Particles)
	require.NotNil(t, status.Bidirectional)
	assert.NotNil(t, status.Bidirectional.Estimate)
}

func TestOrchestrator_BackendsAgreeOnShape(t *testing.T) {
	run := func(exec ports.Executor) domain.LedgerSnapshot {
		system := harmonic.New(harmonic.DefaultConfig())
		o := newOrchestrator(t, system, exec)
		seedEndstates(t, o, system)
		equilibrateBoth(t, o)
		require.NoError(t, o.RunAIS(context.Background(), orchestrator.AISRequest{
			Particles:      3,
			ScheduleLength: 5,
			Directions:     []domain.Direction{domain.DirectionForward},
		}))
		return o.Checkpoint()
	}

	pool := executor.NewPool(3)
	defer pool.Close()

	inline := run(executor.NewInline())
	pooled := run(pool)
	require.Len(t, inline.Forward, 3)
	require.Len(t, pooled.Forward, 3)
	for i := range inline.Forward {
		assert.Len(t, inline.Forward[i], 4)
		assert.Len(t, pooled.Forward[i], 4)
	}
}

func TestOrchestrator_CheckpointRoundTrip(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())
	o := newOrchestrator(t, system, executor.NewInline())

	o.Ledger().Append(domain.DirectionForward, []float64{0.5, 1.5})
	snapshot := o.Checkpoint()

	restored := newOrchestrator(t, system, executor.NewInline())
	restored.RestoreCheckpoint(snapshot)
	assert.Equal(t, []float64{2.0}, restored.Ledger().FinalWorks(domain.DirectionForward))
}

// steppingSystem delegates to a real system but fails every integrator
// step once the trip flag is set, simulating a numerical blow-up.
type steppingSystem struct {
	inner ports.System
	trip  atomic.Bool
}

func (s *steppingSystem) NewContext(state domain.ThermodynamicState, integ ports.IntegratorSpec) (ports.Context, error) {
	cctx, err := s.inner.NewContext(state, integ)
	if err != nil {
		return nil, err
	}
	return &steppingContext{Context: cctx, trip: &s.trip}, nil
}

type steppingContext struct {
	ports.Context
	trip *atomic.Bool
}

func (c *steppingContext) Step(n int) error {
	if c.trip.Load() {
		return errors.New("integrator blew up")
	}
	return c.Context.Step(n)
}

func TestOrchestrator_DropPolicySurfacesFailures(t *testing.T) {
	system := &steppingSystem{inner: harmonic.New(harmonic.DefaultConfig())}
	o := newOrchestrator(t, system, executor.NewInline())
	require.NoError(t, o.SetEndstateSampler(0, harmonic.New(harmonic.DefaultConfig()).InitialState()))
	require.NoError(t, o.SetEndstateSampler(1, harmonic.New(harmonic.DefaultConfig()).InitialState()))
	equilibrateBoth(t, o)

	system.trip.Store(true)
	err := o.RunAIS(context.Background(), orchestrator.AISRequest{
		Particles:      3,
		ScheduleLength: 4,
		Directions:     []domain.Direction{domain.DirectionForward},
	})
	require.NoError(t, err, "drop policy keeps the batch alive")

	status := o.Status()
	require.Contains(t, status.Directions, domain.DirectionForward)
	assert.Equal(t, 3, status.Directions[domain.DirectionForward].Failures)
	assert.Equal(t, 0, status.Directions[domain.DirectionForward].Particles)
}

func TestOrchestrator_AbortPolicyStopsBatch(t *testing.T) {
	system := &steppingSystem{inner: harmonic.New(harmonic.DefaultConfig())}
	o := newOrchestrator(t, system, executor.NewInline(),
		orchestrator.WithFailurePolicy(orchestrator.AbortOnFailure))
	require.NoError(t, o.SetEndstateSampler(0, harmonic.New(harmonic.DefaultConfig()).InitialState()))
	require.NoError(t, o.SetEndstateSampler(1, harmonic.New(harmonic.DefaultConfig()).InitialState()))
	equilibrateBoth(t, o)

	system.trip.Store(true)
	err := o.RunAIS(context.Background(), orchestrator.AISRequest{
		Particles:      3,
		ScheduleLength: 4,
		Directions:     []domain.Direction{domain.DirectionForward},
	})
	var failure *domain.TaskFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.PhaseAnnealing, failure.Phase)
}

func TestOrchestrator_HooksObserveRun(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())

	var started, done, batches atomic.Int64
	hooks := domain.LifecycleHooks{
		OnTaskStart: func(_ context.Context, _ *domain.TaskEvent) { started.Add(1) },
		OnTaskDone:  func(_ context.Context, _ *domain.TaskEvent) { done.Add(1) },
		OnBatchDone: func(_ context.Context, _ *domain.BatchEvent) { batches.Add(1) },
	}

	o := newOrchestrator(t, system, executor.NewInline(), orchestrator.WithHooks(hooks))
	seedEndstates(t, o, system)
	equilibrateBoth(t, o)
	require.NoError(t, o.RunAIS(context.Background(), orchestrator.AISRequest{
		Particles:      2,
		ScheduleLength: 4,
		Directions:     []domain.Direction{domain.DirectionForward},
	}))

	// 2 equilibration tasks + 2 annealing particles.
	assert.Equal(t, int64(4), started.Load())
	assert.Equal(t, int64(4), done.Load())
	// One equilibration batch + one direction batch.
	assert.Equal(t, int64(2), batches.Load())
}

func TestOrchestrator_RejectsShadowWork(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())
	_, err := orchestrator.New(system, memory.NewStore(), stats.New(), executor.NewInline(),
		testSchedule(t), 300.0,
		orchestrator.WithIntegrator(ports.IntegratorSpec{TimestepFS: 2.0, MeasureShadowWork: true}))
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "measure_shadow_work", cfgErr.Field)
}
