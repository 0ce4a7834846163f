package annealing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/anneal/pkg/adapters/harmonic"
	"github.com/aretw0/anneal/pkg/adapters/memory"
	"github.com/aretw0/anneal/pkg/annealing"
	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

func newTestWorker(t *testing.T, cfg annealing.InitConfig) (*annealing.Worker, *memory.Store) {
	t.Helper()
	system := harmonic.New(harmonic.DefaultConfig())
	store := memory.NewStore()
	w := annealing.NewWorker(system, store)
	require.NoError(t, w.Initialize(cfg))
	t.Cleanup(w.Close)
	return w, store
}

func testConfig(t *testing.T) annealing.InitConfig {
	t.Helper()
	schedule, err := domain.NewSchedule(domain.ScheduleDefault)
	require.NoError(t, err)
	return annealing.InitConfig{
		Template: domain.ThermodynamicState{
			Temperature: 300.0,
			Params:      schedule.Eval(0),
		},
		Schedule:   schedule,
		Integrator: ports.IntegratorSpec{TimestepFS: 2.0, CollisionRate: 1.0},
	}
}

func startState(t *testing.T) *domain.SamplerState {
	t.Helper()
	return harmonic.New(harmonic.DefaultConfig()).InitialState()
}

func TestWorker_AnnealProducesIncrementalWork(t *testing.T) {
	w, _ := newTestWorker(t, testConfig(t))

	lambdas := domain.Linspace(11, domain.DirectionForward)

	outcome := w.Anneal(context.Background(), domain.AnnealingTask{
		Particle:         3,
		Direction:        domain.DirectionForward,
		Lambdas:          lambdas,
		Start:            startState(t),
		StepsPerMove:     2,
		ReturnFinalState: true,
		ReturnTimings:    true,
	})
	require.False(t, outcome.Failed(), "anneal should succeed: %v", outcome.Failure())

	result, ok := outcome.Value().(domain.AnnealingResult)
	require.True(t, ok)
	assert.Equal(t, 3, result.Particle)
	assert.Equal(t, domain.DirectionForward, result.Direction)
	assert.Len(t, result.IncrementalWork, len(lambdas)-1)
	assert.Len(t, result.Timings, len(lambdas)-1)
	require.NotNil(t, result.Final)
	assert.Len(t, result.Final.Positions, len(startState(t).Positions))
}

func TestWorker_ZeroSwitchIncursZeroWork(t *testing.T) {
	w, _ := newTestWorker(t, testConfig(t))

	// The schedule never moves, so every parameter switch is a no-op and
	// the measured work must be exactly zero at every step, regardless of
	// the dynamics in between.
	outcome := w.Anneal(context.Background(), domain.AnnealingTask{
		Direction: domain.DirectionForward,
		Lambdas:   []float64{0, 0, 0, 0},
		Start:     startState(t),
	})
	require.False(t, outcome.Failed())

	result := outcome.Value().(domain.AnnealingResult)
	require.Len(t, result.IncrementalWork, 3)
	for i, work := range result.IncrementalWork {
		assert.Zero(t, work, "step %d", i)
	}
}

func TestWorker_ProtocolTrajectory(t *testing.T) {
	cfg := testConfig(t)
	cfg.SaveInterval = 2
	w, store := newTestWorker(t, cfg)

	lambdas := []float64{0, 0.25, 0.5, 0.75, 1.0}
	outcome := w.Anneal(context.Background(), domain.AnnealingTask{
		Direction:      domain.DirectionForward,
		Lambdas:        lambdas,
		Start:          startState(t),
		TrajectoryName: "run.neq.forward.iteration_0000",
	})
	require.False(t, outcome.Failed(), "anneal should succeed: %v", outcome.Failure())

	// Steps 1..4 run; steps 2 and 4 are multiples of the save interval.
	frames, err := store.Load(context.Background(), "run.neq.forward.iteration_0000")
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestWorker_TrajectoryWithoutSaveIntervalFails(t *testing.T) {
	w, _ := newTestWorker(t, testConfig(t))

	outcome := w.Anneal(context.Background(), domain.AnnealingTask{
		Direction:      domain.DirectionForward,
		Lambdas:        []float64{0, 0.5, 1.0},
		Start:          startState(t),
		TrajectoryName: "run.neq.forward.iteration_0000",
	})
	require.True(t, outcome.Failed())

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, outcome.Failure(), &cfgErr)
	assert.Equal(t, "save_interval", cfgErr.Field)
}

func TestWorker_AnnealBeforeInitialize(t *testing.T) {
	system := harmonic.New(harmonic.DefaultConfig())
	w := annealing.NewWorker(system, memory.NewStore())

	outcome := w.Anneal(context.Background(), domain.AnnealingTask{
		Direction: domain.DirectionForward,
		Lambdas:   []float64{0, 1},
		Start:     startState(t),
	})
	require.True(t, outcome.Failed())
	assert.ErrorIs(t, outcome.Failure(), domain.ErrNotInitialized)
}

func TestWorker_DoubleInitialize(t *testing.T) {
	w, _ := newTestWorker(t, testConfig(t))

	err := w.Initialize(testConfig(t))
	var consistency *domain.ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestWorker_ShadowWorkRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Integrator.MeasureShadowWork = true

	system := harmonic.New(harmonic.DefaultConfig())
	w := annealing.NewWorker(system, memory.NewStore())
	err := w.Initialize(cfg)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "measure_shadow_work", cfgErr.Field)
}

func TestWorker_ShortScheduleFails(t *testing.T) {
	w, _ := newTestWorker(t, testConfig(t))

	outcome := w.Anneal(context.Background(), domain.AnnealingTask{
		Direction: domain.DirectionForward,
		Lambdas:   []float64{0.5},
		Start:     startState(t),
	})
	require.True(t, outcome.Failed())

	var failure *domain.TaskFailure
	require.ErrorAs(t, outcome.Failure(), &failure)
	assert.Equal(t, domain.PhaseAnnealing, failure.Phase)
}

func TestWorker_CancelledContext(t *testing.T) {
	w, _ := newTestWorker(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := w.Anneal(ctx, domain.AnnealingTask{
		Direction: domain.DirectionForward,
		Lambdas:   []float64{0, 0.5, 1.0},
		Start:     startState(t),
	})
	require.True(t, outcome.Failed())
	assert.True(t, errors.Is(outcome.Failure(), context.Canceled))
}

func TestWorker_ReusableAcrossTasks(t *testing.T) {
	w, _ := newTestWorker(t, testConfig(t))

	for i := 0; i < 3; i++ {
		outcome := w.Anneal(context.Background(), domain.AnnealingTask{
			Particle:  i,
			Direction: domain.DirectionReverse,
			Lambdas:   []float64{1.0, 0.5, 0.0},
			Start:     startState(t),
		})
		require.False(t, outcome.Failed(), "iteration %d", i)
		result := outcome.Value().(domain.AnnealingResult)
		assert.Equal(t, i, result.Particle)
		assert.Len(t, result.IncrementalWork, 2)
	}
}
