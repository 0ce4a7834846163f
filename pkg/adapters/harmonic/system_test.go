package harmonic_test

import (
	"testing"

	"github.com/aretw0/anneal/pkg/adapters/harmonic"
	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(t *testing.T, s *domain.Schedule, progress float64) domain.ThermodynamicState {
	t.Helper()
	state := domain.ThermodynamicState{Temperature: 300}
	state.ApplyProgress(s, progress)
	return state
}

func TestContext_EnergyRespondsToParams(t *testing.T) {
	sys := harmonic.New(harmonic.DefaultConfig())
	sched, err := domain.NewSchedule(domain.ScheduleDefault)
	require.NoError(t, err)

	ctx, err := sys.NewContext(testState(t, sched, 0), ports.IntegratorSpec{TimestepFS: 1, CollisionRate: 1})
	require.NoError(t, err)
	defer ctx.Release()

	require.NoError(t, ctx.SetState(sys.InitialState()))

	// At end-state 0 the initial state sits at the well minima.
	u0, err := ctx.PotentialEnergy()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, u0, 1e-9)

	// Switching the parameters with the configuration fixed must raise the
	// energy: that jump is exactly the incremental work convention.
	require.NoError(t, ctx.ApplyParams(sched.Eval(1.0)))
	u1, err := ctx.PotentialEnergy()
	require.NoError(t, err)
	assert.Greater(t, u1, u0)
}

func TestContext_MinimizeReachesWellBottom(t *testing.T) {
	sys := harmonic.New(harmonic.DefaultConfig())
	sched, err := domain.NewSchedule(domain.ScheduleDefault)
	require.NoError(t, err)

	ctx, err := sys.NewContext(testState(t, sched, 1), ports.IntegratorSpec{TimestepFS: 1, CollisionRate: 1})
	require.NoError(t, err)
	defer ctx.Release()

	require.NoError(t, ctx.SetState(sys.InitialState()))
	require.NoError(t, ctx.Minimize(100))

	u, err := ctx.PotentialEnergy()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, u, 1e-9)
}

func TestContext_StepIsFiniteAndStateful(t *testing.T) {
	sys := harmonic.New(harmonic.DefaultConfig())
	sched, err := domain.NewSchedule(domain.ScheduleDefault)
	require.NoError(t, err)

	ctx, err := sys.NewContext(testState(t, sched, 0), ports.IntegratorSpec{TimestepFS: 2, CollisionRate: 1})
	require.NoError(t, err)
	defer ctx.Release()

	require.NoError(t, ctx.SetState(sys.InitialState()))
	require.NoError(t, ctx.ResampleVelocities(300))
	require.NoError(t, ctx.Step(50))

	state, err := ctx.State()
	require.NoError(t, err)
	require.Len(t, state.Positions, harmonic.DefaultConfig().Particles)
	for _, p := range state.Positions {
		for d := 0; d < 3; d++ {
			assert.False(t, p[d] != p[d], "position must not be NaN")
		}
	}
}

func TestContext_ReleasedIsUnusable(t *testing.T) {
	sys := harmonic.New(harmonic.DefaultConfig())
	sched, err := domain.NewSchedule(domain.ScheduleDefault)
	require.NoError(t, err)

	ctx, err := sys.NewContext(testState(t, sched, 0), ports.IntegratorSpec{TimestepFS: 1, CollisionRate: 1})
	require.NoError(t, err)
	ctx.Release()

	assert.ErrorIs(t, ctx.Step(1), harmonic.ErrReleased)
	_, err = ctx.PotentialEnergy()
	assert.ErrorIs(t, err, harmonic.ErrReleased)
}

func TestNewContext_Validation(t *testing.T) {
	sys := harmonic.New(harmonic.DefaultConfig())

	_, err := sys.NewContext(domain.ThermodynamicState{Temperature: 0}, ports.IntegratorSpec{TimestepFS: 1})
	require.Error(t, err)

	_, err = sys.NewContext(domain.ThermodynamicState{Temperature: 300}, ports.IntegratorSpec{TimestepFS: 0})
	require.Error(t, err)
}
