package ports

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunExecutorContract verifies that an Executor implementation adheres to
// the interface contract. Both backends must pass the same suite: the
// inline executor is required to be a pure function-equivalent of the
// pooled one.
func RunExecutorContract(t *testing.T, newExecutor func() Executor) {
	ctx := context.Background()

	t.Run("Scatter Identity Semantics", func(t *testing.T) {
		exec := newExecutor()
		defer exec.Close()

		data := []float64{1, 2, 3}
		handle := exec.Scatter(data)
		require.NotNil(t, handle)
	})

	t.Run("Deploy Preserves Submission Order", func(t *testing.T) {
		exec := newExecutor()
		defer exec.Close()

		tasks := make([]Task, 16)
		for i := range tasks {
			i := i
			tasks[i] = func(ctx context.Context) domain.TaskOutcome {
				return domain.Succeed(i * i)
			}
		}
		futures := exec.Deploy(ctx, tasks)
		require.Len(t, futures, len(tasks))

		outcomes := exec.Gather(ctx, futures)
		require.Len(t, outcomes, len(tasks))
		for i, o := range outcomes {
			require.False(t, o.Failed(), "task %d", i)
			assert.Equal(t, i*i, o.Value())
		}
	})

	t.Run("Failure Outcomes Pass Through", func(t *testing.T) {
		exec := newExecutor()
		defer exec.Close()

		boom := errors.New("numerical blow-up")
		futures := exec.Deploy(ctx, []Task{
			func(ctx context.Context) domain.TaskOutcome { return domain.Succeed("ok") },
			func(ctx context.Context) domain.TaskOutcome {
				return domain.Fail(&domain.TaskFailure{Phase: domain.PhaseAnnealing, Particle: 1, Err: boom})
			},
		})
		outcomes := exec.Gather(ctx, futures)
		require.Len(t, outcomes, 2)
		assert.False(t, outcomes[0].Failed())
		require.True(t, outcomes[1].Failed())
		assert.ErrorIs(t, outcomes[1].Failure(), boom)
	})

	t.Run("Panic Becomes Failure", func(t *testing.T) {
		exec := newExecutor()
		defer exec.Close()

		futures := exec.Deploy(ctx, []Task{
			func(ctx context.Context) domain.TaskOutcome { panic("invalid simulation state") },
		})
		outcomes := exec.Gather(ctx, futures)
		require.Len(t, outcomes, 1)
		require.True(t, outcomes[0].Failed())
		assert.Contains(t, outcomes[0].Failure().Err.Error(), "invalid simulation state")
	})

	t.Run("Actor Serializes Calls", func(t *testing.T) {
		exec := newExecutor()
		defer exec.Close()

		actor, err := exec.LaunchActor(func() (any, error) {
			counter := 0
			return &counter, nil
		})
		require.NoError(t, err)
		defer actor.Release()

		const calls = 32
		futures := make([]Future, 0, calls)
		for i := 0; i < calls; i++ {
			futures = append(futures, actor.Submit(ctx, func(ctx context.Context, a any) domain.TaskOutcome {
				counter := a.(*int)
				*counter++ // safe only if calls are serialized
				return domain.Succeed(*counter)
			}))
		}
		outcomes := exec.Gather(ctx, futures)
		require.Len(t, outcomes, calls)
		for i, o := range outcomes {
			require.False(t, o.Failed())
			assert.Equal(t, i+1, o.Value(), "actor calls must run in submission order")
		}
	})

	t.Run("Actor Factory Error", func(t *testing.T) {
		exec := newExecutor()
		defer exec.Close()

		_, err := exec.LaunchActor(func() (any, error) {
			return nil, errors.New("no execution context available")
		})
		require.Error(t, err)
	})

	t.Run("Wait Resolves All", func(t *testing.T) {
		exec := newExecutor()
		defer exec.Close()

		futures := exec.Deploy(ctx, []Task{
			func(ctx context.Context) domain.TaskOutcome {
				time.Sleep(5 * time.Millisecond)
				return domain.Succeed(nil)
			},
			func(ctx context.Context) domain.TaskOutcome { return domain.Succeed(nil) },
		})
		exec.Wait(ctx, futures)
		outcomes := exec.Gather(ctx, futures)
		for _, o := range outcomes {
			assert.False(t, o.Failed())
		}
	})
}

// RunTrajectoryStoreContract verifies that a TrajectoryStore implementation
// adheres to the append-or-create contract.
func RunTrajectoryStoreContract(t *testing.T, store TrajectoryStore) {
	ctx := context.Background()
	name := fmt.Sprintf("contract-%d.traj", time.Now().UnixNano())

	frame := func(seed float64) domain.Frame {
		return domain.Frame{
			Positions:  [][3]float64{{seed, seed + 1, seed + 2}, {seed + 3, seed + 4, seed + 5}},
			BoxLengths: [3]float64{3, 3, 3},
			BoxAngles:  [3]float64{90, 90, 90},
		}
	}

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "does-not-exist.traj")
		assert.ErrorIs(t, err, ErrTrajectoryNotFound)
	})

	t.Run("Append Creates", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, name, []domain.Frame{frame(0), frame(10)}))

		frames, err := store.Load(ctx, name)
		require.NoError(t, err)
		require.Len(t, frames, 2)
		assert.Equal(t, frame(0).Positions, frames[0].Positions)
	})

	t.Run("Append Preserves Prior Contents", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, name, []domain.Frame{frame(20)}))

		frames, err := store.Load(ctx, name)
		require.NoError(t, err)
		require.Len(t, frames, 3)
		assert.Equal(t, frame(0).Positions, frames[0].Positions)
		assert.Equal(t, frame(20).Positions, frames[2].Positions)
	})

	t.Run("Frame By Index", func(t *testing.T) {
		f, err := store.Frame(ctx, name, 1)
		require.NoError(t, err)
		assert.Equal(t, frame(10).Positions, f.Positions)

		_, err = store.Frame(ctx, name, 99)
		require.Error(t, err)
	})
}
