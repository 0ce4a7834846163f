package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/anneal/pkg/adapters/redis"
	"github.com/aretw0/anneal/pkg/domain"
)

func newTestStore(t *testing.T) *redis.CheckpointStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return redis.NewFromClient(client)
}

func TestCheckpointStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ledger := domain.NewWorkLedger()
	ledger.Append(domain.DirectionForward, []float64{0.1, 0.2, 0.3})
	ledger.Append(domain.DirectionReverse, []float64{-0.4, 0.5})

	require.NoError(t, store.Save(ctx, "run-1", ledger.Snapshot()))

	snapshot, err := store.Load(ctx, "run-1")
	require.NoError(t, err)

	restored := domain.NewWorkLedger()
	restored.Restore(snapshot)
	assert.InDelta(t, 0.6, restored.FinalWorks(domain.DirectionForward)[0], 1e-12)
	assert.InDelta(t, 0.1, restored.FinalWorks(domain.DirectionReverse)[0], 1e-12)
}

func TestCheckpointStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
}

func TestCheckpointStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-a", domain.LedgerSnapshot{}))
	require.NoError(t, store.Save(ctx, "run-b", domain.LedgerSnapshot{}))

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run-a", "run-b"}, runs)
}

func TestCheckpointStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-a", domain.LedgerSnapshot{}))
	require.NoError(t, store.Delete(ctx, "run-a"))

	_, err := store.Load(ctx, "run-a")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
