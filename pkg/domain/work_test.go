package domain_test

import (
	"testing"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkLedger_CumulativeDerivation(t *testing.T) {
	ledger := domain.NewWorkLedger()
	ledger.Append(domain.DirectionForward, []float64{0.5, -0.25, 1.0})
	ledger.Append(domain.DirectionForward, []float64{0.1, 0.2, 0.3})

	matrix := ledger.CumulativeMatrix(domain.DirectionForward)
	require.Len(t, matrix, 2)
	assert.InDeltaSlice(t, []float64{0.5, 0.25, 1.25}, matrix[0], 1e-12)
	assert.InDeltaSlice(t, []float64{0.1, 0.3, 0.6}, matrix[1], 1e-12)

	// Work additivity: the final column equals the sum of increments.
	finals := ledger.FinalWorks(domain.DirectionForward)
	for i, row := range matrix {
		assert.InDelta(t, row[len(row)-1], finals[i], 1e-12)
	}
}

func TestWorkLedger_Directions(t *testing.T) {
	ledger := domain.NewWorkLedger()
	assert.Empty(t, ledger.Directions())

	ledger.Append(domain.DirectionReverse, []float64{1})
	assert.Equal(t, []domain.Direction{domain.DirectionReverse}, ledger.Directions())

	ledger.Append(domain.DirectionForward, []float64{2})
	assert.Equal(t, []domain.Direction{domain.DirectionForward, domain.DirectionReverse}, ledger.Directions())
}

func TestWorkLedger_SnapshotRoundTrip(t *testing.T) {
	ledger := domain.NewWorkLedger()
	ledger.Append(domain.DirectionForward, []float64{1, 2})
	ledger.Append(domain.DirectionReverse, []float64{-1, -2})

	snap := ledger.Snapshot()

	restored := domain.NewWorkLedger()
	restored.Restore(snap)
	assert.Equal(t, ledger.FinalWorks(domain.DirectionForward), restored.FinalWorks(domain.DirectionForward))
	assert.Equal(t, ledger.FinalWorks(domain.DirectionReverse), restored.FinalWorks(domain.DirectionReverse))
}

func TestEndstate_Validate(t *testing.T) {
	require.NoError(t, domain.Endstate(0).Validate())
	require.NoError(t, domain.Endstate(1).Validate())

	err := domain.Endstate(2).Validate()
	var consErr *domain.ConsistencyError
	require.ErrorAs(t, err, &consErr)
}

func TestTaskOutcome(t *testing.T) {
	ok := domain.Succeed(42)
	assert.False(t, ok.Failed())
	assert.Equal(t, 42, ok.Value())

	fail := domain.Fail(&domain.TaskFailure{
		Phase:     domain.PhaseAnnealing,
		Particle:  3,
		Direction: domain.DirectionForward,
		Step:      7,
		Err:       assert.AnError,
	})
	assert.True(t, fail.Failed())
	assert.Nil(t, fail.Value())
	assert.ErrorIs(t, fail.Failure(), assert.AnError)
	assert.Contains(t, fail.Failure().Error(), "particle=3")
}
