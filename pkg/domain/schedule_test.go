package domain_test

import (
	"testing"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Presets(t *testing.T) {
	kinds := []domain.ScheduleKind{
		domain.ScheduleDefault,
		domain.ScheduleNAMD,
		domain.ScheduleQuarters,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			s, err := domain.NewSchedule(kind)
			require.NoError(t, err)

			t.Run("Endpoints", func(t *testing.T) {
				for _, term := range domain.Terms {
					assert.Equal(t, 0.0, s.Value(term, 0.0), "term %s at 0", term)
					assert.Equal(t, 1.0, s.Value(term, 1.0), "term %s at 1", term)
				}
			})

			t.Run("Monotone", func(t *testing.T) {
				const n = 25
				for _, term := range domain.Terms {
					prev := s.Value(term, 0.0)
					for i := 1; i < n; i++ {
						x := float64(i) / float64(n-1)
						v := s.Value(term, x)
						assert.GreaterOrEqual(t, v, prev, "term %s at %.3f", term, x)
						prev = v
					}
				}
			})
		})
	}
}

func TestSchedule_DefaultStaging(t *testing.T) {
	s, err := domain.NewSchedule(domain.ScheduleDefault)
	require.NoError(t, err)

	// sterics_insert is 2x in the first half and saturated afterwards.
	assert.Equal(t, 0.5, s.Value(domain.TermStericsInsert, 0.25))
	assert.Equal(t, 1.0, s.Value(domain.TermStericsInsert, 0.75))

	// sterics_delete is inactive in the first half.
	assert.Equal(t, 0.0, s.Value(domain.TermStericsDelete, 0.25))
	assert.Equal(t, 0.5, s.Value(domain.TermStericsDelete, 0.75))

	// The two halves meet continuously at the midpoint.
	assert.InDelta(t, 1.0, s.Value(domain.TermStericsInsert, 0.5), 1e-12)
	assert.InDelta(t, 0.0, s.Value(domain.TermStericsDelete, 0.5), 1e-12)
}

func TestSchedule_QuartersBreakpoints(t *testing.T) {
	s, err := domain.NewSchedule(domain.ScheduleQuarters)
	require.NoError(t, err)

	assert.Equal(t, 1.0, s.Value(domain.TermElectrostaticsDelete, 0.25))
	assert.Equal(t, 0.0, s.Value(domain.TermStericsDelete, 0.25))
	assert.Equal(t, 1.0, s.Value(domain.TermStericsDelete, 0.5))
	assert.Equal(t, 0.5, s.Value(domain.TermStericsInsert, 0.625))
	assert.Equal(t, 0.0, s.Value(domain.TermElectrostaticsInsert, 0.75))
}

func TestSchedule_UnknownKindFallsBack(t *testing.T) {
	s, err := domain.NewSchedule("bogus")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleDefault, s.Kind())
}

func TestNewScheduleFromFunctions(t *testing.T) {
	t.Run("Override", func(t *testing.T) {
		s, err := domain.NewScheduleFromFunctions(map[domain.Term]domain.TermFunc{
			domain.TermBonds: func(x float64) float64 { return x * x },
		})
		require.NoError(t, err)
		assert.Equal(t, 0.25, s.Value(domain.TermBonds, 0.5))
		// Missing terms fall back to defaults.
		assert.Equal(t, 0.5, s.Value(domain.TermStericsInsert, 0.25))
	})

	t.Run("BadEndpoint", func(t *testing.T) {
		_, err := domain.NewScheduleFromFunctions(map[domain.Term]domain.TermFunc{
			domain.TermBonds: func(x float64) float64 { return 0.1 + 0.9*x },
		})
		var schedErr *domain.ScheduleError
		require.ErrorAs(t, err, &schedErr)
		assert.Equal(t, domain.TermBonds, schedErr.Term)
	})

	t.Run("NotMonotone", func(t *testing.T) {
		_, err := domain.NewScheduleFromFunctions(map[domain.Term]domain.TermFunc{
			domain.TermAngles: func(x float64) float64 {
				if x == 0 || x == 1 {
					return x
				}
				return 1 - x
			},
		})
		var schedErr *domain.ScheduleError
		require.ErrorAs(t, err, &schedErr)
	})

	t.Run("UnknownTerm", func(t *testing.T) {
		_, err := domain.NewScheduleFromFunctions(map[domain.Term]domain.TermFunc{
			domain.Term("lambda_bogus"): func(x float64) float64 { return x },
		})
		var schedErr *domain.ScheduleError
		require.ErrorAs(t, err, &schedErr)
	})
}

func TestLinspace(t *testing.T) {
	forward := domain.Linspace(5, domain.DirectionForward)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, forward)

	reverse := domain.Linspace(5, domain.DirectionReverse)
	assert.Equal(t, []float64{1, 0.75, 0.5, 0.25, 0}, reverse)
}
