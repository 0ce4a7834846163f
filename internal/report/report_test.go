package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/orchestrator"
	"github.com/aretw0/anneal/pkg/ports"
)

func TestMarkdown(t *testing.T) {
	status := domain.RunStatus{
		Phase:       domain.RunDone,
		Schedule:    domain.ScheduleDefault,
		Temperature: 300,
		Equilibrium: map[string]int{"0": 100, "1": 100},
		Directions: map[domain.Direction]*domain.DirectionStatus{
			domain.DirectionForward: {Particles: 8, Failures: 1},
			domain.DirectionReverse: {Particles: 8},
		},
	}
	bar := ports.Estimate{Value: 1.2, Uncertainty: 0.3}
	summary := orchestrator.FreeEnergySummary{
		Directions: map[domain.Direction]ports.Estimate{
			domain.DirectionForward: {Value: 1.5, Uncertainty: 0.4},
			domain.DirectionReverse: {Value: -1.1, Uncertainty: 0.5},
		},
		Bidirectional: &bar,
	}

	md := Markdown(status, summary)

	assert.Contains(t, md, "# Free Energy Report")
	assert.Contains(t, md, "| 0 | 100 |")
	assert.Contains(t, md, "| EXP forward | 1.5000 | 0.4000 | 8 |")
	assert.Contains(t, md, "| EXP reverse | -1.1000 | 0.5000 | 8 |")
	assert.Contains(t, md, "| BAR | 1.2000 | 0.3000 | 16 |")
	assert.Contains(t, md, "1 particle(s) failed")
}

func TestMarkdownWithoutBidirectional(t *testing.T) {
	status := domain.RunStatus{
		Schedule:    domain.ScheduleNAMD,
		Temperature: 310,
		Equilibrium: map[string]int{"0": 50, "1": 50},
		Directions: map[domain.Direction]*domain.DirectionStatus{
			domain.DirectionForward: {Particles: 4},
		},
	}
	summary := orchestrator.FreeEnergySummary{
		Directions: map[domain.Direction]ports.Estimate{
			domain.DirectionForward: {Value: 0.7, Uncertainty: 0.2},
		},
	}

	md := Markdown(status, summary)

	assert.Contains(t, md, "| EXP forward | 0.7000 | 0.2000 | 4 |")
	assert.NotContains(t, md, "| BAR |")
	assert.NotContains(t, md, "failed")
}
