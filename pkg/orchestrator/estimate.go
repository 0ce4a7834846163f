package orchestrator

import (
	"fmt"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// FreeEnergySummary collects the estimates derived from the work ledger:
// one exponential-averaging estimate per direction with data, plus the
// lower-variance bidirectional estimate when both directions have data.
// All values are dimensionless, in units of kT.
type FreeEnergySummary struct {
	Directions    map[domain.Direction]ports.Estimate `json:"directions"`
	Bidirectional *ports.Estimate                     `json:"bidirectional,omitempty"`
}

// ComputeFreeEnergy derives cumulative work from the ledger and applies
// the statistical estimators. The orchestrator's only contract with the
// estimator is to supply correctly signed, correctly oriented final-work
// arrays: forward totals as collected, reverse totals as collected.
func (o *Orchestrator) ComputeFreeEnergy() (FreeEnergySummary, error) {
	summary := FreeEnergySummary{Directions: make(map[domain.Direction]ports.Estimate)}

	o.mu.Lock()
	directions := o.ledger.Directions()
	finals := make(map[domain.Direction][]float64, len(directions))
	for _, d := range directions {
		finals[d] = o.ledger.FinalWorks(d)
	}
	o.mu.Unlock()

	if len(directions) == 0 {
		return summary, fmt.Errorf("free energy: %w", domain.ErrNoDecorrelatedSamples)
	}

	for _, d := range directions {
		estimate, err := o.estimator.ExponentialEstimate(finals[d])
		if err != nil {
			return summary, fmt.Errorf("one-sided estimate (%s): %w", d, err)
		}
		summary.Directions[d] = estimate
		o.logger.Info("one-sided estimate",
			"direction", d,
			"value_kT", estimate.Value,
			"uncertainty_kT", estimate.Uncertainty,
			"samples", len(finals[d]))
	}

	forward, haveForward := finals[domain.DirectionForward]
	reverse, haveReverse := finals[domain.DirectionReverse]
	if haveForward && haveReverse {
		estimate, err := o.estimator.BidirectionalEstimate(forward, reverse)
		if err != nil {
			return summary, fmt.Errorf("two-sided estimate: %w", err)
		}
		summary.Bidirectional = &estimate
		o.logger.Info("two-sided estimate",
			"value_kT", estimate.Value,
			"uncertainty_kT", estimate.Uncertainty,
			"forward_samples", len(forward),
			"reverse_samples", len(reverse))
	}

	o.mu.Lock()
	for d, est := range summary.Directions {
		o.estimates[d] = est
	}
	o.bidirectional = summary.Bidirectional
	o.phase = domain.RunDone
	o.mu.Unlock()

	return summary, nil
}
