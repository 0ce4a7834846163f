// Package stats is the bundled implementation of the ports.Estimator
// collaborator: burn-in detection, statistical-inefficiency subsampling,
// one-sided exponential averaging, and the two-sided Bennett acceptance
// ratio. The orchestration layer treats these as black boxes; any other
// implementation of the port can be swapped in.
package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/aretw0/anneal/pkg/ports"
)

// ErrEmptySeries is returned when a routine receives no data.
var ErrEmptySeries = errors.New("stats: empty series")

// Estimator implements ports.Estimator. The zero value is ready to use.
type Estimator struct{}

// New returns the reference estimator.
func New() *Estimator { return &Estimator{} }

var _ ports.Estimator = (*Estimator)(nil)

// DetectEquilibration scans candidate burn-in cutoffs and keeps the one
// maximizing the effective sample count of the remainder.
func (e *Estimator) DetectEquilibration(series []float64) (ports.Equilibration, error) {
	n := len(series)
	if n == 0 {
		return ports.Equilibration{}, ErrEmptySeries
	}
	if n < 3 {
		return ports.Equilibration{Cutoff: 0, Inefficiency: 1, EffectiveSamples: float64(n)}, nil
	}

	best := ports.Equilibration{Cutoff: 0, Inefficiency: 1, EffectiveSamples: 0}
	// Cap the number of candidate origins so long series stay cheap.
	stride := 1
	if n > 200 {
		stride = n / 200
	}
	for t0 := 0; t0 < n-2; t0 += stride {
		g := statisticalInefficiency(series[t0:])
		neff := float64(n-t0) / g
		if neff > best.EffectiveSamples {
			best = ports.Equilibration{Cutoff: t0, Inefficiency: g, EffectiveSamples: neff}
		}
	}
	return best, nil
}

// SubsampleIndependent thins the series with a stride of ceil(g),
// returning indices local to the input.
func (e *Estimator) SubsampleIndependent(series []float64, inefficiency float64) ([]int, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	if inefficiency < 1 {
		inefficiency = 1
	}
	stride := int(math.Ceil(inefficiency))
	indices := make([]int, 0, len(series)/stride+1)
	for i := 0; i < len(series); i += stride {
		indices = append(indices, i)
	}
	return indices, nil
}

// ExponentialEstimate computes dF = -ln <exp(-w)> via a stable
// log-sum-exp, with a first-order delta-method uncertainty.
func (e *Estimator) ExponentialEstimate(works []float64) (ports.Estimate, error) {
	n := len(works)
	if n == 0 {
		return ports.Estimate{}, ErrEmptySeries
	}

	// Shift by the minimum work so the exponentials cannot overflow.
	wMin := works[0]
	for _, w := range works {
		if w < wMin {
			wMin = w
		}
	}
	var sum, sumSq float64
	for _, w := range works {
		x := math.Exp(-(w - wMin))
		sum += x
		sumSq += x * x
	}
	mean := sum / float64(n)
	value := wMin - math.Log(mean)

	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	uncertainty := math.Sqrt(variance) / (mean * math.Sqrt(float64(n)))
	return ports.Estimate{Value: value, Uncertainty: uncertainty}, nil
}

// BidirectionalEstimate solves the Bennett acceptance-ratio equation by
// bisection. Forward works are measured switching 0 -> 1, reverse works
// switching 1 -> 0; both dimensionless.
func (e *Estimator) BidirectionalEstimate(forward, reverse []float64) (ports.Estimate, error) {
	nF, nR := len(forward), len(reverse)
	if nF == 0 || nR == 0 {
		return ports.Estimate{}, fmt.Errorf("%w: need work values in both directions", ErrEmptySeries)
	}
	m := math.Log(float64(nF) / float64(nR))

	// The objective is strictly increasing in dF: +nF at +inf, -nR at
	// -inf, so bisection on a bracket wide enough to cover every work
	// value always converges.
	objective := func(dF float64) float64 {
		var s float64
		for _, w := range forward {
			s += fermi(-(m + w - dF))
		}
		for _, w := range reverse {
			s -= fermi(-(-m + w + dF))
		}
		return s
	}

	span := 50.0
	for _, w := range forward {
		span = math.Max(span, math.Abs(w)+50)
	}
	for _, w := range reverse {
		span = math.Max(span, math.Abs(w)+50)
	}
	lo, hi := -span, span
	for i := 0; i < 200; i++ {
		mid := 0.5 * (lo + hi)
		if objective(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	dF := 0.5 * (lo + hi)

	uncertainty := barUncertainty(forward, reverse, m, dF)
	return ports.Estimate{Value: dF, Uncertainty: uncertainty}, nil
}

// fermi is the logistic function 1/(1+exp(-x)).
func fermi(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	ex := math.Exp(x)
	return ex / (1.0 + ex)
}

// barUncertainty applies Bennett's variance estimate to the converged
// solution.
func barUncertainty(forward, reverse []float64, m, dF float64) float64 {
	momF1, momF2 := fermiMoments(forward, func(w float64) float64 { return -(m + w - dF) })
	momR1, momR2 := fermiMoments(reverse, func(w float64) float64 { return -(-m + w + dF) })
	if momF1 == 0 || momR1 == 0 {
		return math.Inf(1)
	}
	varF := (momF2/(momF1*momF1) - 1) / float64(len(forward))
	varR := (momR2/(momR1*momR1) - 1) / float64(len(reverse))
	total := varF + varR
	if total < 0 {
		total = 0
	}
	return math.Sqrt(total)
}

func fermiMoments(works []float64, arg func(float64) float64) (first, second float64) {
	for _, w := range works {
		f := fermi(arg(w))
		first += f
		second += f * f
	}
	n := float64(len(works))
	return first / n, second / n
}

// statisticalInefficiency estimates g = 1 + 2*tau from the normalized
// autocorrelation function, truncated at its first non-positive value.
func statisticalInefficiency(series []float64) float64 {
	n := len(series)
	if n < 3 {
		return 1
	}
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)

	var c0 float64
	for _, v := range series {
		c0 += (v - mean) * (v - mean)
	}
	c0 /= float64(n)
	if c0 <= 0 {
		return 1
	}

	g := 1.0
	for t := 1; t < n-1; t++ {
		var ct float64
		for i := 0; i < n-t; i++ {
			ct += (series[i] - mean) * (series[i+t] - mean)
		}
		ct /= float64(n-t) * c0
		if ct <= 0 {
			break
		}
		g += 2.0 * ct * (1.0 - float64(t)/float64(n))
	}
	if g < 1 {
		g = 1
	}
	return g
}
