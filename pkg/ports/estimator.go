package ports

// Equilibration is the result of burn-in detection on a reduced-potential
// series.
type Equilibration struct {
	// Cutoff is the index of the first production sample; everything
	// before it is discarded as burn-in.
	Cutoff int

	// Inefficiency is the statistical inefficiency g >= 1 of the series
	// after the cutoff.
	Inefficiency float64

	// EffectiveSamples is the estimated number of independent samples.
	EffectiveSamples float64
}

// Estimate is a free-energy estimate with its uncertainty, both
// dimensionless (units of kT).
type Estimate struct {
	Value       float64 `json:"value"`
	Uncertainty float64 `json:"uncertainty"`
}

// Estimator is the statistical collaborator. The orchestration layer
// treats these routines as black boxes; its only contract is to supply
// correctly signed, correctly oriented work arrays.
type Estimator interface {
	// DetectEquilibration finds the burn-in cutoff and the statistical
	// inefficiency of a reduced-potential series.
	DetectEquilibration(series []float64) (Equilibration, error)

	// SubsampleIndependent thins a post-cutoff series to approximately
	// independent samples, returning retained indices local to the input.
	SubsampleIndependent(series []float64, inefficiency float64) ([]int, error)

	// ExponentialEstimate applies one-sided exponential averaging to a set
	// of total work values.
	ExponentialEstimate(works []float64) (Estimate, error)

	// BidirectionalEstimate combines forward and reverse work values into
	// a lower-variance two-sided estimate.
	BidirectionalEstimate(forward, reverse []float64) (Estimate, error)
}
