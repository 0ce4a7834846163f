package domain

import (
	"fmt"
	"log/slog"
)

// Term names one perturbable energy component of the alchemical system.
type Term string

const (
	TermStericsCore          Term = "lambda_sterics_core"
	TermElectrostaticsCore   Term = "lambda_electrostatics_core"
	TermStericsInsert        Term = "lambda_sterics_insert"
	TermStericsDelete        Term = "lambda_sterics_delete"
	TermElectrostaticsInsert Term = "lambda_electrostatics_insert"
	TermElectrostaticsDelete Term = "lambda_electrostatics_delete"
	TermBonds                Term = "lambda_bonds"
	TermAngles               Term = "lambda_angles"
	TermTorsions             Term = "lambda_torsions"
)

// Terms lists every required energy term, in canonical order.
var Terms = []Term{
	TermStericsCore,
	TermElectrostaticsCore,
	TermStericsInsert,
	TermStericsDelete,
	TermElectrostaticsInsert,
	TermElectrostaticsDelete,
	TermBonds,
	TermAngles,
	TermTorsions,
}

// TermFunc maps schedule progress in [0,1] to one term's interpolation
// value in [0,1].
type TermFunc func(x float64) float64

// ScheduleKind names a preset interpolation protocol.
type ScheduleKind string

const (
	ScheduleDefault  ScheduleKind = "default"
	ScheduleNAMD     ScheduleKind = "namd"
	ScheduleQuarters ScheduleKind = "quarters"

	// scheduleCustom marks a schedule built from user overrides.
	scheduleCustom ScheduleKind = "custom"
)

// validationGridPoints is the grid resolution of the monotonicity check.
// The check is a discretized approximation, not a proof.
const validationGridPoints = 10

// AlchemicalParams is a fixed-shape snapshot of every term's
// interpolation value at one progress point.
type AlchemicalParams struct {
	StericsCore          float64
	ElectrostaticsCore   float64
	StericsInsert        float64
	StericsDelete        float64
	ElectrostaticsInsert float64
	ElectrostaticsDelete float64
	Bonds                float64
	Angles               float64
	Torsions             float64
}

func identity(x float64) float64 { return x }

func firstHalf(x float64) float64 {
	if x < 0.5 {
		return 2.0 * x
	}
	return 1.0
}

func secondHalf(x float64) float64 {
	if x < 0.5 {
		return 0.0
	}
	return 2.0 * (x - 0.5)
}

// segment ramps linearly from 0 to 1 across [lo, hi]: zero before lo,
// saturated after hi.
func segment(lo, hi float64) TermFunc {
	return func(x float64) float64 {
		switch {
		case x <= lo:
			return 0.0
		case x >= hi:
			return 1.0
		default:
			return (x - lo) / (hi - lo)
		}
	}
}

func defaultFunctions() map[Term]TermFunc {
	return map[Term]TermFunc{
		TermStericsCore:          identity,
		TermElectrostaticsCore:   identity,
		TermStericsInsert:        firstHalf,
		TermStericsDelete:        secondHalf,
		TermElectrostaticsInsert: secondHalf,
		TermElectrostaticsDelete: firstHalf,
		TermBonds:                identity,
		TermAngles:               identity,
		TermTorsions:             identity,
	}
}

func namdFunctions() map[Term]TermFunc {
	return map[Term]TermFunc{
		TermStericsCore:        identity,
		TermElectrostaticsCore: identity,
		TermStericsInsert: func(x float64) float64 {
			if x < 2.0/3.0 {
				return 1.5 * x
			}
			return 1.0
		},
		TermStericsDelete: func(x float64) float64 {
			if x < 1.0/3.0 {
				return 0.0
			}
			return 1.5 * (x - 1.0/3.0)
		},
		TermElectrostaticsInsert: secondHalf,
		TermElectrostaticsDelete: firstHalf,
		TermBonds:                identity,
		TermAngles:               identity,
		TermTorsions:             identity,
	}
}

func quartersFunctions() map[Term]TermFunc {
	return map[Term]TermFunc{
		TermStericsCore:          identity,
		TermElectrostaticsCore:   identity,
		TermElectrostaticsDelete: segment(0.0, 0.25),
		TermStericsDelete:        segment(0.25, 0.5),
		TermStericsInsert:        segment(0.5, 0.75),
		TermElectrostaticsInsert: segment(0.75, 1.0),
		TermBonds:                identity,
		TermAngles:               identity,
		TermTorsions:             identity,
	}
}

// Schedule maps a scalar progress variable in [0,1] to per-term
// interpolation values. Immutable once validated.
type Schedule struct {
	kind ScheduleKind
	fns  map[Term]TermFunc
}

// NewSchedule builds a preset schedule. An unrecognised kind falls back
// to the default preset with a warning, matching the lenient protocol
// selection convention.
func NewSchedule(kind ScheduleKind) (*Schedule, error) {
	var fns map[Term]TermFunc
	switch kind {
	case ScheduleDefault:
		fns = defaultFunctions()
	case ScheduleNAMD:
		fns = namdFunctions()
	case ScheduleQuarters:
		fns = quartersFunctions()
	default:
		slog.Warn("unrecognised schedule kind, using default", "kind", string(kind))
		kind = ScheduleDefault
		fns = defaultFunctions()
	}
	s := &Schedule{kind: kind, fns: fns}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewScheduleFromFunctions builds a schedule from per-term overrides.
// Terms not present in the map fall back to the default preset with a
// warning. A term outside the known set is a ScheduleError.
func NewScheduleFromFunctions(overrides map[Term]TermFunc) (*Schedule, error) {
	known := make(map[Term]bool, len(Terms))
	for _, term := range Terms {
		known[term] = true
	}
	for term := range overrides {
		if !known[term] {
			return nil, &ScheduleError{Term: term, Reason: "unknown energy term"}
		}
	}

	fns := defaultFunctions()
	for _, term := range Terms {
		fn, ok := overrides[term]
		if !ok {
			slog.Warn("schedule term missing from overrides, using default", "term", string(term))
			continue
		}
		fns[term] = fn
	}
	s := &Schedule{kind: scheduleCustom, fns: fns}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// validate checks every term function for exact 0 and 1 endpoints and
// for non-decreasing values over the validation grid.
func (s *Schedule) validate() error {
	for _, term := range Terms {
		fn := s.fns[term]
		if v := fn(0.0); v != 0.0 {
			return &ScheduleError{Term: term, Reason: fmt.Sprintf("value at progress 0 is %g, want exactly 0", v)}
		}
		if v := fn(1.0); v != 1.0 {
			return &ScheduleError{Term: term, Reason: fmt.Sprintf("value at progress 1 is %g, want exactly 1", v)}
		}
		prev := fn(0.0)
		for i := 1; i < validationGridPoints; i++ {
			x := float64(i) / float64(validationGridPoints-1)
			v := fn(x)
			if v < prev {
				return &ScheduleError{
					Term:   term,
					Reason: fmt.Sprintf("not monotonically increasing: value %g at progress %.3f below %g", v, x, prev),
				}
			}
			prev = v
		}
	}
	return nil
}

// Kind reports which preset the schedule was built from.
func (s *Schedule) Kind() ScheduleKind { return s.kind }

// Value evaluates one term's interpolation function at the given
// progress.
func (s *Schedule) Value(term Term, progress float64) float64 {
	return s.fns[term](progress)
}

// Eval snapshots every term's value at the given progress.
func (s *Schedule) Eval(progress float64) AlchemicalParams {
	return AlchemicalParams{
		StericsCore:          s.fns[TermStericsCore](progress),
		ElectrostaticsCore:   s.fns[TermElectrostaticsCore](progress),
		StericsInsert:        s.fns[TermStericsInsert](progress),
		StericsDelete:        s.fns[TermStericsDelete](progress),
		ElectrostaticsInsert: s.fns[TermElectrostaticsInsert](progress),
		ElectrostaticsDelete: s.fns[TermElectrostaticsDelete](progress),
		Bonds:                s.fns[TermBonds](progress),
		Angles:               s.fns[TermAngles](progress),
		Torsions:             s.fns[TermTorsions](progress),
	}
}

// Linspace builds n evenly spaced progress values across [0,1], ordered
// 0 -> 1 for forward protocols and 1 -> 0 for reverse ones.
func Linspace(n int, d Direction) []float64 {
	if n < 2 {
		n = 2
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i) / float64(n-1)
	}
	if d == DirectionReverse {
		for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
			values[i], values[j] = values[j], values[i]
		}
	}
	return values
}
