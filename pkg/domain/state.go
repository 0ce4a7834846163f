package domain

import "fmt"

// BoltzmannKJPerMolKelvin is the Boltzmann constant expressed in
// kJ/(mol·K), the energy unit convention used by the System port.
const BoltzmannKJPerMolKelvin = 0.00831446261815324

// Direction names the orientation of a switching protocol relative to the
// end-states. Forward anneals 0 -> 1, reverse 1 -> 0.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// Valid reports whether d is a recognised direction.
func (d Direction) Valid() bool {
	return d == DirectionForward || d == DirectionReverse
}

// StartEndstate is the equilibrium pool a particle annealing in this
// direction starts from: forward particles start at end-state 0, reverse
// particles at end-state 1.
func (d Direction) StartEndstate() Endstate {
	if d == DirectionReverse {
		return 1
	}
	return 0
}

// Endstate identifies one of the two thermodynamic end-states, 0 or 1.
type Endstate int

// Validate returns a ConsistencyError for any value outside {0, 1}.
func (e Endstate) Validate() error {
	if e != 0 && e != 1 {
		return &ConsistencyError{Op: "endstate", Detail: fmt.Sprintf("end-state %d is not in {0, 1}", int(e))}
	}
	return nil
}

// Progress is the schedule progress value defining this end-state.
func (e Endstate) Progress() float64 { return float64(e) }

// ThermodynamicState couples a temperature with the alchemical parameter
// set currently applied to the physical system. The orchestrator owns one
// and hands deep copies to tasks so concurrent work never observes a
// sibling's parameter changes.
type ThermodynamicState struct {
	// Temperature in kelvin.
	Temperature float64

	// Params is the alchemical parameter set at the current progress.
	Params AlchemicalParams
}

// Beta returns 1/(kB·T) in mol/kJ. Multiplying a potential energy by Beta
// yields the dimensionless reduced potential.
func (t ThermodynamicState) Beta() float64 {
	return 1.0 / (BoltzmannKJPerMolKelvin * t.Temperature)
}

// ReducedPotential converts a potential energy in kJ/mol to its
// dimensionless form.
func (t ThermodynamicState) ReducedPotential(energy float64) float64 {
	return t.Beta() * energy
}

// ApplyProgress sets the parameter set to the schedule evaluated at the
// given progress. This is the only sanctioned mutation of a state.
func (t *ThermodynamicState) ApplyProgress(s *Schedule, progress float64) {
	t.Params = s.Eval(progress)
}

// Clone returns an independent copy.
func (t ThermodynamicState) Clone() ThermodynamicState { return t }

// SamplerState holds the configuration of one particle system: positions
// plus box geometry. Ownership transfers from the task that produced it to
// whichever task consumes it next; it is never shared between live tasks.
type SamplerState struct {
	Positions  [][3]float64
	BoxLengths [3]float64
	BoxAngles  [3]float64
}

// Clone returns a deep copy.
func (s *SamplerState) Clone() *SamplerState {
	if s == nil {
		return nil
	}
	out := &SamplerState{
		Positions:  make([][3]float64, len(s.Positions)),
		BoxLengths: s.BoxLengths,
		BoxAngles:  s.BoxAngles,
	}
	copy(out.Positions, s.Positions)
	return out
}

// Frame is one stored trajectory snapshot, possibly an atom subset of the
// sampler state it was taken from.
type Frame struct {
	Positions  [][3]float64
	BoxLengths [3]float64
	BoxAngles  [3]float64
}

// FrameOf extracts a frame from a sampler state, restricted to the given
// atom subset. A nil subset keeps every atom.
func FrameOf(s *SamplerState, subset []int) Frame {
	f := Frame{BoxLengths: s.BoxLengths, BoxAngles: s.BoxAngles}
	if subset == nil {
		f.Positions = make([][3]float64, len(s.Positions))
		copy(f.Positions, s.Positions)
		return f
	}
	f.Positions = make([][3]float64, 0, len(subset))
	for _, i := range subset {
		f.Positions = append(f.Positions, s.Positions[i])
	}
	return f
}

// SamplerStateOf rebuilds a sampler state from a stored frame.
func SamplerStateOf(f Frame) *SamplerState {
	positions := make([][3]float64, len(f.Positions))
	copy(positions, f.Positions)
	return &SamplerState{
		Positions:  positions,
		BoxLengths: f.BoxLengths,
		BoxAngles:  f.BoxAngles,
	}
}

// EstimatedBytes approximates the in-memory size of a frame, used to
// trigger chunked trajectory flushes.
func (f Frame) EstimatedBytes() int {
	return len(f.Positions)*3*8 + 6*8
}
