package domain

import "time"

// Phase names a dispatch phase of the run, used in events and failures.
type Phase string

const (
	PhaseEquilibration Phase = "equilibration"
	PhaseAnnealing     Phase = "annealing"
)

// EquilibriumTask describes one equilibrium sampling job at a fixed
// end-state. The thermodynamic state is a private copy; tasks never share
// one.
type EquilibriumTask struct {
	Endstate Endstate
	State    ThermodynamicState
	Start    *SamplerState

	// Iterations is the number of atomic moves; StepsPerIteration the
	// integrator steps applied per move.
	Iterations        int
	StepsPerIteration int

	// TrajectoryName is the base name chunk files derive from. Empty
	// disables trajectory writing.
	TrajectoryName string

	// AtomSubset restricts stored frames to these atom indices. Nil keeps
	// all atoms.
	AtomSubset []int

	// MaxChunkBytes is the buffered-frame byte threshold that triggers a
	// chunk flush.
	MaxChunkBytes int

	// NextFileIndex is the explicit chunk counter. Successive calls thread
	// the value returned in the result back into the next task.
	NextFileIndex int

	// Minimize applies local energy minimization before sampling begins.
	Minimize bool

	// Timer records per-iteration wall time in the result.
	Timer bool
}

// FileRecord pairs a flushed chunk file with the number of snapshots it
// holds.
type FileRecord struct {
	Name      string `json:"name"`
	Snapshots int    `json:"snapshots"`
}

// EquilibriumResult is the outcome of one equilibrium sampling job.
type EquilibriumResult struct {
	Endstate          Endstate
	Final             *SamplerState
	Files             []FileRecord
	ReducedPotentials []float64

	// NextFileIndex is the counter value to thread into the next task for
	// this end-state.
	NextFileIndex int

	Timings []time.Duration
}

// AnnealingTask describes one nonequilibrium switching trajectory for one
// particle.
type AnnealingTask struct {
	Particle  int
	Direction Direction

	// Lambdas is the ordered progress schedule, length N >= 2.
	Lambdas []float64

	Start *SamplerState

	// TrajectoryName, when non-empty, buffers periodic configurations and
	// flushes them once at protocol termination.
	TrajectoryName string

	// StepsPerMove is the number of integrator steps per schedule step.
	StepsPerMove int

	// ReturnFinalState extracts the final configuration from the context.
	ReturnFinalState bool

	// ReturnTimings records per-step wall time.
	ReturnTimings bool
}

// AnnealingResult is the outcome of one switching trajectory. The
// incremental work sequence has length len(Lambdas)-1; work is measured as
// the reduced-potential jump at each parameter switch.
type AnnealingResult struct {
	Particle        int
	Direction       Direction
	IncrementalWork []float64
	Final           *SamplerState
	Timings         []time.Duration
}

// TaskOutcome is the tagged result of one unit of work gathered from the
// executor: either a success payload or a TaskFailure. Workers return
// failures as values so a single bad particle never crashes a batch; the
// orchestrator decides per policy what to do with them.
type TaskOutcome struct {
	value   any
	failure *TaskFailure
}

// Succeed wraps a success payload.
func Succeed(v any) TaskOutcome { return TaskOutcome{value: v} }

// Fail wraps a failure.
func Fail(f *TaskFailure) TaskOutcome { return TaskOutcome{failure: f} }

// Failed reports whether the outcome is a failure.
func (o TaskOutcome) Failed() bool { return o.failure != nil }

// Value returns the success payload, or nil for a failure.
func (o TaskOutcome) Value() any { return o.value }

// Failure returns the failure payload, or nil for a success.
func (o TaskOutcome) Failure() *TaskFailure { return o.failure }
