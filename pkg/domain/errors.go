package domain

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when an annealing worker is used before
// Initialize has been called.
var ErrNotInitialized = errors.New("annealing worker not initialized")

// ErrNoDecorrelatedSamples is returned when an annealing start point is
// requested before the corresponding end-state pool has been decorrelated.
var ErrNoDecorrelatedSamples = errors.New("no decorrelated samples available")

// ErrCheckpointNotFound is returned when a run checkpoint does not exist
// in the checkpoint store.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// ScheduleError reports a schedule construction failure: an interpolation
// function that violates the endpoint or monotonicity contract, or an
// unknown term. It is fatal and halts construction.
type ScheduleError struct {
	Term   Term
	Reason string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("schedule term %q: %s", e.Term, e.Reason)
}

// ConsistencyError reports a programming or data error upstream, such as a
// decorrelation index that does not resolve to exactly one trajectory file
// or an end-state outside {0, 1}. It is fatal and must stop the run.
type ConsistencyError struct {
	Op     string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error in %s: %s", e.Op, e.Detail)
}

// ConfigurationError reports an unsupported configuration detected at
// construction time, such as requesting shadow-work measurement on an
// integrator that cannot provide it. It is fatal.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %q: %s", e.Field, e.Reason)
}

// TaskFailure is the failure payload of a TaskOutcome. It carries enough
// context to reproduce the failing unit of work.
type TaskFailure struct {
	Phase     Phase
	Particle  int
	Direction Direction
	Step      int
	Err       error
}

func (f *TaskFailure) Error() string {
	return fmt.Sprintf("%s task failed (particle=%d direction=%s step=%d): %v",
		f.Phase, f.Particle, f.Direction, f.Step, f.Err)
}

func (f *TaskFailure) Unwrap() error { return f.Err }
