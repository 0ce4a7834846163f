package domain

import (
	"context"
	"time"
)

// TaskEvent describes one unit of work starting or finishing.
type TaskEvent struct {
	Phase     Phase
	Endstate  Endstate
	Particle  int
	Direction Direction
	Duration  time.Duration
	Err       error
}

// BatchEvent describes a completed dispatch phase.
type BatchEvent struct {
	Phase    Phase
	Size     int
	Failures int
	Duration time.Duration
}

// LifecycleHooks defines callbacks for run observability. All hooks are
// optional and are invoked from the orchestrating goroutine between
// dispatch phases, never concurrently.
type LifecycleHooks struct {
	OnTaskStart func(context.Context, *TaskEvent)
	OnTaskDone  func(context.Context, *TaskEvent)
	OnBatchDone func(context.Context, *BatchEvent)
}

// Merge combines two hook sets; both callbacks fire when both are set.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTaskStart: chainTask(h.OnTaskStart, other.OnTaskStart),
		OnTaskDone:  chainTask(h.OnTaskDone, other.OnTaskDone),
		OnBatchDone: chainBatch(h.OnBatchDone, other.OnBatchDone),
	}
}

func chainTask(a, b func(context.Context, *TaskEvent)) func(context.Context, *TaskEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *TaskEvent) { a(ctx, e); b(ctx, e) }
}

func chainBatch(a, b func(context.Context, *BatchEvent)) func(context.Context, *BatchEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *BatchEvent) { a(ctx, e); b(ctx, e) }
}

// RunPhase is the externally visible coarse state of a run.
type RunPhase string

const (
	RunIdle          RunPhase = "idle"
	RunEquilibrating RunPhase = "equilibrating"
	RunAnnealing     RunPhase = "annealing"
	RunDone          RunPhase = "done"
)

// DirectionStatus summarises collected work for one direction.
type DirectionStatus struct {
	Particles   int      `json:"particles"`
	Failures    int      `json:"failures"`
	Estimate    *float64 `json:"estimate,omitempty"`
	Uncertainty *float64 `json:"uncertainty,omitempty"`
}

// RunStatus is the snapshot served by the status HTTP adapter.
type RunStatus struct {
	Phase         RunPhase                        `json:"phase"`
	Schedule      ScheduleKind                    `json:"schedule"`
	Temperature   float64                         `json:"temperature"`
	Equilibrium   map[string]int                  `json:"equilibrium_samples"`
	Directions    map[Direction]*DirectionStatus  `json:"directions"`
	Bidirectional *DirectionStatus                `json:"bidirectional,omitempty"`
}
