package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/equilibration"
	"github.com/aretw0/anneal/pkg/ports"
)

// EquilibrateRequest describes one equilibration phase across one or both
// end-states.
type EquilibrateRequest struct {
	Endstates         []domain.Endstate
	Iterations        int
	StepsPerIteration int

	// Decorrelate runs burn-in detection and subsampling on the full
	// per-end-state potential series after the batch merges.
	Decorrelate bool

	// Timer records per-iteration wall time in the results.
	Timer bool
}

// Equilibrate runs one equilibrium sampling batch. Tasks for distinct
// end-states run concurrently on the executor; results merge back into
// the per-end-state running totals in submission order, appending and
// never replacing prior history.
//
// Every end-state is validated before anything is dispatched.
func (o *Orchestrator) Equilibrate(ctx context.Context, req EquilibrateRequest) error {
	if len(req.Endstates) == 0 {
		return &domain.ConfigurationError{Field: "endstates", Reason: "at least one end-state is required"}
	}
	if req.Iterations <= 0 || req.StepsPerIteration <= 0 {
		return &domain.ConfigurationError{
			Field:  "iterations",
			Reason: "iterations and steps per iteration must be positive",
		}
	}
	for _, e := range req.Endstates {
		if err := e.Validate(); err != nil {
			return err
		}
		o.mu.Lock()
		seeded := o.samplers[e] != nil
		o.mu.Unlock()
		if !seeded {
			return &domain.ConsistencyError{
				Op:     "equilibrate",
				Detail: fmt.Sprintf("end-state %d has no seeded sampler state", int(e)),
			}
		}
	}

	o.setPhase(domain.RunEquilibrating)
	defer o.setPhase(domain.RunIdle)

	pipeline := equilibration.NewPipeline(o.system, o.store, o.integrator, equilibration.WithLogger(o.logger))

	tasks := make([]ports.Task, len(req.Endstates))
	durations := make([]time.Duration, len(req.Endstates))
	for i, e := range req.Endstates {
		state := o.thermo.Clone()
		state.ApplyProgress(o.schedule, e.Progress())

		o.mu.Lock()
		task := domain.EquilibriumTask{
			Endstate:          e,
			State:             state,
			Start:             o.samplers[e].Clone(),
			Iterations:        req.Iterations,
			StepsPerIteration: req.StepsPerIteration,
			TrajectoryName:    fmt.Sprintf("%s.eq.lambda_%d", o.prefix, int(e)),
			AtomSubset:        o.atomSubset,
			MaxChunkBytes:     o.maxChunk,
			NextFileIndex:     o.nextFileIndex[e],
			Timer:             req.Timer,
		}
		o.mu.Unlock()

		idx := i
		tasks[i] = func(ctx context.Context) domain.TaskOutcome {
			begin := time.Now()
			result, err := pipeline.Run(ctx, task)
			durations[idx] = time.Since(begin)
			if err != nil {
				return domain.Fail(&domain.TaskFailure{
					Phase: domain.PhaseEquilibration,
					Err:   err,
				})
			}
			return domain.Succeed(result)
		}

		o.emitTaskStart(ctx, &domain.TaskEvent{Phase: domain.PhaseEquilibration, Endstate: e})
	}

	batchBegin := time.Now()
	outcomes := o.exec.Gather(ctx, o.exec.Deploy(ctx, tasks))

	batchFailures := 0
	for i, outcome := range outcomes {
		if outcome.Failed() && o.policy == RetryOnce {
			o.logger.Warn("equilibration task failed, retrying once",
				"endstate", int(req.Endstates[i]), "error", outcome.Failure().Err)
			outcome = tasks[i](ctx)
		}
		e := req.Endstates[i]
		event := &domain.TaskEvent{
			Phase:    domain.PhaseEquilibration,
			Endstate: e,
			Duration: durations[i],
		}

		if outcome.Failed() {
			batchFailures++
			event.Err = outcome.Failure()
			o.emitTaskDone(ctx, event)
			if o.policy == AbortOnFailure {
				o.emitBatchDone(ctx, &domain.BatchEvent{
					Phase:    domain.PhaseEquilibration,
					Size:     len(outcomes),
					Failures: batchFailures,
					Duration: time.Since(batchBegin),
				})
				return fmt.Errorf("equilibration batch aborted: %w", outcome.Failure())
			}
			o.logger.Error("equilibration task dropped",
				"endstate", int(e), "error", outcome.Failure().Err)
			continue
		}

		result, ok := outcome.Value().(domain.EquilibriumResult)
		if !ok {
			return &domain.ConsistencyError{
				Op:     "equilibrate",
				Detail: fmt.Sprintf("gathered outcome %d is not an equilibrium result", i),
			}
		}
		o.mergeEquilibrium(e, result)
		o.emitTaskDone(ctx, event)
	}

	o.emitBatchDone(ctx, &domain.BatchEvent{
		Phase:    domain.PhaseEquilibration,
		Size:     len(outcomes),
		Failures: batchFailures,
		Duration: time.Since(batchBegin),
	})

	if !req.Decorrelate {
		return nil
	}
	for _, e := range req.Endstates {
		if err := o.decorrelateEndstate(e); err != nil {
			return err
		}
	}
	return nil
}

// mergeEquilibrium folds one result into the per-end-state running
// totals: potentials and file records append, the sampler state and the
// file counter advance.
func (o *Orchestrator) mergeEquilibrium(e domain.Endstate, result domain.EquilibriumResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.potentials[e] = append(o.potentials[e], result.ReducedPotentials...)
	o.files[e] = append(o.files[e], result.Files...)
	o.nextFileIndex[e] = result.NextFileIndex
	if result.Final != nil {
		o.samplers[e] = result.Final
	}
}

// decorrelateEndstate recomputes the decorrelated sample table for one
// end-state over everything collected so far.
func (o *Orchestrator) decorrelateEndstate(e domain.Endstate) error {
	o.mu.Lock()
	potentials := o.potentials[e]
	files := o.files[e]
	o.mu.Unlock()

	d, err := equilibration.Decorrelate(o.estimator, potentials, files)
	if err != nil {
		return fmt.Errorf("decorrelating end-state %d: %w", int(e), err)
	}
	o.mu.Lock()
	o.decorrelated[e] = d
	o.mu.Unlock()

	o.logger.Info("end-state decorrelated",
		"endstate", int(e),
		"cutoff", d.Cutoff,
		"inefficiency", d.Inefficiency,
		"retained", len(d.Indices))
	return nil
}

func (o *Orchestrator) emitTaskStart(ctx context.Context, e *domain.TaskEvent) {
	if o.hooks.OnTaskStart != nil {
		o.hooks.OnTaskStart(ctx, e)
	}
}

func (o *Orchestrator) emitTaskDone(ctx context.Context, e *domain.TaskEvent) {
	if o.hooks.OnTaskDone != nil {
		o.hooks.OnTaskDone(ctx, e)
	}
}

func (o *Orchestrator) emitBatchDone(ctx context.Context, e *domain.BatchEvent) {
	if o.hooks.OnBatchDone != nil {
		o.hooks.OnBatchDone(ctx, e)
	}
}
