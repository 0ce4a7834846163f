package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/anneal/pkg/annealing"
	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/equilibration"
	"github.com/aretw0/anneal/pkg/ports"
)

// AISRequest describes one annealed-importance-sampling batch.
type AISRequest struct {
	// Particles is the number of independent switching trajectories per
	// direction.
	Particles int

	// ScheduleLength is the number of lambda values in each protocol,
	// N >= 2; each particle reports N-1 incremental work values.
	ScheduleLength int

	Directions []domain.Direction

	// StepsPerMove is the number of integrator steps per schedule step.
	StepsPerMove int

	// SaveTrajectories names a protocol trajectory per particle. Requires
	// a save interval on the orchestrator.
	SaveTrajectories bool
}

// RunAIS fans annealing work out across a pool of persistent actors, one
// annealing worker per actor, and folds the gathered incremental-work
// sequences into the ledger in submission order, so ledger row i always
// corresponds to particle i of its batch.
//
// Each particle starts from a decorrelated snapshot of the end-state its
// direction departs from; the corresponding pool must have been
// decorrelated first.
func (o *Orchestrator) RunAIS(ctx context.Context, req AISRequest) error {
	if req.Particles <= 0 {
		return &domain.ConfigurationError{Field: "particles", Reason: "particle count must be positive"}
	}
	if req.ScheduleLength < 2 {
		return &domain.ConfigurationError{
			Field:  "schedule_length",
			Reason: fmt.Sprintf("schedule length %d is below the minimum of 2", req.ScheduleLength),
		}
	}
	if len(req.Directions) == 0 {
		return &domain.ConfigurationError{Field: "directions", Reason: "at least one direction is required"}
	}
	if req.SaveTrajectories && o.saveInterval <= 0 {
		return &domain.ConfigurationError{
			Field:  "save_interval",
			Reason: "protocol trajectories were requested but no save interval is set",
		}
	}
	for _, d := range req.Directions {
		if !d.Valid() {
			return &domain.ConsistencyError{
				Op:     "annealing",
				Detail: fmt.Sprintf("direction %q is not forward or reverse", d),
			}
		}
		o.mu.Lock()
		pool := o.decorrelated[d.StartEndstate()]
		o.mu.Unlock()
		if pool == nil || len(pool.Indices) == 0 {
			return fmt.Errorf("end-state %d: %w", int(d.StartEndstate()), domain.ErrNoDecorrelatedSamples)
		}
	}

	o.setPhase(domain.RunAnnealing)
	defer o.setPhase(domain.RunIdle)

	actors, err := o.launchWorkers(min(o.exec.Size(), req.Particles))
	if err != nil {
		return err
	}
	defer o.releaseWorkers(ctx, actors)

	for _, direction := range req.Directions {
		if err := o.runDirection(ctx, actors, direction, req); err != nil {
			return err
		}
	}
	return nil
}

// launchWorkers places one initialized annealing worker on each of n
// actors. The worker's execution context is created inside the factory,
// on the actor's own goroutine, and stays private to it.
func (o *Orchestrator) launchWorkers(n int) ([]ports.ActorRef, error) {
	actors := make([]ports.ActorRef, 0, n)
	for i := 0; i < n; i++ {
		ref, err := o.exec.LaunchActor(func() (any, error) {
			w := annealing.NewWorker(o.system, o.store, annealing.WithLogger(o.logger))
			err := w.Initialize(annealing.InitConfig{
				Template:     o.thermo.Clone(),
				Schedule:     o.schedule,
				Integrator:   o.integrator,
				SaveInterval: o.saveInterval,
				AtomSubset:   o.atomSubset,
			})
			if err != nil {
				return nil, err
			}
			return w, nil
		})
		if err != nil {
			for _, launched := range actors {
				launched.Release()
			}
			return nil, fmt.Errorf("launching annealing worker %d: %w", i, err)
		}
		actors = append(actors, ref)
	}
	o.logger.Debug("annealing workers launched", "actors", n)
	return actors, nil
}

// releaseWorkers closes every worker's execution context on its own
// actor, then tears the actors down.
func (o *Orchestrator) releaseWorkers(ctx context.Context, actors []ports.ActorRef) {
	futures := make([]ports.Future, 0, len(actors))
	for _, ref := range actors {
		futures = append(futures, ref.Submit(ctx, func(_ context.Context, actor any) domain.TaskOutcome {
			if w, ok := actor.(*annealing.Worker); ok {
				w.Close()
			}
			return domain.Succeed(nil)
		}))
	}
	o.exec.Wait(ctx, futures)
	for _, ref := range actors {
		ref.Release()
	}
}

// partition splits particles across actors near-evenly, with the
// remainder assigned to the last actor.
func partition(particles, actors int) []int {
	counts := make([]int, actors)
	base := particles / actors
	for i := range counts {
		counts[i] = base
	}
	counts[actors-1] += particles % actors
	return counts
}

// actorFor maps a particle index to its actor under the partition.
func actorFor(particle int, counts []int) int {
	for a, n := range counts {
		if particle < n {
			return a
		}
		particle -= n
	}
	return len(counts) - 1
}

func (o *Orchestrator) runDirection(ctx context.Context, actors []ports.ActorRef, direction domain.Direction, req AISRequest) error {
	lambdas := domain.Linspace(req.ScheduleLength, direction)
	counts := partition(req.Particles, len(actors))

	o.mu.Lock()
	pool := o.decorrelated[direction.StartEndstate()]
	o.mu.Unlock()

	batchBegin := time.Now()
	futures := make([]ports.Future, req.Particles)
	tasks := make([]domain.AnnealingTask, req.Particles)
	for i := 0; i < req.Particles; i++ {
		start, err := o.drawStart(ctx, pool)
		if err != nil {
			return fmt.Errorf("particle %d %s: %w", i, direction, err)
		}

		o.mu.Lock()
		job := o.totalJobs
		o.totalJobs++
		o.mu.Unlock()

		task := domain.AnnealingTask{
			Particle:     i,
			Direction:    direction,
			Lambdas:      lambdas,
			Start:        start,
			StepsPerMove: req.StepsPerMove,
		}
		if req.SaveTrajectories {
			task.TrajectoryName = fmt.Sprintf("%s.neq.%s.iteration_%04d", o.prefix, direction, job)
		}
		tasks[i] = task

		o.emitTaskStart(ctx, &domain.TaskEvent{
			Phase:     domain.PhaseAnnealing,
			Particle:  i,
			Direction: direction,
		})
		futures[i] = o.submitAnneal(ctx, actors[actorFor(i, counts)], task)
	}

	outcomes := o.exec.Gather(ctx, futures)

	failures := 0
	for i, outcome := range outcomes {
		if outcome.Failed() && o.policy == RetryOnce {
			failure := outcome.Failure()
			o.logger.Warn("annealing task failed, retrying once",
				"particle", i,
				"direction", direction,
				"step", failure.Step,
				"error", failure.Err)
			retry := o.submitAnneal(ctx, actors[actorFor(i, counts)], tasks[i])
			outcome = retry.Await(ctx)
		}
		event := &domain.TaskEvent{
			Phase:     domain.PhaseAnnealing,
			Particle:  i,
			Direction: direction,
		}

		if outcome.Failed() {
			failures++
			failure := outcome.Failure()
			event.Err = failure
			o.emitTaskDone(ctx, event)
			if o.policy == AbortOnFailure {
				o.finishDirection(ctx, direction, len(outcomes), failures, batchBegin)
				return fmt.Errorf("annealing batch aborted: %w", failure)
			}
			o.logger.Error("annealing particle dropped",
				"particle", i,
				"direction", direction,
				"step", failure.Step,
				"error", failure.Err)
			continue
		}

		result, ok := outcome.Value().(domain.AnnealingResult)
		if !ok {
			return &domain.ConsistencyError{
				Op:     "annealing",
				Detail: fmt.Sprintf("gathered outcome %d is not an annealing result", i),
			}
		}
		if len(result.IncrementalWork) != req.ScheduleLength-1 {
			return &domain.ConsistencyError{
				Op: "annealing",
				Detail: fmt.Sprintf("particle %d returned %d work values, want %d",
					i, len(result.IncrementalWork), req.ScheduleLength-1),
			}
		}

		o.mu.Lock()
		o.ledger.Append(direction, result.IncrementalWork)
		o.mu.Unlock()
		o.emitTaskDone(ctx, event)
	}

	o.mu.Lock()
	o.failures[direction] += failures
	o.mu.Unlock()

	o.finishDirection(ctx, direction, len(outcomes), failures, batchBegin)
	return nil
}

func (o *Orchestrator) drawStart(ctx context.Context, pool *equilibration.Decorrelated) (*domain.SamplerState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return equilibration.DrawSnapshot(ctx, o.rng, pool, o.store)
}

func (o *Orchestrator) submitAnneal(ctx context.Context, actor ports.ActorRef, task domain.AnnealingTask) ports.Future {
	return actor.Submit(ctx, func(ctx context.Context, a any) domain.TaskOutcome {
		w, ok := a.(*annealing.Worker)
		if !ok {
			return domain.Fail(&domain.TaskFailure{
				Phase:     domain.PhaseAnnealing,
				Particle:  task.Particle,
				Direction: task.Direction,
				Err:       fmt.Errorf("actor does not hold an annealing worker"),
			})
		}
		return w.Anneal(ctx, task)
	})
}

func (o *Orchestrator) finishDirection(ctx context.Context, direction domain.Direction, size, failures int, begin time.Time) {
	o.emitBatchDone(ctx, &domain.BatchEvent{
		Phase:    domain.PhaseAnnealing,
		Size:     size,
		Failures: failures,
		Duration: time.Since(begin),
	})
	o.logger.Info("annealing batch complete",
		"direction", direction,
		"particles", size,
		"failures", failures,
		"effective_samples", size-failures)
}
