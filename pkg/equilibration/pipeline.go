// Package equilibration runs equilibrium sampling at a fixed end-state:
// burn-in plus production moves, chunked trajectory persistence, and the
// statistical decorrelation that turns a correlated series into an
// approximately independent sample pool.
package equilibration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// DefaultMaxChunkBytes is the buffered-frame threshold that triggers a
// chunk flush when the task does not specify one.
const DefaultMaxChunkBytes = 1024 * 1024

// Pipeline runs equilibrium sampling tasks. It is stateless between calls;
// everything that must persist across calls (the file counter, collected
// potentials) travels through the task and result.
type Pipeline struct {
	system ports.System
	store  ports.TrajectoryStore
	integ  ports.IntegratorSpec
	logger *slog.Logger
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline bound to a physics engine, a trajectory
// store, and the equilibrium integrator parameters.
func NewPipeline(system ports.System, store ports.TrajectoryStore, integ ports.IntegratorSpec, opts ...Option) *Pipeline {
	p := &Pipeline{
		system: system,
		store:  store,
		integ:  integ,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// chunkName derives the file name of one flushed chunk from the task's
// base name and the explicit counter.
func chunkName(base string, index int) string {
	return fmt.Sprintf("%s.%04d", base, index)
}

// Run executes one equilibrium sampling task: Iterations atomic moves of
// StepsPerIteration integrator steps each, recording the reduced potential
// after every move and flushing buffered frames whenever their estimated
// size crosses the task's byte threshold. Any non-empty remainder is
// flushed as a final chunk.
func (p *Pipeline) Run(ctx context.Context, task domain.EquilibriumTask) (domain.EquilibriumResult, error) {
	result := domain.EquilibriumResult{
		Endstate:      task.Endstate,
		NextFileIndex: task.NextFileIndex,
	}
	if task.Iterations <= 0 {
		return result, fmt.Errorf("equilibration: iterations %d must be positive", task.Iterations)
	}
	if task.StepsPerIteration <= 0 {
		return result, fmt.Errorf("equilibration: steps per iteration %d must be positive", task.StepsPerIteration)
	}
	maxBytes := task.MaxChunkBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkBytes
	}

	exe, err := p.system.NewContext(task.State, p.integ)
	if err != nil {
		return result, fmt.Errorf("equilibration: acquiring context: %w", err)
	}
	defer exe.Release()

	if err := exe.SetState(task.Start); err != nil {
		return result, fmt.Errorf("equilibration: loading start state: %w", err)
	}
	if task.Minimize {
		if err := exe.Minimize(100); err != nil {
			return result, fmt.Errorf("equilibration: minimizing: %w", err)
		}
	}
	if err := exe.ResampleVelocities(task.State.Temperature); err != nil {
		return result, fmt.Errorf("equilibration: resampling velocities: %w", err)
	}

	var (
		buffer      []domain.Frame
		bufferBytes int
	)
	flush := func() error {
		if len(buffer) == 0 || task.TrajectoryName == "" {
			return nil
		}
		name := chunkName(task.TrajectoryName, result.NextFileIndex)
		if err := p.store.Append(ctx, name, buffer); err != nil {
			return fmt.Errorf("equilibration: flushing chunk %s: %w", name, err)
		}
		result.Files = append(result.Files, domain.FileRecord{Name: name, Snapshots: len(buffer)})
		result.NextFileIndex++
		// The buffer is cleared only after a successful flush.
		buffer = buffer[:0]
		bufferBytes = 0
		return nil
	}

	for iteration := 0; iteration < task.Iterations; iteration++ {
		start := time.Now()
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := exe.Step(task.StepsPerIteration); err != nil {
			return result, fmt.Errorf("equilibration: iteration %d: %w", iteration, err)
		}
		energy, err := exe.PotentialEnergy()
		if err != nil {
			return result, fmt.Errorf("equilibration: iteration %d: reading energy: %w", iteration, err)
		}
		result.ReducedPotentials = append(result.ReducedPotentials, task.State.ReducedPotential(energy))

		if task.TrajectoryName != "" {
			state, err := exe.State()
			if err != nil {
				return result, fmt.Errorf("equilibration: iteration %d: extracting state: %w", iteration, err)
			}
			frame := domain.FrameOf(state, task.AtomSubset)
			buffer = append(buffer, frame)
			bufferBytes += frame.EstimatedBytes()
			if bufferBytes > maxBytes {
				if err := flush(); err != nil {
					return result, err
				}
			}
		}
		if task.Timer {
			result.Timings = append(result.Timings, time.Since(start))
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	final, err := exe.State()
	if err != nil {
		return result, fmt.Errorf("equilibration: extracting final state: %w", err)
	}
	result.Final = final
	p.logger.Debug("equilibration task done",
		"endstate", int(task.Endstate),
		"iterations", task.Iterations,
		"chunks", len(result.Files),
		"next_file_index", result.NextFileIndex)
	return result, nil
}
