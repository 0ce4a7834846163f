/*
Package anneal estimates free-energy differences between two thermodynamic
end-states by nonequilibrium switching and annealed importance sampling
(AIS), distributing the workload across a pool of parallel workers.

It implements the orchestration layer of the calculation: the lambda
interpolation schedule, equilibrium sampling with chunked trajectory
persistence and statistical decorrelation, the annealing-worker protocol
that accumulates dissipated work along a switching trajectory, and the
executor abstraction that runs the same logic inline or on a worker pool.

# Concept

The physics engine, the trajectory format and the statistical estimators
are external collaborators behind small interfaces in pkg/ports. This
Hexagonal Architecture lets the same orchestration drive an analytic toy
system in tests and a full molecular-mechanics engine in production.

# Key Features

  - Validated lambda schedules: preset or user-defined per-term
    interpolation functions, checked for exact endpoints and monotonicity.
  - Explicit work accounting: work is the reduced-potential jump at each
    parameter switch, never accumulated through relaxation.
  - Tagged task outcomes: a failing particle is a value in the gathered
    batch, not a crashed run; failure policies decide what happens next.
  - Backend-agnostic execution: inline and pooled executors share one
    contract and produce identical results for identical inputs.

# Usage

Assemble an Engine around a physics system and a schedule:

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/anneal"
		"github.com/aretw0/anneal/pkg/adapters/harmonic"
		"github.com/aretw0/anneal/pkg/domain"
		"github.com/aretw0/anneal/pkg/orchestrator"
	)

	func main() {
		schedule, err := domain.NewSchedule(domain.ScheduleDefault)
		if err != nil {
			log.Fatal(err)
		}

		system := harmonic.New(harmonic.DefaultConfig())
		eng, err := anneal.New(system, schedule, 300.0)
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		ctx := context.Background()
		eng.SetEndstateSampler(0, system.InitialState())
		eng.SetEndstateSampler(1, system.InitialState())

		if err := eng.Equilibrate(ctx, orchestrator.EquilibrateRequest{
			Endstates:         []domain.Endstate{0, 1},
			Iterations:        200,
			StepsPerIteration: 10,
			Decorrelate:       true,
		}); err != nil {
			log.Fatal(err)
		}

		if err := eng.RunAIS(ctx, orchestrator.AISRequest{
			Particles:      8,
			ScheduleLength: 24,
			Directions:     []domain.Direction{domain.DirectionForward, domain.DirectionReverse},
		}); err != nil {
			log.Fatal(err)
		}

		summary, err := eng.ComputeFreeEnergy()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("dF = %.3f kT", summary.Bidirectional.Value)
	}
*/
package anneal
