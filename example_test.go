package anneal_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/anneal"
	"github.com/aretw0/anneal/pkg/adapters/harmonic"
	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/executor"
	"github.com/aretw0/anneal/pkg/orchestrator"
)

// ExampleNew runs a complete free-energy cycle on the bundled harmonic
// test system: equilibrium sampling with decorrelation, forward
// switching, and estimation.
func ExampleNew() {
	schedule, err := domain.NewSchedule(domain.ScheduleDefault)
	if err != nil {
		log.Fatal(err)
	}
	system := harmonic.New(harmonic.DefaultConfig())

	eng, err := anneal.New(system, schedule, 300.0,
		anneal.WithExecutor(executor.NewInline()),
		anneal.WithOrchestratorOptions(orchestrator.WithSeed(42)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	ctx := context.Background()
	for _, e := range []domain.Endstate{0, 1} {
		if err := eng.SetEndstateSampler(e, system.InitialState()); err != nil {
			log.Fatal(err)
		}
	}

	if err := eng.Equilibrate(ctx, orchestrator.EquilibrateRequest{
		Endstates:         []domain.Endstate{0, 1},
		Iterations:        80,
		StepsPerIteration: 2,
		Decorrelate:       true,
	}); err != nil {
		log.Fatal(err)
	}

	if err := eng.RunAIS(ctx, orchestrator.AISRequest{
		Particles:      2,
		ScheduleLength: 6,
		Directions:     []domain.Direction{domain.DirectionForward},
	}); err != nil {
		log.Fatal(err)
	}

	if _, err := eng.ComputeFreeEnergy(); err != nil {
		log.Fatal(err)
	}

	status := eng.Status()
	fmt.Println(status.Phase)
	fmt.Println(status.Equilibrium["0"])
	fmt.Println(status.Directions[domain.DirectionForward].Particles)
	// Output:
	// done
	// 80
	// 2
}
