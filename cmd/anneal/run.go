package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/anneal"
	"github.com/aretw0/anneal/internal/config"
	"github.com/aretw0/anneal/internal/logging"
	"github.com/aretw0/anneal/internal/report"
	"github.com/aretw0/anneal/pkg/adapters/disk"
	"github.com/aretw0/anneal/pkg/adapters/harmonic"
	annealhttp "github.com/aretw0/anneal/pkg/adapters/http"
	"github.com/aretw0/anneal/pkg/adapters/redis"
	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/executor"
	"github.com/aretw0/anneal/pkg/observability"
	"github.com/aretw0/anneal/pkg/orchestrator"
	"github.com/aretw0/anneal/pkg/ports"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Equilibrate both end-states and run the switching protocol",
	Long: `Run executes a full cycle on the built-in harmonic test system:
minimization, equilibrium sampling with decorrelation, nonequilibrium
switching in the configured directions and free energy estimation. The
result is printed as a terminal report.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("serve", false, "Expose status and metrics over HTTP while running")
	runCmd.Flags().Bool("plain", false, "Print the report as raw markdown")
	rootCmd.AddCommand(runCmd)
}

func loadConfig(cmd *cobra.Command) (config.RunConfig, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.RunConfig{}, err
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(slog.LevelInfo)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	ctx := cmd.Context()

	schedule, err := domain.NewSchedule(domain.ScheduleKind(cfg.Schedule))
	if err != nil {
		return fmt.Errorf("building schedule: %w", err)
	}
	system := harmonic.New(harmonic.DefaultConfig())

	exec, err := buildExecutor(cfg.Executor, logger)
	if err != nil {
		return err
	}
	defer exec.Close()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	opts := []anneal.Option{
		anneal.WithLogger(logger),
		anneal.WithExecutor(exec),
		anneal.WithLifecycleHooks(metrics.Hooks()),
		anneal.WithOrchestratorOptions(
			orchestrator.WithTrajectoryPrefix(cfg.Trajectory.Prefix),
			orchestrator.WithIntegrator(ports.IntegratorSpec{
				TimestepFS:          cfg.Integrator.TimestepFS,
				CollisionRate:       cfg.Integrator.CollisionRate,
				Splitting:           cfg.Integrator.Splitting,
				ConstraintTolerance: cfg.Integrator.ConstraintTolerance,
				MeasureShadowWork:   cfg.Integrator.MeasureShadowWork,
			}),
		),
	}
	if cfg.Annealing.SaveInterval > 0 {
		opts = append(opts, anneal.WithOrchestratorOptions(
			orchestrator.WithSaveInterval(cfg.Annealing.SaveInterval)))
	}
	if len(cfg.Trajectory.AtomSubset) > 0 {
		opts = append(opts, anneal.WithOrchestratorOptions(
			orchestrator.WithAtomSubset(cfg.Trajectory.AtomSubset)))
	}
	if cfg.Trajectory.MaxChunkBytes > 0 {
		opts = append(opts, anneal.WithOrchestratorOptions(
			orchestrator.WithMaxChunkBytes(cfg.Trajectory.MaxChunkBytes)))
	}
	if cfg.Trajectory.Directory != "" {
		store, err := disk.NewStore(cfg.Trajectory.Directory)
		if err != nil {
			return fmt.Errorf("opening trajectory store: %w", err)
		}
		opts = append(opts, anneal.WithTrajectoryStore(store))
	}

	eng, err := anneal.New(system, schedule, cfg.Temperature, opts...)
	if err != nil {
		return err
	}
	defer eng.Close()

	if serve, _ := cmd.Flags().GetBool("serve"); serve {
		handler := annealhttp.NewHandler(eng.Orchestrator(), annealhttp.WithRegistry(registry))
		go func() {
			logger.Info("serving status", "address", cfg.Serve.Address)
			if err := http.ListenAndServe(cfg.Serve.Address, handler); err != nil {
				logger.Error("status server stopped", "err", err)
			}
		}()
	}

	start := system.InitialState()
	for _, e := range []domain.Endstate{0, 1} {
		if err := eng.SetEndstateSampler(e, start); err != nil {
			return err
		}
	}
	if cfg.Equilibration.Minimize {
		if err := eng.MinimizeEndstates(ctx); err != nil {
			return fmt.Errorf("minimizing end-states: %w", err)
		}
	}

	if err := eng.Equilibrate(ctx, orchestrator.EquilibrateRequest{
		Endstates:         []domain.Endstate{0, 1},
		Iterations:        cfg.Equilibration.Iterations,
		StepsPerIteration: cfg.Equilibration.StepsPerIteration,
		Decorrelate:       true,
	}); err != nil {
		return fmt.Errorf("equilibrating: %w", err)
	}

	if err := eng.RunAIS(ctx, orchestrator.AISRequest{
		Particles:        cfg.Annealing.Particles,
		ScheduleLength:   cfg.Annealing.ScheduleLength,
		Directions:       cfg.Annealing.DirectionValues(),
		StepsPerMove:     cfg.Annealing.StepsPerMove,
		SaveTrajectories: cfg.Annealing.SaveInterval > 0,
	}); err != nil {
		return fmt.Errorf("annealing: %w", err)
	}

	summary, err := eng.ComputeFreeEnergy()
	if err != nil {
		return fmt.Errorf("estimating: %w", err)
	}

	if cfg.Redis.Address != "" {
		if err := saveCheckpoint(cmd, cfg, eng); err != nil {
			logger.Error("checkpoint save failed", "err", err)
		}
	}

	md := report.Markdown(eng.Status(), summary)
	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	render := report.NewRenderer()
	out, err := render(md)
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func buildExecutor(cfg config.ExecutorConfig, logger *slog.Logger) (ports.Executor, error) {
	switch cfg.Backend {
	case "inline":
		return executor.NewInline(), nil
	case "pool", "":
		workers := cfg.Workers
		if workers <= 0 {
			workers = 1
		}
		return executor.NewPool(workers, executor.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown executor backend %q", cfg.Backend)
	}
}

func saveCheckpoint(cmd *cobra.Command, cfg config.RunConfig, eng *anneal.Engine) error {
	runID := cfg.Redis.RunID
	if runID == "" {
		runID = cfg.Trajectory.Prefix
	}
	store := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer store.Close()
	return store.Save(cmd.Context(), runID, eng.Checkpoint())
}
