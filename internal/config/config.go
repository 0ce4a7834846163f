// Package config loads the run configuration file. Values are plain
// knobs with range checks only; all semantic validation lives in the
// packages that consume them.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/anneal/pkg/domain"
)

// RunConfig is the full configuration surface of a run.
type RunConfig struct {
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	Schedule    string  `yaml:"schedule" mapstructure:"schedule"`

	Integrator IntegratorConfig `yaml:"integrator" mapstructure:"integrator"`

	Equilibration EquilibrationConfig `yaml:"equilibration" mapstructure:"equilibration"`
	Annealing     AnnealingConfig     `yaml:"annealing" mapstructure:"annealing"`

	Trajectory TrajectoryConfig `yaml:"trajectory" mapstructure:"trajectory"`
	Executor   ExecutorConfig   `yaml:"executor" mapstructure:"executor"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Serve      ServeConfig      `yaml:"serve" mapstructure:"serve"`
}

type IntegratorConfig struct {
	TimestepFS          float64 `yaml:"timestep_fs" mapstructure:"timestep_fs"`
	CollisionRate       float64 `yaml:"collision_rate" mapstructure:"collision_rate"`
	Splitting           string  `yaml:"splitting" mapstructure:"splitting"`
	ConstraintTolerance float64 `yaml:"constraint_tolerance" mapstructure:"constraint_tolerance"`
	MeasureShadowWork   bool    `yaml:"measure_shadow_work" mapstructure:"measure_shadow_work"`
}

type EquilibrationConfig struct {
	Iterations        int  `yaml:"iterations" mapstructure:"iterations"`
	StepsPerIteration int  `yaml:"steps_per_iteration" mapstructure:"steps_per_iteration"`
	Minimize          bool `yaml:"minimize" mapstructure:"minimize"`
}

type AnnealingConfig struct {
	Particles      int      `yaml:"particles" mapstructure:"particles"`
	ScheduleLength int      `yaml:"schedule_length" mapstructure:"schedule_length"`
	StepsPerMove   int      `yaml:"steps_per_move" mapstructure:"steps_per_move"`
	Directions     []string `yaml:"directions" mapstructure:"directions"`
	SaveInterval   int      `yaml:"save_interval" mapstructure:"save_interval"`
}

type TrajectoryConfig struct {
	Directory     string `yaml:"directory" mapstructure:"directory"`
	Prefix        string `yaml:"prefix" mapstructure:"prefix"`
	MaxChunkBytes int    `yaml:"max_chunk_bytes" mapstructure:"max_chunk_bytes"`
	AtomSubset    []int  `yaml:"atom_subset" mapstructure:"atom_subset"`
}

type ExecutorConfig struct {
	// Backend selects "inline" or "pool".
	Backend string `yaml:"backend" mapstructure:"backend"`
	Workers int    `yaml:"workers" mapstructure:"workers"`

	// Adaptive requests on-demand pool scaling. The annealing actors
	// hold per-worker integration contexts, so scaling mid-run is
	// rejected.
	Adaptive bool `yaml:"adaptive" mapstructure:"adaptive"`
}

type RedisConfig struct {
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	RunID    string `yaml:"run_id" mapstructure:"run_id"`
}

type ServeConfig struct {
	Address string `yaml:"address" mapstructure:"address"`
}

// Default returns the configuration used when no file is given.
func Default() RunConfig {
	return RunConfig{
		Temperature: 300.0,
		Schedule:    "default",
		Integrator: IntegratorConfig{
			TimestepFS:    2.0,
			CollisionRate: 1.0,
			Splitting:     "V R O R V",
		},
		Equilibration: EquilibrationConfig{
			Iterations:        100,
			StepsPerIteration: 10,
			Minimize:          true,
		},
		Annealing: AnnealingConfig{
			Particles:      8,
			ScheduleLength: 24,
			StepsPerMove:   1,
			Directions:     []string{"forward", "reverse"},
		},
		Trajectory: TrajectoryConfig{
			Prefix: "run",
		},
		Executor: ExecutorConfig{
			Backend: "pool",
			Workers: 4,
		},
		Serve: ServeConfig{
			Address: ":8080",
		},
	}
}

// Load reads a YAML configuration file over the defaults. The file is
// first decoded generically and then mapped onto the config struct, so
// unknown keys surface as errors instead of being dropped.
func Load(path string) (RunConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to map config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate applies range checks and rejects unsupported combinations.
func (c RunConfig) Validate() error {
	if c.Temperature <= 0 {
		return &domain.ConfigurationError{Field: "temperature", Reason: "must be positive"}
	}
	if c.Integrator.TimestepFS <= 0 {
		return &domain.ConfigurationError{Field: "integrator.timestep_fs", Reason: "must be positive"}
	}
	if c.Integrator.CollisionRate < 0 {
		return &domain.ConfigurationError{Field: "integrator.collision_rate", Reason: "must not be negative"}
	}
	if c.Integrator.MeasureShadowWork {
		return &domain.ConfigurationError{
			Field:  "integrator.measure_shadow_work",
			Reason: "shadow-work measurement is not supported by the switching integrator",
		}
	}
	if c.Equilibration.Iterations <= 0 || c.Equilibration.StepsPerIteration <= 0 {
		return &domain.ConfigurationError{Field: "equilibration", Reason: "iterations and steps_per_iteration must be positive"}
	}
	if c.Annealing.Particles <= 0 {
		return &domain.ConfigurationError{Field: "annealing.particles", Reason: "must be positive"}
	}
	if c.Annealing.ScheduleLength < 2 {
		return &domain.ConfigurationError{Field: "annealing.schedule_length", Reason: "must be at least 2"}
	}
	if c.Annealing.SaveInterval < 0 {
		return &domain.ConfigurationError{Field: "annealing.save_interval", Reason: "must not be negative"}
	}
	for _, d := range c.Annealing.Directions {
		if !domain.Direction(d).Valid() {
			return &domain.ConfigurationError{
				Field:  "annealing.directions",
				Reason: fmt.Sprintf("%q is not forward or reverse", d),
			}
		}
	}
	switch c.Executor.Backend {
	case "inline", "pool":
	default:
		return &domain.ConfigurationError{
			Field:  "executor.backend",
			Reason: fmt.Sprintf("%q is not inline or pool", c.Executor.Backend),
		}
	}
	if c.Executor.Backend == "pool" && c.Executor.Workers <= 0 {
		return &domain.ConfigurationError{Field: "executor.workers", Reason: "must be positive for the pool backend"}
	}
	if c.Executor.Adaptive {
		return &domain.ConfigurationError{
			Field:  "executor.adaptive",
			Reason: "adaptive pool scaling is not supported with annealing actors",
		}
	}
	return nil
}

// Directions converts the configured direction names.
func (c AnnealingConfig) DirectionValues() []domain.Direction {
	out := make([]domain.Direction, len(c.Directions))
	for i, d := range c.Directions {
		out[i] = domain.Direction(d)
	}
	return out
}
