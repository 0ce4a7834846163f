// Package harmonic provides an analytic reference implementation of the
// physics engine port: independent particles in harmonic wells whose
// centers migrate between the two end-states as the alchemical parameters
// switch on. It exists so the orchestration layer can be exercised end to
// end without a molecular mechanics engine behind it.
package harmonic

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// ErrReleased is returned by any operation on a released context.
var ErrReleased = errors.New("harmonic: context released")

// Config describes the model system.
type Config struct {
	// Particles is the number of independent particles.
	Particles int

	// Stiffness is the harmonic force constant in kJ/(mol·nm²).
	Stiffness float64

	// WellShift is the distance in nm between the end-state well centers.
	// With a zero shift the two end-states are identical and every
	// switching work is exactly zero.
	WellShift float64

	// Box is the cubic box edge in nm.
	Box float64

	// Seed fixes the noise stream so runs are reproducible.
	Seed int64
}

// DefaultConfig returns a small but non-trivial model.
func DefaultConfig() Config {
	return Config{
		Particles: 16,
		Stiffness: 500.0,
		WellShift: 0.1,
		Box:       3.0,
		Seed:      1,
	}
}

// System implements ports.System for the harmonic model.
type System struct {
	cfg      Config
	contexts atomic.Int64
}

// New creates a harmonic system.
func New(cfg Config) *System {
	if cfg.Particles <= 0 {
		cfg.Particles = DefaultConfig().Particles
	}
	if cfg.Stiffness <= 0 {
		cfg.Stiffness = DefaultConfig().Stiffness
	}
	if cfg.Box <= 0 {
		cfg.Box = DefaultConfig().Box
	}
	return &System{cfg: cfg}
}

var _ ports.System = (*System)(nil)

// InitialState places every particle at its end-state-0 well center.
func (s *System) InitialState() *domain.SamplerState {
	state := &domain.SamplerState{
		Positions:  s.wellCenters(0.0),
		BoxLengths: [3]float64{s.cfg.Box, s.cfg.Box, s.cfg.Box},
		BoxAngles:  [3]float64{90, 90, 90},
	}
	return state
}

// wellCenters lays particles on a line through the box, shifted by the
// coupling fraction lambda in [0,1].
func (s *System) wellCenters(coupling float64) [][3]float64 {
	centers := make([][3]float64, s.cfg.Particles)
	spacing := s.cfg.Box / float64(s.cfg.Particles+1)
	for i := range centers {
		base := spacing * float64(i+1)
		centers[i] = [3]float64{base + coupling*s.cfg.WellShift, base, base}
	}
	return centers
}

// NewContext binds a fresh context. Contexts created from the same system
// draw from independent, deterministically seeded noise streams.
func (s *System) NewContext(state domain.ThermodynamicState, integrator ports.IntegratorSpec) (ports.Context, error) {
	if state.Temperature <= 0 {
		return nil, fmt.Errorf("harmonic: temperature %v must be positive", state.Temperature)
	}
	if integrator.TimestepFS <= 0 {
		return nil, fmt.Errorf("harmonic: timestep %v must be positive", integrator.TimestepFS)
	}
	id := s.contexts.Add(1)
	c := &context{
		system:      s,
		temperature: state.Temperature,
		params:      state.Params,
		dt:          integrator.TimestepFS * 1e-3, // ps
		friction:    integrator.CollisionRate,
		rng:         rand.New(rand.NewSource(s.cfg.Seed + id*7919)),
	}
	c.positions = s.wellCenters(coupling(state.Params))
	return c, nil
}

// coupling collapses the parameter set to one interpolation fraction. The
// insert terms pull the wells toward end-state 1, the delete terms push
// back, and the core terms carry the linear part.
func coupling(p domain.AlchemicalParams) float64 {
	sum := p.StericsCore + p.ElectrostaticsCore +
		p.StericsInsert + p.ElectrostaticsInsert +
		p.StericsDelete + p.ElectrostaticsDelete +
		p.Bonds + p.Angles + p.Torsions
	return sum / 9.0
}

type context struct {
	system      *System
	temperature float64
	params      domain.AlchemicalParams
	positions   [][3]float64
	dt          float64
	friction    float64
	rng         *rand.Rand
	released    bool
}

var _ ports.Context = (*context)(nil)

// Step advances overdamped Langevin dynamics in the current wells.
func (c *context) Step(n int) error {
	if c.released {
		return ErrReleased
	}
	k := c.system.cfg.Stiffness
	beta := 1.0 / (domain.BoltzmannKJPerMolKelvin * c.temperature)
	friction := c.friction
	if friction <= 0 {
		friction = 1.0
	}
	mobility := c.dt / friction
	sigma := math.Sqrt(2.0 * mobility / beta)
	centers := c.system.wellCenters(coupling(c.params))
	for step := 0; step < n; step++ {
		for i := range c.positions {
			for d := 0; d < 3; d++ {
				drift := -k * mobility * (c.positions[i][d] - centers[i][d])
				c.positions[i][d] += drift + sigma*c.rng.NormFloat64()
			}
		}
	}
	return nil
}

// PotentialEnergy evaluates the harmonic energy at the current parameters.
func (c *context) PotentialEnergy() (float64, error) {
	if c.released {
		return 0, ErrReleased
	}
	k := c.system.cfg.Stiffness
	centers := c.system.wellCenters(coupling(c.params))
	var u float64
	for i := range c.positions {
		for d := 0; d < 3; d++ {
			dx := c.positions[i][d] - centers[i][d]
			u += 0.5 * k * dx * dx
		}
	}
	return u, nil
}

// ApplyParams switches the alchemical parameters with the configuration
// held fixed.
func (c *context) ApplyParams(params domain.AlchemicalParams) error {
	if c.released {
		return ErrReleased
	}
	c.params = params
	return nil
}

func (c *context) SetState(state *domain.SamplerState) error {
	if c.released {
		return ErrReleased
	}
	if len(state.Positions) != c.system.cfg.Particles {
		return fmt.Errorf("harmonic: state has %d particles, system has %d",
			len(state.Positions), c.system.cfg.Particles)
	}
	c.positions = make([][3]float64, len(state.Positions))
	copy(c.positions, state.Positions)
	return nil
}

func (c *context) State() (*domain.SamplerState, error) {
	if c.released {
		return nil, ErrReleased
	}
	positions := make([][3]float64, len(c.positions))
	copy(positions, c.positions)
	box := c.system.cfg.Box
	return &domain.SamplerState{
		Positions:  positions,
		BoxLengths: [3]float64{box, box, box},
		BoxAngles:  [3]float64{90, 90, 90},
	}, nil
}

// ResampleVelocities re-draws the thermal noise stream. The dynamics are
// overdamped, so this only advances the generator and records the new
// bath temperature.
func (c *context) ResampleVelocities(temperature float64) error {
	if c.released {
		return ErrReleased
	}
	if temperature <= 0 {
		return fmt.Errorf("harmonic: temperature %v must be positive", temperature)
	}
	c.temperature = temperature
	c.rng.Int63()
	return nil
}

// Minimize jumps each particle to its current well center, the exact
// minimum of the harmonic potential.
func (c *context) Minimize(maxIterations int) error {
	if c.released {
		return ErrReleased
	}
	if maxIterations <= 0 {
		return nil
	}
	c.positions = c.system.wellCenters(coupling(c.params))
	return nil
}

func (c *context) Release() { c.released = true }
