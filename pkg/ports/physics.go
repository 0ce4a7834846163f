package ports

import "github.com/aretw0/anneal/pkg/domain"

// IntegratorSpec carries the dynamics parameters bound to an execution
// context. Plain configuration values; range checks live in the config
// layer.
type IntegratorSpec struct {
	// TimestepFS is the integration timestep in femtoseconds.
	TimestepFS float64

	// CollisionRate is the Langevin collision rate in 1/ps.
	CollisionRate float64

	// Splitting is the integrator splitting string, e.g. "V R O R V".
	Splitting string

	// ConstraintTolerance for constrained degrees of freedom.
	ConstraintTolerance float64

	// MeasureShadowWork requests per-step shadow-work accounting. Not
	// supported by the bundled integrators; workers reject it at
	// initialization with a ConfigurationError.
	MeasureShadowWork bool
}

// System is the physics engine collaborator. It builds execution contexts
// bound to a thermodynamic state and an integrator. How energies and
// forces are evaluated is entirely the implementation's business.
type System interface {
	// NewContext binds the integrator and the state's alchemical
	// parameters to a fresh execution context. Each context is exclusively
	// owned by its caller and must be released when done.
	NewContext(state domain.ThermodynamicState, integrator IntegratorSpec) (Context, error)
}

// Context is one live execution context: a configuration plus integrator
// state. Contexts are single-owner; no method is safe for concurrent use.
type Context interface {
	// Step advances dynamics by n discrete integrator steps.
	Step(n int) error

	// PotentialEnergy reads the instantaneous potential energy in kJ/mol.
	PotentialEnergy() (float64, error)

	// ApplyParams switches the alchemical parameter set without rebuilding
	// the context; the configuration is held fixed.
	ApplyParams(params domain.AlchemicalParams) error

	// SetState loads a configuration (positions + box) into the context.
	SetState(state *domain.SamplerState) error

	// State extracts the current configuration.
	State() (*domain.SamplerState, error)

	// ResampleVelocities draws fresh velocities from the Maxwell-Boltzmann
	// distribution at the given temperature in kelvin.
	ResampleVelocities(temperature float64) error

	// Minimize applies local energy minimization, up to maxIterations.
	Minimize(maxIterations int) error

	// Release frees the context. Using a released context is an error.
	Release()
}
