/*
Package ports defines the driven ports (interfaces) for the anneal engine.

These interfaces decouple the orchestration core from external
implementations: the physics engine that evaluates energies and advances
dynamics, the trajectory storage backend, the statistical estimator
routines, and the distributed executor.

# Key Interfaces

  - System / Context: the physics engine collaborator.
  - TrajectoryStore: append-or-create trajectory persistence.
  - Estimator: decorrelation and free-energy estimation routines.
  - Executor: inline or pooled task and actor placement.

The contract test suites (RunExecutorContract, RunTrajectoryStoreContract)
verify implementations against the documented semantics; every bundled
adapter runs them.
*/
package ports
