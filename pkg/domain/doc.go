/*
Package domain holds the core types of the anneal engine: the validated
lambda schedule, thermodynamic and sampler states, task and result shapes,
the work ledger, the error taxonomy, and lifecycle events.

These types have no dependencies on ports or adapters; every other package
in the module depends on this one.
*/
package domain
