package ports

import (
	"context"

	"github.com/aretw0/anneal/pkg/domain"
)

// Task is one unit of work submitted to an executor. Implementations must
// return failures as TaskOutcome values rather than panicking; executors
// additionally convert panics into failure outcomes as a backstop.
type Task func(ctx context.Context) domain.TaskOutcome

// Future is a handle to a submitted task. Await blocks until the outcome
// is available or ctx is done; cancellation does not stop the underlying
// task, it only abandons the wait.
type Future interface {
	Await(ctx context.Context) domain.TaskOutcome
}

// ActorCall is one method invocation on an actor's private state. Calls
// submitted to the same actor run serialized, preserving single-writer
// discipline over the actor's resources.
type ActorCall func(ctx context.Context, actor any) domain.TaskOutcome

// ActorRef is a handle to a long-lived stateful worker placed on the
// executor.
type ActorRef interface {
	// Submit schedules a call on the actor and returns its future.
	Submit(ctx context.Context, call ActorCall) Future

	// Release tears the actor down after all submitted calls finish.
	Release()
}

// Executor abstracts where work runs: inline in the caller or on a pool
// of workers. Both backends are observationally equivalent for identical
// inputs; only wall-clock interleaving differs.
//
// Gather returns outcomes in the order futures were submitted, so index i
// of a gathered batch always corresponds to task i.
type Executor interface {
	// Scatter places shared data with the backend and returns a handle to
	// it. The inline backend returns the value unchanged.
	Scatter(data any) any

	// Deploy submits independent tasks and returns their futures in
	// submission order.
	Deploy(ctx context.Context, tasks []Task) []Future

	// Gather blocks until every future resolves, returning outcomes in
	// submission order.
	Gather(ctx context.Context, futures []Future) []domain.TaskOutcome

	// LaunchActor constructs a stateful worker via factory and places it
	// on the backend.
	LaunchActor(factory func() (any, error)) (ActorRef, error)

	// Wait blocks until every future resolves, discarding outcomes.
	Wait(ctx context.Context, futures []Future)

	// Size reports how many workers run concurrently; the inline backend
	// reports 1.
	Size() int

	// Close releases backend resources. The executor is unusable after.
	Close() error
}
