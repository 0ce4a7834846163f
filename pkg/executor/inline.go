package executor

import (
	"context"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// Inline runs every task synchronously in the calling goroutine, one at a
// time. It is the local fallback backend: observationally equivalent to
// the pooled backend for identical inputs, with no parallelism.
type Inline struct{}

// NewInline creates the inline executor.
func NewInline() *Inline { return &Inline{} }

var _ ports.Executor = (*Inline)(nil)

// Scatter returns the data unchanged; there is nowhere to place it.
func (e *Inline) Scatter(data any) any { return data }

// Deploy runs each task immediately and returns already-resolved futures.
func (e *Inline) Deploy(ctx context.Context, tasks []ports.Task) []ports.Future {
	futures := make([]ports.Future, len(tasks))
	for i, task := range tasks {
		futures[i] = resolved(runTask(ctx, task))
	}
	return futures
}

// Gather collects outcomes in submission order.
func (e *Inline) Gather(ctx context.Context, futures []ports.Future) []domain.TaskOutcome {
	outcomes := make([]domain.TaskOutcome, len(futures))
	for i, f := range futures {
		outcomes[i] = f.Await(ctx)
	}
	return outcomes
}

// LaunchActor constructs the actor in the caller; calls run synchronously.
func (e *Inline) LaunchActor(factory func() (any, error)) (ports.ActorRef, error) {
	actor, err := factory()
	if err != nil {
		return nil, err
	}
	return &inlineActor{actor: actor}, nil
}

// Wait resolves trivially: inline futures are resolved at Deploy time.
func (e *Inline) Wait(ctx context.Context, futures []ports.Future) {
	for _, f := range futures {
		f.Await(ctx)
	}
}

// Size reports a single worker.
func (e *Inline) Size() int { return 1 }

// Close is a no-op.
func (e *Inline) Close() error { return nil }

type inlineActor struct {
	actor any
}

func (a *inlineActor) Submit(ctx context.Context, call ports.ActorCall) ports.Future {
	return resolved(runCall(ctx, call, a.actor))
}

func (a *inlineActor) Release() {}
