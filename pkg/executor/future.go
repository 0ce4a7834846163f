package executor

import (
	"context"
	"fmt"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// future is the shared Future implementation: a one-shot outcome guarded
// by a done channel.
type future struct {
	done    chan struct{}
	outcome domain.TaskOutcome
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

// resolve publishes the outcome. Must be called exactly once.
func (f *future) resolve(o domain.TaskOutcome) {
	f.outcome = o
	close(f.done)
}

// Await blocks until the outcome is available or ctx is done. A context
// cancellation abandons the wait but does not stop the task; the abandoned
// wait is reported as a failure outcome.
func (f *future) Await(ctx context.Context) domain.TaskOutcome {
	select {
	case <-f.done:
		return f.outcome
	case <-ctx.Done():
		return domain.Fail(&domain.TaskFailure{Err: ctx.Err()})
	}
}

// resolved returns an already-completed future, used by the inline backend.
func resolved(o domain.TaskOutcome) ports.Future {
	f := newFuture()
	f.resolve(o)
	return f
}

// runTask executes a task, converting panics into failure outcomes so one
// bad particle can never take down a batch.
func runTask(ctx context.Context, task ports.Task) (outcome domain.TaskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.Fail(&domain.TaskFailure{Err: fmt.Errorf("task panicked: %v", r)})
		}
	}()
	return task(ctx)
}

// runCall executes an actor call with the same panic backstop.
func runCall(ctx context.Context, call ports.ActorCall, actor any) (outcome domain.TaskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.Fail(&domain.TaskFailure{Err: fmt.Errorf("actor call panicked: %v", r)})
		}
	}()
	return call(ctx, actor)
}
