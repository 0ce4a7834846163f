package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// Pool submits tasks to a fixed set of worker goroutines and places each
// actor on a dedicated goroutine with a mailbox, so calls to one actor run
// serialized while distinct actors run concurrently.
type Pool struct {
	size   int
	sem    chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// PoolOption configures the pooled executor.
type PoolOption func(*Pool)

// WithLogger sets the pool's logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pooled executor with the given concurrency. Sizes
// below 1 are clamped to 1.
func NewPool(size int, opts ...PoolOption) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:   size,
		sem:    make(chan struct{}, size),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ ports.Executor = (*Pool)(nil)

// Scatter returns the data unchanged: workers share the process address
// space, so a handle is the value itself.
func (p *Pool) Scatter(data any) any { return data }

// Deploy schedules the tasks on the pool, bounded by the pool size.
func (p *Pool) Deploy(ctx context.Context, tasks []ports.Task) []ports.Future {
	futures := make([]ports.Future, len(tasks))
	for i, task := range tasks {
		f := newFuture()
		futures[i] = f
		p.wg.Add(1)
		go func(task ports.Task, f *future) {
			defer p.wg.Done()
			p.sem <- struct{}{}
			defer func() { <-p.sem }()
			f.resolve(runTask(ctx, task))
		}(task, f)
	}
	return futures
}

// Gather blocks until every future resolves, in submission order.
func (p *Pool) Gather(ctx context.Context, futures []ports.Future) []domain.TaskOutcome {
	outcomes := make([]domain.TaskOutcome, len(futures))
	for i, f := range futures {
		outcomes[i] = f.Await(ctx)
	}
	return outcomes
}

// LaunchActor places a stateful worker on its own goroutine. The factory
// runs on that goroutine so any worker-affine resources (an execution
// context, an integrator) are created and mutated by a single owner.
func (p *Pool) LaunchActor(factory func() (any, error)) (ports.ActorRef, error) {
	a := &poolActor{
		mailbox: make(chan actorMessage, p.size),
		done:    make(chan struct{}),
	}
	ready := make(chan error, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(a.done)
		actor, err := factory()
		ready <- err
		if err != nil {
			return
		}
		for msg := range a.mailbox {
			msg.future.resolve(runCall(msg.ctx, msg.call, actor))
		}
	}()
	if err := <-ready; err != nil {
		return nil, err
	}
	return a, nil
}

// Wait blocks until every future resolves, discarding outcomes.
func (p *Pool) Wait(ctx context.Context, futures []ports.Future) {
	for _, f := range futures {
		f.Await(ctx)
	}
}

// Size reports the configured concurrency.
func (p *Pool) Size() int { return p.size }

// Close waits for in-flight work to drain.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

type actorMessage struct {
	ctx    context.Context
	call   ports.ActorCall
	future *future
}

type poolActor struct {
	mailbox chan actorMessage
	done    chan struct{}
	once    sync.Once
}

func (a *poolActor) Submit(ctx context.Context, call ports.ActorCall) ports.Future {
	f := newFuture()
	a.mailbox <- actorMessage{ctx: ctx, call: call, future: f}
	return f
}

func (a *poolActor) Release() {
	a.once.Do(func() {
		close(a.mailbox)
		<-a.done
	})
}
