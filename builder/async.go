package builder

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vk/construct/internal/ctxlog"
	"github.com/vk/construct/solver"
)

// promise is one unit of build work, shared by every caller requesting the
// same solution. The first caller publishes the promise before doing any
// work; everyone else waits on it.
type promise struct {
	done  chan struct{}
	value any
	err   error
}

// AsyncBuilder executes solutions concurrently. It guarantees at most one
// execution per distinct solution even under concurrent callers, resolves
// a solution's dependencies in parallel, and can offload synchronous rules
// to a bounded pool so they do not monopolize caller goroutines.
//
// An AsyncBuilder is safe for concurrent use.
type AsyncBuilder struct {
	mu    sync.Mutex
	cache map[string]*promise

	// pool bounds concurrently running synchronous rules; nil means run
	// them inline on the calling goroutine.
	pool *semaphore.Weighted
}

// AsyncOption customizes an AsyncBuilder.
type AsyncOption func(*AsyncBuilder)

// WithWorkers bounds how many synchronous rules may execute at once.
// Asynchronous rules are not subject to the bound.
func WithWorkers(n int) AsyncOption {
	return func(b *AsyncBuilder) {
		if n > 0 {
			b.pool = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewAsync creates an asynchronous builder with an empty cache.
func NewAsync(opts ...AsyncOption) *AsyncBuilder {
	b := &AsyncBuilder{cache: make(map[string]*promise)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FromSolution builds the value for a solution tree, waiting for the
// result. If a build for this exact solution is already in flight or
// complete, the caller shares that work instead of starting a new one.
//
// Context cancellation abandons the caller's wait but does not cancel
// work other waiters may still be sharing; the outcome (including a
// failure) stays cached for them.
func (b *AsyncBuilder) FromSolution(ctx context.Context, solution *solver.Solution) (any, error) {
	// Check-cache-else-publish must be a single step; otherwise two
	// callers could both start building the same solution.
	b.mu.Lock()
	p, found := b.cache[solution.Key()]
	if !found {
		p = &promise{done: make(chan struct{})}
		b.cache[solution.Key()] = p
	}
	b.mu.Unlock()

	if found {
		select {
		case <-p.done:
			return p.value, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.value, p.err = b.build(ctx, solution)
	close(p.done)
	return p.value, p.err
}

// GetCached returns the completed value for a solution without scheduling
// any work. It reports false if the solution was never requested, is still
// in flight, or failed.
func (b *AsyncBuilder) GetCached(solution *solver.Solution) (any, bool) {
	b.mu.Lock()
	p, ok := b.cache[solution.Key()]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-p.done:
		if p.err != nil {
			return nil, false
		}
		return p.value, true
	default:
		return nil, false
	}
}

// build resolves every dependency concurrently, then invokes the rule once
// all of them have produced values. No ordering is guaranteed between
// sibling dependencies.
func (b *AsyncBuilder) build(ctx context.Context, solution *solver.Solution) (any, error) {
	solutionArgs := solution.Args()
	results := make([]any, len(solutionArgs))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, arg := range solutionArgs {
		i, arg := i, arg
		g.Go(func() error {
			value, err := b.FromSolution(groupCtx, arg.Solution)
			if err != nil {
				return err
			}
			results[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	args := make(map[string]any, len(solutionArgs))
	for i, arg := range solutionArgs {
		args[arg.Name] = results[i]
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Invoking rule.", "rule", solution.Rule().CanonicalName(), "async", solution.IsAsync())

	// Async rules already cooperate with the caller; synchronous rules go
	// through the bounded pool when one is configured.
	if !solution.IsAsync() && b.pool != nil {
		if err := b.pool.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer b.pool.Release(1)
	}
	return solution.Rule().Call(ctx, args)
}
