// Package builder executes solution trees: it walks a plan bottom-up,
// invokes each rule with its resolved dependency values, and memoizes
// results per distinct plan so structurally identical sub-plans are built
// at most once.
package builder

import (
	"context"
	"fmt"

	"github.com/vk/construct/internal/ctxlog"
	"github.com/vk/construct/solver"
)

// AsyncSolutionError is returned when a synchronous Builder is asked to
// execute a solution that requires asynchronous execution.
type AsyncSolutionError struct {
	Solution *solver.Solution
}

func (e *AsyncSolutionError) Error() string {
	return fmt.Sprintf("cannot build async solution %s with a synchronous builder", e.Solution)
}

// Builder executes solutions synchronously. Its cache is exclusively owned
// by the instance; it must not be shared across goroutines without
// external synchronization.
type Builder struct {
	cache map[string]any
}

// New creates a synchronous builder with an empty cache.
func New() *Builder {
	return &Builder{cache: make(map[string]any)}
}

// FromSolution builds the value for a solution tree. Structurally equal
// solutions (and sub-solutions) are built once per builder; later requests
// are served from the cache without re-invoking the rule. An async rule
// anywhere in the tree is rejected with *AsyncSolutionError before it can
// do any work. Errors raised by a rule's own logic propagate unwrapped.
func (b *Builder) FromSolution(ctx context.Context, solution *solver.Solution) (any, error) {
	if solution.RequiresAsync() {
		return nil, &AsyncSolutionError{Solution: firstAsync(solution)}
	}
	if value, ok := b.cache[solution.Key()]; ok {
		return value, nil
	}

	args := make(map[string]any, len(solution.Args()))
	for _, arg := range solution.Args() {
		value, err := b.FromSolution(ctx, arg.Solution)
		if err != nil {
			return nil, err
		}
		args[arg.Name] = value
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Invoking rule.", "rule", solution.Rule().CanonicalName())
	value, err := solution.Rule().Call(ctx, args)
	if err != nil {
		return nil, err
	}

	b.cache[solution.Key()] = value
	return value, nil
}

// firstAsync locates the async sub-plan that makes a plan unbuildable
// synchronously, so the error names the offending rule rather than the
// whole tree.
func firstAsync(solution *solver.Solution) *solver.Solution {
	if solution.IsAsync() {
		return solution
	}
	for _, arg := range solution.Args() {
		if arg.Solution.RequiresAsync() {
			return firstAsync(arg.Solution)
		}
	}
	return solution
}

// GetCached returns the previously built value for a solution, if any.
func (b *Builder) GetCached(solution *solver.Solution) (any, bool) {
	value, ok := b.cache[solution.Key()]
	return value, ok
}
