package construct

import (
	"context"
	"fmt"

	"github.com/vk/construct/builder"
	"github.com/vk/construct/registry"
	"github.com/vk/construct/rules"
	"github.com/vk/construct/solver"
	"github.com/vk/construct/typeinfo"
)

// Composer bundles a registry, a solver and both builders behind one
// surface. Rule registration and solving are safe for concurrent use; the
// synchronous build path is serialized per Composer through the async
// builder only when BuildAsync is used — Build uses the synchronous
// builder and must not be called concurrently.
type Composer struct {
	reg   *registry.Registry
	slv   *solver.Solver
	sync  *builder.Builder
	async *builder.AsyncBuilder
}

// ComposerOption customizes a Composer.
type ComposerOption func(*composerConfig)

type composerConfig struct {
	asyncOpts []builder.AsyncOption
}

// WithAsyncWorkers bounds how many synchronous rules the async build path
// may execute at once.
func WithAsyncWorkers(n int) ComposerOption {
	return func(c *composerConfig) {
		c.asyncOpts = append(c.asyncOpts, builder.WithWorkers(n))
	}
}

// NewComposer creates an empty engine.
func NewComposer(opts ...ComposerOption) *Composer {
	var cfg composerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	reg := registry.New()
	return &Composer{
		reg:   reg,
		slv:   solver.New(reg),
		sync:  builder.New(),
		async: builder.NewAsync(cfg.asyncOpts...),
	}
}

// Registry exposes the underlying rule registry.
func (c *Composer) Registry() *registry.Registry { return c.reg }

// Add registers rules.
func (c *Composer) Add(rs ...*rules.Rule) { c.reg.AddAll(rs...) }

// SolveFor resolves a query into solutions without building anything.
func (c *Composer) SolveFor(ctx context.Context, query *typeinfo.Type) ([]*solver.Solution, error) {
	return c.slv.SolveFor(ctx, query)
}

// Build solves the query and executes the best plan synchronously.
func (c *Composer) Build(ctx context.Context, query *typeinfo.Type) (any, error) {
	solutions, err := c.slv.SolveFor(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.sync.FromSolution(ctx, solutions[0])
}

// BuildAsync solves the query and executes the best plan on the
// asynchronous builder, sharing in-flight work with concurrent callers.
func (c *Composer) BuildAsync(ctx context.Context, query *typeinfo.Type) (any, error) {
	solutions, err := c.slv.SolveFor(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.async.FromSolution(ctx, solutions[0])
}

// Get builds a value for the query and asserts it to T.
func Get[T any](ctx context.Context, c *Composer, query *typeinfo.Type) (T, error) {
	var zero T
	value, err := c.Build(ctx, query)
	if err != nil {
		return zero, err
	}
	out, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("built value of type %T for %s is not assignable to the requested type", value, query.Key())
	}
	return out, nil
}

// GetAll solves the query exhaustively, builds every plan, and asserts
// each value to T.
func GetAll[T any](ctx context.Context, c *Composer, query *typeinfo.Type) ([]T, error) {
	exhaustive := query.WithSolve(typeinfo.SolveParameter{
		Cardinality: typeinfo.Exhaustive,
		Specificity: query.Solve().Specificity,
	})
	solutions, err := c.slv.SolveFor(ctx, exhaustive)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(solutions))
	for _, solution := range solutions {
		value, err := c.sync.FromSolution(ctx, solution)
		if err != nil {
			return nil, err
		}
		typed, ok := value.(T)
		if !ok {
			return nil, fmt.Errorf("built value of type %T for %s is not assignable to the requested type", value, query.Key())
		}
		out = append(out, typed)
	}
	return out, nil
}
