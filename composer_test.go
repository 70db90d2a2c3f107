package construct

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/construct/manifest"
	"github.com/vk/construct/metadata"
	"github.com/vk/construct/rules"
	"github.com/vk/construct/solver"
	"github.com/vk/construct/typeinfo"
)

type engine struct{ cylinders int }
type car struct{ engine engine }

func carTypes(t *testing.T) (engineType, carType *typeinfo.Type) {
	t.Helper()
	engineBase := typeinfo.NewBase("engine")
	carBase := typeinfo.NewBase("car")
	return typeinfo.New(engineBase), typeinfo.New(carBase)
}

func mustRule(t *testing.T, fn rules.Invoke, name string, output *typeinfo.Type, deps map[string]*typeinfo.Type, opts ...rules.Option) *rules.Rule {
	t.Helper()
	r, err := rules.New(fn, name, output, deps, opts...)
	require.NoError(t, err)
	return r
}

func TestComposerBuild(t *testing.T) {
	engineType, carType := carTypes(t)

	c := NewComposer()
	c.Add(
		mustRule(t, func(context.Context, map[string]any) (any, error) {
			return engine{cylinders: 8}, nil
		}, "v8", engineType, nil),
		mustRule(t, func(_ context.Context, args map[string]any) (any, error) {
			return car{engine: args["engine"].(engine)}, nil
		}, "build_car", carType, map[string]*typeinfo.Type{"engine": engineType}),
	)

	got, err := c.Build(context.Background(), carType)
	require.NoError(t, err)
	assert.Equal(t, car{engine: engine{cylinders: 8}}, got)
}

func TestComposerBuildNoSolution(t *testing.T) {
	_, carType := carTypes(t)

	c := NewComposer()
	_, err := c.Build(context.Background(), carType)
	require.Error(t, err)

	var failure *solver.SolveFailureError
	require.ErrorAs(t, err, &failure)

	var noSolution *solver.NoSolutionError
	assert.True(t, failure.Contains(&noSolution))
}

func TestGet(t *testing.T) {
	engineType, _ := carTypes(t)

	c := NewComposer()
	c.Add(mustRule(t, func(context.Context, map[string]any) (any, error) {
		return engine{cylinders: 6}, nil
	}, "v6", engineType, nil))

	got, err := Get[engine](context.Background(), c, engineType)
	require.NoError(t, err)
	assert.Equal(t, 6, got.cylinders)

	_, err = Get[string](context.Background(), c, engineType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not assignable")
}

func TestGetAll(t *testing.T) {
	engineType, _ := carTypes(t)

	c := NewComposer()
	c.Add(
		mustRule(t, func(context.Context, map[string]any) (any, error) {
			return engine{cylinders: 6}, nil
		}, "v6", engineType, nil),
		mustRule(t, func(context.Context, map[string]any) (any, error) {
			return engine{cylinders: 8}, nil
		}, "v8", engineType, nil),
	)

	// The plain query resolves to a single best plan; GetAll switches the
	// query to exhaustive and builds every plan.
	one, err := Get[engine](context.Background(), c, engineType)
	require.NoError(t, err)
	assert.Equal(t, 6, one.cylinders)

	all, err := GetAll[engine](context.Background(), c, engineType)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []engine{{cylinders: 6}, {cylinders: 8}}, all)
}

func TestBuildAsyncSharesWork(t *testing.T) {
	engineType, _ := carTypes(t)

	calls := 0
	c := NewComposer(WithAsyncWorkers(4))
	c.Add(mustRule(t, func(context.Context, map[string]any) (any, error) {
		calls++
		return engine{cylinders: 8}, nil
	}, "v8", engineType, nil, rules.Async()))

	first, err := c.BuildAsync(context.Background(), engineType)
	require.NoError(t, err)
	second, err := c.BuildAsync(context.Background(), engineType)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "repeated async builds reuse the cached result")
}

func TestQualifiedQuerySelectsNamedRule(t *testing.T) {
	engineBase := typeinfo.NewBase("engine")
	anyEngine := typeinfo.New(engineBase)
	sporty := typeinfo.New(engineBase, typeinfo.WithAttributes(metadata.Name("sporty")))
	wantSporty := typeinfo.New(engineBase, typeinfo.WithQualifiers(metadata.SelectName("sporty")))

	c := NewComposer()
	c.Add(
		mustRule(t, func(context.Context, map[string]any) (any, error) {
			return engine{cylinders: 4}, nil
		}, "economy", anyEngine, nil),
		mustRule(t, func(context.Context, map[string]any) (any, error) {
			return engine{cylinders: 12}, nil
		}, "sporty", sporty, nil),
	)

	got, err := Get[engine](context.Background(), c, wantSporty)
	require.NoError(t, err)
	assert.Equal(t, 12, got.cylinders)
}

// TestManifestDrivenComposer loads declarations from HCL and solves against
// them end to end.
func TestManifestDrivenComposer(t *testing.T) {
	loader := manifest.NewLoader()
	loader.RegisterHandler("BuildCar", func(_ context.Context, args map[string]any) (any, error) {
		displacement := args["displacement"].(float64)
		return map[string]any{"displacement": displacement}, nil
	})

	loaded, err := loader.LoadSource(context.Background(), "cars.hcl", []byte(`
		type "displacement" {}
		type "car" {}

		value "base" {
			type  = "displacement"
			value = 2.0
		}

		value "sport" {
			type     = "displacement"
			value    = 5.0
			priority = 10
		}

		rule "build_car" {
			handler = "BuildCar"
			output  = "car"

			dependency "displacement" {
				type = "displacement"
			}
		}
	`))
	require.NoError(t, err)

	c := NewComposer()
	c.Add(loaded...)

	carBase, ok := loader.Type("car")
	require.True(t, ok)

	got, err := c.Build(context.Background(), typeinfo.New(carBase))
	require.NoError(t, err)
	// The higher-priority displacement wins the default cardinality.
	assert.Equal(t, map[string]any{"displacement": 5.0}, got)
}
