// Package construct is a declarative object-construction engine.
//
// Callers register construction rules — each mapping a set of named, typed
// dependencies to one typed output — and then request a value of some
// type. The engine searches the registered rules for one or more valid
// construction plans (solutions), and executes a plan to produce the
// value, memoizing structurally identical sub-plans so shared work runs
// once.
//
// The pieces compose left to right:
//
//	rules -> registry.Registry -> solver.Solver -> solver.Solution -> builder.Builder
//
// Rule declarations come either from Go code (rules.New, rules.Static) or
// from HCL manifests (package manifest). Queries are typeinfo.Type values
// carrying optional attributes, qualifiers, and solve directives
// (cardinality, specificity).
//
// The Composer in this package wires a registry, a solver and both
// builders together for the common case:
//
//	engine := construct.NewComposer()
//	engine.Add(myRules...)
//	car, err := construct.Get[*Car](ctx, engine, carType)
package construct
