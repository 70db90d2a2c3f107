// Package solver turns a typed query into one or more resolved
// construction plans (solutions) by recursively exploring the candidate
// rules in a registry. The search keeps an explicit stack of the types
// currently being resolved, so cycle detection is path-local: a cyclic
// branch fails without poisoning sibling branches.
package solver

import (
	"context"
	"sort"
	"strconv"

	"github.com/vk/construct/internal/ctxlog"
	"github.com/vk/construct/registry"
	"github.com/vk/construct/rules"
	"github.com/vk/construct/typeinfo"
)

// rootStep is the parameter name used for the outermost query in traces.
const rootStep = "__root__"

// Solver searches a registry for construction plans. It holds no state
// between SolveFor calls; only the registry persists, and it is never
// mutated during solving, so a Solver is safe to use from concurrent
// goroutines.
type Solver struct {
	reg *registry.Registry
}

// New creates a solver over the given registry.
func New(reg *registry.Registry) *Solver {
	return &Solver{reg: reg}
}

// SolveFor resolves the query into an ordered set of solutions.
//
// With DefaultCardinality it returns exactly one solution (the best by
// priority, exactness, then registration order); Exclusive fails when more
// than one plan is valid; Exhaustive returns every valid plan in tie-break
// order. When no valid plan exists, the returned error is a single
// *SolveFailureError aggregating every failure encountered on every
// attempted branch.
func (s *Solver) SolveFor(ctx context.Context, query *typeinfo.Type) ([]*Solution, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Solving for query.", "type", query.Key(), "cardinality", query.Solve().Cardinality.String())

	run := &search{reg: s.reg, memo: make(map[string][]*Solution)}
	solutions, ok := run.solveFor(rootStep, query)
	if !ok {
		logger.Debug("Solving failed.", "type", query.Key(), "errors", len(run.errs))
		return nil, &SolveFailureError{Errors: run.errs}
	}

	logger.Debug("Solving succeeded.", "type", query.Key(), "solutions", len(solutions))
	return solutions, nil
}

// search is the per-call state of one SolveFor invocation.
type search struct {
	reg   *registry.Registry
	stack Trace
	errs  []error

	// memo collapses repeated sub-queries within this search. It is keyed
	// by the full query (identity plus solve directives) because the
	// directives change what a sub-query yields.
	memo map[string][]*Solution
}

func memoKey(t *typeinfo.Type) string {
	p := t.Solve()
	return t.Key() + "|" + strconv.Itoa(int(p.Specificity)) + strconv.Itoa(int(p.Cardinality))
}

func (m *search) trace() Trace {
	out := make(Trace, len(m.stack))
	copy(out, m.stack)
	return out
}

func (m *search) fail(err error) {
	m.errs = append(m.errs, err)
}

type argCandidate struct {
	name      string
	solutions []*Solution
}

// solveFor resolves one (parameter, type) pair on the current branch. It
// reports false when the branch failed; the failure has already been
// recorded with its trace.
func (m *search) solveFor(name string, target *typeinfo.Type) ([]*Solution, bool) {
	if solutions, ok := m.memo[memoKey(target)]; ok {
		return solutions, true
	}

	if m.onPath(target.Base()) {
		m.stack = append(m.stack, Step{Name: name, Target: target})
		m.fail(&CyclicDependencyError{Trace: m.trace()})
		m.stack = m.stack[:len(m.stack)-1]
		return nil, false
	}

	m.stack = append(m.stack, Step{Name: name, Target: target})
	defer func() { m.stack = m.stack[:len(m.stack)-1] }()

	candidates := m.reg.Rules(target)
	if len(candidates) == 0 {
		m.fail(&NoSolutionError{Trace: m.trace()})
		return nil, false
	}
	orderCandidates(candidates, target)

	var solutions []*Solution
rule:
	for _, candidate := range candidates {
		deps := candidate.Dependencies()
		if len(deps) == 0 {
			solutions = append(solutions, NewSolution(candidate))
			continue
		}
		args := make([]argCandidate, 0, len(deps))
		for _, dep := range deps {
			subSolutions, ok := m.solveFor(dep.Name, dep.Type)
			if !ok {
				// The failed sub-branch is already recorded; this
				// candidate yields nothing, but siblings are still tried.
				continue rule
			}
			args = append(args, argCandidate{name: dep.Name, solutions: subSolutions})
		}
		for _, combo := range permutate(args) {
			solutions = append(solutions, NewSolution(candidate, combo...))
		}
	}

	if len(solutions) == 0 {
		m.fail(&NoSolutionError{Trace: m.trace()})
		return nil, false
	}

	switch target.Solve().Cardinality {
	case typeinfo.Exhaustive:
		// Keep every solution, already in tie-break order.
	case typeinfo.Exclusive:
		if len(solutions) > 1 {
			m.fail(&NotExclusiveError{Solutions: solutions, Trace: m.trace()})
			return nil, false
		}
	default:
		solutions = solutions[:1]
	}

	m.memo[memoKey(target)] = solutions
	return solutions, true
}

// onPath reports whether the base type is already being resolved on the
// current branch.
func (m *search) onPath(base *typeinfo.Base) bool {
	for _, step := range m.stack {
		if step.Target.Base() == base {
			return true
		}
	}
	return false
}

// orderCandidates sorts candidate rules into tie-break order: higher
// priority first, then exact-type matches before subtype matches. The sort
// is stable, so remaining ties keep registration order.
func orderCandidates(candidates []*rules.Rule, query *typeinfo.Type) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority() != candidates[j].Priority() {
			return candidates[i].Priority() > candidates[j].Priority()
		}
		iExact := candidates[i].Output().Base() == query.Base()
		jExact := candidates[j].Output().Base() == query.Base()
		return iExact && !jExact
	})
}

// permutate expands per-dependency solution candidates into every argument
// combination. Dependencies with default cardinality contribute a single
// solution each, so the product collapses to one combination unless a
// dependency was solved exhaustively.
func permutate(args []argCandidate) [][]Arg {
	combos := [][]Arg{nil}
	for _, candidate := range args {
		next := make([][]Arg, 0, len(combos)*len(candidate.solutions))
		for _, combo := range combos {
			for _, solution := range candidate.solutions {
				row := make([]Arg, len(combo), len(combo)+1)
				copy(row, combo)
				row = append(row, Arg{Name: candidate.name, Solution: solution})
				next = append(next, row)
			}
		}
		combos = next
	}
	return combos
}
