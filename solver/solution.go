package solver

import (
	"strings"

	"github.com/vk/construct/rules"
)

// Arg is one resolved dependency of a solution.
type Arg struct {
	Name     string
	Solution *Solution
}

// Solution is an immutable resolved construction plan: a chosen rule plus
// a nested solution per named dependency. Solutions are structurally
// comparable through Key, so plans discovered via different search paths
// are recognized as the same plan.
type Solution struct {
	rule          *rules.Rule
	args          []Arg
	key           string
	requiresAsync bool
}

// NewSolution assembles a solution node. The argument order is preserved
// as given; the solver produces arguments in dependency (name) order.
func NewSolution(rule *rules.Rule, args ...Arg) *Solution {
	s := &Solution{rule: rule, args: args, requiresAsync: rule.IsAsync()}
	var sb strings.Builder
	sb.WriteString(rule.Key())
	for _, a := range args {
		sb.WriteString("(")
		sb.WriteString(a.Name)
		sb.WriteString("=")
		sb.WriteString(a.Solution.key)
		sb.WriteString(")")
		if a.Solution.requiresAsync {
			s.requiresAsync = true
		}
	}
	s.key = sb.String()
	return s
}

// Rule returns the chosen rule.
func (s *Solution) Rule() *rules.Rule { return s.rule }

// Args returns the resolved dependency plans. A solution with no args is a
// leaf.
func (s *Solution) Args() []Arg {
	out := make([]Arg, len(s.args))
	copy(out, s.args)
	return out
}

// IsAsync reports whether this solution's own rule requires asynchronous
// execution.
func (s *Solution) IsAsync() bool { return s.rule.IsAsync() }

// RequiresAsync reports whether this solution or any nested solution
// requires asynchronous execution.
func (s *Solution) RequiresAsync() bool { return s.requiresAsync }

// Key returns the structural identity of the plan. Two solutions are the
// same plan iff their keys are equal.
func (s *Solution) Key() string { return s.key }

// Equal reports structural equality.
func (s *Solution) Equal(other *Solution) bool {
	return other != nil && s.key == other.key
}

func (s *Solution) String() string {
	var sb strings.Builder
	sb.WriteString(s.rule.CanonicalName())
	if len(s.args) > 0 {
		sb.WriteString("(")
		for i, a := range s.args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.Name)
			sb.WriteString("=")
			sb.WriteString(a.Solution.String())
		}
		sb.WriteString(")")
	}
	return sb.String()
}
