package solver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/construct/typeinfo"
)

// Step is one link in the path from the root query to a failure point: the
// parameter being resolved and the type it was resolved against.
type Step struct {
	Name   string
	Target *typeinfo.Type
}

// Trace is the path from the root query to a failure point.
type Trace []Step

func (t Trace) String() string {
	if len(t) == 0 {
		return "<root>"
	}
	parts := make([]string, 0, len(t))
	parts = append(parts, t[0].Target.Key())
	for _, step := range t[1:] {
		parts = append(parts, fmt.Sprintf("(%s: %s)", step.Name, step.Target.Key()))
	}
	return strings.Join(parts, " -> ")
}

// NoSolutionError reports a branch where a requested type had no matching
// candidate rule.
type NoSolutionError struct {
	Trace Trace
}

func (e *NoSolutionError) Error() string {
	return fmt.Sprintf("%s: unable to find solution", e.Trace)
}

// CyclicDependencyError reports a branch whose dependency chain revisited
// a type already being resolved on the same path.
type CyclicDependencyError struct {
	Trace Trace
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%s: encountered cyclic dependency", e.Trace)
}

// NotExclusiveError reports an Exclusive query that matched more than one
// valid solution.
type NotExclusiveError struct {
	Solutions []*Solution
	Trace     Trace
}

func (e *NotExclusiveError) Error() string {
	names := make([]string, len(e.Solutions))
	for i, s := range e.Solutions {
		names[i] = s.Rule().CanonicalName()
	}
	return fmt.Sprintf("%s: found multiple solutions: %s", e.Trace, strings.Join(names, ", "))
}

// SolveFailureError is the single failure surfaced by SolveFor. It
// aggregates every error encountered across all attempted branches and
// candidates.
type SolveFailureError struct {
	Errors []error
}

func (e *SolveFailureError) Error() string {
	var sb strings.Builder
	sb.WriteString("solving failure:")
	for _, err := range e.Errors {
		sb.WriteString("\n- ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (e *SolveFailureError) Unwrap() []error { return e.Errors }

// Contains reports whether any aggregated error matches target, with
// errors.As semantics. It lets callers assert on the kind of failure
// without parsing messages:
//
//	var cyclic *solver.CyclicDependencyError
//	failure.Contains(&cyclic)
func (e *SolveFailureError) Contains(target any) bool {
	for _, err := range e.Errors {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
