// Package rules defines the normalized construction-rule records the
// engine consumes: an invocable plus the typed shape of its inputs and
// output. Rule records are created by a declaration loader (or directly in
// code), validated at construction, and immutable afterwards.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/construct/typeinfo"
)

var (
	// ErrNilFunction is returned when a rule is declared without an invocable.
	ErrNilFunction = errors.New("rules: nil function")
	// ErrMissingOutputType is returned when a rule is declared without an
	// output type.
	ErrMissingOutputType = errors.New("rules: missing output type")
	// ErrMissingDependencyType is returned when a dependency is declared
	// without a type.
	ErrMissingDependencyType = errors.New("rules: missing dependency type")
)

// Invoke is the opaque invocable behind a rule. It receives the resolved
// dependency values keyed by dependency name.
type Invoke func(ctx context.Context, args map[string]any) (any, error)

// Dependency is one named, typed input of a rule.
type Dependency struct {
	Name string
	Type *typeinfo.Type
}

// Rule is a normalized construction step. Two rules are structurally equal
// iff their canonical name, output type, dependencies, priority and async
// flag are equal; the invocable never participates in identity.
type Rule struct {
	fn            Invoke
	canonicalName string
	output        *typeinfo.Type
	deps          []Dependency
	priority      int
	isAsync       bool
	key           string
}

// Option customizes a rule at construction.
type Option func(*Rule)

// WithPriority sets the rule's priority. Higher wins ties.
func WithPriority(p int) Option {
	return func(r *Rule) { r.priority = p }
}

// Async marks the rule as requiring asynchronous execution.
func Async() Option {
	return func(r *Rule) { r.isAsync = true }
}

// New builds a validated rule. Dependencies are normalized into name
// order. A nil function, nil output type or nil dependency type is
// rejected here so that solving never encounters a malformed rule.
func New(fn Invoke, canonicalName string, output *typeinfo.Type, dependencies map[string]*typeinfo.Type, opts ...Option) (*Rule, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: rule %q", ErrNilFunction, canonicalName)
	}
	if output == nil {
		return nil, fmt.Errorf("%w: rule %q", ErrMissingOutputType, canonicalName)
	}
	deps := make([]Dependency, 0, len(dependencies))
	for name, t := range dependencies {
		if t == nil {
			return nil, fmt.Errorf("%w: rule %q parameter %q", ErrMissingDependencyType, canonicalName, name)
		}
		deps = append(deps, Dependency{Name: name, Type: t})
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	r := &Rule{
		fn:            fn,
		canonicalName: canonicalName,
		output:        output,
		deps:          deps,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.key = computeKey(r)
	return r, nil
}

// Static builds a zero-dependency rule returning a fixed value.
func Static(canonicalName string, output *typeinfo.Type, value any, opts ...Option) (*Rule, error) {
	return New(func(context.Context, map[string]any) (any, error) {
		return value, nil
	}, canonicalName, output, nil, opts...)
}

func computeKey(r *Rule) string {
	var sb strings.Builder
	sb.WriteString(r.canonicalName)
	sb.WriteString("|")
	sb.WriteString(r.output.Key())
	sb.WriteString("|p=")
	sb.WriteString(strconv.Itoa(r.priority))
	sb.WriteString("|async=")
	sb.WriteString(strconv.FormatBool(r.isAsync))
	for _, d := range r.deps {
		sb.WriteString("|")
		sb.WriteString(d.Name)
		sb.WriteString(":")
		sb.WriteString(d.Type.Key())
	}
	return sb.String()
}

// Call invokes the rule's function with the resolved dependency values.
func (r *Rule) Call(ctx context.Context, args map[string]any) (any, error) {
	return r.fn(ctx, args)
}

// CanonicalName returns the rule's stable label.
func (r *Rule) CanonicalName() string { return r.canonicalName }

// Output returns the descriptor of what the rule produces.
func (r *Rule) Output() *typeinfo.Type { return r.output }

// Dependencies returns the rule's inputs in name order.
func (r *Rule) Dependencies() []Dependency {
	out := make([]Dependency, len(r.deps))
	copy(out, r.deps)
	return out
}

// Priority returns the rule's tie-break priority.
func (r *Rule) Priority() int { return r.priority }

// IsAsync reports whether invocation requires asynchronous execution.
func (r *Rule) IsAsync() bool { return r.isAsync }

// Key returns the rule's structural identity string.
func (r *Rule) Key() string { return r.key }

// Equal reports structural equality.
func (r *Rule) Equal(other *Rule) bool {
	return other != nil && r.key == other.key
}

func (r *Rule) String() string {
	return fmt.Sprintf("Rule(%s, out=%s, deps=%d, priority=%d, async=%t)",
		r.canonicalName, r.output, len(r.deps), r.priority, r.isAsync)
}
