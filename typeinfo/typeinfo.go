// Package typeinfo defines the normalized type descriptor the engine
// matches on: a nominal base type, an attribute set, a qualifier set, and
// the solve directives (cardinality and specificity) that only carry
// meaning on queries.
package typeinfo

import (
	"strings"

	"github.com/vk/construct/metadata"
)

// Cardinality is the policy for how many solutions a query may yield.
type Cardinality int

const (
	// DefaultCardinality picks the best single solution deterministically;
	// ambiguity is not an error.
	DefaultCardinality Cardinality = iota
	// Exclusive requires exactly one valid solution and fails when several
	// exist.
	Exclusive
	// Exhaustive returns every valid solution.
	Exhaustive
)

func (c Cardinality) String() string {
	switch c {
	case Exclusive:
		return "Exclusive"
	case Exhaustive:
		return "Exhaustive"
	default:
		return "Default"
	}
}

// Specificity is the policy for how strictly a candidate's type must match
// the query's type.
type Specificity int

const (
	// AllowSubclass accepts the queried type or any subtype. This is the
	// default.
	AllowSubclass Specificity = iota
	// Exact accepts only the queried type itself.
	Exact
	// AllowSuperclass additionally admits supertypes of the queried type,
	// but only when no exact or subtype candidate exists; it is meant for
	// dependency resolution, not top-level queries.
	AllowSuperclass
)

func (s Specificity) String() string {
	switch s {
	case Exact:
		return "Exact"
	case AllowSuperclass:
		return "AllowSuperclass"
	default:
		return "AllowSubclass"
	}
}

// SolveParameter bundles the directives attached to a query.
type SolveParameter struct {
	Cardinality Cardinality
	Specificity Specificity
}

// Type is a normalized type descriptor. It is an immutable value; all
// derivation helpers return a new descriptor.
//
// Identity (Key) covers the base type, attributes and qualifiers. Solve
// directives are deliberately excluded: two queries differing only in
// cardinality or specificity address the same underlying value shape.
type Type struct {
	base       *Base
	attributes metadata.AttributeSet
	qualifiers metadata.Qualifiers
	solve      SolveParameter
	key        string
}

// Option customizes a descriptor at construction.
type Option func(*Type)

// WithAttributes attaches attributes describing the produced value.
func WithAttributes(attrs ...metadata.Attribute) Option {
	return func(t *Type) { t.attributes = metadata.Attributes(attrs...) }
}

// WithQualifiers attaches query predicates.
func WithQualifiers(qs ...metadata.Qualifier) Option {
	return func(t *Type) { t.qualifiers = metadata.NewQualifiers(qs...) }
}

// WithCardinality sets the query's cardinality directive.
func WithCardinality(c Cardinality) Option {
	return func(t *Type) { t.solve.Cardinality = c }
}

// WithSpecificity sets the query's specificity directive.
func WithSpecificity(s Specificity) Option {
	return func(t *Type) { t.solve.Specificity = s }
}

// New builds a type descriptor for the given base type.
func New(base *Base, opts ...Option) *Type {
	t := &Type{base: base}
	for _, opt := range opts {
		opt(t)
	}
	t.key = computeKey(t)
	return t
}

func computeKey(t *Type) string {
	var sb strings.Builder
	sb.WriteString(t.base.Name())
	if t.attributes.Len() > 0 {
		sb.WriteString("[")
		sb.WriteString(t.attributes.Key())
		sb.WriteString("]")
	}
	if t.qualifiers.Len() > 0 {
		sb.WriteString("{")
		sb.WriteString(t.qualifiers.Key())
		sb.WriteString("}")
	}
	return sb.String()
}

// Base returns the nominal type identity.
func (t *Type) Base() *Base { return t.base }

// Attributes returns the attribute set.
func (t *Type) Attributes() metadata.AttributeSet { return t.attributes }

// Qualifiers returns the qualifier set.
func (t *Type) Qualifiers() metadata.Qualifiers { return t.qualifiers }

// Solve returns the solve directives.
func (t *Type) Solve() SolveParameter { return t.solve }

// Key returns the descriptor's identity string. Descriptors with equal
// keys address the same value shape regardless of solve directives.
func (t *Type) Key() string { return t.key }

// Equal reports identity equality (base + attributes + qualifiers).
func (t *Type) Equal(other *Type) bool {
	return other != nil && t.key == other.key
}

// WithSolve returns a copy of t carrying the given solve directives.
func (t *Type) WithSolve(p SolveParameter) *Type {
	clone := *t
	clone.solve = p
	return &clone
}

func (t *Type) String() string {
	var sb strings.Builder
	sb.WriteString(t.key)
	sb.WriteString("(")
	sb.WriteString(t.solve.Specificity.String())
	sb.WriteString(",")
	sb.WriteString(t.solve.Cardinality.String())
	sb.WriteString(")")
	return sb.String()
}

// Matches reports whether a candidate output descriptor satisfies a query
// under the query's specificity, and whether the candidate's attributes
// satisfy the query's attributes and qualifiers.
//
// AllowSuperclass queries match here like AllowSubclass; the supertype
// fallback is a registry-level second pass (see MatchesSuper) because it
// only applies when no exact or subtype candidate exists.
func Matches(candidate, query *Type) bool {
	if !MatchesBase(candidate.base, query) {
		return false
	}
	return matchesMetadata(candidate, query)
}

// MatchesBase checks only the type-compatibility half of Matches.
func MatchesBase(candidate *Base, query *Type) bool {
	if query.solve.Specificity == Exact {
		return candidate == query.base
	}
	return candidate.Is(query.base)
}

// MatchesSuper reports whether a candidate satisfies a query by being a
// strict supertype of the queried type, with the query's attributes and
// qualifiers still satisfied. Only meaningful for AllowSuperclass queries.
func MatchesSuper(candidate, query *Type) bool {
	if !query.base.IsSubtypeOf(candidate.base) {
		return false
	}
	return matchesMetadata(candidate, query)
}

func matchesMetadata(candidate, query *Type) bool {
	if !candidate.attributes.Contains(query.attributes) {
		return false
	}
	return query.qualifiers.Qualify(candidate.attributes)
}
