// Package metadata models the descriptive metadata attached to type
// descriptors: attributes (facts about a produced value) and qualifiers
// (predicates a query places on a candidate's attributes).
//
// Attributes and qualifiers live in disjoint namespaces and are never
// compared to each other directly; the only bridge between them is
// Qualifiers.Qualify, which evaluates a query's qualifiers against a
// candidate's attributes.
package metadata

import (
	"sort"
	"strings"
)

// Attribute is a descriptive fact attached to a produced value's type.
// A set holds at most one attribute per Kind.
type Attribute interface {
	// Kind identifies the attribute family. Adding an attribute to a set
	// replaces any existing attribute of the same kind.
	Kind() string

	// Key is a stable identity string covering the attribute's kind and
	// value. It participates in type descriptor identity.
	Key() string
}

// Qualifier is a predicate a query places on a candidate's attributes.
type Qualifier interface {
	// Qualify reports whether the candidate attribute set satisfies this
	// qualifier.
	Qualify(attrs AttributeSet) bool

	// Key is a stable identity string for the qualifier. It participates
	// in type descriptor identity.
	Key() string
}

// AttributeSet is an immutable set of attributes keyed by kind.
// The zero value is the empty set.
type AttributeSet struct {
	byKind map[string]Attribute
	key    string
}

// Attributes builds an attribute set. Later attributes of the same kind
// replace earlier ones.
func Attributes(attrs ...Attribute) AttributeSet {
	if len(attrs) == 0 {
		return AttributeSet{}
	}
	byKind := make(map[string]Attribute, len(attrs))
	for _, a := range attrs {
		byKind[a.Kind()] = a
	}
	keys := make([]string, 0, len(byKind))
	for _, a := range byKind {
		keys = append(keys, a.Key())
	}
	sort.Strings(keys)
	return AttributeSet{byKind: byKind, key: strings.Join(keys, ",")}
}

// Get returns the attribute of the given kind, if present.
func (s AttributeSet) Get(kind string) (Attribute, bool) {
	a, ok := s.byKind[kind]
	return a, ok
}

// Len returns the number of attributes in the set.
func (s AttributeSet) Len() int { return len(s.byKind) }

// All returns the attributes ordered by kind.
func (s AttributeSet) All() []Attribute {
	kinds := make([]string, 0, len(s.byKind))
	for k := range s.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	attrs := make([]Attribute, 0, len(kinds))
	for _, k := range kinds {
		attrs = append(attrs, s.byKind[k])
	}
	return attrs
}

// Contains reports whether every attribute in sub is also present in s
// with an identical key.
func (s AttributeSet) Contains(sub AttributeSet) bool {
	for kind, want := range sub.byKind {
		got, ok := s.byKind[kind]
		if !ok || got.Key() != want.Key() {
			return false
		}
	}
	return true
}

// Key returns the set's identity string. Equal sets have equal keys.
func (s AttributeSet) Key() string { return s.key }

// Qualifiers is an immutable collection of qualifiers. A collection
// matches iff every member matches (logical AND); the empty collection
// matches everything. The zero value is the empty collection.
type Qualifiers struct {
	list []Qualifier
	key  string
}

// NewQualifiers builds a qualifier collection.
func NewQualifiers(qs ...Qualifier) Qualifiers {
	if len(qs) == 0 {
		return Qualifiers{}
	}
	list := make([]Qualifier, len(qs))
	copy(list, qs)
	keys := make([]string, len(list))
	for i, q := range list {
		keys[i] = q.Key()
	}
	sort.Strings(keys)
	return Qualifiers{list: list, key: strings.Join(keys, ",")}
}

// Qualify reports whether attrs satisfies every qualifier in the
// collection. It is vacuously true for the empty collection.
func (q Qualifiers) Qualify(attrs AttributeSet) bool {
	for _, qualifier := range q.list {
		if !qualifier.Qualify(attrs) {
			return false
		}
	}
	return true
}

// Len returns the number of qualifiers in the collection.
func (q Qualifiers) Len() int { return len(q.list) }

// All returns the qualifiers in insertion order.
func (q Qualifiers) All() []Qualifier {
	out := make([]Qualifier, len(q.list))
	copy(out, q.list)
	return out
}

// Key returns the collection's identity string.
func (q Qualifiers) Key() string { return q.key }
