// Package registry indexes construction rules by the base type of their
// output and answers "which rules can produce a value matching this query"
// lookups, applying the query's qualifier and specificity policy.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/vk/construct/rules"
	"github.com/vk/construct/typeinfo"
)

type entry struct {
	rule *rules.Rule
	seq  int
}

// Registry owns the full set of registered rules. Registration never
// mutates existing rules, and lookups are pure reads, so a registry may be
// shared by concurrent solvers once populated.
type Registry struct {
	mu sync.RWMutex

	// byBase buckets each rule under its output base type and every
	// ancestor of it, so "this type or a subtype" lookups are a single
	// bucket read.
	byBase map[*typeinfo.Base][]entry
	seen   map[string]struct{}
	seq    int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byBase: make(map[*typeinfo.Base][]entry),
		seen:   make(map[string]struct{}),
	}
}

// Add registers a rule. Registration is idempotent under structural rule
// equality: adding an equal rule twice is a no-op.
func (r *Registry) Add(rule *rules.Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[rule.Key()]; dup {
		slog.Debug("Skipping duplicate rule registration.", "rule", rule.CanonicalName())
		return
	}
	r.seen[rule.Key()] = struct{}{}

	e := entry{rule: rule, seq: r.seq}
	r.seq++

	base := rule.Output().Base()
	r.byBase[base] = append(r.byBase[base], e)
	for _, ancestor := range base.Ancestors() {
		r.byBase[ancestor] = append(r.byBase[ancestor], e)
	}
	slog.Debug("Registered rule.", "rule", rule.CanonicalName(), "output", rule.Output().Key())
}

// AddAll registers rules in order.
func (r *Registry) AddAll(rs ...*rules.Rule) {
	for _, rule := range rs {
		r.Add(rule)
	}
}

// Len returns the number of distinct registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seen)
}

// Rules returns every rule whose output matches the query under the
// query's specificity and qualifiers, in registration order. Priority
// ordering is deliberately not applied here; tie-breaking belongs to the
// solver, which has path context the registry lacks.
//
// For AllowSuperclass queries, supertype candidates are admitted only when
// no exact or subtype candidate matched.
func (r *Registry) Rules(query *typeinfo.Type) []*rules.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]entry, 0, 4)
	for _, e := range r.byBase[query.Base()] {
		if typeinfo.Matches(e.rule.Output(), query) {
			matched = append(matched, e)
		}
	}

	if len(matched) == 0 && query.Solve().Specificity == typeinfo.AllowSuperclass {
		matched = r.superclassFallback(query)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	out := make([]*rules.Rule, len(matched))
	for i, e := range matched {
		out[i] = e.rule
	}
	return out
}

// superclassFallback scans the query type's ancestors, nearest first, and
// admits rules producing exactly that supertype. The first ancestor level
// with any match wins, keeping the relaxation as narrow as possible.
func (r *Registry) superclassFallback(query *typeinfo.Type) []entry {
	for _, ancestor := range query.Base().Ancestors() {
		var matched []entry
		for _, e := range r.byBase[ancestor] {
			if e.rule.Output().Base() != ancestor {
				continue
			}
			if typeinfo.MatchesSuper(e.rule.Output(), query) {
				matched = append(matched, e)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return nil
}
