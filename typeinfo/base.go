package typeinfo

// Base is the nominal identity of a type. Subtype relationships are
// declared explicitly through parent links rather than discovered by
// reflection; the engine only ever compares identities and walks the
// parent graph.
//
// Identity is pointer identity: two Base values are the same type iff
// they are the same *Base. Names are used for diagnostics and for the
// string keys of descriptors, so they should be unique within a process
// (the manifest loader enforces this for declared types).
type Base struct {
	name    string
	parents []*Base
}

// NewBase declares a type with the given name and optional supertypes.
func NewBase(name string, parents ...*Base) *Base {
	ps := make([]*Base, len(parents))
	copy(ps, parents)
	return &Base{name: name, parents: ps}
}

// Name returns the declared type name.
func (b *Base) Name() string { return b.name }

// Parents returns the declared direct supertypes.
func (b *Base) Parents() []*Base {
	out := make([]*Base, len(b.parents))
	copy(out, b.parents)
	return out
}

// IsSubtypeOf reports whether b is a strict subtype of other, walking the
// full parent graph.
func (b *Base) IsSubtypeOf(other *Base) bool {
	if b == other {
		return false
	}
	seen := map[*Base]struct{}{b: {}}
	queue := append([]*Base(nil), b.parents...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p == other {
			return true
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		queue = append(queue, p.parents...)
	}
	return false
}

// Is reports whether b is other or a subtype of other.
func (b *Base) Is(other *Base) bool {
	return b == other || b.IsSubtypeOf(other)
}

// Ancestors returns every strict supertype of b, nearest first, each
// listed once.
func (b *Base) Ancestors() []*Base {
	var out []*Base
	seen := map[*Base]struct{}{b: {}}
	queue := append([]*Base(nil), b.parents...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
		queue = append(queue, p.parents...)
	}
	return out
}

func (b *Base) String() string { return b.name }
