package metadata

// NameKind is the attribute kind used by Name.
const NameKind = "name"

// Name attaches a symbolic name to a produced value's type.
type Name string

// Kind implements Attribute.
func (n Name) Kind() string { return NameKind }

// Key implements Attribute.
func (n Name) Key() string { return "name=" + string(n) }

// SelectName is a qualifier matching candidates whose attributes carry an
// equal Name.
type SelectName string

// Qualify implements Qualifier.
func (s SelectName) Qualify(attrs AttributeSet) bool {
	a, ok := attrs.Get(NameKind)
	if !ok {
		return false
	}
	name, ok := a.(Name)
	return ok && string(name) == string(s)
}

// Key implements Qualifier.
func (s SelectName) Key() string { return "select-name=" + string(s) }
