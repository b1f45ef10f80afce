package typedef

import (
	"fmt"

	"github.com/arloliu/canon/errs"
)

// Universe is a set of definitions addressable by name, plus the namespace
// prefix used when declarations are rendered for external tooling.
type Universe struct {
	Namespace string

	defs  map[string]*Definition
	order []string
}

// NewUniverse returns an empty Universe with the given namespace.
func NewUniverse(namespace string) *Universe {
	return &Universe{
		Namespace: namespace,
		defs:      make(map[string]*Definition),
	}
}

// Add validates def and registers it. Adding a second definition under the same
// name is an error.
func (u *Universe) Add(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if _, exists := u.defs[def.Name]; exists {
		return errs.Definition(def.Name, "", fmt.Errorf("%w: defined twice", errs.ErrInvalidDefinition))
	}
	u.defs[def.Name] = def
	u.order = append(u.order, def.Name)

	return nil
}

// Lookup returns the definition registered under name.
func (u *Universe) Lookup(name string) (*Definition, bool) {
	def, ok := u.defs[name]
	return def, ok
}

// Definitions returns all definitions in registration order.
func (u *Universe) Definitions() []*Definition {
	out := make([]*Definition, 0, len(u.order))
	for _, name := range u.order {
		out = append(out, u.defs[name])
	}

	return out
}

// Len returns the number of registered definitions.
func (u *Universe) Len() int {
	return len(u.order)
}

// Qualify prefixes name with the namespace, if any.
func (u *Universe) Qualify(name string) string {
	if u.Namespace == "" {
		return name
	}

	return u.Namespace + "." + name
}

// Provides reports the capabilities a concrete type offers as a generic argument.
// Primitives and built-in composites provide everything their components provide;
// named types provide what their definition declares. Unknown names provide nothing.
func (u *Universe) Provides(ref TypeRef) Capability {
	switch ref.Kind {
	case RefPrimitive:
		return CapAll
	case RefSequence, RefFixed, RefOption:
		return u.Provides(*ref.Elem)
	case RefMap:
		return u.Provides(*ref.Key) & u.Provides(*ref.Elem)
	case RefNamed:
		def, ok := u.Lookup(ref.Name)
		if !ok {
			return CapNone
		}
		provided := def.Provides()
		for _, arg := range ref.Args {
			provided &= u.Provides(arg)
		}

		return provided
	default:
		return CapNone
	}
}
