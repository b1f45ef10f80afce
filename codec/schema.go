package codec

import (
	"fmt"
	"reflect"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/schema"
)

// RegisterSchema makes override available to fields tagged schema=name.
// When name is the Go name of a self-coded type, the override also stands
// in for that type wherever it appears.
func (r *Registry) RegisterSchema(name string, override schema.Override) error {
	if name == "" || override.Declaration == "" {
		return fmt.Errorf("%w: schema override needs a name and a declaration", errs.ErrInvalidDefinition)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[name]; exists {
		return fmt.Errorf("%w: schema override %s registered twice", errs.ErrInvalidDefinition, name)
	}
	r.schemas[name] = override
	r.generation++

	return nil
}

// Schema compiles t and returns the schema registry of everything it reaches,
// with the declaration of t.
func (r *Registry) Schema(t reflect.Type) (*schema.Registry, string, error) {
	ref, err := r.Ref(t)
	if err != nil {
		return nil, "", err
	}
	u, err := r.Universe()
	if err != nil {
		return nil, "", err
	}

	r.mu.RLock()
	opts := make([]schema.Option, 0, len(r.schemas))
	for name, ov := range r.schemas {
		opts = append(opts, schema.WithOverride(name, ov))
	}
	r.mu.RUnlock()

	return schema.Build(u, ref, opts...)
}
