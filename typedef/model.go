package typedef

import (
	"fmt"
	"strings"

	"github.com/arloliu/canon/errs"
)

// Shape is the structural kind of a Definition or Variant.
type Shape uint8

const (
	ShapeRecord  Shape = 0x1 // ShapeRecord has named fields.
	ShapeTuple   Shape = 0x2 // ShapeTuple has positional fields.
	ShapeOverlay Shape = 0x3 // ShapeOverlay fields share storage; exactly one is active.
	ShapeSum     Shape = 0x4 // ShapeSum is a tagged union of variants.
)

func (s Shape) String() string {
	switch s {
	case ShapeRecord:
		return "record"
	case ShapeTuple:
		return "tuple"
	case ShapeOverlay:
		return "overlay"
	case ShapeSum:
		return "sum"
	default:
		return "unknown"
	}
}

// ParseShape parses the String form of a Shape.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case "record", "":
		return ShapeRecord, nil
	case "tuple":
		return ShapeTuple, nil
	case "overlay":
		return ShapeOverlay, nil
	case "sum":
		return ShapeSum, nil
	default:
		return 0, fmt.Errorf("%w: unknown shape %q", errs.ErrInvalidDefinition, s)
	}
}

// DiscriminantMode selects how sum variant tags are derived.
type DiscriminantMode uint8

const (
	// ModeUnset is only valid when no variant declares an explicit discriminant.
	ModeUnset DiscriminantMode = iota
	// ModeDeclarationOrder uses the zero-based variant index as the tag and
	// ignores explicit discriminants.
	ModeDeclarationOrder
	// ModeExplicit uses the declared discriminant values as tags.
	ModeExplicit
)

func (m DiscriminantMode) String() string {
	switch m {
	case ModeUnset:
		return "unset"
	case ModeDeclarationOrder:
		return "declaration-order"
	case ModeExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// ParseDiscriminantMode parses the String form of a DiscriminantMode.
func ParseDiscriminantMode(s string) (DiscriminantMode, error) {
	switch strings.ToLower(s) {
	case "", "unset":
		return ModeUnset, nil
	case "declaration-order", "order":
		return ModeDeclarationOrder, nil
	case "explicit":
		return ModeExplicit, nil
	default:
		return 0, fmt.Errorf("%w: unknown discriminant mode %q", errs.ErrInvalidDefinition, s)
	}
}

// Capability is a set of requirements a type argument must satisfy.
type Capability uint8

const (
	CapEncode Capability = 1 << iota
	CapDecode
	CapDefault
	CapSchema

	CapNone Capability = 0
	CapAll             = CapEncode | CapDecode | CapDefault | CapSchema
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapEncode, "encode"},
	{CapDecode, "decode"},
	{CapDefault, "default"},
	{CapSchema, "schema"},
}

// Has reports whether c contains every capability in other.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// Missing returns the capabilities of required that c lacks.
func (c Capability) Missing(required Capability) Capability {
	return required &^ c
}

func (c Capability) String() string {
	if c == CapNone {
		return "none"
	}

	parts := make([]string, 0, len(capabilityNames))
	for _, cn := range capabilityNames {
		if c.Has(cn.cap) {
			parts = append(parts, cn.name)
		}
	}

	return strings.Join(parts, "+")
}

// ParseCapability parses strings such as "encode+decode", "all" or "none".
func ParseCapability(s string) (Capability, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "none":
		return CapNone, nil
	case "all":
		return CapAll, nil
	}

	var c Capability
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == ' ' }) {
		found := false
		for _, cn := range capabilityNames {
			if cn.name == part {
				c |= cn.cap
				found = true

				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown capability %q", errs.ErrInvalidDefinition, part)
		}
	}

	return c, nil
}

// Field describes one field of a record, tuple, overlay or variant.
type Field struct {
	// Name is the field name; tuple fields use their position ("0", "1", ...).
	Name string
	// Index is the declaration position, which is also the wire position.
	Index int
	Type  TypeRef
	// Skip excludes the field from the wire; decode binds its default value.
	Skip bool
	// With names a custom codec that replaces the derived one.
	With string
	// Bounds, when non-nil, replaces the inferred bound contribution of the field.
	Bounds map[string]Capability
	// SchemaWith names a schema override that replaces the derived shape.
	SchemaWith string
}

// Variant is one alternative of a sum type.
type Variant struct {
	Name  string
	Index int
	// Discriminant is the source text of an explicit discriminant, empty if none.
	Discriminant string
	// Shape is ShapeRecord or ShapeTuple; a variant without fields is a unit variant.
	Shape  Shape
	Fields []Field
}

// Definition is an immutable description of one type.
type Definition struct {
	Name string
	// Params lists the generic parameter names in declaration order.
	Params   []string
	Shape    Shape
	Fields   []Field
	Variants []Variant
	Mode     DiscriminantMode
	// InitHook names the method run on a fully decoded value, empty for none.
	InitHook string
	// Capabilities is what the type offers when used as a generic argument.
	// Zero means CapAll.
	Capabilities Capability
}

// Provides returns the capabilities the type offers to its users.
func (d *Definition) Provides() Capability {
	if d.Capabilities == CapNone {
		return CapAll
	}

	return d.Capabilities
}

// Ref returns a reference to d with its own parameters as arguments.
func (d *Definition) Ref() TypeRef {
	args := make([]TypeRef, len(d.Params))
	for i, p := range d.Params {
		args[i] = Param(p)
	}

	return Named(d.Name, args...)
}

// HasParam reports whether name is one of d's generic parameters.
func (d *Definition) HasParam(name string) bool {
	for _, p := range d.Params {
		if p == name {
			return true
		}
	}

	return false
}

// Validate checks the structural invariants of d. It does not resolve
// discriminants or field options; package plan does that.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty type name", errs.ErrInvalidDefinition)
	}

	seen := make(map[string]struct{}, len(d.Params))
	for _, p := range d.Params {
		if _, dup := seen[p]; dup {
			return errs.Definition(d.Name, "", fmt.Errorf("%w: duplicate generic parameter %s", errs.ErrInvalidDefinition, p))
		}
		seen[p] = struct{}{}
	}

	switch d.Shape {
	case ShapeRecord, ShapeTuple, ShapeOverlay:
		if len(d.Variants) > 0 {
			return errs.Definition(d.Name, "", fmt.Errorf("%w: %s type declares variants", errs.ErrInvalidDefinition, d.Shape))
		}

		return d.validateFields("", d.Fields)
	case ShapeSum:
		if len(d.Fields) > 0 {
			return errs.Definition(d.Name, "", fmt.Errorf("%w: sum type declares fields", errs.ErrInvalidDefinition))
		}
		names := make(map[string]struct{}, len(d.Variants))
		for i, v := range d.Variants {
			if v.Index != i {
				return errs.Definition(d.Name, v.Name, fmt.Errorf("%w: variant index %d at position %d", errs.ErrInvalidDefinition, v.Index, i))
			}
			if _, dup := names[v.Name]; dup || v.Name == "" {
				return errs.Definition(d.Name, v.Name, fmt.Errorf("%w: duplicate or empty variant name", errs.ErrInvalidDefinition))
			}
			names[v.Name] = struct{}{}
			if v.Shape != ShapeRecord && v.Shape != ShapeTuple {
				return errs.Definition(d.Name, v.Name, fmt.Errorf("%w: variant shape %s", errs.ErrInvalidDefinition, v.Shape))
			}
			if err := d.validateFields(v.Name+".", v.Fields); err != nil {
				return err
			}
		}

		return nil
	default:
		return errs.Definition(d.Name, "", fmt.Errorf("%w: unknown shape %d", errs.ErrInvalidDefinition, d.Shape))
	}
}

func (d *Definition) validateFields(prefix string, fields []Field) error {
	names := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		item := prefix + f.Name
		if f.Index != i {
			return errs.Definition(d.Name, item, fmt.Errorf("%w: field index %d at position %d", errs.ErrInvalidDefinition, f.Index, i))
		}
		if _, dup := names[f.Name]; dup || f.Name == "" {
			return errs.Definition(d.Name, item, fmt.Errorf("%w: duplicate or empty field name", errs.ErrInvalidDefinition))
		}
		names[f.Name] = struct{}{}
		for _, p := range f.Type.Params() {
			if !d.HasParam(p) {
				return errs.Definition(d.Name, item, fmt.Errorf("%w: undeclared generic parameter %s", errs.ErrInvalidDefinition, p))
			}
		}
	}

	return nil
}
