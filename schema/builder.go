package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/internal/options"
	"github.com/arloliu/canon/plan"
	"github.com/arloliu/canon/typedef"
)

// Override replaces the derived shape of fields that name it with
// schema=name. The field refers to Declaration; Define, if set, runs once
// per Builder and must register whatever Declaration needs.
type Override struct {
	Declaration string
	Define      func(r *Registry) error
}

// Builder registers the shapes reachable from root types.
type Builder struct {
	universe  *typedef.Universe
	registry  *Registry
	overrides map[string]Override
	defined   map[string]bool
	plans     map[string]*plan.Plan
}

// Option configures a Builder.
type Option = options.Option[*Builder]

// WithOverride makes override available to fields declaring schema=name.
func WithOverride(name string, override Override) Option {
	return options.New(func(b *Builder) error {
		if name == "" || override.Declaration == "" {
			return fmt.Errorf("%w: schema override needs a name and a declaration", errs.ErrInvalidDefinition)
		}
		b.overrides[name] = override

		return nil
	})
}

// WithRegistry makes the Builder add to an existing registry.
func WithRegistry(r *Registry) Option {
	return options.NoError(func(b *Builder) {
		b.registry = r
	})
}

// NewBuilder returns a Builder resolving named types in universe.
func NewBuilder(universe *typedef.Universe, opts ...Option) (*Builder, error) {
	b := &Builder{
		universe:  universe,
		registry:  NewRegistry(),
		overrides: make(map[string]Override),
		defined:   make(map[string]bool),
		plans:     make(map[string]*plan.Plan),
	}
	if err := options.Apply(b, opts...); err != nil {
		return nil, err
	}

	return b, nil
}

// Build registers the shape of root and everything it reaches, returning the
// registry and the declaration of root.
func Build(universe *typedef.Universe, root typedef.TypeRef, opts ...Option) (*Registry, string, error) {
	b, err := NewBuilder(universe, opts...)
	if err != nil {
		return nil, "", err
	}

	decl, err := b.Visit(root)
	if err != nil {
		return nil, "", err
	}

	return b.Registry(), decl, nil
}

// Registry returns the registry being built.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Declaration returns the registry key of ref: its Go syntax with named types
// qualified by the universe namespace.
func (b *Builder) Declaration(ref typedef.TypeRef) string {
	var sb strings.Builder
	b.writeDecl(&sb, ref)

	return sb.String()
}

func (b *Builder) writeDecl(sb *strings.Builder, ref typedef.TypeRef) {
	switch ref.Kind {
	case typedef.RefSequence:
		sb.WriteString("[]")
		b.writeDecl(sb, *ref.Elem)
	case typedef.RefFixed:
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(ref.Len))
		sb.WriteByte(']')
		b.writeDecl(sb, *ref.Elem)
	case typedef.RefOption:
		sb.WriteByte('*')
		b.writeDecl(sb, *ref.Elem)
	case typedef.RefMap:
		sb.WriteString("map[")
		b.writeDecl(sb, *ref.Key)
		sb.WriteByte(']')
		b.writeDecl(sb, *ref.Elem)
	case typedef.RefNamed:
		sb.WriteString(b.universe.Qualify(ref.Name))
		if len(ref.Args) > 0 {
			sb.WriteByte('[')
			for i, arg := range ref.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				b.writeDecl(sb, arg)
			}
			sb.WriteByte(']')
		}
	default:
		sb.WriteString(ref.String())
	}
}

// Visit registers ref and the shapes it reaches, and returns its declaration.
// A declaration already in the registry is returned without being visited.
// On error the registry may hold the entries registered before the failure.
//
// A named type without a definition resolves to the override registered
// under its name, which is how self-coded types take part in a schema.
func (b *Builder) Visit(ref typedef.TypeRef) (string, error) {
	if ref.Kind == typedef.RefNamed && len(ref.Args) == 0 {
		if _, ok := b.universe.Lookup(ref.Name); !ok {
			if _, ok := b.overrides[ref.Name]; ok {
				return b.override(ref.Name)
			}
		}
	}

	decl := b.Declaration(ref)
	if b.registry.Has(decl) {
		return decl, nil
	}

	switch ref.Kind {
	case typedef.RefPrimitive:
		b.registry.Add(decl, Node{Kind: KindPrimitive, Size: ref.Prim.Size()})
	case typedef.RefSequence, typedef.RefFixed:
		elem, err := b.Visit(*ref.Elem)
		if err != nil {
			return "", err
		}
		if ref.Kind == typedef.RefSequence {
			b.registry.Add(decl, Node{Kind: KindSequence, Elem: elem})
		} else {
			b.registry.Add(decl, Node{Kind: KindFixed, Len: ref.Len, Elem: elem})
		}
	case typedef.RefOption:
		elem, err := b.Visit(*ref.Elem)
		if err != nil {
			return "", err
		}
		b.registry.Add(decl, Node{Kind: KindEnum, Variants: []Variant{
			{Name: "None", Tag: 0},
			{Name: "Some", Tag: 1, Fields: []Field{{Name: "0", Ref: elem}}},
		}})
	case typedef.RefMap:
		key, err := b.Visit(*ref.Key)
		if err != nil {
			return "", err
		}
		value, err := b.Visit(*ref.Elem)
		if err != nil {
			return "", err
		}
		entry := "(" + key + ", " + value + ")"
		b.registry.Add(entry, Node{Kind: KindStruct, Fields: []Field{{Name: "0", Ref: key}, {Name: "1", Ref: value}}})
		b.registry.Add(decl, Node{Kind: KindSequence, Elem: entry})
	case typedef.RefNamed:
		if err := b.visitNamed(decl, ref); err != nil {
			return "", err
		}
	case typedef.RefParam:
		return "", fmt.Errorf("%w: unbound generic parameter %s", errs.ErrMalformedGenericArgs, ref.Name)
	default:
		return "", fmt.Errorf("%w: type ref kind %d", errs.ErrInvalidDefinition, ref.Kind)
	}

	return decl, nil
}

func (b *Builder) planOf(def *typedef.Definition) (*plan.Plan, error) {
	if p, ok := b.plans[def.Name]; ok {
		return p, nil
	}

	p, err := plan.Build(def)
	if err != nil {
		return nil, err
	}
	b.plans[def.Name] = p

	return p, nil
}

func (b *Builder) visitNamed(decl string, ref typedef.TypeRef) error {
	def, ok := b.universe.Lookup(ref.Name)
	if !ok {
		return fmt.Errorf("%w: no definition for %s", errs.ErrUnsupportedType, ref.Name)
	}
	if len(ref.Args) != len(def.Params) {
		return errs.Definition(def.Name, "", fmt.Errorf("%w: %s has %d arguments for %d parameters",
			errs.ErrMalformedGenericArgs, ref, len(ref.Args), len(def.Params)))
	}
	for _, arg := range ref.Args {
		if !arg.IsConcrete() {
			return errs.Definition(def.Name, "", fmt.Errorf("%w: argument %s is not concrete",
				errs.ErrMalformedGenericArgs, arg))
		}
	}

	p, err := b.planOf(def)
	if err != nil {
		return err
	}
	bindings, err := p.Bindings(ref.Args)
	if err != nil {
		return err
	}

	if def.Shape == typedef.ShapeSum {
		node := b.registry.reserve(decl, KindEnum)
		variants := make([]Variant, len(p.Variants))
		for i, vp := range p.Variants {
			fields, err := b.fields(def.Name, vp.Name+".", vp.Fields, bindings)
			if err != nil {
				return err
			}
			variants[i] = Variant{Name: vp.Name, Tag: vp.Tag, Fields: fields}
		}
		node.Variants = variants

		return nil
	}

	node := b.registry.reserve(decl, KindStruct)
	fields, err := b.fields(def.Name, "", p.Fields, bindings)
	if err != nil {
		return err
	}
	node.Fields = fields
	node.Overlay = def.Shape == typedef.ShapeOverlay

	return nil
}

// fields returns the schema fields of the participating field plans.
func (b *Builder) fields(typeName, prefix string, plans []plan.FieldPlan, bindings map[string]typedef.TypeRef) ([]Field, error) {
	var out []Field
	for _, fp := range plans {
		if !fp.Participates {
			continue
		}

		f := fp.Field
		var ref string
		if f.SchemaWith != "" {
			decl, err := b.override(f.SchemaWith)
			if err != nil {
				return nil, errs.Definition(typeName, prefix+f.Name, err)
			}
			ref = decl
		} else {
			decl, err := b.Visit(f.Type.Substitute(bindings))
			if err != nil {
				return nil, errs.Definition(typeName, prefix+f.Name, err)
			}
			ref = decl
		}
		out = append(out, Field{Name: f.Name, Ref: ref})
	}

	return out, nil
}

func (b *Builder) override(name string) (string, error) {
	ov, ok := b.overrides[name]
	if !ok {
		return "", fmt.Errorf("%w: schema override %s", errs.ErrUnknownCodec, name)
	}
	if ov.Define != nil && !b.defined[name] {
		b.defined[name] = true
		if err := ov.Define(b.registry); err != nil {
			return "", err
		}
	}

	return ov.Declaration, nil
}
