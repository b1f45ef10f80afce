// Package plan turns a typedef.Definition into the per-field decisions the
// codec and schema generators consume: whether a field is on the wire, which
// codec handles it, and which capabilities it requires of the type's generic
// parameters.
package plan

import (
	"fmt"

	"github.com/arloliu/canon/discriminant"
	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/typedef"
)

// Inferred bound contributions.
const (
	participatingBound = typedef.CapEncode | typedef.CapDecode | typedef.CapSchema
	skippedBound       = typedef.CapDefault
	customBound        = typedef.CapSchema
)

// FieldPlan is the resolved treatment of one field.
type FieldPlan struct {
	Field typedef.Field
	// Participates is false for skipped fields, which are absent from the wire.
	Participates bool
	// Custom is the name of the custom codec, empty for the derived one.
	Custom string
	// Bounds is the field's contribution to the enclosing BoundSet.
	Bounds BoundSet
}

// VariantPlan is the resolved treatment of one sum variant.
type VariantPlan struct {
	Name   string
	Index  int
	Tag    uint8
	Shape  typedef.Shape
	Fields []FieldPlan
}

// Plan is the output of Build for one definition.
type Plan struct {
	Def *typedef.Definition
	// Fields is set for records, tuples and overlays, in declaration order.
	Fields []FieldPlan
	// Variants is set for sums, in declaration order.
	Variants []VariantPlan
	// Tags is the resolved tag table of a sum, nil otherwise.
	Tags   *discriminant.Tags
	Bounds BoundSet
}

// Build validates def and resolves its field plans, variant tags and bounds.
// Every configuration error is reported before anything is generated.
func Build(def *typedef.Definition) (*Plan, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	p := &Plan{Def: def, Bounds: make(BoundSet)}

	if def.Shape != typedef.ShapeSum {
		if def.Shape == typedef.ShapeOverlay && len(def.Fields) == 0 {
			return nil, errs.Definition(def.Name, "", fmt.Errorf("%w: overlay without fields", errs.ErrInvalidDefinition))
		}

		fields, err := buildFields(def, "", def.Fields)
		if err != nil {
			return nil, err
		}
		p.Fields = fields
		p.collectBounds()

		return p, nil
	}

	tags, err := discriminant.Resolve(def.Name, def.Variants, def.Mode)
	if err != nil {
		return nil, err
	}
	p.Tags = tags

	p.Variants = make([]VariantPlan, len(def.Variants))
	for i, v := range def.Variants {
		fields, err := buildFields(def, v.Name+".", v.Fields)
		if err != nil {
			return nil, err
		}
		p.Variants[i] = VariantPlan{
			Name:   v.Name,
			Index:  v.Index,
			Tag:    tags.Tag(i),
			Shape:  v.Shape,
			Fields: fields,
		}
	}
	p.collectBounds()

	return p, nil
}

func buildFields(def *typedef.Definition, prefix string, fields []typedef.Field) ([]FieldPlan, error) {
	plans := make([]FieldPlan, len(fields))
	for i, f := range fields {
		fp, err := buildField(def, f)
		if err != nil {
			return nil, errs.Definition(def.Name, prefix+f.Name, err)
		}
		plans[i] = fp
	}

	return plans, nil
}

func buildField(def *typedef.Definition, f typedef.Field) (FieldPlan, error) {
	if f.Skip {
		var conflicts []string
		if f.With != "" {
			conflicts = append(conflicts, "custom codec "+f.With)
		}
		if f.Bounds != nil {
			conflicts = append(conflicts, "bound override")
		}
		if f.SchemaWith != "" {
			conflicts = append(conflicts, "schema override "+f.SchemaWith)
		}
		if len(conflicts) > 0 {
			return FieldPlan{}, fmt.Errorf("%w: skipped field also declares %v", errs.ErrConflictingFieldOptions, conflicts)
		}
		if def.Shape == typedef.ShapeOverlay {
			return FieldPlan{}, fmt.Errorf("%w: overlay fields cannot be skipped", errs.ErrInvalidDefinition)
		}
	}

	fp := FieldPlan{
		Field:        f,
		Participates: !f.Skip,
		Custom:       f.With,
		Bounds:       make(BoundSet),
	}

	if f.Bounds != nil {
		for param, c := range f.Bounds {
			if !def.HasParam(param) {
				return FieldPlan{}, fmt.Errorf("%w: bound override names unknown parameter %s", errs.ErrInvalidDefinition, param)
			}
			fp.Bounds.add(param, c)
		}

		return fp, nil
	}

	var contribution typedef.Capability
	switch {
	case f.Skip:
		contribution = skippedBound
	case f.With != "":
		contribution = customBound
	default:
		contribution = participatingBound
	}
	if f.SchemaWith != "" {
		contribution &^= typedef.CapSchema
	}

	for _, param := range f.Type.Params() {
		fp.Bounds.add(param, contribution)
	}

	return fp, nil
}

func (p *Plan) collectBounds() {
	for _, fp := range p.Fields {
		p.Bounds.merge(fp.Bounds)
	}
	for _, vp := range p.Variants {
		for _, fp := range vp.Fields {
			p.Bounds.merge(fp.Bounds)
		}
	}
}

// Variant returns the plan of the variant whose tag is exactly tag.
func (p *Plan) Variant(tag uint8) (*VariantPlan, bool) {
	if p.Tags == nil {
		return nil, false
	}
	idx, ok := p.Tags.Lookup(tag)
	if !ok {
		return nil, false
	}

	return &p.Variants[idx], true
}

// Resolver reports the capabilities a concrete type provides.
// *typedef.Universe implements it.
type Resolver interface {
	Provides(ref typedef.TypeRef) typedef.Capability
}

// Check verifies that args, given positionally for the definition's generic
// parameters, satisfy the plan's BoundSet.
func (p *Plan) Check(args []typedef.TypeRef, resolver Resolver) error {
	def := p.Def
	if len(args) != len(def.Params) {
		return errs.Definition(def.Name, "", fmt.Errorf("%w: %d arguments for %d parameters",
			errs.ErrMalformedGenericArgs, len(args), len(def.Params)))
	}

	for i, param := range def.Params {
		arg := args[i]
		if !arg.IsConcrete() {
			return errs.Definition(def.Name, param, fmt.Errorf("%w: argument %s is not concrete",
				errs.ErrMalformedGenericArgs, arg))
		}

		required := p.Bounds.Required(param)
		if missing := resolver.Provides(arg).Missing(required); missing != typedef.CapNone {
			return errs.Definition(def.Name, param, fmt.Errorf("%w: %s lacks %s",
				errs.ErrUnsatisfiedBound, arg, missing))
		}
	}

	return nil
}

// Bindings maps the definition's parameters to args positionally.
func (p *Plan) Bindings(args []typedef.TypeRef) (map[string]typedef.TypeRef, error) {
	if len(args) != len(p.Def.Params) {
		return nil, errs.Definition(p.Def.Name, "", fmt.Errorf("%w: %d arguments for %d parameters",
			errs.ErrMalformedGenericArgs, len(args), len(p.Def.Params)))
	}

	out := make(map[string]typedef.TypeRef, len(args))
	for i, param := range p.Def.Params {
		out[param] = args[i]
	}

	return out, nil
}
