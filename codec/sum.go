package codec

import (
	"fmt"
	"reflect"

	"github.com/arloliu/canon/discriminant"
	"github.com/arloliu/canon/diag"
	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/internal/options"
	"github.com/arloliu/canon/plan"
	"github.com/arloliu/canon/typedef"
	"github.com/arloliu/canon/wire"
)

// VariantSpec declares one variant of a sum type.
type VariantSpec struct {
	typ          reflect.Type
	name         string
	discriminant string
}

// Variant declares T as a variant. T must be a struct or a pointer to a
// struct; decoding stores values of exactly that type in the interface.
func Variant[T any]() VariantSpec {
	return VariantSpec{typ: reflect.TypeFor[T]()}
}

// Explicit sets the discriminant expression of the variant, such as "10" or
// "0x10 | 1". It is honored only under typedef.ModeExplicit.
func (v VariantSpec) Explicit(expr string) VariantSpec {
	v.discriminant = expr
	return v
}

// Named overrides the variant name, which defaults to the struct name.
func (v VariantSpec) Named(name string) VariantSpec {
	v.name = name
	return v
}

type sumSpec struct {
	iface    reflect.Type
	name     string
	mode     typedef.DiscriminantMode
	init     string
	variants []VariantSpec
}

// SumOption configures a sum registration.
type SumOption = options.Option[*sumSpec]

// WithMode pins the discriminant mode. It is required as soon as any variant
// declares an explicit discriminant.
func WithMode(mode typedef.DiscriminantMode) SumOption {
	return options.NoError(func(s *sumSpec) {
		s.mode = mode
	})
}

// WithInit names a method of the interface, with signature func() or
// func() error, that runs on every decoded value whatever its variant.
func WithInit(method string) SumOption {
	return options.NoError(func(s *sumSpec) {
		s.init = method
	})
}

// WithSumName overrides the declaration name, which defaults to the interface name.
func WithSumName(name string) SumOption {
	return options.NoError(func(s *sumSpec) {
		s.name = name
	})
}

// RegisterSum declares interface I as a sum type over variants, in
// declaration order.
func RegisterSum[I any](r *Registry, variants []VariantSpec, opts ...SumOption) error {
	return r.RegisterSum(reflect.TypeFor[I](), variants, opts...)
}

// RegisterSum declares interface type iface as a sum type over variants.
// Variant tags are resolved immediately so discriminant errors surface here.
func (r *Registry) RegisterSum(iface reflect.Type, variants []VariantSpec, opts ...SumOption) error {
	err := r.registerSum(iface, variants, opts)
	if err != nil {
		r.sink.Report(diag.FromError(err))
	}

	return err
}

func (r *Registry) registerSum(iface reflect.Type, variants []VariantSpec, opts []SumOption) error {
	if iface == nil || iface.Kind() != reflect.Interface {
		return fmt.Errorf("%w: sum type %v must be an interface", errs.ErrUnsupportedType, iface)
	}

	spec := &sumSpec{iface: iface, name: goName(iface), variants: make([]VariantSpec, len(variants))}
	if err := options.Apply(spec, opts...); err != nil {
		return err
	}
	copy(spec.variants, variants)

	if len(variants) == 0 {
		return errs.Definition(spec.name, "", fmt.Errorf("%w: sum without variants", errs.ErrInvalidDefinition))
	}

	seen := make(map[reflect.Type]bool, len(variants))
	for i := range spec.variants {
		v := &spec.variants[i]
		st := v.typ
		if st != nil && st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		if st == nil || st.Kind() != reflect.Struct || st.Name() == "" {
			return errs.Definition(spec.name, v.name, fmt.Errorf("%w: variant %v must be a named struct or pointer to one",
				errs.ErrUnsupportedType, v.typ))
		}
		if !v.typ.Implements(iface) {
			return errs.Definition(spec.name, v.name, fmt.Errorf("%w: %s does not implement %s",
				errs.ErrInvalidDefinition, v.typ, iface))
		}
		if seen[st] {
			return errs.Definition(spec.name, v.name, fmt.Errorf("%w: %s registered twice", errs.ErrInvalidDefinition, st))
		}
		seen[st] = true
		if v.name == "" {
			v.name = goName(st)
		}
	}

	if spec.init != "" {
		m, ok := iface.MethodByName(spec.init)
		if !ok {
			return errs.Definition(spec.name, "", fmt.Errorf("%w: init hook %s is not a method of %s",
				errs.ErrInvalidDefinition, spec.init, iface))
		}
		if err := checkHookSignature(spec.init, m.Type, 0); err != nil {
			return errs.Definition(spec.name, "", err)
		}
	}

	if _, err := discriminant.Resolve(spec.name, spec.typedefVariants(), spec.mode); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sums[iface]; ok {
		return errs.Definition(spec.name, "", fmt.Errorf("%w: sum registered twice", errs.ErrInvalidDefinition))
	}
	if _, ok := r.codecs[iface]; ok {
		return errs.Definition(spec.name, "", fmt.Errorf("%w: sum registered after first use", errs.ErrInvalidDefinition))
	}
	r.sums[iface] = spec

	return nil
}

// typedefVariants returns the variants without fields, enough for tag resolution.
func (s *sumSpec) typedefVariants() []typedef.Variant {
	out := make([]typedef.Variant, len(s.variants))
	for i, v := range s.variants {
		out[i] = typedef.Variant{Name: v.name, Index: i, Discriminant: v.discriminant, Shape: typedef.ShapeRecord}
	}

	return out
}

type variantCodec struct {
	tag     uint8
	pointer bool
	typ     reflect.Type
	product *productCodec
}

type sumCodec struct {
	name     string
	init     string
	plan     *plan.Plan
	variants []variantCodec
	byType   map[reflect.Type]int
}

func (b *builder) compileSum(tc *typeCodec, spec *sumSpec) error {
	if err := b.claim(spec.name, spec.iface); err != nil {
		return err
	}
	tc.ref = typedef.Named(spec.name)

	def := &typedef.Definition{
		Name:     spec.name,
		Shape:    typedef.ShapeSum,
		Mode:     spec.mode,
		InitHook: spec.init,
		Variants: make([]typedef.Variant, len(spec.variants)),
	}

	bounds := make([][]boundField, len(spec.variants))
	inits := make([]string, len(spec.variants))
	for i, vs := range spec.variants {
		st := structOf(vs.typ)
		opts, err := parseTypeOptions(st)
		if err != nil {
			return errs.Definition(spec.name, vs.name, err)
		}
		opts.name = spec.name + "." + vs.name
		if opts.shape == typedef.ShapeOverlay {
			return errs.Definition(spec.name, vs.name, fmt.Errorf("%w: variant cannot be an overlay", errs.ErrInvalidDefinition))
		}
		if embedsOverlay(st) {
			return errs.Definition(spec.name, vs.name, fmt.Errorf("%w: variant fields cannot hold an overlay", errs.ErrInvalidDefinition))
		}
		if err := checkInit(st, opts.init); err != nil {
			return errs.Definition(spec.name, vs.name, err)
		}

		bound, err := b.bindFields(st, opts, b.refOf)
		if err != nil {
			return err
		}
		bounds[i] = bound
		inits[i] = opts.init
		def.Variants[i] = typedef.Variant{
			Name:         vs.name,
			Index:        i,
			Discriminant: vs.discriminant,
			Shape:        opts.shape,
			Fields:       typedefFields(bound),
		}
	}

	p, err := plan.Build(def)
	if err != nil {
		return err
	}

	sc := &sumCodec{
		name:     spec.name,
		init:     spec.init,
		plan:     p,
		variants: make([]variantCodec, len(p.Variants)),
		byType:   make(map[reflect.Type]int, 2*len(p.Variants)),
	}
	for i, vp := range p.Variants {
		vs := spec.variants[i]
		pc, err := b.compileProduct(spec.name+"."+vp.Name, vp.Fields, bounds[i], inits[i])
		if err != nil {
			return err
		}

		st := structOf(vs.typ)
		sc.variants[i] = variantCodec{
			tag:     vp.Tag,
			pointer: vs.typ.Kind() == reflect.Pointer,
			typ:     st,
			product: pc,
		}
		sc.byType[vs.typ] = i
		if vs.typ.Kind() == reflect.Struct && reflect.PointerTo(st).Implements(spec.iface) {
			sc.byType[reflect.PointerTo(st)] = i
		}
	}

	tc.enc = sc.encode
	tc.dec = sc.decode
	tc.minSize = 1
	b.addDefinition(spec.iface, def, p)

	return nil
}

func structOf(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}

	return t
}

func (sc *sumCodec) encode(w *wire.Writer, v reflect.Value) error {
	if v.IsNil() {
		return fmt.Errorf("%w: %s holds no variant", errs.ErrNilValue, sc.name)
	}

	c := v.Elem()
	idx, ok := sc.byType[c.Type()]
	if !ok {
		return fmt.Errorf("%w: %s is not a variant of %s", errs.ErrUnsupportedType, c.Type(), sc.name)
	}
	if c.Kind() == reflect.Pointer {
		if c.IsNil() {
			return fmt.Errorf("%w: nil %s in %s", errs.ErrNilValue, c.Type(), sc.name)
		}
		c = c.Elem()
	}

	vc := &sc.variants[idx]
	w.WriteTag(vc.tag)

	return vc.product.encode(w, c)
}

func (sc *sumCodec) decode(r *wire.Reader, v reflect.Value) error {
	tag, err := r.ReadTag()
	if err != nil {
		return err
	}

	vp, ok := sc.plan.Variant(tag)
	if !ok {
		return &errs.UnknownVariantTagError{Type: sc.name, Tag: tag}
	}

	vc := &sc.variants[vp.Index]
	nv := reflect.New(vc.typ)
	if err := vc.product.decode(r, nv.Elem()); err != nil {
		return err
	}
	if vc.pointer {
		v.Set(nv)
	} else {
		v.Set(nv.Elem())
	}

	if sc.init == "" {
		return nil
	}

	return callHook(sc.name, sc.init, v.MethodByName(sc.init))
}
