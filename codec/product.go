package codec

import (
	"fmt"
	"reflect"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/plan"
	"github.com/arloliu/canon/typedef"
	"github.com/arloliu/canon/wire"
)

// fieldCodec encodes one participating field.
type fieldCodec struct {
	name    string
	index   int
	goIndex int
	enc     encoderFunc
	dec     decoderFunc
	minSize int
}

// productCodec encodes the participating fields of a struct in declaration
// order. Overlays encode only the active one.
type productCodec struct {
	typeName string
	overlay  bool
	fields   []fieldCodec
	skipped  []int
	init     string
}

func (b *builder) compileStruct(tc *typeCodec) error {
	t := tc.typ
	if t.Name() == "" {
		return fmt.Errorf("%w: anonymous struct %s", errs.ErrUnsupportedType, t)
	}

	opts, err := parseTypeOptions(t)
	if err != nil {
		return errs.Definition(goName(t), "", err)
	}
	if err := b.claim(opts.name, t); err != nil {
		return err
	}
	tc.ref = typedef.Named(opts.name)

	bound, err := b.bindFields(t, opts, b.refOf)
	if err != nil {
		return err
	}

	def := &typedef.Definition{
		Name:     opts.name,
		Shape:    opts.shape,
		Fields:   typedefFields(bound),
		InitHook: opts.init,
	}
	p, err := plan.Build(def)
	if err != nil {
		return err
	}
	if err := checkInit(t, opts.init); err != nil {
		return errs.Definition(opts.name, "", err)
	}
	if opts.shape == typedef.ShapeOverlay && !t.Implements(overlayType) && !reflect.PointerTo(t).Implements(overlayType) {
		return errs.Definition(opts.name, "", fmt.Errorf("%w: overlay %s does not implement Overlay", errs.ErrInvalidDefinition, t))
	}

	pc, err := b.compileProduct(opts.name, p.Fields, bound, opts.init)
	if err != nil {
		return err
	}
	pc.overlay = opts.shape == typedef.ShapeOverlay
	tc.minSize = pc.minSize()

	tc.enc = pc.encode
	tc.dec = pc.decode
	b.addDefinition(t, def, p)

	return nil
}

// compileProduct pairs field plans with their codecs. Skipped fields get no
// codec; decoding resets them to their zero value.
func (b *builder) compileProduct(typeName string, plans []plan.FieldPlan, bound []boundField, init string) (*productCodec, error) {
	pc := &productCodec{typeName: typeName, init: init}

	for i, fp := range plans {
		if !fp.Participates {
			pc.skipped = append(pc.skipped, bound[i].goIndex)
			continue
		}

		bf := bound[i]
		fc := fieldCodec{name: fp.Field.Name, index: fp.Field.Index, goIndex: bf.goIndex}

		if fp.Custom != "" {
			nc, err := b.reg.namedCodec(fp.Custom, bf.goType)
			if err != nil {
				return nil, errs.Definition(typeName, fp.Field.Name, err)
			}
			fc.enc, fc.dec = nc.enc, nc.dec
		} else {
			tc, err := b.build(bf.goType)
			if err != nil {
				return nil, errs.Definition(typeName, fp.Field.Name, err)
			}
			fc.minSize = tc.minSize
			fc.enc = func(w *wire.Writer, v reflect.Value) error { return tc.enc(w, v) }
			fc.dec = func(r *wire.Reader, v reflect.Value) error { return tc.dec(r, v) }
		}

		pc.fields = append(pc.fields, fc)
	}

	return pc, nil
}

// minSize is the shortest encoding of the product: every field of a record or
// tuple, the shortest field of an overlay.
func (pc *productCodec) minSize() int {
	if len(pc.fields) == 0 {
		return 0
	}
	if pc.overlay {
		size := pc.fields[0].minSize
		for _, f := range pc.fields[1:] {
			size = min(size, f.minSize)
		}

		return size
	}

	size := 0
	for _, f := range pc.fields {
		size += f.minSize
	}

	return size
}

func (pc *productCodec) fieldError(f *fieldCodec, err error) error {
	return &errs.FieldError{Type: pc.typeName, Field: f.name, Index: f.index, Err: err}
}

func (pc *productCodec) encode(w *wire.Writer, v reflect.Value) error {
	if pc.overlay {
		f, err := pc.active(v)
		if err != nil {
			return err
		}
		if err := f.enc(w, v.Field(f.goIndex)); err != nil {
			return pc.fieldError(f, err)
		}

		return nil
	}

	for i := range pc.fields {
		f := &pc.fields[i]
		if err := f.enc(w, v.Field(f.goIndex)); err != nil {
			return pc.fieldError(f, err)
		}
	}

	return nil
}

func (pc *productCodec) decode(r *wire.Reader, v reflect.Value) error {
	if pc.overlay {
		f, err := pc.active(v)
		if err != nil {
			return err
		}
		fv := v.Field(f.goIndex)
		fv.SetZero()
		if err := f.dec(r, fv); err != nil {
			return pc.fieldError(f, err)
		}

		return pc.runInit(v)
	}

	// Unexported fields keep the destination's state, so nested overlays can
	// still report their active field.
	for _, i := range pc.skipped {
		v.Field(i).SetZero()
	}
	for i := range pc.fields {
		f := &pc.fields[i]
		if err := f.dec(r, v.Field(f.goIndex)); err != nil {
			return pc.fieldError(f, err)
		}
	}

	return pc.runInit(v)
}

func (pc *productCodec) active(v reflect.Value) (*fieldCodec, error) {
	o, _ := addressable(v).Addr().Interface().(Overlay)
	idx := o.ActiveField()
	if idx < 0 || idx >= len(pc.fields) {
		return nil, fmt.Errorf("%w: %s reports field %d of %d", errs.ErrInvalidActiveField, pc.typeName, idx, len(pc.fields))
	}

	return &pc.fields[idx], nil
}

func (pc *productCodec) runInit(v reflect.Value) error {
	if pc.init == "" {
		return nil
	}

	return callHook(pc.typeName, pc.init, v.Addr().MethodByName(pc.init))
}

func callHook(typeName, method string, fn reflect.Value) error {
	out := fn.Call(nil)
	if len(out) == 1 && !out[0].IsNil() {
		err, _ := out[0].Interface().(error)
		return fmt.Errorf("%w: %s.%s: %w", errs.ErrInitHook, typeName, method, err)
	}

	return nil
}
