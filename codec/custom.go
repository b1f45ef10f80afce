package codec

import (
	"fmt"
	"reflect"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/typedef"
	"github.com/arloliu/canon/wire"
)

// Marshaler is implemented by types that write their own encoding.
type Marshaler interface {
	MarshalCanon(w *wire.Writer) error
}

// Unmarshaler is implemented by types that read their own encoding. A type
// implementing one of Marshaler and Unmarshaler must implement both.
type Unmarshaler interface {
	UnmarshalCanon(r *wire.Reader) error
}

func (b *builder) compileSelf(tc *typeCodec) error {
	t := tc.typ
	name := goName(t)
	if name == "" {
		name = t.String()
	}
	tc.ref = typedef.Named(name)

	tc.enc = func(w *wire.Writer, v reflect.Value) error {
		m, _ := addressable(v).Addr().Interface().(Marshaler)
		return m.MarshalCanon(w)
	}
	tc.dec = func(r *wire.Reader, v reflect.Value) error {
		u, _ := v.Addr().Interface().(Unmarshaler)
		return u.UnmarshalCanon(r)
	}

	return nil
}

// namedCodec is a field codec registered under a name and selected with the
// with=name field option.
type namedCodec struct {
	typ reflect.Type
	enc encoderFunc
	dec decoderFunc
}

// RegisterWith registers a field codec for values of type T under name.
// Fields tagged with=name must have type T exactly. Register named codecs
// before compiling the types that use them.
func RegisterWith[T any](r *Registry, name string, enc func(w *wire.Writer, v T) error, dec func(r *wire.Reader) (T, error)) error {
	if name == "" || enc == nil || dec == nil {
		return fmt.Errorf("%w: named codec needs a name, an encoder and a decoder", errs.ErrInvalidDefinition)
	}

	nc := &namedCodec{
		typ: reflect.TypeFor[T](),
		enc: func(w *wire.Writer, v reflect.Value) error {
			x, _ := v.Interface().(T)
			return enc(w, x)
		},
		dec: func(rd *wire.Reader, v reflect.Value) error {
			x, err := dec(rd)
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(&x).Elem())

			return nil
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.withs[name]; ok {
		return fmt.Errorf("%w: named codec %s registered twice", errs.ErrInvalidDefinition, name)
	}
	r.withs[name] = nc

	return nil
}

// namedCodec returns the codec registered under name, checking that it
// handles fieldType. Callers hold the registry lock.
func (r *Registry) namedCodec(name string, fieldType reflect.Type) (*namedCodec, error) {
	nc, ok := r.withs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownCodec, name)
	}
	if nc.typ != fieldType {
		return nil, fmt.Errorf("%w: codec %s handles %s, field is %s", errs.ErrInvalidDefinition, name, nc.typ, fieldType)
	}

	return nc, nil
}
