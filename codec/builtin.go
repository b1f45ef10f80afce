package codec

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/typedef"
	"github.com/arloliu/canon/wire"
)

// maxPrealloc caps the capacity reserved from an untrusted element count.
const maxPrealloc = 1024

var byteType = reflect.TypeFor[byte]()

func compilePrimitive(tc *typeCodec, p typedef.Primitive) {
	tc.ref = typedef.Prim(p)
	tc.minSize = p.Size()
	if p == typedef.String {
		tc.minSize = 4
	}

	switch p {
	case typedef.Bool:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteBool(v.Bool())
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			b, err := r.ReadBool()
			v.SetBool(b)

			return err
		}
	case typedef.Uint8:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteUint8(uint8(v.Uint())) //nolint:gosec
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadUint8()
			v.SetUint(uint64(x))

			return err
		}
	case typedef.Uint16:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteUint16(uint16(v.Uint())) //nolint:gosec
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadUint16()
			v.SetUint(uint64(x))

			return err
		}
	case typedef.Uint32:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteUint32(uint32(v.Uint())) //nolint:gosec
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadUint32()
			v.SetUint(uint64(x))

			return err
		}
	case typedef.Uint64:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteUint64(v.Uint())
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadUint64()
			v.SetUint(x)

			return err
		}
	case typedef.Int8:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteInt8(int8(v.Int())) //nolint:gosec
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadInt8()
			v.SetInt(int64(x))

			return err
		}
	case typedef.Int16:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteInt16(int16(v.Int())) //nolint:gosec
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadInt16()
			v.SetInt(int64(x))

			return err
		}
	case typedef.Int32:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteInt32(int32(v.Int())) //nolint:gosec
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadInt32()
			v.SetInt(int64(x))

			return err
		}
	case typedef.Int64:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteInt64(v.Int())
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadInt64()
			v.SetInt(x)

			return err
		}
	case typedef.Float32:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteFloat32(float32(v.Float()))
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadFloat32()
			v.SetFloat(float64(x))

			return err
		}
	case typedef.Float64:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteFloat64(v.Float())
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			x, err := r.ReadFloat64()
			v.SetFloat(x)

			return err
		}
	case typedef.String:
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			return w.WriteString(v.String())
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			s, err := r.ReadString()
			v.SetString(s)

			return err
		}
	}
}

func compileUint128(tc *typeCodec) {
	tc.ref = typedef.Prim(typedef.Uint128)
	tc.minSize = 16
	tc.enc = func(w *wire.Writer, v reflect.Value) error {
		w.WriteUint128(wire.Uint128{Lo: v.Field(0).Uint(), Hi: v.Field(1).Uint()})
		return nil
	}
	tc.dec = func(r *wire.Reader, v reflect.Value) error {
		x, err := r.ReadUint128()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(x))

		return nil
	}
}

func compileInt128(tc *typeCodec) {
	tc.ref = typedef.Prim(typedef.Int128)
	tc.minSize = 16
	tc.enc = func(w *wire.Writer, v reflect.Value) error {
		w.WriteInt128(wire.Int128{Lo: v.Field(0).Uint(), Hi: v.Field(1).Int()})
		return nil
	}
	tc.dec = func(r *wire.Reader, v reflect.Value) error {
		x, err := r.ReadInt128()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(x))

		return nil
	}
}

func (b *builder) compileSlice(tc *typeCodec) error {
	t := tc.typ
	if err := checkElement("sequence", t.Elem()); err != nil {
		return err
	}
	elem, err := b.build(t.Elem())
	if err != nil {
		return err
	}
	tc.ref = typedef.Seq(elem.ref)
	tc.minSize = 4

	if t.Elem().Kind() == reflect.Uint8 && elem.ref.Kind == typedef.RefPrimitive {
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			return w.WriteBytes(v.Bytes())
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			data, err := r.ReadBytes()
			if err != nil {
				return err
			}
			if len(data) == 0 {
				v.SetZero()
				return nil
			}
			v.SetBytes(data)

			return nil
		}

		return nil
	}

	tc.enc = func(w *wire.Writer, v reflect.Value) error {
		n := v.Len()
		if err := w.WriteLength(n); err != nil {
			return err
		}
		for i := range n {
			if err := elem.enc(w, v.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}

		return nil
	}
	tc.dec = func(r *wire.Reader, v reflect.Value) error {
		n, err := r.ReadCountOf(elem.minSize)
		if err != nil {
			return err
		}
		if n == 0 {
			v.SetZero()
			return nil
		}

		v.Set(reflect.MakeSlice(t, 0, min(n, maxPrealloc)))
		for i := range n {
			if v.Len() == v.Cap() {
				v.Grow(1)
			}
			v.SetLen(i + 1)
			if err := elem.dec(r, v.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}

		return nil
	}

	return nil
}

func (b *builder) compileArray(tc *typeCodec) error {
	t := tc.typ
	n := t.Len()
	elem, err := b.build(t.Elem())
	if err != nil {
		return err
	}
	tc.ref = typedef.Fixed(n, elem.ref)
	tc.minSize = n * elem.minSize

	if t.Elem() == byteType {
		tc.enc = func(w *wire.Writer, v reflect.Value) error {
			w.WriteRaw(addressable(v).Bytes())
			return nil
		}
		tc.dec = func(r *wire.Reader, v reflect.Value) error {
			data, err := r.ReadFixed(n)
			if err != nil {
				return err
			}
			reflect.Copy(v, reflect.ValueOf(data))

			return nil
		}

		return nil
	}

	tc.enc = func(w *wire.Writer, v reflect.Value) error {
		for i := range n {
			if err := elem.enc(w, v.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}

		return nil
	}
	tc.dec = func(r *wire.Reader, v reflect.Value) error {
		for i := range n {
			if err := elem.dec(r, v.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}

		return nil
	}

	return nil
}

// compileOption encodes a pointer as an option: tag 0 for nil, tag 1 followed
// by the pointee.
func (b *builder) compileOption(tc *typeCodec) error {
	t := tc.typ
	if err := checkElement("option", t.Elem()); err != nil {
		return err
	}
	elem, err := b.build(t.Elem())
	if err != nil {
		return err
	}
	tc.ref = typedef.Option(elem.ref)
	tc.minSize = 1

	tc.enc = func(w *wire.Writer, v reflect.Value) error {
		if v.IsNil() {
			w.WriteTag(0)
			return nil
		}
		w.WriteTag(1)

		return elem.enc(w, v.Elem())
	}
	tc.dec = func(r *wire.Reader, v reflect.Value) error {
		tag, err := r.ReadTag()
		if err != nil {
			return err
		}

		switch tag {
		case 0:
			v.SetZero()
			return nil
		case 1:
			p := reflect.New(t.Elem())
			if err := elem.dec(r, p.Elem()); err != nil {
				return err
			}
			v.Set(p)

			return nil
		default:
			return &errs.UnknownVariantTagError{Type: tc.ref.String(), Tag: tag}
		}
	}

	return nil
}

type mapEntry struct {
	start, end int
	value      reflect.Value
}

// compileMap encodes a map as a count followed by its entries ordered by the
// encoded bytes of their keys, so equal maps always encode identically.
func (b *builder) compileMap(tc *typeCodec) error {
	t := tc.typ
	if err := checkElement("map key", t.Key()); err != nil {
		return err
	}
	if err := checkElement("map value", t.Elem()); err != nil {
		return err
	}
	key, err := b.build(t.Key())
	if err != nil {
		return err
	}
	val, err := b.build(t.Elem())
	if err != nil {
		return err
	}
	tc.ref = typedef.Map(key.ref, val.ref)
	tc.minSize = 4

	tc.enc = func(w *wire.Writer, v reflect.Value) error {
		n := v.Len()
		if err := w.WriteLength(n); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		keys := wire.NewWriter()
		defer keys.Release()

		entries := make([]mapEntry, 0, n)
		iter := v.MapRange()
		for iter.Next() {
			start := keys.Len()
			if err := key.enc(keys, iter.Key()); err != nil {
				return fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			entries = append(entries, mapEntry{start: start, end: keys.Len(), value: iter.Value()})
		}

		buf := keys.Bytes()
		slices.SortFunc(entries, func(a, b mapEntry) int {
			return bytes.Compare(buf[a.start:a.end], buf[b.start:b.end])
		})

		for _, e := range entries {
			w.WriteRaw(buf[e.start:e.end])
			if err := val.enc(w, e.value); err != nil {
				return fmt.Errorf("value: %w", err)
			}
		}

		return nil
	}
	tc.dec = func(r *wire.Reader, v reflect.Value) error {
		n, err := r.ReadCountOf(key.minSize + val.minSize)
		if err != nil {
			return err
		}
		if n == 0 {
			v.SetZero()
			return nil
		}

		m := reflect.MakeMapWithSize(t, min(n, maxPrealloc))
		for i := range n {
			k := reflect.New(t.Key()).Elem()
			if err := key.dec(r, k); err != nil {
				return fmt.Errorf("entry %d key: %w", i, err)
			}
			if m.MapIndex(k).IsValid() {
				return fmt.Errorf("entry %d: %w: %v", i, errs.ErrDuplicateMapKey, k)
			}
			e := reflect.New(t.Elem()).Elem()
			if err := val.dec(r, e); err != nil {
				return fmt.Errorf("entry %d value: %w", i, err)
			}
			m.SetMapIndex(k, e)
		}
		v.Set(m)

		return nil
	}

	return nil
}
