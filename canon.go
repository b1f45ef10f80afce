// Package canon is a deterministic binary serializer for Go values.
//
// Every value has exactly one encoding: scalars are little-endian with no
// padding, sequences and strings carry a uint32 length, structs are their
// fields in declaration order and sums are a one-byte tag followed by the
// variant's fields. Equal values always encode to equal bytes, which makes
// the output suitable for hashing and signing.
//
// # Basic Usage
//
//	type Transfer struct {
//	    From, To string
//	    Amount   uint64
//	    Memo     *string
//	}
//
//	data, err := canon.Marshal(Transfer{From: "a", To: "b", Amount: 10})
//
//	var t Transfer
//	err = canon.Unmarshal(data, &t)
//
// # Field And Type Options
//
// Struct tags select per-field treatment: `canon:"skip"` leaves a field off
// the wire and decodes it to its zero value, `canon:"with=name"` routes it
// through a codec registered with RegisterWith, and `canon:"schema=name"`
// replaces its schema shape. Type-level options live on a blank field:
//
//	type Point struct {
//	    _    struct{} `canon:",tuple,init=Validate"`
//	    X, Y int32
//	}
//
// # Sums
//
// Interfaces become tagged unions once their variants are registered:
//
//	canon.RegisterSum[Shape]([]codec.VariantSpec{
//	    codec.Variant[Circle](),
//	    codec.Variant[Square]().Explicit("10"),
//	}, codec.WithMode(typedef.ModeExplicit))
//
// # Package Structure
//
// This package wraps a default codec.Registry for the common cases. Use a
// Config for a private registry, and the codec, schema and frame packages
// directly for finer control.
package canon

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/arloliu/canon/codec"
	"github.com/arloliu/canon/diag"
	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/frame"
	"github.com/arloliu/canon/internal/options"
	"github.com/arloliu/canon/schema"
	"github.com/arloliu/canon/wire"
)

// Config is a codec registry plus decoding limits. It is safe for
// concurrent use.
type Config struct {
	reg          *codec.Registry
	maxLength    uint32
	trailing     bool
	fingerprints sync.Map // reflect.Type -> fingerprint
}

type fingerprint struct {
	generation uint64
	value      uint64
}

type settings struct {
	registry  []codec.Option
	maxLength uint32
	trailing  bool
}

// Option configures a Config.
type Option = options.Option[*settings]

// WithMaxLength bounds every length prefix accepted while decoding.
func WithMaxLength(n uint32) Option {
	return options.New(func(s *settings) error {
		if n == 0 {
			return fmt.Errorf("%w: max length must be positive", errs.ErrLengthOverflow)
		}
		s.maxLength = n

		return nil
	})
}

// WithNamespace prefixes the named declarations of schemas built by the Config.
func WithNamespace(namespace string) Option {
	return options.NoError(func(s *settings) {
		s.registry = append(s.registry, codec.WithNamespace(namespace))
	})
}

// WithDiagnostics routes generation-time warnings and errors to sink.
func WithDiagnostics(sink diag.Sink) Option {
	return options.NoError(func(s *settings) {
		s.registry = append(s.registry, codec.WithDiagnostics(sink))
	})
}

// WithTrailingBytes makes Unmarshal accept input that continues past the
// decoded value. By default such input fails with errs.ErrTrailingBytes.
func WithTrailingBytes(allow bool) Option {
	return options.NoError(func(s *settings) {
		s.trailing = allow
	})
}

// New returns a Config with its own registry.
func New(opts ...Option) (*Config, error) {
	s := &settings{maxLength: wire.DefaultMaxLength}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	reg, err := codec.NewRegistry(s.registry...)
	if err != nil {
		return nil, err
	}

	return &Config{reg: reg, maxLength: s.maxLength, trailing: s.trailing}, nil
}

var defaultConfig = sync.OnceValue(func() *Config {
	c, err := New()
	if err != nil {
		panic("canon: default config: " + err.Error())
	}

	return c
})

// Default returns the Config used by the package-level functions.
func Default() *Config {
	return defaultConfig()
}

// Registry returns the codec registry of c.
func (c *Config) Registry() *codec.Registry {
	return c.reg
}

// MarshalValue encodes v using its static type.
func (c *Config) MarshalValue(v reflect.Value) ([]byte, error) {
	w := wire.NewWriter()
	defer w.Release()

	if err := c.reg.EncodeValue(w, v); err != nil {
		return nil, err
	}

	return bytes.Clone(w.Bytes()), nil
}

// Marshal encodes v using its dynamic type. To encode a sum, use MarshalWith
// with the interface as type argument, or pass a pointer to the interface
// value to MarshalValue.
func (c *Config) Marshal(v any) ([]byte, error) {
	return c.MarshalValue(reflect.ValueOf(v))
}

// Unmarshal decodes data into the value dst points to. dst is only modified
// when decoding succeeds.
func (c *Config) Unmarshal(data []byte, dst any) error {
	r := wire.NewReader(data)
	r.SetMaxLength(c.maxLength)

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode destination must be a non-nil pointer, got %T", errs.ErrNilValue, dst)
	}

	// Decode into a copy so a trailing-bytes failure leaves dst untouched too.
	tmp := reflect.New(rv.Elem().Type())
	tmp.Elem().Set(rv.Elem())
	if err := c.reg.DecodeValue(r, tmp.Elem()); err != nil {
		return err
	}
	if !c.trailing && r.Remaining() > 0 {
		return fmt.Errorf("%w: %d bytes", errs.ErrTrailingBytes, r.Remaining())
	}
	rv.Elem().Set(tmp.Elem())

	return nil
}

// Schema returns the schema registry reachable from t and the declaration of t.
func (c *Config) Schema(t reflect.Type) (*schema.Registry, string, error) {
	return c.reg.Schema(t)
}

// Fingerprint returns the schema fingerprint of t. It is cached until a
// registration or newly compiled type could change the schema of t.
func (c *Config) Fingerprint(t reflect.Type) (uint64, error) {
	if err := c.reg.Compile(t); err != nil {
		return 0, err
	}
	gen := c.reg.Generation()
	if cached, ok := c.fingerprints.Load(t); ok {
		if fp := cached.(fingerprint); fp.generation == gen { //nolint:forcetypeassert
			return fp.value, nil
		}
	}

	sr, _, err := c.reg.Schema(t)
	if err != nil {
		return 0, err
	}
	fp := sr.Fingerprint()
	c.fingerprints.Store(t, fingerprint{generation: gen, value: fp})

	return fp, nil
}

func (c *Config) seal(v reflect.Value, opts []frame.Option) ([]byte, error) {
	fp, err := c.Fingerprint(v.Type())
	if err != nil {
		return nil, err
	}
	payload, err := c.MarshalValue(v)
	if err != nil {
		return nil, err
	}

	return frame.Seal(payload, append(opts, frame.WithFingerprint(fp))...)
}

// Open decodes a frame sealed by Seal into the value dst points to. The frame
// must be pinned to the schema fingerprint of dst's type.
func (c *Config) Open(data []byte, dst any, opts ...frame.Option) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode destination must be a non-nil pointer, got %T", errs.ErrNilValue, dst)
	}

	fp, err := c.Fingerprint(rv.Elem().Type())
	if err != nil {
		return err
	}
	payload, _, err := frame.Open(data, append(opts, frame.WithFingerprint(fp))...)
	if err != nil {
		return err
	}

	return c.Unmarshal(payload, dst)
}

// NewEncoder returns an Encoder writing to w.
func (c *Config) NewEncoder(w io.Writer) *Encoder {
	return &Encoder{cfg: c, w: w}
}

// NewDecoder returns a Decoder reading from r.
func (c *Config) NewDecoder(r io.Reader) *Decoder {
	rd := wire.NewStreamReader(r)
	rd.SetMaxLength(c.maxLength)

	return &Decoder{cfg: c, r: rd}
}

// Encoder writes a sequence of values to a stream, back to back.
type Encoder struct {
	cfg *Config
	w   io.Writer
}

// EncodeValue writes v using its static type.
func (e *Encoder) EncodeValue(v reflect.Value) error {
	wr := wire.NewWriter()
	defer wr.Release()

	if err := e.cfg.reg.EncodeValue(wr, v); err != nil {
		return err
	}
	_, err := wr.WriteTo(e.w)

	return err
}

// Encode writes v using its dynamic type.
func (e *Encoder) Encode(v any) error {
	return e.EncodeValue(reflect.ValueOf(v))
}

// Decoder reads a sequence of values from a stream. It reads exactly the
// bytes of each value, so the stream may carry other data after them.
type Decoder struct {
	cfg *Config
	r   *wire.Reader
}

// Decode reads the next value into the value dst points to.
func (d *Decoder) Decode(dst any) error {
	return d.cfg.reg.Decode(d.r, dst)
}

// Marshal encodes v with the default Config, using the static type T.
func Marshal[T any](v T) ([]byte, error) {
	return MarshalWith(Default(), v)
}

// MarshalWith encodes v with c, using the static type T, so an interface
// type argument encodes v as a sum.
func MarshalWith[T any](c *Config, v T) ([]byte, error) {
	return c.MarshalValue(reflect.ValueOf(&v).Elem())
}

// Unmarshal decodes data into dst with the default Config.
func Unmarshal[T any](data []byte, dst *T) error {
	return Default().Unmarshal(data, dst)
}

// Seal encodes v with the default Config and seals it into a frame pinned to
// the schema fingerprint of T.
func Seal[T any](v T, opts ...frame.Option) ([]byte, error) {
	return SealWith(Default(), v, opts...)
}

// SealWith is Seal with an explicit Config.
func SealWith[T any](c *Config, v T, opts ...frame.Option) ([]byte, error) {
	return c.seal(reflect.ValueOf(&v).Elem(), opts)
}

// Open decodes a frame sealed by Seal into dst with the default Config.
func Open[T any](data []byte, dst *T, opts ...frame.Option) error {
	return Default().Open(data, dst, opts...)
}

// RegisterSum registers the sum type I with the default Config.
func RegisterSum[I any](variants []codec.VariantSpec, opts ...codec.SumOption) error {
	return codec.RegisterSum[I](Default().reg, variants, opts...)
}

// RegisterWith registers a named field codec with the default Config.
func RegisterWith[T any](name string, enc func(w *wire.Writer, v T) error, dec func(r *wire.Reader) (T, error)) error {
	return codec.RegisterWith(Default().reg, name, enc, dec)
}

// RegisterSchema registers a schema override with the default Config.
func RegisterSchema(name string, override schema.Override) error {
	return Default().reg.RegisterSchema(name, override)
}

// Schema returns the schema of T under the default Config.
func Schema[T any]() (*schema.Registry, string, error) {
	return Default().Schema(reflect.TypeFor[T]())
}
