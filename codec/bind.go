package codec

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/typedef"
	"github.com/arloliu/canon/wire"
)

const tagName = "canon"

var (
	uint128Type     = reflect.TypeFor[wire.Uint128]()
	int128Type      = reflect.TypeFor[wire.Int128]()
	errorType       = reflect.TypeFor[error]()
	overlayType     = reflect.TypeFor[Overlay]()
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
)

// Overlay is implemented by types whose fields share storage. ActiveField
// returns the declaration index, among encoded fields, of the field in use.
// Encoding asks the value; decoding asks the destination before filling it.
type Overlay interface {
	ActiveField() int
}

type typeOptions struct {
	name  string
	shape typedef.Shape
	init  string
}

type fieldOptions struct {
	skip   bool
	with   string
	schema string
}

// pkgPathPrefix matches the import path part of qualified names that reflect
// prints inside generic instantiations.
var pkgPathPrefix = regexp.MustCompile(`[\w.\-~]+/`)

// goName returns the declaration name of a named Go type.
func goName(t reflect.Type) string {
	name := t.Name()
	if !strings.Contains(name, "[") {
		return name
	}
	name = pkgPathPrefix.ReplaceAllString(name, "")

	return strings.ReplaceAll(name, ",", ", ")
}

// parseTypeOptions reads the type options of struct type t from its blank field.
func parseTypeOptions(t reflect.Type) (typeOptions, error) {
	opts := typeOptions{name: goName(t), shape: typedef.ShapeRecord}

	for i := range t.NumField() {
		f := t.Field(i)
		if f.Name != "_" {
			continue
		}
		tag, ok := f.Tag.Lookup(tagName)
		if !ok {
			continue
		}

		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			return opts, fmt.Errorf("%w: type options must start with a comma, got %q", errs.ErrInvalidDefinition, tag)
		}
		for _, part := range parts[1:] {
			key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
			switch key {
			case "":
			case "record":
				opts.shape = typedef.ShapeRecord
			case "tuple":
				opts.shape = typedef.ShapeTuple
			case "overlay":
				opts.shape = typedef.ShapeOverlay
			case "init":
				opts.init = value
			case "name":
				opts.name = value
			default:
				return opts, fmt.Errorf("%w: unknown type option %q", errs.ErrInvalidDefinition, key)
			}
		}
	}

	return opts, nil
}

func parseFieldOptions(tag string) (fieldOptions, error) {
	var opts fieldOptions
	if tag == "-" {
		opts.skip = true
		return opts, nil
	}

	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "":
		case "skip":
			opts.skip = true
		case "with":
			opts.with = value
		case "schema":
			opts.schema = value
		default:
			return opts, fmt.Errorf("%w: unknown field option %q", errs.ErrInvalidDefinition, key)
		}
	}

	return opts, nil
}

// describe returns the TypeRef of t without compiling a codec for it. It is
// used for fields that are skipped or handled by a custom codec, whose Go type
// need not be encodable.
func describe(t reflect.Type) typedef.TypeRef {
	switch t {
	case uint128Type:
		return typedef.Prim(typedef.Uint128)
	case int128Type:
		return typedef.Prim(typedef.Int128)
	}

	if p, ok := primitiveOf(t.Kind()); ok {
		return typedef.Prim(p)
	}

	switch t.Kind() { //nolint:exhaustive
	case reflect.Slice:
		return typedef.Seq(describe(t.Elem()))
	case reflect.Array:
		return typedef.Fixed(t.Len(), describe(t.Elem()))
	case reflect.Pointer:
		return typedef.Option(describe(t.Elem()))
	case reflect.Map:
		return typedef.Map(describe(t.Key()), describe(t.Elem()))
	case reflect.Struct:
		if t.Name() != "" {
			opts, err := parseTypeOptions(t)
			if err == nil {
				return typedef.Named(opts.name)
			}

			return typedef.Named(goName(t))
		}
	case reflect.Interface:
		if t.Name() != "" {
			return typedef.Named(goName(t))
		}
	}

	return typedef.Named(t.String())
}

func primitiveOf(k reflect.Kind) (typedef.Primitive, bool) {
	switch k { //nolint:exhaustive
	case reflect.Bool:
		return typedef.Bool, true
	case reflect.Uint8:
		return typedef.Uint8, true
	case reflect.Uint16:
		return typedef.Uint16, true
	case reflect.Uint32:
		return typedef.Uint32, true
	case reflect.Uint64:
		return typedef.Uint64, true
	case reflect.Int8:
		return typedef.Int8, true
	case reflect.Int16:
		return typedef.Int16, true
	case reflect.Int32:
		return typedef.Int32, true
	case reflect.Int64:
		return typedef.Int64, true
	case reflect.Float32:
		return typedef.Float32, true
	case reflect.Float64:
		return typedef.Float64, true
	case reflect.String:
		return typedef.String, true
	default:
		return 0, false
	}
}

// boundField is a struct field bound to its typedef form.
type boundField struct {
	field   typedef.Field
	goIndex int
	goType  reflect.Type
}

// bindFields binds the exported fields of struct type t. Field refs of
// participating fields without a custom codec are produced by refOf, which
// compiles their codecs.
func (b *builder) bindFields(t reflect.Type, opts typeOptions, refOf func(reflect.Type) (typedef.TypeRef, error)) ([]boundField, error) {
	var (
		bound      []boundField
		unexported int
	)

	for i := range t.NumField() {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}

		tag, hasTag := sf.Tag.Lookup(tagName)
		if !sf.IsExported() {
			unexported++
			if hasTag {
				b.warn(opts.name, sf.Name, "unexported field carries a canon tag and is not encoded")
			}

			continue
		}

		fo, err := parseFieldOptions(tag)
		if err != nil {
			return nil, errs.Definition(opts.name, sf.Name, err)
		}

		pos := len(bound)
		name := sf.Name
		if opts.shape == typedef.ShapeTuple {
			name = strconv.Itoa(pos)
		}

		var ref typedef.TypeRef
		if fo.skip || fo.with != "" {
			ref = describe(sf.Type)
		} else if ref, err = refOf(sf.Type); err != nil {
			return nil, errs.Definition(opts.name, sf.Name, err)
		}

		bound = append(bound, boundField{
			field: typedef.Field{
				Name:       name,
				Index:      pos,
				Type:       ref,
				Skip:       fo.skip,
				With:       fo.with,
				SchemaWith: fo.schema,
			},
			goIndex: i,
			goType:  sf.Type,
		})
	}

	if len(bound) == 0 && unexported > 0 {
		b.warn(opts.name, "", "struct has only unexported fields and encodes to nothing")
	}

	return bound, nil
}

func typedefFields(bound []boundField) []typedef.Field {
	if len(bound) == 0 {
		return nil
	}

	out := make([]typedef.Field, len(bound))
	for i, bf := range bound {
		out[i] = bf.field
	}

	return out
}

// embedsOverlay reports whether decoding a fresh zero value of t reaches an
// overlay, through struct fields and array elements. Such a value has no
// destination state to select the active field from.
func embedsOverlay(t reflect.Type) bool {
	switch t.Kind() { //nolint:exhaustive
	case reflect.Array:
		return embedsOverlay(t.Elem())
	case reflect.Struct:
		if t.Name() == "" || t == uint128Type || t == int128Type {
			return false
		}
		if ok, _ := selfCoding(t); ok {
			return false
		}
		opts, err := parseTypeOptions(t)
		if err != nil {
			return false
		}
		if opts.shape == typedef.ShapeOverlay {
			return true
		}
		for i := range t.NumField() {
			sf := t.Field(i)
			if sf.Name == "_" || !sf.IsExported() {
				continue
			}
			fo, err := parseFieldOptions(sf.Tag.Get(tagName))
			if err != nil || fo.skip || fo.with != "" {
				continue
			}
			if embedsOverlay(sf.Type) {
				return true
			}
		}
	}

	return false
}

// checkElement rejects container element types that embed an overlay.
func checkElement(container string, t reflect.Type) error {
	if embedsOverlay(t) {
		return fmt.Errorf("%w: %s element %s holds an overlay, whose active field only a decode destination can select",
			errs.ErrUnsupportedType, container, t)
	}

	return nil
}

// checkInit validates that method exists on *t with signature func() or
// func() error.
func checkInit(t reflect.Type, method string) error {
	if method == "" {
		return nil
	}

	m, ok := reflect.PointerTo(t).MethodByName(method)
	if !ok {
		return fmt.Errorf("%w: init hook %s is not a method of %s", errs.ErrInvalidDefinition, method, t)
	}

	return checkHookSignature(method, m.Type, 1)
}

// checkHookSignature verifies fn takes only the receiver (recv is 1 for method
// expressions, 0 for interface methods) and returns nothing or an error.
func checkHookSignature(method string, fn reflect.Type, recv int) error {
	if fn.NumIn() != recv || fn.NumOut() > 1 || (fn.NumOut() == 1 && fn.Out(0) != errorType) {
		return fmt.Errorf("%w: init hook %s must have signature func() or func() error", errs.ErrInvalidDefinition, method)
	}

	return nil
}

// selfCoding reports whether t encodes itself through Marshaler and Unmarshaler.
func selfCoding(t reflect.Type) (bool, error) {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return false, nil
	}

	hasM := t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType)
	hasU := reflect.PointerTo(t).Implements(unmarshalerType)
	if hasM != hasU {
		return false, fmt.Errorf("%w: %s must implement both MarshalCanon and UnmarshalCanon", errs.ErrUnsupportedType, t)
	}

	return hasM, nil
}

// addressable returns v if it is addressable, or an addressable copy.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)

	return p.Elem()
}
