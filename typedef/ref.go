package typedef

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/arloliu/canon/errs"
)

// Primitive is a scalar or string type with a fixed wire layout.
type Primitive uint8

const (
	Bool Primitive = iota + 1
	Uint8
	Uint16
	Uint32
	Uint64
	Uint128
	Int8
	Int16
	Int32
	Int64
	Int128
	Float32
	Float64
	String
)

var primitiveNames = map[Primitive]string{
	Bool:    "bool",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Uint128: "uint128",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Int128:  "int128",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
}

var primitivesByName = func() map[string]Primitive {
	m := make(map[string]Primitive, len(primitiveNames)+1)
	for p, name := range primitiveNames {
		m[name] = p
	}
	m["byte"] = Uint8

	return m
}()

func (p Primitive) String() string {
	if name, ok := primitiveNames[p]; ok {
		return name
	}

	return "unknown"
}

// Size returns the wire width in bytes, or 0 for variable-length primitives.
func (p Primitive) Size() int {
	switch p {
	case Bool, Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	case Uint128, Int128:
		return 16
	default:
		return 0
	}
}

// RefKind is the kind of a TypeRef.
type RefKind uint8

const (
	RefPrimitive RefKind = iota + 1
	RefSequence
	RefFixed
	RefOption
	RefMap
	RefNamed
	RefParam
)

// TypeRef is the declared type of a field.
type TypeRef struct {
	Kind RefKind
	Prim Primitive
	// Name is the type name for RefNamed and the parameter name for RefParam.
	Name string
	// Len is the element count of RefFixed.
	Len int
	// Elem is the element of sequences, arrays and options, and the value of maps.
	Elem *TypeRef
	// Key is the key of maps.
	Key *TypeRef
	// Args are the generic arguments of RefNamed.
	Args []TypeRef
}

func Prim(p Primitive) TypeRef {
	return TypeRef{Kind: RefPrimitive, Prim: p}
}

func Seq(elem TypeRef) TypeRef {
	return TypeRef{Kind: RefSequence, Elem: &elem}
}

func Fixed(n int, elem TypeRef) TypeRef {
	return TypeRef{Kind: RefFixed, Len: n, Elem: &elem}
}

func Option(elem TypeRef) TypeRef {
	return TypeRef{Kind: RefOption, Elem: &elem}
}

func Map(key, value TypeRef) TypeRef {
	return TypeRef{Kind: RefMap, Key: &key, Elem: &value}
}

func Named(name string, args ...TypeRef) TypeRef {
	return TypeRef{Kind: RefNamed, Name: name, Args: args}
}

func Param(name string) TypeRef {
	return TypeRef{Kind: RefParam, Name: name}
}

// String returns the canonical declaration of r in Go type syntax.
func (r TypeRef) String() string {
	var sb strings.Builder
	r.write(&sb)

	return sb.String()
}

func (r TypeRef) write(sb *strings.Builder) {
	switch r.Kind {
	case RefPrimitive:
		sb.WriteString(r.Prim.String())
	case RefSequence:
		sb.WriteString("[]")
		r.Elem.write(sb)
	case RefFixed:
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(r.Len))
		sb.WriteByte(']')
		r.Elem.write(sb)
	case RefOption:
		sb.WriteByte('*')
		r.Elem.write(sb)
	case RefMap:
		sb.WriteString("map[")
		r.Key.write(sb)
		sb.WriteByte(']')
		r.Elem.write(sb)
	case RefNamed:
		sb.WriteString(r.Name)
		if len(r.Args) > 0 {
			sb.WriteByte('[')
			for i, arg := range r.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				arg.write(sb)
			}
			sb.WriteByte(']')
		}
	case RefParam:
		sb.WriteString(r.Name)
	default:
		sb.WriteString("<invalid>")
	}
}

// Params returns the generic parameter names r mentions, in first-use order.
func (r TypeRef) Params() []string {
	var out []string
	seen := make(map[string]struct{})
	r.walk(func(ref TypeRef) {
		if ref.Kind != RefParam {
			return
		}
		if _, ok := seen[ref.Name]; !ok {
			seen[ref.Name] = struct{}{}
			out = append(out, ref.Name)
		}
	})

	return out
}

// IsConcrete reports whether r mentions no generic parameter.
func (r TypeRef) IsConcrete() bool {
	return len(r.Params()) == 0
}

func (r TypeRef) walk(fn func(TypeRef)) {
	fn(r)
	if r.Key != nil {
		r.Key.walk(fn)
	}
	if r.Elem != nil {
		r.Elem.walk(fn)
	}
	for _, arg := range r.Args {
		arg.walk(fn)
	}
}

// Substitute replaces generic parameters with the given arguments.
// Parameters without a binding are left in place.
func (r TypeRef) Substitute(bindings map[string]TypeRef) TypeRef {
	switch r.Kind {
	case RefParam:
		if bound, ok := bindings[r.Name]; ok {
			return bound
		}

		return r
	case RefSequence, RefFixed, RefOption:
		elem := r.Elem.Substitute(bindings)
		r.Elem = &elem

		return r
	case RefMap:
		key := r.Key.Substitute(bindings)
		elem := r.Elem.Substitute(bindings)
		r.Key, r.Elem = &key, &elem

		return r
	case RefNamed:
		if len(r.Args) == 0 {
			return r
		}
		args := make([]TypeRef, len(r.Args))
		for i, arg := range r.Args {
			args[i] = arg.Substitute(bindings)
		}
		r.Args = args

		return r
	default:
		return r
	}
}

// Equal reports whether r and other denote the same type.
func (r TypeRef) Equal(other TypeRef) bool {
	return r.String() == other.String()
}

// ParseTypeRef parses a type written in Go syntax. Identifiers listed in params
// become generic parameters, primitive names become primitives, anything else
// is a named type.
func ParseTypeRef(src string, params ...string) (TypeRef, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return TypeRef{}, fmt.Errorf("%w: type %q: %v", errs.ErrInvalidDefinition, src, err)
	}

	isParam := make(map[string]bool, len(params))
	for _, p := range params {
		isParam[p] = true
	}

	return refFromExpr(src, expr, isParam)
}

// MustParseTypeRef is like ParseTypeRef but panics on error.
func MustParseTypeRef(src string, params ...string) TypeRef {
	ref, err := ParseTypeRef(src, params...)
	if err != nil {
		panic(err)
	}

	return ref
}

func refFromExpr(src string, expr ast.Expr, isParam map[string]bool) (TypeRef, error) {
	fail := func(format string, args ...any) (TypeRef, error) {
		return TypeRef{}, fmt.Errorf("%w: type %q: %s", errs.ErrInvalidDefinition, src, fmt.Sprintf(format, args...))
	}

	switch e := expr.(type) {
	case *ast.ParenExpr:
		return refFromExpr(src, e.X, isParam)
	case *ast.Ident:
		if isParam[e.Name] {
			return Param(e.Name), nil
		}
		if p, ok := primitivesByName[e.Name]; ok {
			return Prim(p), nil
		}

		return Named(e.Name), nil
	case *ast.SelectorExpr:
		pkg, ok := e.X.(*ast.Ident)
		if !ok {
			return fail("unsupported qualified name")
		}

		return Named(pkg.Name + "." + e.Sel.Name), nil
	case *ast.StarExpr:
		elem, err := refFromExpr(src, e.X, isParam)
		if err != nil {
			return TypeRef{}, err
		}

		return Option(elem), nil
	case *ast.ArrayType:
		elem, err := refFromExpr(src, e.Elt, isParam)
		if err != nil {
			return TypeRef{}, err
		}
		if e.Len == nil {
			return Seq(elem), nil
		}
		lit, ok := e.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return fail("array length must be an integer literal")
		}
		n, err := strconv.ParseInt(lit.Value, 0, 32)
		if err != nil || n < 0 {
			return fail("invalid array length %s", lit.Value)
		}

		return Fixed(int(n), elem), nil
	case *ast.MapType:
		key, err := refFromExpr(src, e.Key, isParam)
		if err != nil {
			return TypeRef{}, err
		}
		value, err := refFromExpr(src, e.Value, isParam)
		if err != nil {
			return TypeRef{}, err
		}

		return Map(key, value), nil
	case *ast.IndexExpr:
		return namedWithArgs(src, e.X, []ast.Expr{e.Index}, isParam)
	case *ast.IndexListExpr:
		return namedWithArgs(src, e.X, e.Indices, isParam)
	default:
		return fail("unsupported expression %T", expr)
	}
}

func namedWithArgs(src string, base ast.Expr, indices []ast.Expr, isParam map[string]bool) (TypeRef, error) {
	head, err := refFromExpr(src, base, isParam)
	if err != nil {
		return TypeRef{}, err
	}
	if head.Kind != RefNamed {
		return TypeRef{}, fmt.Errorf("%w: type %q: %s cannot take arguments", errs.ErrInvalidDefinition, src, head)
	}

	args := make([]TypeRef, len(indices))
	for i, idx := range indices {
		if args[i], err = refFromExpr(src, idx, isParam); err != nil {
			return TypeRef{}, err
		}
	}
	head.Args = args

	return head, nil
}
