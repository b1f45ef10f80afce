// Package discriminant assigns the single-byte wire tag of every variant of a
// sum type.
//
// Declaration order is the default. Explicit discriminants are honored only
// when the type pins ModeExplicit; declaring them without pinning a mode is an
// error because both modes are valid and produce different tags for the same
// definition. Discriminant expressions must be integer literals, optionally
// combined with arithmetic; anything that would require evaluating code, such
// as identifiers or function calls, is rejected.
package discriminant

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/internal/collision"
	"github.com/arloliu/canon/typedef"
)

// MaxVariants is the number of distinct tags a single byte can carry.
const MaxVariants = 256

// maxShift bounds shift counts so a hostile expression cannot allocate a huge integer.
const maxShift = 64

// Tags holds the resolved tag of every variant of one sum type.
type Tags struct {
	tags    []uint8
	variant [MaxVariants]int16
}

func newTags(n int) *Tags {
	t := &Tags{tags: make([]uint8, n)}
	for i := range t.variant {
		t.variant[i] = -1
	}

	return t
}

func (t *Tags) set(variant int, tag uint8) {
	t.tags[variant] = tag
	t.variant[tag] = int16(variant) //nolint:gosec
}

// Len returns the number of variants.
func (t *Tags) Len() int {
	return len(t.tags)
}

// Tag returns the tag of the variant at the given declaration index.
func (t *Tags) Tag(variant int) uint8 {
	return t.tags[variant]
}

// Lookup returns the declaration index of the variant whose tag is exactly tag.
func (t *Tags) Lookup(tag uint8) (int, bool) {
	idx := t.variant[tag]
	if idx < 0 {
		return 0, false
	}

	return int(idx), true
}

// All returns the tags in declaration order.
func (t *Tags) All() []uint8 {
	out := make([]uint8, len(t.tags))
	copy(out, t.tags)

	return out
}

// Resolve computes the tags of variants under mode.
//
// Errors are wrapped in *errs.DefinitionError naming typeName and, where
// applicable, the offending variant.
func Resolve(typeName string, variants []typedef.Variant, mode typedef.DiscriminantMode) (*Tags, error) {
	hasExplicit := false
	for _, v := range variants {
		if v.Discriminant != "" {
			hasExplicit = true
			break
		}
	}

	if hasExplicit && mode == typedef.ModeUnset {
		return nil, errs.Definition(typeName, "", fmt.Errorf(
			"%w: pin the mode to declaration-order or explicit", errs.ErrAmbiguousDiscriminantMode))
	}

	if len(variants) > MaxVariants {
		return nil, errs.Definition(typeName, "", fmt.Errorf(
			"%w: %d variants", errs.ErrTooManyVariants, len(variants)))
	}

	tags := newTags(len(variants))

	switch mode {
	case typedef.ModeUnset, typedef.ModeDeclarationOrder:
		for i := range variants {
			tags.set(i, uint8(i)) //nolint:gosec
		}

		return tags, nil
	case typedef.ModeExplicit:
		return resolveExplicit(typeName, variants, tags)
	default:
		return nil, errs.Definition(typeName, "", fmt.Errorf(
			"%w: unknown discriminant mode %d", errs.ErrInvalidDefinition, mode))
	}
}

func resolveExplicit(typeName string, variants []typedef.Variant, tags *Tags) (*Tags, error) {
	tracker := collision.NewTracker[uint8]()
	next := constant.MakeInt64(0)

	for i, v := range variants {
		value := next
		if v.Discriminant != "" {
			var err error
			if value, err = Eval(v.Discriminant); err != nil {
				return nil, errs.Definition(typeName, v.Name, err)
			}
		}

		if constant.Sign(value) < 0 || constant.Compare(value, token.GTR, constant.MakeInt64(MaxVariants-1)) {
			return nil, errs.Definition(typeName, v.Name, fmt.Errorf(
				"%w: %s", errs.ErrDiscriminantOutOfRange, value.ExactString()))
		}

		n, _ := constant.Uint64Val(value)
		tag := uint8(n) //nolint:gosec
		if err := tracker.Track(tag, v.Name); err != nil {
			return nil, errs.Definition(typeName, v.Name, err)
		}
		tags.set(i, tag)

		next = constant.BinaryOp(value, token.ADD, constant.MakeInt64(1))
	}

	return tags, nil
}

// Eval evaluates a discriminant expression such as "10", "0x0A", "1 << 3" or
// "-(2 * 3)". The result is an exact integer constant; range checks are left
// to the caller.
func Eval(src string) (constant.Value, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", errs.ErrUnsupportedDiscriminantExpression, src, err)
	}

	return eval(src, expr)
}

func eval(src string, expr ast.Expr) (constant.Value, error) {
	unsupported := func(what string) (constant.Value, error) {
		return nil, fmt.Errorf("%w: %q: %s", errs.ErrUnsupportedDiscriminantExpression, src, what)
	}

	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT {
			return unsupported("only integer literals are accepted")
		}

		return constant.MakeFromLiteral(e.Value, e.Kind, 0), nil
	case *ast.ParenExpr:
		return eval(src, e.X)
	case *ast.UnaryExpr:
		switch e.Op {
		case token.ADD, token.SUB, token.XOR:
		default:
			return unsupported("operator " + e.Op.String())
		}
		x, err := eval(src, e.X)
		if err != nil {
			return nil, err
		}

		return constant.UnaryOp(e.Op, x, 0), nil
	case *ast.BinaryExpr:
		x, err := eval(src, e.X)
		if err != nil {
			return nil, err
		}
		y, err := eval(src, e.Y)
		if err != nil {
			return nil, err
		}

		return binaryOp(src, e.Op, x, y)
	case *ast.Ident:
		return unsupported("identifier " + e.Name + " cannot be evaluated")
	case *ast.CallExpr:
		return unsupported("function calls cannot be evaluated")
	default:
		return unsupported(fmt.Sprintf("%T", expr))
	}
}

func binaryOp(src string, op token.Token, x, y constant.Value) (constant.Value, error) {
	switch op {
	case token.ADD, token.SUB, token.MUL, token.AND, token.OR, token.XOR, token.AND_NOT:
		return constant.BinaryOp(x, op, y), nil
	case token.QUO, token.REM:
		if constant.Sign(y) == 0 {
			return nil, fmt.Errorf("%w: %q: division by zero", errs.ErrUnsupportedDiscriminantExpression, src)
		}
		if op == token.QUO {
			op = token.QUO_ASSIGN // integer division
		}

		return constant.BinaryOp(x, op, y), nil
	case token.SHL, token.SHR:
		s, ok := constant.Uint64Val(y)
		if !ok || constant.Sign(y) < 0 || s > maxShift {
			return nil, fmt.Errorf("%w: %q: shift count %s out of range", errs.ErrUnsupportedDiscriminantExpression, src, y.ExactString())
		}

		return constant.Shift(x, op, uint(s)), nil
	default:
		return nil, fmt.Errorf("%w: %q: operator %s", errs.ErrUnsupportedDiscriminantExpression, src, op)
	}
}
