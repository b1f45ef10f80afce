// Package errs defines the sentinel errors and structured error types shared by
// every canon package.
//
// Call sites wrap a sentinel with context using fmt.Errorf("%w: ...", ErrX), so
// callers can always classify a failure with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

// Configuration-time errors. They are detected while a codec or schema is being
// generated, before any byte is read or written.
var (
	ErrAmbiguousDiscriminantMode         = errors.New("explicit discriminants require a pinned discriminant mode")
	ErrTooManyVariants                   = errors.New("sum type has more than 256 variants")
	ErrDiscriminantOutOfRange            = errors.New("discriminant out of range [0, 255]")
	ErrDiscriminantCollision             = errors.New("discriminant collision")
	ErrUnsupportedDiscriminantExpression = errors.New("unsupported discriminant expression")
	ErrConflictingFieldOptions           = errors.New("conflicting field options")
	ErrUnsupportedType                   = errors.New("unsupported type")
	ErrUnknownCodec                      = errors.New("unknown custom codec")
	ErrInvalidDefinition                 = errors.New("invalid type definition")
	ErrMalformedGenericArgs              = errors.New("malformed generic arguments")
	ErrUnsatisfiedBound                  = errors.New("unsatisfied bound")
)

// Runtime errors raised while encoding or decoding.
var (
	ErrTruncatedInput     = errors.New("truncated input")
	ErrLengthOverflow     = errors.New("length overflow")
	ErrInvalidBooleanByte = errors.New("invalid boolean byte")
	ErrUnknownVariantTag  = errors.New("unknown variant tag")
	ErrNilValue           = errors.New("nil value")
	ErrTrailingBytes      = errors.New("trailing bytes after value")
	ErrInvalidActiveField = errors.New("overlay active field out of range")
	ErrDuplicateMapKey    = errors.New("duplicate map key")
	ErrInitHook           = errors.New("init hook failed")
)

// Frame errors.
var (
	ErrInvalidFrameSize   = errors.New("invalid frame size")
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidFrameFlags  = errors.New("invalid frame flags")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrSchemaMismatch     = errors.New("schema fingerprint mismatch")
)

// DefinitionError locates a configuration-time error inside a type definition.
type DefinitionError struct {
	// Type is the name of the offending type.
	Type string
	// Item is the field or variant name, empty when the error concerns the whole type.
	Item string
	Err  error
}

func (e *DefinitionError) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("type %s: %v", e.Type, e.Err)
	}

	return fmt.Sprintf("type %s, %s: %v", e.Type, e.Item, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// Definition wraps err with the location of the offending declaration.
func Definition(typeName, item string, err error) error {
	if err == nil {
		return nil
	}

	return &DefinitionError{Type: typeName, Item: item, Err: err}
}

// FieldError adds positional context to an encode or decode failure of a field.
type FieldError struct {
	Type  string
	Field string
	Index int
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s (field %d): %v", e.Type, e.Field, e.Index, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// UnknownVariantTagError reports a tag byte that matches no variant.
type UnknownVariantTagError struct {
	Type string
	Tag  uint8
}

func (e *UnknownVariantTagError) Error() string {
	return fmt.Sprintf("%v: %d for %s", ErrUnknownVariantTag, e.Tag, e.Type)
}

// Is reports whether target is ErrUnknownVariantTag.
func (e *UnknownVariantTagError) Is(target error) bool {
	return target == ErrUnknownVariantTag
}
