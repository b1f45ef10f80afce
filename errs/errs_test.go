package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefinitionError(t *testing.T) {
	err := Definition("Shape", "Circle", fmt.Errorf("%w: 256", ErrDiscriminantOutOfRange))
	require.ErrorIs(t, err, ErrDiscriminantOutOfRange)
	require.Equal(t, "type Shape, Circle: discriminant out of range [0, 255]: 256", err.Error())

	var defErr *DefinitionError
	require.True(t, errors.As(err, &defErr))
	require.Equal(t, "Shape", defErr.Type)
	require.Equal(t, "Circle", defErr.Item)

	require.NoError(t, Definition("Shape", "", nil))
	require.Equal(t, "type Shape: too", (&DefinitionError{Type: "Shape", Err: errors.New("too")}).Error())
}

func TestFieldError(t *testing.T) {
	err := fmt.Errorf("decode: %w", &FieldError{Type: "Point", Field: "Y", Index: 1, Err: ErrTruncatedInput})
	require.ErrorIs(t, err, ErrTruncatedInput)
	require.Contains(t, err.Error(), "Point.Y (field 1)")
}

func TestUnknownVariantTagError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &UnknownVariantTagError{Type: "Op", Tag: 255})
	require.ErrorIs(t, err, ErrUnknownVariantTag)

	var tagErr *UnknownVariantTagError
	require.True(t, errors.As(err, &tagErr))
	require.Equal(t, uint8(255), tagErr.Tag)
	require.Contains(t, err.Error(), "255")
}
