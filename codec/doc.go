// Package codec derives canon encoders and decoders for Go types by reflection.
//
// A Go type is first bound to a typedef.Definition (struct fields become
// record or tuple fields, registered interfaces become sum types), planned by
// package plan, and compiled into a pair of closures that are cached per
// reflect.Type in a Registry.
//
// # Struct tags
//
// Field options live in the canon tag:
//
//	type Entry struct {
//		ID    uint64
//		Key   [32]byte
//		Memo  string `canon:"with=lowercase"`
//		Cache map[string]int `canon:"skip"`
//	}
//
// Type options live on a blank field:
//
//	type Point struct {
//		_ struct{} `canon:",tuple,init=Validate"`
//		X, Y int32
//	}
//
// Recognized type options are record, tuple, overlay, init=Method and
// name=Name. Unexported fields are never encoded; decoding leaves them zero.
//
// # Sums
//
// Sum types are Go interfaces whose variants are registered explicitly:
//
//	err := codec.RegisterSum[Op](reg, []codec.VariantSpec{
//		codec.Variant[Nop](),
//		codec.Variant[Push]().Explicit("10"),
//		codec.Variant[Pop](),
//	}, codec.WithMode(typedef.ModeExplicit))
//
// # Built-in mappings
//
// Pointers encode as options (tag 0x00 for nil, 0x01 followed by the value),
// slices as a uint32 count followed by the elements, arrays as their elements
// only, and maps as a uint32 count followed by entries ordered by the encoded
// bytes of their keys. int, uint and uintptr are rejected because their width
// depends on the platform.
package codec
