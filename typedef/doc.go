// Package typedef is the declarative type model that drives codec and schema
// generation.
//
// A Definition describes one type: a record (named fields), a tuple (positional
// fields), an overlay (fields sharing storage, no tag) or a sum (ordered
// variants, each carrying its own record or tuple field list). Field types are
// TypeRefs, written in Go type syntax:
//
//	uint32            primitive
//	[]T               length-prefixed sequence
//	[32]uint8         fixed-length array
//	*T                option
//	map[K]V           map, entries sorted by encoded key
//	Pair[K, uint64]   named type with generic arguments
//	T                 generic parameter of the enclosing definition
//
// Definitions are produced either by the reflection binder in package codec or
// by LoadYAML for tooling that works without Go types.
package typedef
