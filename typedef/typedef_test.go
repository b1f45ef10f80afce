package typedef

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/canon/errs"
)

func TestParseTypeRef(t *testing.T) {
	tests := []struct {
		src    string
		params []string
		kind   RefKind
		want   string
	}{
		{"uint32", nil, RefPrimitive, "uint32"},
		{"byte", nil, RefPrimitive, "uint8"},
		{"uint128", nil, RefPrimitive, "uint128"},
		{"[]string", nil, RefSequence, "[]string"},
		{"[32]uint8", nil, RefFixed, "[32]uint8"},
		{"[0x10]bool", nil, RefFixed, "[16]bool"},
		{"*Node", nil, RefOption, "*Node"},
		{"map[string][]T", []string{"T"}, RefMap, "map[string][]T"},
		{"Pair[K, uint64]", []string{"K"}, RefNamed, "Pair[K, uint64]"},
		{"Box[T]", []string{"T"}, RefNamed, "Box[T]"},
		{"ext.Hash", nil, RefNamed, "ext.Hash"},
		{"T", []string{"T"}, RefParam, "T"},
		{"T", nil, RefNamed, "T"},
		{"(uint8)", nil, RefPrimitive, "uint8"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			ref, err := ParseTypeRef(tt.src, tt.params...)
			require.NoError(t, err)
			require.Equal(t, tt.kind, ref.Kind)
			require.Equal(t, tt.want, ref.String())

			again, err := ParseTypeRef(ref.String(), tt.params...)
			require.NoError(t, err)
			require.True(t, ref.Equal(again))
		})
	}
}

func TestParseTypeRef_Errors(t *testing.T) {
	for _, src := range []string{"", "[n]uint8", "func()", "uint8[T]", "chan int", "a.b.C", "[-1]uint8"} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseTypeRef(src)
			require.ErrorIs(t, err, errs.ErrInvalidDefinition)
		})
	}

	require.Panics(t, func() { MustParseTypeRef("func()") })
}

func TestTypeRef_ParamsAndSubstitute(t *testing.T) {
	ref := MustParseTypeRef("map[K][]Pair[V, K]", "K", "V")
	require.Equal(t, []string{"K", "V"}, ref.Params())
	require.False(t, ref.IsConcrete())

	concrete := ref.Substitute(map[string]TypeRef{
		"K": Prim(String),
		"V": Seq(Prim(Uint8)),
	})
	require.Equal(t, "map[string][]Pair[[]uint8, string]", concrete.String())
	require.True(t, concrete.IsConcrete())

	// the original is left untouched
	require.Equal(t, "map[K][]Pair[V, K]", ref.String())

	partial := Param("X").Substitute(nil)
	require.Equal(t, "X", partial.String())
}

func TestPrimitiveSize(t *testing.T) {
	require.Equal(t, 1, Bool.Size())
	require.Equal(t, 2, Int16.Size())
	require.Equal(t, 4, Float32.Size())
	require.Equal(t, 8, Uint64.Size())
	require.Equal(t, 16, Int128.Size())
	require.Equal(t, 0, String.Size())
	require.Equal(t, "unknown", Primitive(0).String())
}

func TestCapability(t *testing.T) {
	c, err := ParseCapability("encode+decode")
	require.NoError(t, err)
	require.Equal(t, CapEncode|CapDecode, c)
	require.Equal(t, "encode+decode", c.String())
	require.True(t, CapAll.Has(c))
	require.False(t, c.Has(CapDefault))
	require.Equal(t, CapDefault, c.Missing(CapDecode|CapDefault))

	all, err := ParseCapability("all")
	require.NoError(t, err)
	require.Equal(t, CapAll, all)

	none, err := ParseCapability("")
	require.NoError(t, err)
	require.Equal(t, CapNone, none)
	require.Equal(t, "none", none.String())

	_, err = ParseCapability("serialize")
	require.ErrorIs(t, err, errs.ErrInvalidDefinition)
}

func TestDefinition_Validate(t *testing.T) {
	valid := &Definition{
		Name:   "Pair",
		Params: []string{"K", "V"},
		Shape:  ShapeRecord,
		Fields: []Field{
			{Name: "key", Index: 0, Type: Param("K")},
			{Name: "value", Index: 1, Type: Param("V")},
		},
	}
	require.NoError(t, valid.Validate())
	require.Equal(t, "Pair[K, V]", valid.Ref().String())
	require.Equal(t, CapAll, valid.Provides())

	tests := []struct {
		name string
		def  *Definition
	}{
		{"empty name", &Definition{Shape: ShapeRecord}},
		{"duplicate param", &Definition{Name: "A", Params: []string{"T", "T"}, Shape: ShapeRecord}},
		{"undeclared param", &Definition{Name: "A", Shape: ShapeRecord, Fields: []Field{{Name: "x", Type: Param("T")}}}},
		{"duplicate field", &Definition{Name: "A", Shape: ShapeRecord, Fields: []Field{
			{Name: "x", Index: 0, Type: Prim(Bool)},
			{Name: "x", Index: 1, Type: Prim(Bool)},
		}}},
		{"bad index", &Definition{Name: "A", Shape: ShapeTuple, Fields: []Field{{Name: "0", Index: 3, Type: Prim(Bool)}}}},
		{"record with variants", &Definition{Name: "A", Shape: ShapeRecord, Variants: []Variant{{Name: "X", Shape: ShapeRecord}}}},
		{"sum with fields", &Definition{Name: "A", Shape: ShapeSum, Fields: []Field{{Name: "x", Type: Prim(Bool)}}}},
		{"duplicate variant", &Definition{Name: "A", Shape: ShapeSum, Variants: []Variant{
			{Name: "X", Index: 0, Shape: ShapeRecord},
			{Name: "X", Index: 1, Shape: ShapeRecord},
		}}},
		{"overlay variant shape", &Definition{Name: "A", Shape: ShapeSum, Variants: []Variant{{Name: "X", Shape: ShapeOverlay}}}},
		{"unknown shape", &Definition{Name: "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.def.Validate(), errs.ErrInvalidDefinition)
		})
	}
}

func TestUniverse(t *testing.T) {
	u := NewUniverse("ledger")
	require.Equal(t, "ledger.Entry", u.Qualify("Entry"))

	foreign := &Definition{Name: "Foreign", Shape: ShapeRecord, Capabilities: CapSchema}
	box := &Definition{
		Name:   "Box",
		Params: []string{"T"},
		Shape:  ShapeTuple,
		Fields: []Field{{Name: "0", Index: 0, Type: Param("T")}},
	}
	require.NoError(t, u.Add(foreign))
	require.NoError(t, u.Add(box))
	require.ErrorIs(t, u.Add(box), errs.ErrInvalidDefinition)
	require.Equal(t, 2, u.Len())
	require.Equal(t, []*Definition{foreign, box}, u.Definitions())

	require.Equal(t, CapAll, u.Provides(Seq(Prim(Uint8))))
	require.Equal(t, CapSchema, u.Provides(Named("Foreign")))
	require.Equal(t, CapSchema, u.Provides(Named("Box", Named("Foreign"))))
	require.Equal(t, CapSchema, u.Provides(Map(Prim(String), Named("Foreign"))))
	require.Equal(t, CapNone, u.Provides(Named("Missing")))
	require.Equal(t, CapNone, u.Provides(Param("T")))

	require.Equal(t, "", NewUniverse("").Namespace)
	require.Equal(t, "Entry", NewUniverse("").Qualify("Entry"))
}

const ledgerYAML = `
namespace: ledger
types:
  - name: Entry
    params: [T]
    init: Validate
    fields:
      - {name: id, type: uint64}
      - {name: memo, type: T}
      - {name: cache, type: "map[string]T", skip: true}
      - {name: raw, type: "[]uint8", with: hex, bounds: {T: ""}}
  - name: Op
    shape: sum
    discriminant: explicit
    variants:
      - {name: Nop}
      - {name: Push, discriminant: "10", shape: tuple, fields: [{type: uint64}]}
  - name: Foreign
    capabilities: schema
`

func TestLoadYAML(t *testing.T) {
	u, err := LoadYAML(strings.NewReader(ledgerYAML))
	require.NoError(t, err)
	require.Equal(t, "ledger", u.Namespace)
	require.Equal(t, 3, u.Len())

	entry, ok := u.Lookup("Entry")
	require.True(t, ok)
	require.Equal(t, ShapeRecord, entry.Shape)
	require.Equal(t, "Validate", entry.InitHook)
	require.Len(t, entry.Fields, 4)
	require.Equal(t, "map[string]T", entry.Fields[2].Type.String())
	require.True(t, entry.Fields[2].Skip)
	require.Equal(t, "hex", entry.Fields[3].With)
	require.Equal(t, map[string]Capability{"T": CapNone}, entry.Fields[3].Bounds)
	require.Nil(t, entry.Fields[1].Bounds)

	op, ok := u.Lookup("Op")
	require.True(t, ok)
	require.Equal(t, ShapeSum, op.Shape)
	require.Equal(t, ModeExplicit, op.Mode)
	require.Len(t, op.Variants, 2)
	require.Equal(t, "10", op.Variants[1].Discriminant)
	require.Equal(t, ShapeTuple, op.Variants[1].Shape)
	require.Equal(t, "0", op.Variants[1].Fields[0].Name)

	foreign, ok := u.Lookup("Foreign")
	require.True(t, ok)
	require.Equal(t, CapSchema, foreign.Provides())
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "types:\n  - name: A\n    colour: red\n"},
		{"bad shape", "types:\n  - name: A\n    shape: blob\n"},
		{"bad mode", "types:\n  - name: A\n    shape: sum\n    discriminant: maybe\n"},
		{"bad type", "types:\n  - name: A\n    fields: [{name: x, type: 'func()'}]\n"},
		{"bad capability", "types:\n  - name: A\n    capabilities: fly\n"},
		{"bad bound", "types:\n  - name: A\n    params: [T]\n    fields: [{name: x, type: T, bounds: {T: fly}}]\n"},
		{"sum with fields", "types:\n  - name: A\n    shape: sum\n    fields: [{name: x, type: bool}]\n"},
		{"duplicate type", "types:\n  - name: A\n  - name: A\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, errs.ErrInvalidDefinition)
		})
	}
}

func TestModeAndShapeStrings(t *testing.T) {
	for _, s := range []Shape{ShapeRecord, ShapeTuple, ShapeOverlay, ShapeSum} {
		parsed, err := ParseShape(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	require.Equal(t, "unknown", Shape(0).String())

	for _, m := range []DiscriminantMode{ModeUnset, ModeDeclarationOrder, ModeExplicit} {
		parsed, err := ParseDiscriminantMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)
	}
	require.Equal(t, "unknown", DiscriminantMode(9).String())
}
