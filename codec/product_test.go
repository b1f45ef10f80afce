package codec

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/canon/diag"
	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/typedef"
	"github.com/arloliu/canon/wire"
)

type Entry struct {
	ID    uint64
	Name  string
	Next  *Entry
	Cache map[string]int `canon:"skip"`
	Tags  []string
}

type Coord struct {
	_    struct{} `canon:",tuple"`
	Lat  float64
	Long float64
}

type Account struct {
	_        struct{} `canon:",init=Derive"`
	Balance  int64
	Positive bool `canon:"skip"`
}

func (a *Account) Derive() {
	a.Positive = a.Balance > 0
}

type Ratio struct {
	_   struct{} `canon:",name=Fraction,init=Validate"`
	Num uint32
	Den uint32
}

func (r Ratio) Validate() error {
	if r.Den == 0 {
		return errors.New("zero denominator")
	}

	return nil
}

type Register struct {
	_      struct{} `canon:",overlay"`
	Word   uint32
	Real   float32
	Bytes  [2]byte
	active int
}

func (r *Register) ActiveField() int {
	return r.active
}

type Cell struct {
	Tag uint8
	Reg Register
}

type Wrapper struct {
	Label string
	Inner Point
}

func TestRoundTrip_SkippedFieldDecodesToDefault(t *testing.T) {
	reg := newTestRegistry(t)
	in := Entry{
		ID:    1,
		Name:  "head",
		Cache: map[string]int{"hot": 1},
		Tags:  []string{"a"},
		Next:  &Entry{ID: 2, Name: "tail", Cache: map[string]int{"cold": 2}},
	}

	out := roundTrip(t, reg, in)
	require.Nil(t, out.Cache)
	require.Nil(t, out.Next.Cache)

	in.Cache = nil
	in.Next.Cache = nil
	require.Equal(t, in, out)
}

func TestEncode_SkippedFieldWritesNothing(t *testing.T) {
	reg := newTestRegistry(t)

	with := mustEncode(t, reg, Entry{ID: 1, Cache: map[string]int{"x": 1}})
	without := mustEncode(t, reg, Entry{ID: 1})
	require.Equal(t, without, with)
	require.Len(t, with, 8+4+1+4)
}

func TestTuple_FieldsArePositional(t *testing.T) {
	reg := newTestRegistry(t)
	in := Coord{Lat: 1.25, Long: -3.5}
	require.Equal(t, in, roundTrip(t, reg, in))

	p, err := reg.Plan(typeOf[Coord]())
	require.NoError(t, err)
	require.Equal(t, typedef.ShapeTuple, p.Def.Shape)
	require.Equal(t, "0", p.Fields[0].Field.Name)
	require.Equal(t, "1", p.Fields[1].Field.Name)
}

func TestInitHook(t *testing.T) {
	reg := newTestRegistry(t)

	out := roundTrip(t, reg, Account{Balance: 10})
	require.True(t, out.Positive)

	out = roundTrip(t, reg, Account{Balance: -1, Positive: true})
	require.False(t, out.Positive)

	data := mustEncode(t, reg, Ratio{Num: 1, Den: 0})
	_, err := decodeAs[Ratio](reg, data)
	require.ErrorIs(t, err, errs.ErrInitHook)
	require.Contains(t, err.Error(), "zero denominator")

	ref, err := reg.Ref(typeOf[Ratio]())
	require.NoError(t, err)
	require.Equal(t, "Fraction", ref.String())
}

func TestOverlay(t *testing.T) {
	reg := newTestRegistry(t)

	data := mustEncode(t, reg, Register{Real: 1.5, Word: 99, active: 1})
	require.Equal(t, []byte{0x00, 0x00, 0xc0, 0x3f}, data)

	dst := Register{active: 1}
	require.NoError(t, reg.Decode(wire.NewReader(data), &dst))
	require.InDelta(t, 1.5, dst.Real, 0)
	require.Zero(t, dst.Word)

	data = mustEncode(t, reg, Register{Bytes: [2]byte{7, 8}, active: 2})
	require.Equal(t, []byte{7, 8}, data)

	_, err := encodeAs(reg, Register{active: 3})
	require.ErrorIs(t, err, errs.ErrInvalidActiveField)
}

func TestOverlay_NestedInRecord(t *testing.T) {
	reg := newTestRegistry(t)

	data := mustEncode(t, reg, Cell{Tag: 7, Reg: Register{Real: 1.5, active: 1}})
	require.Equal(t, []byte{0x07, 0x00, 0x00, 0xc0, 0x3f}, data)

	dst := Cell{Reg: Register{Word: 3, active: 1}}
	require.NoError(t, reg.Decode(wire.NewReader(data), &dst))
	require.Equal(t, uint8(7), dst.Tag)
	require.InDelta(t, 1.5, dst.Reg.Real, 0)
	require.Equal(t, uint32(3), dst.Reg.Word)
	require.Equal(t, 1, dst.Reg.active)

	arr := [2]Register{{Word: 9}, {Bytes: [2]byte{1, 2}, active: 2}}
	data = mustEncode(t, reg, arr)
	require.Equal(t, []byte{9, 0, 0, 0, 1, 2}, data)

	out := [2]Register{{}, {active: 2}}
	require.NoError(t, reg.Decode(wire.NewReader(data), &out))
	require.Equal(t, arr, out)
}

func TestOverlay_RejectedWithoutDestination(t *testing.T) {
	type Slot struct{ Cell Cell }

	tests := []struct {
		name string
		typ  reflect.Type
	}{
		{"slice", typeOf[[]Register]()},
		{"option", typeOf[*Register]()},
		{"map value", typeOf[map[uint8]Register]()},
		{"nested in slice element", typeOf[[]Cell]()},
		{"array in option", typeOf[*[2]Register]()},
		{"field of slice element", typeOf[[]Slot]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t)
			require.ErrorIs(t, reg.Compile(tt.typ), errs.ErrUnsupportedType)
		})
	}
}

func TestDecode_SkippedFieldsResetUnexportedKept(t *testing.T) {
	type State struct {
		Count uint16
		Cache []int `canon:"skip"`
		owner string
	}

	reg := newTestRegistry(t)
	data := mustEncode(t, reg, State{Count: 4})

	dst := State{Count: 1, Cache: []int{1}, owner: "me"}
	require.NoError(t, reg.Decode(wire.NewReader(data), &dst))
	require.Equal(t, State{Count: 4, owner: "me"}, dst)
}

func TestOverlay_WithoutInterface(t *testing.T) {
	type Loose struct {
		_ struct{} `canon:",overlay"`
		A uint8
	}

	reg := newTestRegistry(t)
	_, err := encodeAs(reg, Loose{})
	require.ErrorIs(t, err, errs.ErrInvalidDefinition)
}

func TestFieldError_Nested(t *testing.T) {
	reg := newTestRegistry(t)

	data := mustEncode(t, reg, Wrapper{Label: "p", Inner: Point{X: 1, Y: 2}})
	_, err := decodeAs[Wrapper](reg, data[:len(data)-1])
	require.ErrorIs(t, err, errs.ErrTruncatedInput)

	var fieldErr *errs.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "Wrapper", fieldErr.Type)
	require.Equal(t, "Inner", fieldErr.Field)
	require.Contains(t, err.Error(), "Point.Y (field 1)")
}

func TestCompile_ConfigurationErrors(t *testing.T) {
	type SkipWith struct {
		V string `canon:"skip,with=upper"`
	}
	type SkipSchema struct {
		V string `canon:"skip,schema=opaque"`
	}
	type UnknownOption struct {
		V string `canon:"compress"`
	}
	type BadTypeOption struct {
		_ struct{} `canon:"tuple"`
		V string
	}
	type MissingInit struct {
		_ struct{} `canon:",init=Nope"`
		V string
	}

	tests := []struct {
		name string
		v    any
		want error
	}{
		{"skip with custom codec", SkipWith{}, errs.ErrConflictingFieldOptions},
		{"skip with schema override", SkipSchema{}, errs.ErrConflictingFieldOptions},
		{"unknown field option", UnknownOption{}, errs.ErrInvalidDefinition},
		{"type options without comma", BadTypeOption{}, errs.ErrInvalidDefinition},
		{"missing init hook", MissingInit{}, errs.ErrInvalidDefinition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var collector diag.Collector
			reg := newTestRegistry(t, WithDiagnostics(&collector))

			w := wire.NewWriter()
			defer w.Release()
			err := reg.Encode(w, tt.v)
			require.ErrorIs(t, err, tt.want)
			require.Zero(t, w.Len())
			require.Equal(t, 1, collector.Errors())

			u, err := reg.Universe()
			require.NoError(t, err)
			require.Zero(t, u.Len())
		})
	}
}

func TestCompile_NameCollision(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Compile(typeOf[Point]()))

	type Point struct{ Z uint8 }
	err := reg.Compile(typeOf[Point]())
	require.ErrorIs(t, err, errs.ErrInvalidDefinition)
	require.True(t, strings.Contains(err.Error(), "name used by both"))
}

func TestCompile_UnexportedFieldWarnings(t *testing.T) {
	type Hidden struct {
		secret uint32 `canon:"skip"` //nolint:unused
	}

	var collector diag.Collector
	reg := newTestRegistry(t, WithDiagnostics(&collector))
	require.NoError(t, reg.Compile(typeOf[Hidden]()))

	ds := collector.Diagnostics()
	require.Len(t, ds, 2)
	require.Equal(t, diag.SeverityWarning, ds[0].Severity)
	require.Equal(t, "secret", ds[0].Item)
	require.Equal(t, "Hidden", ds[1].Type)
}

func TestRegistry_Universe(t *testing.T) {
	reg := newTestRegistry(t, WithNamespace("ledger"))
	require.NoError(t, reg.Compile(typeOf[Wrapper]()))
	require.NoError(t, reg.Compile(typeOf[Entry]()))

	u, err := reg.Universe()
	require.NoError(t, err)
	require.Equal(t, "ledger", u.Namespace)
	require.Equal(t, 3, u.Len())

	def, ok := u.Lookup("Entry")
	require.True(t, ok)
	require.Equal(t, "*Entry", def.Fields[2].Type.String())
	require.Equal(t, "map[string]int", def.Fields[3].Type.String())
	require.True(t, def.Fields[3].Skip)
}

func TestNewRegistry_InvalidNamespace(t *testing.T) {
	_, err := NewRegistry(WithNamespace("not valid"))
	require.ErrorIs(t, err, errs.ErrInvalidDefinition)
}

type Pair[A, B any] struct {
	First  A
	Second B
}

func TestGenericInstantiation(t *testing.T) {
	reg := newTestRegistry(t)
	in := Pair[uint32, string]{First: 1, Second: "one"}
	require.Equal(t, in, roundTrip(t, reg, in))

	ref, err := reg.Ref(typeOf[Pair[uint32, string]]())
	require.NoError(t, err)
	require.Equal(t, "Pair[uint32, string]", ref.String())
}
