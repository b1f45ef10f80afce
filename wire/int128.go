package wire

import (
	"fmt"
	"math/big"
)

// Uint128 is an unsigned 128-bit integer split into two 64-bit halves.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

// Int128 is a signed 128-bit two's complement integer split into two halves.
type Int128 struct {
	Lo uint64
	Hi int64
}

var (
	two128     = new(big.Int).Lsh(big.NewInt(1), 128)
	maxUint128 = new(big.Int).Sub(two128, big.NewInt(1))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	uint64Mask = new(big.Int).SetUint64(^uint64(0))
)

// Big returns u as a big.Int.
func (u Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)

	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string {
	return u.Big().String()
}

// Uint128FromBig converts b, which must be within [0, 2^128-1].
func Uint128FromBig(b *big.Int) (Uint128, error) {
	if b.Sign() < 0 || b.Cmp(maxUint128) > 0 {
		return Uint128{}, fmt.Errorf("value %s does not fit in 128 unsigned bits", b)
	}

	lo := new(big.Int).And(b, uint64Mask).Uint64()
	hi := new(big.Int).Rsh(b, 64).Uint64()

	return Uint128{Lo: lo, Hi: hi}, nil
}

// Big returns i as a big.Int.
func (i Int128) Big() *big.Int {
	u := Uint128{Lo: i.Lo, Hi: uint64(i.Hi)} //nolint:gosec
	b := u.Big()
	if i.Hi < 0 {
		b.Sub(b, two128)
	}

	return b
}

func (i Int128) String() string {
	return i.Big().String()
}

// Int128FromBig converts b, which must be within [-2^127, 2^127-1].
func Int128FromBig(b *big.Int) (Int128, error) {
	if b.Cmp(minInt128) < 0 || b.Cmp(maxInt128) > 0 {
		return Int128{}, fmt.Errorf("value %s does not fit in 128 signed bits", b)
	}

	v := new(big.Int).Set(b)
	if v.Sign() < 0 {
		v.Add(v, two128)
	}

	lo := new(big.Int).And(v, uint64Mask).Uint64()
	hi := new(big.Int).Rsh(v, 64).Uint64()

	return Int128{Lo: lo, Hi: int64(hi)}, nil //nolint:gosec
}
