package fixpoint

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/canopy-network/batchdex/lib"
	"github.com/holiman/uint256"
)

/*
	U128x128 is an unsigned fixed point number with 128 integer bits and 128 fractional bits.
	The raw value is stored in a 256 bit word scaled by 2^128.
	Multiplication and division keep a 512 bit intermediate and truncate toward zero.
*/

const fractionalBits = 128

var (
	unit    = new(uint256.Int).Lsh(uint256.NewInt(1), fractionalBits)            // 1.0
	fracMax = new(uint256.Int).Sub(new(uint256.Int).Set(unit), uint256.NewInt(1)) // 2^128 - 1
	scale   = math.Ldexp(1, fractionalBits)                                       // 2^128 as a float
)

// U128x128 is a value type; the zero value is 0.0
type U128x128 struct {
	v uint256.Int
}

// FromUint64() lifts an integer into fixed point
func FromUint64(a uint64) U128x128 {
	var z U128x128
	z.v.Lsh(uint256.NewInt(a), fractionalBits)
	return z
}

// Zero() returns 0.0
func Zero() U128x128 { return U128x128{} }

// One() returns 1.0
func One() U128x128 { return U128x128{v: *unit} }

// Ratio() returns numerator / denominator
func Ratio(numerator, denominator uint64) (U128x128, lib.ErrorI) {
	return FromUint64(numerator).Div(FromUint64(denominator))
}

// Mul() returns a * b, truncated
func (a U128x128) Mul(b U128x128) (U128x128, lib.ErrorI) {
	var z U128x128
	if a.v.IsZero() || b.v.IsZero() {
		return z, nil
	}
	if _, overflow := z.v.MulDivOverflow(&a.v, &b.v, unit); overflow {
		return U128x128{}, lib.ErrOverflow()
	}
	return z, nil
}

// Div() returns a / b, truncated
func (a U128x128) Div(b U128x128) (U128x128, lib.ErrorI) {
	var z U128x128
	if b.v.IsZero() {
		return z, lib.ErrDivideByZero()
	}
	if a.v.IsZero() {
		return z, nil
	}
	if _, overflow := z.v.MulDivOverflow(&a.v, unit, &b.v); overflow {
		return U128x128{}, lib.ErrOverflow()
	}
	return z, nil
}

// Add() returns a + b
func (a U128x128) Add(b U128x128) (U128x128, lib.ErrorI) {
	var z U128x128
	if _, overflow := z.v.AddOverflow(&a.v, &b.v); overflow {
		return U128x128{}, lib.ErrOverflow()
	}
	return z, nil
}

// Sub() returns a - b
func (a U128x128) Sub(b U128x128) (U128x128, lib.ErrorI) {
	var z U128x128
	if _, underflow := z.v.SubOverflow(&a.v, &b.v); underflow {
		return U128x128{}, lib.ErrUnderflow()
	}
	return z, nil
}

// RoundDown() drops the fractional part
func (a U128x128) RoundDown() U128x128 {
	var z U128x128
	z.v.Rsh(&a.v, fractionalBits)
	z.v.Lsh(&z.v, fractionalBits)
	return z
}

// RoundUp() returns the smallest integer not less than a
func (a U128x128) RoundUp() (U128x128, lib.ErrorI) {
	if a.IsIntegral() {
		return a, nil
	}
	return a.RoundDown().Add(One())
}

// IsIntegral() is true when the fractional part is zero
func (a U128x128) IsIntegral() bool {
	var frac uint256.Int
	return frac.And(&a.v, fracMax).IsZero()
}

// IsZero() is true for 0.0
func (a U128x128) IsZero() bool { return a.v.IsZero() }

// Cmp() returns -1, 0 or +1
func (a U128x128) Cmp(b U128x128) int { return a.v.Cmp(&b.v) }

// Uint64() converts an integral value that fits into 64 bits
func (a U128x128) Uint64() (uint64, lib.ErrorI) {
	if !a.IsIntegral() {
		return 0, lib.ErrNotIntegral()
	}
	var whole uint256.Int
	whole.Rsh(&a.v, fractionalBits)
	if !whole.IsUint64() {
		return 0, lib.ErrOverflow()
	}
	return whole.Uint64(), nil
}

// Float64() is a lossy conversion used for reporting only
func (a U128x128) Float64() float64 {
	var whole, frac uint256.Int
	whole.Rsh(&a.v, fractionalBits)
	frac.And(&a.v, fracMax)
	return whole.Float64() + frac.Float64()/scale
}

// Bytes() is the 32 byte big endian raw value; byte order matches numeric order
func (a U128x128) Bytes() []byte {
	b := a.v.Bytes32()
	return b[:]
}

// FromBytes() is the inverse of Bytes()
func FromBytes(b []byte) U128x128 {
	var z U128x128
	z.v.SetBytes(b)
	return z
}

func (a U128x128) String() string { return strconv.FormatFloat(a.Float64(), 'g', -1, 64) }

// MarshalJSON() encodes the exact raw value as a decimal string
func (a U128x128) MarshalJSON() ([]byte, error) { return json.Marshal(a.v.Dec()) }

// UnmarshalJSON() decodes the raw decimal string written by MarshalJSON()
func (a *U128x128) UnmarshalJSON(bz []byte) error {
	var s string
	if err := json.Unmarshal(bz, &s); err != nil {
		return err
	}
	return a.v.SetFromDecimal(s)
}
