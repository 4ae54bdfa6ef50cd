package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// MaxAmountBits is the width of every amount accepted on the wire.
const MaxAmountBits = 128

// ErrAmountOverflow is returned when an amount does not fit in MaxAmountBits.
var ErrAmountOverflow = errors.New("amount exceeds 128 bits")

// Amount is an unsigned integer quantity of a denomination, also used for
// listing prices. The zero value is 0. Arithmetic is carried out on 256 bits
// so products of a 128-bit amount and a percentage never wrap.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding n.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount parses a base-10 string. Values wider than 128 bits are rejected.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return a, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if v.BitLen() > MaxAmountBits {
		return a, ErrAmountOverflow
	}
	a.v = *v
	return a, nil
}

// AmountFromUint256 wraps v. The caller keeps ownership of v.
func AmountFromUint256(v *uint256.Int) Amount {
	var a Amount
	a.v.Set(v)
	return a
}

// Uint256 returns a copy of the underlying integer.
func (a Amount) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&a.v)
}

func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }

// Add returns a+b and whether the sum overflowed 256 bits.
func (a Amount) Add(b Amount) (Amount, bool) {
	var out Amount
	_, overflow := out.v.AddOverflow(&a.v, &b.v)
	return out, overflow
}

// Sub returns a-b and whether the subtraction underflowed.
func (a Amount) Sub(b Amount) (Amount, bool) {
	var out Amount
	_, underflow := out.v.SubOverflow(&a.v, &b.v)
	return out, underflow
}

// Float64 is a lossy conversion for metrics.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.v.ToBig()).Float64()
	return f
}

func (a Amount) String() string { return a.v.Dec() }

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

// UnmarshalJSON accepts a decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
