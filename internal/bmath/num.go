package bmath

import (
	"errors"
	"math/big"
)

var (
	ErrSubUnderflow = errors.New("bmath: sub underflow")
	ErrDivZero      = errors.New("bmath: div by zero")
	ErrPowBaseLow   = errors.New("bmath: pow base too low")
	ErrPowBaseHigh  = errors.New("bmath: pow base too high")
)

// Bone returns a fresh copy of the fixed-point unit (1e18).
func Bone() *big.Int {
	return new(big.Int).Set(bone)
}

// Ether scales a whole-number amount into fixed point (n * 1e18).
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), bone)
}

// ToInt truncates a fixed-point value to its integer part.
func ToInt(a *big.Int) *big.Int {
	return new(big.Int).Quo(a, bone)
}

// Floor clears the fractional part of a fixed-point value.
func Floor(a *big.Int) *big.Int {
	return new(big.Int).Mul(ToInt(a), bone)
}

func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

func Sub(a, b *big.Int) (*big.Int, error) {
	c, neg := SubSign(a, b)
	if neg {
		return nil, ErrSubUnderflow
	}
	return c, nil
}

// SubSign returns |a-b| and whether a < b.
func SubSign(a, b *big.Int) (*big.Int, bool) {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Sub(a, b), false
	}
	return new(big.Int).Sub(b, a), true
}

// Mul multiplies two fixed-point values rounding half up.
func Mul(a, b *big.Int) *big.Int {
	c := new(big.Int).Mul(a, b)
	c.Add(c, halfBone)
	return c.Quo(c, bone)
}

// Div divides two fixed-point values rounding half up.
func Div(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivZero
	}
	c := new(big.Int).Mul(a, bone)
	c.Add(c, new(big.Int).Quo(b, big.NewInt(2)))
	return c.Quo(c, b), nil
}

// PowI raises a fixed-point base to a whole-number exponent n.
func PowI(a *big.Int, n *big.Int) *big.Int {
	base := new(big.Int).Set(a)
	exp := new(big.Int).Set(n)
	z := Bone()
	if exp.Bit(0) == 1 {
		z.Set(base)
	}
	for exp.Rsh(exp, 1); exp.Sign() != 0; exp.Rsh(exp, 1) {
		base = Mul(base, base)
		if exp.Bit(0) == 1 {
			z = Mul(z, base)
		}
	}
	return z
}

// Pow computes base^exp for a fixed-point exponent. The whole part of exp is
// handled exactly by PowI and the fraction by a binomial approximation.
func Pow(base, exp *big.Int) (*big.Int, error) {
	if base.Cmp(MinPowBase) < 0 {
		return nil, ErrPowBaseLow
	}
	if base.Cmp(MaxPowBase) > 0 {
		return nil, ErrPowBaseHigh
	}

	whole := Floor(exp)
	remain, err := Sub(exp, whole)
	if err != nil {
		return nil, err
	}
	wholePow := PowI(base, ToInt(whole))
	if remain.Sign() == 0 {
		return wholePow, nil
	}

	partial, err := PowApprox(base, remain, PowPrecision)
	if err != nil {
		return nil, err
	}
	return Mul(wholePow, partial), nil
}

// PowApprox sums the binomial series of base^exp until a term drops below
// precision. exp must be < BONE.
func PowApprox(base, exp, precision *big.Int) (*big.Int, error) {
	a := exp
	x, xneg := SubSign(base, bone)
	term := Bone()
	sum := Bone()
	negative := false

	for i := int64(1); term.Cmp(precision) >= 0; i++ {
		bigK := new(big.Int).Mul(big.NewInt(i), bone)
		kMinusOne := new(big.Int).Sub(bigK, bone)
		c, cneg := SubSign(a, kMinusOne)

		var err error
		term = Mul(term, Mul(c, x))
		term, err = Div(term, bigK)
		if err != nil {
			return nil, err
		}
		if term.Sign() == 0 {
			break
		}

		if xneg {
			negative = !negative
		}
		if cneg {
			negative = !negative
		}
		if negative {
			sum, err = Sub(sum, term)
			if err != nil {
				return nil, err
			}
		} else {
			sum = Add(sum, term)
		}
	}
	return sum, nil
}

// calc chains fixed-point operations and keeps the first error.
type calc struct {
	err error
}

func (c *calc) sub(a, b *big.Int) *big.Int {
	if c.err != nil {
		return new(big.Int)
	}
	v, err := Sub(a, b)
	if err != nil {
		c.err = err
		return new(big.Int)
	}
	return v
}

func (c *calc) div(a, b *big.Int) *big.Int {
	if c.err != nil {
		return new(big.Int)
	}
	v, err := Div(a, b)
	if err != nil {
		c.err = err
		return new(big.Int)
	}
	return v
}

func (c *calc) pow(base, exp *big.Int) *big.Int {
	if c.err != nil {
		return new(big.Int)
	}
	v, err := Pow(base, exp)
	if err != nil {
		c.err = err
		return new(big.Int)
	}
	return v
}
