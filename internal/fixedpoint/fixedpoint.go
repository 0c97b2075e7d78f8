// Package fixedpoint holds the 10⁻⁶ scaled integer arithmetic shared by the
// vault and the bonding curve. Every helper returns the exact floor (or, where
// named, ceiling) of the rational result; intermediate products are computed on
// unbounded integers so nothing is truncated before the final division.
package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"cosmossdk.io/math"

	"github.com/rovshanmuradov/lpvault/internal/types"
)

const (
	// Decimals is the number of fractional digits of one accounting unit.
	Decimals = 6
	// Scale is the raw value of one whole unit.
	Scale = 1_000_000
)

var (
	// One is Scale as a math.Int.
	One = math.NewInt(Scale)

	// MaxAmount bounds every externally supplied amount (2^128 - 1) so that
	// products of two amounts stay far below math.Int's 256-bit ceiling.
	MaxAmount = math.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)))
)

// CheckAmount rejects negative amounts and amounts above MaxAmount.
func CheckAmount(a math.Int) error {
	if a.IsNil() || a.IsNegative() {
		return fmt.Errorf("%w: negative or unset amount", types.ErrAmountOverflow)
	}
	if a.GT(MaxAmount) {
		return fmt.Errorf("%w: %s exceeds %s", types.ErrAmountOverflow, a, MaxAmount)
	}
	return nil
}

// MulDiv returns floor(a*b/d) for non-negative a, b and positive d.
func MulDiv(a, b, d math.Int) math.Int {
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return math.NewIntFromBigInt(num.Quo(num, d.BigInt()))
}

// MulDivUp returns ceil(a*b/d) for non-negative a, b and positive d.
func MulDivUp(a, b, d math.Int) math.Int {
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	q, r := new(big.Int).QuoRem(num, d.BigInt(), new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return math.NewIntFromBigInt(q)
}

// Sqrt returns floor(sqrt(x)) for a non-negative x.
func Sqrt(x *big.Int) *big.Int {
	if x.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sqrt(x)
}

// Parse converts decimal text such as "12.5" into raw units (12500000).
// At most Decimals fractional digits are accepted; a leading '-' is only
// allowed when signed is true.
func Parse(s string, signed bool) (math.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.Int{}, fmt.Errorf("empty amount")
	}
	neg := false
	switch s[0] {
	case '-':
		if !signed {
			return math.Int{}, fmt.Errorf("amount %q must not be negative", s)
		}
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return math.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > Decimals {
		return math.Int{}, fmt.Errorf("amount %q has more than %d decimals", s, Decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", Decimals-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return math.Int{}, fmt.Errorf("invalid amount %q", s)
		}
	}

	raw, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	if raw.Cmp(MaxAmount.BigInt()) > 0 {
		return math.Int{}, fmt.Errorf("%w: %q", types.ErrAmountOverflow, s)
	}
	if neg {
		raw.Neg(raw)
	}
	return math.NewIntFromBigInt(raw), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) math.Int {
	v, err := Parse(s, true)
	if err != nil {
		panic(err)
	}
	return v
}

// Format renders raw units as decimal text with trailing zeros trimmed.
func Format(raw math.Int) string {
	if raw.IsNil() {
		return "0"
	}
	abs := raw.BigInt()
	sign := ""
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	q, r := new(big.Int).QuoRem(abs, big.NewInt(Scale), new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	frac := r.String()
	frac = strings.Repeat("0", Decimals-len(frac)) + frac
	return sign + q.String() + "." + strings.TrimRight(frac, "0")
}
