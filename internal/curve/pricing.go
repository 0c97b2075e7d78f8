// internal/curve/pricing.go
package curve

import (
	"fmt"
	"math/big"

	"cosmossdk.io/math"

	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// MaxSlope is the steepest accepted slope, one thousand stablecoin per whole
// token per whole token issued. With it the integral over the full supply
// range, Slope*MaxAmount^2/(2*Scale^2) + Base*MaxAmount/Scale, stays well
// below math.Int's 256-bit ceiling.
var MaxSlope = math.NewInt(fixedpoint.Scale * fixedpoint.Scale / 1000)

var (
	bigScale    = big.NewInt(fixedpoint.Scale)
	bigTwoScale = big.NewInt(2 * fixedpoint.Scale)
	// 2 * Scale^2, the common denominator of the cost integral.
	bigCostDen = new(big.Int).Mul(bigTwoScale, bigScale)
)

// Params define the affine price P(s) = BasePrice + Slope*s, both in raw
// stablecoin units per whole token, s in whole tokens.
type Params struct {
	BasePrice math.Int `json:"base_price"`
	Slope     math.Int `json:"slope"`
}

// Validate requires a strictly positive base price and slope.
func (p Params) Validate() error {
	if p.BasePrice.IsNil() || !p.BasePrice.IsPositive() {
		return fmt.Errorf("%w: base price must be positive", types.ErrInvalidCurveParameters)
	}
	if p.Slope.IsNil() || !p.Slope.IsPositive() {
		return fmt.Errorf("%w: slope must be positive", types.ErrInvalidCurveParameters)
	}
	if p.BasePrice.GT(fixedpoint.MaxAmount) {
		return fmt.Errorf("%w: base price exceeds %s", types.ErrInvalidCurveParameters, fixedpoint.MaxAmount)
	}
	if p.Slope.GT(MaxSlope) {
		return fmt.Errorf("%w: slope exceeds %s", types.ErrInvalidCurveParameters, MaxSlope)
	}
	return nil
}

// PriceAt returns the marginal price at raw supply s, floor(Base + Slope*s/Scale).
func (p Params) PriceAt(s math.Int) math.Int {
	return p.BasePrice.Add(fixedpoint.MulDiv(p.Slope, s, fixedpoint.One))
}

// Moves reports whether moving supply between s0 and s1 changes the quoted
// price. Prices are floored to raw units, so with Slope < Scale a trade of
// fewer than Scale/Slope raw tokens can leave it unchanged.
func (p Params) Moves(s0, s1 math.Int) bool {
	return !p.PriceAt(s0).Equal(p.PriceAt(s1))
}

// Cost returns floor of the exact integral of the price from s0 to s1 (s1 >= s0):
//
//	(2*Scale*Base*(s1-s0) + Slope*(s1^2 - s0^2)) / (2*Scale^2)
//
// with the numerator built exactly and divided once.
func (p Params) Cost(s0, s1 math.Int) math.Int {
	num := p.costNumerator(s0.BigInt(), s1.BigInt())
	return math.NewIntFromBigInt(num.Quo(num, bigCostDen))
}

// CostUp is Cost rounded up instead of down.
func (p Params) CostUp(s0, s1 math.Int) math.Int {
	num := p.costNumerator(s0.BigInt(), s1.BigInt())
	q, r := num.QuoRem(num, bigCostDen, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return math.NewIntFromBigInt(q)
}

func (p Params) costNumerator(s0, s1 *big.Int) *big.Int {
	delta := new(big.Int).Sub(s1, s0)
	linear := new(big.Int).Mul(bigTwoScale, p.BasePrice.BigInt())
	linear.Mul(linear, delta)

	// s1^2 - s0^2 == (s1 - s0) * (s1 + s0)
	quad := new(big.Int).Add(s1, s0)
	quad.Mul(quad, delta)
	quad.Mul(quad, p.Slope.BigInt())

	return linear.Add(linear, quad)
}

// TokensFor returns the largest raw token count t such that the exact cost of
// moving supply from s0 to s0+t does not exceed stable. It solves
//
//	Slope*t^2 + 2*b*t - 2*Scale^2*stable <= 0,  b = Scale*Base + Slope*s0
//
// as t = floor((isqrt(b^2 + 2*Slope*Scale^2*stable) - b) / Slope). A zero
// result means the root does not clear the linear term.
func (p Params) TokensFor(s0, stable math.Int) math.Int {
	slope := p.Slope.BigInt()

	b := new(big.Int).Mul(bigScale, p.BasePrice.BigInt())
	b.Add(b, new(big.Int).Mul(slope, s0.BigInt()))

	disc := new(big.Int).Mul(b, b)
	term := new(big.Int).Mul(bigCostDen, slope)
	term.Mul(term, stable.BigInt())
	disc.Add(disc, term)

	root := fixedpoint.Sqrt(disc)
	if root.Cmp(b) <= 0 {
		return math.ZeroInt()
	}
	t := root.Sub(root, b)
	return math.NewIntFromBigInt(t.Quo(t, slope))
}
