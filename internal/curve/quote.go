// internal/curve/quote.go
package curve

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// Read paths evaluate the same formulas Buy and Sell use against the current
// state, under the market's section.

// GetPrice returns the marginal price at the current supply.
func (m *Market) GetPrice() math.Int {
	var out math.Int
	m.section.Do(func() { out = m.cfg.Params.PriceAt(m.tokens.TotalSupply()) })
	return out
}

// GetBuyCost returns what buying exactly n raw tokens would pull right now.
func (m *Market) GetBuyCost(n math.Int) (math.Int, error) {
	if err := fixedpoint.CheckAmount(n); err != nil {
		return math.Int{}, err
	}
	var (
		out math.Int
		err error
	)
	m.section.Do(func() {
		supply := m.tokens.TotalSupply()
		next := supply.Add(n)
		if next.GT(fixedpoint.MaxAmount) {
			err = fmt.Errorf("%w: supply would exceed %s", types.ErrAmountOverflow, fixedpoint.MaxAmount)
			return
		}
		out = m.cfg.Params.CostUp(supply, next)
	})
	return out, err
}

// GetSellReturn returns what selling n raw tokens would pay right now.
func (m *Market) GetSellReturn(n math.Int) (math.Int, error) {
	if err := fixedpoint.CheckAmount(n); err != nil {
		return math.Int{}, err
	}
	var (
		out math.Int
		err error
	)
	m.section.Do(func() {
		supply := m.tokens.TotalSupply()
		if n.GT(supply) {
			err = fmt.Errorf("%w: selling %s of %s issued", types.ErrInsufficientTokens, n, supply)
			return
		}
		out = m.cfg.Params.Cost(supply.Sub(n), supply)
	})
	return out, err
}

// QuoteBuy returns what Buy(stableIn) would mint and charge right now.
func (m *Market) QuoteBuy(stableIn math.Int) (BuyResult, error) {
	if err := checkPositive(stableIn); err != nil {
		return BuyResult{}, err
	}
	var (
		res BuyResult
		err error
	)
	m.section.Do(func() {
		supply := m.tokens.TotalSupply()
		minted := m.cfg.Params.TokensFor(supply, stableIn)
		next := supply.Add(minted)
		switch {
		case minted.IsZero():
			err = types.ErrZeroAmount
		case next.GT(fixedpoint.MaxAmount):
			err = fmt.Errorf("%w: supply would exceed %s", types.ErrAmountOverflow, fixedpoint.MaxAmount)
		case !m.cfg.Params.Moves(supply, next):
			err = types.ErrZeroAmount
		default:
			res = BuyResult{Tokens: minted, Cost: m.cfg.Params.CostUp(supply, next)}
		}
	})
	return res, err
}

// TotalIssued returns the outstanding curve token supply.
func (m *Market) TotalIssued() math.Int {
	return m.tokens.TotalSupply()
}

// ReserveBalance returns the stablecoin backing the issued supply.
func (m *Market) ReserveBalance() math.Int {
	var out math.Int
	m.section.Do(func() { out = m.reserve })
	return out
}

// BalanceOf returns the curve tokens held by holder.
func (m *Market) BalanceOf(holder types.Address) math.Int {
	return m.tokens.BalanceOf(holder)
}

// Surplus returns how much the reserve exceeds the floor integral of the
// curve over the issued supply; buy rounding keeps it non-negative.
func (m *Market) Surplus() math.Int {
	var out math.Int
	m.section.Do(func() {
		out = m.reserve.Sub(m.cfg.Params.Cost(math.ZeroInt(), m.tokens.TotalSupply()))
	})
	return out
}

// Summary returns supply, reserve and price read under one lock.
func (m *Market) Summary() events.CurveSnapshot {
	var out events.CurveSnapshot
	m.section.Do(func() { out = m.snapshot() })
	return out
}
