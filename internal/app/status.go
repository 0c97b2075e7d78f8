// internal/app/status.go
package app

import (
	"cosmossdk.io/math"

	"github.com/rovshanmuradov/lpvault/internal/curve"
	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// Status is a read-only view of both engines and, optionally, one holder.
type Status struct {
	StableSymbol string
	CurveSymbol  string

	Vault      events.VaultSnapshot
	SharePrice math.Int

	Curve   events.CurveSnapshot
	Params  curve.Params
	Surplus math.Int

	Holder *HolderStatus
}

// HolderStatus lists one account's balances and their current redemption value.
type HolderStatus struct {
	Address     types.Address
	Stable      math.Int
	Shares      math.Int
	ShareValue  math.Int
	CurveTokens math.Int
	CurveValue  math.Int
}

// Status reads the current state. holder may be the zero address.
func (s *Service) Status(holder types.Address) Status {
	st := Status{
		StableSymbol: s.stable.Symbol(),
		CurveSymbol:  s.market.Tokens().Symbol(),
		Vault:        s.vault.Summary(),
		SharePrice:   s.vault.SharePrice(),
		Curve:        s.market.Summary(),
		Params:       s.market.Params(),
		Surplus:      s.market.Surplus(),
	}
	if holder.IsZero() {
		return st
	}

	h := &HolderStatus{
		Address:     holder,
		Stable:      s.stable.BalanceOf(holder),
		Shares:      s.vault.SharesOf(holder),
		CurveTokens: s.market.BalanceOf(holder),
	}
	h.ShareValue = s.vault.ConvertToAssets(h.Shares)
	h.CurveValue = math.ZeroInt()
	if h.CurveTokens.IsPositive() {
		if v, err := s.market.GetSellReturn(h.CurveTokens); err == nil {
			h.CurveValue = v
		}
	}
	st.Holder = h
	return st
}
