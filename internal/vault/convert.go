// internal/vault/convert.go
package vault

import (
	"cosmossdk.io/math"

	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// Read paths. Each one takes the section so it never observes an operation
// halfway through; none of them may be called from inside a vault operation.

// TotalAssets returns pool balance plus managed assets.
func (v *Vault) TotalAssets() math.Int {
	var out math.Int
	v.section.Do(func() { out = v.totalAssets() })
	return out
}

// AvailableLiquidity returns the stablecoin physically held by the vault.
func (v *Vault) AvailableLiquidity() math.Int {
	return v.asset.BalanceOf(v.cfg.Address)
}

// ManagedAssets returns the stablecoin currently deployed with the operator.
func (v *Vault) ManagedAssets() math.Int {
	var out math.Int
	v.section.Do(func() { out = v.managed })
	return out
}

// TotalShares returns the outstanding share supply.
func (v *Vault) TotalShares() math.Int {
	return v.shares.TotalSupply()
}

// SharesOf returns the shares held by holder.
func (v *Vault) SharesOf(holder types.Address) math.Int {
	return v.shares.BalanceOf(holder)
}

// ConvertToShares returns floor(assets * (totalShares+K) / (totalAssets+K)).
func (v *Vault) ConvertToShares(assets math.Int) math.Int {
	var out math.Int
	v.section.Do(func() { out = v.convertToShares(assets) })
	return out
}

// ConvertToAssets returns floor(shares * (totalAssets+K) / (totalShares+K)).
func (v *Vault) ConvertToAssets(shares math.Int) math.Int {
	var out math.Int
	v.section.Do(func() { out = v.convertToAssets(shares) })
	return out
}

// SharePrice is the asset value of one whole share.
func (v *Vault) SharePrice() math.Int {
	return v.ConvertToAssets(fixedpoint.One)
}

// PreviewDeposit returns the shares Deposit would mint right now.
func (v *Vault) PreviewDeposit(assets math.Int) (math.Int, error) {
	if err := checkPositive(assets); err != nil {
		return math.Int{}, err
	}
	shares := v.ConvertToShares(assets)
	if shares.IsZero() {
		return math.Int{}, types.ErrZeroAmount
	}
	return shares, nil
}

// PreviewRedeem returns the assets Redeem would pay right now, ignoring the
// caller's balance and the pool's liquidity.
func (v *Vault) PreviewRedeem(shares math.Int) (math.Int, error) {
	if err := checkPositive(shares); err != nil {
		return math.Int{}, err
	}
	assets := v.ConvertToAssets(shares)
	if assets.IsZero() {
		return math.Int{}, types.ErrZeroAmount
	}
	return assets, nil
}

// Summary returns all totals read under one lock.
func (v *Vault) Summary() events.VaultSnapshot {
	var out events.VaultSnapshot
	v.section.Do(func() { out = v.snapshot() })
	return out
}

func (v *Vault) totalAssets() math.Int {
	return v.asset.BalanceOf(v.cfg.Address).Add(v.managed)
}

func (v *Vault) convertToShares(assets math.Int) math.Int {
	if assets.IsNil() || !assets.IsPositive() {
		return math.ZeroInt()
	}
	return fixedpoint.MulDiv(assets,
		v.shares.TotalSupply().Add(virtualOffset),
		v.totalAssets().Add(virtualOffset))
}

func (v *Vault) convertToAssets(shares math.Int) math.Int {
	if shares.IsNil() || !shares.IsPositive() {
		return math.ZeroInt()
	}
	return fixedpoint.MulDiv(shares,
		v.totalAssets().Add(virtualOffset),
		v.shares.TotalSupply().Add(virtualOffset))
}

func (v *Vault) snapshot() events.VaultSnapshot {
	pool := v.asset.BalanceOf(v.cfg.Address)
	return events.VaultSnapshot{
		TotalAssets:   pool.Add(v.managed),
		TotalShares:   v.shares.TotalSupply(),
		ManagedAssets: v.managed,
		PoolBalance:   pool,
	}
}

// SharePriceAt is SharePrice evaluated against a published snapshot.
func SharePriceAt(s events.VaultSnapshot) math.Int {
	return fixedpoint.MulDiv(fixedpoint.One, s.TotalAssets.Add(virtualOffset), s.TotalShares.Add(virtualOffset))
}
