// internal/token/state.go
package token

import (
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/types"
)

// State is the persisted form of a ledger.
type State struct {
	Symbol     string                                       `json:"symbol"`
	Minter     types.Address                                `json:"minter"`
	Supply     math.Int                                     `json:"supply"`
	Balances   map[types.Address]math.Int                   `json:"balances"`
	Allowances map[types.Address]map[types.Address]math.Int `json:"allowances,omitempty"`
}

// Snapshot copies the ledger.
func (t *Token) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := State{
		Symbol:     t.symbol,
		Minter:     t.minter,
		Supply:     t.supply,
		Balances:   make(map[types.Address]math.Int, len(t.balances)),
		Allowances: make(map[types.Address]map[types.Address]math.Int, len(t.allowances)),
	}
	for addr, b := range t.balances {
		st.Balances[addr] = b
	}
	for owner, spenders := range t.allowances {
		inner := make(map[types.Address]math.Int, len(spenders))
		for spender, a := range spenders {
			if a.IsPositive() {
				inner[spender] = a
			}
		}
		if len(inner) > 0 {
			st.Allowances[owner] = inner
		}
	}
	return st
}

// Restore rebuilds a ledger from a snapshot, checking that balances add up to the supply.
func Restore(st State, logger *zap.Logger) (*Token, error) {
	t := New(st.Symbol, st.Minter, logger)

	sum := math.ZeroInt()
	for addr, b := range st.Balances {
		if b.IsNil() || b.IsNegative() {
			return nil, fmt.Errorf("%s snapshot: invalid balance for %s", st.Symbol, addr)
		}
		if addr.IsZero() {
			return nil, fmt.Errorf("%s snapshot: balance held by %w", st.Symbol, types.ErrZeroAddress)
		}
		t.setBalance(addr, b)
		sum = sum.Add(b)
	}
	supply := st.Supply
	if supply.IsNil() {
		supply = math.ZeroInt()
	}
	if !sum.Equal(supply) {
		return nil, fmt.Errorf("%s snapshot: balances sum to %s but supply is %s", st.Symbol, sum, supply)
	}
	t.supply = supply

	for owner, spenders := range st.Allowances {
		for spender, a := range spenders {
			if a.IsNil() || a.IsNegative() {
				return nil, fmt.Errorf("%s snapshot: invalid allowance %s -> %s", st.Symbol, owner, spender)
			}
			if t.allowances[owner] == nil {
				t.allowances[owner] = make(map[types.Address]math.Int)
			}
			t.allowances[owner][spender] = a
		}
	}
	return t, nil
}
