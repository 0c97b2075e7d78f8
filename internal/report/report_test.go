package report

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/lpvault/internal/app"
	"github.com/rovshanmuradov/lpvault/internal/curve"
	"github.com/rovshanmuradov/lpvault/internal/events"
)

func TestStatus(t *testing.T) {
	st := app.Status{
		StableSymbol: "USD",
		CurveSymbol:  "CRV",
		Vault: events.VaultSnapshot{
			TotalAssets:   math.NewInt(11_000_000),
			TotalShares:   math.NewInt(10_000_000),
			ManagedAssets: math.NewInt(5_000_000),
			PoolBalance:   math.NewInt(6_000_000),
		},
		SharePrice: math.NewInt(1_099_990),
		Curve: events.CurveSnapshot{
			TotalIssued:    math.NewInt(1_000_000),
			ReserveBalance: math.NewInt(15_000),
			Price:          math.NewInt(20_000),
		},
		Params:  curve.Params{BasePrice: math.NewInt(10_000), Slope: math.NewInt(10_000)},
		Surplus: math.ZeroInt(),
	}

	out := Status(st)
	assert.Contains(t, out, "Share Vault")
	assert.Contains(t, out, "11 USD")
	assert.Contains(t, out, "1.09999 USD")
	assert.Contains(t, out, "0.015 USD")
	assert.NotContains(t, out, "Holder")

	st.Holder = &app.HolderStatus{
		Address:     "alice",
		Stable:      math.NewInt(2_500_000),
		Shares:      math.ZeroInt(),
		ShareValue:  math.ZeroInt(),
		CurveTokens: math.NewInt(1_000_000),
		CurveValue:  math.NewInt(15_000),
	}
	out = Status(st)
	assert.Contains(t, out, "Holder alice")
	assert.Contains(t, out, "2.5 USD")
	assert.Contains(t, out, "1 CRV")
}

func TestSigned(t *testing.T) {
	assert.Contains(t, Signed(math.NewInt(1_500_000), "USD"), "+1.5 USD")
	assert.Contains(t, Signed(math.NewInt(-40_000_000), "USD"), "-40 USD")
	assert.Contains(t, Signed(math.ZeroInt(), "USD"), "0 USD")
}

func TestLine(t *testing.T) {
	out := Line("shares minted", "12.5")
	assert.Contains(t, out, "shares minted")
	assert.Contains(t, out, "12.5")
}
