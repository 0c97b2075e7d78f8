// Package report renders engine state for the command line.
package report

import (
	"fmt"
	"strings"

	"cosmossdk.io/math"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/lpvault/internal/app"
	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
)

type row struct {
	label string
	value string
}

// Status renders the vault, curve and optional holder sections.
func Status(st app.Status) string {
	sections := []string{
		section("Share Vault", []row{
			{"total assets", amount(st.Vault.TotalAssets, st.StableSymbol)},
			{"pool balance", amount(st.Vault.PoolBalance, st.StableSymbol)},
			{"managed assets", amount(st.Vault.ManagedAssets, st.StableSymbol)},
			{"total shares", fixedpoint.Format(st.Vault.TotalShares)},
			{"share price", amount(st.SharePrice, st.StableSymbol)},
		}),
		section("Bonding Curve", []row{
			{"base price", amount(st.Params.BasePrice, st.StableSymbol)},
			{"slope", amount(st.Params.Slope, st.StableSymbol)},
			{"total issued", amount(st.Curve.TotalIssued, st.CurveSymbol)},
			{"reserve", amount(st.Curve.ReserveBalance, st.StableSymbol)},
			{"price", amount(st.Curve.Price, st.StableSymbol)},
			{"rounding surplus", amount(st.Surplus, st.StableSymbol)},
		}),
	}
	if h := st.Holder; h != nil {
		sections = append(sections, section("Holder "+string(h.Address), []row{
			{"stablecoin", amount(h.Stable, st.StableSymbol)},
			{"shares", fixedpoint.Format(h.Shares)},
			{"share value", amount(h.ShareValue, st.StableSymbol)},
			{"curve tokens", amount(h.CurveTokens, st.CurveSymbol)},
			{"curve value", amount(h.CurveValue, st.StableSymbol)},
		}))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Signed renders a signed amount in gain/loss colours.
func Signed(v math.Int, symbol string) string {
	text := amount(v, symbol)
	switch {
	case v.IsPositive():
		return gainStyle.Render("+" + text)
	case v.IsNegative():
		return lossStyle.Render(text)
	default:
		return valueStyle.Render(text)
	}
}

// Line renders a single "label value" pair.
func Line(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func section(title string, rows []row) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, titleStyle.Render(title))
	for _, r := range rows {
		lines = append(lines, Line(r.label, r.value))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func amount(v math.Int, symbol string) string {
	return fmt.Sprintf("%s %s", fixedpoint.Format(v), symbol)
}
