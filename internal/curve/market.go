// internal/curve/market.go
package curve

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/guard"
	"github.com/rovshanmuradov/lpvault/internal/token"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// DefaultSymbol is the curve token ticker used when none is configured.
const DefaultSymbol = "CRV"

// Config identifies the market account and its pricing.
type Config struct {
	Address types.Address
	Symbol  string
	Params  Params
}

// Market mints and burns the curve token against the stablecoin.
// totalIssued is the token supply; reserve is the stablecoin backing it.
type Market struct {
	section *guard.Section
	cfg     Config
	stable  *token.Token
	tokens  *token.Token
	reserve math.Int
	events  events.Publisher
	logger  *zap.Logger
}

// State is the persisted form of the market.
type State struct {
	Tokens         token.State `json:"tokens"`
	ReserveBalance math.Int    `json:"reserve_balance"`
}

// BuyResult describes a completed buy.
type BuyResult struct {
	Tokens math.Int
	Cost   math.Int
}

// SellResult describes a completed sell.
type SellResult struct {
	Tokens   math.Int
	Proceeds math.Int
}

// New creates a market with zero supply and zero reserve.
func New(cfg Config, stable *token.Token, publisher events.Publisher, logger *zap.Logger) (*Market, error) {
	if cfg.Address.IsZero() {
		return nil, fmt.Errorf("market address: %w", types.ErrZeroAddress)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultSymbol
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Market{
		section: guard.New("curve"),
		cfg:     cfg,
		stable:  stable,
		tokens:  token.New(cfg.Symbol, cfg.Address, logger),
		reserve: math.ZeroInt(),
		events:  publisher,
		logger:  logger.Named("curve"),
	}, nil
}

// Restore rebuilds a market from persisted state. The reserve must cover the
// exact integral of the curve over the restored supply.
func Restore(cfg Config, stable *token.Token, st State, publisher events.Publisher, logger *zap.Logger) (*Market, error) {
	m, err := New(cfg, stable, publisher, logger)
	if err != nil {
		return nil, err
	}
	st.Tokens.Symbol = m.cfg.Symbol
	st.Tokens.Minter = cfg.Address
	tokens, err := token.Restore(st.Tokens, logger)
	if err != nil {
		return nil, err
	}
	reserve := st.ReserveBalance
	if reserve.IsNil() {
		reserve = math.ZeroInt()
	}
	if required := cfg.Params.Cost(math.ZeroInt(), tokens.TotalSupply()); reserve.LT(required) {
		return nil, fmt.Errorf("curve snapshot: reserve %s below curve integral %s", reserve, required)
	}
	m.tokens = tokens
	m.reserve = reserve
	return m, nil
}

// Snapshot returns the market's persisted form.
func (m *Market) Snapshot() State {
	var st State
	m.section.Do(func() {
		st = State{Tokens: m.tokens.Snapshot(), ReserveBalance: m.reserve}
	})
	return st
}

// Address returns the market account.
func (m *Market) Address() types.Address { return m.cfg.Address }

// Params returns the pricing parameters.
func (m *Market) Params() Params { return m.cfg.Params }

// Tokens exposes the curve token ledger.
func (m *Market) Tokens() *token.Token { return m.tokens }

// Buy spends at most stableIn of caller's stablecoin (pre-approved to the
// market) on as many whole raw tokens as it covers. Only the exact rounded-up
// integral cost of the minted tokens is pulled. minTokensOut of zero disables
// the slippage check.
func (m *Market) Buy(ctx context.Context, caller types.Address, stableIn, minTokensOut math.Int) (BuyResult, error) {
	if err := checkPositive(stableIn); err != nil {
		return BuyResult{}, fmt.Errorf("buy: %w", err)
	}
	if caller.IsZero() {
		return BuyResult{}, fmt.Errorf("buy: %w", types.ErrZeroAddress)
	}

	ctx, release, err := m.section.Enter(ctx)
	if err != nil {
		return BuyResult{}, fmt.Errorf("buy: %w", err)
	}
	defer release()

	supply := m.tokens.TotalSupply()
	minted := m.cfg.Params.TokensFor(supply, stableIn)
	if minted.IsZero() {
		return BuyResult{}, fmt.Errorf("buy: %w: %s stable buys no tokens at supply %s",
			types.ErrZeroAmount, stableIn, supply)
	}
	next := supply.Add(minted)
	if next.GT(fixedpoint.MaxAmount) {
		return BuyResult{}, fmt.Errorf("buy: %w: supply would exceed %s", types.ErrAmountOverflow, fixedpoint.MaxAmount)
	}
	if !m.cfg.Params.Moves(supply, next) {
		return BuyResult{}, fmt.Errorf("buy: %w: %s tokens leave the price at %s",
			types.ErrZeroAmount, minted, m.cfg.Params.PriceAt(supply))
	}
	if minTokensOut.IsPositive() && minted.LT(minTokensOut) {
		return BuyResult{}, fmt.Errorf("buy: %w", &types.SlippageError{
			Operation: "buy", Expected: minted, Minimum: minTokensOut,
		})
	}
	cost := m.cfg.Params.CostUp(supply, next)

	if err := m.stable.TransferFrom(ctx, m.cfg.Address, caller, m.cfg.Address, cost); err != nil {
		return BuyResult{}, fmt.Errorf("buy: %w", err)
	}
	if err := m.tokens.Mint(ctx, m.cfg.Address, caller, minted); err != nil {
		if rbErr := m.stable.Transfer(ctx, m.cfg.Address, caller, cost); rbErr != nil {
			m.logger.Error("Failed to roll back buy payment", zap.Error(rbErr))
		}
		return BuyResult{}, fmt.Errorf("buy: %w", err)
	}
	m.reserve = m.reserve.Add(cost)

	after := m.snapshot()
	m.logger.Info("Buy",
		zap.String("trader", string(caller)),
		zap.String("stable_in", stableIn.String()),
		zap.String("cost", cost.String()),
		zap.String("tokens", minted.String()),
		zap.String("price_after", after.Price.String()))
	m.publish(&events.TradeEvent{
		BaseEvent: events.NewBase(events.CurveBuy),
		Trader:    caller,
		Tokens:    minted,
		Stable:    cost,
		After:     after,
	})
	return BuyResult{Tokens: minted, Cost: cost}, nil
}

// Sell burns tokenAmount of caller's tokens and pays the floor of the exact
// integral over the released supply. minStableOut of zero disables the
// slippage check.
func (m *Market) Sell(ctx context.Context, caller types.Address, tokenAmount, minStableOut math.Int) (SellResult, error) {
	if err := checkPositive(tokenAmount); err != nil {
		return SellResult{}, fmt.Errorf("sell: %w", err)
	}
	if caller.IsZero() {
		return SellResult{}, fmt.Errorf("sell: %w", types.ErrZeroAddress)
	}

	ctx, release, err := m.section.Enter(ctx)
	if err != nil {
		return SellResult{}, fmt.Errorf("sell: %w", err)
	}
	defer release()

	held := m.tokens.BalanceOf(caller)
	if held.LT(tokenAmount) {
		return SellResult{}, fmt.Errorf("sell: %w: %s holds %s, selling %s",
			types.ErrInsufficientTokens, caller, held, tokenAmount)
	}
	supply := m.tokens.TotalSupply()
	if !m.cfg.Params.Moves(supply.Sub(tokenAmount), supply) {
		return SellResult{}, fmt.Errorf("sell: %w: %s tokens leave the price at %s",
			types.ErrZeroAmount, tokenAmount, m.cfg.Params.PriceAt(supply))
	}
	proceeds := m.cfg.Params.Cost(supply.Sub(tokenAmount), supply)
	if proceeds.IsZero() {
		return SellResult{}, fmt.Errorf("sell: %w: %s tokens are worth nothing", types.ErrZeroAmount, tokenAmount)
	}
	if proceeds.GT(m.reserve) {
		return SellResult{}, fmt.Errorf("sell: %w: proceeds %s exceed reserve %s",
			types.ErrInsufficientLiquidity, proceeds, m.reserve)
	}
	if minStableOut.IsPositive() && proceeds.LT(minStableOut) {
		return SellResult{}, fmt.Errorf("sell: %w", &types.SlippageError{
			Operation: "sell", Expected: proceeds, Minimum: minStableOut,
		})
	}

	if err := m.tokens.Burn(ctx, m.cfg.Address, caller, tokenAmount); err != nil {
		return SellResult{}, fmt.Errorf("sell: %w", err)
	}
	if err := m.stable.Transfer(ctx, m.cfg.Address, caller, proceeds); err != nil {
		if rbErr := m.tokens.Mint(ctx, m.cfg.Address, caller, tokenAmount); rbErr != nil {
			m.logger.Error("Failed to roll back sell burn", zap.Error(rbErr))
		}
		return SellResult{}, fmt.Errorf("sell: %w", err)
	}
	m.reserve = m.reserve.Sub(proceeds)

	after := m.snapshot()
	m.logger.Info("Sell",
		zap.String("trader", string(caller)),
		zap.String("tokens", tokenAmount.String()),
		zap.String("proceeds", proceeds.String()),
		zap.String("price_after", after.Price.String()))
	m.publish(&events.TradeEvent{
		BaseEvent: events.NewBase(events.CurveSell),
		Trader:    caller,
		Tokens:    tokenAmount,
		Stable:    proceeds,
		After:     after,
	})
	return SellResult{Tokens: tokenAmount, Proceeds: proceeds}, nil
}

func (m *Market) publish(e events.Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(e); err != nil {
		m.logger.Warn("Failed to publish event",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}

func (m *Market) snapshot() events.CurveSnapshot {
	supply := m.tokens.TotalSupply()
	return events.CurveSnapshot{
		TotalIssued:    supply,
		ReserveBalance: m.reserve,
		Price:          m.cfg.Params.PriceAt(supply),
	}
}

func checkPositive(a math.Int) error {
	if a.IsNil() || a.IsZero() {
		return types.ErrZeroAmount
	}
	return fixedpoint.CheckAmount(a)
}
