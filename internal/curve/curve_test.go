package curve

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/token"
	"github.com/rovshanmuradov/lpvault/internal/types"
	"github.com/rovshanmuradov/lpvault/internal/vault"
)

const (
	issuer types.Address = "issuer"
	market types.Address = "curve"
	alice  types.Address = "alice"
	bob    types.Address = "bob"
)

// defaultParams is 0.01 stablecoin base price plus 0.01 per whole token issued.
var defaultParams = Params{BasePrice: math.NewInt(10_000), Slope: math.NewInt(10_000)}

type fixture struct {
	stable *token.Token
	market *Market
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	stable := token.New("USD", issuer, logger)
	m, err := New(Config{Address: market, Params: params}, stable, nil, logger)
	require.NoError(t, err)
	return &fixture{stable: stable, market: m}
}

func (f *fixture) fund(t *testing.T, holder types.Address, raw int64) {
	t.Helper()
	require.NoError(t, f.stable.Mint(context.Background(), issuer, holder, math.NewInt(raw)))
	require.NoError(t, f.stable.Approve(holder, market, f.stable.BalanceOf(holder)))
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, defaultParams.Validate())

	bad := []Params{
		{BasePrice: math.ZeroInt(), Slope: math.NewInt(1)},
		{BasePrice: math.NewInt(1), Slope: math.ZeroInt()},
		{BasePrice: math.NewInt(-1), Slope: math.NewInt(1)},
		{Slope: math.NewInt(1)},
		{BasePrice: fixedpoint.MaxAmount.AddRaw(1), Slope: math.NewInt(1)},
		{BasePrice: math.NewInt(1), Slope: MaxSlope.AddRaw(1)},
		{BasePrice: math.NewInt(1), Slope: fixedpoint.MaxAmount},
	}
	for _, p := range bad {
		assert.ErrorIs(t, p.Validate(), types.ErrInvalidCurveParameters)
	}

	_, err := New(Config{Address: market, Params: bad[0]}, token.New("USD", issuer, nil), nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidCurveParameters)
}

func TestPricing(t *testing.T) {
	p := defaultParams
	assert.Equal(t, int64(10_000), p.PriceAt(math.ZeroInt()).Int64())
	assert.Equal(t, int64(20_000), p.PriceAt(math.NewInt(1_000_000)).Int64())
	assert.Equal(t, int64(10_000), p.PriceAt(math.NewInt(99)).Int64())

	// One whole token from zero: 0.01 base plus half of 0.01 slope.
	assert.Equal(t, int64(15_000), p.Cost(math.ZeroInt(), math.NewInt(1_000_000)).Int64())
	assert.Equal(t, int64(15_000), p.CostUp(math.ZeroInt(), math.NewInt(1_000_000)).Int64())
	assert.Equal(t, int64(1_000_000), p.TokensFor(math.ZeroInt(), math.NewInt(15_000)).Int64())

	// 99 raw tokens cost 0.99005 raw units exactly.
	assert.Equal(t, int64(0), p.Cost(math.ZeroInt(), math.NewInt(99)).Int64())
	assert.Equal(t, int64(1), p.CostUp(math.ZeroInt(), math.NewInt(99)).Int64())
	assert.Equal(t, int64(99), p.TokensFor(math.ZeroInt(), math.NewInt(1)).Int64())

	// Cost is additive over adjacent ranges up to rounding.
	a := p.Cost(math.ZeroInt(), math.NewInt(400_000))
	b := p.Cost(math.NewInt(400_000), math.NewInt(1_000_000))
	assert.InDelta(t, 15_000, a.Add(b).Int64(), 1)
}

func TestBuyOneWholeTokenCostsExactIntegral(t *testing.T) {
	f := newFixture(t, defaultParams)
	f.fund(t, alice, 15_000)

	res, err := f.market.Buy(context.Background(), alice, math.NewInt(15_000), math.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), res.Tokens.Int64())
	assert.Equal(t, int64(15_000), res.Cost.Int64())
	assert.Equal(t, int64(15_000), f.market.ReserveBalance().Int64())
	assert.Equal(t, int64(15_000), f.stable.BalanceOf(market).Int64())
	assert.True(t, f.market.Surplus().IsZero())
	assert.Equal(t, int64(20_000), f.market.GetPrice().Int64())
}

func TestBuyPullsOnlyTheCost(t *testing.T) {
	f := newFixture(t, defaultParams)
	f.fund(t, alice, 100_000_000)

	res, err := f.market.Buy(context.Background(), alice, math.NewInt(100_000_000), math.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, int64(140_424_891), res.Tokens.Int64())
	assert.Equal(t, int64(99_999_999), res.Cost.Int64())
	assert.Equal(t, int64(1), f.stable.BalanceOf(alice).Int64())
	assert.True(t, f.market.BalanceOf(alice).Equal(res.Tokens))
}

func TestPriceIsMonotonic(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 1_000_000_000)

	assert.True(t, f.market.GetPrice().Equal(defaultParams.BasePrice))

	prev := f.market.GetPrice()
	for i := 0; i < 5; i++ {
		_, err := f.market.Buy(ctx, alice, math.NewInt(50_000_000), math.ZeroInt())
		require.NoError(t, err)
		now := f.market.GetPrice()
		assert.True(t, now.GT(prev), "price %s after buy not above %s", now, prev)
		prev = now
	}

	chunk := f.market.BalanceOf(alice).QuoRaw(5)
	for i := 0; i < 4; i++ {
		_, err := f.market.Sell(ctx, alice, chunk, math.ZeroInt())
		require.NoError(t, err)
		now := f.market.GetPrice()
		assert.True(t, now.LT(prev), "price %s after sell not below %s", now, prev)
		prev = now
	}
}

func TestBuySellRoundTrip(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	const x = 100_000_000
	f.fund(t, alice, x)

	bought, err := f.market.Buy(ctx, alice, math.NewInt(x), math.ZeroInt())
	require.NoError(t, err)

	quote, err := f.market.GetSellReturn(bought.Tokens)
	require.NoError(t, err)

	sold, err := f.market.Sell(ctx, alice, bought.Tokens, math.ZeroInt())
	require.NoError(t, err)
	assert.True(t, quote.Equal(sold.Proceeds))

	y := sold.Proceeds.Int64()
	assert.LessOrEqual(t, y, int64(x))
	assert.GreaterOrEqual(t, y, int64(x)*95/100)

	assert.True(t, f.market.TotalIssued().IsZero())
	assert.True(t, f.market.Surplus().Equal(f.market.ReserveBalance()))
	assert.False(t, f.market.ReserveBalance().IsNegative())
}

func TestSecondEqualBuyMintsFewer(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 200_000_000)

	first, err := f.market.Buy(ctx, alice, math.NewInt(100_000_000), math.ZeroInt())
	require.NoError(t, err)
	second, err := f.market.Buy(ctx, alice, math.NewInt(100_000_000), math.ZeroInt())
	require.NoError(t, err)

	assert.True(t, second.Tokens.LT(first.Tokens))
	assert.Equal(t, int64(58_577_608), second.Tokens.Int64())
}

func TestQuotesMatchTrades(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 30_000_000)
	_, err := f.market.Buy(ctx, alice, math.NewInt(10_000_000), math.ZeroInt())
	require.NoError(t, err)

	q, err := f.market.QuoteBuy(math.NewInt(20_000_000))
	require.NoError(t, err)
	cost, err := f.market.GetBuyCost(q.Tokens)
	require.NoError(t, err)
	assert.True(t, cost.Equal(q.Cost))

	res, err := f.market.Buy(ctx, alice, math.NewInt(20_000_000), math.ZeroInt())
	require.NoError(t, err)
	assert.True(t, res.Tokens.Equal(q.Tokens))
	assert.True(t, res.Cost.Equal(q.Cost))
	assert.True(t, res.Cost.LTE(math.NewInt(20_000_000)))
}

func TestSellRejections(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 15_000)
	_, err := f.market.Buy(ctx, alice, math.NewInt(15_000), math.ZeroInt())
	require.NoError(t, err)

	_, err = f.market.Sell(ctx, alice, math.NewInt(1_000_001), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrInsufficientTokens)

	_, err = f.market.Sell(ctx, bob, math.NewInt(1), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrInsufficientTokens)

	_, err = f.market.Sell(ctx, alice, math.ZeroInt(), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrZeroAmount)

	// A single raw token moves the price but is worth 0.02 raw units and pays nothing.
	_, err = f.market.Sell(ctx, alice, math.NewInt(1), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrZeroAmount)

	_, err = f.market.GetSellReturn(math.NewInt(1_000_001))
	assert.ErrorIs(t, err, types.ErrInsufficientTokens)

	assert.Equal(t, int64(1_000_000), f.market.TotalIssued().Int64())
	assert.Equal(t, int64(15_000), f.market.ReserveBalance().Int64())
}

func TestBuyRejections(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()

	_, err := f.market.Buy(ctx, alice, math.ZeroInt(), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrZeroAmount)

	_, err = f.market.Buy(ctx, types.ZeroAddress, math.NewInt(1), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrZeroAddress)

	// Not approved.
	require.NoError(t, f.stable.Mint(ctx, issuer, bob, math.NewInt(15_000)))
	_, err = f.market.Buy(ctx, bob, math.NewInt(15_000), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrInsufficientAllowance)
	assert.True(t, f.market.TotalIssued().IsZero())

	expensive := newFixture(t, Params{BasePrice: math.NewInt(1_000_000_000), Slope: math.NewInt(1_000_000_000)})
	expensive.fund(t, alice, 1)
	_, err = expensive.market.Buy(ctx, alice, math.NewInt(1), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrZeroAmount)
	_, err = expensive.market.QuoteBuy(math.NewInt(1))
	assert.ErrorIs(t, err, types.ErrZeroAmount)
}

func TestSlippageProtection(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 15_000)

	_, err := f.market.Buy(ctx, alice, math.NewInt(15_000), math.NewInt(1_000_001))
	require.ErrorIs(t, err, types.ErrSlippageExceeded)
	var slip *types.SlippageError
	require.True(t, errors.As(err, &slip))
	assert.Equal(t, "buy", slip.Operation)
	assert.Equal(t, int64(1_000_000), slip.Expected.Int64())
	assert.True(t, f.market.TotalIssued().IsZero())
	assert.Equal(t, int64(15_000), f.stable.BalanceOf(alice).Int64())

	_, err = f.market.Buy(ctx, alice, math.NewInt(15_000), math.NewInt(1_000_000))
	require.NoError(t, err)

	_, err = f.market.Sell(ctx, alice, math.NewInt(1_000_000), math.NewInt(15_001))
	assert.ErrorIs(t, err, types.ErrSlippageExceeded)

	sold, err := f.market.Sell(ctx, alice, math.NewInt(1_000_000), math.NewInt(15_000))
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), sold.Proceeds.Int64())
	assert.True(t, f.market.ReserveBalance().IsZero())
}

func TestReserveCoversIntegralUnderChunkedTrading(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 50_000_000)

	for i := 0; i < 25; i++ {
		_, err := f.market.Buy(ctx, alice, math.NewInt(1_000_003), math.ZeroInt())
		require.NoError(t, err)
	}
	held := f.market.BalanceOf(alice)
	piece := held.QuoRaw(7)
	for i := 0; i < 6; i++ {
		_, err := f.market.Sell(ctx, alice, piece, math.ZeroInt())
		require.NoError(t, err)
	}
	_, err := f.market.Sell(ctx, alice, f.market.BalanceOf(alice), math.ZeroInt())
	require.NoError(t, err)

	assert.True(t, f.market.TotalIssued().IsZero())
	assert.False(t, f.market.ReserveBalance().IsNegative())
	assert.True(t, f.stable.BalanceOf(market).Equal(f.market.ReserveBalance()))
	assert.LessOrEqual(t, f.stable.BalanceOf(alice).Int64(), int64(50_000_000))
}

func TestRestore(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 10_000_000)
	_, err := f.market.Buy(ctx, alice, math.NewInt(10_000_000), math.ZeroInt())
	require.NoError(t, err)

	st := f.market.Snapshot()
	cfg := Config{Address: market, Params: defaultParams}
	restored, err := Restore(cfg, f.stable, st, nil, nil)
	require.NoError(t, err)
	assert.True(t, restored.TotalIssued().Equal(f.market.TotalIssued()))
	assert.True(t, restored.ReserveBalance().Equal(f.market.ReserveBalance()))
	assert.True(t, restored.GetPrice().Equal(f.market.GetPrice()))
	assert.Equal(t, DefaultSymbol, restored.Tokens().Symbol())

	st.ReserveBalance = st.ReserveBalance.QuoRaw(2)
	_, err = Restore(cfg, f.stable, st, nil, nil)
	assert.Error(t, err)
}

func TestSteepestCurveQuotesFullRange(t *testing.T) {
	steep := Params{BasePrice: fixedpoint.MaxAmount, Slope: MaxSlope}
	require.NoError(t, steep.Validate())

	f := newFixture(t, steep)
	cost, err := f.market.GetBuyCost(fixedpoint.MaxAmount)
	require.NoError(t, err)
	assert.True(t, cost.GT(fixedpoint.MaxAmount))
	assert.True(t, cost.Equal(steep.CostUp(math.ZeroInt(), fixedpoint.MaxAmount)))
	assert.True(t, steep.Cost(math.ZeroInt(), fixedpoint.MaxAmount).LTE(cost))

	_, err = f.market.GetBuyCost(fixedpoint.MaxAmount.AddRaw(1))
	assert.ErrorIs(t, err, types.ErrAmountOverflow)
}

func TestDustTradesThatLeaveThePriceAreRejected(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 1)

	// One raw unit buys 99 raw tokens, not enough to lift the floored price.
	assert.True(t, defaultParams.TokensFor(math.ZeroInt(), math.NewInt(1)).Equal(math.NewInt(99)))
	assert.False(t, defaultParams.Moves(math.ZeroInt(), math.NewInt(99)))
	assert.True(t, defaultParams.Moves(math.ZeroInt(), math.NewInt(100)))

	_, err := f.market.Buy(ctx, alice, math.NewInt(1), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrZeroAmount)
	_, err = f.market.QuoteBuy(math.NewInt(1))
	assert.ErrorIs(t, err, types.ErrZeroAmount)
	assert.True(t, f.market.TotalIssued().IsZero())
	assert.Equal(t, int64(1), f.stable.BalanceOf(alice).Int64())

	// Supply 140424891 prices at 1414248; one token less floors to the same price.
	f.fund(t, bob, 100_000_000)
	_, err = f.market.Buy(ctx, bob, math.NewInt(100_000_000), math.ZeroInt())
	require.NoError(t, err)
	require.Equal(t, int64(1_414_248), f.market.GetPrice().Int64())

	_, err = f.market.Sell(ctx, bob, math.NewInt(1), math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrZeroAmount)
	assert.Equal(t, int64(140_424_891), f.market.TotalIssued().Int64())

	_, err = f.market.Sell(ctx, bob, math.NewInt(100), math.ZeroInt())
	require.NoError(t, err)
	assert.Less(t, f.market.GetPrice().Int64(), int64(1_414_248))
}

func TestEveryAcceptedTradeMovesThePrice(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	f.fund(t, alice, 1_000_000)

	accepted := 0
	for in := int64(1); in <= 300; in += 7 {
		before := f.market.GetPrice()
		res, err := f.market.Buy(ctx, alice, math.NewInt(in), math.ZeroInt())
		if err != nil {
			require.ErrorIs(t, err, types.ErrZeroAmount)
			assert.True(t, f.market.GetPrice().Equal(before))
			continue
		}
		accepted++
		assert.True(t, f.market.GetPrice().GT(before), "buy of %s tokens left price at %s", res.Tokens, before)
	}
	assert.Positive(t, accepted)

	for _, n := range []int64{1, 37, 99, 100, 1_234, 50_000} {
		before := f.market.GetPrice()
		_, err := f.market.Sell(ctx, alice, math.NewInt(n), math.ZeroInt())
		if err != nil {
			require.ErrorIs(t, err, types.ErrZeroAmount)
			assert.True(t, f.market.GetPrice().Equal(before))
			continue
		}
		assert.True(t, f.market.GetPrice().LT(before), "sell of %d tokens left price at %s", n, before)
	}
}

func TestQuoteBuyNearSupplyCeiling(t *testing.T) {
	params := Params{BasePrice: math.NewInt(1), Slope: math.NewInt(1)}
	supply := fixedpoint.MaxAmount.SubRaw(1_000)
	st := State{
		Tokens: token.State{
			Supply:   supply,
			Balances: map[types.Address]math.Int{bob: supply},
		},
		ReserveBalance: params.Cost(math.ZeroInt(), supply),
	}
	stable := token.New("USD", issuer, nil)
	m, err := Restore(Config{Address: market, Params: params}, stable, st, nil, nil)
	require.NoError(t, err)

	_, err = m.QuoteBuy(fixedpoint.MaxAmount)
	assert.ErrorIs(t, err, types.ErrAmountOverflow)
	_, err = m.Buy(context.Background(), alice, fixedpoint.MaxAmount, math.ZeroInt())
	assert.ErrorIs(t, err, types.ErrAmountOverflow)
	assert.True(t, m.TotalIssued().Equal(supply))
}

func TestReceiverHookCannotReenterEngines(t *testing.T) {
	f := newFixture(t, defaultParams)
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	v, err := vault.New(vault.Config{Address: "vault", Operator: "operator"}, f.stable, nil, logger)
	require.NoError(t, err)

	f.fund(t, alice, 15_000)
	_, err = f.market.Buy(ctx, alice, math.NewInt(15_000), math.ZeroInt())
	require.NoError(t, err)
	require.NoError(t, f.stable.Mint(ctx, issuer, alice, math.NewInt(1_000_000)))
	require.NoError(t, f.stable.Approve(alice, market, math.NewInt(1_000_000)))
	require.NoError(t, f.stable.Approve(alice, "vault", math.NewInt(1_000_000)))

	var (
		buyErr, depositErr error
		calls              int
		issued             math.Int
	)
	f.stable.SetReceiver(alice, token.ReceiverFunc(func(ctx context.Context, _ string, from types.Address, _ math.Int) {
		if from != market {
			return
		}
		calls++
		issued = f.market.TotalIssued()
		_, buyErr = f.market.Buy(ctx, alice, math.NewInt(15_000), math.ZeroInt())
		_, depositErr = v.Deposit(ctx, alice, math.NewInt(1_000_000), alice)
	}))

	sold, err := f.market.Sell(ctx, alice, math.NewInt(1_000_000), math.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), sold.Proceeds.Int64())

	assert.Equal(t, 1, calls)
	assert.True(t, issued.IsZero(), "hook sees the committed sale")
	assert.ErrorIs(t, buyErr, types.ErrReentrantCall)
	assert.Contains(t, buyErr.Error(), "curve called while curve is in progress")
	assert.ErrorIs(t, depositErr, types.ErrReentrantCall)
	assert.Contains(t, depositErr.Error(), "vault called while curve is in progress")

	assert.True(t, f.market.TotalIssued().IsZero())
	assert.True(t, f.market.ReserveBalance().IsZero())
	assert.True(t, v.TotalShares().IsZero())
	assert.True(t, v.TotalAssets().IsZero())
	assert.Equal(t, int64(1_015_000), f.stable.BalanceOf(alice).Int64())
}
