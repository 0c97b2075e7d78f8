package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("deposit: %w", types.ErrZeroAmount), "zero_amount"},
		{types.ErrZeroAddress, "zero_address"},
		{types.ErrInsufficientLiquidity, "insufficient_liquidity"},
		{types.ErrExcessiveReduction, "excessive_reduction"},
		{types.ErrInsufficientTokens, "insufficient_tokens"},
		{types.ErrUnauthorized, "unauthorized"},
		{types.ErrReentrantCall, "reentrant"},
		{&types.SlippageError{Operation: "buy", Expected: math.NewInt(1), Minimum: math.NewInt(2)}, "slippage"},
		{errors.New("disk full"), "error"},
		{fmt.Errorf("vault.deposit: %w: %w", types.ErrNotPersisted, errors.New("disk full")), "not_persisted"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err))
	}
}

func TestRecordOperation(t *testing.T) {
	c := NewCollector()
	c.RecordOperation("vault", "deposit", time.Millisecond, nil)
	c.RecordOperation("vault", "deposit", time.Millisecond, nil)
	c.RecordOperation("vault", "deposit", time.Millisecond, types.ErrZeroAmount)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("vault", "deposit", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("vault", "deposit", "zero_amount")))
}

func TestRecordAlert(t *testing.T) {
	c := NewCollector()
	c.RecordAlert("loss_limit")
	c.RecordAlert("loss_limit")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.alerts.WithLabelValues("loss_limit")))
}

func TestGaugesFollowEvents(t *testing.T) {
	c := NewCollector()
	bus := events.NewBus(zap.NewNop(), 8)
	c.Attach(bus)

	require.NoError(t, bus.Publish(&events.DepositEvent{
		BaseEvent: events.NewBase(events.VaultDeposit),
		After: events.VaultSnapshot{
			TotalAssets:   math.NewInt(2_500_000),
			TotalShares:   math.NewInt(2_000_000),
			ManagedAssets: math.NewInt(500_000),
			PoolBalance:   math.NewInt(2_000_000),
		},
	}))
	require.NoError(t, bus.Publish(&events.TradeEvent{
		BaseEvent: events.NewBase(events.CurveBuy),
		After: events.CurveSnapshot{
			TotalIssued:    math.NewInt(1_000_000),
			ReserveBalance: math.NewInt(15_000),
			Price:          math.NewInt(20_000),
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	assert.Equal(t, 2.5, testutil.ToFloat64(c.vault.WithLabelValues("total_assets")))
	assert.Equal(t, 0.5, testutil.ToFloat64(c.vault.WithLabelValues("managed_assets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.curve.WithLabelValues("total_issued")))
	assert.Equal(t, 0.02, testutil.ToFloat64(c.curve.WithLabelValues("price")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordOperation("curve", "buy", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `lpvault_operations_total{engine="curve",operation="buy",status="ok"} 1`), body)
}
