package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func shutdown(t *testing.T, bus *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))
}

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)

	var (
		mu  sync.Mutex
		got []EventType
	)
	bus.SubscribeFunc(Any, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type())
		return nil
	})

	sequence := []EventType{VaultDeposit, CurveBuy, VaultDeployed, CurveSell, VaultRedeem}
	for _, typ := range sequence {
		require.NoError(t, bus.Publish(&FundsMovedEvent{BaseEvent: NewBase(typ)}))
	}
	shutdown(t, bus)

	assert.Equal(t, sequence, got)
}

func TestTypedSubscription(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	defer shutdown(t, bus)

	var buys []math.Int
	bus.Subscribe(CurveBuy, On(func(_ context.Context, e *TradeEvent) error {
		buys = append(buys, e.Tokens)
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, bus.PublishSync(ctx, &TradeEvent{BaseEvent: NewBase(CurveBuy), Tokens: math.NewInt(7)}))
	require.NoError(t, bus.PublishSync(ctx, &TradeEvent{BaseEvent: NewBase(CurveSell), Tokens: math.NewInt(9)}))
	// A mismatched payload under the subscribed type is ignored.
	require.NoError(t, bus.PublishSync(ctx, &DepositEvent{BaseEvent: NewBase(CurveBuy)}))

	require.Len(t, buys, 1)
	assert.Equal(t, int64(7), buys[0].Int64())
}

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	defer shutdown(t, bus)

	errA := errors.New("a failed")
	bus.SubscribeFunc(VaultPnL, func(context.Context, Event) error { return errA })
	bus.SubscribeFunc(Any, func(context.Context, Event) error { return nil })

	err := bus.PublishSync(context.Background(), &PnLReportedEvent{BaseEvent: NewBase(VaultPnL)})
	assert.ErrorIs(t, err, errA)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	defer shutdown(t, bus)

	calls := 0
	sub := bus.SubscribeFunc(VaultDeposit, func(context.Context, Event) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, bus.Stats().HandlersPerType[VaultDeposit])

	ctx := context.Background()
	require.NoError(t, bus.PublishSync(ctx, &DepositEvent{BaseEvent: NewBase(VaultDeposit)}))
	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(ctx, &DepositEvent{BaseEvent: NewBase(VaultDeposit)}))

	assert.Equal(t, 1, calls)
	assert.NotContains(t, bus.Stats().HandlersPerType, VaultDeposit)
}

func TestPublishAfterShutdown(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	shutdown(t, bus)

	err := bus.Publish(&DepositEvent{BaseEvent: NewBase(VaultDeposit)})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.SubscribeFunc(Any, func(context.Context, Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	// The first event occupies the handler, the second fills the buffer.
	require.NoError(t, bus.Publish(&DepositEvent{BaseEvent: NewBase(VaultDeposit)}))
	<-started
	require.NoError(t, bus.Publish(&DepositEvent{BaseEvent: NewBase(VaultDeposit)}))

	err := bus.Publish(&DepositEvent{BaseEvent: NewBase(VaultDeposit)})
	assert.ErrorIs(t, err, ErrBusFull)
	assert.Equal(t, uint64(1), bus.Stats().Dropped)

	close(release)
	shutdown(t, bus)
}

func TestEventTypeEngine(t *testing.T) {
	cases := map[EventType]string{
		VaultDeposit: "vault",
		VaultPnL:     "vault",
		CurveBuy:     "curve",
		CurveSell:    "curve",
		Any:          "any",
	}
	for typ, want := range cases {
		assert.Equal(t, want, typ.Engine(), string(typ))
	}
}
