// internal/events/types.go
package events

import (
	"strings"
	"time"

	"cosmossdk.io/math"

	"github.com/rovshanmuradov/lpvault/internal/types"
)

// EventType represents the type of event.
type EventType string

const (
	// Vault events
	VaultDeposit  EventType = "vault.deposit"
	VaultRedeem   EventType = "vault.redeem"
	VaultDeployed EventType = "vault.deployed"
	VaultReturned EventType = "vault.returned"
	VaultPnL      EventType = "vault.pnl"

	// Curve events
	CurveBuy  EventType = "curve.buy"
	CurveSell EventType = "curve.sell"
)

// Engine returns the engine prefix of an event type, "any" for Any.
func (t EventType) Engine() string {
	if t == Any {
		return "any"
	}
	engine, _, _ := strings.Cut(string(t), ".")
	return engine
}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Publisher accepts events for delivery. Engines publish only after an
// operation has committed.
type Publisher interface {
	Publish(event Event) error
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBase stamps an event header with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// VaultSnapshot carries the vault totals right after the operation committed.
type VaultSnapshot struct {
	TotalAssets   math.Int
	TotalShares   math.Int
	ManagedAssets math.Int
	PoolBalance   math.Int
}

// DepositEvent is emitted when stablecoin is exchanged for shares.
type DepositEvent struct {
	BaseEvent
	Caller   types.Address
	Receiver types.Address
	Assets   math.Int
	Shares   math.Int
	After    VaultSnapshot
}

// RedeemEvent is emitted when shares are burned for stablecoin.
type RedeemEvent struct {
	BaseEvent
	Owner    types.Address
	Receiver types.Address
	Shares   math.Int
	Assets   math.Int
	After    VaultSnapshot
}

// FundsMovedEvent is emitted when the operator deploys or returns funds.
type FundsMovedEvent struct {
	BaseEvent
	Operator types.Address
	Amount   math.Int
	After    VaultSnapshot
}

// PnLReportedEvent is emitted when the operator rebases managed assets.
type PnLReportedEvent struct {
	BaseEvent
	Operator types.Address
	Delta    math.Int
	After    VaultSnapshot
}

// CurveSnapshot carries the market state right after the operation committed.
type CurveSnapshot struct {
	TotalIssued    math.Int
	ReserveBalance math.Int
	Price          math.Int
}

// TradeEvent is emitted for bonding curve buys and sells.
type TradeEvent struct {
	BaseEvent
	Trader types.Address
	Tokens math.Int
	Stable math.Int
	After  CurveSnapshot
}
