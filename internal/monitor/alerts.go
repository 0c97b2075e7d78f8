// internal/monitor/alerts.go
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/vault"
)

// AlertType represents different types of alerts
type AlertType string

const (
	AlertTypeSharePriceDrop AlertType = "share_price_drop"
	AlertTypeLossLimit      AlertType = "loss_limit"
	AlertTypeVolume         AlertType = "volume"
)

// Alert represents a triggered alert
type Alert struct {
	Type      AlertType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"` // "info", "warning", "critical"
	Value     math.Int  `json:"value"`
	Threshold float64   `json:"threshold,omitempty"`
}

// AlertConfig holds alert thresholds. A zero threshold disables its alert.
type AlertConfig struct {
	// Share price drop below the observed peak, in percent.
	SharePriceDropPercent float64
	// Single PnL loss relative to total assets before it, in percent.
	LossLimitPercent float64
	// Stablecoin moved by one curve trade, raw units.
	TradeVolume math.Int
	// Minimum gap between two alerts of the same type and source.
	Cooldown time.Duration
}

// DefaultAlertConfig returns default alert configuration
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		SharePriceDropPercent: 5.0,
		LossLimitPercent:      10.0,
		TradeVolume:           math.ZeroInt(),
		Cooldown:              5 * time.Minute,
	}
}

// AlertHandler is called when an alert is triggered
type AlertHandler func(alert Alert)

// AlertManager watches committed vault and curve events for conditions an
// operator should look at.
type AlertManager struct {
	mu     sync.RWMutex
	config AlertConfig
	logger *zap.Logger
	now    func() time.Time

	peakSharePrice math.Int
	alerts         []Alert
	maxAlerts      int
	lastAlert      map[string]time.Time // type/source -> last alert time
	handlers       []AlertHandler
}

// NewAlertManager creates a new alert manager
func NewAlertManager(config AlertConfig, logger *zap.Logger) *AlertManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TradeVolume.IsNil() {
		config.TradeVolume = math.ZeroInt()
	}
	return &AlertManager{
		config:         config,
		logger:         logger.Named("alerts"),
		now:            time.Now,
		peakSharePrice: math.ZeroInt(),
		alerts:         make([]Alert, 0, 16),
		maxAlerts:      1000,
		lastAlert:      make(map[string]time.Time),
	}
}

// AddHandler adds an alert handler. Handlers run on the caller's goroutine.
func (am *AlertManager) AddHandler(handler AlertHandler) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.handlers = append(am.handlers, handler)
}

// Attach subscribes the manager to every event on bus.
func (am *AlertManager) Attach(bus *events.Bus) events.Subscription {
	return bus.SubscribeFunc(events.Any, func(_ context.Context, e events.Event) error {
		am.Check(e)
		return nil
	})
}

// Check evaluates one event and returns the alerts it triggered.
func (am *AlertManager) Check(e events.Event) []Alert {
	var triggered []Alert
	switch ev := e.(type) {
	case *events.DepositEvent:
		triggered = am.checkSharePrice(ev.After)
	case *events.RedeemEvent:
		triggered = am.checkSharePrice(ev.After)
	case *events.FundsMovedEvent:
		triggered = am.checkSharePrice(ev.After)
	case *events.PnLReportedEvent:
		triggered = am.checkLoss(ev)
		triggered = append(triggered, am.checkSharePrice(ev.After)...)
	case *events.TradeEvent:
		triggered = am.checkTrade(ev)
	}

	am.mu.RLock()
	handlers := am.handlers
	am.mu.RUnlock()
	for _, a := range triggered {
		for _, handler := range handlers {
			handler(a)
		}
	}
	return triggered
}

// ObserveVault seeds or updates the share price peak from a vault summary.
func (am *AlertManager) ObserveVault(s events.VaultSnapshot) []Alert {
	return am.checkSharePrice(s)
}

func (am *AlertManager) checkSharePrice(s events.VaultSnapshot) []Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	price := vault.SharePriceAt(s)
	if price.GT(am.peakSharePrice) {
		am.peakSharePrice = price
		return nil
	}
	if am.config.SharePriceDropPercent <= 0 {
		return nil
	}
	drop := percent(am.peakSharePrice.Sub(price), am.peakSharePrice)
	if drop < am.config.SharePriceDropPercent {
		return nil
	}
	return am.trigger(Alert{
		Type:      AlertTypeSharePriceDrop,
		Source:    "vault",
		Message:   fmt.Sprintf("Share price %s is %.2f%% below peak %s", fixedpoint.Format(price), drop, fixedpoint.Format(am.peakSharePrice)),
		Severity:  "warning",
		Value:     price,
		Threshold: am.config.SharePriceDropPercent,
	})
}

func (am *AlertManager) checkLoss(ev *events.PnLReportedEvent) []Alert {
	if am.config.LossLimitPercent <= 0 || !ev.Delta.IsNegative() {
		return nil
	}
	loss := ev.Delta.Abs()
	before := ev.After.TotalAssets.Add(loss)
	pct := percent(loss, before)
	if pct < am.config.LossLimitPercent {
		return nil
	}

	am.mu.Lock()
	defer am.mu.Unlock()
	return am.trigger(Alert{
		Type:      AlertTypeLossLimit,
		Source:    string(ev.Operator),
		Message:   fmt.Sprintf("Reported loss %s is %.2f%% of total assets", fixedpoint.Format(loss), pct),
		Severity:  "critical",
		Value:     loss,
		Threshold: am.config.LossLimitPercent,
	})
}

func (am *AlertManager) checkTrade(ev *events.TradeEvent) []Alert {
	if !am.config.TradeVolume.IsPositive() || ev.Stable.LT(am.config.TradeVolume) {
		return nil
	}
	action := "buy"
	if ev.Type() == events.CurveSell {
		action = "sell"
	}

	am.mu.Lock()
	defer am.mu.Unlock()
	return am.trigger(Alert{
		Type:     AlertTypeVolume,
		Source:   string(ev.Trader),
		Message:  fmt.Sprintf("Large %s by %s: %s stable", action, ev.Trader, fixedpoint.Format(ev.Stable)),
		Severity: "info",
		Value:    ev.Stable,
	})
}

// trigger records alert unless its type/source is cooling down. Caller holds mu.
func (am *AlertManager) trigger(alert Alert) []Alert {
	now := am.now()
	key := string(alert.Type) + "/" + alert.Source
	if last, ok := am.lastAlert[key]; ok && now.Sub(last) < am.config.Cooldown {
		return nil
	}
	am.lastAlert[key] = now
	alert.Timestamp = now

	if len(am.alerts) >= am.maxAlerts {
		am.alerts = am.alerts[1:]
	}
	am.alerts = append(am.alerts, alert)

	fields := []zap.Field{
		zap.String("type", string(alert.Type)),
		zap.String("source", alert.Source),
		zap.String("message", alert.Message),
	}
	switch alert.Severity {
	case "critical":
		am.logger.Error("Alert triggered", fields...)
	case "warning":
		am.logger.Warn("Alert triggered", fields...)
	default:
		am.logger.Info("Alert triggered", fields...)
	}
	return []Alert{alert}
}

// GetRecentAlerts returns up to limit of the most recent alerts, oldest first.
func (am *AlertManager) GetRecentAlerts(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.alerts) {
		limit = len(am.alerts)
	}
	result := make([]Alert, limit)
	copy(result, am.alerts[len(am.alerts)-limit:])
	return result
}

// percent returns part/whole*100 with basis point precision.
func percent(part, whole math.Int) float64 {
	if !whole.IsPositive() {
		return 0
	}
	bps := fixedpoint.MulDiv(part, math.NewInt(10_000), whole)
	if !bps.IsInt64() {
		return 100
	}
	return float64(bps.Int64()) / 100
}
