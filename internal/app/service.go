// internal/app/service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/config"
	"github.com/rovshanmuradov/lpvault/internal/curve"
	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/journal"
	"github.com/rovshanmuradov/lpvault/internal/logger"
	"github.com/rovshanmuradov/lpvault/internal/metrics"
	"github.com/rovshanmuradov/lpvault/internal/monitor"
	"github.com/rovshanmuradov/lpvault/internal/store"
	"github.com/rovshanmuradov/lpvault/internal/token"
	"github.com/rovshanmuradov/lpvault/internal/types"
	"github.com/rovshanmuradov/lpvault/internal/vault"
)

// Service wires the funding asset, the vault and the curve market to the
// event bus, metrics and snapshot store. Every mutating call persists the
// whole state after the engine commits.
type Service struct {
	mu sync.Mutex

	cfg     *config.Config
	log     *logger.Logger
	logger  *zap.Logger
	bus     *events.Bus
	metrics *metrics.Collector
	store   *store.Store
	journal *journal.Journal
	alerts  *monitor.AlertManager

	issuer types.Address
	stable *token.Token
	vault  *vault.Vault
	market *curve.Market
}

// Open restores the engines from the configured snapshot, or creates them
// empty when none exists.
func Open(cfg *config.Config, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewNop()
	}
	defer log.TrackPerformance("service.open")()
	params, err := cfg.CurveParams()
	if err != nil {
		return nil, err
	}
	volume, err := cfg.TradeVolumeThreshold()
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		log:     log,
		logger:  log.WithComponent("service"),
		metrics: metrics.NewCollector(),
		store:   store.New(cfg.StateFile, cfg.Persist.MaxElapsed, log.Logger),
		issuer:  types.Address(cfg.Issuer),
	}
	s.bus = events.NewBus(log.Logger, cfg.EventBuffer)
	s.metrics.Attach(s.bus)
	s.alerts = monitor.NewAlertManager(monitor.AlertConfig{
		SharePriceDropPercent: cfg.Alerts.SharePriceDropPercent,
		LossLimitPercent:      cfg.Alerts.LossLimitPercent,
		TradeVolume:           volume,
		Cooldown:              cfg.Alerts.Cooldown,
	}, log.Logger)
	s.alerts.AddHandler(func(a monitor.Alert) { s.metrics.RecordAlert(string(a.Type)) })
	s.alerts.Attach(s.bus)
	if cfg.Journal.File != "" {
		j, err := journal.Open(cfg.Journal.File, cfg.Journal.FlushInterval, log.Logger)
		if err != nil {
			s.shutdownBus()
			return nil, err
		}
		s.journal = j
		j.Attach(s.bus)
	}

	vaultCfg := vault.Config{
		Address:  types.Address(cfg.VaultAddress),
		Operator: types.Address(cfg.Operator),
	}
	marketCfg := curve.Config{
		Address: types.Address(cfg.MarketAddress),
		Symbol:  cfg.Curve.Symbol,
		Params:  params,
	}

	snap, err := s.store.Load()
	if err != nil {
		s.shutdownBus()
		return nil, err
	}
	if snap == nil {
		err = s.create(vaultCfg, marketCfg)
	} else {
		err = s.restore(snap, vaultCfg, marketCfg)
	}
	if err != nil {
		s.shutdownBus()
		return nil, err
	}

	s.metrics.ObserveVault(s.vault.Summary())
	s.alerts.ObserveVault(s.vault.Summary())
	s.metrics.ObserveCurve(s.market.Summary())
	s.logger.Info("Service ready",
		zap.String("state_file", cfg.StateFile),
		zap.Bool("restored", snap != nil),
		zap.String("vault_total_assets", s.vault.TotalAssets().String()),
		zap.String("curve_total_issued", s.market.TotalIssued().String()))
	return s, nil
}

func (s *Service) create(vaultCfg vault.Config, marketCfg curve.Config) error {
	s.stable = token.New(s.cfg.StableSymbol, s.issuer, s.log.Logger)

	v, err := vault.New(vaultCfg, s.stable, s.bus, s.log.Logger)
	if err != nil {
		return err
	}
	m, err := curve.New(marketCfg, s.stable, s.bus, s.log.Logger)
	if err != nil {
		return err
	}
	s.vault, s.market = v, m
	return nil
}

func (s *Service) restore(snap *store.Snapshot, vaultCfg vault.Config, marketCfg curve.Config) error {
	if snap.Stable.Minter != s.issuer {
		return fmt.Errorf("snapshot stablecoin issuer %s does not match configured issuer %s",
			snap.Stable.Minter, s.issuer)
	}
	snap.Stable.Symbol = s.cfg.StableSymbol
	stable, err := token.Restore(snap.Stable, s.log.Logger)
	if err != nil {
		return err
	}
	s.stable = stable

	v, err := vault.Restore(vaultCfg, stable, snap.Vault, s.bus, s.log.Logger)
	if err != nil {
		return err
	}
	m, err := curve.Restore(marketCfg, stable, snap.Curve, s.bus, s.log.Logger)
	if err != nil {
		return err
	}
	if held := stable.BalanceOf(marketCfg.Address); held.LT(m.ReserveBalance()) {
		return fmt.Errorf("snapshot: market holds %s stablecoin but reserve is %s", held, m.ReserveBalance())
	}
	s.vault, s.market = v, m
	return nil
}

// Close drains the event bus, then closes the journal so it sees every event.
func (s *Service) Close(ctx context.Context) error {
	err := s.bus.Shutdown(ctx)
	if s.journal != nil {
		err = errors.Join(err, s.journal.Close())
	}
	return err
}

func (s *Service) shutdownBus() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.Close(ctx)
}

// Config returns the configuration the service was opened with.
func (s *Service) Config() *config.Config { return s.cfg }

// Vault returns the share vault.
func (s *Service) Vault() *vault.Vault { return s.vault }

// Market returns the bonding curve market.
func (s *Service) Market() *curve.Market { return s.market }

// Stable returns the funding asset ledger.
func (s *Service) Stable() *token.Token { return s.stable }

// Metrics returns the metrics collector.
func (s *Service) Metrics() *metrics.Collector { return s.metrics }

// Alerts returns the alert manager watching committed operations.
func (s *Service) Alerts() *monitor.AlertManager { return s.alerts }

// Bus returns the event bus.
func (s *Service) Bus() *events.Bus { return s.bus }

// Spender resolves the symbolic spender names accepted by Approve.
func (s *Service) Spender(name string) (types.Address, error) {
	switch name {
	case "vault":
		return s.vault.Address(), nil
	case "curve", "market":
		return s.market.Address(), nil
	default:
		return types.ParseAddress(name)
	}
}

// Fund mints stablecoin to an account. Only the configured issuer may call it;
// it stands in for the external stablecoin when running locally.
func (s *Service) Fund(ctx context.Context, caller, to types.Address, amount math.Int) error {
	return s.run(ctx, "stable", "fund", func(ctx context.Context) error {
		if s.issuer.IsZero() {
			return fmt.Errorf("fund: no issuer configured: %w", types.ErrUnauthorized)
		}
		if amount.IsNil() || amount.IsZero() {
			return fmt.Errorf("fund: %w", types.ErrZeroAmount)
		}
		return s.stable.Mint(ctx, caller, to, amount)
	})
}

// Approve lets spender pull up to amount of owner's stablecoin.
func (s *Service) Approve(ctx context.Context, owner, spender types.Address, amount math.Int) error {
	return s.run(ctx, "stable", "approve", func(context.Context) error {
		return s.stable.Approve(owner, spender, amount)
	})
}

// Transfer moves stablecoin between accounts.
func (s *Service) Transfer(ctx context.Context, from, to types.Address, amount math.Int) error {
	return s.run(ctx, "stable", "transfer", func(ctx context.Context) error {
		return s.stable.Transfer(ctx, from, to, amount)
	})
}

// Deposit runs Vault.Deposit and persists.
func (s *Service) Deposit(ctx context.Context, caller types.Address, assets math.Int, receiver types.Address) (math.Int, error) {
	var shares math.Int
	err := s.run(ctx, "vault", "deposit", func(ctx context.Context) error {
		var err error
		shares, err = s.vault.Deposit(ctx, caller, assets, receiver)
		return err
	})
	return shares, err
}

// Redeem runs Vault.Redeem and persists.
func (s *Service) Redeem(ctx context.Context, caller types.Address, shares math.Int, receiver types.Address) (math.Int, error) {
	var assets math.Int
	err := s.run(ctx, "vault", "redeem", func(ctx context.Context) error {
		var err error
		assets, err = s.vault.Redeem(ctx, caller, shares, receiver)
		return err
	})
	return assets, err
}

// DeployFunds runs Vault.DeployFunds and persists.
func (s *Service) DeployFunds(ctx context.Context, caller types.Address, amount math.Int) error {
	return s.run(ctx, "vault", "deploy", func(ctx context.Context) error {
		return s.vault.DeployFunds(ctx, caller, amount)
	})
}

// ReturnFunds runs Vault.ReturnFunds and persists.
func (s *Service) ReturnFunds(ctx context.Context, caller types.Address, amount math.Int) error {
	return s.run(ctx, "vault", "return", func(ctx context.Context) error {
		return s.vault.ReturnFunds(ctx, caller, amount)
	})
}

// ReportPnL runs Vault.ReportPnL and persists.
func (s *Service) ReportPnL(ctx context.Context, caller types.Address, delta math.Int) error {
	return s.run(ctx, "vault", "report_pnl", func(ctx context.Context) error {
		return s.vault.ReportPnL(ctx, caller, delta)
	})
}

// Buy runs Market.Buy and persists.
func (s *Service) Buy(ctx context.Context, caller types.Address, stableIn, minTokensOut math.Int) (curve.BuyResult, error) {
	var res curve.BuyResult
	err := s.run(ctx, "curve", "buy", func(ctx context.Context) error {
		var err error
		res, err = s.market.Buy(ctx, caller, stableIn, minTokensOut)
		return err
	})
	return res, err
}

// Sell runs Market.Sell and persists.
func (s *Service) Sell(ctx context.Context, caller types.Address, tokenAmount, minStableOut math.Int) (curve.SellResult, error) {
	var res curve.SellResult
	err := s.run(ctx, "curve", "sell", func(ctx context.Context) error {
		var err error
		res, err = s.market.Sell(ctx, caller, tokenAmount, minStableOut)
		return err
	})
	return res, err
}

// run executes one engine call, records metrics and persists on success.
// Calls are serialized so every snapshot is taken between whole operations.
// A failed snapshot write after a commit returns ErrNotPersisted; the
// operation's results are still returned alongside it.
func (s *Service) run(ctx context.Context, engine, operation string, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	opLogger := s.log.WithOperation(engine + "." + operation)

	err := fn(ctx)
	if err == nil {
		if perr := s.persist(ctx); perr != nil {
			// The engine has already committed and published; only the file lags.
			opLogger.Error("Operation committed but snapshot failed", zap.Error(perr))
			err = fmt.Errorf("%s.%s: %w: %w", engine, operation, types.ErrNotPersisted, perr)
		}
	}
	s.metrics.RecordOperation(engine, operation, time.Since(start), err)

	if errors.Is(err, types.ErrNotPersisted) {
		return err
	}
	if err != nil {
		opLogger.Warn("Operation rejected",
			zap.String("reason", metrics.Status(err)),
			zap.Error(err))
		return err
	}
	opLogger.Debug("Operation completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Service) persist(ctx context.Context) error {
	snap := &store.Snapshot{
		Stable: s.stable.Snapshot(),
		Vault:  s.vault.Snapshot(),
		Curve:  s.market.Snapshot(),
	}
	// A cancelled caller context must not leave the file behind the in-memory state.
	return s.store.Save(context.WithoutCancel(ctx), snap)
}

// IsRejection reports whether err is one of the engines' pre-mutation rejections.
func IsRejection(err error) bool {
	if errors.Is(err, types.ErrNotPersisted) {
		return false
	}
	for _, target := range []error{
		types.ErrZeroAmount, types.ErrZeroAddress, types.ErrInsufficientLiquidity,
		types.ErrExcessiveReduction, types.ErrInsufficientTokens, types.ErrUnauthorized,
		types.ErrReentrantCall, types.ErrSlippageExceeded, types.ErrAmountOverflow,
		types.ErrInsufficientBalance, types.ErrInsufficientAllowance,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
