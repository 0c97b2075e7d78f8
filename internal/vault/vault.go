// internal/vault/vault.go
package vault

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/guard"
	"github.com/rovshanmuradov/lpvault/internal/token"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// VirtualOffset is added to both total shares and total assets in every
// conversion. It keeps a dust first deposit followed by a direct donation from
// collapsing the exchange rate for later depositors.
const VirtualOffset = 1000

var virtualOffset = math.NewInt(VirtualOffset)

// ShareSymbol is the ticker of vault shares.
const ShareSymbol = "vLP"

// Config identifies the vault account and its operator.
type Config struct {
	// Address is the vault's own account on the funding asset.
	Address types.Address
	// Operator is the only identity allowed to deploy, return and report.
	Operator types.Address
}

func (c Config) validate() error {
	if c.Address.IsZero() {
		return fmt.Errorf("vault address: %w", types.ErrZeroAddress)
	}
	if c.Operator.IsZero() {
		return fmt.Errorf("vault operator: %w", types.ErrZeroAddress)
	}
	if c.Address == c.Operator {
		return errors.New("vault operator must differ from the vault address")
	}
	return nil
}

// Vault is the share-based pool. totalShares is the supply of the share token,
// the pool balance is read from the funding asset, and managedAssets tracks
// stablecoin currently held by the operator.
type Vault struct {
	section *guard.Section
	cfg     Config
	asset   *token.Token
	shares  *token.Token
	managed math.Int
	events  events.Publisher
	logger  *zap.Logger
}

// State is the persisted form of the vault's own counters.
type State struct {
	Shares        token.State `json:"shares"`
	ManagedAssets math.Int    `json:"managed_assets"`
}

// New creates an empty vault over the given funding asset.
func New(cfg Config, asset *token.Token, publisher events.Publisher, logger *zap.Logger) (*Vault, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		section: guard.New("vault"),
		cfg:     cfg,
		asset:   asset,
		shares:  token.New(ShareSymbol, cfg.Address, logger),
		managed: math.ZeroInt(),
		events:  publisher,
		logger:  logger.Named("vault"),
	}, nil
}

// Restore rebuilds a vault from persisted state.
func Restore(cfg Config, asset *token.Token, st State, publisher events.Publisher, logger *zap.Logger) (*Vault, error) {
	v, err := New(cfg, asset, publisher, logger)
	if err != nil {
		return nil, err
	}
	if st.Shares.Minter != "" && st.Shares.Minter != cfg.Address {
		return nil, fmt.Errorf("vault snapshot: shares minted by %s, expected %s", st.Shares.Minter, cfg.Address)
	}
	st.Shares.Symbol = ShareSymbol
	st.Shares.Minter = cfg.Address
	shares, err := token.Restore(st.Shares, logger)
	if err != nil {
		return nil, err
	}
	managed := st.ManagedAssets
	if managed.IsNil() {
		managed = math.ZeroInt()
	}
	if managed.IsNegative() {
		return nil, fmt.Errorf("vault snapshot: negative managed assets %s", managed)
	}
	v.shares = shares
	v.managed = managed
	return v, nil
}

// Snapshot returns the vault's persisted form.
func (v *Vault) Snapshot() State {
	var st State
	v.section.Do(func() {
		st = State{Shares: v.shares.Snapshot(), ManagedAssets: v.managed}
	})
	return st
}

// Address returns the vault account.
func (v *Vault) Address() types.Address { return v.cfg.Address }

// Operator returns the operator identity.
func (v *Vault) Operator() types.Address { return v.cfg.Operator }

// Shares exposes the share ledger (transfers between holders are allowed).
func (v *Vault) Shares() *token.Token { return v.shares }

// Deposit pulls assets from caller and mints shares to receiver.
func (v *Vault) Deposit(ctx context.Context, caller types.Address, assets math.Int, receiver types.Address) (math.Int, error) {
	if err := checkPositive(assets); err != nil {
		return math.Int{}, fmt.Errorf("deposit: %w", err)
	}
	if caller.IsZero() || receiver.IsZero() {
		return math.Int{}, fmt.Errorf("deposit: %w", types.ErrZeroAddress)
	}

	ctx, release, err := v.section.Enter(ctx)
	if err != nil {
		return math.Int{}, fmt.Errorf("deposit: %w", err)
	}
	defer release()

	shares := v.convertToShares(assets)
	if shares.IsZero() {
		return math.Int{}, fmt.Errorf("deposit: %w: %s assets convert to zero shares", types.ErrZeroAmount, assets)
	}

	if err := v.asset.TransferFrom(ctx, v.cfg.Address, caller, v.cfg.Address, assets); err != nil {
		return math.Int{}, fmt.Errorf("deposit: %w", err)
	}
	if err := v.shares.Mint(ctx, v.cfg.Address, receiver, shares); err != nil {
		// Unreachable after the checks above; undo the pull so nothing changes.
		v.rollbackPull(ctx, caller, assets)
		return math.Int{}, fmt.Errorf("deposit: %w", err)
	}

	after := v.snapshot()
	v.logger.Info("Deposit",
		zap.String("caller", string(caller)),
		zap.String("receiver", string(receiver)),
		zap.String("assets", assets.String()),
		zap.String("shares", shares.String()),
		zap.String("total_assets", after.TotalAssets.String()))
	v.publish(&events.DepositEvent{
		BaseEvent: events.NewBase(events.VaultDeposit),
		Caller:    caller,
		Receiver:  receiver,
		Assets:    assets,
		Shares:    shares,
		After:     after,
	})
	return shares, nil
}

// Redeem burns caller's shares and sends the corresponding assets to receiver.
// It fails with ErrInsufficientLiquidity when the value is currently deployed
// with the operator rather than held in the pool.
func (v *Vault) Redeem(ctx context.Context, caller types.Address, shares math.Int, receiver types.Address) (math.Int, error) {
	if err := checkPositive(shares); err != nil {
		return math.Int{}, fmt.Errorf("redeem: %w", err)
	}
	if caller.IsZero() || receiver.IsZero() {
		return math.Int{}, fmt.Errorf("redeem: %w", types.ErrZeroAddress)
	}

	ctx, release, err := v.section.Enter(ctx)
	if err != nil {
		return math.Int{}, fmt.Errorf("redeem: %w", err)
	}
	defer release()

	held := v.shares.BalanceOf(caller)
	if held.LT(shares) {
		return math.Int{}, fmt.Errorf("redeem: %w: %s holds %s shares, requested %s",
			types.ErrInsufficientTokens, caller, held, shares)
	}
	assets := v.convertToAssets(shares)
	if assets.IsZero() {
		return math.Int{}, fmt.Errorf("redeem: %w: %s shares convert to zero assets", types.ErrZeroAmount, shares)
	}
	pool := v.asset.BalanceOf(v.cfg.Address)
	if assets.GT(pool) {
		return math.Int{}, fmt.Errorf("redeem: %w: need %s, pool holds %s",
			types.ErrInsufficientLiquidity, assets, pool)
	}

	if err := v.shares.Burn(ctx, v.cfg.Address, caller, shares); err != nil {
		return math.Int{}, fmt.Errorf("redeem: %w", err)
	}
	if err := v.asset.Transfer(ctx, v.cfg.Address, receiver, assets); err != nil {
		v.rollbackBurn(ctx, caller, shares)
		return math.Int{}, fmt.Errorf("redeem: %w", err)
	}

	after := v.snapshot()
	v.logger.Info("Redeem",
		zap.String("owner", string(caller)),
		zap.String("receiver", string(receiver)),
		zap.String("shares", shares.String()),
		zap.String("assets", assets.String()),
		zap.String("total_assets", after.TotalAssets.String()))
	v.publish(&events.RedeemEvent{
		BaseEvent: events.NewBase(events.VaultRedeem),
		Owner:     caller,
		Receiver:  receiver,
		Shares:    shares,
		Assets:    assets,
		After:     after,
	})
	return assets, nil
}

// DeployFunds moves amount from the pool to the operator for off-ledger use.
func (v *Vault) DeployFunds(ctx context.Context, caller types.Address, amount math.Int) error {
	if err := v.authorize("deployFunds", caller); err != nil {
		return err
	}
	if err := checkPositive(amount); err != nil {
		return fmt.Errorf("deployFunds: %w", err)
	}

	ctx, release, err := v.section.Enter(ctx)
	if err != nil {
		return fmt.Errorf("deployFunds: %w", err)
	}
	defer release()

	pool := v.asset.BalanceOf(v.cfg.Address)
	if amount.GT(pool) {
		return fmt.Errorf("deployFunds: %w: requested %s, pool holds %s",
			types.ErrInsufficientLiquidity, amount, pool)
	}
	if err := v.asset.Transfer(ctx, v.cfg.Address, v.cfg.Operator, amount); err != nil {
		return fmt.Errorf("deployFunds: %w", err)
	}
	v.managed = v.managed.Add(amount)

	after := v.snapshot()
	v.logger.Info("Funds deployed",
		zap.String("amount", amount.String()),
		zap.String("managed_assets", after.ManagedAssets.String()),
		zap.String("pool_balance", after.PoolBalance.String()))
	v.publish(&events.FundsMovedEvent{
		BaseEvent: events.NewBase(events.VaultDeployed),
		Operator:  caller,
		Amount:    amount,
		After:     after,
	})
	return nil
}

// ReturnFunds pulls amount back from the operator into the pool. The operator
// must have approved the vault on the funding asset.
func (v *Vault) ReturnFunds(ctx context.Context, caller types.Address, amount math.Int) error {
	if err := v.authorize("returnFunds", caller); err != nil {
		return err
	}
	if err := checkPositive(amount); err != nil {
		return fmt.Errorf("returnFunds: %w", err)
	}

	ctx, release, err := v.section.Enter(ctx)
	if err != nil {
		return fmt.Errorf("returnFunds: %w", err)
	}
	defer release()

	if amount.GT(v.managed) {
		return fmt.Errorf("returnFunds: %w: returning %s, managed %s",
			types.ErrExcessiveReduction, amount, v.managed)
	}
	if err := v.asset.TransferFrom(ctx, v.cfg.Address, v.cfg.Operator, v.cfg.Address, amount); err != nil {
		return fmt.Errorf("returnFunds: %w", err)
	}
	v.managed = v.managed.Sub(amount)

	after := v.snapshot()
	v.logger.Info("Funds returned",
		zap.String("amount", amount.String()),
		zap.String("managed_assets", after.ManagedAssets.String()),
		zap.String("pool_balance", after.PoolBalance.String()))
	v.publish(&events.FundsMovedEvent{
		BaseEvent: events.NewBase(events.VaultReturned),
		Operator:  caller,
		Amount:    amount,
		After:     after,
	})
	return nil
}

// ReportPnL applies a signed trading result to managedAssets, rebasing the
// share price for every holder at once.
func (v *Vault) ReportPnL(ctx context.Context, caller types.Address, delta math.Int) error {
	if err := v.authorize("reportPnL", caller); err != nil {
		return err
	}
	if delta.IsNil() || delta.IsZero() {
		return fmt.Errorf("reportPnL: %w", types.ErrZeroAmount)
	}
	if err := fixedpoint.CheckAmount(delta.Abs()); err != nil {
		return fmt.Errorf("reportPnL: %w", err)
	}

	_, release, err := v.section.Enter(ctx)
	if err != nil {
		return fmt.Errorf("reportPnL: %w", err)
	}
	defer release()

	next := v.managed.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("reportPnL: %w: loss %s exceeds managed %s",
			types.ErrExcessiveReduction, delta.Abs(), v.managed)
	}
	before := v.totalAssets()
	v.managed = next

	after := v.snapshot()
	v.logger.Info("PnL reported",
		zap.String("delta", delta.String()),
		zap.String("total_assets_before", before.String()),
		zap.String("total_assets_after", after.TotalAssets.String()),
		zap.String("managed_assets", after.ManagedAssets.String()))
	v.publish(&events.PnLReportedEvent{
		BaseEvent: events.NewBase(events.VaultPnL),
		Operator:  caller,
		Delta:     delta,
		After:     after,
	})
	return nil
}

func (v *Vault) authorize(op string, caller types.Address) error {
	if caller != v.cfg.Operator {
		v.logger.Warn("Rejected privileged call",
			zap.String("operation", op),
			zap.String("caller", string(caller)))
		return fmt.Errorf("%s by %s: %w", op, caller, types.ErrUnauthorized)
	}
	return nil
}

func (v *Vault) publish(e events.Event) {
	if v.events == nil {
		return
	}
	if err := v.events.Publish(e); err != nil {
		v.logger.Warn("Failed to publish event",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}

// rollbackPull and rollbackBurn restore state after a step that validation
// already ruled out fails anyway. They run with the section held.
func (v *Vault) rollbackPull(ctx context.Context, caller types.Address, assets math.Int) {
	if err := v.asset.Transfer(ctx, v.cfg.Address, caller, assets); err != nil {
		v.logger.Error("Failed to roll back deposit pull", zap.Error(err))
	}
}

func (v *Vault) rollbackBurn(ctx context.Context, caller types.Address, shares math.Int) {
	if err := v.shares.Mint(ctx, v.cfg.Address, caller, shares); err != nil {
		v.logger.Error("Failed to roll back share burn", zap.Error(err))
	}
}

func checkPositive(a math.Int) error {
	if a.IsNil() || a.IsZero() {
		return types.ErrZeroAmount
	}
	return fixedpoint.CheckAmount(a)
}
