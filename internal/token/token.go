// internal/token/token.go
package token

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/guard"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// Receiver is notified after tokens are credited to a registered address.
// Inside an engine operation the notification is delivered once the engine
// has committed, with the operation's context.
type Receiver interface {
	OnReceive(ctx context.Context, symbol string, from types.Address, amount math.Int)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, symbol string, from types.Address, amount math.Int)

// OnReceive calls f.
func (f ReceiverFunc) OnReceive(ctx context.Context, symbol string, from types.Address, amount math.Int) {
	f(ctx, symbol, from, amount)
}

// Token is a fungible balance ledger with transfer/approve/allowance semantics.
// Only the minter may create or destroy supply.
type Token struct {
	mu         sync.RWMutex
	symbol     string
	minter     types.Address
	supply     math.Int
	balances   map[types.Address]math.Int
	allowances map[types.Address]map[types.Address]math.Int
	receivers  map[types.Address]Receiver
	logger     *zap.Logger
}

// New creates an empty ledger.
func New(symbol string, minter types.Address, logger *zap.Logger) *Token {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Token{
		symbol:     symbol,
		minter:     minter,
		supply:     math.ZeroInt(),
		balances:   make(map[types.Address]math.Int),
		allowances: make(map[types.Address]map[types.Address]math.Int),
		receivers:  make(map[types.Address]Receiver),
		logger:     logger.Named("token").With(zap.String("symbol", symbol)),
	}
}

// Symbol returns the ticker.
func (t *Token) Symbol() string { return t.symbol }

// Minter returns the address allowed to mint and burn.
func (t *Token) Minter() types.Address { return t.minter }

// TotalSupply returns the outstanding supply.
func (t *Token) TotalSupply() math.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}

// BalanceOf returns the balance held by addr.
func (t *Token) BalanceOf(addr types.Address) math.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balanceOf(addr)
}

// Allowance returns how much spender may still pull from owner.
func (t *Token) Allowance(owner, spender types.Address) math.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowanceOf(owner, spender)
}

// SetReceiver registers (or with nil removes) the hook notified on credits to addr.
func (t *Token) SetReceiver(addr types.Address, r Receiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r == nil {
		delete(t.receivers, addr)
		return
	}
	t.receivers[addr] = r
}

// Approve sets the amount spender may pull from owner, replacing any previous value.
func (t *Token) Approve(owner, spender types.Address, amount math.Int) error {
	if owner.IsZero() || spender.IsZero() {
		return fmt.Errorf("%s approve: %w", t.symbol, types.ErrZeroAddress)
	}
	if err := fixedpoint.CheckAmount(amount); err != nil {
		return fmt.Errorf("%s approve: %w", t.symbol, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[types.Address]math.Int)
	}
	t.allowances[owner][spender] = amount
	t.logger.Debug("Allowance set",
		zap.String("owner", string(owner)),
		zap.String("spender", string(spender)),
		zap.String("amount", amount.String()))
	return nil
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(ctx context.Context, from, to types.Address, amount math.Int) error {
	if err := t.validate("transfer", from, to, amount); err != nil {
		return err
	}

	t.mu.Lock()
	if err := t.move(from, to, amount); err != nil {
		t.mu.Unlock()
		return err
	}
	hook := t.receivers[to]
	t.mu.Unlock()

	t.notify(ctx, hook, from, amount)
	return nil
}

// TransferFrom moves amount from owner to another holder on behalf of spender,
// consuming spender's allowance.
func (t *Token) TransferFrom(ctx context.Context, spender, from, to types.Address, amount math.Int) error {
	if spender.IsZero() {
		return fmt.Errorf("%s transferFrom: %w", t.symbol, types.ErrZeroAddress)
	}
	if err := t.validate("transferFrom", from, to, amount); err != nil {
		return err
	}

	t.mu.Lock()
	allowance := t.allowanceOf(from, spender)
	if allowance.LT(amount) {
		t.mu.Unlock()
		return fmt.Errorf("%s transferFrom: %w: %s allowed %s, need %s",
			t.symbol, types.ErrInsufficientAllowance, spender, allowance, amount)
	}
	if err := t.move(from, to, amount); err != nil {
		t.mu.Unlock()
		return err
	}
	if amount.IsPositive() {
		t.allowances[from][spender] = allowance.Sub(amount)
	}
	hook := t.receivers[to]
	t.mu.Unlock()

	t.notify(ctx, hook, from, amount)
	return nil
}

// Mint creates amount new tokens for to. Only the minter may call it.
func (t *Token) Mint(ctx context.Context, caller, to types.Address, amount math.Int) error {
	if caller != t.minter {
		return fmt.Errorf("%s mint by %s: %w", t.symbol, caller, types.ErrUnauthorized)
	}
	if to.IsZero() {
		return fmt.Errorf("%s mint: %w", t.symbol, types.ErrZeroAddress)
	}
	if err := fixedpoint.CheckAmount(amount); err != nil {
		return fmt.Errorf("%s mint: %w", t.symbol, err)
	}

	t.mu.Lock()
	supply := t.supply.Add(amount)
	if supply.GT(fixedpoint.MaxAmount) {
		t.mu.Unlock()
		return fmt.Errorf("%s mint: %w: supply would exceed %s", t.symbol, types.ErrAmountOverflow, fixedpoint.MaxAmount)
	}
	t.supply = supply
	t.setBalance(to, t.balanceOf(to).Add(amount))
	hook := t.receivers[to]
	t.mu.Unlock()

	t.notify(ctx, hook, types.ZeroAddress, amount)
	return nil
}

// Burn destroys amount tokens held by from. Only the minter may call it.
func (t *Token) Burn(_ context.Context, caller, from types.Address, amount math.Int) error {
	if caller != t.minter {
		return fmt.Errorf("%s burn by %s: %w", t.symbol, caller, types.ErrUnauthorized)
	}
	if from.IsZero() {
		return fmt.Errorf("%s burn: %w", t.symbol, types.ErrZeroAddress)
	}
	if err := fixedpoint.CheckAmount(amount); err != nil {
		return fmt.Errorf("%s burn: %w", t.symbol, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	balance := t.balanceOf(from)
	if balance.LT(amount) {
		return fmt.Errorf("%s burn: %w: %s holds %s, need %s",
			t.symbol, types.ErrInsufficientBalance, from, balance, amount)
	}
	t.setBalance(from, balance.Sub(amount))
	t.supply = t.supply.Sub(amount)
	return nil
}

func (t *Token) validate(op string, from, to types.Address, amount math.Int) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%s %s: %w", t.symbol, op, types.ErrZeroAddress)
	}
	if err := fixedpoint.CheckAmount(amount); err != nil {
		return fmt.Errorf("%s %s: %w", t.symbol, op, err)
	}
	return nil
}

// move must be called with t.mu held.
func (t *Token) move(from, to types.Address, amount math.Int) error {
	balance := t.balanceOf(from)
	if balance.LT(amount) {
		return fmt.Errorf("%s transfer: %w: %s holds %s, need %s",
			t.symbol, types.ErrInsufficientBalance, from, balance, amount)
	}
	t.setBalance(from, balance.Sub(amount))
	t.setBalance(to, t.balanceOf(to).Add(amount))
	return nil
}

func (t *Token) notify(ctx context.Context, hook Receiver, from types.Address, amount math.Int) {
	if hook == nil || amount.IsZero() {
		return
	}
	guard.Defer(ctx, func() {
		hook.OnReceive(ctx, t.symbol, from, amount)
	})
}

func (t *Token) balanceOf(addr types.Address) math.Int {
	if b, ok := t.balances[addr]; ok {
		return b
	}
	return math.ZeroInt()
}

func (t *Token) setBalance(addr types.Address, b math.Int) {
	if b.IsZero() {
		delete(t.balances, addr)
		return
	}
	t.balances[addr] = b
}

func (t *Token) allowanceOf(owner, spender types.Address) math.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return a
	}
	return math.ZeroInt()
}
