// internal/types/errors.go
package types

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"
)

// Rejections shared by the vault, the curve market and the token ledger.
// Every one of them is raised before any state is touched.
var (
	ErrZeroAmount            = errors.New("zero amount")
	ErrZeroAddress           = errors.New("zero address")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrExcessiveReduction    = errors.New("excessive reduction")
	ErrInsufficientTokens    = errors.New("insufficient tokens")
	ErrUnauthorized          = errors.New("unauthorized")

	ErrReentrantCall          = errors.New("reentrant call")
	ErrSlippageExceeded       = errors.New("slippage exceeded")
	ErrAmountOverflow         = errors.New("amount overflow")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientAllowance  = errors.New("insufficient allowance")
	ErrInvalidCurveParameters = errors.New("invalid curve parameters")

	// ErrNotPersisted marks an operation that committed in memory but whose
	// snapshot write failed. It is not a rejection: the effects stand and are
	// saved by the next successful write.
	ErrNotPersisted = errors.New("committed but not persisted")
)

// SlippageError reports a trade whose computed output fell below the caller's minimum.
type SlippageError struct {
	Operation string
	Expected  math.Int
	Minimum   math.Int
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("%s: slippage exceeded: output %s below minimum %s",
		e.Operation, e.Expected, e.Minimum)
}

func (e *SlippageError) Unwrap() error {
	return ErrSlippageExceeded
}
