// =============================================
// File: internal/task/task.go
// =============================================
// Package task loads scripted sequences of engine operations and replays
// them against the service, one after another.
package task

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"

	"github.com/rovshanmuradov/lpvault/internal/types"
)

// OperationType defines the supported operation types
type OperationType string

const (
	OperationFund      OperationType = "fund"
	OperationApprove   OperationType = "approve"
	OperationTransfer  OperationType = "transfer"
	OperationDeposit   OperationType = "deposit"
	OperationRedeem    OperationType = "redeem"
	OperationDeploy    OperationType = "deploy"
	OperationReturn    OperationType = "return"
	OperationReportPnL OperationType = "report_pnl"
	OperationBuy       OperationType = "buy"
	OperationSell      OperationType = "sell"
)

// Task is one scripted operation.
type Task struct {
	ID        int
	TaskName  string
	Account   types.Address // caller
	Operation OperationType
	Amount    math.Int // raw units; signed only for report_pnl
	Target    types.Address // receiver, spender or transfer destination
	MinOut    math.Int      // slippage floor for buy/sell, zero disables
}

func parseOperation(s string) (OperationType, error) {
	op := OperationType(s)
	switch op {
	case OperationFund, OperationApprove, OperationTransfer,
		OperationDeposit, OperationRedeem, OperationDeploy, OperationReturn,
		OperationReportPnL, OperationBuy, OperationSell:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

// needsTarget reports whether the operation requires an explicit target.
func (op OperationType) needsTarget() bool {
	switch op {
	case OperationFund, OperationApprove, OperationTransfer:
		return true
	default:
		return false
	}
}

// Validate checks if the task has valid parameters
func (t *Task) Validate() error {
	if t.TaskName == "" {
		return errors.New("task name cannot be empty")
	}
	if t.Account.IsZero() {
		return fmt.Errorf("task %q: account: %w", t.TaskName, types.ErrZeroAddress)
	}
	if _, err := parseOperation(string(t.Operation)); err != nil {
		return fmt.Errorf("task %q: %w", t.TaskName, err)
	}
	if t.Amount.IsNil() {
		return fmt.Errorf("task %q: amount is required", t.TaskName)
	}
	if t.Amount.IsNegative() && t.Operation != OperationReportPnL {
		return fmt.Errorf("task %q: amount must not be negative", t.TaskName)
	}
	if t.Operation.needsTarget() && t.Target.IsZero() {
		return fmt.Errorf("task %q: %s needs a target: %w", t.TaskName, t.Operation, types.ErrZeroAddress)
	}
	return nil
}
