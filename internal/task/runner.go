package task

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/curve"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

// Executor is the part of the service a script drives.
type Executor interface {
	Spender(name string) (types.Address, error)
	Fund(ctx context.Context, caller, to types.Address, amount math.Int) error
	Approve(ctx context.Context, owner, spender types.Address, amount math.Int) error
	Transfer(ctx context.Context, from, to types.Address, amount math.Int) error
	Deposit(ctx context.Context, caller types.Address, assets math.Int, receiver types.Address) (math.Int, error)
	Redeem(ctx context.Context, caller types.Address, shares math.Int, receiver types.Address) (math.Int, error)
	DeployFunds(ctx context.Context, caller types.Address, amount math.Int) error
	ReturnFunds(ctx context.Context, caller types.Address, amount math.Int) error
	ReportPnL(ctx context.Context, caller types.Address, delta math.Int) error
	Buy(ctx context.Context, caller types.Address, stableIn, minTokensOut math.Int) (curve.BuyResult, error)
	Sell(ctx context.Context, caller types.Address, tokenAmount, minStableOut math.Int) (curve.SellResult, error)
}

// Result is the outcome of one task. Output is the minted shares, paid
// assets, bought tokens or sale proceeds, when the operation produces one.
type Result struct {
	Task   *Task
	Output math.Int
	Cost   math.Int
	Err    error
}

// Runner replays tasks in order.
type Runner struct {
	exec   Executor
	logger *zap.Logger
	// ContinueOnError keeps going after a rejected task instead of stopping.
	ContinueOnError bool
}

// NewRunner creates a runner over exec.
func NewRunner(exec Executor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{exec: exec, logger: logger.Named("task_runner")}
}

// Run executes tasks sequentially. It stops at the first failure unless
// ContinueOnError is set, and always returns the results gathered so far.
func (r *Runner) Run(ctx context.Context, tasks []*Task) ([]Result, error) {
	results := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.runOne(ctx, t)
		results = append(results, res)

		if res.Err != nil {
			r.logger.Warn("Task failed",
				zap.String("task_name", t.TaskName),
				zap.String("operation", string(t.Operation)),
				zap.Error(res.Err))
			if !r.ContinueOnError {
				return results, fmt.Errorf("task %q: %w", t.TaskName, res.Err)
			}
			continue
		}
		r.logger.Debug("Task completed",
			zap.String("task_name", t.TaskName),
			zap.String("operation", string(t.Operation)))
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, t *Task) Result {
	res := Result{Task: t}
	target := t.Target
	if target.IsZero() {
		target = t.Account
	}

	switch t.Operation {
	case OperationFund:
		res.Err = r.exec.Fund(ctx, t.Account, target, t.Amount)
	case OperationApprove:
		spender, err := r.exec.Spender(string(t.Target))
		if err != nil {
			res.Err = err
			break
		}
		res.Err = r.exec.Approve(ctx, t.Account, spender, t.Amount)
	case OperationTransfer:
		to, err := r.exec.Spender(string(t.Target))
		if err != nil {
			res.Err = err
			break
		}
		res.Err = r.exec.Transfer(ctx, t.Account, to, t.Amount)
	case OperationDeposit:
		res.Output, res.Err = r.exec.Deposit(ctx, t.Account, t.Amount, target)
	case OperationRedeem:
		res.Output, res.Err = r.exec.Redeem(ctx, t.Account, t.Amount, target)
	case OperationDeploy:
		res.Err = r.exec.DeployFunds(ctx, t.Account, t.Amount)
	case OperationReturn:
		res.Err = r.exec.ReturnFunds(ctx, t.Account, t.Amount)
	case OperationReportPnL:
		res.Err = r.exec.ReportPnL(ctx, t.Account, t.Amount)
	case OperationBuy:
		var br curve.BuyResult
		br, res.Err = r.exec.Buy(ctx, t.Account, t.Amount, t.MinOut)
		res.Output, res.Cost = br.Tokens, br.Cost
	case OperationSell:
		var sr curve.SellResult
		sr, res.Err = r.exec.Sell(ctx, t.Account, t.Amount, t.MinOut)
		res.Output = sr.Proceeds
	default:
		res.Err = fmt.Errorf("unsupported operation: %q", t.Operation)
	}
	return res
}
