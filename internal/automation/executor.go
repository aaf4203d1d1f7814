package automation

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpMonitor/internal/fees"
	"lpMonitor/internal/model"
	"lpMonitor/internal/snapshot"
)

// Writer is the chain-write collaborator. Every call blocks until the
// transaction is mined or fails.
type Writer interface {
	ClaimFees(ctx context.Context, cfg *model.PositionConfig) (fees.Amounts, string, error)
	IncreaseLiquidity(ctx context.Context, cfg *model.PositionConfig, amount0, amount1 *uint256.Int) (string, error)
	DecreaseLiquidity(ctx context.Context, cfg *model.PositionConfig, liquidity *uint256.Int) (fees.Amounts, string, error)
}

// RebalanceStrategy acts on a rebalance-needed decision. Choosing the new
// range belongs to the strategy. It reports whether any transaction was sent.
type RebalanceStrategy interface {
	Rebalance(ctx context.Context, snap model.Snapshot, writer Writer) (bool, error)
}

// Executor dispatches policy decisions to the writer.
type Executor struct {
	writer   Writer
	strategy RebalanceStrategy
	logger   *zap.Logger
}

// NewExecutor builds an Executor. A nil writer makes every action a dry run.
func NewExecutor(writer Writer, strategy RebalanceStrategy, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{writer: writer, strategy: strategy, logger: logger}
}

// DryRun reports whether no writer is configured.
func (e *Executor) DryRun() bool {
	return e.writer == nil
}

// Execute performs the fee action of the decision. It returns nil when no
// transaction was sent.
func (e *Executor) Execute(ctx context.Context, snap model.Snapshot, decision Decision) (*model.ActionResult, error) {
	if decision.Action == model.ActionNone {
		return nil, nil
	}
	cfg := snap.Config
	if cfg == nil {
		return nil, fmt.Errorf("snapshot %s has no position config", snap.PositionID)
	}
	if e.writer == nil {
		e.logger.Info("dry run: automation action skipped",
			zap.String("position", cfg.ID),
			zap.String("action", string(decision.Action)),
			zap.String("reason", decision.Reason),
		)
		return nil, nil
	}

	switch decision.Action {
	case model.ActionClaim:
		collected, txRef, err := e.writer.ClaimFees(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("claim fees: %w", err)
		}
		return e.result(cfg, model.ActionClaim, collected, txRef), nil

	case model.ActionCompound:
		collected, txRef, err := e.writer.ClaimFees(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("compound claim: %w", err)
		}
		result := e.result(cfg, model.ActionCompound, collected, txRef)
		if collected.IsZero() {
			e.logger.Info("compound: nothing collected, skip increase", zap.String("position", cfg.ID))
			return result, nil
		}
		increaseRef, err := e.writer.IncreaseLiquidity(ctx, cfg, orZero(collected.Amount0), orZero(collected.Amount1))
		if err != nil {
			// Fees are already in the wallet but were not re-supplied.
			result.Action = model.ActionClaim
			return result, fmt.Errorf("compound increase liquidity: %w", err)
		}
		result.IncreaseTxRef = increaseRef
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported action %q", decision.Action)
	}
}

// Rebalance hands a rebalance-needed decision to the strategy, if any.
// It reports whether the strategy sent a transaction.
func (e *Executor) Rebalance(ctx context.Context, snap model.Snapshot) (bool, error) {
	if e.strategy == nil {
		return false, nil
	}
	if e.writer == nil {
		e.logger.Info("dry run: rebalance skipped", zap.String("position", snap.PositionID))
		return false, nil
	}
	acted, err := e.strategy.Rebalance(ctx, snap, e.writer)
	if err != nil {
		return acted, fmt.Errorf("rebalance: %w", err)
	}
	return acted, nil
}

func (e *Executor) result(cfg *model.PositionConfig, action model.Action, collected fees.Amounts, txRef string) *model.ActionResult {
	symbol0, symbol1 := cfg.Symbols()
	return &model.ActionResult{
		Action:       action,
		PositionID:   cfg.ID,
		PositionName: cfg.Name,
		Amount0:      snapshot.ToDecimal(collected.Amount0, cfg.Token0Decimals),
		Amount1:      snapshot.ToDecimal(collected.Amount1, cfg.Token1Decimals),
		Symbol0:      symbol0,
		Symbol1:      symbol1,
		TxRef:        txRef,
	}
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// WithdrawStrategy exits the whole position and leaves the tokens in the
// wallet for an external strategy to redeploy.
type WithdrawStrategy struct {
	Logger *zap.Logger
}

func (s WithdrawStrategy) Rebalance(ctx context.Context, snap model.Snapshot, writer Writer) (bool, error) {
	if snap.Config == nil {
		return false, fmt.Errorf("snapshot %s has no position config", snap.PositionID)
	}
	raw, ok := new(big.Int).SetString(snap.Liquidity, 10)
	if !ok || raw.Sign() < 0 {
		return false, fmt.Errorf("parse liquidity %q", snap.Liquidity)
	}
	liquidity, overflow := uint256.FromBig(raw)
	if overflow || liquidity.IsZero() {
		return false, nil
	}

	amounts, txRef, err := writer.DecreaseLiquidity(ctx, snap.Config, liquidity)
	if err != nil {
		return true, err
	}
	if _, collectRef, err := writer.ClaimFees(ctx, snap.Config); err != nil {
		return true, fmt.Errorf("collect after decrease: %w", err)
	} else if s.Logger != nil {
		s.Logger.Info("position withdrawn for rebalance",
			zap.String("position", snap.PositionID),
			zap.String("amount0", orZero(amounts.Amount0).ToBig().String()),
			zap.String("amount1", orZero(amounts.Amount1).ToBig().String()),
			zap.String("decrease_tx", txRef),
			zap.String("collect_tx", collectRef),
		)
	}
	return true, nil
}
