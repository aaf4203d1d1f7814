package dex

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"lpMonitor/internal/fees"
	"lpMonitor/internal/model"
)

// TxSender signs and submits transactions. *chain.Transactor satisfies it.
type TxSender interface {
	From() common.Address
	Transact(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Receipt, error)
}

// WriterOptions configures a PositionWriter.
type WriterOptions struct {
	// Deadline is added to the current time for manager deadlines.
	Deadline time.Duration
	// SlippageBps lowers the min amounts below the simulated result. Zero
	// sends zero minimums.
	SlippageBps uint32
	Logger      *zap.Logger
	Now         func() time.Time
}

// PositionWriter sends claim, increase and decrease transactions to the
// position manager. Amounts and slippage minimums are read by simulating the
// same call first.
type PositionWriter struct {
	caller      Caller
	sender      TxSender
	deadline    time.Duration
	slippageBps uint32
	logger      *zap.Logger
	now         func() time.Time
}

func NewPositionWriter(caller Caller, sender TxSender, opts WriterOptions) *PositionWriter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}
	return &PositionWriter{
		caller:      caller,
		sender:      sender,
		deadline:    deadline,
		slippageBps: opts.SlippageBps,
		logger:      logger,
		now:         now,
	}
}

type increaseParams struct {
	TokenID        *big.Int `abi:"tokenId"`
	Amount0Desired *big.Int `abi:"amount0Desired"`
	Amount1Desired *big.Int `abi:"amount1Desired"`
	Amount0Min     *big.Int `abi:"amount0Min"`
	Amount1Min     *big.Int `abi:"amount1Min"`
	Deadline       *big.Int `abi:"deadline"`
}

type decreaseParams struct {
	TokenID    *big.Int `abi:"tokenId"`
	Liquidity  *big.Int `abi:"liquidity"`
	Amount0Min *big.Int `abi:"amount0Min"`
	Amount1Min *big.Int `abi:"amount1Min"`
	Deadline   *big.Int `abi:"deadline"`
}

// ClaimFees collects everything owed to the sender.
func (w *PositionWriter) ClaimFees(ctx context.Context, cfg *model.PositionConfig) (fees.Amounts, string, error) {
	managerABI, err := managerABIFor(cfg.Protocol)
	if err != nil {
		return fees.Amounts{}, "", fmt.Errorf("parse manager abi: %w", err)
	}
	from := w.sender.From()
	amount0, amount1, err := simulateCollect(ctx, w.caller, cfg, managerABI, from)
	if err != nil {
		return fees.Amounts{}, "", fmt.Errorf("simulate collect: %w", err)
	}

	params := collectParams{
		TokenID:    cfg.TokenID(),
		Recipient:  from,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	}
	receipt, err := w.sender.Transact(ctx, cfg.Manager(), managerABI, "collect", params)
	if err != nil {
		return fees.Amounts{}, "", err
	}
	w.logger.Info("fees collected",
		zap.String("position", cfg.ID),
		zap.String("amount0", amount0.ToBig().String()),
		zap.String("amount1", amount1.ToBig().String()),
		zap.String("tx", receipt.TxHash.Hex()),
	)
	return fees.Amounts{Amount0: amount0, Amount1: amount1}, receipt.TxHash.Hex(), nil
}

// IncreaseLiquidity adds amount0/amount1 to the position. The manager must
// already hold token approvals from the sender.
func (w *PositionWriter) IncreaseLiquidity(ctx context.Context, cfg *model.PositionConfig, amount0, amount1 *uint256.Int) (string, error) {
	managerABI, err := managerABIFor(cfg.Protocol)
	if err != nil {
		return "", fmt.Errorf("parse manager abi: %w", err)
	}
	params := increaseParams{
		TokenID:        cfg.TokenID(),
		Amount0Desired: amount0.ToBig(),
		Amount1Desired: amount1.ToBig(),
		Amount0Min:     new(big.Int),
		Amount1Min:     new(big.Int),
		Deadline:       w.deadlineAt(),
	}
	// The manager only pulls the amounts that match the pool ratio, so the
	// minimums come from the simulated result, not the desired amounts.
	from := w.sender.From()
	values, err := callMethod(ctx, w.caller, cfg.Manager(), &from, managerABI, "increaseLiquidity", params)
	if err != nil {
		return "", fmt.Errorf("simulate increase: %w", err)
	}
	if len(values) < 3 {
		return "", model.NewDataError("increaseLiquidity", "expected 3 values, got %d", len(values))
	}
	used0, err := asUint256("amount0", values[1])
	if err != nil {
		return "", err
	}
	used1, err := asUint256("amount1", values[2])
	if err != nil {
		return "", err
	}

	params.Amount0Min = w.minAmount(used0.ToBig())
	params.Amount1Min = w.minAmount(used1.ToBig())
	receipt, err := w.sender.Transact(ctx, cfg.Manager(), managerABI, "increaseLiquidity", params)
	if err != nil {
		return "", err
	}
	w.logger.Info("liquidity increased",
		zap.String("position", cfg.ID),
		zap.String("amount0", used0.ToBig().String()),
		zap.String("amount1", used1.ToBig().String()),
		zap.String("tx", receipt.TxHash.Hex()),
	)
	return receipt.TxHash.Hex(), nil
}

// DecreaseLiquidity removes liquidity and returns the token amounts now owed
// to the position. A collect is still needed to withdraw them.
func (w *PositionWriter) DecreaseLiquidity(ctx context.Context, cfg *model.PositionConfig, liquidity *uint256.Int) (fees.Amounts, string, error) {
	managerABI, err := managerABIFor(cfg.Protocol)
	if err != nil {
		return fees.Amounts{}, "", fmt.Errorf("parse manager abi: %w", err)
	}
	params := decreaseParams{
		TokenID:    cfg.TokenID(),
		Liquidity:  liquidity.ToBig(),
		Amount0Min: new(big.Int),
		Amount1Min: new(big.Int),
		Deadline:   w.deadlineAt(),
	}
	from := w.sender.From()
	values, err := callMethod(ctx, w.caller, cfg.Manager(), &from, managerABI, "decreaseLiquidity", params)
	if err != nil {
		return fees.Amounts{}, "", fmt.Errorf("simulate decrease: %w", err)
	}
	amount0, err := asUint256("amount0", values[0])
	if err != nil {
		return fees.Amounts{}, "", err
	}
	amount1, err := asUint256("amount1", values[1])
	if err != nil {
		return fees.Amounts{}, "", err
	}

	params.Amount0Min = w.minAmount(amount0.ToBig())
	params.Amount1Min = w.minAmount(amount1.ToBig())
	receipt, err := w.sender.Transact(ctx, cfg.Manager(), managerABI, "decreaseLiquidity", params)
	if err != nil {
		return fees.Amounts{}, "", err
	}
	return fees.Amounts{Amount0: amount0, Amount1: amount1}, receipt.TxHash.Hex(), nil
}

func (w *PositionWriter) deadlineAt() *big.Int {
	return big.NewInt(w.now().Add(w.deadline).Unix())
}

// minAmount applies the slippage tolerance: amount * (10000 - bps) / 10000.
func (w *PositionWriter) minAmount(amount *big.Int) *big.Int {
	if w.slippageBps == 0 || w.slippageBps >= 10_000 || amount.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(10_000-w.slippageBps)))
	return out.Quo(out, big.NewInt(10_000))
}
