package dex

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lpMonitor/internal/fees"
	"lpMonitor/internal/model"
)

// FeeSource selects where pending fees come from.
type FeeSource string

const (
	FeeSourceAccumulator FeeSource = "accumulator"
	FeeSourceCollect     FeeSource = "collect"
)

// maxUint128 is the collect cap meaning "everything owed".
var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Reader fetches fresh chain state for one position.
type Reader interface {
	Read(ctx context.Context, cfg *model.PositionConfig) (model.RawPoolReading, error)
	SimulateCollect(ctx context.Context, cfg *model.PositionConfig) (*uint256.Int, *uint256.Int, error)
}

// ReaderOptions configures a ChainReader.
type ReaderOptions struct {
	FeeSource FeeSource
	// Owner is the address collect is simulated from. When nil the NFT
	// owner is looked up with ownerOf.
	Owner  *common.Address
	Logger *zap.Logger
	Now    func() time.Time
}

// ChainReader reads V3 and V4 positions over eth_call.
type ChainReader struct {
	caller    Caller
	feeSource FeeSource
	owner     *common.Address
	logger    *zap.Logger
	now       func() time.Time
}

func NewChainReader(caller Caller, opts ReaderOptions) *ChainReader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	source := opts.FeeSource
	if source == "" {
		source = FeeSourceAccumulator
	}
	return &ChainReader{caller: caller, feeSource: source, owner: opts.Owner, logger: logger, now: now}
}

// Read fetches pool and position state. Pool and position reads run
// concurrently; a fee accumulator failure leaves Fees nil instead of failing.
func (r *ChainReader) Read(ctx context.Context, cfg *model.PositionConfig) (model.RawPoolReading, error) {
	if cfg == nil {
		return model.RawPoolReading{}, fmt.Errorf("position config is nil")
	}

	var (
		reading model.RawPoolReading
		err     error
	)
	switch cfg.Protocol {
	case model.ProtocolV3:
		reading, err = r.readV3(ctx, cfg)
	case model.ProtocolV4:
		reading, err = r.readV4(ctx, cfg)
	default:
		return model.RawPoolReading{}, fmt.Errorf("position %s: unsupported protocol %q", cfg.ID, cfg.Protocol)
	}
	if err != nil {
		return model.RawPoolReading{}, err
	}

	if r.feeSource == FeeSourceCollect {
		amount0, amount1, err := r.SimulateCollect(ctx, cfg)
		if err != nil {
			reading.Fees = nil
			reading.FeeErr = fmt.Errorf("simulate collect: %w", err)
		} else {
			reading.Collect = &model.CollectAmounts{Amount0: amount0, Amount1: amount1}
		}
	}
	reading.ReadAt = r.now()
	return reading, nil
}

// positionState is what the position manager reports for a token id.
type positionState struct {
	tickLower  int32
	tickUpper  int32
	liquidity  *uint256.Int
	insideLast [2]*uint256.Int
	owed       [2]*uint256.Int
}

func (r *ChainReader) readV3(ctx context.Context, cfg *model.PositionConfig) (model.RawPoolReading, error) {
	ref := cfg.V3
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.RawPoolReading{}, fmt.Errorf("parse pool abi: %w", err)
	}
	managerABI, err := V3ManagerABI()
	if err != nil {
		return model.RawPoolReading{}, fmt.Errorf("parse manager abi: %w", err)
	}

	var (
		reading  model.RawPoolReading
		position positionState
		global   [2]*uint256.Int
		lower    [2]*uint256.Int
		upper    [2]*uint256.Int
		feeErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := callMethod(gctx, r.caller, ref.PoolAddress, nil, poolABI, "slot0")
		if err != nil {
			return err
		}
		if reading.SqrtPriceX96, err = asUint256("sqrtPriceX96", values[0]); err != nil {
			return err
		}
		if reading.Tick, err = asTick("tick", values[1]); err != nil {
			return err
		}
		values, err = callMethod(gctx, r.caller, ref.PoolAddress, nil, poolABI, "liquidity")
		if err != nil {
			return err
		}
		reading.PoolLiquidity, err = asUint256("liquidity", values[0])
		return err
	})
	g.Go(func() error {
		values, err := callMethod(gctx, r.caller, ref.PositionManager, nil, managerABI, "positions", ref.NFTID)
		if err != nil {
			return err
		}
		position, err = decodePosition(values, 5)
		return err
	})
	g.Go(func() error {
		feeErr = func() error {
			for i, method := range []string{"feeGrowthGlobal0X128", "feeGrowthGlobal1X128"} {
				values, err := callMethod(gctx, r.caller, ref.PoolAddress, nil, poolABI, method)
				if err != nil {
					return err
				}
				if global[i], err = asUint256(method, values[0]); err != nil {
					return err
				}
			}
			var err error
			if lower, err = r.tickOutside(gctx, ref.PoolAddress, cfg.TickLower); err != nil {
				return err
			}
			upper, err = r.tickOutside(gctx, ref.PoolAddress, cfg.TickUpper)
			return err
		}()
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.RawPoolReading{}, err
	}

	r.checkTicks(cfg, position)
	reading.PositionLiquidity = position.liquidity
	if feeErr != nil {
		reading.FeeErr = feeErr
		r.logger.Warn("fee growth read failed", zap.String("position", cfg.ID), zap.Error(feeErr))
		return reading, nil
	}
	reading.Fees = &model.FeeGrowth{
		InsideLast0: position.insideLast[0],
		InsideLast1: position.insideLast[1],
		Inside0:     fees.GrowthInside(reading.Tick, cfg.TickLower, cfg.TickUpper, global[0], lower[0], upper[0]),
		Inside1:     fees.GrowthInside(reading.Tick, cfg.TickLower, cfg.TickUpper, global[1], lower[1], upper[1]),
		Owed0:       position.owed[0],
		Owed1:       position.owed[1],
	}
	return reading, nil
}

func (r *ChainReader) tickOutside(ctx context.Context, pool common.Address, tick int32) ([2]*uint256.Int, error) {
	var out [2]*uint256.Int
	poolABI, err := V3PoolABI()
	if err != nil {
		return out, err
	}
	values, err := callMethod(ctx, r.caller, pool, nil, poolABI, "ticks", big.NewInt(int64(tick)))
	if err != nil {
		return out, err
	}
	if len(values) < 4 {
		return out, model.NewDataError("ticks", "expected at least 4 values, got %d", len(values))
	}
	if out[0], err = asUint256("feeGrowthOutside0X128", values[2]); err != nil {
		return out, err
	}
	out[1], err = asUint256("feeGrowthOutside1X128", values[3])
	return out, err
}

func (r *ChainReader) readV4(ctx context.Context, cfg *model.PositionConfig) (model.RawPoolReading, error) {
	ref := cfg.V4
	stateABI, err := V4StateViewABI()
	if err != nil {
		return model.RawPoolReading{}, fmt.Errorf("parse state view abi: %w", err)
	}
	managerABI, err := V4ManagerABI()
	if err != nil {
		return model.RawPoolReading{}, fmt.Errorf("parse manager abi: %w", err)
	}
	poolID := [32]byte(ref.PoolID)

	var (
		reading  model.RawPoolReading
		position positionState
		inside   [2]*uint256.Int
		feeErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := callMethod(gctx, r.caller, ref.StateView, nil, stateABI, "getSlot0", poolID)
		if err != nil {
			return err
		}
		if reading.SqrtPriceX96, err = asUint256("sqrtPriceX96", values[0]); err != nil {
			return err
		}
		if reading.Tick, err = asTick("tick", values[1]); err != nil {
			return err
		}
		values, err = callMethod(gctx, r.caller, ref.StateView, nil, stateABI, "getLiquidity", poolID)
		if err != nil {
			return err
		}
		reading.PoolLiquidity, err = asUint256("liquidity", values[0])
		return err
	})
	g.Go(func() error {
		values, err := callMethod(gctx, r.caller, ref.PositionManager, nil, managerABI, "positions", ref.PositionTokenID)
		if err != nil {
			return err
		}
		if len(values) > 0 {
			if onChain, err := asHash(values[0]); err == nil && onChain != ref.PoolID {
				r.logger.Warn("position pool id differs from config",
					zap.String("position", cfg.ID),
					zap.String("configured", ref.PoolID.Hex()),
					zap.String("on_chain", onChain.Hex()),
				)
			}
		}
		position, err = decodePosition(values, 1)
		return err
	})
	g.Go(func() error {
		feeErr = func() error {
			values, err := callMethod(gctx, r.caller, ref.StateView, nil, stateABI, "getFeeGrowthInside",
				poolID, big.NewInt(int64(cfg.TickLower)), big.NewInt(int64(cfg.TickUpper)))
			if err != nil {
				return err
			}
			if inside[0], err = asUint256("feeGrowthInside0X128", values[0]); err != nil {
				return err
			}
			inside[1], err = asUint256("feeGrowthInside1X128", values[1])
			return err
		}()
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.RawPoolReading{}, err
	}

	r.checkTicks(cfg, position)
	reading.PositionLiquidity = position.liquidity
	if feeErr != nil {
		reading.FeeErr = feeErr
		r.logger.Warn("fee growth read failed", zap.String("position", cfg.ID), zap.Error(feeErr))
		return reading, nil
	}
	reading.Fees = &model.FeeGrowth{
		InsideLast0: position.insideLast[0],
		InsideLast1: position.insideLast[1],
		Inside0:     inside[0],
		Inside1:     inside[1],
		Owed0:       position.owed[0],
		Owed1:       position.owed[1],
	}
	return reading, nil
}

// decodePosition reads the shared tail of a positions() result starting at
// the tickLower index: tickLower, tickUpper, liquidity, feeGrowthInside0/1
// LastX128, tokensOwed0/1.
func decodePosition(values []interface{}, start int) (positionState, error) {
	var p positionState
	if len(values) < start+7 {
		return p, model.NewDataError("positions", "expected %d values, got %d", start+7, len(values))
	}
	var err error
	if p.tickLower, err = asTick("tickLower", values[start]); err != nil {
		return p, err
	}
	if p.tickUpper, err = asTick("tickUpper", values[start+1]); err != nil {
		return p, err
	}
	if p.liquidity, err = asUint256("liquidity", values[start+2]); err != nil {
		return p, err
	}
	for i := 0; i < 2; i++ {
		if p.insideLast[i], err = asUint256(fmt.Sprintf("feeGrowthInside%dLastX128", i), values[start+3+i]); err != nil {
			return p, err
		}
		if p.owed[i], err = asUint256(fmt.Sprintf("tokensOwed%d", i), values[start+5+i]); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (r *ChainReader) checkTicks(cfg *model.PositionConfig, p positionState) {
	if p.tickLower == cfg.TickLower && p.tickUpper == cfg.TickUpper {
		return
	}
	r.logger.Warn("position ticks differ from config",
		zap.String("position", cfg.ID),
		zap.Int32("config_lower", cfg.TickLower),
		zap.Int32("config_upper", cfg.TickUpper),
		zap.Int32("chain_lower", p.tickLower),
		zap.Int32("chain_upper", p.tickUpper),
	)
}

// collectParams mirrors the manager's CollectParams tuple.
type collectParams struct {
	TokenID    *big.Int       `abi:"tokenId"`
	Recipient  common.Address `abi:"recipient"`
	Amount0Max *big.Int       `abi:"amount0Max"`
	Amount1Max *big.Int       `abi:"amount1Max"`
}

// SimulateCollect eth_calls collect(max, max) from the owner and returns
// what would be paid out.
func (r *ChainReader) SimulateCollect(ctx context.Context, cfg *model.PositionConfig) (*uint256.Int, *uint256.Int, error) {
	managerABI, err := managerABIFor(cfg.Protocol)
	if err != nil {
		return nil, nil, fmt.Errorf("parse manager abi: %w", err)
	}
	owner, err := r.ownerOf(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return simulateCollect(ctx, r.caller, cfg, managerABI, owner)
}

func simulateCollect(ctx context.Context, caller Caller, cfg *model.PositionConfig, managerABI abi.ABI, owner common.Address) (*uint256.Int, *uint256.Int, error) {
	params := collectParams{
		TokenID:    cfg.TokenID(),
		Recipient:  owner,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	}
	values, err := callMethod(ctx, caller, cfg.Manager(), &owner, managerABI, "collect", params)
	if err != nil {
		return nil, nil, err
	}
	amount0, err := asUint256("amount0", values[0])
	if err != nil {
		return nil, nil, err
	}
	amount1, err := asUint256("amount1", values[1])
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (r *ChainReader) ownerOf(ctx context.Context, cfg *model.PositionConfig) (common.Address, error) {
	if r.owner != nil {
		return *r.owner, nil
	}
	managerABI, err := managerABIFor(cfg.Protocol)
	if err != nil {
		return common.Address{}, err
	}
	values, err := callMethod(ctx, r.caller, cfg.Manager(), nil, managerABI, "ownerOf", cfg.TokenID())
	if err != nil {
		return common.Address{}, err
	}
	owner, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, model.NewDataError("ownerOf", "%v", err)
	}
	return owner, nil
}
