package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpMonitor/internal/model"
)

// DetectV3 resolves everything needed to configure a V3 NFT position: its
// ticks and liquidity, the pool address via the factory, and token metadata.
func DetectV3(ctx context.Context, caller Caller, manager common.Address, nftID *big.Int, tokenCache *TokenMetaCache, logger *zap.Logger) (model.DetectedPosition, error) {
	if nftID == nil || nftID.Sign() <= 0 {
		return model.DetectedPosition{}, fmt.Errorf("nft id must be positive")
	}
	managerABI, err := V3ManagerABI()
	if err != nil {
		return model.DetectedPosition{}, fmt.Errorf("parse manager abi: %w", err)
	}
	factoryABI, err := V3FactoryABI()
	if err != nil {
		return model.DetectedPosition{}, fmt.Errorf("parse factory abi: %w", err)
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.DetectedPosition{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, caller, manager, nil, managerABI, "positions", nftID)
	if err != nil {
		return model.DetectedPosition{}, err
	}
	if len(values) < 12 {
		return model.DetectedPosition{}, model.NewDataError("positions", "expected 12 values, got %d", len(values))
	}
	token0, err := asAddress(values[2])
	if err != nil {
		return model.DetectedPosition{}, model.NewDataError("token0", "%v", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.DetectedPosition{}, model.NewDataError("token1", "%v", err)
	}
	feeInt, err := asBigInt(values[4])
	if err != nil {
		return model.DetectedPosition{}, model.NewDataError("fee", "%v", err)
	}
	position, err := decodePosition(values, 5)
	if err != nil {
		return model.DetectedPosition{}, err
	}

	values, err = callMethod(ctx, caller, manager, nil, managerABI, "factory")
	if err != nil {
		return model.DetectedPosition{}, err
	}
	factory, err := asAddress(values[0])
	if err != nil {
		return model.DetectedPosition{}, model.NewDataError("factory", "%v", err)
	}

	values, err = callMethod(ctx, caller, factory, nil, factoryABI, "getPool", token0, token1, feeInt)
	if err != nil {
		return model.DetectedPosition{}, err
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return model.DetectedPosition{}, model.NewDataError("pool", "%v", err)
	}
	if pool == (common.Address{}) {
		return model.DetectedPosition{}, model.NewDataError("pool", "factory has no pool for %s/%s fee %s", token0.Hex(), token1.Hex(), feeInt.String())
	}

	values, err = callMethod(ctx, caller, pool, nil, poolABI, "tickSpacing")
	if err != nil {
		return model.DetectedPosition{}, err
	}
	spacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.DetectedPosition{}, model.NewDataError("tickSpacing", "%v", err)
	}
	spacing, err := int24FromBig(spacingInt)
	if err != nil {
		return model.DetectedPosition{}, model.NewDataError("tickSpacing", "%v", err)
	}

	meta0, err := CachedTokenMeta(ctx, caller, tokenCache, token0, logger)
	if err != nil {
		return model.DetectedPosition{}, fmt.Errorf("token0 metadata: %w", err)
	}
	meta1, err := CachedTokenMeta(ctx, caller, tokenCache, token1, logger)
	if err != nil {
		return model.DetectedPosition{}, fmt.Errorf("token1 metadata: %w", err)
	}

	return model.DetectedPosition{
		NFTID:           nftID.String(),
		PositionManager: manager.Hex(),
		TickLower:       position.tickLower,
		TickUpper:       position.tickUpper,
		Liquidity:       position.liquidity.ToBig().String(),
		Pool: model.PoolMeta{
			Address:     pool.Hex(),
			Token0:      meta0,
			Token1:      meta1,
			Fee:         uint32(feeInt.Uint64()),
			TickSpacing: spacing,
		},
	}, nil
}
