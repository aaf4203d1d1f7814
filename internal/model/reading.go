package model

import (
	"time"

	"github.com/holiman/uint256"
)

// FeeGrowth carries per-token fee-growth-inside accumulators (X128) for a
// position's range: the checkpoint at last touch and the current value.
type FeeGrowth struct {
	InsideLast0 *uint256.Int
	InsideLast1 *uint256.Int
	Inside0     *uint256.Int
	Inside1     *uint256.Int
	// Owed holds amounts already credited to the position but not collected.
	Owed0 *uint256.Int
	Owed1 *uint256.Int
}

// CollectAmounts is the result of a simulated collect call.
type CollectAmounts struct {
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

// RawPoolReading is the normalized chain reading for one position, fetched
// fresh each cycle.
type RawPoolReading struct {
	Tick              int32
	SqrtPriceX96      *uint256.Int
	PoolLiquidity     *uint256.Int
	PositionLiquidity *uint256.Int

	// Fees is nil when the accumulator reads failed.
	Fees *FeeGrowth
	// Collect is set when fees were sourced from a simulated collect.
	Collect *CollectAmounts
	// FeeErr records why fee data is missing, if it is.
	FeeErr error

	ReadAt time.Time
}
