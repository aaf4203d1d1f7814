package pricemath

import (
	"github.com/holiman/uint256"
)

// Amount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB) in Q96,
// rounded down.
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int) *uint256.Int {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return new(uint256.Int)
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)
	out, ok := MulDiv(numerator1, numerator2, sqrtB)
	if !ok {
		return new(uint256.Int)
	}
	return out.Div(out, sqrtA)
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA) / 2^96, rounded down.
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int) *uint256.Int {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	out, ok := MulDiv(liquidity, new(uint256.Int).Sub(sqrtB, sqrtA), Q96)
	if !ok {
		return new(uint256.Int)
	}
	return out
}

// AmountsForLiquidity returns the token amounts held by liquidity over
// [tickLower, tickUpper) at the current pool state. Side selection follows
// the pool: below the range only token0, at or above the upper tick only
// token1, otherwise both.
func AmountsForLiquidity(tick int32, sqrtPriceX96 *uint256.Int, tickLower, tickUpper int32, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	if liquidity == nil || liquidity.IsZero() {
		return amount0, amount1, nil
	}

	sqrtA, err := SqrtRatioAtTick(tickLower)
	if err != nil {
		return amount0, amount1, err
	}
	sqrtB, err := SqrtRatioAtTick(tickUpper)
	if err != nil {
		return amount0, amount1, err
	}

	switch {
	case tick < tickLower:
		amount0 = Amount0Delta(sqrtA, sqrtB, liquidity)
	case tick < tickUpper:
		current := new(uint256.Int).Set(sqrtPriceX96)
		if current.Lt(sqrtA) {
			current.Set(sqrtA)
		}
		if current.Gt(sqrtB) {
			current.Set(sqrtB)
		}
		amount0 = Amount0Delta(current, sqrtB, liquidity)
		amount1 = Amount1Delta(sqrtA, current, liquidity)
	default:
		amount1 = Amount1Delta(sqrtA, sqrtB, liquidity)
	}
	return amount0, amount1, nil
}
