package pricemath

import (
	"fmt"

	"github.com/holiman/uint256"
)

var (
	// Q96 is the Q64.96 scale of sqrt prices.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	// Q128 is the X128 scale of fee-growth accumulators.
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	maxUint256 = new(uint256.Int).SubUint64(new(uint256.Int), 1)
	maxUint160 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffffffffffff")
	lowMask32  = uint256.NewInt(0xffffffff)

	ratioOdd  = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	ratioEven = uint256.MustFromHex("0x100000000000000000000000000000000")

	// ratioFactors[i] is 1/sqrt(1.0001^(2^(i+1))) in Q128, applied when bit
	// i+1 of |tick| is set.
	ratioFactors = [19]*uint256.Int{
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96, bit-exact with the
// on-chain TickMath library.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	absTick := int64(tick)
	if absTick < 0 {
		absTick = -absTick
	}
	if absTick > 887272 {
		return nil, fmt.Errorf("tick %d out of range", tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(ratioOdd)
	} else {
		ratio.Set(ratioEven)
	}
	for i, factor := range ratioFactors {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, factor)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Round up when shifting Q128.128 down to Q64.96.
	remainder := new(uint256.Int).And(ratio, lowMask32)
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio.And(ratio, maxUint160), nil
}

// MulDiv computes floor(a*b/denominator) with a 512-bit intermediate.
// It reports false when the denominator is zero or the result overflows.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, bool) {
	if denominator.IsZero() {
		return new(uint256.Int), false
	}
	product := a.ToBig()
	product.Mul(product, b.ToBig())
	product.Quo(product, denominator.ToBig())
	out, overflow := uint256.FromBig(product)
	if overflow {
		return new(uint256.Int), false
	}
	return out, true
}
