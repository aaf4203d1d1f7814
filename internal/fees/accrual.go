package fees

import (
	"github.com/holiman/uint256"

	"lpMonitor/internal/model"
	"lpMonitor/internal/pricemath"
)

// DefaultMaxGrowthDelta bounds a single-cycle accumulator delta. A delta in
// the top half of the 256-bit space only arises when the current value is
// behind the checkpoint, which is a read error rather than a wrap.
var DefaultMaxGrowthDelta = new(uint256.Int).Lsh(uint256.NewInt(1), 255)

// GrowthDelta returns current - last modulo 2^256.
func GrowthDelta(last, current *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sub(current, last)
}

// GrowthInside derives the fee growth inside [tickLower, tickUpper] from the
// global accumulator and the per-tick outside accumulators. All arithmetic
// wraps modulo 2^256.
func GrowthInside(tick, tickLower, tickUpper int32, global, lowerOutside, upperOutside *uint256.Int) *uint256.Int {
	below := new(uint256.Int)
	if tick >= tickLower {
		below.Set(lowerOutside)
	} else {
		below.Sub(global, lowerOutside)
	}

	above := new(uint256.Int)
	if tick < tickUpper {
		above.Set(upperOutside)
	} else {
		above.Sub(global, upperOutside)
	}

	inside := new(uint256.Int).Sub(global, below)
	return inside.Sub(inside, above)
}

// Amounts holds per-token fee amounts in native integer units.
type Amounts struct {
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

// IsZero reports whether both amounts are zero.
func (a Amounts) IsZero() bool {
	return (a.Amount0 == nil || a.Amount0.IsZero()) && (a.Amount1 == nil || a.Amount1.IsZero())
}

// ZeroAmounts returns zeroed amounts.
func ZeroAmounts() Amounts {
	return Amounts{Amount0: new(uint256.Int), Amount1: new(uint256.Int)}
}

// Calculator computes unclaimed fees from accumulator snapshots.
type Calculator struct {
	maxDelta *uint256.Int
}

// NewCalculator builds a Calculator; a nil bound uses DefaultMaxGrowthDelta.
func NewCalculator(maxDelta *uint256.Int) *Calculator {
	if maxDelta == nil {
		maxDelta = DefaultMaxGrowthDelta
	}
	return &Calculator{maxDelta: maxDelta}
}

// Unclaimed returns delta * liquidity / 2^128 for one token.
func (c *Calculator) Unclaimed(last, current, liquidity *uint256.Int) (*uint256.Int, error) {
	if last == nil || current == nil || liquidity == nil {
		return nil, model.NewDataError("fee growth", "missing accumulator input")
	}
	delta := GrowthDelta(last, current)
	if delta.Gt(c.maxDelta) {
		return nil, model.NewDataError("fee growth delta", "%s exceeds sanity bound", delta.Hex())
	}
	out, ok := pricemath.MulDiv(delta, liquidity, pricemath.Q128)
	if !ok {
		return nil, model.NewDataError("unclaimed fees", "overflow for delta %s", delta.Hex())
	}
	return out, nil
}

// Accrued returns owed plus newly accrued fees for both tokens.
func (c *Calculator) Accrued(growth *model.FeeGrowth, liquidity *uint256.Int) (Amounts, error) {
	if growth == nil {
		return ZeroAmounts(), model.NewDataError("fee growth", "no accumulator reading")
	}

	fee0, err := c.Unclaimed(growth.InsideLast0, growth.Inside0, liquidity)
	if err != nil {
		return ZeroAmounts(), err
	}
	fee1, err := c.Unclaimed(growth.InsideLast1, growth.Inside1, liquidity)
	if err != nil {
		return ZeroAmounts(), err
	}

	if growth.Owed0 != nil {
		if _, overflow := fee0.AddOverflow(fee0, growth.Owed0); overflow {
			return ZeroAmounts(), model.NewDataError("tokens owed0", "overflow")
		}
	}
	if growth.Owed1 != nil {
		if _, overflow := fee1.AddOverflow(fee1, growth.Owed1); overflow {
			return ZeroAmounts(), model.NewDataError("tokens owed1", "overflow")
		}
	}
	return Amounts{Amount0: fee0, Amount1: fee1}, nil
}
