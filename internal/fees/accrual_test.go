package fees

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpMonitor/internal/model"
	"lpMonitor/internal/pricemath"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func maxMinus(v uint64) *uint256.Int {
	return new(uint256.Int).SubUint64(new(uint256.Int), v+1)
}

func TestGrowthDeltaWraps(t *testing.T) {
	// 2^256 - 10 -> 5 crosses the ceiling.
	last := new(uint256.Int).SubUint64(new(uint256.Int), 10)
	delta := GrowthDelta(last, u(5))
	assert.Equal(t, uint64(15), delta.Uint64())
	assert.True(t, delta.IsUint64())

	assert.Equal(t, uint64(7), GrowthDelta(u(3), u(10)).Uint64())
	assert.True(t, GrowthDelta(u(3), u(3)).IsZero())
}

func TestUnclaimedScalesWithLiquidity(t *testing.T) {
	calc := NewCalculator(nil)
	last := u(0)
	// One token per unit of liquidity, in X128.
	current := new(uint256.Int).Set(pricemath.Q128)

	for _, liq := range []uint64{0, 1, 1000, 1 << 40} {
		got, err := calc.Unclaimed(last, current, u(liq))
		require.NoError(t, err)
		assert.Equal(t, liq, got.Uint64())
	}

	double, err := calc.Unclaimed(last, current, u(2000))
	require.NoError(t, err)
	single, err := calc.Unclaimed(last, current, u(1000))
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).Mul(single, u(2)).Uint64(), double.Uint64())
}

func TestUnclaimedAcrossWrap(t *testing.T) {
	calc := NewCalculator(nil)
	half := new(uint256.Int).Rsh(pricemath.Q128, 1)
	// last sits just under 2^256; current is half a unit past zero.
	last := new(uint256.Int).Sub(new(uint256.Int), half)
	got, err := calc.Unclaimed(last, half, u(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Uint64())
}

func TestUnclaimedSanityBound(t *testing.T) {
	calc := NewCalculator(nil)
	// current behind last: the modular delta is nearly 2^256.
	_, err := calc.Unclaimed(u(5), u(4), u(1))
	require.Error(t, err)
	assert.True(t, model.IsData(err))

	tight := NewCalculator(u(100))
	_, err = tight.Unclaimed(u(0), u(101), u(1))
	assert.True(t, model.IsData(err))
	_, err = tight.Unclaimed(u(0), u(100), u(1))
	assert.NoError(t, err)
}

func TestUnclaimedMissingInput(t *testing.T) {
	_, err := NewCalculator(nil).Unclaimed(nil, u(1), u(1))
	assert.True(t, model.IsData(err))
}

func TestAccruedAddsOwed(t *testing.T) {
	calc := NewCalculator(nil)
	growth := &model.FeeGrowth{
		InsideLast0: u(0),
		InsideLast1: maxMinus(0),
		Inside0:     new(uint256.Int).Mul(pricemath.Q128, u(3)),
		Inside1:     new(uint256.Int).Sub(pricemath.Q128, u(1)),
		Owed0:       u(7),
		Owed1:       u(0),
	}
	amounts, err := calc.Accrued(growth, u(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(13), amounts.Amount0.Uint64())
	assert.Equal(t, uint64(2), amounts.Amount1.Uint64())
	assert.False(t, amounts.IsZero())

	zero, err := calc.Accrued(nil, u(2))
	assert.Error(t, err)
	assert.True(t, zero.IsZero())
}

func TestGrowthInside(t *testing.T) {
	global := u(1000)

	// In range: global - lowerOutside - upperOutside.
	assert.Equal(t, uint64(600), GrowthInside(0, -10, 10, global, u(100), u(300)).Uint64())

	// Below range the lower tick's outside value flips: lowerOutside - upperOutside.
	assert.Equal(t, uint64(100), GrowthInside(-20, -10, 10, global, u(400), u(300)).Uint64())

	// At or above the upper tick the upper value flips: upperOutside - lowerOutside.
	assert.Equal(t, uint64(200), GrowthInside(10, -10, 10, global, u(100), u(300)).Uint64())
	assert.Equal(t, uint64(200), GrowthInside(20, -10, 10, global, u(100), u(300)).Uint64())
}
