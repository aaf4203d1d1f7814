package snapshot

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpMonitor/internal/model"
	"lpMonitor/internal/pricemath"
)

var fixedNow = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

func testConfig() *model.PositionConfig {
	return &model.PositionConfig{
		ID:             "eth-usd",
		Name:           "ETH/USD",
		Protocol:       model.ProtocolV4,
		Token0Decimals: 18,
		Token1Decimals: 18,
		TickLower:      -600,
		TickUpper:      600,
		V4: &model.V4Ref{
			PoolID:          common.HexToHash("0x01"),
			PositionTokenID: big.NewInt(1),
			StateView:       common.HexToAddress("0x01"),
			PositionManager: common.HexToAddress("0x02"),
		},
		Analytics: &model.AnalyticsConfig{
			InitialValueUSD:   1000,
			StartTime:         fixedNow.Add(-10 * 24 * time.Hour),
			ReferenceToken:    model.ReferenceToken1,
			ReferencePriceUSD: 1,
		},
	}
}

func readingAt(t *testing.T, tick int32, liquidity uint64) model.RawPoolReading {
	sqrt, err := pricemath.SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return model.RawPoolReading{
		Tick:              tick,
		SqrtPriceX96:      sqrt,
		PoolLiquidity:     uint256.NewInt(liquidity),
		PositionLiquidity: uint256.NewInt(liquidity),
		ReadAt:            fixedNow,
	}
}

// growthFor returns a fee reading that accrues token1 only.
func growthFor(perUnitX128 *uint256.Int) *model.FeeGrowth {
	return &model.FeeGrowth{
		InsideLast0: new(uint256.Int),
		InsideLast1: new(uint256.Int),
		Inside0:     new(uint256.Int),
		Inside1:     perUnitX128,
	}
}

func TestBuildInRangeValuation(t *testing.T) {
	cfg := testConfig()
	reading := readingAt(t, 0, 1_000_000_000_000_000_000)
	// 5 raw token1 per unit of liquidity -> 5 token1 for 1e18 liquidity.
	reading.Fees = growthFor(new(uint256.Int).Mul(pricemath.Q128, uint256.NewInt(5)))

	snap, err := NewBuilder(nil, nil).Build(cfg, reading)
	require.NoError(t, err)

	assert.True(t, snap.InRange)
	assert.Equal(t, 0.0, snap.DeviationPercent)
	assert.InDelta(t, 1.0, snap.Price, 1e-12)
	assert.True(t, snap.Amount0.IsPositive())
	assert.True(t, snap.Amount1.IsPositive())
	assert.Empty(t, snap.Degraded)

	assert.Equal(t, "5", snap.Fees1.String())
	assert.True(t, snap.Fees0.IsZero())

	expectedValue := snap.Amount0.Mul(decimal.NewFromFloat(snap.Price)).Add(snap.Amount1)
	assert.True(t, expectedValue.Sub(snap.ValueUSD).Abs().LessThan(decimal.New(1, -12)))

	require.NotNil(t, snap.ROI)
	require.NotNil(t, snap.APR)
	if snap.FeesPendingUSD.IsPositive() {
		require.NotNil(t, snap.BreakevenDays)
	}
	assert.Equal(t, cfg, snap.Config)
}

func TestBuildOutOfRangeDeviation(t *testing.T) {
	cfg := testConfig()
	cfg.Token0Decimals, cfg.Token1Decimals = 18, 6

	below, err := NewBuilder(nil, nil).Build(cfg, readingAt(t, -1200, 1000))
	require.NoError(t, err)
	assert.False(t, below.InRange)
	want := (below.PriceLower - below.Price) / below.PriceLower * 100
	assert.InDelta(t, want, below.DeviationPercent, 1e-9)
	assert.Greater(t, below.DeviationPercent, 0.0)
	assert.True(t, below.Amount1.IsZero())

	above, err := NewBuilder(nil, nil).Build(cfg, readingAt(t, 1200, 1000))
	require.NoError(t, err)
	assert.False(t, above.InRange)
	want = (above.Price - above.PriceUpper) / above.PriceUpper * 100
	assert.InDelta(t, want, above.DeviationPercent, 1e-9)
	assert.True(t, above.Amount0.IsZero())
}

func TestBuildBoundaryTickIsInRange(t *testing.T) {
	cfg := testConfig()
	cfg.TickLower, cfg.TickUpper = -100, 100

	snap, err := NewBuilder(nil, nil).Build(cfg, readingAt(t, 100, 10))
	require.NoError(t, err)
	assert.True(t, snap.InRange)
	assert.Equal(t, 0.0, snap.DeviationPercent)

	snap, err = NewBuilder(nil, nil).Build(cfg, readingAt(t, 101, 10))
	require.NoError(t, err)
	assert.False(t, snap.InRange)
}

func TestBuildFullRangeAlwaysInRange(t *testing.T) {
	cfg := testConfig()
	cfg.TickLower, cfg.TickUpper = -887220, 887220
	for _, tick := range []int32{-887220, -400000, 0, 400000, 887220} {
		snap, err := NewBuilder(nil, nil).Build(cfg, readingAt(t, tick, 1))
		require.NoError(t, err)
		assert.True(t, snap.InRange, "tick %d", tick)
	}
}

func TestBuildZeroLiquidity(t *testing.T) {
	snap, err := NewBuilder(nil, nil).Build(testConfig(), readingAt(t, 0, 0))
	require.NoError(t, err)
	assert.True(t, snap.Amount0.IsZero())
	assert.True(t, snap.Amount1.IsZero())
	assert.True(t, snap.ValueUSD.IsZero())
}

func TestBuildFeeFailureDegrades(t *testing.T) {
	reading := readingAt(t, 0, 1000)
	reading.FeeErr = model.NewTransportError("getFeeGrowthInside", errors.New("timeout"))

	snap, err := NewBuilder(nil, nil).Build(testConfig(), reading)
	require.NoError(t, err)
	assert.True(t, snap.InRange)
	assert.True(t, snap.FeesPendingUSD.IsZero())
	require.Len(t, snap.Degraded, 1)
	assert.Contains(t, snap.Degraded[0], "fees")
}

func TestBuildFeeSanityBoundDegrades(t *testing.T) {
	reading := readingAt(t, 0, 1000)
	reading.Fees = &model.FeeGrowth{
		InsideLast0: uint256.NewInt(5),
		InsideLast1: new(uint256.Int),
		Inside0:     uint256.NewInt(4),
		Inside1:     new(uint256.Int),
	}
	snap, err := NewBuilder(nil, nil).Build(testConfig(), reading)
	require.NoError(t, err)
	assert.True(t, snap.Fees0.IsZero())
	assert.NotEmpty(t, snap.Degraded)
}

func TestBuildPrefersCollectAmounts(t *testing.T) {
	reading := readingAt(t, 0, 1000)
	reading.Collect = &model.CollectAmounts{
		Amount0: uint256.NewInt(2_000_000_000_000_000_000),
		Amount1: uint256.NewInt(500_000_000_000_000_000),
	}
	snap, err := NewBuilder(nil, nil).Build(testConfig(), reading)
	require.NoError(t, err)
	assert.Equal(t, "2", snap.Fees0.String())
	assert.Equal(t, "0.5", snap.Fees1.String())
	assert.InDelta(t, 2.5, snap.FeesPendingUSD.InexactFloat64(), 1e-9)
}

func TestBuildWithoutReferencePrice(t *testing.T) {
	cfg := testConfig()
	cfg.Analytics = nil
	snap, err := NewBuilder(nil, nil).Build(cfg, readingAt(t, 0, 1000))
	require.NoError(t, err)
	assert.True(t, snap.ValueUSD.IsZero())
	assert.Nil(t, snap.ROI)
	assert.Contains(t, snap.Degraded, "usd: no reference price")
}

func TestBuildReferenceToken0(t *testing.T) {
	cfg := testConfig()
	cfg.Analytics.ReferenceToken = model.ReferenceToken0
	cfg.Analytics.ReferencePriceUSD = 2

	reading := readingAt(t, 6932, 1000) // price ~2 token1 per token0
	reading.Collect = &model.CollectAmounts{
		Amount0: uint256.NewInt(1_000_000_000_000_000_000),
		Amount1: uint256.NewInt(2_000_000_000_000_000_000),
	}
	snap, err := NewBuilder(nil, nil).Build(cfg, reading)
	require.NoError(t, err)
	// 1 token0 at $2 plus 2 token1 at ~$1.
	assert.InDelta(t, 4.0, snap.FeesPendingUSD.InexactFloat64(), 1e-3)
}

func TestAnalyticsFormulas(t *testing.T) {
	cfg := testConfig()
	reading := readingAt(t, 0, 0)
	reading.Collect = &model.CollectAmounts{
		Amount0: new(uint256.Int),
		Amount1: uint256.NewInt(10_000_000_000_000_000_000),
	}
	snap, err := NewBuilder(nil, nil).Build(cfg, reading)
	require.NoError(t, err)

	// value 0 + fees 10 against 1000 over 10 days.
	require.NotNil(t, snap.ROI)
	assert.InDelta(t, (10.0-1000.0)/1000.0*100, *snap.ROI, 1e-9)
	require.NotNil(t, snap.APR)
	assert.InDelta(t, 10.0/1000.0/10*365*100, *snap.APR, 1e-9)
	require.NotNil(t, snap.BreakevenDays)
	assert.InDelta(t, 1000.0, *snap.BreakevenDays, 1e-9)
}

func TestBuildRejectsBadReading(t *testing.T) {
	b := NewBuilder(nil, nil)
	_, err := b.Build(testConfig(), model.RawPoolReading{Tick: 0})
	assert.True(t, model.IsData(err))

	_, err = b.Build(testConfig(), model.RawPoolReading{Tick: model.MaxTick + 1, SqrtPriceX96: pricemath.Q96})
	assert.True(t, model.IsData(err))

	_, err = b.Build(nil, model.RawPoolReading{})
	assert.Error(t, err)
}

func TestToDecimal(t *testing.T) {
	assert.Equal(t, "1.5", ToDecimal(uint256.NewInt(1_500_000), 6).String())
	assert.Equal(t, "0", ToDecimal(nil, 6).String())
	assert.Equal(t, "42", ToDecimal(uint256.NewInt(42), 0).String())
}
