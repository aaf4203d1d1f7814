package snapshot

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpMonitor/internal/fees"
	"lpMonitor/internal/model"
	"lpMonitor/internal/pricemath"
)

var (
	hundred     = decimal.NewFromInt(100)
	daysPerYear = decimal.NewFromInt(365)
)

// Builder turns a raw chain reading into a valuation snapshot.
type Builder struct {
	fees   *fees.Calculator
	now    func() time.Time
	logger *zap.Logger
}

// NewBuilder builds a Builder; a nil calculator uses the default fee bound.
func NewBuilder(calc *fees.Calculator, logger *zap.Logger) *Builder {
	if calc == nil {
		calc = fees.NewCalculator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{fees: calc, now: time.Now, logger: logger}
}

// WithClock overrides the time source used for analytics.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build produces the snapshot. It only fails when the core reading is
// unusable; valuation problems are recorded in Snapshot.Degraded.
func (b *Builder) Build(cfg *model.PositionConfig, reading model.RawPoolReading) (model.Snapshot, error) {
	if cfg == nil {
		return model.Snapshot{}, fmt.Errorf("position config is nil")
	}
	if reading.Tick < model.MinTick || reading.Tick > model.MaxTick {
		return model.Snapshot{}, model.NewDataError("tick", "%d outside [%d, %d]", reading.Tick, model.MinTick, model.MaxTick)
	}
	if reading.SqrtPriceX96 == nil || reading.SqrtPriceX96.IsZero() {
		return model.Snapshot{}, model.NewDataError("sqrtPriceX96", "missing or zero")
	}

	liquidity := reading.PositionLiquidity
	if liquidity == nil {
		liquidity = new(uint256.Int)
	}

	takenAt := reading.ReadAt
	if takenAt.IsZero() {
		takenAt = b.now()
	}

	snap := model.Snapshot{
		PositionID: cfg.ID,
		Name:       cfg.Name,
		Protocol:   cfg.Protocol,
		Tick:       reading.Tick,
		TickLower:  cfg.TickLower,
		TickUpper:  cfg.TickUpper,
		Price:      pricemath.TickToPrice(reading.Tick, cfg.Token0Decimals, cfg.Token1Decimals),
		PriceLower: pricemath.TickToPrice(cfg.TickLower, cfg.Token0Decimals, cfg.Token1Decimals),
		PriceUpper: pricemath.TickToPrice(cfg.TickUpper, cfg.Token0Decimals, cfg.Token1Decimals),
		InRange:    pricemath.InRange(reading.Tick, cfg.TickLower, cfg.TickUpper),
		Liquidity:  liquidity.ToBig().String(),
		TakenAt:    takenAt,
		Config:     cfg,
	}
	snap.DeviationPercent = pricemath.Deviation(snap.Tick, snap.TickLower, snap.TickUpper, snap.Price, snap.PriceLower, snap.PriceUpper)

	if !liquidity.IsZero() {
		amount0, amount1, err := pricemath.AmountsForLiquidity(reading.Tick, reading.SqrtPriceX96, cfg.TickLower, cfg.TickUpper, liquidity)
		if err != nil {
			snap.Degraded = append(snap.Degraded, "amounts: "+err.Error())
		} else {
			snap.Amount0 = ToDecimal(amount0, cfg.Token0Decimals)
			snap.Amount1 = ToDecimal(amount1, cfg.Token1Decimals)
		}
	}

	feeAmounts, err := b.pendingFees(reading, liquidity)
	if err != nil {
		snap.Degraded = append(snap.Degraded, "fees: "+err.Error())
		b.logger.Debug("fee valuation degraded", zap.String("position", cfg.ID), zap.Error(err))
	} else {
		snap.Fees0 = ToDecimal(feeAmounts.Amount0, cfg.Token0Decimals)
		snap.Fees1 = ToDecimal(feeAmounts.Amount1, cfg.Token1Decimals)
	}

	token0USD, token1USD, ok := usdPrices(cfg.Analytics, snap.Price)
	if !ok {
		snap.Degraded = append(snap.Degraded, "usd: no reference price")
		return snap, nil
	}
	snap.ValueUSD = snap.Amount0.Mul(token0USD).Add(snap.Amount1.Mul(token1USD))
	snap.FeesPendingUSD = snap.Fees0.Mul(token0USD).Add(snap.Fees1.Mul(token1USD))

	if cfg.Analytics.HasBaseline() {
		b.applyAnalytics(&snap, cfg.Analytics, takenAt)
	}
	return snap, nil
}

func (b *Builder) pendingFees(reading model.RawPoolReading, liquidity *uint256.Int) (fees.Amounts, error) {
	if reading.Collect != nil {
		amounts := fees.Amounts{Amount0: reading.Collect.Amount0, Amount1: reading.Collect.Amount1}
		if amounts.Amount0 == nil || amounts.Amount1 == nil {
			return fees.ZeroAmounts(), model.NewDataError("collect", "missing amounts")
		}
		return amounts, nil
	}
	if reading.Fees == nil {
		if reading.FeeErr != nil {
			return fees.ZeroAmounts(), reading.FeeErr
		}
		return fees.ZeroAmounts(), fmt.Errorf("no fee reading")
	}
	return b.fees.Accrued(reading.Fees, liquidity)
}

func (b *Builder) applyAnalytics(snap *model.Snapshot, analytics *model.AnalyticsConfig, now time.Time) {
	initial := decimal.NewFromFloat(analytics.InitialValueUSD)

	roi, _ := snap.ValueUSD.Add(snap.FeesPendingUSD).Sub(initial).Div(initial).Mul(hundred).Float64()
	snap.ROI = &roi

	if analytics.StartTime.IsZero() {
		return
	}
	days := now.Sub(analytics.StartTime).Hours() / 24
	if days <= 0 {
		return
	}
	daysDec := decimal.NewFromFloat(days)

	apr, _ := snap.FeesPendingUSD.Div(initial).Div(daysDec).Mul(daysPerYear).Mul(hundred).Float64()
	snap.APR = &apr

	daily := snap.FeesPendingUSD.Div(daysDec)
	if daily.IsPositive() {
		breakeven, _ := initial.Div(daily).Float64()
		snap.BreakevenDays = &breakeven
	}
}

// usdPrices resolves per-token USD prices from the configured reference side.
func usdPrices(analytics *model.AnalyticsConfig, price float64) (decimal.Decimal, decimal.Decimal, bool) {
	if analytics == nil || analytics.ReferencePriceUSD <= 0 || price <= 0 {
		return decimal.Zero, decimal.Zero, false
	}
	ref := decimal.NewFromFloat(analytics.ReferencePriceUSD)
	p := decimal.NewFromFloat(price)

	if analytics.ReferenceToken == model.ReferenceToken0 {
		return ref, ref.Div(p), true
	}
	return p.Mul(ref), ref, true
}

// ToDecimal scales a native integer amount by 10^-decimals.
func ToDecimal(amount *uint256.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals))
}
