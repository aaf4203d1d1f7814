package pricemath

import (
	"fmt"
	"math"
)

// tickBase is the price ratio between adjacent ticks.
const tickBase = 1.0001

var lnTickBase = math.Log(tickBase)

// TickToRawPrice returns 1.0001^tick, the token1/token0 ratio in raw units.
func TickToRawPrice(tick int32) float64 {
	return math.Pow(tickBase, float64(tick))
}

// DecimalAdjustedPrice scales a raw ratio into the display price of token0
// denominated in token1.
func DecimalAdjustedPrice(rawPrice float64, decimals0, decimals1 uint8) float64 {
	return rawPrice * math.Pow10(int(decimals0)-int(decimals1))
}

// TickToPrice is TickToRawPrice followed by DecimalAdjustedPrice.
func TickToPrice(tick int32, decimals0, decimals1 uint8) float64 {
	return DecimalAdjustedPrice(TickToRawPrice(tick), decimals0, decimals1)
}

// PriceToTick inverts TickToRawPrice, rounding toward negative infinity.
// Only for diagnostics: chain readings always carry the authoritative tick.
func PriceToTick(rawPrice float64) (int32, error) {
	if rawPrice <= 0 || math.IsNaN(rawPrice) || math.IsInf(rawPrice, 0) {
		return 0, fmt.Errorf("price must be positive and finite: %v", rawPrice)
	}
	tick := math.Floor(math.Log(rawPrice) / lnTickBase)
	if tick < math.MinInt32 || tick > math.MaxInt32 {
		return 0, fmt.Errorf("tick overflow for price %v", rawPrice)
	}
	return int32(tick), nil
}

// DisplayPriceToTick inverts TickToPrice.
func DisplayPriceToTick(price float64, decimals0, decimals1 uint8) (int32, error) {
	return PriceToTick(price / math.Pow10(int(decimals0)-int(decimals1)))
}

// InRange compares ticks only; both bounds are inclusive.
func InRange(tick, tickLower, tickUpper int32) bool {
	return tickLower <= tick && tick <= tickUpper
}

// Deviation is the percentage distance from the breached bound, zero when
// the tick is in range.
func Deviation(tick, tickLower, tickUpper int32, price, priceLower, priceUpper float64) float64 {
	switch {
	case tick < tickLower:
		if priceLower == 0 {
			return 0
		}
		return (priceLower - price) / priceLower * 100
	case tick > tickUpper:
		if priceUpper == 0 {
			return 0
		}
		return (price - priceUpper) / priceUpper * 100
	default:
		return 0
	}
}
