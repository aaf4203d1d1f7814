package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the valuation of one position for one cycle.
type Snapshot struct {
	PositionID string   `json:"position_id"`
	Name       string   `json:"name"`
	Protocol   Protocol `json:"protocol"`

	Tick             int32   `json:"tick"`
	TickLower        int32   `json:"tick_lower"`
	TickUpper        int32   `json:"tick_upper"`
	Price            float64 `json:"price"`
	PriceLower       float64 `json:"price_lower"`
	PriceUpper       float64 `json:"price_upper"`
	InRange          bool    `json:"in_range"`
	DeviationPercent float64 `json:"deviation_percent"`

	Liquidity string          `json:"liquidity"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
	ValueUSD  decimal.Decimal `json:"value_usd"`

	Fees0          decimal.Decimal `json:"fees0"`
	Fees1          decimal.Decimal `json:"fees1"`
	FeesPendingUSD decimal.Decimal `json:"fees_pending_usd"`

	ROI           *float64 `json:"roi,omitempty"`
	APR           *float64 `json:"apr,omitempty"`
	BreakevenDays *float64 `json:"breakeven_days,omitempty"`

	// Degraded lists why valuation fields were left at zero.
	Degraded []string `json:"degraded,omitempty"`

	TakenAt time.Time `json:"taken_at"`

	Config *PositionConfig `json:"-"`
}
