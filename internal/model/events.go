package model

import "github.com/shopspring/decimal"

// RangeEventKind identifies a range transition worth reporting.
type RangeEventKind string

const (
	EventInitialOutOfRange RangeEventKind = "initial_out_of_range"
	EventOutOfRange        RangeEventKind = "out_of_range"
	EventBackInRange       RangeEventKind = "back_in_range"
)

// RangeEvent is emitted by the range tracker on a state change.
type RangeEvent struct {
	Kind             RangeEventKind `json:"kind"`
	PositionID       string         `json:"position_id"`
	PositionName     string         `json:"position_name"`
	CurrentPrice     float64        `json:"current_price"`
	LowerPrice       float64        `json:"lower_price,omitempty"`
	UpperPrice       float64        `json:"upper_price,omitempty"`
	DeviationPercent float64        `json:"deviation_percent,omitempty"`
}

// Action is the fee action chosen by the automation policy.
type Action string

const (
	ActionNone     Action = "none"
	ActionClaim    Action = "claim"
	ActionCompound Action = "compound"
)

// ActionResult reports an executed automation action.
type ActionResult struct {
	Action       Action          `json:"action"`
	PositionID   string          `json:"position_id"`
	PositionName string          `json:"position_name"`
	Amount0      decimal.Decimal `json:"amount0"`
	Amount1      decimal.Decimal `json:"amount1"`
	Symbol0      string          `json:"symbol0"`
	Symbol1      string          `json:"symbol1"`
	TxRef        string          `json:"tx_ref"`
	// IncreaseTxRef is set for compound when liquidity was re-supplied.
	IncreaseTxRef string `json:"increase_tx_ref,omitempty"`
}

// RebalanceSignal reports that a position breached the rebalance threshold.
type RebalanceSignal struct {
	PositionID       string  `json:"position_id"`
	PositionName     string  `json:"position_name"`
	CurrentPrice     float64 `json:"current_price"`
	DeviationPercent float64 `json:"deviation_percent"`
	ThresholdPercent float64 `json:"threshold_percent"`
}
