package model

// TokenMeta captures the ERC20 fields needed for display and scaling.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// PoolMeta captures immutable pool metadata.
type PoolMeta struct {
	Address     string    `json:"address"`
	Token0      TokenMeta `json:"token0"`
	Token1      TokenMeta `json:"token1"`
	Fee         uint32    `json:"fee"`
	TickSpacing int32     `json:"tick_spacing"`
}

// DetectedPosition is what the position manager reports for an NFT id.
type DetectedPosition struct {
	NFTID           string   `json:"nft_id"`
	PositionManager string   `json:"position_manager"`
	TickLower       int32    `json:"tick_lower"`
	TickUpper       int32    `json:"tick_upper"`
	Liquidity       string   `json:"liquidity"`
	Pool            PoolMeta `json:"pool"`
}
