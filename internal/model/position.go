package model

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol discriminates the position config variants.
type Protocol string

const (
	ProtocolV3 Protocol = "v3"
	ProtocolV4 Protocol = "v4"
)

// ReferenceToken names the side of the pair whose USD price is supplied by config.
type ReferenceToken string

const (
	ReferenceToken0 ReferenceToken = "token0"
	ReferenceToken1 ReferenceToken = "token1"
)

// MinTick and MaxTick bound the int24 tick domain of the host protocols.
const (
	MinTick = -887272
	MaxTick = 887272
)

// AutomationConfig holds the policy knobs for one position.
type AutomationConfig struct {
	Enabled                   bool
	AutoClaim                 bool
	AutoCompound              bool
	AutoRebalance             bool
	MinFeeToClaimUSD          float64
	RebalanceThresholdPercent float64
}

// AnalyticsConfig is the optional valuation baseline.
type AnalyticsConfig struct {
	InitialValueUSD   float64
	StartTime         time.Time
	ReferenceToken    ReferenceToken
	ReferencePriceUSD float64
}

// HasBaseline reports whether ROI/APR can be computed.
func (a *AnalyticsConfig) HasBaseline() bool {
	return a != nil && a.InitialValueUSD > 0
}

// V3Ref locates a position held as a V3 NFT.
type V3Ref struct {
	PoolAddress     common.Address
	NFTID           *big.Int
	PositionManager common.Address
}

// V4Ref locates a position held through the V4 PositionManager.
type V4Ref struct {
	PoolID          common.Hash
	PositionTokenID *big.Int
	StateView       common.Address
	PositionManager common.Address
}

// PositionConfig is immutable after load. Exactly one of V3/V4 is set,
// matching Protocol.
type PositionConfig struct {
	ID             string
	Name           string
	Protocol       Protocol
	ChainID        uint64
	Token0Decimals uint8
	Token1Decimals uint8
	Token0Symbol   string
	Token1Symbol   string
	TickLower      int32
	TickUpper      int32
	Automation     AutomationConfig
	Analytics      *AnalyticsConfig

	V3 *V3Ref
	V4 *V4Ref
}

// TokenID returns the NFT/position token id for either variant.
func (p PositionConfig) TokenID() *big.Int {
	switch p.Protocol {
	case ProtocolV3:
		if p.V3 != nil {
			return p.V3.NFTID
		}
	case ProtocolV4:
		if p.V4 != nil {
			return p.V4.PositionTokenID
		}
	}
	return nil
}

// Manager returns the position manager contract for either variant.
func (p PositionConfig) Manager() common.Address {
	switch p.Protocol {
	case ProtocolV3:
		if p.V3 != nil {
			return p.V3.PositionManager
		}
	case ProtocolV4:
		if p.V4 != nil {
			return p.V4.PositionManager
		}
	}
	return common.Address{}
}

// Symbols returns display symbols, falling back to token0/token1.
func (p PositionConfig) Symbols() (string, string) {
	s0, s1 := p.Token0Symbol, p.Token1Symbol
	if s0 == "" {
		s0 = "token0"
	}
	if s1 == "" {
		s1 = "token1"
	}
	return s0, s1
}

// Validate checks the invariants the engine relies on.
func (p PositionConfig) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("position id is required")
	}
	if p.TickLower >= p.TickUpper {
		return fmt.Errorf("position %s: tick lower %d must be below tick upper %d", p.ID, p.TickLower, p.TickUpper)
	}
	if p.TickLower < MinTick || p.TickUpper > MaxTick {
		return fmt.Errorf("position %s: ticks out of bounds [%d, %d]", p.ID, MinTick, MaxTick)
	}
	if p.Token0Decimals > 77 || p.Token1Decimals > 77 {
		return fmt.Errorf("position %s: token decimals must be <= 77", p.ID)
	}

	switch p.Protocol {
	case ProtocolV3:
		if p.V3 == nil {
			return fmt.Errorf("position %s: v3 reference is required", p.ID)
		}
		if p.V3.PoolAddress == (common.Address{}) {
			return fmt.Errorf("position %s: pool address is required", p.ID)
		}
		if p.V3.NFTID == nil || p.V3.NFTID.Sign() <= 0 {
			return fmt.Errorf("position %s: nft id is required", p.ID)
		}
		if p.V3.PositionManager == (common.Address{}) {
			return fmt.Errorf("position %s: position manager is required", p.ID)
		}
	case ProtocolV4:
		if p.V4 == nil {
			return fmt.Errorf("position %s: v4 reference is required", p.ID)
		}
		if p.V4.PoolID == (common.Hash{}) {
			return fmt.Errorf("position %s: pool id is required", p.ID)
		}
		if p.V4.PositionTokenID == nil || p.V4.PositionTokenID.Sign() <= 0 {
			return fmt.Errorf("position %s: position token id is required", p.ID)
		}
		if p.V4.StateView == (common.Address{}) || p.V4.PositionManager == (common.Address{}) {
			return fmt.Errorf("position %s: state view and position manager are required", p.ID)
		}
	default:
		return fmt.Errorf("position %s: unsupported protocol %q", p.ID, p.Protocol)
	}

	if p.Analytics != nil {
		switch p.Analytics.ReferenceToken {
		case ReferenceToken0, ReferenceToken1:
		default:
			return fmt.Errorf("position %s: unsupported reference token %q", p.ID, p.Analytics.ReferenceToken)
		}
		if p.Analytics.ReferencePriceUSD < 0 || p.Analytics.InitialValueUSD < 0 {
			return fmt.Errorf("position %s: analytics values must not be negative", p.ID)
		}
	}
	if p.Automation.MinFeeToClaimUSD < 0 || p.Automation.RebalanceThresholdPercent < 0 {
		return fmt.Errorf("position %s: automation thresholds must not be negative", p.ID)
	}
	return nil
}
