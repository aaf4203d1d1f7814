package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"lpMonitor/internal/model"
)

type automationEntry struct {
	Enabled                   bool    `mapstructure:"enabled" yaml:"enabled,omitempty"`
	AutoClaim                 bool    `mapstructure:"auto-claim" yaml:"auto-claim,omitempty"`
	AutoCompound              bool    `mapstructure:"auto-compound" yaml:"auto-compound,omitempty"`
	AutoRebalance             bool    `mapstructure:"auto-rebalance" yaml:"auto-rebalance,omitempty"`
	MinFeeToClaimUSD          float64 `mapstructure:"min-fee-to-claim-usd" yaml:"min-fee-to-claim-usd,omitempty"`
	RebalanceThresholdPercent float64 `mapstructure:"rebalance-threshold-percent" yaml:"rebalance-threshold-percent,omitempty"`
}

type analyticsEntry struct {
	InitialValueUSD   float64 `mapstructure:"initial-value-usd" yaml:"initial-value-usd,omitempty"`
	StartTime         string  `mapstructure:"start-time" yaml:"start-time,omitempty"`
	ReferenceToken    string  `mapstructure:"reference-token" yaml:"reference-token,omitempty"`
	ReferencePriceUSD float64 `mapstructure:"reference-price-usd" yaml:"reference-price-usd,omitempty"`
}

// positionEntry is the file schema of one position.
type positionEntry struct {
	ID             string `mapstructure:"id" yaml:"id,omitempty"`
	Name           string `mapstructure:"name" yaml:"name,omitempty"`
	Protocol       string `mapstructure:"protocol" yaml:"protocol,omitempty"`
	ChainID        uint64 `mapstructure:"chain-id" yaml:"chain-id,omitempty"`
	Token0Decimals uint8  `mapstructure:"token0-decimals" yaml:"token0-decimals"`
	Token1Decimals uint8  `mapstructure:"token1-decimals" yaml:"token1-decimals"`
	Token0Symbol   string `mapstructure:"token0-symbol" yaml:"token0-symbol,omitempty"`
	Token1Symbol   string `mapstructure:"token1-symbol" yaml:"token1-symbol,omitempty"`
	TickLower      int32  `mapstructure:"tick-lower" yaml:"tick-lower"`
	TickUpper      int32  `mapstructure:"tick-upper" yaml:"tick-upper"`

	PoolAddress     string `mapstructure:"pool-address" yaml:"pool-address,omitempty"`
	NFTID           string `mapstructure:"nft-id" yaml:"nft-id,omitempty"`
	PositionManager string `mapstructure:"position-manager" yaml:"position-manager,omitempty"`

	PoolID          string `mapstructure:"pool-id" yaml:"pool-id,omitempty"`
	PositionTokenID string `mapstructure:"position-token-id" yaml:"position-token-id,omitempty"`
	StateView       string `mapstructure:"state-view" yaml:"state-view,omitempty"`

	Automation automationEntry `mapstructure:"automation" yaml:"automation,omitempty"`
	Analytics  *analyticsEntry `mapstructure:"analytics" yaml:"analytics,omitempty"`
}

func buildPositions(entries []positionEntry, chainID uint64, contracts Contracts) ([]*model.PositionConfig, error) {
	out := make([]*model.PositionConfig, 0, len(entries))
	for i, entry := range entries {
		p, err := entry.toModel(chainID, contracts)
		if err != nil {
			label := entry.ID
			if label == "" {
				label = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("position %s: %w", label, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (e positionEntry) toModel(chainID uint64, contracts Contracts) (*model.PositionConfig, error) {
	p := &model.PositionConfig{
		ID:             strings.TrimSpace(e.ID),
		Name:           strings.TrimSpace(e.Name),
		Protocol:       model.Protocol(strings.ToLower(strings.TrimSpace(e.Protocol))),
		ChainID:        e.ChainID,
		Token0Decimals: e.Token0Decimals,
		Token1Decimals: e.Token1Decimals,
		Token0Symbol:   e.Token0Symbol,
		Token1Symbol:   e.Token1Symbol,
		TickLower:      e.TickLower,
		TickUpper:      e.TickUpper,
		Automation: model.AutomationConfig{
			Enabled:                   e.Automation.Enabled,
			AutoClaim:                 e.Automation.AutoClaim,
			AutoCompound:              e.Automation.AutoCompound,
			AutoRebalance:             e.Automation.AutoRebalance,
			MinFeeToClaimUSD:          e.Automation.MinFeeToClaimUSD,
			RebalanceThresholdPercent: e.Automation.RebalanceThresholdPercent,
		},
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.ChainID == 0 {
		p.ChainID = chainID
	}

	var err error
	switch p.Protocol {
	case model.ProtocolV3:
		ref := &model.V3Ref{}
		if ref.PoolAddress, err = parseAddress("pool-address", e.PoolAddress); err != nil {
			return nil, err
		}
		if ref.NFTID, err = parseBigInt("nft-id", e.NFTID); err != nil {
			return nil, err
		}
		if ref.PositionManager, err = parseAddress("position-manager", e.PositionManager); err != nil {
			return nil, err
		}
		p.V3 = ref
	case model.ProtocolV4:
		ref := &model.V4Ref{}
		if ref.PoolID, err = parseHash("pool-id", e.PoolID); err != nil {
			return nil, err
		}
		if ref.PositionTokenID, err = parseBigInt("position-token-id", e.PositionTokenID); err != nil {
			return nil, err
		}
		if ref.StateView, err = parseAddress("state-view", firstNonEmpty(e.StateView, contracts.V4StateView)); err != nil {
			return nil, err
		}
		if ref.PositionManager, err = parseAddress("position-manager", firstNonEmpty(e.PositionManager, contracts.V4PositionManager)); err != nil {
			return nil, err
		}
		p.V4 = ref
	default:
		return nil, fmt.Errorf("unsupported protocol %q", e.Protocol)
	}

	if e.Analytics != nil {
		analytics, err := e.Analytics.toModel()
		if err != nil {
			return nil, err
		}
		p.Analytics = analytics
	}
	return p, nil
}

func (e analyticsEntry) toModel() (*model.AnalyticsConfig, error) {
	a := &model.AnalyticsConfig{
		InitialValueUSD:   e.InitialValueUSD,
		ReferenceToken:    model.ReferenceToken(strings.ToLower(strings.TrimSpace(e.ReferenceToken))),
		ReferencePriceUSD: e.ReferencePriceUSD,
	}
	if a.ReferenceToken == "" {
		a.ReferenceToken = model.ReferenceToken1
	}
	if s := strings.TrimSpace(e.StartTime); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("start-time: %w", err)
		}
		a.StartTime = ts
	}
	return a, nil
}

func parseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	return common.HexToAddress(value), nil
}

func parseHash(field, value string) (common.Hash, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Hash{}, fmt.Errorf("%s is required", field)
	}
	raw, err := hexutil.Decode(value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", field, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s: expected %d bytes, got %d", field, common.HashLength, len(raw))
	}
	return common.BytesToHash(raw), nil
}

// parseBigInt accepts decimal or 0x-prefixed hex.
func parseBigInt(field, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	n, ok := new(big.Int).SetString(value, 0)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("%s: invalid id %q", field, value)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DetectedEntry renders a detected V3 position as a config file entry.
func DetectedEntry(d model.DetectedPosition, chainID uint64) ([]byte, error) {
	sym0, sym1 := d.Pool.Token0.Symbol, d.Pool.Token1.Symbol
	entry := positionEntry{
		ID:              fmt.Sprintf("v3-%s", d.NFTID),
		Name:            fmt.Sprintf("%s/%s V3", sym0, sym1),
		Protocol:        string(model.ProtocolV3),
		ChainID:         chainID,
		Token0Decimals:  d.Pool.Token0.Decimals,
		Token1Decimals:  d.Pool.Token1.Decimals,
		Token0Symbol:    sym0,
		Token1Symbol:    sym1,
		TickLower:       d.TickLower,
		TickUpper:       d.TickUpper,
		PoolAddress:     d.Pool.Address,
		NFTID:           d.NFTID,
		PositionManager: d.PositionManager,
	}
	out, err := yaml.Marshal([]positionEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return out, nil
}
