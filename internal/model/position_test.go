package model

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func validV3() PositionConfig {
	return PositionConfig{
		ID:             "weth-usdc",
		Name:           "WETH/USDC",
		Protocol:       ProtocolV3,
		Token0Decimals: 18,
		Token1Decimals: 6,
		TickLower:      -600,
		TickUpper:      600,
		V3: &V3Ref{
			PoolAddress:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
			NFTID:           big.NewInt(42),
			PositionManager: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		},
	}
}

func TestPositionConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(p *PositionConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(p *PositionConfig) {}},
		{name: "missing id", mutate: func(p *PositionConfig) { p.ID = "" }, wantErr: "id is required"},
		{name: "inverted ticks", mutate: func(p *PositionConfig) { p.TickLower = 600; p.TickUpper = -600 }, wantErr: "must be below"},
		{name: "tick out of domain", mutate: func(p *PositionConfig) { p.TickUpper = MaxTick + 1 }, wantErr: "out of bounds"},
		{name: "missing v3 ref", mutate: func(p *PositionConfig) { p.V3 = nil }, wantErr: "v3 reference"},
		{name: "zero nft", mutate: func(p *PositionConfig) { p.V3.NFTID = big.NewInt(0) }, wantErr: "nft id"},
		{name: "unknown protocol", mutate: func(p *PositionConfig) { p.Protocol = "v2" }, wantErr: "unsupported protocol"},
		{name: "bad reference token", mutate: func(p *PositionConfig) {
			p.Analytics = &AnalyticsConfig{ReferenceToken: "usd"}
		}, wantErr: "reference token"},
		{name: "v4 without state view", mutate: func(p *PositionConfig) {
			p.Protocol = ProtocolV4
			p.V3 = nil
			p.V4 = &V4Ref{PoolID: common.HexToHash("0x01"), PositionTokenID: big.NewInt(7)}
		}, wantErr: "state view"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validV3()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPositionConfigAccessors(t *testing.T) {
	p := validV3()
	if p.TokenID().Int64() != 42 {
		t.Fatalf("token id mismatch: %s", p.TokenID())
	}
	if p.Manager() != p.V3.PositionManager {
		t.Fatalf("manager mismatch: %s", p.Manager().Hex())
	}
	s0, s1 := p.Symbols()
	if s0 != "token0" || s1 != "token1" {
		t.Fatalf("unexpected fallback symbols %s/%s", s0, s1)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("read slot0: %w", NewTransportError("slot0", base))
	if !IsTransport(err) || IsData(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause")
	}
	if NewTransportError("noop", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}

	dataErr := fmt.Errorf("decode: %w", NewDataError("liquidity", "negative value %d", -1))
	if !IsData(dataErr) || IsTransport(dataErr) {
		t.Fatalf("expected data error, got %v", dataErr)
	}
}
