package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpMonitor/internal/chain"
	"lpMonitor/internal/config"
	"lpMonitor/internal/dex"
)

func runPoolID(cmd *cobra.Command, _ []string) error {
	currency0, _ := cmd.Flags().GetString("currency0")
	currency1, _ := cmd.Flags().GetString("currency1")
	hooks, _ := cmd.Flags().GetString("hooks")
	fee, _ := cmd.Flags().GetUint32("fee")
	spacing, _ := cmd.Flags().GetInt32("tick-spacing")

	addrs := make([]common.Address, 0, 3)
	for _, item := range []struct{ name, value string }{
		{"currency0", currency0},
		{"currency1", currency1},
		{"hooks", hooks},
	} {
		if !common.IsHexAddress(item.value) {
			return fmt.Errorf("%s: invalid address %q", item.name, item.value)
		}
		addrs = append(addrs, common.HexToAddress(item.value))
	}

	key := dex.PoolKey{
		Currency0:   addrs[0],
		Currency1:   addrs[1],
		Fee:         fee,
		TickSpacing: spacing,
		Hooks:       addrs[2],
	}.Sorted()
	id, err := dex.ComputePoolID(key)
	if err != nil {
		return err
	}

	fmt.Printf("currency0:    %s\n", key.Currency0.Hex())
	fmt.Printf("currency1:    %s\n", key.Currency1.Hex())
	fmt.Printf("fee:          %d\n", key.Fee)
	fmt.Printf("tick spacing: %d\n", key.TickSpacing)
	fmt.Printf("hooks:        %s\n", key.Hooks.Hex())
	fmt.Printf("pool id:      %s\n", id.Hex())
	return nil
}

func runDetect(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	manager, _ := cmd.Flags().GetString("position-manager")
	if !common.IsHexAddress(manager) {
		return fmt.Errorf("position-manager: invalid address %q", manager)
	}
	rawID, _ := cmd.Flags().GetString("nft-id")
	nftID, ok := new(big.Int).SetString(rawID, 0)
	if !ok || nftID.Sign() <= 0 {
		return fmt.Errorf("nft-id: invalid id %q", rawID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		Retry:       chain.RetryConfig{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff},
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	chainID := cfg.ChainID
	if chainID == 0 {
		id, err := client.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
		chainID = id.Uint64()
	}

	detected, err := dex.DetectV3(ctx, client, common.HexToAddress(manager), nftID, dex.NewTokenMetaCache(), logger)
	if err != nil {
		return err
	}
	logger.Info("position detected",
		zap.String("pool", detected.Pool.Address),
		zap.String("pair", detected.Pool.Token0.Symbol+"/"+detected.Pool.Token1.Symbol),
		zap.Int32("tick_lower", detected.TickLower),
		zap.Int32("tick_upper", detected.TickUpper),
		zap.String("liquidity", detected.Liquidity),
	)

	entry, err := config.DetectedEntry(detected, chainID)
	if err != nil {
		return err
	}
	fmt.Print(string(entry))
	return nil
}
