package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "lpmonitor",
		Short:        "Concentrated liquidity position monitor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor positions on a fixed interval",
		RunE:  runMonitor,
	}
	addMonitorFlags(runCmd)
	root.AddCommand(runCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check cycle and print snapshots as JSON lines",
		RunE:  runCheck,
	}
	addMonitorFlags(checkCmd)
	root.AddCommand(checkCmd)

	poolIDCmd := &cobra.Command{
		Use:   "pool-id",
		Short: "Compute a V4 pool id from its pool key",
		RunE:  runPoolID,
	}
	poolIDCmd.Flags().String("currency0", "", "first currency address (0x0 for native)")
	poolIDCmd.Flags().String("currency1", "", "second currency address")
	poolIDCmd.Flags().Uint32("fee", 3000, "pool fee in hundredths of a bip")
	poolIDCmd.Flags().Int32("tick-spacing", 60, "pool tick spacing")
	poolIDCmd.Flags().String("hooks", "0x0000000000000000000000000000000000000000", "hooks contract address")
	root.AddCommand(poolIDCmd)

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect a V3 position and print a config entry",
		RunE:  runDetect,
	}
	detectCmd.Flags().String("rpc", "", "RPC URL")
	detectCmd.Flags().String("position-manager", "", "V3 NonfungiblePositionManager address")
	detectCmd.Flags().String("nft-id", "", "position NFT id")
	detectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(detectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addMonitorFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().Uint64("chain-id", 0, "chain id, 0 asks the node")
	cmd.Flags().Float64("check-interval-minutes", 5, "minutes between check cycles")
	cmd.Flags().Int("max-retries", 3, "maximum retry attempts per RPC call")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("call-timeout", 20*time.Second, "timeout of a single RPC call")
	cmd.Flags().String("fee-source", "accumulator", "pending fee source (accumulator, collect)")
	cmd.Flags().String("snapshot-out", "", "optional JSONL snapshot output path")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshot history")
	cmd.Flags().Int("error-alert-after", 3, "consecutive failures before an error alert, 0 disables")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
