package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpMonitor/internal/automation"
	"lpMonitor/internal/chain"
	"lpMonitor/internal/config"
	"lpMonitor/internal/dex"
	"lpMonitor/internal/monitor"
	"lpMonitor/internal/notify"
	"lpMonitor/internal/snapshot"
	"lpMonitor/internal/storage"
	"lpMonitor/internal/storage/postgres"
)

// app is the wired monitor with the resources it holds open.
type app struct {
	monitor *monitor.Monitor
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, nil, err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		logger.Sync()
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.monitor.Run(ctx)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.monitor.CheckOnce(ctx)
	if err := storage.WriteSnapshots(os.Stdout, result.Snapshots); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d positions failed", len(result.Failed), len(cfg.Positions))
	}
	return nil
}

// buildApp wires the chain client, adapters, notifier and sinks. Writes and
// notifications are only enabled when automate is set.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger, automate bool) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		Retry:       chain.RetryConfig{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff},
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	readerOpts := dex.ReaderOptions{FeeSource: dex.FeeSource(cfg.FeeSource), Logger: logger}
	var executor *automation.Executor
	if automate && cfg.PrivateKey != "" {
		chainID := new(big.Int).SetUint64(cfg.ChainID)
		if cfg.ChainID == 0 {
			if chainID, err = client.ChainID(ctx); err != nil {
				return nil, fmt.Errorf("chain id: %w", err)
			}
		}
		transactor, err := chain.NewTransactor(client.Backend(), cfg.PrivateKey, chainID, cfg.TxDeadline, logger)
		if err != nil {
			return nil, err
		}
		wallet := transactor.From()
		readerOpts.Owner = &wallet

		writer := dex.NewPositionWriter(client, transactor, dex.WriterOptions{
			Deadline:    cfg.TxDeadline,
			SlippageBps: uint32(cfg.SlippageBps),
			Logger:      logger,
		})
		executor = automation.NewExecutor(writer, automation.WithdrawStrategy{Logger: logger}, logger)
		logger.Info("automation writes enabled", zap.String("wallet", wallet.Hex()), zap.String("chain_id", chainID.String()))
	} else {
		executor = automation.NewExecutor(nil, nil, logger)
		if automate {
			logger.Info("no private key configured, automation runs as dry run")
		}
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if automate && cfg.TelegramToken != "" {
		chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram-chat-id: %w", err)
		}
		tg, err := notify.NewTelegram(cfg.TelegramToken, chatID, logger)
		if err != nil {
			return nil, err
		}
		notifier = tg
	}

	deps := monitor.Deps{
		Reader:   dex.NewChainReader(client, readerOpts),
		Builder:  snapshot.NewBuilder(nil, logger),
		Executor: executor,
		Notifier: notifier,
	}

	if automate {
		var sinks storage.Multi
		if cfg.SnapshotOut != "" {
			sinks = append(sinks, storage.NewJsonlStorage(cfg.SnapshotOut))
		}
		if cfg.PGDSN != "" {
			store, err := postgres.NewStore(ctx, cfg.PGDSN)
			if err != nil {
				return nil, fmt.Errorf("connect postgres: %w", err)
			}
			a.closers = append(a.closers, store.Close)
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, err
			}
			sinks = append(sinks, store)
			deps.Actions = store
			logger.Info("postgres sink enabled", zap.String("dsn", postgres.RedactDSN(cfg.PGDSN)))
		}
		if len(sinks) > 0 {
			deps.Sink = sinks
		}
	}

	a.monitor = monitor.NewMonitor(monitor.Config{
		Interval:        cfg.CheckInterval,
		ErrorAlertAfter: cfg.ErrorAlertAfter,
	}, cfg.Positions, deps, logger)

	logger.Info("monitor configured",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("positions", len(cfg.Positions)),
		zap.Duration("interval", cfg.CheckInterval),
		zap.String("fee_source", cfg.FeeSource),
		zap.Bool("telegram", cfg.TelegramToken != ""),
	)
	ok = true
	return a, nil
}
