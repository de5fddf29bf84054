package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangeKeeper/internal/chain"
	"rangeKeeper/internal/config"
	"rangeKeeper/internal/dex"
	"rangeKeeper/internal/monitor"
	"rangeKeeper/internal/optimizer"
	"rangeKeeper/internal/storage"
)

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadMonitor(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if cfg.Chain.ChainID != 0 && chainID.Uint64() != cfg.Chain.ChainID {
		return fmt.Errorf("rpc chain id %s does not match configured %d", chainID, cfg.Chain.ChainID)
	}

	positions, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	reader := dex.NewPoolReader(chainClient, chainID.Uint64(), logger)
	for _, pool := range config.NewRegistry(cfg.Pools).Enabled() {
		if _, err := reader.Meta(ctx, pool.Address); err != nil {
			logger.Warn("pool metadata warmup failed", zap.String("pool", pool.Name), zap.Error(err))
		}
	}

	feed, _, err := newFeed(cfg.Feeds, reader, logger)
	if err != nil {
		return err
	}

	gas := &optimizer.MarketGasOracle{
		Gas:      chainClient,
		Native:   feed,
		Fallback: cfg.Strategy.FallbackGas(),
		Logger:   logger,
	}
	opt, err := optimizer.New(cfg.Strategy.Optimizer(), feed, gas, logger)
	if err != nil {
		return err
	}

	executor, err := newExecutor(cfg, chainClient, chainID, reader, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitor.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	mon, err := monitor.New(monitor.Config{
		SweepInterval: cfg.SweepInterval,
		IdleWait:      cfg.IdleWait,
		ErrorBackoff:  cfg.ErrorBackoff,
		Concurrency:   cfg.Concurrency,
		Policy:        cfg.Strategy.Policy(),
		SwapFraction:  cfg.Strategy.SwapFraction,
		DisableSwap:   cfg.Strategy.DisableSwap,
		DryRun:        cfg.DryRun,
	}, monitor.Deps{
		Store:     positions,
		Ticks:     reader,
		Pools:     feed,
		Optimizer: opt,
		Executor:  executor,
		Events:    storage.FanOut{positions, storage.NewJournal(cfg.Journal)},
		Metrics:   metrics,
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("monitor start",
		zap.String("rpc", cfg.Chain.RPCURL),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int("pools", len(cfg.Pools)),
		zap.Bool("dry_run", cfg.DryRun),
		zap.String("journal", cfg.Journal),
	)

	if err := mon.Run(ctx); err != nil && !monitor.IsShutdown(err) {
		return err
	}
	return nil
}

func newExecutor(cfg config.MonitorConfig, client *chain.Client, chainID *big.Int, reader *dex.PoolReader, logger *zap.Logger) (monitor.Executor, error) {
	if cfg.DryRun {
		return monitor.DryRunExecutor{Logger: logger}, nil
	}
	tx, err := chain.NewTransactor(client, cfg.Chain.PrivateKey, chain.TransactorConfig{
		ChainID:        chainID,
		ReceiptTimeout: cfg.Chain.ReceiptTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	execCfg := chain.ExecutorConfig{Deadline: cfg.Chain.TxDeadline}
	if cfg.Chain.PositionManager != "" {
		execCfg.PositionManager = common.HexToAddress(cfg.Chain.PositionManager)
	}
	if cfg.Chain.SwapRouter != "" {
		execCfg.SwapRouter = common.HexToAddress(cfg.Chain.SwapRouter)
	}
	logger.Info("signing account", zap.String("address", tx.From().Hex()))
	return chain.NewExecutor(tx, client, reader, execCfg, logger)
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
