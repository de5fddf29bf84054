package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangeKeeper/internal/chain"
	"rangeKeeper/internal/config"
	"rangeKeeper/internal/dex"
	"rangeKeeper/internal/model"
	"rangeKeeper/internal/optimizer"
	"rangeKeeper/internal/tickmath"
	"rangeKeeper/internal/volatility"
)

func runOptimize(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOptimize(cfgFile, cmd.Flags())
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

	poolAddr, err := resolvePool(cfg.Pools, cfg.Pool)
	if err != nil {
		return err
	}

	gas := &optimizer.MarketGasOracle{Fallback: cfg.Strategy.FallbackGas(), Logger: logger}
	var snap model.PoolSnapshot

	if cfg.Chain.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		reader := dex.NewPoolReader(chainClient, cfg.Chain.ChainID, logger)
		feed, _, err := newFeed(cfg.Feeds, reader, logger)
		if err != nil {
			return err
		}
		gas.Gas = chainClient
		gas.Native = feed

		if snap, err = feed.Snapshot(ctx, poolAddr); err != nil {
			return err
		}
		return optimizeAndPrint(ctx, cfg, snap, feed, gas, logger)
	}

	// offline: registry metadata plus an explicit price
	pool, ok := config.NewRegistry(cfg.Pools).Lookup(poolAddr)
	if !ok || cfg.Price <= 0 {
		return model.NewConfigurationError("rpc", "required unless the pool is in the registry and --price is set")
	}
	if snap, err = offlineSnapshot(pool, cfg.Price); err != nil {
		return err
	}
	feed, _, err := newFeed(cfg.Feeds, nil, logger)
	if err != nil {
		return err
	}
	gas.Native = feed
	return optimizeAndPrint(ctx, cfg, snap, feed, gas, logger)
}

func offlineSnapshot(pool model.PoolConfig, price float64) (model.PoolSnapshot, error) {
	tick, err := tickmath.PriceToTick(tickmath.RawPrice(price, pool.Token0.Decimals, pool.Token1.Decimals), 1)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	return model.PoolSnapshot{
		Address:      common.HexToAddress(pool.Address).Hex(),
		Token0:       common.HexToAddress(pool.Token0.Address).Hex(),
		Token1:       common.HexToAddress(pool.Token1.Address).Hex(),
		Symbol0:      pool.Token0.Symbol,
		Symbol1:      pool.Token1.Symbol,
		Decimals0:    pool.Token0.Decimals,
		Decimals1:    pool.Token1.Decimals,
		FeeTier:      pool.FeeTier,
		CurrentTick:  tick,
		CurrentPrice: price,
		ObservedAt:   time.Now(),
	}, nil
}

func optimizeAndPrint(ctx context.Context, cfg config.OptimizeConfig, snap model.PoolSnapshot, history optimizer.PriceHistory, gas optimizer.GasOracle, logger *zap.Logger) error {
	opt, err := optimizer.New(cfg.Strategy.Optimizer(), history, gas, logger)
	if err != nil {
		return err
	}
	price := cfg.Price
	if price <= 0 {
		price = snap.CurrentPrice
	}

	rec, err := opt.CalculateOptimalRange(ctx, snap, price, cfg.Capital, cfg.Profile)
	if err != nil {
		return err
	}
	volPct := rec.Volatility * 100
	prob, err := volatility.OutOfRangeProbability(volPct, rec.Width(), rec.TargetDurationHours*60)
	if err != nil {
		return err
	}

	pair := fmt.Sprintf("%s/%s", snap.Symbol0, snap.Symbol1)
	rows := [][2]string{
		{"Pool", fmt.Sprintf("%s (%s, fee %d)", snap.Address, pair, snap.FeeTier)},
		{"Current price", fmtPrice(price)},
		{"Current tick", fmt.Sprintf("%d", snap.CurrentTick)},
		{"Profile", rec.Profile},
		{"Tick range", fmt.Sprintf("[%d, %d] width %d, spacing %d", rec.LowerTick, rec.UpperTick, rec.Width(), rec.TickSpacing)},
		{"Price range", fmt.Sprintf("%s - %s", fmtPrice(rec.LowerPrice), fmtPrice(rec.UpperPrice))},
		{"Volatility", fmtPct(volPct)},
		{"Concentration", fmt.Sprintf("%.3f", rec.Concentration)},
		{"Price range percent", fmtPct(rec.PriceRangePercent * 100)},
		{"Target duration", fmt.Sprintf("%.1fh", rec.TargetDurationHours)},
		{"Rebalance gas cost", fmtUSD(rec.EstimatedGasCostUSD)},
		{"Gas cost ratio", fmtPct(rec.GasCostRatio * 100)},
		{"Out-of-range probability", fmt.Sprintf("%s over %.1fh (%s risk)", fmtPct(prob), rec.TargetDurationHours, volatility.RiskLevel(prob))},
	}
	if snap.TVLUSD > 0 {
		rows = append(rows, [2]string{"TVL", fmtUSD(snap.TVLUSD)}, [2]string{"24h volume", fmtUSD(snap.Volume24hUSD)})
	}
	return kvTable(os.Stdout, rows)
}
