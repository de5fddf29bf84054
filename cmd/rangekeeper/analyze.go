package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangeKeeper/internal/chain"
	"rangeKeeper/internal/config"
	"rangeKeeper/internal/dex"
	"rangeKeeper/internal/pricefeed"
	"rangeKeeper/internal/volatility"
)

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAnalyze(cfgFile, cmd.Flags())
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

	var source pricefeed.SnapshotSource
	if cfg.Chain.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		source = dex.NewPoolReader(chainClient, cfg.Chain.ChainID, logger)
	}

	feed, _, err := newFeed(cfg.Feeds, source, logger)
	if err != nil {
		return err
	}

	points, err := feed.History(ctx, poolAddr, cfg.Window)
	if err != nil {
		return err
	}
	analysis, err := volatility.Analyze(points)
	if err != nil {
		return err
	}

	currentPrice := analysis.CurrentPrice
	priceSource := "last close"
	if source != nil {
		snap, err := feed.Snapshot(ctx, poolAddr)
		if err != nil {
			logger.Warn("on-chain price unavailable, using last close", zap.Error(err))
		} else {
			currentPrice = snap.CurrentPrice
			priceSource = "on-chain"
		}
	}

	prob, err := volatility.OutOfRangeProbability(analysis.VolatilityPct, cfg.TickRange, cfg.Horizon.Minutes())
	if err != nil {
		return err
	}

	rows := [][2]string{
		{"Pool", poolAddr},
		{"Samples", fmt.Sprintf("%d hourly closes over %s", analysis.Samples, cfg.Window)},
		{"Current price", fmt.Sprintf("%s (%s)", fmtPrice(currentPrice), priceSource)},
		{"Volatility", fmtPct(analysis.VolatilityPct)},
		{"Bands ±1σ", fmt.Sprintf("%s - %s", fmtPrice(analysis.Bands.Lower1), fmtPrice(analysis.Bands.Upper1))},
		{"Bands ±2σ", fmt.Sprintf("%s - %s", fmtPrice(analysis.Bands.Lower2), fmtPrice(analysis.Bands.Upper2))},
	}
	for _, r := range analysis.Ranges {
		rows = append(rows, [2]string{"Range " + r.Label, fmt.Sprintf("%s - %s", fmtPrice(r.Low), fmtPrice(r.High))})
	}
	rows = append(rows,
		[2]string{"Out-of-range probability", fmt.Sprintf("%s for %d ticks over %s", fmtPct(prob), cfg.TickRange, cfg.Horizon)},
		[2]string{"Risk level", volatility.RiskLevel(prob)},
		[2]string{"Recommendation", volatility.Recommendation(prob)},
	)
	if info, err := feed.PoolInfo(ctx, poolAddr); err != nil {
		logger.Warn("pool market data unavailable", zap.Error(err))
	} else {
		rows = append(rows,
			[2]string{"Name", info.Name},
			[2]string{"TVL", fmtUSD(info.TVLUSD)},
			[2]string{"24h volume", fmtUSD(info.Volume24hUSD)},
		)
	}
	if err := kvTable(os.Stdout, rows); err != nil {
		return err
	}

	return strategyTable(analysis.VolatilityPct)
}

func strategyTable(volPct float64) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Risk tolerance", "Tick range", "Check interval", "Out-of-range probability", "Risk level")
	for _, tolerance := range []string{volatility.RiskLow, volatility.RiskMedium, volatility.RiskHigh} {
		s, err := volatility.StrategyFor(tolerance, volPct)
		if err != nil {
			return err
		}
		if err := table.Append(
			s.RiskTolerance,
			fmt.Sprintf("%d", s.TickRange),
			s.CheckInterval.String(),
			fmtPct(s.Probability),
			s.RiskLevel,
		); err != nil {
			return err
		}
	}
	return table.Render()
}
