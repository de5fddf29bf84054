package main

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// .env is optional; a present but unreadable file is fatal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("load .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:          "rangekeeper",
		Short:        "Uniswap V3 range optimizer and position monitor for Base",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch active positions and rebalance them when they leave range",
		RunE:  runMonitor,
	}
	monitorCmd.Flags().String("rpc", "", "Base RPC URL")
	monitorCmd.Flags().String("pools", "", "pool registry YAML file")
	monitorCmd.Flags().String("db-driver", "", "position store driver (sqlite, postgres)")
	monitorCmd.Flags().String("db", "", "position store DSN or sqlite path")
	monitorCmd.Flags().Bool("dry-run", false, "log intended transactions without sending them")
	monitorCmd.Flags().Duration("sweep-interval", 30*time.Second, "time between sweeps")
	monitorCmd.Flags().Int("concurrency", 4, "positions checked at once")
	monitorCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	monitorCmd.Flags().String("journal", "./data/rebalances.jsonl", "rebalance journal JSONL path")
	root.AddCommand(monitorCmd)

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Recommend a tick range for a pool",
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().String("rpc", "", "Base RPC URL")
	optimizeCmd.Flags().String("pools", "", "pool registry YAML file")
	optimizeCmd.Flags().String("pool", "", "pool address or registry name")
	optimizeCmd.Flags().Float64("capital", 1000, "capital to deploy in USD")
	optimizeCmd.Flags().String("profile", "concentrated_follower", "strategy profile (concentrated_follower, multi_position)")
	optimizeCmd.Flags().Float64("price", 0, "override the current price (token1 per token0)")
	root.AddCommand(optimizeCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Show volatility, price bands and out-of-range probability for a pool",
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().String("rpc", "", "Base RPC URL (optional, enables on-chain price)")
	analyzeCmd.Flags().String("pools", "", "pool registry YAML file")
	analyzeCmd.Flags().String("pool", "", "pool address or registry name")
	analyzeCmd.Flags().Duration("window", 30*24*time.Hour, "history window")
	analyzeCmd.Flags().Int32("tick-range", 500, "range width in ticks for the probability estimate")
	analyzeCmd.Flags().Duration("horizon", time.Hour, "probability horizon")
	root.AddCommand(analyzeCmd)

	root.AddCommand(newPositionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
