package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rangeKeeper/internal/model"
	"rangeKeeper/internal/optimizer"
	"rangeKeeper/internal/rebalance"
)

const envPrefix = "RANGEKEEPER"

// Chain holds RPC and signing settings.
type Chain struct {
	RPCURL          string
	ChainID         uint64
	PositionManager string
	SwapRouter      string
	PrivateKey      string
	ReceiptTimeout  time.Duration
	TxDeadline      time.Duration
}

// Feeds holds the off-chain market data endpoints.
type Feeds struct {
	GeckoTerminalURL string
	Network          string
	CoinGeckoURL     string
	CoinGeckoAPIKey  string
	NativeCoinID     string
	RatePerSecond    float64
	HistoryTTL       time.Duration
	NativeTTL        time.Duration
}

// Database selects the position store.
type Database struct {
	Driver string
	DSN    string
}

// Strategy holds the optimizer and rebalance trigger settings.
type Strategy struct {
	MinTickRange         int32
	MaxTickRange         int32
	DeviationThreshold   float64
	MinRebalanceInterval time.Duration
	MaxGasCostRatio      float64
	VolatilityWindow     time.Duration
	GasPriceGwei         float64
	NativeTokenUSD       float64
	TxPerRebalance       int
	GasPerTx             uint64
	FeeTierSpacing       map[uint32]int32
	SwapFraction         float64
	DisableSwap          bool
}

// Optimizer converts the strategy into optimizer settings.
func (s Strategy) Optimizer() optimizer.Config {
	return optimizer.Config{
		MinTickRange:     s.MinTickRange,
		MaxTickRange:     s.MaxTickRange,
		MaxGasCostRatio:  s.MaxGasCostRatio,
		VolatilityWindow: s.VolatilityWindow,
		TxPerRebalance:   s.TxPerRebalance,
		GasPerTx:         s.GasPerTx,
		FeeTierSpacing:   s.FeeTierSpacing,
	}
}

// Policy converts the strategy into rebalance trigger settings.
func (s Strategy) Policy() rebalance.Policy {
	return rebalance.Policy{
		DeviationThreshold: s.DeviationThreshold,
		MinInterval:        s.MinRebalanceInterval,
	}
}

// FallbackGas is the quote used when live gas or native prices are unavailable.
func (s Strategy) FallbackGas() optimizer.GasQuote {
	return optimizer.GasQuote{GasPriceGwei: s.GasPriceGwei, NativeTokenUSD: s.NativeTokenUSD}
}

// MonitorConfig holds configuration for the monitor command.
type MonitorConfig struct {
	Chain         Chain
	Feeds         Feeds
	Database      Database
	Strategy      Strategy
	Pools         []model.PoolConfig
	DryRun        bool
	SweepInterval time.Duration
	IdleWait      time.Duration
	ErrorBackoff  time.Duration
	Concurrency   int
	MetricsAddr   string
	Journal       string
	LogLevel      string
}

// OptimizeConfig holds configuration for the optimize command.
type OptimizeConfig struct {
	Chain    Chain
	Feeds    Feeds
	Strategy Strategy
	Pools    []model.PoolConfig
	Pool     string
	Capital  float64
	Profile  string
	Price    float64
	LogLevel string
}

// AnalyzeConfig holds configuration for the analyze command.
type AnalyzeConfig struct {
	Chain     Chain
	Feeds     Feeds
	Pools     []model.PoolConfig
	Pool      string
	Window    time.Duration
	TickRange int32
	Horizon   time.Duration
	LogLevel  string
}

// PositionsConfig holds configuration for the position subcommands.
type PositionsConfig struct {
	Database Database
	LogLevel string
}

// LoadMonitor merges config file, environment variables, and flags into MonitorConfig.
func LoadMonitor(cfgFile string, flags *pflag.FlagSet) (MonitorConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("dry-run", false)
		v.SetDefault("sweep-interval", 30*time.Second)
		v.SetDefault("idle-wait", 60*time.Second)
		v.SetDefault("error-backoff", 60*time.Second)
		v.SetDefault("concurrency", 4)
		v.SetDefault("metrics-addr", "")
		v.SetDefault("journal", "./data/rebalances.jsonl")
	})
	if err != nil {
		return MonitorConfig{}, err
	}

	strategy, err := loadStrategy(v)
	if err != nil {
		return MonitorConfig{}, err
	}
	pools, err := loadPools(v)
	if err != nil {
		return MonitorConfig{}, err
	}

	cfg := MonitorConfig{
		Chain:         loadChain(v),
		Feeds:         loadFeeds(v),
		Database:      loadDatabase(v),
		Strategy:      strategy,
		Pools:         pools,
		DryRun:        v.GetBool("dry-run"),
		SweepInterval: v.GetDuration("sweep-interval"),
		IdleWait:      v.GetDuration("idle-wait"),
		ErrorBackoff:  v.GetDuration("error-backoff"),
		Concurrency:   v.GetInt("concurrency"),
		MetricsAddr:   v.GetString("metrics-addr"),
		Journal:       v.GetString("journal"),
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.Chain.RPCURL == "" {
		return MonitorConfig{}, model.NewConfigurationError("chain.rpc", "rpc url is required")
	}
	if !cfg.DryRun && cfg.Chain.PrivateKey == "" {
		return MonitorConfig{}, model.NewConfigurationError("chain.private-key", "required unless --dry-run is set")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return cfg, nil
}

// LoadOptimize merges config file, environment variables, and flags into OptimizeConfig.
func LoadOptimize(cfgFile string, flags *pflag.FlagSet) (OptimizeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("capital", 1000.0)
		v.SetDefault("profile", optimizer.ProfileConcentratedFollower)
		v.SetDefault("price", 0.0)
	})
	if err != nil {
		return OptimizeConfig{}, err
	}
	strategy, err := loadStrategy(v)
	if err != nil {
		return OptimizeConfig{}, err
	}
	pools, err := loadPools(v)
	if err != nil {
		return OptimizeConfig{}, err
	}

	cfg := OptimizeConfig{
		Chain:    loadChain(v),
		Feeds:    loadFeeds(v),
		Strategy: strategy,
		Pools:    pools,
		Pool:     v.GetString("pool"),
		Capital:  v.GetFloat64("capital"),
		Profile:  v.GetString("profile"),
		Price:    v.GetFloat64("price"),
		LogLevel: v.GetString("log-level"),
	}
	if cfg.Pool == "" {
		return OptimizeConfig{}, model.NewConfigurationError("pool", "pool address or name is required")
	}
	if cfg.Capital <= 0 {
		return OptimizeConfig{}, model.NewConfigurationError("capital", "must be positive")
	}
	return cfg, nil
}

// LoadAnalyze merges config file, environment variables, and flags into AnalyzeConfig.
func LoadAnalyze(cfgFile string, flags *pflag.FlagSet) (AnalyzeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("window", 30*24*time.Hour)
		v.SetDefault("tick-range", 500)
		v.SetDefault("horizon", time.Hour)
	})
	if err != nil {
		return AnalyzeConfig{}, err
	}
	pools, err := loadPools(v)
	if err != nil {
		return AnalyzeConfig{}, err
	}

	cfg := AnalyzeConfig{
		Chain:     loadChain(v),
		Feeds:     loadFeeds(v),
		Pools:     pools,
		Pool:      v.GetString("pool"),
		Window:    v.GetDuration("window"),
		TickRange: v.GetInt32("tick-range"),
		Horizon:   v.GetDuration("horizon"),
		LogLevel:  v.GetString("log-level"),
	}
	if cfg.Pool == "" {
		return AnalyzeConfig{}, model.NewConfigurationError("pool", "pool address or name is required")
	}
	if cfg.TickRange <= 0 {
		return AnalyzeConfig{}, model.NewConfigurationError("tick-range", "must be positive")
	}
	return cfg, nil
}

// LoadPositions merges config file, environment variables, and flags into PositionsConfig.
func LoadPositions(cfgFile string, flags *pflag.FlagSet) (PositionsConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return PositionsConfig{}, err
	}
	return PositionsConfig{
		Database: loadDatabase(v),
		LogLevel: v.GetString("log-level"),
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setCommonDefaults(v)
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func setCommonDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")

	v.SetDefault("chain.chain-id", uint64(8453))
	v.SetDefault("chain.receipt-timeout", 3*time.Minute)
	v.SetDefault("chain.tx-deadline", 10*time.Minute)

	v.SetDefault("feeds.geckoterminal-url", "https://api.geckoterminal.com/api/v2")
	v.SetDefault("feeds.network", "base")
	v.SetDefault("feeds.coingecko-url", "https://api.coingecko.com/api/v3")
	v.SetDefault("feeds.native-coin-id", "ethereum")
	v.SetDefault("feeds.rate-per-second", 0.5)
	v.SetDefault("feeds.history-ttl", 15*time.Minute)
	v.SetDefault("feeds.native-ttl", time.Minute)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/rangekeeper.db")

	opt := optimizer.DefaultConfig()
	policy := rebalance.DefaultPolicy()
	v.SetDefault("strategy.min-tick-range", opt.MinTickRange)
	v.SetDefault("strategy.max-tick-range", opt.MaxTickRange)
	v.SetDefault("strategy.deviation-threshold", policy.DeviationThreshold)
	v.SetDefault("strategy.min-rebalance-interval", policy.MinInterval)
	v.SetDefault("strategy.max-gas-cost-ratio", opt.MaxGasCostRatio)
	v.SetDefault("strategy.volatility-window", opt.VolatilityWindow)
	v.SetDefault("strategy.gas-price-gwei", 0.05)
	v.SetDefault("strategy.native-token-usd", 3000.0)
	v.SetDefault("strategy.tx-per-rebalance", opt.TxPerRebalance)
	v.SetDefault("strategy.gas-per-tx", opt.GasPerTx)
	v.SetDefault("strategy.fee-tier-spacing", "100=1,500=10,3000=60,10000=200")
	v.SetDefault("strategy.swap-fraction", 0.5)
	v.SetDefault("strategy.disable-swap", false)
}

func loadChain(v *viper.Viper) Chain {
	return Chain{
		RPCURL:          firstString(v, "rpc", "chain.rpc"),
		ChainID:         v.GetUint64("chain.chain-id"),
		PositionManager: v.GetString("chain.position-manager"),
		SwapRouter:      v.GetString("chain.swap-router"),
		PrivateKey:      firstString(v, "private-key", "chain.private-key"),
		ReceiptTimeout:  v.GetDuration("chain.receipt-timeout"),
		TxDeadline:      v.GetDuration("chain.tx-deadline"),
	}
}

func loadFeeds(v *viper.Viper) Feeds {
	return Feeds{
		GeckoTerminalURL: v.GetString("feeds.geckoterminal-url"),
		Network:          v.GetString("feeds.network"),
		CoinGeckoURL:     v.GetString("feeds.coingecko-url"),
		CoinGeckoAPIKey:  v.GetString("feeds.coingecko-api-key"),
		NativeCoinID:     v.GetString("feeds.native-coin-id"),
		RatePerSecond:    v.GetFloat64("feeds.rate-per-second"),
		HistoryTTL:       v.GetDuration("feeds.history-ttl"),
		NativeTTL:        v.GetDuration("feeds.native-ttl"),
	}
}

func loadDatabase(v *viper.Viper) Database {
	return Database{
		Driver: strings.ToLower(firstString(v, "db-driver", "database.driver")),
		DSN:    firstString(v, "db", "database.dsn"),
	}
}

func loadStrategy(v *viper.Viper) (Strategy, error) {
	spacing, err := parseFeeTierSpacing(getStringMap(v, "strategy.fee-tier-spacing"))
	if err != nil {
		return Strategy{}, err
	}
	s := Strategy{
		MinTickRange:         v.GetInt32("strategy.min-tick-range"),
		MaxTickRange:         v.GetInt32("strategy.max-tick-range"),
		DeviationThreshold:   v.GetFloat64("strategy.deviation-threshold"),
		MinRebalanceInterval: v.GetDuration("strategy.min-rebalance-interval"),
		MaxGasCostRatio:      v.GetFloat64("strategy.max-gas-cost-ratio"),
		VolatilityWindow:     v.GetDuration("strategy.volatility-window"),
		GasPriceGwei:         v.GetFloat64("strategy.gas-price-gwei"),
		NativeTokenUSD:       v.GetFloat64("strategy.native-token-usd"),
		TxPerRebalance:       v.GetInt("strategy.tx-per-rebalance"),
		GasPerTx:             v.GetUint64("strategy.gas-per-tx"),
		FeeTierSpacing:       spacing,
		SwapFraction:         v.GetFloat64("strategy.swap-fraction"),
		DisableSwap:          v.GetBool("strategy.disable-swap"),
	}
	if err := s.Optimizer().Validate(); err != nil {
		return Strategy{}, err
	}
	if s.DeviationThreshold <= 0 || s.DeviationThreshold >= 1 {
		return Strategy{}, model.NewConfigurationError("strategy.deviation-threshold", "must be in (0,1)")
	}
	if s.SwapFraction <= 0 || s.SwapFraction > 1 {
		return Strategy{}, model.NewConfigurationError("strategy.swap-fraction", "must be in (0,1]")
	}
	if s.MinRebalanceInterval < 0 {
		return Strategy{}, model.NewConfigurationError("strategy.min-rebalance-interval", "must not be negative")
	}
	return s, nil
}

func loadPools(v *viper.Viper) ([]model.PoolConfig, error) {
	path := firstString(v, "pools", "pools-file")
	if path == "" {
		return nil, nil
	}
	return LoadPools(path)
}

func parseFeeTierSpacing(raw map[string]string) (map[uint32]int32, error) {
	out := make(map[uint32]int32, len(raw))
	for k, val := range raw {
		tier, err := strconv.ParseUint(strings.TrimSpace(k), 10, 32)
		if err != nil {
			return nil, model.NewConfigurationError("strategy.fee-tier-spacing", fmt.Sprintf("invalid fee tier %q", k))
		}
		spacing, err := strconv.ParseInt(strings.TrimSpace(val), 10, 32)
		if err != nil || spacing <= 0 {
			return nil, model.NewConfigurationError("strategy.fee-tier-spacing", fmt.Sprintf("invalid spacing %q for fee tier %s", val, k))
		}
		out[uint32(tier)] = int32(spacing)
	}
	return out, nil
}

func firstString(v *viper.Viper, keys ...string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			return s
		}
	}
	return ""
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[fmt.Sprintf("%v", k)] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			parts = strings.SplitN(pair, ":", 2)
		}
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
