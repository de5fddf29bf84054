package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"rangeKeeper/internal/model"
)

const samplePools = `
pools:
  - name: WETH/USDC 0.05%
    address: "0xd0b53D9277642d899DF5C87A3966A349A798F224"
    token0: {symbol: WETH, address: "0x4200000000000000000000000000000000000006", decimals: 18}
    token1: {symbol: USDC, address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", decimals: 6}
    fee_tier: 500
    enabled: true
  - name: WETH/USDC 0.3%
    address: "0x6c561B446416E1A00E8E93E221854d6eA4171372"
    token0: {symbol: WETH, address: "0x4200000000000000000000000000000000000006", decimals: 18}
    token1: {symbol: USDC, address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", decimals: 6}
    fee_tier: 3000
    enabled: false
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadOptimizeDefaults(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "pool: \"0xd0b53D9277642d899DF5C87A3966A349A798F224\"\n")

	cfg, err := LoadOptimize(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Strategy.MinTickRange != 50 || cfg.Strategy.MaxTickRange != 1000 {
		t.Fatalf("unexpected tick range bounds: %d %d", cfg.Strategy.MinTickRange, cfg.Strategy.MaxTickRange)
	}
	if cfg.Strategy.MinRebalanceInterval != time.Hour {
		t.Fatalf("expected 1h interval, got %s", cfg.Strategy.MinRebalanceInterval)
	}
	if cfg.Strategy.FeeTierSpacing[3000] != 60 || cfg.Strategy.FeeTierSpacing[10000] != 200 {
		t.Fatalf("unexpected fee tier spacing: %v", cfg.Strategy.FeeTierSpacing)
	}
	if cfg.Chain.ChainID != 8453 {
		t.Fatalf("expected base chain id, got %d", cfg.Chain.ChainID)
	}
	if cfg.Profile != "concentrated_follower" {
		t.Fatalf("unexpected profile %q", cfg.Profile)
	}
	policy := cfg.Strategy.Policy()
	if policy.DeviationThreshold != 0.05 {
		t.Fatalf("unexpected deviation threshold %v", policy.DeviationThreshold)
	}
	if cfg.Strategy.SwapFraction != 0.5 || cfg.Strategy.DisableSwap {
		t.Fatalf("unexpected swap settings: %v %v", cfg.Strategy.SwapFraction, cfg.Strategy.DisableSwap)
	}
}

func TestLoadOptimizeSwapSettings(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", `
pool: "0xd0b53D9277642d899DF5C87A3966A349A798F224"
strategy:
  swap-fraction: 0.25
  disable-swap: true
`)
	cfg, err := LoadOptimize(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Strategy.SwapFraction != 0.25 || !cfg.Strategy.DisableSwap {
		t.Fatalf("unexpected swap settings: %v %v", cfg.Strategy.SwapFraction, cfg.Strategy.DisableSwap)
	}

	bad := writeFile(t, "bad.yaml", "pool: \"0xd0b53D9277642d899DF5C87A3966A349A798F224\"\nstrategy:\n  swap-fraction: 1.5\n")
	var cfgErr *model.ConfigurationError
	if _, err := LoadOptimize(bad, nil); !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadOptimizeStrategyFromFile(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", `
pool: "0xd0b53D9277642d899DF5C87A3966A349A798F224"
capital: 5000
strategy:
  min-tick-range: 20
  max-tick-range: 400
  deviation-threshold: 0.1
  min-rebalance-interval: 30m
  fee-tier-spacing:
    500: 10
    3000: 60
`)
	cfg, err := LoadOptimize(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capital != 5000 {
		t.Fatalf("expected capital 5000, got %v", cfg.Capital)
	}
	opt := cfg.Strategy.Optimizer()
	if opt.MinTickRange != 20 || opt.MaxTickRange != 400 {
		t.Fatalf("unexpected optimizer bounds: %+v", opt)
	}
	if len(opt.FeeTierSpacing) != 2 || opt.FeeTierSpacing[500] != 10 {
		t.Fatalf("unexpected fee tier spacing: %v", opt.FeeTierSpacing)
	}
	if cfg.Strategy.MinRebalanceInterval != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", cfg.Strategy.MinRebalanceInterval)
	}
}

func TestLoadOptimizeRejectsInvertedBounds(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", `
pool: "0xd0b53D9277642d899DF5C87A3966A349A798F224"
strategy:
  min-tick-range: 500
  max-tick-range: 100
`)
	_, err := LoadOptimize(cfgPath, nil)
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadOptimizeRequiresPool(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "capital: 100\n")
	if _, err := LoadOptimize(cfgPath, nil); err == nil {
		t.Fatalf("expected error for missing pool")
	}
}

func TestLoadMonitorFlagsAndEnv(t *testing.T) {
	t.Setenv("RANGEKEEPER_PRIVATE_KEY", "0xabc")
	t.Setenv("RANGEKEEPER_STRATEGY_FEE_TIER_SPACING", "500=10,3000=60")

	flags := pflag.NewFlagSet("monitor", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Bool("dry-run", false, "")
	flags.Int("concurrency", 4, "")
	if err := flags.Parse([]string{"--rpc", "https://mainnet.base.org", "--concurrency", "8"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfgPath := writeFile(t, "config.yaml", "journal: ./out/events.jsonl\n")
	cfg, err := LoadMonitor(cfgPath, flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chain.RPCURL != "https://mainnet.base.org" {
		t.Fatalf("unexpected rpc %q", cfg.Chain.RPCURL)
	}
	if cfg.Chain.PrivateKey != "0xabc" {
		t.Fatalf("private key not read from env")
	}
	if cfg.Concurrency != 8 {
		t.Fatalf("expected concurrency 8, got %d", cfg.Concurrency)
	}
	if cfg.SweepInterval != 30*time.Second || cfg.IdleWait != time.Minute || cfg.ErrorBackoff != time.Minute {
		t.Fatalf("unexpected loop timings: %s %s %s", cfg.SweepInterval, cfg.IdleWait, cfg.ErrorBackoff)
	}
	if cfg.Journal != "./out/events.jsonl" {
		t.Fatalf("unexpected journal %q", cfg.Journal)
	}
	if len(cfg.Strategy.FeeTierSpacing) != 2 {
		t.Fatalf("env fee tier spacing not applied: %v", cfg.Strategy.FeeTierSpacing)
	}
}

func TestLoadMonitorRequiresKeyUnlessDryRun(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "rpc: https://mainnet.base.org\n")
	if _, err := LoadMonitor(cfgPath, nil); err == nil {
		t.Fatalf("expected error without private key")
	}

	dry := writeFile(t, "dry.yaml", "rpc: https://mainnet.base.org\ndry-run: true\n")
	cfg, err := LoadMonitor(dry, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.DryRun {
		t.Fatalf("expected dry run")
	}
}

func TestLoadPositionsDatabase(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "database:\n  driver: Postgres\n  dsn: postgres://localhost/rk\n")
	cfg, err := LoadPositions(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/rk" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
}

func TestLoadAnalyzeWithPools(t *testing.T) {
	poolsPath := writeFile(t, "pools.yaml", samplePools)
	cfgPath := writeFile(t, "config.yaml", "pool: WETH/USDC 0.05%\npools: "+poolsPath+"\n")

	cfg, err := LoadAnalyze(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(cfg.Pools))
	}
	if cfg.TickRange != 500 || cfg.Horizon != time.Hour {
		t.Fatalf("unexpected analyze defaults: %d %s", cfg.TickRange, cfg.Horizon)
	}
}

func TestParsePoolsAndRegistry(t *testing.T) {
	pools, err := ParsePools([]byte(samplePools))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pools[0].Token0.Decimals != 18 || pools[0].Token1.Symbol != "USDC" || pools[0].FeeTier != 500 {
		t.Fatalf("unexpected pool: %+v", pools[0])
	}

	reg := NewRegistry(pools)
	if got := reg.Enabled(); len(got) != 1 || got[0].FeeTier != 500 {
		t.Fatalf("unexpected enabled pools: %+v", got)
	}
	pool, ok := reg.Lookup("weth/usdc 0.3%")
	if !ok || pool.FeeTier != 3000 {
		t.Fatalf("lookup by name failed: %+v %v", pool, ok)
	}
	if _, ok := reg.Lookup("0xD0B53D9277642D899DF5C87A3966A349A798F224"); !ok {
		t.Fatalf("lookup by address failed")
	}

	addr, err := reg.Resolve("0x4200000000000000000000000000000000000006")
	if err != nil || addr != "0x4200000000000000000000000000000000000006" {
		t.Fatalf("unexpected resolve: %q %v", addr, err)
	}
	if _, err := reg.Resolve("missing"); err == nil {
		t.Fatalf("expected error for unknown pool")
	}
}

func TestParsePoolsRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"bad address": `
pools:
  - name: x
    address: "0x123"
    token0: {address: "0x4200000000000000000000000000000000000006", decimals: 18}
    token1: {address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", decimals: 6}
    fee_tier: 500
`,
		"missing decimals": `
pools:
  - name: x
    address: "0xd0b53D9277642d899DF5C87A3966A349A798F224"
    token0: {address: "0x4200000000000000000000000000000000000006"}
    token1: {address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", decimals: 6}
    fee_tier: 500
`,
	}
	for name, doc := range cases {
		if _, err := ParsePools([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses([]string{" 0x4200000000000000000000000000000000000006 ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 1 {
		t.Fatalf("expected 1 address, got %d", len(addrs))
	}
	if _, err := ParseAddresses([]string{"nope"}); err == nil {
		t.Fatalf("expected error")
	}
}
