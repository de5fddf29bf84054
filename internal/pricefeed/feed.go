package pricefeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rangeKeeper/internal/model"
)

// HistorySource returns historical prices for a pool.
type HistorySource interface {
	History(ctx context.Context, poolAddress string, window time.Duration) ([]model.PricePoint, error)
}

// PoolInfoSource returns market stats for a pool.
type PoolInfoSource interface {
	PoolInfo(ctx context.Context, poolAddress string) (PoolInfo, error)
}

// NativeSource returns the gas token price in USD.
type NativeSource interface {
	NativeTokenUSD(ctx context.Context) (float64, error)
}

// SnapshotSource reads live pool state, normally from chain.
type SnapshotSource interface {
	Snapshot(ctx context.Context, poolAddress string) (model.PoolSnapshot, error)
}

// FeedConfig controls cache sizing and freshness.
type FeedConfig struct {
	HistoryTTL time.Duration
	InfoTTL    time.Duration
	NativeTTL  time.Duration
	CacheSize  int
}

// DefaultFeedConfig caches hourly candles for 15 minutes and spot data for one.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		HistoryTTL: 15 * time.Minute,
		InfoTTL:    5 * time.Minute,
		NativeTTL:  time.Minute,
		CacheSize:  256,
	}
}

// Feed combines on-chain state with cached off-chain market data.
// Any source may be nil.
type Feed struct {
	chain   SnapshotSource
	history HistorySource
	info    PoolInfoSource
	native  NativeSource
	logger  *zap.Logger

	historyCache *TTLCache[string, []model.PricePoint]
	infoCache    *TTLCache[string, PoolInfo]
	nativeCache  *TTLCache[string, float64]
}

// NewFeed wires the sources together. clock may be nil.
func NewFeed(chain SnapshotSource, history HistorySource, info PoolInfoSource, native NativeSource, cfg FeedConfig, clock func() time.Time, logger *zap.Logger) (*Feed, error) {
	def := DefaultFeedConfig()
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = def.HistoryTTL
	}
	if cfg.InfoTTL <= 0 {
		cfg.InfoTTL = def.InfoTTL
	}
	if cfg.NativeTTL <= 0 {
		cfg.NativeTTL = def.NativeTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	historyCache, err := NewTTLCache[string, []model.PricePoint](cfg.CacheSize, cfg.HistoryTTL, clock)
	if err != nil {
		return nil, err
	}
	infoCache, err := NewTTLCache[string, PoolInfo](cfg.CacheSize, cfg.InfoTTL, clock)
	if err != nil {
		return nil, err
	}
	nativeCache, err := NewTTLCache[string, float64](1, cfg.NativeTTL, clock)
	if err != nil {
		return nil, err
	}

	return &Feed{
		chain:        chain,
		history:      history,
		info:         info,
		native:       native,
		logger:       logger,
		historyCache: historyCache,
		infoCache:    infoCache,
		nativeCache:  nativeCache,
	}, nil
}

// History implements the optimizer's price history source.
func (f *Feed) History(ctx context.Context, poolAddress string, window time.Duration) ([]model.PricePoint, error) {
	if f.history == nil {
		return nil, fmt.Errorf("no price history source configured")
	}
	key := fmt.Sprintf("%s|%s", strings.ToLower(poolAddress), window)
	if points, ok := f.historyCache.Get(key); ok {
		return points, nil
	}
	points, err := f.history.History(ctx, poolAddress, window)
	if err != nil {
		return nil, err
	}
	f.historyCache.Set(key, points)
	return points, nil
}

// PoolInfo returns cached market stats.
func (f *Feed) PoolInfo(ctx context.Context, poolAddress string) (PoolInfo, error) {
	if f.info == nil {
		return PoolInfo{}, fmt.Errorf("no pool info source configured")
	}
	key := strings.ToLower(poolAddress)
	if info, ok := f.infoCache.Get(key); ok {
		return info, nil
	}
	info, err := f.info.PoolInfo(ctx, poolAddress)
	if err != nil {
		return PoolInfo{}, err
	}
	f.infoCache.Set(key, info)
	return info, nil
}

// NativeTokenUSD implements the optimizer's native token pricer.
func (f *Feed) NativeTokenUSD(ctx context.Context) (float64, error) {
	if f.native == nil {
		return 0, fmt.Errorf("no native price source configured")
	}
	if price, ok := f.nativeCache.Get("native"); ok {
		return price, nil
	}
	price, err := f.native.NativeTokenUSD(ctx)
	if err != nil {
		return 0, err
	}
	f.nativeCache.Set("native", price)
	return price, nil
}

// Snapshot reads the pool from chain and fills TVL and volume from market
// data when available. Market data failures are logged, not returned.
func (f *Feed) Snapshot(ctx context.Context, poolAddress string) (model.PoolSnapshot, error) {
	if f.chain == nil {
		return model.PoolSnapshot{}, fmt.Errorf("no chain source configured")
	}
	snap, err := f.chain.Snapshot(ctx, poolAddress)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	if f.info == nil {
		return snap, nil
	}
	info, err := f.PoolInfo(ctx, poolAddress)
	if err != nil {
		f.logger.Warn("pool market data unavailable", zap.String("pool", poolAddress), zap.Error(err))
		return snap, nil
	}
	snap.TVLUSD = info.TVLUSD
	snap.Volume24hUSD = info.Volume24hUSD
	return snap, nil
}
