package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"rangeKeeper/internal/config"
	"rangeKeeper/internal/model"
	"rangeKeeper/internal/pricefeed"
	"rangeKeeper/internal/storage"
	"rangeKeeper/internal/storage/postgres"
	"rangeKeeper/internal/storage/sqlite"
)

type store interface {
	storage.PositionStore
	storage.EventSink
}

func openStore(ctx context.Context, db config.Database) (store, func(), error) {
	switch db.Driver {
	case "postgres", "pg":
		s, err := postgres.NewStore(ctx, db.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite", "":
		if db.DSN != ":memory:" {
			if dir := filepath.Dir(db.DSN); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, nil, fmt.Errorf("create db dir: %w", err)
				}
			}
		}
		s, err := sqlite.Open(db.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, model.NewConfigurationError("database.driver", fmt.Sprintf("unknown driver %q", db.Driver))
	}
}

func newFeed(feeds config.Feeds, chain pricefeed.SnapshotSource, logger *zap.Logger) (*pricefeed.Feed, *pricefeed.GeckoTerminal, error) {
	httpCfg := pricefeed.DefaultHTTPConfig()
	if feeds.RatePerSecond > 0 {
		httpCfg.RatePerSecond = feeds.RatePerSecond
	}
	gecko := pricefeed.NewGeckoTerminal(feeds.GeckoTerminalURL, feeds.Network, httpCfg, logger)
	coingecko := pricefeed.NewCoinGecko(feeds.CoinGeckoURL, feeds.CoinGeckoAPIKey, feeds.NativeCoinID, httpCfg, logger)

	feed, err := pricefeed.NewFeed(chain, gecko, gecko, coingecko, pricefeed.FeedConfig{
		HistoryTTL: feeds.HistoryTTL,
		NativeTTL:  feeds.NativeTTL,
	}, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	return feed, gecko, nil
}

func resolvePool(pools []model.PoolConfig, ref string) (string, error) {
	return config.NewRegistry(pools).Resolve(ref)
}
