package pricefeed

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"rangeKeeper/internal/model"
)

const (
	DefaultGeckoTerminalURL = "https://api.geckoterminal.com/api/v2"
	DefaultNetwork          = "base"

	maxOHLCVLimit = 1000
)

// PoolInfo is the market data GeckoTerminal reports for a pool.
type PoolInfo struct {
	Name                  string
	TVLUSD                float64
	Volume24hUSD          float64
	BaseTokenPriceUSD     float64
	BaseTokenPriceInQuote float64
}

// GeckoTerminal reads hourly candles and pool stats.
type GeckoTerminal struct {
	baseURL string
	network string
	client  *jsonClient
	logger  *zap.Logger
}

// NewGeckoTerminal builds a client. Empty baseURL and network use the public
// API on Base.
func NewGeckoTerminal(baseURL, network string, cfg HTTPConfig, logger *zap.Logger) *GeckoTerminal {
	if baseURL == "" {
		baseURL = DefaultGeckoTerminalURL
	}
	if network == "" {
		network = DefaultNetwork
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeckoTerminal{
		baseURL: strings.TrimRight(baseURL, "/"),
		network: network,
		client:  newJSONClient(cfg, logger),
		logger:  logger,
	}
}

type ohlcvResponse struct {
	Data struct {
		Attributes struct {
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// History returns hourly closing prices covering window, oldest first.
// Prices are quoted in the pool's quote token.
func (g *GeckoTerminal) History(ctx context.Context, poolAddress string, window time.Duration) ([]model.PricePoint, error) {
	if window <= 0 {
		return nil, model.NewInvalidInput("window", window, "must be positive")
	}
	limit := int(math.Ceil(window.Hours())) + 1
	if limit > maxOHLCVLimit {
		limit = maxOHLCVLimit
	}
	url := fmt.Sprintf("%s/networks/%s/pools/%s/ohlcv/hour?aggregate=1&limit=%d&currency=token",
		g.baseURL, g.network, strings.ToLower(poolAddress), limit)

	var resp ohlcvResponse
	if err := g.client.getJSON(ctx, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("ohlcv %s: %w", poolAddress, err)
	}

	points := make([]model.PricePoint, 0, len(resp.Data.Attributes.OHLCVList))
	for _, row := range resp.Data.Attributes.OHLCVList {
		// [timestamp, open, high, low, close, volume]
		if len(row) < 5 || row[4] <= 0 {
			continue
		}
		points = append(points, model.PricePoint{
			Timestamp: time.Unix(int64(row[0]), 0).UTC(),
			Price:     row[4],
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	g.logger.Debug("fetched price history",
		zap.String("pool", poolAddress),
		zap.Duration("window", window),
		zap.Int("points", len(points)),
	)
	return points, nil
}

type poolResponse struct {
	Data struct {
		Attributes struct {
			Name                     string `json:"name"`
			ReserveInUSD             string `json:"reserve_in_usd"`
			BaseTokenPriceUSD        string `json:"base_token_price_usd"`
			BaseTokenPriceQuoteToken string `json:"base_token_price_quote_token"`
			VolumeUSD                struct {
				H24 string `json:"h24"`
			} `json:"volume_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

// PoolInfo returns TVL, volume and spot price for a pool.
func (g *GeckoTerminal) PoolInfo(ctx context.Context, poolAddress string) (PoolInfo, error) {
	url := fmt.Sprintf("%s/networks/%s/pools/%s", g.baseURL, g.network, strings.ToLower(poolAddress))
	var resp poolResponse
	if err := g.client.getJSON(ctx, url, nil, &resp); err != nil {
		return PoolInfo{}, fmt.Errorf("pool %s: %w", poolAddress, err)
	}
	attrs := resp.Data.Attributes
	return PoolInfo{
		Name:                  attrs.Name,
		TVLUSD:                parseFloat(attrs.ReserveInUSD),
		Volume24hUSD:          parseFloat(attrs.VolumeUSD.H24),
		BaseTokenPriceUSD:     parseFloat(attrs.BaseTokenPriceUSD),
		BaseTokenPriceInQuote: parseFloat(attrs.BaseTokenPriceQuoteToken),
	}, nil
}

// parseFloat reads GeckoTerminal's string-encoded numbers; missing values read as zero.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
