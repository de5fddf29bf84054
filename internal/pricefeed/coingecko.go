package pricefeed

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	DefaultNativeCoinID = "ethereum"
)

// CoinGecko reads spot USD prices.
type CoinGecko struct {
	baseURL string
	apiKey  string
	coinID  string
	client  *jsonClient
}

// NewCoinGecko builds a client. apiKey is optional and sent as the demo key header.
func NewCoinGecko(baseURL, apiKey, coinID string, cfg HTTPConfig, logger *zap.Logger) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if coinID == "" {
		coinID = DefaultNativeCoinID
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		coinID:  coinID,
		client:  newJSONClient(cfg, logger),
	}
}

// NativeTokenUSD returns the USD price of the chain's gas token.
func (c *CoinGecko) NativeTokenUSD(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, c.coinID)
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"x-cg-demo-api-key": c.apiKey}
	}

	var resp map[string]map[string]float64
	if err := c.client.getJSON(ctx, url, headers, &resp); err != nil {
		return 0, fmt.Errorf("coingecko %s: %w", c.coinID, err)
	}
	price, ok := resp[c.coinID]["usd"]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("coingecko %s: no usd price in response", c.coinID)
	}
	return price, nil
}
