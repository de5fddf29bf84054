package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPConfig tunes the shared JSON client.
type HTTPConfig struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	RetryDelay    time.Duration
}

// DefaultHTTPConfig stays under the public GeckoTerminal limit of 30 calls a minute.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:       10 * time.Second,
		RatePerSecond: 0.5,
		Burst:         5,
		MaxRetries:    3,
		RetryDelay:    500 * time.Millisecond,
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

type jsonClient struct {
	http    *http.Client
	limiter *rate.Limiter
	cfg     HTTPConfig
	logger  *zap.Logger
}

func newJSONClient(cfg HTTPConfig, logger *zap.Logger) *jsonClient {
	def := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &jsonClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:     cfg,
		logger:  logger,
	}
}

// getJSON fetches url and decodes the body into out. 429 and 5xx responses
// are retried with doubling backoff; other 4xx responses are not.
func (c *jsonClient) getJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	return withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryDelay, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return permanent(fmt.Errorf("rate limiter: %w", err))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("http request failed", zap.String("url", url), zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Warn("retryable http status", zap.String("url", url), zap.Int("status", resp.StatusCode))
				return statusErr
			}
			return permanent(statusErr)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return permanent(fmt.Errorf("decode %s: %w", url, err))
		}
		return nil
	})
}
