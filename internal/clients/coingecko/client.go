// Package coingecko provides a client for the CoinGecko market data API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// PricePoint is one dated price from a market chart.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
}

// Client for the CoinGecko API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new CoinGecko client. baseURL may be empty to use the
// public API.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "coingecko").Logger(),
	}
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// DailyPrices returns daily USD prices for a coin over the last N days,
// ordered oldest-first.
func (c *Client) DailyPrices(ctx context.Context, coinID string, days int) ([]PricePoint, error) {
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d&interval=daily",
		c.baseURL, coinID, days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build CoinGecko request for %s: %w", coinID, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CoinGecko request for %s failed: %w: %v", coinID, domain.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("CoinGecko returned status %d for %s: %w: %s",
			resp.StatusCode, coinID, domain.ErrProviderRejected, string(body))
	}

	var result marketChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse CoinGecko response for %s: %w", coinID, err)
	}

	points := make([]PricePoint, 0, len(result.Prices))
	for _, p := range result.Prices {
		price := p[1]
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, fmt.Errorf("unusable price %v for %s: %w", price, coinID, domain.ErrTransformInvalid)
		}
		points = append(points, PricePoint{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Price:     price,
		})
	}

	c.log.Debug().Str("coin", coinID).Int("points", len(points)).Msg("Fetched daily prices")
	return points, nil
}

// Return24h computes the most recent daily log return of a coin. It needs at
// least two daily closes.
func (c *Client) Return24h(ctx context.Context, coinID string) (float64, time.Time, error) {
	points, err := c.DailyPrices(ctx, coinID, 2)
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(points) < 2 {
		return 0, time.Time{}, fmt.Errorf("need 2 daily prices for %s, got %d: %w",
			coinID, len(points), domain.ErrTransformInvalid)
	}

	last := points[len(points)-1]
	prev := points[len(points)-2]
	ret := math.Log(last.Price / prev.Price)
	if math.IsNaN(ret) || math.IsInf(ret, 0) {
		return 0, time.Time{}, fmt.Errorf("non-finite return for %s: %w", coinID, domain.ErrTransformInvalid)
	}
	return ret, last.Timestamp, nil
}
