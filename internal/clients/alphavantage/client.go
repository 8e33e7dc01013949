// Package alphavantage provides a client for the Alpha Vantage digital
// currency API. Used by the technical-indicator refresh.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

const defaultBaseURL = "https://www.alphavantage.co"

// DailyClose is one dated close from the daily digital currency series.
type DailyClose struct {
	Date  string
	Close float64
}

// Client for the Alpha Vantage API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type dailySeriesResponse struct {
	Series map[string]map[string]string `json:"Time Series (Digital Currency Daily)"`
	Note   string                       `json:"Note"`
	Error  string                       `json:"Error Message"`
}

// DailyCloses returns USD daily closes for a digital currency symbol, ordered
// by date ascending.
func (c *Client) DailyCloses(ctx context.Context, symbol string) ([]DailyClose, error) {
	endpoint := fmt.Sprintf("%s/query?function=DIGITAL_CURRENCY_DAILY&symbol=%s&market=USD&apikey=%s",
		c.baseURL, symbol, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Alpha Vantage request for %s: %w", symbol, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Alpha Vantage request for %s failed: %w: %v", symbol, domain.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Alpha Vantage returned status %d for %s: %w: %s",
			resp.StatusCode, symbol, domain.ErrProviderRejected, string(body))
	}

	var result dailySeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse Alpha Vantage response for %s: %w", symbol, err)
	}

	// Rate-limit notices and bad-symbol errors come back as 200.
	if result.Error != "" {
		return nil, fmt.Errorf("Alpha Vantage error for %s: %w: %s", symbol, domain.ErrProviderRejected, result.Error)
	}
	if len(result.Series) == 0 {
		if result.Note != "" {
			return nil, fmt.Errorf("Alpha Vantage throttled %s: %w: %s", symbol, domain.ErrProviderRejected, result.Note)
		}
		return nil, fmt.Errorf("empty daily series for %s: %w", symbol, domain.ErrTransformInvalid)
	}

	closes := make([]DailyClose, 0, len(result.Series))
	for date, fields := range result.Series {
		raw, ok := fields["4. close"]
		if !ok {
			raw = fields["4a. close (USD)"]
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return nil, fmt.Errorf("unusable close %q for %s on %s: %w", raw, symbol, date, domain.ErrTransformInvalid)
		}
		closes = append(closes, DailyClose{Date: date, Close: v})
	}

	sort.Slice(closes, func(i, j int) bool { return closes[i].Date < closes[j].Date })

	c.log.Debug().Str("symbol", symbol).Int("closes", len(closes)).Msg("Fetched daily closes")
	return closes, nil
}
