// Package twelvedata provides a client for the Twelve Data quote API.
package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

const defaultBaseURL = "https://api.twelvedata.com"

// Quote is the latest close of a symbol.
type Quote struct {
	Symbol    string
	Close     float64
	Timestamp time.Time
}

// Client for the Twelve Data API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Twelve Data client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "twelvedata").Logger(),
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type quoteResponse struct {
	Symbol    string `json:"symbol"`
	Close     string `json:"close"`
	Timestamp int64  `json:"timestamp"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

// GetQuote fetches the latest quote of a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	endpoint := fmt.Sprintf("%s/quote?symbol=%s&apikey=%s", c.baseURL, symbol, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to build Twelve Data request for %s: %w", symbol, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("Twelve Data request for %s failed: %w: %v", symbol, domain.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("Twelve Data returned status %d for %s: %w: %s",
			resp.StatusCode, symbol, domain.ErrProviderRejected, string(body))
	}

	var result quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Quote{}, fmt.Errorf("failed to parse Twelve Data response for %s: %w", symbol, err)
	}

	// Errors come back as 200 with an embedded code.
	if result.Code != 0 {
		return Quote{}, fmt.Errorf("Twelve Data error %d for %s: %w: %s",
			result.Code, symbol, domain.ErrProviderRejected, result.Message)
	}

	closeVal, err := strconv.ParseFloat(result.Close, 64)
	if err != nil || math.IsNaN(closeVal) || math.IsInf(closeVal, 0) {
		return Quote{}, fmt.Errorf("unusable close %q for %s: %w", result.Close, symbol, domain.ErrTransformInvalid)
	}

	ts := time.Unix(result.Timestamp, 0).UTC()
	if result.Timestamp == 0 {
		ts = time.Now().UTC()
	}

	c.log.Debug().Str("symbol", symbol).Float64("close", closeVal).Msg("Fetched quote")
	return Quote{Symbol: symbol, Close: closeVal, Timestamp: ts}, nil
}
