// Package fred provides a client for the FRED observations API.
package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

const defaultBaseURL = "https://api.stlouisfed.org/fred"

// Observation is one dated value from a FRED series.
type Observation struct {
	Date  string
	Value float64
}

// Client for the St. Louis Fed FRED API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new FRED client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "fred").Logger(),
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// LatestObservation returns the most recent published value of a series.
// FRED encodes missing values as ".", which are skipped.
func (c *Client) LatestObservation(ctx context.Context, seriesID string) (Observation, error) {
	obs, err := c.Observations(ctx, seriesID, 10)
	if err != nil {
		return Observation{}, err
	}
	if len(obs) == 0 {
		return Observation{}, fmt.Errorf("series %s has no usable observations: %w", seriesID, domain.ErrTransformInvalid)
	}
	return obs[len(obs)-1], nil
}

// Observations returns up to limit recent observations of a series, ordered
// by date ascending. Missing-value placeholders are skipped.
func (c *Client) Observations(ctx context.Context, seriesID string, limit int) ([]Observation, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("sort_order", "desc")
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/series/observations?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build FRED request for %s: %w", seriesID, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FRED request for %s failed: %w: %v", seriesID, domain.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("FRED returned status %d for %s: %w: %s",
			resp.StatusCode, seriesID, domain.ErrProviderRejected, string(body))
	}

	var result observationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse FRED response for %s: %w", seriesID, err)
	}

	// Response is newest-first; reverse into ascending order.
	var obs []Observation
	for i := len(result.Observations) - 1; i >= 0; i-- {
		raw := result.Observations[i]
		if raw.Value == "." {
			continue
		}
		v, err := strconv.ParseFloat(raw.Value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("unusable value %q in series %s on %s: %w",
				raw.Value, seriesID, raw.Date, domain.ErrTransformInvalid)
		}
		obs = append(obs, Observation{Date: raw.Date, Value: v})
	}

	c.log.Debug().Str("series", seriesID).Int("observations", len(obs)).Msg("Fetched FRED series")
	return obs, nil
}
