// Package providers maps the indicator panel onto the external data clients.
// Each fetcher produces one canonical-unit sample per cycle.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/pxi/internal/clients/coingecko"
	"github.com/aristath/pxi/internal/clients/fred"
	"github.com/aristath/pxi/internal/clients/twelvedata"
	"github.com/aristath/pxi/internal/domain"
)

// Fetcher retrieves the latest sample for one indicator.
type Fetcher interface {
	IndicatorID() string
	Fetch(ctx context.Context) (domain.Sample, error)
}

// fredFetcher fetches a single FRED series and converts it to canonical units.
// FRED publishes rates as percent; divisor 100 converts to decimal.
type fredFetcher struct {
	def     domain.IndicatorDefinition
	client  *fred.Client
	divisor float64
	unit    string
}

// NewFREDFetcher builds a fetcher for one FRED-backed indicator. Percent
// series (spreads, rates, breakevens) are converted to decimal; index series
// (VIX, NFCI) pass through.
func NewFREDFetcher(def domain.IndicatorDefinition, client *fred.Client) Fetcher {
	divisor := 100.0
	unit := "decimal"
	switch def.ProviderSeriesID {
	case "VIXCLS":
		divisor = 1.0
		unit = "index_points"
	case "NFCI":
		divisor = 1.0
		unit = "index_units"
	}
	return &fredFetcher{def: def, client: client, divisor: divisor, unit: unit}
}

func (f *fredFetcher) IndicatorID() string { return f.def.ID }

func (f *fredFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	obs, err := f.client.LatestObservation(ctx, f.def.ProviderSeriesID)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("fetch %s: %w", f.def.ID, err)
	}

	sourceTs, err := parseFREDDate(obs.Date)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("fetch %s: %w", f.def.ID, err)
	}

	return domain.Sample{
		IndicatorID:     f.def.ID,
		Value:           obs.Value / f.divisor,
		Unit:            f.unit,
		SourceTimestamp: sourceTs,
		IngestedAt:      time.Now().UTC(),
	}, nil
}

// usdIndexFetcher fetches the latest DXY close from Twelve Data.
type usdIndexFetcher struct {
	def    domain.IndicatorDefinition
	client *twelvedata.Client
}

// NewUSDIndexFetcher builds the dollar-index fetcher.
func NewUSDIndexFetcher(def domain.IndicatorDefinition, client *twelvedata.Client) Fetcher {
	return &usdIndexFetcher{def: def, client: client}
}

func (f *usdIndexFetcher) IndicatorID() string { return f.def.ID }

func (f *usdIndexFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	quote, err := f.client.GetQuote(ctx, f.def.ProviderSeriesID)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("fetch %s: %w", f.def.ID, err)
	}

	now := time.Now().UTC()
	sourceTs := quote.Timestamp
	if sourceTs.After(now) {
		sourceTs = now
	}

	return domain.Sample{
		IndicatorID:     f.def.ID,
		Value:           quote.Close,
		Unit:            "index_points",
		SourceTimestamp: sourceTs,
		IngestedAt:      now,
	}, nil
}

// btcReturnFetcher computes the bitcoin 24h log return from CoinGecko daily
// prices.
type btcReturnFetcher struct {
	def    domain.IndicatorDefinition
	client *coingecko.Client
}

// NewBTCReturnFetcher builds the crypto-return fetcher.
func NewBTCReturnFetcher(def domain.IndicatorDefinition, client *coingecko.Client) Fetcher {
	return &btcReturnFetcher{def: def, client: client}
}

func (f *btcReturnFetcher) IndicatorID() string { return f.def.ID }

func (f *btcReturnFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	ret, ts, err := f.client.Return24h(ctx, f.def.ProviderSeriesID)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("fetch %s: %w", f.def.ID, err)
	}

	now := time.Now().UTC()
	if ts.After(now) {
		ts = now
	}

	return domain.Sample{
		IndicatorID:     f.def.ID,
		Value:           ret,
		Unit:            "decimal",
		SourceTimestamp: ts,
		IngestedAt:      now,
	}, nil
}

// parseFREDDate converts a FRED observation date into UTC midnight.
func parseFREDDate(date string) (time.Time, error) {
	ts, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad observation date %q: %w", date, err)
	}
	return ts, nil
}
