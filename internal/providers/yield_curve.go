package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/pxi/internal/clients/fred"
	"github.com/aristath/pxi/internal/domain"
)

// yieldCurveFetcher derives the 10y-2y Treasury spread from two FRED series.
// Both legs must have a value on the same date; a one-legged read is an error,
// never a spread against a stale leg.
type yieldCurveFetcher struct {
	def       domain.IndicatorDefinition
	client    *fred.Client
	longLeg   string
	shortLeg  string
	lookbackN int
}

// NewYieldCurveFetcher builds the spread fetcher. The definition's series ID
// holds both legs, comma separated (long first).
func NewYieldCurveFetcher(def domain.IndicatorDefinition, client *fred.Client) (Fetcher, error) {
	legs := strings.Split(def.ProviderSeriesID, ",")
	if len(legs) != 2 {
		return nil, fmt.Errorf("yield curve needs two series, got %q", def.ProviderSeriesID)
	}
	return &yieldCurveFetcher{
		def:       def,
		client:    client,
		longLeg:   strings.TrimSpace(legs[0]),
		shortLeg:  strings.TrimSpace(legs[1]),
		lookbackN: 10,
	}, nil
}

func (f *yieldCurveFetcher) IndicatorID() string { return f.def.ID }

func (f *yieldCurveFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	longObs, err := f.client.Observations(ctx, f.longLeg, f.lookbackN)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("fetch %s (%s): %w", f.def.ID, f.longLeg, err)
	}
	shortObs, err := f.client.Observations(ctx, f.shortLeg, f.lookbackN)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("fetch %s (%s): %w", f.def.ID, f.shortLeg, err)
	}

	date, longVal, shortVal, ok := latestCommonDate(longObs, shortObs)
	if !ok {
		return domain.Sample{}, fmt.Errorf("fetch %s: no common date between %s and %s: %w",
			f.def.ID, f.longLeg, f.shortLeg, domain.ErrTransformInvalid)
	}

	sourceTs, err := parseFREDDate(date)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("fetch %s: %w", f.def.ID, err)
	}

	// Both legs are percent; the spread is converted to decimal.
	return domain.Sample{
		IndicatorID:     f.def.ID,
		Value:           (longVal - shortVal) / 100.0,
		Unit:            "decimal",
		SourceTimestamp: sourceTs,
		IngestedAt:      time.Now().UTC(),
	}, nil
}

// latestCommonDate finds the newest date present in both observation lists.
func latestCommonDate(longObs, shortObs []fred.Observation) (string, float64, float64, bool) {
	shortByDate := make(map[string]float64, len(shortObs))
	for _, o := range shortObs {
		shortByDate[o.Date] = o.Value
	}

	for i := len(longObs) - 1; i >= 0; i-- {
		if shortVal, ok := shortByDate[longObs[i].Date]; ok {
			return longObs[i].Date, longObs[i].Value, shortVal, true
		}
	}
	return "", 0, 0, false
}
