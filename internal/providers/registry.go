package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/pxi/internal/clients/coingecko"
	"github.com/aristath/pxi/internal/clients/fred"
	"github.com/aristath/pxi/internal/clients/twelvedata"
	"github.com/aristath/pxi/internal/domain"
)

// fetchConcurrency bounds parallel provider calls per cycle.
const fetchConcurrency = 4

// Registry holds one fetcher per indicator and fans fetches out per cycle.
// A single failing indicator never blocks the others.
type Registry struct {
	fetchers []Fetcher
	log      zerolog.Logger
}

// NewRegistry wires the full indicator panel onto the provider clients.
func NewRegistry(fredClient *fred.Client, cgClient *coingecko.Client, tdClient *twelvedata.Client, log zerolog.Logger) (*Registry, error) {
	var fetchers []Fetcher
	for _, def := range domain.Indicators {
		f, err := fetcherFor(def, fredClient, cgClient, tdClient)
		if err != nil {
			return nil, fmt.Errorf("failed to build fetcher for %s: %w", def.ID, err)
		}
		fetchers = append(fetchers, f)
	}
	return &Registry{
		fetchers: fetchers,
		log:      log.With().Str("component", "providers").Logger(),
	}, nil
}

func fetcherFor(def domain.IndicatorDefinition, fredClient *fred.Client, cgClient *coingecko.Client, tdClient *twelvedata.Client) (Fetcher, error) {
	switch {
	case def.ID == domain.IndicatorYieldCurve:
		return NewYieldCurveFetcher(def, fredClient)
	case def.ProviderID == domain.ProviderFRED:
		return NewFREDFetcher(def, fredClient), nil
	case def.ProviderID == domain.ProviderCoinGecko:
		return NewBTCReturnFetcher(def, cgClient), nil
	case def.ProviderID == domain.ProviderTwelveData:
		return NewUSDIndexFetcher(def, tdClient), nil
	default:
		return nil, fmt.Errorf("no fetcher for provider %s", def.ProviderID)
	}
}

// FetchAll runs every fetcher concurrently and returns the samples that
// succeeded plus the per-indicator errors of those that did not. It only
// returns an error when the context is cancelled.
func (r *Registry) FetchAll(ctx context.Context) ([]domain.Sample, map[string]error, error) {
	var mu sync.Mutex
	samples := make([]domain.Sample, 0, len(r.fetchers))
	failures := make(map[string]error)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for _, f := range r.fetchers {
		f := f
		g.Go(func() error {
			sample, err := f.Fetch(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[f.IndicatorID()] = err
				r.log.Warn().Err(err).Str("indicator", f.IndicatorID()).Msg("Fetch failed")
				return nil
			}
			samples = append(samples, sample)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	r.log.Debug().
		Int("fetched", len(samples)).
		Int("failed", len(failures)).
		Msg("Fetch cycle complete")
	return samples, failures, nil
}

// Count returns the size of the panel.
func (r *Registry) Count() int { return len(r.fetchers) }
