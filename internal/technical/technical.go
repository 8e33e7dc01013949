// Package technical derives a signal multiplier for the crypto indicator from
// daily technical analysis. The multiplier dampens the indicator in overbought
// or bearish tape and amplifies it when oversold.
package technical

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/clients/alphavantage"
	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/internal/store"
	"github.com/aristath/pxi/pkg/formulas"
)

const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9

	rsiOverbought = 70.0
	rsiOversold   = 30.0

	multiplierDampen  = 0.8
	multiplierAmplify = 1.2
	multiplierNeutral = 1.0

	btcSymbol = "BTC"
)

// Signal is the cached outcome of one technical refresh.
type Signal struct {
	Multiplier    float64   `msgpack:"multiplier"`
	RSI           *float64  `msgpack:"rsi"`
	MACDHistogram *float64  `msgpack:"macd_histogram"`
	ComputedAt    time.Time `msgpack:"computed_at"`
}

// Service runs the twice-daily technical refresh and exposes the cached
// signal to the ingest loop.
type Service struct {
	client *alphavantage.Client
	store  *store.Store
	log    zerolog.Logger
}

// NewService creates the technical refresh service.
func NewService(client *alphavantage.Client, st *store.Store, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		store:  st,
		log:    log.With().Str("component", "technical").Logger(),
	}
}

// Refresh recomputes the signal from fresh daily closes and caches it.
func (s *Service) Refresh(ctx context.Context) (*Signal, error) {
	closes, err := s.client.DailyCloses(ctx, btcSymbol)
	if err != nil {
		return nil, fmt.Errorf("technical refresh: %w", err)
	}

	values := make([]float64, len(closes))
	for i, c := range closes {
		values[i] = c.Close
	}

	rsi := formulas.CalculateRSI(values, rsiPeriod)
	macd := formulas.CalculateMACD(values, macdFast, macdSlow, macdSignal)

	signal := deriveSignal(rsi, macd, time.Now().UTC())
	if err := s.store.Derived.Store(ctx, store.DerivedKindTechnical, btcSymbol, signal, store.TTLTechnical); err != nil {
		return nil, fmt.Errorf("cache technical signal: %w", err)
	}

	event := s.log.Info().Float64("multiplier", signal.Multiplier)
	if rsi != nil {
		event = event.Float64("rsi", *rsi)
	}
	if macd != nil {
		event = event.Float64("macd_histogram", macd.Histogram)
	}
	event.Msg("Technical signal refreshed")
	return &signal, nil
}

// CurrentSignal returns the cached signal, or nil when none is fresh.
func (s *Service) CurrentSignal(ctx context.Context) (*Signal, error) {
	var signal Signal
	fresh, err := s.store.Derived.GetIfFresh(ctx, store.DerivedKindTechnical, btcSymbol, &signal)
	if err != nil {
		return nil, fmt.Errorf("load technical signal: %w", err)
	}
	if !fresh {
		return nil, nil
	}
	return &signal, nil
}

// ApplyOverrides attaches the cached signal to the crypto indicator's sample.
// Without a fresh signal the samples pass through untouched.
func (s *Service) ApplyOverrides(ctx context.Context, samples []domain.Sample) []domain.Sample {
	signal, err := s.CurrentSignal(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Technical signal unavailable, skipping override")
		return samples
	}
	if signal == nil {
		return samples
	}

	for i := range samples {
		if samples[i].IndicatorID != domain.IndicatorBTCReturn {
			continue
		}
		mul := signal.Multiplier
		samples[i].Overrides = domain.SignalOverrides{
			SignalMultiplier: &mul,
			RSI:              signal.RSI,
			MACDHistogram:    signal.MACDHistogram,
		}
	}
	return samples
}

// deriveSignal maps the indicator readings onto a multiplier. Overbought or
// bearish tape dampens the crypto weight; oversold amplifies it. Missing
// indicators fall back to neutral.
func deriveSignal(rsi *float64, macd *formulas.MACDResult, at time.Time) Signal {
	signal := Signal{Multiplier: multiplierNeutral, RSI: rsi, ComputedAt: at}
	if macd != nil {
		hist := macd.Histogram
		signal.MACDHistogram = &hist
	}

	switch {
	case rsi != nil && *rsi > rsiOverbought:
		signal.Multiplier = multiplierDampen
	case macd != nil && macd.Histogram < 0:
		signal.Multiplier = multiplierDampen
	case rsi != nil && *rsi < rsiOversold:
		signal.Multiplier = multiplierAmplify
	}
	return signal
}
