package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/internal/store"
)

// IndicatorState is the per-indicator output of one pipeline pass, consumed
// by the composite engine and the metrics endpoint.
type IndicatorState struct {
	Sample    domain.Sample
	Stats     domain.StatsSnapshot
	ZScore    domain.ZScoreRow
	Health    domain.HealthStatus
	Stability domain.StabilityRating
}

// Service runs the storing and computing steps of a tick: persist samples,
// resample to daily history, recompute window baselines and z-scores.
type Service struct {
	store            *store.Store
	windowDays       int
	outlierThreshold float64
	log              zerolog.Logger
}

// NewService creates the stats pipeline.
func NewService(st *store.Store, windowDays int, outlierThreshold float64, log zerolog.Logger) *Service {
	return &Service{
		store:            st,
		windowDays:       windowDays,
		outlierThreshold: outlierThreshold,
		log:              log.With().Str("component", "stats").Logger(),
	}
}

// ProcessBatch persists a validated sample batch and recomputes each
// indicator's baseline and z-score. Indicators whose window is still too
// short come back with a nil Z and health "stale" rather than failing the
// cycle.
func (s *Service) ProcessBatch(ctx context.Context, samples []domain.Sample) (map[string]IndicatorState, error) {
	if err := s.store.Samples.UpsertSamples(ctx, samples); err != nil {
		return nil, fmt.Errorf("store samples: %w", err)
	}
	if err := s.store.History.UpsertDaily(ctx, ResampleDaily(samples)); err != nil {
		return nil, fmt.Errorf("store daily history: %w", err)
	}

	now := time.Now().UTC()
	states := make(map[string]IndicatorState, len(samples))
	var zRows []domain.ZScoreRow

	for _, sample := range samples {
		state, err := s.computeIndicator(ctx, sample, now)
		if err != nil {
			return nil, err
		}
		states[sample.IndicatorID] = state
		zRows = append(zRows, state.ZScore)

		if err := s.store.Stats.UpsertStats(ctx, state.Stats); err != nil {
			return nil, fmt.Errorf("store stats for %s: %w", sample.IndicatorID, err)
		}
	}

	if err := s.store.ZScores.InsertZScores(ctx, zRows); err != nil {
		return nil, fmt.Errorf("store z-scores: %w", err)
	}
	return states, nil
}

func (s *Service) computeIndicator(ctx context.Context, sample domain.Sample, now time.Time) (IndicatorState, error) {
	observed, err := s.store.History.FetchDaily(ctx, sample.IndicatorID, s.windowDays)
	if err != nil {
		return IndicatorState{}, fmt.Errorf("fetch history for %s: %w", sample.IndicatorID, err)
	}

	// The baseline ends yesterday; today's value is the one being scored.
	series, err := ForwardFill(observed, now.AddDate(0, 0, -1), defaultSparseCoverage)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientHistory) {
			return IndicatorState{}, fmt.Errorf("forward fill %s: %w", sample.IndicatorID, err)
		}
		// Warm-up: keep ingesting, emit a null z.
		s.log.Debug().Str("indicator", sample.IndicatorID).Msg("No history yet, z withheld")
		series = nil
	}

	snap := ComputeStats(sample.IndicatorID, s.windowDays, series, now)
	z := ComputeZScore(sample.Value, snap)

	zRow := domain.ZScoreRow{
		IndicatorID: sample.IndicatorID,
		Timestamp:   sample.IngestedAt,
		RawValue:    sample.Value,
		Mean:        snap.Mean,
		Z:           z,
	}
	if snap.StdDev != nil {
		zRow.StdDev = *snap.StdDev
	}

	snap.Health = ClassifyHealth(series, z, s.outlierThreshold)

	vol := RollingVolatility(series, 30)
	return IndicatorState{
		Sample:    sample,
		Stats:     snap,
		ZScore:    zRow,
		Health:    snap.Health,
		Stability: StabilityFromVolatility(vol),
	}, nil
}

// LatestBaselines exposes the stored per-indicator baselines.
func (s *Service) LatestBaselines(ctx context.Context) (map[string]domain.StatsSnapshot, error) {
	return s.store.Stats.LatestStats(ctx)
}
