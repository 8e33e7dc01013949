package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/pxi/internal/domain"
)

// highCorrelationThreshold flags indicator pairs that move in lockstep.
// Two near-identical series double-weight the same risk factor.
const highCorrelationThreshold = 0.95

// CorrelatedPair is one flagged indicator pair from the daily pass.
type CorrelatedPair struct {
	IndicatorA  string  `json:"indicator_a"`
	IndicatorB  string  `json:"indicator_b"`
	Correlation float64 `json:"correlation"`
}

// DailyValidationPass cross-checks the panel once a day: it reclassifies each
// indicator's health from its full window, then aligns the daily series on
// common dates and flags pairs whose correlation exceeds the lockstep
// threshold. The correlation result is advisory and logged, never blocking.
func (s *Service) DailyValidationPass(ctx context.Context) ([]CorrelatedPair, error) {
	now := time.Now().UTC()
	series := make(map[string][]domain.HistoryDaily)
	for _, def := range domain.Indicators {
		observed, err := s.store.History.FetchDaily(ctx, def.ID, s.windowDays)
		if err != nil {
			return nil, fmt.Errorf("fetch history for %s: %w", def.ID, err)
		}
		if err := s.reclassifyHealth(ctx, def.ID, observed, now); err != nil {
			return nil, err
		}
		if len(observed) >= minWindowPoints {
			series[def.ID] = observed
		}
	}
	if len(series) < 2 {
		s.log.Debug().Msg("Too few populated series for correlation pass")
		return nil, nil
	}

	ids, matrix := alignedMatrix(series)
	if matrix == nil {
		s.log.Debug().Msg("No common dates across series, skipping correlation pass")
		return nil, nil
	}

	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, matrix, nil)

	var flagged []CorrelatedPair
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			rho := corr.At(i, j)
			if math.IsNaN(rho) || math.Abs(rho) < highCorrelationThreshold {
				continue
			}
			flagged = append(flagged, CorrelatedPair{
				IndicatorA:  ids[i],
				IndicatorB:  ids[j],
				Correlation: rho,
			})
			s.log.Warn().
				Str("indicator_a", ids[i]).
				Str("indicator_b", ids[j]).
				Float64("correlation", rho).
				Msg("Indicators moving in lockstep")
		}
	}
	return flagged, nil
}

// reclassifyHealth recomputes one indicator's health from its stored daily
// window and persists it with the baseline snapshot.
func (s *Service) reclassifyHealth(ctx context.Context, indicatorID string, observed []domain.HistoryDaily, now time.Time) error {
	daily, err := ForwardFill(observed, now.AddDate(0, 0, -1), defaultSparseCoverage)
	if err != nil {
		daily = nil
	}

	snap := ComputeStats(indicatorID, s.windowDays, daily, now)
	var z *float64
	if len(daily) > 0 {
		z = ComputeZScore(daily[len(daily)-1], snap)
	}
	snap.Health = ClassifyHealth(daily, z, s.outlierThreshold)

	if err := s.store.Stats.UpsertStats(ctx, snap); err != nil {
		return fmt.Errorf("store health for %s: %w", indicatorID, err)
	}
	return nil
}

// alignedMatrix builds a dates-by-indicators matrix over the dates every
// series has observed. Returns nil when fewer than 5 common dates exist.
func alignedMatrix(series map[string][]domain.HistoryDaily) ([]string, *mat.Dense) {
	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	byDate := make(map[string]map[string]float64)
	for id, observed := range series {
		for _, d := range observed {
			if byDate[d.Date] == nil {
				byDate[d.Date] = make(map[string]float64)
			}
			byDate[d.Date][id] = d.Value
		}
	}

	var common []string
	for date, values := range byDate {
		if len(values) == len(ids) {
			common = append(common, date)
		}
	}
	if len(common) < minWindowPoints {
		return nil, nil
	}
	sort.Strings(common)

	matrix := mat.NewDense(len(common), len(ids), nil)
	for row, date := range common {
		for col, id := range ids {
			matrix.Set(row, col, byDate[date][id])
		}
	}
	return ids, matrix
}
