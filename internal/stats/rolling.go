// Package stats computes the rolling statistical baselines behind the
// composite: daily resampling, forward-fill, window statistics and z-scores.
package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/pkg/formulas"
)

// minWindowPoints is the smallest daily window that yields a usable sigma.
const minWindowPoints = 5

// flatSigma is the threshold below which a window counts as flat.
const flatSigma = 1e-9

// defaultSparseCoverage is the observed-day fraction below which a multi-day
// span gets forward-filled.
const defaultSparseCoverage = 0.5

// ResampleDaily collapses raw samples into one value per indicator per UTC
// calendar day. Within a day the sample with the newest source timestamp wins.
func ResampleDaily(samples []domain.Sample) []domain.HistoryDaily {
	type key struct {
		indicator string
		date      string
	}

	newest := make(map[key]domain.Sample)
	for _, s := range samples {
		k := key{indicator: s.IndicatorID, date: s.SourceTimestamp.UTC().Format("2006-01-02")}
		if cur, ok := newest[k]; !ok || s.SourceTimestamp.After(cur.SourceTimestamp) {
			newest[k] = s
		}
	}

	out := make([]domain.HistoryDaily, 0, len(newest))
	for k, s := range newest {
		def, _ := domain.IndicatorByID(s.IndicatorID)
		out = append(out, domain.HistoryDaily{
			IndicatorID: k.indicator,
			Date:        k.date,
			Value:       s.Value,
			Source:      def.ProviderID,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].IndicatorID != out[j].IndicatorID {
			return out[i].IndicatorID < out[j].IndicatorID
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// ForwardFill imputes a sparse daily series. When observed days cover less
// than sparseCoverage of the span from the first observation through asOf,
// and the span exceeds one day, missing days carry the most recent prior
// value. Denser series come back as the observed values alone, in date order:
// weekly and monthly release schedules get filled, a weekend gap in a daily
// series does not.
func ForwardFill(observed []domain.HistoryDaily, asOf time.Time, sparseCoverage float64) ([]float64, error) {
	if len(observed) == 0 {
		return nil, fmt.Errorf("no observed days: %w", domain.ErrInsufficientHistory)
	}

	sorted := make([]domain.HistoryDaily, len(observed))
	copy(sorted, observed)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	byDate := make(map[string]float64, len(sorted))
	for _, d := range sorted {
		byDate[d.Date] = d.Value
	}

	start, err := time.ParseInLocation("2006-01-02", sorted[0].Date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("bad history date %q: %w", sorted[0].Date, err)
	}
	end := asOf.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		end = start
	}

	spanDays := int(end.Sub(start).Hours()/24) + 1
	coverage := float64(len(byDate)) / float64(spanDays)
	if spanDays <= 1 || coverage >= sparseCoverage {
		series := make([]float64, len(sorted))
		for i, d := range sorted {
			series[i] = d.Value
		}
		return series, nil
	}

	series := make([]float64, 0, spanDays)
	last := sorted[0].Value
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if v, ok := byDate[day.Format("2006-01-02")]; ok {
			last = v
		}
		series = append(series, last)
	}
	return series, nil
}

// ComputeStats derives the window baseline from a daily series.
// StdDev is nil while the window holds fewer than 5 points.
func ComputeStats(indicatorID string, windowDays int, series []float64, asOf time.Time) domain.StatsSnapshot {
	snap := domain.StatsSnapshot{
		IndicatorID: indicatorID,
		WindowDays:  windowDays,
		N:           len(series),
		AsOf:        asOf,
	}
	if len(series) == 0 {
		return snap
	}

	snap.Mean = formulas.Mean(series)
	snap.Min = series[0]
	snap.Max = series[0]
	for _, v := range series[1:] {
		snap.Min = math.Min(snap.Min, v)
		snap.Max = math.Max(snap.Max, v)
	}

	if len(series) >= minWindowPoints {
		sd := formulas.StdDev(series)
		snap.StdDev = &sd
	}
	return snap
}

// ComputeZScore standardizes a value against a window baseline.
// Returns nil while the window is too short; returns 0 for a flat window so a
// constant series never explodes the composite.
func ComputeZScore(value float64, snap domain.StatsSnapshot) *float64 {
	if snap.StdDev == nil {
		return nil
	}

	var z float64
	if *snap.StdDev < flatSigma {
		z = 0
	} else {
		z = (value - snap.Mean) / *snap.StdDev
	}
	return &z
}

// RollingVolatility is the standard deviation over the tail of a daily
// series. Returns nil when fewer than 5 values exist.
func RollingVolatility(series []float64, tailDays int) *float64 {
	if tailDays < len(series) {
		series = series[len(series)-tailDays:]
	}
	if len(series) < minWindowPoints {
		return nil
	}

	vol := formulas.StdDev(series)
	return &vol
}
