package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

func day(date string) time.Time {
	ts, _ := time.ParseInLocation("2006-01-02", date, time.UTC)
	return ts
}

func dailyPoints(id string, values map[string]float64) []domain.HistoryDaily {
	var out []domain.HistoryDaily
	for date, v := range values {
		out = append(out, domain.HistoryDaily{IndicatorID: id, Date: date, Value: v, Source: "fred"})
	}
	return out
}

func TestComputeZScoreAgainstKnownWindow(t *testing.T) {
	series := []float64{15, 16, 17, 18, 19}
	snap := ComputeStats(domain.IndicatorVIX, 90, series, time.Now().UTC())

	assert.InDelta(t, 17.0, snap.Mean, 1e-12)
	require.NotNil(t, snap.StdDev)
	assert.InDelta(t, 1.5811, *snap.StdDev, 1e-4)

	z := ComputeZScore(20, snap)
	require.NotNil(t, z)
	assert.InDelta(t, 1.8974, *z, 1e-4)
}

func TestComputeZScoreFlatWindowIsZero(t *testing.T) {
	series := []float64{3.5, 3.5, 3.5, 3.5, 3.5, 3.5}
	snap := ComputeStats(domain.IndicatorNFCI, 90, series, time.Now().UTC())
	require.NotNil(t, snap.StdDev)

	z := ComputeZScore(3.5, snap)
	require.NotNil(t, z)
	assert.Equal(t, 0.0, *z)
}

func TestComputeZScoreNilBelowFivePoints(t *testing.T) {
	series := []float64{15, 16, 17, 18}
	snap := ComputeStats(domain.IndicatorVIX, 90, series, time.Now().UTC())
	assert.Nil(t, snap.StdDev)
	assert.Nil(t, ComputeZScore(20, snap))
}

func TestResampleDailyLastWins(t *testing.T) {
	morning := day("2026-08-20").Add(9 * time.Hour)
	evening := day("2026-08-20").Add(21 * time.Hour)
	ingested := evening.Add(time.Minute)

	resampled := ResampleDaily([]domain.Sample{
		{IndicatorID: domain.IndicatorVIX, Value: 17.0, SourceTimestamp: morning, IngestedAt: ingested},
		{IndicatorID: domain.IndicatorVIX, Value: 18.5, SourceTimestamp: evening, IngestedAt: ingested},
	})

	require.Len(t, resampled, 1)
	assert.Equal(t, "2026-08-20", resampled[0].Date)
	assert.InDelta(t, 18.5, resampled[0].Value, 1e-12)
	assert.Equal(t, "fred", resampled[0].Source)
}

func TestResampleDailySplitsAcrossDays(t *testing.T) {
	ingested := day("2026-08-21").Add(time.Hour)
	resampled := ResampleDaily([]domain.Sample{
		{IndicatorID: domain.IndicatorVIX, Value: 17.0, SourceTimestamp: day("2026-08-20"), IngestedAt: ingested},
		{IndicatorID: domain.IndicatorVIX, Value: 18.5, SourceTimestamp: day("2026-08-21"), IngestedAt: ingested},
	})
	assert.Len(t, resampled, 2)
}

func TestForwardFillSparseWeeklySeries(t *testing.T) {
	// A weekly release covers ~14% of its span, so every gap day carries
	// the prior value.
	observed := dailyPoints(domain.IndicatorNFCI, map[string]float64{
		"2026-08-01": -0.40,
		"2026-08-08": -0.35,
		"2026-08-15": -0.30,
		"2026-08-22": -0.25,
	})

	series, err := ForwardFill(observed, day("2026-08-22"), defaultSparseCoverage)
	require.NoError(t, err)
	require.Len(t, series, 22)
	assert.InDelta(t, -0.40, series[0], 1e-12)
	assert.InDelta(t, -0.40, series[6], 1e-12)  // Aug 7 carries Aug 1
	assert.InDelta(t, -0.35, series[7], 1e-12)  // Aug 8 observed
	assert.InDelta(t, -0.30, series[20], 1e-12) // Aug 21 carries Aug 15
	assert.InDelta(t, -0.25, series[21], 1e-12)
}

func TestForwardFillDenseSeriesStaysObserved(t *testing.T) {
	// 60% coverage: above the sparse threshold, so the weekend gap is left
	// alone and only the observed points come back.
	observed := dailyPoints(domain.IndicatorVIX, map[string]float64{
		"2026-08-17": 17.0,
		"2026-08-18": 17.5,
		"2026-08-21": 19.0,
	})

	series, err := ForwardFill(observed, day("2026-08-21"), defaultSparseCoverage)
	require.NoError(t, err)
	assert.Equal(t, []float64{17.0, 17.5, 19.0}, series)
}

func TestForwardFillSingleDaySpan(t *testing.T) {
	observed := dailyPoints(domain.IndicatorVIX, map[string]float64{
		"2026-08-21": 18.0,
	})

	series, err := ForwardFill(observed, day("2026-08-21"), defaultSparseCoverage)
	require.NoError(t, err)
	assert.Equal(t, []float64{18.0}, series)
}

func TestForwardFillVerySparseSeriesFillsWholeSpan(t *testing.T) {
	observed := dailyPoints(domain.IndicatorVIX, map[string]float64{
		"2026-08-01": 17.0,
	})

	series, err := ForwardFill(observed, day("2026-08-21"), defaultSparseCoverage)
	require.NoError(t, err)
	require.Len(t, series, 21)
	assert.InDelta(t, 17.0, series[20], 1e-12)
}

func TestForwardFillEmptyWindow(t *testing.T) {
	_, err := ForwardFill(nil, day("2026-08-21"), defaultSparseCoverage)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))
}

func TestRollingVolatilityShortSeriesNil(t *testing.T) {
	assert.Nil(t, RollingVolatility([]float64{1, 2, 3}, 30))
}

func TestRollingVolatilityFlatSeriesZero(t *testing.T) {
	vol := RollingVolatility([]float64{2, 2, 2, 2, 2, 2}, 30)
	require.NotNil(t, vol)
	assert.InDelta(t, 0.0, *vol, 1e-12)
}

func TestRollingVolatilityIsSigmaOfValues(t *testing.T) {
	// Sigma of the last 30 daily values, not of their deltas: a linear ramp
	// has zero delta variance but nonzero value variance.
	vol := RollingVolatility([]float64{15, 16, 17, 18, 19}, 30)
	require.NotNil(t, vol)
	assert.InDelta(t, 1.5811, *vol, 1e-4)
}

func TestRollingVolatilityUsesTailOnly(t *testing.T) {
	series := make([]float64, 40)
	for i := range series {
		series[i] = float64(i)
	}

	vol := RollingVolatility(series, 30)
	require.NotNil(t, vol)

	tail := RollingVolatility(series[10:], 30)
	require.NotNil(t, tail)
	assert.InDelta(t, *tail, *vol, 1e-12)
}
