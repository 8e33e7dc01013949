package stats

import (
	"math"
	"time"

	"github.com/aristath/pxi/internal/domain"
)

// Stability band edges, in units of 30-day rolling z volatility.
const (
	stabilityVeryStableMax = 0.25
	stabilityStableMax     = 0.75
	stabilityVolatileMax   = 1.5
)

// ClassifyHealth labels one indicator's recent behavior. Checks run in
// severity order: invalid data beats staleness beats flatness beats outliers.
func ClassifyHealth(series []float64, latestZ *float64, outlierThreshold float64) domain.HealthStatus {
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.HealthInvalid
		}
	}

	if len(series) < minWindowPoints {
		return domain.HealthStale
	}

	snap := ComputeStats("", 0, series, time.Time{})
	if snap.StdDev != nil && *snap.StdDev < flatSigma {
		return domain.HealthFlat
	}

	if latestZ != nil && math.Abs(*latestZ) >= outlierThreshold {
		return domain.HealthOutlier
	}
	return domain.HealthOK
}

// StabilityFromVolatility maps rolling volatility onto a fixed rating band.
// Nil volatility (short window) reads as unstable.
func StabilityFromVolatility(vol *float64) domain.StabilityRating {
	if vol == nil {
		return domain.StabilityUnstable
	}
	switch {
	case *vol < stabilityVeryStableMax:
		return domain.StabilityVeryStable
	case *vol < stabilityStableMax:
		return domain.StabilityStable
	case *vol < stabilityVolatileMax:
		return domain.StabilityVolatile
	default:
		return domain.StabilityUnstable
	}
}
