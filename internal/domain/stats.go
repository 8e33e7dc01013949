package domain

import "time"

// StatsSnapshot is the rolling statistical baseline of one indicator.
// StdDev is nil while n < 5; downstream treats nil as insufficient data.
type StatsSnapshot struct {
	IndicatorID string
	WindowDays  int
	Mean        float64
	StdDev      *float64
	N           int
	Min         float64
	Max         float64
	Health      HealthStatus
	AsOf        time.Time
}

// ZScoreRow is one computed z-score observation.
// Z is nil when the window held fewer than 5 daily points.
type ZScoreRow struct {
	IndicatorID string
	Timestamp   time.Time
	RawValue    float64
	Mean        float64
	StdDev      float64
	Z           *float64
}

// HealthStatus classifies the recent behavior of one indicator's series.
type HealthStatus string

const (
	HealthOK      HealthStatus = "ok"
	HealthInvalid HealthStatus = "invalid" // NaN/Inf present in recent values
	HealthFlat    HealthStatus = "flat"    // sigma < 1e-9 over the window
	HealthOutlier HealthStatus = "outlier" // latest |z| >= outlier threshold
	HealthStale   HealthStatus = "stale"   // fewer than 5 daily points in window
)

// StabilityRating partitions rolling volatility into fixed bands.
type StabilityRating string

const (
	StabilityVeryStable StabilityRating = "very_stable"
	StabilityStable     StabilityRating = "stable"
	StabilityVolatile   StabilityRating = "volatile"
	StabilityUnstable   StabilityRating = "unstable"
)
