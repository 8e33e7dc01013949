package domain

import "time"

// ThresholdRegime is the regime label derived from fixed PXI thresholds.
// It is independent of the discovered k-means regime.
type ThresholdRegime string

const (
	RegimeStrongPamp     ThresholdRegime = "Strong PAMP"
	RegimeModeratePamp   ThresholdRegime = "Moderate PAMP"
	RegimeNormal         ThresholdRegime = "Normal"
	RegimeElevatedStress ThresholdRegime = "Elevated Stress"
	RegimeCrisis         ThresholdRegime = "Crisis"
)

// ClassifyRegime maps a clamped PXI value onto the threshold regime.
func ClassifyRegime(pxi float64) ThresholdRegime {
	switch {
	case pxi > 2.0:
		return RegimeStrongPamp
	case pxi > 1.0:
		return RegimeModeratePamp
	case pxi >= -1.0:
		return RegimeNormal
	case pxi >= -2.0:
		return RegimeElevatedStress
	default:
		return RegimeCrisis
	}
}

// MetricContribution is one indicator's participation in a composite row.
type MetricContribution struct {
	IndicatorID      string  `json:"id"`
	Value            float64 `json:"value"`
	Z                float64 `json:"z"`
	NormalizedWeight float64 `json:"normalized_weight"`
	Contribution     float64 `json:"contribution"`
}

// CompositeRow is one computed PXI observation.
// Invariants: sum of NormalizedWeight == 1 +/- 1e-4 when any indicator
// participates; PXI == clamp(sum of Contribution, -3, 3).
type CompositeRow struct {
	CalculatedAt time.Time
	RawPXI       float64
	PXI          float64 // clamped to [-3, 3]
	Metrics      []MetricContribution
	Regime       ThresholdRegime
	TotalWeight  float64
	PampCount    int
	StressCount  int
}

// ClampPXI clamps a raw composite value into the display range.
func ClampPXI(raw float64) float64 {
	if raw > 3 {
		return 3
	}
	if raw < -3 {
		return -3
	}
	return raw
}
