package composite

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/pxi/internal/domain"
)

// Alerting thresholds.
const (
	zScoreWarning  = 1.5
	zScoreCritical = 2.5

	breachWarning  = 1.0
	breachCritical = 2.0

	pxiChangeThreshold = 0.5

	deviationFraction = 0.10

	// Three deviation reviews inside a month suggest the display bounds no
	// longer fit the series.
	boundSuggestionCount  = 3
	boundSuggestionWindow = 30
	boundLowerFactor      = 0.8
	boundUpperFactor      = 1.2
)

func newAlert(alertType domain.AlertType, severity domain.AlertSeverity, at time.Time, message string) domain.Alert {
	return domain.Alert{
		ID:        uuid.NewString(),
		Type:      alertType,
		Timestamp: at,
		Message:   message,
		Severity:  severity,
	}
}

// zScoreAlert flags extreme standardized readings. Returns nil inside the
// normal band.
func zScoreAlert(def domain.IndicatorDefinition, value, z float64, at time.Time) *domain.Alert {
	abs := math.Abs(z)
	if abs <= zScoreWarning {
		return nil
	}

	severity := domain.SeverityWarning
	threshold := zScoreWarning
	if abs > zScoreCritical {
		severity = domain.SeverityCritical
		threshold = zScoreCritical
	}

	a := newAlert(domain.AlertHighZScore, severity, at,
		fmt.Sprintf("%s z-score %.2f beyond %.1f", def.Label, z, threshold))
	a.IndicatorID = &def.ID
	a.RawValue = &value
	a.Z = &z
	a.Threshold = &threshold
	return &a
}

// deviationAlert flags a day-over-day move beyond 10% of the previous value.
// A nil previous value (first day) never alerts.
func deviationAlert(def domain.IndicatorDefinition, value float64, prev *float64, at time.Time) *domain.Alert {
	if prev == nil || *prev == 0 {
		return nil
	}
	change := math.Abs((value - *prev) / *prev)
	if change <= deviationFraction {
		return nil
	}

	threshold := deviationFraction
	a := newAlert(domain.AlertDeviationReview, domain.SeverityInfo, at,
		fmt.Sprintf("%s moved %.1f%% in one day (%.4g -> %.4g)", def.Label, change*100, *prev, value))
	a.IndicatorID = &def.ID
	a.RawValue = &value
	a.Threshold = &threshold
	return &a
}

// boundSuggestionAlert proposes widened display bounds after repeated
// deviation reviews.
func boundSuggestionAlert(def domain.IndicatorDefinition, at time.Time) *domain.Alert {
	suggestedLower := def.LowerBound * boundLowerFactor
	suggestedUpper := def.UpperBound * boundUpperFactor

	a := newAlert(domain.AlertBoundSuggestion, domain.SeverityInfo, at,
		fmt.Sprintf("%s deviated repeatedly; consider bounds [%.4g, %.4g] instead of [%.4g, %.4g]",
			def.Label, suggestedLower, suggestedUpper, def.LowerBound, def.UpperBound))
	a.IndicatorID = &def.ID
	return &a
}

// breachAlert flags the composite leaving the normal band, in either
// direction.
func breachAlert(pxi float64, at time.Time) *domain.Alert {
	abs := math.Abs(pxi)
	if abs <= breachWarning {
		return nil
	}

	severity := domain.SeverityWarning
	threshold := breachWarning
	if abs > breachCritical {
		severity = domain.SeverityCritical
		threshold = breachCritical
	}

	a := newAlert(domain.AlertCompositeBreach, severity, at,
		fmt.Sprintf("PXI %.2f beyond %.1f", pxi, threshold))
	a.RawValue = &pxi
	a.Threshold = &threshold
	return &a
}

// changeAlert flags a large tick-over-tick composite move. The first tick of
// a process has no baseline and never alerts.
func changeAlert(pxi float64, prev *float64, at time.Time) *domain.Alert {
	if prev == nil {
		return nil
	}
	delta := pxi - *prev
	if math.Abs(delta) <= pxiChangeThreshold {
		return nil
	}

	threshold := pxiChangeThreshold
	a := newAlert(domain.AlertPXIChange, domain.SeverityWarning, at,
		fmt.Sprintf("PXI moved %+.2f in one cycle (%.2f -> %.2f)", delta, *prev, pxi))
	a.RawValue = &pxi
	a.Threshold = &threshold
	return &a
}
