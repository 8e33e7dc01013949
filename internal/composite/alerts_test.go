package composite

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

func vixDef(t *testing.T) domain.IndicatorDefinition {
	t.Helper()
	def, ok := domain.IndicatorByID(domain.IndicatorVIX)
	require.True(t, ok)
	return def
}

func TestZScoreAlertBands(t *testing.T) {
	def := vixDef(t)
	at := time.Now().UTC()

	assert.Nil(t, zScoreAlert(def, 18, 1.2, at))
	assert.Nil(t, zScoreAlert(def, 18, -1.5, at))

	warning := zScoreAlert(def, 25, 1.8, at)
	require.NotNil(t, warning)
	assert.Equal(t, domain.SeverityWarning, warning.Severity)
	assert.Equal(t, domain.AlertHighZScore, warning.Type)
	require.NotNil(t, warning.IndicatorID)
	assert.Equal(t, domain.IndicatorVIX, *warning.IndicatorID)

	critical := zScoreAlert(def, 45, -2.8, at)
	require.NotNil(t, critical)
	assert.Equal(t, domain.SeverityCritical, critical.Severity)
	assert.NotEmpty(t, critical.ID)
	assert.False(t, critical.Acknowledged)
}

func TestDeviationAlert(t *testing.T) {
	def := vixDef(t)
	at := time.Now().UTC()
	prev := 20.0

	// First day has no baseline.
	assert.Nil(t, deviationAlert(def, 25, nil, at))
	// 5% move stays quiet.
	assert.Nil(t, deviationAlert(def, 21, &prev, at))

	a := deviationAlert(def, 23, &prev, at)
	require.NotNil(t, a)
	assert.Equal(t, domain.AlertDeviationReview, a.Type)
	assert.Equal(t, domain.SeverityInfo, a.Severity)
}

func TestBoundSuggestionScalesBounds(t *testing.T) {
	def := vixDef(t)
	a := boundSuggestionAlert(def, time.Now().UTC())
	require.NotNil(t, a)
	assert.Equal(t, domain.AlertBoundSuggestion, a.Type)
	assert.Contains(t, a.Message, def.Label)

	// Suggested range is the bounds scaled by 0.8 and 1.2, not a span
	// offset: [10, 50] becomes [8, 60].
	assert.Contains(t, a.Message, fmt.Sprintf("[%.4g, %.4g]", def.LowerBound*0.8, def.UpperBound*1.2))
}

func TestBreachAlertBands(t *testing.T) {
	at := time.Now().UTC()

	assert.Nil(t, breachAlert(0.4, at))
	assert.Nil(t, breachAlert(-1.0, at))

	warning := breachAlert(-1.4, at)
	require.NotNil(t, warning)
	assert.Equal(t, domain.SeverityWarning, warning.Severity)

	// Breaches fire on the upside too.
	upside := breachAlert(1.6, at)
	require.NotNil(t, upside)
	assert.Equal(t, domain.SeverityWarning, upside.Severity)

	critical := breachAlert(-2.3, at)
	require.NotNil(t, critical)
	assert.Equal(t, domain.SeverityCritical, critical.Severity)
}

func TestChangeAlertNeedsBaseline(t *testing.T) {
	at := time.Now().UTC()

	// First tick of the process: no previous value, no alert even on a big
	// absolute reading.
	assert.Nil(t, changeAlert(-1.8, nil, at))

	prev := -1.8
	assert.Nil(t, changeAlert(-1.5, &prev, at))

	a := changeAlert(-0.9, &prev, at)
	require.NotNil(t, a)
	assert.Equal(t, domain.AlertPXIChange, a.Type)
	assert.Equal(t, domain.SeverityWarning, a.Severity)
	assert.Contains(t, a.Message, "+0.90")
}
