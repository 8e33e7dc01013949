package validation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

func sampleFor(id string, value float64) domain.Sample {
	now := time.Now().UTC()
	return domain.Sample{
		IndicatorID:     id,
		Value:           value,
		Unit:            "decimal",
		SourceTimestamp: now.Add(-time.Hour),
		IngestedAt:      now,
	}
}

func assertRule(t *testing.T, err error, rule string) {
	t.Helper()
	require.Error(t, err)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, rule, verr.Rule)
}

func TestValidBatchPasses(t *testing.T) {
	v := New(zerolog.Nop())
	err := v.ValidateBatch([]domain.Sample{
		sampleFor(domain.IndicatorHYOAS, 0.045),
		sampleFor(domain.IndicatorIGOAS, 0.012),
		sampleFor(domain.IndicatorVIX, 18.4),
	})
	require.NoError(t, err)
}

func TestUnknownIndicatorFailsBatch(t *testing.T) {
	v := New(zerolog.Nop())
	err := v.ValidateBatch([]domain.Sample{sampleFor("mystery_series", 1.0)})
	assertRule(t, err, RuleKnownIndicator)
}

func TestNonFiniteValueFailsBatch(t *testing.T) {
	v := New(zerolog.Nop())
	err := v.ValidateBatch([]domain.Sample{sampleFor(domain.IndicatorVIX, math.NaN())})
	assertRule(t, err, RuleFinite)
}

func TestHardBoundsFailBatch(t *testing.T) {
	v := New(zerolog.Nop())
	// VIX hard max is 150.
	err := v.ValidateBatch([]domain.Sample{sampleFor(domain.IndicatorVIX, 400)})
	assertRule(t, err, RuleHardBounds)
}

func TestSpreadInversionFailsBatch(t *testing.T) {
	v := New(zerolog.Nop())
	err := v.ValidateBatch([]domain.Sample{
		sampleFor(domain.IndicatorHYOAS, 0.010),
		sampleFor(domain.IndicatorIGOAS, 0.012),
	})
	assertRule(t, err, RuleSpreadOrdering)
}

func TestSpreadRuleSkippedWhenOneLegAbsent(t *testing.T) {
	v := New(zerolog.Nop())
	err := v.ValidateBatch([]domain.Sample{sampleFor(domain.IndicatorIGOAS, 0.012)})
	require.NoError(t, err)
}

func TestFutureSourceTimestampFailsBatch(t *testing.T) {
	v := New(zerolog.Nop())
	s := sampleFor(domain.IndicatorVIX, 18.4)
	s.SourceTimestamp = s.IngestedAt.Add(time.Minute)
	err := v.ValidateBatch([]domain.Sample{s})
	assertRule(t, err, RuleTimestamps)
}

func TestDuplicateIndicatorFailsBatch(t *testing.T) {
	v := New(zerolog.Nop())
	err := v.ValidateBatch([]domain.Sample{
		sampleFor(domain.IndicatorVIX, 18.4),
		sampleFor(domain.IndicatorVIX, 18.5),
	})
	assertRule(t, err, RuleDuplicate)
}
