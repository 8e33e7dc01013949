package technical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/pxi/pkg/formulas"
)

func rsiOf(v float64) *float64 { return &v }

func TestDeriveSignalNeutralByDefault(t *testing.T) {
	signal := deriveSignal(nil, nil, time.Now().UTC())
	assert.Equal(t, 1.0, signal.Multiplier)
	assert.Nil(t, signal.RSI)
	assert.Nil(t, signal.MACDHistogram)
}

func TestDeriveSignalOverboughtDampens(t *testing.T) {
	signal := deriveSignal(rsiOf(75), &formulas.MACDResult{Histogram: 1.2}, time.Now().UTC())
	assert.Equal(t, 0.8, signal.Multiplier)
}

func TestDeriveSignalBearishMACDDampens(t *testing.T) {
	signal := deriveSignal(rsiOf(55), &formulas.MACDResult{Histogram: -0.4}, time.Now().UTC())
	assert.Equal(t, 0.8, signal.Multiplier)
}

func TestDeriveSignalOversoldAmplifies(t *testing.T) {
	signal := deriveSignal(rsiOf(25), &formulas.MACDResult{Histogram: 0.1}, time.Now().UTC())
	assert.Equal(t, 1.2, signal.Multiplier)
}

func TestDeriveSignalMidRangeNeutral(t *testing.T) {
	signal := deriveSignal(rsiOf(50), &formulas.MACDResult{Histogram: 0.3}, time.Now().UTC())
	assert.Equal(t, 1.0, signal.Multiplier)
}

func TestDeriveSignalOverboughtBeatsOversoldOrder(t *testing.T) {
	// Overbought with bearish histogram still dampens, never amplifies.
	signal := deriveSignal(rsiOf(80), &formulas.MACDResult{Histogram: -1.0}, time.Now().UTC())
	assert.Equal(t, 0.8, signal.Multiplier)
}
