package formulas

import (
	"math"
	"testing"
)

func TestCalculateMaxDrawdown(t *testing.T) {
	if got := CalculateMaxDrawdown([]float64{100}); got != nil {
		t.Errorf("single value: got %v, want nil", *got)
	}

	// Peak 120 to trough 90 is a 25% drawdown.
	got := CalculateMaxDrawdown([]float64{100, 120, 90, 110})
	if got == nil {
		t.Fatal("expected a drawdown, got nil")
	}
	if math.Abs(*got-0.25) > 1e-9 {
		t.Errorf("max drawdown = %v, want 0.25", *got)
	}

	// A monotonically rising series never draws down.
	got = CalculateMaxDrawdown([]float64{1, 2, 3, 4})
	if got == nil || *got != 0 {
		t.Errorf("rising series: got %v, want 0", got)
	}
}

func TestCalculateDrawdownMetrics(t *testing.T) {
	if got := CalculateDrawdownMetrics([]float64{5}); got != nil {
		t.Errorf("single value: got %+v, want nil", got)
	}

	m := CalculateDrawdownMetrics([]float64{100, 120, 90, 108})
	if m == nil {
		t.Fatal("expected metrics, got nil")
	}
	if math.Abs(m.MaxDrawdown-0.25) > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want 0.25", m.MaxDrawdown)
	}
	if math.Abs(m.CurrentDrawdown-0.10) > 1e-9 {
		t.Errorf("CurrentDrawdown = %v, want 0.10", m.CurrentDrawdown)
	}
	if m.PeakValue != 120 || m.CurrentValue != 108 {
		t.Errorf("peak/current = %v/%v, want 120/108", m.PeakValue, m.CurrentValue)
	}
	if m.DaysInDrawdown != 2 {
		t.Errorf("DaysInDrawdown = %d, want 2", m.DaysInDrawdown)
	}

	// Recovery to a fresh high resets the drawdown clock.
	m = CalculateDrawdownMetrics([]float64{100, 90, 130})
	if m.DaysInDrawdown != 0 || m.CurrentDrawdown != 0 {
		t.Errorf("fresh high: days=%d current=%v, want 0/0", m.DaysInDrawdown, m.CurrentDrawdown)
	}
}
