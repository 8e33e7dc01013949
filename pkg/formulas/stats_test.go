package formulas

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		expected float64
	}{
		{name: "empty", data: []float64{}, expected: 0},
		{name: "single value", data: []float64{4.2}, expected: 4.2},
		{name: "symmetric", data: []float64{1, 2, 3, 4, 5}, expected: 3},
		{name: "negative values", data: []float64{-2, -1, 0, 1, 2}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.data); math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Mean() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name      string
		data      []float64
		expected  float64
		tolerance float64
	}{
		{name: "empty", data: []float64{}, expected: 0},
		{name: "single value", data: []float64{3}, expected: 0},
		{name: "flat series", data: []float64{5, 5, 5, 5}, expected: 0, tolerance: 1e-12},
		{name: "known sample", data: []float64{15, 16, 17, 18, 19}, expected: 1.5811, tolerance: 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StdDev(tt.data); math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("StdDev() = %v, want %v (±%v)", got, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	if got := Correlation(x, []float64{2, 4, 6, 8, 10}); math.Abs(got-1) > 1e-9 {
		t.Errorf("perfectly correlated series: got %v, want 1", got)
	}
	if got := Correlation(x, []float64{10, 8, 6, 4, 2}); math.Abs(got+1) > 1e-9 {
		t.Errorf("perfectly anti-correlated series: got %v, want -1", got)
	}
	if got := Correlation(x, []float64{1, 2}); got != 0 {
		t.Errorf("mismatched lengths: got %v, want 0", got)
	}
	if got := Correlation(nil, nil); got != 0 {
		t.Errorf("empty series: got %v, want 0", got)
	}
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	if len(returns) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(returns))
	}
	if math.Abs(returns[0]-0.10) > 1e-9 {
		t.Errorf("returns[0] = %v, want 0.10", returns[0])
	}
	if math.Abs(returns[1]+0.10) > 1e-9 {
		t.Errorf("returns[1] = %v, want -0.10", returns[1])
	}

	// A zero previous value yields a zero return rather than Inf.
	returns = CalculateReturns([]float64{0, 5})
	if returns[0] != 0 {
		t.Errorf("zero previous value: got %v, want 0", returns[0])
	}

	if got := CalculateReturns([]float64{42}); len(got) != 0 {
		t.Errorf("single value: expected no returns, got %v", got)
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	if got := AnnualizedVolatility(nil); got != 0 {
		t.Errorf("empty returns: got %v, want 0", got)
	}

	returns := []float64{0.01, -0.01, 0.01, -0.01, 0.01, -0.01}
	expected := StdDev(returns) * math.Sqrt(252)
	if got := AnnualizedVolatility(returns); math.Abs(got-expected) > 1e-12 {
		t.Errorf("AnnualizedVolatility() = %v, want %v", got, expected)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) || !IsFinite(0) || !IsFinite(-3.2) {
		t.Error("finite values reported as non-finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Error("NaN or Inf reported as finite")
	}
}
