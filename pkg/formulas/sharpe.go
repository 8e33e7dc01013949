package formulas

import (
	"math"
)

// CalculateSharpeRatio calculates the annualized Sharpe ratio of a return series.
//
// Sharpe = (mean return - periodic risk-free rate) / std dev of returns,
// annualized by sqrt(periodsPerYear).
//
// Returns nil when there are fewer than two returns or the series has no
// dispersion.
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	sharpe := (meanReturn - periodicRiskFree) / stdDev
	annualized := sharpe * math.Sqrt(float64(periodsPerYear))

	return &annualized
}

// CalculateSharpeFromValues calculates the Sharpe ratio directly from a value
// series (e.g., the daily PXI history), assuming daily observations.
func CalculateSharpeFromValues(values []float64, riskFreeRate float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	returns := CalculateReturns(values)
	return CalculateSharpeRatio(returns, riskFreeRate, 252)
}
