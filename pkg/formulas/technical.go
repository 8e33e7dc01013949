package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index over the given period.
//
// RSI = 100 - (100 / (1 + RS)) where RS = average gain / average loss.
// Returns nil with insufficient data.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)

	if len(rsi) > 0 && IsFinite(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// MACDResult holds the latest MACD line, signal line and histogram values.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// CalculateMACD calculates MACD(fast, slow, signal) and returns the latest
// values, or nil with insufficient data.
func CalculateMACD(closes []float64, fast, slow, signal int) *MACDResult {
	if len(closes) < slow+signal {
		return nil
	}

	macd, sig, hist := talib.Macd(closes, fast, slow, signal)
	last := len(macd) - 1
	if last < 0 || !IsFinite(macd[last]) || !IsFinite(sig[last]) {
		return nil
	}

	return &MACDResult{
		MACD:      macd[last],
		Signal:    sig[last],
		Histogram: hist[last],
	}
}
