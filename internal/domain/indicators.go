// Package domain defines the core types of the PXI service: indicator
// definitions, samples, statistics, composite rows, alerts and regimes.
// The package is pure - it has no infrastructure dependencies.
package domain

// Polarity governs the sign convention of an indicator's z-score.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// RiskDirection governs the sign with which an indicator's z-score enters the
// composite. HigherIsMoreRisk indicators contribute negatively when elevated,
// so that positive composite values always mean low stress.
type RiskDirection string

const (
	HigherIsMoreRisk RiskDirection = "higher_is_more_risk"
	HigherIsLessRisk RiskDirection = "higher_is_less_risk"
)

// Provider identifiers for the external data sources.
const (
	ProviderFRED         = "fred"
	ProviderCoinGecko    = "coingecko"
	ProviderTwelveData   = "twelvedata"
	ProviderAlphaVantage = "alphavantage"
)

// IndicatorDefinition is the static, process-lifetime configuration of one
// externally sourced time series. Definitions are immutable.
type IndicatorDefinition struct {
	ID               string
	Label            string
	LowerBound       float64 // Display bound (dashboard scale)
	UpperBound       float64 // Display bound (dashboard scale)
	HardMin          float64 // Absolute validation bound
	HardMax          float64 // Absolute validation bound
	Weight           float64 // Base composite weight, >= 0; zero excludes from composite
	Polarity         Polarity
	RiskDirection    RiskDirection
	ProviderID       string
	ProviderSeriesID string
}

// DirectionSign returns -1 for HigherIsMoreRisk indicators and +1 otherwise.
func (d IndicatorDefinition) DirectionSign() float64 {
	if d.RiskDirection == HigherIsMoreRisk {
		return -1
	}
	return 1
}

// Indicator IDs for the fixed panel.
const (
	IndicatorHYOAS       = "hy_oas"
	IndicatorIGOAS       = "ig_oas"
	IndicatorVIX         = "vix"
	IndicatorUnemployment = "unemployment"
	IndicatorUSDIndex    = "usd_index"
	IndicatorNFCI        = "nfci"
	IndicatorBTCReturn   = "btc_return"
	IndicatorYieldCurve  = "yield_curve"
	IndicatorBreakeven   = "breakeven_10y"
)

// Indicators is the fixed panel. Base weights sum to 1.0; the composite engine
// re-normalizes after multipliers so the exact scale of the base weights only
// sets relative importance.
var Indicators = []IndicatorDefinition{
	{
		ID:               IndicatorHYOAS,
		Label:            "High Yield OAS",
		LowerBound:       0.02, UpperBound: 0.12,
		HardMin:          0.001, HardMax: 0.30,
		Weight:           0.15,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsMoreRisk,
		ProviderID:       ProviderFRED,
		ProviderSeriesID: "BAMLH0A0HYM2",
	},
	{
		ID:               IndicatorIGOAS,
		Label:            "Investment Grade OAS",
		LowerBound:       0.005, UpperBound: 0.04,
		HardMin:          0.0005, HardMax: 0.10,
		Weight:           0.10,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsMoreRisk,
		ProviderID:       ProviderFRED,
		ProviderSeriesID: "BAMLC0A0CM",
	},
	{
		ID:               IndicatorVIX,
		Label:            "CBOE Volatility Index",
		LowerBound:       10, UpperBound: 50,
		HardMin:          5, HardMax: 150,
		Weight:           0.15,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsMoreRisk,
		ProviderID:       ProviderFRED,
		ProviderSeriesID: "VIXCLS",
	},
	{
		ID:               IndicatorUnemployment,
		Label:            "Unemployment Rate (U-3)",
		LowerBound:       0.03, UpperBound: 0.10,
		HardMin:          0.01, HardMax: 0.30,
		Weight:           0.10,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsMoreRisk,
		ProviderID:       ProviderFRED,
		ProviderSeriesID: "UNRATE",
	},
	{
		ID:               IndicatorUSDIndex,
		Label:            "US Dollar Index",
		LowerBound:       90, UpperBound: 115,
		HardMin:          60, HardMax: 180,
		Weight:           0.10,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsMoreRisk,
		ProviderID:       ProviderTwelveData,
		ProviderSeriesID: "DXY",
	},
	{
		ID:               IndicatorNFCI,
		Label:            "Chicago Fed Financial Conditions",
		LowerBound:       -1.0, UpperBound: 1.5,
		HardMin:          -3, HardMax: 10,
		Weight:           0.15,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsMoreRisk,
		ProviderID:       ProviderFRED,
		ProviderSeriesID: "NFCI",
	},
	{
		ID:               IndicatorBTCReturn,
		Label:            "Bitcoin 24h Return",
		LowerBound:       -0.15, UpperBound: 0.15,
		HardMin:          -0.60, HardMax: 0.60,
		Weight:           0.10,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsLessRisk,
		ProviderID:       ProviderCoinGecko,
		ProviderSeriesID: "bitcoin",
	},
	{
		ID:               IndicatorYieldCurve,
		Label:            "10y-2y Treasury Spread",
		LowerBound:       -0.02, UpperBound: 0.03,
		HardMin:          -0.05, HardMax: 0.05,
		Weight:           0.10,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsLessRisk,
		ProviderID:       ProviderFRED,
		ProviderSeriesID: "DGS10,DGS2",
	},
	{
		ID:               IndicatorBreakeven,
		Label:            "10y Breakeven Inflation",
		LowerBound:       0.01, UpperBound: 0.035,
		HardMin:          -0.01, HardMax: 0.08,
		Weight:           0.05,
		Polarity:         PolarityPositive,
		RiskDirection:    HigherIsLessRisk,
		ProviderID:       ProviderFRED,
		ProviderSeriesID: "T10YIE",
	},
}

// IndicatorByID returns the definition for the given indicator ID, or false.
func IndicatorByID(id string) (IndicatorDefinition, bool) {
	for _, def := range Indicators {
		if def.ID == id {
			return def, true
		}
	}
	return IndicatorDefinition{}, false
}
