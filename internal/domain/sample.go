package domain

import (
	"fmt"
	"time"
)

// SignalOverrides carries the explicitly enumerated, typed per-sample signal
// metadata. Unknown provider metadata is rejected at ingest rather than
// tolerated in a loose bag.
type SignalOverrides struct {
	// SignalMultiplier scales the indicator's effective composite weight.
	// Nil means no override (multiplier 1.0). Set by the technical refresh
	// for the crypto indicator.
	SignalMultiplier *float64 `json:"signal_multiplier,omitempty"`
	// RSI and MACDHistogram document how the multiplier was derived.
	RSI           *float64 `json:"rsi,omitempty"`
	MACDHistogram *float64 `json:"macd_histogram,omitempty"`
}

// Sample is one raw observation for one indicator.
// Invariant: SourceTimestamp <= IngestedAt.
type Sample struct {
	IndicatorID     string
	Value           float64
	Unit            string
	SourceTimestamp time.Time
	IngestedAt      time.Time
	Overrides       SignalOverrides
}

// Validate checks the intra-sample invariant.
func (s Sample) Validate() error {
	if s.SourceTimestamp.After(s.IngestedAt) {
		return fmt.Errorf("sample %s: source timestamp %s after ingested at %s",
			s.IndicatorID, s.SourceTimestamp.Format(time.RFC3339), s.IngestedAt.Format(time.RFC3339))
	}
	return nil
}

// HistoryDaily is one canonical value per indicator per UTC calendar day,
// used for long-range statistics and regime features.
type HistoryDaily struct {
	IndicatorID string
	Date        string // YYYY-MM-DD (UTC)
	Value       float64
	Source      string
}
