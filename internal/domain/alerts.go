package domain

import "time"

// AlertType enumerates the durable alert kinds the pipeline emits.
type AlertType string

const (
	AlertHighZScore      AlertType = "high_z_score"
	AlertDeviationReview AlertType = "deviation_review"
	AlertBoundSuggestion AlertType = "bound_suggestion"
	AlertCompositeBreach AlertType = "composite_breach"
	AlertPXIChange       AlertType = "pxi_change"
)

// AlertSeverity orders alerts by urgency.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a durable anomaly record. Rows are append-only; Acknowledged is the
// only field that may change after insert, and only false -> true.
type Alert struct {
	ID           string
	Type         AlertType
	IndicatorID  *string
	Timestamp    time.Time
	RawValue     *float64
	Z            *float64
	Threshold    *float64
	Message      string
	Severity     AlertSeverity
	Acknowledged bool
}
