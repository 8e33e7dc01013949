package domain

import (
	"errors"
	"fmt"
)

// Provider error kinds. Fetchers wrap these so the tick loop can decide
// whether to retry or drop the indicator for the cycle.
var (
	// ErrProviderUnreachable marks network-level failures (timeouts, DNS).
	ErrProviderUnreachable = errors.New("provider unreachable")
	// ErrProviderRejected marks 4xx/5xx responses with a body.
	ErrProviderRejected = errors.New("provider rejected request")
	// ErrTransformInvalid marks NaN/Inf or otherwise unusable provider data.
	ErrTransformInvalid = errors.New("provider transform invalid")
	// ErrInsufficientHistory marks windows with fewer than 5 daily points.
	ErrInsufficientHistory = errors.New("insufficient history")
)

// ValidationError names the first rule a sample batch violated.
// Validation is all-or-nothing: a failed batch is logged and dropped.
type ValidationError struct {
	Rule        string
	IndicatorID string
	Detail      string
}

func (e *ValidationError) Error() string {
	if e.IndicatorID != "" {
		return fmt.Sprintf("validation failed: rule %s, indicator %s: %s", e.Rule, e.IndicatorID, e.Detail)
	}
	return fmt.Sprintf("validation failed: rule %s: %s", e.Rule, e.Detail)
}
