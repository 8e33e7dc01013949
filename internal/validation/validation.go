// Package validation checks sample batches before persistence. Validation is
// all-or-nothing: the first rule violation fails the whole batch, which the
// tick loop logs and drops.
package validation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

// Rule names reported in validation errors.
const (
	RuleKnownIndicator = "known_indicator"
	RuleFinite         = "finite_value"
	RuleHardBounds     = "hard_bounds"
	RuleTimestamps     = "timestamp_order"
	RuleSpreadOrdering = "spread_ordering"
	RuleDuplicate      = "duplicate_indicator"
)

// Validator applies the batch rules.
type Validator struct {
	log zerolog.Logger
}

// New creates a validator.
func New(log zerolog.Logger) *Validator {
	return &Validator{log: log.With().Str("component", "validation").Logger()}
}

// ValidateBatch checks one fetch cycle's samples. It returns the first
// violation found, or nil when the batch is clean.
func (v *Validator) ValidateBatch(samples []domain.Sample) error {
	seen := make(map[string]bool, len(samples))
	values := make(map[string]float64, len(samples))

	for _, s := range samples {
		def, ok := domain.IndicatorByID(s.IndicatorID)
		if !ok {
			return &domain.ValidationError{
				Rule:        RuleKnownIndicator,
				IndicatorID: s.IndicatorID,
				Detail:      "not in the indicator panel",
			}
		}

		if seen[s.IndicatorID] {
			return &domain.ValidationError{
				Rule:        RuleDuplicate,
				IndicatorID: s.IndicatorID,
				Detail:      "appears more than once in the batch",
			}
		}
		seen[s.IndicatorID] = true

		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return &domain.ValidationError{
				Rule:        RuleFinite,
				IndicatorID: s.IndicatorID,
				Detail:      fmt.Sprintf("value %v is not finite", s.Value),
			}
		}

		if s.Value < def.HardMin || s.Value > def.HardMax {
			return &domain.ValidationError{
				Rule:        RuleHardBounds,
				IndicatorID: s.IndicatorID,
				Detail: fmt.Sprintf("value %g outside hard bounds [%g, %g]",
					s.Value, def.HardMin, def.HardMax),
			}
		}

		if err := s.Validate(); err != nil {
			return &domain.ValidationError{
				Rule:        RuleTimestamps,
				IndicatorID: s.IndicatorID,
				Detail:      err.Error(),
			}
		}

		values[s.IndicatorID] = s.Value
	}

	// High-yield spreads always exceed investment-grade spreads. Equality or
	// inversion signals a provider mixup.
	hy, hasHY := values[domain.IndicatorHYOAS]
	ig, hasIG := values[domain.IndicatorIGOAS]
	if hasHY && hasIG && hy <= ig {
		return &domain.ValidationError{
			Rule:        RuleSpreadOrdering,
			IndicatorID: domain.IndicatorHYOAS,
			Detail:      fmt.Sprintf("hy_oas %g not above ig_oas %g", hy, ig),
		}
	}

	v.log.Debug().Int("samples", len(samples)).Msg("Batch validated")
	return nil
}
