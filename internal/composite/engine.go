// Package composite folds the indicator z-scores into the PXI: weight
// multipliers, contribution capping, clamping and threshold regimes.
package composite

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/pxi/internal/domain"
)

// Magnitude multiplier bands. Extreme readings punch above their base weight.
const (
	magnitudeExtremeZ   = 2.0
	magnitudeElevatedZ  = 1.0
	magnitudeExtremeMul = 2.0
	magnitudeElevatedMul = 1.5
)

// weightEpsilon tolerates float drift in cap comparisons.
const weightEpsilon = 1e-12

// Input is one indicator entering the composite. Z is the window z-score;
// SignalMultiplier defaults to 1 when no technical override is active.
type Input struct {
	Def              domain.IndicatorDefinition
	Value            float64
	Z                float64
	SignalMultiplier float64
}

// Engine computes composite rows. MaxContribution caps any single indicator's
// normalized weight.
type Engine struct {
	maxContribution float64
}

// NewEngine creates a composite engine.
func NewEngine(maxContribution float64) *Engine {
	return &Engine{maxContribution: maxContribution}
}

// Compute folds the participating indicators into one composite row.
// Returns nil when no indicator participates.
func (e *Engine) Compute(inputs []Input, at time.Time) *domain.CompositeRow {
	if len(inputs) == 0 {
		return nil
	}

	weights := make(map[string]float64, len(inputs))
	byID := make(map[string]Input, len(inputs))
	var totalEffective float64

	for _, in := range inputs {
		if in.Def.Weight <= 0 {
			continue
		}
		mul := in.SignalMultiplier
		if mul <= 0 {
			mul = 1.0
		}
		eff := in.Def.Weight * mul * magnitudeMultiplier(in.Z)
		weights[in.Def.ID] = eff
		byID[in.Def.ID] = in
		totalEffective += eff
	}
	if totalEffective <= 0 {
		return nil
	}

	for id, w := range weights {
		weights[id] = w / totalEffective
	}
	weights = capAndRedistribute(weights, e.maxContribution)

	row := &domain.CompositeRow{
		CalculatedAt: at,
		TotalWeight:  totalEffective,
	}

	var raw float64
	for id, w := range weights {
		in := byID[id]
		directed := in.Z * in.Def.DirectionSign()
		contribution := w * directed
		raw += contribution

		if directed > 1 {
			row.PampCount++
		} else if directed < -1 {
			row.StressCount++
		}

		row.Metrics = append(row.Metrics, domain.MetricContribution{
			IndicatorID:      id,
			Value:            in.Value,
			Z:                in.Z,
			NormalizedWeight: w,
			Contribution:     contribution,
		})
	}
	sort.Slice(row.Metrics, func(i, j int) bool {
		return row.Metrics[i].IndicatorID < row.Metrics[j].IndicatorID
	})

	row.RawPXI = raw
	row.PXI = domain.ClampPXI(raw)
	row.Regime = domain.ClassifyRegime(row.PXI)
	return row
}

// magnitudeMultiplier scales weight by how extreme the reading is.
func magnitudeMultiplier(z float64) float64 {
	abs := math.Abs(z)
	switch {
	case abs > magnitudeExtremeZ:
		return magnitudeExtremeMul
	case abs > magnitudeElevatedZ:
		return magnitudeElevatedMul
	default:
		return 1.0
	}
}

// capAndRedistribute caps normalized weights and hands the excess
// proportionally to the uncapped remainder. Iterates until no uncapped weight
// exceeds the cap or no receiver remains; when the cap is infeasible
// (cap * n < 1) the final receivers keep the overflow.
func capAndRedistribute(weights map[string]float64, cap float64) map[string]float64 {
	if cap <= 0 || cap >= 1 {
		return weights
	}

	capped := make(map[string]bool, len(weights))
	for iter := 0; iter < len(weights); iter++ {
		var over []string
		var receiverTotal float64
		for id, w := range weights {
			if capped[id] {
				continue
			}
			if w > cap+weightEpsilon {
				over = append(over, id)
			} else {
				receiverTotal += w
			}
		}
		if len(over) == 0 || receiverTotal <= 0 {
			break
		}

		var excess float64
		for _, id := range over {
			excess += weights[id] - cap
			weights[id] = cap
			capped[id] = true
		}
		for id, w := range weights {
			if capped[id] {
				continue
			}
			weights[id] = w + excess*(w/receiverTotal)
		}
	}
	return weights
}
