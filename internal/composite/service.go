package composite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/internal/stats"
	"github.com/aristath/pxi/internal/store"
)

// Service runs the composite step of a tick: fold z-scores into a PXI row,
// persist it, and emit the cycle's alerts.
type Service struct {
	engine *Engine
	store  *store.Store
	log    zerolog.Logger

	// Previous PXI of this process. The change alert compares consecutive
	// in-process ticks only; a restart starts fresh.
	mu      sync.Mutex
	prevPXI *float64
}

// NewService creates the composite pipeline step.
func NewService(st *store.Store, maxContribution float64, log zerolog.Logger) *Service {
	return &Service{
		engine: NewEngine(maxContribution),
		store:  st,
		log:    log.With().Str("component", "composite").Logger(),
	}
}

// ProcessStates computes and persists one composite row from the tick's
// indicator states, then generates and persists the alerts it implies.
// Returns nil without error when no indicator has a usable z yet.
func (s *Service) ProcessStates(ctx context.Context, states map[string]stats.IndicatorState, at time.Time) (*domain.CompositeRow, error) {
	var inputs []Input
	for id, state := range states {
		if state.ZScore.Z == nil {
			continue
		}
		def, ok := domain.IndicatorByID(id)
		if !ok {
			continue
		}

		mul := 1.0
		if state.Sample.Overrides.SignalMultiplier != nil {
			mul = *state.Sample.Overrides.SignalMultiplier
		}
		inputs = append(inputs, Input{
			Def:              def,
			Value:            state.Sample.Value,
			Z:                *state.ZScore.Z,
			SignalMultiplier: mul,
		})
	}

	row := s.engine.Compute(inputs, at)
	if row == nil {
		s.log.Info().Msg("No indicators with usable z-scores, composite skipped")
		return nil, nil
	}

	if err := s.store.Composite.InsertComposite(ctx, *row); err != nil {
		return nil, fmt.Errorf("store composite: %w", err)
	}

	alerts, err := s.buildAlerts(ctx, states, row)
	if err != nil {
		return nil, err
	}
	if err := s.store.Alerts.InsertAlerts(ctx, alerts); err != nil {
		return nil, fmt.Errorf("store alerts: %w", err)
	}

	s.log.Info().
		Float64("pxi", row.PXI).
		Str("regime", string(row.Regime)).
		Int("indicators", len(row.Metrics)).
		Int("alerts", len(alerts)).
		Msg("Composite computed")
	return row, nil
}

// buildAlerts evaluates every alert rule for the cycle.
func (s *Service) buildAlerts(ctx context.Context, states map[string]stats.IndicatorState, row *domain.CompositeRow) ([]domain.Alert, error) {
	var alerts []domain.Alert
	at := row.CalculatedAt

	for id, state := range states {
		def, ok := domain.IndicatorByID(id)
		if !ok {
			continue
		}

		if state.ZScore.Z != nil {
			if a := zScoreAlert(def, state.Sample.Value, *state.ZScore.Z, at); a != nil {
				alerts = append(alerts, *a)
			}
		}

		prev, err := s.store.History.ValueDaysAgo(ctx, id, 1)
		if err != nil {
			return nil, fmt.Errorf("previous value for %s: %w", id, err)
		}
		deviation := deviationAlert(def, state.Sample.Value, prev, at)
		if deviation == nil {
			continue
		}
		alerts = append(alerts, *deviation)

		count, err := s.store.Alerts.RecentCount(ctx, domain.AlertDeviationReview, id, boundSuggestionWindow)
		if err != nil {
			return nil, fmt.Errorf("deviation count for %s: %w", id, err)
		}
		// The current review is not persisted yet; count it in.
		if count+1 >= boundSuggestionCount {
			alerts = append(alerts, *boundSuggestionAlert(def, at))
		}
	}

	if a := breachAlert(row.PXI, at); a != nil {
		alerts = append(alerts, *a)
	}

	s.mu.Lock()
	prev := s.prevPXI
	pxi := row.PXI
	s.prevPXI = &pxi
	s.mu.Unlock()

	if a := changeAlert(row.PXI, prev, at); a != nil {
		alerts = append(alerts, *a)
	}
	return alerts, nil
}
