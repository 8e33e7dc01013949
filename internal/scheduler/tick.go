package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/pxi/internal/domain"
)

// runTick is the minute ingest pipeline. Every phase transition is visible to
// the health endpoint; the state returns to idle on every exit path.
func (s *Scheduler) runTick(ctx context.Context) error {
	defer s.state.SetPhase(PhaseIdle)

	s.state.SetPhase(PhaseFetchingAll)
	samples, failures, err := s.cfg.Registry.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch phase: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("fetch phase: all %d indicators failed", len(failures))
	}
	samples = s.cfg.Technical.ApplyOverrides(ctx, samples)

	s.state.SetPhase(PhaseValidating)
	if err := s.cfg.Validator.ValidateBatch(samples); err != nil {
		return fmt.Errorf("validation phase: %w", err)
	}

	s.state.SetPhase(PhaseStoring)
	states, err := s.cfg.Stats.ProcessBatch(ctx, samples)
	if err != nil {
		return fmt.Errorf("storing phase: %w", err)
	}

	s.state.SetPhase(PhaseComputing)
	s.state.SetPhase(PhaseAlertEmitting)
	if _, err := s.cfg.Composite.ProcessStates(ctx, states, time.Now().UTC()); err != nil {
		return fmt.Errorf("composite phase: %w", err)
	}
	return nil
}

// runTechnical refreshes the crypto technical signal.
func (s *Scheduler) runTechnical(ctx context.Context) error {
	_, err := s.cfg.Technical.Refresh(ctx)
	return err
}

// runValidationPass runs the nightly cross-indicator diagnostics.
func (s *Scheduler) runValidationPass(ctx context.Context) error {
	flagged, err := s.cfg.Stats.DailyValidationPass(ctx)
	if err != nil {
		return err
	}
	s.log.Info().Int("lockstep_pairs", len(flagged)).Msg("Validation pass complete")
	return nil
}

// runRegimeDetection reruns the clustering and notifies on transitions.
// A too-young panel is not a failure.
func (s *Scheduler) runRegimeDetection(ctx context.Context) error {
	row, err := s.cfg.Regime.Detect(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientHistory) {
			s.log.Info().Err(err).Msg("Regime detection skipped")
			return nil
		}
		return err
	}

	previous, transitioned := s.state.SwapRegime(row.Regime)
	if transitioned {
		s.notifyRegimeTransition(ctx, *previous, row.Regime)
	}
	return nil
}

// notifyRegimeTransition posts a short text payload to the configured
// webhook. Delivery failures are logged and swallowed; alerting never blocks
// the pipeline.
func (s *Scheduler) notifyRegimeTransition(ctx context.Context, from, to domain.DiscoveredRegime) {
	if !s.cfg.AlertEnabled || s.cfg.WebhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("Market regime changed: %s -> %s", from, to),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.log.Warn().Int("status", resp.StatusCode).Msg("Webhook rejected")
		return
	}
	s.log.Info().Str("from", string(from)).Str("to", string(to)).Msg("Regime transition notified")
}
