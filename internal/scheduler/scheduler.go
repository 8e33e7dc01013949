// Package scheduler orchestrates the periodic work of the service: the
// minute ingest tick, the twice-daily technical refresh, the nightly
// validation pass and the daily regime detection.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/composite"
	"github.com/aristath/pxi/internal/providers"
	"github.com/aristath/pxi/internal/regime"
	"github.com/aristath/pxi/internal/stats"
	"github.com/aristath/pxi/internal/technical"
	"github.com/aristath/pxi/internal/validation"
)

// Retry and drain policy.
const (
	maxAttempts    = 3
	retryBackoff   = 5 * time.Second
	attemptTimeout = 55 * time.Second
	drainTimeout   = 30 * time.Second
)

// Fixed schedules beyond the configurable ingest cadence (all UTC).
const (
	scheduleTechnical  = "5 0,12 * * *"
	scheduleValidation = "0 2 * * *"
	scheduleRegime     = "30 2 * * *"
)

// Config wires the scheduler's collaborators.
type Config struct {
	IngestCron   string
	AlertEnabled bool
	WebhookURL   string

	Registry  *providers.Registry
	Validator *validation.Validator
	Stats     *stats.Service
	Composite *composite.Service
	Regime    *regime.Service
	Technical *technical.Service
}

// Scheduler runs the cron jobs with overlap guards, retries and health
// accounting.
type Scheduler struct {
	cfg   Config
	cron  *cron.Cron
	state *State
	log   zerolog.Logger

	// One in-flight flag per job name. A firing that finds its flag set
	// is skipped, never queued.
	inFlight sync.Map

	baseCtx    context.Context
	cancelBase context.CancelFunc
	monitorWg  sync.WaitGroup
}

// New creates the scheduler. Jobs are registered on Start.
func New(cfg Config, log zerolog.Logger) *Scheduler {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:        cfg,
		cron:       cron.New(cron.WithLocation(time.UTC)),
		state:      NewState(),
		log:        log.With().Str("component", "scheduler").Logger(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// State exposes the health counters for the API layer.
func (s *Scheduler) State() *State { return s.state }

// Start registers the jobs and starts the cron loop plus the health monitor.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"ingest_tick", s.cfg.IngestCron, s.runTick},
		{"technical_refresh", scheduleTechnical, s.runTechnical},
		{"validation_pass", scheduleValidation, s.runValidationPass},
		{"regime_detection", scheduleRegime, s.runRegimeDetection},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			s.runJob(job.name, job.run)
		}); err != nil {
			return fmt.Errorf("failed to register job %s (%q): %w", job.name, job.spec, err)
		}
		s.log.Info().Str("job", job.name).Str("schedule", job.spec).Msg("Job registered")
	}

	s.monitorWg.Add(1)
	go s.monitor()

	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
	return nil
}

// Stop halts scheduling and waits up to the drain timeout for running jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.log.Info().Msg("All jobs drained")
	case <-time.After(drainTimeout):
		s.log.Warn().Dur("timeout", drainTimeout).Msg("Drain timeout reached, abandoning running jobs")
	}

	s.cancelBase()
	s.monitorWg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

// runJob applies the shared policy: overlap guard, per-attempt timeout,
// bounded retries with backoff, health accounting.
func (s *Scheduler) runJob(name string, run func(context.Context) error) {
	flag, _ := s.inFlight.LoadOrStore(name, new(atomic.Bool))
	guard := flag.(*atomic.Bool)
	if !guard.CompareAndSwap(false, true) {
		s.log.Warn().Str("job", name).Msg("Previous run still in flight, skipping")
		return
	}
	defer guard.Store(false)

	start := time.Now()
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.runAttempt(run)
		if err == nil {
			break
		}

		s.log.Warn().
			Err(err).
			Str("job", name).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Msg("Job attempt failed")

		if attempt < maxAttempts {
			select {
			case <-time.After(retryBackoff):
			case <-s.baseCtx.Done():
				err = s.baseCtx.Err()
				attempt = maxAttempts
			}
		}
	}

	if err != nil {
		s.state.RecordFailure(err)
		s.log.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("Job failed")
		return
	}

	s.state.RecordSuccess()
	s.log.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("Job complete")
}

func (s *Scheduler) runAttempt(run func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(s.baseCtx, attemptTimeout)
	defer cancel()
	return run(ctx)
}

// Monitor thresholds.
const (
	monitorInterval          = time.Minute
	fatalConsecutiveFailures = 5
	staleSuccessAge          = 10 * time.Minute
)

// monitor watches the counters and escalates sustained failure.
func (s *Scheduler) monitor() {
	defer s.monitorWg.Done()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			snap := s.state.Snapshot()

			if snap.ConsecutiveFailures >= fatalConsecutiveFailures {
				s.log.WithLevel(zerolog.FatalLevel).
					Int64("consecutive_failures", snap.ConsecutiveFailures).
					Str("last_error", snap.LastError).
					Msg("Scheduler failing persistently")
				continue
			}

			if snap.LastSuccessAt != nil && time.Since(*snap.LastSuccessAt) > staleSuccessAge {
				s.log.Warn().
					Time("last_success_at", *snap.LastSuccessAt).
					Msg("No successful run recently")
			}
		}
	}
}
