package scheduler

import (
	"sync"
	"time"

	"github.com/aristath/pxi/internal/domain"
)

// TickPhase names the stage the ingest tick is in. The tick moves strictly
// forward through the phases and returns to idle whether it succeeds or not.
type TickPhase string

const (
	PhaseIdle          TickPhase = "idle"
	PhaseFetchingAll   TickPhase = "fetching_all"
	PhaseValidating    TickPhase = "validating"
	PhaseStoring       TickPhase = "storing"
	PhaseComputing     TickPhase = "computing"
	PhaseAlertEmitting TickPhase = "alert_emitting"
)

// HealthSnapshot is a point-in-time copy of the scheduler counters.
type HealthSnapshot struct {
	Phase               TickPhase  `json:"phase"`
	TotalRuns           int64      `json:"total_runs"`
	Successes           int64      `json:"successes"`
	Failures            int64      `json:"failures"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// State tracks the tick phase, health counters and cross-tick context.
// All access goes through the mutex.
type State struct {
	mu sync.Mutex

	phase               TickPhase
	totalRuns           int64
	successes           int64
	failures            int64
	consecutiveFailures int64
	lastSuccessAt       *time.Time
	lastError           string

	previousRegime *domain.DiscoveredRegime
}

// NewState creates an idle state.
func NewState() *State {
	return &State{phase: PhaseIdle}
}

// SetPhase moves the tick to a new phase.
func (s *State) SetPhase(phase TickPhase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

// RecordSuccess counts one successful tick.
func (s *State) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.totalRuns++
	s.successes++
	s.consecutiveFailures = 0
	s.lastSuccessAt = &now
	s.lastError = ""
}

// RecordFailure counts one failed tick.
func (s *State) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRuns++
	s.failures++
	s.consecutiveFailures++
	if err != nil {
		s.lastError = err.Error()
	}
}

// Snapshot copies the counters for the health endpoint and the monitor.
func (s *State) Snapshot() HealthSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return HealthSnapshot{
		Phase:               s.phase,
		TotalRuns:           s.totalRuns,
		Successes:           s.successes,
		Failures:            s.failures,
		ConsecutiveFailures: s.consecutiveFailures,
		LastSuccessAt:       s.lastSuccessAt,
		LastError:           s.lastError,
	}
}

// SeedRegime primes the previous label, normally from the store at startup,
// so a transition that straddles a restart is still reported.
func (s *State) SeedRegime(regime domain.DiscoveredRegime) {
	s.mu.Lock()
	s.previousRegime = &regime
	s.mu.Unlock()
}

// SwapRegime records the newly discovered regime and reports whether it
// differs from the previous one. The first observation never counts as a
// transition.
func (s *State) SwapRegime(regime domain.DiscoveredRegime) (previous *domain.DiscoveredRegime, transitioned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous = s.previousRegime
	s.previousRegime = &regime
	return previous, previous != nil && *previous != regime
}
