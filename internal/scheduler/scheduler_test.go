package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

func newTestScheduler(cfg Config) *Scheduler {
	return New(cfg, zerolog.Nop())
}

func TestRunJobRetriesThenFails(t *testing.T) {
	s := newTestScheduler(Config{})
	defer s.cancelBase()

	var attempts atomic.Int32
	s.runJob("failing", func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("boom")
	})

	assert.Equal(t, int32(maxAttempts), attempts.Load())

	snap := s.state.Snapshot()
	assert.Equal(t, int64(1), snap.TotalRuns)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(1), snap.ConsecutiveFailures)
	assert.Equal(t, "boom", snap.LastError)
}

func TestRunJobSucceedsAfterRetry(t *testing.T) {
	s := newTestScheduler(Config{})
	defer s.cancelBase()

	var attempts atomic.Int32
	s.runJob("flaky", func(ctx context.Context) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	assert.Equal(t, int32(2), attempts.Load())

	snap := s.state.Snapshot()
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(0), snap.ConsecutiveFailures)
	require.NotNil(t, snap.LastSuccessAt)
	assert.Empty(t, snap.LastError)
}

func TestRunJobOverlapGuardSkips(t *testing.T) {
	s := newTestScheduler(Config{})
	defer s.cancelBase()

	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runJob("slow", func(ctx context.Context) error {
			runs.Add(1)
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	// Second firing while the first is in flight: skipped, not queued.
	s.runJob("slow", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int64(1), s.state.Snapshot().TotalRuns)
}

func TestRunJobsWithDifferentNamesDoNotBlock(t *testing.T) {
	s := newTestScheduler(Config{})
	defer s.cancelBase()

	var runs atomic.Int32
	ok := func(ctx context.Context) error { runs.Add(1); return nil }

	s.runJob("a", ok)
	s.runJob("b", ok)
	assert.Equal(t, int32(2), runs.Load())
}

func TestStatePhaseTransitions(t *testing.T) {
	state := NewState()
	assert.Equal(t, PhaseIdle, state.Snapshot().Phase)

	state.SetPhase(PhaseFetchingAll)
	assert.Equal(t, PhaseFetchingAll, state.Snapshot().Phase)

	state.SetPhase(PhaseIdle)
	assert.Equal(t, PhaseIdle, state.Snapshot().Phase)
}

func TestSwapRegimeFirstObservationIsNotTransition(t *testing.T) {
	state := NewState()

	previous, transitioned := state.SwapRegime(domain.DiscoveredNormal)
	assert.Nil(t, previous)
	assert.False(t, transitioned)

	previous, transitioned = state.SwapRegime(domain.DiscoveredNormal)
	require.NotNil(t, previous)
	assert.False(t, transitioned)

	previous, transitioned = state.SwapRegime(domain.DiscoveredStress)
	require.NotNil(t, previous)
	assert.Equal(t, domain.DiscoveredNormal, *previous)
	assert.True(t, transitioned)
}

func TestSeededRegimeSurvivesRestart(t *testing.T) {
	// A fresh process seeded with the stored label treats the next
	// detection as a transition, not a first observation.
	state := NewState()
	state.SeedRegime(domain.DiscoveredNormal)

	previous, transitioned := state.SwapRegime(domain.DiscoveredStress)
	require.NotNil(t, previous)
	assert.Equal(t, domain.DiscoveredNormal, *previous)
	assert.True(t, transitioned)
}

func TestSeededRegimeUnchangedIsQuiet(t *testing.T) {
	state := NewState()
	state.SeedRegime(domain.DiscoveredCalm)

	_, transitioned := state.SwapRegime(domain.DiscoveredCalm)
	assert.False(t, transitioned)
}

func TestNotifyRegimeTransitionPostsText(t *testing.T) {
	var body atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		body.Store(string(buf))
	}))
	defer server.Close()

	s := newTestScheduler(Config{AlertEnabled: true, WebhookURL: server.URL})
	defer s.cancelBase()

	s.notifyRegimeTransition(context.Background(), domain.DiscoveredNormal, domain.DiscoveredStress)

	stored, _ := body.Load().(string)
	assert.Contains(t, stored, "Normal -> Stress")
	assert.Contains(t, stored, `"text"`)
}

func TestNotifyRegimeTransitionDisabled(t *testing.T) {
	fired := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fired = true
	}))
	defer server.Close()

	s := newTestScheduler(Config{AlertEnabled: false, WebhookURL: server.URL})
	defer s.cancelBase()

	s.notifyRegimeTransition(context.Background(), domain.DiscoveredNormal, domain.DiscoveredStress)
	assert.False(t, fired)
}

func TestRecordFailureAccumulates(t *testing.T) {
	state := NewState()
	state.RecordFailure(errors.New("one"))
	state.RecordFailure(errors.New("two"))

	snap := state.Snapshot()
	assert.Equal(t, int64(2), snap.ConsecutiveFailures)
	assert.Equal(t, "two", snap.LastError)

	state.RecordSuccess()
	snap = state.Snapshot()
	assert.Equal(t, int64(0), snap.ConsecutiveFailures)
	assert.Equal(t, int64(3), snap.TotalRuns)
	assert.WithinDuration(t, time.Now().UTC(), *snap.LastSuccessAt, time.Minute)
}
