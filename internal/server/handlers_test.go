package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/cache"
	"github.com/aristath/pxi/internal/config"
	"github.com/aristath/pxi/internal/store"
)

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	db := sqlx.NewDb(raw, "postgres")

	s := &Server{
		cfg: &config.Config{StaleThreshold: 5 * time.Minute},
		store: &store.Store{
			Samples:   store.NewSampleRepository(db, time.Second, zerolog.Nop()),
			History:   store.NewHistoryRepository(db, time.Second, zerolog.Nop()),
			Stats:     store.NewStatsRepository(db, time.Second, zerolog.Nop()),
			Composite: store.NewCompositeRepository(db, time.Second, zerolog.Nop()),
			Regimes:   store.NewRegimeRepository(db, time.Second, zerolog.Nop()),
			Alerts:    store.NewAlertRepository(db, time.Second, zerolog.Nop()),
		},
		log: zerolog.Nop(),
	}
	return s, mock
}

func compositeColumns() []string {
	return []string{"calculated_at", "raw_pxi", "pxi", "regime", "total_weight", "pamp_count", "stress_count"}
}

// expectSnapshotTail queues the regime and alert lookups that follow a
// successful composite read.
func expectSnapshotTail(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT to_char").
		WillReturnRows(sqlmock.NewRows([]string{"date", "regime", "cluster_id", "features", "centroid", "probabilities"}))
	mock.ExpectQuery("SELECT id, alert_type").
		WillReturnRows(sqlmock.NewRows([]string{"id", "alert_type", "indicator_id", "ts", "raw_value", "z", "threshold", "message", "severity", "acknowledged"}))
}

func TestPXILatestUnavailableBeforeFirstCycle(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectQuery("SELECT calculated_at").
		WillReturnRows(sqlmock.NewRows(compositeColumns()))

	rec := httptest.NewRecorder()
	s.handlePXILatest(rec, httptest.NewRequest(http.MethodGet, "/v1/pxi/latest", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not been computed yet")
}

func TestPXILatestServesCompositeWithVersion(t *testing.T) {
	s, mock := newTestServer(t)

	at := time.Now().UTC().Add(-time.Minute)
	mock.ExpectQuery("SELECT calculated_at").
		WillReturnRows(sqlmock.NewRows(compositeColumns()).
			AddRow(at, -1.4, -1.4, "Elevated Stress", 1.2, 0, 2))
	mock.ExpectQuery("SELECT indicator_id, value, z").
		WillReturnRows(sqlmock.NewRows([]string{"indicator_id", "value", "z", "normalized_weight", "contribution"}))
	expectSnapshotTail(mock)

	rec := httptest.NewRecorder()
	s.handlePXILatest(rec, httptest.NewRequest(http.MethodGet, "/v1/pxi/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"pxi":-1.4`)
	assert.Contains(t, body, `"regime":"Elevated Stress"`)
	assert.Contains(t, body, `"version"`)
	assert.Contains(t, body, `"stale":false`)
}

func TestPXILatestMarksStale(t *testing.T) {
	s, mock := newTestServer(t)

	at := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery("SELECT calculated_at").
		WillReturnRows(sqlmock.NewRows(compositeColumns()).
			AddRow(at, 0.2, 0.2, "Normal", 1.0, 0, 0))
	mock.ExpectQuery("SELECT indicator_id, value, z").
		WillReturnRows(sqlmock.NewRows([]string{"indicator_id", "value", "z", "normalized_weight", "contribution"}))
	expectSnapshotTail(mock)

	rec := httptest.NewRecorder()
	s.handlePXILatest(rec, httptest.NewRequest(http.MethodGet, "/v1/pxi/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stale":true`)
}

func TestPXILatestInternalErrorIsGeneric(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectQuery("SELECT calculated_at").
		WillReturnError(assert.AnError)

	rec := httptest.NewRecorder()
	s.handlePXILatest(rec, httptest.NewRequest(http.MethodGet, "/v1/pxi/latest", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal error")
	assert.NotContains(t, rec.Body.String(), "assert.AnError")
}

func TestCachedServesSecondRequestWithoutQuery(t *testing.T) {
	s, mock := newTestServer(t)
	s.cache = cache.New(time.Minute)
	defer s.cache.Close()

	at := time.Now().UTC()
	mock.ExpectQuery("SELECT calculated_at").
		WillReturnRows(sqlmock.NewRows(compositeColumns()).
			AddRow(at, 0.5, 0.5, "Normal", 1.0, 0, 0))
	mock.ExpectQuery("SELECT indicator_id, value, z").
		WillReturnRows(sqlmock.NewRows([]string{"indicator_id", "value", "z", "normalized_weight", "contribution"}))
	expectSnapshotTail(mock)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		s.handlePXILatest(rec, httptest.NewRequest(http.MethodGet, "/v1/pxi/latest", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Only the first request touched the database.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsLatestCarriesHealthBreachAndContribution(t *testing.T) {
	s, mock := newTestServer(t)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM samples").
		WillReturnRows(sqlmock.NewRows([]string{"indicator_id", "value", "unit", "source_ts", "ingested_at", "overrides"}).
			AddRow("vix", 55.0, "index_points", now.Add(-time.Hour), now, nil))
	mock.ExpectQuery("FROM indicator_stats").
		WillReturnRows(sqlmock.NewRows([]string{"indicator_id", "window_days", "mean", "std_dev", "n", "min_value", "max_value", "health", "as_of"}).
			AddRow("vix", 90, 17.0, 1.5811, 5, 15.0, 19.0, "outlier", now))
	mock.ExpectQuery("SELECT calculated_at").
		WillReturnRows(sqlmock.NewRows(compositeColumns()).
			AddRow(now, -1.2, -1.2, "Elevated Stress", 1.0, 0, 2))
	mock.ExpectQuery("SELECT indicator_id, value, z").
		WillReturnRows(sqlmock.NewRows([]string{"indicator_id", "value", "z", "normalized_weight", "contribution"}).
			AddRow("vix", 55.0, 2.4, 0.25, -0.6))
	for i := 0; i < 3; i++ {
		mock.ExpectQuery("SELECT value").
			WillReturnRows(sqlmock.NewRows([]string{"value"}))
	}

	rec := httptest.NewRecorder()
	s.handleMetricsLatest(rec, httptest.NewRequest(http.MethodGet, "/v1/pxi/metrics/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	// 55 sits above the display bound of 50.
	assert.Contains(t, body, `"breach":true`)
	assert.Contains(t, body, `"health":"outlier"`)
	assert.Contains(t, body, `"contribution":-0.6`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegimeLatestNotFound(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectQuery("SELECT to_char").
		WillReturnRows(sqlmock.NewRows([]string{"date", "regime", "cluster_id", "features", "centroid", "probabilities"}))

	rec := httptest.NewRecorder()
	s.handleRegimeLatest(rec, httptest.NewRequest(http.MethodGet, "/v1/pxi/regime/latest", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryDaysClamping(t *testing.T) {
	req := func(q string) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/x"+q, nil)
	}

	assert.Equal(t, 30, queryDays(req(""), 30, 90))
	assert.Equal(t, 7, queryDays(req("?days=7"), 30, 90))
	assert.Equal(t, 90, queryDays(req("?days=400"), 30, 90))
	assert.Equal(t, 30, queryDays(req("?days=0"), 30, 90))
	assert.Equal(t, 30, queryDays(req("?days=abc"), 30, 90))
}

func TestRateLimiterExhaustsBucket(t *testing.T) {
	limiter := newIPRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.allow("10.0.0.1"))
	}
	assert.False(t, limiter.allow("10.0.0.1"))

	// Separate clients get their own bucket.
	assert.True(t, limiter.allow("10.0.0.2"))
}
