package fred

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

func TestObservationsSkipsMissingValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "VIXCLS", r.URL.Query().Get("series_id"))
		w.Write([]byte(`{"observations":[
			{"date":"2026-08-21","value":"18.42"},
			{"date":"2026-08-20","value":"."},
			{"date":"2026-08-19","value":"17.05"}
		]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", zerolog.Nop()).WithBaseURL(server.URL)
	obs, err := client.Observations(context.Background(), "VIXCLS", 10)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	// Ascending order, placeholder dropped.
	assert.Equal(t, "2026-08-19", obs[0].Date)
	assert.InDelta(t, 17.05, obs[0].Value, 1e-9)
	assert.Equal(t, "2026-08-21", obs[1].Date)
	assert.InDelta(t, 18.42, obs[1].Value, 1e-9)
}

func TestLatestObservationUsesNewest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[
			{"date":"2026-08-21","value":"."},
			{"date":"2026-08-20","value":"4.15"}
		]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", zerolog.Nop()).WithBaseURL(server.URL)
	obs, err := client.LatestObservation(context.Background(), "UNRATE")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-20", obs.Date)
	assert.InDelta(t, 4.15, obs.Value, 1e-9)
}

func TestObservationsRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_message":"Bad Request"}`))
	}))
	defer server.Close()

	client := NewClient("bad-key", zerolog.Nop()).WithBaseURL(server.URL)
	_, err := client.Observations(context.Background(), "VIXCLS", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderRejected))
}

func TestObservationsUnparseableValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[{"date":"2026-08-21","value":"n/a"}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", zerolog.Nop()).WithBaseURL(server.URL)
	_, err := client.Observations(context.Background(), "NFCI", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransformInvalid))
}

func TestObservationsUnreachable(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop()).WithBaseURL("http://127.0.0.1:1")
	_, err := client.Observations(context.Background(), "VIXCLS", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnreachable))
}
