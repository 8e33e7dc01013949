package coingecko

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

func TestReturn24hComputesLogReturn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/coins/bitcoin/market_chart")
		w.Write([]byte(`{"prices":[[1755648000000,100000.0],[1755734400000,105000.0]]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	ret, ts, err := client.Return24h(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.05), ret, 1e-9)
	assert.False(t, ts.IsZero())
}

func TestReturn24hNeedsTwoPoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[[1755734400000,105000.0]]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	_, _, err := client.Return24h(context.Background(), "bitcoin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransformInvalid))
}

func TestDailyPricesRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	_, err := client.DailyPrices(context.Background(), "bitcoin", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderRejected))
}

func TestDailyPricesRejectsNonPositive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[[1755648000000,0.0]]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	_, err := client.DailyPrices(context.Background(), "bitcoin", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransformInvalid))
}
