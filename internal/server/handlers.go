package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/pkg/formulas"
)

// noCompositeMessage is returned while the first ingest cycle has not yet
// produced a composite row.
const noCompositeMessage = "PXI has not been computed yet; the service may still be warming up"

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// cached serves a payload from the TTL cache when enabled, computing and
// storing it otherwise. Errors are never cached.
func (s *Server) cached(w http.ResponseWriter, key string, compute func() (interface{}, int, error)) {
	if s.cache != nil {
		if payload, ok := s.cache.Get(key); ok {
			writeJSON(w, http.StatusOK, payload)
			return
		}
	}

	payload, status, err := compute()
	if err != nil {
		s.log.Error().Err(err).Str("cache_key", key).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if status != http.StatusOK {
		writeJSON(w, status, payload)
		return
	}

	if s.cache != nil {
		s.cache.Set(key, payload)
	}
	writeJSON(w, http.StatusOK, payload)
}

// queryDays parses a ?days=N parameter clamped into [1, max].
func queryDays(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return def
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		return def
	}
	if days > max {
		return max
	}
	return days
}

type latestResponse struct {
	PXI              float64                     `json:"pxi"`
	RawPXI           float64                     `json:"raw_pxi"`
	Regime           domain.ThresholdRegime      `json:"regime"`
	CalculatedAt     time.Time                   `json:"calculated_at"`
	Version          int64                       `json:"version"`
	Stale            bool                        `json:"stale"`
	PampCount        int                         `json:"pamp_count"`
	StressCount      int                         `json:"stress_count"`
	Metrics          []domain.MetricContribution `json:"metrics"`
	Alerts           []domain.Alert              `json:"alerts"`
	DiscoveredRegime *domain.RegimeRow           `json:"discovered_regime"`
}

// latestPayload assembles the full dashboard payload: composite, per-metric
// contributions, recent unacknowledged alerts and the discovered regime.
func (s *Server) latestPayload(r *http.Request) (*latestResponse, error) {
	row, err := s.store.Composite.Latest(r.Context())
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	regimeRow, err := s.store.Regimes.Latest(r.Context())
	if err != nil {
		return nil, err
	}
	alerts, err := s.store.Alerts.Unacknowledged(r.Context(), 7)
	if err != nil {
		return nil, err
	}

	return &latestResponse{
		PXI:              row.PXI,
		RawPXI:           row.RawPXI,
		Regime:           row.Regime,
		CalculatedAt:     row.CalculatedAt,
		Version:          row.CalculatedAt.UnixNano(),
		Stale:            time.Since(row.CalculatedAt) > s.cfg.StaleThreshold,
		PampCount:        row.PampCount,
		StressCount:      row.StressCount,
		Metrics:          row.Metrics,
		Alerts:           alerts,
		DiscoveredRegime: regimeRow,
	}, nil
}

// handlePXILatest serves the current composite plus its contributions.
func (s *Server) handlePXILatest(w http.ResponseWriter, r *http.Request) {
	s.cached(w, "pxi:latest", func() (interface{}, int, error) {
		payload, err := s.latestPayload(r)
		if err != nil {
			return nil, 0, err
		}
		if payload == nil {
			return map[string]string{"error": noCompositeMessage}, http.StatusServiceUnavailable, nil
		}
		return payload, http.StatusOK, nil
	})
}

// handleSnapshot serves the same payload under the polling route.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.cached(w, "snapshot", func() (interface{}, int, error) {
		payload, err := s.latestPayload(r)
		if err != nil {
			return nil, 0, err
		}
		if payload == nil {
			return map[string]string{"error": noCompositeMessage}, http.StatusServiceUnavailable, nil
		}
		return payload, http.StatusOK, nil
	})
}

type metricResponse struct {
	IndicatorID  string              `json:"id"`
	Label        string              `json:"label"`
	Value        float64             `json:"value"`
	Unit         string              `json:"unit"`
	Z            *float64            `json:"z"`
	Mean         float64             `json:"mean"`
	StdDev       *float64            `json:"std_dev"`
	N            int                 `json:"n"`
	Weight       float64             `json:"weight"`
	LowerBound   float64             `json:"lower_bound"`
	UpperBound   float64             `json:"upper_bound"`
	Breach       bool                `json:"breach"`
	Health       domain.HealthStatus `json:"health"`
	Contribution *float64            `json:"contribution"`
	Delta1d      *float64            `json:"delta_1d"`
	Delta7d      *float64            `json:"delta_7d"`
	Delta30d     *float64            `json:"delta_30d"`
	SourceTime   time.Time           `json:"source_ts"`
}

// handleMetricsLatest serves the per-indicator detail panel.
func (s *Server) handleMetricsLatest(w http.ResponseWriter, r *http.Request) {
	s.cached(w, "metrics:latest", func() (interface{}, int, error) {
		samples, err := s.store.Samples.LatestPerIndicator(r.Context())
		if err != nil {
			return nil, 0, err
		}
		if len(samples) == 0 {
			return map[string]string{"error": noCompositeMessage}, http.StatusServiceUnavailable, nil
		}

		baselines, err := s.store.Stats.LatestStats(r.Context())
		if err != nil {
			return nil, 0, err
		}

		contributions := make(map[string]domain.MetricContribution)
		if row, err := s.store.Composite.Latest(r.Context()); err != nil {
			return nil, 0, err
		} else if row != nil {
			for _, mc := range row.Metrics {
				contributions[mc.IndicatorID] = mc
			}
		}

		var metrics []metricResponse
		for _, def := range domain.Indicators {
			sample, ok := samples[def.ID]
			if !ok {
				continue
			}

			m := metricResponse{
				IndicatorID: def.ID,
				Label:       def.Label,
				Value:       sample.Value,
				Unit:        sample.Unit,
				Weight:      def.Weight,
				LowerBound:  def.LowerBound,
				UpperBound:  def.UpperBound,
				Breach:      sample.Value < def.LowerBound || sample.Value > def.UpperBound,
				SourceTime:  sample.SourceTimestamp,
			}

			if snap, ok := baselines[def.ID]; ok {
				m.Mean = snap.Mean
				m.StdDev = snap.StdDev
				m.N = snap.N
				m.Health = snap.Health
				m.Z = computeZ(sample.Value, snap)
			}
			if mc, ok := contributions[def.ID]; ok {
				contribution := mc.Contribution
				m.Contribution = &contribution
			}

			for _, span := range []struct {
				days   int
				target **float64
			}{{1, &m.Delta1d}, {7, &m.Delta7d}, {30, &m.Delta30d}} {
				past, err := s.store.History.ValueDaysAgo(r.Context(), def.ID, span.days)
				if err != nil {
					return nil, 0, err
				}
				if past != nil {
					delta := sample.Value - *past
					*span.target = &delta
				}
			}

			metrics = append(metrics, m)
		}

		return map[string]interface{}{"metrics": metrics}, http.StatusOK, nil
	})
}

func computeZ(value float64, snap domain.StatsSnapshot) *float64 {
	if snap.StdDev == nil || *snap.StdDev < 1e-9 {
		return nil
	}
	z := (value - snap.Mean) / *snap.StdDev
	return &z
}

// handlePXIHistory serves the composite series, up to 90 days.
func (s *Server) handlePXIHistory(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, 30, 90)
	s.cached(w, fmt.Sprintf("pxi:history:%d", days), func() (interface{}, int, error) {
		rows, err := s.store.Composite.PxiHistory(r.Context(), days)
		if err != nil {
			return nil, 0, err
		}

		type point struct {
			CalculatedAt time.Time              `json:"calculated_at"`
			PXI          float64                `json:"pxi"`
			Regime       domain.ThresholdRegime `json:"regime"`
		}
		points := make([]point, 0, len(rows))
		for _, row := range rows {
			points = append(points, point{CalculatedAt: row.CalculatedAt, PXI: row.PXI, Regime: row.Regime})
		}
		return map[string]interface{}{"days": days, "points": points}, http.StatusOK, nil
	})
}

// handleRegimeLatest serves the most recent discovered regime.
func (s *Server) handleRegimeLatest(w http.ResponseWriter, r *http.Request) {
	s.cached(w, "regime:latest", func() (interface{}, int, error) {
		row, err := s.store.Regimes.Latest(r.Context())
		if err != nil {
			return nil, 0, err
		}
		if row == nil {
			return map[string]string{"error": "no regime discovered yet"}, http.StatusNotFound, nil
		}
		return row, http.StatusOK, nil
	})
}

// handleRegimeHistory serves discovered regimes, up to a year.
func (s *Server) handleRegimeHistory(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, 90, 365)
	s.cached(w, fmt.Sprintf("regime:history:%d", days), func() (interface{}, int, error) {
		rows, err := s.store.Regimes.History(r.Context(), days)
		if err != nil {
			return nil, 0, err
		}
		return map[string]interface{}{"days": days, "regimes": rows}, http.StatusOK, nil
	})
}

// handleAlerts serves unacknowledged alerts.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, 7, 90)
	alerts, err := s.store.Alerts.Unacknowledged(r.Context(), days)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load alerts")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"days": days, "alerts": alerts})
}

// handleAcknowledgeAlert marks one alert acknowledged.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Alerts.Acknowledge(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "alert not found or already acknowledged")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// pxiValues loads the composite value series for analytics.
func (s *Server) pxiValues(r *http.Request, days int) ([]float64, error) {
	rows, err := s.store.Composite.PxiHistory(r.Context(), days)
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.PXI)
	}
	return values, nil
}

// handleAnalyticsSharpe serves the annualized Sharpe ratio of the composite
// series, treating PXI changes as returns.
func (s *Server) handleAnalyticsSharpe(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, 90, 90)
	s.cached(w, fmt.Sprintf("analytics:sharpe:%d", days), func() (interface{}, int, error) {
		values, err := s.pxiValues(r, days)
		if err != nil {
			return nil, 0, err
		}

		sharpe := formulas.CalculateSharpeFromValues(values, 0)
		return map[string]interface{}{
			"days":         days,
			"observations": len(values),
			"sharpe":       sharpe,
		}, http.StatusOK, nil
	})
}

// handleAnalyticsDrawdown serves drawdown metrics of the composite series.
func (s *Server) handleAnalyticsDrawdown(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, 90, 90)
	s.cached(w, fmt.Sprintf("analytics:drawdown:%d", days), func() (interface{}, int, error) {
		values, err := s.pxiValues(r, days)
		if err != nil {
			return nil, 0, err
		}

		return map[string]interface{}{
			"days":         days,
			"observations": len(values),
			"drawdown":     formulas.CalculateDrawdownMetrics(values),
		}, http.StatusOK, nil
	})
}

// handleAnalyticsRiskMetrics serves the combined risk profile of the series.
func (s *Server) handleAnalyticsRiskMetrics(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, 90, 90)
	s.cached(w, fmt.Sprintf("analytics:risk:%d", days), func() (interface{}, int, error) {
		values, err := s.pxiValues(r, days)
		if err != nil {
			return nil, 0, err
		}

		payload := map[string]interface{}{
			"days":         days,
			"observations": len(values),
		}
		if len(values) >= 2 {
			payload["mean"] = formulas.Mean(values)
			payload["std_dev"] = formulas.StdDev(values)
			payload["volatility_annualized"] = formulas.AnnualizedVolatility(formulas.CalculateReturns(values))
			payload["sharpe"] = formulas.CalculateSharpeFromValues(values, 0)
			payload["max_drawdown"] = formulas.CalculateMaxDrawdown(values)
		}
		return payload, http.StatusOK, nil
	})
}
