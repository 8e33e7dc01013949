package server

import (
	"github.com/go-chi/chi/v5"
)

// registerRoutes wires the API surface.
func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)

		r.Route("/pxi", func(r chi.Router) {
			r.Get("/latest", s.handlePXILatest)
			r.Get("/history", s.handlePXIHistory)
			r.Get("/metrics/latest", s.handleMetricsLatest)

			r.Route("/regime", func(r chi.Router) {
				r.Get("/latest", s.handleRegimeLatest)
				r.Get("/history", s.handleRegimeHistory)
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", s.handleAlerts)
				r.Post("/{id}/acknowledge", s.handleAcknowledgeAlert)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/sharpe", s.handleAnalyticsSharpe)
				r.Get("/drawdown", s.handleAnalyticsDrawdown)
				r.Get("/risk-metrics", s.handleAnalyticsRiskMetrics)
			})
		})
	})
}
