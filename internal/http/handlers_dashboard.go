package http

import (
	"net/http"
	"time"

	"flowledger/internal/core"
)

const (
	metricsCacheKey  = "monthly_metrics"
	forecastCacheKey = "forecast"
)

func (s *Server) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.metricsCache.Get(metricsCacheKey); ok {
		writeJSON(w, http.StatusOK, toMetricsResponse(cached))
		return
	}

	metrics, err := s.dashboard.MonthlyMetrics(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.metricsCache.Set(metricsCacheKey, metrics)
	writeJSON(w, http.StatusOK, toMetricsResponse(metrics))
}

func (s *Server) handleDashboardForecast(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.forecastCache.Get(forecastCacheKey); ok {
		writeJSON(w, http.StatusOK, toForecastResponse(cached))
		return
	}

	points, err := s.dashboard.Forecast(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.forecastCache.Set(forecastCacheKey, points)
	writeJSON(w, http.StatusOK, toForecastResponse(points))
}

func toMetricsResponse(m core.MonthlyMetrics) metricsResponse {
	return metricsResponse{
		PaidIncome: m.PaidIncome.String(),
		BillsDue:   m.BillsDue.String(),
		Net:        m.Net.String(),
	}
}

func toForecastResponse(points []core.ForecastPoint) []forecastPointResponse {
	out := make([]forecastPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, forecastPointResponse{
			Date:    p.Date.Format(dateLayout),
			Inflow:  p.Inflow.String(),
			Outflow: p.Outflow.String(),
		})
	}
	return out
}
