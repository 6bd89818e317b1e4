package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady checks that the transaction store answers a directory read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.transactions == nil || s.reports == nil {
		checks["services"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if _, err := s.transactions.Categories(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	WriteJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	gauge("http_request_duration_avg_microseconds", "Average request duration", traceMetrics.AverageResponseTime)
	counter("transaction_writes_total", "Transactions created, updated or deleted", s.appMetrics.writes.Load())
	counter("transaction_migrations_total", "Transactions migrated to a new type", s.appMetrics.migrations.Load())
	counter("report_errors_total", "Report queries that failed", s.appMetrics.reportErrors.Load())
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", rateMetrics.TotalHits)
	gauge("rate_limit_active_clients", "Clients tracked by the rate limiter", rateMetrics.ClientCount)
	counter("security_suspicious_requests_total", "Requests flagged as suspicious", securityMetrics.SuspiciousRequests)
	gauge("uptime_seconds", "Seconds since the server started", int64(time.Since(s.appMetrics.uptime).Seconds()))
}
