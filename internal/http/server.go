package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/services"
)

// Options wires the server to its services.
type Options struct {
	Transactions       *services.TransactionService
	Reports            *services.ReportService
	Logger             *log.Logger
	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose X-Forwarded-For headers are honoured.
	TrustedProxies []string
}

type appMetrics struct {
	uptime       time.Time
	writes       atomic.Int64
	migrations   atomic.Int64
	reportErrors atomic.Int64
}

type Server struct {
	http.Server
	transactions *services.TransactionService
	reports      *services.ReportService
	validate     *validator.Validate
	logger       *log.Logger
	audit        *log.StructuredLogger
	now          func() time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Write requests are rate limited per client IP.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		transactions:     opts.Transactions,
		reports:          opts.Reports,
		validate:         newValidator(),
		logger:           logger,
		audit:            log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
		now:              time.Now,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions/summary", s.handleSummary)
	mux.HandleFunc("GET /transactions/categories", s.handleCategories)
	mux.HandleFunc("GET /transactions/payment-methods", s.handlePaymentMethods)
	mux.HandleFunc("GET /transactions/migration-candidates", s.handleMigrationCandidates)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /transactions/{id}/migrate", s.handleMigrateTransaction)

	mux.HandleFunc("GET /reports/sales-analysis", s.handleSalesAnalysis)
	mux.HandleFunc("GET /reports/sales-performance", s.handleSalesPerformance)
	mux.HandleFunc("GET /reports/sales-comparison", s.handleSalesComparison)
	mux.HandleFunc("GET /reports/complete-analysis", s.handleCompleteAnalysis)
	mux.HandleFunc("GET /reports/categories", s.handleCategoryReport)
	mux.HandleFunc("GET /reports/seller-ranking", s.handleSellerRanking)
}

// middleware wraps the mux, outermost first: tracing, request-scoped
// logger, security headers, suspicious request detection, write rate limiting.
func (s *Server) middleware(next http.Handler) http.Handler {
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete)

	h := limit(next)
	h = s.securityDetector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(trace.FromRequest)(h)
	h = log.Middleware(s.logger)(h)
	return s.traceMiddleware.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	fields := log.NewFields().
		WithRequestID(trace.GetRequestID(r.Context())).
		WithClientIP(s.securityDetector.ExtractClientIP(r)).
		WithComponent(log.ComponentRateLimit)
	fields[log.FieldMethod] = r.Method
	fields[log.FieldPath] = r.URL.Path
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", fields.ToSlice()...)
	WriteJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "rate limit exceeded, try again later"})
}

// Shutdown stops accepting requests, drains in-flight ones and stops the
// rate limiter cleanup. Only the first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
		s.rateLimiter.Stop()
	})
	return err
}
