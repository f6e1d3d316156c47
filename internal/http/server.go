// Package http serves the report API: period listing, report JSON, PDF
// download, send-now and the email notification setting.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/report"
)

// HeaderUserID carries the authenticated user id set by the upstream auth layer.
const HeaderUserID = "X-User-ID"

// SettingsStore persists the email report opt-in.
type SettingsStore interface {
	SetEmailNotifications(ctx context.Context, userID int64, enabled bool) error
}

// Check is a named readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server wraps http.Server with the report handlers.
type Server struct {
	http.Server

	reports  *report.Service
	settings SettingsStore
	limiter  *ratelimit.Limiter
	checks   []Check
	logger   *log.Logger
	started  time.Time

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithLimiter rate limits send-now per user. Without it a limiter with the
// default configuration is used.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithReadiness adds probes run by /readyz.
func WithReadiness(checks ...Check) Option {
	return func(s *Server) { s.checks = append(s.checks, checks...) }
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, reports *report.Service, settings SettingsStore, logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		reports:  reports,
		settings: settings,
		logger:   logger.WithComponent(log.ComponentHTTP),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/monthly-reports", s.withUser(s.handleListReports))
	mux.HandleFunc("GET /api/monthly-report/{year}/{month}", s.withUser(s.handleMonthlyReport))
	mux.HandleFunc("GET /api/monthly-report/{year}/{month}/pdf", s.withUser(s.handleMonthlyReportPDF))
	mux.Handle("POST /api/send-monthly-report/{year}/{month}",
		s.limiter.Middleware(rateLimitKey, s.handleRateLimited)(s.withUser(s.handleSendReport)))

	mux.HandleFunc("GET /api/user-settings", s.withUser(s.handleGetSettings))
	mux.HandleFunc("POST /api/user-settings", s.withUser(s.handleUpdateSettings))

	clientIP := security.NewClientIP()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(logger, clientIP.Extract)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Handler(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops the limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// rateLimitKey limits per user. Requests without a user id are rejected by
// withUser later; they share one bucket.
func rateLimitKey(r *http.Request) string {
	return "user:" + r.Header.Get(HeaderUserID)
}
