// Package http exposes the JSON API: invoices, subscriptions, bill
// payments, and the dashboard read models.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"flowledger/internal/cache"
	"flowledger/internal/core"
	"flowledger/internal/services"
)

type Server struct {
	http.Server
	invoices      *services.InvoiceService
	subscriptions *services.SubscriptionService
	dashboard     *services.DashboardService
	rateLimiter   *rateLimiter

	// Dashboard reads are cached briefly; every mutation invalidates
	// both entries so the dashboard never shows stale totals.
	metricsCache  *cache.LRUCache[core.MonthlyMetrics]
	forecastCache *cache.LRUCache[[]core.ForecastPoint]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run
// server.
func NewServer(addr string, invoices *services.InvoiceService, subscriptions *services.SubscriptionService, dashboard *services.DashboardService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		invoices:      invoices,
		subscriptions: subscriptions,
		dashboard:     dashboard,
		rateLimiter:   newRateLimiter(),
		metricsCache:  cache.NewLRUCache[core.MonthlyMetrics](10, 1*time.Minute),
		forecastCache: cache.NewLRUCache[[]core.ForecastPoint](10, 1*time.Minute),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.metricsCache)
	s.cacheManager.Register(s.forecastCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/dashboard/metrics", s.withMiddleware(s.handleDashboardMetrics))
	mux.HandleFunc("GET /api/dashboard/forecast", s.withMiddleware(s.handleDashboardForecast))

	mux.HandleFunc("GET /api/invoices", s.withMiddleware(s.handleListInvoices))
	mux.HandleFunc("POST /api/invoices", s.withMiddleware(s.handleCreateInvoice))
	mux.HandleFunc("GET /api/invoices/{id}", s.withMiddleware(s.handleGetInvoice))
	mux.HandleFunc("PUT /api/invoices/{id}", s.withMiddleware(s.handleUpdateInvoice))
	mux.HandleFunc("DELETE /api/invoices/{id}", s.withMiddleware(s.handleDeleteInvoice))
	mux.HandleFunc("POST /api/invoices/{id}/status", s.withMiddleware(s.handleInvoiceStatus))

	mux.HandleFunc("GET /api/subscriptions", s.withMiddleware(s.handleListSubscriptions))
	mux.HandleFunc("POST /api/subscriptions", s.withMiddleware(s.handleCreateSubscription))
	mux.HandleFunc("GET /api/subscriptions/{id}", s.withMiddleware(s.handleGetSubscription))
	mux.HandleFunc("PUT /api/subscriptions/{id}", s.withMiddleware(s.handleUpdateSubscription))
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.withMiddleware(s.handleDeleteSubscription))
	mux.HandleFunc("POST /api/subscriptions/{id}/pause", s.withMiddleware(s.handlePauseSubscription))
	mux.HandleFunc("POST /api/subscriptions/{id}/pay", s.withMiddleware(s.handlePaySubscription))
	mux.HandleFunc("GET /api/subscriptions/{id}/payments", s.withMiddleware(s.handleListBillPayments))

	return s
}

// invalidateDashboard drops cached dashboard reads after any mutation.
func (s *Server) invalidateDashboard() {
	s.metricsCache.Delete(metricsCacheKey)
	s.forecastCache.Delete(forecastCacheKey)
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

type contextKey string

const requestIDKey contextKey = "request_id"

// withMiddleware adds security headers, rate limiting and request
// logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit mutations only; dashboard polling stays cheap
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
