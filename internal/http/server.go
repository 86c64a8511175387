package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pindi/internal/auth"
	"pindi/internal/cache"
	"pindi/internal/core"
	"pindi/internal/services"
	"pindi/internal/storage"
)

type Server struct {
	http.Server
	entries     *services.EntryService
	gate        *auth.Gate
	store       *storage.Store
	rateLimiter *rateLimiter

	// Chart series are recomputed from the full entry cache on every
	// request otherwise, so short-lived results are worth keeping. The sync
	// worker refreshes the store from its own process, so cached series are
	// pinned to a store revision and flushed when it moves.
	chartCache   *cache.LRU[[]core.ChartPoint]
	lastRevision atomic.Int64

	caches       *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, entries *services.EntryService, gate *auth.Gate, store *storage.Store) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		entries:     entries,
		gate:        gate,
		store:       store,
		rateLimiter: newRateLimiter(),
		chartCache:  cache.NewLRU[[]core.ChartPoint](100, 5*time.Minute),
		caches:      cache.NewManager(),
	}

	s.caches.Register(s.chartCache)
	s.caches.Register(gate.Sessions())
	s.caches.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/login", s.withSecurity(s.handleLogin))
	mux.HandleFunc("POST /api/logout", s.withSecurity(s.handleLogout))

	mux.HandleFunc("GET /api/entries", s.withSecurity(s.requireSession(s.handleListEntries)))
	mux.HandleFunc("POST /api/entries", s.withSecurity(s.requireSession(s.handleCreateEntry)))
	mux.HandleFunc("DELETE /api/entries/{id}", s.withSecurity(s.requireSession(s.handleDeleteEntry)))

	mux.HandleFunc("GET /api/totals", s.withSecurity(s.requireSession(s.handleTotals)))
	mux.HandleFunc("GET /api/chart", s.withSecurity(s.requireSession(s.handleChart)))
	mux.HandleFunc("POST /api/refresh", s.withSecurity(s.requireSession(s.handleRefresh)))

	mux.HandleFunc("GET /api/theme", s.withSecurity(s.requireSession(s.handleGetTheme)))
	mux.HandleFunc("PUT /api/theme", s.withSecurity(s.requireSession(s.handleSetTheme)))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurity adds security headers, rate limiting, and request logging.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

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

		// Rate limit mutating requests only, reads stay cheap.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

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

// requireSession rejects requests without a valid bearer token.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || !s.gate.Check(token) {
			writeError(w, http.StatusUnauthorized, "session required")
			return
		}
		next(w, r)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
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

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
