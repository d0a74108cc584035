// Package http exposes the data service over a small JSON API. The surface
// is deliberately thin: parse, delegate, encode. All caching and write
// coordination lives in the services layer.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"conti/internal/log"
	"conti/internal/services"
)

type Server struct {
	http.Server
	data        *services.DataService
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, data *services.DataService) *Server {
	mux := http.NewServeMux()

	logger := log.New(log.Config{Component: log.ComponentHTTP})

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: log.Middleware(logger)(mux),
		},
		data:        data,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /api/data/{owner}/{collection...}", s.withMiddleware(s.handleList))
	mux.HandleFunc("POST /api/data/{owner}/{collection...}", s.withMiddleware(s.handleCreate))
	mux.HandleFunc("PATCH /api/data/{owner}/{collection...}", s.withMiddleware(s.handleUpdate))
	mux.HandleFunc("DELETE /api/data/{owner}/{collection...}", s.withMiddleware(s.handleDelete))

	mux.HandleFunc("POST /api/increment/{owner}/{collection...}", s.withMiddleware(s.handleIncrement))
	mux.HandleFunc("POST /api/reset/{owner}", s.withMiddleware(s.handleResetOwner))
	mux.HandleFunc("POST /api/reset", s.withMiddleware(s.handleResetAll))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers and rate limiting for writes.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter, 60 mutating requests per client per minute.
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

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
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
