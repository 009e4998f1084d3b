package server

import (
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the id assigned to each request
const RequestIDHeader = "X-Request-ID"

// hostIdleTTL is how long an idle host keeps its limiter
const hostIdleTTL = 10 * time.Minute

// HostLimiter hands out one token bucket per remote host
type HostLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	hosts     map[string]*hostEntry
	lastSweep time.Time
	now       func() time.Time
}

type hostEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewHostLimiter allows perSecond requests per host with the given burst
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		hosts: make(map[string]*hostEntry),
		now:   time.Now,
	}
}

// Allow reports whether host may make a request now
func (h *HostLimiter) Allow(host string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.lastSweep) > hostIdleTTL {
		for k, e := range h.hosts {
			if now.Sub(e.lastSeen) > hostIdleTTL {
				delete(h.hosts, k)
			}
		}
		h.lastSweep = now
	}

	entry, ok := h.hosts[host]
	if !ok {
		entry = &hostEntry{limiter: rate.NewLimiter(h.limit, h.burst)}
		h.hosts[host] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Hosts returns the number of tracked hosts
func (h *HostLimiter) Hosts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hosts)
}

// RateLimitMiddleware rejects requests over the per-host budget with 429
func RateLimitMiddleware(limiter *HostLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(remoteHost(r.RemoteAddr)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"` + msgRateLimited + `"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures the status code for logging
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware assigns a request id and logs every request
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			logger.Info("request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", remoteHost(r.RemoteAddr)),
			)
		})
	}
}

// RecoveryMiddleware turns handler panics into 500 replies
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Any("error", err),
						zap.ByteString("stack", debug.Stack()),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Chain composes middleware; the first one is outermost
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
