package middlewares

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"github.com/vlatan/news-sitemap/internal/config"
)

// Per-IP limits for the public endpoints
const (
	requestsPerSecond = 5
	requestsBurst     = 10
	maxVisitors       = 10000
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Service struct {
	config *config.Config

	mu       sync.Mutex
	visitors map[string]*visitor
}

func New(config *config.Config) *Service {
	return &Service{
		config:   config,
		visitors: make(map[string]*visitor),
	}
}

// Close the body if POST request
func (s *Service) CloseBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Close request body for POST methods to prevent resource leaks
		if r.Method == http.MethodPost {
			defer r.Body.Close()
		}
		next.ServeHTTP(w, r)
	})
}

// Do not crash the app on panic, serve 500 error to the client
func (s *Service) RecoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If in production recover panic
		if !s.config.Debug {
			defer func() {
				if err := recover(); err != nil {
					// Log the panic with stack trace
					log.Printf("Panic in %s %s: %#v", r.Method, r.URL.Path, err)

					// Return 500 to client
					http.Error(w, "Something went wrong", http.StatusInternalServerError)
				}
			}()
		}

		next.ServeHTTP(w, r)
	})
}

// Add security headers to request
func (s *Service) AddHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")

		// HSTS (HTTPS only)
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")

		next.ServeHTTP(w, r)
	})
}

// Log each request with its status, size and duration
func (s *Service) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		start := time.Now()
		recorder := newResponseRecorder(w)

		next.ServeHTTP(recorder, r)

		log.Printf(
			"%s %s %d %dB %s",
			r.Method, r.URL.Path,
			recorder.status, recorder.bytes,
			time.Since(start).Round(time.Microsecond),
		)
	})
}

// Compress provides gzip compression
func (s *Service) Compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// RateLimit throttles clients per IP address
func (s *Service) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !s.limiter(ip).Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limiter returns the rate limiter for the given IP,
// creating one on first sight and pruning stale entries.
func (s *Service) limiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visitors[ip]
	if !ok {
		if len(s.visitors) >= maxVisitors {
			s.prune()
		}
		v = &visitor{limiter: rate.NewLimiter(requestsPerSecond, requestsBurst)}
		s.visitors[ip] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// prune drops visitors idle for more than a few minutes.
// Caller must hold the mutex.
func (s *Service) prune() {
	cutoff := time.Now().Add(-3 * time.Minute)
	for ip, v := range s.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(s.visitors, ip)
		}
	}
}

// Chain middlewares that apply to all handlers
func (s *Service) ApplyToAll(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		// Apply middlewares in reverse order
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
