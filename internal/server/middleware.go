package server

import (
	"crypto/subtle"
	"net"
	"net/http"

	"github.com/pramodthe/enterprise-ai-platform/internal/tracing"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.NewRequestContext(r.Context())
		if id := r.Header.Get(RequestIDHeader); id != "" {
			ctx = tracing.WithRequestID(ctx, id)
		}
		w.Header().Set(RequestIDHeader, tracing.GetRequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireSecret(next http.Handler) http.Handler {
	if s.cfg.SharedSecret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.SharedSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller for rate limiting.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
