package rest

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/auth"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/palletkeeper/internal/server/services"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Authenticator resolves a bearer token to a live identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Identity, error)
}

// AuthedHandler is a handler that runs only for authenticated callers.
type AuthedHandler func(w http.ResponseWriter, r *http.Request, id services.Identity)

func bearerToken(r *http.Request) string {
	return auth.ParseBearer(r.Header.Get(common.AuthorizationHeaderName))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequireAuth verifies the bearer token and its session before calling next.
func RequireAuth(a Authenticator, log logging.Logger, next AuthedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			log.Debug(r.Context(), "request rejected", "path", r.URL.Path, "error", err)
			writeError(w, err)
			return
		}
		next(w, r, id)
	})
}

// RateLimit rejects requests from a client IP that exceeded its budget.
func RateLimit(rl *RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl != nil && !rl.Allow(clientIP(r)) {
			writeError(w, common.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestID reuses the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(common.RequestIDHeaderName, id)
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument logs every request and feeds the HTTP metrics, labelled by the
// route template.
func instrument(log logging.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			elapsed := time.Since(start)
			m.ObserveHTTP(route, r.Method, rec.status, elapsed)
			log.Info(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration", elapsed,
				"request_id", r.Header.Get(common.RequestIDHeaderName),
				"remote", clientIP(r),
			)
		})
	}
}
