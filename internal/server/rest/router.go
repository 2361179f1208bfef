package rest

import (
	"net/http"

	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/server/metrics"
	"github.com/gorilla/mux"
)

// NewRouter wires every route. limiter guards the login endpoint and may be nil.
func NewRouter(h *Handlers, limiter *RateLimiter, m *metrics.Metrics, log logging.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(instrument(log, m))

	r.HandleFunc("/health", Health).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.Handle("/auth/login", RateLimit(limiter, http.HandlerFunc(h.Login))).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.Handle("/auth/me", RequireAuth(h.auth, h.log, h.Me)).Methods(http.MethodGet)

	api.Handle("/log", RequireAuth(h.auth, h.log, h.AppendLog)).Methods(http.MethodPost)
	api.Handle("/logs", RequireAuth(h.auth, h.log, h.ListLogs)).Methods(http.MethodGet)
	api.Handle("/status", RequireAuth(h.auth, h.log, h.Status)).Methods(http.MethodGet)
	api.Handle("/clear", RequireAuth(h.auth, h.log, h.ClearLogs)).Methods(http.MethodDelete)

	return requestID(r)
}
