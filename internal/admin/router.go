package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/pairchat/internal/middleware"
	"github.com/mcoot/pairchat/internal/services/session"
)

// ConnectionCounter reports live relay connections
type ConnectionCounter interface {
	ConnectionCount() int
}

// StatsProvider reports session and pairing counts
type StatsProvider interface {
	Stats() session.Stats
}

// RouterConfig holds configuration for the admin router
type RouterConfig struct {
	Logger   *slog.Logger
	Relay    ConnectionCounter
	Registry StatsProvider
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	Connections int `json:"connections"`
	session.Stats
}

// ErrorResponse is the body of any error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewRouter creates the admin router
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger, jsonPanicHandler))
	r.Use(middleware.Logging(cfg.Logger))

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", statsHandler(cfg.Relay, cfg.Registry)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func statsHandler(relay ConnectionCounter, registry StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatsResponse{
			Connections: relay.ConnectionCount(),
			Stats:       registry.Stats(),
		})
	}
}

func jsonPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
