package admin

import (
	"encoding/json"
	"net/http"

	"github.com/atomweather/atomweather/server/internal/alerts"
	"github.com/atomweather/atomweather/server/internal/metrics"
	"github.com/atomweather/atomweather/server/internal/store"
	"github.com/atomweather/atomweather/server/internal/ws"
)

// Handler is the HTTP handler for the admin listener.
type Handler struct {
	store  *store.Store
	alerts *alerts.Engine
	mux    *http.ServeMux
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	StationCount int    `json:"station_count"`
	State        string `json:"state"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// New creates a Handler wired to the given store, metrics, alert engine and
// observation stream, and registers all routes.
func New(st *store.Store, m *metrics.Metrics, eng *alerts.Engine, stream *ws.Stream) http.Handler {
	h := &Handler{store: st, alerts: eng, mux: http.NewServeMux()}

	h.mux.Handle("/metrics", m.Handler())
	h.mux.Handle("/ws/stream", stream)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /api/v1/health — the number of live stations.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		StationCount: len(h.store.List()),
		State:        "ok",
	})
}

// listAlerts returns GET /api/v1/alerts — the breaches currently in effect.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Firing())
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
