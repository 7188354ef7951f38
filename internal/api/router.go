package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/KNICEX/coin-status-watcher/internal/repo"
	"github.com/KNICEX/coin-status-watcher/internal/service/monitor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HealthSource 由 monitor.AssetMonitor 实现
type HealthSource interface {
	Coin() string
	Health() monitor.Health
}

type handler struct {
	source  HealthSource
	history repo.StatusChangeRepo
	logger  *slog.Logger
}

// NewRouter exposes loop health, delivered notification history and
// Prometheus metrics. history may be nil when the audit log is disabled.
func NewRouter(source HealthSource, history repo.StatusChangeRepo, logger *slog.Logger) *chi.Mux {
	h := &handler{source: source, history: history, logger: logger}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", h.health)
	router.Get("/history", h.recent)
	router.Handle("/metrics", promhttp.Handler())
	return router
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	health := h.source.Health()
	code := http.StatusOK
	if !health.Healthy() {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, health)
}

func (h *handler) recent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	changes, err := h.history.FindRecent(r.Context(), h.source.Coin(), limit)
	if err != nil {
		h.logger.Error("failed to load status history", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, changes)
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}
