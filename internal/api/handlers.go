package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ignite/mailrelay/internal/pkg/logger"
	"github.com/ignite/mailrelay/internal/service"
	"github.com/ignite/mailrelay/internal/store"
)

// StatsSource exposes dispatcher counters for the stats route.
type StatsSource interface {
	Stats() map[string]int64
}

// Handlers carries the dependencies of every route.
type Handlers struct {
	svc     *service.Service
	stats   StatsSource
	workers int
}

// NewHandlers creates the handler set. workers is reported in the banner.
func NewHandlers(svc *service.Service, stats StatsSource, workers int) *Handlers {
	return &Handlers{svc: svc, stats: stats, workers: workers}
}

// Banner reports service identity, for humans poking the root URL.
func (h *Handlers) Banner(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":       "mailrelay",
		"status":        "running",
		"queue_workers": h.workers,
	})
}

// Health is the unauthenticated liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// QueueStats reports the dispatcher counters.
func (h *Handlers) QueueStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.Stats())
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto HTTP codes. Anything
// unclassified becomes a short 500, never internals.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrNoAccountAvailable):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err.Error())
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
