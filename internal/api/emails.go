package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailrelay/internal/service"
)

// CreateEmail accepts a message, binds it to an account, and queues it.
func (h *Handlers) CreateEmail(w http.ResponseWriter, r *http.Request) {
	var req service.CreateEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	id, err := h.svc.CreateEmail(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Email created and queued successfully",
		"email_id": id,
	})
}

// GetEmail returns the detailed message view.
func (h *Handlers) GetEmail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}

	view, err := h.svc.GetEmail(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ListEmailsByStatus returns summary rows for one status, capped by ?limit.
func (h *Handlers) ListEmailsByStatus(w http.ResponseWriter, r *http.Request) {
	status := chi.URLParam(r, "status")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	out, err := h.svc.ListEmailsByStatus(r.Context(), status, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
