package api

import (
	"net/http"

	"github.com/ignite/mailrelay/internal/service"
	"github.com/ignite/mailrelay/internal/store"
)

// accountPatchRequest mirrors store.AccountPatch with wire field names.
type accountPatchRequest struct {
	Name         *string `json:"name"`
	EmailAddress *string `json:"email_address"`
	DisplayName  *string `json:"display_name"`
	Host         *string `json:"smtp_host"`
	Port         *int    `json:"smtp_port"`
	Username     *string `json:"username"`
	Password     *string `json:"password"`
	UseTLS       *bool   `json:"use_tls"`
	UseSSL       *bool   `json:"use_ssl"`
	Active       *bool   `json:"active"`
	DailyLimit   *int    `json:"daily_limit"`
	HourlyLimit  *int    `json:"hourly_limit"`
}

func (p *accountPatchRequest) patch() store.AccountPatch {
	return store.AccountPatch{
		Name:         p.Name,
		EmailAddress: p.EmailAddress,
		DisplayName:  p.DisplayName,
		Host:         p.Host,
		Port:         p.Port,
		Username:     p.Username,
		Password:     p.Password,
		UseTLS:       p.UseTLS,
		UseSSL:       p.UseSSL,
		Active:       p.Active,
		DailyLimit:   p.DailyLimit,
		HourlyLimit:  p.HourlyLimit,
	}
}

// CreateAccount registers a new SMTP account.
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	id, err := h.svc.CreateAccount(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "SMTP configuration created successfully",
		"config_id": id,
	})
}

// ListAccounts returns summary rows for every account.
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// GetAccount returns the detailed account view.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}

	view, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateAccount applies a partial update; an empty or missing body is a 400.
func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}

	var req accountPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.svc.UpdateAccount(r.Context(), id, req.patch()); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "SMTP configuration updated successfully",
	})
}
