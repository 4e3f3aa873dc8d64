package integration

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/barterhq/barterhq-backend/internal/modules/auth"
)

// Handler exposes integration HTTP endpoints. The OAuth callback is the
// only unauthenticated route; everything else requires a merchant token.
type Handler struct {
	manager      *Manager
	repo         Repository
	dashboardURL string
}

func NewHandler(manager *Manager, repo Repository, dashboardURL string) *Handler {
	return &Handler{manager: manager, repo: repo, dashboardURL: dashboardURL}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/integrations/oauth/callback", h.callback)
}

func (h *Handler) RegisterAuthedRoutes(r chi.Router) {
	r.Route("/api/v1/integrations", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/oauth/initiate", h.initiate)
		r.Post("/api-key", h.saveAPIKey)
		r.Post("/{id}/disconnect", h.disconnect)
	})
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		Provider   string `json:"provider"`
		ShopDomain string `json:"shop_name,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Provider == "" {
		respond(w, http.StatusBadRequest, map[string]string{"error": "provider is required"})
		return
	}

	res, err := h.manager.Initiate(r.Context(), merchantID, req.Provider, req.ShopDomain)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownProvider) {
			code = http.StatusBadRequest
		}
		respond(w, code, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.redirect(w, r, url.Values{"oauth_error": {providerErr}})
		return
	}

	in, err := h.manager.HandleCallback(r.Context(), q.Get("code"), q.Get("state"), q.Get("shop"))
	if err != nil {
		h.redirect(w, r, url.Values{"oauth_error": {err.Error()}})
		return
	}
	h.redirect(w, r, url.Values{"oauth_success": {"true"}, "provider": {in.Provider}})
}

func (h *Handler) saveAPIKey(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		Provider         string  `json:"provider"`
		APIKey           string  `json:"api_key"`
		ExternalStoreID  string  `json:"external_store_id"`
		BarterPercentage float64 `json:"barter_percentage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Provider == "" || req.APIKey == "" {
		respond(w, http.StatusBadRequest, map[string]string{"error": "provider and api_key are required"})
		return
	}

	in, err := h.manager.SaveAPIKey(r.Context(), merchantID, req.Provider, req.APIKey, req.ExternalStoreID, req.BarterPercentage)
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusCreated, in)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Disconnect(r.Context(), id); err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	items, err := h.repo.ListByMerchant(r.Context(), merchantID.String())
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, items)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	sep := "?"
	if u, err := url.Parse(h.dashboardURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	http.Redirect(w, r, h.dashboardURL+sep+params.Encode(), http.StatusFound)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
