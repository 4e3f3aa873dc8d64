package pos

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barterhq/barterhq-backend/internal/modules/auth"
)

// Handler exposes webhook and sync HTTP endpoints. Webhook routes carry
// no auth middleware; the signature check is the authentication.
type Handler struct {
	gateway      *Gateway
	orchestrator *Orchestrator
	store        Repository
}

func NewHandler(gateway *Gateway, orchestrator *Orchestrator, store Repository) *Handler {
	return &Handler{gateway: gateway, orchestrator: orchestrator, store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.webhook)
	r.Post("/api/v1/webhooks/{provider}", h.webhookByPath)
}

func (h *Handler) RegisterAuthedRoutes(r chi.Router) {
	r.Post("/api/v1/pos/sync", h.sync)
	r.Get("/api/v1/pos/transactions", h.listTransactions)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	h.processWebhook(w, r, r.URL.Query().Get("provider"))
}

func (h *Handler) webhookByPath(w http.ResponseWriter, r *http.Request) {
	h.processWebhook(w, r, chi.URLParam(r, "provider"))
}

// processWebhook answers 400 on rejection and 200 otherwise. A
// duplicate delivery is a success: the provider must stop retrying.
// Failures never propagate past this handler.
func (h *Handler) processWebhook(w http.ResponseWriter, r *http.Request, provider string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "unreadable body"})
		return
	}

	result, err := h.gateway.HandleWebhook(r.Context(), provider, body, r.Header)
	if err != nil {
		log.Printf("webhook %s rejected: %v", provider, err)
		msg := err.Error()
		if errors.Is(err, ErrSignatureInvalid) {
			msg = "Invalid signature"
		}
		respond(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": msg})
		return
	}

	if result.Duplicate {
		respond(w, http.StatusOK, map[string]interface{}{"success": true, "duplicate": true})
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"success": true, "transaction_id": result.TransactionID})
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.POSIntegrationID == "" || req.TransactionID == "" {
		respond(w, http.StatusBadRequest, map[string]string{"error": "transaction_id and pos_integration_id are required"})
		return
	}
	// The body's merchant_id is never trusted; the token decides.
	req.MerchantID = merchantID.String()

	result, err := h.orchestrator.Sync(r.Context(), req)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrIntegrationNotFound), errors.Is(err, ErrUnsupportedProvider):
			code = http.StatusBadRequest
		case errors.Is(err, ErrAuthExpired):
			code = http.StatusUnauthorized
		default:
			var papi *ProviderAPIError
			if errors.As(err, &papi) {
				code = http.StatusBadGateway
			}
		}
		respond(w, code, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	respond(w, http.StatusOK, result)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	txs, err := h.store.ListByMerchant(r.Context(), merchantID.String())
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusOK, txs)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
