package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Handler exposes checkout HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/checkout/calculate", h.calculate)
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.MerchantID == "" {
		respond(w, http.StatusBadRequest, map[string]string{"error": "merchant_id is required"})
		return
	}
	if len(req.Items) == 0 {
		respond(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	resp, err := h.service.Calculate(r.Context(), req)
	if err != nil {
		code := http.StatusInternalServerError
		msg := err.Error()
		if errors.Is(err, ErrInsufficientCredits) || errors.Is(err, ErrBarterOnRestricted) {
			code = http.StatusUnprocessableEntity
		} else if strings.Contains(msg, "must be") || strings.Contains(msg, "cannot be") {
			code = http.StatusBadRequest
		}
		respond(w, code, map[string]string{"error": msg})
		return
	}
	respond(w, http.StatusOK, resp)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
