package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

// Healthz reports liveness.
// @Summary  Liveness
// @Tags     health
// @Produce  json
// @Success  200  {object}  rest.Response
// @Router   /healthz [get]
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	rest.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Readyz answers 503 until the database responds to a ping.
func (h *Handlers) Readyz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				h.logger.Warn("readiness check failed", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
					Error: rest.ErrorDetail{Code: "UNAVAILABLE", Message: "database unavailable"},
				})
				return
			}
		}
		rest.WriteJSON(w, http.StatusOK, healthResponse{Status: "ready"})
	}
}
