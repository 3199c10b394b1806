package handlers

import (
	"net/http"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest"
)

// PayPalWebhook handles POST /api/v1/webhooks/paypal. A non-2xx answer makes PayPal
// redeliver, so only transient failures are reported as errors. A malformed envelope
// never gets better on redelivery and is acknowledged.
// @Summary      PayPal webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  rest.Response
// @Failure      400  {object}  rest.ErrorResponse  "Signature verification failed"
// @Failure      500  {object}  rest.ErrorResponse  "Transient failure, PayPal redelivers"
// @Router       /api/v1/webhooks/paypal [post]
func (h *Handlers) PayPalWebhook(w http.ResponseWriter, r *http.Request) {
	var event services.WebhookEvent
	if err := decodeJSON(r, &event); err != nil {
		h.logger.Warn("discarding malformed webhook envelope",
			"error", err,
			"transmission_id", r.Header.Get("PAYPAL-TRANSMISSION-ID"),
		)
		rest.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.webhookService.HandleEvent(r.Context(), event); err != nil {
		h.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
