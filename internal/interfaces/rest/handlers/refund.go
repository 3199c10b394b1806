package handlers

import (
	"net/http"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest"
	"github.com/shopspring/decimal"
)

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// RefundPayment handles POST /api/v1/payments/{id}/refunds. Admin only.
// @Summary      Refund a payment
// @Tags         refunds
// @Accept       json
// @Produce      json
// @Param        X-User-ID    header    string          true  "Caller identity"
// @Param        X-User-Role  header    string          true  "Must be admin"
// @Param        id           path      string          true  "Payment id"
// @Param        request      body      refundRequest   true  "Amount and reason"
// @Success      200          {object}  rest.PaymentResponse
// @Failure      403          {object}  rest.ErrorResponse  "Caller is not an admin"
// @Failure      404          {object}  rest.ErrorResponse  "Payment not found"
// @Failure      422          {object}  rest.ErrorResponse  "Exceeds refundable amount or window closed"
// @Router       /api/v1/payments/{id}/refunds [post]
func (h *Handlers) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	cmd := services.RefundCommand{
		PaymentID:   r.PathValue("id"),
		Amount:      req.Amount,
		Reason:      req.Reason,
		PerformedBy: caller(r).UserID,
	}

	payment, err := h.refundService.Refund(r.Context(), cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentResponse(payment, h.now()))
}
