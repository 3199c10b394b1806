package handlers

import (
	"net/http"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest"
)

// CreatePayPalPayment handles POST /api/v1/payments/paypal.
// @Summary      Start a PayPal checkout
// @Description  Creates a PayPal order for the caller and returns the URL the buyer approves it at.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-User-ID        header    string                                true   "Caller identity"
// @Param        Idempotency-Key  header    string                                false  "Replays return the first response"
// @Param        request          body      services.CreatePayPalPaymentCommand   true   "Checkout details"
// @Success      201              {object}  rest.PayPalCheckoutResponse
// @Failure      400              {object}  rest.ErrorResponse  "Invalid amount, currency or items"
// @Failure      401              {object}  rest.ErrorResponse  "Missing identity"
// @Failure      502              {object}  rest.ErrorResponse  "PayPal rejected the order"
// @Router       /api/v1/payments/paypal [post]
func (h *Handlers) CreatePayPalPayment(w http.ResponseWriter, r *http.Request) {
	var cmd services.CreatePayPalPaymentCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.writeError(w, err)
		return
	}
	cmd.UserID = caller(r).UserID

	checkout, err := h.checkoutService.CreatePayPalPayment(r.Context(), cmd, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToPayPalCheckoutResponse(checkout))
}

// ChargeCard handles POST /api/v1/payments/card.
// @Summary      Charge a card
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-User-ID        header    string                        true   "Caller identity"
// @Param        Idempotency-Key  header    string                        false  "Replays return the first response"
// @Param        request          body      services.ChargeCardCommand    true   "Card and amount"
// @Success      201              {object}  rest.CheckoutResponse
// @Failure      400              {object}  rest.ErrorResponse  "Invalid card or amount"
// @Failure      402              {object}  rest.ErrorResponse  "Card declined"
// @Router       /api/v1/payments/card [post]
func (h *Handlers) ChargeCard(w http.ResponseWriter, r *http.Request) {
	var cmd services.ChargeCardCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.writeError(w, err)
		return
	}
	cmd.UserID = caller(r).UserID

	result, err := h.checkoutService.ChargeCard(r.Context(), cmd, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.ToCheckoutResponse(result, h.now()))
}

// CapturePayPalPayment handles POST /api/v1/payments/paypal/{gatewayOrderId}/capture.
// @Summary      Capture an approved PayPal order
// @Description  Idempotent by gateway order id. A settled payment returns the existing order.
// @Tags         payments
// @Produce      json
// @Param        X-User-ID       header    string  true  "Caller identity"
// @Param        gatewayOrderId  path      string  true  "PayPal order id"
// @Success      200             {object}  rest.CheckoutResponse
// @Failure      404             {object}  rest.ErrorResponse  "Unknown order"
// @Failure      409             {object}  rest.ErrorResponse  "Payment cannot be captured"
// @Failure      422             {object}  rest.ErrorResponse  "Capture declined or order not approved"
// @Router       /api/v1/payments/paypal/{gatewayOrderId}/capture [post]
func (h *Handlers) CapturePayPalPayment(w http.ResponseWriter, r *http.Request) {
	cmd := services.CaptureCommand{
		GatewayOrderID: r.PathValue("gatewayOrderId"),
		UserID:         caller(r).UserID,
	}

	result, err := h.captureService.Capture(r.Context(), cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToCheckoutResponse(result, h.now()))
}
