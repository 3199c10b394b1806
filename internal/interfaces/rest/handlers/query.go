package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest"
	"github.com/oapi-codegen/runtime"
	"github.com/shopspring/decimal"
)

// GetPayment handles GET /api/v1/payments/{id}.
// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Param        X-User-ID  header    string  true  "Caller identity"
// @Param        id         path      string  true  "Payment id"
// @Success      200        {object}  rest.PaymentResponse
// @Failure      404        {object}  rest.ErrorResponse  "Not found or owned by someone else"
// @Router       /api/v1/payments/{id} [get]
func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	payment, err := h.queryService.GetPayment(r.Context(), r.PathValue("id"), c.UserID, c.IsAdmin())
	if err != nil {
		h.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToPaymentResponse(payment, h.now()))
}

// ListPayments handles GET /api/v1/payments?limit=&offset=.
// @Summary      List the caller's payments
// @Tags         payments
// @Produce      json
// @Param        X-User-ID  header    string  true   "Caller identity"
// @Param        limit      query     int     false  "Page size"
// @Param        offset     query     int     false  "Rows to skip"
// @Success      200        {object}  rest.PaymentListResponse
// @Failure      400        {object}  rest.ErrorResponse  "Non-numeric paging"
// @Router       /api/v1/payments [get]
func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var limit, offset int
	if err := bindQuery(query, "limit", false, &limit); err != nil {
		h.writeError(w, err)
		return
	}
	if err := bindQuery(query, "offset", false, &offset); err != nil {
		h.writeError(w, err)
		return
	}

	payments, err := h.queryService.ListPayments(r.Context(), caller(r).UserID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	now := h.now()
	out := make([]rest.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, rest.ToPaymentResponse(p, now))
	}

	rest.WriteJSON(w, http.StatusOK, rest.PaymentListResponse{Payments: out, Count: len(out)})
}

// QuoteFee handles GET /api/v1/fees/quote?amount=&method=&market=.
// @Summary      Quote the processor fee
// @Tags         fees
// @Produce      json
// @Param        amount  query     string  true   "Decimal amount"
// @Param        method  query     string  true   "paypal or card"
// @Param        market  query     string  false  "Market code, defaults to GB"
// @Success      200     {object}  rest.FeeQuoteResponse
// @Failure      400     {object}  rest.ErrorResponse
// @Router       /api/v1/fees/quote [get]
func (h *Handlers) QuoteFee(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var rawAmount, rawMethod, rawMarket string
	if err := bindQuery(query, "amount", true, &rawAmount); err != nil {
		h.writeError(w, err)
		return
	}
	if err := bindQuery(query, "method", true, &rawMethod); err != nil {
		h.writeError(w, err)
		return
	}
	if err := bindQuery(query, "market", false, &rawMarket); err != nil {
		h.writeError(w, err)
		return
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		h.writeError(w, application.NewInvalidInputError(fmt.Errorf("amount: %w", err)))
		return
	}

	fee, err := h.queryService.QuoteFee(amount, rawMethod, rawMarket)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// QuoteFee has already validated both
	method, _ := domain.ParsePaymentMethod(rawMethod)
	market, _ := domain.ParseMarket(rawMarket)

	rest.WriteJSON(w, http.StatusOK, rest.ToFeeQuoteResponse(amount, string(method), string(market), fee))
}

// bindQuery reads one form-style query parameter into dst.
func bindQuery(query url.Values, name string, required bool, dst any) error {
	if err := runtime.BindQueryParameter("form", true, required, name, query, dst); err != nil {
		return application.NewInvalidInputError(fmt.Errorf("query parameter %s: %w", name, err))
	}
	return nil
}
