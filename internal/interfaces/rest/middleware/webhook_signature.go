package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest"
)

const maxWebhookBody = 1 << 20

// VerifyWebhookSignature asks PayPal whether the delivery is genuine before the handler
// sees it. The body is buffered and restored for the handler.
func VerifyWebhookSignature(verifier application.WebhookVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
			if err != nil {
				rest.WriteError(w, application.NewInvalidInputError(fmt.Errorf("read webhook body: %w", err)), logger)
				return
			}
			if len(body) > maxWebhookBody {
				rest.WriteError(w, application.NewInvalidInputError(errors.New("webhook body too large")), logger)
				return
			}

			v := application.WebhookVerification{
				TransmissionID:   r.Header.Get("PAYPAL-TRANSMISSION-ID"),
				TransmissionTime: r.Header.Get("PAYPAL-TRANSMISSION-TIME"),
				TransmissionSig:  r.Header.Get("PAYPAL-TRANSMISSION-SIG"),
				CertURL:          r.Header.Get("PAYPAL-CERT-URL"),
				AuthAlgo:         r.Header.Get("PAYPAL-AUTH-ALGO"),
				Body:             body,
			}

			if v.TransmissionID == "" || v.TransmissionSig == "" {
				logger.Warn("webhook rejected: missing signature headers", "remote_addr", r.RemoteAddr)
				rest.WriteError(w, application.NewInvalidWebhookSignatureError(errors.New("missing signature headers")), logger)
				return
			}

			ok, err := verifier.VerifyWebhookSignature(r.Context(), v)
			if err != nil {
				logger.Error("webhook signature verification failed", "transmission_id", v.TransmissionID, "error", err)
				rest.WriteError(w, application.NewInvalidWebhookSignatureError(err), logger)
				return
			}
			if !ok {
				logger.Warn("webhook rejected: invalid signature", "transmission_id", v.TransmissionID)
				rest.WriteError(w, application.NewInvalidWebhookSignatureError(nil), logger)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			next.ServeHTTP(w, r)
		})
	}
}
