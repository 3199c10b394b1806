package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeAlreadyProcessed        = "ALREADY_PROCESSED"
	ErrCodeUpstreamProtocol        = "UPSTREAM_PROTOCOL_ERROR"
	ErrCodeCardDeclined            = "CARD_DECLINED"
	ErrCodeInternalInconsistency   = "INTERNAL_INCONSISTENCY"
	ErrCodeIdempotencyMismatch     = "IDEMPOTENCY_MISMATCH"
	ErrCodeRequestProcessing       = "REQUEST_PROCESSING"
	ErrCodeTimeout                 = "TIMEOUT"
	ErrCodeInternal                = "INTERNAL_ERROR"
	ErrCodeInvalidInput            = "INVALID_INPUT"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeInvalidWebhookSignature = "INVALID_WEBHOOK_SIGNATURE"
	ErrCodeRateLimited             = "RATE_LIMITED"
)

func NewAlreadyProcessedError(gatewayOrderID string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeAlreadyProcessed,
		Message:    fmt.Sprintf("gateway order %s was already captured or voided", gatewayOrderID),
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewUpstreamProtocolError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUpstreamProtocol,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
	}
}

func NewCardDeclinedError(declineCode, message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeCardDeclined,
		Message:    fmt.Sprintf("card declined (%s): %s", declineCode, message),
		HTTPStatus: http.StatusPaymentRequired,
	}
}

func NewInternalInconsistencyError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternalInconsistency,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func NewIdempotencyMismatchError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyMismatch,
		Message:    "Idempotency key reused with different request parameters",
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewRequestProcessingError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRequestProcessing,
		Message:    "Request is being processed. Please retry in a moment.",
		HTTPStatus: http.StatusConflict,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

func NewInvalidWebhookSignatureError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidWebhookSignature,
		Message:    "webhook signature verification failed",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewRateLimitedError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRateLimited,
		Message:    "too many requests",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
