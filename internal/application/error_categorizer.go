package application

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	// Context Errors (Transient - network/timeout issues)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	if domain.IsValidationError(err) {
		return CategoryClientError
	}

	switch {
	case errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return CategoryClientError
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotRefundable),
		errors.Is(err, domain.ErrExceedsRefundableAmount),
		errors.Is(err, domain.ErrDuplicateTransaction):
		return CategoryBusinessRule
	case errors.Is(err, domain.ErrConcurrentModification):
		return CategoryTransient
	}

	// Service/Application Errors
	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeIdempotencyMismatch, ErrCodeInvalidInput, ErrCodeUnauthorized,
			ErrCodeForbidden, ErrCodeInvalidWebhookSignature:
			return CategoryClientError
		case ErrCodeAlreadyProcessed, ErrCodeCardDeclined:
			return CategoryBusinessRule
		case ErrCodeInternalInconsistency, ErrCodeUpstreamProtocol:
			return CategoryPermanent
		case ErrCodeInternal:
			return CategoryInfrastructure
		case ErrCodeRequestProcessing, ErrCodeTimeout, ErrCodeRateLimited:
			return CategoryTransient
		}
	}

	if gwErr, ok := IsGatewayError(err); ok {
		if gwErr.IsRetryable() {
			return CategoryTransient
		}
		if gwErr.IsAlreadyProcessed() {
			return CategoryBusinessRule
		}
		return CategoryPermanent
	}

	// Default: Transient (safe fallback)
	return CategoryTransient
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	category := CategorizeError(err)
	return category == CategoryTransient || category == CategoryInfrastructure
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	if domain.IsValidationError(err) {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotRefundable),
		errors.Is(err, domain.ErrExceedsRefundableAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	if gwErr, ok := IsGatewayError(err); ok {
		switch {
		case gwErr.StatusCode >= 500,
			gwErr.StatusCode == http.StatusUnauthorized,
			gwErr.StatusCode == http.StatusForbidden:
			// our credentials or their outage; the caller cannot fix either
			return http.StatusBadGateway
		case gwErr.StatusCode == http.StatusTooManyRequests:
			return http.StatusServiceUnavailable
		case gwErr.StatusCode >= 400:
			return gwErr.StatusCode
		}
		return http.StatusBadGateway
	}

	// Default to 500
	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if gwErr, ok := IsGatewayError(err); ok {
		return strings.ToUpper(gwErr.Code())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}

	return ErrCodeInternal
}
