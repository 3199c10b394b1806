package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on the error code so the sentinels below work with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

const (
	ErrCodeValidation              = "VALIDATION_FAILED"
	ErrCodeInvalidAmount           = "INVALID_AMOUNT"
	ErrCodeInvalidCurrency         = "INVALID_CURRENCY"
	ErrCodeInvalidMarket           = "INVALID_MARKET"
	ErrCodeInvalidPaymentMethod    = "INVALID_PAYMENT_METHOD"
	ErrCodeAmountMismatch          = "AMOUNT_MISMATCH"
	ErrCodeMissingRequiredField    = "MISSING_REQUIRED_FIELD"
	ErrCodePaymentNotFound         = "PAYMENT_NOT_FOUND"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeNotRefundable           = "NOT_REFUNDABLE"
	ErrCodeExceedsRefundableAmount = "EXCEEDS_REFUNDABLE_AMOUNT"
	ErrCodeConcurrentModification  = "CONCURRENT_MODIFICATION"
	ErrCodeDuplicateTransaction    = "DUPLICATE_TRANSACTION"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrValidation              = &DomainError{Code: ErrCodeValidation, Message: "validation failed"}
	ErrInvalidAmount           = &DomainError{Code: ErrCodeInvalidAmount, Message: "invalid amount"}
	ErrInvalidCurrency         = &DomainError{Code: ErrCodeInvalidCurrency, Message: "invalid currency"}
	ErrInvalidMarket           = &DomainError{Code: ErrCodeInvalidMarket, Message: "invalid market"}
	ErrInvalidPaymentMethod    = &DomainError{Code: ErrCodeInvalidPaymentMethod, Message: "invalid payment method"}
	ErrAmountMismatch          = &DomainError{Code: ErrCodeAmountMismatch, Message: "amount mismatch"}
	ErrMissingRequiredField    = &DomainError{Code: ErrCodeMissingRequiredField, Message: "missing required field"}
	ErrPaymentNotFound         = &DomainError{Code: ErrCodePaymentNotFound, Message: "payment not found"}
	ErrOrderNotFound           = &DomainError{Code: ErrCodeOrderNotFound, Message: "order not found"}
	ErrUserNotFound            = &DomainError{Code: ErrCodeUserNotFound, Message: "user not found"}
	ErrInvalidTransition       = &DomainError{Code: ErrCodeInvalidTransition, Message: "invalid status transition"}
	ErrNotRefundable           = &DomainError{Code: ErrCodeNotRefundable, Message: "payment is not refundable"}
	ErrExceedsRefundableAmount = &DomainError{Code: ErrCodeExceedsRefundableAmount, Message: "refund exceeds refundable amount"}
	ErrConcurrentModification  = &DomainError{Code: ErrCodeConcurrentModification, Message: "payment was modified concurrently"}
	ErrDuplicateTransaction    = &DomainError{Code: ErrCodeDuplicateTransaction, Message: "gateway transaction already recorded"}
)

func NewValidationError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidAmountError(amount decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %s: must be positive with at most 2 decimal places", amount.String()),
	}
}

func NewInvalidCurrencyError(currency string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidCurrency,
		Message: fmt.Sprintf("unsupported currency %q", currency),
	}
}

func NewInvalidMarketError(market string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidMarket,
		Message: fmt.Sprintf("unsupported market %q", market),
	}
}

func NewInvalidPaymentMethodError(method string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidPaymentMethod,
		Message: fmt.Sprintf("unsupported payment method %q", method),
	}
}

func NewAmountMismatchError(expected, actual decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountMismatch,
		Message: fmt.Sprintf("amount mismatch: breakdown totals %s, got %s", expected.StringFixed(2), actual.StringFixed(2)),
	}
}

func NewPaymentNotFoundError(key string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment %s not found", key),
	}
}

func NewOrderNotFoundError(key string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("order %s not found", key),
	}
}

func NewUserNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUserNotFound,
		Message: fmt.Sprintf("user %s not found", id),
	}
}

func NewInvalidTransitionError(from, to PaymentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewNotRefundableError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotRefundable,
		Message: fmt.Sprintf("payment is not refundable: %s", reason),
	}
}

func NewExceedsRefundableAmountError(requested, refundable decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeExceedsRefundableAmount,
		Message: fmt.Sprintf("refund of %s exceeds refundable amount %s", requested.StringFixed(2), refundable.StringFixed(2)),
	}
}

func NewConcurrentModificationError(paymentID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeConcurrentModification,
		Message: fmt.Sprintf("payment %s was modified concurrently", paymentID),
	}
}

func NewDuplicateTransactionError(transactionID string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateTransaction,
		Message: fmt.Sprintf("gateway transaction %s already recorded", transactionID),
		Err:     err,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsValidationError reports whether err should be rejected as malformed input.
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	switch domainErr.Code {
	case ErrCodeValidation, ErrCodeInvalidAmount, ErrCodeInvalidCurrency, ErrCodeInvalidMarket,
		ErrCodeInvalidPaymentMethod, ErrCodeAmountMismatch, ErrCodeMissingRequiredField:
		return true
	}
	return false
}
