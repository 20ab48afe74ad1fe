package portalpay

import (
	"errors"
	"fmt"
)

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	// ErrCodeUnsupportedMethod means the request used a payment protocol
	// variant this backend does not implement
	ErrCodeUnsupportedMethod = "unsupported_method"
	// ErrCodeAmountUnknown means no amount could be determined for a quote
	ErrCodeAmountUnknown = "amount_unknown"
	// ErrCodePaymentNotFound means no record matches the given identifier or
	// request token
	ErrCodePaymentNotFound = "payment_not_found"
	// ErrCodeSerialization means a response could not be encoded
	ErrCodeSerialization = "serialization_failed"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewUnsupportedMethodError reports an unimplemented protocol variant
func NewUnsupportedMethodError(method string) *PaymentError {
	return NewPaymentError(ErrCodeUnsupportedMethod, fmt.Sprintf("unsupported %s", method), nil)
}

// NewPaymentNotFoundError reports a missing ledger record
func NewPaymentNotFoundError() *PaymentError {
	return NewPaymentError(ErrCodePaymentNotFound, "payment not found", nil)
}

// NewAmountUnknownError reports a quote request with no determinable amount
func NewAmountUnknownError() *PaymentError {
	return NewPaymentError(ErrCodeAmountUnknown, "unknown invoice amount", nil)
}

// ErrorCode extracts the payment error code from err, or "" if err is not a
// PaymentError
func ErrorCode(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsUnsupportedMethod reports whether err is an unsupported-variant failure
func IsUnsupportedMethod(err error) bool {
	return ErrorCode(err) == ErrCodeUnsupportedMethod
}

// IsPaymentNotFound reports whether err is a missing-record failure. Callers
// may retry the operation once the corresponding record exists.
func IsPaymentNotFound(err error) bool {
	return ErrorCode(err) == ErrCodePaymentNotFound
}

// IsAmountUnknown reports whether err is an unknown-amount failure
func IsAmountUnknown(err error) bool {
	return ErrorCode(err) == ErrCodeAmountUnknown
}
