// Package domain contains the core business entities and interfaces for the payment bridge.
package domain

import "errors"

// Domain errors represent business rule violations.
// These are used to communicate specific error conditions from the domain layer.
var (
	// ErrOrderNotFound is returned when no order exists for a reference or id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidSignature is returned when HMAC verification of a signed
	// parameter set fails or the signature is missing.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrMissingField is returned when a required signed parameter is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidRequest is returned when a supplied field is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAlreadyProcessed is returned when a merchant reference is re-submitted
	// after the order has left the pending state.
	ErrAlreadyProcessed = errors.New("order already processed")

	// ErrStatusConflict is returned by the compare-and-set status transition
	// when the order is not in the expected state.
	ErrStatusConflict = errors.New("order status conflict")

	// ErrOutcomeConflict is returned when a terminal order is resolved to a
	// different outcome than the one already recorded.
	ErrOutcomeConflict = errors.New("conflicting payment outcome")

	// ErrUnsupportedGateway is returned when no adapter is registered for the
	// requested gateway name.
	ErrUnsupportedGateway = errors.New("unsupported payment gateway")

	// ErrUnsupportedCurrency is returned when the selected gateway cannot
	// settle the order's currency.
	ErrUnsupportedCurrency = errors.New("currency not supported by gateway")

	// ErrUnsupportedCountry is returned when the selected gateway does not
	// operate in the requested country.
	ErrUnsupportedCountry = errors.New("country not supported by gateway")

	// ErrGatewayError is returned when a gateway call fails.
	ErrGatewayError = errors.New("payment gateway error")

	// ErrWebhookIgnored is returned by webhook parsers for notification
	// types the bridge deliberately does not act on.
	ErrWebhookIgnored = errors.New("webhook notification ignored")

	// ErrNotConfigured is returned when a required secret or credential is
	// absent. This is fatal for the affected operation - verification is
	// never silently skipped.
	ErrNotConfigured = errors.New("missing required configuration")
)

// PaymentError wraps a domain error with additional context.
type PaymentError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with PaymentError.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given error and message.
func NewPaymentError(err error, message, code string) *PaymentError {
	return &PaymentError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
