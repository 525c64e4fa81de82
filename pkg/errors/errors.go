package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Exchange-specific errors

var (
	// ErrExchangeUnavailable indicates exchange API is unavailable
	ErrExchangeUnavailable = errors.New("exchange unavailable")

	// ErrUnsupportedExchange indicates the venue has no adapter
	ErrUnsupportedExchange = errors.New("unsupported exchange")

	// ErrInsufficientBalance indicates insufficient account balance
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidSymbol indicates invalid trading symbol
	ErrInvalidSymbol = errors.New("invalid trading symbol")

	// ErrOrderRejected indicates order was rejected by exchange
	ErrOrderRejected = errors.New("order rejected by exchange")

	// ErrOrderNotFound indicates the exchange does not know the order
	ErrOrderNotFound = errors.New("order not found")

	// ErrRateLimitExceeded indicates API rate limit exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Job lifecycle errors

var (
	// ErrJobValidation indicates the job payload failed validation
	ErrJobValidation = errors.New("job validation failed")

	// ErrPlacementExhausted indicates order placement retries were exhausted
	ErrPlacementExhausted = errors.New("order placement attempts exhausted")

	// ErrCredentialsNotFound indicates no API credentials for the subaccount
	ErrCredentialsNotFound = errors.New("subaccount credentials not found")
)

// WebSocket-specific errors

var (
	// ErrWSNotConnected indicates WebSocket is not connected
	ErrWSNotConnected = errors.New("websocket not connected")

	// ErrWSSubscriptionFailed indicates WebSocket subscription failed
	ErrWSSubscriptionFailed = errors.New("websocket subscription failed")

	// ErrWSReconnectFailed indicates WebSocket reconnection failed
	ErrWSReconnectFailed = errors.New("websocket reconnection failed")

	// ErrWSMaxReconnectAttempts indicates max reconnection attempts reached
	ErrWSMaxReconnectAttempts = errors.New("max websocket reconnection attempts reached")
)

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
