package errors

import (
	"errors"
	"fmt"
)

var (
	// Value object errors
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// Payment errors
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrIllegalPaymentState       = errors.New("illegal payment state")
	ErrPaymentExpired            = errors.New("payment authorization has expired")
	ErrInsufficientAuthorization = errors.New("capture exceeds remaining authorization")
	ErrDuplicatePayment          = errors.New("an active payment already exists for invoice")
	ErrTooManyPaymentAttempts    = errors.New("too many payment attempts for invoice")

	// Collaborator errors
	ErrGateway              = errors.New("payment gateway error")
	ErrEventPublish         = errors.New("failed to publish domain events")
	ErrOptimisticLockFailed = errors.New("optimistic lock conflict")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError wraps errors with additional context
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

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GatewayError is a failure reported by the payment gateway. Code and Message
// are opaque to the domain; they are recorded, never interpreted.
type GatewayError struct {
	Op      string
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("gateway %s failed [%s]: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway failed [%s]: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return ErrGateway
}

// NewGatewayError creates a new gateway error
func NewGatewayError(op, code, message string) *GatewayError {
	return &GatewayError{Op: op, Code: code, Message: message}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match validation failures with ErrInvalidArgument.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// InvalidArgument builds a ValidationError for a value object field.
func InvalidArgument(field, format string, args ...any) error {
	return NewValidationError(field, fmt.Sprintf(format, args...))
}
