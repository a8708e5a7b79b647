package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart                 = errors.New("checkout: cart is empty")
	ErrNoShippingAddress         = errors.New("checkout: no shipping address")
	ErrValidation                = errors.New("validation failed")
	ErrInsufficientStock         = errors.New("inventory: insufficient stock")
	ErrPaymentVerificationFailed = errors.New("payment: verification failed")
	ErrIllegalTransition         = errors.New("order: illegal status transition")
	ErrNotFound                  = errors.New("not found")
	ErrForbidden                 = errors.New("forbidden")
	ErrGatewayUnavailable        = errors.New("payment: gateway unavailable")
)

// ValidationError is a caller-correctable input problem on a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError names the variant that could not be reserved.
type InsufficientStockError struct {
	Key       VariantKey
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s (requested %d)", e.Key, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
