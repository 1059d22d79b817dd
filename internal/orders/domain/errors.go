package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any state change.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientStock marks a stock commit refused because a product cannot cover the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransition is returned for status moves the state machine does not allow.
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrValidation)
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientStockError reports the first product that could not cover a commit.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
