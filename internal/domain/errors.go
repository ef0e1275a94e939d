package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrDuplicateRegistration is returned when a concurrent registration won
	// the race on the same user id. Callers treat it as success.
	ErrDuplicateRegistration = errors.New("duplicate registration")
	// ErrDelivery matches every *DeliveryError.
	ErrDelivery = errors.New("delivery failed")
	// ErrStorage wraps query and connection faults from the store.
	ErrStorage = errors.New("storage fault")
	// ErrScheduling wraps failures to register a timer.
	ErrScheduling = errors.New("scheduling fault")
	// ErrNotFound is returned by lookups that found nothing.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes bad user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DeliveryError is a failed send to a single user.
type DeliveryError struct {
	UserID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %d: %v", e.UserID, e.Err)
}

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

func (e *DeliveryError) Unwrap() error { return e.Err }
