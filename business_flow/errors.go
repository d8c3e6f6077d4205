// Package businessflow contains the sequencing core and the use cases built on it
package businessflow

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Business flow error constants
var (
	// Allocation errors
	ErrAllocatorUnavailable = errors.New("counter store unavailable")
	ErrSeedUnavailable      = errors.New("relational seed unavailable")
	ErrParentNotFound       = errors.New("parent not found")
	ErrInvalidSeed          = errors.New("relational seed is negative")

	// Publishing errors
	ErrPublishFailed = errors.New("event publish not confirmed")

	// Message errors
	ErrMessageNotFound     = errors.New("message not found")
	ErrMessageAccessDenied = errors.New("message access denied")

	// Reconciliation errors
	ErrInvalidFamily   = errors.New("invalid reconciliation family")
	ErrReconcileFailed = errors.New("reconciliation failed")

	ErrValidationFailed = errors.New("validation failed")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// AsBusinessError unwraps err to the outermost BusinessError, if any
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func newValidationError(err error) *BusinessError {
	return NewBusinessError("VALIDATION_ERROR", "invalid request", fmt.Errorf("%w: %w", ErrValidationFailed, err))
}

// ValidationErrors extracts field errors from a validation failure
func ValidationErrors(err error) (validator.ValidationErrors, bool) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func IsAllocatorUnavailable(err error) bool {
	return errors.Is(err, ErrAllocatorUnavailable)
}

func IsSeedUnavailable(err error) bool {
	return errors.Is(err, ErrSeedUnavailable)
}

func IsParentNotFound(err error) bool {
	return errors.Is(err, ErrParentNotFound)
}

func IsInvalidSeed(err error) bool {
	return errors.Is(err, ErrInvalidSeed)
}

func IsPublishFailed(err error) bool {
	return errors.Is(err, ErrPublishFailed)
}

func IsMessageNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

func IsMessageAccessDenied(err error) bool {
	return errors.Is(err, ErrMessageAccessDenied)
}

func IsInvalidFamily(err error) bool {
	return errors.Is(err, ErrInvalidFamily)
}

func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

// IsRetryable reports failures a client may retry unchanged
func IsRetryable(err error) bool {
	return IsAllocatorUnavailable(err) || IsSeedUnavailable(err) || IsPublishFailed(err)
}
