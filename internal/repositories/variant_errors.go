package repositories

import (
	"errors"
	"fmt"
)

// VariantErrorCode enumerates repository error causes for variant operations.
type VariantErrorCode string

const (
	// VariantErrorUnknown represents an unspecified failure.
	VariantErrorUnknown VariantErrorCode = "variant_unknown"
	// VariantErrorNotFound indicates the variant document is missing.
	VariantErrorNotFound VariantErrorCode = "variant_not_found"
	// VariantErrorConflict indicates another variant already claims the same
	// identity (axis signature or SKU).
	VariantErrorConflict VariantErrorCode = "variant_conflict"
	// VariantErrorUnavailable indicates the backing store could not be reached.
	VariantErrorUnavailable VariantErrorCode = "variant_unavailable"
)

// VariantError wraps variant-specific failures with machine readable codes.
type VariantError struct {
	Op      string
	Code    VariantErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *VariantError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *VariantError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewVariantError constructs a typed variant error.
func NewVariantError(code VariantErrorCode, message string, err error) *VariantError {
	if message == "" {
		message = string(code)
	}
	return &VariantError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsVariantNotFound reports whether err represents a missing variant.
func IsVariantNotFound(err error) bool {
	if variantErrorCode(err) == VariantErrorNotFound {
		return true
	}
	var re RepositoryError
	return errors.As(err, &re) && re.IsNotFound()
}

// IsVariantConflict reports whether err represents a conflicting write.
func IsVariantConflict(err error) bool {
	if variantErrorCode(err) == VariantErrorConflict {
		return true
	}
	var re RepositoryError
	return errors.As(err, &re) && re.IsConflict()
}

// IsVariantUnavailable reports whether err represents a backend outage.
func IsVariantUnavailable(err error) bool {
	if variantErrorCode(err) == VariantErrorUnavailable {
		return true
	}
	var re RepositoryError
	return errors.As(err, &re) && re.IsUnavailable()
}

func variantErrorCode(err error) VariantErrorCode {
	var ve *VariantError
	if errors.As(err, &ve) && ve != nil {
		return ve.Code
	}
	return ""
}
