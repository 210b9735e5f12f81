package repositories

import (
	"errors"
	"fmt"
)

// TemplateErrorCode enumerates repository error causes for axis template operations.
type TemplateErrorCode string

const (
	// TemplateErrorUnknown represents an unspecified failure.
	TemplateErrorUnknown TemplateErrorCode = "template_unknown"
	// TemplateErrorNotFound indicates the template document is missing.
	TemplateErrorNotFound TemplateErrorCode = "template_not_found"
	// TemplateErrorConflict indicates a template with the same name already exists.
	TemplateErrorConflict TemplateErrorCode = "template_conflict"
	// TemplateErrorUnavailable indicates the backing store could not be reached.
	TemplateErrorUnavailable TemplateErrorCode = "template_unavailable"
)

// TemplateError wraps axis template failures with machine readable codes.
type TemplateError struct {
	Op      string
	Code    TemplateErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *TemplateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewTemplateError constructs a typed template error.
func NewTemplateError(code TemplateErrorCode, message string, err error) *TemplateError {
	if message == "" {
		message = string(code)
	}
	return &TemplateError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsTemplateNotFound reports whether err represents a missing template.
func IsTemplateNotFound(err error) bool {
	var te *TemplateError
	if errors.As(err, &te) && te != nil && te.Code == TemplateErrorNotFound {
		return true
	}
	var re RepositoryError
	return errors.As(err, &re) && re.IsNotFound()
}

// IsTemplateConflict reports whether err represents a conflicting write.
func IsTemplateConflict(err error) bool {
	var te *TemplateError
	if errors.As(err, &te) && te != nil && te.Code == TemplateErrorConflict {
		return true
	}
	var re RepositoryError
	return errors.As(err, &re) && re.IsConflict()
}
