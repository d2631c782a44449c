package apperr

import (
	"errors"
	"fmt"
)

// Code categorizes an application error.
type Code string

const (
	// CodeValidation indicates invalid input data (malformed posting, bad criteria).
	CodeValidation Code = "validation"
	// CodeNotFound indicates a record or resource was not found.
	CodeNotFound Code = "not_found"
	// CodeConflict indicates a conflict with existing data (duplicate identifier, lock held).
	CodeConflict Code = "conflict"
	// CodeStoreCorrupt indicates the durable store could not be parsed or failed integrity checks.
	CodeStoreCorrupt Code = "store_corrupt"
	// CodeSearchFailed indicates the search producer failed mid-stream.
	CodeSearchFailed Code = "search_failed"
	// CodeApplyRecoverable indicates an application attempt failed in a retryable way.
	CodeApplyRecoverable Code = "apply_recoverable"
	// CodeApplyPermanent indicates an application attempt can never succeed
	// (posting removed, account ineligible).
	CodeApplyPermanent Code = "apply_permanent"
	// CodeTimeout indicates a timeout occurred.
	CodeTimeout Code = "timeout"
	// CodeCanceled indicates the operation was canceled.
	CodeCanceled Code = "canceled"
	// CodeInternal indicates an unexpected internal error.
	CodeInternal Code = "internal"
)

// Error is a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type Error struct {
	// Code categorizes the error type
	Code Code
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation creates a new validation error.
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationField creates a new validation error for a specific field.
func ValidationField(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

// NotFound creates a new not-found error.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// NotFoundf creates a new not-found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a new conflict error.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// Conflictf creates a new conflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// StoreCorrupt creates a new store-corruption error.
func StoreCorrupt(message string) *Error {
	return &Error{Code: CodeStoreCorrupt, Message: message}
}

// StoreCorruptf creates a new store-corruption error with a formatted message.
func StoreCorruptf(format string, args ...any) *Error {
	return &Error{Code: CodeStoreCorrupt, Message: fmt.Sprintf(format, args...)}
}

// SearchFailed creates a new search-failure error.
func SearchFailed(message string) *Error {
	return &Error{Code: CodeSearchFailed, Message: message}
}

// SearchFailedf creates a new search-failure error with a formatted message.
func SearchFailedf(format string, args ...any) *Error {
	return &Error{Code: CodeSearchFailed, Message: fmt.Sprintf(format, args...)}
}

// ApplyRecoverable creates a new recoverable apply error.
func ApplyRecoverable(message string) *Error {
	return &Error{Code: CodeApplyRecoverable, Message: message}
}

// ApplyRecoverablef creates a new recoverable apply error with a formatted message.
func ApplyRecoverablef(format string, args ...any) *Error {
	return &Error{Code: CodeApplyRecoverable, Message: fmt.Sprintf(format, args...)}
}

// ApplyPermanent creates a new permanent apply error.
func ApplyPermanent(message string) *Error {
	return &Error{Code: CodeApplyPermanent, Message: message}
}

// ApplyPermanentf creates a new permanent apply error with a formatted message.
func ApplyPermanentf(format string, args ...any) *Error {
	return &Error{Code: CodeApplyPermanent, Message: fmt.Sprintf(format, args...)}
}

// Internal creates a new internal error.
func Internal(message string) *Error {
	return &Error{Code: CodeInternal, Message: message}
}

// Internalf creates a new internal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an Error, preserving the cause.
// Returns nil when err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an Error and a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return isCode(err, CodeValidation)
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return isCode(err, CodeNotFound)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return isCode(err, CodeConflict)
}

// IsStoreCorrupt checks if an error is a store-corruption error.
func IsStoreCorrupt(err error) bool {
	return isCode(err, CodeStoreCorrupt)
}

// IsSearchFailed checks if an error is a search-failure error.
func IsSearchFailed(err error) bool {
	return isCode(err, CodeSearchFailed)
}

// IsApplyRecoverable checks if an error is a recoverable apply error.
func IsApplyRecoverable(err error) bool {
	return isCode(err, CodeApplyRecoverable)
}

// IsApplyPermanent checks if an error is a permanent apply error.
func IsApplyPermanent(err error) bool {
	return isCode(err, CodeApplyPermanent)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return isCode(err, CodeTimeout)
}

// IsCanceled checks if an error is a canceled error.
func IsCanceled(err error) bool {
	return isCode(err, CodeCanceled)
}

// IsInternal checks if an error is an internal error.
func IsInternal(err error) bool {
	return isCode(err, CodeInternal)
}

// GetCode returns the Code from an error, or empty string if not an Error.
func GetCode(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an Error or no field set.
func GetField(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// Classify returns a normalized tag for metrics and logs: the Code for an
// Error, "unknown" otherwise. Nil yields the empty string.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if code := GetCode(err); code != "" {
		return string(code)
	}
	return "unknown"
}
