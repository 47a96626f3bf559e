// Package errors defines the service error taxonomy shared across the
// scoring API. Handlers map these codes onto HTTP statuses; everything the
// dispatcher cannot classify becomes ErrCodeInternal with a generic message.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies a service failure.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeUnavailable    ErrorCode = "UNAVAILABLE"
	ErrCodeInternal       ErrorCode = "INTERNAL"
)

// ServiceError carries a classification, a caller-visible message and an
// optional wrapped cause. The cause is for logs only and never serialized.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is/As.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches a key/value pair for structured logging.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// InvalidRequest reports a validation failure with a caller-visible reason.
func InvalidRequest(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: ErrCodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an authentication failure.
func Forbidden(message string) *ServiceError {
	return &ServiceError{Code: ErrCodeForbidden, Message: message}
}

// NotFound reports an unknown method or resource.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: ErrCodeNotFound, Message: message}
}

// Unavailable reports an exhausted backend.
func Unavailable(message string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeUnavailable, Message: message, Cause: cause}
}

// Internal wraps an unexpected failure. The message shown to callers is
// generic; cause stays in the logs.
func Internal(cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeInternal, Message: "internal error", Cause: cause}
}

// GetServiceError extracts a *ServiceError from err's chain.
func GetServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}
