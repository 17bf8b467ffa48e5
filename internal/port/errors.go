package port

import (
	"errors"
	"fmt"
)

// Error codes returned in API responses.
const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodePermission        = "permission_denied"
	CodeConflict          = "conflict"
	CodeIntegrity         = "integrity_error"
	CodePlatformAuth      = "platform_auth_error"
	CodePlatformRateLimit = "platform_rate_limited"
	CodePlatformNotFound  = "platform_not_found"
	CodePlatformTimeout   = "platform_timeout"
	CodePlatformServer    = "platform_server_error"
	CodePlatform          = "platform_error"
)

// Error is a typed, user-displayable error with a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches two typed errors by code, so callers can use errors.Is with
// the sentinel constructors below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Validf builds a validation error.
func Validf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Permissionf builds a permission-denied error.
func Permissionf(format string, args ...any) *Error {
	return &Error{Code: CodePermission, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error (duplicate mapping, duplicate URL).
func Conflictf(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Integrityf builds an invariant-violation error.
func Integrityf(format string, args ...any) *Error {
	return &Error{Code: CodeIntegrity, Message: fmt.Sprintf(format, args...)}
}

// Platformf builds a remote-platform error of the given kind.
func Platformf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks against any *Error of the same code.
var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrPermission = &Error{Code: CodePermission}
	ErrConflict   = &Error{Code: CodeConflict}
	ErrIntegrity  = &Error{Code: CodeIntegrity}
	ErrRateLimit  = &Error{Code: CodePlatformRateLimit}
)

// IsRetryable reports whether the error is a transient platform condition
// the caller may retry (rate limit or timeout).
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == CodePlatformRateLimit || e.Code == CodePlatformTimeout
}
